package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/tomymiron/ETH-Global/internal/mail"
	"github.com/tomymiron/ETH-Global/internal/store"
)

// TokenLedger records redeemed recovery tokens.
type TokenLedger interface {
	Redeem(ctx context.Context, tokenID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, tokenID string) error
}

// RecoveryGrant authorizes a single password change.
type RecoveryGrant struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// RecoveryService runs the forgotten-password flow.
type RecoveryService struct {
	users      UserRepository
	otps       OTPRepository
	templates  TemplateRenderer
	dispatcher mail.Dispatcher
	tokens     *Tokens
	ledger     TokenLedger
	logger     *zap.Logger
	cost       int
}

func NewRecoveryService(users UserRepository, otps OTPRepository, templates TemplateRenderer, dispatcher mail.Dispatcher, tokens *Tokens, ledger TokenLedger, logger *zap.Logger) *RecoveryService {
	return &RecoveryService{
		users:      users,
		otps:       otps,
		templates:  templates,
		dispatcher: dispatcher,
		tokens:     tokens,
		ledger:     ledger,
		logger:     logger,
		cost:       hashCost,
	}
}

// RequestRecoveryCode mails a 6-digit code to the account owning email
// and returns its id. The code is stored even when the mail cannot be
// handed off, in which case ErrMailDispatch is returned.
func (s *RecoveryService) RequestRecoveryCode(ctx context.Context, email string) (int64, error) {
	if email == "" {
		return 0, ErrInvalidInput
	}

	userID, err := s.users.RecoveryTarget(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, ErrEmailNotAssociated
		}
		return 0, fmt.Errorf("find account: %w", err)
	}

	code, err := randomCode(recoverCodeDigits)
	if err != nil {
		return 0, err
	}
	html, err := s.templates.Render(mail.TemplateForgotPass, code)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrTemplate, err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.cost)
	if err != nil {
		return 0, fmt.Errorf("hash code: %w", err)
	}
	if err := s.otps.SetRecoveryCode(ctx, userID, string(hash)); err != nil {
		return 0, fmt.Errorf("store code: %w", err)
	}

	msg := mail.Message{
		To:      strings.ToLower(email),
		Subject: fmt.Sprintf("Codigo de Restablecimiento 🔐 [%s]", code),
		HTML:    html,
	}
	if err := s.dispatcher.Dispatch(ctx, msg); err != nil {
		s.logger.Error("recovery mail not dispatched", zap.Int64("user_id", userID), zap.Error(err))
		return 0, fmt.Errorf("%w: %v", ErrMailDispatch, err)
	}
	return userID, nil
}

// VerifyRecoveryCode consumes the pending recovery code of userID and
// issues a recovery token.
func (s *RecoveryService) VerifyRecoveryCode(ctx context.Context, userID int64, code string) (RecoveryGrant, error) {
	if len(code) < recoverCodeDigits {
		return RecoveryGrant{}, ErrInvalidInput
	}
	if userID == 0 {
		return RecoveryGrant{}, ErrUserRequired
	}

	record, err := s.otps.GetRecoveryCode(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return RecoveryGrant{}, ErrOTPNotFound
		}
		return RecoveryGrant{}, fmt.Errorf("load code: %w", err)
	}
	if err := checkCode(record, code); err != nil {
		return RecoveryGrant{}, err
	}

	recovered, err := s.otps.CompleteRecovery(ctx, userID)
	if err != nil {
		return RecoveryGrant{}, fmt.Errorf("consume code: %w", err)
	}
	token, err := s.tokens.Issue(recovered.ID)
	if err != nil {
		return RecoveryGrant{}, fmt.Errorf("issue recovery token: %w", err)
	}
	return RecoveryGrant{Token: token, Username: recovered.Username}, nil
}

// SetNewPassword changes the password of the account named by a recovery
// token. Each token can be used once; a failed write leaves it usable.
func (s *RecoveryService) SetNewPassword(ctx context.Context, token, password string) error {
	if password == "" {
		return ErrInvalidInput
	}

	claims, err := s.tokens.Parse(token)
	if err != nil {
		return err
	}
	if claims.ID == "" || claims.ExpiresAt == nil {
		return fmt.Errorf("%w: missing token id", ErrTokenInvalid)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	redeemed, err := s.ledger.Redeem(ctx, claims.ID, time.Until(claims.ExpiresAt.Time))
	if err != nil {
		return err
	}
	if !redeemed {
		return fmt.Errorf("%w: already used", ErrTokenInvalid)
	}

	if err := s.users.SetPassword(ctx, claims.UserID, string(hash)); err != nil {
		if releaseErr := s.ledger.Release(context.WithoutCancel(ctx), claims.ID); releaseErr != nil {
			s.logger.Error("recovery token left redeemed", zap.Int64("user_id", claims.UserID), zap.Error(releaseErr))
		}
		return err
	}
	return nil
}
