package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/tomymiron/ETH-Global/internal/mail"
	"github.com/tomymiron/ETH-Global/internal/store"
	"github.com/tomymiron/ETH-Global/types"
)

const (
	hashCost          = 10
	emailCodeDigits   = 4
	recoverCodeDigits = 6
	minEmailLength    = 5
)

// UserRepository defines persistence operations for accounts.
type UserRepository interface {
	GetForLogin(ctx context.Context, login string) (types.User, error)
	UsernameOwners(ctx context.Context, username string) ([]int64, error)
	EmailOwners(ctx context.Context, email string) ([]int64, error)
	Create(ctx context.Context, user types.NewUser) (int64, error)
	RecoveryTarget(ctx context.Context, email string) (int64, error)
	SetPassword(ctx context.Context, userID int64, hash string) error
}

// OTPRepository stores hashed one-time codes.
type OTPRepository interface {
	UpsertEmailCode(ctx context.Context, email, hash string) error
	GetEmailCode(ctx context.Context, email string) (types.OTPRecord, error)
	DeleteEmailCode(ctx context.Context, email string) error
	SetRecoveryCode(ctx context.Context, userID int64, hash string) error
	GetRecoveryCode(ctx context.Context, userID int64) (types.OTPRecord, error)
	CompleteRecovery(ctx context.Context, userID int64) (types.RecoveredUser, error)
}

// TemplateRenderer fills a mail template with a code.
type TemplateRenderer interface {
	Render(name, value string) (string, error)
}

// OTPService verifies email ownership during sign up.
type OTPService struct {
	users      UserRepository
	otps       OTPRepository
	templates  TemplateRenderer
	dispatcher mail.Dispatcher
	logger     *zap.Logger
	cost       int
}

func NewOTPService(users UserRepository, otps OTPRepository, templates TemplateRenderer, dispatcher mail.Dispatcher, logger *zap.Logger) *OTPService {
	return &OTPService{
		users:      users,
		otps:       otps,
		templates:  templates,
		dispatcher: dispatcher,
		logger:     logger,
		cost:       hashCost,
	}
}

// RequestEmailCode mails a fresh 4-digit code to email, replacing any
// pending one. Delivery happens in the background; a failed delivery is
// only logged.
func (s *OTPService) RequestEmailCode(ctx context.Context, email string) error {
	if len(email) < minEmailLength {
		return ErrInvalidInput
	}

	owners, err := s.users.EmailOwners(ctx, email)
	if err != nil {
		return fmt.Errorf("check email: %w", err)
	}
	if len(owners) > 0 {
		return ErrEmailInUse
	}

	code, err := randomCode(emailCodeDigits)
	if err != nil {
		return err
	}
	html, err := s.templates.Render(mail.TemplateEmailCheck, code)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTemplate, err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.cost)
	if err != nil {
		return fmt.Errorf("hash code: %w", err)
	}
	if err := s.otps.UpsertEmailCode(ctx, email, string(hash)); err != nil {
		return fmt.Errorf("store code: %w", err)
	}

	msg := mail.Message{
		To:      email,
		Subject: fmt.Sprintf("Codigo de Verificacion 🔐 [%s]", code),
		HTML:    html,
	}
	if err := s.dispatcher.Dispatch(ctx, msg); err != nil {
		s.logger.Error("verification mail not dispatched", zap.String("email", email), zap.Error(err))
	}
	return nil
}

// VerifyEmailCode checks code against the pending code for email. A
// successful check consumes the code.
func (s *OTPService) VerifyEmailCode(ctx context.Context, email, code string) error {
	if len(email) < minEmailLength || len(code) < emailCodeDigits {
		return ErrInvalidInput
	}

	record, err := s.otps.GetEmailCode(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrOTPNotFound
		}
		return fmt.Errorf("load code: %w", err)
	}
	if err := checkCode(record, code); err != nil {
		return err
	}
	if err := s.otps.DeleteEmailCode(ctx, email); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrOTPNotFound
		}
		return fmt.Errorf("consume code: %w", err)
	}
	return nil
}

func checkCode(record types.OTPRecord, code string) error {
	if record.Expired {
		return ErrOTPExpired
	}
	if bcrypt.CompareHashAndPassword([]byte(record.Hash), []byte(code)) != nil {
		return ErrOTPMismatch
	}
	return nil
}

// randomCode returns a uniformly drawn code of exactly digits digits
// without a leading zero.
func randomCode(digits int) (string, error) {
	low := int64(1)
	for i := 1; i < digits; i++ {
		low *= 10
	}
	n, err := rand.Int(rand.Reader, big.NewInt(9*low))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%d", low+n.Int64()), nil
}
