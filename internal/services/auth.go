package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/tomymiron/ETH-Global/internal/store"
	"github.com/tomymiron/ETH-Global/types"
)

const (
	minHandleLength   = 4
	maxUsernameLength = 30
	bornLayout        = "2-1-2006"
	isoDateLayout     = "2006-01-02"
)

var (
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9._]+$`)
	letterPattern   = regexp.MustCompile(`[A-Za-z]`)
)

// Registration is the sign-up payload.
type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	// Born is DD-MM-YYYY.
	Born string `json:"born"`
}

// Session is the result of a successful login.
type Session struct {
	Token string     `json:"token"`
	User  types.User `json:"user"`
}

// AuthService handles sign up, availability checks and login.
type AuthService struct {
	users  UserRepository
	tokens *Tokens
	images *ProfileImages
	logger *zap.Logger
	cost   int
}

func NewAuthService(users UserRepository, tokens *Tokens, images *ProfileImages, logger *zap.Logger) *AuthService {
	return &AuthService{users: users, tokens: tokens, images: images, logger: logger, cost: hashCost}
}

// CheckUsername reports whether username belongs to an account other
// than requester.
func (s *AuthService) CheckUsername(ctx context.Context, username string, requester int64) (bool, error) {
	if len(username) < minHandleLength {
		return false, ErrInvalidInput
	}
	owners, err := s.users.UsernameOwners(ctx, username)
	if err != nil {
		return false, fmt.Errorf("check username: %w", err)
	}
	return ownedByOther(owners, requester), nil
}

// CheckEmail reports whether email belongs to an account other than
// requester.
func (s *AuthService) CheckEmail(ctx context.Context, email string, requester int64) (bool, error) {
	if len(email) < minHandleLength {
		return false, ErrInvalidInput
	}
	if !validEmail(email) {
		return false, ErrEmailInvalid
	}
	owners, err := s.users.EmailOwners(ctx, email)
	if err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return ownedByOther(owners, requester), nil
}

// Register validates reg, stores the optional profile image and creates
// the account. Nothing is written when validation fails.
func (s *AuthService) Register(ctx context.Context, reg Registration, image *Upload) (int64, error) {
	born, err := validateRegistration(reg)
	if err != nil {
		return 0, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), s.cost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}

	user := types.NewUser{
		Username:     reg.Username,
		Email:        reg.Email,
		Name:         reg.Name,
		PasswordHash: string(hash),
		Born:         born,
	}
	if image != nil {
		name, err := s.images.Save(ctx, *image)
		if err != nil {
			return 0, err
		}
		user.Image = &name
	}

	id, err := s.users.Create(ctx, user)
	if err != nil {
		if user.Image != nil {
			if rmErr := s.images.Remove(ctx, *user.Image); rmErr != nil {
				s.logger.Warn("orphaned profile image", zap.String("image", *user.Image), zap.Error(rmErr))
			}
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	s.logger.Info("user registered", zap.Int64("user_id", id))
	return id, nil
}

// Login checks credentials and opens a session. login is a username or
// an email.
func (s *AuthService) Login(ctx context.Context, login, password string) (Session, error) {
	if strings.TrimSpace(login) == "" || strings.TrimSpace(password) == "" {
		return Session{}, ErrMissingCredentials
	}

	user, err := s.users.GetForLogin(ctx, login)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Session{}, ErrUserNotFound
		}
		return Session{}, fmt.Errorf("load user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return Session{}, ErrBadCredentials
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return Session{}, fmt.Errorf("issue session: %w", err)
	}
	user.PasswordHash = ""
	return Session{Token: token, User: user}, nil
}

// Authenticate resolves a session token to a user id.
func (s *AuthService) Authenticate(token string) (int64, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return 0, err
	}
	return claims.UserID, nil
}

func validateRegistration(reg Registration) (string, error) {
	if len(reg.Username) < minHandleLength || len(reg.Username) > maxUsernameLength {
		return "", fmt.Errorf("%w: username length", ErrInvalidInput)
	}
	if !usernamePattern.MatchString(reg.Username) || !letterPattern.MatchString(reg.Username) {
		return "", fmt.Errorf("%w: username characters", ErrInvalidInput)
	}
	if !validEmail(reg.Email) {
		return "", fmt.Errorf("%w: email", ErrInvalidInput)
	}
	if reg.Password == "" || reg.Name == "" || reg.Born == "" {
		return "", fmt.Errorf("%w: missing field", ErrInvalidInput)
	}
	born, err := time.Parse(bornLayout, reg.Born)
	if err != nil {
		return "", fmt.Errorf("%w: born", ErrInvalidInput)
	}
	return born.Format(isoDateLayout), nil
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func ownedByOther(owners []int64, requester int64) bool {
	for _, id := range owners {
		if id != requester {
			return true
		}
	}
	return false
}
