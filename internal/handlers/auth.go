package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tomymiron/ETH-Global/internal/services"
)

const (
	formFieldNewUser   = "newUser"
	formFieldImage     = "image"
	maxMultipartMemory = 32 << 20

	msgAuthError  = "Ocurrió un error"
	msgRetryError = "Ocurrio un error, reintenta"
)

// AuthService covers sign up, availability checks and login.
type AuthService interface {
	Authenticator
	CheckUsername(ctx context.Context, username string, requester int64) (bool, error)
	CheckEmail(ctx context.Context, email string, requester int64) (bool, error)
	Register(ctx context.Context, reg services.Registration, image *services.Upload) (int64, error)
	Login(ctx context.Context, login, password string) (services.Session, error)
}

// OTPService covers email verification codes.
type OTPService interface {
	RequestEmailCode(ctx context.Context, email string) error
	VerifyEmailCode(ctx context.Context, email, code string) error
}

// RecoveryService covers the forgotten-password flow.
type RecoveryService interface {
	RequestRecoveryCode(ctx context.Context, email string) (int64, error)
	VerifyRecoveryCode(ctx context.Context, userID int64, code string) (services.RecoveryGrant, error)
	SetNewPassword(ctx context.Context, token, password string) error
}

// AuthHandler provides account endpoints.
type AuthHandler struct {
	auth     AuthService
	otp      OTPService
	recovery RecoveryService
	logger   *zap.Logger
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(auth AuthService, otp OTPService, recovery RecoveryService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, otp: otp, recovery: recovery, logger: logger}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, auth AuthService, otp OTPService, recovery RecoveryService, logger *zap.Logger) {
	handler := NewAuthHandler(auth, otp, recovery, logger)
	identify := OptionalAuth(auth, logger, false)

	r.Post("/otp", handler.SendEmailCode)
	r.Get("/otp", handler.CheckEmailCode)
	r.With(identify).Get("/username/check", handler.CheckUsername)
	r.With(identify).Get("/email/check", handler.CheckEmail)
	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
	r.Post("/recover", handler.SendRecoveryCode)
	r.Post("/recover/check", handler.CheckRecoveryCode)
	r.Post("/password", handler.NewPassword)
}

type textValue struct {
	Text string `json:"text"`
}

// SendEmailCode mails a verification code.
func (h *AuthHandler) SendEmailCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email json.RawMessage `json:"email"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	var email textValue
	if err := decodeEmbedded(req.Email, &email); err != nil {
		writeMessage(w, http.StatusUnauthorized, msgAuthError)
		return
	}

	err := h.otp.RequestEmailCode(r.Context(), email.Text)
	switch {
	case err == nil:
		writeMessage(w, http.StatusOK, "Email enviado con exito!")
	case errors.Is(err, services.ErrInvalidInput):
		writeMessage(w, http.StatusUnauthorized, "Email no valid")
	case errors.Is(err, services.ErrEmailInUse):
		writeMessage(w, http.StatusUnauthorized, "Email en uso")
	case errors.Is(err, services.ErrTemplate):
		h.logger.Error("verification template unavailable", zap.Error(err))
		writeMessage(w, http.StatusBadRequest, msgGenericError)
	default:
		h.logger.Error("send verification code", zap.Error(err))
		writeMessage(w, http.StatusUnauthorized, msgAuthError)
	}
}

// CheckEmailCode verifies a code sent by SendEmailCode.
func (h *AuthHandler) CheckEmailCode(w http.ResponseWriter, r *http.Request) {
	var values struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := decodeQuery(r, "values", &values); err != nil {
		writeMessage(w, http.StatusUnauthorized, msgAuthError)
		return
	}

	err := h.otp.VerifyEmailCode(r.Context(), values.Email, values.Code)
	switch {
	case err == nil:
		writeMessage(w, http.StatusOK, "ok")
	case errors.Is(err, services.ErrInvalidInput):
		writeMessage(w, http.StatusUnauthorized, "Valores no obtenidos")
	case errors.Is(err, services.ErrOTPNotFound):
		writeMessage(w, http.StatusUnauthorized, "Ocurrio un error.")
	case errors.Is(err, services.ErrOTPExpired):
		writeMessage(w, http.StatusUnauthorized, "El codigo ha expirado")
	case errors.Is(err, services.ErrOTPMismatch):
		writeMessage(w, http.StatusUnauthorized, "Codigo no valido, mira tu buzon")
	default:
		h.logger.Error("check verification code", zap.Error(err))
		writeMessage(w, http.StatusUnauthorized, msgAuthError)
	}
}

// CheckUsername reports whether a username is taken.
func (h *AuthHandler) CheckUsername(w http.ResponseWriter, r *http.Request) {
	var username textValue
	if err := decodeQuery(r, "username", &username); err != nil {
		writeMessage(w, http.StatusUnauthorized, msgAuthError)
		return
	}

	inUse, err := h.auth.CheckUsername(r.Context(), username.Text, viewerIDFromContext(r.Context()))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, InUseResponse{InUse: inUse})
	case errors.Is(err, services.ErrInvalidInput):
		writeMessage(w, http.StatusUnauthorized, "Usuario no obtenido")
	default:
		h.logger.Error("check username", zap.Error(err))
		writeMessage(w, http.StatusUnauthorized, msgAuthError)
	}
}

// CheckEmail reports whether an email is taken.
func (h *AuthHandler) CheckEmail(w http.ResponseWriter, r *http.Request) {
	var email textValue
	if err := decodeQuery(r, "email", &email); err != nil {
		writeMessage(w, http.StatusUnauthorized, msgAuthError)
		return
	}

	inUse, err := h.auth.CheckEmail(r.Context(), email.Text, viewerIDFromContext(r.Context()))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, InUseResponse{InUse: inUse})
	case errors.Is(err, services.ErrInvalidInput):
		writeMessage(w, http.StatusUnauthorized, "Email no obtenido")
	case errors.Is(err, services.ErrEmailInvalid):
		writeMessage(w, http.StatusUnauthorized, "Email no valido")
	default:
		h.logger.Error("check email", zap.Error(err))
		writeMessage(w, http.StatusUnauthorized, msgAuthError)
	}
}

// Register creates an account from a multipart form with a JSON newUser
// field and an optional image file.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, services.MaxImageSize+maxJSONBody)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		h.logger.Warn("invalid register form", zap.Error(err))
		writeMessage(w, http.StatusUnauthorized, msgAuthError)
		return
	}
	defer r.MultipartForm.RemoveAll()

	var reg services.Registration
	if err := json.Unmarshal([]byte(r.FormValue(formFieldNewUser)), &reg); err != nil {
		writeMessage(w, http.StatusUnauthorized, msgAuthError)
		return
	}

	var image *services.Upload
	if file, header, err := r.FormFile(formFieldImage); err == nil {
		defer file.Close()
		image = &services.Upload{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Body:        file,
		}
	} else if !errors.Is(err, http.ErrMissingFile) {
		writeMessage(w, http.StatusUnauthorized, msgAuthError)
		return
	}

	userID, err := h.auth.Register(r.Context(), reg, image)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, RegisterResponse{UserID: userID})
	case errors.Is(err, services.ErrInvalidInput):
		writeMessage(w, http.StatusUnauthorized, "Ocurrio un error, los datos no fueron validos.")
	default:
		h.logger.Error("register", zap.Error(err))
		writeMessage(w, http.StatusUnauthorized, msgAuthError)
	}
}

// Login verifies credentials and returns a session token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Credentials json.RawMessage `json:"credentials"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	var creds struct {
		User     string `json:"user"`
		Password string `json:"password"`
	}
	if err := decodeEmbedded(req.Credentials, &creds); err != nil {
		writeMessage(w, http.StatusUnauthorized, msgAuthError)
		return
	}

	session, err := h.auth.Login(r.Context(), creds.User, creds.Password)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, session)
	case errors.Is(err, services.ErrMissingCredentials):
		writeMessage(w, http.StatusUnauthorized, "Completa los campos!")
	case errors.Is(err, services.ErrUserNotFound):
		writeMessage(w, http.StatusUnauthorized, "Usuario no encontrado!")
	case errors.Is(err, services.ErrBadCredentials):
		writeMessage(w, http.StatusUnauthorized, "Contraseña o usuario incorrectos!")
	default:
		h.logger.Error("login", zap.Error(err))
		writeMessage(w, http.StatusUnauthorized, msgAuthError)
	}
}

// SendRecoveryCode mails a password recovery code.
func (h *AuthHandler) SendRecoveryCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	userID, err := h.recovery.RequestRecoveryCode(r.Context(), req.Email)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, userID)
	case errors.Is(err, services.ErrInvalidInput):
		writeMessage(w, http.StatusBadRequest, "Email requerido")
	case errors.Is(err, services.ErrEmailNotAssociated):
		writeMessage(w, http.StatusAccepted, "Email no asociado a una cuenta")
	case errors.Is(err, services.ErrTemplate):
		h.logger.Error("recovery template unavailable", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "Error al leer plantilla de email")
	case errors.Is(err, services.ErrMailDispatch):
		writeMessage(w, http.StatusBadRequest, msgRetryError)
	default:
		h.logger.Error("send recovery code", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, msgGenericError)
	}
}

// CheckRecoveryCode exchanges a recovery code for a recovery token.
func (h *AuthHandler) CheckRecoveryCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID looseID `json:"userId"`
		OTP    string  `json:"otp"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	grant, err := h.recovery.VerifyRecoveryCode(r.Context(), int64(req.UserID), req.OTP)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, grant)
	case errors.Is(err, services.ErrInvalidInput):
		writeMessage(w, http.StatusAccepted, "Ingresa un codigo")
	case errors.Is(err, services.ErrUserRequired):
		writeMessage(w, http.StatusBadRequest, "Usuario no encontrado")
	case errors.Is(err, services.ErrOTPNotFound):
		writeMessage(w, http.StatusAccepted, msgRetryError)
	case errors.Is(err, services.ErrOTPExpired):
		writeMessage(w, http.StatusAccepted, "El codigo ha expirado")
	case errors.Is(err, services.ErrOTPMismatch):
		writeMessage(w, http.StatusAccepted, "Codigo no valido, mira tu buzon")
	default:
		h.logger.Error("check recovery code", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, msgGenericError)
	}
}

// NewPassword sets a new password using the recovery token from the
// Authorization header.
func (h *AuthHandler) NewPassword(w http.ResponseWriter, r *http.Request) {
	token := authToken(r)
	if token == "" {
		writeMessage(w, http.StatusUnauthorized, "No has iniciado sesión")
		return
	}
	var req struct {
		NewPassword string `json:"newPassword"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.NewPassword == "" {
		writeMessage(w, http.StatusBadRequest, "No se recibió la nueva contraseña")
		return
	}

	err := h.recovery.SetNewPassword(r.Context(), token, req.NewPassword)
	switch {
	case err == nil:
		writeMessage(w, http.StatusOK, "Success")
	case errors.Is(err, services.ErrTokenInvalid):
		writeMessage(w, http.StatusForbidden, "Token is not valid")
	default:
		h.logger.Error("set new password", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, msgGenericError)
	}
}

type InUseResponse struct {
	InUse bool `json:"inUse"`
}

type RegisterResponse struct {
	UserID int64 `json:"user_id"`
}
