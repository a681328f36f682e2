package services

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")

	ErrUserRequired  = errors.New("user required")
	ErrEventRequired = errors.New("event required")

	ErrEmailInvalid       = errors.New("email not valid")
	ErrEmailInUse         = errors.New("email in use")
	ErrEmailNotAssociated = errors.New("email not associated with an account")

	ErrOTPNotFound = errors.New("code not found")
	ErrOTPExpired  = errors.New("code expired")
	ErrOTPMismatch = errors.New("code mismatch")

	// ErrTemplate means no mail template could be read.
	ErrTemplate     = errors.New("mail template unavailable")
	ErrMailDispatch = errors.New("mail dispatch failed")

	ErrMissingCredentials = errors.New("missing credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrBadCredentials     = errors.New("bad credentials")

	ErrTokenInvalid = errors.New("token not valid")

	ErrImageNotFound = errors.New("image not found")
	errImageTooLarge = errors.New("image dimensions exceed limit")

	ErrPayloadInvalid    = errors.New("webhook payload invalid")
	ErrEventIgnored      = errors.New("webhook event not handled")
	ErrPaymentIncomplete = errors.New("payment data incomplete")
	ErrPayerRequired     = errors.New("payer address required")
	ErrTxIDRequired      = errors.New("tx id required")
	ErrPaymentNotFound   = errors.New("payment not found")
)
