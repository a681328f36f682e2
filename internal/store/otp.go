package store

import (
	"context"
	"errors"

	"github.com/tomymiron/ETH-Global/types"
)

// OTPRepository persists hashed one-time codes. Expiry is computed by the
// database and reported through the expired column.
type OTPRepository struct {
	procs *Procedures
}

func NewOTPRepository(procs *Procedures) *OTPRepository {
	return &OTPRepository{procs: procs}
}

// UpsertEmailCode replaces any pending verification code for email.
func (r *OTPRepository) UpsertEmailCode(ctx context.Context, email, hash string) error {
	return r.procs.Exec(ctx, "a_auth_post_new_otp", email, hash)
}

func (r *OTPRepository) GetEmailCode(ctx context.Context, email string) (types.OTPRecord, error) {
	row, err := r.procs.CallOne(ctx, "a_auth_get_otp", email)
	if err != nil {
		return types.OTPRecord{}, err
	}
	return otpFromRow(row), nil
}

// DeleteEmailCode consumes the pending code for email. It returns
// ErrNotFound when another caller consumed it first.
func (r *OTPRepository) DeleteEmailCode(ctx context.Context, email string) error {
	const query = `DELETE FROM temp_email_otp WHERE email = $1`
	res, err := r.procs.db.ExecContext(ctx, query, email)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetRecoveryCode replaces any pending recovery code for userID.
func (r *OTPRepository) SetRecoveryCode(ctx context.Context, userID int64, hash string) error {
	return r.procs.Exec(ctx, "a_auth_set_recover_otp", userID, hash)
}

func (r *OTPRepository) GetRecoveryCode(ctx context.Context, userID int64) (types.OTPRecord, error) {
	row, err := r.procs.CallOne(ctx, "a_auth_check_recover_otp", userID)
	if err != nil {
		return types.OTPRecord{}, err
	}
	return otpFromRow(row), nil
}

// CompleteRecovery consumes the recovery code and returns the account it
// belongs to.
func (r *OTPRepository) CompleteRecovery(ctx context.Context, userID int64) (types.RecoveredUser, error) {
	row, err := r.procs.CallOne(ctx, "a_auth_done_recover_otp", userID)
	if err != nil {
		return types.RecoveredUser{}, err
	}
	id, ok := row.Int64(row.column("msg"))
	if !ok {
		return types.RecoveredUser{}, errors.New("complete recovery: missing user id")
	}
	username, _ := row.String("username")
	return types.RecoveredUser{ID: id, Username: username}, nil
}

func otpFromRow(row Row) types.OTPRecord {
	hash, _ := row.String("otp")
	return types.OTPRecord{
		Hash:    hash,
		Expired: row.Bool("expired"),
	}
}
