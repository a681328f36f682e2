package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomymiron/ETH-Global/types"
)

var userColumns = map[string]struct{}{
	"id": {}, "username": {}, "email": {}, "name": {}, "image": {}, "born": {}, "password": {},
}

// UserRepository handles persistence for users.
type UserRepository struct {
	procs *Procedures
}

func NewUserRepository(procs *Procedures) *UserRepository {
	return &UserRepository{procs: procs}
}

// GetForLogin looks a user up by username or email, password hash included.
func (r *UserRepository) GetForLogin(ctx context.Context, login string) (types.User, error) {
	row, err := r.procs.CallOne(ctx, "a_auth_get_user", login)
	if err != nil {
		return types.User{}, err
	}
	return userFromRow(row), nil
}

// UsernameOwners returns the ids of accounts using username.
func (r *UserRepository) UsernameOwners(ctx context.Context, username string) ([]int64, error) {
	rows, err := r.procs.Call(ctx, "a_auth_get_username_check", username)
	if err != nil {
		return nil, err
	}
	return ownerIDs(rows), nil
}

// EmailOwners returns the ids of accounts using email.
func (r *UserRepository) EmailOwners(ctx context.Context, email string) ([]int64, error) {
	rows, err := r.procs.Call(ctx, "a_auth_get_email_check", email)
	if err != nil {
		return nil, err
	}
	return ownerIDs(rows), nil
}

// Create inserts a user and returns the new id.
func (r *UserRepository) Create(ctx context.Context, user types.NewUser) (int64, error) {
	var image any
	if user.Image != nil {
		image = *user.Image
	}
	row, err := r.procs.CallOne(ctx, "a_auth_post_user",
		user.PasswordHash,
		user.Username,
		image,
		user.Email,
		user.Name,
		user.Born,
	)
	if err != nil {
		return 0, err
	}
	id, ok := row.Int64("user_id")
	if !ok {
		return 0, errors.New("create user: missing user_id")
	}
	return id, nil
}

// RecoveryTarget returns the user id linked to email for password
// recovery, or ErrNotFound.
func (r *UserRepository) RecoveryTarget(ctx context.Context, email string) (int64, error) {
	row, err := r.procs.CallOne(ctx, "a_auth_check_email_forgot", email)
	if err != nil {
		return 0, err
	}
	if msg, _ := row.String(row.column("msg")); msg == "no" {
		return 0, ErrNotFound
	}
	id, ok := row.Int64("id")
	if !ok {
		return 0, ErrNotFound
	}
	return id, nil
}

// SetPassword replaces the password hash of userID.
func (r *UserRepository) SetPassword(ctx context.Context, userID int64, hash string) error {
	if err := r.procs.Exec(ctx, "b_auth_new_password", userID, hash); err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	return nil
}

func userFromRow(row Row) types.User {
	user := types.User{}
	user.ID, _ = row.Int64("id")
	user.Username, _ = row.String("username")
	user.Email, _ = row.String("email")
	user.Name, _ = row.String("name")
	user.Image, _ = row.String("image")
	user.Born, _ = row.String("born")
	user.PasswordHash, _ = row.String("password")

	for column, value := range row {
		if _, known := userColumns[column]; known {
			continue
		}
		if user.Extra == nil {
			user.Extra = make(map[string]any)
		}
		user.Extra[column] = value
	}
	return user
}

func ownerIDs(rows []Row) []int64 {
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		id, _ := row.Int64("id")
		ids = append(ids, id)
	}
	return ids
}
