package services

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"github.com/tomymiron/ETH-Global/internal/mail"
	"github.com/tomymiron/ETH-Global/internal/storage"
	"github.com/tomymiron/ETH-Global/internal/store"
	"github.com/tomymiron/ETH-Global/types"
)

type fakeUsers struct {
	byLogin       map[string]types.User
	usernameOwner []int64
	emailOwner    []int64
	recoveryIDs   map[string]int64
	created       []types.NewUser
	createErr     error
	passwords     map[int64]string
	passwordErrs  []error
	calls         int
}

func (f *fakeUsers) GetForLogin(ctx context.Context, login string) (types.User, error) {
	f.calls++
	user, ok := f.byLogin[login]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (f *fakeUsers) UsernameOwners(ctx context.Context, username string) ([]int64, error) {
	f.calls++
	return f.usernameOwner, nil
}

func (f *fakeUsers) EmailOwners(ctx context.Context, email string) ([]int64, error) {
	f.calls++
	return f.emailOwner, nil
}

func (f *fakeUsers) Create(ctx context.Context, user types.NewUser) (int64, error) {
	f.calls++
	if f.createErr != nil {
		return 0, f.createErr
	}
	f.created = append(f.created, user)
	return int64(len(f.created)), nil
}

func (f *fakeUsers) RecoveryTarget(ctx context.Context, email string) (int64, error) {
	f.calls++
	id, ok := f.recoveryIDs[email]
	if !ok {
		return 0, store.ErrNotFound
	}
	return id, nil
}

func (f *fakeUsers) SetPassword(ctx context.Context, userID int64, hash string) error {
	f.calls++
	if len(f.passwordErrs) > 0 {
		err := f.passwordErrs[0]
		f.passwordErrs = f.passwordErrs[1:]
		if err != nil {
			return err
		}
	}
	if f.passwords == nil {
		f.passwords = make(map[int64]string)
	}
	f.passwords[userID] = hash
	return nil
}

type fakeOTPs struct {
	email     map[string]types.OTPRecord
	recovery  map[int64]types.OTPRecord
	usernames map[int64]string
	deleted   []string
	completed []int64

	// afterGetEmail runs once a pending email code has been loaded.
	afterGetEmail func(email string)
}

func newFakeOTPs() *fakeOTPs {
	return &fakeOTPs{
		email:     make(map[string]types.OTPRecord),
		recovery:  make(map[int64]types.OTPRecord),
		usernames: make(map[int64]string),
	}
}

func (f *fakeOTPs) UpsertEmailCode(ctx context.Context, email, hash string) error {
	f.email[email] = types.OTPRecord{Hash: hash}
	return nil
}

func (f *fakeOTPs) GetEmailCode(ctx context.Context, email string) (types.OTPRecord, error) {
	record, ok := f.email[email]
	if !ok {
		return types.OTPRecord{}, store.ErrNotFound
	}
	if f.afterGetEmail != nil {
		f.afterGetEmail(email)
	}
	return record, nil
}

func (f *fakeOTPs) DeleteEmailCode(ctx context.Context, email string) error {
	if _, ok := f.email[email]; !ok {
		return store.ErrNotFound
	}
	delete(f.email, email)
	f.deleted = append(f.deleted, email)
	return nil
}

func (f *fakeOTPs) SetRecoveryCode(ctx context.Context, userID int64, hash string) error {
	f.recovery[userID] = types.OTPRecord{Hash: hash}
	return nil
}

func (f *fakeOTPs) GetRecoveryCode(ctx context.Context, userID int64) (types.OTPRecord, error) {
	record, ok := f.recovery[userID]
	if !ok {
		return types.OTPRecord{}, store.ErrNotFound
	}
	return record, nil
}

func (f *fakeOTPs) CompleteRecovery(ctx context.Context, userID int64) (types.RecoveredUser, error) {
	delete(f.recovery, userID)
	f.completed = append(f.completed, userID)
	return types.RecoveredUser{ID: userID, Username: f.usernames[userID]}, nil
}

type fakeTemplates struct {
	err error
}

func (f fakeTemplates) Render(name, value string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return name + ":" + value, nil
}

type fakeDispatcher struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, msg mail.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return f.err
}

type memoryLedger struct {
	used map[string]time.Duration
}

func (l *memoryLedger) Redeem(ctx context.Context, tokenID string, ttl time.Duration) (bool, error) {
	if l.used == nil {
		l.used = make(map[string]time.Duration)
	}
	if _, ok := l.used[tokenID]; ok {
		return false, nil
	}
	l.used[tokenID] = ttl
	return true, nil
}

func (l *memoryLedger) Release(ctx context.Context, tokenID string) error {
	delete(l.used, tokenID)
	return nil
}

type memoryObjects struct {
	objects map[string][]byte
	types   map[string]string
}

func newMemoryObjects() *memoryObjects {
	return &memoryObjects{objects: make(map[string][]byte), types: make(map[string]string)}
}

func (m *memoryObjects) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[key] = data
	m.types[key] = contentType
	return nil
}

func (m *memoryObjects) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryObjects) Delete(ctx context.Context, key string) error {
	delete(m.objects, key)
	delete(m.types, key)
	return nil
}
