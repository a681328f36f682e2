package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tomymiron/ETH-Global/internal/services"
	"github.com/tomymiron/ETH-Global/types"
)

var errBoom = errors.New("boom")

// stubAuth accepts the token "good" as user 7.
type stubAuth struct {
	checkUsername func(username string, requester int64) (bool, error)
	checkEmail    func(email string, requester int64) (bool, error)
	register      func(reg services.Registration, image *services.Upload) (int64, error)
	login         func(login, password string) (services.Session, error)
}

func (s *stubAuth) Authenticate(token string) (int64, error) {
	if token == "good" {
		return 7, nil
	}
	return 0, services.ErrTokenInvalid
}

func (s *stubAuth) CheckUsername(_ context.Context, username string, requester int64) (bool, error) {
	return s.checkUsername(username, requester)
}

func (s *stubAuth) CheckEmail(_ context.Context, email string, requester int64) (bool, error) {
	return s.checkEmail(email, requester)
}

func (s *stubAuth) Register(_ context.Context, reg services.Registration, image *services.Upload) (int64, error) {
	return s.register(reg, image)
}

func (s *stubAuth) Login(_ context.Context, login, password string) (services.Session, error) {
	return s.login(login, password)
}

type stubOTP struct {
	requestErr error
	verifyErr  error
	email      string
	code       string
}

func (s *stubOTP) RequestEmailCode(_ context.Context, email string) error {
	s.email = email
	return s.requestErr
}

func (s *stubOTP) VerifyEmailCode(_ context.Context, email, code string) error {
	s.email, s.code = email, code
	return s.verifyErr
}

type stubRecovery struct {
	userID     int64
	requestErr error
	grant      services.RecoveryGrant
	verifyErr  error
	setErr     error
	token      string
	password   string
}

func (s *stubRecovery) RequestRecoveryCode(context.Context, string) (int64, error) {
	return s.userID, s.requestErr
}

func (s *stubRecovery) VerifyRecoveryCode(_ context.Context, userID int64, code string) (services.RecoveryGrant, error) {
	s.userID = userID
	return s.grant, s.verifyErr
}

func (s *stubRecovery) SetNewPassword(_ context.Context, token, password string) error {
	s.token, s.password = token, password
	return s.setErr
}

type stubEvents struct {
	page       services.Page
	err        error
	feed       services.FeedQuery
	userQuery  services.UserEventsQuery
	finished   []types.Event
	interacted [2]int64
	genres     []types.Tag
	genresErr  error
	tags       []types.Tag
	tagsErr    error
	tagType    int64
}

func (s *stubEvents) Feed(_ context.Context, query services.FeedQuery) (services.Page, error) {
	s.feed = query
	return s.page, s.err
}

func (s *stubEvents) Shows(_ context.Context, query services.FeedQuery) (services.Page, error) {
	s.feed = query
	return s.page, s.err
}

func (s *stubEvents) UserEvents(_ context.Context, query services.UserEventsQuery) (services.Page, error) {
	s.userQuery = query
	if query.OwnerID == 0 {
		return services.Page{}, services.ErrUserRequired
	}
	return s.page, s.err
}

func (s *stubEvents) FinishedEvents(_ context.Context, viewerID, ownerID int64) ([]types.Event, error) {
	s.userQuery = services.UserEventsQuery{ViewerID: viewerID, OwnerID: ownerID}
	return s.finished, s.err
}

func (s *stubEvents) Like(_ context.Context, userID, eventID int64) error {
	s.interacted = [2]int64{userID, eventID}
	return s.err
}

func (s *stubEvents) Unlike(_ context.Context, userID, eventID int64) error {
	s.interacted = [2]int64{userID, eventID}
	return s.err
}

func (s *stubEvents) Click(_ context.Context, viewerID, eventID int64) error {
	s.interacted = [2]int64{viewerID, eventID}
	return s.err
}

func (s *stubEvents) Genres(context.Context) ([]types.Tag, error) {
	return s.genres, s.genresErr
}

func (s *stubEvents) Tags(_ context.Context, tagType int64) ([]types.Tag, error) {
	s.tagType = tagType
	return s.tags, s.tagsErr
}

type stubPayments struct {
	receipt types.PaymentReceipt
	err     error
	payload *types.WebhookPayload
	payment types.Payment
	txID    string
}

func (s *stubPayments) ProcessWebhook(_ context.Context, payload *types.WebhookPayload) (types.PaymentReceipt, error) {
	s.payload = payload
	return s.receipt, s.err
}

func (s *stubPayments) Status(_ context.Context, txID string) (types.Payment, error) {
	s.txID = txID
	return s.payment, s.err
}

type stubImages struct {
	data []byte
	err  error
}

func (s stubImages) Thumbnail(context.Context, string) ([]byte, error) {
	return s.data, s.err
}

func mount(route func(r chi.Router)) http.Handler {
	router := chi.NewRouter()
	route(router)
	return router
}

func serve(t *testing.T, handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

// decodeMessage reads a bare JSON string response.
func decodeMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var message string
	if err := json.NewDecoder(rec.Body).Decode(&message); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	return message
}

func expectMessage(t *testing.T, rec *httptest.ResponseRecorder, status int, message string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, rec.Code, rec.Body.String())
	}
	if got := decodeMessage(t, rec); got != message {
		t.Fatalf("expected message %q, got %q", message, got)
	}
}

func readAll(t *testing.T, r io.Reader) string {
	t.Helper()
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(data)
}

var nopLogger = zap.NewNop()
