package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const maxJSONBody = 1 << 20

const msgGenericError = "Ocurrio un error"

type contextKey string

const contextViewerKey contextKey = "viewer"

// ErrorResponse is a simple error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Authenticator resolves a session token to a user id.
type Authenticator interface {
	Authenticate(token string) (int64, error)
}

// viewerIDFromContext returns the authenticated user id, or 0 for
// anonymous requests.
func viewerIDFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(contextViewerKey).(int64)
	return id
}

// OptionalAuth resolves the Authorization header when present. A token
// that fails verification is answered with 500 when rejectInvalid is set
// and treated as anonymous otherwise.
func OptionalAuth(auth Authenticator, logger *zap.Logger, rejectInvalid bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := authToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			userID, err := auth.Authenticate(token)
			if err != nil {
				if rejectInvalid {
					logger.Warn("rejected session token", zap.String("path", r.URL.Path), zap.Error(err))
					writeMessage(w, http.StatusInternalServerError, msgGenericError)
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			ctx := context.WithValue(r.Context(), contextViewerKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth answers 401 with message when no token is sent and 500 when
// the token does not verify.
func RequireAuth(auth Authenticator, logger *zap.Logger, message string) func(http.Handler) http.Handler {
	optional := OptionalAuth(auth, logger, true)
	return func(next http.Handler) http.Handler {
		withViewer := optional(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if authToken(r) == "" {
				writeMessage(w, http.StatusUnauthorized, message)
				return
			}
			withViewer.ServeHTTP(w, r)
		})
	}
}

// authToken returns the raw Authorization header. A Bearer prefix is
// accepted and stripped.
func authToken(r *http.Request) string {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return auth
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// writeMessage answers with a bare JSON string.
func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, message)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// decodeBody decodes a JSON request body into dst. An empty body leaves
// dst untouched. Malformed JSON is answered with 400 and false is
// returned.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format")
		return false
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return true
	}
	if err := json.Unmarshal(data, dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format")
		return false
	}
	return true
}

// decodeEmbedded decodes a value that clients send either as an object or
// as a string holding JSON. Missing and null values leave dst untouched.
func decodeEmbedded(raw json.RawMessage, dst any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if raw[0] == '"' {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return err
		}
		if strings.TrimSpace(text) == "" {
			return nil
		}
		raw = []byte(text)
	}
	return json.Unmarshal(raw, dst)
}

// decodeQuery decodes a JSON-encoded query parameter.
func decodeQuery(r *http.Request, key string, dst any) error {
	value := r.URL.Query().Get(key)
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return json.Unmarshal([]byte(value), dst)
}

// looseID accepts a number or a numeric string. Anything else reads as 0.
type looseID int64

func (id *looseID) UnmarshalJSON(data []byte) error {
	text := strings.Trim(strings.TrimSpace(string(data)), `"`)
	parsed, err := strconv.ParseFloat(text, 64)
	if err != nil {
		*id = 0
		return nil
	}
	*id = looseID(parsed)
	return nil
}
