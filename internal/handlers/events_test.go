package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/tomymiron/ETH-Global/internal/services"
	"github.com/tomymiron/ETH-Global/types"
)

func eventRoutes(events *stubEvents) http.Handler {
	return mount(func(r chi.Router) {
		EventRouter(r, events, &stubAuth{}, nopLogger)
	})
}

func TestFeedAnonymousWithCursor(t *testing.T) {
	date := "2026-05-01T20:00:00Z"
	id := int64(40)
	events := &stubEvents{page: services.Page{
		Events: []types.Event{{ID: 40, Title: "Show"}},
		Next:   &types.Cursor{DateCursor: &date, IDCursor: &id},
	}}

	query := url.Values{}
	query.Set("cursor", `{"date_cursor":"2026-04-01","priority_cursor":2,"id_cursor":10}`)
	query.Set("filters", `{"search":"rock"}`)
	rec := serve(t, eventRoutes(events), httptest.NewRequest(http.MethodGet, "/?"+query.Encode(), nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if events.feed.ViewerID != 0 {
		t.Fatalf("expected anonymous viewer, got %d", events.feed.ViewerID)
	}
	if events.feed.Cursor.IDCursor == nil || *events.feed.Cursor.IDCursor != 10 {
		t.Fatalf("cursor not forwarded: %+v", events.feed.Cursor)
	}
	if events.feed.Filters != `{"search":"rock"}` {
		t.Fatalf("filters not forwarded: %q", events.feed.Filters)
	}

	next := services.DecodeCursor(rec.Header().Get(HeaderNextCursor))
	if next.IDCursor == nil || *next.IDCursor != 40 || next.DateCursor == nil || *next.DateCursor != date {
		t.Fatalf("unexpected next cursor header %q", rec.Header().Get(HeaderNextCursor))
	}

	var got []map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode events: %v", err)
	}
	if len(got) != 1 || got[0]["title"] != "Show" {
		t.Fatalf("unexpected events: %#v", got)
	}
}

func TestFeedEmptyPageHasNoCursor(t *testing.T) {
	events := &stubEvents{page: services.Page{Events: []types.Event{}}}
	rec := serve(t, eventRoutes(events), httptest.NewRequest(http.MethodGet, "/shows", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get(HeaderNextCursor) != "" {
		t.Fatalf("expected no cursor header")
	}
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Fatalf("expected empty array, got %s", body)
	}
}

func TestFeedViewerFromToken(t *testing.T) {
	events := &stubEvents{page: services.Page{Events: []types.Event{}}}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "good")
	serve(t, eventRoutes(events), req)

	if events.feed.ViewerID != 7 {
		t.Fatalf("expected viewer 7, got %d", events.feed.ViewerID)
	}
}

func TestFeedRejectsInvalidToken(t *testing.T) {
	events := &stubEvents{}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer forged")
	rec := serve(t, eventRoutes(events), req)

	expectMessage(t, rec, http.StatusInternalServerError, "Ocurrio un error")
}

func TestFeedStoreFailure(t *testing.T) {
	events := &stubEvents{err: errBoom}
	rec := serve(t, eventRoutes(events), httptest.NewRequest(http.MethodGet, "/", nil))

	expectMessage(t, rec, http.StatusInternalServerError, "Ocurrio un error")
}

func TestUserEvents(t *testing.T) {
	t.Run("missing user", func(t *testing.T) {
		events := &stubEvents{}
		rec := serve(t, eventRoutes(events), httptest.NewRequest(http.MethodGet, "/user", nil))
		expectMessage(t, rec, http.StatusBadRequest, "Not user getted")
	})

	t.Run("string id", func(t *testing.T) {
		events := &stubEvents{page: services.Page{Events: []types.Event{}}}
		query := url.Values{}
		query.Set("user", `{"id":"12"}`)
		rec := serve(t, eventRoutes(events), httptest.NewRequest(http.MethodGet, "/user?"+query.Encode(), nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if events.userQuery.OwnerID != 12 {
			t.Fatalf("expected owner 12, got %d", events.userQuery.OwnerID)
		}
	})

	t.Run("finished", func(t *testing.T) {
		events := &stubEvents{finished: []types.Event{{ID: 3}}}
		query := url.Values{}
		query.Set("user", `{"id":5}`)
		req := httptest.NewRequest(http.MethodGet, "/user/finished?"+query.Encode(), nil)
		req.Header.Set("Authorization", "good")
		rec := serve(t, eventRoutes(events), req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if events.userQuery.ViewerID != 7 || events.userQuery.OwnerID != 5 {
			t.Fatalf("unexpected query %+v", events.userQuery)
		}
	})
}

func TestLike(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		token   string
		body    string
		status  int
		message string
	}{
		{name: "no header", method: http.MethodPost, body: `{"eventId":1}`, status: http.StatusUnauthorized, message: "No ingresaste"},
		{name: "bad token", method: http.MethodPost, token: "forged", body: `{"eventId":1}`, status: http.StatusInternalServerError, message: "Ocurrio un error"},
		{name: "no event", method: http.MethodPost, token: "good", body: `{}`, status: http.StatusBadRequest, message: "No se obtuvo el evento"},
		{name: "like", method: http.MethodPost, token: "good", body: `{"eventId":"9"}`, status: http.StatusOK, message: "success"},
		{name: "unlike", method: http.MethodDelete, token: "good", body: `{"eventId":9}`, status: http.StatusOK, message: "success"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := &stubEvents{}
			req := httptest.NewRequest(tt.method, "/like", strings.NewReader(tt.body))
			if tt.token != "" {
				req.Header.Set("Authorization", tt.token)
			}
			rec := serve(t, eventRoutes(events), req)
			expectMessage(t, rec, tt.status, tt.message)

			if tt.status == http.StatusOK && events.interacted != [2]int64{7, 9} {
				t.Fatalf("unexpected interaction %v", events.interacted)
			}
		})
	}
}

func TestClickAnonymous(t *testing.T) {
	events := &stubEvents{}
	rec := serve(t, eventRoutes(events), httptest.NewRequest(http.MethodPost, "/click", strings.NewReader(`{"eventId":4}`)))

	expectMessage(t, rec, http.StatusOK, "success")
	if events.interacted != [2]int64{0, 4} {
		t.Fatalf("unexpected interaction %v", events.interacted)
	}
}

func TestClickMalformedBody(t *testing.T) {
	events := &stubEvents{}
	rec := serve(t, eventRoutes(events), httptest.NewRequest(http.MethodPost, "/click", strings.NewReader(`{"eventId":`)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var body ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if body.Error != "Invalid JSON format" {
		t.Fatalf("unexpected error %q", body.Error)
	}
}

func TestGenresAndTags(t *testing.T) {
	t.Run("genres failure", func(t *testing.T) {
		events := &stubEvents{genresErr: errBoom}
		rec := serve(t, eventRoutes(events), httptest.NewRequest(http.MethodGet, "/genres", nil))
		expectMessage(t, rec, http.StatusBadRequest, "Ocurrio un error al obtener los Generos Musicales")
	})

	t.Run("tags default type", func(t *testing.T) {
		events := &stubEvents{tags: []types.Tag{{ID: 1, Title: "Outdoor"}}}
		rec := serve(t, eventRoutes(events), httptest.NewRequest(http.MethodGet, "/tags", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if events.tagType != 1 {
			t.Fatalf("expected default type 1, got %d", events.tagType)
		}
	})

	t.Run("tags explicit type", func(t *testing.T) {
		events := &stubEvents{tags: []types.Tag{}}
		query := url.Values{}
		query.Set("type", `{"id":2}`)
		serve(t, eventRoutes(events), httptest.NewRequest(http.MethodGet, "/tags?"+query.Encode(), nil))

		if events.tagType != 2 {
			t.Fatalf("expected type 2, got %d", events.tagType)
		}
	})

	t.Run("tags failure", func(t *testing.T) {
		events := &stubEvents{tagsErr: errBoom}
		rec := serve(t, eventRoutes(events), httptest.NewRequest(http.MethodGet, "/tags", nil))
		expectMessage(t, rec, http.StatusBadRequest, "Ocurrio un error al obtener los Tags")
	})
}
