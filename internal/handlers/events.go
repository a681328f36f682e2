package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tomymiron/ETH-Global/internal/services"
	"github.com/tomymiron/ETH-Global/types"
)

// HeaderNextCursor carries the encoded cursor of the following page.
const HeaderNextCursor = "X-Next-Cursor"

const msgEventRequired = "No se obtuvo el evento"

// EventService covers feeds, interactions and filter reference data.
type EventService interface {
	Feed(ctx context.Context, query services.FeedQuery) (services.Page, error)
	Shows(ctx context.Context, query services.FeedQuery) (services.Page, error)
	UserEvents(ctx context.Context, query services.UserEventsQuery) (services.Page, error)
	FinishedEvents(ctx context.Context, viewerID, ownerID int64) ([]types.Event, error)
	Like(ctx context.Context, userID, eventID int64) error
	Unlike(ctx context.Context, userID, eventID int64) error
	Click(ctx context.Context, viewerID, eventID int64) error
	Genres(ctx context.Context) ([]types.Tag, error)
	Tags(ctx context.Context, tagType int64) ([]types.Tag, error)
}

// EventHandler provides HTTP handlers for events.
type EventHandler struct {
	events EventService
	logger *zap.Logger
}

func NewEventHandler(events EventService, logger *zap.Logger) *EventHandler {
	return &EventHandler{events: events, logger: logger}
}

// EventRouter registers event routes on the given router.
func EventRouter(r chi.Router, events EventService, auth Authenticator, logger *zap.Logger) {
	handler := NewEventHandler(events, logger)
	optional := OptionalAuth(auth, logger, true)
	required := RequireAuth(auth, logger, "No ingresaste")

	r.With(optional).Get("/", handler.Feed)
	r.With(optional).Get("/shows", handler.Shows)
	r.With(optional).Get("/user", handler.UserEvents)
	r.With(optional).Get("/user/finished", handler.FinishedEvents)
	r.With(required).Post("/like", handler.Like)
	r.With(required).Delete("/like", handler.Unlike)
	r.With(optional).Post("/click", handler.Click)
	r.Get("/genres", handler.Genres)
	r.Get("/tags", handler.Tags)
}

func (h *EventHandler) Feed(w http.ResponseWriter, r *http.Request) {
	page, err := h.events.Feed(r.Context(), feedQuery(r))
	h.writePage(w, page, err)
}

func (h *EventHandler) Shows(w http.ResponseWriter, r *http.Request) {
	page, err := h.events.Shows(r.Context(), feedQuery(r))
	h.writePage(w, page, err)
}

// UserEvents lists the events published by the account in ?user={"id":n}.
func (h *EventHandler) UserEvents(w http.ResponseWriter, r *http.Request) {
	ownerID, err := queryUserID(r)
	if err != nil {
		h.internalError(w, "decode user", err)
		return
	}

	query := r.URL.Query()
	page, err := h.events.UserEvents(r.Context(), services.UserEventsQuery{
		ViewerID: viewerIDFromContext(r.Context()),
		OwnerID:  ownerID,
		Cursor:   services.DecodeCursor(query.Get("cursor")),
		Filters:  query.Get("filters"),
	})
	h.writePage(w, page, err)
}

func (h *EventHandler) FinishedEvents(w http.ResponseWriter, r *http.Request) {
	ownerID, err := queryUserID(r)
	if err != nil {
		h.internalError(w, "decode user", err)
		return
	}

	events, err := h.events.FinishedEvents(r.Context(), viewerIDFromContext(r.Context()), ownerID)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *EventHandler) Like(w http.ResponseWriter, r *http.Request) {
	eventID, ok := decodeEventID(w, r)
	if !ok {
		return
	}
	h.writeAck(w, h.events.Like(r.Context(), viewerIDFromContext(r.Context()), eventID))
}

func (h *EventHandler) Unlike(w http.ResponseWriter, r *http.Request) {
	eventID, ok := decodeEventID(w, r)
	if !ok {
		return
	}
	h.writeAck(w, h.events.Unlike(r.Context(), viewerIDFromContext(r.Context()), eventID))
}

func (h *EventHandler) Click(w http.ResponseWriter, r *http.Request) {
	eventID, ok := decodeEventID(w, r)
	if !ok {
		return
	}
	h.writeAck(w, h.events.Click(r.Context(), viewerIDFromContext(r.Context()), eventID))
}

func (h *EventHandler) Genres(w http.ResponseWriter, r *http.Request) {
	genres, err := h.events.Genres(r.Context())
	if err != nil {
		h.logger.Error("list genres", zap.Error(err))
		writeMessage(w, http.StatusBadRequest, "Ocurrio un error al obtener los Generos Musicales")
		return
	}
	writeJSON(w, http.StatusOK, genres)
}

// Tags lists the tags of ?type={"id":n}, type 1 by default.
func (h *EventHandler) Tags(w http.ResponseWriter, r *http.Request) {
	tagType := struct {
		ID looseID `json:"id"`
	}{ID: 1}
	if err := decodeQuery(r, "type", &tagType); err != nil {
		writeMessage(w, http.StatusBadRequest, "Ocurrio un error al obtener los Tags")
		return
	}

	tags, err := h.events.Tags(r.Context(), int64(tagType.ID))
	if err != nil {
		h.logger.Error("list tags", zap.Error(err))
		writeMessage(w, http.StatusBadRequest, "Ocurrio un error al obtener los Tags")
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

func (h *EventHandler) writePage(w http.ResponseWriter, page services.Page, err error) {
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	if page.Next != nil {
		w.Header().Set(HeaderNextCursor, services.EncodeCursor(*page.Next))
	}
	writeJSON(w, http.StatusOK, page.Events)
}

func (h *EventHandler) writeAck(w http.ResponseWriter, err error) {
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "success")
}

func (h *EventHandler) writeFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrUserRequired):
		writeMessage(w, http.StatusBadRequest, "Not user getted")
	case errors.Is(err, services.ErrEventRequired):
		writeMessage(w, http.StatusBadRequest, msgEventRequired)
	default:
		h.internalError(w, "event request", err)
	}
}

func (h *EventHandler) internalError(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op, zap.Error(err))
	writeMessage(w, http.StatusInternalServerError, msgGenericError)
}

func feedQuery(r *http.Request) services.FeedQuery {
	query := r.URL.Query()
	return services.FeedQuery{
		ViewerID: viewerIDFromContext(r.Context()),
		Cursor:   services.DecodeCursor(query.Get("cursor")),
		Filters:  query.Get("filters"),
	}
}

func queryUserID(r *http.Request) (int64, error) {
	var user struct {
		ID looseID `json:"id"`
	}
	if err := decodeQuery(r, "user", &user); err != nil {
		return 0, err
	}
	return int64(user.ID), nil
}

func decodeEventID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	var req struct {
		EventID looseID `json:"eventId"`
	}
	if !decodeBody(w, r, &req) {
		return 0, false
	}
	if req.EventID == 0 {
		writeMessage(w, http.StatusBadRequest, msgEventRequired)
		return 0, false
	}
	return int64(req.EventID), true
}
