package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tomymiron/ETH-Global/internal/store"
	"github.com/tomymiron/ETH-Global/types"
)

// EventRepository defines the event procedures. A viewerID of 0 selects
// the anonymous variant.
type EventRepository interface {
	Feed(ctx context.Context, viewerID int64, params []any) ([]store.Row, error)
	Shows(ctx context.Context, viewerID int64, params []any) ([]store.Row, error)
	UserEvents(ctx context.Context, viewerID int64, cursorArgs []any, ownerID int64) ([]store.Row, error)
	UserEventsFiltered(ctx context.Context, cursorArgs []any, ownerID int64, startDate, endDate any, latest int) ([]store.Row, error)
	FinishedEvents(ctx context.Context, viewerID, ownerID int64) ([]store.Row, error)
	Like(ctx context.Context, userID, eventID int64) error
	Unlike(ctx context.Context, userID, eventID int64) error
	Click(ctx context.Context, viewerID, eventID int64) error
}

// CatalogRepository reads the filter reference data.
type CatalogRepository interface {
	Genres(ctx context.Context) ([]types.Tag, error)
	Tags(ctx context.Context, tagType int64) ([]types.Tag, error)
}

// FeedQuery selects one page of a feed.
type FeedQuery struct {
	ViewerID int64
	Cursor   types.Cursor
	Filters  string
}

// UserEventsQuery selects one page of the events published by OwnerID.
type UserEventsQuery struct {
	ViewerID int64
	OwnerID  int64
	Cursor   types.Cursor
	Filters  string
}

// Page is a formatted page of events. Next is nil on the last page.
type Page struct {
	Events []types.Event
	Next   *types.Cursor
}

// EventService serves the feeds and event interactions.
type EventService struct {
	events  EventRepository
	catalog CatalogRepository
	logger  *zap.Logger
}

func NewEventService(events EventRepository, catalog CatalogRepository, logger *zap.Logger) *EventService {
	return &EventService{events: events, catalog: catalog, logger: logger}
}

// Feed returns a page of the main event feed.
func (s *EventService) Feed(ctx context.Context, query FeedQuery) (Page, error) {
	params := s.feedParams(query)
	rows, err := s.events.Feed(ctx, query.ViewerID, params)
	if err != nil {
		return Page{}, fmt.Errorf("feed: %w", err)
	}
	return newPage(rows), nil
}

// Shows returns a page of the shows feed.
func (s *EventService) Shows(ctx context.Context, query FeedQuery) (Page, error) {
	params := s.feedParams(query)
	rows, err := s.events.Shows(ctx, query.ViewerID, params)
	if err != nil {
		return Page{}, fmt.Errorf("shows: %w", err)
	}
	return newPage(rows), nil
}

// UserEvents returns a page of the events published by an account. Date
// and latest filters only apply to anonymous viewers.
func (s *EventService) UserEvents(ctx context.Context, query UserEventsQuery) (Page, error) {
	if query.OwnerID == 0 {
		return Page{}, ErrUserRequired
	}

	cursorArgs := CursorArgs(query.Cursor)
	var (
		rows []store.Row
		err  error
	)
	if query.ViewerID != 0 {
		rows, err = s.events.UserEvents(ctx, query.ViewerID, cursorArgs, query.OwnerID)
	} else {
		filter, ferr := NormalizeUserEventFilters(query.Filters)
		if ferr != nil && query.Filters != "" {
			s.logger.Warn("ignoring malformed user event filters", zap.Error(ferr))
		}
		if filter.Active() {
			rows, err = s.events.UserEventsFiltered(ctx, cursorArgs, query.OwnerID, filter.StartDate, filter.EndDate, filter.LatestFlag())
		} else {
			rows, err = s.events.UserEvents(ctx, 0, cursorArgs, query.OwnerID)
		}
	}
	if err != nil {
		return Page{}, fmt.Errorf("user events: %w", err)
	}
	return newPage(rows), nil
}

// FinishedEvents lists the past events of an account.
func (s *EventService) FinishedEvents(ctx context.Context, viewerID, ownerID int64) ([]types.Event, error) {
	if ownerID == 0 {
		return nil, ErrUserRequired
	}
	rows, err := s.events.FinishedEvents(ctx, viewerID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("finished events: %w", err)
	}
	return newPage(rows).Events, nil
}

func (s *EventService) Like(ctx context.Context, userID, eventID int64) error {
	if userID == 0 {
		return ErrUserRequired
	}
	if eventID == 0 {
		return ErrEventRequired
	}
	return s.events.Like(ctx, userID, eventID)
}

func (s *EventService) Unlike(ctx context.Context, userID, eventID int64) error {
	if userID == 0 {
		return ErrUserRequired
	}
	if eventID == 0 {
		return ErrEventRequired
	}
	return s.events.Unlike(ctx, userID, eventID)
}

// Click counts a view of eventID, attributed to viewerID when non-zero.
func (s *EventService) Click(ctx context.Context, viewerID, eventID int64) error {
	if eventID == 0 {
		return ErrEventRequired
	}
	return s.events.Click(ctx, viewerID, eventID)
}

func (s *EventService) Genres(ctx context.Context) ([]types.Tag, error) {
	genres, err := s.catalog.Genres(ctx)
	if err != nil {
		return nil, err
	}
	if genres == nil {
		genres = []types.Tag{}
	}
	return genres, nil
}

func (s *EventService) Tags(ctx context.Context, tagType int64) ([]types.Tag, error) {
	tags, err := s.catalog.Tags(ctx, tagType)
	if err != nil {
		return nil, err
	}
	if tags == nil {
		tags = []types.Tag{}
	}
	return tags, nil
}

func (s *EventService) feedParams(query FeedQuery) []any {
	params, err := NormalizeEventFilters(query.Cursor, query.Filters)
	if err != nil {
		s.logger.Warn("ignoring malformed event filters", zap.Error(err))
	}
	return params
}

func newPage(rows []store.Row) Page {
	events := FormatEvents(rows)
	if events == nil {
		events = []types.Event{}
	}
	page := Page{Events: events}
	if next, ok := NextCursor(events); ok {
		page.Next = &next
	}
	return page
}
