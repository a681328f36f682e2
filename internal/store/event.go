package store

import (
	"context"
)

// EventRepository reads and mutates events through the event procedures.
// A viewer id of 0 selects the anonymous variant of each procedure.
type EventRepository struct {
	procs *Procedures
}

func NewEventRepository(procs *Procedures) *EventRepository {
	return &EventRepository{procs: procs}
}

// Feed returns one page of the general event feed. params is the
// normalized 14-slot filter list.
func (r *EventRepository) Feed(ctx context.Context, viewerID int64, params []any) ([]Row, error) {
	if viewerID == 0 {
		return r.procs.Call(ctx, "a_events_filtered_get", params...)
	}
	return r.procs.Call(ctx, "b_events_filtered_get", prepend(viewerID, params)...)
}

// Shows returns one page of the shows feed.
func (r *EventRepository) Shows(ctx context.Context, viewerID int64, params []any) ([]Row, error) {
	if viewerID == 0 {
		return r.procs.Call(ctx, "a_events_shows_filtered_get", params...)
	}
	return r.procs.Call(ctx, "b_events_shows_filtered_get", prepend(viewerID, params)...)
}

// UserEvents returns one page of the events attached to ownerID.
// cursorArgs holds the three cursor slots.
func (r *EventRepository) UserEvents(ctx context.Context, viewerID int64, cursorArgs []any, ownerID int64) ([]Row, error) {
	args := append(append([]any{}, cursorArgs...), ownerID)
	if viewerID == 0 {
		return r.procs.Call(ctx, "a_events_user_get", args...)
	}
	return r.procs.Call(ctx, "b_events_user_get", prepend(viewerID, args)...)
}

// UserEventsFiltered is the anonymous user feed narrowed by date range
// and the latest flag.
func (r *EventRepository) UserEventsFiltered(ctx context.Context, cursorArgs []any, ownerID int64, startDate, endDate any, latest int) ([]Row, error) {
	args := append(append([]any{}, cursorArgs...), ownerID, startDate, endDate, latest)
	return r.procs.Call(ctx, "a_events_user_get_filtered", args...)
}

// FinishedEvents returns the past events attached to ownerID.
func (r *EventRepository) FinishedEvents(ctx context.Context, viewerID, ownerID int64) ([]Row, error) {
	if viewerID == 0 {
		return r.procs.Call(ctx, "a_events_user_finished_get", ownerID)
	}
	return r.procs.Call(ctx, "b_events_user_finished_get", ownerID, viewerID)
}

func (r *EventRepository) Like(ctx context.Context, userID, eventID int64) error {
	return r.procs.Exec(ctx, "b_events_like", eventID, userID)
}

func (r *EventRepository) Unlike(ctx context.Context, userID, eventID int64) error {
	return r.procs.Exec(ctx, "b_events_unlike", eventID, userID)
}

// Click records a view. Anonymous clicks only bump the counter.
func (r *EventRepository) Click(ctx context.Context, viewerID, eventID int64) error {
	if viewerID == 0 {
		return r.procs.Exec(ctx, "a_events_click", eventID)
	}
	return r.procs.Exec(ctx, "b_events_click", eventID, viewerID)
}

func prepend(first any, rest []any) []any {
	args := make([]any, 0, len(rest)+1)
	args = append(args, first)
	return append(args, rest...)
}
