package types

import (
	"encoding/json"
)

// Event is a formatted event row as returned by the feed endpoints.
type Event struct {
	// ID is the event identifier and the final keyset tie-break.
	ID int64 `json:"id"`

	Title string `json:"title"`

	// Date is the event start as reported by the database. It is echoed
	// verbatim in the next-page cursor.
	Date string `json:"date"`

	// Priority orders events that share a date.
	Priority *int64 `json:"priority"`

	// Location and Image are null when the column is NULL.
	Location *string `json:"location"`
	Image    *string `json:"image"`

	// Free is true, false or a "free until" label such as "2:30PM".
	Free Free `json:"free"`

	// Tags and Genres are null when the row carries no relation at all.
	Tags   []Tag `json:"tags"`
	Genres []Tag `json:"genres"`

	Likes  *int64 `json:"likes,omitempty"`
	Clicks *int64 `json:"clicks,omitempty"`
	Liked  *bool  `json:"liked,omitempty"`

	// Extra holds every other column of the row, keyed by column name.
	Extra map[string]any `json:"-"`
}

// Tag is an {id, title} pair used for both tags and music genres.
type Tag struct {
	ID    int64  `json:"id" db:"id"`
	Title string `json:"title" db:"title"`

	// Extra holds the other columns of a reference list row.
	Extra map[string]any `json:"-" db:"-"`
}

func (t Tag) MarshalJSON() ([]byte, error) {
	type plain Tag
	return marshalWithExtra(plain(t), t.Extra)
}

// MarshalJSON flattens Extra into the event object. Named fields win on
// key collisions.
func (e Event) MarshalJSON() ([]byte, error) {
	type plain Event
	return marshalWithExtra(plain(e), e.Extra)
}

// FreeKind discriminates the three states of Event.Free.
type FreeKind int

const (
	NotFree FreeKind = iota
	FreeAllNight
	FreeUntil
)

// Free encodes the overloaded "free" column.
type Free struct {
	Kind  FreeKind
	Until string
}

func (f Free) MarshalJSON() ([]byte, error) {
	switch f.Kind {
	case FreeAllNight:
		return []byte("true"), nil
	case FreeUntil:
		return json.Marshal(f.Until)
	default:
		return []byte("false"), nil
	}
}

func (f *Free) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case "true":
		*f = Free{Kind: FreeAllNight}
		return nil
	case "false", "null":
		*f = Free{Kind: NotFree}
		return nil
	}
	var label string
	if err := json.Unmarshal(data, &label); err != nil {
		return err
	}
	*f = Free{Kind: FreeUntil, Until: label}
	return nil
}

func marshalWithExtra(v any, extra map[string]any) ([]byte, error) {
	base, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return base, err
	}

	var known map[string]json.RawMessage
	if err := json.Unmarshal(base, &known); err != nil {
		return nil, err
	}

	merged := make(map[string]any, len(extra)+len(known))
	for key, value := range extra {
		merged[key] = value
	}
	for key, value := range known {
		merged[key] = value
	}
	return json.Marshal(merged)
}
