package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"github.com/tomymiron/ETH-Global/types"
)

// FilterSlots is the arity of the event feed procedures, cursor included.
const FilterSlots = 14

// Positions inside the normalized filter list.
const (
	slotDateCursor = iota
	slotPriorityCursor
	slotIDCursor
	slotStartDate
	slotEndDate
	slotFree
	slotLatest
	slotCenterLat
	slotCenterLng
	slotRadius
	slotGenres
	slotTags
	slotMinAge
	slotMaxAge
)

// NormalizeEventFilters flattens the feed filter object into the fixed
// positional list expected by the feed procedures. Every slot is always
// present; absent or falsy filters become nil. Malformed JSON at any
// level is ignored and reported through the returned error, which never
// invalidates the list.
func NormalizeEventFilters(cursor types.Cursor, raw string) ([]any, error) {
	params := make([]any, FilterSlots)
	copy(params, CursorArgs(cursor))
	params[slotLatest] = 0

	var ignored []error
	filters, err := decodeObject(raw)
	if err != nil {
		ignored = append(ignored, fmt.Errorf("filters: %w", err))
	}

	date, err := nestedObject(filters, "date")
	if err != nil {
		ignored = append(ignored, fmt.Errorf("filters.date: %w", err))
	}
	location, err := nestedObject(filters, "location")
	if err != nil {
		ignored = append(ignored, fmt.Errorf("filters.location: %w", err))
	}
	ages, _ := filters["ages"].(map[string]any)

	params[slotStartDate] = truthyString(lookup(date, "value", "startDate"))
	params[slotEndDate] = truthyString(lookup(date, "value", "endDate"))
	if isTrue(filters["free"]) {
		params[slotFree] = 1
	}
	if isTrue(filters["latest"]) {
		params[slotLatest] = 1
	}
	params[slotCenterLat] = truthyFloat(lookup(location, "value", "center", "latitude"))
	params[slotCenterLng] = truthyFloat(lookup(location, "value", "center", "longitude"))
	params[slotRadius] = truthyFloat(lookup(location, "value", "radius"))
	params[slotGenres] = idList(filters["music"])
	params[slotTags] = idList(filters["tags"])
	params[slotMinAge] = truthyNumber(ages["min"])
	params[slotMaxAge] = truthyNumber(ages["max"])

	return params, errors.Join(ignored...)
}

// UserEventFilter narrows the anonymous per-user feed.
type UserEventFilter struct {
	StartDate any
	EndDate   any
	Latest    bool
}

// Active reports whether any narrowing was requested.
func (f UserEventFilter) Active() bool {
	return f.StartDate != nil || f.EndDate != nil || f.Latest
}

// LatestFlag is the 1/0 form of Latest.
func (f UserEventFilter) LatestFlag() int {
	if f.Latest {
		return 1
	}
	return 0
}

// NormalizeUserEventFilters decodes {startDate, endDate, latestFilter}.
// Malformed input yields the empty filter and a non-nil error.
func NormalizeUserEventFilters(raw string) (UserEventFilter, error) {
	filters, err := decodeObject(raw)
	if err != nil {
		return UserEventFilter{}, fmt.Errorf("filters: %w", err)
	}
	return UserEventFilter{
		StartDate: truthyString(filters["startDate"]),
		EndDate:   truthyString(filters["endDate"]),
		Latest:    isTruthy(filters["latestFilter"]),
	}, nil
}

// CursorArgs returns the three cursor slots with untyped nils for
// missing keys.
func CursorArgs(cursor types.Cursor) []any {
	args := make([]any, 3)
	if cursor.DateCursor != nil {
		args[0] = *cursor.DateCursor
	}
	if cursor.PriorityCursor != nil {
		args[1] = *cursor.PriorityCursor
	}
	if cursor.IDCursor != nil {
		args[2] = *cursor.IDCursor
	}
	return args
}

func decodeObject(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	decoder := json.NewDecoder(bytes.NewReader([]byte(raw)))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}
	switch typed := value.(type) {
	case map[string]any:
		return typed, nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("expected object, got %T", value)
	}
}

// nestedObject accepts either an embedded object or a JSON string holding one.
func nestedObject(parent map[string]any, key string) (map[string]any, error) {
	switch typed := parent[key].(type) {
	case map[string]any:
		return typed, nil
	case string:
		return decodeObject(typed)
	default:
		return nil, nil
	}
}

func lookup(value map[string]any, path ...string) any {
	var current any = value
	for _, key := range path {
		object, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = object[key]
	}
	return current
}

func isTrue(value any) bool {
	b, ok := value.(bool)
	return ok && b
}

func isTruthy(value any) bool {
	switch typed := value.(type) {
	case bool:
		return typed
	case string:
		return typed != ""
	case json.Number:
		f, err := typed.Float64()
		return err == nil && f != 0
	case nil:
		return false
	default:
		return true
	}
}

func truthyString(value any) any {
	switch typed := value.(type) {
	case string:
		if typed == "" {
			return nil
		}
		return typed
	case json.Number:
		if f, err := typed.Float64(); err != nil || f == 0 {
			return nil
		}
		return typed.String()
	default:
		return nil
	}
}

func toFloat(value any) (float64, bool) {
	switch typed := value.(type) {
	case json.Number:
		f, err := typed.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
		return f, err == nil
	case float64:
		return typed, true
	default:
		return 0, false
	}
}

func truthyFloat(value any) any {
	f, ok := toFloat(value)
	if !ok || f == 0 || math.IsNaN(f) {
		return nil
	}
	return f
}

// truthyNumber keeps whole numbers as int64.
func truthyNumber(value any) any {
	f, ok := toFloat(value)
	if !ok || f == 0 || math.IsNaN(f) {
		return nil
	}
	if f == math.Trunc(f) {
		return int64(f)
	}
	return f
}

func idList(value any) any {
	var items []any
	switch typed := value.(type) {
	case []any:
		items = typed
	case nil:
		return nil
	default:
		items = []any{typed}
	}

	ids := make(pq.Int64Array, 0, len(items))
	for _, item := range items {
		if object, ok := item.(map[string]any); ok {
			item = object["id"]
		}
		f, ok := toFloat(item)
		if !ok || f != math.Trunc(f) {
			continue
		}
		ids = append(ids, int64(f))
	}
	if len(ids) == 0 {
		return nil
	}
	return ids
}
