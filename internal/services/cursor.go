package services

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/tomymiron/ETH-Global/types"
)

// PageSize is the fixed row count of a feed page. Only a full page has a
// successor.
const PageSize = 20

// DecodeCursor parses the client cursor. Missing or malformed input, and
// any field of the wrong type, decode to nil so the first page is served.
func DecodeCursor(raw string) types.Cursor {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return types.Cursor{}
	}

	decoder := json.NewDecoder(bytes.NewReader([]byte(raw)))
	decoder.UseNumber()
	var fields map[string]any
	if err := decoder.Decode(&fields); err != nil {
		return types.Cursor{}
	}

	cursor := types.Cursor{}
	switch date := fields["date_cursor"].(type) {
	case string:
		if date != "" {
			cursor.DateCursor = &date
		}
	case json.Number:
		text := date.String()
		cursor.DateCursor = &text
	}
	cursor.PriorityCursor = cursorInt(fields["priority_cursor"])
	cursor.IDCursor = cursorInt(fields["id_cursor"])
	return cursor
}

// EncodeCursor serializes the cursor in the form DecodeCursor accepts.
func EncodeCursor(cursor types.Cursor) string {
	data, err := json.Marshal(cursor)
	if err != nil {
		return ""
	}
	return string(data)
}

// NextCursor derives the cursor of the following page from the last event.
// A short page is terminal.
func NextCursor(events []types.Event) (types.Cursor, bool) {
	if len(events) != PageSize {
		return types.Cursor{}, false
	}
	last := events[len(events)-1]
	date := last.Date
	id := last.ID
	cursor := types.Cursor{
		DateCursor: &date,
		IDCursor:   &id,
	}
	if last.Priority != nil {
		priority := *last.Priority
		cursor.PriorityCursor = &priority
	}
	return cursor, true
}

func cursorInt(value any) *int64 {
	var text string
	switch typed := value.(type) {
	case json.Number:
		text = typed.String()
	case string:
		text = strings.TrimSpace(typed)
	default:
		return nil
	}
	parsed, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return nil
	}
	return &parsed
}
