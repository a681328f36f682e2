package types

// Cursor is the keyset position of a feed page: date first, then
// priority, then id. The zero value addresses the first page.
type Cursor struct {
	DateCursor     *string `json:"date_cursor"`
	PriorityCursor *int64  `json:"priority_cursor"`
	IDCursor       *int64  `json:"id_cursor"`
}

// IsZero reports whether the cursor points at the first page.
func (c Cursor) IsZero() bool {
	return c.DateCursor == nil && c.PriorityCursor == nil && c.IDCursor == nil
}
