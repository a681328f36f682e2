package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Row is one result row keyed by column name.
type Row map[string]any

// column resolves name case-insensitively against the row's columns so
// that quoted upper-case aliases and folded names both match.
func (r Row) column(name string) string {
	if _, ok := r[name]; ok {
		return name
	}
	for column := range r {
		if strings.EqualFold(column, name) {
			return column
		}
	}
	return name
}

// String returns the column as text. The second result is false when the
// column is missing or NULL.
func (r Row) String(column string) (string, bool) {
	value, ok := r[column]
	if !ok || value == nil {
		return "", false
	}
	switch typed := value.(type) {
	case string:
		return typed, true
	case []byte:
		return string(typed), true
	case time.Time:
		if typed.Year() == 0 && typed.Month() == time.January && typed.Day() == 1 {
			return typed.Format("15:04:05"), true
		}
		return typed.Format(time.RFC3339Nano), true
	case int64:
		return strconv.FormatInt(typed, 10), true
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(typed), true
	default:
		return fmt.Sprint(typed), true
	}
}

// Int64 returns the column as an integer. Text columns are parsed.
func (r Row) Int64(column string) (int64, bool) {
	value, ok := r[column]
	if !ok || value == nil {
		return 0, false
	}
	switch typed := value.(type) {
	case int64:
		return typed, true
	case int32:
		return int64(typed), true
	case int:
		return int64(typed), true
	case float64:
		return int64(typed), true
	case bool:
		if typed {
			return 1, true
		}
		return 0, true
	}
	text, ok := r.String(column)
	if !ok {
		return 0, false
	}
	parsed, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

// Bool treats booleans, non-zero numbers and "1"/"true" text as true.
func (r Row) Bool(column string) bool {
	value, ok := r[column]
	if !ok || value == nil {
		return false
	}
	if typed, ok := value.(bool); ok {
		return typed
	}
	if n, ok := r.Int64(column); ok {
		return n != 0
	}
	text, _ := r.String(column)
	return strings.EqualFold(strings.TrimSpace(text), "true")
}
