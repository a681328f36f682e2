package services

import (
	"strconv"
	"strings"

	"github.com/tomymiron/ETH-Global/internal/store"
	"github.com/tomymiron/ETH-Global/types"
)

const (
	relationSeparator = "#"
	freeAllNight      = "11:11:11"
)

// Columns consumed by FormatEvent. Everything else is passed through.
var eventColumns = map[string]struct{}{
	"id": {}, "title": {}, "date": {}, "priority": {}, "location": {}, "image": {},
	"free": {}, "tags": {}, "tags_id": {}, "genres": {}, "genres_id": {},
	"likes": {}, "clicks": {}, "liked": {},
}

// FormatEvents reshapes feed rows. An empty result stays nil.
func FormatEvents(rows []store.Row) []types.Event {
	if len(rows) == 0 {
		return nil
	}
	events := make([]types.Event, 0, len(rows))
	for _, row := range rows {
		events = append(events, FormatEvent(row))
	}
	return events
}

// FormatEvent zips the tag and genre columns and decodes the free column.
func FormatEvent(row store.Row) types.Event {
	event := types.Event{}
	event.ID, _ = row.Int64("id")
	event.Title, _ = row.String("title")
	event.Date, _ = row.String("date")
	if location, ok := row.String("location"); ok {
		event.Location = &location
	}
	if image, ok := row.String("image"); ok {
		event.Image = &image
	}
	if priority, ok := row.Int64("priority"); ok {
		event.Priority = &priority
	}
	if likes, ok := row.Int64("likes"); ok {
		event.Likes = &likes
	}
	if clicks, ok := row.Int64("clicks"); ok {
		event.Clicks = &clicks
	}
	if _, ok := row["liked"]; ok {
		liked := row.Bool("liked")
		event.Liked = &liked
	}

	free, hasFree := row.String("free")
	event.Free = ParseFree(free, hasFree)

	tagIDs, _ := row.String("tags_id")
	tagTitles, _ := row.String("tags")
	event.Tags = ZipRelations(tagIDs, tagTitles)

	genreIDs, _ := row.String("genres_id")
	genreTitles, _ := row.String("genres")
	event.Genres = ZipRelations(genreIDs, genreTitles)

	for column, value := range row {
		if _, known := eventColumns[column]; known {
			continue
		}
		if event.Extra == nil {
			event.Extra = make(map[string]any)
		}
		event.Extra[column] = value
	}
	return event
}

// ZipRelations pairs '#'-joined ids with '#'-joined titles by position.
// The ids drive the result; a missing title becomes "" and an id that is
// not a number becomes 0. Either side empty yields nil.
func ZipRelations(ids, titles string) []types.Tag {
	if ids == "" || titles == "" {
		return nil
	}
	idParts := strings.Split(ids, relationSeparator)
	titleParts := strings.Split(titles, relationSeparator)

	tags := make([]types.Tag, 0, len(idParts))
	for i, rawID := range idParts {
		id, _ := strconv.ParseInt(strings.TrimSpace(rawID), 10, 64)
		title := ""
		if i < len(titleParts) {
			title = titleParts[i]
		}
		tags = append(tags, types.Tag{ID: id, Title: title})
	}
	return tags
}

// ParseFree decodes the free column: the all-night sentinel, a
// "free until" time rendered as a 12-hour label, or not free.
func ParseFree(value string, present bool) types.Free {
	value = strings.TrimSpace(value)
	if !present || value == "" {
		return types.Free{Kind: types.NotFree}
	}
	if value == freeAllNight {
		return types.Free{Kind: types.FreeAllNight}
	}
	label, ok := twelveHourLabel(value)
	if !ok {
		return types.Free{Kind: types.NotFree}
	}
	return types.Free{Kind: types.FreeUntil, Until: label}
}

// twelveHourLabel turns "HH:MM[:SS]" into "2:30PM", "12:15AM" or "12PM".
// Minutes are dropped when they are zero.
func twelveHourLabel(value string) (string, bool) {
	parts := strings.Split(value, ":")
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", false
	}
	minutes := "00"
	if len(parts) > 1 {
		minutes = parts[1]
	}

	suffix := "AM"
	switch {
	case hour == 0:
		hour = 12
	case hour == 12:
		suffix = "PM"
	case hour > 12:
		hour -= 12
		suffix = "PM"
	}

	label := strconv.Itoa(hour)
	if minutes != "00" && minutes != "" {
		label += ":" + minutes
	}
	return label + suffix, true
}
