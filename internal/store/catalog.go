package store

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/tomymiron/ETH-Global/types"
)

// CatalogRepository reads the static genre and tag reference lists.
type CatalogRepository struct {
	db *sqlx.DB
}

func NewCatalogRepository(db *sql.DB) *CatalogRepository {
	return &CatalogRepository{db: sqlx.NewDb(db, "postgres")}
}

func (r *CatalogRepository) Genres(ctx context.Context) ([]types.Tag, error) {
	return r.list(ctx, `SELECT * FROM a_events_genres_get()`)
}

// Tags returns the tags of the given tag type.
func (r *CatalogRepository) Tags(ctx context.Context, tagType int64) ([]types.Tag, error) {
	return r.list(ctx, `SELECT * FROM a_events_tags_get($1)`, tagType)
}

func (r *CatalogRepository) list(ctx context.Context, query string, args ...any) ([]types.Tag, error) {
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []types.Tag
	for rows.Next() {
		values := make(map[string]any)
		if err := rows.MapScan(values); err != nil {
			return nil, err
		}
		tags = append(tags, tagFromRow(Row(values)))
	}
	return tags, rows.Err()
}

// tagFromRow keeps every column besides id and title in Extra.
func tagFromRow(row Row) types.Tag {
	tag := types.Tag{}
	tag.ID, _ = row.Int64("id")
	tag.Title, _ = row.String("title")
	for column, value := range row {
		if column == "id" || column == "title" {
			continue
		}
		if b, ok := value.([]byte); ok {
			value = string(b)
		}
		if tag.Extra == nil {
			tag.Extra = make(map[string]any)
		}
		tag.Extra[column] = value
	}
	return tag
}
