package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/tomymiron/ETH-Global/internal/store"

var procedureName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Procedures invokes set-returning database functions by name with
// positional arguments. The function bodies live in the database.
type Procedures struct {
	db     *sql.DB
	tracer trace.Tracer
}

func NewProcedures(db *sql.DB) *Procedures {
	return &Procedures{
		db:     db,
		tracer: otel.Tracer(tracerName),
	}
}

// Call runs name(args...) and returns every row as a column map.
func (p *Procedures) Call(ctx context.Context, name string, args ...any) ([]Row, error) {
	query, err := procedureQuery(name, len(args))
	if err != nil {
		return nil, err
	}

	ctx, span := p.tracer.Start(ctx, "procedure "+name, trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", name),
		attribute.Int("db.args", len(args)),
	))
	defer span.End()

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("call %s: %w", name, err)
	}
	defer rows.Close()

	result, err := scanRows(rows)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("scan %s: %w", name, err)
	}
	span.SetAttributes(attribute.Int("db.rows", len(result)))
	return result, nil
}

// CallOne runs name(args...) and returns the first row, or ErrNotFound.
func (p *Procedures) CallOne(ctx context.Context, name string, args ...any) (Row, error) {
	rows, err := p.Call(ctx, name, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows[0], nil
}

// Exec runs name(args...) and discards any result.
func (p *Procedures) Exec(ctx context.Context, name string, args ...any) error {
	_, err := p.Call(ctx, name, args...)
	return err
}

func procedureQuery(name string, arity int) (string, error) {
	if !procedureName.MatchString(name) {
		return "", fmt.Errorf("invalid procedure name %q", name)
	}
	placeholders := make([]string, arity)
	for i := range placeholders {
		placeholders[i] = "$" + strconv.Itoa(i+1)
	}
	return fmt.Sprintf("SELECT * FROM %s(%s)", name, strings.Join(placeholders, ", ")), nil
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var result []Row
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}

		row := make(Row, len(columns))
		for i, column := range columns {
			if b, ok := values[i].([]byte); ok {
				row[column] = string(b)
				continue
			}
			row[column] = values[i]
		}
		result = append(result, row)
	}
	return result, rows.Err()
}
