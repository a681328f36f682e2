package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tomymiron/ETH-Global/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

// PaymentRepository persists settled payments and the tickets they grant.
type PaymentRepository struct {
	db *bun.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: bun.NewDB(db, pgdialect.New())}
}

// Record inserts payment and, when ticket is non-nil, a ticket pointing at
// it, in one transaction. A payment whose tx_id already exists is left
// untouched and ErrDuplicate is returned.
func (r *PaymentRepository) Record(ctx context.Context, payment *types.Payment, ticket *types.Ticket) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewInsert().
			Model(payment).
			ExcludeColumn("id", "created_at").
			On("CONFLICT (tx_id) DO NOTHING").
			Returning("id, created_at").
			Exec(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrDuplicate
			}
			return fmt.Errorf("insert payment: %w", err)
		}
		if affected, err := res.RowsAffected(); err == nil && affected == 0 {
			return ErrDuplicate
		}

		if ticket == nil {
			return nil
		}
		ticket.PaymentID = payment.ID
		if _, err := tx.NewInsert().
			Model(ticket).
			ExcludeColumn("id", "created_at").
			Returning("id, created_at").
			Exec(ctx); err != nil {
			return fmt.Errorf("insert ticket: %w", err)
		}
		return nil
	})
}

// GetByTxID returns the payment recorded for txID.
func (r *PaymentRepository) GetByTxID(ctx context.Context, txID string) (types.Payment, error) {
	var payment types.Payment
	err := r.db.NewSelect().
		Model(&payment).
		Where("p.tx_id = ?", txID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Payment{}, ErrNotFound
		}
		return types.Payment{}, err
	}
	return payment, nil
}
