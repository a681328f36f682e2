package types

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"
)

const (
	PaymentStatusCompleted = "completed"
	TicketStatusActive     = "active"
)

// Payment is a settled crypto payment keyed by its transaction id.
type Payment struct {
	bun.BaseModel `bun:"table:payments,alias:p" json:"-"`

	ID              int64     `bun:"id,pk,autoincrement" json:"id"`
	TxID            string    `bun:"tx_id,notnull,unique" json:"tx_id"`
	Amount          string    `bun:"amount,type:numeric,notnull" json:"amount"`
	Asset           string    `bun:"asset,notnull" json:"asset"`
	Network         string    `bun:"network,notnull" json:"network"`
	PayerAddress    string    `bun:"payer_address,notnull" json:"payer_address"`
	ReceiverAddress string    `bun:"receiver_address,notnull" json:"receiver_address"`
	EventID         *int64    `bun:"event_id" json:"event_id"`
	UserID          *int64    `bun:"user_id" json:"user_id"`
	Status          string    `bun:"status,notnull" json:"status"`
	CreatedAt       time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

// Ticket grants a user entry to an event after payment.
type Ticket struct {
	bun.BaseModel `bun:"table:tickets,alias:t" json:"-"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	UserID    int64     `bun:"user_id,notnull" json:"user_id"`
	EventID   int64     `bun:"event_id,notnull" json:"event_id"`
	PaymentID int64     `bun:"payment_id,notnull" json:"payment_id"`
	Status    string    `bun:"status,notnull" json:"status"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

// WebhookPayload is the notification posted by the payment network.
type WebhookPayload struct {
	Event     string           `json:"event"`
	TxID      string           `json:"txId"`
	Amount    json.Number      `json:"amount"`
	Asset     string           `json:"asset"`
	Network   string           `json:"network"`
	Timestamp json.RawMessage  `json:"timestamp,omitempty"`
	Metadata  *PaymentMetadata `json:"metadata"`
}

// PaymentMetadata carries the addresses and the optional event/user link.
type PaymentMetadata struct {
	PayerAddress    string          `json:"payerAddress"`
	ReceiverAddress string          `json:"receiverAddress"`
	EventID         json.RawMessage `json:"eventId,omitempty"`
	UserID          json.RawMessage `json:"userId,omitempty"`
}

// PaymentReceipt describes the outcome of a processed webhook.
type PaymentReceipt struct {
	PaymentID int64  `json:"paymentId,omitempty"`
	TicketID  *int64 `json:"ticketId,omitempty"`
	TxID      string `json:"txId"`
	EventID   *int64 `json:"eventId"`
	UserID    *int64 `json:"userId"`
	Duplicate bool   `json:"-"`
}
