package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/tomymiron/ETH-Global/internal/mq"
	"github.com/tomymiron/ETH-Global/internal/store"
	"github.com/tomymiron/ETH-Global/types"
)

const (
	// PaymentSuccessEvent is the only webhook event that is processed.
	PaymentSuccessEvent = "YELLOW_PAYMENT_SUCCESS"

	defaultAsset   = "ETH"
	defaultNetwork = "Yellow Network"
)

// PaymentRepository persists payments and tickets.
type PaymentRepository interface {
	Record(ctx context.Context, payment *types.Payment, ticket *types.Ticket) error
	GetByTxID(ctx context.Context, txID string) (types.Payment, error)
}

// EventPublisher announces domain events. It may be nil.
type EventPublisher interface {
	PublishJSON(ctx context.Context, channel string, value any) (string, error)
}

// PaymentService records payment notifications and answers status
// lookups.
type PaymentService struct {
	payments  PaymentRepository
	publisher EventPublisher
	logger    *zap.Logger
}

func NewPaymentService(payments PaymentRepository, publisher EventPublisher, logger *zap.Logger) *PaymentService {
	return &PaymentService{payments: payments, publisher: publisher, logger: logger}
}

// ProcessWebhook validates and records a payment notification. A
// notification for a tx id that was already recorded returns a receipt
// marked Duplicate and writes nothing.
func (s *PaymentService) ProcessWebhook(ctx context.Context, payload *types.WebhookPayload) (types.PaymentReceipt, error) {
	if payload == nil || payload.Event == "" {
		return types.PaymentReceipt{}, ErrPayloadInvalid
	}
	if payload.Event != PaymentSuccessEvent {
		return types.PaymentReceipt{}, ErrEventIgnored
	}
	if payload.TxID == "" || !nonZeroAmount(payload.Amount) || payload.Metadata == nil {
		return types.PaymentReceipt{}, ErrPaymentIncomplete
	}

	meta := payload.Metadata
	if meta.PayerAddress == "" {
		return types.PaymentReceipt{}, ErrPayerRequired
	}

	receipt := types.PaymentReceipt{
		TxID:    payload.TxID,
		EventID: optionalID(meta.EventID),
		UserID:  optionalID(meta.UserID),
	}
	payment := &types.Payment{
		TxID:            payload.TxID,
		Amount:          payload.Amount.String(),
		Asset:           withDefault(payload.Asset, defaultAsset),
		Network:         withDefault(payload.Network, defaultNetwork),
		PayerAddress:    meta.PayerAddress,
		ReceiverAddress: withDefault(meta.ReceiverAddress, meta.PayerAddress),
		EventID:         receipt.EventID,
		UserID:          receipt.UserID,
		Status:          types.PaymentStatusCompleted,
	}
	var ticket *types.Ticket
	if receipt.EventID != nil && receipt.UserID != nil {
		ticket = &types.Ticket{
			UserID:  *receipt.UserID,
			EventID: *receipt.EventID,
			Status:  types.TicketStatusActive,
		}
	}

	if err := s.payments.Record(ctx, payment, ticket); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			s.logger.Info("payment already recorded", zap.String("tx_id", payload.TxID))
			receipt.Duplicate = true
			return receipt, nil
		}
		s.logger.Error("payment not recorded",
			zap.String("tx_id", payload.TxID),
			zap.String("amount", payment.Amount),
			zap.String("payer", payment.PayerAddress),
			zap.Error(err),
		)
		return receipt, fmt.Errorf("record payment: %w", err)
	}

	receipt.PaymentID = payment.ID
	if ticket != nil {
		ticketID := ticket.ID
		receipt.TicketID = &ticketID
	}
	s.logger.Info("payment recorded",
		zap.String("tx_id", payload.TxID),
		zap.Int64("payment_id", payment.ID),
		zap.Bool("ticket", ticket != nil),
	)
	s.announce(ctx, receipt)
	return receipt, nil
}

// Status returns the payment recorded for txID.
func (s *PaymentService) Status(ctx context.Context, txID string) (types.Payment, error) {
	if txID == "" {
		return types.Payment{}, ErrTxIDRequired
	}
	payment, err := s.payments.GetByTxID(ctx, txID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Payment{}, ErrPaymentNotFound
		}
		return types.Payment{}, fmt.Errorf("load payment: %w", err)
	}
	return payment, nil
}

func (s *PaymentService) announce(ctx context.Context, receipt types.PaymentReceipt) {
	if s.publisher == nil {
		return
	}
	if _, err := s.publisher.PublishJSON(ctx, mq.ChannelPaymentsCompleted, receipt); err != nil {
		s.logger.Warn("payment event not published", zap.String("tx_id", receipt.TxID), zap.Error(err))
	}
}

func nonZeroAmount(amount json.Number) bool {
	if amount == "" {
		return false
	}
	value, err := amount.Float64()
	return err == nil && value != 0
}

// optionalID reads a metadata id given as a number or a numeric string.
// Anything else, zero included, is treated as absent.
func optionalID(raw json.RawMessage) *int64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	text := string(raw)
	var quoted string
	if err := json.Unmarshal(raw, &quoted); err == nil {
		text = quoted
	}
	id, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil || id == 0 {
		return nil
	}
	return &id
}

func withDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
