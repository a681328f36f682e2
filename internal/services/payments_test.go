package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/tomymiron/ETH-Global/internal/mq"
	"github.com/tomymiron/ETH-Global/internal/store"
	"github.com/tomymiron/ETH-Global/types"
)

type memoryPayments struct {
	byTx    map[string]types.Payment
	tickets []types.Ticket
	err     error
	nextID  int64
}

func (m *memoryPayments) Record(ctx context.Context, payment *types.Payment, ticket *types.Ticket) error {
	if m.err != nil {
		return m.err
	}
	if m.byTx == nil {
		m.byTx = make(map[string]types.Payment)
	}
	if _, ok := m.byTx[payment.TxID]; ok {
		return store.ErrDuplicate
	}
	m.nextID++
	payment.ID = m.nextID
	m.byTx[payment.TxID] = *payment
	if ticket != nil {
		m.nextID++
		ticket.ID = m.nextID
		ticket.PaymentID = payment.ID
		m.tickets = append(m.tickets, *ticket)
	}
	return nil
}

func (m *memoryPayments) GetByTxID(ctx context.Context, txID string) (types.Payment, error) {
	payment, ok := m.byTx[txID]
	if !ok {
		return types.Payment{}, store.ErrNotFound
	}
	return payment, nil
}

type recordingPublisher struct {
	channels []string
}

func (p *recordingPublisher) PublishJSON(ctx context.Context, channel string, value any) (string, error) {
	p.channels = append(p.channels, channel)
	return "1", nil
}

func decodePayload(t *testing.T, raw string) *types.WebhookPayload {
	t.Helper()
	var payload types.WebhookPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	return &payload
}

func TestProcessWebhookValidation(t *testing.T) {
	svc := NewPaymentService(&memoryPayments{}, nil, zap.NewNop())

	tests := []struct {
		name    string
		payload *types.WebhookPayload
		want    error
	}{
		{name: "nil", payload: nil, want: ErrPayloadInvalid},
		{name: "no event", payload: decodePayload(t, `{"txId":"0x1"}`), want: ErrPayloadInvalid},
		{name: "other event", payload: decodePayload(t, `{"event":"YELLOW_PAYMENT_PENDING"}`), want: ErrEventIgnored},
		{name: "no tx", payload: decodePayload(t, `{"event":"YELLOW_PAYMENT_SUCCESS","amount":1,"metadata":{}}`), want: ErrPaymentIncomplete},
		{name: "zero amount", payload: decodePayload(t, `{"event":"YELLOW_PAYMENT_SUCCESS","txId":"0x1","amount":0,"metadata":{}}`), want: ErrPaymentIncomplete},
		{name: "no metadata", payload: decodePayload(t, `{"event":"YELLOW_PAYMENT_SUCCESS","txId":"0x1","amount":1}`), want: ErrPaymentIncomplete},
		{name: "no payer", payload: decodePayload(t, `{"event":"YELLOW_PAYMENT_SUCCESS","txId":"0x1","amount":1,"metadata":{}}`), want: ErrPayerRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.ProcessWebhook(context.Background(), tt.payload); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestProcessWebhookIsIdempotent(t *testing.T) {
	payments := &memoryPayments{}
	publisher := &recordingPublisher{}
	svc := NewPaymentService(payments, publisher, zap.NewNop())

	raw := `{"event":"YELLOW_PAYMENT_SUCCESS","txId":"0xabc","amount":"0.05",
		"metadata":{"payerAddress":"0xpayer","eventId":"12","userId":34}}`

	receipt, err := svc.ProcessWebhook(context.Background(), decodePayload(t, raw))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if receipt.Duplicate || receipt.PaymentID == 0 || receipt.TicketID == nil {
		t.Fatalf("expected payment and ticket, got %+v", receipt)
	}
	if *receipt.EventID != 12 || *receipt.UserID != 34 {
		t.Fatalf("unexpected ids %+v", receipt)
	}

	stored := payments.byTx["0xabc"]
	if stored.Asset != "ETH" || stored.Network != "Yellow Network" || stored.ReceiverAddress != "0xpayer" {
		t.Fatalf("defaults not applied: %+v", stored)
	}
	if stored.Status != types.PaymentStatusCompleted || stored.Amount != "0.05" {
		t.Fatalf("unexpected stored payment %+v", stored)
	}

	again, err := svc.ProcessWebhook(context.Background(), decodePayload(t, raw))
	if err != nil {
		t.Fatalf("duplicate must not fail: %v", err)
	}
	if !again.Duplicate {
		t.Fatalf("expected duplicate receipt")
	}
	if len(payments.byTx) != 1 || len(payments.tickets) != 1 {
		t.Fatalf("duplicate must not write: %d payments, %d tickets", len(payments.byTx), len(payments.tickets))
	}
	if len(publisher.channels) != 1 || publisher.channels[0] != mq.ChannelPaymentsCompleted {
		t.Fatalf("expected one completion event, got %v", publisher.channels)
	}
}

func TestProcessWebhookWithoutTicket(t *testing.T) {
	payments := &memoryPayments{}
	svc := NewPaymentService(payments, nil, zap.NewNop())

	raw := `{"event":"YELLOW_PAYMENT_SUCCESS","txId":"0xdef","amount":1,"asset":"USDC",
		"metadata":{"payerAddress":"0xpayer","receiverAddress":"0xshop","eventId":5}}`
	receipt, err := svc.ProcessWebhook(context.Background(), decodePayload(t, raw))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if receipt.TicketID != nil || receipt.UserID != nil {
		t.Fatalf("no ticket expected without user, got %+v", receipt)
	}
	if payments.byTx["0xdef"].Asset != "USDC" || payments.byTx["0xdef"].ReceiverAddress != "0xshop" {
		t.Fatalf("explicit fields must be kept")
	}
}

func TestProcessWebhookStoreFailure(t *testing.T) {
	svc := NewPaymentService(&memoryPayments{err: errors.New("db down")}, nil, zap.NewNop())
	raw := `{"event":"YELLOW_PAYMENT_SUCCESS","txId":"0x1","amount":1,"metadata":{"payerAddress":"0xp"}}`

	receipt, err := svc.ProcessWebhook(context.Background(), decodePayload(t, raw))
	if err == nil {
		t.Fatalf("expected store error")
	}
	if receipt.TxID != "0x1" {
		t.Fatalf("receipt must carry the tx id for tracking")
	}
}

func TestPaymentStatus(t *testing.T) {
	payments := &memoryPayments{byTx: map[string]types.Payment{"0x1": {ID: 1, TxID: "0x1"}}}
	svc := NewPaymentService(payments, nil, zap.NewNop())
	ctx := context.Background()

	if _, err := svc.Status(ctx, ""); !errors.Is(err, ErrTxIDRequired) {
		t.Fatalf("expected ErrTxIDRequired, got %v", err)
	}
	if _, err := svc.Status(ctx, "0x2"); !errors.Is(err, ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
	payment, err := svc.Status(ctx, "0x1")
	if err != nil || payment.ID != 1 {
		t.Fatalf("unexpected status %+v (%v)", payment, err)
	}
}

func TestOptionalID(t *testing.T) {
	tests := []struct {
		raw  string
		want int64
		ok   bool
	}{
		{raw: `12`, want: 12, ok: true},
		{raw: `"34"`, want: 34, ok: true},
		{raw: `0`},
		{raw: `null`},
		{raw: `""`},
		{raw: `"abc"`},
		{raw: ``},
	}
	for _, tt := range tests {
		got := optionalID(json.RawMessage(tt.raw))
		if (got != nil) != tt.ok || (got != nil && *got != tt.want) {
			t.Fatalf("%q: unexpected %v", tt.raw, got)
		}
	}
}
