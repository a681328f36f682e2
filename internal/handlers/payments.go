package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tomymiron/ETH-Global/internal/services"
	"github.com/tomymiron/ETH-Global/types"
)

// PaymentService covers the payment webhook and status lookups.
type PaymentService interface {
	ProcessWebhook(ctx context.Context, payload *types.WebhookPayload) (types.PaymentReceipt, error)
	Status(ctx context.Context, txID string) (types.Payment, error)
}

// PaymentHandler provides HTTP handlers for payments.
type PaymentHandler struct {
	payments PaymentService
	logger   *zap.Logger
}

func NewPaymentHandler(payments PaymentService, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{payments: payments, logger: logger}
}

// PaymentRouter registers payment routes on the given router.
func PaymentRouter(r chi.Router, payments PaymentService, logger *zap.Logger) {
	handler := NewPaymentHandler(payments, logger)

	r.Post("/webhook", handler.Webhook)
	r.Get("/status", handler.Status)
}

// WebhookResponse is the acknowledgement sent to the payment network.
type WebhookResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	TxID    string `json:"txId,omitempty"`
}

// Webhook records a payment notification. Processing failures are still
// acknowledged with 200 so the sender does not retry.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	var payload *types.WebhookPayload
	if !decodeBody(w, r, &payload) {
		return
	}

	receipt, err := h.payments.ProcessWebhook(r.Context(), payload)
	switch {
	case err == nil && receipt.Duplicate:
		writeJSON(w, http.StatusOK, WebhookResponse{
			Success: true,
			Message: "Pago ya procesado",
			Data:    map[string]string{"txId": receipt.TxID},
		})
	case err == nil && receipt.TicketID == nil:
		writeJSON(w, http.StatusOK, WebhookResponse{
			Success: true,
			Message: "Pago procesado exitosamente (sin ticket - eventId o userId no proporcionado)",
			Data:    receipt,
		})
	case err == nil:
		writeJSON(w, http.StatusOK, WebhookResponse{
			Success: true,
			Message: "Pago procesado y ticket creado exitosamente",
			Data:    receipt,
		})
	case errors.Is(err, services.ErrPayloadInvalid):
		writeError(w, http.StatusBadRequest, "Payload inválido")
	case errors.Is(err, services.ErrEventIgnored):
		h.logger.Info("ignored payment webhook", zap.String("event", payload.Event))
		writeJSON(w, http.StatusOK, map[string]string{"message": "Evento no manejado"})
	case errors.Is(err, services.ErrPaymentIncomplete):
		writeError(w, http.StatusBadRequest, "Datos de pago incompletos")
	case errors.Is(err, services.ErrPayerRequired):
		writeError(w, http.StatusBadRequest, "Dirección del pagador requerida")
	default:
		writeJSON(w, http.StatusOK, WebhookResponse{
			Success: false,
			Message: "Webhook recibido pero error al procesar en base de datos",
			Error:   err.Error(),
			TxID:    receipt.TxID,
		})
	}
}

// Status returns the payment recorded for ?txId=.
func (h *PaymentHandler) Status(w http.ResponseWriter, r *http.Request) {
	payment, err := h.payments.Status(r.Context(), r.URL.Query().Get("txId"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, payment)
	case errors.Is(err, services.ErrTxIDRequired):
		writeError(w, http.StatusBadRequest, "txId requerido")
	case errors.Is(err, services.ErrPaymentNotFound):
		writeError(w, http.StatusNotFound, "Pago no encontrado")
	default:
		h.logger.Error("payment status", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Error interno del servidor")
	}
}
