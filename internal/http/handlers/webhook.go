package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"server/internal/domain"
)

const paymentEventCompleted = "payment.completed"

type paymentWebhookRequest struct {
	Type            string `json:"type"`
	UserID          string `json:"user_id"`
	CreditAmount    int    `json:"credit_amount"`
	ExternalEventID string `json:"external_event_id"`
}

// PaymentsWebhook converts a payment-provider delivery into a ledger credit.
// Deliveries are idempotent on the external event id; unknown event types are
// acknowledged and ignored so the provider stops redelivering them.
func (a *App) PaymentsWebhook(w http.ResponseWriter, r *http.Request) {
	var event paymentWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if event.Type != paymentEventCompleted {
		a.json(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	if event.UserID == "" || event.ExternalEventID == "" || event.CreditAmount <= 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "user_id, credit_amount and external_event_id are required")
		return
	}

	err := a.Credits.ApplyExternalTopUp(r.Context(), event.UserID, event.CreditAmount, event.ExternalEventID)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateOperation) {
			a.json(w, http.StatusOK, map[string]string{"status": "already_processed"})
			return
		}
		if errors.Is(err, domain.ErrValidation) {
			a.error(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		a.Logger.Error().Err(err).Str("external_event_id", event.ExternalEventID).Msg("api: top-up failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to apply top-up")
		return
	}
	a.json(w, http.StatusOK, map[string]string{"status": "applied"})
}
