package handler

import (
	"net/http"

	"storefront-core/internal/model"
	"storefront-core/internal/service"

	"github.com/rs/zerolog"
)

// CommissionHandler handles referral commission and payout requests.
type CommissionHandler struct {
	payouts service.PayoutService
	logger  zerolog.Logger
}

// NewCommissionHandler creates a new commission handler.
func NewCommissionHandler(payouts service.PayoutService, logger zerolog.Logger) *CommissionHandler {
	return &CommissionHandler{
		payouts: payouts,
		logger:  logger.With().Str("handler", "commission").Logger(),
	}
}

// Me handles GET /api/commissions/me requests.
func (h *CommissionHandler) Me(w http.ResponseWriter, r *http.Request) {
	actor, err := actorOf(r)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	summary, err := h.payouts.Summary(r.Context(), actor)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// Reconcile handles GET /api/commissions/{buyerId}/reconcile requests.
func (h *CommissionHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	actor, err := actorOf(r)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}
	buyerID, err := pathID(r, "buyerId")
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	result, err := h.payouts.Reconcile(r.Context(), actor, buyerID)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// RequestPayout handles POST /api/payouts requests.
func (h *CommissionHandler) RequestPayout(w http.ResponseWriter, r *http.Request) {
	actor, err := actorOf(r)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	var req model.PayoutCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err, h.logger)
		return
	}

	payout, err := h.payouts.RequestPayout(r.Context(), actor, &req)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, payout)
}

// ResolvePayout handles POST /api/payouts/{id}/resolve requests.
func (h *CommissionHandler) ResolvePayout(w http.ResponseWriter, r *http.Request) {
	actor, err := actorOf(r)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}
	payoutID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	var req model.PayoutResolveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err, h.logger)
		return
	}

	payout, err := h.payouts.ResolvePayout(r.Context(), actor, payoutID, &req)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, payout)
}
