package handler

import (
	"net/http"

	"storefront-core/internal/model"
	"storefront-core/internal/service"

	"github.com/rs/zerolog"
)

// InventoryHandler handles stock-related HTTP requests.
type InventoryHandler struct {
	catalog service.CatalogService
	logger  zerolog.Logger
}

// NewInventoryHandler creates a new inventory handler.
func NewInventoryHandler(catalog service.CatalogService, logger zerolog.Logger) *InventoryHandler {
	return &InventoryHandler{
		catalog: catalog,
		logger:  logger.With().Str("handler", "inventory").Logger(),
	}
}

// Stock handles GET /api/inventory/{productId} requests.
func (h *InventoryHandler) Stock(w http.ResponseWriter, r *http.Request) {
	actor, err := actorOf(r)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}
	productID, err := pathID(r, "productId")
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	view, err := h.catalog.Stock(r.Context(), actor, productID)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// Move handles POST /api/inventory/{productId}/movements requests.
func (h *InventoryHandler) Move(w http.ResponseWriter, r *http.Request) {
	actor, err := actorOf(r)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}
	productID, err := pathID(r, "productId")
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	var req model.MovementRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err, h.logger)
		return
	}

	movement, err := h.catalog.Move(r.Context(), actor, productID, &req)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, movement)
}

// Movements handles GET /api/inventory/{productId}/movements requests.
func (h *InventoryHandler) Movements(w http.ResponseWriter, r *http.Request) {
	actor, err := actorOf(r)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}
	productID, err := pathID(r, "productId")
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	movements, err := h.catalog.Movements(r.Context(), actor, productID, queryLimit(r))
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, movements)
}

// LowStock handles GET /api/inventory/low-stock requests.
func (h *InventoryHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	actor, err := actorOf(r)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	views, err := h.catalog.LowStock(r.Context(), actor)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, views)
}

// VerifyChain handles GET /api/inventory/{productId}/verify requests.
func (h *InventoryHandler) VerifyChain(w http.ResponseWriter, r *http.Request) {
	actor, err := actorOf(r)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}
	productID, err := pathID(r, "productId")
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	report, err := h.catalog.VerifyChain(r.Context(), actor, productID)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, report)
}
