package handler

import (
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"storefront-core/internal/model"
	"storefront-core/internal/service"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// maxProofImageSize bounds an uploaded payment proof image.
const maxProofImageSize = 5 << 20

// OrderHandler handles order-related HTTP requests.
type OrderHandler struct {
	orders   service.OrderService
	couriers service.CourierService
	payments service.PaymentProofService
	logger   zerolog.Logger
}

// NewOrderHandler creates a new order handler.
func NewOrderHandler(
	orders service.OrderService,
	couriers service.CourierService,
	payments service.PaymentProofService,
	logger zerolog.Logger,
) *OrderHandler {
	return &OrderHandler{
		orders:   orders,
		couriers: couriers,
		payments: payments,
		logger:   logger.With().Str("handler", "order").Logger(),
	}
}

// Create handles POST /api/orders requests.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, err := actorOf(r)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	var req model.OrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err, h.logger)
		return
	}

	order, err := h.orders.CreateOrder(r.Context(), actor, &req)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, order)
}

// GetByID handles GET /api/orders/{id} requests.
func (h *OrderHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	actor, err := actorOf(r)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}
	orderID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	order, err := h.orders.GetOrder(r.Context(), actor, orderID)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// Transition handles POST /api/orders/{id}/transitions requests.
func (h *OrderHandler) Transition(w http.ResponseWriter, r *http.Request) {
	actor, err := actorOf(r)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}
	orderID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	var req model.TransitionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err, h.logger)
		return
	}

	order, err := h.orders.ApplyTransition(r.Context(), actor, orderID, &req)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// Take handles POST /api/orders/{id}/take requests.
func (h *OrderHandler) Take(w http.ResponseWriter, r *http.Request) {
	actor, err := actorOf(r)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}
	orderID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	order, err := h.couriers.TakeOrder(r.Context(), actor, orderID)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// Reassign handles POST /api/orders/{id}/reassign requests.
func (h *OrderHandler) Reassign(w http.ResponseWriter, r *http.Request) {
	actor, err := actorOf(r)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}
	orderID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	var req model.ReassignRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err, h.logger)
		return
	}

	order, err := h.couriers.Reassign(r.Context(), actor, orderID, &req)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// Available handles GET /api/orders/available requests.
func (h *OrderHandler) Available(w http.ResponseWriter, r *http.Request) {
	actor, err := actorOf(r)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	orders, err := h.couriers.AvailableOrders(r.Context(), actor, queryLimit(r))
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, orders)
}

// SubmitPaymentProof handles POST /api/orders/{id}/payment-proofs requests.
// The body is either JSON with a proofUrl or a multipart form with an image.
func (h *OrderHandler) SubmitPaymentProof(w http.ResponseWriter, r *http.Request) {
	actor, err := actorOf(r)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}
	orderID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	var (
		req   model.PaymentProofRequest
		image *model.ProofImage
	)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		image, err = parseProofForm(w, r, &req)
	} else {
		err = decodeJSON(r, &req)
	}
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	confirmation, err := h.payments.SubmitPaymentProof(r.Context(), actor, orderID, &req, image)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, confirmation)
}

// ListPaymentProofs handles GET /api/orders/{id}/payment-proofs requests.
func (h *OrderHandler) ListPaymentProofs(w http.ResponseWriter, r *http.Request) {
	actor, err := actorOf(r)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}
	orderID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	proofs, err := h.payments.ListPaymentProofs(r.Context(), actor, orderID)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, proofs)
}

func parseProofForm(w http.ResponseWriter, r *http.Request, req *model.PaymentProofRequest) (*model.ProofImage, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxProofImageSize+1<<20)
	if err := r.ParseMultipartForm(maxProofImageSize); err != nil {
		return nil, model.NewValidationError(model.ErrCodeInvalidJSON, "formulir bukti pembayaran tidak valid")
	}

	if v := r.FormValue("amount"); v != "" {
		amount, err := decimal.NewFromString(v)
		if err != nil {
			return nil, model.NewValidationError(model.ErrCodeInvalidAmount, "jumlah transfer tidak valid")
		}
		req.Amount = amount
	}
	req.BankName = r.FormValue("bankName")
	req.AccountName = r.FormValue("accountName")
	if v := r.FormValue("transferDate"); v != "" {
		date, err := parseDate(v)
		if err != nil {
			return nil, model.NewValidationError(model.ErrCodeMissingField, "tanggal transfer tidak valid")
		}
		req.TransferDate = date
	}
	if v := strings.TrimSpace(r.FormValue("notes")); v != "" {
		req.Notes = &v
	}
	if v := strings.TrimSpace(r.FormValue("proofUrl")); v != "" {
		req.ProofURL = &v
	}

	file, header, err := r.FormFile("image")
	if err == http.ErrMissingFile {
		return nil, nil
	}
	if err != nil {
		return nil, model.NewValidationError(model.ErrCodeMissingField, "gambar bukti tidak valid")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxProofImageSize+1))
	if err != nil {
		return nil, model.NewValidationError(model.ErrCodeMissingField, "gambar bukti tidak valid")
	}
	if len(data) > maxProofImageSize {
		return nil, model.NewValidationError(model.ErrCodeMissingField, "ukuran gambar bukti maksimal 5MB")
	}

	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return nil, model.NewValidationError(model.ErrCodeMissingField, "bukti pembayaran harus berupa gambar")
	}

	return &model.ProofImage{
		Filename:    header.Filename,
		ContentType: contentType,
		Data:        data,
	}, nil
}

func parseDate(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}
