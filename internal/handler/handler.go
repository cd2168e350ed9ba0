package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"storefront-core/internal/middleware"
	"storefront-core/internal/model"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but don't expose it to the client
		return
	}
}

// statusFor maps a domain error kind to its HTTP status.
func statusFor(kind model.ErrorKind) int {
	switch kind {
	case model.KindValidation:
		return http.StatusBadRequest
	case model.KindPermission:
		return http.StatusForbidden
	case model.KindNotFound:
		return http.StatusNotFound
	case model.KindInvalidTransition, model.KindConflict:
		return http.StatusConflict
	case model.KindInsufficientStock, model.KindInsufficientBalance:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err to a status and writes the standard error body.
// Infrastructure errors are logged and hidden from the client.
func writeError(w http.ResponseWriter, err error, logger zerolog.Logger) {
	var de *model.DomainError
	if errors.As(err, &de) {
		status := statusFor(de.Kind)
		logger.Debug().Str("code", de.Code).Int("status", status).Msg(de.Message)
		writeJSON(w, status, model.ErrorResponse{Error: de.Code, Message: de.Message})
		return
	}

	logger.Error().Err(err).Int("status", http.StatusInternalServerError).Msg("handler error")
	writeJSON(w, http.StatusInternalServerError, model.ErrorResponse{
		Error:   model.ErrCodeInternalError,
		Message: "terjadi kesalahan pada server",
	})
}

func decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return model.NewValidationError(model.ErrCodeInvalidJSON, "format permintaan tidak valid")
	}
	return nil
}

// pathID parses a uuid route parameter.
func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, model.NewValidationError(model.ErrCodeMissingField, "format ID tidak valid")
	}
	return id, nil
}

// queryLimit reads ?limit=, returning 0 when absent or malformed so the
// service default applies.
func queryLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		return 0
	}
	return limit
}

// actorOf returns the caller set by middleware.Actor.
func actorOf(r *http.Request) (model.Actor, error) {
	actor, ok := middleware.ActorFrom(r.Context())
	if !ok {
		return model.Actor{}, model.NewPermissionError("akses ditolak")
	}
	return actor, nil
}
