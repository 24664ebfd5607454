package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"pos-promotion-services/internal/promotion"
	"pos-promotion-services/pkg/response"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

func readPathString(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}

func readPathInt64(r *http.Request, key string) (int64, error) {
	value := readPathString(r, key)
	if value == "" {
		return 0, errMissingParam
	}
	var out int64
	_, err := fmt.Sscan(value, &out)
	if err == nil && out <= 0 {
		err = errInvalidID
	}
	return out, err
}

var (
	errMissingParam = errors.New("missing param")
	errInvalidID    = errors.New("id must be positive")
)

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	decoder := json.NewDecoder(body)
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func (h *Handler) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

// writePromotionError renders typed promotion errors with their own status
// and hides everything else behind a 500.
func (h *Handler) writePromotionError(w http.ResponseWriter, r *http.Request, err error) {
	var perr *promotion.Error
	if errors.As(err, &perr) {
		response.ErrorDetails(w, perr.StatusCode, string(perr.Code), perr.Message, perr.Details)
		return
	}
	h.logger().Error("promotion request failed",
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to process promotion request")
}

func validationError(w http.ResponseWriter, message string) {
	response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", message)
}
