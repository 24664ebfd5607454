package handlers

import (
	"net/http"
	"strings"

	"pos-promotion-services/internal/middleware"
	"pos-promotion-services/internal/service"
	"pos-promotion-services/pkg/response"
)

// StaffPromotionsExplain evaluates a cart for the staff location and
// includes the reason every rejected promotion failed.
func (h *Handler) StaffPromotionsExplain(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := middleware.GetAuthContext(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}
	var payload evaluatePayload
	if err := decodeJSON(w, r, &payload); err != nil {
		validationError(w, err.Error())
		return
	}
	if err := payload.validate(false); err != nil {
		validationError(w, err.Error())
		return
	}
	lines, err := payload.lines()
	if err != nil {
		validationError(w, err.Error())
		return
	}

	result, err := h.Promotions.Evaluate(r.Context(), service.EvaluateRequest{
		LocationID: authCtx.LocationID,
		TableID:    payload.TableID,
		Lines:      lines,
		TotalPrice: payload.TotalPrice,
		PerTable:   payload.PerTable,
		PriceCart:  payload.PriceCart,
	})
	if err != nil {
		h.writePromotionError(w, r, err)
		return
	}
	response.Success(w, evaluateView(result, true))
}

func (h *Handler) StaffPromotionRedeem(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := middleware.GetAuthContext(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}
	var payload redeemPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		validationError(w, err.Error())
		return
	}
	payload.OrderSeq = strings.TrimSpace(payload.OrderSeq)
	if payload.PromotionID <= 0 {
		validationError(w, "promotionId is required")
		return
	}
	if payload.OrderSeq == "" {
		validationError(w, "orderSeq is required")
		return
	}
	if err := payload.validate(false); err != nil {
		validationError(w, err.Error())
		return
	}
	lines, err := payload.lines()
	if err != nil {
		validationError(w, err.Error())
		return
	}

	redeemedBy := authCtx.UserID
	req := service.RedeemRequest{
		PromotionID:    payload.PromotionID,
		LocationID:     authCtx.LocationID,
		TableID:        payload.TableID,
		OrderSeq:       payload.OrderSeq,
		Lines:          lines,
		TotalPrice:     payload.TotalPrice,
		PerTable:       payload.PerTable,
		PriceCart:      payload.PriceCart,
		AlreadyApplied: payload.AppliedIDs,
		SelectedAddons: payload.SelectedAddons,
		RedeemedBy:     &redeemedBy,
	}
	if err := h.Promotions.Redeem(r.Context(), req); err != nil {
		h.writePromotionError(w, r, err)
		return
	}
	response.Created(w, map[string]any{
		"promotionId": payload.PromotionID,
		"tableId":     payload.TableID,
		"orderSeq":    payload.OrderSeq,
	})
}

func (h *Handler) StaffAddonPricesResolve(w http.ResponseWriter, r *http.Request) {
	h.resolveAddonPrices(w, r)
}

func (h *Handler) DebugLatency(w http.ResponseWriter, r *http.Request) {
	if h.Latency == nil {
		response.Success(w, []middleware.RouteLatency{})
		return
	}
	response.Success(w, h.Latency.Snapshot())
}
