package handlers

import (
	"net/http"

	"pos-promotion-services/internal/promotion"
	"pos-promotion-services/internal/service"
	"pos-promotion-services/pkg/response"
)

func (h *Handler) PublicPromotionsEvaluate(w http.ResponseWriter, r *http.Request) {
	var payload evaluatePayload
	if err := decodeJSON(w, r, &payload); err != nil {
		validationError(w, err.Error())
		return
	}
	if err := payload.validate(true); err != nil {
		validationError(w, err.Error())
		return
	}
	lines, err := payload.lines()
	if err != nil {
		validationError(w, err.Error())
		return
	}

	result, err := h.Promotions.Evaluate(r.Context(), service.EvaluateRequest{
		LocationID: payload.LocationID,
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
	response.Success(w, evaluateView(result, false))
}

func (h *Handler) PublicActivePromotions(w http.ResponseWriter, r *http.Request) {
	locationID, err := readPathInt64(r, "locationId")
	if err != nil {
		validationError(w, "Invalid location id")
		return
	}
	list, err := h.Promotions.ActivePromotions(r.Context(), locationID)
	if err != nil {
		h.writePromotionError(w, r, err)
		return
	}
	response.Success(w, PromotionViews(list))
}

func (h *Handler) PublicRequiredAddons(w http.ResponseWriter, r *http.Request) {
	var payload requiredAddonsPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		validationError(w, err.Error())
		return
	}
	if payload.PromotionID != 0 && payload.LocationID <= 0 {
		validationError(w, "locationId is required with promotionId")
		return
	}
	if payload.PromotionID == 0 && len(payload.MenuIDs) == 0 {
		validationError(w, "promotionId or menuIds is required")
		return
	}

	required, err := h.Promotions.RequiredAddons(r.Context(), payload.LocationID, payload.PromotionID, payload.MenuIDs)
	if err != nil {
		h.writePromotionError(w, r, err)
		return
	}
	response.Success(w, map[string]any{"requiredAddonCategories": required})
}

func (h *Handler) PublicAddonPricesResolve(w http.ResponseWriter, r *http.Request) {
	h.resolveAddonPrices(w, r)
}

func (h *Handler) resolveAddonPrices(w http.ResponseWriter, r *http.Request) {
	var payload addonPricesPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		validationError(w, err.Error())
		return
	}
	if len(payload.Pairs) == 0 {
		validationError(w, "pairs is required")
		return
	}
	pairs := make([]promotion.AddonPricePair, 0, len(payload.Pairs))
	for _, pair := range payload.Pairs {
		if pair.MenuID <= 0 || pair.AddonID <= 0 {
			validationError(w, "menuId and addonId are required")
			return
		}
		pairs = append(pairs, promotion.AddonPricePair{MenuID: pair.MenuID, AddonID: pair.AddonID})
	}

	prices, err := h.Promotions.ResolveAddonPrices(r.Context(), pairs)
	if err != nil {
		h.writePromotionError(w, r, err)
		return
	}
	response.Success(w, addonPriceViews(pairs, prices))
}
