package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pos-promotion-services/internal/pricing"
	"pos-promotion-services/internal/promotion"
	"pos-promotion-services/internal/service"
)

type cartLinePayload struct {
	MenuID   int64   `json:"menuId"`
	Quantity int     `json:"quantity"`
	AddonIDs []int64 `json:"addonIds"`
}

type evaluatePayload struct {
	LocationID int64             `json:"locationId"`
	TableID    int64             `json:"tableId"`
	Items      []cartLinePayload `json:"items"`
	TotalPrice float64           `json:"totalPrice"`
	PerTable   bool              `json:"perTable"`
	PriceCart  bool              `json:"priceCart"`
}

func (p evaluatePayload) lines() ([]promotion.CartLine, error) {
	out := make([]promotion.CartLine, 0, len(p.Items))
	for i, item := range p.Items {
		if item.MenuID <= 0 {
			return nil, fmt.Errorf("items[%d].menuId is required", i)
		}
		if item.Quantity < 0 {
			return nil, fmt.Errorf("items[%d].quantity must not be negative", i)
		}
		for _, addonID := range item.AddonIDs {
			if addonID <= 0 {
				return nil, fmt.Errorf("items[%d].addonIds must be positive", i)
			}
		}
		out = append(out, promotion.CartLine{MenuID: item.MenuID, Quantity: item.Quantity, AddonIDs: item.AddonIDs})
	}
	return out, nil
}

func (p evaluatePayload) validate(requireLocation bool) error {
	if requireLocation && p.LocationID <= 0 {
		return errors.New("locationId is required")
	}
	if p.TotalPrice < 0 {
		return errors.New("totalPrice must not be negative")
	}
	return nil
}

type redeemPayload struct {
	evaluatePayload
	PromotionID    int64             `json:"promotionId"`
	OrderSeq       string            `json:"orderSeq"`
	AppliedIDs     []int64           `json:"appliedPromotionIds"`
	SelectedAddons map[int64][]int64 `json:"selectedAddonCategories"`
}

type requiredAddonsPayload struct {
	LocationID  int64   `json:"locationId"`
	PromotionID int64   `json:"promotionId"`
	MenuIDs     []int64 `json:"menuIds"`
}

type addonPricePairPayload struct {
	MenuID  int64 `json:"menuId"`
	AddonID int64 `json:"addonId"`
}

type addonPricesPayload struct {
	Pairs []addonPricePairPayload `json:"pairs"`
}

type PromotionView struct {
	ID            int64           `json:"id"`
	LocationID    int64           `json:"locationId"`
	Name          string          `json:"name"`
	Priority      int             `json:"priority"`
	DiscountType  string          `json:"discountType"`
	DiscountValue *float64        `json:"discountValue"`
	TotalPrice    *float64        `json:"totalPrice"`
	Conditions    json.RawMessage `json:"conditions"`
	StartDate     *time.Time      `json:"startDate"`
	EndDate       *time.Time      `json:"endDate"`
	Group         *string         `json:"group"`
}

type LegView struct {
	MenuID           int64 `json:"menuId"`
	QuantityRequired int   `json:"quantityRequired"`
}

type DiscountView struct {
	Type       string  `json:"type"`
	Label      string  `json:"label"`
	Amount     float64 `json:"amount"`
	FreeMenuID *int64  `json:"freeMenuId,omitempty"`
}

type AppliedView struct {
	Promotion      PromotionView     `json:"promotion"`
	Legs           []LegView         `json:"legs"`
	UsageCount     int               `json:"usageCount"`
	Discount       DiscountView      `json:"discount"`
	RequiredAddons map[int64][]int64 `json:"requiredAddonCategories,omitempty"`
	ConflictsWith  *int64            `json:"conflictsWith,omitempty"`
}

type LegCheckView struct {
	MenuID   int64   `json:"menuId"`
	Required float64 `json:"required"`
	Ordered  int     `json:"ordered"`
	Met      bool    `json:"met"`
}

type DecisionView struct {
	PromotionID   int64          `json:"promotionId"`
	Name          string         `json:"name"`
	Applicable    bool           `json:"applicable"`
	Reason        string         `json:"reason,omitempty"`
	UsageCount    int            `json:"usageCount"`
	Legs          []LegCheckView `json:"legs,omitempty"`
	RequiredTotal *float64       `json:"requiredTotal,omitempty"`
}

type EvaluateView struct {
	EvaluatedAt time.Time      `json:"evaluatedAt"`
	Subtotal    float64        `json:"subtotal"`
	Applicable  []AppliedView  `json:"applicable"`
	Selected    []AppliedView  `json:"selected"`
	Rejected    []DecisionView `json:"rejected,omitempty"`
}

type AddonPriceView struct {
	Key     string  `json:"key"`
	MenuID  int64   `json:"menuId"`
	AddonID int64   `json:"addonId"`
	Price   float64 `json:"price"`
}

func promotionView(p promotion.Promotion) PromotionView {
	conditions, err := promotion.MarshalConditions(p.Conditions)
	if err != nil {
		conditions = []byte("[]")
	}
	view := PromotionView{
		ID:            p.ID,
		LocationID:    p.LocationID,
		Name:          p.Name,
		Priority:      p.Priority,
		DiscountType:  string(p.DiscountType),
		DiscountValue: p.DiscountValue,
		TotalPrice:    p.TotalPrice,
		Conditions:    conditions,
		Group:         p.Group,
	}
	if !p.StartDate.IsZero() {
		start := p.StartDate.UTC()
		view.StartDate = &start
	}
	if !p.EndDate.IsZero() {
		end := p.EndDate.UTC()
		view.EndDate = &end
	}
	return view
}

func PromotionViews(list []promotion.Promotion) []PromotionView {
	out := make([]PromotionView, 0, len(list))
	for _, p := range list {
		out = append(out, promotionView(p))
	}
	return out
}

func discountView(d pricing.Discount) DiscountView {
	return DiscountView{Type: string(d.DiscountType), Label: d.Label, Amount: d.Amount, FreeMenuID: d.FreeMenuID}
}

func appliedViews(list []service.AppliedPromotion) []AppliedView {
	out := make([]AppliedView, 0, len(list))
	for _, a := range list {
		legs := make([]LegView, 0, len(a.Legs))
		for _, leg := range a.Legs {
			legs = append(legs, LegView{MenuID: leg.MenuID, QuantityRequired: leg.QuantityRequired})
		}
		out = append(out, AppliedView{
			Promotion:      promotionView(a.Promotion),
			Legs:           legs,
			UsageCount:     a.UsageCount,
			Discount:       discountView(a.Discount),
			RequiredAddons: a.RequiredAddons,
			ConflictsWith:  a.ConflictsWithID,
		})
	}
	return out
}

func decisionViews(list []promotion.Decision) []DecisionView {
	out := make([]DecisionView, 0, len(list))
	for _, d := range list {
		view := DecisionView{
			PromotionID:   d.Promotion.ID,
			Name:          d.Promotion.Name,
			Applicable:    d.Applicable,
			Reason:        string(d.Reason),
			UsageCount:    d.UsageCount,
			RequiredTotal: d.RequiredTotal,
		}
		for _, leg := range d.Legs {
			view.Legs = append(view.Legs, LegCheckView{MenuID: leg.MenuID, Required: leg.Required, Ordered: leg.Ordered, Met: leg.Met})
		}
		out = append(out, view)
	}
	return out
}

func evaluateView(result *service.EvaluateResult, withRejected bool) EvaluateView {
	view := EvaluateView{
		EvaluatedAt: result.EvaluatedAt.UTC(),
		Subtotal:    result.Subtotal,
		Applicable:  appliedViews(result.Applicable),
		Selected:    appliedViews(result.Selected),
	}
	if withRejected {
		view.Rejected = decisionViews(result.Rejected)
	}
	return view
}

func addonPriceViews(pairs []promotion.AddonPricePair, prices map[promotion.AddonPriceKey]float64) []AddonPriceView {
	out := make([]AddonPriceView, 0, len(prices))
	seen := make(map[promotion.AddonPriceKey]struct{}, len(pairs))
	for _, pair := range pairs {
		key := promotion.AddonPriceKey{MenuID: pair.MenuID, AddonID: pair.AddonID}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, AddonPriceView{Key: key.String(), MenuID: key.MenuID, AddonID: key.AddonID, Price: prices[key]})
	}
	return out
}
