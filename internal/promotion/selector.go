package promotion

import (
	"sort"
	"time"
)

type SelectInput struct {
	Promotions     []Promotion
	PromotionMenus []PromotionMenu
	MenuOrderData  MenuOrderData
	TotalPrice     float64
	Usage          []PromotionUsage
	Now            time.Time
	Zone           StoreZone
	// Counter defaults to CountByPromotion.
	Counter UsageCounter
}

// Decision explains the outcome of one candidate.
type Decision struct {
	Promotion  Promotion
	Applicable bool
	Reason     ErrorCode
	UsageCount int
	Legs       []LegCheck
	// RequiredTotal is set for total-price-conditioned promotions.
	RequiredTotal *float64
}

type LegCheck struct {
	MenuID   int64
	Required float64
	Ordered  int
	Met      bool
}

const (
	ReasonOutsideWindow  ErrorCode = "OUTSIDE_WINDOW"
	ReasonMenuNotMet     ErrorCode = "MENU_QUANTITY_NOT_MET"
	ReasonTotalNotMet    ErrorCode = "TOTAL_PRICE_NOT_MET"
	ReasonNoRequirements ErrorCode = "NO_REQUIREMENTS"
)

// SelectApplicable returns the applicable promotions ordered by precedence.
func SelectApplicable(in SelectInput) []Promotion {
	decisions := Explain(in)
	out := make([]Promotion, 0, len(decisions))
	for _, d := range decisions {
		if d.Applicable {
			out = append(out, d.Promotion)
		}
	}
	return out
}

// Explain evaluates every candidate. Applicable decisions come first in
// precedence order, followed by the rejected ones in input order.
func Explain(in SelectInput) []Decision {
	counter := in.Counter
	if counter == nil {
		counter = CountByPromotion
	}

	legCount := make(map[int64]int, len(in.Promotions))
	for _, m := range in.PromotionMenus {
		legCount[m.PromotionID]++
	}

	applicable := make([]Decision, 0, len(in.Promotions))
	rejected := make([]Decision, 0)
	for _, p := range in.Promotions {
		d := evaluate(p, in, counter)
		if d.Applicable {
			applicable = append(applicable, d)
		} else {
			rejected = append(rejected, d)
		}
	}

	sort.SliceStable(applicable, func(i, j int) bool {
		return precedes(applicable[i].Promotion, applicable[j].Promotion, legCount)
	})

	return append(applicable, rejected...)
}

func evaluate(p Promotion, in SelectInput, counter UsageCounter) Decision {
	d := Decision{Promotion: p}
	if !IsWithinWindow(p.Conditions, in.Now, in.Zone) {
		d.Reason = ReasonOutsideWindow
		return d
	}

	d.UsageCount = counter(p.ID, in.Usage)

	legs := legsFor(in.PromotionMenus, p.ID)
	if len(legs) > 0 {
		d.Applicable = true
		d.Legs = make([]LegCheck, 0, len(legs))
		for _, leg := range legs {
			required := RequiredThreshold(float64(leg.QuantityRequired), d.UsageCount)
			ordered := in.MenuOrderData[leg.MenuID].Quantity
			met := float64(ordered) >= required
			d.Legs = append(d.Legs, LegCheck{MenuID: leg.MenuID, Required: required, Ordered: ordered, Met: met})
			if !met {
				d.Applicable = false
			}
		}
		if !d.Applicable {
			d.Reason = ReasonMenuNotMet
		}
		return d
	}

	if p.TotalPrice == nil {
		d.Reason = ReasonNoRequirements
		return d
	}

	required := RequiredThreshold(*p.TotalPrice, d.UsageCount)
	d.RequiredTotal = &required
	if in.TotalPrice >= required {
		d.Applicable = true
		return d
	}
	d.Reason = ReasonTotalNotMet
	return d
}

func precedes(a, b Promotion, legCount map[int64]int) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if la, lb := legCount[a.ID], legCount[b.ID]; la != lb {
		return la > lb
	}
	if a.TotalPrice != nil && b.TotalPrice != nil && *a.TotalPrice != *b.TotalPrice {
		return *a.TotalPrice > *b.TotalPrice
	}
	return a.Priority > b.Priority
}
