package promotion

import "time"

type DiscountType string

const (
	DiscountPercentage DiscountType = "PERCENTAGE"
	DiscountFixed      DiscountType = "FIXED_AMOUNT"
	DiscountFreeItem   DiscountType = "FREE_ITEM"
)

type Promotion struct {
	ID            int64
	LocationID    int64
	Name          string
	Priority      int
	DiscountType  DiscountType
	DiscountValue *float64
	TotalPrice    *float64
	Conditions    []Condition
	StartDate     time.Time
	EndDate       time.Time
	IsActive      bool
	Group         *string
	IsArchived    bool
}

// PromotionMenu is one leg of a menu-conditioned promotion.
type PromotionMenu struct {
	PromotionID      int64
	MenuID           int64
	QuantityRequired int
}

type PromotionUsage struct {
	PromotionID int64
	TableID     int64
	OrderSeq    string
}

type MenuOrder struct {
	MenuID   int64
	Quantity int
}

// MenuOrderData maps menuId to the merged quantity of the cart.
type MenuOrderData map[int64]MenuOrder

type CartLine struct {
	MenuID   int64
	Quantity int
	AddonIDs []int64
}

// AggregateCart merges cart lines of the same menu additively.
func AggregateCart(lines []CartLine) MenuOrderData {
	out := make(MenuOrderData, len(lines))
	for _, line := range lines {
		entry, ok := out[line.MenuID]
		if !ok {
			entry = MenuOrder{MenuID: line.MenuID}
		}
		entry.Quantity += line.Quantity
		out[line.MenuID] = entry
	}
	return out
}

// Snapshot is the immutable data set one evaluation runs against.
type Snapshot struct {
	Promotions     []Promotion
	PromotionMenus []PromotionMenu
	Usage          []PromotionUsage
}

// Legs returns the menu legs of a promotion in snapshot order.
func (s Snapshot) Legs(promotionID int64) []PromotionMenu {
	return legsFor(s.PromotionMenus, promotionID)
}

func (s Snapshot) Find(promotionID int64) (Promotion, bool) {
	for _, p := range s.Promotions {
		if p.ID == promotionID {
			return p, true
		}
	}
	return Promotion{}, false
}

func legsFor(menus []PromotionMenu, promotionID int64) []PromotionMenu {
	out := make([]PromotionMenu, 0)
	for _, m := range menus {
		if m.PromotionID == promotionID {
			out = append(out, m)
		}
	}
	return out
}

// Running reports whether the promotion is switched on and its date range
// covers now.
func (p Promotion) Running(now time.Time) bool {
	if !p.IsActive || p.IsArchived {
		return false
	}
	if !p.StartDate.IsZero() && now.Before(p.StartDate) {
		return false
	}
	if !p.EndDate.IsZero() && now.After(p.EndDate) {
		return false
	}
	return true
}
