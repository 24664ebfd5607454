package pricing

import (
	"pos-promotion-services/internal/promotion"

	"github.com/shopspring/decimal"
)

const currencyPlaces = 2

type Discount struct {
	PromotionID  int64
	Label        string
	DiscountType promotion.DiscountType
	Amount       float64
	// FreeMenuID is set for free-item promotions.
	FreeMenuID *int64
}

// ComputeDiscount prices an applicable promotion against the cart subtotal.
// menuPrices carries the unit price of every menu on the promotion's legs;
// free-item promotions give away one unit of the cheapest leg menu.
func ComputeDiscount(p promotion.Promotion, legs []promotion.PromotionMenu, subtotal float64, menuPrices map[int64]float64) Discount {
	result := Discount{PromotionID: p.ID, Label: p.Name, DiscountType: p.DiscountType}
	base := decimal.NewFromFloat(subtotal)
	if base.IsNegative() {
		base = decimal.Zero
	}

	var amount decimal.Decimal
	switch p.DiscountType {
	case promotion.DiscountPercentage:
		pct := clamp(valueOf(p.DiscountValue), decimal.Zero, decimal.NewFromInt(100))
		amount = base.Mul(pct).Div(decimal.NewFromInt(100))
	case promotion.DiscountFixed:
		amount = decimal.Min(valueOf(p.DiscountValue), base)
	case promotion.DiscountFreeItem:
		menuID, price, ok := cheapestLeg(legs, menuPrices)
		if ok {
			result.FreeMenuID = &menuID
			amount = price
		}
	}

	if amount.IsNegative() {
		amount = decimal.Zero
	}
	result.Amount = amount.Round(currencyPlaces).InexactFloat64()
	return result
}

// LineTotal prices one cart line: menu price plus each addon resolved for
// that menu, times quantity.
func LineTotal(menuID int64, menuPrice float64, quantity int, addonIDs []int64, overrides promotion.AddonPriceOverrides, addonBase map[int64]float64) float64 {
	unit := decimal.NewFromFloat(menuPrice)
	for _, addonID := range addonIDs {
		price := promotion.ResolveAddonPrice(menuID, addonID, overrides, addonBase[addonID])
		unit = unit.Add(decimal.NewFromFloat(price))
	}
	return unit.Mul(decimal.NewFromInt(int64(quantity))).Round(currencyPlaces).InexactFloat64()
}

// CartTotal sums LineTotal over the cart. Lines whose menu has no price are
// left out and their menu ids returned.
func CartTotal(lines []promotion.CartLine, menuPrices map[int64]float64, overrides promotion.AddonPriceOverrides, addonBase map[int64]float64) (float64, []int64) {
	total := decimal.Zero
	missing := make([]int64, 0)
	for _, line := range lines {
		price, ok := menuPrices[line.MenuID]
		if !ok {
			missing = append(missing, line.MenuID)
			continue
		}
		total = total.Add(decimal.NewFromFloat(LineTotal(line.MenuID, price, line.Quantity, line.AddonIDs, overrides, addonBase)))
	}
	return total.Round(currencyPlaces).InexactFloat64(), missing
}

func cheapestLeg(legs []promotion.PromotionMenu, menuPrices map[int64]float64) (int64, decimal.Decimal, bool) {
	var (
		bestID    int64
		bestPrice decimal.Decimal
		found     bool
	)
	for _, leg := range legs {
		price, ok := menuPrices[leg.MenuID]
		if !ok {
			continue
		}
		d := decimal.NewFromFloat(price)
		if !found || d.LessThan(bestPrice) {
			bestID, bestPrice, found = leg.MenuID, d, true
		}
	}
	return bestID, bestPrice, found
}

func valueOf(v *float64) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromFloat(*v)
}

func clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	return decimal.Max(lo, decimal.Min(v, hi))
}
