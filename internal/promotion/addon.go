package promotion

import "fmt"

type AddonCategory struct {
	ID         int64
	Name       string
	IsRequired bool
}

// MenuAddonCategory links a menu to one of its addon categories.
type MenuAddonCategory struct {
	MenuID          int64
	AddonCategoryID int64
}

// RequiredAddonCategoriesFor groups, per requested menu, the linked addon
// categories flagged as required, in first-encounter order.
func RequiredAddonCategoriesFor(menuIDs []int64, links []MenuAddonCategory, categories map[int64]AddonCategory) map[int64][]int64 {
	wanted := make(map[int64]struct{}, len(menuIDs))
	for _, id := range menuIDs {
		wanted[id] = struct{}{}
	}

	out := make(map[int64][]int64)
	for _, link := range links {
		if _, ok := wanted[link.MenuID]; !ok {
			continue
		}
		cat, ok := categories[link.AddonCategoryID]
		if !ok || !cat.IsRequired {
			continue
		}
		out[link.MenuID] = append(out[link.MenuID], link.AddonCategoryID)
	}
	return out
}

type AddonPriceKey struct {
	MenuID  int64
	AddonID int64
}

// String renders the key as "menuId-addonId".
func (k AddonPriceKey) String() string {
	return fmt.Sprintf("%d-%d", k.MenuID, k.AddonID)
}

type AddonPriceOverrides map[AddonPriceKey]float64

// ResolveAddonPrice returns the menu-specific price of an addon, or its base
// price when no override exists.
func ResolveAddonPrice(menuID, addonID int64, overrides AddonPriceOverrides, basePrice float64) float64 {
	if price, ok := overrides[AddonPriceKey{MenuID: menuID, AddonID: addonID}]; ok {
		return price
	}
	return basePrice
}

type AddonPricePair struct {
	MenuID  int64
	AddonID int64
}

// ResolveAddonPrices resolves many pairs in one pass. Pairs whose addon has
// no base price and no override resolve to 0.
func ResolveAddonPrices(pairs []AddonPricePair, overrides AddonPriceOverrides, basePrices map[int64]float64) map[AddonPriceKey]float64 {
	out := make(map[AddonPriceKey]float64, len(pairs))
	for _, pair := range pairs {
		key := AddonPriceKey{MenuID: pair.MenuID, AddonID: pair.AddonID}
		out[key] = ResolveAddonPrice(pair.MenuID, pair.AddonID, overrides, basePrices[pair.AddonID])
	}
	return out
}
