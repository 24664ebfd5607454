package auth

import "strings"

type StaffPermission string

const (
	PermPromotions       StaffPermission = "promotions"
	PermPromotionRedeem  StaffPermission = "promotion_redeem"
	PermAddonPriceLookup StaffPermission = "addon_prices"
)

var apiPermissionMap = map[string]StaffPermission{
	"/api/staff/promotions":             PermPromotions,
	"POST /api/staff/promotions/redeem": PermPromotionRedeem,
	"/api/staff/addon-prices":           PermAddonPriceLookup,
}

// GetPermissionForAPI returns the permission guarding a staff route. The
// longest matching prefix wins; a method-specific key beats a plain one of
// the same length.
func GetPermissionForAPI(path string, method string) *StaffPermission {
	method = strings.ToUpper(strings.TrimSpace(method))

	var bestPath string
	var bestPerm *StaffPermission
	var bestMethodSpecific bool

	for key, perm := range apiPermissionMap {
		keyPath := key
		methodSpecific := false
		if strings.Contains(key, " ") {
			parts := strings.SplitN(key, " ", 2)
			keyMethod := strings.ToUpper(strings.TrimSpace(parts[0]))
			keyPath = strings.TrimSpace(parts[1])
			methodSpecific = true
			if method == "" || method != keyMethod {
				continue
			}
		}

		if !strings.HasPrefix(path, keyPath) {
			continue
		}

		if bestPerm == nil || len(keyPath) > len(bestPath) || (len(keyPath) == len(bestPath) && methodSpecific && !bestMethodSpecific) {
			bestPath = keyPath
			bestMethodSpecific = methodSpecific
			permCopy := perm
			bestPerm = &permCopy
		}
	}

	return bestPerm
}
