package pricing

import (
	"strings"

	"pos-promotion-services/internal/promotion"
)

// ReduceByGroup keeps, in order, the first promotion of every group.
// Promotions without a group never conflict.
func ReduceByGroup(ordered []promotion.Promotion) []promotion.Promotion {
	seen := make(map[string]struct{})
	out := make([]promotion.Promotion, 0, len(ordered))
	for _, p := range ordered {
		group := groupOf(p)
		if group == "" {
			out = append(out, p)
			continue
		}
		if _, ok := seen[group]; ok {
			continue
		}
		seen[group] = struct{}{}
		out = append(out, p)
	}
	return out
}

// ConflictsWith returns the first promotion in applied sharing p's group.
func ConflictsWith(p promotion.Promotion, applied []promotion.Promotion) (promotion.Promotion, bool) {
	group := groupOf(p)
	if group == "" {
		return promotion.Promotion{}, false
	}
	for _, other := range applied {
		if other.ID != p.ID && groupOf(other) == group {
			return other, true
		}
	}
	return promotion.Promotion{}, false
}

func groupOf(p promotion.Promotion) string {
	if p.Group == nil {
		return ""
	}
	return strings.TrimSpace(*p.Group)
}
