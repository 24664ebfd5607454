package promotion

// RequiredThreshold escalates a base requirement by the number of prior
// redemptions: the Nth redemption needs N full thresholds.
func RequiredThreshold(base float64, usageCount int) float64 {
	if usageCount <= 0 {
		return base
	}
	return base + base*float64(usageCount)
}

// UsageCounter decides which usage rows count against a promotion.
type UsageCounter func(promotionID int64, usage []PromotionUsage) int

// CountByPromotion counts every usage row of the promotion regardless of
// table or order.
func CountByPromotion(promotionID int64, usage []PromotionUsage) int {
	count := 0
	for _, u := range usage {
		if u.PromotionID == promotionID {
			count++
		}
	}
	return count
}

// CountByTable scopes usage to a single table.
func CountByTable(tableID int64) UsageCounter {
	return func(promotionID int64, usage []PromotionUsage) int {
		count := 0
		for _, u := range usage {
			if u.PromotionID == promotionID && u.TableID == tableID {
				count++
			}
		}
		return count
	}
}
