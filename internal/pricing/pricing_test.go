package pricing

import (
	"reflect"
	"testing"

	"pos-promotion-services/internal/promotion"
)

func floatPtr(v float64) *float64 { return &v }

func strPtr(v string) *string { return &v }

func TestComputeDiscount(t *testing.T) {
	legs := []promotion.PromotionMenu{
		{PromotionID: 1, MenuID: 10, QuantityRequired: 2},
		{PromotionID: 1, MenuID: 11, QuantityRequired: 1},
	}
	prices := map[int64]float64{10: 4500, 11: 3200}

	cases := []struct {
		name     string
		promo    promotion.Promotion
		subtotal float64
		expected float64
	}{
		{
			name:     "percentage",
			promo:    promotion.Promotion{ID: 1, DiscountType: promotion.DiscountPercentage, DiscountValue: floatPtr(15)},
			subtotal: 12345,
			expected: 1851.75,
		},
		{
			name:     "percentage clamped",
			promo:    promotion.Promotion{ID: 1, DiscountType: promotion.DiscountPercentage, DiscountValue: floatPtr(150)},
			subtotal: 800,
			expected: 800,
		},
		{
			name:     "fixed capped at subtotal",
			promo:    promotion.Promotion{ID: 1, DiscountType: promotion.DiscountFixed, DiscountValue: floatPtr(5000)},
			subtotal: 3000,
			expected: 3000,
		},
		{
			name:     "fixed",
			promo:    promotion.Promotion{ID: 1, DiscountType: promotion.DiscountFixed, DiscountValue: floatPtr(1000)},
			subtotal: 3000,
			expected: 1000,
		},
		{
			name:     "free item takes cheapest leg",
			promo:    promotion.Promotion{ID: 1, DiscountType: promotion.DiscountFreeItem},
			subtotal: 20000,
			expected: 3200,
		},
		{
			name:     "missing value",
			promo:    promotion.Promotion{ID: 1, DiscountType: promotion.DiscountFixed},
			subtotal: 3000,
			expected: 0,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeDiscount(tc.promo, legs, tc.subtotal, prices)
			if got.Amount != tc.expected {
				t.Fatalf("expected %v, got %v", tc.expected, got.Amount)
			}
		})
	}
}

func TestComputeDiscountFreeItemMenu(t *testing.T) {
	legs := []promotion.PromotionMenu{{PromotionID: 1, MenuID: 10, QuantityRequired: 1}}
	got := ComputeDiscount(promotion.Promotion{ID: 1, DiscountType: promotion.DiscountFreeItem}, legs, 100, map[int64]float64{10: 60})
	if got.FreeMenuID == nil || *got.FreeMenuID != 10 {
		t.Fatalf("expected free menu 10, got %v", got.FreeMenuID)
	}

	got = ComputeDiscount(promotion.Promotion{ID: 1, DiscountType: promotion.DiscountFreeItem}, legs, 100, nil)
	if got.FreeMenuID != nil || got.Amount != 0 {
		t.Fatalf("expected no free item without prices, got %#v", got)
	}
}

func TestLineTotal(t *testing.T) {
	overrides := promotion.AddonPriceOverrides{{MenuID: 1, AddonID: 5}: 450}
	got := LineTotal(1, 3000, 2, []int64{5, 6}, overrides, map[int64]float64{5: 300, 6: 100.1})
	if got != 7100.2 {
		t.Fatalf("expected 7100.2, got %v", got)
	}
}

func TestCartTotal(t *testing.T) {
	lines := []promotion.CartLine{
		{MenuID: 1, Quantity: 2, AddonIDs: []int64{5}},
		{MenuID: 2, Quantity: 3},
		{MenuID: 9, Quantity: 1},
	}
	overrides := promotion.AddonPriceOverrides{{MenuID: 1, AddonID: 5}: 0.1}
	total, missing := CartTotal(lines, map[int64]float64{1: 0.2, 2: 1.1}, overrides, map[int64]float64{5: 9})
	if total != 3.9 {
		t.Fatalf("expected 3.9, got %v", total)
	}
	if !reflect.DeepEqual(missing, []int64{9}) {
		t.Fatalf("expected missing [9], got %v", missing)
	}
}

func TestReduceByGroup(t *testing.T) {
	ordered := []promotion.Promotion{
		{ID: 1, Group: strPtr("lunch")},
		{ID: 2},
		{ID: 3, Group: strPtr("lunch")},
		{ID: 4, Group: strPtr("drinks")},
		{ID: 5, Group: strPtr(" ")},
		{ID: 6, Group: strPtr("drinks")},
	}

	got := ReduceByGroup(ordered)
	gotIDs := make([]int64, 0, len(got))
	for _, p := range got {
		gotIDs = append(gotIDs, p.ID)
	}
	if !reflect.DeepEqual(gotIDs, []int64{1, 2, 4, 5}) {
		t.Fatalf("unexpected reduction %v", gotIDs)
	}
}

func TestConflictsWith(t *testing.T) {
	applied := []promotion.Promotion{{ID: 1, Group: strPtr("lunch")}, {ID: 2}}
	if other, ok := ConflictsWith(promotion.Promotion{ID: 3, Group: strPtr("lunch")}, applied); !ok || other.ID != 1 {
		t.Fatalf("expected conflict with 1")
	}
	if _, ok := ConflictsWith(promotion.Promotion{ID: 4}, applied); ok {
		t.Fatalf("expected untagged promotion to never conflict")
	}
}
