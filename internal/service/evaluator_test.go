package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"pos-promotion-services/internal/promotion"
	"pos-promotion-services/internal/store"
)

type fakeRepo struct {
	snapshot   promotion.Snapshot
	loadErr    error
	loads      int
	menuPrices map[int64]float64
	links      []promotion.MenuAddonCategory
	categories map[int64]promotion.AddonCategory
	overrides  promotion.AddonPriceOverrides
	bases      map[int64]float64
	recorded   []store.RedeemParams
	appended   []promotion.PromotionUsage
	appendLoc  int64
	pricePairs []promotion.AddonPricePair
}

func (f *fakeRepo) LoadSnapshot(ctx context.Context, locationID int64, now time.Time) (promotion.Snapshot, error) {
	f.loads++
	return f.snapshot, f.loadErr
}

func (f *fakeRepo) LoadMenuPrices(ctx context.Context, menuIDs []int64) (map[int64]float64, error) {
	return f.menuPrices, nil
}

func (f *fakeRepo) LoadAddonLinks(ctx context.Context, menuIDs []int64) ([]promotion.MenuAddonCategory, map[int64]promotion.AddonCategory, error) {
	return f.links, f.categories, nil
}

func (f *fakeRepo) LoadAddonPrices(ctx context.Context, pairs []promotion.AddonPricePair) (promotion.AddonPriceOverrides, map[int64]float64, error) {
	f.pricePairs = append(f.pricePairs, pairs...)
	return f.overrides, f.bases, nil
}

func (f *fakeRepo) RecordUsage(ctx context.Context, params store.RedeemParams, validate store.ValidateFunc) error {
	if err := validate(f.snapshot); err != nil {
		return err
	}
	f.recorded = append(f.recorded, params)
	f.snapshot.Usage = append(f.snapshot.Usage, promotion.PromotionUsage{PromotionID: params.PromotionID, TableID: params.TableID, OrderSeq: params.OrderSeq})
	return nil
}

func (f *fakeRepo) AppendUsage(ctx context.Context, locationID int64, rows []promotion.PromotionUsage) (int, error) {
	f.appendLoc = locationID
	f.appended = append(f.appended, rows...)
	return len(rows), nil
}

type fakePublisher struct {
	keys []string
}

func (p *fakePublisher) PublishJSON(ctx context.Context, exchange, routingKey string, payload any) error {
	p.keys = append(p.keys, routingKey)
	return nil
}

func floatPtr(v float64) *float64 { return &v }

func strPtr(v string) *string { return &v }

// Monday 2024-01-01 12:00 at UTC+6:30.
var fixedNow = time.Date(2024, 1, 1, 5, 30, 0, 0, time.UTC)

func live(p promotion.Promotion) promotion.Promotion {
	p.IsActive = true
	p.StartDate = fixedNow.Add(-24 * time.Hour)
	p.EndDate = fixedNow.Add(24 * time.Hour)
	return p
}

func newTestEvaluator(repo *fakeRepo, pub Publisher) *Evaluator {
	return New(repo, pub, nil, Options{
		Zone:     promotion.NewStoreZone(promotion.DefaultStoreOffsetMinutes),
		CacheTTL: time.Minute,
		Exchange: "pos.events",
		Now:      func() time.Time { return fixedNow },
	})
}

func TestEvaluateComputesDiscountsAndGroups(t *testing.T) {
	repo := &fakeRepo{
		snapshot: promotion.Snapshot{
			Promotions: []promotion.Promotion{
				live(promotion.Promotion{ID: 1, Priority: 3, DiscountType: promotion.DiscountPercentage, DiscountValue: floatPtr(10), TotalPrice: floatPtr(1000), Group: strPtr("lunch")}),
				live(promotion.Promotion{ID: 2, Priority: 2, DiscountType: promotion.DiscountFixed, DiscountValue: floatPtr(200), TotalPrice: floatPtr(500), Group: strPtr("lunch")}),
				live(promotion.Promotion{ID: 3, Priority: 1, DiscountType: promotion.DiscountFreeItem}),
				live(promotion.Promotion{ID: 4, Priority: 9, TotalPrice: floatPtr(99999)}),
			},
			PromotionMenus: []promotion.PromotionMenu{{PromotionID: 3, MenuID: 50, QuantityRequired: 2}},
		},
		menuPrices: map[int64]float64{50: 350},
		links:      []promotion.MenuAddonCategory{{MenuID: 50, AddonCategoryID: 8}},
		categories: map[int64]promotion.AddonCategory{8: {ID: 8, IsRequired: true}},
	}
	ev := newTestEvaluator(repo, nil)

	result, err := ev.Evaluate(context.Background(), EvaluateRequest{
		LocationID: 1,
		Lines:      []promotion.CartLine{{MenuID: 50, Quantity: 2}},
		TotalPrice: 2000,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Applicable) != 3 {
		t.Fatalf("expected 3 applicable promotions, got %d", len(result.Applicable))
	}
	if result.Applicable[0].Promotion.ID != 1 || result.Applicable[0].Discount.Amount != 200 {
		t.Fatalf("unexpected first promotion %+v", result.Applicable[0])
	}
	if result.Applicable[1].ConflictsWithID == nil || *result.Applicable[1].ConflictsWithID != 1 {
		t.Fatalf("expected promotion 2 to conflict with 1")
	}
	free := result.Applicable[2]
	if free.Discount.Amount != 350 || len(free.RequiredAddons[50]) != 1 {
		t.Fatalf("unexpected free item promotion %+v", free)
	}
	if len(result.Selected) != 2 || result.Selected[1].Promotion.ID != 3 {
		t.Fatalf("unexpected selection %+v", result.Selected)
	}
	if len(result.Rejected) != 1 || result.Rejected[0].Reason != promotion.ReasonTotalNotMet {
		t.Fatalf("unexpected rejected %+v", result.Rejected)
	}
}

func TestEvaluateSelectsFirstPerGroup(t *testing.T) {
	repo := &fakeRepo{
		snapshot: promotion.Snapshot{
			Promotions: []promotion.Promotion{
				live(promotion.Promotion{ID: 1, Priority: 5, DiscountType: promotion.DiscountFixed, DiscountValue: floatPtr(10), TotalPrice: floatPtr(1), Group: strPtr("lunch")}),
				live(promotion.Promotion{ID: 2, Priority: 4, DiscountType: promotion.DiscountFixed, DiscountValue: floatPtr(10), TotalPrice: floatPtr(1), Group: strPtr(" lunch ")}),
				live(promotion.Promotion{ID: 3, Priority: 3, DiscountType: promotion.DiscountFixed, DiscountValue: floatPtr(10), TotalPrice: floatPtr(1), Group: strPtr("")}),
				live(promotion.Promotion{ID: 4, Priority: 2, DiscountType: promotion.DiscountFixed, DiscountValue: floatPtr(10), TotalPrice: floatPtr(1)}),
			},
		},
	}
	ev := newTestEvaluator(repo, nil)

	result, err := ev.Evaluate(context.Background(), EvaluateRequest{LocationID: 1, TotalPrice: 100})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Applicable) != 4 {
		t.Fatalf("expected 4 applicable promotions, got %d", len(result.Applicable))
	}
	var got []int64
	for _, applied := range result.Selected {
		got = append(got, applied.Promotion.ID)
	}
	if len(got) != 3 || got[0] != 1 || got[1] != 3 || got[2] != 4 {
		t.Fatalf("expected selection [1 3 4], got %v", got)
	}
}

func TestEvaluatePricesCart(t *testing.T) {
	repo := &fakeRepo{
		snapshot: promotion.Snapshot{
			Promotions: []promotion.Promotion{
				live(promotion.Promotion{ID: 1, DiscountType: promotion.DiscountPercentage, DiscountValue: floatPtr(10), TotalPrice: floatPtr(250)}),
			},
		},
		menuPrices: map[int64]float64{50: 100, 60: 40},
		overrides:  promotion.AddonPriceOverrides{{MenuID: 50, AddonID: 9}: 15},
		bases:      map[int64]float64{9: 10, 10: 5},
	}
	ev := newTestEvaluator(repo, nil)

	result, err := ev.Evaluate(context.Background(), EvaluateRequest{
		LocationID: 1,
		Lines: []promotion.CartLine{
			{MenuID: 50, Quantity: 2, AddonIDs: []int64{9}},
			{MenuID: 60, Quantity: 1, AddonIDs: []int64{10}},
		},
		TotalPrice: 1,
		PriceCart:  true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Subtotal != 275 {
		t.Fatalf("expected subtotal 275, got %v", result.Subtotal)
	}
	if len(result.Applicable) != 1 || result.Applicable[0].Discount.Amount != 27.5 {
		t.Fatalf("unexpected applicable %+v", result.Applicable)
	}
	if len(repo.pricePairs) != 2 || repo.pricePairs[0] != (promotion.AddonPricePair{MenuID: 50, AddonID: 9}) {
		t.Fatalf("unexpected addon pairs %+v", repo.pricePairs)
	}
}

func TestEvaluatePriceCartUnknownMenu(t *testing.T) {
	repo := &fakeRepo{menuPrices: map[int64]float64{50: 100}}
	ev := newTestEvaluator(repo, nil)

	_, err := ev.Evaluate(context.Background(), EvaluateRequest{
		LocationID: 1,
		Lines:      []promotion.CartLine{{MenuID: 50, Quantity: 1}, {MenuID: 77, Quantity: 1}},
		PriceCart:  true,
	})
	var perr *promotion.Error
	if !errors.As(err, &perr) || perr.Code != promotion.ErrMenuNotFound {
		t.Fatalf("expected menu not found, got %v", err)
	}
}

func TestEvaluateUsesCache(t *testing.T) {
	repo := &fakeRepo{}
	ev := newTestEvaluator(repo, nil)
	for i := 0; i < 3; i++ {
		if _, err := ev.Evaluate(context.Background(), EvaluateRequest{LocationID: 1}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if repo.loads != 1 {
		t.Fatalf("expected one snapshot load, got %d", repo.loads)
	}
}

func TestEvaluateSnapshotUnavailable(t *testing.T) {
	ev := newTestEvaluator(&fakeRepo{loadErr: errors.New("down")}, nil)
	_, err := ev.Evaluate(context.Background(), EvaluateRequest{LocationID: 1})
	var perr *promotion.Error
	if !errors.As(err, &perr) || perr.Code != promotion.ErrSnapshotUnavailable {
		t.Fatalf("expected snapshot unavailable, got %v", err)
	}
}

func TestRedeemEscalatesThreshold(t *testing.T) {
	repo := &fakeRepo{
		snapshot: promotion.Snapshot{
			Promotions: []promotion.Promotion{live(promotion.Promotion{ID: 1, TotalPrice: floatPtr(10000), DiscountType: promotion.DiscountFixed, DiscountValue: floatPtr(500)})},
		},
	}
	pub := &fakePublisher{}
	ev := newTestEvaluator(repo, pub)

	req := RedeemRequest{PromotionID: 1, LocationID: 1, TableID: 4, OrderSeq: "A1", TotalPrice: 15000}
	if err := ev.Redeem(context.Background(), req); err != nil {
		t.Fatalf("first redeem failed: %v", err)
	}

	req.OrderSeq = "A2"
	err := ev.Redeem(context.Background(), req)
	var perr *promotion.Error
	if !errors.As(err, &perr) || perr.Code != promotion.ErrPromotionNotApplicable {
		t.Fatalf("expected second redeem to need 20000, got %v", err)
	}

	req.TotalPrice = 20000
	if err := ev.Redeem(context.Background(), req); err != nil {
		t.Fatalf("third redeem failed: %v", err)
	}
	if len(repo.recorded) != 2 || len(pub.keys) != 2 || pub.keys[0] != "promotion.redeemed" {
		t.Fatalf("unexpected side effects recorded=%d published=%v", len(repo.recorded), pub.keys)
	}
}

func TestRedeemRejectsGroupConflict(t *testing.T) {
	repo := &fakeRepo{
		snapshot: promotion.Snapshot{
			Promotions: []promotion.Promotion{
				live(promotion.Promotion{ID: 1, TotalPrice: floatPtr(1), Group: strPtr("happy-hour")}),
				live(promotion.Promotion{ID: 2, TotalPrice: floatPtr(1), Group: strPtr("happy-hour")}),
			},
		},
	}
	ev := newTestEvaluator(repo, nil)
	err := ev.Redeem(context.Background(), RedeemRequest{PromotionID: 2, LocationID: 1, TotalPrice: 10, AlreadyApplied: []int64{1}})
	var perr *promotion.Error
	if !errors.As(err, &perr) || perr.Code != promotion.ErrPromotionGroupConflict {
		t.Fatalf("expected group conflict, got %v", err)
	}
}

func TestRedeemRequiresAddonsForFreeItem(t *testing.T) {
	repo := &fakeRepo{
		snapshot: promotion.Snapshot{
			Promotions:     []promotion.Promotion{live(promotion.Promotion{ID: 5, DiscountType: promotion.DiscountFreeItem})},
			PromotionMenus: []promotion.PromotionMenu{{PromotionID: 5, MenuID: 7, QuantityRequired: 1}},
		},
		links:      []promotion.MenuAddonCategory{{MenuID: 7, AddonCategoryID: 3}, {MenuID: 7, AddonCategoryID: 4}},
		categories: map[int64]promotion.AddonCategory{3: {ID: 3, IsRequired: true}, 4: {ID: 4}},
	}
	ev := newTestEvaluator(repo, nil)
	req := RedeemRequest{PromotionID: 5, LocationID: 1, Lines: []promotion.CartLine{{MenuID: 7, Quantity: 1}}}

	err := ev.Redeem(context.Background(), req)
	var perr *promotion.Error
	if !errors.As(err, &perr) || perr.Code != promotion.ErrRequiredAddonMissing {
		t.Fatalf("expected missing addon error, got %v", err)
	}

	req.SelectedAddons = map[int64][]int64{7: {3}}
	if err := ev.Redeem(context.Background(), req); err != nil {
		t.Fatalf("expected redeem with addons to pass, got %v", err)
	}
}

func TestRequiredAddonsByPromotion(t *testing.T) {
	repo := &fakeRepo{
		snapshot: promotion.Snapshot{
			Promotions:     []promotion.Promotion{live(promotion.Promotion{ID: 5})},
			PromotionMenus: []promotion.PromotionMenu{{PromotionID: 5, MenuID: 7, QuantityRequired: 1}},
		},
		links:      []promotion.MenuAddonCategory{{MenuID: 7, AddonCategoryID: 3}, {MenuID: 7, AddonCategoryID: 4}},
		categories: map[int64]promotion.AddonCategory{3: {ID: 3, IsRequired: true}, 4: {ID: 4}},
	}
	ev := newTestEvaluator(repo, nil)

	got, err := ev.RequiredAddons(context.Background(), 1, 5, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || len(got[7]) != 1 || got[7][0] != 3 {
		t.Fatalf("unexpected required addons %v", got)
	}

	_, err = ev.RequiredAddons(context.Background(), 1, 99, nil)
	var perr *promotion.Error
	if !errors.As(err, &perr) || perr.Code != promotion.ErrPromotionNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestActivePromotionsFiltersWindowAndDates(t *testing.T) {
	expired := live(promotion.Promotion{ID: 3, Priority: 9})
	expired.EndDate = fixedNow.Add(-time.Hour)
	repo := &fakeRepo{
		snapshot: promotion.Snapshot{
			Promotions: []promotion.Promotion{
				live(promotion.Promotion{ID: 1, Priority: 1, Conditions: []promotion.Condition{promotion.DayWindow{Days: []string{"Monday"}}}}),
				live(promotion.Promotion{ID: 2, Priority: 5, Conditions: []promotion.Condition{promotion.DayWindow{Days: []string{"Sunday"}}}}),
				expired,
				live(promotion.Promotion{ID: 4, Priority: 2}),
			},
		},
	}
	ev := newTestEvaluator(repo, nil)

	got, err := ev.ActivePromotions(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].ID != 4 || got[1].ID != 1 {
		t.Fatalf("unexpected active promotions %+v", got)
	}
}

func TestRecordOrderUsageInvalidatesCache(t *testing.T) {
	repo := &fakeRepo{}
	ev := newTestEvaluator(repo, nil)
	if _, err := ev.ActivePromotions(context.Background(), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	n, err := ev.RecordOrderUsage(context.Background(), 1, []promotion.PromotionUsage{{PromotionID: 1, OrderSeq: "B1"}})
	if err != nil || n != 1 {
		t.Fatalf("unexpected result %d %v", n, err)
	}
	if repo.appendLoc != 1 {
		t.Fatalf("expected usage scoped to location 1, got %d", repo.appendLoc)
	}
	if _, err := ev.ActivePromotions(context.Background(), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.loads != 2 {
		t.Fatalf("expected reload after usage, got %d loads", repo.loads)
	}
}

func TestInvalidateForcesReload(t *testing.T) {
	repo := &fakeRepo{}
	ev := newTestEvaluator(repo, nil)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := ev.ActivePromotions(ctx, 1); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if repo.loads != 1 {
		t.Fatalf("expected cached snapshot, got %d loads", repo.loads)
	}
	ev.Invalidate(1)
	if _, err := ev.ActivePromotions(ctx, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.loads != 2 {
		t.Fatalf("expected reload after invalidate, got %d loads", repo.loads)
	}
}
