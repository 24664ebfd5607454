package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"pos-promotion-services/internal/pricing"
	"pos-promotion-services/internal/promotion"
	"pos-promotion-services/internal/store"

	"go.uber.org/zap"
)

type Repository interface {
	LoadSnapshot(ctx context.Context, locationID int64, now time.Time) (promotion.Snapshot, error)
	LoadMenuPrices(ctx context.Context, menuIDs []int64) (map[int64]float64, error)
	LoadAddonLinks(ctx context.Context, menuIDs []int64) ([]promotion.MenuAddonCategory, map[int64]promotion.AddonCategory, error)
	LoadAddonPrices(ctx context.Context, pairs []promotion.AddonPricePair) (promotion.AddonPriceOverrides, map[int64]float64, error)
	RecordUsage(ctx context.Context, params store.RedeemParams, validate store.ValidateFunc) error
	AppendUsage(ctx context.Context, locationID int64, rows []promotion.PromotionUsage) (int, error)
}

type Publisher interface {
	PublishJSON(ctx context.Context, exchange, routingKey string, payload any) error
}

type Options struct {
	Zone     promotion.StoreZone
	CacheTTL time.Duration
	Exchange string
	Now      func() time.Time
}

type Evaluator struct {
	repo      Repository
	publisher Publisher
	logger    *zap.Logger
	zone      promotion.StoreZone
	exchange  string
	now       func() time.Time
	cache     *snapshotCache
}

// New builds an evaluator. publisher may be nil.
func New(repo Repository, publisher Publisher, logger *zap.Logger, opts Options) *Evaluator {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		zone:      opts.Zone,
		exchange:  opts.Exchange,
		now:       now,
		cache:     newSnapshotCache(opts.CacheTTL, now),
	}
}

type EvaluateRequest struct {
	LocationID int64
	TableID    int64
	Lines      []promotion.CartLine
	TotalPrice float64
	// PerTable scopes usage escalation to TableID instead of the whole
	// promotion.
	PerTable bool
	// PriceCart replaces TotalPrice with the cart priced from stored menu
	// and addon prices.
	PriceCart bool
}

type AppliedPromotion struct {
	Promotion       promotion.Promotion
	Legs            []promotion.PromotionMenu
	UsageCount      int
	Discount        pricing.Discount
	RequiredAddons  map[int64][]int64
	ConflictsWithID *int64
}

type EvaluateResult struct {
	EvaluatedAt time.Time
	// Subtotal is the total the promotions were evaluated against.
	Subtotal   float64
	Applicable []AppliedPromotion
	// Selected is Applicable reduced to one promotion per group.
	Selected []AppliedPromotion
	Rejected []promotion.Decision
}

func (e *Evaluator) snapshot(ctx context.Context, locationID int64) (promotion.Snapshot, error) {
	if snap, ok := e.cache.get(locationID); ok {
		return snap, nil
	}
	snap, err := e.repo.LoadSnapshot(ctx, locationID, e.now())
	if err != nil {
		e.logger.Error("promotion snapshot load failed", zap.Int64("locationId", locationID), zap.Error(err))
		return promotion.Snapshot{}, promotion.UnavailableError("Promotions are temporarily unavailable")
	}
	e.cache.set(locationID, snap)
	return snap, nil
}

func (e *Evaluator) Evaluate(ctx context.Context, req EvaluateRequest) (*EvaluateResult, error) {
	snap, err := e.snapshot(ctx, req.LocationID)
	if err != nil {
		return nil, err
	}
	if req.PriceCart {
		if req.TotalPrice, err = e.cartTotal(ctx, req.Lines); err != nil {
			return nil, err
		}
	}

	now := e.now()
	in := promotion.SelectInput{
		Promotions:     running(snap.Promotions, now),
		PromotionMenus: snap.PromotionMenus,
		MenuOrderData:  promotion.AggregateCart(req.Lines),
		TotalPrice:     req.TotalPrice,
		Usage:          snap.Usage,
		Now:            now,
		Zone:           e.zone,
	}
	if req.PerTable {
		in.Counter = promotion.CountByTable(req.TableID)
	}

	decisions := promotion.Explain(in)
	result := &EvaluateResult{
		EvaluatedAt: now,
		Subtotal:    req.TotalPrice,
		Applicable:  make([]AppliedPromotion, 0),
		Rejected:    make([]promotion.Decision, 0),
	}

	applicable := make([]promotion.Decision, 0, len(decisions))
	for _, d := range decisions {
		if d.Applicable {
			applicable = append(applicable, d)
		} else {
			result.Rejected = append(result.Rejected, d)
		}
	}
	if len(applicable) == 0 {
		result.Selected = make([]AppliedPromotion, 0)
		return result, nil
	}

	freeMenuIDs := freeItemMenus(applicable, snap)
	menuPrices, err := e.repo.LoadMenuPrices(ctx, freeMenuIDs)
	if err != nil {
		return nil, fmt.Errorf("load menu prices: %w", err)
	}
	required, err := e.requiredAddons(ctx, freeMenuIDs)
	if err != nil {
		return nil, err
	}

	ordered := make([]promotion.Promotion, 0, len(applicable))
	for _, d := range applicable {
		legs := snap.Legs(d.Promotion.ID)
		applied := AppliedPromotion{
			Promotion:  d.Promotion,
			Legs:       legs,
			UsageCount: d.UsageCount,
			Discount:   pricing.ComputeDiscount(d.Promotion, legs, req.TotalPrice, menuPrices),
		}
		if d.Promotion.DiscountType == promotion.DiscountFreeItem {
			applied.RequiredAddons = subsetByMenus(required, legs)
		}
		if other, ok := pricing.ConflictsWith(d.Promotion, ordered); ok {
			id := other.ID
			applied.ConflictsWithID = &id
		}
		ordered = append(ordered, d.Promotion)
		result.Applicable = append(result.Applicable, applied)
	}

	kept := make(map[int64]struct{}, len(ordered))
	for _, p := range pricing.ReduceByGroup(ordered) {
		kept[p.ID] = struct{}{}
	}
	result.Selected = make([]AppliedPromotion, 0, len(kept))
	for _, applied := range result.Applicable {
		if _, ok := kept[applied.Promotion.ID]; ok {
			result.Selected = append(result.Selected, applied)
		}
	}
	return result, nil
}

// cartTotal prices the cart from stored menu prices and the addon prices
// resolved for each menu.
func (e *Evaluator) cartTotal(ctx context.Context, lines []promotion.CartLine) (float64, error) {
	menuIDs := make([]int64, 0, len(lines))
	pairs := make([]promotion.AddonPricePair, 0)
	for _, line := range lines {
		menuIDs = append(menuIDs, line.MenuID)
		for _, addonID := range line.AddonIDs {
			pairs = append(pairs, promotion.AddonPricePair{MenuID: line.MenuID, AddonID: addonID})
		}
	}

	menuPrices, err := e.repo.LoadMenuPrices(ctx, dedupe(menuIDs))
	if err != nil {
		return 0, fmt.Errorf("load menu prices: %w", err)
	}
	var (
		overrides promotion.AddonPriceOverrides
		bases     map[int64]float64
	)
	if len(pairs) > 0 {
		if overrides, bases, err = e.repo.LoadAddonPrices(ctx, pairs); err != nil {
			return 0, fmt.Errorf("load addon prices: %w", err)
		}
	}

	total, missing := pricing.CartTotal(lines, menuPrices, overrides, bases)
	if len(missing) > 0 {
		return 0, promotion.ValidationError(promotion.ErrMenuNotFound, "Menu not found", map[string]any{
			"menuIds": dedupe(missing),
		})
	}
	return total, nil
}

// ActivePromotions lists the promotions whose window is open right now,
// independent of any cart.
func (e *Evaluator) ActivePromotions(ctx context.Context, locationID int64) ([]promotion.Promotion, error) {
	snap, err := e.snapshot(ctx, locationID)
	if err != nil {
		return nil, err
	}
	now := e.now()
	out := make([]promotion.Promotion, 0)
	for _, p := range running(snap.Promotions, now) {
		if promotion.IsWithinWindow(p.Conditions, now, e.zone) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out, nil
}

// RequiredAddons groups the required addon categories of the given menus. A
// promotion id may be given instead, in which case its leg menus are used.
func (e *Evaluator) RequiredAddons(ctx context.Context, locationID int64, promotionID int64, menuIDs []int64) (map[int64][]int64, error) {
	if promotionID != 0 {
		snap, err := e.snapshot(ctx, locationID)
		if err != nil {
			return nil, err
		}
		if _, ok := snap.Find(promotionID); !ok {
			return nil, promotion.NotFoundError(promotion.ErrPromotionNotFound, "Promotion not found")
		}
		for _, leg := range snap.Legs(promotionID) {
			menuIDs = append(menuIDs, leg.MenuID)
		}
	}
	return e.requiredAddons(ctx, dedupe(menuIDs))
}

func (e *Evaluator) requiredAddons(ctx context.Context, menuIDs []int64) (map[int64][]int64, error) {
	if len(menuIDs) == 0 {
		return map[int64][]int64{}, nil
	}
	links, categories, err := e.repo.LoadAddonLinks(ctx, menuIDs)
	if err != nil {
		return nil, fmt.Errorf("load addon links: %w", err)
	}
	return promotion.RequiredAddonCategoriesFor(menuIDs, links, categories), nil
}

func (e *Evaluator) ResolveAddonPrices(ctx context.Context, pairs []promotion.AddonPricePair) (map[promotion.AddonPriceKey]float64, error) {
	overrides, bases, err := e.repo.LoadAddonPrices(ctx, pairs)
	if err != nil {
		return nil, fmt.Errorf("load addon prices: %w", err)
	}
	return promotion.ResolveAddonPrices(pairs, overrides, bases), nil
}

type RedeemRequest struct {
	PromotionID int64
	LocationID  int64
	TableID     int64
	OrderSeq    string
	Lines       []promotion.CartLine
	TotalPrice  float64
	PerTable    bool
	PriceCart   bool
	// AlreadyApplied lists promotions already on the order, checked for
	// group conflicts.
	AlreadyApplied []int64
	// SelectedAddons maps a free menu to the addon categories the customer
	// picked.
	SelectedAddons map[int64][]int64
	RedeemedBy     *int64
}

type RedeemedEvent struct {
	Type        string    `json:"type"`
	PromotionID int64     `json:"promotionId"`
	LocationID  int64     `json:"locationId"`
	TableID     int64     `json:"tableId,omitempty"`
	OrderSeq    string    `json:"orderSeq"`
	RedeemedAt  time.Time `json:"redeemedAt"`
}

// Redeem re-validates a promotion against the usage visible inside the
// redemption transaction and records it.
func (e *Evaluator) Redeem(ctx context.Context, req RedeemRequest) error {
	snap, err := e.snapshot(ctx, req.LocationID)
	if err != nil {
		return err
	}
	if req.PriceCart {
		if req.TotalPrice, err = e.cartTotal(ctx, req.Lines); err != nil {
			return err
		}
	}
	p, ok := snap.Find(req.PromotionID)
	if ok {
		if err := checkGroupConflict(p, snap, req.AlreadyApplied); err != nil {
			return err
		}
	}

	if p.DiscountType == promotion.DiscountFreeItem {
		required, err := e.requiredAddons(ctx, legMenuIDs(snap.Legs(p.ID)))
		if err != nil {
			return err
		}
		if missing := missingAddons(required, req.SelectedAddons); len(missing) > 0 {
			return promotion.ValidationError(promotion.ErrRequiredAddonMissing, "Required addon selection is missing", map[string]any{
				"missing": missing,
			})
		}
	}

	params := store.RedeemParams{
		PromotionID: req.PromotionID,
		LocationID:  req.LocationID,
		TableID:     req.TableID,
		OrderSeq:    req.OrderSeq,
		RedeemedBy:  req.RedeemedBy,
	}
	err = e.repo.RecordUsage(ctx, params, func(locked promotion.Snapshot) error {
		return e.validateLocked(locked, req)
	})
	if err != nil {
		var perr *promotion.Error
		if !errors.As(err, &perr) {
			e.logger.Error("promotion redeem failed", zap.Int64("promotionId", req.PromotionID), zap.Error(err))
		}
		return err
	}

	e.cache.invalidate(req.LocationID)
	e.publishRedeemed(ctx, req)
	return nil
}

func (e *Evaluator) validateLocked(locked promotion.Snapshot, req RedeemRequest) error {
	now := e.now()
	p, ok := locked.Find(req.PromotionID)
	if !ok {
		return promotion.NotFoundError(promotion.ErrPromotionNotFound, "Promotion not found")
	}
	if !p.Running(now) {
		return promotion.ValidationError(promotion.ErrPromotionInactive, "Promotion is not active", nil)
	}

	in := promotion.SelectInput{
		Promotions:     locked.Promotions,
		PromotionMenus: locked.PromotionMenus,
		MenuOrderData:  promotion.AggregateCart(req.Lines),
		TotalPrice:     req.TotalPrice,
		Usage:          locked.Usage,
		Now:            now,
		Zone:           e.zone,
	}
	if req.PerTable {
		in.Counter = promotion.CountByTable(req.TableID)
	}
	for _, d := range promotion.Explain(in) {
		if d.Promotion.ID != req.PromotionID {
			continue
		}
		if d.Applicable {
			return nil
		}
		return promotion.ValidationError(promotion.ErrPromotionNotApplicable, "Promotion is not applicable", map[string]any{
			"reason":     string(d.Reason),
			"usageCount": d.UsageCount,
		})
	}
	return promotion.ValidationError(promotion.ErrPromotionNotApplicable, "Promotion is not applicable", nil)
}

func (e *Evaluator) publishRedeemed(ctx context.Context, req RedeemRequest) {
	if e.publisher == nil || e.exchange == "" {
		return
	}
	evt := RedeemedEvent{
		Type:        "promotion.redeemed",
		PromotionID: req.PromotionID,
		LocationID:  req.LocationID,
		TableID:     req.TableID,
		OrderSeq:    req.OrderSeq,
		RedeemedAt:  e.now().UTC(),
	}
	if err := e.publisher.PublishJSON(ctx, e.exchange, evt.Type, evt); err != nil {
		e.logger.Warn("promotion redeemed publish failed", zap.Int64("promotionId", req.PromotionID), zap.Error(err))
	}
}

// Invalidate drops the cached snapshot of a location.
func (e *Evaluator) Invalidate(locationID int64) {
	e.cache.invalidate(locationID)
}

// RecordOrderUsage appends usage rows for promotions applied at order
// creation.
func (e *Evaluator) RecordOrderUsage(ctx context.Context, locationID int64, rows []promotion.PromotionUsage) (int, error) {
	inserted, err := e.repo.AppendUsage(ctx, locationID, rows)
	if err != nil {
		return 0, err
	}
	e.cache.invalidate(locationID)
	return inserted, nil
}

func checkGroupConflict(p promotion.Promotion, snap promotion.Snapshot, applied []int64) error {
	others := make([]promotion.Promotion, 0, len(applied))
	for _, id := range applied {
		if other, ok := snap.Find(id); ok {
			others = append(others, other)
		}
	}
	if other, ok := pricing.ConflictsWith(p, others); ok {
		return promotion.ConflictError(promotion.ErrPromotionGroupConflict, "Promotion cannot be combined with an applied promotion", map[string]any{
			"conflictsWith": other.ID,
			"group":         *p.Group,
		})
	}
	return nil
}

func missingAddons(required map[int64][]int64, selected map[int64][]int64) map[int64][]int64 {
	out := make(map[int64][]int64)
	for menuID, categoryIDs := range required {
		picked := make(map[int64]struct{}, len(selected[menuID]))
		for _, id := range selected[menuID] {
			picked[id] = struct{}{}
		}
		for _, id := range categoryIDs {
			if _, ok := picked[id]; !ok {
				out[menuID] = append(out[menuID], id)
			}
		}
	}
	return out
}

func running(promotions []promotion.Promotion, now time.Time) []promotion.Promotion {
	out := make([]promotion.Promotion, 0, len(promotions))
	for _, p := range promotions {
		if p.Running(now) {
			out = append(out, p)
		}
	}
	return out
}

func freeItemMenus(decisions []promotion.Decision, snap promotion.Snapshot) []int64 {
	ids := make([]int64, 0)
	for _, d := range decisions {
		if d.Promotion.DiscountType != promotion.DiscountFreeItem {
			continue
		}
		ids = append(ids, legMenuIDs(snap.Legs(d.Promotion.ID))...)
	}
	return dedupe(ids)
}

func legMenuIDs(legs []promotion.PromotionMenu) []int64 {
	out := make([]int64, 0, len(legs))
	for _, leg := range legs {
		out = append(out, leg.MenuID)
	}
	return out
}

func subsetByMenus(required map[int64][]int64, legs []promotion.PromotionMenu) map[int64][]int64 {
	out := make(map[int64][]int64)
	for _, leg := range legs {
		if ids, ok := required[leg.MenuID]; ok {
			out[leg.MenuID] = ids
		}
	}
	return out
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
