package store

import (
	"context"
	"fmt"
	"time"

	"pos-promotion-services/internal/promotion"
	"pos-promotion-services/internal/utils"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	db *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const promotionColumns = `
	p.id, p.location_id, p.name, p.priority, p.discount_type, p.discount_value, p.total_price,
	p.conditions, p.start_date, p.end_date, p.is_active, p."group", p.is_archived
`

// LoadSnapshot loads the running promotions of a location together with
// their menu legs and usage rows.
func (s *Store) LoadSnapshot(ctx context.Context, locationID int64, now time.Time) (promotion.Snapshot, error) {
	rows, err := s.db.Query(ctx, `
		select `+promotionColumns+`
		from promotions p
		where p.location_id = $1
		  and p.is_active = true
		  and p.is_archived = false
		  and p.start_date <= $2
		  and p.end_date >= $2
		order by p.id asc
	`, locationID, now)
	if err != nil {
		return promotion.Snapshot{}, fmt.Errorf("load promotions: %w", err)
	}
	promotions, err := scanPromotions(rows)
	if err != nil {
		return promotion.Snapshot{}, err
	}

	promotionIDs := make([]int64, 0, len(promotions))
	for _, p := range promotions {
		promotionIDs = append(promotionIDs, p.ID)
	}
	return completeSnapshot(ctx, s.db, promotions, promotionIDs)
}

func completeSnapshot(ctx context.Context, q querier, promotions []promotion.Promotion, promotionIDs []int64) (promotion.Snapshot, error) {
	snapshot := promotion.Snapshot{Promotions: promotions}
	if len(promotionIDs) == 0 {
		return snapshot, nil
	}

	menus, err := loadPromotionMenus(ctx, q, promotionIDs)
	if err != nil {
		return promotion.Snapshot{}, err
	}
	usage, err := loadUsage(ctx, q, promotionIDs)
	if err != nil {
		return promotion.Snapshot{}, err
	}
	snapshot.PromotionMenus = menus
	snapshot.Usage = usage
	return snapshot, nil
}

func scanPromotions(rows pgx.Rows) ([]promotion.Promotion, error) {
	defer rows.Close()

	out := make([]promotion.Promotion, 0)
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read promotions: %w", err)
	}
	return out, nil
}

func scanPromotion(row pgx.Row) (promotion.Promotion, error) {
	var (
		p             promotion.Promotion
		discountType  string
		discountValue pgtype.Numeric
		totalPrice    pgtype.Numeric
		conditions    []byte
		group         pgtype.Text
	)
	if err := row.Scan(
		&p.ID, &p.LocationID, &p.Name, &p.Priority, &discountType, &discountValue, &totalPrice,
		&conditions, &p.StartDate, &p.EndDate, &p.IsActive, &group, &p.IsArchived,
	); err != nil {
		return promotion.Promotion{}, err
	}
	p.DiscountType = promotion.DiscountType(discountType)
	p.DiscountValue = utils.OptionalNumeric(discountValue)
	p.TotalPrice = utils.OptionalNumeric(totalPrice)
	p.Conditions = promotion.ParseConditions(conditions)
	p.Group = utils.OptionalText(group)
	return p, nil
}

func loadPromotionMenus(ctx context.Context, q querier, promotionIDs []int64) ([]promotion.PromotionMenu, error) {
	rows, err := q.Query(ctx, `
		select promotion_id, menu_id, quantity_required
		from promotion_menus
		where promotion_id = any($1)
		order by promotion_id asc, menu_id asc
	`, promotionIDs)
	if err != nil {
		return nil, fmt.Errorf("load promotion menus: %w", err)
	}
	defer rows.Close()

	out := make([]promotion.PromotionMenu, 0)
	for rows.Next() {
		var m promotion.PromotionMenu
		if err := rows.Scan(&m.PromotionID, &m.MenuID, &m.QuantityRequired); err != nil {
			return nil, fmt.Errorf("scan promotion menu: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func loadUsage(ctx context.Context, q querier, promotionIDs []int64) ([]promotion.PromotionUsage, error) {
	rows, err := q.Query(ctx, `
		select promotion_id, table_id, order_seq
		from promotion_usages
		where promotion_id = any($1)
		order by id asc
	`, promotionIDs)
	if err != nil {
		return nil, fmt.Errorf("load promotion usage: %w", err)
	}
	defer rows.Close()

	out := make([]promotion.PromotionUsage, 0)
	for rows.Next() {
		var (
			u       promotion.PromotionUsage
			tableID pgtype.Int8
		)
		if err := rows.Scan(&u.PromotionID, &tableID, &u.OrderSeq); err != nil {
			return nil, fmt.Errorf("scan promotion usage: %w", err)
		}
		if tableID.Valid {
			u.TableID = tableID.Int64
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// LoadMenuPrices returns the unit price of each requested menu.
func (s *Store) LoadMenuPrices(ctx context.Context, menuIDs []int64) (map[int64]float64, error) {
	out := make(map[int64]float64, len(menuIDs))
	if len(menuIDs) == 0 {
		return out, nil
	}

	rows, err := s.db.Query(ctx, `select id, price from menus where id = any($1)`, menuIDs)
	if err != nil {
		return nil, fmt.Errorf("load menu prices: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id    int64
			price pgtype.Numeric
		)
		if err := rows.Scan(&id, &price); err != nil {
			return nil, fmt.Errorf("scan menu price: %w", err)
		}
		out[id] = utils.NumericToFloat64(price)
	}
	return out, rows.Err()
}

// LoadAddonLinks returns the addon categories linked to the given menus.
func (s *Store) LoadAddonLinks(ctx context.Context, menuIDs []int64) ([]promotion.MenuAddonCategory, map[int64]promotion.AddonCategory, error) {
	links := make([]promotion.MenuAddonCategory, 0)
	categories := make(map[int64]promotion.AddonCategory)
	if len(menuIDs) == 0 {
		return links, categories, nil
	}

	rows, err := s.db.Query(ctx, `
		select mac.menu_id, ac.id, ac.name, ac.is_required
		from menu_addon_categories mac
		join addon_categories ac on ac.id = mac.addon_category_id
		where mac.menu_id = any($1)
		order by mac.id asc
	`, menuIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("load addon links: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			menuID int64
			cat    promotion.AddonCategory
		)
		if err := rows.Scan(&menuID, &cat.ID, &cat.Name, &cat.IsRequired); err != nil {
			return nil, nil, fmt.Errorf("scan addon link: %w", err)
		}
		links = append(links, promotion.MenuAddonCategory{MenuID: menuID, AddonCategoryID: cat.ID})
		categories[cat.ID] = cat
	}
	return links, categories, rows.Err()
}

// LoadAddonPrices fetches base prices and menu overrides for all pairs in two
// queries.
func (s *Store) LoadAddonPrices(ctx context.Context, pairs []promotion.AddonPricePair) (promotion.AddonPriceOverrides, map[int64]float64, error) {
	overrides := promotion.AddonPriceOverrides{}
	bases := make(map[int64]float64)
	if len(pairs) == 0 {
		return overrides, bases, nil
	}

	menuIDs := make([]int64, 0, len(pairs))
	addonIDs := make([]int64, 0, len(pairs))
	for _, pair := range pairs {
		menuIDs = append(menuIDs, pair.MenuID)
		addonIDs = append(addonIDs, pair.AddonID)
	}

	rows, err := s.db.Query(ctx, `select id, price from addons where id = any($1)`, addonIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("load addon prices: %w", err)
	}
	for rows.Next() {
		var (
			id    int64
			price pgtype.Numeric
		)
		if err := rows.Scan(&id, &price); err != nil {
			rows.Close()
			return nil, nil, fmt.Errorf("scan addon price: %w", err)
		}
		bases[id] = utils.NumericToFloat64(price)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("read addon prices: %w", err)
	}

	// Filtering by both columns over-fetches cross pairs; callers only look
	// up the pairs they asked for.
	rows, err = s.db.Query(ctx, `
		select menu_id, addon_id, price
		from menu_addon_prices
		where menu_id = any($1) and addon_id = any($2)
	`, menuIDs, addonIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("load addon overrides: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			key   promotion.AddonPriceKey
			price pgtype.Numeric
		)
		if err := rows.Scan(&key.MenuID, &key.AddonID, &price); err != nil {
			return nil, nil, fmt.Errorf("scan addon override: %w", err)
		}
		overrides[key] = utils.NumericToFloat64(price)
	}
	return overrides, bases, rows.Err()
}
