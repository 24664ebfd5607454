package store

import (
	"context"
	"errors"
	"fmt"

	"pos-promotion-services/internal/promotion"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type RedeemParams struct {
	PromotionID int64
	LocationID  int64
	TableID     int64
	OrderSeq    string
	RedeemedBy  *int64
}

// ValidateFunc re-checks a redemption against the snapshot read inside the
// redemption transaction.
type ValidateFunc func(snapshot promotion.Snapshot) error

// RecordUsage appends a usage row for one promotion. The promotion row is
// locked for the duration of the transaction so concurrent redemptions see
// each other's usage before validate runs.
func (s *Store) RecordUsage(ctx context.Context, params RedeemParams, validate ValidateFunc) error {
	return withTx(ctx, s.db, func(ctx context.Context, tx pgx.Tx) error {
		return redeem(ctx, tx, params, validate)
	})
}

func redeem(ctx context.Context, q querier, params RedeemParams, validate ValidateFunc) error {
	row := q.QueryRow(ctx, `
		select `+promotionColumns+`
		from promotions p
		where p.id = $1 and p.location_id = $2
		for update
	`, params.PromotionID, params.LocationID)
	p, err := scanPromotion(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return promotion.NotFoundError(promotion.ErrPromotionNotFound, "Promotion not found")
		}
		return fmt.Errorf("lock promotion: %w", err)
	}

	snapshot, err := completeSnapshot(ctx, q, []promotion.Promotion{p}, []int64{p.ID})
	if err != nil {
		return err
	}
	if validate != nil {
		if err := validate(snapshot); err != nil {
			return err
		}
	}

	if _, err := q.Exec(ctx, `
		insert into promotion_usages (promotion_id, table_id, order_seq, redeemed_by)
		values ($1, $2, $3, $4)
	`, params.PromotionID, nullableID(params.TableID), params.OrderSeq, params.RedeemedBy); err != nil {
		if isUniqueViolation(err) {
			return promotion.ConflictError(promotion.ErrAlreadyRedeemed, "Promotion already redeemed for this order", map[string]any{
				"orderSeq": params.OrderSeq,
			})
		}
		return fmt.Errorf("insert promotion usage: %w", err)
	}
	return nil
}

// AppendUsage records usage rows reported by order creation and returns how
// many were inserted. Rows already recorded for the same promotion, table and
// order batch are skipped, as are promotions that do not exist or belong to
// another location.
func (s *Store) AppendUsage(ctx context.Context, locationID int64, rows []promotion.PromotionUsage) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	inserted := 0
	err := withTx(ctx, s.db, func(ctx context.Context, tx pgx.Tx) error {
		n, err := appendUsage(ctx, tx, locationID, rows)
		inserted = n
		return err
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func appendUsage(ctx context.Context, q querier, locationID int64, rows []promotion.PromotionUsage) (int, error) {
	inserted := 0
	for _, u := range rows {
		tag, err := q.Exec(ctx, `
			insert into promotion_usages (promotion_id, table_id, order_seq)
			select p.id, $2::bigint, $3::text
			from promotions p
			where p.id = $1 and p.location_id = $4
			on conflict (promotion_id, table_id, order_seq) do nothing
		`, u.PromotionID, nullableID(u.TableID), u.OrderSeq, locationID)
		if err != nil {
			return 0, fmt.Errorf("append promotion usage: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

func withTx(ctx context.Context, db txStarter, fn func(ctx context.Context, tx pgx.Tx) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type txStarter interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullableID(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}
