package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"pos-promotion-services/internal/promotion"

	"go.uber.org/zap"
)

const OrderCreatedEvent = "order.created"

type orderCreatedEvent struct {
	Type                string  `json:"type"`
	LocationID          int64   `json:"locationId"`
	TableID             int64   `json:"tableId"`
	OrderSeq            string  `json:"orderSeq"`
	AppliedPromotionIDs []int64 `json:"appliedPromotionIds"`
}

type UsageRecorder interface {
	RecordOrderUsage(ctx context.Context, locationID int64, rows []promotion.PromotionUsage) (int, error)
}

// decodeUsageEvent returns the usage rows carried by an order.created event.
// Other event types yield no rows and no error.
func decodeUsageEvent(body []byte) (int64, []promotion.PromotionUsage, error) {
	var evt orderCreatedEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return 0, nil, fmt.Errorf("%w: decode event: %v", ErrPermanent, err)
	}
	if evt.Type != OrderCreatedEvent {
		return 0, nil, nil
	}
	evt.OrderSeq = strings.TrimSpace(evt.OrderSeq)
	if evt.LocationID <= 0 || evt.OrderSeq == "" {
		return 0, nil, fmt.Errorf("%w: order event missing location or order seq", ErrPermanent)
	}

	seen := make(map[int64]struct{}, len(evt.AppliedPromotionIDs))
	rows := make([]promotion.PromotionUsage, 0, len(evt.AppliedPromotionIDs))
	for _, id := range evt.AppliedPromotionIDs {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		rows = append(rows, promotion.PromotionUsage{PromotionID: id, TableID: evt.TableID, OrderSeq: evt.OrderSeq})
	}
	return evt.LocationID, rows, nil
}

// UsageHandler records promotion usage for orders created by the POS. Rows
// for promotions outside the event's location are skipped and logged, not
// retried.
func UsageHandler(recorder UsageRecorder, logger *zap.Logger) HandlerFunc {
	return func(ctx context.Context, body []byte) error {
		locationID, rows, err := decodeUsageEvent(body)
		if err != nil {
			logger.Warn("promotion usage event rejected", zap.Error(err))
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		inserted, err := recorder.RecordOrderUsage(ctx, locationID, rows)
		if err != nil {
			logger.Error("promotion usage record failed", zap.Int64("locationId", locationID), zap.Error(err))
			return err
		}
		fields := []zap.Field{
			zap.Int64("locationId", locationID),
			zap.String("orderSeq", rows[0].OrderSeq),
			zap.Int("rows", len(rows)),
			zap.Int("inserted", inserted),
		}
		if skipped := len(rows) - inserted; skipped > 0 {
			logger.Warn("promotion usage rows skipped", append(fields, zap.Int("skipped", skipped))...)
			return nil
		}
		logger.Info("promotion usage recorded", fields...)
		return nil
	}
}
