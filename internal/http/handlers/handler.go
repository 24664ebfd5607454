package handlers

import (
	"context"

	"pos-promotion-services/internal/config"
	"pos-promotion-services/internal/middleware"
	"pos-promotion-services/internal/promotion"
	"pos-promotion-services/internal/service"

	"go.uber.org/zap"
)

type PromotionService interface {
	Evaluate(ctx context.Context, req service.EvaluateRequest) (*service.EvaluateResult, error)
	ActivePromotions(ctx context.Context, locationID int64) ([]promotion.Promotion, error)
	RequiredAddons(ctx context.Context, locationID int64, promotionID int64, menuIDs []int64) (map[int64][]int64, error)
	ResolveAddonPrices(ctx context.Context, pairs []promotion.AddonPricePair) (map[promotion.AddonPriceKey]float64, error)
	Redeem(ctx context.Context, req service.RedeemRequest) error
}

type Handler struct {
	Promotions PromotionService
	Logger     *zap.Logger
	Config     config.Config
	Latency    *middleware.LatencyStats
}
