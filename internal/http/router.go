package httpapi

import (
	"net/http"

	"pos-promotion-services/internal/config"
	"pos-promotion-services/internal/http/handlers"
	"pos-promotion-services/internal/middleware"
	"pos-promotion-services/internal/ws"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

func NewRouter(promotions handlers.PromotionService, logger *zap.Logger, cfg config.Config, wsServer *ws.Server) http.Handler {
	stats := middleware.NewLatencyStats(200)

	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Telemetry(logger, stats))

	if cfg.Env == "development" || len(cfg.CorsAllowedOrigins) > 0 {
		options := cors.Options{
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{
				"Accept",
				"Authorization",
				"Content-Type",
				"X-Requested-With",
				"X-Request-Id",
				"Cache-Control",
			},
			ExposedHeaders:   []string{"X-Request-Id"},
			AllowCredentials: true,
			MaxAge:           300,
		}

		if cfg.Env == "development" {
			options.AllowOriginFunc = func(_ *http.Request, origin string) bool {
				return true
			}
		} else {
			options.AllowedOrigins = cfg.CorsAllowedOrigins
		}

		r.Use(cors.Handler(options))
	}

	h := &handlers.Handler{Promotions: promotions, Logger: logger, Config: cfg, Latency: stats}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/public", func(r chi.Router) {
		r.Use(setResponseHeader("X-Promotion-Service-Origin", "native"))
		r.Post("/promotions/evaluate", h.PublicPromotionsEvaluate)
		r.Post("/promotions/required-addons", h.PublicRequiredAddons)
		r.Get("/locations/{locationId}/promotions/active", h.PublicActivePromotions)
		r.Post("/addon-prices/resolve", h.PublicAddonPricesResolve)
	})

	r.Route("/api/staff", func(r chi.Router) {
		r.Use(setResponseHeader("X-Promotion-Service-Origin", "native"))
		r.Use(middleware.StaffAuth(cfg.JWTSecret))
		r.Post("/promotions/explain", h.StaffPromotionsExplain)
		r.Post("/promotions/redeem", h.StaffPromotionRedeem)
		r.Post("/addon-prices/resolve", h.StaffAddonPricesResolve)
		r.Get("/debug/latency", h.DebugLatency)
	})

	if wsServer != nil {
		r.Get("/ws/locations/{locationId}/promotions", wsServer.PromotionBoardWS)
	}

	return r
}

func setResponseHeader(name string, value string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(name, value)
			next.ServeHTTP(w, r)
		})
	}
}
