package router // package router defines how HTTP routes are registered for the API

import (
    "github.com/labstack/echo/v4" // import the Echo web framework to handle routing
    "github.com/redis/go-redis/v9"

    "github.com/splitkart/split-backend/internal/config"
    "github.com/splitkart/split-backend/internal/handler"
    "github.com/splitkart/split-backend/internal/middleware"
    "github.com/splitkart/split-backend/internal/model"
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance: the health check, the Prometheus scrape
// endpoint and the payment provider webhook.  The webhook authenticates
// itself through its signature, not a bearer token.
func RegisterRoutes(e *echo.Echo, wh *handler.WebhookHandler) {
    e.GET("/healthz", handler.Health)
    e.GET("/metrics", middleware.PrometheusHandler())
    e.POST("/v1/webhooks/payment", wh.HandlePaymentEvent)
}

// RegisterPublic registers unauthenticated browse endpoints.  Guests can
// inspect open splits before signing in; read responses are served
// through the Redis cache when enabled.
func RegisterPublic(e *echo.Echo, s *handler.SplitHandler, rdb *redis.Client) {
    g := e.Group("/v1")
    cacheCfg := config.LoadCacheConfig()
    if cacheCfg.Enabled && rdb != nil {
        g.Use(middleware.NewRedisCache(cacheCfg, rdb))
    }
    // Browse open splits
    g.GET("/splits", s.ListSplits)
    // Split details by id
    g.GET("/splits/:id", s.GetSplit)
}

// RegisterProtected registers all authenticated routes and applies the
// necessary middleware.  Every handler on this group runs behind
// JWTAuth; the rate limiter sits in front so unauthenticated floods are
// rejected before token parsing.
func RegisterProtected(e *echo.Echo, s *handler.SplitHandler, o *handler.OrderHandler, jwtSecret string, rdb *redis.Client) {
    g := e.Group("/v1")
    rlCfg := config.LoadRateLimitConfig()
    if rlCfg.Enabled && rdb != nil {
        g.Use(middleware.NewTokenBucket(rlCfg, rdb))
    }
    g.Use(middleware.JWTAuth(jwtSecret))
    g.Use(middleware.RequireRole(model.RoleClient, model.RoleOwner, model.RoleAdmin))

    // Split lifecycle
    g.POST("/splits", s.CreateSplit)
    g.POST("/splits/:id/cancel", s.CancelSplit)

    // Ordering
    g.POST("/splits/:id/orders", o.CreateOrder)
    g.POST("/splits/:id/orders/cancel", o.CancelOwnOrder)
    g.POST("/splits/:id/orders/:client_id/cancel", o.CancelClientOrder)
    g.GET("/orders", o.ListMyOrders)

    // Shipping sub-flow
    g.POST("/orders/:id/ship", o.MarkShipped)
    g.POST("/orders/:id/receive", o.MarkReceived)
}
