package handler

import (
    "context"
    "io"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "go.uber.org/zap"

    "github.com/splitkart/split-backend/internal/payment"
    "github.com/splitkart/split-backend/internal/service"
)

// eventDedupTTL bounds how long a processed webhook event ID is
// remembered.  The provider retries for at most three days; anything
// older is rejected by signature tolerance anyway.
const eventDedupTTL = 72 * time.Hour

// EventDeduper remembers successfully processed webhook event IDs so
// provider retries are acknowledged without reapplying the transition.
type EventDeduper interface {
    Seen(ctx context.Context, eventID string) (bool, error)
    Mark(ctx context.Context, eventID string) error
}

type redisDeduper struct {
    rdb *redis.Client
}

// NewRedisDeduper returns a Redis-backed EventDeduper, or nil when no
// client is configured.
func NewRedisDeduper(rdb *redis.Client) EventDeduper {
    if rdb == nil {
        return nil
    }
    return &redisDeduper{rdb: rdb}
}

func (d *redisDeduper) Seen(ctx context.Context, eventID string) (bool, error) {
    n, err := d.rdb.Exists(ctx, "webhook:event:"+eventID).Result()
    return n > 0, err
}

func (d *redisDeduper) Mark(ctx context.Context, eventID string) error {
    return d.rdb.Set(ctx, "webhook:event:"+eventID, 1, eventDedupTTL).Err()
}

// WebhookHandler receives payment provider callbacks.  Signature
// verification fails closed, and processed event IDs are remembered
// so provider retries are acknowledged without reapplying the
// transition.
type WebhookHandler struct {
    Orders *service.OrderService
    Dedup  EventDeduper
    Secret string
    Log    *zap.Logger
}

// NewWebhookHandler constructs a WebhookHandler.  A nil Redis client
// disables delivery dedup; the apply path stays idempotent on its own.
func NewWebhookHandler(orders *service.OrderService, rdb *redis.Client, secret string, log *zap.Logger) *WebhookHandler {
    if orders == nil || secret == "" || log == nil {
        panic("nil dependency passed to NewWebhookHandler")
    }
    return &WebhookHandler{Orders: orders, Dedup: NewRedisDeduper(rdb), Secret: secret, Log: log}
}

// HandlePaymentEvent handles POST /v1/webhooks/payment.  The raw body
// must verify against the signature header before any decoding side
// effect.  A duplicate delivery returns 200 so the provider stops
// retrying.
func (h *WebhookHandler) HandlePaymentEvent(c echo.Context) error {
    body, err := io.ReadAll(io.LimitReader(c.Request().Body, 1<<20))
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable body"})
    }
    ev, err := payment.VerifyEvent(body, c.Request().Header.Get("Signature"), h.Secret, time.Now())
    if err != nil {
        h.Log.Warn("webhook rejected", zap.Error(err))
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid signature"})
    }

    ctx := c.Request().Context()
    if h.Dedup != nil {
        seen, err := h.Dedup.Seen(ctx, ev.ID)
        if err != nil {
            // Redis being down must not drop payment events; the
            // apply path is idempotent on its own.
            h.Log.Warn("webhook dedup unavailable", zap.Error(err))
        } else if seen {
            return c.JSON(http.StatusOK, echo.Map{"status": "duplicate"})
        }
    }

    res := h.Orders.ApplyGatewayEvent(ctx, ev)
    if !res.Success {
        // The event stays unmarked so the provider's retry can
        // reapply the transition once the failure clears.
        h.Log.Error("webhook apply failed",
            zap.String("event_id", ev.ID),
            zap.String("event_type", ev.Type),
            zap.String("message", res.Message))
    } else if h.Dedup != nil {
        if err := h.Dedup.Mark(ctx, ev.ID); err != nil {
            h.Log.Warn("webhook dedup mark failed", zap.Error(err))
        }
    }
    return c.JSON(res.Code, res)
}
