package handler

import (
    "context"
    "crypto/hmac"
    "crypto/sha256"
    "database/sql"
    "encoding/hex"
    "fmt"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"
    "time"

    "github.com/DATA-DOG/go-sqlmock"
    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/splitkart/split-backend/internal/repository"
    "github.com/splitkart/split-backend/internal/service"
)

func TestHealth(t *testing.T) {
    e := echo.New()
    req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
    rec := httptest.NewRecorder()

    err := Health(e.NewContext(req, rec))
    require.NoError(t, err)
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, "ok", rec.Body.String())
}

// fakeDeduper records marks so tests can assert when an event ID is
// remembered.
type fakeDeduper struct {
    seen   map[string]bool
    marked []string
}

func newFakeDeduper() *fakeDeduper {
    return &fakeDeduper{seen: make(map[string]bool)}
}

func (d *fakeDeduper) Seen(ctx context.Context, eventID string) (bool, error) {
    return d.seen[eventID], nil
}

func (d *fakeDeduper) Mark(ctx context.Context, eventID string) error {
    d.seen[eventID] = true
    d.marked = append(d.marked, eventID)
    return nil
}

func signBody(secret, body string, at time.Time) string {
    mac := hmac.New(sha256.New, []byte(secret))
    fmt.Fprintf(mac, "%d.%s", at.Unix(), body)
    return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func newWebhookOrderService(t *testing.T) (*service.OrderService, sqlmock.Sqlmock, func()) {
    t.Helper()
    db, mock, err := sqlmock.New()
    require.NoError(t, err)
    svc := &service.OrderService{
        DB:     db,
        Orders: repository.NewOrderRepo(db),
        Splits: repository.NewSplitRepo(db),
        Log:    newTestLogger(t),
    }
    return svc, mock, func() { _ = db.Close() }
}

func postEvent(t *testing.T, h *WebhookHandler, secret, body string) *httptest.ResponseRecorder {
    t.Helper()
    e := echo.New()
    req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/payment", strings.NewReader(body))
    req.Header.Set("Signature", signBody(secret, body, time.Now()))
    rec := httptest.NewRecorder()
    require.NoError(t, h.HandlePaymentEvent(e.NewContext(req, rec)))
    return rec
}

func TestWebhookRejectsMissingSignature(t *testing.T) {
    // The request must be rejected before any dedup or state lookup,
    // so a dead Redis address never gets dialed.
    rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
    h := &WebhookHandler{
        Orders: nil,
        Dedup:  NewRedisDeduper(rdb),
        Secret: "whsec_test",
        Log:    newTestLogger(t),
    }

    e := echo.New()
    req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/payment",
        strings.NewReader(`{"id":"evt_1","type":"payment_intent.succeeded"}`))
    rec := httptest.NewRecorder()

    err := h.HandlePaymentEvent(e.NewContext(req, rec))
    require.NoError(t, err)
    assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookRejectsGarbageSignature(t *testing.T) {
    rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
    h := &WebhookHandler{Orders: nil, Dedup: NewRedisDeduper(rdb), Secret: "whsec_test", Log: newTestLogger(t)}

    e := echo.New()
    req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/payment", strings.NewReader(`{}`))
    req.Header.Set("Signature", "t=notanumber,v1=zzzz")
    rec := httptest.NewRecorder()

    err := h.HandlePaymentEvent(e.NewContext(req, rec))
    require.NoError(t, err)
    assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookLeavesFailedEventUnmarked(t *testing.T) {
    svc, mock, closeDB := newWebhookOrderService(t)
    defer closeDB()

    // The same event delivered twice while the apply keeps failing:
    // both deliveries must reach the database, neither may be
    // acknowledged as a duplicate.
    mock.ExpectQuery("FROM orders").WillReturnError(sql.ErrNoRows)
    mock.ExpectQuery("FROM orders").WillReturnError(sql.ErrNoRows)

    dedup := newFakeDeduper()
    h := &WebhookHandler{Orders: svc, Dedup: dedup, Secret: "whsec_test", Log: newTestLogger(t)}
    body := `{"id":"evt_retry","type":"payment_intent.succeeded","data":{"object":{"id":"pi_missing","status":"succeeded"}}}`

    rec := postEvent(t, h, "whsec_test", body)
    assert.Equal(t, http.StatusNotFound, rec.Code)
    assert.Empty(t, dedup.marked)

    rec = postEvent(t, h, "whsec_test", body)
    assert.Equal(t, http.StatusNotFound, rec.Code)
    assert.NotContains(t, rec.Body.String(), "duplicate")
    assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhookMarksEventAfterSuccessfulApply(t *testing.T) {
    svc, mock, closeDB := newWebhookOrderService(t)
    defer closeDB()

    orderCols := []string{
        "id", "client_id", "owner_id", "split_id", "num_seats",
        "payment_intent_ref", "payment_method_ref", "status",
        "client_name", "owner_name", "split_title", "split_description", "split_picture",
        "amount_cents", "fee_cents", "created_at", "updated_at",
    }
    splitCols := []string{
        "id", "owner_id", "variant", "title", "description", "picture",
        "num_places", "num_seats", "owner_seats", "places_left",
        "price_cents", "regular_price_cents", "sale_price_cents", "split_prices",
        "status", "cancel_reason", "expiration_date",
        "shipping_type", "conversation_id", "legacy_url", "legacy_id",
        "created_at", "updated_at",
    }
    now := time.Now().UTC()
    orderRow := func() *sqlmock.Rows {
        return sqlmock.NewRows(orderCols).AddRow(
            uint64(5), uint64(1), uint64(10), uint64(7), uint32(2),
            "pi_123", "pm_123", "PAID",
            "Alice", "Bob", "Bulk coffee beans", nil, nil,
            int64(5000), int64(250), now, now,
        )
    }
    splitRow := sqlmock.NewRows(splitCols).AddRow(
        uint64(7), uint64(10), "APP", "Bulk coffee beans", nil, nil,
        uint32(4), uint32(2), uint32(1), uint32(2),
        int64(10000), int64(0), int64(0), nil,
        "ACTIVE", nil, now.AddDate(0, 0, 14),
        nil, nil, nil, nil,
        now, now,
    )

    // A settlement event for an order already PAID: the apply is an
    // idempotent success, so the event ID gets remembered.
    mock.ExpectQuery("FROM orders").WillReturnRows(orderRow())
    mock.ExpectBegin()
    mock.ExpectQuery("FOR UPDATE").WillReturnRows(orderRow())
    mock.ExpectQuery("FROM splits").WillReturnRows(splitRow)
    mock.ExpectCommit()

    dedup := newFakeDeduper()
    h := &WebhookHandler{Orders: svc, Dedup: dedup, Secret: "whsec_test", Log: newTestLogger(t)}
    body := `{"id":"evt_ok","type":"payment_intent.succeeded","data":{"object":{"id":"pi_123","status":"succeeded"}}}`

    rec := postEvent(t, h, "whsec_test", body)
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, []string{"evt_ok"}, dedup.marked)

    // The provider's retry is answered without touching the database.
    rec = postEvent(t, h, "whsec_test", body)
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.Contains(t, rec.Body.String(), "duplicate")
    assert.NoError(t, mock.ExpectationsWereMet())
}
