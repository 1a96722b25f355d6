// Package payment wraps the external payment provider.  The core
// consumes the Gateway interface; the HTTP client below talks to a
// Stripe-shaped API.  Charging itself happens on the client side
// against the provider — this service only re-validates, cancels and
// refunds authorizations and verifies inbound webhook events.
package payment

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "net/http"
    "net/url"
    "strings"
    "time"

    "go.uber.org/zap"
)

// ErrAuthorizationNotFound is returned when the provider has no
// payment intent for the given handle.
var ErrAuthorizationNotFound = errors.New("authorization not found")

// ErrAlreadyRefunded is returned when a refund targets a charge that
// has already been fully reversed.  Bulk cancellation treats this as
// success; every other refund failure is fatal for its operation.
var ErrAlreadyRefunded = errors.New("charge already refunded")

// Authorization is the provider's view of a payment intent.  Status
// uses the provider vocabulary (requires_payment_method, processing,
// succeeded, canceled, ...).
type Authorization struct {
    ID            string `json:"id"`
    Status        string `json:"status"`
    AmountCents   int64  `json:"amount"`
    Currency      string `json:"currency"`
    PaymentMethod string `json:"payment_method"`
}

// Settled reports whether the authorization has been captured.
func (a *Authorization) Settled() bool { return a.Status == "succeeded" }

// Refund is the provider's record of a reversal.
type Refund struct {
    ID     string `json:"id"`
    Status string `json:"status"`
}

// Gateway is the contract the core consumes.  Implementations must
// bound their own call latency: these calls sit on the critical path
// of store transactions.
type Gateway interface {
    // GetAuthorization re-validates a handle with the provider.  A
    // missing intent returns ErrAuthorizationNotFound.
    GetAuthorization(ctx context.Context, ref string) (*Authorization, error)
    // Refund reverses the charge behind the authorization.  When
    // reverseFee is true the platform fee is returned as well
    // (owner-initiated and bulk cancellations); client-initiated
    // refunds keep the fee.  An already-reversed charge returns
    // ErrAlreadyRefunded.
    Refund(ctx context.Context, ref string, reverseFee bool) (*Refund, error)
    // CancelAuthorization voids an uncaptured intent.
    CancelAuthorization(ctx context.Context, ref string) error
}

// Client implements Gateway over the provider's HTTP API.
type Client struct {
    baseURL   string
    secretKey string
    http      *http.Client
    log       *zap.Logger
}

// NewClient constructs a gateway client.  The timeout keeps provider
// latency from stalling enclosing store transactions indefinitely.
func NewClient(baseURL, secretKey string, log *zap.Logger) *Client {
    return &Client{
        baseURL:   strings.TrimRight(baseURL, "/"),
        secretKey: secretKey,
        http:      &http.Client{Timeout: 10 * time.Second},
        log:       log,
    }
}

// apiError mirrors the provider's error envelope.
type apiError struct {
    Error struct {
        Code    string `json:"code"`
        Message string `json:"message"`
    } `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, form url.Values, out interface{}) error {
    var body *strings.Reader
    if form != nil {
        body = strings.NewReader(form.Encode())
    } else {
        body = strings.NewReader("")
    }
    req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
    if err != nil {
        return err
    }
    req.Header.Set("Authorization", "Bearer "+c.secretKey)
    if form != nil {
        req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
    }
    resp, err := c.http.Do(req)
    if err != nil {
        return fmt.Errorf("payment gateway request: %w", err)
    }
    defer resp.Body.Close()

    if resp.StatusCode == http.StatusNotFound {
        return ErrAuthorizationNotFound
    }
    if resp.StatusCode >= 400 {
        var ae apiError
        if err := json.NewDecoder(resp.Body).Decode(&ae); err == nil {
            if ae.Error.Code == "charge_already_refunded" {
                return ErrAlreadyRefunded
            }
            return fmt.Errorf("payment gateway: %s (%s)", ae.Error.Message, ae.Error.Code)
        }
        return fmt.Errorf("payment gateway: http %d", resp.StatusCode)
    }
    if out != nil {
        return json.NewDecoder(resp.Body).Decode(out)
    }
    return nil
}

// GetAuthorization fetches the payment intent behind ref.
func (c *Client) GetAuthorization(ctx context.Context, ref string) (*Authorization, error) {
    var a Authorization
    if err := c.do(ctx, http.MethodGet, "/v1/payment_intents/"+url.PathEscape(ref), nil, &a); err != nil {
        return nil, err
    }
    return &a, nil
}

// Refund reverses the charge behind ref.  reverseFee maps to the
// provider's fee-reversal flag.
func (c *Client) Refund(ctx context.Context, ref string, reverseFee bool) (*Refund, error) {
    form := url.Values{}
    form.Set("payment_intent", ref)
    if reverseFee {
        form.Set("reverse_transfer", "true")
        form.Set("refund_application_fee", "true")
    }
    var rf Refund
    if err := c.do(ctx, http.MethodPost, "/v1/refunds", form, &rf); err != nil {
        return nil, err
    }
    c.log.Info("refund issued",
        zap.String("payment_intent", ref),
        zap.String("refund_id", rf.ID),
        zap.Bool("reverse_fee", reverseFee))
    return &rf, nil
}

// CancelAuthorization voids an uncaptured intent.
func (c *Client) CancelAuthorization(ctx context.Context, ref string) error {
    return c.do(ctx, http.MethodPost, "/v1/payment_intents/"+url.PathEscape(ref)+"/cancel", url.Values{}, nil)
}
