package payment

import (
    "crypto/hmac"
    "crypto/sha256"
    "encoding/hex"
    "encoding/json"
    "errors"
    "fmt"
    "strconv"
    "strings"
    "time"
)

// ErrBadSignature is returned for any malformed, mismatched or stale
// webhook signature.  Verification fails closed: no event is ever
// produced from a payload that did not verify.
var ErrBadSignature = errors.New("webhook signature verification failed")

// Event is the envelope delivered by the provider's webhook.  Only
// payment_intent.* types drive order transitions; everything else is
// accepted and ignored upstream.
type Event struct {
    ID   string `json:"id"`
    Type string `json:"type"`
    Data struct {
        Object struct {
            ID     string `json:"id"`
            Status string `json:"status"`
        } `json:"object"`
    } `json:"data"`
}

// signatureTolerance bounds how old a signed timestamp may be before
// the event is rejected as a replay.
const signatureTolerance = 5 * time.Minute

// VerifyEvent checks the provider signature header against the raw
// payload and, on success, decodes the event envelope.  The header
// format is "t=<unix>,v1=<hex hmac>" with the HMAC-SHA256 computed
// over "<unix>.<payload>" using the webhook secret.
func VerifyEvent(payload []byte, sigHeader, secret string, now time.Time) (*Event, error) {
    var ts int64
    var sigs []string
    for _, part := range strings.Split(sigHeader, ",") {
        kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
        if len(kv) != 2 {
            continue
        }
        switch kv[0] {
        case "t":
            n, err := strconv.ParseInt(kv[1], 10, 64)
            if err != nil {
                return nil, ErrBadSignature
            }
            ts = n
        case "v1":
            sigs = append(sigs, kv[1])
        }
    }
    if ts == 0 || len(sigs) == 0 {
        return nil, ErrBadSignature
    }
    stamped := time.Unix(ts, 0)
    if now.Sub(stamped) > signatureTolerance || stamped.Sub(now) > signatureTolerance {
        return nil, ErrBadSignature
    }

    mac := hmac.New(sha256.New, []byte(secret))
    fmt.Fprintf(mac, "%d.", ts)
    mac.Write(payload)
    expected := hex.EncodeToString(mac.Sum(nil))

    ok := false
    for _, s := range sigs {
        if hmac.Equal([]byte(expected), []byte(s)) {
            ok = true
            break
        }
    }
    if !ok {
        return nil, ErrBadSignature
    }

    var ev Event
    if err := json.Unmarshal(payload, &ev); err != nil {
        return nil, fmt.Errorf("decode webhook event: %w", err)
    }
    return &ev, nil
}
