package payment

import (
    "crypto/hmac"
    "crypto/sha256"
    "encoding/hex"
    "fmt"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

const testSecret = "whsec_test"

func sign(t *testing.T, payload []byte, secret string, ts time.Time) string {
    t.Helper()
    mac := hmac.New(sha256.New, []byte(secret))
    fmt.Fprintf(mac, "%d.", ts.Unix())
    mac.Write(payload)
    return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifyEventValid(t *testing.T) {
    now := time.Now()
    payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1","status":"succeeded"}}}`)

    ev, err := VerifyEvent(payload, sign(t, payload, testSecret, now), testSecret, now)
    require.NoError(t, err)
    assert.Equal(t, "evt_1", ev.ID)
    assert.Equal(t, "payment_intent.succeeded", ev.Type)
    assert.Equal(t, "pi_1", ev.Data.Object.ID)
    assert.Equal(t, "succeeded", ev.Data.Object.Status)
}

func TestVerifyEventWrongSecret(t *testing.T) {
    now := time.Now()
    payload := []byte(`{"id":"evt_1"}`)
    _, err := VerifyEvent(payload, sign(t, payload, "whsec_other", now), testSecret, now)
    assert.ErrorIs(t, err, ErrBadSignature)
}

func TestVerifyEventTamperedPayload(t *testing.T) {
    now := time.Now()
    payload := []byte(`{"id":"evt_1"}`)
    header := sign(t, payload, testSecret, now)
    _, err := VerifyEvent([]byte(`{"id":"evt_2"}`), header, testSecret, now)
    assert.ErrorIs(t, err, ErrBadSignature)
}

func TestVerifyEventStaleTimestamp(t *testing.T) {
    now := time.Now()
    stamped := now.Add(-6 * time.Minute)
    payload := []byte(`{"id":"evt_1"}`)
    _, err := VerifyEvent(payload, sign(t, payload, testSecret, stamped), testSecret, now)
    assert.ErrorIs(t, err, ErrBadSignature)
}

func TestVerifyEventFutureTimestamp(t *testing.T) {
    now := time.Now()
    stamped := now.Add(10 * time.Minute)
    payload := []byte(`{"id":"evt_1"}`)
    _, err := VerifyEvent(payload, sign(t, payload, testSecret, stamped), testSecret, now)
    assert.ErrorIs(t, err, ErrBadSignature)
}

func TestVerifyEventMalformedHeader(t *testing.T) {
    now := time.Now()
    payload := []byte(`{"id":"evt_1"}`)
    for _, header := range []string{"", "t=,v1=", "garbage", "v1=deadbeef", fmt.Sprintf("t=%d", now.Unix())} {
        _, err := VerifyEvent(payload, header, testSecret, now)
        assert.ErrorIs(t, err, ErrBadSignature, header)
    }
}

func TestVerifyEventSecondSignatureAccepted(t *testing.T) {
    // During secret rotation the provider sends one v1 per live
    // secret; any single match must verify.
    now := time.Now()
    payload := []byte(`{"id":"evt_1"}`)
    good := sign(t, payload, testSecret, now)
    header := fmt.Sprintf("t=%d,v1=%s,%s", now.Unix(), "00deadbeef", good[len(fmt.Sprintf("t=%d,", now.Unix())):])
    _, err := VerifyEvent(payload, header, testSecret, now)
    assert.NoError(t, err)
}
