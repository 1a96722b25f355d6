package model

import (
    "testing"

    "github.com/stretchr/testify/assert"
)

func TestStatusFromGateway(t *testing.T) {
    tests := []struct {
        state    string
        expected OrderStatus
        mapped   bool
    }{
        {"succeeded", OrderPaid, true},
        {"canceled", OrderSystemCanceled, true},
        {"payment_failed", OrderPaymentFailed, true},
        {"processing", "", false},
        {"requires_action", "", false},
        {"", "", false},
    }
    for _, tc := range tests {
        t.Run(tc.state, func(t *testing.T) {
            got, ok := StatusFromGateway(tc.state)
            assert.Equal(t, tc.mapped, ok)
            assert.Equal(t, tc.expected, got)
        })
    }
}

func TestOrderStatusReleased(t *testing.T) {
    released := []OrderStatus{OrderOwnerCanceled, OrderClientCanceled, OrderSystemCanceled, OrderPaymentFailed}
    for _, s := range released {
        assert.True(t, s.Released(), string(s))
    }
    occupying := []OrderStatus{OrderPaymentPending, OrderPaid, OrderShipped, OrderReceived, OrderRefundRequested, OrderRefunded, OrderComplete}
    for _, s := range occupying {
        assert.False(t, s.Released(), string(s))
    }
}

func TestOrderStatusExitable(t *testing.T) {
    assert.True(t, OrderSystemCanceled.Exitable())
    assert.True(t, OrderPaymentFailed.Exitable())
    // The explicit cancel paths release seats themselves; only
    // gateway-driven exits go through Exitable.
    assert.False(t, OrderOwnerCanceled.Exitable())
    assert.False(t, OrderClientCanceled.Exitable())
    assert.False(t, OrderPaid.Exitable())
}
