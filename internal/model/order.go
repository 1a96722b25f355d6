package model

import "time"

// OrderStatus enumerates the payment and shipping states of an order.
// The progression is PAYMENT_PENDING -> {PAID, PAYMENT_FAILED,
// SYSTEM_CANCELED} and from PAID onward into the shipping and
// cancellation branches.  Orders are never deleted; every cancel path
// is a status transition.
type OrderStatus string

const (
    OrderPaymentPending  OrderStatus = "PAYMENT_PENDING"
    OrderPaid            OrderStatus = "PAID"
    OrderPaymentFailed   OrderStatus = "PAYMENT_FAILED"
    OrderSystemCanceled  OrderStatus = "SYSTEM_CANCELED"
    OrderShipped         OrderStatus = "SHIPPED"
    OrderReceived        OrderStatus = "RECEIVED"
    OrderOwnerCanceled   OrderStatus = "OWNER_CANCELED"
    OrderClientCanceled  OrderStatus = "CLIENT_CANCELED"
    OrderRefundRequested OrderStatus = "REFUND_REQUESTED"
    OrderRefunded        OrderStatus = "REFUNDED"
    OrderComplete        OrderStatus = "COMPLETE"
)

// StatusFromGateway translates a payment-provider intent state into an
// order status.  Only the three mapped states drive a transition; any
// other provider state (processing, requires_action, ...) leaves the
// order untouched and the second return value is false.
func StatusFromGateway(state string) (OrderStatus, bool) {
    switch state {
    case "succeeded":
        return OrderPaid, true
    case "canceled":
        return OrderSystemCanceled, true
    case "payment_failed":
        return OrderPaymentFailed, true
    }
    return "", false
}

// Released reports whether the status means the order no longer
// occupies seats on its split.  A client may create a new order on the
// same split once their previous order reaches one of these states.
func (s OrderStatus) Released() bool {
    switch s {
    case OrderOwnerCanceled, OrderClientCanceled, OrderSystemCanceled, OrderPaymentFailed:
        return true
    }
    return false
}

// Exitable reports whether a gateway-driven transition into this
// status must also release the order's seats and remove the client
// from the split conversation.
func (s OrderStatus) Exitable() bool {
    return s == OrderSystemCanceled || s == OrderPaymentFailed
}

// Order records one client's reservation of seats on a split, bound
// to exactly one external payment authorization.  The client/owner
// names and split metadata are denormalized snapshots captured at
// creation time so that read paths avoid cross-entity joins; they are
// never refreshed afterwards, even when the source records change.
//
// Fields:
//  ID               – primary key identifier.
//  ClientID         – user who reserved the seats.
//  OwnerID          – split owner, copied from the split at creation.
//  SplitID          – split being joined.
//  NumSeats         – seats reserved (>= 1).
//  PaymentIntentRef – external authorization handle; globally unique
//                     across all orders, ever.
//  PaymentMethodRef – external payment method handle.
//  Status           – current lifecycle state.
//  ClientName       – frozen snapshot of the client's display name.
//  OwnerName        – frozen snapshot of the owner's display name.
//  SplitTitle       – frozen snapshot of the split title.
//  SplitDescription – frozen snapshot of the split description.
//  SplitPicture     – frozen snapshot of the split picture URL.
//  AmountCents      – charge amount in cents at creation.
//  FeeCents         – platform fee in cents at creation.
//  CreatedAt        – creation timestamp.
//  UpdatedAt        – last update timestamp.
type Order struct {
    ID               uint64      `json:"id"`
    ClientID         uint64      `json:"client_id"`
    OwnerID          uint64      `json:"owner_id"`
    SplitID          uint64      `json:"split_id"`
    NumSeats         uint32      `json:"num_seats"`
    PaymentIntentRef string      `json:"payment_intent_ref"`
    PaymentMethodRef string      `json:"payment_method_ref"`
    Status           OrderStatus `json:"status"`
    ClientName       string      `json:"client_name"`
    OwnerName        string      `json:"owner_name"`
    SplitTitle       string      `json:"split_title"`
    SplitDescription string      `json:"split_description"`
    SplitPicture     string      `json:"split_picture"`
    AmountCents      int64       `json:"amount_cents"`
    FeeCents         int64       `json:"fee_cents"`
    CreatedAt        time.Time   `json:"created_at"`
    UpdatedAt        time.Time   `json:"updated_at"`
}
