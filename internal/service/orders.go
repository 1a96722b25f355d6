package service

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "math"
    "strings"

    "go.uber.org/zap"

    "github.com/splitkart/split-backend/internal/conversation"
    "github.com/splitkart/split-backend/internal/middleware"
    "github.com/splitkart/split-backend/internal/model"
    "github.com/splitkart/split-backend/internal/payment"
    "github.com/splitkart/split-backend/internal/repository"
)

// OrderService is the order lifecycle machine.  It owns order
// creation, the translation of gateway events into status
// transitions, and the owner/client shipping sub-flow.  Every
// multi-step change runs in one transaction: the order write, the
// seat mutation and the conversation membership update commit or
// roll back together.
type OrderService struct {
    DB         *sql.DB
    Orders     *repository.OrderRepo
    Splits     *repository.SplitRepo
    Users      *repository.UserRepo
    Seats      *SeatEngine
    Gateway    payment.Gateway
    Convos     conversation.Service
    FeePercent float64
    Log        *zap.Logger
}

// NewOrderService constructs an OrderService.  All dependencies must be non-nil.
func NewOrderService(db *sql.DB, orders *repository.OrderRepo, splits *repository.SplitRepo, users *repository.UserRepo,
    seats *SeatEngine, gw payment.Gateway, convos conversation.Service, feePercent float64, log *zap.Logger) *OrderService {
    if db == nil || orders == nil || splits == nil || users == nil || seats == nil || gw == nil || convos == nil || log == nil {
        panic("nil dependency passed to NewOrderService")
    }
    return &OrderService{
        DB: db, Orders: orders, Splits: splits, Users: users,
        Seats: seats, Gateway: gw, Convos: convos, FeePercent: feePercent, Log: log,
    }
}

// CreateOrderInput carries a join request after transport-level
// binding.  ClientID comes from the authenticated context, never the
// body.
type CreateOrderInput struct {
    ClientID         uint64 `json:"-"`
    SplitID          uint64 `json:"split_id"`
    NumSeats         uint32 `json:"num_seats"`
    PaymentIntentRef string `json:"payment_intent_ref"`
    PaymentMethodRef string `json:"payment_method_ref"`
}

// Create reserves seats on a split for a client.  The capacity check
// here is advisory; the authoritative re-check happens at commit time
// inside the guarded seat reservation.  When anything fails after the
// authorization was validated, the authorization is compensated —
// refunded if settled, cancelled otherwise — before the failure
// envelope is returned, so no order is ever left bound to a dangling
// authorization.
func (s *OrderService) Create(ctx context.Context, in CreateOrderInput) *OrderResult {
    if in.NumSeats < 1 {
        return &OrderResult{Result: failure(fmt.Errorf("%w: num_seats must be at least 1", errValidation))}
    }
    if strings.TrimSpace(in.PaymentIntentRef) == "" {
        return &OrderResult{Result: failure(fmt.Errorf("%w: payment_intent_ref is required", errValidation))}
    }

    // An authorization handle may be consumed by at most one order,
    // ever; and one client holds at most one live order per split.
    taken, err := s.Orders.ExistsByPaymentIntent(ctx, in.PaymentIntentRef)
    if err != nil {
        return s.internalFailure("check payment intent", err)
    }
    if taken {
        return &OrderResult{Result: failure(repository.ErrDuplicateReservation)}
    }
    if _, err := s.Orders.ActiveBySplitAndClient(ctx, in.SplitID, in.ClientID); err == nil {
        return &OrderResult{Result: failure(repository.ErrDuplicateReservation)}
    } else if !errors.Is(err, repository.ErrOrderNotFound) {
        return s.internalFailure("check existing order", err)
    }

    auth, err := s.Gateway.GetAuthorization(ctx, in.PaymentIntentRef)
    if err != nil {
        return &OrderResult{Result: failure(err)}
    }

    split, err := s.Splits.GetByID(ctx, in.SplitID)
    if err != nil {
        return s.compensate(ctx, auth, &OrderResult{Result: failure(err)})
    }
    if split.Variant != model.VariantApp {
        return s.compensate(ctx, auth, &OrderResult{Result: failure(fmt.Errorf("%w: legacy splits cannot be joined", errValidation))})
    }
    if split.PlacesLeft < in.NumSeats {
        return s.compensate(ctx, auth, &OrderResult{Result: failure(repository.ErrCapacityExceeded)})
    }

    client, err := s.Users.GetByID(ctx, in.ClientID)
    if err != nil {
        return s.compensate(ctx, auth, s.internalFailure("load client", err))
    }
    owner, err := s.Users.GetByID(ctx, split.OwnerID)
    if err != nil {
        return s.compensate(ctx, auth, s.internalFailure("load owner", err))
    }

    amount := split.SeatPriceCents() * int64(in.NumSeats)
    fee := int64(math.Round(float64(amount) * s.FeePercent / 100))

    status := model.OrderPaymentPending
    if mapped, ok := model.StatusFromGateway(auth.Status); ok {
        status = mapped
    }

    order := &model.Order{
        ClientID:         in.ClientID,
        OwnerID:          split.OwnerID,
        SplitID:          split.ID,
        NumSeats:         in.NumSeats,
        PaymentIntentRef: in.PaymentIntentRef,
        PaymentMethodRef: in.PaymentMethodRef,
        Status:           status,
        ClientName:       client.DisplayName,
        OwnerName:        owner.DisplayName,
        SplitTitle:       split.Title,
        SplitDescription: split.Description,
        SplitPicture:     split.Picture,
        AmountCents:      amount,
        FeeCents:         fee,
    }

    tx, err := s.DB.BeginTx(ctx, nil)
    if err != nil {
        return s.compensate(ctx, auth, s.internalFailure("begin transaction", err))
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    if err := s.Orders.CreateTx(ctx, tx, order); err != nil {
        return s.compensate(ctx, auth, &OrderResult{Result: failure(err)})
    }
    if _, err := s.Seats.Reserve(ctx, tx, split.ID, int64(in.NumSeats)); err != nil {
        return s.compensate(ctx, auth, &OrderResult{Result: failure(err)})
    }
    if split.ConversationID != nil {
        role := conversation.RoleReadonly
        if auth.Settled() {
            role = conversation.RoleFull
        }
        if err := s.Convos.Join(ctx, *split.ConversationID, in.ClientID, role); err != nil {
            return s.compensate(ctx, auth, s.internalFailure("join conversation", err))
        }
    }
    if err := tx.Commit(); err != nil {
        return s.compensate(ctx, auth, s.internalFailure("commit transaction", err))
    }
    committed = true

    middleware.RecordOrderCreated(string(order.Status))
    s.Log.Info("order created",
        zap.Uint64("order_id", order.ID),
        zap.Uint64("split_id", split.ID),
        zap.Uint64("client_id", in.ClientID),
        zap.Uint32("num_seats", in.NumSeats),
        zap.String("status", string(order.Status)))
    return &OrderResult{Result: okResult("order created"), Order: order}
}

// compensate unwinds the payment authorization after a failed create:
// a settled charge is refunded, an unsettled one cancelled.  The
// failure envelope passed in is returned unchanged; compensation
// errors are logged for reconciliation, never masked over the
// original failure.
func (s *OrderService) compensate(ctx context.Context, auth *payment.Authorization, res *OrderResult) *OrderResult {
    if auth.Settled() {
        if _, err := s.Gateway.Refund(ctx, auth.ID, false); err != nil && !errors.Is(err, payment.ErrAlreadyRefunded) {
            s.Log.Error("compensation refund failed",
                zap.String("payment_intent", auth.ID), zap.Error(err))
        } else {
            middleware.RecordRefundIssued(false)
        }
        return res
    }
    if err := s.Gateway.CancelAuthorization(ctx, auth.ID); err != nil {
        s.Log.Error("compensation cancel failed",
            zap.String("payment_intent", auth.ID), zap.Error(err))
    }
    return res
}

// relevantEventTypes are the only webhook event types that drive
// order transitions; everything else is accepted and ignored.
var relevantEventTypes = map[string]bool{
    "payment_intent.succeeded":      true,
    "payment_intent.payment_failed": true,
    "payment_intent.canceled":       true,
    "payment_intent.processing":     true,
}

// ApplyGatewayEvent updates the order bound to the event's
// authorization.  Exitable outcomes (system cancel, payment failure)
// release the order's seats and remove the client from the split
// conversation in the same transaction; a settled payment only
// promotes the client's conversation role.  An event for an unknown
// authorization fails with OrderNotFound; an irrelevant event type is
// a successful no-op.
func (s *OrderService) ApplyGatewayEvent(ctx context.Context, ev *payment.Event) *OrderResult {
    if !relevantEventTypes[ev.Type] {
        return &OrderResult{Result: okResult("event ignored")}
    }

    found, err := s.Orders.GetByPaymentIntent(ctx, ev.Data.Object.ID)
    if err != nil {
        return &OrderResult{Result: failure(err)}
    }

    tx, err := s.DB.BeginTx(ctx, nil)
    if err != nil {
        return s.internalFailure("begin transaction", err)
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    order, err := s.Orders.GetByIDForUpdateTx(ctx, tx, found.ID)
    if err != nil {
        return &OrderResult{Result: failure(err)}
    }

    split, err := s.Splits.GetByID(ctx, order.SplitID)
    if err != nil {
        return &OrderResult{Result: failure(err)}
    }

    newStatus, ok := model.StatusFromGateway(ev.Data.Object.Status)
    if !ok {
        // "processing" demotes the client's conversation role while
        // the charge settles; no order transition happens.
        if ev.Data.Object.Status == "processing" && split.ConversationID != nil {
            if err := s.Convos.SetRole(ctx, *split.ConversationID, order.ClientID, conversation.RoleReadonly); err != nil {
                return s.internalFailure("demote conversation role", err)
            }
        }
        if err := tx.Commit(); err != nil {
            return s.internalFailure("commit transaction", err)
        }
        committed = true
        return &OrderResult{Result: okResult("event acknowledged"), Order: order}
    }
    if order.Status == newStatus {
        committed = true
        _ = tx.Commit()
        return &OrderResult{Result: okResult("already applied"), Order: order}
    }
    // A late or replayed settlement event must not pull an order that
    // already moved past PAID, or already exited, back into it.
    if newStatus == model.OrderPaid && order.Status != model.OrderPaymentPending {
        committed = true
        _ = tx.Commit()
        return &OrderResult{Result: okResult("event superseded"), Order: order}
    }

    prev := order.Status
    if err := s.Orders.UpdateStatusTx(ctx, tx, order.ID, newStatus); err != nil {
        return &OrderResult{Result: failure(err)}
    }
    order.Status = newStatus

    switch {
    case newStatus.Exitable():
        // Release seats only if the order still occupied them: a
        // second exit event must not double-release.
        if !prev.Released() {
            if _, err := s.Seats.Reserve(ctx, tx, order.SplitID, -int64(order.NumSeats)); err != nil {
                return &OrderResult{Result: failure(err)}
            }
        }
        if split.ConversationID != nil {
            if err := s.Convos.RemoveParticipant(ctx, *split.ConversationID, order.ClientID); err != nil {
                return s.internalFailure("remove conversation participant", err)
            }
        }
    case newStatus == model.OrderPaid:
        if split.ConversationID != nil {
            if err := s.Convos.SetRole(ctx, *split.ConversationID, order.ClientID, conversation.RoleFull); err != nil {
                return s.internalFailure("promote conversation role", err)
            }
        }
    }

    if err := tx.Commit(); err != nil {
        return s.internalFailure("commit transaction", err)
    }
    committed = true

    s.Log.Info("gateway event applied",
        zap.Uint64("order_id", order.ID),
        zap.String("from", string(prev)),
        zap.String("to", string(newStatus)))
    return &OrderResult{Result: okResult("event applied"), Order: order}
}

// MarkShipped moves a PAID order to SHIPPED.  Only the split owner
// may ship; any other current status rejects with
// InvalidStageTransition.
func (s *OrderService) MarkShipped(ctx context.Context, orderID, callerID uint64) *OrderResult {
    return s.shift(ctx, orderID, model.OrderPaid, model.OrderShipped, func(o *model.Order) bool {
        return o.OwnerID == callerID
    })
}

// MarkReceived moves a SHIPPED order to RECEIVED.  Only the ordering
// client may confirm receipt.
func (s *OrderService) MarkReceived(ctx context.Context, orderID, callerID uint64) *OrderResult {
    return s.shift(ctx, orderID, model.OrderShipped, model.OrderReceived, func(o *model.Order) bool {
        return o.ClientID == callerID
    })
}

func (s *OrderService) shift(ctx context.Context, orderID uint64, from, to model.OrderStatus, allowed func(*model.Order) bool) *OrderResult {
    tx, err := s.DB.BeginTx(ctx, nil)
    if err != nil {
        return s.internalFailure("begin transaction", err)
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    order, err := s.Orders.GetByIDForUpdateTx(ctx, tx, orderID)
    if err != nil {
        return &OrderResult{Result: failure(err)}
    }
    if !allowed(order) {
        return &OrderResult{Result: failure(repository.ErrForbidden)}
    }
    if order.Status != from {
        return &OrderResult{Result: failure(repository.ErrInvalidStageTransition)}
    }
    if err := s.Orders.UpdateStatusTx(ctx, tx, orderID, to); err != nil {
        return &OrderResult{Result: failure(err)}
    }
    if err := tx.Commit(); err != nil {
        return s.internalFailure("commit transaction", err)
    }
    committed = true
    order.Status = to
    return &OrderResult{Result: okResult("order " + strings.ToLower(string(to))), Order: order}
}

// internalFailure logs the underlying error and returns the generic
// envelope; unexpected details never cross the API boundary.
func (s *OrderService) internalFailure(op string, err error) *OrderResult {
    s.Log.Error(op, zap.Error(err))
    return &OrderResult{Result: failure(err)}
}
