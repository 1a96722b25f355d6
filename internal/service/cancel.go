package service

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "time"

    "go.uber.org/zap"

    "github.com/splitkart/split-backend/internal/conversation"
    "github.com/splitkart/split-backend/internal/middleware"
    "github.com/splitkart/split-backend/internal/model"
    "github.com/splitkart/split-backend/internal/payment"
    "github.com/splitkart/split-backend/internal/queue"
    "github.com/splitkart/split-backend/internal/repository"
)

// Orchestrator drives the cancellation and refund flows: a single
// paid order cancelled by either side, and the whole-split teardown
// used by both the owner cancel endpoint and the expiration sweep.
// Refunds must succeed before the local transaction commits; a
// gateway failure rolls everything back so the order keeps its seats
// and its money.
type Orchestrator struct {
    DB      *sql.DB
    Orders  *repository.OrderRepo
    Splits  *repository.SplitRepo
    Convos  *repository.ConversationRepo
    Seats   *SeatEngine
    Gateway payment.Gateway
    Chat    conversation.Service
    Log     *zap.Logger
}

// NewOrchestrator constructs an Orchestrator.  All dependencies must be non-nil.
func NewOrchestrator(db *sql.DB, orders *repository.OrderRepo, splits *repository.SplitRepo, convos *repository.ConversationRepo,
    seats *SeatEngine, gw payment.Gateway, chat conversation.Service, log *zap.Logger) *Orchestrator {
    if db == nil || orders == nil || splits == nil || convos == nil || seats == nil || gw == nil || chat == nil || log == nil {
        panic("nil dependency passed to NewOrchestrator")
    }
    return &Orchestrator{DB: db, Orders: orders, Splits: splits, Convos: convos, Seats: seats, Gateway: gw, Chat: chat, Log: log}
}

// CancelByOwner cancels a client's paid order on the owner's behalf.
// The platform fee is reversed along with the charge, so the client
// is made whole at the owner's expense.
func (o *Orchestrator) CancelByOwner(ctx context.Context, splitID, clientID, callerID uint64) *OrderResult {
    return o.cancelOne(ctx, splitID, clientID, callerID, true, model.OrderOwnerCanceled)
}

// CancelByClient cancels the caller's own paid order.  The platform
// fee is kept; only the charge itself comes back.
func (o *Orchestrator) CancelByClient(ctx context.Context, splitID, callerID uint64) *OrderResult {
    return o.cancelOne(ctx, splitID, callerID, callerID, false, model.OrderClientCanceled)
}

func (o *Orchestrator) cancelOne(ctx context.Context, splitID, clientID, callerID uint64, reverseFee bool, to model.OrderStatus) *OrderResult {
    split, err := o.Splits.GetByID(ctx, splitID)
    if err != nil {
        return &OrderResult{Result: failure(err)}
    }
    if reverseFee && split.OwnerID != callerID {
        return &OrderResult{Result: failure(repository.ErrForbidden)}
    }

    tx, err := o.DB.BeginTx(ctx, nil)
    if err != nil {
        return o.internalFailure("begin transaction", err)
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    order, err := o.Orders.PaidBySplitAndClientTx(ctx, tx, splitID, clientID)
    if err != nil {
        return &OrderResult{Result: failure(err)}
    }

    if err := o.Orders.UpdateStatusTx(ctx, tx, order.ID, to); err != nil {
        return &OrderResult{Result: failure(err)}
    }
    if _, err := o.Seats.Reserve(ctx, tx, splitID, -int64(order.NumSeats)); err != nil {
        return &OrderResult{Result: failure(err)}
    }
    if split.ConversationID != nil {
        if err := o.Chat.RemoveParticipant(ctx, *split.ConversationID, order.ClientID); err != nil {
            return o.internalFailure("remove conversation participant", err)
        }
    }

    // Refund while the row locks are still held: if the gateway says
    // no, nothing here happened.
    if _, err := o.Gateway.Refund(ctx, order.PaymentIntentRef, reverseFee); err != nil && !errors.Is(err, payment.ErrAlreadyRefunded) {
        return o.internalFailure("refund", err)
    }
    middleware.RecordRefundIssued(reverseFee)

    if err := tx.Commit(); err != nil {
        return o.internalFailure("commit transaction", err)
    }
    committed = true

    order.Status = to
    o.Log.Info("order cancelled",
        zap.Uint64("order_id", order.ID),
        zap.Uint64("split_id", splitID),
        zap.String("status", string(to)),
        zap.Bool("fee_reversed", reverseFee))
    return &OrderResult{Result: okResult("order cancelled and refunded"), Order: order}
}

// CancelSplit tears a split down into the given terminal status.
// Every live order is refunded and bulk-cancelled, the capacity
// fields are frozen as they stand, and the conversation is locked
// read-only with a final system message.  callerID zero marks a
// system-initiated cancel (the expiration sweep); otherwise the owner
// or an administrator may cancel.
func (o *Orchestrator) CancelSplit(ctx context.Context, splitID, callerID uint64, callerRole string, terminal model.SplitStatus, reason string) *SplitResult {
    if !terminal.Terminal() {
        return &SplitResult{Result: failure(fmt.Errorf("%w: %s is not a terminal status", errValidation, terminal))}
    }
    split, err := o.Splits.GetByID(ctx, splitID)
    if err != nil {
        return &SplitResult{Result: failure(err)}
    }
    if callerID != 0 && split.OwnerID != callerID && callerRole != model.RoleAdmin {
        return &SplitResult{Result: failure(repository.ErrForbidden)}
    }
    if split.Status.Terminal() {
        return &SplitResult{Result: failure(repository.ErrAlreadyTerminal)}
    }

    orderStatus := model.OrderOwnerCanceled
    if terminal == model.SplitExpired {
        orderStatus = model.OrderSystemCanceled
    }

    tx, err := o.DB.BeginTx(ctx, nil)
    if err != nil {
        return o.splitFailure("begin transaction", err)
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    // Lock the split first so a concurrent join serializes behind the
    // teardown instead of racing the bulk cancel.
    locked, err := o.Splits.GetForUpdateTx(ctx, tx, splitID)
    if err != nil {
        return &SplitResult{Result: failure(err)}
    }
    if locked.Status.Terminal() {
        return &SplitResult{Result: failure(repository.ErrAlreadyTerminal)}
    }

    cancelled, refunded, err := o.bulkCancel(ctx, tx, splitID, orderStatus)
    if err != nil {
        return o.splitFailure("bulk cancel orders", err)
    }

    if err := o.Splits.SetTerminalTx(ctx, tx, splitID, terminal, reason); err != nil {
        return &SplitResult{Result: failure(err)}
    }

    if locked.ConversationID != nil {
        if err := o.Convos.MarkFrozenTx(ctx, tx, splitID); err != nil {
            return o.splitFailure("freeze conversation record", err)
        }
        if err := o.Chat.Freeze(ctx, splitID); err != nil {
            return o.splitFailure("freeze conversation", err)
        }
        msg, tag := teardownMessage(terminal, reason)
        if err := o.Chat.PostSystemMessage(ctx, *locked.ConversationID, msg, tag); err != nil {
            o.Log.Warn("system message failed", zap.Uint64("split_id", splitID), zap.Error(err))
        }
    }

    if err := tx.Commit(); err != nil {
        return o.splitFailure("commit transaction", err)
    }
    committed = true

    locked.Status = terminal
    locked.CancelReason = reason
    o.Log.Info("split torn down",
        zap.Uint64("split_id", splitID),
        zap.String("status", string(terminal)),
        zap.Int("orders_cancelled", cancelled),
        zap.Int("refunds_issued", refunded))

    // Best effort: the teardown already committed, a broker outage
    // only costs the notification.
    go func() {
        pubCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
        defer cancel()
        _ = queue.PublishSplitLifecycle(pubCtx, queue.SplitLifecycleEvent{
            SplitID:         splitID,
            OwnerID:         locked.OwnerID,
            Title:           locked.Title,
            Status:          string(terminal),
            Reason:          reason,
            OrdersCancelled: cancelled,
            RefundsIssued:   refunded,
            OccurredAt:      time.Now().UTC().Format(time.RFC3339),
        })
    }()

    return &SplitResult{Result: okResult("split cancelled"), Split: locked}
}

// bulkCancel refunds every live order on a split and flips them to
// the given status in one statement.  Seats and conversation
// membership are deliberately untouched: the split is being frozen
// whole, so per-order unwinding would only churn rows that are about
// to stop mattering.
func (o *Orchestrator) bulkCancel(ctx context.Context, tx *sql.Tx, splitID uint64, to model.OrderStatus) (cancelled, refunded int, err error) {
    orders, err := o.Orders.ListBySplitTx(ctx, tx, splitID)
    if err != nil {
        return 0, 0, err
    }
    for i := range orders {
        ord := &orders[i]
        if ord.Status.Released() || ord.Status == to {
            continue
        }
        if _, err := o.Gateway.Refund(ctx, ord.PaymentIntentRef, true); err != nil {
            if errors.Is(err, payment.ErrAlreadyRefunded) {
                continue
            }
            return 0, 0, fmt.Errorf("refund order %d: %w", ord.ID, err)
        }
        middleware.RecordRefundIssued(true)
        refunded++
    }
    n, err := o.Orders.BulkUpdateStatusTx(ctx, tx, splitID, to)
    if err != nil {
        return 0, 0, err
    }
    return int(n), refunded, nil
}

func teardownMessage(terminal model.SplitStatus, reason string) (text, tag string) {
    if terminal == model.SplitExpired {
        return "This split expired before filling up.  All payments have been refunded.", "split_expired"
    }
    text = "The owner cancelled this split.  All payments have been refunded."
    if reason != "" {
        text = fmt.Sprintf("The owner cancelled this split: %s.  All payments have been refunded.", reason)
    }
    return text, "split_cancelled"
}

func (o *Orchestrator) internalFailure(op string, err error) *OrderResult {
    o.Log.Error(op, zap.Error(err))
    return &OrderResult{Result: failure(err)}
}

func (o *Orchestrator) splitFailure(op string, err error) *SplitResult {
    o.Log.Error(op, zap.Error(err))
    return &SplitResult{Result: failure(err)}
}
