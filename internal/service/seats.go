package service

import (
    "context"
    "database/sql"
    "fmt"

    "go.uber.org/zap"

    "github.com/splitkart/split-backend/internal/conversation"
    "github.com/splitkart/split-backend/internal/middleware"
    "github.com/splitkart/split-backend/internal/model"
    "github.com/splitkart/split-backend/internal/repository"
)

// SeatEngine owns every mutation of a split's seat counters and the
// status those counters imply.  Callers supply the enclosing
// transaction; two concurrent reservations on the same split
// serialize on the row lock taken by the guarded UPDATE, so neither
// can observe the other's pre-update places_left.
type SeatEngine struct {
    Splits    *repository.SplitRepo
    ConvoRepo *repository.ConversationRepo
    Convos    conversation.Service
    Log       *zap.Logger
}

// NewSeatEngine constructs a SeatEngine.  All dependencies must be non-nil.
func NewSeatEngine(splits *repository.SplitRepo, convoRepo *repository.ConversationRepo, convos conversation.Service, log *zap.Logger) *SeatEngine {
    if splits == nil || convoRepo == nil || convos == nil || log == nil {
        panic("nil dependency passed to NewSeatEngine")
    }
    return &SeatEngine{Splits: splits, ConvoRepo: convoRepo, Convos: convos, Log: log}
}

// Reserve applies delta seats to the split inside tx and derives the
// status implied by the new counters:
//
//   places_left == 0 while ACTIVE  -> COMPLETE, "split completed" message
//   places_left  > 0 while COMPLETE -> ACTIVE, "split reset" message
//
// No other status transition happens through this path.  A positive
// delta is guarded against capacity at commit time; the join-time
// check belongs to the order lifecycle machine, because a release can
// legally occur when places_left is already zero.  The updated split
// is returned.
func (e *SeatEngine) Reserve(ctx context.Context, tx *sql.Tx, splitID uint64, delta int64) (*model.Split, error) {
    switch {
    case delta > 0:
        if err := e.Splits.ReserveSeatsTx(ctx, tx, splitID, uint32(delta)); err != nil {
            return nil, err
        }
        middleware.RecordSeatsReserved(delta)
    case delta < 0:
        if err := e.Splits.ReleaseSeatsTx(ctx, tx, splitID, uint32(-delta)); err != nil {
            return nil, err
        }
        middleware.RecordSeatsReleased(-delta)
    }

    s, err := e.Splits.GetForUpdateTx(ctx, tx, splitID)
    if err != nil {
        return nil, err
    }

    switch {
    case s.PlacesLeft == 0 && s.Status == model.SplitActive:
        if err := e.Splits.UpdateStatusTx(ctx, tx, splitID, model.SplitComplete); err != nil {
            return nil, err
        }
        s.Status = model.SplitComplete
        e.postSystemMessage(ctx, s, "All places are taken. The split is complete!", "split_completed")
    case s.PlacesLeft > 0 && s.Status == model.SplitComplete:
        if err := e.Splits.UpdateStatusTx(ctx, tx, splitID, model.SplitActive); err != nil {
            return nil, err
        }
        s.Status = model.SplitActive
        e.postSystemMessage(ctx, s, fmt.Sprintf("A place opened up. %d left.", s.PlacesLeft), "split_reset")
    }
    return s, nil
}

// postSystemMessage emits a lifecycle notice to the split's thread.
// Message delivery is best-effort: the messaging service is outside
// the transactional boundary, so a failure here is logged for
// reconciliation rather than aborting the seat mutation.
func (e *SeatEngine) postSystemMessage(ctx context.Context, s *model.Split, text, tag string) {
    if s.ConversationID == nil {
        return
    }
    if err := e.Convos.PostSystemMessage(ctx, *s.ConversationID, text, tag); err != nil {
        e.Log.Warn("system message delivery failed",
            zap.Uint64("split_id", s.ID),
            zap.String("event", tag),
            zap.Error(err))
    }
}
