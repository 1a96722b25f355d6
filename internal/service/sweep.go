package service

import (
    "context"
    "fmt"
    "time"

    "go.uber.org/zap"

    "github.com/splitkart/split-backend/internal/conversation"
    "github.com/splitkart/split-backend/internal/middleware"
    "github.com/splitkart/split-backend/internal/model"
    "github.com/splitkart/split-backend/internal/repository"
)

// Sweeper runs the daily expiration pass over splits: a heads-up
// message five days before expiry, a final warning on the last day,
// and teardown of anything already past its date.  The three passes
// are independent; a failure in one never blocks the others.
type Sweeper struct {
    Splits  *repository.SplitRepo
    Orch    *Orchestrator
    Chat    conversation.Service
    HourUTC int
    Log     *zap.Logger
}

// NewSweeper constructs a Sweeper.  hourUTC is the hour of day, in
// UTC, at which the daily run fires.
func NewSweeper(splits *repository.SplitRepo, orch *Orchestrator, chat conversation.Service, hourUTC int, log *zap.Logger) *Sweeper {
    if splits == nil || orch == nil || chat == nil || log == nil {
        panic("nil dependency passed to NewSweeper")
    }
    if hourUTC < 0 || hourUTC > 23 {
        hourUTC = 3
    }
    return &Sweeper{Splits: splits, Orch: orch, Chat: chat, HourUTC: hourUTC, Log: log}
}

// SweepReport summarizes one sweep run.
type SweepReport struct {
    Notices      int      `json:"notices"`
    FinalNotices int      `json:"final_notices"`
    Expired      int      `json:"expired"`
    Errors       []string `json:"errors,omitempty"`
}

// Start launches the daily loop in a goroutine.  The first run fires
// at the next occurrence of the configured UTC hour; the loop exits
// when the context is cancelled.
func (w *Sweeper) Start(ctx context.Context) {
    go func() {
        for {
            next := nextRunAfter(time.Now().UTC(), w.HourUTC)
            timer := time.NewTimer(time.Until(next))
            select {
            case <-ctx.Done():
                timer.Stop()
                return
            case <-timer.C:
            }
            report := w.Run(ctx)
            w.Log.Info("expiration sweep finished",
                zap.Int("notices", report.Notices),
                zap.Int("final_notices", report.FinalNotices),
                zap.Int("expired", report.Expired),
                zap.Strings("errors", report.Errors))
        }
    }()
}

func nextRunAfter(now time.Time, hourUTC int) time.Time {
    next := time.Date(now.Year(), now.Month(), now.Day(), hourUTC, 0, 0, 0, time.UTC)
    if !next.After(now) {
        next = next.AddDate(0, 0, 1)
    }
    return next
}

// Run performs one full sweep and returns what happened.  Per-split
// failures are collected into the report instead of aborting the run,
// so one broken split cannot shield the rest from expiring.
func (w *Sweeper) Run(ctx context.Context) *SweepReport {
    report := &SweepReport{}
    now := time.Now().UTC()

    // Pass 1: five-day heads-up.
    upcoming, err := w.Splits.ExpiringBetween(ctx, now.AddDate(0, 0, 4), now.AddDate(0, 0, 5))
    if err != nil {
        report.Errors = append(report.Errors, fmt.Sprintf("list upcoming: %v", err))
    } else {
        for i := range upcoming {
            if w.notify(ctx, &upcoming[i],
                "This split expires in 5 days.  Spread the word before the seats go away.", "expiry_notice") {
                report.Notices++
            }
        }
    }

    // Pass 2: last-day warning.
    lastDay, err := w.Splits.ExpiringBetween(ctx, now, now.AddDate(0, 0, 1))
    if err != nil {
        report.Errors = append(report.Errors, fmt.Sprintf("list last-day: %v", err))
    } else {
        for i := range lastDay {
            if w.notify(ctx, &lastDay[i],
                "Last day!  This split expires today and all remaining orders will be refunded.", "expiry_final_notice") {
                report.FinalNotices++
            }
        }
    }

    // Pass 3: teardown of everything past its date.
    overdue, err := w.Splits.ExpiredBefore(ctx, now)
    if err != nil {
        report.Errors = append(report.Errors, fmt.Sprintf("list overdue: %v", err))
        return report
    }
    for i := range overdue {
        s := &overdue[i]
        res := w.Orch.CancelSplit(ctx, s.ID, 0, "", model.SplitExpired, "expiration date reached")
        if !res.Success {
            report.Errors = append(report.Errors, fmt.Sprintf("expire split %d: %s", s.ID, res.Message))
            continue
        }
        middleware.RecordSplitExpired()
        report.Expired++
    }
    return report
}

// notify posts a system message into the split's conversation.  A
// missing conversation or a messaging failure is not an error worth
// stopping the sweep for; it only costs the notice.
func (w *Sweeper) notify(ctx context.Context, s *model.Split, text, tag string) bool {
    if s.ConversationID == nil {
        return false
    }
    if err := w.Chat.PostSystemMessage(ctx, *s.ConversationID, text, tag); err != nil {
        w.Log.Warn("expiry notice failed", zap.Uint64("split_id", s.ID), zap.Error(err))
        return false
    }
    return true
}
