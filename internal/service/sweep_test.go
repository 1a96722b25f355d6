package service

import (
    "context"
    "testing"
    "time"

    "github.com/DATA-DOG/go-sqlmock"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
    "go.uber.org/zap/zaptest"

    "github.com/splitkart/split-backend/internal/model"
    "github.com/splitkart/split-backend/internal/repository"
)

func TestNextRunAfter(t *testing.T) {
    base := time.Date(2026, 3, 10, 1, 30, 0, 0, time.UTC)

    next := nextRunAfter(base, 3)
    assert.Equal(t, time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC), next)

    // Already past today's slot: roll to tomorrow.
    next = nextRunAfter(base, 1)
    assert.Equal(t, time.Date(2026, 3, 11, 1, 0, 0, 0, time.UTC), next)

    // Exactly at the slot also rolls forward.
    next = nextRunAfter(time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC), 3)
    assert.Equal(t, time.Date(2026, 3, 11, 3, 0, 0, 0, time.UTC), next)
}

func TestNewSweeperClampsHour(t *testing.T) {
    db, _, err := sqlmock.New()
    require.NoError(t, err)
    defer db.Close()

    splits := repository.NewSplitRepo(db)
    chat := newFakeChat()
    orch := newOrchestrator(t, db, &fakeGateway{}, chat)
    w := NewSweeper(splits, orch, chat, 99, zaptest.NewLogger(t))
    assert.Equal(t, 3, w.HourUTC)
}

func TestRunSendsNoticesAndCollectsErrors(t *testing.T) {
    db, mock, err := sqlmock.New()
    require.NoError(t, err)
    defer db.Close()

    // Pass 1: one split gets a five-day notice.
    mock.ExpectQuery("FROM splits").
        WillReturnRows(splitRow(7, 2, 2, model.SplitActive, int64(3)))
    // Pass 2: listing fails; the error is collected, the run goes on.
    mock.ExpectQuery("FROM splits").
        WillReturnError(assert.AnError)
    // Pass 3: nothing overdue.
    mock.ExpectQuery("FROM splits").
        WillReturnRows(sqlmock.NewRows(splitTestColumns))

    splits := repository.NewSplitRepo(db)
    chat := newFakeChat()
    orch := newOrchestrator(t, db, &fakeGateway{}, chat)
    w := NewSweeper(splits, orch, chat, 3, zaptest.NewLogger(t))

    report := w.Run(context.Background())
    assert.Equal(t, 1, report.Notices)
    assert.Equal(t, 0, report.FinalNotices)
    assert.Equal(t, 0, report.Expired)
    require.Len(t, report.Errors, 1)
    require.Len(t, chat.tags, 1)
    assert.Equal(t, "expiry_notice", chat.tags[0])
    assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunSkipsNoticeWithoutConversation(t *testing.T) {
    db, mock, err := sqlmock.New()
    require.NoError(t, err)
    defer db.Close()

    mock.ExpectQuery("FROM splits").
        WillReturnRows(splitRow(7, 2, 2, model.SplitActive, nil))
    mock.ExpectQuery("FROM splits").
        WillReturnRows(sqlmock.NewRows(splitTestColumns))
    mock.ExpectQuery("FROM splits").
        WillReturnRows(sqlmock.NewRows(splitTestColumns))

    splits := repository.NewSplitRepo(db)
    chat := newFakeChat()
    orch := newOrchestrator(t, db, &fakeGateway{}, chat)
    w := NewSweeper(splits, orch, chat, 3, zaptest.NewLogger(t))

    report := w.Run(context.Background())
    assert.Equal(t, 0, report.Notices)
    assert.Empty(t, chat.tags)
}
