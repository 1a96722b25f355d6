package service

import (
    "context"
    "database/sql"
    "errors"
    "testing"
    "time"

    "github.com/DATA-DOG/go-sqlmock"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
    "go.uber.org/zap/zaptest"

    "github.com/splitkart/split-backend/internal/model"
    "github.com/splitkart/split-backend/internal/repository"
)

var splitTestColumns = []string{
    "id", "owner_id", "variant", "title", "description", "picture",
    "num_places", "num_seats", "owner_seats", "places_left",
    "price_cents", "regular_price_cents", "sale_price_cents", "split_prices",
    "status", "cancel_reason", "expiration_date",
    "shipping_type", "conversation_id", "legacy_url", "legacy_id",
    "created_at", "updated_at",
}

// splitRow builds one mocked splits row with sensible defaults.
func splitRow(id uint64, numSeats, placesLeft uint32, status model.SplitStatus, conversationID interface{}) *sqlmock.Rows {
    now := time.Now().UTC()
    return sqlmock.NewRows(splitTestColumns).AddRow(
        id, uint64(10), "APP", "Bulk coffee beans", "20kg of beans", "https://img.example/beans.jpg",
        uint32(4), numSeats, uint32(1), placesLeft,
        int64(10000), int64(12000), int64(0), nil,
        string(status), nil, now.AddDate(0, 0, 14),
        "pickup", conversationID, nil, nil,
        now, now,
    )
}

func newSeatEngine(t *testing.T, db *sql.DB) (*SeatEngine, *fakeChat) {
    t.Helper()
    chat := newFakeChat()
    engine := NewSeatEngine(repository.NewSplitRepo(db), repository.NewConversationRepo(db), chat, zaptest.NewLogger(t))
    return engine, chat
}

func TestReserveFillsSplitToComplete(t *testing.T) {
    db, mock, err := sqlmock.New()
    require.NoError(t, err)
    defer db.Close()

    mock.ExpectBegin()
    mock.ExpectExec("UPDATE splits").
        WillReturnResult(sqlmock.NewResult(0, 1))
    mock.ExpectQuery("FOR UPDATE").
        WithArgs(uint64(7)).
        WillReturnRows(splitRow(7, 4, 0, model.SplitActive, int64(3)))
    mock.ExpectExec("UPDATE splits SET status").
        WithArgs("COMPLETE", uint64(7)).
        WillReturnResult(sqlmock.NewResult(0, 1))

    engine, chat := newSeatEngine(t, db)
    tx, err := db.BeginTx(context.Background(), nil)
    require.NoError(t, err)

    split, err := engine.Reserve(context.Background(), tx, 7, 2)
    require.NoError(t, err)
    assert.Equal(t, model.SplitComplete, split.Status)
    require.Len(t, chat.tags, 1)
    assert.Equal(t, "split_completed", chat.tags[0])
    assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReleaseReopensCompleteSplit(t *testing.T) {
    db, mock, err := sqlmock.New()
    require.NoError(t, err)
    defer db.Close()

    mock.ExpectBegin()
    mock.ExpectExec("UPDATE splits").
        WillReturnResult(sqlmock.NewResult(0, 1))
    mock.ExpectQuery("FOR UPDATE").
        WithArgs(uint64(7)).
        WillReturnRows(splitRow(7, 2, 2, model.SplitComplete, int64(3)))
    mock.ExpectExec("UPDATE splits SET status").
        WithArgs("ACTIVE", uint64(7)).
        WillReturnResult(sqlmock.NewResult(0, 1))

    engine, chat := newSeatEngine(t, db)
    tx, err := db.BeginTx(context.Background(), nil)
    require.NoError(t, err)

    split, err := engine.Reserve(context.Background(), tx, 7, -2)
    require.NoError(t, err)
    assert.Equal(t, model.SplitActive, split.Status)
    require.Len(t, chat.tags, 1)
    assert.Equal(t, "split_reset", chat.tags[0])
}

func TestReserveNoStatusChangeMidway(t *testing.T) {
    db, mock, err := sqlmock.New()
    require.NoError(t, err)
    defer db.Close()

    mock.ExpectBegin()
    mock.ExpectExec("UPDATE splits").
        WillReturnResult(sqlmock.NewResult(0, 1))
    mock.ExpectQuery("FOR UPDATE").
        WithArgs(uint64(7)).
        WillReturnRows(splitRow(7, 2, 2, model.SplitActive, int64(3)))

    engine, chat := newSeatEngine(t, db)
    tx, err := db.BeginTx(context.Background(), nil)
    require.NoError(t, err)

    split, err := engine.Reserve(context.Background(), tx, 7, 1)
    require.NoError(t, err)
    assert.Equal(t, model.SplitActive, split.Status)
    assert.Empty(t, chat.tags)
    assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveSurfacesCapacityError(t *testing.T) {
    db, mock, err := sqlmock.New()
    require.NoError(t, err)
    defer db.Close()

    mock.ExpectBegin()
    mock.ExpectExec("UPDATE splits").
        WillReturnResult(sqlmock.NewResult(0, 0))
    mock.ExpectQuery("SELECT EXISTS").
        WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

    engine, _ := newSeatEngine(t, db)
    tx, err := db.BeginTx(context.Background(), nil)
    require.NoError(t, err)

    _, err = engine.Reserve(context.Background(), tx, 7, 3)
    assert.ErrorIs(t, err, repository.ErrCapacityExceeded)
}

func TestStatusFlipSurvivesMessageFailure(t *testing.T) {
    db, mock, err := sqlmock.New()
    require.NoError(t, err)
    defer db.Close()

    mock.ExpectBegin()
    mock.ExpectExec("UPDATE splits").
        WillReturnResult(sqlmock.NewResult(0, 1))
    mock.ExpectQuery("FOR UPDATE").
        WillReturnRows(splitRow(7, 4, 0, model.SplitActive, int64(3)))
    mock.ExpectExec("UPDATE splits SET status").
        WillReturnResult(sqlmock.NewResult(0, 1))

    engine, chat := newSeatEngine(t, db)
    chat.postErr = errors.New("messaging outage")
    tx, err := db.BeginTx(context.Background(), nil)
    require.NoError(t, err)

    split, err := engine.Reserve(context.Background(), tx, 7, 2)
    require.NoError(t, err)
    assert.Equal(t, model.SplitComplete, split.Status)
}
