package repository

import (
    "context"
    "database/sql"
    "errors"
    "testing"

    "github.com/DATA-DOG/go-sqlmock"
    "github.com/go-sql-driver/mysql"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func newTx(t *testing.T) (*sql.Tx, sqlmock.Sqlmock, func()) {
    t.Helper()
    db, mock, err := sqlmock.New()
    require.NoError(t, err)
    mock.ExpectBegin()
    tx, err := db.BeginTx(context.Background(), nil)
    require.NoError(t, err)
    return tx, mock, func() { _ = db.Close() }
}

func TestReserveSeatsTxSuccess(t *testing.T) {
    tx, mock, done := newTx(t)
    defer done()

    mock.ExpectExec("UPDATE splits").
        WithArgs(uint32(3), uint32(3), uint64(7), "ACTIVE", uint32(3)).
        WillReturnResult(sqlmock.NewResult(0, 1))

    repo := NewSplitRepo(nil)
    err := repo.ReserveSeatsTx(context.Background(), tx, 7, 3)
    assert.NoError(t, err)
    assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveSeatsTxCapacityExceeded(t *testing.T) {
    tx, mock, done := newTx(t)
    defer done()

    // Guarded UPDATE matches nothing, split exists: capacity is the
    // culprit.
    mock.ExpectExec("UPDATE splits").
        WithArgs(uint32(3), uint32(3), uint64(7), "ACTIVE", uint32(3)).
        WillReturnResult(sqlmock.NewResult(0, 0))
    mock.ExpectQuery("SELECT EXISTS").
        WithArgs(uint64(7)).
        WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

    repo := NewSplitRepo(nil)
    err := repo.ReserveSeatsTx(context.Background(), tx, 7, 3)
    assert.ErrorIs(t, err, ErrCapacityExceeded)
    assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveSeatsTxSplitMissing(t *testing.T) {
    tx, mock, done := newTx(t)
    defer done()

    mock.ExpectExec("UPDATE splits").
        WillReturnResult(sqlmock.NewResult(0, 0))
    mock.ExpectQuery("SELECT EXISTS").
        WithArgs(uint64(99)).
        WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

    repo := NewSplitRepo(nil)
    err := repo.ReserveSeatsTx(context.Background(), tx, 99, 1)
    assert.ErrorIs(t, err, ErrSplitNotFound)
}

func TestReserveSeatsTxDeadlockTranslated(t *testing.T) {
    tx, mock, done := newTx(t)
    defer done()

    mock.ExpectExec("UPDATE splits").
        WillReturnError(&mysql.MySQLError{Number: 1213, Message: "Deadlock found"})

    repo := NewSplitRepo(nil)
    err := repo.ReserveSeatsTx(context.Background(), tx, 7, 1)
    assert.ErrorIs(t, err, ErrConcurrencyConflict)
}

func TestReleaseSeatsTxMissingSplit(t *testing.T) {
    tx, mock, done := newTx(t)
    defer done()

    mock.ExpectExec("UPDATE splits").
        WithArgs(uint32(2), uint32(2), uint64(42)).
        WillReturnResult(sqlmock.NewResult(0, 0))

    repo := NewSplitRepo(nil)
    err := repo.ReleaseSeatsTx(context.Background(), tx, 42, 2)
    assert.ErrorIs(t, err, ErrSplitNotFound)
}

func TestSetTerminalTxAlreadyTerminal(t *testing.T) {
    tx, mock, done := newTx(t)
    defer done()

    mock.ExpectExec("UPDATE splits").
        WithArgs("CANCELLED", "sold elsewhere", uint64(7), "CANCELLED", "EXPIRED").
        WillReturnResult(sqlmock.NewResult(0, 0))
    mock.ExpectQuery("SELECT EXISTS").
        WithArgs(uint64(7)).
        WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

    repo := NewSplitRepo(nil)
    err := repo.SetTerminalTx(context.Background(), tx, 7, "CANCELLED", "sold elsewhere")
    assert.ErrorIs(t, err, ErrAlreadyTerminal)
}

func TestTranslateLockErr(t *testing.T) {
    assert.ErrorIs(t, translateLockErr(&mysql.MySQLError{Number: 1213}), ErrConcurrencyConflict)
    assert.ErrorIs(t, translateLockErr(&mysql.MySQLError{Number: 1205}), ErrConcurrencyConflict)

    other := &mysql.MySQLError{Number: 1062}
    assert.Equal(t, error(other), translateLockErr(other))

    plain := errors.New("boom")
    assert.Equal(t, plain, translateLockErr(plain))
    assert.NoError(t, translateLockErr(nil))
}
