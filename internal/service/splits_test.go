package service

import (
    "context"
    "database/sql"
    "net/http"
    "testing"
    "time"

    "github.com/DATA-DOG/go-sqlmock"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
    "go.uber.org/zap/zaptest"

    "github.com/splitkart/split-backend/internal/conversation"
    "github.com/splitkart/split-backend/internal/model"
    "github.com/splitkart/split-backend/internal/repository"
)

func validCreateSplitInput() CreateSplitInput {
    return CreateSplitInput{
        OwnerID:        10,
        Title:          "Bulk coffee beans",
        NumPlaces:      4,
        OwnerSeats:     1,
        PriceCents:     10000,
        ExpirationDate: time.Now().AddDate(0, 0, 14),
    }
}

func newSplitService(t *testing.T, db *sql.DB, chat *fakeChat) *SplitService {
    t.Helper()
    return NewSplitService(db, repository.NewSplitRepo(db), repository.NewConversationRepo(db), chat, zaptest.NewLogger(t))
}

func TestCreateSplitRollsBackWhenThreadProvisioningFails(t *testing.T) {
    db, mock, err := sqlmock.New()
    require.NoError(t, err)
    defer db.Close()

    mock.ExpectBegin()
    mock.ExpectExec("INSERT INTO splits").
        WillReturnResult(sqlmock.NewResult(7, 1))
    mock.ExpectQuery("FROM splits").
        WillReturnRows(splitRow(7, 1, 3, model.SplitActive, nil))
    // The messaging provider refuses, so the insert must not survive:
    // no browsable split without a thread.
    mock.ExpectRollback()

    chat := newFakeChat()
    chat.createFunc = func(ctx context.Context, title string, splitID uint64) (*conversation.Thread, error) {
        return nil, assert.AnError
    }
    svc := newSplitService(t, db, chat)
    res := svc.Create(context.Background(), validCreateSplitInput())
    assert.False(t, res.Success)
    assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateSplitBindsConversation(t *testing.T) {
    db, mock, err := sqlmock.New()
    require.NoError(t, err)
    defer db.Close()

    mock.ExpectBegin()
    mock.ExpectExec("INSERT INTO splits").
        WillReturnResult(sqlmock.NewResult(7, 1))
    mock.ExpectQuery("FROM splits").
        WillReturnRows(splitRow(7, 1, 3, model.SplitActive, nil))
    mock.ExpectExec("INSERT INTO conversations").
        WillReturnResult(sqlmock.NewResult(3, 1))
    now := time.Now().UTC()
    mock.ExpectQuery("FROM conversations").
        WillReturnRows(sqlmock.NewRows([]string{"frozen", "created_at", "updated_at"}).AddRow(false, now, now))
    mock.ExpectExec("UPDATE splits SET conversation_id").
        WillReturnResult(sqlmock.NewResult(0, 1))
    mock.ExpectCommit()

    svc := newSplitService(t, db, newFakeChat())
    res := svc.Create(context.Background(), validCreateSplitInput())
    require.True(t, res.Success, res.Message)
    require.NotNil(t, res.Split.ConversationID)
    assert.Equal(t, uint64(3), *res.Split.ConversationID)
    assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateSplitInputValidate(t *testing.T) {
    tests := []struct {
        name   string
        mutate func(*CreateSplitInput)
        ok     bool
    }{
        {"valid", func(in *CreateSplitInput) {}, true},
        {"blank title", func(in *CreateSplitInput) { in.Title = "   " }, false},
        {"single place", func(in *CreateSplitInput) { in.NumPlaces = 1 }, false},
        {"owner takes everything", func(in *CreateSplitInput) { in.OwnerSeats = 4 }, false},
        {"free split", func(in *CreateSplitInput) { in.PriceCents = 0 }, false},
        {"expired on arrival", func(in *CreateSplitInput) { in.ExpirationDate = time.Now().Add(-time.Hour) }, false},
        {"descending ladder", func(in *CreateSplitInput) { in.SplitPrices = []int64{2000, 1500, 1800} }, false},
        {"ascending ladder", func(in *CreateSplitInput) { in.SplitPrices = []int64{1500, 1800, 2000} }, true},
    }
    for _, tc := range tests {
        t.Run(tc.name, func(t *testing.T) {
            in := validCreateSplitInput()
            tc.mutate(&in)
            err := in.validate()
            if tc.ok {
                assert.NoError(t, err)
            } else {
                assert.Error(t, err)
                res := failure(err)
                assert.Equal(t, http.StatusBadRequest, res.Code)
            }
        })
    }
}
