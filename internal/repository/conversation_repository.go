package repository

import (
    "context"
    "database/sql"
    "errors"

    "github.com/splitkart/split-backend/internal/model"
)

// ConversationRepo stores the local binding between a split and its
// thread in the external messaging service.  Membership and messages
// live in that service; this table only records the mapping and the
// frozen flag set when a split reaches a terminal status.
type ConversationRepo struct {
    db *sql.DB
}

// NewConversationRepo returns a new ConversationRepo bound to the given database.
func NewConversationRepo(db *sql.DB) *ConversationRepo { return &ConversationRepo{db: db} }

// CreateTx inserts the binding within the provided transaction and
// populates the generated ID on the passed model.
func (r *ConversationRepo) CreateTx(ctx context.Context, tx *sql.Tx, c *model.Conversation) error {
    const q = `INSERT INTO conversations (split_id, external_thread_id, title) VALUES (?, ?, ?)`
    result, err := tx.ExecContext(ctx, q, c.SplitID, c.ExternalThreadID, c.Title)
    if err != nil {
        return err
    }
    id, err := result.LastInsertId()
    if err != nil {
        return err
    }
    c.ID = uint64(id)
    const sel = `SELECT frozen, created_at, updated_at FROM conversations WHERE id = ?`
    return tx.QueryRowContext(ctx, sel, c.ID).Scan(&c.Frozen, &c.CreatedAt, &c.UpdatedAt)
}

// GetBySplitID returns the conversation bound to the split, or
// ErrConversationNotFound when the split has no thread (LEGACY
// splits never do).
func (r *ConversationRepo) GetBySplitID(ctx context.Context, splitID uint64) (*model.Conversation, error) {
    const q = `SELECT id, split_id, external_thread_id, title, frozen, created_at, updated_at
               FROM conversations WHERE split_id = ?`
    var c model.Conversation
    err := r.db.QueryRowContext(ctx, q, splitID).Scan(
        &c.ID, &c.SplitID, &c.ExternalThreadID, &c.Title, &c.Frozen, &c.CreatedAt, &c.UpdatedAt)
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrConversationNotFound
    }
    if err != nil {
        return nil, err
    }
    return &c, nil
}

// MarkFrozenTx flags the conversation read-only.  Called from the
// split cancel path in the same transaction that freezes the split.
func (r *ConversationRepo) MarkFrozenTx(ctx context.Context, tx *sql.Tx, splitID uint64) error {
    _, err := tx.ExecContext(ctx,
        `UPDATE conversations SET frozen = 1, updated_at = UTC_TIMESTAMP() WHERE split_id = ?`,
        splitID)
    return translateLockErr(err)
}
