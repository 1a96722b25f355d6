package repository

import (
    "context"
    "database/sql"
    "encoding/json"
    "errors"
    "time"

    "github.com/go-sql-driver/mysql"

    "github.com/splitkart/split-backend/internal/model"
)

// SplitRepo provides persistence for splits.  All capacity mutation
// goes through the guarded *Tx methods so that the invariant
// num_seats + places_left == num_places holds for APP splits at all
// times.  Timestamps are stored in UTC.
type SplitRepo struct {
    db *sql.DB
}

// NewSplitRepo returns a new SplitRepo bound to the given database.
func NewSplitRepo(db *sql.DB) *SplitRepo { return &SplitRepo{db: db} }

// DB exposes the underlying handle so that the service layer can open
// transactions spanning several repositories.
func (r *SplitRepo) DB() *sql.DB { return r.db }

const splitColumns = `id, owner_id, variant, title, description, picture,
       num_places, num_seats, owner_seats, places_left,
       price_cents, regular_price_cents, sale_price_cents, split_prices,
       status, cancel_reason, expiration_date,
       shipping_type, conversation_id, legacy_url, legacy_id,
       created_at, updated_at`

// translateLockErr converts MySQL write-conflict errors into the
// retryable ErrConcurrencyConflict sentinel.  1213 is a deadlock,
// 1205 a lock wait timeout; both mean the statement did not apply.
func translateLockErr(err error) error {
    var me *mysql.MySQLError
    if errors.As(err, &me) && (me.Number == 1213 || me.Number == 1205) {
        return ErrConcurrencyConflict
    }
    return err
}

func scanSplit(row interface{ Scan(...interface{}) error }) (*model.Split, error) {
    var s model.Split
    var description, picture, cancelReason sql.NullString
    var shippingType, legacyURL, legacyID sql.NullString
    var splitPrices sql.NullString
    var conversationID sql.NullInt64
    err := row.Scan(
        &s.ID, &s.OwnerID, &s.Variant, &s.Title, &description, &picture,
        &s.NumPlaces, &s.NumSeats, &s.OwnerSeats, &s.PlacesLeft,
        &s.PriceCents, &s.RegularPriceCents, &s.SalePriceCents, &splitPrices,
        &s.Status, &cancelReason, &s.ExpirationDate,
        &shippingType, &conversationID, &legacyURL, &legacyID,
        &s.CreatedAt, &s.UpdatedAt,
    )
    if err != nil {
        return nil, err
    }
    s.Description = description.String
    s.Picture = picture.String
    s.CancelReason = cancelReason.String
    s.ShippingType = shippingType.String
    s.LegacyURL = legacyURL.String
    s.LegacyID = legacyID.String
    if conversationID.Valid {
        cid := uint64(conversationID.Int64)
        s.ConversationID = &cid
    }
    if splitPrices.Valid && splitPrices.String != "" {
        if err := json.Unmarshal([]byte(splitPrices.String), &s.SplitPrices); err != nil {
            return nil, err
        }
    }
    return &s, nil
}

// CreateTx inserts a new ACTIVE split within the scope of an existing
// transaction.  Owner seats are claimed immediately: num_seats starts
// at OwnerSeats and places_left at NumPlaces - OwnerSeats.  The
// generated ID and timestamps are populated on the passed model; the
// re-read stays inside the transaction so the uncommitted row is
// visible.
func (r *SplitRepo) CreateTx(ctx context.Context, tx *sql.Tx, s *model.Split) error {
    var prices interface{}
    if len(s.SplitPrices) > 0 {
        raw, err := json.Marshal(s.SplitPrices)
        if err != nil {
            return err
        }
        prices = string(raw)
    }
    const q = `INSERT INTO splits
        (owner_id, variant, title, description, picture,
         num_places, num_seats, owner_seats, places_left,
         price_cents, regular_price_cents, sale_price_cents, split_prices,
         status, expiration_date, shipping_type, legacy_url, legacy_id)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''))`
    result, err := tx.ExecContext(ctx, q,
        s.OwnerID, s.Variant, s.Title, s.Description, s.Picture,
        s.NumPlaces, s.OwnerSeats, s.OwnerSeats, s.NumPlaces-s.OwnerSeats,
        s.PriceCents, s.RegularPriceCents, s.SalePriceCents, prices,
        model.SplitActive, s.ExpirationDate.UTC(), s.ShippingType, s.LegacyURL, s.LegacyID,
    )
    if err != nil {
        return err
    }
    id, err := result.LastInsertId()
    if err != nil {
        return err
    }
    s.ID = uint64(id)
    // Query back the full row to populate defaults and timestamps.
    fresh, err := scanSplit(tx.QueryRowContext(ctx, `SELECT `+splitColumns+` FROM splits WHERE id = ?`, s.ID))
    if err != nil {
        return err
    }
    *s = *fresh
    return nil
}

// GetByID returns a single split or ErrSplitNotFound.
func (r *SplitRepo) GetByID(ctx context.Context, id uint64) (*model.Split, error) {
    s, err := scanSplit(r.db.QueryRowContext(ctx, `SELECT `+splitColumns+` FROM splits WHERE id = ?`, id))
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrSplitNotFound
    }
    return s, err
}

// GetForUpdateTx loads a split inside the transaction with a row lock
// so that concurrent capacity mutations on the same split serialize.
func (r *SplitRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Split, error) {
    s, err := scanSplit(tx.QueryRowContext(ctx, `SELECT `+splitColumns+` FROM splits WHERE id = ? FOR UPDATE`, id))
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrSplitNotFound
    }
    if err != nil {
        return nil, translateLockErr(err)
    }
    return s, nil
}

// ReserveSeatsTx atomically claims delta seats on an ACTIVE split.
// The guard re-validates capacity at commit time: when places_left is
// smaller than delta, or the split is not ACTIVE, zero rows match and
// ErrCapacityExceeded (or ErrSplitNotFound for an unknown id) is
// returned.  Concurrent reservations serialize on the row lock taken
// by the UPDATE.
func (r *SplitRepo) ReserveSeatsTx(ctx context.Context, tx *sql.Tx, id uint64, delta uint32) error {
    const q = `UPDATE splits
               SET num_seats = num_seats + ?, places_left = places_left - ?, updated_at = UTC_TIMESTAMP()
               WHERE id = ? AND status = ? AND places_left >= ?`
    result, err := tx.ExecContext(ctx, q, delta, delta, id, model.SplitActive, delta)
    if err != nil {
        return translateLockErr(err)
    }
    affected, err := result.RowsAffected()
    if err != nil {
        return err
    }
    if affected == 0 {
        // Distinguish a missing split from an exhausted one.
        var exists bool
        if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM splits WHERE id = ?)`, id).Scan(&exists); err != nil {
            return err
        }
        if !exists {
            return ErrSplitNotFound
        }
        return ErrCapacityExceeded
    }
    return nil
}

// ReleaseSeatsTx returns delta seats to the split.  A release can
// legally happen when places_left is already zero (the split flipped
// to COMPLETE), so no capacity guard applies; instead both counters
// are clamped so places_left never exceeds num_places and num_seats
// never underflows.
func (r *SplitRepo) ReleaseSeatsTx(ctx context.Context, tx *sql.Tx, id uint64, delta uint32) error {
    const q = `UPDATE splits
               SET num_seats = GREATEST(CAST(num_seats AS SIGNED) - ?, 0),
                   places_left = LEAST(places_left + ?, num_places),
                   updated_at = UTC_TIMESTAMP()
               WHERE id = ?`
    result, err := tx.ExecContext(ctx, q, delta, delta, id)
    if err != nil {
        return translateLockErr(err)
    }
    affected, err := result.RowsAffected()
    if err != nil {
        return err
    }
    if affected == 0 {
        return ErrSplitNotFound
    }
    return nil
}

// UpdateStatusTx sets the split status without touching capacity.  It
// is used by the seat engine for the ACTIVE<->COMPLETE flips derived
// from places_left.
func (r *SplitRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status model.SplitStatus) error {
    _, err := tx.ExecContext(ctx,
        `UPDATE splits SET status = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`,
        status, id)
    return translateLockErr(err)
}

// SetTerminalTx freezes the split in a terminal status and records the
// cancel reason.  The guard on the current status makes the operation
// idempotent: a split that is already CANCELLED or EXPIRED matches
// zero rows and ErrAlreadyTerminal is returned.
func (r *SplitRepo) SetTerminalTx(ctx context.Context, tx *sql.Tx, id uint64, status model.SplitStatus, reason string) error {
    const q = `UPDATE splits
               SET status = ?, cancel_reason = ?, updated_at = UTC_TIMESTAMP()
               WHERE id = ? AND status NOT IN (?, ?)`
    result, err := tx.ExecContext(ctx, q, status, reason, id, model.SplitCancelled, model.SplitExpired)
    if err != nil {
        return translateLockErr(err)
    }
    affected, err := result.RowsAffected()
    if err != nil {
        return err
    }
    if affected == 0 {
        var exists bool
        if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM splits WHERE id = ?)`, id).Scan(&exists); err != nil {
            return err
        }
        if !exists {
            return ErrSplitNotFound
        }
        return ErrAlreadyTerminal
    }
    return nil
}

// ListActive returns active splits ordered by expiration, soonest
// first.  It backs the public browse endpoint.
func (r *SplitRepo) ListActive(ctx context.Context, limit int) ([]model.Split, error) {
    if limit <= 0 || limit > 100 {
        limit = 50
    }
    rows, err := r.db.QueryContext(ctx,
        `SELECT `+splitColumns+` FROM splits WHERE status = ? ORDER BY expiration_date ASC LIMIT ?`,
        model.SplitActive, limit)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    return collectSplits(rows)
}

// ExpiringBetween returns non-terminal splits whose expiration date
// falls inside [from, to).  The sweep uses it for both notice
// windows; the terminal-status filter keeps repeated runs idempotent.
func (r *SplitRepo) ExpiringBetween(ctx context.Context, from, to time.Time) ([]model.Split, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT `+splitColumns+` FROM splits
         WHERE expiration_date >= ? AND expiration_date < ? AND status NOT IN (?, ?)`,
        from.UTC(), to.UTC(), model.SplitCancelled, model.SplitExpired)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    return collectSplits(rows)
}

// ExpiredBefore returns non-terminal splits whose expiration date has
// already passed.  Splits the sweep already expired carry a terminal
// status and are filtered out, so re-running is a no-op for them.
func (r *SplitRepo) ExpiredBefore(ctx context.Context, t time.Time) ([]model.Split, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT `+splitColumns+` FROM splits
         WHERE expiration_date < ? AND status NOT IN (?, ?)`,
        t.UTC(), model.SplitCancelled, model.SplitExpired)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    return collectSplits(rows)
}

// BindConversationTx stores the conversation record id on an APP
// split once the thread has been created.
func (r *SplitRepo) BindConversationTx(ctx context.Context, tx *sql.Tx, splitID, conversationID uint64) error {
    _, err := tx.ExecContext(ctx,
        `UPDATE splits SET conversation_id = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`,
        conversationID, splitID)
    return err
}

func collectSplits(rows *sql.Rows) ([]model.Split, error) {
    out := make([]model.Split, 0)
    for rows.Next() {
        s, err := scanSplit(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, *s)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}
