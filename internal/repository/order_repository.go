package repository

import (
    "context"
    "database/sql"
    "errors"

    "github.com/go-sql-driver/mysql"

    "github.com/splitkart/split-backend/internal/model"
)

// OrderRepo provides persistence for orders.  An order binds one
// payment authorization to one split and client; the UNIQUE index on
// payment_intent_ref enforces at the store level that an
// authorization handle is never consumed twice.  Orders are never
// deleted, only moved through statuses.
type OrderRepo struct {
    db *sql.DB
}

// NewOrderRepo returns a new OrderRepo bound to the given database.
func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db} }

const orderColumns = `id, client_id, owner_id, split_id, num_seats,
       payment_intent_ref, payment_method_ref, status,
       client_name, owner_name, split_title, split_description, split_picture,
       amount_cents, fee_cents, created_at, updated_at`

func scanOrder(row interface{ Scan(...interface{}) error }) (*model.Order, error) {
    var o model.Order
    var methodRef, splitDesc, splitPic sql.NullString
    err := row.Scan(
        &o.ID, &o.ClientID, &o.OwnerID, &o.SplitID, &o.NumSeats,
        &o.PaymentIntentRef, &methodRef, &o.Status,
        &o.ClientName, &o.OwnerName, &o.SplitTitle, &splitDesc, &splitPic,
        &o.AmountCents, &o.FeeCents, &o.CreatedAt, &o.UpdatedAt,
    )
    if err != nil {
        return nil, err
    }
    o.PaymentMethodRef = methodRef.String
    o.SplitDescription = splitDesc.String
    o.SplitPicture = splitPic.String
    return &o, nil
}

// CreateTx inserts a new order within the scope of an existing
// transaction and populates the generated ID and timestamps on the
// passed model.  The snapshot columns must already be filled by the
// caller; they are frozen from this point on.  A duplicate
// payment_intent_ref surfaces as ErrDuplicateReservation.
func (r *OrderRepo) CreateTx(ctx context.Context, tx *sql.Tx, o *model.Order) error {
    const q = `INSERT INTO orders
        (client_id, owner_id, split_id, num_seats,
         payment_intent_ref, payment_method_ref, status,
         client_name, owner_name, split_title, split_description, split_picture,
         amount_cents, fee_cents)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
    result, err := tx.ExecContext(ctx, q,
        o.ClientID, o.OwnerID, o.SplitID, o.NumSeats,
        o.PaymentIntentRef, o.PaymentMethodRef, o.Status,
        o.ClientName, o.OwnerName, o.SplitTitle, o.SplitDescription, o.SplitPicture,
        o.AmountCents, o.FeeCents,
    )
    if err != nil {
        if isDuplicateKey(err) {
            return ErrDuplicateReservation
        }
        return translateLockErr(err)
    }
    id, err := result.LastInsertId()
    if err != nil {
        return err
    }
    o.ID = uint64(id)
    const sel = `SELECT created_at, updated_at FROM orders WHERE id = ?`
    return tx.QueryRowContext(ctx, sel, o.ID).Scan(&o.CreatedAt, &o.UpdatedAt)
}

// isDuplicateKey reports whether err is a MySQL duplicate-entry error
// (1062), raised when payment_intent_ref collides with an existing
// order.
func isDuplicateKey(err error) bool {
    var me *mysql.MySQLError
    return errors.As(err, &me) && me.Number == 1062
}

// GetByID returns a single order or ErrOrderNotFound.
func (r *OrderRepo) GetByID(ctx context.Context, id uint64) (*model.Order, error) {
    o, err := scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id))
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrOrderNotFound
    }
    return o, err
}

// GetByIDForUpdateTx loads an order inside the transaction with a row
// lock, serializing concurrent status transitions on the same order.
func (r *OrderRepo) GetByIDForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Order, error) {
    o, err := scanOrder(tx.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ? FOR UPDATE`, id))
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrOrderNotFound
    }
    if err != nil {
        return nil, translateLockErr(err)
    }
    return o, nil
}

// GetByPaymentIntent locates the order bound to the given
// authorization handle.  Gateway webhook events carry only the
// authorization id, so this is the entry point for all
// provider-driven transitions.
func (r *OrderRepo) GetByPaymentIntent(ctx context.Context, ref string) (*model.Order, error) {
    o, err := scanOrder(r.db.QueryRowContext(ctx,
        `SELECT `+orderColumns+` FROM orders WHERE payment_intent_ref = ?`, ref))
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrOrderNotFound
    }
    return o, err
}

// ExistsByPaymentIntent reports whether any order has ever consumed
// the given authorization handle.
func (r *OrderRepo) ExistsByPaymentIntent(ctx context.Context, ref string) (bool, error) {
    var exists bool
    err := r.db.QueryRowContext(ctx,
        `SELECT EXISTS(SELECT 1 FROM orders WHERE payment_intent_ref = ?)`, ref).Scan(&exists)
    return exists, err
}

// ActiveBySplitAndClient returns the client's order on the split that
// still occupies seats, or ErrOrderNotFound.  At most one such order
// can exist per (split, client) pair.
func (r *OrderRepo) ActiveBySplitAndClient(ctx context.Context, splitID, clientID uint64) (*model.Order, error) {
    const q = `SELECT ` + orderColumns + ` FROM orders
               WHERE split_id = ? AND client_id = ? AND status NOT IN (?, ?, ?, ?)
               LIMIT 1`
    o, err := scanOrder(r.db.QueryRowContext(ctx, q, splitID, clientID,
        model.OrderOwnerCanceled, model.OrderClientCanceled, model.OrderSystemCanceled, model.OrderPaymentFailed))
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrOrderNotFound
    }
    return o, err
}

// PaidBySplitAndClientTx locates the unique PAID order for the pair
// inside the transaction, taking a row lock.  The individual cancel
// entry points operate on exactly this order.
func (r *OrderRepo) PaidBySplitAndClientTx(ctx context.Context, tx *sql.Tx, splitID, clientID uint64) (*model.Order, error) {
    const q = `SELECT ` + orderColumns + ` FROM orders
               WHERE split_id = ? AND client_id = ? AND status = ?
               LIMIT 1 FOR UPDATE`
    o, err := scanOrder(tx.QueryRowContext(ctx, q, splitID, clientID, model.OrderPaid))
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrOrderNotFound
    }
    if err != nil {
        return nil, translateLockErr(err)
    }
    return o, nil
}

// ListBySplitTx returns every order of the split inside the
// transaction.  Bulk cancellation iterates this list to issue
// refunds before the batched status update.
func (r *OrderRepo) ListBySplitTx(ctx context.Context, tx *sql.Tx, splitID uint64) ([]model.Order, error) {
    rows, err := tx.QueryContext(ctx,
        `SELECT `+orderColumns+` FROM orders WHERE split_id = ? ORDER BY id`, splitID)
    if err != nil {
        return nil, translateLockErr(err)
    }
    defer rows.Close()
    return collectOrders(rows)
}

// ListByClient returns the client's orders, newest first.  Snapshots
// make this a single-table read.
func (r *OrderRepo) ListByClient(ctx context.Context, clientID uint64, limit int) ([]model.Order, error) {
    if limit <= 0 || limit > 100 {
        limit = 50
    }
    rows, err := r.db.QueryContext(ctx,
        `SELECT `+orderColumns+` FROM orders WHERE client_id = ? ORDER BY created_at DESC LIMIT ?`,
        clientID, limit)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    return collectOrders(rows)
}

// UpdateStatusTx moves a single order to the given status.
func (r *OrderRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status model.OrderStatus) error {
    result, err := tx.ExecContext(ctx,
        `UPDATE orders SET status = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`,
        status, id)
    if err != nil {
        return translateLockErr(err)
    }
    affected, err := result.RowsAffected()
    if err != nil {
        return err
    }
    if affected == 0 {
        return ErrOrderNotFound
    }
    return nil
}

// BulkUpdateStatusTx performs one batched status update across all
// live orders of a split.  Orders already in a released state keep
// their status: a CLIENT_CANCELED order records who cancelled it and
// must not be relabelled by a later teardown.  It is used only by
// split-level cancellation, where the split itself is frozen in the
// same transaction.
func (r *OrderRepo) BulkUpdateStatusTx(ctx context.Context, tx *sql.Tx, splitID uint64, status model.OrderStatus) (int64, error) {
    const q = `UPDATE orders SET status = ?, updated_at = UTC_TIMESTAMP()
               WHERE split_id = ? AND status NOT IN (?, ?, ?, ?)`
    result, err := tx.ExecContext(ctx, q, status, splitID,
        model.OrderOwnerCanceled, model.OrderClientCanceled, model.OrderSystemCanceled, model.OrderPaymentFailed)
    if err != nil {
        return 0, translateLockErr(err)
    }
    return result.RowsAffected()
}

func collectOrders(rows *sql.Rows) ([]model.Order, error) {
    out := make([]model.Order, 0)
    for rows.Next() {
        o, err := scanOrder(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, *o)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}
