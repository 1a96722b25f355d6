// Package repository defines error types that are reused across multiple
// repositories and by the service layer. These sentinel values allow
// higher layers such as handlers to distinguish between different
// failure scenarios. For example, ErrForbidden indicates that the
// current user is not authorized to operate on a resource owned by
// someone else, while ErrCapacityExceeded signals that a join request
// asked for more seats than the split has left.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own. Handlers should translate this into an
// HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrSplitNotFound is returned when no split exists for the given
// identifier.
var ErrSplitNotFound = errors.New("split not found")

// ErrOrderNotFound is returned when no order exists for the given
// identifier or payment authorization handle.
var ErrOrderNotFound = errors.New("order not found")

// ErrCapacityExceeded is returned when a guarded seat reservation
// finds fewer places left than requested. The check runs at commit
// time inside the transaction, so a stale read can never overcommit.
var ErrCapacityExceeded = errors.New("capacity exceeded")

// ErrDuplicateReservation is returned when the client already holds a
// non-cancelled order on the split, or when the payment authorization
// handle is already bound to another order.
var ErrDuplicateReservation = errors.New("duplicate reservation")

// ErrAlreadyTerminal is returned when a cancel is attempted on a
// split whose status is already CANCELLED or EXPIRED. The operation
// performs no mutation in that case.
var ErrAlreadyTerminal = errors.New("split already terminal")

// ErrInvalidStageTransition is returned when a shipping transition is
// requested on an order that is not in the required predecessor
// state.
var ErrInvalidStageTransition = errors.New("invalid stage transition")

// ErrConcurrencyConflict is returned when the store reports a write
// conflict (deadlock or lock wait timeout) on the split's capacity
// row. The operation did not apply and is safe to retry immediately.
var ErrConcurrencyConflict = errors.New("concurrency conflict")

// ErrConversationNotFound is returned when a split has no local
// conversation record bound to it.
var ErrConversationNotFound = errors.New("conversation not found")
