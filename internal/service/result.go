// Package service implements the reservation and lifecycle core: the
// seat engine, the order lifecycle machine, the cancellation and
// refund orchestrator and the expiration sweep.  Every multi-step
// state change runs inside exactly one store transaction; external
// collaborator calls are ordered as the logical last steps of that
// scope and compensated when the transaction aborts.
package service

import (
    "errors"
    "net/http"

    "github.com/splitkart/split-backend/internal/model"
    "github.com/splitkart/split-backend/internal/payment"
    "github.com/splitkart/split-backend/internal/repository"
)

// Result is the uniform envelope returned by every mutation
// operation.  Callers can always distinguish "did not happen" from
// "happened with this entity state" without catching errors across
// the API boundary.
type Result struct {
    Code    int    `json:"code"`
    Success bool   `json:"success"`
    Message string `json:"message"`
}

// OrderResult carries the order affected by a mutation, when one
// exists.
type OrderResult struct {
    Result
    Order *model.Order `json:"order,omitempty"`
}

// SplitResult carries the split affected by a mutation, when one
// exists.
type SplitResult struct {
    Result
    Split *model.Split `json:"split,omitempty"`
}

func okResult(msg string) Result {
    return Result{Code: http.StatusOK, Success: true, Message: msg}
}

// failure translates a domain error into an envelope.  Business-rule
// violations map onto conventional HTTP codes; anything unrecognized
// is surfaced generically so internal details never leak.
func failure(err error) Result {
    switch {
    case errors.Is(err, repository.ErrSplitNotFound),
        errors.Is(err, repository.ErrOrderNotFound),
        errors.Is(err, repository.ErrConversationNotFound),
        errors.Is(err, payment.ErrAuthorizationNotFound):
        return Result{Code: http.StatusNotFound, Success: false, Message: err.Error()}
    case errors.Is(err, repository.ErrForbidden):
        return Result{Code: http.StatusForbidden, Success: false, Message: err.Error()}
    case errors.Is(err, repository.ErrCapacityExceeded),
        errors.Is(err, repository.ErrDuplicateReservation),
        errors.Is(err, repository.ErrAlreadyTerminal),
        errors.Is(err, repository.ErrInvalidStageTransition),
        errors.Is(err, repository.ErrConcurrencyConflict):
        return Result{Code: http.StatusConflict, Success: false, Message: err.Error()}
    case errors.Is(err, errValidation):
        return Result{Code: http.StatusBadRequest, Success: false, Message: err.Error()}
    }
    return Result{Code: http.StatusInternalServerError, Success: false, Message: "internal error"}
}

// errValidation wraps bad-input failures rejected before any side
// effect.  The original message is surfaced verbatim to the caller.
var errValidation = errors.New("validation failed")
