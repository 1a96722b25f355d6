// Package queue defines message payloads exchanged over the message broker.
package queue

// SplitLifecycleEvent is published when a split reaches a terminal
// state (cancelled by its owner or expired by the sweep).  It carries
// enough information for downstream consumers to log, notify, or
// trigger analytics without querying the primary database.
type SplitLifecycleEvent struct {
    SplitID         uint64 `json:"split_id"`
    OwnerID         uint64 `json:"owner_id"`
    Title           string `json:"title"`
    Status          string `json:"status"`
    Reason          string `json:"reason"`
    OrdersCancelled int    `json:"orders_cancelled"`
    RefundsIssued   int    `json:"refunds_issued"`
    OccurredAt      string `json:"occurred_at"`
}
