package model

import "time"

// Conversation binds a split to its discussion thread in the external
// messaging service.  One record exists per APP split.  The
// participant list and roles live in the external service; locally we
// only keep the binding and the frozen flag.
//
// Fields:
//  ID               – primary key identifier.
//  SplitID          – split the thread belongs to (1:1).
//  ExternalThreadID – identifier of the thread in the messaging service.
//  Title            – thread title, usually the split title.
//  Frozen           – true once the split reached a terminal status and
//                     the thread was switched to read-only.
//  CreatedAt        – creation timestamp.
//  UpdatedAt        – last update timestamp.
type Conversation struct {
    ID               uint64    `json:"id"`
    SplitID          uint64    `json:"split_id"`
    ExternalThreadID string    `json:"external_thread_id"`
    Title            string    `json:"title"`
    Frozen           bool      `json:"frozen"`
    CreatedAt        time.Time `json:"created_at"`
    UpdatedAt        time.Time `json:"updated_at"`
}
