package model

import "time"

// Role names carried in the access token's role claim.
const (
    RoleClient = "CLIENT"
    RoleOwner  = "OWNER"
    RoleAdmin  = "ADMIN"
)

// User is the local projection of an account managed by the external
// identity provider.  Only the fields needed for order snapshots and
// authorization checks are stored; credentials never touch this
// service.
//
// Fields:
//  ID          – primary key identifier, matches the JWT subject.
//  Email       – unique email address.
//  DisplayName – name shown in conversations and order snapshots.
//  Role        – role name (e.g. CLIENT, OWNER, ADMIN).
//  IsActive    – whether the account is active.
//  CreatedAt   – timestamp of creation.
//  UpdatedAt   – timestamp of last update.
type User struct {
    ID          uint64    `json:"id"`
    Email       string    `json:"email"`
    DisplayName string    `json:"display_name"`
    Role        string    `json:"role"`
    IsActive    bool      `json:"is_active"`
    CreatedAt   time.Time `json:"created_at"`
    UpdatedAt   time.Time `json:"updated_at"`
}
