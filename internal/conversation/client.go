// Package conversation wraps the external messaging service that
// hosts one discussion thread per split.  Membership, roles and
// message delivery live entirely in that service; the core only
// drives them through the Service interface.
package conversation

import (
    "bytes"
    "context"
    "encoding/json"
    "fmt"
    "net/http"
    "strings"
    "time"

    "go.uber.org/zap"
)

// Role is a participant role in a split thread.  Full participants
// can post; readonly participants only observe (pending payment, or
// the whole thread once its split is frozen).
type Role string

const (
    RoleFull     Role = "full"
    RoleReadonly Role = "readonly"
)

// Thread identifies a conversation created for a split.
type Thread struct {
    ID               uint64 `json:"id"`
    ExternalThreadID string `json:"external_thread_id"`
}

// Service is the contract the core consumes.  Implementations must
// bound their own call latency: these calls sit on the critical path
// of store transactions.
type Service interface {
    // CreateForSplit opens a thread for a new split and returns its
    // identifiers.
    CreateForSplit(ctx context.Context, title string, splitID uint64) (*Thread, error)
    // Join adds a participant with the given role.
    Join(ctx context.Context, conversationID, userID uint64, role Role) error
    // SetRole changes an existing participant's role.
    SetRole(ctx context.Context, conversationID, userID uint64, role Role) error
    // RemoveParticipant drops a participant from the thread.
    RemoveParticipant(ctx context.Context, conversationID, userID uint64) error
    // PostSystemMessage delivers a system-authored message tagged for
    // client-side rendering.
    PostSystemMessage(ctx context.Context, conversationID uint64, text, eventTag string) error
    // Freeze switches the split's thread to read-only for everyone.
    Freeze(ctx context.Context, splitID uint64) error
}

// Client implements Service over the messaging provider's HTTP API.
type Client struct {
    baseURL string
    token   string
    http    *http.Client
    log     *zap.Logger
}

// NewClient constructs a messaging client.
func NewClient(baseURL, token string, log *zap.Logger) *Client {
    return &Client{
        baseURL: strings.TrimRight(baseURL, "/"),
        token:   token,
        http:    &http.Client{Timeout: 10 * time.Second},
        log:     log,
    }
}

func (c *Client) post(ctx context.Context, path string, in, out interface{}) error {
    raw, err := json.Marshal(in)
    if err != nil {
        return err
    }
    req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
    if err != nil {
        return err
    }
    req.Header.Set("Authorization", "Bearer "+c.token)
    req.Header.Set("Content-Type", "application/json")
    resp, err := c.http.Do(req)
    if err != nil {
        return fmt.Errorf("conversation service request: %w", err)
    }
    defer resp.Body.Close()
    if resp.StatusCode >= 400 {
        return fmt.Errorf("conversation service: http %d on %s", resp.StatusCode, path)
    }
    if out != nil {
        return json.NewDecoder(resp.Body).Decode(out)
    }
    return nil
}

// CreateForSplit opens a thread for a new split.
func (c *Client) CreateForSplit(ctx context.Context, title string, splitID uint64) (*Thread, error) {
    var t Thread
    in := map[string]interface{}{"title": title, "split": splitID}
    if err := c.post(ctx, "/v1/conversations", in, &t); err != nil {
        return nil, err
    }
    return &t, nil
}

// Join adds a participant with the given role.
func (c *Client) Join(ctx context.Context, conversationID, userID uint64, role Role) error {
    in := map[string]interface{}{"user": userID, "role": role}
    return c.post(ctx, fmt.Sprintf("/v1/conversations/%d/participants", conversationID), in, nil)
}

// SetRole changes an existing participant's role.
func (c *Client) SetRole(ctx context.Context, conversationID, userID uint64, role Role) error {
    in := map[string]interface{}{"user": userID, "role": role}
    return c.post(ctx, fmt.Sprintf("/v1/conversations/%d/participants/%d/role", conversationID, userID), in, nil)
}

// RemoveParticipant drops a participant from the thread.
func (c *Client) RemoveParticipant(ctx context.Context, conversationID, userID uint64) error {
    in := map[string]interface{}{"user": userID}
    return c.post(ctx, fmt.Sprintf("/v1/conversations/%d/participants/%d/remove", conversationID, userID), in, nil)
}

// PostSystemMessage delivers a system-authored message to the thread.
func (c *Client) PostSystemMessage(ctx context.Context, conversationID uint64, text, eventTag string) error {
    in := map[string]interface{}{"text": text, "event": eventTag}
    return c.post(ctx, fmt.Sprintf("/v1/conversations/%d/system-messages", conversationID), in, nil)
}

// Freeze switches the split's thread to read-only.
func (c *Client) Freeze(ctx context.Context, splitID uint64) error {
    in := map[string]interface{}{"split": splitID}
    if err := c.post(ctx, "/v1/conversations/freeze", in, nil); err != nil {
        return err
    }
    c.log.Info("conversation frozen", zap.Uint64("split_id", splitID))
    return nil
}
