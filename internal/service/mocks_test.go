package service

import (
    "context"
    "fmt"

    "github.com/splitkart/split-backend/internal/conversation"
    "github.com/splitkart/split-backend/internal/payment"
)

// fakeChat records conversation calls and lets individual tests fail
// specific operations.
type fakeChat struct {
    createFunc func(ctx context.Context, title string, splitID uint64) (*conversation.Thread, error)
    joinErr    error
    roleErr    error
    removeErr  error
    postErr    error
    freezeErr  error

    joined   []uint64
    roles    map[uint64]conversation.Role
    removed  []uint64
    messages []string
    tags     []string
    frozen   []uint64
}

func newFakeChat() *fakeChat {
    return &fakeChat{roles: make(map[uint64]conversation.Role)}
}

func (f *fakeChat) CreateForSplit(ctx context.Context, title string, splitID uint64) (*conversation.Thread, error) {
    if f.createFunc != nil {
        return f.createFunc(ctx, title, splitID)
    }
    return &conversation.Thread{ID: 1, ExternalThreadID: fmt.Sprintf("thread-%d", splitID)}, nil
}

func (f *fakeChat) Join(ctx context.Context, conversationID, userID uint64, role conversation.Role) error {
    if f.joinErr != nil {
        return f.joinErr
    }
    f.joined = append(f.joined, userID)
    f.roles[userID] = role
    return nil
}

func (f *fakeChat) SetRole(ctx context.Context, conversationID, userID uint64, role conversation.Role) error {
    if f.roleErr != nil {
        return f.roleErr
    }
    f.roles[userID] = role
    return nil
}

func (f *fakeChat) RemoveParticipant(ctx context.Context, conversationID, userID uint64) error {
    if f.removeErr != nil {
        return f.removeErr
    }
    f.removed = append(f.removed, userID)
    return nil
}

func (f *fakeChat) PostSystemMessage(ctx context.Context, conversationID uint64, text, eventTag string) error {
    if f.postErr != nil {
        return f.postErr
    }
    f.messages = append(f.messages, text)
    f.tags = append(f.tags, eventTag)
    return nil
}

func (f *fakeChat) Freeze(ctx context.Context, splitID uint64) error {
    if f.freezeErr != nil {
        return f.freezeErr
    }
    f.frozen = append(f.frozen, splitID)
    return nil
}

// fakeGateway serves canned authorizations and records refunds and
// cancels.
type fakeGateway struct {
    auth      *payment.Authorization
    authErr   error
    refundErr error
    cancelErr error

    refunds     []string
    feeReversed []bool
    cancels     []string
}

func (f *fakeGateway) GetAuthorization(ctx context.Context, ref string) (*payment.Authorization, error) {
    if f.authErr != nil {
        return nil, f.authErr
    }
    if f.auth != nil {
        return f.auth, nil
    }
    return &payment.Authorization{ID: ref, Status: "succeeded"}, nil
}

func (f *fakeGateway) Refund(ctx context.Context, ref string, reverseFee bool) (*payment.Refund, error) {
    if f.refundErr != nil {
        return nil, f.refundErr
    }
    f.refunds = append(f.refunds, ref)
    f.feeReversed = append(f.feeReversed, reverseFee)
    return &payment.Refund{ID: "re_" + ref, Status: "succeeded"}, nil
}

func (f *fakeGateway) CancelAuthorization(ctx context.Context, ref string) error {
    if f.cancelErr != nil {
        return f.cancelErr
    }
    f.cancels = append(f.cancels, ref)
    return nil
}
