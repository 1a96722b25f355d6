package service

import (
    "context"
    "database/sql"
    "fmt"
    "strings"
    "time"

    "go.uber.org/zap"

    "github.com/splitkart/split-backend/internal/conversation"
    "github.com/splitkart/split-backend/internal/model"
    "github.com/splitkart/split-backend/internal/repository"
)

// SplitService handles split creation and read paths.  Creation of an
// in-app split provisions its conversation thread in the same
// transaction as the row itself, so a split is never observable
// without its thread.
type SplitService struct {
    DB        *sql.DB
    Splits    *repository.SplitRepo
    ConvoRepo *repository.ConversationRepo
    Chat      conversation.Service
    Log       *zap.Logger
}

// NewSplitService constructs a SplitService.  All dependencies must be non-nil.
func NewSplitService(db *sql.DB, splits *repository.SplitRepo, convoRepo *repository.ConversationRepo, chat conversation.Service, log *zap.Logger) *SplitService {
    if db == nil || splits == nil || convoRepo == nil || chat == nil || log == nil {
        panic("nil dependency passed to NewSplitService")
    }
    return &SplitService{DB: db, Splits: splits, ConvoRepo: convoRepo, Chat: chat, Log: log}
}

// CreateSplitInput carries a new listing.  OwnerID comes from the
// authenticated context, never the body.
type CreateSplitInput struct {
    OwnerID        uint64    `json:"-"`
    Title          string    `json:"title"`
    Description    string    `json:"description"`
    Picture        string    `json:"picture"`
    NumPlaces      uint32    `json:"num_places"`
    OwnerSeats     uint32    `json:"owner_seats"`
    PriceCents     int64     `json:"price_cents"`
    RegularPrice   int64     `json:"regular_price_cents"`
    SalePrice      int64     `json:"sale_price_cents"`
    SplitPrices    []int64   `json:"split_prices"`
    ExpirationDate time.Time `json:"expiration_date"`
    ShippingType   string    `json:"shipping_type"`
}

func (in *CreateSplitInput) validate() error {
    if strings.TrimSpace(in.Title) == "" {
        return fmt.Errorf("%w: title is required", errValidation)
    }
    if in.NumPlaces < 2 {
        return fmt.Errorf("%w: num_places must be at least 2", errValidation)
    }
    if in.OwnerSeats >= in.NumPlaces {
        return fmt.Errorf("%w: owner_seats must leave at least one place open", errValidation)
    }
    if in.PriceCents <= 0 {
        return fmt.Errorf("%w: price_cents must be positive", errValidation)
    }
    if !in.ExpirationDate.After(time.Now()) {
        return fmt.Errorf("%w: expiration_date must be in the future", errValidation)
    }
    for i := 1; i < len(in.SplitPrices); i++ {
        if in.SplitPrices[i] < in.SplitPrices[i-1] {
            return fmt.Errorf("%w: split_prices must be ascending", errValidation)
        }
    }
    return nil
}

// Create persists a new in-app split with the owner's seats already
// claimed, provisions a conversation thread for it and binds the two
// together.  The insert and the thread provisioning share one
// transaction, so a messaging-provider failure rolls the row back and
// no split is ever observable without its thread.
func (s *SplitService) Create(ctx context.Context, in CreateSplitInput) *SplitResult {
    if err := in.validate(); err != nil {
        return &SplitResult{Result: failure(err)}
    }

    split := &model.Split{
        OwnerID:           in.OwnerID,
        Variant:           model.VariantApp,
        Title:             in.Title,
        Description:       in.Description,
        Picture:           in.Picture,
        NumPlaces:         in.NumPlaces,
        OwnerSeats:        in.OwnerSeats,
        PriceCents:        in.PriceCents,
        RegularPriceCents: in.RegularPrice,
        SalePriceCents:    in.SalePrice,
        SplitPrices:       in.SplitPrices,
        Status:            model.SplitActive,
        ExpirationDate:    in.ExpirationDate,
        ShippingType:      in.ShippingType,
    }

    tx, err := s.DB.BeginTx(ctx, nil)
    if err != nil {
        s.Log.Error("begin transaction", zap.Error(err))
        return &SplitResult{Result: failure(err)}
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    if err := s.Splits.CreateTx(ctx, tx, split); err != nil {
        return &SplitResult{Result: failure(err)}
    }

    // Provision the thread while the row is still uncommitted: if the
    // provider says no, the split never existed.
    thread, err := s.Chat.CreateForSplit(ctx, split.Title, split.ID)
    if err != nil {
        s.Log.Error("provision conversation", zap.Uint64("split_id", split.ID), zap.Error(err))
        return &SplitResult{Result: failure(err)}
    }

    convo := &model.Conversation{
        SplitID:          split.ID,
        ExternalThreadID: thread.ExternalThreadID,
        Title:            split.Title,
    }
    if err := s.ConvoRepo.CreateTx(ctx, tx, convo); err != nil {
        s.Log.Error("persist conversation", zap.Uint64("split_id", split.ID), zap.Error(err))
        return &SplitResult{Result: failure(err)}
    }
    if err := s.Splits.BindConversationTx(ctx, tx, split.ID, convo.ID); err != nil {
        s.Log.Error("bind conversation", zap.Uint64("split_id", split.ID), zap.Error(err))
        return &SplitResult{Result: failure(err)}
    }
    if err := tx.Commit(); err != nil {
        s.Log.Error("commit transaction", zap.Error(err))
        return &SplitResult{Result: failure(err)}
    }
    committed = true

    split.ConversationID = &convo.ID
    s.Log.Info("split created",
        zap.Uint64("split_id", split.ID),
        zap.Uint64("owner_id", in.OwnerID),
        zap.Uint32("num_places", in.NumPlaces),
        zap.Uint32("owner_seats", in.OwnerSeats))
    return &SplitResult{Result: okResult("split created"), Split: split}
}

// Get returns a single split by id.
func (s *SplitService) Get(ctx context.Context, id uint64) (*model.Split, error) {
    return s.Splits.GetByID(ctx, id)
}

// ListActive returns open splits for browsing, newest first.
func (s *SplitService) ListActive(ctx context.Context, limit int) ([]model.Split, error) {
    if limit <= 0 || limit > 100 {
        limit = 50
    }
    return s.Splits.ListActive(ctx, limit)
}
