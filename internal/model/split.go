package model

import "time"

// SplitVariant discriminates the two kinds of split listings stored in
// the `splits` table.  APP splits are created in-app and carry the
// capacity invariant places_left = num_places - num_seats along with a
// conversation binding.  LEGACY splits were imported from the old
// storefront and only keep a pointer back to the original listing.
// Code must dispatch on the tag, never on the presence of the
// variant-specific columns.
type SplitVariant string

const (
    VariantApp    SplitVariant = "APP"    // created through this service
    VariantLegacy SplitVariant = "LEGACY" // imported from the legacy storefront
)

// SplitStatus enumerates the lifecycle states of a split.  A filled
// split is modeled as COMPLETE and may revert to ACTIVE when seats are
// released.  CANCELLED and EXPIRED are terminal: capacity fields are
// frozen and no further seat mutation is permitted.
type SplitStatus string

const (
    SplitActive    SplitStatus = "ACTIVE"
    SplitComplete  SplitStatus = "COMPLETE"
    SplitExpired   SplitStatus = "EXPIRED"
    SplitCancelled SplitStatus = "CANCELLED"
)

// Terminal reports whether the status freezes the split.  COMPLETE is
// deliberately excluded: a full split becomes ACTIVE again when an
// order exits, and only the cancel path moves it to a frozen state.
func (s SplitStatus) Terminal() bool {
    return s == SplitCancelled || s == SplitExpired
}

// Split represents a group-purchase listing with a fixed seat
// capacity as stored in the `splits` table.
//
// Fields:
//  ID                 – primary key identifier.
//  OwnerID            – user who created the split.
//  Variant            – APP or LEGACY (tagged union discriminator).
//  Title              – display title of the listing.
//  Description        – free-form listing description.
//  Picture            – URL of the listing picture.
//  NumPlaces          – total seats offered.
//  NumSeats           – seats currently reserved.
//  OwnerSeats         – seats the owner pre-claimed at creation; never
//                       changes afterwards.
//  PlacesLeft         – derived remaining capacity; for APP splits it
//                       always equals NumPlaces - NumSeats and must
//                       never go negative.
//  PriceCents         – base price of the whole purchase in cents.
//  RegularPriceCents  – list price before any sale.
//  SalePriceCents     – discounted price, zero when no sale applies.
//  SplitPrices        – optional ascending discount ladder of per-seat
//                       prices in cents; entry k applies once k seats
//                       are sold.
//  Status             – current lifecycle state.
//  CancelReason       – set only when Status is CANCELLED or EXPIRED.
//  ExpirationDate     – when the split expires if never filled.
//  ShippingType       – APP only: how the goods are distributed.
//  ConversationID     – APP only: local conversation record bound 1:1.
//  LegacyURL          – LEGACY only: link to the original listing.
//  LegacyID           – LEGACY only: identifier in the legacy system.
//  CreatedAt          – creation timestamp.
//  UpdatedAt          – last update timestamp.
type Split struct {
    ID                uint64       `json:"id"`
    OwnerID           uint64       `json:"owner_id"`
    Variant           SplitVariant `json:"variant"`
    Title             string       `json:"title"`
    Description       string       `json:"description"`
    Picture           string       `json:"picture"`
    NumPlaces         uint32       `json:"num_places"`
    NumSeats          uint32       `json:"num_seats"`
    OwnerSeats        uint32       `json:"owner_seats"`
    PlacesLeft        uint32       `json:"places_left"`
    PriceCents        int64        `json:"price_cents"`
    RegularPriceCents int64        `json:"regular_price_cents"`
    SalePriceCents    int64        `json:"sale_price_cents"`
    SplitPrices       []int64      `json:"split_prices,omitempty"`
    Status            SplitStatus  `json:"status"`
    CancelReason      string       `json:"cancel_reason,omitempty"`
    ExpirationDate    time.Time    `json:"expiration_date"`
    ShippingType      string       `json:"shipping_type,omitempty"`
    ConversationID    *uint64      `json:"conversation_id,omitempty"`
    LegacyURL         string       `json:"legacy_url,omitempty"`
    LegacyID          string       `json:"legacy_id,omitempty"`
    CreatedAt         time.Time    `json:"created_at"`
    UpdatedAt         time.Time    `json:"updated_at"`
}

// SeatPriceCents returns the price of a single seat in cents.  The
// base computation divides the full price by the number of places;
// when a discount ladder is present, the entry matching the number of
// seats already sold wins if it is lower.  The ladder is ascending by
// construction and capped by the base price, so a discounted seat can
// never cost more than the plain per-place share.
func (s *Split) SeatPriceCents() int64 {
    if s.NumPlaces == 0 {
        return 0
    }
    base := s.PriceCents / int64(s.NumPlaces)
    if len(s.SplitPrices) == 0 {
        return base
    }
    idx := int(s.NumSeats)
    if idx >= len(s.SplitPrices) {
        idx = len(s.SplitPrices) - 1
    }
    if tier := s.SplitPrices[idx]; tier > 0 && tier < base {
        return tier
    }
    return base
}
