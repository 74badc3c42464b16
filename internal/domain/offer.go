package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OfferStatus is the closed resolution state of an Offer.
type OfferStatus string

const (
	OfferPending  OfferStatus = "pending"
	OfferAccepted OfferStatus = "accepted"
	OfferRejected OfferStatus = "rejected"
	OfferExpired  OfferStatus = "expired"
)

// Offer is a bid from a prospective buyer against an approved Listing.
// An offer is resolved exactly once; at most one offer per listing is ever accepted.
type Offer struct {
	OfferID    uuid.UUID   `gorm:"column:offer_id;type:uuid;primaryKey" json:"offer_id"`
	ListingID  uuid.UUID   `gorm:"column:listing_id;type:uuid;not null;index" json:"listing_id"`
	BidderID   uuid.UUID   `gorm:"column:bidder_id;type:uuid;not null;index" json:"bidder_id"`
	Amount     float64     `gorm:"column:amount;type:decimal(18,2);not null" json:"amount"`
	Message    string      `gorm:"column:message" json:"message"`
	Status     OfferStatus `gorm:"column:status;type:varchar(20);not null;index" json:"status"`
	ResolvedAt *time.Time  `gorm:"column:resolved_at" json:"resolved_at,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

func (Offer) TableName() string {
	return "offers"
}

func (o *Offer) BeforeCreate(tx *gorm.DB) error {
	if o.OfferID == uuid.Nil {
		o.OfferID = uuid.New()
	}
	return nil
}
