package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Review directions as seen from a caller: "given" for the reviewer,
// "received" for the reviewee. Two views of the same record.
const (
	ReviewGiven    = "given"
	ReviewReceived = "received"
)

// Review is feedback on a completed sale, at most one per (listing, reviewer).
// Response is the reviewee's one-shot reply.
type Review struct {
	ReviewID    uuid.UUID  `gorm:"column:review_id;type:uuid;primaryKey" json:"review_id"`
	ListingID   uuid.UUID  `gorm:"column:listing_id;type:uuid;not null;index:idx_review_listing_reviewer,unique" json:"listing_id"`
	ReviewerID  uuid.UUID  `gorm:"column:reviewer_id;type:uuid;not null;index:idx_review_listing_reviewer,unique" json:"reviewer_id"`
	RevieweeID  uuid.UUID  `gorm:"column:reviewee_id;type:uuid;not null;index" json:"reviewee_id"`
	Rating      int        `gorm:"column:rating;not null" json:"rating"`
	Title       string     `gorm:"column:title" json:"title"`
	Comment     string     `gorm:"column:comment" json:"comment"`
	Response    *string    `gorm:"column:response" json:"response,omitempty"`
	RespondedAt *time.Time `gorm:"column:responded_at" json:"responded_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (Review) TableName() string {
	return "reviews"
}

func (r *Review) BeforeCreate(tx *gorm.DB) error {
	if r.ReviewID == uuid.Nil {
		r.ReviewID = uuid.New()
	}
	return nil
}
