package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FlagStatus is the closed resolution state of a moderation Flag.
type FlagStatus string

const (
	FlagOpen      FlagStatus = "open"
	FlagUpheld    FlagStatus = "upheld"
	FlagDismissed FlagStatus = "dismissed"
)

// FlagReasons is the closed reason set accepted on report.
var FlagReasons = []string{"spam", "prohibited", "counterfeit", "offensive", "miscategorized", "other"}

// MinFlagDescription is the minimum report description length.
const MinFlagDescription = 10

// Flag is a moderation report that suspends a Listing until resolved.
// PriorStatus records what the listing was before suspension so a dismissal
// restores exactly that status.
type Flag struct {
	FlagID      uuid.UUID     `gorm:"column:flag_id;type:uuid;primaryKey" json:"flag_id"`
	ListingID   uuid.UUID     `gorm:"column:listing_id;type:uuid;not null;index" json:"listing_id"`
	ReporterID  *uuid.UUID    `gorm:"column:reporter_id;type:uuid" json:"reporter_id,omitempty"`
	Guest       bool          `gorm:"column:guest;not null;default:false" json:"guest"`
	Reason      string        `gorm:"column:reason;type:varchar(30);not null" json:"reason"`
	Description string        `gorm:"column:description;not null" json:"description"`
	Status      FlagStatus    `gorm:"column:status;type:varchar(20);not null;index" json:"status"`
	PriorStatus ListingStatus `gorm:"column:prior_status;type:varchar(20);not null" json:"prior_status"`
	ResolvedBy  *uuid.UUID    `gorm:"column:resolved_by;type:uuid" json:"resolved_by,omitempty"`
	ResolvedAt  *time.Time    `gorm:"column:resolved_at" json:"resolved_at,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

func (Flag) TableName() string {
	return "flags"
}

func (f *Flag) BeforeCreate(tx *gorm.DB) error {
	if f.FlagID == uuid.Nil {
		f.FlagID = uuid.New()
	}
	return nil
}
