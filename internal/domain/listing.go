package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ListingStatus is the closed moderation-and-sale state of a Listing.
type ListingStatus string

const (
	ListingPending  ListingStatus = "pending"
	ListingApproved ListingStatus = "approved"
	ListingRejected ListingStatus = "rejected"
	ListingSold     ListingStatus = "sold"
	ListingExpired  ListingStatus = "expired"
	ListingFlagged  ListingStatus = "flagged"
)

// ValidListingStatus reports whether s is a member of the closed set.
func ValidListingStatus(s ListingStatus) bool {
	switch s {
	case ListingPending, ListingApproved, ListingRejected, ListingSold, ListingExpired, ListingFlagged:
		return true
	}
	return false
}

// Terminal reports whether s can only be left via repost or extend.
func (s ListingStatus) Terminal() bool {
	return s == ListingSold || s == ListingExpired || s == ListingRejected
}

// Listing categories and conditions (closed sets, validated on create/edit).
var (
	ListingCategories = []string{"electronics", "furniture", "clothing", "books", "sports", "toys", "vehicles", "other"}
	ListingConditions = []string{"new", "like_new", "good", "fair", "poor"}
)

// ImageRefs stores the ordered image reference list as a JSON column while
// marshaling to the API as a plain array.
type ImageRefs []string

// Scan implements sql.Scanner for reading from the DB json column.
func (r *ImageRefs) Scan(value interface{}) error {
	if value == nil {
		*r = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, r)
	case string:
		return json.Unmarshal([]byte(v), r)
	default:
		return errors.New("unsupported type for ImageRefs")
	}
}

// Value implements driver.Valuer for writing to the DB.
func (r ImageRefs) Value() (driver.Value, error) {
	if r == nil {
		return "[]", nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Listing is a single marketplace item plus its moderation/sale state.
// Version increases on every mutation so consumers can do cheap change detection.
type Listing struct {
	ListingID   uuid.UUID     `gorm:"column:listing_id;type:uuid;primaryKey" json:"listing_id"`
	SellerID    uuid.UUID     `gorm:"column:seller_id;type:uuid;not null;index" json:"seller_id"`
	Title       string        `gorm:"column:title;not null" json:"title"`
	Description string        `gorm:"column:description" json:"description"`
	Category    string        `gorm:"column:category;type:varchar(30);not null" json:"category"`
	Condition   string        `gorm:"column:condition;type:varchar(20);not null" json:"condition"`
	Price       float64       `gorm:"column:price;type:decimal(18,2);not null" json:"price"`
	Images      ImageRefs     `gorm:"column:images;type:json" json:"images"`
	Status      ListingStatus `gorm:"column:status;type:varchar(20);not null;index" json:"status"`
	ViewCount   int64         `gorm:"column:view_count;not null;default:0" json:"view_count"`
	ExpiresAt   time.Time     `gorm:"column:expires_at;not null;index" json:"expires_at"`
	SoldAt      *time.Time    `gorm:"column:sold_at" json:"sold_at,omitempty"`
	SoldTo      *uuid.UUID    `gorm:"column:sold_to;type:uuid" json:"sold_to,omitempty"`
	SoldPrice   *float64      `gorm:"column:sold_price;type:decimal(18,2)" json:"sold_price,omitempty"`
	Version     int64         `gorm:"column:version;not null;default:1" json:"version"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

func (Listing) TableName() string {
	return "listings"
}

// BeforeCreate sets listing_id if not already set (DBs without default uuid).
func (l *Listing) BeforeCreate(tx *gorm.DB) error {
	if l.ListingID == uuid.Nil {
		l.ListingID = uuid.New()
	}
	return nil
}
