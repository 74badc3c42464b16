package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Listing event types (audit trail, written in the same transaction as the change).
const (
	EventCreated         = "CREATED"
	EventStatusChanged   = "STATUS_CHANGED"
	EventReposted        = "REPOSTED"
	EventExtended        = "EXTENDED"
	EventSold            = "SOLD"
	EventFlagged         = "FLAGGED"
	EventUnflagRequested = "UNFLAG_REQUESTED"
	EventDeleted         = "DELETED"
)

// ListingEvent records one change to a listing with a JSON payload.
type ListingEvent struct {
	EventID   uuid.UUID      `gorm:"column:event_id;type:uuid;primaryKey" json:"event_id"`
	ListingID uuid.UUID      `gorm:"column:listing_id;type:uuid;not null;index" json:"listing_id"`
	EventType string         `gorm:"column:event_type;type:varchar(30);not null" json:"event_type"`
	ActorID   *uuid.UUID     `gorm:"column:actor_id;type:uuid" json:"actor_id,omitempty"`
	EventData datatypes.JSON `gorm:"column:event_data;type:json" json:"event_data"`
	CreatedAt time.Time      `json:"created_at"`
}

func (ListingEvent) TableName() string {
	return "listing_events"
}

func (e *ListingEvent) BeforeCreate(tx *gorm.DB) error {
	if e.EventID == uuid.Nil {
		e.EventID = uuid.New()
	}
	return nil
}
