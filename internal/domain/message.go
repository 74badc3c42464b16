package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MessageType is the closed negotiation message kind.
type MessageType string

const (
	MessagePlain        MessageType = "message"
	MessageOffer        MessageType = "offer"
	MessageCounterOffer MessageType = "counter_offer"
	MessageAccept       MessageType = "accept"
	MessageReject       MessageType = "reject"
)

// ValidMessageType reports whether t is a member of the closed set.
func ValidMessageType(t MessageType) bool {
	switch t {
	case MessagePlain, MessageOffer, MessageCounterOffer, MessageAccept, MessageReject:
		return true
	}
	return false
}

// Message is a communication record between two users about one Listing.
// Immutable once created; the read flag belongs to the recipient.
type Message struct {
	MessageID   uuid.UUID   `gorm:"column:message_id;type:uuid;primaryKey" json:"message_id"`
	ListingID   uuid.UUID   `gorm:"column:listing_id;type:uuid;not null;index" json:"listing_id"`
	SenderID    uuid.UUID   `gorm:"column:sender_id;type:uuid;not null;index" json:"sender_id"`
	RecipientID uuid.UUID   `gorm:"column:recipient_id;type:uuid;not null;index" json:"recipient_id"`
	Body        string      `gorm:"column:body;not null" json:"body"`
	OfferAmount *float64    `gorm:"column:offer_amount;type:decimal(18,2)" json:"offer_amount,omitempty"`
	MessageType MessageType `gorm:"column:message_type;type:varchar(20);not null" json:"message_type"`
	Read        bool        `gorm:"column:read;not null;default:false" json:"read"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

func (Message) TableName() string {
	return "messages"
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.MessageID == uuid.Nil {
		m.MessageID = uuid.New()
	}
	return nil
}
