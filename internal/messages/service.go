package messages

import (
	"context"
	"errors"

	"bazaar-backend/internal/domain"
	"bazaar-backend/internal/offers"
	"bazaar-backend/internal/pkg/keylock"
	"bazaar-backend/internal/pkg/validation"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service owns negotiation Messages. A contact-seller message may carry an
// offer amount, in which case an Offer is created in the same transaction.
// Locks is the shared per-listing KeyedMutex.
type Service struct {
	DB     *gorm.DB
	Locks  *keylock.KeyedMutex
	Offers *offers.Service
}

// ContactSellerResult bundles the created message with the offer, if any.
type ContactSellerResult struct {
	Message *domain.Message `json:"message"`
	Offer   *domain.Offer   `json:"offer,omitempty"`
}

// ContactSeller records a message from a prospective buyer to a listing's
// seller. A positive offerAmount also submits an Offer under the same
// validity rules as a direct submission; message and offer commit together
// or not at all.
func (s *Service) ContactSeller(ctx context.Context, listingID, sender uuid.UUID, body string, offerAmount *float64) (*ContactSellerResult, error) {
	if !validation.NonEmpty(body) {
		return nil, domain.E(domain.KindValidation, "Message body is required")
	}

	s.Locks.Lock(listingID.String())
	defer s.Locks.Unlock(listingID.String())

	result := &ContactSellerResult{}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var l domain.Listing
		if err := tx.Where("listing_id = ?", listingID).First(&l).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.E(domain.KindNotFound, "Listing not found")
			}
			return domain.Wrap(err, "Failed to fetch listing")
		}
		if l.SellerID == sender {
			return domain.E(domain.KindSelfDealing, "Cannot contact yourself about your own listing")
		}

		msgType := domain.MessagePlain
		if offerAmount != nil && *offerAmount > 0 {
			offer, err := s.Offers.SubmitTx(tx, listingID, sender, *offerAmount, body)
			if err != nil {
				return err
			}
			result.Offer = offer
			msgType = domain.MessageOffer
		}

		m := &domain.Message{
			ListingID:   listingID,
			SenderID:    sender,
			RecipientID: l.SellerID,
			Body:        body,
			OfferAmount: offerAmount,
			MessageType: msgType,
		}
		if err := tx.Create(m).Error; err != nil {
			return domain.Wrap(err, "Failed to create message")
		}
		result.Message = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ForUser returns all messages the user sent or received, newest first,
// optionally filtered by message type.
func (s *Service) ForUser(ctx context.Context, user uuid.UUID, msgType string) ([]domain.Message, error) {
	db := s.DB.WithContext(ctx).Where("sender_id = ? OR recipient_id = ?", user, user)
	if msgType != "" {
		if !domain.ValidMessageType(domain.MessageType(msgType)) {
			return nil, domain.Ef(domain.KindValidation, "Unknown message type: %s", msgType)
		}
		db = db.Where("message_type = ?", msgType)
	}
	var out []domain.Message
	if err := db.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, domain.Wrap(err, "Failed to fetch messages")
	}
	return out, nil
}

// MarkRead sets the read flag. Only the recipient owns read state.
func (s *Service) MarkRead(ctx context.Context, messageID, actor uuid.UUID) (*domain.Message, error) {
	var m domain.Message
	if err := s.DB.WithContext(ctx).Where("message_id = ?", messageID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.E(domain.KindNotFound, "Message not found")
		}
		return nil, domain.Wrap(err, "Failed to fetch message")
	}
	if m.RecipientID != actor {
		return nil, domain.E(domain.KindUnauthorized, "Only the recipient may mark a message read")
	}
	if !m.Read {
		m.Read = true
		if err := s.DB.WithContext(ctx).Save(&m).Error; err != nil {
			return nil, domain.Wrap(err, "Failed to update message")
		}
	}
	return &m, nil
}
