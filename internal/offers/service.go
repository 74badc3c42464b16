package offers

import (
	"context"
	"errors"
	"time"

	"bazaar-backend/internal/domain"
	"bazaar-backend/internal/listings"
	"bazaar-backend/internal/pkg/keylock"
	"bazaar-backend/internal/pkg/validation"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service owns Offer entities and enforces single-winner acceptance.
// Locks is the same KeyedMutex instance the listings service uses, so
// offer resolution and listing transitions serialize on the listing id.
type Service struct {
	DB       *gorm.DB
	Locks    *keylock.KeyedMutex
	Listings *listings.Service
}

// Submit creates a pending offer against an approved listing.
func (s *Service) Submit(ctx context.Context, listingID, bidder uuid.UUID, amount float64, message string) (*domain.Offer, error) {
	s.Locks.Lock(listingID.String())
	defer s.Locks.Unlock(listingID.String())

	var offer *domain.Offer
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		o, err := s.SubmitTx(tx, listingID, bidder, amount, message)
		if err != nil {
			return err
		}
		offer = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return offer, nil
}

// SubmitTx creates a pending offer inside the caller's transaction. The
// caller holds the listing lock (contact-seller path, which commits the
// offer and its message together).
func (s *Service) SubmitTx(tx *gorm.DB, listingID, bidder uuid.UUID, amount float64, message string) (*domain.Offer, error) {
	if !validation.PositivePrice(amount) {
		return nil, domain.E(domain.KindValidation, "Amount must be a positive number")
	}
	var l domain.Listing
	if err := tx.Where("listing_id = ?", listingID).First(&l).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.E(domain.KindNotFound, "Listing not found")
		}
		return nil, domain.Wrap(err, "Failed to fetch listing")
	}
	if l.Status != domain.ListingApproved {
		return nil, domain.Ef(domain.KindInvalidState, "Offers are only accepted on approved listings, not %s", l.Status)
	}
	if l.SellerID == bidder {
		return nil, domain.E(domain.KindSelfDealing, "Cannot make an offer on your own listing")
	}

	o := &domain.Offer{
		ListingID: listingID,
		BidderID:  bidder,
		Amount:    amount,
		Message:   message,
		Status:    domain.OfferPending,
	}
	if err := tx.Create(o).Error; err != nil {
		return nil, domain.Wrap(err, "Failed to create offer")
	}
	return o, nil
}

// Accept resolves the offer as the single winner: the target offer becomes
// accepted, every other pending offer on the listing becomes rejected, and
// the listing becomes sold at the offer amount. All of it happens in one
// transaction under the listing lock; a lost race fails with Conflict and
// leaves no partial state.
func (s *Service) Accept(ctx context.Context, offerID, actor uuid.UUID) (*domain.Listing, error) {
	offer, err := s.get(ctx, offerID)
	if err != nil {
		return nil, err
	}

	key := offer.ListingID.String()
	s.Locks.Lock(key)
	defer s.Locks.Unlock(key)

	var listing *domain.Listing
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var o domain.Offer
		if err := tx.Where("offer_id = ?", offerID).First(&o).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.E(domain.KindNotFound, "Offer not found")
			}
			return domain.Wrap(err, "Failed to fetch offer")
		}
		if o.Status != domain.OfferPending {
			return domain.Ef(domain.KindConflict, "Offer already %s", o.Status)
		}

		var l domain.Listing
		if err := tx.Where("listing_id = ?", o.ListingID).First(&l).Error; err != nil {
			return domain.Wrap(err, "Failed to fetch listing")
		}
		if l.SellerID != actor {
			return domain.E(domain.KindUnauthorized, "Only the owner may accept an offer")
		}
		if l.Status != domain.ListingApproved {
			return domain.Ef(domain.KindConflict, "Listing is %s, not approved", l.Status)
		}

		now := time.Now()
		o.Status = domain.OfferAccepted
		o.ResolvedAt = &now
		if err := tx.Save(&o).Error; err != nil {
			return domain.Wrap(err, "Failed to accept offer")
		}
		if err := tx.Model(&domain.Offer{}).
			Where("listing_id = ? AND offer_id <> ? AND status = ?", o.ListingID, o.OfferID, domain.OfferPending).
			Updates(map[string]interface{}{"status": domain.OfferRejected, "resolved_at": now}).Error; err != nil {
			return domain.Wrap(err, "Failed to reject losing offers")
		}
		if err := s.Listings.SellTx(tx, &l, o.BidderID, o.Amount); err != nil {
			return err
		}
		listing = &l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return listing, nil
}

// Reject resolves one offer as rejected with no cascading effects.
func (s *Service) Reject(ctx context.Context, offerID, actor uuid.UUID) (*domain.Offer, error) {
	offer, err := s.get(ctx, offerID)
	if err != nil {
		return nil, err
	}

	key := offer.ListingID.String()
	s.Locks.Lock(key)
	defer s.Locks.Unlock(key)

	var out *domain.Offer
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var o domain.Offer
		if err := tx.Where("offer_id = ?", offerID).First(&o).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.E(domain.KindNotFound, "Offer not found")
			}
			return domain.Wrap(err, "Failed to fetch offer")
		}
		if o.Status != domain.OfferPending {
			return domain.Ef(domain.KindConflict, "Offer already %s", o.Status)
		}
		var l domain.Listing
		if err := tx.Where("listing_id = ?", o.ListingID).First(&l).Error; err != nil {
			return domain.Wrap(err, "Failed to fetch listing")
		}
		if l.SellerID != actor {
			return domain.E(domain.KindUnauthorized, "Only the owner may reject an offer")
		}
		now := time.Now()
		o.Status = domain.OfferRejected
		o.ResolvedAt = &now
		if err := tx.Save(&o).Error; err != nil {
			return domain.Wrap(err, "Failed to reject offer")
		}
		out = &o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ExpirePendingTx expires every pending offer on a listing inside the
// caller's transaction. Registered as a transition hook for every path
// that takes a listing out of approved without resolving its offers.
func (s *Service) ExpirePendingTx(tx *gorm.DB, listingID uuid.UUID) error {
	now := time.Now()
	err := tx.Model(&domain.Offer{}).
		Where("listing_id = ? AND status = ?", listingID, domain.OfferPending).
		Updates(map[string]interface{}{"status": domain.OfferExpired, "resolved_at": now}).Error
	if err != nil {
		return domain.Wrap(err, "Failed to expire pending offers")
	}
	return nil
}

// ForListing returns all offers on a listing, newest first. Only the owner
// sees them.
func (s *Service) ForListing(ctx context.Context, listingID, actor uuid.UUID) ([]domain.Offer, error) {
	var l domain.Listing
	if err := s.DB.WithContext(ctx).Where("listing_id = ?", listingID).First(&l).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.E(domain.KindNotFound, "Listing not found")
		}
		return nil, domain.Wrap(err, "Failed to fetch listing")
	}
	if l.SellerID != actor {
		return nil, domain.E(domain.KindUnauthorized, "Only the owner may view a listing's offers")
	}
	var out []domain.Offer
	if err := s.DB.WithContext(ctx).Where("listing_id = ?", listingID).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, domain.Wrap(err, "Failed to fetch offers")
	}
	return out, nil
}

// UserOffers returns offers the user gave (as bidder) or received (on
// listings they own).
func (s *Service) UserOffers(ctx context.Context, user uuid.UUID, direction string) ([]domain.Offer, error) {
	var out []domain.Offer
	switch direction {
	case "", "given":
		if err := s.DB.WithContext(ctx).Where("bidder_id = ?", user).Order("created_at DESC").Find(&out).Error; err != nil {
			return nil, domain.Wrap(err, "Failed to fetch offers")
		}
	case "received":
		err := s.DB.WithContext(ctx).
			Joins("JOIN listings ON listings.listing_id = offers.listing_id").
			Where("listings.seller_id = ?", user).
			Order("offers.created_at DESC").Find(&out).Error
		if err != nil {
			return nil, domain.Wrap(err, "Failed to fetch offers")
		}
	default:
		return nil, domain.Ef(domain.KindValidation, "Unknown direction: %s", direction)
	}
	return out, nil
}

func (s *Service) get(ctx context.Context, offerID uuid.UUID) (*domain.Offer, error) {
	var o domain.Offer
	if err := s.DB.WithContext(ctx).Where("offer_id = ?", offerID).First(&o).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.E(domain.KindNotFound, "Offer not found")
		}
		return nil, domain.Wrap(err, "Failed to fetch offer")
	}
	return &o, nil
}
