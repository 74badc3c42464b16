package moderation

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

// Service owns Flag entities. A flag suspends its listing until a moderator
// resolves it; dismissal restores exactly the pre-flag status. Locks is the
// shared per-listing KeyedMutex.
type Service struct {
	DB       *gorm.DB
	Locks    *keylock.KeyedMutex
	Listings *listings.Service
}

// FlagInput carries a new moderation report. Reporter is nil for guests.
type FlagInput struct {
	ListingID   uuid.UUID
	Reporter    *uuid.UUID
	Reason      string
	Description string
}

// Flag files a report and forces the listing into flagged, recording the
// prior status for restore-on-dismissal. Works from any listing status.
func (s *Service) Flag(ctx context.Context, in FlagInput) (*domain.Flag, error) {
	if !validation.InSet(in.Reason, domain.FlagReasons) {
		return nil, domain.Ef(domain.KindValidation, "Unknown reason: %s", in.Reason)
	}
	if !validation.MinLength(in.Description, domain.MinFlagDescription) {
		return nil, domain.Ef(domain.KindValidation, "Description must be at least %d characters", domain.MinFlagDescription)
	}

	s.Locks.Lock(in.ListingID.String())
	defer s.Locks.Unlock(in.ListingID.String())

	var flag *domain.Flag
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var l domain.Listing
		if err := tx.Where("listing_id = ?", in.ListingID).First(&l).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.E(domain.KindNotFound, "Listing not found")
			}
			return domain.Wrap(err, "Failed to fetch listing")
		}

		prior, err := s.Listings.SuspendTx(tx, &l, in.Reporter)
		if err != nil {
			return err
		}
		if prior == domain.ListingFlagged {
			// Listing was already suspended; inherit the original pre-flag
			// status from the earliest open flag so dismissal still restores it.
			var earlier domain.Flag
			if err := tx.Where("listing_id = ? AND status = ?", in.ListingID, domain.FlagOpen).
				Order("created_at ASC").First(&earlier).Error; err == nil {
				prior = earlier.PriorStatus
			}
		}

		f := &domain.Flag{
			ListingID:   in.ListingID,
			ReporterID:  in.Reporter,
			Guest:       in.Reporter == nil,
			Reason:      in.Reason,
			Description: in.Description,
			Status:      domain.FlagOpen,
			PriorStatus: prior,
		}
		if err := tx.Create(f).Error; err != nil {
			return domain.Wrap(err, "Failed to create flag")
		}
		flag = f
		return nil
	})
	if err != nil {
		return nil, err
	}
	return flag, nil
}

// Resolve closes an open flag. Dismissal restores the listing's pre-flag
// status unless another flag is still open; upholding leaves it suspended.
func (s *Service) Resolve(ctx context.Context, flagID, actor uuid.UUID, outcome string) (*domain.Flag, error) {
	if outcome != string(domain.FlagUpheld) && outcome != string(domain.FlagDismissed) {
		return nil, domain.Ef(domain.KindValidation, "Unknown outcome: %s", outcome)
	}

	f, err := s.get(ctx, flagID)
	if err != nil {
		return nil, err
	}

	key := f.ListingID.String()
	s.Locks.Lock(key)
	defer s.Locks.Unlock(key)

	var flag *domain.Flag
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var fl domain.Flag
		if err := tx.Where("flag_id = ?", flagID).First(&fl).Error; err != nil {
			return domain.Wrap(err, "Failed to fetch flag")
		}
		if fl.Status != domain.FlagOpen {
			return domain.Ef(domain.KindConflict, "Flag already %s", fl.Status)
		}

		now := time.Now()
		fl.Status = domain.FlagStatus(outcome)
		fl.ResolvedBy = &actor
		fl.ResolvedAt = &now
		if err := tx.Save(&fl).Error; err != nil {
			return domain.Wrap(err, "Failed to resolve flag")
		}

		if fl.Status == domain.FlagDismissed {
			var open int64
			if err := tx.Model(&domain.Flag{}).
				Where("listing_id = ? AND status = ?", fl.ListingID, domain.FlagOpen).
				Count(&open).Error; err != nil {
				return domain.Wrap(err, "Failed to count open flags")
			}
			if open == 0 {
				var l domain.Listing
				if err := tx.Where("listing_id = ?", fl.ListingID).First(&l).Error; err != nil {
					return domain.Wrap(err, "Failed to fetch listing")
				}
				if l.Status == domain.ListingFlagged {
					if err := s.Listings.RestoreTx(tx, &l, fl.PriorStatus, &actor); err != nil {
						return err
					}
				}
			}
		}
		flag = &fl
		return nil
	})
	if err != nil {
		return nil, err
	}
	return flag, nil
}

// RequestUnflag files an owner-initiated re-review of a flagged listing.
// It creates a new open flag for moderators rather than clearing anything.
func (s *Service) RequestUnflag(ctx context.Context, listingID, actor uuid.UUID) (*domain.Flag, error) {
	s.Locks.Lock(listingID.String())
	defer s.Locks.Unlock(listingID.String())

	var flag *domain.Flag
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var l domain.Listing
		if err := tx.Where("listing_id = ?", listingID).First(&l).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.E(domain.KindNotFound, "Listing not found")
			}
			return domain.Wrap(err, "Failed to fetch listing")
		}
		if l.SellerID != actor {
			return domain.E(domain.KindUnauthorized, "Only the owner may request a re-review")
		}
		if l.Status != domain.ListingFlagged {
			return domain.E(domain.KindInvalidState, "Listing is not flagged")
		}

		prior := domain.ListingApproved
		var earlier domain.Flag
		if err := tx.Where("listing_id = ? AND status = ?", listingID, domain.FlagOpen).
			Order("created_at ASC").First(&earlier).Error; err == nil {
			prior = earlier.PriorStatus
		}

		f := &domain.Flag{
			ListingID:   listingID,
			ReporterID:  &actor,
			Reason:      "other",
			Description: "Owner requested re-review of flagged listing",
			Status:      domain.FlagOpen,
			PriorStatus: prior,
		}
		if err := tx.Create(f).Error; err != nil {
			return domain.Wrap(err, "Failed to create re-review request")
		}
		if err := s.Listings.AppendEventTx(tx, listingID, domain.EventUnflagRequested, &actor, map[string]interface{}{
			"flag_id": f.FlagID.String(),
		}); err != nil {
			return err
		}
		flag = f
		return nil
	})
	if err != nil {
		return nil, err
	}
	return flag, nil
}

// List returns flags for moderators, optionally filtered by status.
func (s *Service) List(ctx context.Context, status string) ([]domain.Flag, error) {
	db := s.DB.WithContext(ctx)
	if status != "" {
		switch domain.FlagStatus(status) {
		case domain.FlagOpen, domain.FlagUpheld, domain.FlagDismissed:
			db = db.Where("status = ?", status)
		default:
			return nil, domain.Ef(domain.KindValidation, "Unknown status: %s", status)
		}
	}
	var out []domain.Flag
	if err := db.Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, domain.Wrap(err, "Failed to fetch flags")
	}
	return out, nil
}

func (s *Service) get(ctx context.Context, flagID uuid.UUID) (*domain.Flag, error) {
	var f domain.Flag
	if err := s.DB.WithContext(ctx).Where("flag_id = ?", flagID).First(&f).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.E(domain.KindNotFound, "Flag not found")
		}
		return nil, domain.Wrap(err, "Failed to fetch flag")
	}
	return &f, nil
}
