package reviews

import (
	"context"
	"errors"
	"strings"
	"time"

	"bazaar-backend/internal/domain"
	"bazaar-backend/internal/pkg/validation"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service owns Review entities tied to completed sales.
type Service struct {
	DB *gorm.DB
}

// SubmitInput carries a new review.
type SubmitInput struct {
	ListingID uuid.UUID
	Rating    int
	Title     string
	Comment   string
}

// Submit creates a review on a sold listing. Only the two counterparts of
// the sale may review, each at most once, and each reviews the other.
func (s *Service) Submit(ctx context.Context, reviewer uuid.UUID, in SubmitInput) (*domain.Review, error) {
	if !validation.ValidRating(in.Rating) {
		return nil, domain.E(domain.KindValidation, "Rating must be between 1 and 5")
	}

	var review *domain.Review
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var l domain.Listing
		if err := tx.Where("listing_id = ?", in.ListingID).First(&l).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.E(domain.KindNotFound, "Listing not found")
			}
			return domain.Wrap(err, "Failed to fetch listing")
		}
		if l.Status != domain.ListingSold || l.SoldTo == nil {
			return domain.E(domain.KindInvalidState, "Reviews require a completed sale")
		}

		var reviewee uuid.UUID
		switch reviewer {
		case *l.SoldTo:
			reviewee = l.SellerID
		case l.SellerID:
			reviewee = *l.SoldTo
		default:
			return domain.E(domain.KindUnauthorized, "Only the buyer or seller of this sale may review it")
		}

		var count int64
		if err := tx.Model(&domain.Review{}).
			Where("listing_id = ? AND reviewer_id = ?", in.ListingID, reviewer).
			Count(&count).Error; err != nil {
			return domain.Wrap(err, "Failed to check existing reviews")
		}
		if count > 0 {
			return domain.E(domain.KindDuplicate, "You have already reviewed this sale")
		}

		r := &domain.Review{
			ListingID:  in.ListingID,
			ReviewerID: reviewer,
			RevieweeID: reviewee,
			Rating:     in.Rating,
			Title:      strings.TrimSpace(in.Title),
			Comment:    in.Comment,
		}
		if err := tx.Create(r).Error; err != nil {
			return domain.Wrap(err, "Failed to create review")
		}
		review = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return review, nil
}

// Respond attaches the one seller response to a review written about them.
func (s *Service) Respond(ctx context.Context, reviewID, actor uuid.UUID, text string) (*domain.Review, error) {
	if !validation.NonEmpty(text) {
		return nil, domain.E(domain.KindValidation, "Response text is required")
	}

	var review *domain.Review
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var r domain.Review
		if err := tx.Where("review_id = ?", reviewID).First(&r).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.E(domain.KindNotFound, "Review not found")
			}
			return domain.Wrap(err, "Failed to fetch review")
		}
		var l domain.Listing
		if err := tx.Where("listing_id = ?", r.ListingID).First(&l).Error; err != nil {
			return domain.Wrap(err, "Failed to fetch listing")
		}
		if actor != l.SellerID || r.RevieweeID != actor {
			return domain.E(domain.KindUnauthorized, "Only the seller may respond to a review written about them")
		}
		if r.Response != nil {
			return domain.E(domain.KindDuplicate, "This review already has a response")
		}
		now := time.Now()
		r.Response = &text
		r.RespondedAt = &now
		if err := tx.Save(&r).Error; err != nil {
			return domain.Wrap(err, "Failed to save response")
		}
		review = &r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return review, nil
}

// ForListing returns all reviews on one listing.
func (s *Service) ForListing(ctx context.Context, listingID uuid.UUID) ([]domain.Review, error) {
	var out []domain.Review
	if err := s.DB.WithContext(ctx).Where("listing_id = ?", listingID).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, domain.Wrap(err, "Failed to fetch reviews")
	}
	return out, nil
}

// UserReviews returns reviews the user gave or received.
func (s *Service) UserReviews(ctx context.Context, user uuid.UUID, direction string) ([]domain.Review, error) {
	var out []domain.Review
	switch direction {
	case "", domain.ReviewGiven:
		if err := s.DB.WithContext(ctx).Where("reviewer_id = ?", user).Order("created_at DESC").Find(&out).Error; err != nil {
			return nil, domain.Wrap(err, "Failed to fetch reviews")
		}
	case domain.ReviewReceived:
		if err := s.DB.WithContext(ctx).Where("reviewee_id = ?", user).Order("created_at DESC").Find(&out).Error; err != nil {
			return nil, domain.Wrap(err, "Failed to fetch reviews")
		}
	default:
		return nil, domain.Ef(domain.KindValidation, "Unknown direction: %s", direction)
	}
	return out, nil
}
