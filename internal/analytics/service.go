package analytics

import (
	"context"
	"errors"

	"bazaar-backend/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service computes read-only projections over the marketplace stores. It
// never mutates; concurrent writes may make counts momentarily stale, which
// is acceptable.
type Service struct {
	DB *gorm.DB
}

// ListingStats is the per-listing projection.
type ListingStats struct {
	ListingID   uuid.UUID `json:"listing_id"`
	ViewCount   int64     `json:"view_count"`
	OfferCount  int64     `json:"offer_count"`
	ReviewCount int64     `json:"review_count"`
}

// MarketplaceStats is the global projection.
type MarketplaceStats struct {
	ListingCount int64   `json:"listing_count"`
	OfferCount   int64   `json:"offer_count"`
	ReviewCount  int64   `json:"review_count"`
	OfferRate    float64 `json:"offer_rate"`
	ReviewRate   float64 `json:"review_rate"`
}

// SellerStats aggregates one seller's completed sales.
type SellerStats struct {
	SellerID      uuid.UUID `json:"seller_id"`
	TotalSales    int64     `json:"total_sales"`
	TotalEarnings float64   `json:"total_earnings"`
}

// Listing returns view/offer/review counts for one listing.
func (s *Service) Listing(ctx context.Context, listingID uuid.UUID) (*ListingStats, error) {
	var l domain.Listing
	if err := s.DB.WithContext(ctx).Where("listing_id = ?", listingID).First(&l).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.E(domain.KindNotFound, "Listing not found")
		}
		return nil, domain.Wrap(err, "Failed to fetch listing")
	}

	stats := &ListingStats{ListingID: listingID, ViewCount: l.ViewCount}
	if err := s.DB.WithContext(ctx).Model(&domain.Offer{}).Where("listing_id = ?", listingID).Count(&stats.OfferCount).Error; err != nil {
		return nil, domain.Wrap(err, "Failed to count offers")
	}
	if err := s.DB.WithContext(ctx).Model(&domain.Review{}).Where("listing_id = ?", listingID).Count(&stats.ReviewCount).Error; err != nil {
		return nil, domain.Wrap(err, "Failed to count reviews")
	}
	return stats, nil
}

// Marketplace returns global counts and derived offer/review rates.
func (s *Service) Marketplace(ctx context.Context) (*MarketplaceStats, error) {
	stats := &MarketplaceStats{}
	db := s.DB.WithContext(ctx)
	if err := db.Model(&domain.Listing{}).Count(&stats.ListingCount).Error; err != nil {
		return nil, domain.Wrap(err, "Failed to count listings")
	}
	if err := db.Model(&domain.Offer{}).Count(&stats.OfferCount).Error; err != nil {
		return nil, domain.Wrap(err, "Failed to count offers")
	}
	if err := db.Model(&domain.Review{}).Count(&stats.ReviewCount).Error; err != nil {
		return nil, domain.Wrap(err, "Failed to count reviews")
	}
	if stats.ListingCount > 0 {
		stats.OfferRate = float64(stats.OfferCount) / float64(stats.ListingCount)
		stats.ReviewRate = float64(stats.ReviewCount) / float64(stats.ListingCount)
	}
	return stats, nil
}

// Seller returns sales count and earnings for one seller's sold listings.
func (s *Service) Seller(ctx context.Context, sellerID uuid.UUID) (*SellerStats, error) {
	stats := &SellerStats{SellerID: sellerID}
	if err := s.DB.WithContext(ctx).Model(&domain.Listing{}).
		Where("seller_id = ? AND status = ?", sellerID, domain.ListingSold).
		Count(&stats.TotalSales).Error; err != nil {
		return nil, domain.Wrap(err, "Failed to count sales")
	}
	var earnings *float64
	if err := s.DB.WithContext(ctx).Model(&domain.Listing{}).
		Where("seller_id = ? AND status = ?", sellerID, domain.ListingSold).
		Select("SUM(sold_price)").Scan(&earnings).Error; err != nil {
		return nil, domain.Wrap(err, "Failed to sum earnings")
	}
	if earnings != nil {
		stats.TotalEarnings = *earnings
	}
	return stats, nil
}
