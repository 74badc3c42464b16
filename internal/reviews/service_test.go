package reviews

import (
	"context"
	"testing"
	"time"

	"bazaar-backend/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupReviewsTest(t *testing.T) (*Service, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Listing{}, &domain.Review{}))
	return &Service{DB: db}, db
}

func soldListing(t *testing.T, db *gorm.DB, seller, buyer uuid.UUID) *domain.Listing {
	t.Helper()
	now := time.Now()
	price := 95.0
	l := &domain.Listing{
		SellerID:  seller,
		Title:     "Road bike",
		Category:  "sports",
		Condition: "good",
		Price:     100,
		Status:    domain.ListingSold,
		ExpiresAt: now.Add(24 * time.Hour),
		SoldAt:    &now,
		SoldTo:    &buyer,
		SoldPrice: &price,
		Version:   3,
	}
	require.NoError(t, db.Create(l).Error)
	return l
}

func TestSubmit_BuyerReviewsSeller(t *testing.T) {
	svc, db := setupReviewsTest(t)
	seller := uuid.New()
	buyer := uuid.New()
	l := soldListing(t, db, seller, buyer)

	r, err := svc.Submit(context.Background(), buyer, SubmitInput{
		ListingID: l.ListingID, Rating: 5, Title: "Great seller", Comment: "Fast and honest",
	})
	require.NoError(t, err)
	assert.Equal(t, seller, r.RevieweeID)
	assert.Equal(t, buyer, r.ReviewerID)

	// Seller reviews back; reviewee is the buyer.
	r2, err := svc.Submit(context.Background(), seller, SubmitInput{
		ListingID: l.ListingID, Rating: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, buyer, r2.RevieweeID)
}

func TestSubmit_DuplicatePerReviewer(t *testing.T) {
	svc, db := setupReviewsTest(t)
	seller := uuid.New()
	buyer := uuid.New()
	l := soldListing(t, db, seller, buyer)

	_, err := svc.Submit(context.Background(), buyer, SubmitInput{ListingID: l.ListingID, Rating: 5})
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), buyer, SubmitInput{ListingID: l.ListingID, Rating: 1})
	require.Error(t, err)
	assert.Equal(t, domain.KindDuplicate, domain.KindOf(err))
}

func TestSubmit_RequiresCompletedSale(t *testing.T) {
	svc, db := setupReviewsTest(t)
	l := &domain.Listing{
		SellerID: uuid.New(), Title: "Road bike", Category: "sports", Condition: "good",
		Price: 100, Status: domain.ListingApproved, ExpiresAt: time.Now().Add(24 * time.Hour), Version: 2,
	}
	require.NoError(t, db.Create(l).Error)

	_, err := svc.Submit(context.Background(), uuid.New(), SubmitInput{ListingID: l.ListingID, Rating: 5})
	require.Error(t, err)
	assert.Equal(t, domain.KindInvalidState, domain.KindOf(err))
}

func TestSubmit_OutsiderRejected(t *testing.T) {
	svc, db := setupReviewsTest(t)
	l := soldListing(t, db, uuid.New(), uuid.New())

	_, err := svc.Submit(context.Background(), uuid.New(), SubmitInput{ListingID: l.ListingID, Rating: 3})
	require.Error(t, err)
	assert.Equal(t, domain.KindUnauthorized, domain.KindOf(err))
}

func TestSubmit_RatingBounds(t *testing.T) {
	svc, db := setupReviewsTest(t)
	buyer := uuid.New()
	l := soldListing(t, db, uuid.New(), buyer)

	for _, rating := range []int{0, 6, -1} {
		_, err := svc.Submit(context.Background(), buyer, SubmitInput{ListingID: l.ListingID, Rating: rating})
		require.Error(t, err)
		assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	}
}

func TestRespond_SellerOnce(t *testing.T) {
	svc, db := setupReviewsTest(t)
	seller := uuid.New()
	buyer := uuid.New()
	l := soldListing(t, db, seller, buyer)

	r, err := svc.Submit(context.Background(), buyer, SubmitInput{ListingID: l.ListingID, Rating: 2, Comment: "Slow shipping"})
	require.NoError(t, err)

	// Not the seller
	_, err = svc.Respond(context.Background(), r.ReviewID, buyer, "thanks")
	require.Error(t, err)
	assert.Equal(t, domain.KindUnauthorized, domain.KindOf(err))

	got, err := svc.Respond(context.Background(), r.ReviewID, seller, "Sorry, courier strike that week")
	require.NoError(t, err)
	require.NotNil(t, got.Response)
	assert.NotNil(t, got.RespondedAt)

	_, err = svc.Respond(context.Background(), r.ReviewID, seller, "again")
	require.Error(t, err)
	assert.Equal(t, domain.KindDuplicate, domain.KindOf(err))
}

func TestRespond_OnlyToReviewsAboutSeller(t *testing.T) {
	svc, db := setupReviewsTest(t)
	seller := uuid.New()
	buyer := uuid.New()
	l := soldListing(t, db, seller, buyer)

	// Review written BY the seller about the buyer; seller cannot respond to it.
	r, err := svc.Submit(context.Background(), seller, SubmitInput{ListingID: l.ListingID, Rating: 4})
	require.NoError(t, err)

	_, err = svc.Respond(context.Background(), r.ReviewID, seller, "responding to myself")
	require.Error(t, err)
	assert.Equal(t, domain.KindUnauthorized, domain.KindOf(err))
}

func TestUserReviews_Directions(t *testing.T) {
	svc, db := setupReviewsTest(t)
	seller := uuid.New()
	buyer := uuid.New()
	l := soldListing(t, db, seller, buyer)

	_, err := svc.Submit(context.Background(), buyer, SubmitInput{ListingID: l.ListingID, Rating: 5})
	require.NoError(t, err)

	given, err := svc.UserReviews(context.Background(), buyer, domain.ReviewGiven)
	require.NoError(t, err)
	assert.Len(t, given, 1)

	received, err := svc.UserReviews(context.Background(), seller, domain.ReviewReceived)
	require.NoError(t, err)
	assert.Len(t, received, 1)

	_, err = svc.UserReviews(context.Background(), seller, "sideways")
	require.Error(t, err)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}
