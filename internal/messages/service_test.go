package messages

import (
	"context"
	"testing"

	"bazaar-backend/internal/domain"
	"bazaar-backend/internal/listings"
	"bazaar-backend/internal/offers"
	"bazaar-backend/internal/pkg/keylock"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupMessagesTest(t *testing.T) (*Service, *listings.Service, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.Listing{}, &domain.Offer{}, &domain.Review{},
		&domain.Flag{}, &domain.Message{}, &domain.ListingEvent{},
	))

	locks := keylock.New()
	ls := &listings.Service{DB: db, Locks: locks, TTLDays: 30, MaxImages: 8, MaxExtendDays: 90}
	os := &offers.Service{DB: db, Locks: locks, Listings: ls}
	return &Service{DB: db, Locks: locks, Offers: os}, ls, db
}

func approvedListing(t *testing.T, ls *listings.Service, seller uuid.UUID) *domain.Listing {
	t.Helper()
	l, err := ls.Create(context.Background(), seller, listings.CreateInput{
		Title: "Paperback bundle", Category: "books", Condition: "good", Price: 20,
	})
	require.NoError(t, err)
	l, err = ls.TransitionStatus(context.Background(), l.ListingID, listings.Actor{ID: uuid.New(), Moderator: true}, domain.ListingApproved)
	require.NoError(t, err)
	return l
}

func TestContactSeller_PlainMessage(t *testing.T) {
	svc, ls, _ := setupMessagesTest(t)
	seller := uuid.New()
	buyer := uuid.New()
	l := approvedListing(t, ls, seller)

	res, err := svc.ContactSeller(context.Background(), l.ListingID, buyer, "Is this still available?", nil)
	require.NoError(t, err)
	require.NotNil(t, res.Message)
	assert.Nil(t, res.Offer)
	assert.Equal(t, domain.MessagePlain, res.Message.MessageType)
	assert.Equal(t, seller, res.Message.RecipientID)
	assert.False(t, res.Message.Read)
}

func TestContactSeller_WithOffer(t *testing.T) {
	svc, ls, _ := setupMessagesTest(t)
	seller := uuid.New()
	buyer := uuid.New()
	l := approvedListing(t, ls, seller)

	amount := 18.0
	res, err := svc.ContactSeller(context.Background(), l.ListingID, buyer, "Would you take 18?", &amount)
	require.NoError(t, err)
	require.NotNil(t, res.Offer)
	assert.Equal(t, domain.MessageOffer, res.Message.MessageType)
	assert.Equal(t, domain.OfferPending, res.Offer.Status)
	assert.Equal(t, 18.0, res.Offer.Amount)
	assert.Equal(t, buyer, res.Offer.BidderID)
}

func TestContactSeller_SelfDealing(t *testing.T) {
	svc, ls, _ := setupMessagesTest(t)
	seller := uuid.New()
	l := approvedListing(t, ls, seller)

	_, err := svc.ContactSeller(context.Background(), l.ListingID, seller, "hello me", nil)
	require.Error(t, err)
	assert.Equal(t, domain.KindSelfDealing, domain.KindOf(err))
}

func TestContactSeller_OfferNeedsApprovedListing(t *testing.T) {
	svc, ls, db := setupMessagesTest(t)
	seller := uuid.New()
	l := approvedListing(t, ls, seller)
	require.NoError(t, db.Model(&domain.Listing{}).Where("listing_id = ?", l.ListingID).
		Update("status", domain.ListingExpired).Error)

	amount := 18.0
	_, err := svc.ContactSeller(context.Background(), l.ListingID, uuid.New(), "Would you take 18?", &amount)
	require.Error(t, err)
	assert.Equal(t, domain.KindInvalidState, domain.KindOf(err))

	// Plain messages still go through on a non-approved listing.
	_, err = svc.ContactSeller(context.Background(), l.ListingID, uuid.New(), "Will you repost this?", nil)
	require.NoError(t, err)
}

func TestContactSeller_EmptyBody(t *testing.T) {
	svc, ls, _ := setupMessagesTest(t)
	l := approvedListing(t, ls, uuid.New())

	_, err := svc.ContactSeller(context.Background(), l.ListingID, uuid.New(), "   ", nil)
	require.Error(t, err)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}

func TestMarkRead_RecipientOnly(t *testing.T) {
	svc, ls, _ := setupMessagesTest(t)
	seller := uuid.New()
	buyer := uuid.New()
	l := approvedListing(t, ls, seller)

	res, err := svc.ContactSeller(context.Background(), l.ListingID, buyer, "Is this still available?", nil)
	require.NoError(t, err)

	_, err = svc.MarkRead(context.Background(), res.Message.MessageID, buyer)
	require.Error(t, err)
	assert.Equal(t, domain.KindUnauthorized, domain.KindOf(err))

	m, err := svc.MarkRead(context.Background(), res.Message.MessageID, seller)
	require.NoError(t, err)
	assert.True(t, m.Read)

	// Marking twice is a no-op
	m, err = svc.MarkRead(context.Background(), res.Message.MessageID, seller)
	require.NoError(t, err)
	assert.True(t, m.Read)
}

func TestForUser_BothDirections(t *testing.T) {
	svc, ls, _ := setupMessagesTest(t)
	seller := uuid.New()
	buyer := uuid.New()
	l := approvedListing(t, ls, seller)

	_, err := svc.ContactSeller(context.Background(), l.ListingID, buyer, "Is this still available?", nil)
	require.NoError(t, err)

	forBuyer, err := svc.ForUser(context.Background(), buyer, "")
	require.NoError(t, err)
	assert.Len(t, forBuyer, 1)

	forSeller, err := svc.ForUser(context.Background(), seller, "")
	require.NoError(t, err)
	assert.Len(t, forSeller, 1)

	forStranger, err := svc.ForUser(context.Background(), uuid.New(), "")
	require.NoError(t, err)
	assert.Empty(t, forStranger)
}

func TestForUser_TypeFilter(t *testing.T) {
	svc, ls, _ := setupMessagesTest(t)
	seller := uuid.New()
	buyer := uuid.New()
	l := approvedListing(t, ls, seller)

	_, err := svc.ContactSeller(context.Background(), l.ListingID, buyer, "Is this still available?", nil)
	require.NoError(t, err)
	amount := 18.0
	_, err = svc.ContactSeller(context.Background(), l.ListingID, buyer, "Would you take 18?", &amount)
	require.NoError(t, err)

	offersOnly, err := svc.ForUser(context.Background(), buyer, "offer")
	require.NoError(t, err)
	require.Len(t, offersOnly, 1)
	assert.Equal(t, domain.MessageOffer, offersOnly[0].MessageType)

	_, err = svc.ForUser(context.Background(), buyer, "smoke_signal")
	require.Error(t, err)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}

func TestContactSeller_OfferAndMessageCommitTogether(t *testing.T) {
	svc, ls, db := setupMessagesTest(t)
	seller := uuid.New()
	l := approvedListing(t, ls, seller)

	// Force the message insert to fail after the offer was created in the
	// same transaction; neither row may survive.
	require.NoError(t, db.Migrator().DropTable(&domain.Message{}))

	amount := 18.0
	_, err := svc.ContactSeller(context.Background(), l.ListingID, uuid.New(), "Would you take 18?", &amount)
	require.Error(t, err)

	var offerCount int64
	require.NoError(t, db.Model(&domain.Offer{}).Where("listing_id = ?", l.ListingID).Count(&offerCount).Error)
	assert.Zero(t, offerCount)
}
