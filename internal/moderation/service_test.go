package moderation

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

func setupModerationTest(t *testing.T) (*Service, *listings.Service, *offers.Service, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.Listing{}, &domain.Offer{}, &domain.Review{},
		&domain.Flag{}, &domain.Message{}, &domain.ListingEvent{},
	))

	locks := keylock.New()
	ls := &listings.Service{DB: db, Locks: locks, TTLDays: 30, MaxImages: 8, MaxExtendDays: 90}
	os := &offers.Service{DB: db, Locks: locks, Listings: ls}
	ms := &Service{DB: db, Locks: locks, Listings: ls}

	expire := func(tx *gorm.DB, l *domain.Listing, _ *uuid.UUID) error {
		return os.ExpirePendingTx(tx, l.ListingID)
	}
	ls.RegisterHook(domain.ListingApproved, domain.ListingExpired, expire)
	ls.RegisterHook(domain.ListingApproved, domain.ListingFlagged, expire)
	ls.RegisterHook(domain.ListingApproved, domain.ListingSold, expire)

	return ms, ls, os, db
}

func approvedListing(t *testing.T, ls *listings.Service, seller uuid.UUID) *domain.Listing {
	t.Helper()
	l, err := ls.Create(context.Background(), seller, listings.CreateInput{
		Title: "Leather sofa", Category: "furniture", Condition: "fair", Price: 250,
	})
	require.NoError(t, err)
	l, err = ls.TransitionStatus(context.Background(), l.ListingID, listings.Actor{ID: uuid.New(), Moderator: true}, domain.ListingApproved)
	require.NoError(t, err)
	return l
}

func TestFlag_DescriptionTooShort(t *testing.T) {
	ms, ls, _, _ := setupModerationTest(t)
	l := approvedListing(t, ls, uuid.New())

	_, err := ms.Flag(context.Background(), FlagInput{
		ListingID: l.ListingID, Reason: "spam", Description: "is spam!",
	})
	require.Error(t, err)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	// Nothing changed
	got, err := ls.Get(context.Background(), l.ListingID)
	require.NoError(t, err)
	assert.Equal(t, domain.ListingApproved, got.Status)
}

func TestFlag_SuspendsAndExpiresOffers(t *testing.T) {
	ms, ls, os, db := setupModerationTest(t)
	seller := uuid.New()
	l := approvedListing(t, ls, seller)
	o, err := os.Submit(context.Background(), l.ListingID, uuid.New(), 200, "")
	require.NoError(t, err)

	reporter := uuid.New()
	f, err := ms.Flag(context.Background(), FlagInput{
		ListingID: l.ListingID, Reporter: &reporter,
		Reason: "spam", Description: "posted twelve times today",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.FlagOpen, f.Status)
	assert.Equal(t, domain.ListingApproved, f.PriorStatus)
	assert.False(t, f.Guest)

	got, err := ls.Get(context.Background(), l.ListingID)
	require.NoError(t, err)
	assert.Equal(t, domain.ListingFlagged, got.Status)

	var offer domain.Offer
	require.NoError(t, db.Where("offer_id = ?", o.OfferID).First(&offer).Error)
	assert.Equal(t, domain.OfferExpired, offer.Status)
}

func TestFlag_GuestReporter(t *testing.T) {
	ms, ls, _, _ := setupModerationTest(t)
	l := approvedListing(t, ls, uuid.New())

	f, err := ms.Flag(context.Background(), FlagInput{
		ListingID: l.ListingID, Reporter: nil,
		Reason: "counterfeit", Description: "brand logo is misspelled",
	})
	require.NoError(t, err)
	assert.True(t, f.Guest)
	assert.Nil(t, f.ReporterID)
}

func TestResolve_DismissRestoresPriorStatus(t *testing.T) {
	ms, ls, _, _ := setupModerationTest(t)
	l := approvedListing(t, ls, uuid.New())
	f, err := ms.Flag(context.Background(), FlagInput{
		ListingID: l.ListingID, Reason: "spam", Description: "posted twelve times today",
	})
	require.NoError(t, err)

	mod := uuid.New()
	resolved, err := ms.Resolve(context.Background(), f.FlagID, mod, "dismissed")
	require.NoError(t, err)
	assert.Equal(t, domain.FlagDismissed, resolved.Status)
	assert.Equal(t, &mod, resolved.ResolvedBy)
	assert.NotNil(t, resolved.ResolvedAt)

	got, err := ls.Get(context.Background(), l.ListingID)
	require.NoError(t, err)
	assert.Equal(t, domain.ListingApproved, got.Status)
}

func TestResolve_UpholdKeepsSuspended(t *testing.T) {
	ms, ls, _, _ := setupModerationTest(t)
	l := approvedListing(t, ls, uuid.New())
	f, err := ms.Flag(context.Background(), FlagInput{
		ListingID: l.ListingID, Reason: "prohibited", Description: "weapon parts are not allowed",
	})
	require.NoError(t, err)

	_, err = ms.Resolve(context.Background(), f.FlagID, uuid.New(), "upheld")
	require.NoError(t, err)

	got, err := ls.Get(context.Background(), l.ListingID)
	require.NoError(t, err)
	assert.Equal(t, domain.ListingFlagged, got.Status)
}

func TestResolve_WaitsForAllOpenFlags(t *testing.T) {
	ms, ls, _, _ := setupModerationTest(t)
	l := approvedListing(t, ls, uuid.New())

	f1, err := ms.Flag(context.Background(), FlagInput{
		ListingID: l.ListingID, Reason: "spam", Description: "posted twelve times today",
	})
	require.NoError(t, err)
	f2, err := ms.Flag(context.Background(), FlagInput{
		ListingID: l.ListingID, Reason: "offensive", Description: "title contains a slur",
	})
	require.NoError(t, err)
	// The second flag inherits the original pre-flag status.
	assert.Equal(t, domain.ListingApproved, f2.PriorStatus)

	mod := uuid.New()
	_, err = ms.Resolve(context.Background(), f1.FlagID, mod, "dismissed")
	require.NoError(t, err)

	got, err := ls.Get(context.Background(), l.ListingID)
	require.NoError(t, err)
	assert.Equal(t, domain.ListingFlagged, got.Status)

	_, err = ms.Resolve(context.Background(), f2.FlagID, mod, "dismissed")
	require.NoError(t, err)

	got, err = ls.Get(context.Background(), l.ListingID)
	require.NoError(t, err)
	assert.Equal(t, domain.ListingApproved, got.Status)
}

func TestResolve_ClosedFlagConflicts(t *testing.T) {
	ms, ls, _, _ := setupModerationTest(t)
	l := approvedListing(t, ls, uuid.New())
	f, err := ms.Flag(context.Background(), FlagInput{
		ListingID: l.ListingID, Reason: "spam", Description: "posted twelve times today",
	})
	require.NoError(t, err)

	_, err = ms.Resolve(context.Background(), f.FlagID, uuid.New(), "dismissed")
	require.NoError(t, err)

	_, err = ms.Resolve(context.Background(), f.FlagID, uuid.New(), "upheld")
	require.Error(t, err)
	assert.Equal(t, domain.KindConflict, domain.KindOf(err))
}

func TestResolve_OutcomeValidation(t *testing.T) {
	ms, ls, _, _ := setupModerationTest(t)
	l := approvedListing(t, ls, uuid.New())
	f, err := ms.Flag(context.Background(), FlagInput{
		ListingID: l.ListingID, Reason: "spam", Description: "posted twelve times today",
	})
	require.NoError(t, err)

	_, err = ms.Resolve(context.Background(), f.FlagID, uuid.New(), "maybe")
	require.Error(t, err)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}

func TestRequestUnflag(t *testing.T) {
	ms, ls, _, _ := setupModerationTest(t)
	seller := uuid.New()
	l := approvedListing(t, ls, seller)

	// Only meaningful on flagged listings
	_, err := ms.RequestUnflag(context.Background(), l.ListingID, seller)
	require.Error(t, err)
	assert.Equal(t, domain.KindInvalidState, domain.KindOf(err))

	_, err = ms.Flag(context.Background(), FlagInput{
		ListingID: l.ListingID, Reason: "spam", Description: "posted twelve times today",
	})
	require.NoError(t, err)

	_, err = ms.RequestUnflag(context.Background(), l.ListingID, uuid.New())
	require.Error(t, err)
	assert.Equal(t, domain.KindUnauthorized, domain.KindOf(err))

	f, err := ms.RequestUnflag(context.Background(), l.ListingID, seller)
	require.NoError(t, err)
	assert.Equal(t, domain.FlagOpen, f.Status)
	assert.Equal(t, domain.ListingApproved, f.PriorStatus)

	events, err := ls.Events(context.Background(), l.ListingID)
	require.NoError(t, err)
	var found bool
	for _, e := range events {
		if e.EventType == domain.EventUnflagRequested {
			found = true
		}
	}
	assert.True(t, found)
}

func TestList_StatusFilter(t *testing.T) {
	ms, ls, _, _ := setupModerationTest(t)
	l := approvedListing(t, ls, uuid.New())
	f, err := ms.Flag(context.Background(), FlagInput{
		ListingID: l.ListingID, Reason: "spam", Description: "posted twelve times today",
	})
	require.NoError(t, err)
	_, err = ms.Resolve(context.Background(), f.FlagID, uuid.New(), "upheld")
	require.NoError(t, err)

	open, err := ms.List(context.Background(), "open")
	require.NoError(t, err)
	assert.Empty(t, open)

	upheld, err := ms.List(context.Background(), "upheld")
	require.NoError(t, err)
	assert.Len(t, upheld, 1)

	all, err := ms.List(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = ms.List(context.Background(), "bogus")
	require.Error(t, err)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}
