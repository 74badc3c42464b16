package listings

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"bazaar-backend/internal/domain"
	"bazaar-backend/internal/pkg/keylock"
	"bazaar-backend/internal/pkg/validation"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Actor identifies who is performing an operation. System is the scheduler
// and internal cascades; Moderator covers moderation roles.
type Actor struct {
	ID        uuid.UUID
	Moderator bool
	System    bool
}

// SystemActor is used by the expiry scheduler and internal transitions.
var SystemActor = Actor{System: true}

// HookFunc is a cascade invoked inside the transaction that performs a
// status transition. Hooks are registered per (from, to) pair at app wiring.
type HookFunc func(tx *gorm.DB, listing *domain.Listing, actorID *uuid.UUID) error

type hookKey struct {
	From, To domain.ListingStatus
}

// Service owns Listing entities and their status state machine.
type Service struct {
	DB            *gorm.DB
	Locks         *keylock.KeyedMutex
	TTLDays       int
	MaxImages     int
	MaxExtendDays int

	hooks map[hookKey][]HookFunc
}

// RegisterHook appends a cascade for the (from, to) transition. Must be
// called during wiring, before the service handles requests.
func (s *Service) RegisterHook(from, to domain.ListingStatus, h HookFunc) {
	if s.hooks == nil {
		s.hooks = make(map[hookKey][]HookFunc)
	}
	k := hookKey{From: from, To: to}
	s.hooks[k] = append(s.hooks[k], h)
}

func (s *Service) runHooks(tx *gorm.DB, from, to domain.ListingStatus, l *domain.Listing, actorID *uuid.UUID) error {
	for _, h := range s.hooks[hookKey{From: from, To: to}] {
		if err := h(tx, l, actorID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) ttl() time.Duration {
	days := s.TTLDays
	if days <= 0 {
		days = 30
	}
	return time.Duration(days) * 24 * time.Hour
}

// CreateInput carries the seller-supplied attributes of a new listing.
type CreateInput struct {
	Title       string
	Description string
	Category    string
	Condition   string
	Price       float64
	Images      []string
}

func (s *Service) validateAttrs(in CreateInput) error {
	if !validation.NonEmpty(in.Title) {
		return domain.E(domain.KindValidation, "Title is required")
	}
	if !validation.PositivePrice(in.Price) {
		return domain.E(domain.KindValidation, "Price must be a positive number")
	}
	if !validation.InSet(in.Category, domain.ListingCategories) {
		return domain.Ef(domain.KindValidation, "Unknown category: %s", in.Category)
	}
	if !validation.InSet(in.Condition, domain.ListingConditions) {
		return domain.Ef(domain.KindValidation, "Unknown condition: %s", in.Condition)
	}
	max := s.MaxImages
	if max <= 0 {
		max = 8
	}
	if len(in.Images) > max {
		return domain.Ef(domain.KindValidation, "At most %d images allowed", max)
	}
	return nil
}

// Create inserts a new listing in status pending with a fresh expiry horizon.
func (s *Service) Create(ctx context.Context, sellerID uuid.UUID, in CreateInput) (*domain.Listing, error) {
	if err := s.validateAttrs(in); err != nil {
		return nil, err
	}

	listing := &domain.Listing{
		SellerID:    sellerID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Category:    in.Category,
		Condition:   in.Condition,
		Price:       in.Price,
		Images:      domain.ImageRefs(in.Images),
		Status:      domain.ListingPending,
		ExpiresAt:   time.Now().Add(s.ttl()),
		Version:     1,
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(listing).Error; err != nil {
			return domain.Wrap(err, "Failed to create listing")
		}
		return s.appendEvent(tx, listing.ListingID, domain.EventCreated, &sellerID, map[string]interface{}{
			"price":  listing.Price,
			"status": string(listing.Status),
		})
	})
	if err != nil {
		return nil, asDomainErr(err)
	}
	return listing, nil
}

// Get returns one listing by id.
func (s *Service) Get(ctx context.Context, listingID uuid.UUID) (*domain.Listing, error) {
	var listing domain.Listing
	if err := s.DB.WithContext(ctx).Where("listing_id = ?", listingID).First(&listing).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.E(domain.KindNotFound, "Listing not found")
		}
		return nil, domain.Wrap(err, "Failed to fetch listing")
	}
	return &listing, nil
}

// BrowseQuery filters the public (approved-only) browse.
type BrowseQuery struct {
	Category  string
	Condition string
	MinPrice  float64
	MaxPrice  float64
	Search    string
	Page      int
	Limit     int
}

// BrowsePublic returns a page of approved listings plus the total match count.
func (s *Service) BrowsePublic(ctx context.Context, q BrowseQuery) ([]domain.Listing, int64, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 || q.Limit > 100 {
		q.Limit = 20
	}

	filter := func() *gorm.DB {
		db := s.DB.WithContext(ctx).Model(&domain.Listing{}).Where("status = ?", domain.ListingApproved)
		if q.Category != "" {
			db = db.Where("category = ?", q.Category)
		}
		if q.Condition != "" {
			db = db.Where("condition = ?", q.Condition)
		}
		if q.MinPrice > 0 {
			db = db.Where("price >= ?", q.MinPrice)
		}
		if q.MaxPrice > 0 {
			db = db.Where("price <= ?", q.MaxPrice)
		}
		if q.Search != "" {
			db = db.Where("title LIKE ?", "%"+q.Search+"%")
		}
		return db
	}

	var total int64
	if err := filter().Count(&total).Error; err != nil {
		return nil, 0, domain.Wrap(err, "Failed to count listings")
	}
	var out []domain.Listing
	if err := filter().Order("created_at DESC").Offset((q.Page - 1) * q.Limit).Limit(q.Limit).Find(&out).Error; err != nil {
		return nil, 0, domain.Wrap(err, "Failed to fetch listings")
	}
	return out, total, nil
}

// MyItems returns the seller's own listings, optionally filtered by status.
func (s *Service) MyItems(ctx context.Context, sellerID uuid.UUID, status string) ([]domain.Listing, error) {
	db := s.DB.WithContext(ctx).Where("seller_id = ?", sellerID)
	if status != "" {
		if !domain.ValidListingStatus(domain.ListingStatus(status)) {
			return nil, domain.Ef(domain.KindValidation, "Unknown status: %s", status)
		}
		db = db.Where("status = ?", status)
	}
	var out []domain.Listing
	if err := db.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, domain.Wrap(err, "Failed to fetch listings")
	}
	return out, nil
}

// EditInput carries owner edits; nil fields are left unchanged.
type EditInput struct {
	Title       *string
	Description *string
	Category    *string
	Condition   *string
	Price       *float64
	Images      []string
}

// Edit updates owner-editable attributes while the listing is pending or approved.
func (s *Service) Edit(ctx context.Context, listingID uuid.UUID, actor Actor, in EditInput) (*domain.Listing, error) {
	s.Locks.Lock(listingID.String())
	defer s.Locks.Unlock(listingID.String())

	var listing *domain.Listing
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		l, err := lockLoad(tx, listingID)
		if err != nil {
			return err
		}
		if l.SellerID != actor.ID {
			return domain.E(domain.KindUnauthorized, "Only the owner may edit a listing")
		}
		if l.Status != domain.ListingPending && l.Status != domain.ListingApproved {
			return domain.Ef(domain.KindInvalidState, "Cannot edit a %s listing", l.Status)
		}

		merged := CreateInput{
			Title:       l.Title,
			Description: l.Description,
			Category:    l.Category,
			Condition:   l.Condition,
			Price:       l.Price,
			Images:      l.Images,
		}
		if in.Title != nil {
			merged.Title = *in.Title
		}
		if in.Description != nil {
			merged.Description = *in.Description
		}
		if in.Category != nil {
			merged.Category = *in.Category
		}
		if in.Condition != nil {
			merged.Condition = *in.Condition
		}
		if in.Price != nil {
			merged.Price = *in.Price
		}
		if in.Images != nil {
			merged.Images = in.Images
		}
		if err := s.validateAttrs(merged); err != nil {
			return err
		}

		l.Title = strings.TrimSpace(merged.Title)
		l.Description = merged.Description
		l.Category = merged.Category
		l.Condition = merged.Condition
		l.Price = merged.Price
		l.Images = domain.ImageRefs(merged.Images)
		l.Version++
		if err := tx.Save(l).Error; err != nil {
			return domain.Wrap(err, "Failed to update listing")
		}
		listing = l
		return nil
	})
	if err != nil {
		return nil, asDomainErr(err)
	}
	return listing, nil
}

// legalTransition validates one step of the state table and the actor's
// authority over it. Flag suspension/restore does not go through here.
func legalTransition(l *domain.Listing, actor Actor, to domain.ListingStatus) error {
	from := l.Status
	switch {
	case from == domain.ListingPending && (to == domain.ListingApproved || to == domain.ListingRejected):
		if !actor.Moderator && !actor.System {
			return domain.E(domain.KindUnauthorized, "Only moderators may approve or reject listings")
		}
	case from == domain.ListingApproved && to == domain.ListingSold:
		if !actor.System && actor.ID != l.SellerID {
			return domain.E(domain.KindUnauthorized, "Only the owner may mark a listing sold")
		}
	case from == domain.ListingApproved && to == domain.ListingExpired:
		if !actor.System {
			return domain.E(domain.KindUnauthorized, "Listings expire on schedule, not by request")
		}
	default:
		return domain.Ef(domain.KindInvalidTransition, "Cannot transition listing from %s to %s", from, to)
	}
	return nil
}

// TransitionStatus applies one legal step of the state table and its cascades.
func (s *Service) TransitionStatus(ctx context.Context, listingID uuid.UUID, actor Actor, to domain.ListingStatus) (*domain.Listing, error) {
	if !domain.ValidListingStatus(to) {
		return nil, domain.Ef(domain.KindValidation, "Unknown status: %s", to)
	}

	s.Locks.Lock(listingID.String())
	defer s.Locks.Unlock(listingID.String())

	var listing *domain.Listing
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		l, err := lockLoad(tx, listingID)
		if err != nil {
			return err
		}
		if err := legalTransition(l, actor, to); err != nil {
			return err
		}
		from := l.Status
		l.Status = to
		if to == domain.ListingSold {
			now := time.Now()
			price := l.Price
			l.SoldAt = &now
			l.SoldPrice = &price
		}
		l.Version++
		if err := tx.Save(l).Error; err != nil {
			return domain.Wrap(err, "Failed to update listing")
		}
		actorID := actorIDPtr(actor)
		if err := s.appendEvent(tx, l.ListingID, domain.EventStatusChanged, actorID, map[string]interface{}{
			"from": string(from),
			"to":   string(to),
		}); err != nil {
			return err
		}
		if err := s.runHooks(tx, from, to, l, actorID); err != nil {
			return err
		}
		listing = l
		return nil
	})
	if err != nil {
		return nil, asDomainErr(err)
	}
	return listing, nil
}

// Repost re-enters pending from expired or rejected with a fresh expiry and
// cleared sold fields.
func (s *Service) Repost(ctx context.Context, listingID uuid.UUID, actor Actor) (*domain.Listing, error) {
	s.Locks.Lock(listingID.String())
	defer s.Locks.Unlock(listingID.String())

	var listing *domain.Listing
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		l, err := lockLoad(tx, listingID)
		if err != nil {
			return err
		}
		if l.SellerID != actor.ID {
			return domain.E(domain.KindUnauthorized, "Only the owner may repost a listing")
		}
		if l.Status != domain.ListingExpired && l.Status != domain.ListingRejected {
			return domain.Ef(domain.KindInvalidTransition, "Cannot repost a %s listing", l.Status)
		}
		from := l.Status
		l.Status = domain.ListingPending
		l.SoldAt = nil
		l.SoldTo = nil
		l.SoldPrice = nil
		l.ExpiresAt = time.Now().Add(s.ttl())
		l.Version++
		if err := tx.Save(l).Error; err != nil {
			return domain.Wrap(err, "Failed to repost listing")
		}
		if err := s.appendEvent(tx, l.ListingID, domain.EventReposted, &actor.ID, map[string]interface{}{
			"from": string(from),
		}); err != nil {
			return err
		}
		listing = l
		return nil
	})
	if err != nil {
		return nil, asDomainErr(err)
	}
	return listing, nil
}

// Extend pushes the expiry horizon forward. Extending an expired listing
// re-approves it; extending an approved one only moves the timestamp.
func (s *Service) Extend(ctx context.Context, listingID uuid.UUID, actor Actor, days int) (*domain.Listing, error) {
	maxDays := s.MaxExtendDays
	if maxDays <= 0 {
		maxDays = 90
	}
	if days < 1 || days > maxDays {
		return nil, domain.Ef(domain.KindValidation, "Days must be between 1 and %d", maxDays)
	}

	s.Locks.Lock(listingID.String())
	defer s.Locks.Unlock(listingID.String())

	var listing *domain.Listing
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		l, err := lockLoad(tx, listingID)
		if err != nil {
			return err
		}
		if l.SellerID != actor.ID {
			return domain.E(domain.KindUnauthorized, "Only the owner may extend a listing")
		}
		if l.Status != domain.ListingApproved && l.Status != domain.ListingExpired {
			return domain.Ef(domain.KindInvalidTransition, "Cannot extend a %s listing", l.Status)
		}
		from := l.Status
		base := l.ExpiresAt
		if base.Before(time.Now()) {
			base = time.Now()
		}
		l.ExpiresAt = base.Add(time.Duration(days) * 24 * time.Hour)
		if l.Status == domain.ListingExpired {
			l.Status = domain.ListingApproved
		}
		l.Version++
		if err := tx.Save(l).Error; err != nil {
			return domain.Wrap(err, "Failed to extend listing")
		}
		if err := s.appendEvent(tx, l.ListingID, domain.EventExtended, &actor.ID, map[string]interface{}{
			"days":       days,
			"from":       string(from),
			"expires_at": l.ExpiresAt,
		}); err != nil {
			return err
		}
		listing = l
		return nil
	})
	if err != nil {
		return nil, asDomainErr(err)
	}
	return listing, nil
}

// RecordView bumps the view counter. Best effort: failures are swallowed so
// a read path never fails because of the counter.
func (s *Service) RecordView(ctx context.Context, listingID uuid.UUID) {
	_ = s.DB.WithContext(ctx).Model(&domain.Listing{}).
		Where("listing_id = ?", listingID).
		UpdateColumn("view_count", gorm.Expr("view_count + 1")).Error
}

// Delete hard-deletes a listing and cascades to its dependents. Sold
// listings are kept for sales history.
func (s *Service) Delete(ctx context.Context, listingID uuid.UUID, actor Actor) error {
	s.Locks.Lock(listingID.String())
	defer s.Locks.Unlock(listingID.String())

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		l, err := lockLoad(tx, listingID)
		if err != nil {
			return err
		}
		if l.SellerID != actor.ID && !actor.Moderator {
			return domain.E(domain.KindUnauthorized, "Only the owner or a moderator may delete a listing")
		}
		if l.Status == domain.ListingSold {
			return domain.E(domain.KindInvalidState, "Sold listings cannot be deleted")
		}
		for _, m := range []interface{}{&domain.Offer{}, &domain.Review{}, &domain.Flag{}, &domain.Message{}, &domain.ListingEvent{}} {
			if err := tx.Where("listing_id = ?", listingID).Delete(m).Error; err != nil {
				return domain.Wrap(err, "Failed to delete listing dependents")
			}
		}
		if err := tx.Delete(l).Error; err != nil {
			return domain.Wrap(err, "Failed to delete listing")
		}
		return nil
	})
	if err != nil {
		return asDomainErr(err)
	}
	// The cascade removes the listing's own event trail, so the deletion is
	// recorded in the server log instead.
	log.Info().
		Str("listing_id", listingID.String()).
		Str("actor_id", actor.ID.String()).
		Str("event_type", domain.EventDeleted).
		Msg("Listing deleted")
	return nil
}

// SellTx marks the listing sold to buyer at price inside the caller's
// transaction. The caller holds the listing lock (offer acceptance path).
func (s *Service) SellTx(tx *gorm.DB, l *domain.Listing, buyer uuid.UUID, price float64) error {
	if l.Status != domain.ListingApproved {
		return domain.Ef(domain.KindConflict, "Listing is %s, not approved", l.Status)
	}
	now := time.Now()
	l.Status = domain.ListingSold
	l.SoldAt = &now
	l.SoldTo = &buyer
	l.SoldPrice = &price
	l.Version++
	if err := tx.Save(l).Error; err != nil {
		return domain.Wrap(err, "Failed to mark listing sold")
	}
	return s.appendEvent(tx, l.ListingID, domain.EventSold, &buyer, map[string]interface{}{
		"sold_price": price,
		"sold_to":    buyer.String(),
	})
}

// SuspendTx forces the listing into flagged inside the caller's transaction,
// returning the status it had before. Leaving approved runs the offer cascade.
func (s *Service) SuspendTx(tx *gorm.DB, l *domain.Listing, actorID *uuid.UUID) (domain.ListingStatus, error) {
	prior := l.Status
	if prior == domain.ListingFlagged {
		return prior, nil
	}
	l.Status = domain.ListingFlagged
	l.Version++
	if err := tx.Save(l).Error; err != nil {
		return prior, domain.Wrap(err, "Failed to suspend listing")
	}
	if err := s.appendEvent(tx, l.ListingID, domain.EventFlagged, actorID, map[string]interface{}{
		"prior_status": string(prior),
	}); err != nil {
		return prior, err
	}
	if err := s.runHooks(tx, prior, domain.ListingFlagged, l, actorID); err != nil {
		return prior, err
	}
	return prior, nil
}

// RestoreTx returns a flagged listing to the given pre-flag status inside
// the caller's transaction.
func (s *Service) RestoreTx(tx *gorm.DB, l *domain.Listing, to domain.ListingStatus, actorID *uuid.UUID) error {
	if l.Status != domain.ListingFlagged {
		return domain.Ef(domain.KindConflict, "Listing is %s, not flagged", l.Status)
	}
	l.Status = to
	l.Version++
	if err := tx.Save(l).Error; err != nil {
		return domain.Wrap(err, "Failed to restore listing")
	}
	return s.appendEvent(tx, l.ListingID, domain.EventStatusChanged, actorID, map[string]interface{}{
		"from": string(domain.ListingFlagged),
		"to":   string(to),
	})
}

// FindExpired returns ids of approved listings whose expiry has passed.
func (s *Service) FindExpired(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.DB.WithContext(ctx).Model(&domain.Listing{}).
		Where("status = ? AND expires_at < ?", domain.ListingApproved, now).
		Pluck("listing_id", &ids).Error
	if err != nil {
		return nil, domain.Wrap(err, "Failed to scan for expired listings")
	}
	return ids, nil
}

// Events returns the audit trail of one listing, newest first.
func (s *Service) Events(ctx context.Context, listingID uuid.UUID) ([]domain.ListingEvent, error) {
	var events []domain.ListingEvent
	err := s.DB.WithContext(ctx).Where("listing_id = ?", listingID).
		Order("created_at DESC").Find(&events).Error
	if err != nil {
		return nil, domain.Wrap(err, "Failed to fetch listing events")
	}
	return events, nil
}

// AppendEventTx records an audit event inside the caller's transaction.
// Used by collaborating services (moderation) for listing-scoped events.
func (s *Service) AppendEventTx(tx *gorm.DB, listingID uuid.UUID, eventType string, actorID *uuid.UUID, payload map[string]interface{}) error {
	return s.appendEvent(tx, listingID, eventType, actorID, payload)
}

func (s *Service) appendEvent(tx *gorm.DB, listingID uuid.UUID, eventType string, actorID *uuid.UUID, payload map[string]interface{}) error {
	b, _ := json.Marshal(payload)
	if err := tx.Create(&domain.ListingEvent{
		ListingID: listingID,
		EventType: eventType,
		ActorID:   actorID,
		EventData: datatypes.JSON(b),
	}).Error; err != nil {
		return domain.Wrap(err, "Failed to record listing event")
	}
	return nil
}

func lockLoad(tx *gorm.DB, listingID uuid.UUID) (*domain.Listing, error) {
	var l domain.Listing
	if err := tx.Where("listing_id = ?", listingID).First(&l).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.E(domain.KindNotFound, "Listing not found")
		}
		return nil, domain.Wrap(err, "Failed to fetch listing")
	}
	return &l, nil
}

func actorIDPtr(actor Actor) *uuid.UUID {
	if actor.System || actor.ID == uuid.Nil {
		return nil
	}
	id := actor.ID
	return &id
}

func asDomainErr(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*domain.Error); ok {
		return err
	}
	return domain.Wrap(err, "Storage failure")
}
