package app

import (
	"bazaar-backend/internal/analytics"
	"bazaar-backend/internal/config"
	"bazaar-backend/internal/domain"
	"bazaar-backend/internal/health"
	"bazaar-backend/internal/infrastructure/database"
	"bazaar-backend/internal/listings"
	"bazaar-backend/internal/messages"
	"bazaar-backend/internal/middleware"
	"bazaar-backend/internal/moderation"
	"bazaar-backend/internal/offers"
	"bazaar-backend/internal/pkg/keylock"
	"bazaar-backend/internal/reviews"
	"bazaar-backend/internal/scheduler"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// CreateApp builds the Fiber app with all global middleware, route
// registration, and the transition-hook wiring between services.
func CreateApp(cfg *config.Config) (*fiber.App, *scheduler.Scheduler, *gorm.DB, *redis.Client, error) {
	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})

	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix:     cfg.FrontendURLEndsWith,
		DevPassword:       cfg.DevPassword,
		AllowCrossSiteDev: cfg.AllowCrossSiteDev,
	}))

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		rdb = redis.NewClient(opt)
	}

	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())
	app.Use(middleware.BearerAuth(rdb))

	var db *gorm.DB
	if cfg.DatabaseURL != "" {
		var err error
		db, err = database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		if err := database.AutoMigrate(db); err != nil {
			return nil, nil, nil, nil, err
		}
	}

	healthHandlers := &health.Handlers{DB: db, Rdb: rdb}
	app.Get("/health/json", healthHandlers.JSON)

	var sched *scheduler.Scheduler
	if db != nil {
		locks := keylock.New()

		listingsService := &listings.Service{
			DB:            db,
			Locks:         locks,
			TTLDays:       cfg.ListingTTLDays,
			MaxImages:     cfg.MaxListingImages,
			MaxExtendDays: cfg.MaxExtendDays,
		}
		offersService := &offers.Service{DB: db, Locks: locks, Listings: listingsService}
		reviewsService := &reviews.Service{DB: db}
		moderationService := &moderation.Service{DB: db, Locks: locks, Listings: listingsService}
		messagesService := &messages.Service{DB: db, Locks: locks, Offers: offersService}
		analyticsService := &analytics.Service{DB: db}

		// A listing leaving approved without offer resolution expires its
		// pending offers in the same transaction. The accept path rejects
		// them itself and never runs these hooks.
		expireOffers := func(tx *gorm.DB, l *domain.Listing, _ *uuid.UUID) error {
			return offersService.ExpirePendingTx(tx, l.ListingID)
		}
		listingsService.RegisterHook(domain.ListingApproved, domain.ListingExpired, expireOffers)
		listingsService.RegisterHook(domain.ListingApproved, domain.ListingFlagged, expireOffers)
		listingsService.RegisterHook(domain.ListingApproved, domain.ListingSold, expireOffers)

		sched = scheduler.New(listingsService, cfg.SweepCron, cfg.SweepInterval, cfg.SweepItemTimeout)

		listingsHandlers := &listings.Handlers{Service: listingsService}
		offersHandlers := &offers.Handlers{Service: offersService}
		reviewsHandlers := &reviews.Handlers{Service: reviewsService}
		moderationHandlers := &moderation.Handlers{Service: moderationService}
		messagesHandlers := &messages.Handlers{Service: messagesService}
		analyticsHandlers := &analytics.Handlers{Service: analyticsService}

		mk := app.Group("/api/v1/marketplace")

		// Public surface (guest flagging included)
		mk.Get("/public", listingsHandlers.BrowsePublic)
		mk.Get("/items/:id", listingsHandlers.GetListing)
		mk.Get("/items/:id/reviews", reviewsHandlers.ForListing)
		mk.Post("/items/:id/flag-guest", moderationHandlers.FlagGuest)

		// Authenticated surface
		auth := mk.Group("", middleware.RequireAuth())
		auth.Get("/my-items", listingsHandlers.MyItems)
		auth.Post("/items", listingsHandlers.CreateListing)
		auth.Put("/items/:id", listingsHandlers.EditListing)
		auth.Delete("/items/:id", listingsHandlers.DeleteListing)
		auth.Put("/items/:id/status", listingsHandlers.TransitionStatus)
		auth.Post("/items/:id/repost", listingsHandlers.Repost)
		auth.Post("/items/:id/extend", listingsHandlers.Extend)
		auth.Get("/items/:id/events", listingsHandlers.ListingEvents)
		auth.Post("/items/:id/unflag", moderationHandlers.RequestUnflag)
		auth.Post("/items/:id/flag", moderationHandlers.Flag)
		auth.Post("/items/:id/offers", offersHandlers.Submit)
		auth.Get("/items/:id/offers", offersHandlers.ForListing)
		auth.Put("/offers/:id/accept", offersHandlers.Accept)
		auth.Put("/offers/:id/reject", offersHandlers.Reject)
		auth.Get("/offers/user", offersHandlers.UserOffers)
		auth.Post("/reviews", reviewsHandlers.Submit)
		auth.Post("/reviews/:id/respond", reviewsHandlers.Respond)
		auth.Get("/reviews/user", reviewsHandlers.UserReviews)
		auth.Post("/items/:id/contact-seller", messagesHandlers.ContactSeller)
		auth.Get("/messages", messagesHandlers.ForUser)
		auth.Put("/messages/:id/read", messagesHandlers.MarkRead)

		// Moderation surface
		mod := app.Group("/api/v1/moderation", middleware.RequireModerator())
		mod.Get("/flags", moderationHandlers.List)
		mod.Put("/flags/:id/resolve", moderationHandlers.Resolve)

		// Analytics (read-only projections)
		an := app.Group("/api/v1/analytics")
		an.Get("/marketplace", analyticsHandlers.MarketplaceStats)
		an.Get("/listings/:id", analyticsHandlers.ListingStats)
		an.Get("/sellers/me", middleware.RequireAuth(), analyticsHandlers.MySellerStats)
	}

	return app, sched, db, rdb, nil
}
