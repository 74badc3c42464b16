package analytics

import (
	"bazaar-backend/internal/middleware"
	"bazaar-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *Service
}

// GET /api/v1/analytics/listings/:id
func (h *Handlers) ListingStats(c *fiber.Ctx) error {
	listingID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid listing id format", 400, nil)
	}
	stats, err := h.Service.Listing(c.Context(), listingID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Listing stats fetched", stats, nil)
}

// GET /api/v1/analytics/marketplace
func (h *Handlers) MarketplaceStats(c *fiber.Ctx) error {
	stats, err := h.Service.Marketplace(c.Context())
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Marketplace stats fetched", stats, nil)
}

// GET /api/v1/analytics/sellers/me
func (h *Handlers) MySellerStats(c *fiber.Ctx) error {
	actor, ok := middleware.GetActor(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	stats, err := h.Service.Seller(c.Context(), actor.UserID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Seller stats fetched", stats, nil)
}
