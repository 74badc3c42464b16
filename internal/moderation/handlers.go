package moderation

import (
	"bazaar-backend/internal/middleware"
	"bazaar-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *Service
}

type flagBody struct {
	Reason      string `json:"reason"`
	Description string `json:"description"`
}

// POST /api/v1/marketplace/items/:id/flag — authenticated reporter.
func (h *Handlers) Flag(c *fiber.Ctx) error {
	actor, ok := middleware.GetActor(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	return h.flag(c, &actor.UserID)
}

// POST /api/v1/marketplace/items/:id/flag-guest — no authentication; the
// flag records an explicit guest marker.
func (h *Handlers) FlagGuest(c *fiber.Ctx) error {
	return h.flag(c, nil)
}

func (h *Handlers) flag(c *fiber.Ctx, reporter *uuid.UUID) error {
	listingID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid listing id format", 400, nil)
	}
	var body flagBody
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", 400, nil)
	}
	flag, err := h.Service.Flag(c.Context(), FlagInput{
		ListingID:   listingID,
		Reporter:    reporter,
		Reason:      body.Reason,
		Description: body.Description,
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Listing flagged for review", flag, nil)
}

// PUT /api/v1/moderation/flags/:id/resolve {outcome} — moderator only.
func (h *Handlers) Resolve(c *fiber.Ctx) error {
	actor, ok := middleware.GetActor(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	flagID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid flag id format", 400, nil)
	}
	var body struct {
		Outcome string `json:"outcome"`
	}
	if err := c.BodyParser(&body); err != nil || body.Outcome == "" {
		return response.Error(c, "Missing required field: outcome", 400, nil)
	}
	flag, err := h.Service.Resolve(c.Context(), flagID, actor.UserID, body.Outcome)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Flag resolved", flag, nil)
}

// POST /api/v1/marketplace/items/:id/unflag — owner-initiated re-review.
func (h *Handlers) RequestUnflag(c *fiber.Ctx) error {
	actor, ok := middleware.GetActor(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	listingID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid listing id format", 400, nil)
	}
	flag, err := h.Service.RequestUnflag(c.Context(), listingID, actor.UserID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Re-review requested", flag, nil)
}

// GET /api/v1/moderation/flags?status= — moderator only.
func (h *Handlers) List(c *fiber.Ctx) error {
	out, err := h.Service.List(c.Context(), c.Query("status"))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Flags fetched", out, nil)
}
