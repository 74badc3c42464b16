package messages

import (
	"bazaar-backend/internal/middleware"
	"bazaar-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *Service
}

// POST /api/v1/marketplace/items/:id/contact-seller {message, offerAmount}
func (h *Handlers) ContactSeller(c *fiber.Ctx) error {
	actor, ok := middleware.GetActor(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	listingID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid listing id format", 400, nil)
	}
	var body struct {
		Message     string   `json:"message"`
		OfferAmount *float64 `json:"offerAmount"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", 400, nil)
	}
	result, err := h.Service.ContactSeller(c.Context(), listingID, actor.UserID, body.Message, body.OfferAmount)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Message sent", result, nil)
}

// GET /api/v1/marketplace/messages?type=
func (h *Handlers) ForUser(c *fiber.Ctx) error {
	actor, ok := middleware.GetActor(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	out, err := h.Service.ForUser(c.Context(), actor.UserID, c.Query("type"))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Messages fetched", out, nil)
}

// PUT /api/v1/marketplace/messages/:id/read
func (h *Handlers) MarkRead(c *fiber.Ctx) error {
	actor, ok := middleware.GetActor(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	messageID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid message id format", 400, nil)
	}
	m, err := h.Service.MarkRead(c.Context(), messageID, actor.UserID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Message marked read", m, nil)
}
