package offers

import (
	"bazaar-backend/internal/domain"
	"bazaar-backend/internal/middleware"
	"bazaar-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *Service
}

func requestActor(c *fiber.Ctx) (middleware.Actor, error) {
	a, ok := middleware.GetActor(c)
	if !ok {
		return middleware.Actor{}, domain.E(domain.KindUnauthorized, "Unauthorized")
	}
	return a, nil
}

// POST /api/v1/marketplace/items/:id/offers {amount, message}
func (h *Handlers) Submit(c *fiber.Ctx) error {
	actor, err := requestActor(c)
	if err != nil {
		return response.FromError(c, err)
	}
	listingID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid listing id format", 400, nil)
	}
	var body struct {
		Amount  float64 `json:"amount"`
		Message string  `json:"message"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", 400, nil)
	}

	offer, err := h.Service.Submit(c.Context(), listingID, actor.UserID, body.Amount, body.Message)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Offer submitted", offer, nil)
}

// PUT /api/v1/marketplace/offers/:id/accept
func (h *Handlers) Accept(c *fiber.Ctx) error {
	actor, err := requestActor(c)
	if err != nil {
		return response.FromError(c, err)
	}
	offerID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid offer id format", 400, nil)
	}
	listing, err := h.Service.Accept(c.Context(), offerID, actor.UserID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Offer accepted", listing, nil)
}

// PUT /api/v1/marketplace/offers/:id/reject
func (h *Handlers) Reject(c *fiber.Ctx) error {
	actor, err := requestActor(c)
	if err != nil {
		return response.FromError(c, err)
	}
	offerID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid offer id format", 400, nil)
	}
	offer, err := h.Service.Reject(c.Context(), offerID, actor.UserID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Offer rejected", offer, nil)
}

// GET /api/v1/marketplace/items/:id/offers
func (h *Handlers) ForListing(c *fiber.Ctx) error {
	actor, err := requestActor(c)
	if err != nil {
		return response.FromError(c, err)
	}
	listingID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid listing id format", 400, nil)
	}
	out, err := h.Service.ForListing(c.Context(), listingID, actor.UserID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Offers fetched", out, nil)
}

// GET /api/v1/marketplace/offers/user?direction=given|received
func (h *Handlers) UserOffers(c *fiber.Ctx) error {
	actor, err := requestActor(c)
	if err != nil {
		return response.FromError(c, err)
	}
	out, err := h.Service.UserOffers(c.Context(), actor.UserID, c.Query("direction"))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Offers fetched", out, nil)
}
