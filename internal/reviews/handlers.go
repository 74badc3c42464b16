package reviews

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

// POST /api/v1/marketplace/reviews {listing_id, rating, title, comment}
func (h *Handlers) Submit(c *fiber.Ctx) error {
	actor, err := requestActor(c)
	if err != nil {
		return response.FromError(c, err)
	}
	var body struct {
		ListingID string `json:"listing_id"`
		Rating    int    `json:"rating"`
		Title     string `json:"title"`
		Comment   string `json:"comment"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", 400, nil)
	}
	listingID, err := uuid.Parse(body.ListingID)
	if err != nil {
		return response.Error(c, "Invalid listing_id format", 400, nil)
	}

	review, err := h.Service.Submit(c.Context(), actor.UserID, SubmitInput{
		ListingID: listingID,
		Rating:    body.Rating,
		Title:     body.Title,
		Comment:   body.Comment,
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Review submitted", review, nil)
}

// POST /api/v1/marketplace/reviews/:id/respond {response}
func (h *Handlers) Respond(c *fiber.Ctx) error {
	actor, err := requestActor(c)
	if err != nil {
		return response.FromError(c, err)
	}
	reviewID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid review id format", 400, nil)
	}
	var body struct {
		Response string `json:"response"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", 400, nil)
	}
	review, err := h.Service.Respond(c.Context(), reviewID, actor.UserID, body.Response)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Response saved", review, nil)
}

// GET /api/v1/marketplace/items/:id/reviews
func (h *Handlers) ForListing(c *fiber.Ctx) error {
	listingID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid listing id format", 400, nil)
	}
	out, err := h.Service.ForListing(c.Context(), listingID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Reviews fetched", out, nil)
}

// GET /api/v1/marketplace/reviews/user?direction=given|received
func (h *Handlers) UserReviews(c *fiber.Ctx) error {
	actor, err := requestActor(c)
	if err != nil {
		return response.FromError(c, err)
	}
	out, err := h.Service.UserReviews(c.Context(), actor.UserID, c.Query("direction"))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Reviews fetched", out, nil)
}
