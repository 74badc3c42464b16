package listings

import (
	"strconv"

	"bazaar-backend/internal/domain"
	"bazaar-backend/internal/middleware"
	"bazaar-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *Service
}

func requestActor(c *fiber.Ctx) (Actor, error) {
	a, ok := middleware.GetActor(c)
	if !ok {
		return Actor{}, domain.E(domain.KindUnauthorized, "Unauthorized")
	}
	return Actor{ID: a.UserID, Moderator: a.Moderator()}, nil
}

func paramListingID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, domain.E(domain.KindValidation, "Invalid listing id format")
	}
	return id, nil
}

// POST /api/v1/marketplace/items
func (h *Handlers) CreateListing(c *fiber.Ctx) error {
	actor, err := requestActor(c)
	if err != nil {
		return response.FromError(c, err)
	}
	var body struct {
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Category    string   `json:"category"`
		Condition   string   `json:"condition"`
		Price       float64  `json:"price"`
		Images      []string `json:"images"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", 400, nil)
	}

	listing, err := h.Service.Create(c.Context(), actor.ID, CreateInput{
		Title:       body.Title,
		Description: body.Description,
		Category:    body.Category,
		Condition:   body.Condition,
		Price:       body.Price,
		Images:      body.Images,
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Listing created successfully", listing, nil)
}

// GET /api/v1/marketplace/public
func (h *Handlers) BrowsePublic(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	minPrice, _ := strconv.ParseFloat(c.Query("min_price", "0"), 64)
	maxPrice, _ := strconv.ParseFloat(c.Query("max_price", "0"), 64)

	items, total, err := h.Service.BrowsePublic(c.Context(), BrowseQuery{
		Category:  c.Query("category"),
		Condition: c.Query("condition"),
		MinPrice:  minPrice,
		MaxPrice:  maxPrice,
		Search:    c.Query("search"),
		Page:      page,
		Limit:     limit,
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Listings fetched successfully", items, fiber.Map{
		"page":  page,
		"limit": limit,
		"total": total,
	})
}

// GET /api/v1/marketplace/items/:id — records a best-effort view for non-owners.
func (h *Handlers) GetListing(c *fiber.Ctx) error {
	listingID, err := paramListingID(c)
	if err != nil {
		return response.FromError(c, err)
	}
	listing, err := h.Service.Get(c.Context(), listingID)
	if err != nil {
		return response.FromError(c, err)
	}
	if a, ok := middleware.GetActor(c); !ok || a.UserID != listing.SellerID {
		h.Service.RecordView(c.Context(), listingID)
	}
	return response.Success(c, "Listing fetched successfully", listing, nil)
}

// GET /api/v1/marketplace/my-items?status=
func (h *Handlers) MyItems(c *fiber.Ctx) error {
	actor, err := requestActor(c)
	if err != nil {
		return response.FromError(c, err)
	}
	items, err := h.Service.MyItems(c.Context(), actor.ID, c.Query("status"))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Your listings fetched successfully", items, nil)
}

// PUT /api/v1/marketplace/items/:id
func (h *Handlers) EditListing(c *fiber.Ctx) error {
	actor, err := requestActor(c)
	if err != nil {
		return response.FromError(c, err)
	}
	listingID, err := paramListingID(c)
	if err != nil {
		return response.FromError(c, err)
	}
	var body struct {
		Title       *string  `json:"title"`
		Description *string  `json:"description"`
		Category    *string  `json:"category"`
		Condition   *string  `json:"condition"`
		Price       *float64 `json:"price"`
		Images      []string `json:"images"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", 400, nil)
	}
	listing, err := h.Service.Edit(c.Context(), listingID, actor, EditInput{
		Title:       body.Title,
		Description: body.Description,
		Category:    body.Category,
		Condition:   body.Condition,
		Price:       body.Price,
		Images:      body.Images,
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Listing updated successfully", listing, nil)
}

// PUT /api/v1/marketplace/items/:id/status {status}
func (h *Handlers) TransitionStatus(c *fiber.Ctx) error {
	actor, err := requestActor(c)
	if err != nil {
		return response.FromError(c, err)
	}
	listingID, err := paramListingID(c)
	if err != nil {
		return response.FromError(c, err)
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := c.BodyParser(&body); err != nil || body.Status == "" {
		return response.Error(c, "Missing required field: status", 400, nil)
	}
	listing, err := h.Service.TransitionStatus(c.Context(), listingID, actor, domain.ListingStatus(body.Status))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Listing status updated", listing, nil)
}

// POST /api/v1/marketplace/items/:id/repost
func (h *Handlers) Repost(c *fiber.Ctx) error {
	actor, err := requestActor(c)
	if err != nil {
		return response.FromError(c, err)
	}
	listingID, err := paramListingID(c)
	if err != nil {
		return response.FromError(c, err)
	}
	listing, err := h.Service.Repost(c.Context(), listingID, actor)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Listing reposted", listing, nil)
}

// POST /api/v1/marketplace/items/:id/extend {days}
func (h *Handlers) Extend(c *fiber.Ctx) error {
	actor, err := requestActor(c)
	if err != nil {
		return response.FromError(c, err)
	}
	listingID, err := paramListingID(c)
	if err != nil {
		return response.FromError(c, err)
	}
	var body struct {
		Days int `json:"days"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Missing required field: days", 400, nil)
	}
	listing, err := h.Service.Extend(c.Context(), listingID, actor, body.Days)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Listing extended", listing, nil)
}

// DELETE /api/v1/marketplace/items/:id
func (h *Handlers) DeleteListing(c *fiber.Ctx) error {
	actor, err := requestActor(c)
	if err != nil {
		return response.FromError(c, err)
	}
	listingID, err := paramListingID(c)
	if err != nil {
		return response.FromError(c, err)
	}
	if err := h.Service.Delete(c.Context(), listingID, actor); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Listing deleted", fiber.Map{"listing_id": listingID}, nil)
}

// GET /api/v1/marketplace/items/:id/events
func (h *Handlers) ListingEvents(c *fiber.Ctx) error {
	if _, err := requestActor(c); err != nil {
		return response.FromError(c, err)
	}
	listingID, err := paramListingID(c)
	if err != nil {
		return response.FromError(c, err)
	}
	events, err := h.Service.Events(c.Context(), listingID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Listing events fetched", events, nil)
}
