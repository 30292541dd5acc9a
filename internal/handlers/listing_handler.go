package handlers

import (
	"context"
	"errors"
	"mime/multipart"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/yuchen-w/CampusMarketBack/internal/models"
	"github.com/yuchen-w/CampusMarketBack/internal/repository"
	"github.com/yuchen-w/CampusMarketBack/internal/services"
)

type listingApplicationService interface {
	CreateListing(ctx context.Context, actorID int64, title, description string, price float64, category string) (*models.Listing, error)
	GetListing(ctx context.Context, listingID int64) (*models.Listing, error)
	ListListings(ctx context.Context) ([]models.Listing, error)
	ListOwnListings(ctx context.Context, actorID int64) ([]models.Listing, error)
	UpdateListing(ctx context.Context, actorID int64, listingID int64, input repository.UpdateListingInput) (*models.Listing, error)
	DeleteListing(ctx context.Context, actorID int64, listingID int64) error
	UploadListingImage(ctx context.Context, actorID int64, listingID int64, file multipart.File, filename string) (*models.ListingImage, error)
}

type ListingHandler struct {
	service listingApplicationService
}

func NewListingHandler(service listingApplicationService) *ListingHandler {
	return &ListingHandler{service: service}
}

type createListingRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Category    string  `json:"category"`
}

type updateListingRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price"`
	Category    *string  `json:"category"`
	Status      *string  `json:"status"`
}

func (h *ListingHandler) ListListings(c *fiber.Ctx) error {
	listings, err := h.service.ListListings(c.Context())
	if err != nil {
		return mapListingError(c, err)
	}
	return c.JSON(fiber.Map{"listings": listings})
}

func (h *ListingHandler) GetListing(c *fiber.Ctx) error {
	listingID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || listingID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid listing id"})
	}

	listing, err := h.service.GetListing(c.Context(), listingID)
	if err != nil {
		return mapListingError(c, err)
	}
	return c.JSON(fiber.Map{"listing": listing})
}

func (h *ListingHandler) CreateListing(c *fiber.Ctx) error {
	userID, err := requestUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req createListingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	listing, err := h.service.CreateListing(
		c.Context(), userID, req.Title, req.Description, req.Price, req.Category,
	)
	if err != nil {
		return mapListingError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"listing": listing})
}

func (h *ListingHandler) ListOwnListings(c *fiber.Ctx) error {
	userID, err := requestUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	listings, err := h.service.ListOwnListings(c.Context(), userID)
	if err != nil {
		return mapListingError(c, err)
	}
	return c.JSON(fiber.Map{"listings": listings})
}

func (h *ListingHandler) UpdateListing(c *fiber.Ctx) error {
	userID, err := requestUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	listingID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || listingID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid listing id"})
	}

	var req updateListingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	listing, err := h.service.UpdateListing(c.Context(), userID, listingID, repository.UpdateListingInput{
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Category:    req.Category,
		Status:      req.Status,
	})
	if err != nil {
		return mapListingError(c, err)
	}

	return c.JSON(fiber.Map{"listing": listing})
}

func (h *ListingHandler) DeleteListing(c *fiber.Ctx) error {
	userID, err := requestUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	listingID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || listingID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid listing id"})
	}

	if err := h.service.DeleteListing(c.Context(), userID, listingID); err != nil {
		return mapListingError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *ListingHandler) UploadListingImage(c *fiber.Ctx) error {
	userID, err := requestUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	listingID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || listingID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid listing id"})
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Image file is required"})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Failed to read image file"})
	}
	defer file.Close()

	image, err := h.service.UploadListingImage(c.Context(), userID, listingID, file, fileHeader.Filename)
	if err != nil {
		return mapListingError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"image": image})
}

func mapListingError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrListingNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Listing not found"})
	case errors.Is(err, services.ErrStorageUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Image storage is not configured"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process listing request"})
	}
}
