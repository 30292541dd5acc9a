package handlers

import (
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/yuchen-w/CampusMarketBack/internal/models"
	"github.com/yuchen-w/CampusMarketBack/internal/repository"
	"github.com/yuchen-w/CampusMarketBack/internal/services"
)

type stubListingService struct {
	createResult *models.Listing
	createErr    error
	getResult    *models.Listing
	getErr       error
	listResult   []models.Listing
	listErr      error
	updateResult *models.Listing
	updateErr    error
	deleteErr    error
	uploadResult *models.ListingImage
	uploadErr    error

	lastActorID   int64
	lastListingID int64
	lastTitle     string
	lastPrice     float64
	lastUpdate    repository.UpdateListingInput
}

func (s *stubListingService) CreateListing(_ context.Context, actorID int64, title, _ string, price float64, _ string) (*models.Listing, error) {
	s.lastActorID = actorID
	s.lastTitle = title
	s.lastPrice = price
	return s.createResult, s.createErr
}

func (s *stubListingService) GetListing(_ context.Context, listingID int64) (*models.Listing, error) {
	s.lastListingID = listingID
	return s.getResult, s.getErr
}

func (s *stubListingService) ListListings(_ context.Context) ([]models.Listing, error) {
	return s.listResult, s.listErr
}

func (s *stubListingService) ListOwnListings(_ context.Context, actorID int64) ([]models.Listing, error) {
	s.lastActorID = actorID
	return s.listResult, s.listErr
}

func (s *stubListingService) UpdateListing(_ context.Context, actorID int64, listingID int64, input repository.UpdateListingInput) (*models.Listing, error) {
	s.lastActorID = actorID
	s.lastListingID = listingID
	s.lastUpdate = input
	return s.updateResult, s.updateErr
}

func (s *stubListingService) DeleteListing(_ context.Context, actorID int64, listingID int64) error {
	s.lastActorID = actorID
	s.lastListingID = listingID
	return s.deleteErr
}

func (s *stubListingService) UploadListingImage(_ context.Context, actorID int64, listingID int64, _ multipart.File, _ string) (*models.ListingImage, error) {
	s.lastActorID = actorID
	s.lastListingID = listingID
	return s.uploadResult, s.uploadErr
}

func newListingTestApp(service *stubListingService) *fiber.App {
	handler := NewListingHandler(service)

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", "42")
		return c.Next()
	})
	app.Get("/api/v1/listings", handler.ListListings)
	app.Post("/api/v1/listings", handler.CreateListing)
	app.Get("/api/v1/listings/user", handler.ListOwnListings)
	app.Get("/api/v1/listings/:id", handler.GetListing)
	app.Patch("/api/v1/listings/:id", handler.UpdateListing)
	app.Delete("/api/v1/listings/:id", handler.DeleteListing)
	app.Post("/api/v1/listings/:id/images", handler.UploadListingImage)
	return app
}

func TestCreateListingReturnsCreated(t *testing.T) {
	service := &stubListingService{
		createResult: &models.Listing{ID: 3, UserID: 42, Title: "New Camera", Price: 750, Status: models.ListingStatusActive},
	}
	app := newListingTestApp(service)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/listings",
		strings.NewReader(`{"title":"New Camera","price":750,"category":"Electronics"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if service.lastActorID != 42 || service.lastTitle != "New Camera" || service.lastPrice != 750 {
		t.Fatalf("unexpected create args: %d %q %v", service.lastActorID, service.lastTitle, service.lastPrice)
	}
}

func TestGetListingIsPublic(t *testing.T) {
	service := &stubListingService{
		getResult: &models.Listing{ID: 5, UserID: 7, Title: "Desk Lamp", CreatedAt: time.Now().UTC()},
	}
	handler := NewListingHandler(service)

	// No auth middleware on this app at all.
	app := fiber.New()
	app.Get("/api/v1/listings/:id", handler.GetListing)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/listings/5", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Listing models.Listing `json:"listing"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if body.Listing.Title != "Desk Lamp" {
		t.Fatalf("unexpected listing: %+v", body.Listing)
	}
}

func TestUpdateListingByNonOwnerIsForbidden(t *testing.T) {
	service := &stubListingService{updateErr: services.ErrForbidden}
	app := newListingTestApp(service)

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/listings/5",
		strings.NewReader(`{"title":"Attempted Update"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestDeleteListingReturnsNoContent(t *testing.T) {
	service := &stubListingService{}
	app := newListingTestApp(service)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/listings/5", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if service.lastListingID != 5 {
		t.Fatalf("expected listing 5, got %d", service.lastListingID)
	}
}

func TestUploadListingImageRequiresFile(t *testing.T) {
	app := newListingTestApp(&stubListingService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/listings/5/images", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestUploadListingImageWithoutStorage(t *testing.T) {
	service := &stubListingService{uploadErr: services.ErrStorageUnavailable}
	app := newListingTestApp(service)

	var buf strings.Builder
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("image", "photo.jpg")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := part.Write([]byte("fake image bytes")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/listings/5/images", strings.NewReader(buf.String()))
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}
