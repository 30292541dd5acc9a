package services

import (
	"context"
	"errors"
	"log"
	"mime/multipart"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/yuchen-w/CampusMarketBack/internal/models"
	"github.com/yuchen-w/CampusMarketBack/internal/repository"
)

var (
	ErrListingNotFound    = errors.New("listing not found")
	ErrStorageUnavailable = errors.New("storage service is not configured")
)

type listingRepo interface {
	Create(ctx context.Context, input repository.CreateListingInput) (*models.Listing, error)
	GetByID(ctx context.Context, listingID int64) (*models.Listing, error)
	List(ctx context.Context) ([]models.Listing, error)
	ListByUserID(ctx context.Context, userID int64) ([]models.Listing, error)
	Update(ctx context.Context, listingID int64, input repository.UpdateListingInput) (*models.Listing, error)
	Delete(ctx context.Context, listingID int64) error
	AddImage(ctx context.Context, listingID int64, imageURL string, displayOrder int) (*models.ListingImage, error)
	ListImages(ctx context.Context, listingID int64) ([]models.ListingImage, error)
}

type ListingService struct {
	repo    listingRepo
	storage StorageService
}

func NewListingService(repo listingRepo, storage StorageService) *ListingService {
	return &ListingService{repo: repo, storage: storage}
}

func (s *ListingService) CreateListing(
	ctx context.Context,
	actorID int64,
	title string,
	description string,
	price float64,
	category string,
) (*models.Listing, error) {
	title = strings.TrimSpace(title)
	if title == "" || price < 0 {
		return nil, ErrInvalidInput
	}

	return s.repo.Create(ctx, repository.CreateListingInput{
		UserID:      actorID,
		Title:       title,
		Description: strings.TrimSpace(description),
		Price:       price,
		Category:    strings.TrimSpace(category),
	})
}

func (s *ListingService) GetListing(ctx context.Context, listingID int64) (*models.Listing, error) {
	if listingID <= 0 {
		return nil, ErrInvalidInput
	}

	listing, err := s.repo.GetByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrListingNotFound
		}
		return nil, err
	}

	images, err := s.repo.ListImages(ctx, listingID)
	if err != nil {
		return nil, err
	}
	listing.Images = images

	return listing, nil
}

func (s *ListingService) ListListings(ctx context.Context) ([]models.Listing, error) {
	return s.repo.List(ctx)
}

func (s *ListingService) ListOwnListings(ctx context.Context, actorID int64) ([]models.Listing, error) {
	return s.repo.ListByUserID(ctx, actorID)
}

func (s *ListingService) UpdateListing(
	ctx context.Context,
	actorID int64,
	listingID int64,
	input repository.UpdateListingInput,
) (*models.Listing, error) {
	listing, err := s.ownedListing(ctx, actorID, listingID)
	if err != nil {
		return nil, err
	}

	if input.Title != nil && strings.TrimSpace(*input.Title) == "" {
		return nil, ErrInvalidInput
	}
	if input.Price != nil && *input.Price < 0 {
		return nil, ErrInvalidInput
	}
	if input.Status != nil &&
		*input.Status != models.ListingStatusActive &&
		*input.Status != models.ListingStatusSold {
		return nil, ErrInvalidInput
	}

	return s.repo.Update(ctx, listing.ID, input)
}

func (s *ListingService) DeleteListing(ctx context.Context, actorID int64, listingID int64) error {
	listing, err := s.ownedListing(ctx, actorID, listingID)
	if err != nil {
		return err
	}

	if s.storage != nil {
		images, err := s.repo.ListImages(ctx, listing.ID)
		if err != nil {
			return err
		}
		for _, image := range images {
			if err := s.storage.DeleteFile(ctx, image.ImageURL); err != nil {
				log.Printf("delete listing image %s: %v", image.ImageURL, err)
			}
		}
	}

	return s.repo.Delete(ctx, listing.ID)
}

func (s *ListingService) UploadListingImage(
	ctx context.Context,
	actorID int64,
	listingID int64,
	file multipart.File,
	filename string,
) (*models.ListingImage, error) {
	if s.storage == nil {
		return nil, ErrStorageUnavailable
	}

	listing, err := s.ownedListing(ctx, actorID, listingID)
	if err != nil {
		return nil, err
	}

	objectName := uuid.NewString() + strings.ToLower(filepath.Ext(filename))
	folder := "listings/" + strconv.FormatInt(listing.ID, 10)

	imageURL, err := s.storage.UploadFile(ctx, file, objectName, folder)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.ListImages(ctx, listing.ID)
	if err != nil {
		return nil, err
	}

	return s.repo.AddImage(ctx, listing.ID, imageURL, len(existing))
}

func (s *ListingService) ownedListing(
	ctx context.Context,
	actorID int64,
	listingID int64,
) (*models.Listing, error) {
	if listingID <= 0 {
		return nil, ErrInvalidInput
	}

	listing, err := s.repo.GetByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrListingNotFound
		}
		return nil, err
	}
	if listing.UserID != actorID {
		return nil, ErrForbidden
	}

	return listing, nil
}
