package repository

import (
	"context"

	"github.com/yuchen-w/CampusMarketBack/internal/models"
)

type ListingRepository struct {
	db DBTX
}

func NewListingRepository(db DBTX) *ListingRepository {
	return &ListingRepository{db: db}
}

type CreateListingInput struct {
	UserID      int64
	Title       string
	Description string
	Price       float64
	Category    string
}

type UpdateListingInput struct {
	Title       *string
	Description *string
	Price       *float64
	Category    *string
	Status      *string
}

func (r *ListingRepository) Create(
	ctx context.Context,
	input CreateListingInput,
) (*models.Listing, error) {
	query := `
		INSERT INTO listings (user_id, title, description, price, category)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, user_id, title, description, price, category, status, created_at, updated_at
	`

	var listing models.Listing
	err := r.db.QueryRow(
		ctx, query,
		input.UserID, input.Title, input.Description, input.Price, input.Category,
	).Scan(
		&listing.ID,
		&listing.UserID,
		&listing.Title,
		&listing.Description,
		&listing.Price,
		&listing.Category,
		&listing.Status,
		&listing.CreatedAt,
		&listing.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &listing, nil
}

func (r *ListingRepository) GetByID(ctx context.Context, listingID int64) (*models.Listing, error) {
	query := `
		SELECT id, user_id, title, description, price, category, status, created_at, updated_at
		FROM listings
		WHERE id = $1
	`

	var listing models.Listing
	err := r.db.QueryRow(ctx, query, listingID).Scan(
		&listing.ID,
		&listing.UserID,
		&listing.Title,
		&listing.Description,
		&listing.Price,
		&listing.Category,
		&listing.Status,
		&listing.CreatedAt,
		&listing.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &listing, nil
}

func (r *ListingRepository) List(ctx context.Context) ([]models.Listing, error) {
	return r.list(ctx, `
		SELECT id, user_id, title, description, price, category, status, created_at, updated_at
		FROM listings
		ORDER BY created_at DESC, id DESC
	`)
}

func (r *ListingRepository) ListByUserID(ctx context.Context, userID int64) ([]models.Listing, error) {
	return r.list(ctx, `
		SELECT id, user_id, title, description, price, category, status, created_at, updated_at
		FROM listings
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`, userID)
}

func (r *ListingRepository) list(ctx context.Context, query string, args ...any) ([]models.Listing, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	listings := make([]models.Listing, 0)
	for rows.Next() {
		var listing models.Listing
		if err := rows.Scan(
			&listing.ID,
			&listing.UserID,
			&listing.Title,
			&listing.Description,
			&listing.Price,
			&listing.Category,
			&listing.Status,
			&listing.CreatedAt,
			&listing.UpdatedAt,
		); err != nil {
			return nil, err
		}
		listings = append(listings, listing)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return listings, nil
}

func (r *ListingRepository) Update(
	ctx context.Context,
	listingID int64,
	input UpdateListingInput,
) (*models.Listing, error) {
	query := `
		UPDATE listings
		SET title = COALESCE($2, title),
		    description = COALESCE($3, description),
		    price = COALESCE($4, price),
		    category = COALESCE($5, category),
		    status = COALESCE($6, status),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING id, user_id, title, description, price, category, status, created_at, updated_at
	`

	var listing models.Listing
	err := r.db.QueryRow(
		ctx, query,
		listingID, input.Title, input.Description, input.Price, input.Category, input.Status,
	).Scan(
		&listing.ID,
		&listing.UserID,
		&listing.Title,
		&listing.Description,
		&listing.Price,
		&listing.Category,
		&listing.Status,
		&listing.CreatedAt,
		&listing.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &listing, nil
}

func (r *ListingRepository) Delete(ctx context.Context, listingID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM listings WHERE id = $1`, listingID)
	return err
}

func (r *ListingRepository) AddImage(
	ctx context.Context,
	listingID int64,
	imageURL string,
	displayOrder int,
) (*models.ListingImage, error) {
	query := `
		INSERT INTO listing_images (listing_id, image_url, display_order)
		VALUES ($1, $2, $3)
		RETURNING id, listing_id, image_url, display_order
	`

	var image models.ListingImage
	err := r.db.QueryRow(ctx, query, listingID, imageURL, displayOrder).Scan(
		&image.ID,
		&image.ListingID,
		&image.ImageURL,
		&image.DisplayOrder,
	)
	if err != nil {
		return nil, err
	}

	return &image, nil
}

func (r *ListingRepository) ListImages(ctx context.Context, listingID int64) ([]models.ListingImage, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, listing_id, image_url, display_order
		FROM listing_images
		WHERE listing_id = $1
		ORDER BY display_order, id
	`, listingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	images := make([]models.ListingImage, 0)
	for rows.Next() {
		var image models.ListingImage
		if err := rows.Scan(&image.ID, &image.ListingID, &image.ImageURL, &image.DisplayOrder); err != nil {
			return nil, err
		}
		images = append(images, image)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return images, nil
}
