package models

import "time"

const (
	ListingStatusActive = "active"
	ListingStatusSold   = "sold"
)

type Listing struct {
	ID          int64          `json:"id"`
	UserID      int64          `json:"user_id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Price       float64        `json:"price"`
	Category    string         `json:"category"`
	Status      string         `json:"status"`
	Images      []ListingImage `json:"images,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

type ListingImage struct {
	ID           int64  `json:"id"`
	ListingID    int64  `json:"listing_id"`
	ImageURL     string `json:"image_url"`
	DisplayOrder int    `json:"display_order"`
}
