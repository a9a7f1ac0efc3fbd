package dto

import (
	"encoding/json"
	"time"

	"github.com/secondchance/secondchance/internal/model"
)

// CreateItemRequest lists the fields a client may set on a new item.
// Anything else in the payload is ignored. age_days accepts a number or a
// numeric string because form-encoded clients send strings.
type CreateItemRequest struct {
	Name        string      `json:"name"`
	Category    string      `json:"category"`
	Condition   string      `json:"condition"`
	PostedBy    string      `json:"posted_by"`
	Zipcode     string      `json:"zipcode"`
	Description string      `json:"description"`
	Image       string      `json:"image"`
	AgeDays     json.Number `json:"age_days"`
}

// UpdateItemRequest lists the mutable item fields.
type UpdateItemRequest struct {
	Category    *string      `json:"category"`
	Condition   *string      `json:"condition"`
	Description *string      `json:"description"`
	AgeDays     *json.Number `json:"age_days"`
}

// ItemResponse represents an item in API responses.
type ItemResponse struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Category    string     `json:"category"`
	Condition   string     `json:"condition"`
	PostedBy    string     `json:"posted_by,omitempty"`
	Zipcode     string     `json:"zipcode,omitempty"`
	Description string     `json:"description"`
	Image       string     `json:"image,omitempty"`
	AgeDays     int        `json:"age_days"`
	AgeYears    float64    `json:"age_years"`
	DateAdded   int64      `json:"dateAdded"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

// UpdateItemResponse reports whether the update was written.
type UpdateItemResponse struct {
	Uploaded string `json:"uploaded"`
}

// DeleteItemResponse confirms a deletion.
type DeleteItemResponse struct {
	Deleted string `json:"deleted"`
}

// ToItemResponse converts an Item model to ItemResponse DTO.
func ToItemResponse(item *model.Item) *ItemResponse {
	return &ItemResponse{
		ID:          item.ID,
		Name:        item.Name,
		Category:    item.Category,
		Condition:   item.Condition,
		PostedBy:    item.PostedBy,
		Zipcode:     item.Zipcode,
		Description: item.Description,
		Image:       item.Image,
		AgeDays:     item.AgeDays,
		AgeYears:    item.AgeYears,
		DateAdded:   item.DateAdded,
		UpdatedAt:   item.UpdatedAt,
	}
}

// ToItemListResponse converts items to a JSON array (never null).
func ToItemListResponse(items []*model.Item) []ItemResponse {
	out := make([]ItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, *ToItemResponse(item))
	}
	return out
}
