package model

import (
	"math"
	"time"
)

// daysPerYear is the divisor used to derive age_years from age_days.
const daysPerYear = 365

// Item represents a listing in the marketplace.
//
// ID is the public, sequential identifier assigned by the listing service.
// It is distinct from the store-internal _id.
type Item struct {
	ID          string     `bson:"id" json:"id"`
	Name        string     `bson:"name" json:"name"`
	Category    string     `bson:"category" json:"category"`
	Condition   string     `bson:"condition" json:"condition"`
	PostedBy    string     `bson:"posted_by,omitempty" json:"posted_by,omitempty"`
	Zipcode     string     `bson:"zipcode,omitempty" json:"zipcode,omitempty"`
	Description string     `bson:"description" json:"description"`
	Image       string     `bson:"image,omitempty" json:"image,omitempty"`
	AgeDays     int        `bson:"age_days" json:"age_days"`
	AgeYears    float64    `bson:"age_years" json:"age_years"`
	DateAdded   int64      `bson:"dateAdded" json:"dateAdded"`
	UpdatedAt   *time.Time `bson:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}

// AgeYears derives the age in years from an age in days,
// rounded to one decimal place.
func AgeYears(ageDays int) float64 {
	return math.Round(float64(ageDays)/daysPerYear*10) / 10
}

// SetAgeDays updates age_days and keeps age_years consistent with it.
func (i *Item) SetAgeDays(days int) {
	i.AgeDays = days
	i.AgeYears = AgeYears(days)
}

// DateAddedTime returns DateAdded as a time.Time.
func (i *Item) DateAddedTime() time.Time {
	return time.Unix(i.DateAdded, 0).UTC()
}
