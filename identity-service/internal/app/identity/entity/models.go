package entity

import (
	"time"
)

// Artisan - локальная read-модель мастера. Rating пишут только сага и сверка участника.
type Artisan struct {
	ID              string     `json:"id" db:"id"`
	Name            string     `json:"name" db:"name"`
	Rating          float64    `json:"rating" db:"rating"`
	RatingUpdatedAt *time.Time `json:"rating_updated_at,omitempty" db:"rating_updated_at"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
}
