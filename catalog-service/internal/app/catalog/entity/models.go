package entity

import (
	"time"
)

// Offering - услуга мастера в каталоге; Rating пишут сага и сверка участника
type Offering struct {
	ID              string     `json:"id" gorm:"primaryKey"`
	ArtisanID       string     `json:"artisan_id"`
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	Price           float64    `json:"price"`
	Rating          float64    `json:"rating"`
	RatingUpdatedAt *time.Time `json:"rating_updated_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func (Offering) TableName() string {
	return "offerings"
}
