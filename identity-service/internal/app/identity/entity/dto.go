package entity

// UpdateRatingRequest - запись рейтинга от координатора саги
type UpdateRatingRequest struct {
	Rating *float64 `json:"rating" validate:"required,min=0,max=5"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
