package service

import "errors"

var (
	ErrOfferingNotFound = errors.New("offering not found")
	ErrInvalidRating    = errors.New("rating must be between 0 and 5")
)
