package service

import "errors"

var (
	ErrArtisanNotFound = errors.New("artisan not found")
	ErrInvalidRating   = errors.New("rating must be between 0 and 5")
)
