package service

import "errors"

var (
	// Ошибки бизнес-логики для обработки в handlers
	ErrReviewNotFound    = errors.New("review not found")
	ErrUnauthorized      = errors.New("unauthorized access to review")
	ErrReferenceNotFound = errors.New("referenced entity not found")
	ErrSagaInProgress    = errors.New("saga already running for review")
	ErrNothingToUpdate   = errors.New("no fields to update")
	ErrShuttingDown      = errors.New("review service is shutting down")

	// Ошибки попытки саги; до внешнего вызывающего не доходят, только в лог
	ErrParticipantFailure = errors.New("participant failure")
	ErrSagaTimeout        = errors.New("saga timeout")
	ErrPersistence        = errors.New("persistence error")
)
