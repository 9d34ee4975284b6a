package entity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	ErrValidation             = errors.New("validation failed")
	ErrIllegalStateTransition = errors.New("illegal state transition")
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

type IllegalStateTransitionError struct {
	From   ReviewStatus
	Action string
}

func (e *IllegalStateTransitionError) Error() string {
	return fmt.Sprintf("illegal state transition: cannot %s a review in status %s", e.Action, e.From)
}

func (e *IllegalStateTransitionError) Unwrap() error {
	return ErrIllegalStateTransition
}

var validate = func() func(interface{}) error {
	v := validator.New()
	return func(s interface{}) error {
		err := v.Struct(s)
		if err == nil {
			return nil
		}

		var fieldErrors validator.ValidationErrors
		if errors.As(err, &fieldErrors) && len(fieldErrors) > 0 {
			fe := fieldErrors[0]
			return &ValidationError{Field: fieldPath(fe), Reason: reason(fe)}
		}
		return &ValidationError{Field: "review", Reason: err.Error()}
	}
}()

// fieldPath убирает имя корневой структуры: "NewReviewParams.ArtisanRating.Value" -> "ArtisanRating.Value"
func fieldPath(fe validator.FieldError) string {
	ns := fe.StructNamespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind().String() == "string" {
			return "must be at most " + fe.Param() + " characters"
		}
		return "must be at most " + fe.Param()
	case "url":
		return "must be a valid URL"
	default:
		return "is " + fe.Tag()
	}
}
