package rating

import (
	"context"
	"errors"
	"fmt"
	"math"
)

type SubjectKind string

const (
	SubjectArtisan SubjectKind = "artisan"
	SubjectService SubjectKind = "service"
)

// StatusPublished - единственный статус отзыва, который учитывается в рейтинге
const StatusPublished = "published"

var ErrUnknownSubjectKind = errors.New("unknown rating subject kind")

// PublishedReview - проекция отзыва, нужная для расчета рейтинга
type PublishedReview struct {
	ReviewID      string `json:"review_id"`
	ArtisanID     string `json:"artisan_id"`
	ServiceID     string `json:"service_id"`
	ArtisanRating int    `json:"artisan_rating"`
	ServiceRating int    `json:"service_rating"`
	Status        string `json:"status"`
}

// PublishedReviewSource отдает опубликованные отзывы по субъекту рейтинга
type PublishedReviewSource interface {
	FindPublishedBySubject(ctx context.Context, kind SubjectKind, subjectID string) ([]PublishedReview, error)
}

// Calculator считает средний рейтинг субъекта по опубликованным отзывам.
// Результат округляется до одного знака; без отзывов рейтинг равен 0.
type Calculator struct {
	kind   SubjectKind
	source PublishedReviewSource
}

func NewCalculator(kind SubjectKind, source PublishedReviewSource) *Calculator {
	return &Calculator{kind: kind, source: source}
}

func (c *Calculator) Kind() SubjectKind {
	return c.kind
}

func (c *Calculator) Average(ctx context.Context, subjectID string) (float64, error) {
	reviews, err := c.source.FindPublishedBySubject(ctx, c.kind, subjectID)
	if err != nil {
		return 0, fmt.Errorf("failed to load published reviews: %w", err)
	}

	return c.mean(subjectID, reviews)
}

// AverageIncluding считает рейтинг так, как будто candidate уже опубликован.
// Прежняя опубликованная версия того же отзыва заменяется кандидатом.
func (c *Calculator) AverageIncluding(ctx context.Context, subjectID string, candidate PublishedReview) (float64, error) {
	reviews, err := c.source.FindPublishedBySubject(ctx, c.kind, subjectID)
	if err != nil {
		return 0, fmt.Errorf("failed to load published reviews: %w", err)
	}

	merged := make([]PublishedReview, 0, len(reviews)+1)
	for _, r := range reviews {
		if r.ReviewID != candidate.ReviewID {
			merged = append(merged, r)
		}
	}
	candidate.Status = StatusPublished
	merged = append(merged, candidate)

	return c.mean(subjectID, merged)
}

func (c *Calculator) mean(subjectID string, reviews []PublishedReview) (float64, error) {
	var sum, count int
	for _, r := range reviews {
		if r.Status != StatusPublished {
			continue
		}

		switch c.kind {
		case SubjectArtisan:
			if r.ArtisanID != subjectID {
				continue
			}
			sum += r.ArtisanRating
		case SubjectService:
			if r.ServiceID != subjectID {
				continue
			}
			sum += r.ServiceRating
		default:
			return 0, fmt.Errorf("%w: %s", ErrUnknownSubjectKind, c.kind)
		}
		count++
	}

	if count == 0 {
		return 0, nil
	}

	return Round(float64(sum) / float64(count)), nil
}

// Round приводит значение к точности рейтинга
func Round(value float64) float64 {
	return math.Round(value*10) / 10
}
