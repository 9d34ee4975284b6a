package entity

import (
	"time"

	"artisanmarket/pkg/events"
	"artisanmarket/pkg/rating"

	"github.com/google/uuid"
)

type ReviewStatus string

const (
	StatusPending    ReviewStatus = "pending"
	StatusProcessing ReviewStatus = "processing"
	StatusPublished  ReviewStatus = "published"
	StatusFlagged    ReviewStatus = "flagged" // только через модерацию, терминальный
)

type Feedback struct {
	Comment         string   `json:"comment" bson:"comment" validate:"required,max=1000"`
	ModerationNotes []string `json:"moderation_notes" bson:"moderation_notes"`
	Attachments     []string `json:"attachments" bson:"attachments" validate:"omitempty,max=10,dive,url"`
}

// Rating - оценка от 1 до 5 плюс необязательные оценки по отдельным критериям
type Rating struct {
	Value      int            `json:"value" bson:"value" validate:"min=1,max=5"`
	Dimensions map[string]int `json:"dimensions,omitempty" bson:"dimensions,omitempty" validate:"omitempty,dive,min=1,max=5"`
}

type ProcessingError struct {
	Reason             string    `json:"reason" bson:"reason"`
	FailingParticipant string    `json:"failing_participant,omitempty" bson:"failing_participant,omitempty"`
	OccurredAt         time.Time `json:"occurred_at" bson:"occurred_at"`
}

// Review - агрегат, жизненным циклом которого управляет сага.
// Version увеличивается при каждом успешном сохранении.
type Review struct {
	ID               string            `json:"id" bson:"_id"`
	OrderID          string            `json:"order_id" bson:"order_id"`
	ArtisanID        string            `json:"artisan_id" bson:"artisan_id"`
	ClientID         string            `json:"client_id" bson:"client_id"`
	ServiceID        string            `json:"service_id" bson:"service_id"`
	Feedback         Feedback          `json:"feedback" bson:"feedback"`
	ArtisanRating    Rating            `json:"artisan_rating" bson:"artisan_rating"`
	ServiceRating    Rating            `json:"service_rating" bson:"service_rating"`
	Status           ReviewStatus      `json:"status" bson:"status"`
	ProcessingErrors []ProcessingError `json:"processing_errors" bson:"processing_errors"`
	Version          int64             `json:"version" bson:"version"`
	CreatedAt        time.Time         `json:"created_at" bson:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at" bson:"updated_at"`
}

type NewReviewParams struct {
	OrderID       string `validate:"required"`
	ArtisanID     string `validate:"required"`
	ClientID      string `validate:"required"`
	ServiceID     string `validate:"required"`
	Feedback      Feedback
	ArtisanRating Rating
	ServiceRating Rating
}

// NewReview проверяет инварианты и создает отзыв в статусе pending
func NewReview(p NewReviewParams) (*Review, error) {
	if err := validate(p); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	feedback := p.Feedback
	if feedback.ModerationNotes == nil {
		feedback.ModerationNotes = []string{}
	}
	if feedback.Attachments == nil {
		feedback.Attachments = []string{}
	}

	return &Review{
		ID:               uuid.NewString(),
		OrderID:          p.OrderID,
		ArtisanID:        p.ArtisanID,
		ClientID:         p.ClientID,
		ServiceID:        p.ServiceID,
		Feedback:         feedback,
		ArtisanRating:    p.ArtisanRating,
		ServiceRating:    p.ServiceRating,
		Status:           StatusPending,
		ProcessingErrors: []ProcessingError{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

func (r *Review) MarkAsProcessing() error {
	if r.Status != StatusPending {
		return &IllegalStateTransitionError{From: r.Status, Action: "mark as processing"}
	}
	r.Status = StatusProcessing
	return nil
}

func (r *Review) MarkAsPublished() error {
	if r.Status != StatusProcessing {
		return &IllegalStateTransitionError{From: r.Status, Action: "mark as published"}
	}
	r.Status = StatusPublished
	return nil
}

// MarkAsFailed возвращает отзыв в pending и дописывает причину неудачи попытки
func (r *Review) MarkAsFailed(reason, failingParticipant string, at time.Time) error {
	if r.Status != StatusProcessing {
		return &IllegalStateTransitionError{From: r.Status, Action: "mark as failed"}
	}
	r.Status = StatusPending
	r.ProcessingErrors = append(r.ProcessingErrors, ProcessingError{
		Reason:             reason,
		FailingParticipant: failingParticipant,
		OccurredAt:         at.UTC(),
	})
	return nil
}

// Flag - действие модератора; доступно из pending и processing
func (r *Review) Flag(note string) error {
	if r.Status != StatusPending && r.Status != StatusProcessing {
		return &IllegalStateTransitionError{From: r.Status, Action: "flag"}
	}
	r.Status = StatusFlagged
	if note != "" {
		r.Feedback.ModerationNotes = append(r.Feedback.ModerationNotes, note)
	}
	return nil
}

// UpdateFeedback меняет текст и вложения; отзыв снова проходит сагу
func (r *Review) UpdateFeedback(comment *string, attachments []string) error {
	if err := r.checkEditable(); err != nil {
		return err
	}

	next := r.Feedback
	if comment != nil {
		next.Comment = *comment
	}
	if attachments != nil {
		next.Attachments = attachments
	}
	if err := validate(next); err != nil {
		return err
	}

	r.Feedback = next
	r.Status = StatusPending
	return nil
}

// UpdateRatings меняет переданные оценки; отзыв снова проходит сагу
func (r *Review) UpdateRatings(artisanRating, serviceRating *Rating) error {
	if err := r.checkEditable(); err != nil {
		return err
	}

	type ratings struct {
		Artisan Rating
		Service Rating
	}
	next := ratings{Artisan: r.ArtisanRating, Service: r.ServiceRating}
	if artisanRating != nil {
		next.Artisan = *artisanRating
	}
	if serviceRating != nil {
		next.Service = *serviceRating
	}
	if err := validate(next); err != nil {
		return err
	}

	r.ArtisanRating = next.Artisan
	r.ServiceRating = next.Service
	r.Status = StatusPending
	return nil
}

// правка разрешена только вне саги и до модерации
func (r *Review) checkEditable() error {
	switch r.Status {
	case StatusPending, StatusPublished:
		return nil
	default:
		return &IllegalStateTransitionError{From: r.Status, Action: "edit"}
	}
}

// Clone возвращает глубокую копию, которую сага может менять независимо от вызывающего
func (r *Review) Clone() *Review {
	c := *r
	c.Feedback.ModerationNotes = append([]string(nil), r.Feedback.ModerationNotes...)
	c.Feedback.Attachments = append([]string(nil), r.Feedback.Attachments...)
	c.ArtisanRating.Dimensions = cloneDimensions(r.ArtisanRating.Dimensions)
	c.ServiceRating.Dimensions = cloneDimensions(r.ServiceRating.Dimensions)
	c.ProcessingErrors = append([]ProcessingError(nil), r.ProcessingErrors...)
	return &c
}

func cloneDimensions(d map[string]int) map[string]int {
	if d == nil {
		return nil
	}
	c := make(map[string]int, len(d))
	for k, v := range d {
		c[k] = v
	}
	return c
}

// Payload - тело событий ReviewCreated и ReviewPublished
func (r *Review) Payload() events.ReviewPayload {
	return events.ReviewPayload{
		ReviewID:      r.ID,
		ArtisanID:     r.ArtisanID,
		ServiceID:     r.ServiceID,
		ClientID:      r.ClientID,
		ArtisanRating: r.ArtisanRating.Value,
		ServiceRating: r.ServiceRating.Value,
		Status:        string(r.Status),
	}
}

// Projection - представление отзыва для расчета рейтинга
func (r *Review) Projection() rating.PublishedReview {
	return rating.PublishedReview{
		ReviewID:      r.ID,
		ArtisanID:     r.ArtisanID,
		ServiceID:     r.ServiceID,
		ArtisanRating: r.ArtisanRating.Value,
		ServiceRating: r.ServiceRating.Value,
		Status:        string(r.Status),
	}
}
