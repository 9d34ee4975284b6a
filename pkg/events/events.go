package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Имена событий; по умолчанию совпадают с именами топиков
const (
	ReviewCreated   = "ReviewCreated"
	ReviewPublished = "ReviewPublished"
	Acknowledgement = "Acknowledgment"

	TopicReviewCreated   = "ReviewCreated"
	TopicReviewPublished = "ReviewPublished"
	TopicAcknowledgments = "ReviewAcknowledgments"
)

// Участники саги пересчёта рейтинга
const (
	ParticipantCatalog  = "catalog"
	ParticipantIdentity = "identity"
)

type AckStatus string

const (
	AckProcessed AckStatus = "processed"
	AckFailed    AckStatus = "failed"
)

var ErrInvalidPayload = errors.New("invalid event payload")

// DomainEvent - конверт доменного события. ID служит ключом корреляции подтверждений.
type DomainEvent struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Version    int             `json:"version"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Acknowledgment - результат обработки события участником
type Acknowledgment struct {
	OriginalEventID   string    `json:"original_event_id"`
	Status            AckStatus `json:"status"`
	SourceParticipant string    `json:"source_participant"`
	Error             string    `json:"error,omitempty"`
}

// ReviewPayload - тело ReviewCreated и ReviewPublished
type ReviewPayload struct {
	ReviewID      string `json:"review_id"`
	ArtisanID     string `json:"artisan_id"`
	ServiceID     string `json:"service_id"`
	ClientID      string `json:"client_id"`
	ArtisanRating int    `json:"artisan_rating"`
	ServiceRating int    `json:"service_rating"`
	Status        string `json:"status"`
}

func NewDomainEvent(name string, version int, payload interface{}) (DomainEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return DomainEvent{}, fmt.Errorf("failed to marshal %s payload: %w", name, err)
	}

	return DomainEvent{
		ID:         uuid.NewString(),
		Name:       name,
		Version:    version,
		Payload:    data,
		OccurredAt: time.Now().UTC(),
	}, nil
}

// NewAcknowledgmentEvent оборачивает подтверждение в конверт для топика подтверждений
func NewAcknowledgmentEvent(ack Acknowledgment) (DomainEvent, error) {
	return NewDomainEvent(Acknowledgement, 1, ack)
}

func DecodeReviewPayload(event DomainEvent) (ReviewPayload, error) {
	var payload ReviewPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return ReviewPayload{}, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, event.Name, err)
	}
	if payload.ReviewID == "" {
		return ReviewPayload{}, fmt.Errorf("%w: %s: review_id is required", ErrInvalidPayload, event.Name)
	}
	return payload, nil
}

// DecodeAcknowledgment требует явного source_participant: участник не выводится из формы payload
func DecodeAcknowledgment(event DomainEvent) (Acknowledgment, error) {
	var ack Acknowledgment
	if err := json.Unmarshal(event.Payload, &ack); err != nil {
		return Acknowledgment{}, fmt.Errorf("%w: acknowledgment: %v", ErrInvalidPayload, err)
	}
	if ack.OriginalEventID == "" || ack.SourceParticipant == "" {
		return Acknowledgment{}, fmt.Errorf("%w: acknowledgment must name original_event_id and source_participant", ErrInvalidPayload)
	}
	switch ack.Status {
	case AckProcessed, AckFailed:
	default:
		return Acknowledgment{}, fmt.Errorf("%w: unknown acknowledgment status %q", ErrInvalidPayload, ack.Status)
	}
	return ack, nil
}
