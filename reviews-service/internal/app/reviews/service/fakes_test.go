package service

import (
	"context"
	"sync"
	"time"

	"artisanmarket/pkg/events"
	"artisanmarket/pkg/messaging"
	"artisanmarket/pkg/rating"
	"artisanmarket/reviews-service/internal/app/reviews/entity"
	"artisanmarket/reviews-service/internal/app/reviews/repository"
)

// memoryRepo повторяет семантику версии mongo-репозитория
type memoryRepo struct {
	mu        sync.Mutex
	reviews   map[string]*entity.Review
	createErr error
	updateErr func(review *entity.Review) error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{reviews: make(map[string]*entity.Review)}
}

func (r *memoryRepo) Create(_ context.Context, review *entity.Review) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	review.Version = 1
	r.reviews[review.ID] = review.Clone()
	return nil
}

func (r *memoryRepo) GetByID(_ context.Context, id string) (*entity.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	review, ok := r.reviews[id]
	if !ok {
		return nil, repository.ErrReviewNotFound
	}
	return review.Clone(), nil
}

func (r *memoryRepo) Update(_ context.Context, review *entity.Review) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		if err := r.updateErr(review); err != nil {
			return err
		}
	}
	stored, ok := r.reviews[review.ID]
	if !ok {
		return repository.ErrReviewNotFound
	}
	if stored.Version != review.Version {
		return repository.ErrConcurrencyConflict
	}
	review.Version++
	review.UpdatedAt = time.Now().UTC()
	r.reviews[review.ID] = review.Clone()
	return nil
}

func (r *memoryRepo) FindPublishedBySubject(_ context.Context, kind rating.SubjectKind, subjectID string) ([]entity.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []entity.Review
	for _, review := range r.reviews {
		if review.Status != entity.StatusPublished {
			continue
		}
		if (kind == rating.SubjectArtisan && review.ArtisanID == subjectID) ||
			(kind == rating.SubjectService && review.ServiceID == subjectID) {
			result = append(result, *review.Clone())
		}
	}
	return result, nil
}

func (r *memoryRepo) FindStaleProcessing(_ context.Context, updatedBefore time.Time, _ int64) ([]entity.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []entity.Review
	for _, review := range r.reviews {
		if review.Status == entity.StatusProcessing && review.UpdatedAt.Before(updatedBefore) {
			result = append(result, *review.Clone())
		}
	}
	return result, nil
}

func (r *memoryRepo) put(review *entity.Review) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reviews[review.ID] = review.Clone()
}

func (r *memoryRepo) get(id string) *entity.Review {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reviews[id].Clone()
}

// collaborator - подставной identity или catalog: существование ссылок и записанные рейтинги
type collaborator struct {
	mu        sync.Mutex
	missing   map[string]bool
	existsErr error
	updateErr error
	ratings   map[string]float64
	checks    int
}

func newCollaborator() *collaborator {
	return &collaborator{missing: map[string]bool{}, ratings: map[string]float64{}}
}

func (c *collaborator) exists(id string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks++
	if c.existsErr != nil {
		return false, c.existsErr
	}
	return !c.missing[id], nil
}

func (c *collaborator) update(id string, value float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.updateErr != nil {
		return c.updateErr
	}
	c.ratings[id] = value
	return nil
}

func (c *collaborator) rating(id string) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.ratings[id]
	return v, ok
}

func (c *collaborator) checkCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.checks
}

type fakeIdentity struct{ *collaborator }

func (f fakeIdentity) ArtisanExists(_ context.Context, id string) (bool, error) { return f.exists(id) }

func (f fakeIdentity) UpdateArtisanRating(_ context.Context, id string, v float64) error {
	return f.update(id, v)
}

type fakeCatalog struct{ *collaborator }

func (f fakeCatalog) ServiceExists(_ context.Context, id string) (bool, error) { return f.exists(id) }

func (f fakeCatalog) UpdateServiceRating(_ context.Context, id string, v float64) error {
	return f.update(id, v)
}

// responder отвечает на ReviewCreated от имени участников по заданному сценарию
type responder struct {
	mu        sync.Mutex
	channel   messaging.Channel
	outcomes  map[string]events.Acknowledgment
	created   []events.DomainEvent
	published []events.DomainEvent
}

func newResponder(channel messaging.Channel) *responder {
	r := &responder{channel: channel, outcomes: map[string]events.Acknowledgment{}}
	r.respond(events.ParticipantCatalog, events.AckProcessed, "")
	r.respond(events.ParticipantIdentity, events.AckProcessed, "")

	_, _ = channel.Subscribe(events.TopicReviewCreated, r.onCreated)
	_, _ = channel.Subscribe(events.TopicReviewPublished, func(_ context.Context, e events.DomainEvent) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.published = append(r.published, e)
	})
	return r
}

func (r *responder) respond(participant string, status events.AckStatus, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes[participant] = events.Acknowledgment{Status: status, SourceParticipant: participant, Error: reason}
}

func (r *responder) silence(participant string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.outcomes, participant)
}

func (r *responder) onCreated(ctx context.Context, e events.DomainEvent) {
	r.mu.Lock()
	r.created = append(r.created, e)
	acks := make([]events.Acknowledgment, 0, len(r.outcomes))
	for _, ack := range r.outcomes {
		ack.OriginalEventID = e.ID
		acks = append(acks, ack)
	}
	r.mu.Unlock()

	for _, ack := range acks {
		event, err := events.NewAcknowledgmentEvent(ack)
		if err == nil {
			_ = r.channel.Publish(ctx, events.TopicAcknowledgments, event)
		}
	}
}

func (r *responder) counts() (created, published int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.created), len(r.published)
}

// blockingRepo задерживает первую запись processing, пока тест не отпустит сагу
type blockingRepo struct {
	*memoryRepo
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingRepo(repo *memoryRepo) *blockingRepo {
	return &blockingRepo{memoryRepo: repo, entered: make(chan struct{}), release: make(chan struct{})}
}

func (r *blockingRepo) Update(ctx context.Context, review *entity.Review) error {
	if review.Status == entity.StatusProcessing {
		r.once.Do(func() {
			close(r.entered)
			<-r.release
		})
	}
	return r.memoryRepo.Update(ctx, review)
}
