package rating

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/avast/retry-go/v4"
)

var ErrSourceUnavailable = errors.New("published reviews source unavailable")

// TokenSource выдает bearer-токен для внутренних вызовов
type TokenSource func() (string, error)

// HTTPSource ходит в reviews-service за опубликованными отзывами:
// GET {baseURL}/internal/reviews/published?artisan_id=... или ?service_id=...
type HTTPSource struct {
	baseURL  string
	client   *http.Client
	token    TokenSource
	attempts uint
	delay    time.Duration
}

type HTTPSourceOption func(*HTTPSource)

func WithHTTPClient(client *http.Client) HTTPSourceOption {
	return func(s *HTTPSource) { s.client = client }
}

func WithRetry(attempts uint, delay time.Duration) HTTPSourceOption {
	return func(s *HTTPSource) {
		s.attempts = attempts
		s.delay = delay
	}
}

func NewHTTPSource(baseURL string, token TokenSource, opts ...HTTPSourceOption) *HTTPSource {
	s := &HTTPSource{
		baseURL:  baseURL,
		client:   &http.Client{Timeout: 5 * time.Second},
		token:    token,
		attempts: 3,
		delay:    200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type publishedResponse struct {
	Reviews []PublishedReview `json:"reviews"`
	Total   int               `json:"total"`
}

func (s *HTTPSource) FindPublishedBySubject(ctx context.Context, kind SubjectKind, subjectID string) ([]PublishedReview, error) {
	query := url.Values{}
	switch kind {
	case SubjectArtisan:
		query.Set("artisan_id", subjectID)
	case SubjectService:
		query.Set("service_id", subjectID)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownSubjectKind, kind)
	}
	endpoint := s.baseURL + "/internal/reviews/published?" + query.Encode()

	var result publishedResponse
	err := retry.Do(
		func() error {
			return s.fetch(ctx, endpoint, &result)
		},
		retry.Attempts(s.attempts),
		retry.Delay(s.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, ErrSourceUnavailable)
		}),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
	if err != nil {
		return nil, err
	}

	return result.Reviews, nil
}

func (s *HTTPSource) fetch(ctx context.Context, endpoint string, out *publishedResponse) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return retry.Unrecoverable(fmt.Errorf("failed to build request: %w", err))
	}

	if s.token != nil {
		token, err := s.token()
		if err != nil {
			return retry.Unrecoverable(fmt.Errorf("failed to issue service token: %w", err))
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: status %d", ErrSourceUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status from reviews service: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode published reviews: %w", err)
	}

	return nil
}
