package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"artisanmarket/pkg/logger"

	"github.com/avast/retry-go/v4"
)

var (
	ErrNotFound    = errors.New("resource not found")
	ErrUnavailable = errors.New("collaborator unavailable")
)

type TokenSource func() (string, error)

type Config struct {
	BaseURL  string
	Timeout  time.Duration
	Attempts uint
	Delay    time.Duration
}

// client - общий транспорт внутренних вызовов: bearer-токен сервиса и повтор на 5xx и сетевых ошибках
type client struct {
	name       string
	cfg        Config
	httpClient *http.Client
	token      TokenSource
}

func newClient(name string, cfg Config, token TokenSource) *client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Attempts == 0 {
		cfg.Attempts = 3
	}
	if cfg.Delay == 0 {
		cfg.Delay = 200 * time.Millisecond
	}

	return &client{
		name:       name,
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		token:      token,
	}
}

func (c *client) do(ctx context.Context, method, path string, body interface{}) error {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		payload = data
	}

	return retry.Do(
		func() error {
			return c.once(ctx, method, path, payload)
		},
		retry.Attempts(c.cfg.Attempts),
		retry.Delay(c.cfg.Delay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, ErrUnavailable)
		}),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn().Err(err).Str("collaborator", c.name).Uint("attempt", n+1).Msg("Retrying collaborator call")
		}),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
}

func (c *client) once(ctx context.Context, method, path string, payload []byte) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return retry.Unrecoverable(fmt.Errorf("failed to create request: %w", err))
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.token != nil {
		token, err := c.token()
		if err != nil {
			return retry.Unrecoverable(fmt.Errorf("failed to issue service token: %w", err))
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, c.name, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: %s returned status %d", ErrUnavailable, c.name, resp.StatusCode)
	case resp.StatusCode >= http.StatusBadRequest:
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned status %d: %s", c.name, resp.StatusCode, string(data))
	}

	return nil
}

type ratingUpdate struct {
	Rating float64 `json:"rating"`
}

// exists сводит 404 к false, остальные ошибки пробрасывает
func (c *client) exists(ctx context.Context, path string) (bool, error) {
	err := c.do(ctx, http.MethodGet, path, nil)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
