package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

type IdentityClient struct {
	client *client
}

func NewIdentityClient(cfg Config, token TokenSource) *IdentityClient {
	return &IdentityClient{client: newClient("identity-service", cfg, token)}
}

func (c *IdentityClient) ArtisanExists(ctx context.Context, artisanID string) (bool, error) {
	return c.client.exists(ctx, "/artisans/"+url.PathEscape(artisanID))
}

func (c *IdentityClient) UpdateArtisanRating(ctx context.Context, artisanID string, rating float64) error {
	path := "/artisans/" + url.PathEscape(artisanID) + "/rating"
	if err := c.client.do(ctx, http.MethodPut, path, ratingUpdate{Rating: rating}); err != nil {
		return fmt.Errorf("failed to update artisan rating: %w", err)
	}
	return nil
}
