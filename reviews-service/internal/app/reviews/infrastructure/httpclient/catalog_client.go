package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

type CatalogClient struct {
	client *client
}

func NewCatalogClient(cfg Config, token TokenSource) *CatalogClient {
	return &CatalogClient{client: newClient("catalog-service", cfg, token)}
}

func (c *CatalogClient) ServiceExists(ctx context.Context, serviceID string) (bool, error) {
	return c.client.exists(ctx, "/services/"+url.PathEscape(serviceID))
}

func (c *CatalogClient) UpdateServiceRating(ctx context.Context, serviceID string, rating float64) error {
	path := "/services/" + url.PathEscape(serviceID) + "/rating"
	if err := c.client.do(ctx, http.MethodPut, path, ratingUpdate{Rating: rating}); err != nil {
		return fmt.Errorf("failed to update service rating: %w", err)
	}
	return nil
}
