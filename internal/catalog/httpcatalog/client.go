// Package httpcatalog fetches the catalog from a remote pizza API through a
// retrying, circuit-broken HTTP client.
package httpcatalog

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/utafrali/pizzashop/internal/domain"
	"github.com/utafrali/pizzashop/pkg/httpclient"
)

// Client calls GET {base}/api/v1/pizzas?category=..&sort_by=.. and expects
// the {"data": [...]} envelope.
type Client struct {
	http        *httpclient.BreakerClient
	baseURL     string
	allCategory string
}

func New(http *httpclient.BreakerClient, baseURL, allCategory string) *Client {
	return &Client{
		http:        http,
		baseURL:     strings.TrimRight(baseURL, "/"),
		allCategory: allCategory,
	}
}

type listResponse struct {
	Data []domain.Product `json:"data"`
}

func (c *Client) Fetch(ctx context.Context, category string, sortBy domain.SortKey) ([]domain.Product, error) {
	q := url.Values{}
	if category != c.allCategory {
		q.Set("category", category)
	}
	if sortBy != "" {
		q.Set("sort_by", string(sortBy))
	}
	endpoint := c.baseURL + "/api/v1/pizzas"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	var resp listResponse
	if err := c.http.GetJSON(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("fetch catalog: %w", err)
	}
	if resp.Data == nil {
		return []domain.Product{}, nil
	}
	return resp.Data, nil
}
