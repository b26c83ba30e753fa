// Package asf is a client for the product lookups of the ASF Search API.
package asf

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// ErrGranuleNotFound is returned when a scene has no SLC product.
var ErrGranuleNotFound = errors.New("granule not found")

// StatusError is returned when the API answers with a status other than 200.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ASF API returned status %d: %s", e.StatusCode, e.Body)
}

// searchPath is the parameter search endpoint under the base URL.
const searchPath = "/services/search/param"

// Client queries the ASF Search API for SLC products.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new ASF API client
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        16,
				MaxIdleConnsPerHost: 16,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: slog.Default(),
	}
}

// WithLogger sets a custom logger for the client
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	c.logger = logger
	return c
}

// Products returns the SLC product files matching q. Other files of the
// same scenes are dropped.
func (c *Client) Products(ctx context.Context, q Query) ([]Feature, error) {
	fc, err := c.search(ctx, q)
	if err != nil {
		return nil, err
	}

	products := make([]Feature, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f.IsSLC() {
			products = append(products, f)
		}
	}

	c.logger.DebugContext(ctx, "ASF search completed",
		slog.Int("features", len(fc.Features)),
		slog.Int("products", len(products)),
	)
	return products, nil
}

// Product returns the SLC product file of a scene.
func (c *Client) Product(ctx context.Context, scene string) (*Feature, error) {
	products, err := c.Products(ctx, Query{Scenes: []string{scene}})
	if err != nil {
		return nil, fmt.Errorf("failed to search for %s: %w", scene, err)
	}
	for i := range products {
		if products[i].Properties.SceneName == scene {
			return &products[i], nil
		}
	}

	c.logger.WarnContext(ctx, "granule not found",
		slog.String("scene_name", scene),
		slog.Int("result_count", len(products)),
	)
	return nil, fmt.Errorf("%w: %s", ErrGranuleNotFound, scene)
}

func (c *Client) search(ctx context.Context, q Query) (*FeatureCollection, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	base.Path = searchPath
	base.RawQuery = q.Values().Encode()
	searchURL := base.String()

	c.logger.DebugContext(ctx, "executing ASF search",
		slog.String("url", searchURL),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/geo+json, application/json")
	req.Header.Set("User-Agent", "s1bursts/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.ErrorContext(ctx, "ASF API request failed",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("ASF API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.ErrorContext(ctx, "ASF API returned non-200 status",
			slog.Int("status_code", resp.StatusCode),
		)
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var fc FeatureCollection
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		return nil, fmt.Errorf("failed to decode ASF response: %w", err)
	}
	return &fc, nil
}
