// Package cmr looks up Sentinel-1 SLC scenes and published burst granules in
// NASA's Common Metadata Repository and converts bursts to and from UMM-G.
package cmr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultBaseURL  = "https://cmr.earthdata.nasa.gov/search"
	DefaultProvider = "ASF"

	// DefaultPageSize is used when a query sets no page size. CMR caps pages
	// at MaxPageSize.
	DefaultPageSize = 250
	MaxPageSize     = 2000

	searchAfterHeader = "CMR-Search-After"
)

// ErrGranuleNotFound is returned when a lookup by granule UR has no hit.
var ErrGranuleNotFound = errors.New("granule not found")

// StatusError is returned when CMR answers with a status other than 200.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("CMR returned status %d: %s", e.StatusCode, e.Body)
}

// AttributeFilter matches an additional attribute, rendered as CMR's
// attribute[]=type,name,value.
type AttributeFilter struct {
	Type  string // string, int or float
	Name  string
	Value string
}

func (a AttributeFilter) String() string {
	return a.Type + "," + a.Name + "," + a.Value
}

// StringAttr matches a string attribute exactly.
func StringAttr(name, value string) AttributeFilter {
	return AttributeFilter{Type: "string", Name: name, Value: value}
}

// IntAttr matches an integer attribute exactly.
func IntAttr(name string, value int) AttributeFilter {
	return AttributeFilter{Type: "int", Name: name, Value: strconv.Itoa(value)}
}

// Query is a granule search. Empty fields are not sent.
type Query struct {
	ShortNames  []string
	GranuleURs  []string
	BoundingBox string // west,south,east,north
	Temporal    string // start,end; either side may be empty
	Attributes  []AttributeFilter
	// AnyAttribute matches granules satisfying any attribute filter instead
	// of all of them.
	AnyAttribute bool

	PageSize    int
	SearchAfter string
	SortKey     string // defaults to -start_date
}

// Values encodes q as search parameters.
func (q *Query) Values() url.Values {
	v := url.Values{}
	for _, sn := range q.ShortNames {
		v.Add("short_name", sn)
	}
	for _, ur := range q.GranuleURs {
		v.Add("granule_ur", ur)
	}
	if q.BoundingBox != "" {
		v.Set("bounding_box", q.BoundingBox)
	}
	if q.Temporal != "" {
		v.Set("temporal", q.Temporal)
	}
	for _, a := range q.Attributes {
		v.Add("attribute[]", a.String())
	}
	if q.AnyAttribute && len(q.Attributes) > 1 {
		v.Set("options[attribute][or]", "true")
	}

	size := q.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	v.Set("page_size", strconv.Itoa(min(size, MaxPageSize)))

	if q.SortKey != "" {
		v.Set("sort_key", q.SortKey)
	} else {
		v.Set("sort_key", "-start_date")
	}
	return v
}

// Page is one page of search results. SearchAfter is empty on the last page.
type Page struct {
	Granules    []Granule
	Hits        int
	SearchAfter string
}

// Client queries the CMR granule search of a single provider.
type Client struct {
	baseURL    string
	provider   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a CMR client. Empty arguments select the public CMR and
// the ASF provider.
func NewClient(baseURL, provider string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if provider == "" {
		provider = DefaultProvider
	}

	return &Client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		provider: provider,
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

// WithLogger sets a custom logger for the client.
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	c.logger = logger
	return c
}

// Granules fetches a single page of results.
func (c *Client) Granules(ctx context.Context, q *Query) (*Page, error) {
	params := q.Values()
	params.Set("provider", c.provider)
	searchURL := c.baseURL + "/granules.umm_json?" + params.Encode()

	c.logger.DebugContext(ctx, "executing CMR search",
		slog.String("url", searchURL),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.nasa.cmr.umm_results+json")
	req.Header.Set("User-Agent", "s1bursts/1.0")
	if q.SearchAfter != "" {
		req.Header.Set(searchAfterHeader, q.SearchAfter)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("CMR request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.ErrorContext(ctx, "CMR returned non-200 status",
			slog.Int("status_code", resp.StatusCode),
		)
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var results Results
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("failed to decode CMR response: %w", err)
	}

	page := &Page{
		Granules:    make([]Granule, 0, len(results.Items)),
		Hits:        results.Hits,
		SearchAfter: resp.Header.Get(searchAfterHeader),
	}
	for _, item := range results.Items {
		page.Granules = append(page.Granules, item.UMM)
	}

	c.logger.DebugContext(ctx, "CMR search completed",
		slog.Int("hits", page.Hits),
		slog.Int("returned", len(page.Granules)),
		slog.Bool("has_next", page.SearchAfter != ""),
	)
	return page, nil
}

// All follows the search-after cursor until limit granules are collected or
// the results run out. A limit of zero or less collects every hit.
func (c *Client) All(ctx context.Context, q Query, limit int) ([]Granule, error) {
	var granules []Granule
	for {
		page, err := c.Granules(ctx, &q)
		if err != nil {
			return granules, err
		}
		granules = append(granules, page.Granules...)

		if limit > 0 && len(granules) >= limit {
			return granules[:limit], nil
		}
		if page.SearchAfter == "" || len(page.Granules) == 0 {
			return granules, nil
		}
		q.SearchAfter = page.SearchAfter
	}
}

// Granule returns the granule of a collection with the given UR.
func (c *Client) Granule(ctx context.Context, shortName, granuleUR string) (*Granule, error) {
	page, err := c.Granules(ctx, &Query{
		ShortNames: []string{shortName},
		GranuleURs: []string{granuleUR},
		PageSize:   1,
	})
	if err != nil {
		return nil, err
	}
	if len(page.Granules) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrGranuleNotFound, granuleUR)
	}
	return &page.Granules[0], nil
}
