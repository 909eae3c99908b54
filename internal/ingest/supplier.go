// Package ingest pulls the product catalog from the supplier API and turns
// supplier items into catalog products.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/Asdisarson/ss/internal/domain"
	apperrors "github.com/Asdisarson/ss/pkg/errors"
	"github.com/Asdisarson/ss/pkg/httpclient"
)

// upstreamName labels supplier errors, logs and the breaker.
const upstreamName = "supplier"

// ErrPageLimit is returned when the supplier listing has more pages than
// the configured maximum. A truncated listing is never returned.
var ErrPageLimit = errors.New("supplier page limit reached")

// SupplierWarehouse is one stock line of a supplier item.
type SupplierWarehouse struct {
	Code     string `json:"code"`
	Quantity int    `json:"quantity"`
	Location string `json:"location"`
}

// SupplierCategory is a supplier category with its children.
type SupplierCategory struct {
	Code          string               `json:"code"`
	Name          string               `json:"name"`
	Subcategories []domain.Subcategory `json:"subcategories"`
}

// SupplierItem is one item as returned by the supplier API.
type SupplierItem struct {
	ItemCode            string              `json:"item_code" validate:"required,max=128"`
	Description         string              `json:"description"`
	Description2        string              `json:"description_2"`
	ExtendedDescription string              `json:"extended_description"`
	UnitPriceWithTax    float64             `json:"unit_price_with_tax"`
	Barcodes            domain.Barcodes     `json:"barcodes"`
	Warehouses          []SupplierWarehouse `json:"warehouses"`
	Categories          []SupplierCategory  `json:"categories"`
}

// itemPage is one page of the supplier item listing.
type itemPage struct {
	Items      []SupplierItem `json:"items"`
	Page       int            `json:"page"`
	TotalPages int            `json:"totalPages"`
}

// ClientConfig configures the supplier client.
type ClientConfig struct {
	BaseURL  string
	PageSize int
	MaxPages int
}

// Client fetches the full item listing from the supplier.
type Client struct {
	doer   httpclient.Doer
	cfg    ClientConfig
	logger *slog.Logger
}

// NewClient creates a supplier client on top of doer. Use NewHTTPDoer for
// the production retry and circuit breaker stack.
func NewClient(doer httpclient.Doer, cfg ClientConfig, logger *slog.Logger) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.PageSize <= 0 {
		cfg.PageSize = 500
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 1000
	}
	return &Client{doer: doer, cfg: cfg, logger: logger}
}

// NewHTTPDoer builds a retrying HTTP client that sends the supplier API key
// on every request, wrapped in a circuit breaker.
func NewHTTPDoer(httpCfg httpclient.Config, apiKey string, logger *slog.Logger) *httpclient.CircuitBreakerClient {
	if apiKey != "" {
		headers := make(map[string]string, len(httpCfg.Headers)+1)
		for k, v := range httpCfg.Headers {
			headers[k] = v
		}
		headers["X-Api-Key"] = apiKey
		httpCfg.Headers = headers
	}
	return httpclient.NewCircuitBreakerClient(
		httpclient.New(httpCfg),
		httpclient.DefaultCircuitBreakerConfig(upstreamName),
		logger,
	)
}

// FetchAll reads pages until the last page or an empty page. A listing
// longer than MaxPages fails with ErrPageLimit.
func (c *Client) FetchAll(ctx context.Context) ([]SupplierItem, error) {
	var (
		items      []SupplierItem
		totalPages int
	)
	for page := 1; page <= c.cfg.MaxPages; page++ {
		var p itemPage
		if err := httpclient.GetJSON(ctx, c.doer, c.pageURL(page), upstreamName, &p); err != nil {
			return nil, fmt.Errorf("fetch supplier page %d: %w", page, err)
		}

		items = append(items, p.Items...)
		totalPages = p.TotalPages
		c.logger.DebugContext(ctx, "fetched supplier page",
			slog.Int("page", page),
			slog.Int("total_pages", p.TotalPages),
			slog.Int("items", len(p.Items)),
		)

		if len(p.Items) == 0 || page >= p.TotalPages {
			return items, nil
		}
	}

	c.logger.WarnContext(ctx, "supplier page limit reached, keeping the current catalog",
		slog.Int("max_pages", c.cfg.MaxPages),
		slog.Int("total_pages", totalPages),
		slog.Int("items", len(items)),
	)
	return nil, apperrors.UpstreamFailure("supplier catalog exceeds the page limit",
		fmt.Errorf("%w: %d of %d pages read", ErrPageLimit, c.cfg.MaxPages, totalPages))
}

func (c *Client) pageURL(page int) string {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("pageSize", strconv.Itoa(c.cfg.PageSize))
	return c.cfg.BaseURL + "/items?" + q.Encode()
}
