// Package lookup resolves barcodes against an Open Food Facts compatible
// product database. It maps the wire nutriments onto the journal's macro
// model so resolved products can be saved straight into the food catalog.
package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrProductNotFound is returned when the database has no product for the
// barcode. Covers both an HTTP 404 and a status-0 body.
var ErrProductNotFound = errors.New("product not found")

// DefaultTimeout bounds a lookup request when no timeout is configured.
const DefaultTimeout = 10 * time.Second

// Macros mirrors journal.Macros per 100 g of product. Nutriments absent
// from the response stay zero.
type Macros struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

// Product is one resolved product.
type Product struct {
	Code    string `json:"code"`
	Name    string `json:"name"`
	Brand   string `json:"brand,omitempty"`
	Per100g Macros `json:"per_100g"`
}

// Client is an Open Food Facts API client.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// NewClient creates a client for the given base URL. A non-positive
// timeout falls back to DefaultTimeout.
func NewClient(baseURL, userAgent string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// productResponse is the wire envelope. Status 1 means found, 0 not found.
type productResponse struct {
	Code          string      `json:"code"`
	Status        int         `json:"status"`
	StatusVerbose string      `json:"status_verbose"`
	Product       wireProduct `json:"product"`
}

type wireProduct struct {
	ProductName string         `json:"product_name"`
	Brands      string         `json:"brands"`
	Nutriments  wireNutriments `json:"nutriments"`
}

type wireNutriments struct {
	EnergyKcal100g float64 `json:"energy-kcal_100g"`
	Proteins100g   float64 `json:"proteins_100g"`
	Carbs100g      float64 `json:"carbohydrates_100g"`
	Fat100g        float64 `json:"fat_100g"`
}

// GetProduct fetches the product for a barcode. Returns
// ErrProductNotFound when the database does not know the code.
func (c *Client) GetProduct(ctx context.Context, barcode string) (*Product, error) {
	if barcode == "" {
		return nil, errors.New("barcode is required")
	}

	endpoint := "/api/v2/product/" + url.PathEscape(barcode) + ".json"
	req, err := c.buildRequest(ctx, endpoint, nil)
	if err != nil {
		return nil, err
	}

	body, err := c.doRequest(req)
	if err != nil {
		return nil, err
	}

	var parsed productResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse product response: %w", err)
	}
	if parsed.Status != 1 {
		return nil, ErrProductNotFound
	}

	name := strings.TrimSpace(parsed.Product.ProductName)
	if name == "" {
		// A found product without a name is useless to the catalog.
		return nil, ErrProductNotFound
	}

	code := parsed.Code
	if code == "" {
		code = barcode
	}

	return &Product{
		Code:  code,
		Name:  name,
		Brand: strings.TrimSpace(parsed.Product.Brands),
		Per100g: Macros{
			Calories: parsed.Product.Nutriments.EnergyKcal100g,
			Protein:  parsed.Product.Nutriments.Proteins100g,
			Carbs:    parsed.Product.Nutriments.Carbs100g,
			Fat:      parsed.Product.Nutriments.Fat100g,
		},
	}, nil
}

// buildRequest creates a GET request for the endpoint with optional query
// parameters.
func (c *Client) buildRequest(ctx context.Context, endpoint string, params url.Values) (*http.Request, error) {
	u, err := url.Parse(c.baseURL + endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid lookup URL: %w", err)
	}
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	return req, nil
}

// doRequest executes the request and returns the response body. A 404
// maps to ErrProductNotFound; other non-2xx statuses are errors.
func (c *Client) doRequest(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lookup request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrProductNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return body, nil
}
