// Package rest reads shops from the hosted backend's REST interface.
package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/salonbook/mapsync/pkg/core"
)

const defaultTable = "shops"

// Client queries the hosted backend for active shops.
type Client struct {
	baseURL    string
	apiKey     string
	table      string
	httpClient *http.Client
}

// New creates a new REST client. An empty table defaults to "shops".
func New(baseURL, apiKey, table string) *Client {
	if table == "" {
		table = defaultTable
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		table:      table,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type shopRow struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Longitude *float64 `json:"longitude"`
	Latitude  *float64 `json:"latitude"`
}

// Healthcheck checks if the backend is reachable with the configured key.
func (c *Client) Healthcheck(ctx context.Context) error {
	resp, err := c.get(ctx, c.baseURL+"/rest/v1/")
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
	}
	return nil
}

// Descriptors fetches the active shops ordered by name, then id. Rows without
// coordinates are left out.
func (c *Client) Descriptors(ctx context.Context) ([]core.MarkerDescriptor, error) {
	q := url.Values{}
	q.Set("select", "id,name,longitude,latitude")
	q.Set("active", "eq.true")
	q.Set("order", "name.asc,id.asc")

	resp, err := c.get(ctx, c.baseURL+"/rest/v1/"+url.PathEscape(c.table)+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("shops request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("shops request returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var rows []shopRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decoding shops: %w", err)
	}

	out := make([]core.MarkerDescriptor, 0, len(rows))
	for _, r := range rows {
		if r.Longitude == nil || r.Latitude == nil {
			continue
		}
		out = append(out, core.MarkerDescriptor{
			ID:          r.ID,
			DisplayName: r.Name,
			Position:    core.Position{Longitude: *r.Longitude, Latitude: *r.Latitude},
		})
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	return c.httpClient.Do(req)
}
