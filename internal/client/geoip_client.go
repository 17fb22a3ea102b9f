package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// GeoIPClient resolves the machine's approximate location from public IP
// geolocation services. Endpoints are tried in order until one yields
// coordinates; providers disagree on field names, so both spellings are
// accepted.
type GeoIPClient struct {
	endpoints  []string
	httpClient *http.Client
}

func NewGeoIPClient(endpoints []string) *GeoIPClient {
	return &GeoIPClient{
		endpoints: endpoints,
		httpClient: &http.Client{
			Timeout: 3 * time.Second,
		},
	}
}

type geoIPResponse struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Lat       *float64 `json:"lat"`
	Lon       *float64 `json:"lon"`
}

func (c *GeoIPClient) Lookup(ctx context.Context) (float64, float64, error) {
	var lastErr error
	for _, endpoint := range c.endpoints {
		lat, lon, err := c.lookupOne(ctx, endpoint)
		if err == nil {
			return lat, lon, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no geolocation endpoints configured")
	}
	return 0, 0, lastErr
}

func (c *GeoIPClient) lookupOne(ctx context.Context, endpoint string) (float64, float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, 0, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, 0, fmt.Errorf("geolocation service %s returned status %d", endpoint, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, 0, err
	}

	var parsed geoIPResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, 0, err
	}

	lat, lon := parsed.Latitude, parsed.Longitude
	if lat == nil {
		lat = parsed.Lat
	}
	if lon == nil {
		lon = parsed.Lon
	}
	if lat == nil || lon == nil {
		return 0, 0, fmt.Errorf("geolocation service %s returned no coordinates", endpoint)
	}

	return *lat, *lon, nil
}
