package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// defaultBaseURL is the public Zippopotam instance. Tests and self-hosted
// deployments override it via NewClient.
const defaultBaseURL = "https://api.zippopotam.us"

// defaultTimeout bounds a single lookup. Geocoding happens inline during a
// save, so a hung provider must not hold a member's signup hostage — after
// this long we give up and save the member without coordinates.
const defaultTimeout = 5 * time.Second

// Client is a Geocoder backed by a Zippopotam-style HTTP API.
//
// THE WIRE FORMAT (GET {base}/us/{zip}):
//
//	{
//	  "post code": "10001",
//	  "places": [
//	    {"latitude": "40.7484", "longitude": "-73.9967",
//	     "state": "New York", "state abbreviation": "NY"}
//	  ]
//	}
//
// Note the JSON keys contain spaces and the coordinates are strings — both
// quirks of the provider, both handled below. An unknown zip returns 404
// with an empty body.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// compile-time check that *Client implements Geocoder
var _ Geocoder = (*Client)(nil)

// NewClient creates a geocoding client.
// baseURL may be empty, in which case the public Zippopotam API is used.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultTimeout},
		logger:  logger,
	}
}

// zipResponse mirrors the provider's JSON. We only unmarshal what we use.
type zipResponse struct {
	Places []struct {
		Latitude  string `json:"latitude"`
		Longitude string `json:"longitude"`
		StateAbbr string `json:"state abbreviation"`
	} `json:"places"`
}

// Lookup resolves a US zip code.
//
// Returns ErrZipNotFound for provider 404s (unknown zip). Any other failure
// (network error, 5xx, malformed body) is returned as a regular error — the
// caller decides whether that blocks anything (the user service doesn't).
func (c *Client) Lookup(ctx context.Context, zip string) (*Location, error) {
	// url.PathEscape guards against a zip like "10001/extra" reaching the
	// provider as a different path. Zips come from user input.
	reqURL := fmt.Sprintf("%s/us/%s", c.baseURL, url.PathEscape(zip))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("geocode: building request for zip %s: %w", zip, err)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocode: looking up zip %s: %w", zip, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrZipNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("geocode: provider returned status %d for zip %s", resp.StatusCode, zip)
	}

	var body zipResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("geocode: decoding response for zip %s: %w", zip, err)
	}
	if len(body.Places) == 0 {
		// A 200 with no places shouldn't happen, but treat it like a miss
		// rather than crashing on Places[0].
		return nil, ErrZipNotFound
	}

	place := body.Places[0]
	lat, err := strconv.ParseFloat(place.Latitude, 64)
	if err != nil {
		return nil, fmt.Errorf("geocode: parsing latitude %q for zip %s: %w", place.Latitude, zip, err)
	}
	lng, err := strconv.ParseFloat(place.Longitude, 64)
	if err != nil {
		return nil, fmt.Errorf("geocode: parsing longitude %q for zip %s: %w", place.Longitude, zip, err)
	}

	c.logger.Debug("zip resolved",
		slog.String("zip", zip),
		slog.String("state", place.StateAbbr),
		slog.Duration("duration", time.Since(start)),
	)

	return &Location{
		Latitude:  lat,
		Longitude: lng,
		State:     place.StateAbbr,
	}, nil
}
