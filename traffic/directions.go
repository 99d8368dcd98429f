package traffic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/iEdgir01/traffic-manager/geo"
	"github.com/iEdgir01/traffic-manager/observability"
)

const DefaultDirectionsURL = "https://maps.googleapis.com/maps/api"

var (
	// ErrNoRoutes means the provider answered but had no route for the pair.
	ErrNoRoutes = errors.New("directions provider returned no routes")
	// ErrNoRouteFound means routes came back but none carried live-traffic timing.
	ErrNoRouteFound        = errors.New("no routes with live traffic data")
	ErrProvider            = errors.New("directions provider error")
	ErrMalformedResponse   = errors.New("malformed directions response")
	errMissingDirectionKey = errors.New("directions API key is not configured")
)

type Duration struct {
	Value int64  `json:"value"`
	Text  string `json:"text,omitempty"`
}

type Step struct {
	Duration          *Duration `json:"duration"`
	DurationInTraffic *Duration `json:"duration_in_traffic"`
	HTMLInstructions  string    `json:"html_instructions"`
}

type Leg struct {
	Duration          *Duration `json:"duration"`
	DurationInTraffic *Duration `json:"duration_in_traffic"`
	Distance          *Duration `json:"distance"`
	StartAddress      string    `json:"start_address"`
	EndAddress        string    `json:"end_address"`
	Steps             []Step    `json:"steps"`
}

type Polyline struct {
	Points string `json:"points"`
}

type Route struct {
	Summary          string   `json:"summary"`
	Legs             []Leg    `json:"legs"`
	OverviewPolyline Polyline `json:"overview_polyline"`
}

type DirectionsResponse struct {
	Status       string  `json:"status"`
	ErrorMessage string  `json:"error_message"`
	Routes       []Route `json:"routes"`
}

type DirectionsClient interface {
	Directions(ctx context.Context, origin, destination geo.Coord) (*DirectionsResponse, error)
}

type GoogleDirections struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewGoogleDirections(apiKey, baseURL string, timeout time.Duration) *GoogleDirections {
	if baseURL == "" {
		baseURL = DefaultDirectionsURL
	}
	return &GoogleDirections{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Directions requests live-traffic aware directions with alternatives enabled.
func (g *GoogleDirections) Directions(ctx context.Context, origin, destination geo.Coord) (*DirectionsResponse, error) {
	if g.apiKey == "" {
		return nil, errMissingDirectionKey
	}
	start := time.Now()
	defer func() {
		observability.DirectionsLatency.Observe(time.Since(start).Seconds())
	}()

	q := url.Values{}
	q.Set("origin", origin.String())
	q.Set("destination", destination.String())
	q.Set("departure_time", "now")
	q.Set("alternatives", "true")
	q.Set("key", g.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/directions/json?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrProvider, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d", ErrProvider, resp.StatusCode)
	}

	var data DirectionsResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(data.Routes) == 0 && data.ErrorMessage != "" {
		return nil, fmt.Errorf("%w: %s: %s", ErrProvider, data.Status, data.ErrorMessage)
	}
	return &data, nil
}
