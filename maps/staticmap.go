package maps

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/iEdgir01/traffic-manager/geo"
)

const DefaultStaticMapURL = "https://maps.googleapis.com/maps/api/staticmap"

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// StaticMaps renders route overview images through the Static Maps API and
// caches them on disk, one PNG per route name.
type StaticMaps struct {
	dir     string
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewStaticMaps(dir, apiKey, baseURL string) *StaticMaps {
	if baseURL == "" {
		baseURL = DefaultStaticMapURL
	}
	return &StaticMaps{
		dir:     dir,
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *StaticMaps) Path(name string) string {
	return filepath.Join(s.dir, unsafeName.ReplaceAllString(name, "_")+".png")
}

// URL builds the Static Maps request for a route.
func (s *StaticMaps) URL(start, end geo.Coord, polyline string) string {
	q := url.Values{}
	q.Set("size", "800x400")
	q.Set("maptype", "roadmap")
	if polyline != "" {
		q.Set("path", "enc:"+polyline)
	}
	q.Add("markers", "color:green|label:S|"+start.String())
	q.Add("markers", "color:red|label:E|"+end.String())
	q.Set("key", s.apiKey)
	return s.baseURL + "?" + q.Encode()
}

// RouteMap returns the cached image for the route, downloading it first when absent.
func (s *StaticMaps) RouteMap(ctx context.Context, name string, start, end geo.Coord, polyline string) (string, error) {
	path := s.Path(name)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create map dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL(start, end, polyline), nil)
	if err != nil {
		return "", err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch static map: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("static maps API returned %s", resp.Status)
	}

	tmp, err := os.CreateTemp(s.dir, ".map-*")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write static map: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return path, nil
}

// Remove deletes the cached image for a route. A missing file is not an error.
func (s *StaticMaps) Remove(name string) error {
	if err := os.Remove(s.Path(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
