package services

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/iEdgir01/traffic-manager/geo"
	"github.com/iEdgir01/traffic-manager/models"
	"github.com/iEdgir01/traffic-manager/notify"
	"github.com/iEdgir01/traffic-manager/store"
	"github.com/iEdgir01/traffic-manager/traffic"
)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type memStore struct {
	mu      sync.Mutex
	nextID  int64
	routes  map[int64]*models.Route
	config  map[string][]byte
	records int
	listErr error
}

func newMemStore() *memStore {
	return &memStore{routes: map[int64]*models.Route{}, config: map[string][]byte{}}
}

func (m *memStore) add(name string, lat float64) *models.Route {
	r := &models.Route{Name: name, StartLat: lat, StartLng: 1, EndLat: lat + 0.1, EndLng: 1.1}
	_ = m.AddRoute(context.Background(), r)
	return r
}

func (m *memStore) ListRoutes(context.Context) ([]models.Route, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]models.Route, 0, len(m.routes))
	for _, r := range m.routes {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) GetRoute(_ context.Context, name string) (*models.Route, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.routes {
		if r.Name == name {
			cp := *r
			return &cp, nil
		}
	}
	return nil, store.ErrRouteNotFound
}

func (m *memStore) GetRouteByID(_ context.Context, id int64) (*models.Route, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.routes[id]
	if !ok {
		return nil, store.ErrRouteNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) AddRoute(_ context.Context, route *models.Route) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.routes {
		if r.Name == route.Name {
			return store.ErrRouteExists
		}
	}
	m.nextID++
	route.ID = m.nextID
	if route.Priority == "" {
		route.Priority = models.PriorityNormal
	}
	cp := *route
	m.routes[route.ID] = &cp
	return nil
}

func (m *memStore) DeleteRoute(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.routes {
		if r.Name == name {
			delete(m.routes, id)
			return nil
		}
	}
	return store.ErrRouteNotFound
}

func (m *memStore) UpdatePriority(_ context.Context, name string, p models.Priority) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.routes {
		if r.Name == name {
			r.Priority = p
			return nil
		}
	}
	return store.ErrRouteNotFound
}

func (m *memStore) RecordCheck(_ context.Context, id int64, entry models.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.routes[id]
	if !ok {
		return store.ErrRouteNotFound
	}
	r.SetHistory(store.AppendHistory(r.History(), entry, models.MaxHistory))
	state := string(entry.State)
	r.LastState = &state
	r.LastNormalTime = entry.NormalTime
	m.records++
	return nil
}

func (m *memStore) GetConfig(_ context.Context, name string, dest any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.config[name]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (m *memStore) SetConfig(_ context.Context, name string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config[name] = raw
	return nil
}

type classifyFunc func(origin geo.Coord, baseline *float64) (*traffic.Verdict, error)

func (f classifyFunc) Classify(_ context.Context, origin, _ geo.Coord, baseline *float64) (*traffic.Verdict, error) {
	return f(origin, baseline)
}

func verdict(state models.State, normal, live int) *traffic.Verdict {
	return &traffic.Verdict{
		State:         state,
		TotalNormal:   normal,
		TotalLive:     live,
		TotalDelay:    max(0, live-normal),
		DistanceKm:    3,
		HeavySegments: []traffic.Segment{},
	}
}

type recordingSender struct {
	mu   sync.Mutex
	msgs []notify.Message
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg notify.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return s.err
}

func (s *recordingSender) sent() []notify.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notify.Message(nil), s.msgs...)
}

type fakeMaps struct {
	path string
	err  error
}

func (f fakeMaps) RouteMap(context.Context, string, geo.Coord, geo.Coord, string) (string, error) {
	return f.path, f.err
}
