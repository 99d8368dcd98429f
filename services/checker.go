package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/iEdgir01/traffic-manager/alert"
	"github.com/iEdgir01/traffic-manager/geo"
	"github.com/iEdgir01/traffic-manager/models"
	"github.com/iEdgir01/traffic-manager/notify"
	"github.com/iEdgir01/traffic-manager/observability"
	"github.com/iEdgir01/traffic-manager/store"
	"github.com/iEdgir01/traffic-manager/traffic"
)

// ErrRouteBusy means another process holds the check lock for the route.
var ErrRouteBusy = errors.New("route check already in progress")

type Classifier interface {
	Classify(ctx context.Context, origin, destination geo.Coord, baseline *float64) (*traffic.Verdict, error)
}

type MapRenderer interface {
	RouteMap(ctx context.Context, name string, start, end geo.Coord, polyline string) (string, error)
}

// AlertEvent is published on AlertsChannel for every dispatched alert.
type AlertEvent struct {
	ID         string       `json:"id"`
	RouteID    int64        `json:"route_id"`
	Route      string       `json:"route"`
	Priority   string       `json:"priority"`
	Kind       string       `json:"kind"`
	State      models.State `json:"state"`
	Previous   models.State `json:"previous_state,omitempty"`
	DelayMin   int          `json:"delay_min"`
	LiveMin    int          `json:"live_min"`
	NormalMin  int          `json:"normal_min"`
	DistanceKm float64      `json:"distance_km"`
	Summary    string       `json:"summary"`
	At         time.Time    `json:"at"`
}

type Result struct {
	RouteID  int64            `json:"route_id"`
	Name     string           `json:"name"`
	State    models.State     `json:"state"`
	Previous models.State     `json:"previous_state,omitempty"`
	Verdict  *traffic.Verdict `json:"verdict,omitempty"`
	Alert    string           `json:"alert"`
	Notified bool             `json:"notified"`
	Error    string           `json:"error,omitempty"`
	Err      error            `json:"-"`
}

func (r *Result) fail(state models.State, err error) {
	r.State = state
	r.Err = err
	r.Error = err.Error()
}

type CheckerConfig struct {
	Concurrency  int
	SegmentLimit int
	LockTTL      time.Duration
}

type CheckerDeps struct {
	Store      store.RouteStore
	Classifier Classifier
	// Sender, Maps and Cache are optional.
	Sender notify.Sender
	Maps   MapRenderer
	Cache  *CacheService
	Logger *slog.Logger
}

// Checker runs the read state, classify, alert, record sequence for routes.
// Checks of the same route never interleave.
type Checker struct {
	cfg  CheckerConfig
	deps CheckerDeps
	log  *slog.Logger
	now  func() time.Time

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func NewChecker(cfg CheckerConfig, deps CheckerDeps) *Checker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.SegmentLimit <= 0 {
		cfg.SegmentLimit = alert.DefaultSegmentLimit
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = time.Minute
	}
	return &Checker{
		cfg:   cfg,
		deps:  deps,
		log:   deps.Logger.With("component", "checker"),
		now:   time.Now,
		locks: make(map[int64]*sync.Mutex),
	}
}

func (c *Checker) routeLock(id int64) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[id]
	if !ok {
		l = &sync.Mutex{}
		c.locks[id] = l
	}
	return l
}

func (c *Checker) CheckByID(ctx context.Context, id int64, notify bool) (Result, error) {
	route, err := c.deps.Store.GetRouteByID(ctx, id)
	if err != nil {
		return Result{RouteID: id}, err
	}
	return c.CheckRoute(ctx, route.ID, route.Name, notify), nil
}

// CheckAll checks every stored route with bounded parallelism. A failing route
// is reported in its Result and never stops the batch.
func (c *Checker) CheckAll(ctx context.Context, notify bool) ([]Result, error) {
	start := time.Now()
	defer func() {
		observability.CheckCycleDuration.Observe(time.Since(start).Seconds())
	}()

	routes, err := c.deps.Store.ListRoutes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list routes: %w", err)
	}

	results := make([]Result, len(routes))
	var g errgroup.Group
	g.SetLimit(c.cfg.Concurrency)
	for i, r := range routes {
		g.Go(func() error {
			results[i] = c.CheckRoute(ctx, r.ID, r.Name, notify)
			return nil
		})
	}
	_ = g.Wait()

	alerts := 0
	for _, r := range results {
		if r.Notified {
			alerts++
		}
	}
	c.log.Info("check cycle finished", "routes", len(routes), "alerts", alerts, "duration", time.Since(start))
	return results, nil
}

// CheckRoute checks one route. Previous state is read under the route lock so
// that concurrent checks of the same route see each other's results.
func (c *Checker) CheckRoute(ctx context.Context, id int64, name string, notify bool) Result {
	res := Result{RouteID: id, Name: name}
	logger := c.log.With("route", name, "route_id", id)

	l := c.routeLock(id)
	l.Lock()
	defer l.Unlock()

	release, acquired, err := c.deps.Cache.Lock(ctx, fmt.Sprintf("traffic:lock:route:%d", id), c.cfg.LockTTL)
	if err != nil {
		logger.Warn("route lock unavailable, continuing with local lock", "error", err)
	} else if !acquired {
		observability.RouteChecks.WithLabelValues("busy").Inc()
		res.fail(models.StateUnknown, ErrRouteBusy)
		return res
	}
	defer release()

	route, err := c.deps.Store.GetRouteByID(ctx, id)
	if err != nil {
		observability.RouteChecks.WithLabelValues("store_error").Inc()
		logger.Error("load route failed", "error", err)
		res.fail(models.StateError, err)
		return res
	}
	res.Name = route.Name
	res.Previous = route.PreviousState()

	var baseline *float64
	if mean, ok := traffic.Baseline(route.History()); ok {
		baseline = &mean
	}

	start := geo.Coord{Lat: route.StartLat, Lng: route.StartLng}
	end := geo.Coord{Lat: route.EndLat, Lng: route.EndLng}
	verdict, err := c.deps.Classifier.Classify(ctx, start, end, baseline)
	if errors.Is(err, traffic.ErrNoRoutes) {
		observability.RouteChecks.WithLabelValues("no_routes").Inc()
		logger.Warn("no routes returned, skipping")
		res.fail(models.StateUnknown, err)
		return res
	}
	if err != nil {
		observability.RouteChecks.WithLabelValues("error").Inc()
		logger.Error("classification failed", "error", err)
		res.fail(models.StateError, err)
		return res
	}
	res.State = verdict.State
	res.Verdict = verdict

	decision := alert.Decide(res.Previous, verdict.State)
	res.Alert = decision.Kind.String()
	if notify && decision.Alert() {
		res.Notified = c.dispatch(ctx, logger, route, verdict, decision)
	}

	normal := verdict.TotalNormal
	entry := models.HistoryEntry{Timestamp: c.now().UTC(), NormalTime: &normal, State: verdict.State}
	if err := c.deps.Store.RecordCheck(ctx, route.ID, entry); err != nil {
		observability.RouteChecks.WithLabelValues("store_error").Inc()
		logger.Error("record check failed", "error", err)
		res.Err = err
		res.Error = err.Error()
		return res
	}

	observability.RouteChecks.WithLabelValues(string(verdict.State)).Inc()
	logger.Info("route checked",
		"state", verdict.State, "previous", res.Previous, "normal", verdict.TotalNormal,
		"live", verdict.TotalLive, "delay", verdict.TotalDelay, "alert", res.Alert)
	return res
}

// dispatch sends the alert and publishes it. Failures are logged only.
func (c *Checker) dispatch(ctx context.Context, logger *slog.Logger, route *models.Route, v *traffic.Verdict, d alert.Decision) bool {
	msg := alert.Compose(route, v, d, c.now(), c.cfg.SegmentLimit)

	if c.deps.Maps != nil {
		start := geo.Coord{Lat: route.StartLat, Lng: route.StartLng}
		end := geo.Coord{Lat: route.EndLat, Lng: route.EndLng}
		if path, err := c.deps.Maps.RouteMap(ctx, route.Name, start, end, v.Polyline); err != nil {
			logger.Warn("route map unavailable", "error", err)
		} else {
			msg.Image = &notify.Attachment{Path: path}
		}
	}

	sent := false
	if c.deps.Sender != nil {
		if err := c.deps.Sender.Send(ctx, msg); err != nil {
			observability.AlertsFailed.Inc()
			logger.Error("alert delivery failed", "error", err)
		} else {
			observability.AlertsSent.Inc()
			logger.Info("alert sent", "kind", d.Kind.String())
			sent = true
		}
	}

	event := AlertEvent{
		ID:         uuid.NewString(),
		RouteID:    route.ID,
		Route:      route.Name,
		Priority:   string(route.Priority),
		Kind:       d.Kind.String(),
		State:      v.State,
		Previous:   route.PreviousState(),
		DelayMin:   v.TotalDelay,
		LiveMin:    v.TotalLive,
		NormalMin:  v.TotalNormal,
		DistanceKm: v.DistanceKm,
		Summary:    alert.Sentence(route.Name, v, d),
		At:         c.now().UTC(),
	}
	if c.deps.Cache.Available() {
		if err := c.deps.Cache.Publish(ctx, AlertsChannel, event); err != nil {
			logger.Warn("alert publish failed", "error", err)
		} else {
			observability.AlertsPublished.Inc()
		}
	}
	return sent
}
