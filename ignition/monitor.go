package ignition

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/iEdgir01/traffic-manager/observability"
)

const (
	DefaultTimeout      = 60 * time.Second
	DefaultPollInterval = time.Second
	DefaultMaxEventAge  = 300 * time.Second
	DefaultTripQueue    = 4
)

type State int

const (
	Off State = iota
	On
)

func (s State) String() string {
	if s == On {
		return "ON"
	}
	return "OFF"
}

type TripKind int

const (
	TripStarted TripKind = iota
	TripEnded
)

func (k TripKind) String() string {
	if k == TripStarted {
		return "started"
	}
	return "ended"
}

type TripEvent struct {
	Kind TripKind
	At   time.Time
}

type MonitorConfig struct {
	Timeout      time.Duration
	PollInterval time.Duration
	MaxEventAge  time.Duration
	TripQueue    int
}

func (c *MonitorConfig) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.MaxEventAge <= 0 {
		c.MaxEventAge = DefaultMaxEventAge
	}
	if c.TripQueue <= 0 {
		c.TripQueue = DefaultTripQueue
	}
}

// Monitor debounces ignition reports into trip start and end events. Handle
// and CheckTimeout must be called from a single goroutine, normally Run.
type Monitor struct {
	cfg    MonitorConfig
	logger *slog.Logger
	trips  chan TripEvent

	state     atomic.Int32
	lastMsgAt time.Time
	onAt      time.Time
}

func NewMonitor(cfg MonitorConfig, logger *slog.Logger) *Monitor {
	cfg.applyDefaults()
	return &Monitor{
		cfg:    cfg,
		logger: logger.With("component", "ignition"),
		trips:  make(chan TripEvent, cfg.TripQueue),
	}
}

func (m *Monitor) State() State { return State(m.state.Load()) }

func (m *Monitor) Trips() <-chan TripEvent { return m.trips }

// Handle applies one decoded report at processing time now. Stale ON reports
// are dropped without touching the state, so a later live report still starts
// the trip.
func (m *Monitor) Handle(msg Message, now time.Time) {
	if !msg.On {
		return
	}
	event := msg.EventTime
	if event.IsZero() {
		event = msg.ReceivedAt
	}
	if age := now.Sub(event); age > m.cfg.MaxEventAge {
		observability.IgnitionStaleDropped.Inc()
		m.logger.Warn("dropping stale ignition on", "age", age, "event_time", event)
		return
	}

	m.lastMsgAt = now
	if m.State() == On {
		return
	}

	m.state.Store(int32(On))
	m.onAt = now
	observability.IgnitionTransitions.WithLabelValues(On.String()).Inc()
	m.logger.Info("ignition on", "at", now)
	m.emit(TripEvent{Kind: TripStarted, At: now})
}

// CheckTimeout flips the state to OFF once no report arrived for the configured timeout.
func (m *Monitor) CheckTimeout(now time.Time) {
	if m.State() != On || now.Sub(m.lastMsgAt) <= m.cfg.Timeout {
		return
	}
	m.state.Store(int32(Off))
	m.logger.Info("ignition off", "at", now, "reason", "timeout", "trip_duration", now.Sub(m.onAt))
	m.lastMsgAt = time.Time{}
	m.onAt = time.Time{}
	observability.IgnitionTransitions.WithLabelValues(Off.String()).Inc()
	m.emit(TripEvent{Kind: TripEnded, At: now})
}

func (m *Monitor) emit(e TripEvent) {
	select {
	case m.trips <- e:
	default:
		observability.TripsDropped.Inc()
		m.logger.Warn("trip queue full, dropping event", "kind", e.Kind.String())
	}
}

// Run consumes reports and polls for the timeout until ctx is done. The trip
// channel is closed on return.
func (m *Monitor) Run(ctx context.Context, msgs <-chan Message) {
	defer close(m.trips)

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				msgs = nil
				continue
			}
			m.Handle(msg, time.Now())
		case now := <-ticker.C:
			m.CheckTimeout(now)
		}
	}
}
