// Package store persists routes, their check history and the key/value
// config table.
package store

import (
	"context"
	"errors"

	"github.com/iEdgir01/traffic-manager/models"
)

var (
	ErrRouteNotFound = errors.New("route not found")
	ErrRouteExists   = errors.New("route already exists")
)

// RouteStore is the only shared mutable state in the system. RecordCheck is
// atomic per route.
type RouteStore interface {
	ListRoutes(ctx context.Context) ([]models.Route, error)
	GetRoute(ctx context.Context, name string) (*models.Route, error)
	GetRouteByID(ctx context.Context, id int64) (*models.Route, error)
	AddRoute(ctx context.Context, route *models.Route) error
	DeleteRoute(ctx context.Context, name string) error
	UpdatePriority(ctx context.Context, name string, priority models.Priority) error
	// RecordCheck appends entry to the route history, keeping the newest
	// models.MaxHistory entries, and overwrites last_state and last_normal_time.
	RecordCheck(ctx context.Context, id int64, entry models.HistoryEntry) error

	GetConfig(ctx context.Context, name string, dest any) (bool, error)
	SetConfig(ctx context.Context, name string, value any) error
}
