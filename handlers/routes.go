package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/iEdgir01/traffic-manager/geo"
	"github.com/iEdgir01/traffic-manager/models"
	"github.com/iEdgir01/traffic-manager/store"
)

const routesCachePrefix = "routes:list:"

// RouteRepository is a RouteStore that can also page routes by name.
type RouteRepository interface {
	store.RouteStore
	ListRoutesAfter(ctx context.Context, after string, limit int) ([]models.Route, error)
}

// RouteCache is the subset of services.CacheService the route handlers use.
type RouteCache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) error
}

type MapRemover interface {
	Remove(name string) error
}

type RouteView struct {
	models.Route
	DistanceKm float64 `json:"straight_line_km"`
}

func newRouteView(r models.Route) RouteView {
	km := geo.HaversineKm(geo.Coord{Lat: r.StartLat, Lng: r.StartLng}, geo.Coord{Lat: r.EndLat, Lng: r.EndLng})
	return RouteView{Route: r, DistanceKm: math.Round(km*100) / 100}
}

type RouteHandler struct {
	routes RouteRepository
	cache  RouteCache
	maps   MapRemover
	logger *slog.Logger

	// generation is bumped by every mutation; a page read under an older
	// generation is not cached.
	generation atomic.Uint64
}

func NewRouteHandler(routes RouteRepository, cache RouteCache, maps MapRemover, logger *slog.Logger) *RouteHandler {
	return &RouteHandler{routes: routes, cache: cache, maps: maps, logger: logger.With("component", "routes")}
}

func (h *RouteHandler) List(c *gin.Context) {
	p := ParsePagination(c)
	cacheKey := fmt.Sprintf("%s%s:%d", routesCachePrefix, p.After, p.Limit)

	gen := h.generation.Load()
	var cached CursorResponse
	if found, err := h.cache.Get(c.Request.Context(), cacheKey, &cached); err == nil && found {
		c.JSON(http.StatusOK, cached)
		return
	}

	rows, err := h.routes.ListRoutesAfter(c.Request.Context(), p.After, p.Limit+1)
	if err != nil {
		h.logger.Error("list routes failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database query failed"})
		return
	}

	hasMore := len(rows) > p.Limit
	if hasMore {
		rows = rows[:p.Limit]
	}
	views := make([]RouteView, 0, len(rows))
	for _, r := range rows {
		views = append(views, newRouteView(r))
	}

	var nextCursor string
	if hasMore && len(rows) > 0 {
		nextCursor = rows[len(rows)-1].Name
	}

	resp := CursorResponse{Data: views, NextCursor: nextCursor, HasMore: hasMore}
	if h.generation.Load() == gen {
		if err := h.cache.Set(c.Request.Context(), cacheKey, resp, 10*time.Second); err != nil {
			h.logger.Warn("route list cache write failed", "error", err)
		}
	}

	c.JSON(http.StatusOK, resp)
}

type CreateRouteRequest struct {
	Name     string `json:"name" binding:"required"`
	Start    string `json:"start" binding:"required"`
	End      string `json:"end" binding:"required"`
	Priority string `json:"priority"`
}

func (h *RouteHandler) Create(c *gin.Context) {
	var req CreateRouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name must not be blank"})
		return
	}
	start, err := geo.ParseDMSPair(req.Start)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start: " + err.Error()})
		return
	}
	end, err := geo.ParseDMSPair(req.End)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end: " + err.Error()})
		return
	}
	priority, ok := models.ParsePriority(req.Priority)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "priority must be Normal or High"})
		return
	}

	route := models.Route{
		Name:     name,
		StartLat: start.Lat,
		StartLng: start.Lng,
		EndLat:   end.Lat,
		EndLng:   end.Lng,
		Priority: priority,
	}
	if err := h.routes.AddRoute(c.Request.Context(), &route); err != nil {
		if errors.Is(err, store.ErrRouteExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "route name already exists"})
			return
		}
		h.logger.Error("add route failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to add route"})
		return
	}
	h.invalidate(c.Request.Context())
	h.logger.Info("route added", "route", route.Name, "priority", route.Priority)
	c.JSON(http.StatusCreated, newRouteView(route))
}

func (h *RouteHandler) Delete(c *gin.Context) {
	name := c.Param("name")
	if err := h.routes.DeleteRoute(c.Request.Context(), name); err != nil {
		if errors.Is(err, store.ErrRouteNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
			return
		}
		h.logger.Error("delete route failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete route"})
		return
	}
	if h.maps != nil {
		if err := h.maps.Remove(name); err != nil {
			h.logger.Warn("remove route map failed", "route", name, "error", err)
		}
	}
	h.invalidate(c.Request.Context())
	c.Status(http.StatusNoContent)
}

type PriorityRequest struct {
	Priority string `json:"priority" binding:"required"`
}

func (h *RouteHandler) SetPriority(c *gin.Context) {
	var req PriorityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	priority, ok := models.ParsePriority(req.Priority)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "priority must be Normal or High"})
		return
	}
	name := c.Param("name")
	if err := h.routes.UpdatePriority(c.Request.Context(), name, priority); err != nil {
		if errors.Is(err, store.ErrRouteNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
			return
		}
		h.logger.Error("update priority failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update priority"})
		return
	}
	h.invalidate(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"name": name, "priority": priority})
}

func (h *RouteHandler) invalidate(ctx context.Context) {
	h.generation.Add(1)
	if err := h.cache.DeletePrefix(ctx, routesCachePrefix); err != nil {
		h.logger.Warn("route cache invalidation failed", "error", err)
	}
}
