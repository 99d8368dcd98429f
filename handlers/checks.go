package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/iEdgir01/traffic-manager/services"
	"github.com/iEdgir01/traffic-manager/store"
)

type RouteChecker interface {
	CheckByID(ctx context.Context, id int64, notify bool) (services.Result, error)
	CheckAll(ctx context.Context, notify bool) ([]services.Result, error)
}

type CheckHandler struct {
	checker RouteChecker
	logger  *slog.Logger
}

func NewCheckHandler(checker RouteChecker, logger *slog.Logger) *CheckHandler {
	return &CheckHandler{checker: checker, logger: logger.With("component", "checks")}
}

func notifyParam(c *gin.Context) bool {
	v, _ := strconv.ParseBool(c.DefaultQuery("notify", "false"))
	return v
}

func (h *CheckHandler) CheckRoute(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid route id"})
		return
	}

	res, err := h.checker.CheckByID(c.Request.Context(), id, notifyParam(c))
	switch {
	case errors.Is(err, store.ErrRouteNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	case err != nil:
		h.logger.Error("check route failed", "route_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "check failed"})
	case errors.Is(res.Err, services.ErrRouteBusy):
		c.JSON(http.StatusConflict, res)
	default:
		c.JSON(http.StatusOK, res)
	}
}

func (h *CheckHandler) CheckAll(c *gin.Context) {
	results, err := h.checker.CheckAll(c.Request.Context(), notifyParam(c))
	if err != nil {
		h.logger.Error("check all failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "check failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": results})
}
