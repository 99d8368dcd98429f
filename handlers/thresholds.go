package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/iEdgir01/traffic-manager/traffic"
)

type ThresholdHandler struct {
	repo   *traffic.ThresholdRepository
	logger *slog.Logger
}

func NewThresholdHandler(repo *traffic.ThresholdRepository, logger *slog.Logger) *ThresholdHandler {
	return &ThresholdHandler{repo: repo, logger: logger.With("component", "thresholds")}
}

func (h *ThresholdHandler) Get(c *gin.Context) {
	thresholds, err := h.repo.Load(c.Request.Context())
	if err != nil {
		h.logger.Error("load thresholds failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load thresholds"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": thresholds})
}

func (h *ThresholdHandler) Put(c *gin.Context) {
	var thresholds []traffic.Threshold
	if err := c.ShouldBindJSON(&thresholds); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.repo.Save(c.Request.Context(), thresholds); err != nil {
		if errors.Is(err, traffic.ErrInvalidThresholds) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("save thresholds failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save thresholds"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": thresholds})
}

func (h *ThresholdHandler) Reset(c *gin.Context) {
	thresholds, err := h.repo.Reset(c.Request.Context())
	if err != nil {
		h.logger.Error("reset thresholds failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reset thresholds"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": thresholds})
}
