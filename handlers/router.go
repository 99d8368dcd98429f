package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iEdgir01/traffic-manager/config"
	"github.com/iEdgir01/traffic-manager/middleware"
	"github.com/iEdgir01/traffic-manager/models"
	"github.com/iEdgir01/traffic-manager/services"
)

type RouterDeps struct {
	Auth       *services.AuthService
	Cache      *services.CacheService
	CORS       config.CORSConfig
	Logger     *slog.Logger
	Users      *AuthHandler
	Routes     *RouteHandler
	Checks     *CheckHandler
	Thresholds *ThresholdHandler
}

func NewRouter(d RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.SetupCORS(d.CORS))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "UP",
			"message": "Traffic manager API is running",
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := router.Group("/auth")
	auth.POST("/login", d.Users.Login)
	auth.POST("/register", d.Users.Register)
	auth.POST("/logout", d.Users.Logout)

	router.GET("/ws/alerts", AlertsWebSocket(d.Cache, d.Auth, d.Logger))

	admin := middleware.RequireRole(models.RoleAdmin)
	api := router.Group("/api", middleware.RequireAuth(d.Auth))
	api.GET("/routes", d.Routes.List)
	api.POST("/routes", admin, d.Routes.Create)
	api.DELETE("/routes/:name", admin, d.Routes.Delete)
	api.PATCH("/routes/:name/priority", admin, d.Routes.SetPriority)
	api.POST("/routes/:id/check", admin, d.Checks.CheckRoute)
	api.POST("/checks", admin, d.Checks.CheckAll)
	api.GET("/thresholds", d.Thresholds.Get)
	api.PUT("/thresholds", admin, d.Thresholds.Put)
	api.POST("/thresholds/reset", admin, d.Thresholds.Reset)

	return router
}
