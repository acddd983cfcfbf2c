package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/ccgate/core"
	"github.com/layer-3/ccgate/ports"
	"github.com/layer-3/ccgate/service"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

// RouterConfig holds the optional parts of the router
type RouterConfig struct {
	MaxUploadBytes int64
	MetricsHandler http.Handler
}

// SetupRouter sets up the Gin router
func SetupRouter(authService *service.AuthService, contentStore ports.ContentStore, cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger())

	metricsHandler := cfg.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}

	router.GET("/health", Health)
	router.GET("/metrics", gin.WrapH(metricsHandler))

	// Create handlers
	authHandlers := NewAuthHandlers(authService)
	contentHandlers := NewContentHandlers(authService, contentStore, cfg.MaxUploadBytes)

	// Auth routes
	auth := router.Group("/auth")
	{
		auth.POST("/challenge", authHandlers.Challenge)
		auth.POST("/verify", authHandlers.Verify)
	}

	ipfs := router.Group("/ipfs")
	{
		ipfs.POST("/add", AuthMiddleware(authService, core.ScopeIPFSWrite), contentHandlers.Add)
		ipfs.GET("/cat/:cid", contentHandlers.Cat)
	}

	return router
}

// WithCORS allows browser wallets on any origin to call the API
func WithCORS(h http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}).Handler(h)
}
