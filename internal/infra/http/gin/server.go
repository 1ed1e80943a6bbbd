package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"karta/internal/infra/config"
	"karta/internal/infra/obs"
)

type ListingHTTP interface {
	Catalog(c *gin.Context)
	Get(c *gin.Context)
	Create(c *gin.Context)
	Update(c *gin.Context)
	Delete(c *gin.Context)
	Publish(c *gin.Context)
}

type StreamHTTP interface {
	Stream(c *gin.Context)
}

type MediaHTTP interface {
	UploadPhoto(c *gin.Context)
}

// Handlers collects the HTTP surfaces the server mounts. Nil entries
// are skipped, which keeps partial wiring possible in tests.
type Handlers struct {
	Listing        ListingHTTP
	Stream         StreamHTTP
	Auth           AuthHTTP
	Media          MediaHTTP
	AuthMiddleware gin.HandlerFunc
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	applyGinMode(cfg.Env, obsMW)

	router := gin.New()
	router.Use(gin.Recovery(), obsMW.RequestID(), obsMW.LoggerMiddleware(), cors.New(corsPolicy()))
	if h.AuthMiddleware != nil {
		router.Use(h.AuthMiddleware)
	}

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)
	mountAPI(router.Group("/api/v1"), h)

	return &http.Server{Addr: cfg.HTTPAddr, Handler: router}
}

func mountAPI(api *gin.RouterGroup, h Handlers) {
	if h.Auth != nil {
		api.POST("/auth/register", h.Auth.Register)
		api.POST("/auth/login", h.Auth.Login)
		api.POST("/auth/logout", h.Auth.Logout)
		api.GET("/auth/me", h.Auth.Me)
	}
	if h.Listing != nil {
		api.GET("/listings", h.Listing.Catalog)
		api.POST("/listings", h.Listing.Create)
		api.GET("/listings/:id", h.Listing.Get)
		api.PUT("/listings/:id", h.Listing.Update)
		api.DELETE("/listings/:id", h.Listing.Delete)
		api.POST("/listings/:id/publish", h.Listing.Publish)
	}
	if h.Stream != nil {
		api.GET("/listings/stream", h.Stream.Stream)
	}
	if h.Media != nil {
		api.POST("/listings/:id/photo", h.Media.UploadPhoto)
	}
}

func corsPolicy() cors.Config {
	return cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "Idempotency-Key", "Last-Event-ID"},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}
}

func applyGinMode(env string, obsMW obs.Middleware) {
	mode := gin.ReleaseMode
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		mode = gin.DebugMode
	case "test", "testing":
		mode = gin.TestMode
	}
	gin.SetMode(mode)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}
}
