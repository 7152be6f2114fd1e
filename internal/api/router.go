package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"minecraft-tracker-backend/config"
	"minecraft-tracker-backend/internal/mw"
	"minecraft-tracker-backend/internal/store"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(s store.Store, webpushOptions *webpush.Options, cfg *config.ServerConfig) *gin.Engine {
	r := gin.Default()

	db := s.DB()
	handler := NewHandler(s, webpushOptions)

	limit := cfg.RateLimitPerSec
	if limit <= 0 {
		limit = 10
	}
	rateLimiter := mw.RateLimiter(rate.Limit(limit), 5)

	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	// API group
	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		// Server registry
		api.GET("/servers", GetServers(db))
		api.POST("/servers", CreateServer(db))
		api.DELETE("/servers/:server_id", DeleteServer(db))

		// Read-only aggregates derived from the tracking tables
		api.GET("/servers/:server_id/population", caching, GetServerPopulation(db))
		api.GET("/servers/:server_id/players", caching, GetServerPlayers(db))
		api.GET("/analytics", caching, GetAnalytics(db))
		api.GET("/players/top", caching, GetTopPlayers(db))

		// Push subscriptions
		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
