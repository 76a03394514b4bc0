package middleware

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"voyago/backend/internal/config"
	"voyago/backend/internal/models"
	"voyago/backend/internal/services"
	"voyago/backend/internal/utils"
)

const (
	limiterCleanupInterval = 10 * time.Minute
	limiterIdleExpiry      = 30 * time.Minute
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiterMiddleware applies a token bucket per client and route.
type RateLimiterMiddleware struct {
	clients       map[string]*clientLimiter
	mu            sync.Mutex
	cfg           *config.Config
	configService services.IConfigService
	log           *zap.Logger
}

// NewRateLimiterMiddleware creates the limiter and prunes idle clients until ctx is done.
func NewRateLimiterMiddleware(ctx context.Context, cfg *config.Config, configService services.IConfigService, log *zap.Logger) *RateLimiterMiddleware {
	rm := &RateLimiterMiddleware{
		clients:       make(map[string]*clientLimiter),
		cfg:           cfg,
		configService: configService,
		log:           log,
	}
	go rm.cleanupClients(ctx)
	return rm
}

// clientIdentifier prefers the authenticated user over the address.
func clientIdentifier(c *gin.Context) string {
	if id, ok := c.Get(ContextKeyUserID); ok {
		if userID, ok := id.(utils.SixID); ok {
			return "u:" + userID.String()
		}
	}
	return "ip:" + c.ClientIP()
}

func (rm *RateLimiterMiddleware) getClientLimiter(key string, refill, burst int) *rate.Limiter {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	cl, exists := rm.clients[key]
	if !exists {
		cl = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(refill), burst)}
		rm.clients[key] = cl
	}
	cl.lastSeen = time.Now()
	return cl.limiter
}

func (rm *RateLimiterMiddleware) cleanupClients(ctx context.Context) {
	ticker := time.NewTicker(limiterCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rm.prune(time.Now())
		}
	}
}

func (rm *RateLimiterMiddleware) prune(now time.Time) int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	removed := 0
	for key, cl := range rm.clients {
		if now.Sub(cl.lastSeen) > limiterIdleExpiry {
			delete(rm.clients, key)
			removed++
		}
	}
	if removed > 0 {
		rm.log.Debug("Rate limiter pruned idle clients", zap.Int("removed", removed))
	}
	return removed
}

// Limit creates the gin handler. Streaming routes are looked up under
// their own API type so they can carry separate limits.
func (rm *RateLimiterMiddleware) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		apiType := models.APITypeREST
		if strings.HasSuffix(route, "/stream") {
			apiType = models.APITypeStream
		}
		_, authenticated := c.Get(ContextKeyUserID)

		refill := rm.cfg.RateLimitRefillRate
		burst := rm.cfg.RateLimitBucketSize
		apiCfg, err := rm.configService.GetAPIEndpointConfig(c.Request.Context(), apiType, route, authenticated)
		if err != nil {
			rm.log.Warn("Endpoint rate limit unavailable, using defaults", zap.String("route", route), zap.Error(err))
		}
		if apiCfg != nil && apiCfg.RateLimit != nil {
			refill = apiCfg.RateLimit.TokenRefillRate
			burst = apiCfg.RateLimit.BucketSize
		}

		key := clientIdentifier(c)
		if !rm.getClientLimiter(key+"|"+route, refill, burst).Allow() {
			rm.log.Info("Rate limit exceeded", zap.String("client", key), zap.String("route", route))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}
		c.Next()
	}
}
