package v1

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/clinicore/diagnostic-service/internal/config"
	"github.com/clinicore/diagnostic-service/internal/domain"
	"github.com/clinicore/diagnostic-service/pkg/auth"
	"github.com/clinicore/diagnostic-service/pkg/metrics"
)

const claimsContextKey = "claims"

// Authenticate verifies the bearer token and stores the reconstructed
// identity on the request context. Nothing is persisted.
func Authenticate(jwtManager *auth.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			respondError(c, http.StatusUnauthorized, "authentication required")
			c.Abort()
			return
		}

		token := strings.TrimPrefix(header, "Bearer ")
		if token == "" || token == header {
			respondError(c, http.StatusUnauthorized, "bearer token not provided")
			c.Abort()
			return
		}

		claims, err := jwtManager.ValidateAccessToken(token)
		if err != nil {
			respondError(c, http.StatusUnauthorized, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set(claimsContextKey, claims)
		c.Next()
	}
}

// RequireRole rejects authenticated callers whose role is not in the
// allow-list. Pure check, no I/O.
func RequireRole(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := ClaimsFromContext(c)
		if claims == nil {
			respondError(c, http.StatusUnauthorized, "authentication required")
			c.Abort()
			return
		}

		for _, role := range roles {
			if claims.Role == role {
				c.Next()
				return
			}
		}

		respondError(c, http.StatusForbidden, "access denied")
		c.Abort()
	}
}

func ClaimsFromContext(c *gin.Context) *domain.Claims {
	v, ok := c.Get(claimsContextKey)
	if !ok {
		return nil
	}
	claims, ok := v.(*domain.Claims)
	if !ok {
		return nil
	}
	return claims
}

// CORS reflects the request origin when it is in the allow-list. The
// Allow-Origin header takes a single value, so multiple configured
// origins cannot simply be joined.
func CORS(cfg config.CORSConfig) gin.HandlerFunc {
	allowAll := false
	allowed := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}

	methods := strings.Join(cfg.AllowedMethods, ", ")
	headers := strings.Join(cfg.AllowedHeaders, ", ")
	maxAge := strconv.Itoa(int(cfg.MaxAge.Seconds()))

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case allowAll:
			c.Header("Access-Control-Allow-Origin", "*")
		case origin != "" && allowed[origin]:
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Methods", methods)
		c.Header("Access-Control-Allow-Headers", headers)
		c.Header("Access-Control-Max-Age", maxAge)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

const (
	rateLimitIdleTTL    = 10 * time.Minute
	rateLimitSweepEvery = time.Minute
)

type rateLimitClient struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func pruneIdleClients(clients map[string]*rateLimitClient, now time.Time) {
	for ip, cl := range clients {
		if now.Sub(cl.lastSeen) > rateLimitIdleTTL {
			delete(clients, ip)
		}
	}
}

// RateLimit applies a per-IP token bucket across all routes. Idle entries
// are swept periodically so the map does not grow with every client IP
// the process has ever seen.
func RateLimit(cfg config.RateLimitConfig) gin.HandlerFunc {
	var mu sync.Mutex
	clients := make(map[string]*rateLimitClient)
	lastSweep := time.Now()

	return func(c *gin.Context) {
		ip := c.ClientIP()
		now := time.Now()

		mu.Lock()
		if now.Sub(lastSweep) > rateLimitSweepEvery {
			pruneIdleClients(clients, now)
			lastSweep = now
		}
		cl, ok := clients[ip]
		if !ok {
			cl = &rateLimitClient{
				lim: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.BurstSize),
			}
			clients[ip] = cl
		}
		cl.lastSeen = now
		mu.Unlock()

		if !cl.lim.Allow() {
			respondError(c, http.StatusTooManyRequests, "rate limit exceeded")
			c.Abort()
			return
		}

		c.Next()
	}
}

func Metrics(col *metrics.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		col.InFlightGauge.Inc()

		c.Next()

		col.InFlightGauge.Dec()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		col.RequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		col.RequestDuration.WithLabelValues(c.Request.Method, path, status).
			Observe(time.Since(start).Seconds())
	}
}

func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		)
	}
}
