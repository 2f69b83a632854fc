package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/clinicore/diagnostic-service/internal/config"
	"github.com/clinicore/diagnostic-service/internal/domain"
	"github.com/clinicore/diagnostic-service/pkg/auth"
	"github.com/clinicore/diagnostic-service/pkg/metrics"
)

func NewRouter(cfg *config.Config, h *DiagnosticHandler, jwtManager *auth.JWTManager, col *metrics.Collector, log *zap.Logger) *gin.Engine {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(
		gin.Recovery(),
		RequestLogger(log),
		CORS(cfg.CORS),
		RateLimit(cfg.RateLimit),
		Metrics(col),
	)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.MetricsHandler()))

	api := r.Group("/api/v1/diagnostic")

	// Public search, no token required
	api.GET("/diagnostics/search", h.Search)

	authed := api.Group("", Authenticate(jwtManager))
	authed.GET("/patients/:patientId/diagnostics",
		RequireRole(domain.RolePatient, domain.RoleDoctor, domain.RoleAdmin), h.List)
	authed.POST("/patients/:patientId/diagnostics",
		RequireRole(domain.RoleDoctor, domain.RoleAdmin), h.Create)
	authed.DELETE("/diagnostics/:id",
		RequireRole(domain.RoleAdmin), h.Delete)

	return r
}
