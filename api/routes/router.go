package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edurewards/edurewards-backend/api/controllers"
	"github.com/edurewards/edurewards-backend/api/middleware"
	"github.com/edurewards/edurewards-backend/internal/redemptions"
	"github.com/edurewards/edurewards-backend/pkg/config"
	"github.com/edurewards/edurewards-backend/pkg/db"
	"github.com/edurewards/edurewards-backend/pkg/enums"
	"github.com/edurewards/edurewards-backend/pkg/logger"
	"github.com/edurewards/edurewards-backend/pkg/redis"
)

// NewRouter mounts the redemption API. redisClient may be nil on offline devices, in
// which case idempotency and verify throttling are skipped.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	redemptionService redemptions.Service,
	metricsHandler http.Handler,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	deps := map[string]controllers.Pinger{}
	if dbP != nil {
		deps["db"] = dbP
	}
	var idempotencyStore redis.IdempotencyStore
	var verifyLimiter middleware.FixedWindowLimiter
	if redisClient != nil {
		deps["redis"] = redisClient
		idempotencyStore = redisClient
		verifyLimiter = redisClient
	}

	verifyPolicy := middleware.NewRateLimitPolicy(
		"verify",
		cfg.VerifyRateLimit.Window,
		cfg.VerifyRateLimit.VerifierLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps))
	})
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/redemptions", func(r chi.Router) {
			r.With(
				middleware.RequireRole(logg, enums.RoleStudent),
				middleware.Idempotency(idempotencyStore, logg),
			).Post("/", controllers.RedemptionIssue(redemptionService, logg))
			r.With(middleware.RequireRole(logg, enums.RoleStudent, enums.RoleTeacher)).Get("/", controllers.RedemptionList(redemptionService, logg))
			r.With(middleware.RequireRole(logg, enums.RoleStudent, enums.RoleTeacher)).Get("/{redemptionId}", controllers.RedemptionGet(redemptionService, logg))
			r.With(middleware.RequireRole(logg, enums.RoleStudent)).Get("/{redemptionId}/payload", controllers.RedemptionPayload(redemptionService, logg))
		})

		r.Route("/verifier", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.RoleTeacher))
			r.Post("/decode", controllers.VerifierDecode(redemptionService, logg))
			r.With(middleware.VerifierRateLimit(verifyPolicy, verifyLimiter, logg)).Post("/verify", controllers.VerifierVerify(redemptionService, logg))
		})
	})

	return r
}
