package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/streetmed-backend/api/controllers"
	ordercontrollers "github.com/angelmondragon/streetmed-backend/api/controllers/orders"
	roundcontrollers "github.com/angelmondragon/streetmed-backend/api/controllers/rounds"
	volunteercontrollers "github.com/angelmondragon/streetmed-backend/api/controllers/volunteer"
	"github.com/angelmondragon/streetmed-backend/api/middleware"
	"github.com/angelmondragon/streetmed-backend/internal/admission"
	"github.com/angelmondragon/streetmed-backend/internal/assignments"
	"github.com/angelmondragon/streetmed-backend/internal/lottery"
	"github.com/angelmondragon/streetmed-backend/internal/orders"
	"github.com/angelmondragon/streetmed-backend/internal/rounds"
	"github.com/angelmondragon/streetmed-backend/internal/signups"
	"github.com/angelmondragon/streetmed-backend/pkg/config"
	"github.com/angelmondragon/streetmed-backend/pkg/db"
	"github.com/angelmondragon/streetmed-backend/pkg/enums"
	"github.com/angelmondragon/streetmed-backend/pkg/logger"
	"github.com/angelmondragon/streetmed-backend/pkg/redis"
)

// Services groups the domain services the HTTP surface exposes.
type Services struct {
	Orders      orders.Service
	Assignments assignments.Service
	Rounds      rounds.Service
	Signups     signups.Service
	Admission   admission.Service
	Lottery     lottery.Service
	Queue       volunteercontrollers.QueueReader
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	metricsHandler http.Handler,
	svc Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS),
	)

	var (
		idemStore redis.IdempotencyStore
		limiter   middleware.RateLimiterStore
		deps      = map[string]controllers.Pinger{}
	)
	if dbP != nil {
		deps["db"] = dbP
	}
	if redisClient != nil {
		idemStore = redisClient
		limiter = redisClient
		deps["redis"] = redisClient
	}
	idempotent := middleware.Idempotency(idemStore, logg, middleware.OptionalKey)
	keyRequired := middleware.Idempotency(idemStore, logg, middleware.RequiredKey)
	orderIntakeLimit := middleware.RateLimit(middleware.OrderIntakePolicy(cfg.RateLimit), limiter, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps))
	})

	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(cfg.JWT, logg))
			r.With(orderIntakeLimit, idempotent).Post("/orders", ordercontrollers.Create(svc.Orders, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))

			r.Get("/orders/{orderId}", ordercontrollers.Get(svc.Orders, logg))
			r.With(idempotent).Post("/orders/{orderId}/cancel", ordercontrollers.Cancel(svc.Orders, logg))

			r.Route("/volunteer", func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.ActorRoleVolunteer))
				r.Get("/queue", volunteercontrollers.Queue(svc.Queue, logg))
				r.Post("/orders/{orderId}/accept", volunteercontrollers.Accept(svc.Assignments, logg))
				r.Post("/orders/{orderId}/cancel-assignment", volunteercontrollers.CancelAssignment(svc.Assignments, logg))
				r.Get("/assignments", volunteercontrollers.ListMine(svc.Assignments, logg))
				r.Post("/assignments/{assignmentId}/start", volunteercontrollers.Start(svc.Assignments, logg))
				r.Post("/assignments/{assignmentId}/complete", volunteercontrollers.Complete(svc.Assignments, logg))
				r.Post("/rounds/{roundId}/signups", volunteercontrollers.SignUp(svc.Signups, logg))
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.ActorRoleAdmin))

				r.Route("/rounds", func(r chi.Router) {
					r.Get("/", roundcontrollers.List(svc.Rounds, logg))
					r.Post("/", roundcontrollers.Create(svc.Rounds, logg))
					r.Route("/{roundId}", func(r chi.Router) {
						r.Get("/", roundcontrollers.Get(svc.Rounds, logg))
						r.Patch("/", roundcontrollers.Update(svc.Rounds, logg))
						r.Post("/start", roundcontrollers.Start(svc.Rounds, logg))
						r.Post("/complete", roundcontrollers.Complete(svc.Rounds, logg))
						r.Post("/cancel", roundcontrollers.Cancel(svc.Rounds, logg))
						r.Get("/status", roundcontrollers.Status(svc.Rounds, logg))
						r.Get("/orders", roundcontrollers.Orders(svc.Orders, logg))
						r.Get("/signups", roundcontrollers.Signups(svc.Signups, logg))
						r.With(keyRequired).Post("/lottery", roundcontrollers.Lottery(svc.Lottery, logg))
					})
				})

				r.Post("/signups/{signupId}/confirm", roundcontrollers.ConfirmSignup(svc.Lottery, logg))
				r.Post("/signups/{signupId}/reject", roundcontrollers.RejectSignup(svc.Lottery, logg))

				r.Route("/orders", func(r chi.Router) {
					r.With(idempotent).Post("/auto-assign", ordercontrollers.AutoAssign(svc.Admission, logg))
					r.Post("/{orderId}/round", ordercontrollers.BindRound(svc.Admission, logg))
					r.Delete("/{orderId}", ordercontrollers.Delete(svc.Orders, logg))
				})
			})
		})
	})

	return r
}
