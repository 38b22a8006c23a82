package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/secmon-lab/riskregister/pkg/usecase"
)

type Server struct {
	router   *chi.Mux
	uc       *usecase.UseCases
	verifier TokenVerifier
}

type Options func(*Server)

// WithTokenVerifier requires a bearer token on every API request
func WithTokenVerifier(v TokenVerifier) Options {
	return func(s *Server) {
		s.verifier = v
	}
}

func New(uc *usecase.UseCases, opts ...Options) *Server {
	r := chi.NewRouter()

	s := &Server{
		router: r,
		uc:     uc,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1/orgs/{orgID}", func(r chi.Router) {
		r.Use(authMiddleware(s.verifier))

		r.Post("/codes", s.createCode)

		r.Route("/risks", func(r chi.Router) {
			r.Get("/", s.listRisks)
			r.Post("/", s.createRisk)
			r.Route("/{riskID}", func(r chi.Router) {
				r.Get("/", s.getRisk)
				r.Put("/", s.updateRisk)
				r.Delete("/", s.deleteRisk)
				r.Get("/residual", s.computeResidual)
				r.Get("/controls", s.listRiskControls)
				r.Put("/controls/{controlID}", s.linkControl)
				r.Delete("/controls/{controlID}", s.unlinkControl)
				r.Post("/suggestions/controls", s.suggestControls)
				r.Post("/suggestions/controls/accept", s.acceptControlSuggestion)
			})
		})

		r.Route("/controls", func(r chi.Router) {
			r.Get("/", s.listControls)
			r.Post("/", s.createControl)
			r.Route("/{controlID}", func(r chi.Router) {
				r.Get("/", s.getControl)
				r.Put("/", s.updateControl)
				r.Delete("/", s.deleteControl)
				r.Get("/risks", s.listControlRisks)
			})
		})

		r.Route("/indicators", func(r chi.Router) {
			r.Get("/", s.listIndicators)
			r.Post("/", s.createIndicator)
			r.Route("/{indicatorID}", func(r chi.Router) {
				r.Get("/", s.getIndicator)
				r.Put("/", s.updateIndicator)
				r.Delete("/", s.deleteIndicator)
				r.Get("/measurements", s.listMeasurements)
				r.Post("/measurements", s.recordMeasurement)
				r.Post("/suggestions/thresholds", s.suggestThresholds)
			})
		})

		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", s.listAlerts)
			r.Get("/{alertID}", s.getAlert)
			r.Post("/{alertID}/transitions", s.transitionAlert)
		})

		r.Route("/appetite", func(r chi.Router) {
			r.Get("/status", s.enterpriseStatus)
			r.Route("/statements", func(r chi.Router) {
				r.Get("/", s.listStatements)
				r.Post("/", s.createStatement)
				r.Get("/{statementID}", s.getStatement)
				r.Put("/{statementID}", s.updateStatement)
				r.Post("/{statementID}/approve", s.approveStatement)
				r.Post("/{statementID}/archive", s.archiveStatement)
			})
			r.Route("/categories", func(r chi.Router) {
				r.Get("/", s.listAppetiteCategories)
				r.Post("/", s.createAppetiteCategory)
				r.Put("/{categoryID}", s.updateAppetiteCategory)
				r.Delete("/{categoryID}", s.deleteAppetiteCategory)
			})
		})

		r.Route("/tolerances", func(r chi.Router) {
			r.Get("/", s.listTolerances)
			r.Post("/", s.createTolerance)
			r.Post("/evaluate", s.evaluateTolerance)
			r.Route("/{toleranceID}", func(r chi.Router) {
				r.Get("/", s.getTolerance)
				r.Put("/", s.updateTolerance)
				r.Delete("/", s.deleteTolerance)
				r.Post("/readings", s.recordReading)
			})
		})

		r.Route("/breaches", func(r chi.Router) {
			r.Get("/", s.listBreaches)
			r.Get("/{breachID}", s.getBreach)
			r.Post("/{breachID}/transitions", s.transitionBreach)
			r.Post("/{breachID}/accept", s.acceptBreach)
		})

		r.Route("/periods", func(r chi.Router) {
			r.Get("/", s.listCommits)
			r.Get("/active", s.getActivePeriod)
			r.Post("/active", s.initializePeriod)
			r.Get("/compare", s.compareSnapshots)
			r.Get("/{period}", s.getCommit)
			r.Post("/{period}/commit", s.commitPeriod)
			r.Get("/{period}/snapshots", s.listSnapshots)
		})
	})

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
