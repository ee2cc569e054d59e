package router

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/api-sage/escrow-engine/src/internal/commons"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const requestTimeout = 30 * time.Second

type AccountRouteRegistrar interface {
	RegisterRoutes(r chi.Router)
}

type TransactionRouteRegistrar interface {
	RegisterAccountRoutes(r chi.Router)
	RegisterRoutes(r chi.Router)
}

type ConfigRouteRegistrar interface {
	RegisterRoutes(r chi.Router)
}

type SchedulerRouteRegistrar interface {
	RegisterRoutes(r chi.Router)
}

type Controllers struct {
	Accounts     AccountRouteRegistrar
	Transactions TransactionRouteRegistrar
	Config       ConfigRouteRegistrar
	Scheduler    SchedulerRouteRegistrar
}

func New(controllers Controllers, authMiddleware func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"success":true,"message":"ok"}`))
	})
	registerSwaggerRoutes(r)

	r.Route("/api/v1", func(api chi.Router) {
		if authMiddleware != nil {
			api.Use(authMiddleware)
		}

		api.Route("/accounts", func(r chi.Router) {
			if controllers.Accounts != nil {
				controllers.Accounts.RegisterRoutes(r)
			}
			if controllers.Transactions != nil {
				controllers.Transactions.RegisterAccountRoutes(r)
			}
		})
		if controllers.Transactions != nil {
			api.Route("/transactions", controllers.Transactions.RegisterRoutes)
		}
		if controllers.Config != nil {
			controllers.Config.RegisterRoutes(api)
		}
		if controllers.Scheduler != nil {
			controllers.Scheduler.RegisterRoutes(api)
		}
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}

func writeEnvelope(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(commons.ErrorResponse[struct{}](message))
}
