// Package http exposes the jar ledger as a JSON API under /api.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"sixjars/internal/log"
	"sixjars/internal/middleware/ratelimit"
	"sixjars/internal/middleware/security"
	"sixjars/internal/middleware/trace"
	"sixjars/internal/services"
)

// Pinger reports whether the ledger store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services are the ledger operations the handlers call.
type Services struct {
	Jars           *services.JarLedger
	Transactions   *services.TransactionService
	Incomes        *services.IncomeService
	Stats          *services.StatsService
	Budgets        *services.BudgetService
	Goals          *services.GoalService
	Classification *services.ClassificationService
	Store          Pinger
}

type Options struct {
	Auth AuthConfig
	// RateLimitPerMinute applies per authenticated user; 0 disables it.
	RateLimitPerMinute int
	Location           *time.Location
	Now                func() time.Time
	Logger             *log.Logger
	// ReadyTimeout bounds the store ping behind /readyz.
	ReadyTimeout time.Duration
}

type Server struct {
	http.Server
	svc      Services
	auth     *Authenticator
	loc      *time.Location
	now      func() time.Time
	limiter  *ratelimit.Limiter
	tracer   *trace.Middleware
	readyTTL time.Duration

	shutdownOnce sync.Once
}

// NewServer wires the router and returns a ready-to-run server.
func NewServer(addr string, svc Services, opts Options) *Server {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentHTTP)
	}
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = 2 * time.Second
	}

	ips := security.NewIPResolver()
	s := &Server{
		svc:      svc,
		auth:     NewAuthenticator(opts.Auth),
		loc:      opts.Location,
		now:      opts.Now,
		tracer:   trace.NewMiddleware(ips.ClientIP),
		readyTTL: opts.ReadyTimeout,
	}
	if opts.RateLimitPerMinute > 0 {
		s.limiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute})
	}

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(opts.Logger, ips),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(logger *log.Logger, ips *security.IPResolver) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(log.Middleware(logger))
	r.Use(s.tracer.Handler)
	r.Use(security.Headers(security.DefaultHeadersConfig()))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "route not found", Code: "not_found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed", Code: "method_not_allowed"})
	})

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api", func(r chi.Router) {
		r.Get("/catalog", handleCatalog)

		r.Group(func(r chi.Router) {
			r.Use(s.auth.Middleware)
			if s.limiter != nil {
				r.Use(s.limiter.Middleware(func(r *http.Request) string {
					if id := UserID(r.Context()); id != "" {
						return "user:" + id
					}
					return "ip:" + ips.ClientIP(r)
				}, func(w http.ResponseWriter, r *http.Request) {
					writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded", Code: "rate_limited"})
				}))
			}

			r.Get("/jars", s.handleListJars)
			r.Post("/jars/transfer", s.handleTransfer)
			r.Post("/jars/reset", s.handleResetPeriod)
			r.Get("/jars/{code}", s.handleGetJar)
			r.Get("/jars/{code}/periods", s.handleJarPeriods)

			r.Post("/incomes", s.handleCreateIncome)
			r.Get("/incomes", s.handleListIncomes)
			r.Get("/incomes/{id}", s.handleGetIncome)

			r.Post("/expenses", s.handleCreateExpense)

			r.Get("/transactions", s.handleListTransactions)
			r.Get("/transactions/{id}", s.handleGetTransaction)
			r.Delete("/transactions/{id}", s.handleDeleteTransaction)

			r.Get("/stats", s.handleStats)
			r.Get("/stats/summary", s.handleStatsSummary)

			r.Post("/budgets", s.handleCreateBudget)
			r.Get("/budgets", s.handleListBudgets)
			r.Get("/budgets/alert", s.handleBudgetAlert)
			r.Get("/budgets/{id}", s.handleGetBudget)
			r.Put("/budgets/{id}", s.handleUpdateBudget)
			r.Delete("/budgets/{id}", s.handleDeleteBudget)

			r.Post("/goals", s.handleCreateGoal)
			r.Get("/goals", s.handleListGoals)
			r.Get("/goals/active", s.handleActiveGoals)
			r.Get("/goals/{id}", s.handleGetGoal)
			r.Put("/goals/{id}", s.handleUpdateGoal)
			r.Delete("/goals/{id}", s.handleDeleteGoal)
			r.Post("/goals/{id}/progress", s.handleGoalProgress)

			r.Post("/classify", s.handleClassify)
			r.Post("/classify/confirm", s.handleConfirmClassification)
		})
	})
	return r
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// Metrics returns the request counters collected by the trace middleware.
func (s *Server) Metrics() trace.Metrics {
	return s.tracer.GetMetrics()
}
