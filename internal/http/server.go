// Package http serves the water-tracker JSON API.
package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"watertrack/internal/cache"
	"watertrack/internal/calendar"
	"watertrack/internal/core"
	"watertrack/internal/log"
	"watertrack/internal/middleware/ratelimit"
	"watertrack/internal/middleware/security"
	"watertrack/internal/middleware/trace"
	"watertrack/internal/services"
)

const apiPrefix = "/api/water-tracker"

// Tracker is the service the handlers delegate to.
type Tracker interface {
	Month(ctx context.Context, userID string, year int, month time.Month) (core.Month, error)
	Controls(ctx context.Context, userID string) (core.Controls, error)
	Today(ctx context.Context, userID string, date core.Date) (day *core.Day, created bool, err error)
	Week(ctx context.Context, userID string, date core.Date) (core.Week, error)
	AddDrink(ctx context.Context, userID, hourKey string, amount int, liquidType string) (*core.Day, error)
	StepBack(ctx context.Context, userID string, date core.Date) (*core.Day, error)
	SetDailyGoal(ctx context.Context, userID string, date core.Date, goal int) (*core.Day, error)
	SetDay(ctx context.Context, userID string, date core.Date, goal int) (*core.Day, error)
	SetControlValues(ctx context.Context, userID string, v services.ControlValues) (services.ControlValues, error)
	SetControls(ctx context.Context, userID string, c core.Controls) (core.Controls, error)
	SetAmountAndType(ctx context.Context, userID string, amount int, liquidType string) (core.Controls, error)
	Summary(ctx context.Context, userID string, year int, month time.Month) (core.MonthSummary, error)
	Ping(ctx context.Context) error
}

// Options configures NewServer.
type Options struct {
	JWTSecret          string
	RateLimitPerMinute int
	MonthCacheSize     int
	MonthCacheTTL      time.Duration
	Logger             *log.Logger
}

type Server struct {
	http.Server
	svc    Tracker
	auth   *Authenticator
	logger *log.Logger

	// Month payloads keyed by "<user>/<MM-YYYY>"
	monthCache   *cache.LRUCache[core.Month]
	cacheManager *cache.Manager

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	appMetrics       *appMetrics

	shutdownOnce sync.Once
}

type appMetrics struct {
	totalDrinks int64
	cacheHits   int64
	cacheMisses int64
	uptime      time.Time
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, svc Tracker, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	if opts.MonthCacheSize <= 0 {
		opts.MonthCacheSize = 256
	}
	if opts.MonthCacheTTL <= 0 {
		opts.MonthCacheTTL = 5 * time.Minute
	}

	detector := security.NewDetector()
	s := &Server{
		svc:              svc,
		auth:             NewAuthenticator(opts.JWTSecret),
		logger:           opts.Logger,
		monthCache:       cache.NewLRUCache[core.Month](opts.MonthCacheSize, opts.MonthCacheTTL),
		cacheManager:     cache.NewManager(),
		rateLimiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		securityDetector: detector,
		traceMiddleware:  trace.NewMiddleware(detector.ExtractClientIP),
		appMetrics:       &appMetrics{uptime: time.Now()},
	}
	s.cacheManager.Register(s.monthCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	api := http.NewServeMux()
	api.HandleFunc("GET "+apiPrefix+"/get-month", s.handleGetMonth)
	api.HandleFunc("GET "+apiPrefix+"/get-control-values", s.handleGetControls)
	api.HandleFunc("GET "+apiPrefix+"/get-today-data", s.handleGetToday)
	api.HandleFunc("GET "+apiPrefix+"/get-week-data", s.handleGetWeek)
	api.HandleFunc("GET "+apiPrefix+"/get-month-summary", s.handleGetSummary)
	api.HandleFunc("PUT "+apiPrefix+"/update-daily-amount", s.handleUpdateDailyAmount)
	api.HandleFunc("PUT "+apiPrefix+"/set-day-data", s.handleSetDay)
	api.HandleFunc("PUT "+apiPrefix+"/set-daily-goal", s.handleSetDailyGoal)
	api.HandleFunc("PUT "+apiPrefix+"/amount-step-backwards", s.handleStepBack)
	api.HandleFunc("PUT "+apiPrefix+"/set-control-values", s.handleSetControlValues)
	api.HandleFunc("PUT "+apiPrefix+"/set-control-value", s.handleSetControlValue)
	api.HandleFunc("PUT "+apiPrefix+"/set-controls-amount-and-type", s.handleSetAmountAndType)

	limited := s.rateLimiter.Middleware(detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, detector.ExtractClientIP(r),
			log.FieldComponent, log.ComponentRateLimit)
		TooManyRequestsError().Write(w)
	})

	mux := http.NewServeMux()
	mux.Handle(apiPrefix+"/", limited(s.withAuth(log.ComponentMiddleware(log.ComponentTracker)(api))))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	var handler http.Handler = mux
	handler = detector.Middleware(handler)
	handler = s.traceMiddleware.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = log.Middleware(opts.Logger)(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// withAuth rejects requests without a valid bearer token and stores the
// account id in the request context.
func (s *Server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := s.auth.UserID(r)
		if err != nil {
			log.FromContext(r.Context()).InfoContext(r.Context(), "Unauthorized request",
				log.FieldComponent, log.ComponentAuth,
				log.FieldPath, r.URL.Path,
				log.FieldError, err,
				"error_type", log.ErrorTypeAuth)
			UnauthorizedError().Write(w)
			return
		}
		ctx := withUserID(r.Context(), userID)
		ctx = context.WithValue(ctx, log.LoggerContextKey, log.FromContext(ctx).With(log.FieldUserID, userID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func monthCacheKey(userID string, year int, month time.Month) string {
	return userID + "/" + calendar.MonthKey(time.Date(year, month, 1, 0, 0, 0, 0, time.UTC))
}

// invalidate drops every cached month of userID. A day mutation can touch
// two month payloads because weeks cross month boundaries.
func (s *Server) invalidate(userID string) {
	s.monthCache.DeletePrefix(userID + "/")
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	}).Write(w)
}

// handleReady checks the repository behind the service.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := map[string]any{
		"cache":        map[string]any{"month_entries": s.monthCache.Size(), "status": "ok"},
		"rate_limiter": map[string]any{"active_clients": s.rateLimiter.ActiveClients(), "status": "ok"},
	}

	if err := s.svc.Ping(ctx); err != nil {
		checks["repository"] = "failed: " + err.Error()
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
		log.FromContext(ctx).WarnContext(ctx, "Readiness check failed", log.FieldError, err)
	} else {
		checks["repository"] = "ok"
	}

	NewResponse().Status(httpStatus).JSON(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	securityMetrics := s.securityDetector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	traceMetrics := s.traceMiddleware.GetMetrics()

	metric := func(name, kind, help string, value int64) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %s\n\n", name, help, name, kind, name, strconv.FormatInt(value, 10))
	}
	metric("http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests)
	metric("http_server_errors_total", "counter", "Responses with a 5xx status", traceMetrics.ServerErrors)
	metric("drinks_total", "counter", "Total number of drinks recorded", atomic.LoadInt64(&s.appMetrics.totalDrinks))
	metric("cache_hits_total", "counter", "Month cache hits", atomic.LoadInt64(&s.appMetrics.cacheHits))
	metric("cache_misses_total", "counter", "Month cache misses", atomic.LoadInt64(&s.appMetrics.cacheMisses))
	metric("cache_entries", "gauge", "Current month cache entries", int64(s.monthCache.Size()))
	metric("rate_limit_hits_total", "counter", "Total rate limit hits", rateLimitMetrics.TotalHits)
	metric("active_rate_limit_clients", "gauge", "Currently tracked rate limit clients", rateLimitMetrics.ClientCount)
	metric("suspicious_requests_total", "counter", "Total suspicious requests detected", securityMetrics.SuspiciousRequests)
	metric("uptime_seconds", "gauge", "Application uptime in seconds", int64(time.Since(s.appMetrics.uptime).Seconds()))
}
