package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"finboard/internal/core"
	"finboard/internal/log"
	"finboard/internal/middleware/ratelimit"
	"finboard/internal/middleware/security"
	"finboard/internal/middleware/trace"
	"finboard/internal/services"
)

const defaultRequestTimeout = 7 * time.Second

// Ledger is what the API needs from the ledger service.
type Ledger interface {
	Today() core.Date
	Reconciled(ctx context.Context, user string, scope core.Scope, month core.Month) (services.Reconciliation, error)
	Metrics(ctx context.Context, user string, scope core.Scope, from, to core.Month) (services.MetricsReport, error)
	CreateItem(ctx context.Context, user string, in services.NewItem) (core.FinanceItem, error)
	UpdateItem(ctx context.Context, user, id string, patch services.ItemPatch) (core.FinanceItem, error)
	ToggleStatus(ctx context.Context, user, id string) (core.FinanceItem, error)
	DeleteItem(ctx context.Context, user, id string) error
	ConfirmFixed(ctx context.Context, user string, scope core.Scope, syntheticID string, status core.StatusType) (core.FinanceItem, error)
	ListTemplates(ctx context.Context, user string, scope core.Scope) ([]core.FixedTemplate, error)
	DeactivateTemplate(ctx context.Context, user, id string) error
	ListCategories(ctx context.Context, user string) ([]string, error)
	CreateCategory(ctx context.Context, user, name string) (string, error)
	CreateBoard(ctx context.Context, user, name string) (core.FinanceBoard, error)
	ListBoards(ctx context.Context, user string) ([]core.FinanceBoard, error)
}

// Options configures NewServer.
type Options struct {
	Addr               string
	RequestTimeout     time.Duration
	RateLimitPerMinute int
	// Ready reports whether the backing store can serve requests.
	Ready  func(ctx context.Context) error
	Logger *log.Logger
}

type Server struct {
	http.Server
	ledger   Ledger
	ready    func(ctx context.Context) error
	limiter  *ratelimit.Limiter
	tracer   *trace.Middleware
	clientIP *security.ClientIPResolver
	logger   *log.Logger
	timeout  time.Duration
	started  time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(ledger Ledger, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	if opts.Ready == nil {
		opts.Ready = func(context.Context) error { return nil }
	}
	logger := opts.Logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		ledger:   ledger,
		ready:    opts.Ready,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		clientIP: security.NewClientIPResolver(),
		logger:   logger,
		timeout:  opts.RequestTimeout,
		started:  time.Now(),
	}
	s.tracer = trace.NewMiddleware(logger, s.clientIP.ClientIP)

	api := http.NewServeMux()
	api.HandleFunc("GET /api/items", s.handleListItems)
	api.HandleFunc("POST /api/items", s.handleCreateItem)
	api.HandleFunc("PUT /api/items/{id}", s.handleUpdateItem)
	api.HandleFunc("DELETE /api/items/{id}", s.handleDeleteItem)
	api.HandleFunc("POST /api/items/{id}/toggle", s.handleToggleItem)
	api.HandleFunc("POST /api/items/{id}/confirm", s.handleConfirmItem)
	api.HandleFunc("GET /api/metrics", s.handleMetrics)
	api.HandleFunc("GET /api/templates", s.handleListTemplates)
	api.HandleFunc("POST /api/templates/{id}/deactivate", s.handleDeactivateTemplate)
	api.HandleFunc("GET /api/categories", s.handleListCategories)
	api.HandleFunc("POST /api/categories", s.handleCreateCategory)
	api.HandleFunc("GET /api/boards", s.handleListBoards)
	api.HandleFunc("POST /api/boards", s.handleCreateBoard)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("/api/", s.limiter.Middleware(s.rateLimitKey, func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, s.clientIP.ClientIP(r),
			log.FieldUserID, r.Header.Get(UserHeader))
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded").Write(w)
	})(api))

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           headers.Middleware(s.tracer.Middleware(mux)),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// rateLimitKey buckets requests per user, or per address when anonymous.
func (s *Server) rateLimitKey(r *http.Request) string {
	if user, err := userID(r); err == nil {
		return "user:" + user
	}
	return "ip:" + s.clientIP.ClientIP(r)
}

// requestContext bounds store work done on behalf of r.
func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.timeout)
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
