package rpc

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pooledger/core/executor"
	"pooledger/core/state"
	"pooledger/core/tx"
	"pooledger/crypto"
	"pooledger/journal"
	"pooledger/rpc/middleware"
)

const (
	defaultMaxBodyBytes = 1 << 20

	// Rate limit keys.
	LimitTransactions = "transactions"
	LimitQueries      = "queries"

	// ScopeSubmit is required on bearer tokens posting transactions.
	ScopeSubmit = "tx:submit"
)

// Backend is the ledger surface served over HTTP.
type Backend interface {
	Submit(ctx context.Context, transaction *tx.Transaction) (*executor.Receipt, error)
	Receipt(hash [32]byte) (*executor.Receipt, error)
	Record(addr crypto.Key) (*state.Record, error)
	TokenAccount(addr crypto.Key) (executor.TokenAccountView, error)
	Lender(ledger crypto.Key, id uint32) (executor.LenderView, error)
	Loan(addr crypto.Key) (executor.LoanView, error)
	Borrower(addr crypto.Key) (executor.BorrowerView, error)
	Guarantor(addr crypto.Key) (executor.GuarantorView, error)
}

// Journal is the optional history store.
type Journal interface {
	Transaction(ctx context.Context, hash string) (*executor.Receipt, error)
	Events(ctx context.Context, q journal.EventQuery) ([]journal.StoredEvent, error)
}

// Config holds the HTTP policies.
type Config struct {
	MaxBodyBytes  int64                           `toml:"MaxBodyBytes" yaml:"maxBodyBytes"`
	RateLimits    map[string]middleware.RateLimit `toml:"RateLimits" yaml:"rateLimits"`
	Auth          middleware.AuthConfig           `toml:"Auth" yaml:"auth"`
	CORS          middleware.CORSConfig           `toml:"CORS" yaml:"cors"`
	StreamOrigins []string                        `toml:"StreamOrigins" yaml:"streamOrigins"`
}

// Server exposes the ledger over HTTP.
type Server struct {
	backend Backend
	journal Journal
	hub     *Hub
	cfg     Config
	logger  *slog.Logger
	auth    *middleware.Authenticator
	limiter *middleware.RateLimiter
}

// NewServer wires a server. journal may be nil, in which case history
// endpoints fall back to committed receipts or report unavailability. hub may
// be nil to disable streaming.
func NewServer(backend Backend, j Journal, hub *Hub, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if len(cfg.StreamOrigins) == 0 {
		cfg.StreamOrigins = []string{"*"}
	}
	if hub == nil {
		hub = NewHub()
	}
	return &Server{
		backend: backend,
		journal: j,
		hub:     hub,
		cfg:     cfg,
		logger:  logger,
		auth:    middleware.NewAuthenticator(cfg.Auth, logger),
		limiter: middleware.NewRateLimiter(cfg.RateLimits, logger),
	}
}

// Hub returns the event hub fed by the executor.
func (s *Server) Hub() *Hub { return s.hub }

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.CORS(s.cfg.CORS))
	r.Use(middleware.RequestID)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(middleware.Observe("api", s.logger))

		v1.Group(func(sr chi.Router) {
			sr.Use(s.limiter.Middleware(LimitTransactions))
			sr.Use(s.auth.Middleware(ScopeSubmit))
			sr.Post("/transactions", s.handleSubmit)
		})

		v1.Group(func(sr chi.Router) {
			sr.Use(s.limiter.Middleware(LimitQueries))
			sr.Get("/transactions/{hash}", s.handleTransaction)
			sr.Get("/records/{address}", s.handleRecord)
			sr.Get("/tokens/{address}", s.handleToken)
			sr.Get("/ledgers/{address}/lenders/{id}", s.handleLender)
			sr.Get("/loans/{address}", s.handleLoan)
			sr.Get("/borrowers/{address}", s.handleBorrower)
			sr.Get("/guarantors/{address}", s.handleGuarantor)
			sr.Get("/events", s.handleEvents)
		})
		v1.Get("/events/stream", s.handleEventStream)
	})
	return r
}
