package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/m-mizutani/ctxlog"

	"github.com/m-mizutani/playpack/pkg/controller/event"
	"github.com/m-mizutani/playpack/pkg/domain/interfaces"
	"github.com/m-mizutani/playpack/pkg/utils/async"
)

// config holds internal HTTP server configuration
type config struct {
	addr          string
	webhookSecret string
	snsTopicARNs  []string
}

// Option is a functional option for Server configuration
type Option func(*config)

// WithAddr sets the server address
func WithAddr(addr string) Option {
	return func(c *config) {
		c.addr = addr
	}
}

// WithWebhookSecret sets the GitHub webhook secret. The GitHub endpoint is
// served only when a secret is set.
func WithWebhookSecret(secret string) Option {
	return func(c *config) {
		c.webhookSecret = secret
	}
}

// WithSNSTopicARNs sets the topics whose notifications are accepted. The SNS
// endpoint is served only when at least one topic is set.
func WithSNSTopicARNs(arns ...string) Option {
	return func(c *config) {
		c.snsTopicARNs = append(c.snsTopicARNs, arns...)
	}
}

// Server represents the HTTP server
type Server struct {
	*http.Server
	dispatcher *async.Dispatcher
}

// NewServer creates a new HTTP server
func NewServer(
	ctx context.Context,
	buildUC interfaces.BuildUseCase,
	opts ...Option,
) (*Server, error) {
	cfg := &config{
		addr: "localhost:8080",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	logger := ctxlog.From(ctx)
	dispatcher := async.New()
	processor := event.NewProcessor(buildUC)

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(LoggingMiddleware(ctx))
	router.Use(middleware.Recoverer)

	router.Get("/health", handleHealth)

	if cfg.webhookSecret != "" {
		router.Post("/hooks/github", NewWebhookHandler(cfg.webhookSecret, processor, dispatcher).Handle)
	} else {
		logger.Warn("GitHub webhook secret is not set, /hooks/github is disabled")
	}

	if len(cfg.snsTopicARNs) > 0 {
		router.Post("/hooks/sns", NewSNSHandler(cfg.snsTopicARNs, processor, dispatcher).Handle)
	} else {
		logger.Warn("No SNS topic is allowed, /hooks/sns is disabled")
	}

	server := &Server{
		Server: &http.Server{
			Addr:              cfg.addr,
			Handler:           router,
			ReadHeaderTimeout: 15 * time.Second,
		},
		dispatcher: dispatcher,
	}

	return server, nil
}

// Wait blocks until builds started by accepted events have finished
func (s *Server) Wait(ctx context.Context) error {
	return s.dispatcher.Wait(ctx)
}
