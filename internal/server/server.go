package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dfryer1193/cms/blog/domain"
	"github.com/dfryer1193/cms/internal/middleware"
	"github.com/dfryer1193/cms/internal/rest"
	webhookhttp "github.com/dfryer1193/cms/webhook/http"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 5 * time.Second

// Options configures the preview server
type Options struct {
	Addr       string
	PublishDir string
	Catalog    domain.PostCatalog
	// The webhook route is only registered when WebhookSecret is set
	WebhookSecret string
	Rebuilder     webhookhttp.Rebuilder
}

type Server struct {
	srv *http.Server
}

func New(opts Options) *Server {
	return &Server{
		srv: &http.Server{
			Addr:    opts.Addr,
			Handler: NewRouter(opts),
		},
	}
}

// NewRouter builds the gin engine serving published posts
func NewRouter(opts Options) *gin.Engine {
	router := gin.New()
	router.Use(middleware.LoggingMiddleware())
	router.Use(gin.CustomRecovery(middleware.HandlePanics()))

	rest.NewApi(router, rest.NewPostsHandler(opts.Catalog, opts.PublishDir))

	if opts.WebhookSecret != "" && opts.Rebuilder != nil {
		webhookhttp.NewWebhookHandler(opts.WebhookSecret, opts.Rebuilder).RegisterRoutes(router)
	}

	return router
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.srv.Addr).Msg("Serving content")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	log.Info().Msg("Server stopped")
	return nil
}
