// Package api serves pipeq collections over HTTP.
//
// Routes:
//
//	GET    /health
//	GET    /api/:collection             list with query-string filters
//	POST   /api/:collection             create from a JSON body
//	GET    /api/:collection/_explain    compiled pipelines, no store access
//	GET    /api/:collection/:id
//	PATCH  /api/:collection/:id         merge a JSON body into the document
//	DELETE /api/:collection/:id
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nonibytes/pipeq/pipeq"
)

type Options struct {
	RatePerMinute int
	Burst         int
	// MaxBodyBytes caps POST and PATCH bodies. Zero means 1 MiB.
	MaxBodyBytes int64
}

type Server struct {
	collections map[string]*pipeq.Collection
	log         *zap.Logger
	opts        Options
	engine      *gin.Engine
}

// New builds the router for the given collections
func New(collections []*pipeq.Collection, log *zap.Logger, opts Options) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	s := &Server{
		collections: make(map[string]*pipeq.Collection, len(collections)),
		log:         log,
		opts:        opts,
	}
	for _, c := range collections {
		s.collections[c.Name()] = c
	}
	s.engine = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(RequestLogger(s.log))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.Use(RateLimit(s.opts.RatePerMinute, s.opts.Burst))
	{
		api.GET("/:collection", s.handleList)
		api.POST("/:collection", s.handleCreate)
		api.GET("/:collection/_explain", s.handleExplain)
		api.GET("/:collection/:id", s.handleGet)
		api.PATCH("/:collection/:id", s.handleUpdate)
		api.DELETE("/:collection/:id", s.handleDelete)
	}
	return r
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler { return s.engine }

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.ServeListener(ctx, ln)
}

func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.log.Info("shutting down http server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
