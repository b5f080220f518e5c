// Package server exposes the answer gate over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ppiankov/chronicle/internal/gate"
)

// Answerer produces a gated answer for a question
type Answerer interface {
	Answer(ctx context.Context, question string) gate.Result
}

// Server serves the ask endpoint
type Server struct {
	answerer Answerer
	examples []string
	metrics  *Metrics
	logger   *slog.Logger
}

// New creates a server around answerer
func New(answerer Answerer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		answerer: answerer,
		examples: gate.Examples,
		metrics:  NewMetrics(),
		logger:   logger,
	}
}

// AskRequest is the body of POST /ask
type AskRequest struct {
	Question string `json:"question"`
}

// AskResponse is the reply of POST /ask
type AskResponse struct {
	Answer string `json:"answer"`
}

// SetupRouter builds the gin engine
func (s *Server) SetupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.metrics.Middleware(), s.logRequests())

	r.POST("/ask", s.Ask)
	r.GET("/examples", s.Examples)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})))

	return r
}

// Ask answers one question. Capability failures are absorbed by the gate, so the only
// error reply is for a malformed request.
func (s *Server) Ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Question is required"})
		return
	}

	res := s.answerer.Answer(c.Request.Context(), question)
	s.metrics.ObserveAnswer(res.Verdict.Hedged())
	s.logger.Info("Answered question",
		"verified", res.Verdict.Verified,
		"confident", res.Verdict.Confident,
	)

	c.JSON(http.StatusOK, AskResponse{Answer: res.Response})
}

// Examples lists the sample questions
func (s *Server) Examples(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"examples": s.examples})
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("Shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
