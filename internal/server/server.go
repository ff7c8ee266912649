// Package server exposes the responder over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/felixgeelhaar/haven/internal/observe"
	"github.com/felixgeelhaar/haven/internal/provider"
	"github.com/felixgeelhaar/haven/internal/responder"
)

// Responder is what the routes call into.
type Responder interface {
	Handle(ctx context.Context, conversation []provider.Message) (string, error)
	CheckHealth(ctx context.Context) responder.Health
}

type ChatRequest struct {
	Messages []provider.Message `json:"messages"`
}

type ChatResponse struct {
	Response string `json:"response"`
}

type ErrorResponse struct {
	Detail string `json:"detail"`
}

const shutdownGrace = 5 * time.Second

// MaxBodySize bounds request bodies; larger ones get 413 before decoding.
const MaxBodySize = "1M"

type Server struct {
	echo      *echo.Echo
	responder Responder
	observe   *observe.Observer
}

// New wires the routes. metrics may be nil to leave /metrics unmounted.
func New(r Responder, o *observe.Observer, metrics http.Handler) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{echo: e, responder: r, observe: o}

	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(MaxBodySize))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"*"},
	}))
	e.Use(s.logRequests)

	api := e.Group("/api")
	api.GET("/status", s.status)
	api.POST("/chat", s.chat)
	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics))
	}
	return s
}

// ServeHTTP lets the server be mounted or exercised with httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Run listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		s.observe.Log().Info().Str("addr", addr).Msg("listening")
		errCh <- s.echo.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown failed: %w", err)
		}
		return nil
	}
}

func (s *Server) status(c echo.Context) error {
	return c.JSON(http.StatusOK, s.responder.CheckHealth(c.Request().Context()))
}

func (s *Server) chat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Detail: "invalid request body"})
	}

	reply, err := s.responder.Handle(c.Request().Context(), req.Messages)
	if err != nil {
		if errors.Is(err, responder.ErrInvalidInput) {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Detail: err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Detail: "Error processing chat request: " + err.Error(),
		})
	}
	return c.JSON(http.StatusOK, ChatResponse{Response: reply})
}

func (s *Server) logRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		s.observe.Log().Info().
			Str("method", c.Request().Method).
			Str("path", c.Path()).
			Int("status", c.Response().Status).
			Int("ms", int(time.Since(start).Milliseconds())).
			Msg("http request")
		return err
	}
}
