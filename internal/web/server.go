// Copyright 2024 AI SA Assistant Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package web serves the quotation form, the quotation endpoints and the
// chat endpoint over gin.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/your-org/warehouse-quote-assistant/internal/chat"
	"github.com/your-org/warehouse-quote-assistant/internal/document"
	"github.com/your-org/warehouse-quote-assistant/internal/health"
	"github.com/your-org/warehouse-quote-assistant/internal/quote"
	"github.com/your-org/warehouse-quote-assistant/internal/resilience"
)

//go:embed assets
var assets embed.FS

const (
	// ShutdownTimeout bounds graceful shutdown
	ShutdownTimeout = 10 * time.Second
	// ReadHeaderTimeout bounds reading request headers
	ReadHeaderTimeout = 10 * time.Second
)

// Deps are the components the server routes requests to.
type Deps struct {
	Calculator *quote.Calculator
	Filler     *document.Filler
	Chat       *chat.Service
	Health     *health.Manager
	Logger     *zap.Logger
	// Title is shown on the quotation form.
	Title string
}

// Server holds the HTTP handlers. The calculator can be replaced at
// runtime with SetCalculator.
type Server struct {
	filler   *document.Filler
	chat     *chat.Service
	health   *health.Manager
	errors   *resilience.ErrorHandler
	logger   *zap.Logger
	title    string
	pageTmpl *template.Template

	calculator atomic.Pointer[quote.Calculator]
}

// NewServer creates a server from deps.
func NewServer(deps Deps) (*Server, error) {
	if deps.Calculator == nil || deps.Filler == nil || deps.Chat == nil {
		return nil, errors.New("calculator, filler and chat service are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Health == nil {
		deps.Health = health.NewManager("quotebot", "dev", logger)
	}
	if deps.Title == "" {
		deps.Title = "DSV Storage Quotation"
	}

	pageTmpl, err := template.ParseFS(assets, "assets/form.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse page template: %w", err)
	}

	errorHandler := resilience.NewErrorHandler(logger).RegisterBadRequest(
		quote.ErrUnknownCategory,
		quote.ErrInvalidVolume,
		quote.ErrInvalidDays,
		errInvalidForm,
	)

	s := &Server{
		filler:   deps.Filler,
		chat:     deps.Chat,
		health:   deps.Health,
		errors:   errorHandler,
		logger:   logger,
		title:    deps.Title,
		pageTmpl: pageTmpl,
	}
	s.calculator.Store(deps.Calculator)
	return s, nil
}

// Calculator returns the calculator currently in use.
func (s *Server) Calculator() *quote.Calculator {
	return s.calculator.Load()
}

// SetCalculator replaces the calculator, e.g. after the rate table was
// reloaded.
func (s *Server) SetCalculator(c *quote.Calculator) {
	if c == nil {
		return
	}
	s.calculator.Store(c)
	s.logger.Info("Rate table replaced", zap.String("version", c.Table().Version))
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(RequestLogger(s.logger))
	router.Use(gin.Recovery())
	router.SetHTMLTemplate(s.pageTmpl)

	router.GET("/", s.handleIndex)
	router.GET("/static/chatbot.js", s.handleChatScript)
	router.GET("/health", gin.WrapF(s.health.HTTPHandler()))

	api := router.Group("/api")
	api.GET("/categories", s.handleCategories)

	router.POST("/generate", s.handleGenerate)
	router.POST("/quote", s.handleQuote)
	router.POST("/chat", s.handleChat)

	router.NoRoute(s.handleNotFound)

	return router
}

// Run serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return <-errCh
}
