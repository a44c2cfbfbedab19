package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/trial-match-server/internal/app"
	"github.com/trial-match-server/internal/domain"
	"github.com/trial-match-server/internal/middleware"
)

const shutdownTimeout = 30 * time.Second

// MatchingService is the set of use-cases the HTTP API exposes
type MatchingService interface {
	SearchTrials(ctx context.Context, query domain.TrialQuery) ([]domain.Trial, error)
	GetTrial(ctx context.Context, nctID string) (*domain.Trial, error)
	MatchCondition(ctx context.Context, patient *domain.PatientRecord, condition string, maxTrials int, minScore float64) ([]domain.MatchResult, error)
	MatchTrial(ctx context.Context, patient *domain.PatientRecord, nctID string) (*domain.MatchResult, error)
}

// HealthFunc reports the state of the pipeline
type HealthFunc func() app.Health

// Server represents the HTTP server
type Server struct {
	config   *domain.Config
	matching MatchingService
	health   HealthFunc
	logger   *logrus.Logger
	router   *gin.Engine
	server   *http.Server
}

// NewServer creates a new HTTP server instance
func NewServer(cfg *domain.Config, matching MatchingService, health HealthFunc, logger *logrus.Logger) *Server {
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS(cfg.Server.CORSOrigins))

	server := &Server{
		config:   cfg,
		matching: matching,
		health:   health,
		logger:   logger,
		router:   router,
	}

	server.setupRoutes()

	return server
}

// NewServerFromApp creates a server over a wired application
func NewServerFromApp(a *app.App) *Server {
	return NewServer(a.Config, a.Matching, a.Health, a.Logger)
}

// Handler exposes the router for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	cfg := s.config.Server
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/", s.handleRoot)
	s.router.GET("/health", s.handleRoot)

	api := s.router.Group("/api")
	{
		api.GET("/health", s.handleHealth)

		trials := api.Group("/trials")
		trials.GET("/search", s.handleSearchTrials)
		trials.GET("/:nct_id", s.handleGetTrial)

		matching := api.Group("/matching")
		matching.POST("/match", s.handleMatchPatient)
		matching.POST("/match/:nct_id", s.handleMatchTrial)
		matching.POST("/export/csv", s.handleExportCSV)
		matching.POST("/export/json", s.handleExportJSON)
	}
}

// writeError maps domain errors to HTTP status codes
func (s *Server) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := "INTERNAL_ERROR"

	var (
		validationErr  *domain.ValidationError
		notFoundErr    *domain.NotFoundError
		registryErr    *domain.RegistryFetchError
		unavailableErr *domain.BackendUnavailableError
		configErr      *domain.ConfigurationError
	)
	switch {
	case errors.As(err, &validationErr):
		status, code = http.StatusBadRequest, domain.ErrCodeValidation
	case errors.As(err, &notFoundErr):
		status, code = http.StatusNotFound, domain.ErrCodeNotFound
	case errors.As(err, &registryErr):
		status, code = http.StatusBadGateway, domain.ErrCodeRegistryFetch
	case errors.As(err, &unavailableErr):
		status, code = http.StatusServiceUnavailable, domain.ErrCodeBackendUnavailable
	case errors.As(err, &configErr):
		code = domain.ErrCodeConfiguration
	}

	entry := s.logger.WithFields(logrus.Fields{
		"request_id": c.GetString(middleware.RequestIDKey),
		"status":     status,
		"code":       code,
	}).WithError(err)
	if status >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Debug("Request rejected")
	}

	c.AbortWithStatusJSON(status, gin.H{
		"error":      err.Error(),
		"code":       code,
		"request_id": c.GetString(middleware.RequestIDKey),
	})
}

func badRequest(field string, err error) error {
	return domain.NewValidationError(field, err.Error(), nil)
}
