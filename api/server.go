package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/saga/config"
	"example.com/backstage/services/saga/handlers"
	"example.com/backstage/services/saga/messaging"
	"example.com/backstage/services/saga/replay"
	"example.com/backstage/services/saga/search"
	"example.com/backstage/services/saga/tracing"
)

// Services groups the command handlers and queries the API exposes
type Services struct {
	Instances       *handlers.SagaInstanceHandler
	Steps           *handlers.SagaStepHandler
	Logs            *handlers.SagaLogHandler
	EventQueries    *handlers.EventQueries
	InstanceQueries *handlers.SagaInstanceQueries
	StepQueries     *handlers.SagaStepQueries
	LogQueries      *handlers.SagaLogQueries
	Processor       *messaging.Processor
	Replay          *replay.Service
	// Search is optional; full-text event search is only routed when set
	Search *search.ElasticClient
}

// Server is the HTTP server for the API
type Server struct {
	cfg        config.Config
	router     *gin.Engine
	httpServer *http.Server
	services   Services
	gatherer   prometheus.Gatherer
	tracer     tracing.Tracer
}

// NewServer creates a new API server
func NewServer(cfg config.Config, services Services, gatherer prometheus.Gatherer, tracer tracing.Tracer) *Server {
	if tracer == nil {
		tracer = tracing.Noop()
	}
	server := &Server{
		cfg:      cfg,
		router:   gin.New(),
		services: services,
		gatherer: gatherer,
		tracer:   tracer,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(RequestIDMiddleware())

	if s.cfg.Server.CorsEnabled {
		s.router.Use(CORSMiddleware(s.cfg.Server.CorsOrigins))
	}

	s.router.Use(gin.Recovery())

	if app := s.tracer.Application(); app != nil {
		s.router.Use(NewRelicMiddleware(app))
	}

	s.router.Use(LoggingMiddleware())
}

func (s *Server) setupRoutes() {
	s.router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	if s.cfg.Metrics.Enabled && s.gatherer != nil {
		s.router.GET(s.cfg.Metrics.Path, gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	v1 := s.router.Group("/api/v1")

	if s.services.Processor != nil {
		v1.POST("/commands", s.receiveCommand)
	}

	eventRoutes := v1.Group("/events")
	{
		eventRoutes.GET("", s.listEvents)
		eventRoutes.POST("/search", s.searchEvents)
		eventRoutes.GET("/:id", s.getEvent)
		eventRoutes.POST("/replay", s.replayEvents)
		if s.services.Search != nil {
			eventRoutes.GET("/text-search", s.textSearchEvents)
		}
	}

	instanceRoutes := v1.Group("/saga-instances")
	{
		instanceRoutes.POST("", s.createSagaInstance)
		instanceRoutes.GET("", s.listSagaInstances)
		instanceRoutes.POST("/search", s.searchSagaInstances)
		instanceRoutes.GET("/:id", s.getSagaInstance)
		instanceRoutes.PUT("/:id", s.updateSagaInstance)
		instanceRoutes.PATCH("/:id/status", s.changeSagaInstanceStatus)
		instanceRoutes.DELETE("/:id", s.deleteSagaInstance)
		instanceRoutes.GET("/:id/steps", s.listSagaInstanceSteps)
	}

	stepRoutes := v1.Group("/saga-steps")
	{
		stepRoutes.POST("", s.createSagaStep)
		stepRoutes.POST("/search", s.searchSagaSteps)
		stepRoutes.GET("/:id", s.getSagaStep)
		stepRoutes.PUT("/:id", s.updateSagaStep)
		stepRoutes.PATCH("/:id/status", s.changeSagaStepStatus)
		stepRoutes.POST("/:id/retry", s.retrySagaStep)
		stepRoutes.DELETE("/:id", s.deleteSagaStep)
	}

	logRoutes := v1.Group("/saga-logs")
	{
		logRoutes.POST("", s.createSagaLog)
		logRoutes.POST("/search", s.searchSagaLogs)
		logRoutes.GET("/:id", s.getSagaLog)
		logRoutes.DELETE("/:id", s.deleteSagaLog)
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.cfg.Server.Address,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.Timeout,
		WriteTimeout: s.cfg.Server.Timeout,
	}

	log.Info().Msgf("HTTP server starting on %s", s.cfg.Server.Address)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
