package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"commrouter/internal/constants"
	apperrors "commrouter/internal/errors"
	"commrouter/internal/features"
	"commrouter/internal/httputil"
	"commrouter/internal/metrics"
	"commrouter/internal/middleware"
	"commrouter/internal/models"
	"commrouter/internal/service"
	"commrouter/internal/tracing"
	"commrouter/internal/validation"
	"commrouter/internal/versioning"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// InboundProcessor accepts one inbound message from a provider webhook.
type InboundProcessor interface {
	Process(ctx context.Context, msg *models.InboundMessage) (*service.IntakeResult, error)
}

// CallHandler answers the telephony provider's call-control requests.
type CallHandler interface {
	Receivers(ctx context.Context, teamID string) (models.Receivers, error)
	DialOutcome(ctx context.Context, req service.DialOutcomeRequest) (models.DialResolution, error)
}

// HealthChecker reports whether the store is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Server struct {
	router   *mux.Router
	logger   *logrus.Logger
	cfg      models.ServerConfig
	intake   InboundProcessor
	calls    CallHandler
	health   HealthChecker
	registry *metrics.Registry
	flags    *features.FlagManager
	verbose  bool
	now      func() time.Time
	server   *http.Server
}

func NewServer(cfg models.ServerConfig, intake InboundProcessor, calls CallHandler, health HealthChecker, registry *metrics.Registry, flags *features.FlagManager, logger *logrus.Logger, verbose bool) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		logger:   logger,
		cfg:      cfg,
		intake:   intake,
		calls:    calls,
		health:   health,
		registry: registry,
		flags:    flags,
		verbose:  verbose,
		now:      time.Now,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.ObservabilityMiddleware(s.logger, s.registry))

	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)
	if s.flags.IsEnabled(features.FlagFlagsEndpoint) {
		s.router.HandleFunc("/flags", s.handleFlags()).Methods(http.MethodGet)
	}

	v1 := s.router.PathPrefix("/v1").Subrouter()
	if s.flags.IsEnabled(features.FlagAPIVersioning) {
		v1.Use(versioning.NewVersionMiddleware(s.logger).VersionHandler)
	}
	if s.flags.IsEnabled(features.FlagRateLimiting) {
		limit := s.cfg.RateLimitPerMinute
		if limit <= 0 {
			limit = constants.DefaultRateLimitPerMinute
		}
		v1.Use(middleware.RateLimitMiddleware(middleware.NewRateLimiter(limit, time.Minute), s.registry))
	}

	v1.HandleFunc("/inbound", s.handleInbound()).Methods(http.MethodPost)
	v1.HandleFunc("/teams/{id}/receivers", s.handleReceivers()).Methods(http.MethodPost)
	v1.Handle("/calls/{commId}/outcome", versioning.RequireVersion(versioning.V1_1_0)(s.handleDialOutcome())).Methods(http.MethodPost)
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.IdleTimeoutSec) * time.Second,
	}

	s.logger.WithField("port", s.cfg.Port).Info("Starting server")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.health.Ping(r.Context()); err != nil {
			s.logger.WithError(err).Warn("Health check failed")
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// handleInbound accepts a normalized inbound message. Duplicates answer 200
// so the provider stops redelivering; retryable failures answer 5xx so it
// tries again.
func (s *Server) handleInbound() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := service.WithVerboseLogging(r.Context(), s.verbose)
		requestID := tracing.GetRequestID(ctx)

		body, ok := s.verifiedBody(w, r)
		if !ok {
			return
		}

		var msg models.InboundMessage
		if err := httputil.DecodeJSONBytes(body, &msg); err != nil {
			httputil.WriteError(w, err, requestID)
			return
		}
		if err := validation.ValidateInboundEnvelope(&msg); err != nil {
			httputil.WriteError(w, err, requestID)
			return
		}
		if msg.ReceivedAt.IsZero() {
			msg.ReceivedAt = s.now().UTC()
		}

		result, err := s.intake.Process(ctx, &msg)
		if err != nil {
			httputil.WriteError(w, err, requestID)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, result)
	}
}

func (s *Server) handleFlags() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, s.flags.ListFlags())
	}
}

// handleReceivers advances the team's rotation and marks the dialed agent
// busy, so it is a signed POST like the other provider webhooks.
func (s *Server) handleReceivers() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := tracing.GetRequestID(r.Context())
		if _, ok := s.verifiedBody(w, r); !ok {
			return
		}
		receivers, err := s.calls.Receivers(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			httputil.WriteError(w, err, requestID)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, receivers)
	}
}

// dialOutcomeBody is what the telephony provider posts for one dial leg.
type dialOutcomeBody struct {
	PartyID string `json:"party_id"`
	TeamID  string `json:"team_id,omitempty"`
	State   string `json:"state"`
	AgentID string `json:"agent_id,omitempty"`
}

func (s *Server) handleDialOutcome() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := tracing.GetRequestID(r.Context())

		body, ok := s.verifiedBody(w, r)
		if !ok {
			return
		}

		var req dialOutcomeBody
		if err := httputil.DecodeJSONBytes(body, &req); err != nil {
			httputil.WriteError(w, err, requestID)
			return
		}
		state, valid := models.ParseDialState(req.State)
		if !valid {
			httputil.WriteError(w, apperrors.NewValidationError("state", req.State, "unknown dial state"), requestID)
			return
		}

		resolution, err := s.calls.DialOutcome(r.Context(), service.DialOutcomeRequest{
			CommunicationID: mux.Vars(r)["commId"],
			PartyID:         req.PartyID,
			TeamID:          req.TeamID,
			Outcome:         models.DialOutcome{State: state, AgentID: req.AgentID},
		})
		if err != nil {
			httputil.WriteError(w, err, requestID)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, resolution)
	}
}

// verifiedBody checks the webhook signature and writes the error response
// itself when the request is rejected.
func (s *Server) verifiedBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	maxSkew := time.Duration(s.cfg.WebhookMaxSkewSec) * time.Second
	body, err := verifySignature(r, s.cfg.WebhookSecret, maxSkew, constants.DefaultMaxRequestBodyBytes, s.now())
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			service.LogFieldRequestID: tracing.GetRequestID(r.Context()),
			service.LogFieldRemoteIP:  httputil.ClientIP(r),
			service.LogFieldErrorCode: apperrors.GetCode(err),
		}).Warn("Rejected webhook request")
		httputil.WriteError(w, err, tracing.GetRequestID(r.Context()))
		return nil, false
	}
	return body, true
}
