package service

import (
	"context"
	"fmt"

	apperrors "commrouter/internal/errors"
	"commrouter/internal/events"
	"commrouter/internal/metrics"
	"commrouter/internal/models"
	"commrouter/internal/telephony"

	"github.com/sirupsen/logrus"
)

// CallRouter decides who rings for a call and applies dial outcomes
type CallRouter interface {
	RouteCall(ctx context.Context, team *models.Team, party *models.Party) (telephony.CallRoute, error)
	RouteToUser(ctx context.Context, userID string, party *models.Party) (telephony.CallRoute, error)
	SelectCallReceivers(ctx context.Context, team *models.Team) (models.Receivers, error)
	OnDialOutcome(ctx context.Context, partyID, commID string, outcome models.DialOutcome, targetContextID string) (models.DialResolution, error)
}

// CallStore is what the call service reads
type CallStore interface {
	GetTeam(ctx context.Context, id string) (*models.Team, error)
	GetParty(ctx context.Context, id string) (*models.Party, error)
}

// DialOutcomeRequest is a provider report on one dial attempt of a stored call
type DialOutcomeRequest struct {
	CommunicationID string             `json:"communication_id"`
	PartyID         string             `json:"party_id,omitempty"`
	TeamID          string             `json:"team_id,omitempty"`
	Outcome         models.DialOutcome `json:"outcome"`
}

// CallService fronts the distributor for the HTTP surface and the intake flow
type CallService struct {
	store   CallStore
	router  CallRouter
	metrics *metrics.Registry
	events  emitter
	logger  *logrus.Logger
}

func NewCallService(store CallStore, router CallRouter, publisher events.Publisher, registry *metrics.Registry, logger *logrus.Logger) *CallService {
	return &CallService{
		store:   store,
		router:  router,
		metrics: registry,
		events:  emitter{publisher: publisher, metrics: registry, logger: logger},
		logger:  logger,
	}
}

// Receivers selects call receivers for teamID without a caller context.
func (s *CallService) Receivers(ctx context.Context, teamID string) (models.Receivers, error) {
	team, err := s.team(ctx, teamID)
	if err != nil {
		return models.Receivers{}, err
	}
	receivers, err := s.router.SelectCallReceivers(ctx, team)
	if err != nil {
		return models.Receivers{}, err
	}
	s.metrics.RecordCallReceivers(string(receivers.Type))
	return receivers, nil
}

// Route picks receivers for an inbound call to teamID. It reports whether the
// call made someone the owner of a previously ownerless party.
func (s *CallService) Route(ctx context.Context, teamID string, party *models.Party) (telephony.CallRoute, bool, error) {
	team, err := s.team(ctx, teamID)
	if err != nil {
		return telephony.CallRoute{}, false, err
	}
	hadOwner := party != nil && party.UserID != ""

	route, err := s.router.RouteCall(ctx, team, party)
	if err != nil {
		return telephony.CallRoute{}, false, err
	}
	s.metrics.RecordCallReceivers(string(route.Receivers.Type))

	s.logger.WithFields(logrus.Fields{
		LogFieldTeamID:       teamID,
		LogFieldReceiverType: route.Receivers.Type,
		LogFieldCount:        len(route.Receivers.UserIDs),
	}).Debug("Call routed")
	return route, party != nil && !hadOwner && route.PartyOwner != "", nil
}

// RouteToUser rings userID directly for a call addressed to them.
func (s *CallService) RouteToUser(ctx context.Context, userID string, party *models.Party) (telephony.CallRoute, error) {
	if userID == "" {
		return telephony.CallRoute{}, apperrors.NewValidationError("user_id", "", "user id is required")
	}
	route, err := s.router.RouteToUser(ctx, userID, party)
	if err != nil {
		return telephony.CallRoute{}, err
	}
	s.metrics.RecordCallReceivers(string(route.Receivers.Type))

	s.logger.WithFields(logrus.Fields{
		LogFieldUserID:       userID,
		LogFieldReceiverType: route.Receivers.Type,
	}).Debug("Call routed to user")
	return route, nil
}

// DialOutcome applies a dial report and announces any resulting owner change.
func (s *CallService) DialOutcome(ctx context.Context, req DialOutcomeRequest) (models.DialResolution, error) {
	if req.CommunicationID == "" {
		return models.DialResolution{}, apperrors.NewValidationError("communication_id", "", "communication id is required")
	}

	var before *models.Party
	if req.PartyID != "" {
		var err error
		before, err = s.store.GetParty(ctx, req.PartyID)
		if err != nil {
			return models.DialResolution{}, fmt.Errorf("failed to load party: %w", err)
		}
		if before == nil {
			return models.DialResolution{}, apperrors.NewNotFoundError("party", req.PartyID)
		}
	}

	resolution, err := s.router.OnDialOutcome(ctx, req.PartyID, req.CommunicationID, req.Outcome, req.TeamID)
	if err != nil {
		return models.DialResolution{}, err
	}
	s.metrics.RecordDialOutcome(string(req.Outcome.State), resolution.Escalated)

	logger := s.logger.WithFields(logrus.Fields{
		LogFieldCommunicationID: req.CommunicationID,
		LogFieldPartyID:         req.PartyID,
		LogFieldDialState:       req.Outcome.State,
	})
	if before != nil && before.UserID == "" && resolution.PartyOwner != "" {
		reason := "answered"
		if resolution.Escalated {
			reason = "escalated"
		}
		s.events.ownerAssigned(ctx, req.CommunicationID, req.PartyID, resolution.PartyOwner, req.CommunicationID, reason)
		logger.WithField(LogFieldUserID, resolution.PartyOwner).Info("Party owner assigned after dial outcome")
	} else {
		logger.Debug("Dial outcome applied")
	}
	return resolution, nil
}

func (s *CallService) team(ctx context.Context, teamID string) (*models.Team, error) {
	if teamID == "" {
		return nil, apperrors.NewValidationError("team_id", "", "team id is required")
	}
	team, err := s.store.GetTeam(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to load team: %w", err)
	}
	if team == nil {
		return nil, apperrors.NewNotFoundError("team", teamID)
	}
	return team, nil
}
