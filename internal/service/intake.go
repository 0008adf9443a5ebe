package service

import (
	"context"
	"fmt"
	"time"

	"commrouter/internal/dedup"
	apperrors "commrouter/internal/errors"
	"commrouter/internal/events"
	"commrouter/internal/metrics"
	"commrouter/internal/models"
	"commrouter/internal/privacy"
	"commrouter/internal/telephony"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Resolver turns an inbound message into a routing outcome
type Resolver interface {
	Resolve(ctx context.Context, msg *models.InboundMessage) (models.Outcome, error)
}

// IntakeStore persists routed communications. RunInTx makes the store calls
// done with the context it hands to fn, call distribution included, one unit.
type IntakeStore interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
	SaveCommunication(ctx context.Context, c *models.Communication) error
	GetParty(ctx context.Context, id string) (*models.Party, error)
}

// IntakeResult reports what happened to one inbound message
type IntakeResult struct {
	Outcome       models.OutcomeKind             `json:"outcome,omitempty"`
	Duplicate     bool                           `json:"duplicate,omitempty"`
	Reason        string                         `json:"reason,omitempty"`
	Context       *models.CommunicationContext   `json:"context,omitempty"`
	Communication *models.Communication          `json:"communication,omitempty"`
	Forwarded     *models.ForwardedCommunication `json:"forwarded,omitempty"`
	Call          *telephony.CallRoute           `json:"call,omitempty"`
}

// IntakeService is the single entry point for inbound messages: it drops
// redeliveries, resolves, persists and announces the result.
type IntakeService struct {
	resolver  Resolver
	store     IntakeStore
	calls     *CallService
	window    dedup.Window
	metrics   *metrics.Registry
	events    emitter
	logger    *logrus.Logger
	errLogger *apperrors.Logger
	now       func() time.Time
	newID     func() string
}

func NewIntakeService(resolver Resolver, store IntakeStore, calls *CallService, window dedup.Window, publisher events.Publisher, registry *metrics.Registry, logger *logrus.Logger) *IntakeService {
	return &IntakeService{
		resolver:  resolver,
		store:     store,
		calls:     calls,
		window:    window,
		metrics:   registry,
		events:    emitter{publisher: publisher, metrics: registry, logger: logger},
		logger:    logger,
		errLogger: apperrors.FromLogrus(logger),
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Process handles one inbound message. A redelivery of a message id already
// claimed inside the duplicate window is a successful no-op. On failure the
// claim is released so the caller's queue can redeliver.
func (s *IntakeService) Process(ctx context.Context, msg *models.InboundMessage) (*IntakeResult, error) {
	if msg == nil {
		return nil, apperrors.NewValidationError("message", "", "message is required")
	}
	start := s.now()
	channel := string(msg.Channel)
	LogInbound(ctx, s.logger, msg)

	if msg.MessageID != "" {
		if err := ValidateMessageID(msg.MessageID); err != nil {
			return nil, apperrors.NewValidationError("message_id", SanitizeMessageID(msg.MessageID), err.Error())
		}
		claimed, err := s.window.Claim(ctx, msg.MessageID)
		if err != nil {
			s.fail(err, msg)
			return nil, err
		}
		if !claimed {
			s.metrics.RecordDuplicate(channel)
			s.logger.WithFields(logrus.Fields{
				LogFieldMessageID: SanitizeMessageID(msg.MessageID),
				LogFieldChannel:   channel,
			}).Info("Skipping inbound message: duplicate delivery")
			return &IntakeResult{Duplicate: true}, nil
		}
	}

	result, err := s.process(ctx, msg)
	if err != nil {
		s.release(ctx, msg.MessageID)
		s.fail(err, msg)
		return nil, err
	}

	s.metrics.RecordResolve(string(result.Outcome), channel, s.now().Sub(start))
	return result, nil
}

func (s *IntakeService) process(ctx context.Context, msg *models.InboundMessage) (*IntakeResult, error) {
	outcome, err := s.resolver.Resolve(ctx, msg)
	if err != nil {
		return nil, err
	}

	logger := s.logger.WithFields(logrus.Fields{
		LogFieldMessageID: SanitizeMessageID(msg.MessageID),
		LogFieldChannel:   msg.Channel,
		LogFieldOutcome:   outcome.Kind(),
	})

	switch o := outcome.(type) {
	case *models.RoutedOutcome:
		result, err := s.routed(ctx, msg, o.Context)
		if err != nil {
			return nil, err
		}
		logger.WithFields(logrus.Fields{
			LogFieldCommunicationID: result.Communication.ID,
			LogFieldTargetType:      result.Communication.TargetType,
			LogFieldThreadID:        result.Communication.ThreadID,
		}).Info("Inbound message routed")
		return result, nil

	case *models.ForwardedOutcome:
		record := o.Record
		s.events.emit(ctx, events.TypeCommunicationForwarded, msg.MessageID, events.CommunicationForwarded{
			ForwardedID: record.ID,
			MessageID:   record.MessageID,
			ProgramID:   record.ProgramID,
			Channel:     string(record.Type),
			ForwardedTo: record.ForwardedTo,
		})
		logger.WithFields(logrus.Fields{
			LogFieldProgramID: record.ProgramID,
			LogFieldTo:        privacy.MaskIdentifier(record.ForwardedTo),
		}).Info("Inbound message forwarded")
		return &IntakeResult{Outcome: models.OutcomeForwarded, Forwarded: record}, nil

	case *models.IgnoredOutcome:
		logger.WithField(LogFieldReason, o.Reason).Info("Skipping inbound message: ignored")
		return &IntakeResult{Outcome: models.OutcomeIgnored, Reason: o.Reason}, nil

	default:
		return nil, apperrors.New(apperrors.ErrCodeInternalError, fmt.Sprintf("unexpected outcome %T", outcome))
	}
}

// routed stores the communication for a routing decision. Call distribution
// and the save share one transaction so a failed save leaves no rotation,
// agent status or ownership change behind; events go out after the commit.
func (s *IntakeService) routed(ctx context.Context, msg *models.InboundMessage, cc *models.CommunicationContext) (*IntakeResult, error) {
	if cc == nil || cc.Target == nil {
		return nil, apperrors.New(apperrors.ErrCodeInternalError, "routed outcome without a target")
	}
	comm := s.communication(msg, cc)
	result := &IntakeResult{Outcome: models.OutcomeRouted, Context: cc, Communication: comm}

	var call *routedCall
	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		if cc.Channel == models.ChannelCall {
			var err error
			if call, err = s.routeCall(ctx, cc); err != nil {
				return err
			}
		}
		if err := s.store.SaveCommunication(ctx, comm); err != nil {
			return fmt.Errorf("failed to save communication: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.emit(ctx, events.TypeCommunicationReceived, msg.MessageID, events.CommunicationReceived{
		CommunicationID: comm.ID,
		MessageID:       comm.MessageID,
		Channel:         string(comm.Channel),
		ThreadID:        comm.ThreadID,
		TargetType:      comm.TargetType,
		TargetID:        comm.TargetID,
		PartyIDs:        comm.PartyIDs,
		PersonIDs:       comm.PersonIDs,
		ModuleContext:   string(cc.ModuleContext),
		Category:        string(comm.Category),
		NeedsNewParty:   cc.Sender.NeedsNewParty,
	})
	if call != nil {
		result.Call = &call.route
		if call.newOwner {
			s.events.ownerAssigned(ctx, msg.MessageID, call.party.ID, call.route.PartyOwner, comm.ID, "inbound call")
		}
	}
	return result, nil
}

type routedCall struct {
	route    telephony.CallRoute
	party    *models.Party
	newOwner bool
}

// routeCall rings the user a call is addressed to, otherwise runs the target
// team's strategy. A target with neither is not distributed.
func (s *IntakeService) routeCall(ctx context.Context, cc *models.CommunicationContext) (*routedCall, error) {
	userID := directUserID(cc.Target)
	teamID := models.TargetTeamID(cc.Target)
	if userID == "" && teamID == "" {
		s.logger.WithField(LogFieldTargetType, cc.Target.Type()).Debug("Skipping call distribution: target has no team or user")
		return nil, nil
	}

	party, err := s.callParty(ctx, cc)
	if err != nil {
		return nil, err
	}
	call := &routedCall{party: party}
	if userID != "" {
		call.route, err = s.calls.RouteToUser(ctx, userID, party)
	} else {
		call.route, call.newOwner, err = s.calls.Route(ctx, teamID, party)
	}
	if err != nil {
		return nil, err
	}
	return call, nil
}

func directUserID(target models.Target) string {
	switch t := target.(type) {
	case models.TeamMemberTarget:
		return t.UserID
	case models.IndividualTarget:
		return t.UserID
	}
	return ""
}

func (s *IntakeService) communication(msg *models.InboundMessage, cc *models.CommunicationContext) *models.Communication {
	comm := &models.Communication{
		ID:         s.newID(),
		MessageID:  msg.MessageID,
		ThreadID:   cc.ThreadID,
		Channel:    cc.Channel,
		Direction:  models.DirectionIn,
		PartyIDs:   cc.Sender.PartyIDs,
		PersonIDs:  cc.Sender.PersonIDs,
		From:       cc.Sender.From,
		Text:       msg.Text,
		Category:   cc.Category,
		TargetType: string(cc.Target.Type()),
		TargetID:   cc.Target.TargetID(),
		CreatedAt:  s.now().UTC(),
	}
	if teamID := models.TargetTeamID(cc.Target); teamID != "" {
		comm.TeamIDs = []string{teamID}
	}
	switch t := cc.Target.(type) {
	case models.TeamMemberTarget:
		comm.UserID = t.UserID
	case models.IndividualTarget:
		comm.UserID = t.UserID
	case models.ProgramTarget:
		if t.Program != nil {
			comm.ProgramID = t.Program.ID
		}
	case models.TeamTarget:
		if t.Program != nil {
			comm.ProgramID = t.Program.ID
		}
	}
	return comm
}

// callParty is the party a call belongs to: the addressed party, otherwise the
// caller's most recently updated party.
func (s *IntakeService) callParty(ctx context.Context, cc *models.CommunicationContext) (*models.Party, error) {
	var partyID string
	if t, ok := cc.Target.(models.PartyTarget); ok {
		partyID = t.ID
	} else if len(cc.Sender.PartyIDs) > 0 {
		partyID = cc.Sender.PartyIDs[0]
	}
	if partyID == "" {
		return nil, nil
	}
	party, err := s.store.GetParty(ctx, partyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load caller party: %w", err)
	}
	return party, nil
}

func (s *IntakeService) release(ctx context.Context, messageID string) {
	if messageID == "" {
		return
	}
	if err := s.window.Release(ctx, messageID); err != nil {
		s.logger.WithError(err).WithField(LogFieldMessageID, SanitizeMessageID(messageID)).
			Warn("Failed to release duplicate window claim")
	}
}

func (s *IntakeService) fail(err error, msg *models.InboundMessage) {
	s.metrics.RecordResolveError(string(apperrors.GetCode(err)), string(msg.Channel))
	s.errLogger.LogRoutingError(err, "Failed to process inbound message", logrus.Fields{
		LogFieldMessageID: SanitizeMessageID(msg.MessageID),
		LogFieldChannel:   msg.Channel,
	})
}
