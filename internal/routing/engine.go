package routing

import (
	"context"
	"fmt"

	apperrors "commrouter/internal/errors"
	"commrouter/internal/models"
	"commrouter/internal/privacy"
	"commrouter/internal/tracing"

	"github.com/sirupsen/logrus"
)

// Engine resolves inbound messages into routing decisions
type Engine struct {
	store      Store
	normalizer *Normalizer
	programs   *ProgramResolver
	targets    *TargetResolver
	guard      *ForwardingGuard
	senders    *SenderResolver
	threads    *ThreadResolver
	logger     *logrus.Logger
}

// NewEngine wires the resolution pipeline over store and sender
func NewEngine(store Store, sender OutboundSender, tenant models.TenantConfig, logger *logrus.Logger) *Engine {
	programs := NewProgramResolver(store, logger)
	return &Engine{
		store:      store,
		normalizer: NewNormalizer(store, tenant.MailDomain),
		programs:   programs,
		targets:    NewTargetResolver(store, programs, logger),
		guard:      NewForwardingGuard(store, sender, tenant, logger),
		senders:    NewSenderResolver(store, store, logger),
		threads:    NewThreadResolver(store),
		logger:     logger,
	}
}

// Resolve runs normalization, target selection, the forwarding guard, sender
// and thread resolution. It writes nothing except a forwarded record when the
// guard forwards the message.
func (e *Engine) Resolve(ctx context.Context, msg *models.InboundMessage) (models.Outcome, error) {
	ctx, span := tracing.WithOtelTracing(ctx, "routing.resolve",
		tracing.AttrChannel.String(string(msg.Channel)),
		tracing.AttrMessageID.String(privacy.MaskMessageID(msg.MessageID)),
	)
	defer span.End()

	outcome, err := e.resolve(ctx, msg)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}
	tracing.AddSpanAttributes(ctx, tracing.AttrOutcome.String(string(outcome.Kind())))
	return outcome, nil
}

func (e *Engine) resolve(ctx context.Context, msg *models.InboundMessage) (models.Outcome, error) {
	if _, ok := models.ParseChannel(string(msg.Channel)); !ok {
		return nil, apperrors.NewValidationError("channel", string(msg.Channel), "unsupported channel")
	}
	if err := e.normalizer.ValidateSender(msg); err != nil {
		return nil, err
	}

	addresses, err := e.normalizer.Normalize(ctx, msg)
	if err != nil {
		return nil, err
	}

	relay, personToPerson, err := e.detectRelay(ctx, msg, addresses)
	if err != nil {
		return nil, err
	}

	target, err := e.targets.Resolve(ctx, TargetRequest{
		Channel:               msg.Channel,
		To:                    addresses.To,
		Cc:                    addresses.Cc,
		ToTeamID:              msg.ToTeamID,
		ToUserID:              msg.ToUserID,
		TransferredFromCommID: msg.TransferredFromCommID,
		PersonToPerson:        personToPerson,
	})
	if err != nil {
		return nil, err
	}
	tracing.AddSpanAttributes(ctx, tracing.AttrTargetType.String(string(target.Type())))

	if outcome, err := e.guard.Check(ctx, msg, target, addresses.From); err != nil || outcome != nil {
		return outcome, err
	}

	var prior *models.Communication
	if msg.InReplyTo != "" && relay == nil {
		prior, err = e.store.GetCommunicationByMessageID(ctx, msg.InReplyTo)
		if err != nil {
			return nil, fmt.Errorf("failed to load replied communication: %w", err)
		}
	}

	forwardedFromName := ""
	if addresses.Forward != nil {
		forwardedFromName = addresses.Forward.ForwardedFromName
	}
	sender, err := e.senders.Resolve(ctx, SenderRequest{
		Message:           msg,
		From:              addresses.From,
		FromName:          addresses.FromName,
		ForwardedFromName: forwardedFromName,
		Target:            target,
		Prior:             prior,
		Relay:             relay,
		PersonToPerson:    personToPerson,
	})
	if err != nil {
		return nil, err
	}

	threadReq := ThreadRequest{
		Channel:         msg.Channel,
		RedialForCommID: msg.RedialForCommID,
		PersonIDs:       sender.PersonIDs,
		Prior:           prior,
	}
	if relay != nil {
		threadReq.RelayThreadID = relay.ThreadID
	}
	threadID, err := e.threads.Resolve(ctx, threadReq)
	if err != nil {
		return nil, err
	}

	module, err := e.moduleContext(ctx, target)
	if err != nil {
		return nil, err
	}

	category := models.CategoryUserCommunication
	if len(msg.LeadInformation) > 0 && msg.InReplyTo == "" {
		category = models.CategoryILS
	}

	commCtx := &models.CommunicationContext{
		Target:                target,
		Sender:                sender,
		ThreadID:              threadID,
		Channel:               msg.Channel,
		ModuleContext:         module,
		Category:              category,
		LeadInformation:       msg.LeadInformation,
		InReplyTo:             msg.InReplyTo,
		TransferredFromCommID: msg.TransferredFromCommID,
		RedialForCommID:       msg.RedialForCommID,
		IsPersonToPerson:      personToPerson,
		Forward:               addresses.Forward,
	}

	e.logger.WithFields(logrus.Fields{
		"channel":         msg.Channel,
		"target_type":     target.Type(),
		"target_id":       target.TargetID(),
		"party_count":     len(sender.PartyIDs),
		"needs_new_party": sender.NeedsNewParty,
		"from":            privacy.MaskIdentifier(addresses.From),
	}).Debug("Communication context resolved")
	return &models.RoutedOutcome{Context: commCtx}, nil
}

// detectRelay reports whether the message belongs to an anonymous
// person-to-person conversation, returning the replied relay message if any.
func (e *Engine) detectRelay(ctx context.Context, msg *models.InboundMessage, addresses *models.NormalizedAddresses) (*models.RelayMessage, bool, error) {
	if msg.Channel != models.ChannelEmail {
		return nil, false, nil
	}
	if msg.InReplyTo != "" {
		relay, err := e.store.GetRelayMessage(ctx, msg.InReplyTo)
		if err != nil {
			return nil, false, fmt.Errorf("failed to load relay message: %w", err)
		}
		if relay != nil && relay.ThreadID != "" {
			return relay, true, nil
		}
	}
	if len(addresses.To) == 0 {
		return nil, false, nil
	}
	personID, err := e.store.GetRelayAliasPerson(ctx, addresses.To[0].Value)
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up relay alias: %w", err)
	}
	return nil, personID != "", nil
}

func (e *Engine) moduleContext(ctx context.Context, target models.Target) (models.TeamModule, error) {
	teamID := models.TargetTeamID(target)
	if teamID == "" {
		return "", nil
	}
	team, err := e.store.GetTeam(ctx, teamID)
	if err != nil {
		return "", fmt.Errorf("failed to load target team: %w", err)
	}
	if team == nil || team.Module == "" {
		return models.ModuleLeasing, nil
	}
	return team.Module, nil
}
