package routing

import (
	"context"
	"fmt"
	"time"

	apperrors "commrouter/internal/errors"
	"commrouter/internal/models"
	"commrouter/internal/privacy"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ForwardingGuard stops internal routing for ignored or forwarding programs
type ForwardingGuard struct {
	store  CommunicationStore
	sender OutboundSender
	tenant models.TenantConfig
	logger *logrus.Logger
	now    func() time.Time
}

// NewForwardingGuard creates a guard that forwards through sender
func NewForwardingGuard(store CommunicationStore, sender OutboundSender, tenant models.TenantConfig, logger *logrus.Logger) *ForwardingGuard {
	return &ForwardingGuard{store: store, sender: sender, tenant: tenant, logger: logger, now: time.Now}
}

// Check returns a terminal outcome when the target is an ignored program or a
// program forwarding the message's channel, and nil when routing continues.
// The forward is reserved as PENDING before the send, so a redelivery finds
// the record and a forward already marked SENT is not repeated.
func (g *ForwardingGuard) Check(ctx context.Context, msg *models.InboundMessage, target models.Target, from string) (models.Outcome, error) {
	pt, ok := target.(models.ProgramTarget)
	if !ok {
		return nil, nil
	}
	if pt.ShouldIgnore {
		return &models.IgnoredOutcome{Reason: "program expired without fallback"}, nil
	}

	forwardTo, ok := pt.Program.ForwardTarget(msg.Channel)
	if !ok {
		return nil, nil
	}

	record, err := g.reserve(ctx, &models.ForwardedCommunication{
		ID:                 uuid.NewString(),
		Type:               msg.Channel,
		MessageID:          msg.MessageID,
		ProgramID:          pt.Program.ID,
		ProgramContactData: pt.Program.ContactData(msg.Channel),
		Message:            msg.Text,
		ForwardedTo:        forwardTo,
		ReceivedFrom:       from,
		Status:             models.ForwardedPending,
		CreatedAt:          g.now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	logger := g.logger.WithFields(logrus.Fields{
		"program_id":   record.ProgramID,
		"channel":      record.Type,
		"forwarded_to": privacy.MaskIdentifier(forwardTo),
	})
	if record.Status == models.ForwardedSent {
		logger.Info("Communication already forwarded, not sending again")
		return &models.ForwardedOutcome{Record: record}, nil
	}

	if err := g.sender.Send(ctx, g.buildOutbound(msg, forwardTo, from)); err != nil {
		if markErr := g.store.UpdateForwardedStatus(ctx, record.ID, models.ForwardedFailed); markErr != nil {
			logger.WithError(markErr).Warn("Failed to mark forwarded communication failed")
		}
		return nil, fmt.Errorf("failed to forward %s to external target: %w", msg.Channel, err)
	}
	if err := g.store.UpdateForwardedStatus(ctx, record.ID, models.ForwardedSent); err != nil {
		return nil, fmt.Errorf("failed to mark forwarded communication sent: %w", err)
	}
	record.Status = models.ForwardedSent

	logger.Info("Communication forwarded to external target")
	return &models.ForwardedOutcome{Record: record}, nil
}

// reserve inserts the PENDING record, or returns the one an earlier delivery
// of the same message left for this destination.
func (g *ForwardingGuard) reserve(ctx context.Context, record *models.ForwardedCommunication) (*models.ForwardedCommunication, error) {
	err := g.store.SaveForwardedCommunication(ctx, record)
	if err == nil {
		return record, nil
	}
	if !apperrors.Is(err, apperrors.ErrCodeDuplicateMessage) {
		return nil, fmt.Errorf("failed to save forwarded communication: %w", err)
	}

	existing, getErr := g.store.GetForwardedCommunication(ctx, record.MessageID, record.ForwardedTo)
	if getErr != nil {
		return nil, fmt.Errorf("failed to load forwarded communication: %w", getErr)
	}
	if existing == nil {
		return nil, fmt.Errorf("failed to save forwarded communication: %w", err)
	}
	return existing, nil
}

// buildOutbound shapes the message for the external target. SMS forwarded to a
// target that is not a phone number goes out as email.
func (g *ForwardingGuard) buildOutbound(msg *models.InboundMessage, forwardTo, from string) models.OutboundMessage {
	switch msg.Channel {
	case models.ChannelEmail:
		return models.OutboundMessage{
			Channel: models.ChannelEmail,
			To:      forwardTo,
			From:    g.tenant.OutboundFrom,
			Subject: msg.Subject,
			Text:    msg.Text,
			ReplyTo: from,
		}
	case models.ChannelSMS:
		if LooksLikePhone(forwardTo) {
			return models.OutboundMessage{
				Channel: models.ChannelSMS,
				To:      DigitsOnly(forwardTo),
				Text:    msg.Text,
			}
		}
		return models.OutboundMessage{
			Channel: models.ChannelEmail,
			To:      forwardTo,
			From:    g.tenant.OutboundFrom,
			Subject: fmt.Sprintf("SMS from %s", from),
			Text:    msg.Text,
		}
	default:
		return models.OutboundMessage{
			Channel: msg.Channel,
			To:      DigitsOnly(forwardTo),
			From:    from,
		}
	}
}
