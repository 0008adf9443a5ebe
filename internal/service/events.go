package service

import (
	"context"

	"commrouter/internal/events"
	"commrouter/internal/metrics"

	"github.com/sirupsen/logrus"
)

// emitter publishes events on a best-effort basis: a failed publish is logged
// and counted but never fails the operation that produced the event.
type emitter struct {
	publisher events.Publisher
	metrics   *metrics.Registry
	logger    *logrus.Logger
}

func (e emitter) emit(ctx context.Context, eventType, correlationID string, data interface{}) {
	if e.publisher == nil {
		return
	}
	env := events.NewEnvelope(eventType, correlationID, data)
	if err := e.publisher.Publish(ctx, env); err != nil {
		e.metrics.RecordEventPublishFailure(eventType)
		e.logger.WithError(err).WithFields(logrus.Fields{
			LogFieldEventType: eventType,
			LogFieldMessageID: SanitizeMessageID(correlationID),
		}).Warn("Failed to publish event")
	}
}

func (e emitter) ownerAssigned(ctx context.Context, correlationID, partyID, userID, commID, reason string) {
	e.emit(ctx, events.TypePartyOwnerAssigned, correlationID, events.PartyOwnerAssigned{
		PartyID:         partyID,
		UserID:          userID,
		CommunicationID: commID,
		Reason:          reason,
	})
}
