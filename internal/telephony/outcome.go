package telephony

import (
	"context"
	"fmt"

	apperrors "commrouter/internal/errors"
	"commrouter/internal/models"
	"commrouter/internal/tracing"

	"github.com/sirupsen/logrus"
)

// OnDialOutcome applies the provider's report on a dial attempt. A NO_ANSWER
// for a party that is still ownerless escalates ownership to the next
// round-robin candidate (or the dispatcher) of the team named by
// targetContextID, falling back to the party's owner team. ANSWERED and
// COMPLETED make the answering agent the owner of an ownerless party.
func (d *Distributor) OnDialOutcome(ctx context.Context, partyID, commID string, outcome models.DialOutcome, targetContextID string) (models.DialResolution, error) {
	ctx, span := tracing.WithOtelTracing(ctx, "telephony.dial_outcome",
		tracing.AttrOutcome.String(string(outcome.State)),
		tracing.AttrTeamID.String(targetContextID),
	)
	defer span.End()

	resolution, err := d.onDialOutcome(ctx, partyID, commID, outcome, targetContextID)
	if err != nil {
		tracing.RecordError(ctx, err)
	}
	return resolution, err
}

func (d *Distributor) onDialOutcome(ctx context.Context, partyID, commID string, outcome models.DialOutcome, targetContextID string) (models.DialResolution, error) {
	if _, ok := models.ParseDialState(string(outcome.State)); !ok {
		return models.DialResolution{}, apperrors.NewValidationError("state", string(outcome.State), "unknown dial state")
	}

	logger := d.logger.WithFields(logrus.Fields{
		"party_id": partyID,
		"comm_id":  commID,
		"state":    outcome.State,
		"agent_id": outcome.AgentID,
	})

	if commID != "" {
		if err := d.store.SetCallStatus(ctx, commID, outcome.State); err != nil {
			return models.DialResolution{}, fmt.Errorf("failed to record call status: %w", err)
		}
	}

	var party *models.Party
	if partyID != "" {
		var err error
		party, err = d.store.GetParty(ctx, partyID)
		if err != nil {
			return models.DialResolution{}, fmt.Errorf("failed to load party: %w", err)
		}
	}

	switch outcome.State {
	case models.DialRinging:
		return d.resolutionFor(party), nil

	case models.DialAnswered, models.DialCompleted:
		status := models.AgentBusy
		if outcome.State == models.DialCompleted {
			status = models.AgentAvailable
		}
		if err := d.setAgentStatus(ctx, outcome.AgentID, status); err != nil {
			return models.DialResolution{}, err
		}
		if party == nil || party.UserID != "" || outcome.AgentID == "" {
			return d.resolutionFor(party), nil
		}
		owner, err := d.assignOwner(ctx, party.ID, outcome.AgentID)
		if err != nil {
			return models.DialResolution{}, err
		}
		logger.WithField("owner", owner).Debug("Answering agent owns the party")
		return models.DialResolution{PartyOwner: owner}, nil

	default: // NO_ANSWER
		if err := d.setAgentStatus(ctx, outcome.AgentID, models.AgentAvailable); err != nil {
			return models.DialResolution{}, err
		}
		if party == nil || party.UserID != "" {
			resolution := d.resolutionFor(party)
			resolution.Announcement = models.AnnouncementUnavailable
			return resolution, nil
		}
		return d.escalate(ctx, logger, party, outcome.AgentID, targetContextID)
	}
}

// escalate hands an unanswered ownerless party to someone other than the agent
// who did not pick up.
func (d *Distributor) escalate(ctx context.Context, logger *logrus.Entry, party *models.Party, missedAgentID, targetContextID string) (models.DialResolution, error) {
	teamID := targetContextID
	if teamID == "" {
		teamID = party.OwnerTeamID
	}
	team, err := d.store.GetTeam(ctx, teamID)
	if err != nil {
		return models.DialResolution{}, fmt.Errorf("failed to load team: %w", err)
	}
	if team == nil {
		return models.DialResolution{}, apperrors.NewNotFoundError("team", teamID)
	}

	candidate, err := d.partyOwnerExcluding(ctx, team, missedAgentID)
	if err != nil {
		return models.DialResolution{}, err
	}
	resolution := models.DialResolution{Announcement: models.AnnouncementUnavailable, Escalated: true}
	if candidate == "" {
		logger.Warn("No owner available to escalate the missed call to")
		return resolution, nil
	}

	owner, err := d.assignOwner(ctx, party.ID, candidate)
	if err != nil {
		return models.DialResolution{}, err
	}
	resolution.PartyOwner = owner
	logger.WithField("owner", owner).Info("Missed call escalated")
	return resolution, nil
}

func (d *Distributor) setAgentStatus(ctx context.Context, userID string, status models.AgentStatus) error {
	if userID == "" {
		return nil
	}
	if err := d.store.SetAgentStatus(ctx, userID, status); err != nil {
		return fmt.Errorf("failed to update agent status: %w", err)
	}
	return nil
}

func (d *Distributor) resolutionFor(party *models.Party) models.DialResolution {
	if party == nil {
		return models.DialResolution{}
	}
	return models.DialResolution{PartyOwner: party.UserID}
}
