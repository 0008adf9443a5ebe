package telephony

import (
	"context"
	"fmt"
	"sort"

	"commrouter/internal/constants"
	apperrors "commrouter/internal/errors"
	"commrouter/internal/models"

	"github.com/sirupsen/logrus"
)

// rotator hands out agents of a team in name order, one after the other,
// persisting its position on the team so the cycle survives restarts.
type rotator struct {
	store    Store
	attempts int
	logger   *logrus.Logger
}

func newRotator(store Store, attempts int, logger *logrus.Logger) *rotator {
	if attempts <= 0 {
		attempts = constants.DefaultRotationCASAttempts
	}
	return &rotator{store: store, attempts: attempts, logger: logger}
}

// next returns the first eligible agent after the team's pointer and moves the
// pointer to it. It returns nil when no agent is eligible and a retryable
// ROTATION_CONFLICT when every compare-and-swap lost to a concurrent writer.
func (r *rotator) next(ctx context.Context, team *models.Team, eligible func(*models.Agent) bool) (*models.Agent, error) {
	current := team
	for attempt := 1; attempt <= r.attempts; attempt++ {
		if attempt > 1 {
			reloaded, err := r.store.GetTeam(ctx, team.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to reload team: %w", err)
			}
			if reloaded == nil {
				return nil, apperrors.NewNotFoundError("team", team.ID)
			}
			current = reloaded
		}

		agents, err := r.store.ListTeamAgents(ctx, current.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list team agents: %w", err)
		}
		chosen := pickAfter(agents, current.Metadata.LastAssignedUser, eligible)
		if chosen == nil {
			return nil, nil
		}

		swapped, err := r.store.UpdateTeamRotation(ctx, current.ID, current.Version, chosen.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to update team rotation: %w", err)
		}
		if swapped {
			team.Metadata.LastAssignedUser = chosen.UserID
			team.Version = current.Version + 1
			return chosen, nil
		}

		r.logger.WithFields(logrus.Fields{
			"team_id": current.ID,
			"attempt": attempt,
		}).Debug("Rotation pointer changed concurrently, retrying")
	}

	return nil, apperrors.WrapRetryable(
		fmt.Errorf("rotation pointer of team %s kept changing", team.ID),
		apperrors.ErrCodeRotationConflict,
		"could not advance round-robin rotation",
	).WithContext("team_id", team.ID).WithContext("attempts", r.attempts)
}

// pickAfter orders agents by name and returns the first eligible one whose
// position lies after lastAssigned, wrapping around. A pointer that is empty,
// unknown or on a deactivated agent starts from the top; a pointer on an
// active agent that is merely busy keeps its place.
func pickAfter(agents []models.Agent, lastAssigned string, eligible func(*models.Agent) bool) *models.Agent {
	sorted := append([]models.Agent(nil), agents...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].SortKey() < sorted[j].SortKey() })

	start := 0
	for i := range sorted {
		if sorted[i].UserID == lastAssigned {
			if sorted[i].Active {
				start = i + 1
			}
			break
		}
	}

	for offset := 0; offset < len(sorted); offset++ {
		candidate := &sorted[(start+offset)%len(sorted)]
		if eligible(candidate) {
			return candidate
		}
	}
	return nil
}
