package routing

import (
	"context"
	"fmt"
	"time"

	"commrouter/internal/constants"
	apperrors "commrouter/internal/errors"
	"commrouter/internal/models"

	"github.com/sirupsen/logrus"
)

// ProgramResolver applies end-date and fallback rules to a matched program
type ProgramResolver struct {
	store  ProgramStore
	logger *logrus.Logger
	now    func() time.Time
}

// NewProgramResolver creates a resolver that evaluates expiry at the current time
func NewProgramResolver(store ProgramStore, logger *logrus.Logger) *ProgramResolver {
	return &ProgramResolver{store: store, logger: logger, now: time.Now}
}

// Resolve decides whether candidate can be routed to. An expired program with
// no fallback comes back with ShouldIgnore set; an expired program with a
// valid fallback is replaced by it. Fallbacks are followed at most
// constants.MaxProgramFallbackHops times.
func (r *ProgramResolver) Resolve(ctx context.Context, candidate *models.Program) (models.ProgramTarget, error) {
	now := r.now()
	if !candidate.IsExpiredAt(now) {
		return models.ProgramTarget{Program: candidate}, nil
	}

	if candidate.ProgramFallbackID == "" {
		r.logger.WithFields(logrus.Fields{
			"program_id": candidate.ID,
			"end_date":   candidate.EndDate,
		}).Info("Program expired without fallback, message will be ignored")
		return models.ProgramTarget{Program: candidate, ShouldIgnore: true}, nil
	}

	current := candidate
	for hop := 0; hop < constants.MaxProgramFallbackHops; hop++ {
		fallback, err := r.store.GetProgramByID(ctx, current.ProgramFallbackID)
		if err != nil {
			return models.ProgramTarget{}, fmt.Errorf("failed to load fallback program: %w", err)
		}
		if fallback == nil || fallback.IsExpiredAt(now) {
			return models.ProgramTarget{}, apperrors.NewInvalidFallbackProgramError(candidate.ID, current.ProgramFallbackID)
		}
		current = fallback
	}

	r.logger.WithFields(logrus.Fields{
		"program_id":          candidate.ID,
		"fallback_program_id": current.ID,
	}).Debug("Program expired, routing to fallback")
	return models.ProgramTarget{Program: current, OriginalProgram: candidate}, nil
}
