package routing

import (
	"context"
	"fmt"

	apperrors "commrouter/internal/errors"
	"commrouter/internal/models"

	"github.com/sirupsen/logrus"
)

// TargetRequest carries the normalized recipients of one message
type TargetRequest struct {
	Channel               models.Channel
	To                    []models.Identifier
	Cc                    []models.Identifier
	ToTeamID              string
	ToUserID              string
	TransferredFromCommID string
	PersonToPerson        bool
}

// TargetResolver maps recipient identifiers to exactly one Target
type TargetResolver struct {
	store    Store
	programs *ProgramResolver
	logger   *logrus.Logger
}

// NewTargetResolver creates a target resolver
func NewTargetResolver(store Store, programs *ProgramResolver, logger *logrus.Logger) *TargetResolver {
	return &TargetResolver{store: store, programs: programs, logger: logger}
}

// Resolve selects the primary target for the request.
func (r *TargetResolver) Resolve(ctx context.Context, req TargetRequest) (models.Target, error) {
	if !req.PersonToPerson {
		if req.ToTeamID != "" {
			program, err := r.transferredProgram(ctx, req.TransferredFromCommID)
			if err != nil {
				return nil, err
			}
			return models.TeamTarget{ID: req.ToTeamID, Program: program}, nil
		}
		if req.ToUserID != "" {
			return models.IndividualTarget{UserID: req.ToUserID}, nil
		}
	}

	to, err := r.resolveAll(ctx, req.To, req.PersonToPerson)
	if err != nil {
		return nil, err
	}
	cc, err := r.resolveAll(ctx, req.Cc, req.PersonToPerson)
	if err != nil {
		return nil, err
	}

	toValues, ccValues := models.Values(req.To), models.Values(req.Cc)
	if len(to) == 0 && len(cc) == 0 {
		r.logger.WithFields(logrus.Fields{
			"channel": req.Channel,
			"to":      len(toValues),
			"cc":      len(ccValues),
		}).Info("No communication target found")
		return nil, apperrors.NewTargetNotFoundError(toValues, ccValues)
	}

	target, rule := SelectPrimaryTarget(to, cc)
	if target == nil {
		r.logger.Info("No rules matched the communication target configuration")
		return nil, apperrors.NewTargetNotFoundError(toValues, ccValues)
	}
	r.logger.WithFields(logrus.Fields{
		"rule":        rule,
		"target_type": target.Type(),
		"target_id":   target.TargetID(),
	}).Debug("Primary target selected")
	return target, nil
}

func (r *TargetResolver) resolveAll(ctx context.Context, ids []models.Identifier, personToPerson bool) ([]models.Target, error) {
	targets := make([]models.Target, 0, len(ids))
	for _, id := range ids {
		target, err := r.resolveIdentifier(ctx, id.Value, personToPerson)
		if err != nil {
			return nil, err
		}
		if target != nil {
			targets = append(targets, target)
		}
	}
	return targets, nil
}

// resolveIdentifier returns nil when the identifier matches nothing.
func (r *TargetResolver) resolveIdentifier(ctx context.Context, identifier string, personToPerson bool) (models.Target, error) {
	if personToPerson {
		personID, err := r.store.GetRelayAliasPerson(ctx, identifier)
		if err != nil || personID == "" {
			return nil, err
		}
		return models.IndividualTarget{PersonID: personID}, nil
	}
	if LooksLikePhone(identifier) {
		return r.byPhone(ctx, DigitsOnly(identifier))
	}
	return r.byEmailIdentifier(ctx, identifier)
}

func (r *TargetResolver) byPhone(ctx context.Context, phone string) (models.Target, error) {
	program, err := r.store.GetProgramByPhone(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("failed to look up program by phone: %w", err)
	}
	if program != nil {
		return r.programTarget(ctx, program)
	}

	member, err := r.store.GetTeamMemberByPhone(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("failed to look up team member by phone: %w", err)
	}
	if member != nil {
		return member.ToTarget(), nil
	}
	return nil, nil
}

func (r *TargetResolver) byEmailIdentifier(ctx context.Context, identifier string) (models.Target, error) {
	party, err := r.store.GetPartyByEmailIdentifier(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("failed to look up party by email: %w", err)
	}
	if party != nil {
		return party.ToTarget(), nil
	}

	program, err := r.store.GetProgramByEmailIdentifier(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("failed to look up program by email: %w", err)
	}
	if program != nil {
		return r.programTarget(ctx, program)
	}

	member, err := r.store.GetTeamMemberByEmailIdentifier(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("failed to look up team member by email: %w", err)
	}
	if member != nil {
		return member.ToTarget(), nil
	}
	return nil, nil
}

func (r *TargetResolver) programTarget(ctx context.Context, program *models.Program) (models.Target, error) {
	target, err := r.programs.Resolve(ctx, program)
	if err != nil {
		return nil, err
	}
	return target, nil
}

func (r *TargetResolver) transferredProgram(ctx context.Context, commID string) (*models.Program, error) {
	if commID == "" {
		return nil, nil
	}
	comm, err := r.store.GetCommunication(ctx, commID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transferred communication: %w", err)
	}
	if comm == nil || comm.ProgramID == "" {
		return nil, nil
	}
	program, err := r.store.GetProgramByID(ctx, comm.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transferred program: %w", err)
	}
	return program, nil
}

// SelectPrimaryTarget applies the tie-break rules in order and returns the
// winner with the name of the rule that matched. `to` entries win over `cc`
// entries within a rule.
func SelectPrimaryTarget(to, cc []models.Target) (models.Target, string) {
	if t := firstOfType(to, cc, models.TargetParty); t != nil {
		return t, "PartyTarget"
	}
	if len(to) == 1 && len(cc) == 1 {
		return to[0], "SingleTarget"
	}
	if t := firstOfType(to, cc, models.TargetProgram); t != nil {
		return t, "ProgramTarget"
	}
	if t := firstOfType(to, cc, models.TargetTeamMember); t != nil {
		return t, "TeamMemberTarget"
	}
	if t := firstOfType(to, cc, models.TargetIndividual); t != nil {
		return t, "FirstIndividual"
	}
	return nil, ""
}

func firstOfType(to, cc []models.Target, kind models.TargetType) models.Target {
	for _, list := range [][]models.Target{to, cc} {
		for _, t := range list {
			if t.Type() == kind {
				return t
			}
		}
	}
	return nil
}
