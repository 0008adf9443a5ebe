package telephony

import (
	"context"

	"commrouter/internal/models"
)

// Store is the state the distributor reads and writes. Lookups return nil, nil
// when nothing matches.
type Store interface {
	GetTeam(ctx context.Context, id string) (*models.Team, error)
	ListTeamAgents(ctx context.Context, teamID string) ([]models.Agent, error)
	GetAgent(ctx context.Context, userID string) (*models.Agent, error)
	// UpdateTeamRotation moves the rotation pointer only when the team is still
	// at expectedVersion, reporting false when another writer got there first.
	UpdateTeamRotation(ctx context.Context, teamID string, expectedVersion int64, lastAssignedUser string) (bool, error)
	SetAgentStatus(ctx context.Context, userID string, status models.AgentStatus) error

	GetParty(ctx context.Context, id string) (*models.Party, error)
	// AssignPartyOwner sets the owner of a party that has none, reporting
	// false when the party already had an owner.
	AssignPartyOwner(ctx context.Context, partyID, userID string) (bool, error)

	SetCallStatus(ctx context.Context, commID string, state models.DialState) error
}
