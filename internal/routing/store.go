package routing

import (
	"context"

	"commrouter/internal/models"
)

// Lookups return (nil, nil) when nothing matches. Storage failures are
// returned as TRANSIENT_STORAGE AppErrors by the database layer.

// ProgramStore looks up marketing programs
type ProgramStore interface {
	GetProgramByID(ctx context.Context, id string) (*models.Program, error)
	GetProgramByPhone(ctx context.Context, phone string) (*models.Program, error)
	GetProgramByEmailIdentifier(ctx context.Context, identifier string) (*models.Program, error)
}

// DirectoryStore looks up addressable internal entities
type DirectoryStore interface {
	GetTeam(ctx context.Context, id string) (*models.Team, error)
	GetTeamMemberByPhone(ctx context.Context, phone string) (*models.TeamMember, error)
	GetTeamMemberByEmailIdentifier(ctx context.Context, identifier string) (*models.TeamMember, error)
	GetPartyByEmailIdentifier(ctx context.Context, identifier string) (*models.Party, error)
	// GetOutsideDedicatedEmailTarget returns the tenant identifier an external
	// mailbox forwards into, or "" when the address is not registered.
	GetOutsideDedicatedEmailTarget(ctx context.Context, email string) (string, error)
	// GetRelayAliasPerson returns the person behind an anonymous relay alias, or "".
	GetRelayAliasPerson(ctx context.Context, alias string) (string, error)
}

// PartyStore looks up persons and their parties
type PartyStore interface {
	GetPersonIDsByContact(ctx context.Context, contact string) ([]string, error)
	GetPartiesForPersons(ctx context.Context, personIDs []string) ([]models.Party, error)
	GetParty(ctx context.Context, id string) (*models.Party, error)
	GetPartiesByThread(ctx context.Context, threadID string) ([]models.Party, error)
	GetActivePartyInGroup(ctx context.Context, partyGroupID string) (*models.Party, error)
}

// CommunicationStore reads prior communications and records forwards
type CommunicationStore interface {
	GetCommunication(ctx context.Context, id string) (*models.Communication, error)
	GetCommunicationByMessageID(ctx context.Context, messageID string) (*models.Communication, error)
	// GetRelayMessage matches either the relay message id or its forward id.
	GetRelayMessage(ctx context.Context, messageID string) (*models.RelayMessage, error)
	SaveForwardedCommunication(ctx context.Context, record *models.ForwardedCommunication) error
	GetForwardedCommunication(ctx context.Context, messageID, forwardedTo string) (*models.ForwardedCommunication, error)
	UpdateForwardedStatus(ctx context.Context, id string, status models.ForwardedStatus) error
}

// Store is everything the engine reads or writes
type Store interface {
	ProgramStore
	DirectoryStore
	PartyStore
	CommunicationStore
}

// OutboundSender delivers a message to an external address or number
type OutboundSender interface {
	Send(ctx context.Context, msg models.OutboundMessage) error
}
