package events

import (
	"time"

	"github.com/google/uuid"
)

// Event types double as routing keys on the topic exchange.
const (
	TypeCommunicationReceived  = "communication.received.v1"
	TypeCommunicationForwarded = "communication.forwarded.v1"
	TypePartyOwnerAssigned     = "party.owner_assigned.v1"
)

const producer = "commrouter"

// Meta identifies one emitted event
type Meta struct {
	ID            string    `json:"id"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Producer      string    `json:"producer"`
	Time          time.Time `json:"time"`
	Type          string    `json:"type"`
}

// Envelope is the JSON body of every published event
type Envelope struct {
	Meta Meta        `json:"meta"`
	Data interface{} `json:"data"`
}

// NewEnvelope stamps data with a fresh id. The provider message id is a good
// correlation id: it ties every event of one delivery together.
func NewEnvelope(eventType, correlationID string, data interface{}) Envelope {
	return Envelope{
		Meta: Meta{
			ID:            uuid.NewString(),
			CorrelationID: correlationID,
			Producer:      producer,
			Time:          time.Now().UTC(),
			Type:          eventType,
		},
		Data: data,
	}
}

// CommunicationReceived is published after an inbound communication is stored
type CommunicationReceived struct {
	CommunicationID string   `json:"communication_id"`
	MessageID       string   `json:"message_id,omitempty"`
	Channel         string   `json:"channel"`
	ThreadID        string   `json:"thread_id"`
	TargetType      string   `json:"target_type"`
	TargetID        string   `json:"target_id"`
	PartyIDs        []string `json:"party_ids"`
	PersonIDs       []string `json:"person_ids"`
	ModuleContext   string   `json:"module_context,omitempty"`
	Category        string   `json:"category"`
	NeedsNewParty   bool     `json:"needs_new_party"`
}

// CommunicationForwarded is published after a program forwarded a message externally
type CommunicationForwarded struct {
	ForwardedID string `json:"forwarded_id"`
	MessageID   string `json:"message_id,omitempty"`
	ProgramID   string `json:"program_id"`
	Channel     string `json:"channel"`
	ForwardedTo string `json:"forwarded_to"`
}

// PartyOwnerAssigned is published when a call made an agent the owner of a party
type PartyOwnerAssigned struct {
	PartyID         string `json:"party_id"`
	UserID          string `json:"user_id"`
	CommunicationID string `json:"communication_id,omitempty"`
	Reason          string `json:"reason"`
}
