package models

import (
	"encoding/json"
	"time"
)

// Category classifies a communication
type Category string

const (
	CategoryUserCommunication Category = "USER_COMMUNICATION"
	CategoryILS               Category = "ILS"
	CategoryWebInquiry        Category = "WEB_INQUIRY"
)

// SenderSourceTransferAgent tags messages whose party set fell back from reply routing.
const SenderSourceTransferAgent = "TRANSFER_AGENT"

// SenderContext is the resolved originator of an inbound communication
type SenderContext struct {
	PersonIDs         []string `json:"person_ids"`
	PartyIDs          []string `json:"party_ids"`
	From              string   `json:"from"`
	FromName          string   `json:"from_name,omitempty"`
	ForwardedFromName string   `json:"forwarded_from_name,omitempty"`
	// NeedsNewParty asks the persistence collaborator to create a party; the
	// engine never creates one itself.
	NeedsNewParty bool   `json:"needs_new_party"`
	Source        string `json:"source,omitempty"`
}

// CommunicationContext is the routing decision for one inbound message
type CommunicationContext struct {
	Target                Target            `json:"-"`
	Sender                SenderContext     `json:"sender"`
	ThreadID              string            `json:"thread_id"`
	Channel               Channel           `json:"channel"`
	ModuleContext         TeamModule        `json:"module_context,omitempty"`
	Category              Category          `json:"category"`
	LeadInformation       map[string]string `json:"lead_information,omitempty"`
	InReplyTo             string            `json:"in_reply_to,omitempty"`
	TransferredFromCommID string            `json:"transferred_from_comm_id,omitempty"`
	RedialForCommID       string            `json:"redial_for_comm_id,omitempty"`
	IsPersonToPerson      bool              `json:"is_person_to_person,omitempty"`
	Forward               *ParsedForward    `json:"forward,omitempty"`
}

// Direction of a stored communication
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// Communication is the persisted record built from a CommunicationContext
type Communication struct {
	ID         string    `json:"id"`
	MessageID  string    `json:"message_id"`
	ThreadID   string    `json:"thread_id"`
	Channel    Channel   `json:"channel"`
	Direction  Direction `json:"direction"`
	PartyIDs   []string  `json:"party_ids"`
	PersonIDs  []string  `json:"person_ids"`
	TeamIDs    []string  `json:"team_ids,omitempty"`
	UserID     string    `json:"user_id,omitempty"`
	ProgramID  string    `json:"program_id,omitempty"`
	From       string    `json:"from"`
	Text       string    `json:"text,omitempty"`
	Category   Category  `json:"category"`
	TargetType string    `json:"target_type"`
	TargetID   string    `json:"target_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// ForwardedStatus is the delivery status of a forwarded communication
type ForwardedStatus string

const (
	ForwardedPending ForwardedStatus = "PENDING"
	ForwardedSent    ForwardedStatus = "SENT"
	ForwardedFailed  ForwardedStatus = "FAILED"
)

// ForwardedCommunication is the record written instead of internal routing
// when a program forwards to an external target, one per message and
// destination. It is reserved as PENDING before the send and then marked
// SENT or FAILED.
type ForwardedCommunication struct {
	ID                 string          `json:"id"`
	Type               Channel         `json:"type"`
	MessageID          string          `json:"message_id"`
	ProgramID          string          `json:"program_id"`
	ProgramContactData string          `json:"program_contact_data"`
	Message            string          `json:"message"`
	ForwardedTo        string          `json:"forwarded_to"`
	ReceivedFrom       string          `json:"received_from"`
	Status             ForwardedStatus `json:"status"`
	CreatedAt          time.Time       `json:"created_at"`
}

// OutboundMessage is handed to the outbound sender collaborator
type OutboundMessage struct {
	Channel Channel `json:"channel"`
	To      string  `json:"to"`
	From    string  `json:"from,omitempty"`
	Subject string  `json:"subject,omitempty"`
	Text    string  `json:"text"`
	// ReplyTo keeps the original sender reachable from the external inbox.
	ReplyTo string `json:"reply_to,omitempty"`
}

// OutcomeKind names an Outcome variant
type OutcomeKind string

const (
	OutcomeRouted    OutcomeKind = "ROUTED"
	OutcomeForwarded OutcomeKind = "FORWARDED"
	OutcomeIgnored   OutcomeKind = "IGNORED"
)

// Outcome is the result of resolving an inbound message. Implementations are
// *RoutedOutcome, *ForwardedOutcome and *IgnoredOutcome.
type Outcome interface {
	Kind() OutcomeKind
	isOutcome()
}

// RoutedOutcome carries the routing decision for internal processing
type RoutedOutcome struct {
	Context *CommunicationContext
}

func (*RoutedOutcome) Kind() OutcomeKind { return OutcomeRouted }
func (*RoutedOutcome) isOutcome()        {}

// ForwardedOutcome carries the record of an external forward
type ForwardedOutcome struct {
	Record *ForwardedCommunication
}

func (*ForwardedOutcome) Kind() OutcomeKind { return OutcomeForwarded }
func (*ForwardedOutcome) isOutcome()        {}

// IgnoredOutcome is returned when a message must be dropped without records
type IgnoredOutcome struct {
	Reason string
}

func (*IgnoredOutcome) Kind() OutcomeKind { return OutcomeIgnored }
func (*IgnoredOutcome) isOutcome()        {}

// TargetRef is the serialized form of a Target
type TargetRef struct {
	Type TargetType `json:"type"`
	ID   string     `json:"id"`
}

// MarshalJSON flattens the Target variant into a TargetRef.
func (c CommunicationContext) MarshalJSON() ([]byte, error) {
	type plain CommunicationContext
	out := struct {
		plain
		Target *TargetRef `json:"target,omitempty"`
	}{plain: plain(c)}
	if c.Target != nil {
		out.Target = &TargetRef{Type: c.Target.Type(), ID: c.Target.TargetID()}
	}
	return json.Marshal(out)
}
