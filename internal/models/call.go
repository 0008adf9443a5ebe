package models

// DialState is the state of one outbound leg of an inbound call
type DialState string

const (
	DialRinging   DialState = "RINGING"
	DialAnswered  DialState = "ANSWERED"
	DialNoAnswer  DialState = "NO_ANSWER"
	DialCompleted DialState = "COMPLETED"
)

// ParseDialState validates a dial state reported by the telephony provider.
func ParseDialState(s string) (DialState, bool) {
	switch DialState(s) {
	case DialRinging, DialAnswered, DialNoAnswer, DialCompleted:
		return DialState(s), true
	}
	return "", false
}

// ReceiverType says what the telephony provider should do with the call
type ReceiverType string

const (
	// ReceiverUsers rings the listed agents.
	ReceiverUsers ReceiverType = "USERS"
	// ReceiverCallCenter transfers the call to the team's call-center number.
	ReceiverCallCenter ReceiverType = "CALL_CENTER"
	// ReceiverQueue holds the caller until an agent becomes available.
	ReceiverQueue ReceiverType = "QUEUE"
	// ReceiverVoicemail plays the announcement and records a voicemail.
	ReceiverVoicemail ReceiverType = "VOICEMAIL"
)

// AnnouncementUnavailable is played when nobody could take the call
const AnnouncementUnavailable = "UNAVAILABLE"

// Receivers is the ringing destination chosen for a call
type Receivers struct {
	Type         ReceiverType `json:"type"`
	UserIDs      []string     `json:"user_ids,omitempty"`
	Endpoints    []string     `json:"endpoints,omitempty"`
	Announcement string       `json:"announcement,omitempty"`
	// PartyOwner is the user an ownerless party falls to when nobody can be dialed.
	PartyOwner string `json:"party_owner,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// DialOutcome is the provider's report on a dial attempt
type DialOutcome struct {
	State   DialState `json:"state"`
	AgentID string    `json:"agent_id,omitempty"`
}

// DialResolution is what the distributor decided after a dial outcome
type DialResolution struct {
	PartyOwner   string `json:"party_owner,omitempty"`
	Announcement string `json:"announcement,omitempty"`
	Escalated    bool   `json:"escalated"`
}
