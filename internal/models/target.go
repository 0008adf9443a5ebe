package models

// TargetType names a Target variant for logs and storage
type TargetType string

const (
	TargetParty      TargetType = "PARTY"
	TargetTeamMember TargetType = "TEAM_MEMBER"
	TargetProgram    TargetType = "PROGRAM"
	TargetIndividual TargetType = "INDIVIDUAL"
	TargetTeam       TargetType = "TEAM"
)

// Target is the internal entity an inbound communication is addressed to.
// Implementations are PartyTarget, TeamMemberTarget, ProgramTarget,
// IndividualTarget and TeamTarget.
type Target interface {
	Type() TargetType
	TargetID() string
	isTarget()
}

// PartyTarget is a conversation-specific address match
type PartyTarget struct {
	ID         string `json:"id"`
	IsClosed   bool   `json:"is_closed"`
	IsArchived bool   `json:"is_archived"`
	TeamID     string `json:"team_id,omitempty"`
	PropertyID string `json:"property_id,omitempty"`
}

func (t PartyTarget) Type() TargetType { return TargetParty }
func (t PartyTarget) TargetID() string { return t.ID }
func (PartyTarget) isTarget()          {}

// IsActive reports a party that is neither closed nor archived.
func (t PartyTarget) IsActive() bool { return !t.IsClosed && !t.IsArchived }

// TeamMemberTarget is an agent's direct phone or email
type TeamMemberTarget struct {
	ID     string `json:"id"`
	TeamID string `json:"team_id"`
	UserID string `json:"user_id"`
}

func (t TeamMemberTarget) Type() TargetType { return TargetTeamMember }
func (t TeamMemberTarget) TargetID() string { return t.ID }
func (TeamMemberTarget) isTarget()          {}

// ProgramTarget is a marketing program match. OriginalProgram is set when an
// expired program was replaced by its fallback.
type ProgramTarget struct {
	Program         *Program `json:"program"`
	OriginalProgram *Program `json:"original_program,omitempty"`
	ShouldIgnore    bool     `json:"should_ignore,omitempty"`
}

func (t ProgramTarget) Type() TargetType { return TargetProgram }
func (t ProgramTarget) TargetID() string {
	if t.Program == nil {
		return ""
	}
	return t.Program.ID
}
func (ProgramTarget) isTarget() {}

// IndividualTarget is a single user or, for relay conversations, a person
type IndividualTarget struct {
	UserID   string `json:"user_id,omitempty"`
	PersonID string `json:"person_id,omitempty"`
}

func (t IndividualTarget) Type() TargetType { return TargetIndividual }
func (t IndividualTarget) TargetID() string {
	if t.UserID != "" {
		return t.UserID
	}
	return t.PersonID
}
func (IndividualTarget) isTarget() {}

// TeamTarget is an explicit transfer to a team
type TeamTarget struct {
	ID      string   `json:"id"`
	Program *Program `json:"program,omitempty"`
}

func (t TeamTarget) Type() TargetType { return TargetTeam }
func (t TeamTarget) TargetID() string { return t.ID }
func (TeamTarget) isTarget()          {}

// TargetTeamID returns the owning team for targets that have one.
func TargetTeamID(t Target) string {
	switch v := t.(type) {
	case PartyTarget:
		return v.TeamID
	case TeamMemberTarget:
		return v.TeamID
	case ProgramTarget:
		if v.Program != nil {
			return v.Program.TeamID
		}
	case TeamTarget:
		return v.ID
	}
	return ""
}

// TargetPropertyID returns the property scope for targets that have one.
func TargetPropertyID(t Target) string {
	switch v := t.(type) {
	case PartyTarget:
		return v.PropertyID
	case ProgramTarget:
		if v.Program != nil {
			return v.Program.PropertyID
		}
	case TeamTarget:
		if v.Program != nil {
			return v.Program.PropertyID
		}
	}
	return ""
}
