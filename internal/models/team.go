package models

import (
	"strings"
	"time"
)

// CallRoutingStrategy decides who rings for an inbound call to a team
type CallRoutingStrategy string

const (
	CallRoutingOwner      CallRoutingStrategy = "OWNER"
	CallRoutingRoundRobin CallRoutingStrategy = "ROUND_ROBIN"
	CallRoutingEverybody  CallRoutingStrategy = "EVERYBODY"
	CallRoutingCallCenter CallRoutingStrategy = "CALL_CENTER"
)

// PartyRoutingStrategy decides who owns a fresh party
type PartyRoutingStrategy string

const (
	PartyRoutingRoundRobin PartyRoutingStrategy = "ROUND_ROBIN"
	PartyRoutingDispatcher PartyRoutingStrategy = "DISPATCHER"
)

// TeamModule is the business area a team serves
type TeamModule string

const (
	ModuleLeasing          TeamModule = "leasing"
	ModuleResidentServices TeamModule = "resident_services"
	ModuleCallCenter       TeamModule = "call_center"
)

// Team is a group of agents sharing routing rules
type Team struct {
	ID                   string               `json:"id"`
	Name                 string               `json:"name"`
	Module               TeamModule           `json:"module"`
	CallRoutingStrategy  CallRoutingStrategy  `json:"call_routing_strategy"`
	PartyRoutingStrategy PartyRoutingStrategy `json:"party_routing_strategy"`
	Metadata             TeamMetadata         `json:"metadata"`
	Timezone             string               `json:"timezone,omitempty"`
	// OfficeHours is nil for teams that are always open.
	OfficeHours *OfficeHours `json:"office_hours,omitempty"`
	// Version increases on every metadata write and guards the rotation pointer.
	Version int64 `json:"version"`
}

// TeamMetadata is the mutable routing state of a team
type TeamMetadata struct {
	LastAssignedUser      string `json:"last_assigned_user,omitempty"`
	CallCenterPhoneNumber string `json:"call_center_phone_number,omitempty"`
	DispatcherUserID      string `json:"dispatcher_user_id,omitempty"`
}

// OfficeHours is a daily opening window in the team's timezone, as "15:04" clock times
type OfficeHours struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Location returns the team's timezone, UTC when unset or unknown.
func (t *Team) Location() *time.Location {
	if t.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsOpenAt reports whether now falls inside the team's office hours. A window
// whose end precedes its start spans midnight. Unparseable hours count as open.
func (t *Team) IsOpenAt(now time.Time) bool {
	if t.OfficeHours == nil {
		return true
	}
	start, errStart := time.Parse("15:04", t.OfficeHours.Start)
	end, errEnd := time.Parse("15:04", t.OfficeHours.End)
	if errStart != nil || errEnd != nil {
		return true
	}
	local := now.In(t.Location())
	minute := local.Hour()*60 + local.Minute()
	from := start.Hour()*60 + start.Minute()
	to := end.Hour()*60 + end.Minute()
	if from <= to {
		return minute >= from && minute < to
	}
	return minute >= from || minute < to
}

// AgentStatus is an agent's live availability
type AgentStatus string

const (
	AgentAvailable    AgentStatus = "AVAILABLE"
	AgentBusy         AgentStatus = "BUSY"
	AgentNotAvailable AgentStatus = "NOT_AVAILABLE"
)

// Agent is a team member considered as a routing candidate
type Agent struct {
	UserID    string      `json:"user_id"`
	FullName  string      `json:"full_name"`
	TeamID    string      `json:"team_id"`
	Active    bool        `json:"active"`
	Status    AgentStatus `json:"status"`
	Endpoints []string    `json:"endpoints,omitempty"`
	HasLARole bool        `json:"has_la_role"`
}

// IsAvailable reports a reachable agent that is free to take a call.
func (a *Agent) IsAvailable() bool {
	return a.IsReachable() && a.Status == AgentAvailable
}

// IsReachable reports an active agent with at least one endpoint.
func (a *Agent) IsReachable() bool {
	return a.Active && len(a.Endpoints) > 0
}

// SortKey orders agents by name, then id for stable ties.
func (a *Agent) SortKey() string {
	return strings.ToLower(a.FullName) + "\x00" + a.UserID
}

// TeamMember is an agent's membership record, addressable by direct phone/email
type TeamMember struct {
	ID                    string `json:"id"`
	TeamID                string `json:"team_id"`
	UserID                string `json:"user_id"`
	DirectEmailIdentifier string `json:"direct_email_identifier,omitempty"`
	DirectPhoneIdentifier string `json:"direct_phone_identifier,omitempty"`
	Inactive              bool   `json:"inactive"`
}

// ToTarget converts the membership into a TeamMember target.
func (m *TeamMember) ToTarget() TeamMemberTarget {
	return TeamMemberTarget{ID: m.ID, TeamID: m.TeamID, UserID: m.UserID}
}
