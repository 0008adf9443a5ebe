package models

import (
	"sort"
	"time"
)

// WorkflowState is the lifecycle of a party
type WorkflowState string

const (
	WorkflowActive   WorkflowState = "ACTIVE"
	WorkflowClosed   WorkflowState = "CLOSED"
	WorkflowArchived WorkflowState = "ARCHIVED"
)

// PartyState is the leasing relationship a party has reached
type PartyState string

const (
	PartyStateContact        PartyState = "CONTACT"
	PartyStateLead           PartyState = "LEAD"
	PartyStateProspect       PartyState = "PROSPECT"
	PartyStateApplicant      PartyState = "APPLICANT"
	PartyStateLease          PartyState = "LEASE"
	PartyStateFutureResident PartyState = "FUTURE_RESIDENT"
	PartyStateResident       PartyState = "RESIDENT"
)

// Party is a conversation/lead record owning persons and one agent owner
type Party struct {
	ID                 string        `json:"id"`
	WorkflowState      WorkflowState `json:"workflow_state"`
	State              PartyState    `json:"state"`
	EndDate            *time.Time    `json:"end_date,omitempty"`
	ArchiveDate        *time.Time    `json:"archive_date,omitempty"`
	OwnerTeamID        string        `json:"owner_team_id,omitempty"`
	UserID             string        `json:"user_id,omitempty"`
	AssignedPropertyID string        `json:"assigned_property_id,omitempty"`
	PartyGroupID       string        `json:"party_group_id,omitempty"`
	Teams              []string      `json:"teams,omitempty"`
	PersonIDs          []string      `json:"person_ids,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// IsActive reports a party that is neither closed nor archived.
func (p *Party) IsActive() bool { return p.WorkflowState == WorkflowActive }

// IsArchived reports an archived party.
func (p *Party) IsArchived() bool { return p.WorkflowState == WorkflowArchived }

// IsClosed reports a closed party.
func (p *Party) IsClosed() bool { return p.WorkflowState == WorkflowClosed }

// HasPerson reports whether personID is a member.
func (p *Party) HasPerson(personID string) bool {
	for _, id := range p.PersonIDs {
		if id == personID {
			return true
		}
	}
	return false
}

// InTeam reports whether the party belongs to the team, either as owner team or member team.
func (p *Party) InTeam(teamID string) bool {
	if p.OwnerTeamID == teamID {
		return true
	}
	for _, t := range p.Teams {
		if t == teamID {
			return true
		}
	}
	return false
}

// ToTarget converts the party into a Party target.
func (p *Party) ToTarget() PartyTarget {
	return PartyTarget{
		ID:         p.ID,
		IsClosed:   p.IsClosed(),
		IsArchived: p.IsArchived(),
		TeamID:     p.OwnerTeamID,
		PropertyID: p.AssignedPropertyID,
	}
}

// MostRecent orders parties by their last update, newest first, and returns the head.
func MostRecent(parties []Party) *Party {
	if len(parties) == 0 {
		return nil
	}
	sorted := append([]Party(nil), parties...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].UpdatedAt.After(sorted[j].UpdatedAt)
	})
	return &sorted[0]
}

// MostRecentlyArchived returns the party with the latest archive date.
func MostRecentlyArchived(parties []Party) *Party {
	var latest *Party
	for i := range parties {
		p := &parties[i]
		if !p.IsArchived() {
			continue
		}
		if latest == nil || archivedAt(p).After(archivedAt(latest)) {
			latest = p
		}
	}
	return latest
}

// MostRecentlyClosed returns the closed party with the latest end date.
// Parties without one rank by their last update.
func MostRecentlyClosed(parties []Party) *Party {
	var latest *Party
	for i := range parties {
		p := &parties[i]
		if !p.IsClosed() {
			continue
		}
		if latest == nil || closedAt(p).After(closedAt(latest)) {
			latest = p
		}
	}
	return latest
}

func closedAt(p *Party) time.Time {
	if p.EndDate != nil {
		return *p.EndDate
	}
	return p.UpdatedAt
}

func archivedAt(p *Party) time.Time {
	if p.ArchiveDate != nil {
		return *p.ArchiveDate
	}
	return p.UpdatedAt
}

// PartyIDs returns the ids of the given parties in order.
func PartyIDs(parties []Party) []string {
	ids := make([]string, 0, len(parties))
	for _, p := range parties {
		ids = append(ids, p.ID)
	}
	return ids
}

// RelayMessage is a message sent through an anonymous person-to-person relay address
type RelayMessage struct {
	MessageID         string `json:"message_id"`
	ForwardMessageID  string `json:"forward_message_id,omitempty"`
	ThreadID          string `json:"thread_id"`
	SenderPersonID    string `json:"sender_person_id"`
	RecipientPersonID string `json:"recipient_person_id"`
}

// Counterpart returns the participant that is not personID.
func (r *RelayMessage) Counterpart(personID string) string {
	if r.SenderPersonID == personID {
		return r.RecipientPersonID
	}
	return r.SenderPersonID
}
