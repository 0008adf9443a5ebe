package models

import "time"

// Program is an advertised contact channel tied to a team and property
type Program struct {
	ID                    string            `json:"id"`
	Name                  string            `json:"name"`
	DirectEmailIdentifier string            `json:"direct_email_identifier,omitempty"`
	DirectPhoneIdentifier string            `json:"direct_phone_identifier,omitempty"`
	EndDate               *time.Time        `json:"end_date,omitempty"`
	ProgramFallbackID     string            `json:"program_fallback_id,omitempty"`
	TeamID                string            `json:"team_id"`
	PropertyID            string            `json:"property_id,omitempty"`
	Timezone              string            `json:"timezone,omitempty"`
	Forwarding            ProgramForwarding `json:"forwarding"`
}

// ProgramForwarding holds the external targets used instead of internal routing
type ProgramForwarding struct {
	Enabled     bool   `json:"enabled"`
	EmailTarget string `json:"email_target,omitempty"`
	SMSTarget   string `json:"sms_target,omitempty"`
	CallTarget  string `json:"call_target,omitempty"`
}

// ForwardTarget returns the external destination for a channel, if forwarding applies.
func (p *Program) ForwardTarget(channel Channel) (string, bool) {
	if p == nil || !p.Forwarding.Enabled {
		return "", false
	}
	var target string
	switch channel {
	case ChannelEmail:
		target = p.Forwarding.EmailTarget
	case ChannelSMS:
		target = p.Forwarding.SMSTarget
	case ChannelCall:
		target = p.Forwarding.CallTarget
	}
	return target, target != ""
}

// ContactData is the program address the message was sent to for the channel.
func (p *Program) ContactData(channel Channel) string {
	if channel == ChannelEmail {
		return p.DirectEmailIdentifier
	}
	return p.DirectPhoneIdentifier
}

// Location returns the program's timezone, UTC when unset or unknown.
func (p *Program) Location() *time.Location {
	if p.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsExpiredAt reports whether the program's end date lies before the calendar
// day of now in the program's timezone. The end date itself is still valid.
func (p *Program) IsExpiredAt(now time.Time) bool {
	if p.EndDate == nil {
		return false
	}
	loc := p.Location()
	ey, em, ed := p.EndDate.In(loc).Date()
	ny, nm, nd := now.In(loc).Date()
	end := time.Date(ey, em, ed, 0, 0, 0, 0, time.UTC)
	today := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
	return end.Before(today)
}
