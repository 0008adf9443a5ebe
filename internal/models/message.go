package models

import (
	"strings"
	"time"
)

// InboundMessage is one inbound event as handed over by a transport adapter.
// It is never modified after construction.
type InboundMessage struct {
	Channel               Channel           `json:"channel"`
	MessageID             string            `json:"message_id"`
	From                  string            `json:"from"`
	FromName              string            `json:"from_name,omitempty"`
	To                    []string          `json:"to"`
	Cc                    []string          `json:"cc,omitempty"`
	Subject               string            `json:"subject,omitempty"`
	Text                  string            `json:"text,omitempty"`
	Headers               map[string]string `json:"headers,omitempty"`
	InReplyTo             string            `json:"in_reply_to,omitempty"`
	TransferredFromCommID string            `json:"transferred_from_comm_id,omitempty"`
	RedialForCommID       string            `json:"redial_for_comm_id,omitempty"`
	ToTeamID              string            `json:"to_team_id,omitempty"`
	ToUserID              string            `json:"to_user_id,omitempty"`
	WebContact            *WebContact       `json:"web_contact,omitempty"`
	LeadInformation       map[string]string `json:"lead_information,omitempty"`
	ReceivedAt            time.Time         `json:"received_at"`
}

// Header returns a header value using a case-insensitive key match.
func (m *InboundMessage) Header(name string) string {
	if v, ok := m.Headers[name]; ok {
		return v
	}
	for k, v := range m.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// WebContact is the contact data a web inquiry form supplies instead of a from address
type WebContact struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Provenance records where a normalized identifier came from
type Provenance string

const (
	ProvenanceDirect                Provenance = "DIRECT"
	ProvenanceOutsideDedicatedEmail Provenance = "OUTSIDE_DEDICATED_EMAIL"
	ProvenanceForwardedHeader       Provenance = "FORWARDED_HEADER"
)

// Identifier is a canonical recipient key: digits-only phone or an email local part
type Identifier struct {
	Value      string     `json:"value"`
	Provenance Provenance `json:"provenance"`
}

// ParsedForward describes a message that reached a tenant address through forwarding
type ParsedForward struct {
	ForwardedFrom     string `json:"forwarded_from,omitempty"`
	ForwardedFromName string `json:"forwarded_from_name,omitempty"`
	ForwardedTo       string `json:"forwarded_to,omitempty"`
}

// NormalizedAddresses is the output of identifier normalization
type NormalizedAddresses struct {
	From     string
	FromName string
	To       []Identifier
	Cc       []Identifier
	Forward  *ParsedForward
}

// Values returns the identifier strings in order.
func Values(ids []Identifier) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.Value)
	}
	return out
}
