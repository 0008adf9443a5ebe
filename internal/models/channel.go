package models

import "strings"

// Channel is the medium an inbound communication arrived on
type Channel string

const (
	ChannelCall  Channel = "CALL"
	ChannelSMS   Channel = "SMS"
	ChannelEmail Channel = "EMAIL"
	ChannelWeb   Channel = "WEB"
)

// ParseChannel accepts any casing of a known channel name.
func ParseChannel(s string) (Channel, bool) {
	c := Channel(strings.ToUpper(strings.TrimSpace(s)))
	switch c {
	case ChannelCall, ChannelSMS, ChannelEmail, ChannelWeb:
		return c, true
	}
	return "", false
}

// IsPhoneBased reports channels whose sender is a phone number.
func (c Channel) IsPhoneBased() bool {
	return c == ChannelCall || c == ChannelSMS
}
