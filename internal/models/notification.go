package models

import "strings"

// Channel selects which delivery channels a dispatch uses.
type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
	ChannelBoth  Channel = "both"
)

func ParseChannel(s string) (Channel, bool) {
	c := Channel(strings.ToLower(strings.TrimSpace(s)))
	return c, c.Valid()
}

func (c Channel) Valid() bool {
	return c == ChannelSMS || c == ChannelEmail || c == ChannelBoth
}

func (c Channel) IncludesSMS() bool {
	return c == ChannelSMS || c == ChannelBoth
}

func (c Channel) IncludesEmail() bool {
	return c == ChannelEmail || c == ChannelBoth
}

// Template is a stored message template. Body may contain the
// {{employeeName}} and {{shifts}} placeholders.
type Template struct {
	ID          int64   `json:"id"`
	Type        Channel `json:"type"`
	Subject     string  `json:"subject,omitempty"`
	Body        string  `json:"body"`
	OpeningText string  `json:"openingText,omitempty"`
	EndingText  string  `json:"endingText,omitempty"`
}
