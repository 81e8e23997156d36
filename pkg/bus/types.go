package bus

import (
	"strings"

	"github.com/bizzbazzar/bazaar/pkg/geo"
)

// Address identifies a party or a broadcast channel as "<chatID>@<channel>".
type Address string

func NewAddress(channel, chatID string) Address {
	return Address(chatID + "@" + channel)
}

// LocalID is the address without its channel suffix.
func (a Address) LocalID() string {
	s := string(a)
	if i := strings.LastIndex(s, "@"); i >= 0 {
		return s[:i]
	}
	return s
}

// Channel is the channel suffix, or "" for a bare id.
func (a Address) Channel() string {
	s := string(a)
	if i := strings.LastIndex(s, "@"); i >= 0 {
		return s[i+1:]
	}
	return ""
}

func (a Address) String() string { return string(a) }

// Quote is the message an inbound message replies to.
type Quote struct {
	ID      string `json:"id,omitempty"`
	Content string `json:"content"`
}

type InboundMessage struct {
	Channel  string            `json:"channel"`
	SenderID string            `json:"sender_id"`
	ChatID   string            `json:"chat_id"`
	Content  string            `json:"content"`
	IsGroup  bool              `json:"is_group,omitempty"`
	Quoted   *Quote            `json:"quoted,omitempty"`
	Location *geo.Point        `json:"location,omitempty"`
	Media    []string          `json:"media,omitempty"` // local file paths
	Metadata map[string]string `json:"metadata,omitempty"`
}

// From is the sender's reply address.
func (m InboundMessage) From() Address {
	return NewAddress(m.Channel, m.ChatID)
}

type OutboundMessage struct {
	To      Address  `json:"to"`
	Content string   `json:"content"`
	Media   []string `json:"media,omitempty"` // local file paths to send; Content becomes the caption
}

type MessageHandler func(InboundMessage) error
