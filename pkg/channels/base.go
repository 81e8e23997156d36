package channels

import (
	"strings"
	"sync/atomic"

	"github.com/bizzbazzar/bazaar/pkg/bus"
	"github.com/bizzbazzar/bazaar/pkg/logger"
)

// BaseChannel carries what every channel shares: its name, the bus and the
// sender allowlist.
type BaseChannel struct {
	name      string
	bus       *bus.MessageBus
	allowList []string
	running   atomic.Bool
}

func NewBaseChannel(name string, mb *bus.MessageBus, allowList []string) *BaseChannel {
	return &BaseChannel{
		name:      name,
		bus:       mb,
		allowList: allowList,
	}
}

func (c *BaseChannel) Name() string { return c.name }

func (c *BaseChannel) IsRunning() bool { return c.running.Load() }

func (c *BaseChannel) setRunning(v bool) { c.running.Store(v) }

// IsAllowed reports whether senderID may talk to the broker. An empty
// allowlist admits everyone. Entries match the bare id or the username part
// of an "id|username" sender.
func (c *BaseChannel) IsAllowed(senderID string) bool {
	if len(c.allowList) == 0 {
		return true
	}
	id, username, _ := strings.Cut(senderID, "|")
	for _, allowed := range c.allowList {
		allowed = strings.TrimPrefix(strings.TrimSpace(allowed), "@")
		if allowed == senderID || allowed == id || (username != "" && allowed == username) {
			return true
		}
	}
	return false
}

// HandleMessage stamps msg with the channel name and publishes it when the
// sender is allowed.
func (c *BaseChannel) HandleMessage(msg bus.InboundMessage) {
	if !c.IsAllowed(msg.SenderID) {
		logger.DebugCF(c.name, "Message rejected by allowlist", map[string]interface{}{
			"sender_id": msg.SenderID,
		})
		return
	}
	msg.Channel = c.name
	c.bus.PublishInbound(msg)
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
