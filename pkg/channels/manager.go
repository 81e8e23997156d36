package channels

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/bizzbazzar/bazaar/pkg/bus"
	"github.com/bizzbazzar/bazaar/pkg/logger"
)

var ErrUnknownChannel = errors.New("unknown channel")

type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Send(ctx context.Context, msg bus.OutboundMessage) error
	IsRunning() bool
}

// Manager owns the enabled channels and routes outbound messages by the
// channel suffix of their address.
type Manager struct {
	mu       sync.RWMutex
	channels map[string]Channel
}

func NewManager() *Manager {
	return &Manager{channels: make(map[string]Channel)}
}

func (m *Manager) Register(ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[ch.Name()] = ch
}

func (m *Manager) Get(name string) (Channel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.channels[name]
	return ch, ok
}

// Names lists the registered channels in name order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StartAll starts every channel. A channel that fails to start is logged
// and skipped; StartAll errors only when none started.
func (m *Manager) StartAll(ctx context.Context) error {
	names := m.Names()
	if len(names) == 0 {
		return errors.New("no channels enabled")
	}
	started := 0
	for _, name := range names {
		ch, _ := m.Get(name)
		if err := ch.Start(ctx); err != nil {
			logger.ErrorCF("channels", "Failed to start channel", map[string]interface{}{
				"channel": name,
				"error":   err.Error(),
			})
			continue
		}
		started++
	}
	if started == 0 {
		return errors.New("no channel could be started")
	}
	logger.InfoCF("channels", "Channels started", map[string]interface{}{
		"started": started,
		"enabled": len(names),
	})
	return nil
}

func (m *Manager) StopAll(ctx context.Context) {
	for _, name := range m.Names() {
		ch, _ := m.Get(name)
		if err := ch.Stop(ctx); err != nil {
			logger.WarnCF("channels", "Failed to stop channel", map[string]interface{}{
				"channel": name,
				"error":   err.Error(),
			})
		}
	}
}

// Send delivers msg through the channel named by msg.To.
func (m *Manager) Send(ctx context.Context, msg bus.OutboundMessage) error {
	name := msg.To.Channel()
	ch, ok := m.Get(name)
	if !ok {
		return fmt.Errorf("%w %q for %s", ErrUnknownChannel, name, msg.To)
	}
	return ch.Send(ctx, msg)
}
