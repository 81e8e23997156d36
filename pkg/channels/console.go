package channels

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/chzyer/readline"

	"github.com/bizzbazzar/bazaar/pkg/bus"
	"github.com/bizzbazzar/bazaar/pkg/config"
	"github.com/bizzbazzar/bazaar/pkg/geo"
	"github.com/bizzbazzar/bazaar/pkg/logger"
)

const consoleHelp = `Console commands:
  !as <id>                switch the identity you type as
  !loc <lat>,<lon>        share a location
  !image <path> [caption] send an image
  !reply <text>           reply to the last message this identity received
  !help                   show this help
Anything else is sent as a plain message.`

// ConsoleChannel drives the broker from a terminal. Every party lives on the
// same screen, so outbound messages are printed with their recipient and the
// typist switches identity with !as.
type ConsoleChannel struct {
	*BaseChannel

	mu       sync.Mutex
	identity string
	last     map[string]string
	out      io.Writer
	rl       *readline.Instance
	done     chan struct{}
}

func NewConsoleChannel(cfg config.ConsoleConfig, mb *bus.MessageBus) *ConsoleChannel {
	identity := strings.TrimSpace(cfg.Identity)
	if identity == "" {
		identity = "console"
	}
	return &ConsoleChannel{
		BaseChannel: NewBaseChannel("console", mb, nil),
		identity:    identity,
		last:        make(map[string]string),
		out:         os.Stdout,
		done:        make(chan struct{}),
	}
}

// Done is closed when the operator ends the session.
func (c *ConsoleChannel) Done() <-chan struct{} { return c.done }

func (c *ConsoleChannel) Start(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          c.prompt(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("open console: %w", err)
	}

	c.mu.Lock()
	c.rl = rl
	c.out = rl.Stdout()
	c.mu.Unlock()
	c.setRunning(true)
	fmt.Fprintln(c.out, consoleHelp)

	go func() {
		defer close(c.done)
		defer c.setRunning(false)
		for {
			line, err := rl.Readline()
			if errors.Is(err, readline.ErrInterrupt) {
				if line == "" {
					return
				}
				continue
			}
			if err != nil {
				return
			}
			if ctx.Err() != nil {
				return
			}
			if err := c.handleLine(line); err != nil {
				fmt.Fprintln(c.out, "!", err)
			}
			rl.SetPrompt(c.prompt())
		}
	}()
	return nil
}

func (c *ConsoleChannel) Stop(ctx context.Context) error {
	c.setRunning(false)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rl != nil {
		return c.rl.Close()
	}
	return nil
}

func (c *ConsoleChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.last[msg.To.LocalID()] = msg.Content
	var sb strings.Builder
	fmt.Fprintf(&sb, "\n[to %s]\n", msg.To.LocalID())
	for _, path := range msg.Media {
		fmt.Fprintf(&sb, "(image %s)\n", path)
	}
	sb.WriteString(msg.Content)
	sb.WriteString("\n")
	_, err := io.WriteString(c.out, sb.String())
	return err
}

func (c *ConsoleChannel) prompt() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity + "> "
}

// handleLine turns one typed line into an inbound message or a console action.
func (c *ConsoleChannel) handleLine(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	c.mu.Lock()
	msg := bus.InboundMessage{
		SenderID: c.identity,
		ChatID:   c.identity,
	}
	c.mu.Unlock()

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "!help":
		_, err := fmt.Fprintln(c.out, consoleHelp)
		return err
	case "!as":
		if arg == "" || strings.ContainsAny(arg, "@ ") {
			return fmt.Errorf("usage: !as <id>")
		}
		c.mu.Lock()
		c.identity = arg
		c.mu.Unlock()
		return nil
	case "!loc":
		p, err := parsePoint(arg)
		if err != nil {
			return err
		}
		msg.Location = &p
	case "!image":
		path, caption, _ := strings.Cut(arg, " ")
		if path == "" {
			return fmt.Errorf("usage: !image <path> [caption]")
		}
		if _, err := os.Stat(path); err != nil {
			return err
		}
		msg.Media = []string{path}
		msg.Content = strings.TrimSpace(caption)
	case "!reply":
		c.mu.Lock()
		quoted, ok := c.last[msg.ChatID]
		c.mu.Unlock()
		if !ok {
			return fmt.Errorf("%s has not received anything to reply to", msg.ChatID)
		}
		msg.Quoted = &bus.Quote{Content: quoted}
		msg.Content = arg
	default:
		msg.Content = line
	}

	logger.DebugCF("console", "Received message", map[string]interface{}{
		"sender_id": msg.SenderID,
		"preview":   preview(msg.Content, 50),
	})
	c.HandleMessage(msg)
	return nil
}

func parsePoint(s string) (geo.Point, error) {
	latStr, lonStr, ok := strings.Cut(s, ",")
	if !ok {
		return geo.Point{}, fmt.Errorf("usage: !loc <lat>,<lon>")
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("longitude: %w", err)
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return geo.Point{}, fmt.Errorf("location %s is out of range", s)
	}
	return geo.Point{Lat: lat, Lon: lon}, nil
}
