package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Jacobbrewer1/kennel/pkg/logging"
	"github.com/bwmarrin/discordgo"
)

// Connection reports on and restores the gateway connection of a session.
//
// Readiness is tracked from gateway events rather than read from the session, as the session holds its lock
// for the whole of a gateway handshake.
type Connection struct {
	l *slog.Logger
	s *discordgo.Session

	mut   sync.RWMutex
	ready bool

	// reconnecting is closed when the reconnect in flight finishes, nil when there is none.
	reconnecting chan struct{}
	reconnectErr error
}

// NewConnection creates a Connection over the session and registers the handlers that track readiness.
func NewConnection(l *slog.Logger, s *discordgo.Session) *Connection {
	c := &Connection{
		l: l,
		s: s,
	}
	s.AddHandler(c.onReady)
	s.AddHandler(c.onResumed)
	s.AddHandler(c.onConnect)
	s.AddHandler(c.onDisconnect)
	return c
}

func (c *Connection) setReady(ready bool) {
	c.mut.Lock()
	defer c.mut.Unlock()
	c.ready = ready
}

func (c *Connection) onReady(_ *discordgo.Session, _ *discordgo.Ready) {
	c.setReady(true)
}

func (c *Connection) onResumed(_ *discordgo.Session, _ *discordgo.Resumed) {
	c.setReady(true)
}

func (c *Connection) onConnect(_ *discordgo.Session, _ *discordgo.Connect) {
	c.setReady(true)
}

func (c *Connection) onDisconnect(_ *discordgo.Session, _ *discordgo.Disconnect) {
	c.setReady(false)
}

// IsReady reports whether the gateway is connected and has sent its ready event.
func (c *Connection) IsReady() bool {
	c.mut.RLock()
	defer c.mut.RUnlock()
	return c.ready
}

// Username returns the bot's username, or an empty string before the ready event.
func (c *Connection) Username() string {
	if c.s.State == nil {
		return ""
	}
	c.s.State.RLock()
	defer c.s.State.RUnlock()
	if c.s.State.User == nil {
		return ""
	}
	return c.s.State.User.Username
}

// SelfID returns the bot's user ID, or an empty string before the ready event.
func (c *Connection) SelfID() string {
	if c.s.State == nil {
		return ""
	}
	c.s.State.RLock()
	defer c.s.State.RUnlock()
	if c.s.State.User == nil {
		return ""
	}
	return c.s.State.User.ID
}

// GuildCount returns the number of guilds the bot is in.
func (c *Connection) GuildCount() int {
	if c.s.State == nil {
		return 0
	}
	c.s.State.RLock()
	defer c.s.State.RUnlock()
	return len(c.s.State.Guilds)
}

// Reconnect closes the gateway connection and opens it again. Callers that arrive while a reconnect is in
// flight wait for that one. When ctx ends first the reconnect carries on in the background.
func (c *Connection) Reconnect(ctx context.Context) error {
	c.mut.Lock()
	done := c.reconnecting
	if done == nil {
		done = make(chan struct{})
		c.reconnecting = done
		c.ready = false
		go c.reconnect(done)
	}
	c.mut.Unlock()

	select {
	case <-done:
		c.mut.RLock()
		defer c.mut.RUnlock()
		return c.reconnectErr
	case <-ctx.Done():
		return fmt.Errorf("error opening connection to Discord: %w", ctx.Err())
	}
}

func (c *Connection) reconnect(done chan struct{}) {
	if err := c.s.Close(); err != nil {
		c.l.Warn("Error closing connection to Discord", slog.String(logging.KeyError, err.Error()))
	}

	err := c.s.Open()
	if err != nil {
		err = fmt.Errorf("error opening connection to Discord: %w", err)
	} else {
		c.l.Info("Reconnected to Discord")
	}

	c.mut.Lock()
	// Open returns once the gateway has sent its ready event, which may not have reached the handlers yet.
	if err == nil {
		c.ready = true
	}
	c.reconnectErr = err
	c.reconnecting = nil
	c.mut.Unlock()
	close(done)
}
