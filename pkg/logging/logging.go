package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	// KeyError is the key for an error attribute.
	KeyError = "err"

	// KeyDal is the key for the data access layer attribute.
	KeyDal = "dal"

	// KeyGuildID is the key for a guild ID attribute.
	KeyGuildID = "guild_id"

	// KeyChannelID is the key for a channel ID attribute.
	KeyChannelID = "channel_id"

	// KeyUserID is the key for a user ID attribute.
	KeyUserID = "user_id"

	// KeyTicketID is the key for a ticket ID attribute.
	KeyTicketID = "ticket_id"

	// KeyRequestID is the key for an HTTP request ID attribute.
	KeyRequestID = "request_id"
)

// Name is the name of the application doing the logging.
type Name string

// Config is the configuration for a logger.
type Config struct {
	// appName is attached to every record.
	appName Name

	// level is the minimum level that is written.
	level slog.Level

	// w is where the records are written.
	w io.Writer
}

// NewConfig creates a logging configuration for the given application at info level.
func NewConfig(appName Name) *Config {
	return &Config{
		appName: appName,
		level:   slog.LevelInfo,
		w:       os.Stdout,
	}
}

// WithLevel parses the level (debug, info, warn or error) and applies it to the config.
func (c *Config) WithLevel(level string) error {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		c.level = slog.LevelInfo
	case "debug":
		c.level = slog.LevelDebug
	case "warn", "warning":
		c.level = slog.LevelWarn
	case "error":
		c.level = slog.LevelError
	default:
		return fmt.Errorf("unknown log level %q", level)
	}
	return nil
}

// WithWriter sets the output of the logger.
func (c *Config) WithWriter(w io.Writer) *Config {
	c.w = w
	return c
}

// CommonLogger creates the JSON logger used throughout the application and installs it as the default.
func CommonLogger(c *Config) (*slog.Logger, error) {
	if c == nil {
		return nil, fmt.Errorf("logging config is nil")
	}

	w := c.w
	if w == nil {
		w = os.Stdout
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		AddSource: c.level == slog.LevelDebug,
		Level:     c.level,
	})

	l := slog.New(h).With(slog.String("app", string(c.appName)))
	slog.SetDefault(l)
	return l, nil
}
