package logging

import (
	"log/slog"
	"os"
)

const (
	// KeyError is the log key used for errors.
	KeyError = "err"

	// KeyDal is the log key used for the data access layer name.
	KeyDal = "dal"

	// KeyAppName is the log key used for the application name.
	KeyAppName = "app"

	// KeyGuild is the log key used for the guild ID.
	KeyGuild = "guild"

	// KeyUser is the log key used for the user ID.
	KeyUser = "user"

	// KeyChannel is the log key used for the channel ID.
	KeyChannel = "channel"
)

// Name is the name of the application that the logger is for.
type Name string

// Config is the configuration for a logger.
type Config struct {
	// name is the application name appended to every log line.
	name Name

	// level is the minimum level that will be logged.
	level slog.Leveler
}

// NewConfig creates a new logging config for the named application.
func NewConfig(name Name) *Config {
	return &Config{
		name:  name,
		level: slog.LevelDebug,
	}
}

// CommonLogger creates the common logger for the application. The logger
// writes JSON to stdout and is also installed as the slog default.
func CommonLogger(c *Config) (*slog.Logger, error) {
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: c.level,
	})

	l := slog.New(h).With(slog.String(KeyAppName, string(c.name)))
	slog.SetDefault(l)
	return l, nil
}
