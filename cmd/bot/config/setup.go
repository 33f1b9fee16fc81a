package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Jacobbrewer1/kennel/pkg/api"
	"github.com/Jacobbrewer1/kennel/pkg/dataaccess"
	"github.com/joho/godotenv"
)

// LoadEnvFile loads the variables in the .env file into the environment. Variables that are already set are kept.
// A missing file is not an error.
func LoadEnvFile() error {
	if err := godotenv.Load(EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error loading %s: %w", EnvFile, err)
	}
	return nil
}

// Parse reads the configuration from the environment.
func Parse(l *slog.Logger) (*Config, error) {
	return parse(l, os.LookupEnv)
}

func parse(l *slog.Logger, lookup func(string) (string, bool)) (*Config, error) {
	c := &Config{
		MongoDatabase:     dataaccess.DefaultMongoDatabase,
		HttpPort:          defaultHttpPort,
		TicketDeleteDelay: defaultDeleteDelay,
		ProviderTimeout:   defaultProviderTimeout,
		ApiRateLimit:      defaultApiRateLimit,
	}

	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		if !ok || v == "" {
			return "", false
		}
		l.Debug("Found value in environment", slog.String("key", key))
		return v, true
	}

	missing := make([]string, 0)
	if v, ok := get(EnvBotToken); ok {
		c.BotToken = v
	} else {
		missing = append(missing, EnvBotToken)
	}

	if v, ok := get(EnvApplicationId); ok {
		c.ApplicationId = v
	} else {
		missing = append(missing, EnvApplicationId)
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	if v, ok := get(EnvMongoUri); ok {
		c.MongoUri = v
	} else {
		l.Info("No MongoDB URI provided in environment, tickets will be stored in memory", slog.String("key", EnvMongoUri))
	}

	if v, ok := get(EnvMongoDatabase); ok {
		c.MongoDatabase = v
	}

	if v, ok := get(EnvHttpPort); ok {
		if _, err := strconv.ParseUint(v, 10, 16); err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", EnvHttpPort, v, err)
		}
		c.HttpPort = v
	} else {
		l.Info("No http port provided in environment, defaulting to "+defaultHttpPort, slog.String("key", EnvHttpPort))
	}

	var err error
	if c.TicketDeleteDelay, err = duration(get, EnvTicketDeleteDelay, c.TicketDeleteDelay); err != nil {
		return nil, err
	}
	if c.ProviderTimeout, err = duration(get, EnvProviderTimeout, c.ProviderTimeout); err != nil {
		return nil, err
	}

	if v, ok := get(EnvApiRateLimit); ok {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil || rps < 0 {
			return nil, fmt.Errorf("invalid %s %q: must be a non negative number", EnvApiRateLimit, v)
		}
		c.ApiRateLimit = rps
	}

	if v, ok := get(EnvApiTrustedProxies); ok {
		proxies, err := api.ParseTrustedProxies(strings.Split(v, ","))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvApiTrustedProxies, err)
		}
		c.ApiTrustedProxies = proxies
	}

	// All required environment variables have been provided.
	l.Debug("Configuration parsed")
	return c, nil
}

func duration(get func(string) (string, bool), key string, def time.Duration) (time.Duration, error) {
	v, ok := get(key)
	if !ok {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", key, v)
	}
	return d, nil
}
