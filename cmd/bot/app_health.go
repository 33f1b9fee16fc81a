package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alexliesenfeld/health"
)

func (a *App) healthCheck() http.Handler {
	opts := []health.CheckerOption{
		// Set a TTL of 1 second for the results of the checks.
		health.WithCacheDuration(1 * time.Second),

		// Set a timeout of 2 seconds for the checks.
		health.WithTimeout(2 * time.Second),

		// The gateway connection is up.
		health.WithCheck(health.Check{
			Name: "Discord_Gateway",
			Check: func(ctx context.Context) error {
				if !a.conn.IsReady() {
					return errors.New("discord gateway is not connected")
				}
				return nil
			},
			StatusListener: a.healthStatusListener,
		}),

		// Monitor the health of the Discord API.
		health.WithPeriodicCheck(15*time.Second, 5*time.Second, health.Check{
			Name: "Discord_API",
			Check: func(ctx context.Context) error {
				if _, err := a.s.GatewayBot(); err != nil {
					return fmt.Errorf("failed to ping Discord API: %w", err)
				}
				return nil
			},
			Timeout:        3 * time.Second,
			StatusListener: a.healthStatusListener,
		}),
	}

	if a.mongo != nil {
		// Monitor the health of the database (MongoDB).
		opts = append(opts, health.WithCheck(health.Check{
			Name: "MongoDB",
			Check: func(ctx context.Context) error {
				if err := a.mongo.Ping(ctx); err != nil {
					return fmt.Errorf("failed to ping MongoDB: %w", err)
				}
				return nil
			},
			Timeout:        2 * time.Second,
			StatusListener: a.healthStatusListener,
		}))
	}

	return health.NewHandler(health.NewChecker(opts...))
}

func (a *App) healthStatusListener(_ context.Context, name string, state health.CheckState) {
	a.Info("Health check status changed",
		slog.String("name", name),
		slog.String("state", string(state.Status)),
	)
}
