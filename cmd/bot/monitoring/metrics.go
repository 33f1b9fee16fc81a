package monitoring

import (
	"fmt"

	"github.com/Jacobbrewer1/kennel/cmd/bot/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TotalDiscordEvents is the total number of events.
	TotalDiscordEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_total_discord_events", config.AppName),
			Help: "Total number of events",
		},
		[]string{"event"},
	)

	// TotalDiscordGuilds is the number of guilds the bot is in.
	TotalDiscordGuilds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_total_discord_guilds", config.AppName),
			Help: "Total number of discord guilds",
		},
	)

	// InteractionTotal is the number of handled interactions by kind and outcome.
	InteractionTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_interactions_total", config.AppName),
			Help: "Total number of handled interactions",
		},
		[]string{"kind", "outcome"},
	)

	// InteractionDuration is the time taken to handle an interaction.
	InteractionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: fmt.Sprintf("%s_interaction_duration", config.AppName),
			Help: "Duration of interaction handling",
		},
		[]string{"kind"},
	)
)
