package main

import (
	"log/slog"

	"github.com/Jacobbrewer1/kennel/cmd/bot/monitoring"
	"github.com/Jacobbrewer1/kennel/pkg/logging"
	"github.com/bwmarrin/discordgo"
)

func guildJoinedHandler(a *App) func(s *discordgo.Session, g *discordgo.GuildCreate) {
	return func(_ *discordgo.Session, g *discordgo.GuildCreate) {
		a.Info("Joined guild", slog.String(logging.KeyGuildID, g.ID), slog.String("name", g.Name))

		// The state is updated before handlers run.
		monitoring.TotalDiscordGuilds.Set(float64(a.conn.GuildCount()))

		// Guilds joined after startup need their commands.
		if err := a.commands.register(g.ID); err != nil {
			a.Error("Error registering slash commands",
				slog.String(logging.KeyGuildID, g.ID),
				slog.String(logging.KeyError, err.Error()),
			)
		}
	}
}

func guildLeaveHandler(a *App) func(s *discordgo.Session, g *discordgo.GuildDelete) {
	return func(_ *discordgo.Session, g *discordgo.GuildDelete) {
		if g.Unavailable {
			// An outage, not a removal.
			return
		}
		a.Info("Left guild", slog.String(logging.KeyGuildID, g.ID))

		monitoring.TotalDiscordGuilds.Set(float64(a.conn.GuildCount()))
		a.commands.forget(g.ID)
	}
}
