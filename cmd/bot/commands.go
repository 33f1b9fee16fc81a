package main

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Jacobbrewer1/kennel/pkg/interaction"
	"github.com/Jacobbrewer1/kennel/pkg/logging"
	"github.com/bwmarrin/discordgo"
)

const (
	// channelOptionName is the panel channel option of the setup command.
	channelOptionName = "channel"

	// logsOptionName is the logs channel option of the setup command.
	logsOptionName = "logs"

	// categoryOptionName is the ticket category option of the setup command.
	categoryOptionName = "category"

	// userOptionName is the member option of the add and remove commands.
	userOptionName = "user"
)

var (
	adminPermission int64 = discordgo.PermissionAdministrator
	dmPermission          = false

	// slashCommands are registered in every guild the bot is in.
	slashCommands = []*discordgo.ApplicationCommand{
		{
			Name:                     string(interaction.CommandSetup),
			Type:                     discordgo.ChatApplicationCommand,
			Description:              "Set up the ticket system and post the ticket panel.",
			DefaultMemberPermissions: &adminPermission,
			DMPermission:             &dmPermission,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name:         channelOptionName,
					Type:         discordgo.ApplicationCommandOptionChannel,
					Description:  "The channel the ticket panel is posted in.",
					ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
					Required:     true,
				},
				{
					Name:         logsOptionName,
					Type:         discordgo.ApplicationCommandOptionChannel,
					Description:  "The channel ticket logs are sent to.",
					ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
				},
				{
					Name:         categoryOptionName,
					Type:         discordgo.ApplicationCommandOptionChannel,
					Description:  "The category tickets are created in. One is created when not given.",
					ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildCategory},
				},
			},
		},
		{
			Name:         string(interaction.CommandClose),
			Type:         discordgo.ChatApplicationCommand,
			Description:  "Close the ticket of this channel.",
			DMPermission: &dmPermission,
		},
		{
			Name:         string(interaction.CommandAdd),
			Type:         discordgo.ChatApplicationCommand,
			Description:  "Add a member to the ticket of this channel.",
			DMPermission: &dmPermission,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name:        userOptionName,
					Type:        discordgo.ApplicationCommandOptionUser,
					Description: "The member to add.",
					Required:    true,
				},
			},
		},
		{
			Name:         string(interaction.CommandRemove),
			Type:         discordgo.ChatApplicationCommand,
			Description:  "Remove a member from the ticket of this channel.",
			DMPermission: &dmPermission,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name:        userOptionName,
					Type:        discordgo.ApplicationCommandOptionUser,
					Description: "The member to remove.",
					Required:    true,
				},
			},
		},
	}
)

// commandClient is the part of the Discord API used to manage slash commands.
type commandClient interface {
	ApplicationCommandBulkOverwrite(appID, guildID string, commands []*discordgo.ApplicationCommand, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error)
	ApplicationCommandDelete(appID, guildID, cmdID string, options ...discordgo.RequestOption) error
}

// commandRegistry tracks the slash commands registered in each guild.
type commandRegistry struct {
	l     *slog.Logger
	api   commandClient
	appID string

	mut        sync.Mutex
	registered map[string][]*discordgo.ApplicationCommand
}

func newCommandRegistry(l *slog.Logger, api commandClient, appID string) *commandRegistry {
	return &commandRegistry{
		l:          l,
		api:        api,
		appID:      appID,
		registered: make(map[string][]*discordgo.ApplicationCommand),
	}
}

// register creates the slash commands in the guild unless they are already registered.
func (c *commandRegistry) register(guildID string) error {
	c.mut.Lock()
	defer c.mut.Unlock()

	if _, ok := c.registered[guildID]; ok {
		return nil
	}

	cmds, err := c.api.ApplicationCommandBulkOverwrite(c.appID, guildID, slashCommands)
	if err != nil {
		return fmt.Errorf("error creating commands for guild %s: %w", guildID, err)
	}
	c.registered[guildID] = cmds

	c.l.Debug("Registered slash commands", slog.String(logging.KeyGuildID, guildID), slog.Int("count", len(cmds)))
	return nil
}

// forget drops the commands of a guild the bot has left.
func (c *commandRegistry) forget(guildID string) {
	c.mut.Lock()
	defer c.mut.Unlock()
	delete(c.registered, guildID)
}

// unregisterAll deletes every registered command. It carries on past failures and returns them joined.
func (c *commandRegistry) unregisterAll() error {
	c.mut.Lock()
	defer c.mut.Unlock()

	errs := make([]error, 0)
	for guildID, cmds := range c.registered {
		for _, cmd := range cmds {
			if err := c.api.ApplicationCommandDelete(c.appID, guildID, cmd.ID); err != nil {
				errs = append(errs, fmt.Errorf("error deleting %s command for guild %s: %w", cmd.Name, guildID, err))
			}
		}
		delete(c.registered, guildID)
	}
	return errors.Join(errs...)
}
