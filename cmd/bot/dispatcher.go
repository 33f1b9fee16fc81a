package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Jacobbrewer1/kennel/cmd/bot/monitoring"
	"github.com/Jacobbrewer1/kennel/pkg/discord"
	"github.com/Jacobbrewer1/kennel/pkg/entities"
	"github.com/Jacobbrewer1/kennel/pkg/interaction"
	"github.com/Jacobbrewer1/kennel/pkg/logging"
	"github.com/Jacobbrewer1/kennel/pkg/tickets"
	"github.com/bwmarrin/discordgo"
	"github.com/prometheus/client_golang/prometheus"
)

// interactionTimeout bounds the handling of one interaction.
const interactionTimeout = time.Minute

const (
	msgUnknownInteraction = "This action is not recognised."
	msgTicketArchived     = "Ticket %s has been archived."
	msgTicketClosed       = "Ticket %s has been closed."
	msgTicketCreated      = "Your ticket has been created: <#%s>"
	msgMemberAdded        = "<@%s> has been added to the ticket."
	msgMemberRemoved      = "<@%s> has been removed from the ticket."
	msgGuildConfigured    = "The ticket system is set up. The panel was posted in <#%s>."
)

// ticketEngine is the ticket lifecycle the dispatcher drives.
type ticketEngine interface {
	CreateTicket(ctx context.Context, req tickets.CreateRequest) (*entities.Ticket, error)
	CloseTicket(ctx context.Context, req tickets.CloseRequest) (*entities.Ticket, error)
	AddUser(ctx context.Context, req tickets.MemberRequest) (*entities.Ticket, error)
	RemoveUser(ctx context.Context, req tickets.MemberRequest) (*entities.Ticket, error)
	ConfigureGuild(ctx context.Context, req tickets.SetupRequest) (*entities.Guild, error)
}

// responder answers interactions. *discordgo.Session implements it.
type responder interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// dispatcher routes interactions to the ticket engine.
type dispatcher struct {
	l      *slog.Logger
	engine ticketEngine
	resp   responder

	// guildName resolves the name of a guild, empty if unknown.
	guildName func(guildID string) string
}

func newDispatcher(l *slog.Logger, engine ticketEngine, resp responder, guildName func(string) string) *dispatcher {
	return &dispatcher{
		l:         l,
		engine:    engine,
		resp:      resp,
		guildName: guildName,
	}
}

// handler is registered with the session.
func (d *dispatcher) handler() func(s *discordgo.Session, i *discordgo.InteractionCreate) {
	return func(_ *discordgo.Session, i *discordgo.InteractionCreate) {
		d.dispatch(i.Interaction)
	}
}

func (d *dispatcher) dispatch(i *discordgo.Interaction) {
	kind := i.Type.String()
	t := prometheus.NewTimer(monitoring.InteractionDuration.WithLabelValues(kind))
	defer t.ObserveDuration()

	l := d.l.With(
		slog.String(logging.KeyGuildID, i.GuildID),
		slog.String(logging.KeyChannelID, i.ChannelID),
	)

	ev, err := parseInteraction(i)
	if err != nil {
		if !errors.Is(err, interaction.ErrUnknownInteraction) {
			return
		}
		l.Warn("Unknown interaction", slog.String(logging.KeyError, err.Error()))
		monitoring.InteractionTotal.WithLabelValues(kind, "unknown").Inc()
		d.respondEphemeral(l, i, msgUnknownInteraction)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), interactionTimeout)
	defer cancel()

	outcome := "ok"
	if err := d.handle(ctx, l, i, ev); err != nil {
		outcome = "refused"
		if k := tickets.KindOf(err); k == tickets.KindExternal || k == tickets.KindInternal {
			outcome = "error"
			l.Error("Error handling interaction", slog.String(logging.KeyError, err.Error()))
		} else {
			l.Debug("Interaction refused", slog.String(logging.KeyError, err.Error()))
		}
		d.reply(l, i, err)
	}
	monitoring.InteractionTotal.WithLabelValues(kind, outcome).Inc()
}

// parseInteraction turns an interaction into an event. Interactions of other types return a nil event and
// an error that is not interaction.ErrUnknownInteraction.
func parseInteraction(i *discordgo.Interaction) (interaction.Event, error) {
	switch i.Type {
	case discordgo.InteractionMessageComponent:
		data := i.MessageComponentData()
		if data.ComponentType == discordgo.SelectMenuComponent {
			return interaction.ParseSelectMenu(data.CustomID, data.Values)
		}
		return interaction.ParseButton(data.CustomID)
	case discordgo.InteractionModalSubmit:
		data := i.ModalSubmitData()
		return interaction.ParseModalSubmit(data.CustomID, discord.ModalValue(data, discord.DescriptionInputID))
	case discordgo.InteractionApplicationCommand:
		return interaction.ParseSlashCommand(i.ApplicationCommandData().Name)
	default:
		return nil, fmt.Errorf("ignored interaction type %s", i.Type)
	}
}

// handle runs the event. Forms are shown immediately, everything else is deferred and answered by editing the
// deferred response.
func (d *dispatcher) handle(ctx context.Context, l *slog.Logger, i *discordgo.Interaction, ev interaction.Event) error {
	switch ev := ev.(type) {
	case interaction.Button:
		if ev.Action == interaction.ActionCreate {
			return d.showModal(i, ev.Type)
		}
		return d.deferred(l, i, func() (string, error) {
			return d.closeTicket(ctx, i, ev.Action == interaction.ActionArchive)
		})
	case interaction.SelectMenu:
		if ev.Value == interaction.ReasonOther {
			return d.showModal(i, ev.Type)
		}
		return d.deferred(l, i, func() (string, error) {
			return d.createTicket(ctx, i, ev.Type, ev.Value)
		})
	case interaction.ModalSubmit:
		return d.deferred(l, i, func() (string, error) {
			return d.createTicket(ctx, i, ev.Type, ev.Description)
		})
	case interaction.SlashCommand:
		return d.deferred(l, i, func() (string, error) {
			return d.command(ctx, i, ev.Name)
		})
	default:
		return fmt.Errorf("unhandled event %T", ev)
	}
}

func (d *dispatcher) command(ctx context.Context, i *discordgo.Interaction, name interaction.Command) (string, error) {
	opts := commandOptions(i)
	switch name {
	case interaction.CommandSetup:
		req := tickets.SetupRequest{
			GuildID:        i.GuildID,
			GuildName:      d.guildName(i.GuildID),
			Actor:          actorOf(i),
			PanelChannelID: optionID(opts, channelOptionName),
			LogsChannelID:  optionID(opts, logsOptionName),
			CategoryID:     optionID(opts, categoryOptionName),
		}
		guild, err := d.engine.ConfigureGuild(ctx, req)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf(msgGuildConfigured, guild.TicketChannelID), nil
	case interaction.CommandClose:
		return d.closeTicket(ctx, i, false)
	case interaction.CommandAdd:
		req := tickets.MemberRequest{ChannelID: i.ChannelID, Actor: actorOf(i), TargetID: optionID(opts, userOptionName)}
		if _, err := d.engine.AddUser(ctx, req); err != nil {
			return "", err
		}
		return fmt.Sprintf(msgMemberAdded, req.TargetID), nil
	case interaction.CommandRemove:
		req := tickets.MemberRequest{ChannelID: i.ChannelID, Actor: actorOf(i), TargetID: optionID(opts, userOptionName)}
		if _, err := d.engine.RemoveUser(ctx, req); err != nil {
			return "", err
		}
		return fmt.Sprintf(msgMemberRemoved, req.TargetID), nil
	default:
		return "", fmt.Errorf("unhandled command %s", name)
	}
}

func (d *dispatcher) createTicket(ctx context.Context, i *discordgo.Interaction, typ entities.TicketType, reason string) (string, error) {
	ticket, err := d.engine.CreateTicket(ctx, tickets.CreateRequest{
		GuildID: i.GuildID,
		User:    actorOf(i),
		Type:    typ,
		Reason:  reason,
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(msgTicketCreated, ticket.ChannelID), nil
}

func (d *dispatcher) closeTicket(ctx context.Context, i *discordgo.Interaction, archive bool) (string, error) {
	ticket, err := d.engine.CloseTicket(ctx, tickets.CloseRequest{
		ChannelID: i.ChannelID,
		Actor:     actorOf(i),
		Archive:   archive,
	})
	if err != nil {
		return "", err
	}
	if archive {
		return fmt.Sprintf(msgTicketArchived, ticket.TicketID), nil
	}
	return fmt.Sprintf(msgTicketClosed, ticket.TicketID), nil
}

func (d *dispatcher) showModal(i *discordgo.Interaction, typ entities.TicketType) error {
	if err := d.resp.InteractionRespond(i, discord.DescriptionModal(typ)); err != nil {
		return fmt.Errorf("error showing ticket form: %w", err)
	}
	return nil
}

// errDeferred marks an error whose reply must edit the deferred response.
type errDeferred struct {
	err error
}

func (e *errDeferred) Error() string {
	return e.err.Error()
}

func (e *errDeferred) Unwrap() error {
	return e.err
}

// deferred acknowledges the interaction privately, runs f and edits the acknowledgement with its result.
func (d *dispatcher) deferred(l *slog.Logger, i *discordgo.Interaction, f func() (string, error)) error {
	if err := d.resp.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: discordgo.MessageFlagsEphemeral,
		},
	}); err != nil {
		return fmt.Errorf("error deferring interaction: %w", err)
	}

	msg, err := f()
	if err != nil {
		return &errDeferred{err: err}
	}
	d.edit(l, i, msg)
	return nil
}

// reply sends the refusal for err, editing the deferred response if there is one.
func (d *dispatcher) reply(l *slog.Logger, i *discordgo.Interaction, err error) {
	msg := tickets.UserMessage(err)
	var de *errDeferred
	if errors.As(err, &de) {
		d.edit(l, i, msg)
		return
	}
	d.respondEphemeral(l, i, msg)
}

func (d *dispatcher) edit(l *slog.Logger, i *discordgo.Interaction, msg string) {
	if _, err := d.resp.InteractionResponseEdit(i, &discordgo.WebhookEdit{Content: &msg}); err != nil {
		l.Error("Error editing interaction response", slog.String(logging.KeyError, err.Error()))
	}
}

func (d *dispatcher) respondEphemeral(l *slog.Logger, i *discordgo.Interaction, content string) {
	if err := d.resp.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	}); err != nil {
		l.Error("Error responding to interaction", slog.String(logging.KeyError, err.Error()))
	}
}

// actorOf is the user that triggered the interaction, with their permissions in its channel.
func actorOf(i *discordgo.Interaction) tickets.Actor {
	if i.Member != nil && i.Member.User != nil {
		return tickets.Actor{
			ID:          i.Member.User.ID,
			Name:        i.Member.User.Username,
			Permissions: discord.Capabilities(i.Member.Permissions),
		}
	}
	if i.User != nil {
		return tickets.Actor{ID: i.User.ID, Name: i.User.Username}
	}
	return tickets.Actor{}
}

func commandOptions(i *discordgo.Interaction) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	opts := make(map[string]*discordgo.ApplicationCommandInteractionDataOption)
	for _, o := range i.ApplicationCommandData().Options {
		opts[o.Name] = o
	}
	return opts
}

// optionID returns the ID held by a channel or user option, or an empty string when it was not given.
func optionID(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	o, ok := opts[name]
	if !ok {
		return ""
	}
	id, _ := o.Value.(string)
	return id
}
