// Package discord adapts a Discord session to the ticket engine.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Jacobbrewer1/kennel/pkg/logging"
	"github.com/Jacobbrewer1/kennel/pkg/tickets"
	"github.com/bwmarrin/discordgo"
)

// archiveDuration is how long, in minutes, an archive thread stays active.
const archiveDuration = 10080

// RESTClient is the part of the Discord REST API the provider uses. *discordgo.Session implements it.
type RESTClient interface {
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	GuildRoles(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Role, error)
	GuildChannelCreateComplex(guildID string, data discordgo.GuildChannelCreateData, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelPermissionSet(channelID, targetID string, targetType discordgo.PermissionOverwriteType, allow, deny int64, options ...discordgo.RequestOption) error
	ChannelPermissionDelete(channelID, targetID string, options ...discordgo.RequestOption) error
	ChannelDelete(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ThreadStart(channelID, name string, typ discordgo.ChannelType, archiveDuration int, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

var _ RESTClient = (*discordgo.Session)(nil)

// Provider is a tickets.ChannelProvider backed by the Discord REST API.
type Provider struct {
	l    *slog.Logger
	api  RESTClient
	self func() string
}

var _ tickets.ChannelProvider = (*Provider)(nil)

// NewProvider creates a Provider. self returns the bot's user ID.
func NewProvider(l *slog.Logger, api RESTClient, self func() string) *Provider {
	return &Provider{
		l:    l,
		api:  api,
		self: self,
	}
}

func (p *Provider) SelfID() string {
	return p.self()
}

func (p *Provider) FetchChannel(ctx context.Context, channelID string) (*tickets.Channel, error) {
	ch, err := p.api.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("error fetching channel %s: %w", channelID, mapError(err))
	}
	return toChannel(ch), nil
}

func (p *Provider) GuildRoles(ctx context.Context, guildID string) ([]tickets.Role, error) {
	roles, err := p.api.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("error getting roles of guild %s: %w", guildID, mapError(err))
	}
	out := make([]tickets.Role, 0, len(roles))
	for _, r := range roles {
		out = append(out, tickets.Role{ID: r.ID, Name: r.Name})
	}
	return out, nil
}

func (p *Provider) CreateChannel(ctx context.Context, params tickets.CreateChannelParams) (*tickets.Channel, error) {
	overwrites := make([]*discordgo.PermissionOverwrite, 0, len(params.Overwrites))
	for _, o := range params.Overwrites {
		overwrites = append(overwrites, toOverwrite(o))
	}

	ch, err := p.api.GuildChannelCreateComplex(params.GuildID, discordgo.GuildChannelCreateData{
		Name:                 params.Name,
		Type:                 channelType(params.Kind),
		Topic:                params.Topic,
		ParentID:             params.ParentID,
		PermissionOverwrites: overwrites,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("error creating channel %s: %w", params.Name, mapError(err))
	}
	return toChannel(ch), nil
}

func (p *Provider) EditPermission(ctx context.Context, channelID string, overwrite tickets.Overwrite) error {
	o := toOverwrite(overwrite)
	if err := p.api.ChannelPermissionSet(channelID, o.ID, o.Type, o.Allow, o.Deny, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("error setting permissions on channel %s: %w", channelID, mapError(err))
	}
	return nil
}

func (p *Provider) DeletePermission(ctx context.Context, channelID, targetID string) error {
	if err := p.api.ChannelPermissionDelete(channelID, targetID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("error deleting permissions on channel %s: %w", channelID, mapError(err))
	}
	return nil
}

func (p *Provider) DeleteChannel(ctx context.Context, channelID string) error {
	if _, err := p.api.ChannelDelete(channelID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("error deleting channel %s: %w", channelID, mapError(err))
	}
	return nil
}

func (p *Provider) CreateThread(ctx context.Context, channelID, name string) (*tickets.Channel, error) {
	th, err := p.api.ThreadStart(channelID, name, discordgo.ChannelTypeGuildPublicThread, archiveDuration, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("error starting thread in channel %s: %w", channelID, mapError(err))
	}
	return toChannel(th), nil
}

func (p *Provider) Send(ctx context.Context, channelID string, notice tickets.Notice) error {
	msg, err := Render(notice)
	if err != nil {
		return err
	}
	if _, err := p.api.ChannelMessageSendComplex(channelID, msg, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("error sending message to channel %s: %w", channelID, mapError(err))
	}
	p.l.Debug("Notice sent",
		slog.String(logging.KeyChannelID, channelID),
		slog.Int("kind", int(notice.Kind)),
	)
	return nil
}

// mapError turns Discord's unknown channel responses into tickets.ErrChannelNotFound.
func mapError(err error) error {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return err
	}
	if restErr.Message != nil && restErr.Message.Code == discordgo.ErrCodeUnknownChannel {
		return fmt.Errorf("%w: %s", tickets.ErrChannelNotFound, restErr.Message.Message)
	}
	if restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
		return tickets.ErrChannelNotFound
	}
	return err
}

func channelType(k tickets.ChannelKind) discordgo.ChannelType {
	switch k {
	case tickets.ChannelKindCategory:
		return discordgo.ChannelTypeGuildCategory
	case tickets.ChannelKindThread:
		return discordgo.ChannelTypeGuildPublicThread
	default:
		return discordgo.ChannelTypeGuildText
	}
}

func channelKind(t discordgo.ChannelType) tickets.ChannelKind {
	switch t {
	case discordgo.ChannelTypeGuildText:
		return tickets.ChannelKindText
	case discordgo.ChannelTypeGuildCategory:
		return tickets.ChannelKindCategory
	case discordgo.ChannelTypeGuildPublicThread, discordgo.ChannelTypeGuildPrivateThread, discordgo.ChannelTypeGuildNewsThread:
		return tickets.ChannelKindThread
	default:
		return tickets.ChannelKindOther
	}
}

func toChannel(ch *discordgo.Channel) *tickets.Channel {
	out := &tickets.Channel{
		ID:         ch.ID,
		GuildID:    ch.GuildID,
		ParentID:   ch.ParentID,
		Name:       ch.Name,
		Kind:       channelKind(ch.Type),
		Overwrites: make([]tickets.Overwrite, 0, len(ch.PermissionOverwrites)),
	}
	for _, o := range ch.PermissionOverwrites {
		kind := tickets.TargetRole
		if o.Type == discordgo.PermissionOverwriteTypeMember {
			kind = tickets.TargetMember
		}
		out.Overwrites = append(out.Overwrites, tickets.Overwrite{
			TargetID:   o.ID,
			TargetKind: kind,
			Allow:      Capabilities(o.Allow),
			Deny:       Capabilities(o.Deny),
		})
	}
	return out
}

func toOverwrite(o tickets.Overwrite) *discordgo.PermissionOverwrite {
	typ := discordgo.PermissionOverwriteTypeRole
	if o.TargetKind == tickets.TargetMember {
		typ = discordgo.PermissionOverwriteTypeMember
	}
	return &discordgo.PermissionOverwrite{
		ID:    o.TargetID,
		Type:  typ,
		Allow: Bits(o.Allow),
		Deny:  Bits(o.Deny),
	}
}
