package tickets

import (
	"context"
	"errors"
	"time"

	"github.com/Jacobbrewer1/kennel/pkg/entities"
	"github.com/Jacobbrewer1/kennel/pkg/permissions"
)

// ErrChannelNotFound is returned by a ChannelProvider when the channel does not exist.
var ErrChannelNotFound = errors.New("channel not found")

// ChannelKind is the kind of a platform channel.
type ChannelKind int

const (
	ChannelKindOther ChannelKind = iota
	ChannelKindText
	ChannelKindCategory
	ChannelKindThread
)

// TargetKind is what a permission overwrite applies to.
type TargetKind int

const (
	TargetRole TargetKind = iota
	TargetMember
)

// Overwrite is an explicit permission entry on a channel.
type Overwrite struct {
	TargetID   string
	TargetKind TargetKind
	Allow      permissions.Set
	Deny       permissions.Set
}

// Channel is a platform channel.
type Channel struct {
	ID         string
	GuildID    string
	ParentID   string
	Name       string
	Kind       ChannelKind
	Overwrites []Overwrite
}

// Overwrite returns the explicit permission entry for the target, if any.
func (c *Channel) Overwrite(targetID string) (Overwrite, bool) {
	for _, o := range c.Overwrites {
		if o.TargetID == targetID {
			return o, true
		}
	}
	return Overwrite{}, false
}

// Role is a guild role.
type Role struct {
	ID   string
	Name string
}

// CreateChannelParams describes a channel to create.
type CreateChannelParams struct {
	GuildID    string
	ParentID   string
	Name       string
	Topic      string
	Kind       ChannelKind
	Overwrites []Overwrite
}

// NoticeKind selects how a notice is rendered.
type NoticeKind int

const (
	// NoticeTicketIntro is the first message in a new ticket, with the ticket controls.
	NoticeTicketIntro NoticeKind = iota

	// NoticeTicketWelcome is the templated welcome message in a new ticket.
	NoticeTicketWelcome

	// NoticeTicketClosed is posted in a ticket when it is closed.
	NoticeTicketClosed

	// NoticeTicketArchived is posted in a ticket when it is archived.
	NoticeTicketArchived

	// NoticeArchiveThread is posted in the archive thread.
	NoticeArchiveThread

	// NoticeLogCreated is the log entry for a created ticket.
	NoticeLogCreated

	// NoticeLogClosed is the log entry for a closed ticket.
	NoticeLogClosed

	// NoticeLogArchived is the log entry for an archived ticket.
	NoticeLogArchived

	// NoticePanel is the ticket panel listing the guild's ticket types.
	NoticePanel
)

// Notice is a message for the provider to render and send.
type Notice struct {
	Kind NoticeKind

	Ticket *entities.Ticket
	Guild  *entities.Guild

	// Actor is the user that triggered the notice.
	Actor Actor

	// DeleteAfter is how long until the ticket channel is deleted.
	DeleteAfter time.Duration
}

// ChannelProvider manages channels and permissions on the chat platform.
type ChannelProvider interface {
	// SelfID returns the user ID of the bot account.
	SelfID() string

	// FetchChannel returns ErrChannelNotFound if the channel does not exist.
	FetchChannel(ctx context.Context, channelID string) (*Channel, error)

	GuildRoles(ctx context.Context, guildID string) ([]Role, error)

	CreateChannel(ctx context.Context, params CreateChannelParams) (*Channel, error)

	// EditPermission creates or replaces the overwrite for its target.
	EditPermission(ctx context.Context, channelID string, overwrite Overwrite) error

	// DeletePermission removes the overwrite for the target.
	DeletePermission(ctx context.Context, channelID, targetID string) error

	// DeleteChannel returns ErrChannelNotFound if the channel does not exist.
	DeleteChannel(ctx context.Context, channelID string) error

	// CreateThread creates a thread under the channel.
	CreateThread(ctx context.Context, channelID, name string) (*Channel, error)

	Send(ctx context.Context, channelID string, notice Notice) error
}

// Actor is the user performing an operation.
type Actor struct {
	ID   string
	Name string

	// Permissions are the actor's capabilities in the channel the operation came from.
	Permissions permissions.Set
}

// Can reports whether the actor holds the capability. Administrators hold every capability.
func (a Actor) Can(c permissions.Capability) bool {
	return a.Permissions.Has(c) || a.Permissions.Has(permissions.Administrator)
}
