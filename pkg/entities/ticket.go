package entities

import (
	"fmt"
	"strings"
	"time"
)

// TicketStatus is the lifecycle state of a ticket.
type TicketStatus string

const (
	// TicketStatusOpen is a ticket whose channel is in use.
	TicketStatusOpen TicketStatus = "open"

	// TicketStatusClosed is a ticket that has been closed or archived. It is terminal.
	TicketStatusClosed TicketStatus = "closed"
)

// Ticket is a support request backed by a private channel.
type Ticket struct {
	// ID is the store assigned identity. It is never reused.
	ID int64 `json:"id" bson:"id"`

	// TicketID is the short public identifier used in the channel name.
	TicketID string `json:"ticketId" bson:"ticket_id"`

	// GuildID is the ID of the guild that the ticket is in.
	GuildID string `json:"guildId" bson:"guild_id"`

	// ChannelID is the ID of the channel that the ticket is in.
	ChannelID string `json:"channelId" bson:"channel_id"`

	// UserID is the ID of the user that created the ticket.
	UserID string `json:"userId" bson:"user_id"`

	// UserName is the name of the user that created the ticket.
	UserName string `json:"userName" bson:"user_name"`

	// Type is the category of the request.
	Type TicketType `json:"type" bson:"type"`

	// Reason is the free text given when opening the ticket.
	Reason string `json:"reason,omitempty" bson:"reason,omitempty"`

	// Status is the lifecycle state.
	Status TicketStatus `json:"status" bson:"status"`

	// CreatedAt is the time that the ticket was created.
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`

	// ClosedAt is the time that the ticket was closed.
	ClosedAt *time.Time `json:"closedAt" bson:"closed_at"`

	// ClosedBy is the ID of the user that closed the ticket.
	ClosedBy *string `json:"closedBy" bson:"closed_by"`
}

// Closer returns the ID of the user that closed the ticket, empty while it is open.
func (t *Ticket) Closer() string {
	if t.ClosedBy == nil {
		return ""
	}
	return *t.ClosedBy
}

// IsOpen reports whether the ticket is open.
func (t *Ticket) IsOpen() bool {
	return t.Status == TicketStatusOpen
}

// ChannelName is the name of the channel backing the ticket, e.g. "ticket-general-4821".
func (t *Ticket) ChannelName() string {
	return ChannelName(t.Type, t.TicketID)
}

// ChannelName derives a ticket channel name from the first token of the type and the ticket ID.
func ChannelName(typ TicketType, ticketID string) string {
	first, _, _ := strings.Cut(string(typ), "-")
	return fmt.Sprintf("ticket-%s-%s", first, ticketID)
}

// Clone returns a copy of the ticket.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	c := *t
	if t.ClosedAt != nil {
		closedAt := *t.ClosedAt
		c.ClosedAt = &closedAt
	}
	if t.ClosedBy != nil {
		closedBy := *t.ClosedBy
		c.ClosedBy = &closedBy
	}
	return &c
}
