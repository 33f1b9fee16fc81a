package permissions

import "strings"

// Capability is a platform independent channel permission.
type Capability uint8

const (
	// View allows a member to see the channel.
	View Capability = iota

	// Send allows a member to send messages.
	Send

	// ReadHistory allows a member to read previous messages.
	ReadHistory

	// Attach allows a member to upload files.
	Attach

	// EmbedLinks allows links posted by the member to be embedded.
	EmbedLinks

	// ManageMessages allows a member to delete and pin messages of others.
	ManageMessages

	// ManageChannels allows a member to edit and delete channels.
	ManageChannels

	// Administrator grants every permission.
	Administrator

	capabilityCount
)

var capabilityNames = [...]string{
	View:           "view",
	Send:           "send",
	ReadHistory:    "read_history",
	Attach:         "attach",
	EmbedLinks:     "embed_links",
	ManageMessages: "manage_messages",
	ManageChannels: "manage_channels",
	Administrator:  "administrator",
}

// String returns the name of the capability.
func (c Capability) String() string {
	if c >= capabilityCount {
		return "unknown"
	}
	return capabilityNames[c]
}

// Set is a set of capabilities.
type Set uint16

// Of builds a set from the given capabilities.
func Of(caps ...Capability) Set {
	var s Set
	for _, c := range caps {
		s = s.With(c)
	}
	return s
}

// Has reports whether c is in the set.
func (s Set) Has(c Capability) bool {
	return c < capabilityCount && s&(1<<c) != 0
}

// With returns the set with c added.
func (s Set) With(c Capability) Set {
	if c >= capabilityCount {
		return s
	}
	return s | 1<<c
}

// Without returns the set with c removed.
func (s Set) Without(c Capability) Set {
	if c >= capabilityCount {
		return s
	}
	return s &^ (1 << c)
}

// Union returns the capabilities in either set.
func (s Set) Union(o Set) Set {
	return s | o
}

// Capabilities lists the members of the set in declaration order.
func (s Set) Capabilities() []Capability {
	caps := make([]Capability, 0, capabilityCount)
	for c := Capability(0); c < capabilityCount; c++ {
		if s.Has(c) {
			caps = append(caps, c)
		}
	}
	return caps
}

// IsEmpty reports whether the set has no members.
func (s Set) IsEmpty() bool {
	return s == 0
}

// String returns the capability names joined by "|".
func (s Set) String() string {
	caps := s.Capabilities()
	names := make([]string, len(caps))
	for i, c := range caps {
		names[i] = c.String()
	}
	return strings.Join(names, "|")
}

var (
	// TicketOwner is granted to the member that opened a ticket.
	TicketOwner = Of(View, Send, ReadHistory, Attach, EmbedLinks)

	// TicketStaff is granted to the guild's staff role.
	TicketStaff = TicketOwner.With(ManageMessages)

	// TicketAdmin is granted to the bot account.
	TicketAdmin = TicketStaff.With(ManageChannels)

	// TicketGuest is granted to members added to a ticket after creation.
	TicketGuest = Of(View, Send, ReadHistory)

	// CategoryBot is granted to the bot account on a category it creates.
	CategoryBot = Of(View, Send, ManageChannels)
)
