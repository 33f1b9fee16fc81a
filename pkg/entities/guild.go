package entities

// Guild is the ticketing configuration for a guild.
type Guild struct {
	// ID is the ID of the guild.
	ID string `json:"id" bson:"id"`

	// Name is the name of the guild when it was configured.
	Name string `json:"name" bson:"name"`

	// TicketChannelID is the ID of the channel holding the ticket panel.
	TicketChannelID string `json:"ticketChannelId,omitempty" bson:"ticket_channel_id,omitempty"`

	// LogsChannelID is the ID of the channel ticket logs are sent to.
	LogsChannelID string `json:"logsChannelId,omitempty" bson:"logs_channel_id,omitempty"`

	// CategoryID is the ID of the category ticket channels are created under.
	CategoryID string `json:"categoryId,omitempty" bson:"category_id,omitempty"`

	// TicketTypes are the ticket types enabled for the guild. Empty means every type, so the dashboard cannot
	// set an empty list.
	TicketTypes []TicketType `json:"ticketTypes,omitempty" bson:"ticket_types,omitempty"`

	// Enabled is whether ticket creation is allowed.
	Enabled bool `json:"enabled" bson:"enabled"`
}

// AllowsType reports whether tickets of type t may be opened in the guild.
func (g *Guild) AllowsType(t TicketType) bool {
	if len(g.TicketTypes) == 0 {
		return true
	}
	for _, e := range g.TicketTypes {
		if e == t {
			return true
		}
	}
	return false
}

// EnabledTypes returns the ticket types enabled for the guild in display order.
func (g *Guild) EnabledTypes() []TicketType {
	types := make([]TicketType, 0, len(TicketTypes))
	for _, t := range TicketTypes {
		if g.AllowsType(t) {
			types = append(types, t)
		}
	}
	return types
}

// GuildPatch is a partial update to a guild. Nil fields are left unchanged.
type GuildPatch struct {
	Name            *string
	TicketChannelID *string
	LogsChannelID   *string
	CategoryID      *string
	TicketTypes     *[]TicketType
	Enabled         *bool
}

// Apply merges the patch into g.
func (p *GuildPatch) Apply(g *Guild) {
	if p == nil || g == nil {
		return
	}
	if p.Name != nil {
		g.Name = *p.Name
	}
	if p.TicketChannelID != nil {
		g.TicketChannelID = *p.TicketChannelID
	}
	if p.LogsChannelID != nil {
		g.LogsChannelID = *p.LogsChannelID
	}
	if p.CategoryID != nil {
		g.CategoryID = *p.CategoryID
	}
	if p.TicketTypes != nil {
		g.TicketTypes = append([]TicketType(nil), (*p.TicketTypes)...)
	}
	if p.Enabled != nil {
		g.Enabled = *p.Enabled
	}
}

// Clone returns a deep copy of the guild.
func (g *Guild) Clone() *Guild {
	if g == nil {
		return nil
	}
	c := *g
	if g.TicketTypes != nil {
		c.TicketTypes = append([]TicketType(nil), g.TicketTypes...)
	}
	return &c
}
