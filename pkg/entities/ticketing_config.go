package entities

// TicketType is one of the configured ticket categories.
type TicketType string

const (
	TicketTypeGeneralHelp       TicketType = "general-help"
	TicketTypePlayerRecruitment TicketType = "player-recruitment"
	TicketTypeStaffRecruitment  TicketType = "staff-recruitment"
	TicketTypeFriendlyMatch     TicketType = "friendly-match"
	TicketTypeTournament        TicketType = "tournament"
)

// TicketTypes is the closed set of ticket types in display order.
var TicketTypes = []TicketType{
	TicketTypeGeneralHelp,
	TicketTypePlayerRecruitment,
	TicketTypeStaffRecruitment,
	TicketTypeFriendlyMatch,
	TicketTypeTournament,
}

// ButtonStyle is how a ticket type's panel button is coloured.
type ButtonStyle int

const (
	ButtonStylePrimary ButtonStyle = iota
	ButtonStyleSecondary
	ButtonStyleSuccess
)

// TicketTypeInfo describes how a ticket type is presented.
type TicketTypeInfo struct {
	// Name is the display name.
	Name string

	// Emoji is shown next to the name.
	Emoji string

	// Description is shown on the panel.
	Description string

	// Style is the style of the panel button.
	Style ButtonStyle
}

var ticketTypeInfo = map[TicketType]TicketTypeInfo{
	TicketTypeGeneralHelp: {
		Name:        "General Help",
		Emoji:       "❓",
		Description: "Get help with anything",
		Style:       ButtonStylePrimary,
	},
	TicketTypePlayerRecruitment: {
		Name:        "Player Recruitment",
		Emoji:       "\U0001F465",
		Description: "Join our team as a player",
		Style:       ButtonStylePrimary,
	},
	TicketTypeStaffRecruitment: {
		Name:        "Staff Recruitment",
		Emoji:       "\U0001F46E",
		Description: "Join our team as staff",
		Style:       ButtonStyleSecondary,
	},
	TicketTypeFriendlyMatch: {
		Name:        "Friendly Match",
		Emoji:       "\U0001F3C6",
		Description: "Organise a friendly match with your team",
		Style:       ButtonStyleSuccess,
	},
	TicketTypeTournament: {
		Name:        "Tournament",
		Emoji:       "\U0001F504",
		Description: "Requests about tournaments",
		Style:       ButtonStyleSuccess,
	},
}

// Valid reports whether t is in the closed set of ticket types.
func (t TicketType) Valid() bool {
	_, ok := ticketTypeInfo[t]
	return ok
}

// Info returns the presentation of the type. Unknown types fall back to their raw value.
func (t TicketType) Info() TicketTypeInfo {
	if info, ok := ticketTypeInfo[t]; ok {
		return info
	}
	return TicketTypeInfo{
		Name:  string(t),
		Emoji: "\U0001F3AB",
		Style: ButtonStylePrimary,
	}
}

// ParseTicketType validates s against the closed set.
func ParseTicketType(s string) (TicketType, bool) {
	t := TicketType(s)
	return t, t.Valid()
}
