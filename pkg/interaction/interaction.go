// Package interaction parses platform interactions into a closed set of events.
package interaction

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Jacobbrewer1/kennel/pkg/entities"
)

const separator = ":"

// Action is what a component interaction asks for.
type Action string

const (
	// ActionCreate is a panel button asking to open a ticket of a type.
	ActionCreate Action = "ticket_create"

	// ActionModal is the submitted ticket description form.
	ActionModal Action = "ticket_modal"

	// ActionReason is the ticket reason select menu.
	ActionReason Action = "ticket_reason"

	// ActionClose is the close button in a ticket.
	ActionClose Action = "ticket_close"

	// ActionArchive is the archive button in a ticket.
	ActionArchive Action = "ticket_archive"
)

// ReasonOther is the reason menu value that asks for a free text reason.
const ReasonOther = "other"

// Command is a slash command name.
type Command string

const (
	CommandSetup  Command = "setup"
	CommandClose  Command = "close"
	CommandAdd    Command = "add"
	CommandRemove Command = "remove"
)

// ErrUnknownInteraction is returned for interactions that are not one of the known shapes.
var ErrUnknownInteraction = errors.New("unknown interaction")

// Event is a parsed interaction. It is one of Button, ModalSubmit, SelectMenu, or SlashCommand.
type Event interface {
	event()
}

// Button is a button press.
type Button struct {
	Action Action

	// Type is set for ActionCreate.
	Type entities.TicketType
}

// ModalSubmit is a submitted form.
type ModalSubmit struct {
	Type        entities.TicketType
	Description string
}

// SelectMenu is a select menu choice.
type SelectMenu struct {
	Type  entities.TicketType
	Value string
}

// SlashCommand is an invoked slash command.
type SlashCommand struct {
	Name Command
}

func (Button) event()       {}
func (ModalSubmit) event()  {}
func (SelectMenu) event()   {}
func (SlashCommand) event() {}

// CustomID builds the custom ID of a component.
func CustomID(action Action, typ entities.TicketType) string {
	if typ == "" {
		return string(action)
	}
	return string(action) + separator + string(typ)
}

// splitCustomID validates a custom ID and returns its action and ticket type.
func splitCustomID(customID string) (Action, entities.TicketType, error) {
	raw, rawType, hasType := strings.Cut(customID, separator)
	action := Action(raw)

	switch action {
	case ActionCreate, ActionModal, ActionReason:
		if !hasType {
			return "", "", fmt.Errorf("%w: %q has no ticket type", ErrUnknownInteraction, customID)
		}
		typ, ok := entities.ParseTicketType(rawType)
		if !ok {
			return "", "", fmt.Errorf("%w: %q has unknown ticket type", ErrUnknownInteraction, customID)
		}
		return action, typ, nil
	case ActionClose, ActionArchive:
		if hasType {
			return "", "", fmt.Errorf("%w: %q", ErrUnknownInteraction, customID)
		}
		return action, "", nil
	default:
		return "", "", fmt.Errorf("%w: %q", ErrUnknownInteraction, customID)
	}
}

// ParseButton parses the custom ID of a pressed button.
func ParseButton(customID string) (Button, error) {
	action, typ, err := splitCustomID(customID)
	if err != nil {
		return Button{}, err
	}
	switch action {
	case ActionCreate, ActionClose, ActionArchive:
		return Button{Action: action, Type: typ}, nil
	default:
		return Button{}, fmt.Errorf("%w: %q is not a button", ErrUnknownInteraction, customID)
	}
}

// ParseModalSubmit parses a submitted form.
func ParseModalSubmit(customID, description string) (ModalSubmit, error) {
	action, typ, err := splitCustomID(customID)
	if err != nil {
		return ModalSubmit{}, err
	}
	if action != ActionModal {
		return ModalSubmit{}, fmt.Errorf("%w: %q is not a form", ErrUnknownInteraction, customID)
	}
	return ModalSubmit{Type: typ, Description: strings.TrimSpace(description)}, nil
}

// ParseSelectMenu parses a select menu choice.
func ParseSelectMenu(customID string, values []string) (SelectMenu, error) {
	action, typ, err := splitCustomID(customID)
	if err != nil {
		return SelectMenu{}, err
	}
	if action != ActionReason {
		return SelectMenu{}, fmt.Errorf("%w: %q is not a select menu", ErrUnknownInteraction, customID)
	}
	if len(values) != 1 || values[0] == "" {
		return SelectMenu{}, fmt.Errorf("%w: %q expects one value, got %d", ErrUnknownInteraction, customID, len(values))
	}
	return SelectMenu{Type: typ, Value: values[0]}, nil
}

// ParseSlashCommand parses a slash command name.
func ParseSlashCommand(name string) (SlashCommand, error) {
	switch cmd := Command(name); cmd {
	case CommandSetup, CommandClose, CommandAdd, CommandRemove:
		return SlashCommand{Name: cmd}, nil
	default:
		return SlashCommand{}, fmt.Errorf("%w: command %q", ErrUnknownInteraction, name)
	}
}
