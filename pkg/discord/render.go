package discord

import (
	"fmt"
	"time"

	"github.com/Jacobbrewer1/kennel/pkg/entities"
	"github.com/Jacobbrewer1/kennel/pkg/interaction"
	"github.com/Jacobbrewer1/kennel/pkg/tickets"
	"github.com/bwmarrin/discordgo"
)

// Embed colours.
const (
	ColorPrimary = 0x5865F2
	ColorSuccess = 0x2D7D46
	ColorError   = 0xED4245
	ColorWarning = 0xFEE75C
)

const (
	footer = "kennel ticket system"

	// buttonsPerRow is the most buttons Discord allows in one action row.
	buttonsPerRow = 5

	// DescriptionInputID is the custom ID of the description field of the ticket form.
	DescriptionInputID = "ticket_description"
)

// Render builds the message for a notice.
func Render(n tickets.Notice) (*discordgo.MessageSend, error) {
	switch n.Kind {
	case tickets.NoticeTicketIntro:
		return &discordgo.MessageSend{
			Content:    fmt.Sprintf("<@%s>", n.Ticket.UserID),
			Embeds:     []*discordgo.MessageEmbed{ticketInfoEmbed(n.Ticket)},
			Components: []discordgo.MessageComponent{ControlButtons()},
		}, nil
	case tickets.NoticeTicketWelcome:
		return &discordgo.MessageSend{
			Content: welcomeMessage(n.Ticket),
		}, nil
	case tickets.NoticeTicketClosed:
		return &discordgo.MessageSend{
			Content: fmt.Sprintf("# Ticket closed\n\nThis ticket was closed by <@%s>.\nThe channel will be deleted in %s.",
				n.Actor.ID, formatDelay(n.DeleteAfter)),
		}, nil
	case tickets.NoticeTicketArchived:
		return &discordgo.MessageSend{
			Content: "This ticket has been archived and will be deleted soon.",
		}, nil
	case tickets.NoticeArchiveThread:
		return &discordgo.MessageSend{
			Content: fmt.Sprintf("Archive of ticket %s, opened by %s and archived by <@%s>.",
				n.Ticket.TicketID, n.Ticket.UserName, n.Actor.ID),
			Embeds: []*discordgo.MessageEmbed{ticketInfoEmbed(n.Ticket)},
		}, nil
	case tickets.NoticeLogCreated, tickets.NoticeLogClosed, tickets.NoticeLogArchived:
		return &discordgo.MessageSend{
			Embeds: []*discordgo.MessageEmbed{logEmbed(n)},
		}, nil
	case tickets.NoticePanel:
		return &discordgo.MessageSend{
			Embeds:     []*discordgo.MessageEmbed{panelEmbed()},
			Components: PanelComponents(n.Guild.EnabledTypes()),
		}, nil
	default:
		return nil, fmt.Errorf("unknown notice kind %d", n.Kind)
	}
}

func panelEmbed() *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Color:       ColorPrimary,
		Title:       "\U0001F3AB Tickets",
		Description: "Press one of the buttons below to open a ticket for what you need.",
		Footer:      &discordgo.MessageEmbedFooter{Text: footer},
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
}

// PanelComponents is one button per ticket type, in rows of at most five.
func PanelComponents(types []entities.TicketType) []discordgo.MessageComponent {
	rows := make([]discordgo.MessageComponent, 0, (len(types)+buttonsPerRow-1)/buttonsPerRow)
	var row discordgo.ActionsRow
	for i, t := range types {
		if i > 0 && i%buttonsPerRow == 0 {
			rows = append(rows, row)
			row = discordgo.ActionsRow{}
		}
		info := t.Info()
		row.Components = append(row.Components, discordgo.Button{
			Label:    info.Emoji + " " + info.Name,
			Style:    buttonStyle(info.Style),
			CustomID: interaction.CustomID(interaction.ActionCreate, t),
		})
	}
	if len(row.Components) > 0 {
		rows = append(rows, row)
	}
	return rows
}

func buttonStyle(s entities.ButtonStyle) discordgo.ButtonStyle {
	switch s {
	case entities.ButtonStyleSecondary:
		return discordgo.SecondaryButton
	case entities.ButtonStyleSuccess:
		return discordgo.SuccessButton
	default:
		return discordgo.PrimaryButton
	}
}

// ControlButtons are the close and archive buttons of a ticket.
func ControlButtons() discordgo.ActionsRow {
	return discordgo.ActionsRow{
		Components: []discordgo.MessageComponent{
			discordgo.Button{
				Label:    "\U0001F512 Close ticket",
				Style:    discordgo.DangerButton,
				CustomID: interaction.CustomID(interaction.ActionClose, ""),
			},
			discordgo.Button{
				Label:    "\U0001F4E4 Archive",
				Style:    discordgo.SecondaryButton,
				CustomID: interaction.CustomID(interaction.ActionArchive, ""),
			},
		},
	}
}

// ReasonMenu is the select menu asking why a ticket of type t is being opened.
func ReasonMenu(t entities.TicketType) discordgo.ActionsRow {
	return discordgo.ActionsRow{
		Components: []discordgo.MessageComponent{
			discordgo.SelectMenu{
				CustomID:    interaction.CustomID(interaction.ActionReason, t),
				Placeholder: fmt.Sprintf("Choose a reason for your %s ticket", t.Info().Name),
				Options: []discordgo.SelectMenuOption{
					{
						Label:       "General question",
						Value:       "general_question",
						Description: "I have a general question",
					},
					{
						Label:       "Need assistance",
						Value:       "assistance",
						Description: "I need help solving a problem",
					},
					{
						Label:       "Other",
						Value:       interaction.ReasonOther,
						Description: "Something else, I will describe it",
					},
				},
			},
		},
	}
}

// DescriptionModal is the form asking for a description of a ticket of type t.
func DescriptionModal(t entities.TicketType) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: interaction.CustomID(interaction.ActionModal, t),
			Title:    "Open a ticket: " + t.Info().Name,
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.TextInput{
							CustomID:    DescriptionInputID,
							Label:       "Describe your request",
							Style:       discordgo.TextInputParagraph,
							Placeholder: "Please describe your request in detail...",
							Required:    true,
							MaxLength:   1000,
						},
					},
				},
			},
		},
	}
}

// ModalValue returns the value of the text input with the given ID in a submitted form.
func ModalValue(data discordgo.ModalSubmitInteractionData, inputID string) string {
	for _, c := range data.Components {
		row, ok := c.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, rc := range row.Components {
			if input, ok := rc.(*discordgo.TextInput); ok && input.CustomID == inputID {
				return input.Value
			}
		}
	}
	return ""
}

func ticketInfoEmbed(t *entities.Ticket) *discordgo.MessageEmbed {
	info := t.Type.Info()
	return &discordgo.MessageEmbed{
		Color:       ColorSuccess,
		Title:       fmt.Sprintf("%s ticket opened", info.Name),
		Description: "Welcome to your ticket. A member of staff will be with you as soon as possible.",
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Opened by", Value: t.UserName, Inline: true},
			{Name: "Ticket ID", Value: t.TicketID, Inline: true},
			{Name: "Type", Value: info.Name, Inline: true},
			{Name: "Reason", Value: reasonOrDefault(t.Reason)},
		},
		Footer:    &discordgo.MessageEmbedFooter{Text: footer},
		Timestamp: t.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func welcomeMessage(t *entities.Ticket) string {
	return fmt.Sprintf("# Ticket opened by %s\n\n**Type:** %s\n**Reason:** %s\n\nA member of staff will help you as soon as possible.",
		t.UserName, t.Type.Info().Name, reasonOrDefault(t.Reason))
}

func logEmbed(n tickets.Notice) *discordgo.MessageEmbed {
	t := n.Ticket
	e := &discordgo.MessageEmbed{
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Ticket ID", Value: t.TicketID, Inline: true},
			{Name: "Opened by", Value: t.UserName, Inline: true},
			{Name: "Type", Value: t.Type.Info().Name, Inline: true},
		},
	}

	switch n.Kind {
	case tickets.NoticeLogCreated:
		e.Color = ColorSuccess
		e.Title = "\U0001F4DD Ticket opened"
		e.Timestamp = t.CreatedAt.UTC().Format(time.RFC3339)
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{Name: "Channel", Value: fmt.Sprintf("<#%s>", t.ChannelID), Inline: true})
		if t.Reason != "" {
			e.Fields = append(e.Fields, &discordgo.MessageEmbedField{Name: "Reason", Value: t.Reason})
		}
	case tickets.NoticeLogClosed:
		e.Color = ColorError
		e.Title = "\U0001F512 Ticket closed"
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{Name: "Closed by", Value: fmt.Sprintf("<@%s>", t.Closer()), Inline: true})
	case tickets.NoticeLogArchived:
		e.Color = ColorWarning
		e.Title = "\U0001F4E4 Ticket archived"
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{Name: "Archived by", Value: fmt.Sprintf("<@%s>", t.Closer()), Inline: true})
	}
	if t.ClosedAt != nil {
		e.Timestamp = t.ClosedAt.UTC().Format(time.RFC3339)
	}
	return e
}

func reasonOrDefault(reason string) string {
	if reason == "" {
		return "No reason given"
	}
	return reason
}

func formatDelay(d time.Duration) string {
	switch {
	case d <= 0:
		return "a moment"
	case d%time.Minute == 0:
		m := int(d / time.Minute)
		if m == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", m)
	default:
		return d.String()
	}
}
