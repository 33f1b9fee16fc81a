package discord

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/Jacobbrewer1/kennel/pkg/entities"
	"github.com/Jacobbrewer1/kennel/pkg/interaction"
	"github.com/Jacobbrewer1/kennel/pkg/logging"
	"github.com/Jacobbrewer1/kennel/pkg/permissions"
	"github.com/Jacobbrewer1/kennel/pkg/tickets"
	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/require"
)

type permissionCall struct {
	channelID, targetID string
	targetType          discordgo.PermissionOverwriteType
	allow, deny         int64
}

// fakeREST records calls and returns err from every method when set.
type fakeREST struct {
	err error

	channel     *discordgo.Channel
	created     []discordgo.GuildChannelCreateData
	permissions []permissionCall
	sent        []*discordgo.MessageSend
}

func (f *fakeREST) Channel(string, ...discordgo.RequestOption) (*discordgo.Channel, error) {
	return f.channel, f.err
}

func (f *fakeREST) GuildRoles(string, ...discordgo.RequestOption) ([]*discordgo.Role, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []*discordgo.Role{{ID: "R1", Name: "Moderators"}}, nil
}

func (f *fakeREST) GuildChannelCreateComplex(guildID string, data discordgo.GuildChannelCreateData, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, data)
	return &discordgo.Channel{
		ID:                   "N1",
		GuildID:              guildID,
		Name:                 data.Name,
		ParentID:             data.ParentID,
		Type:                 data.Type,
		PermissionOverwrites: data.PermissionOverwrites,
	}, nil
}

func (f *fakeREST) ChannelPermissionSet(channelID, targetID string, targetType discordgo.PermissionOverwriteType, allow, deny int64, _ ...discordgo.RequestOption) error {
	f.permissions = append(f.permissions, permissionCall{channelID, targetID, targetType, allow, deny})
	return f.err
}

func (f *fakeREST) ChannelPermissionDelete(string, string, ...discordgo.RequestOption) error {
	return f.err
}

func (f *fakeREST) ChannelDelete(string, ...discordgo.RequestOption) (*discordgo.Channel, error) {
	return nil, f.err
}

func (f *fakeREST) ThreadStart(channelID, name string, typ discordgo.ChannelType, _ int, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &discordgo.Channel{ID: "T1", ParentID: channelID, Name: name, Type: typ}, nil
}

func (f *fakeREST) ChannelMessageSendComplex(_ string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.sent = append(f.sent, data)
	return &discordgo.Message{}, f.err
}

func newTestProvider(t *testing.T) (*Provider, *fakeREST) {
	t.Helper()
	l, err := logging.CommonLogger(logging.NewConfig(`tests`))
	require.NoError(t, err, "Failed to create logger")

	api := new(fakeREST)
	return NewProvider(l, api, func() string { return "BOT" }), api
}

func TestBits(t *testing.T) {
	require.Equal(t,
		int64(discordgo.PermissionViewChannel|discordgo.PermissionSendMessages|discordgo.PermissionReadMessageHistory),
		Bits(permissions.TicketGuest),
	)

	for _, s := range []permissions.Set{permissions.TicketOwner, permissions.TicketStaff, permissions.TicketAdmin, permissions.CategoryBot} {
		require.Equal(t, s, Capabilities(Bits(s)), s.String())
	}

	// Flags with no capability are dropped.
	require.Equal(t, permissions.Of(permissions.View), Capabilities(discordgo.PermissionViewChannel|discordgo.PermissionVoiceSpeak))
}

func TestProvider_CreateChannel(t *testing.T) {
	p, api := newTestProvider(t)

	ch, err := p.CreateChannel(context.Background(), tickets.CreateChannelParams{
		GuildID:  "G1",
		ParentID: "C1",
		Name:     "ticket-general-help-1234",
		Topic:    "General Help ticket for U1",
		Kind:     tickets.ChannelKindText,
		Overwrites: []tickets.Overwrite{
			{TargetID: "G1", TargetKind: tickets.TargetRole, Deny: permissions.Of(permissions.View)},
			{TargetID: "U1", TargetKind: tickets.TargetMember, Allow: permissions.TicketOwner},
		},
	})
	require.NoError(t, err)

	require.Len(t, api.created, 1)
	data := api.created[0]
	require.Equal(t, discordgo.ChannelTypeGuildText, data.Type)
	require.Equal(t, "C1", data.ParentID)
	require.Equal(t, "General Help ticket for U1", data.Topic)
	require.Equal(t, []*discordgo.PermissionOverwrite{
		{ID: "G1", Type: discordgo.PermissionOverwriteTypeRole, Deny: discordgo.PermissionViewChannel},
		{ID: "U1", Type: discordgo.PermissionOverwriteTypeMember, Allow: Bits(permissions.TicketOwner)},
	}, data.PermissionOverwrites)

	require.Equal(t, "N1", ch.ID)
	require.Equal(t, tickets.ChannelKindText, ch.Kind)
	o, ok := ch.Overwrite("U1")
	require.True(t, ok)
	require.Equal(t, tickets.TargetMember, o.TargetKind)
	require.Equal(t, permissions.TicketOwner, o.Allow)
}

func TestProvider_EditPermission(t *testing.T) {
	p, api := newTestProvider(t)

	require.NoError(t, p.EditPermission(context.Background(), "N1", tickets.Overwrite{
		TargetID:   "U1",
		TargetKind: tickets.TargetMember,
		Allow:      permissions.Of(permissions.View, permissions.ReadHistory),
		Deny:       permissions.Of(permissions.Send),
	}))
	require.Equal(t, []permissionCall{{
		channelID:  "N1",
		targetID:   "U1",
		targetType: discordgo.PermissionOverwriteTypeMember,
		allow:      discordgo.PermissionViewChannel | discordgo.PermissionReadMessageHistory,
		deny:       discordgo.PermissionSendMessages,
	}}, api.permissions)
}

func TestProvider_ErrorMapping(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantNotFound bool
	}{
		{
			name:         "unknown channel code",
			err:          &discordgo.RESTError{Message: &discordgo.APIErrorMessage{Code: discordgo.ErrCodeUnknownChannel, Message: "Unknown Channel"}},
			wantNotFound: true,
		},
		{
			name:         "not found status",
			err:          &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusNotFound}},
			wantNotFound: true,
		},
		{
			name: "missing access",
			err:  &discordgo.RESTError{Message: &discordgo.APIErrorMessage{Code: discordgo.ErrCodeMissingAccess}, Response: &http.Response{StatusCode: http.StatusForbidden}},
		},
		{
			name: "transport",
			err:  errors.New("connection reset"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, api := newTestProvider(t)
			api.err = tt.err

			_, err := p.FetchChannel(context.Background(), "C1")
			require.Error(t, err)
			require.Equal(t, tt.wantNotFound, errors.Is(err, tickets.ErrChannelNotFound))

			err = p.DeleteChannel(context.Background(), "C1")
			require.Error(t, err)
			require.Equal(t, tt.wantNotFound, errors.Is(err, tickets.ErrChannelNotFound))
		})
	}
}

func TestProvider_FetchAndThread(t *testing.T) {
	p, api := newTestProvider(t)
	api.channel = &discordgo.Channel{ID: "C1", GuildID: "G1", Type: discordgo.ChannelTypeGuildCategory}

	ch, err := p.FetchChannel(context.Background(), "C1")
	require.NoError(t, err)
	require.Equal(t, tickets.ChannelKindCategory, ch.Kind)
	require.Empty(t, ch.Overwrites)

	th, err := p.CreateThread(context.Background(), "N1", "archive-1234")
	require.NoError(t, err)
	require.Equal(t, tickets.ChannelKindThread, th.Kind)
	require.Equal(t, "N1", th.ParentID)

	roles, err := p.GuildRoles(context.Background(), "G1")
	require.NoError(t, err)
	require.Equal(t, []tickets.Role{{ID: "R1", Name: "Moderators"}}, roles)
	require.Equal(t, "BOT", p.SelfID())
}

func TestProvider_Send(t *testing.T) {
	p, api := newTestProvider(t)

	ticket := &entities.Ticket{
		TicketID:  "1234",
		ChannelID: "N1",
		UserID:    "U1",
		UserName:  "user#0001",
		Type:      entities.TicketTypeGeneralHelp,
		CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, p.Send(context.Background(), "N1", tickets.Notice{Kind: tickets.NoticeTicketIntro, Ticket: ticket}))
	require.Len(t, api.sent, 1)
	require.Equal(t, "<@U1>", api.sent[0].Content)
	require.Len(t, api.sent[0].Components, 1)

	require.Error(t, p.Send(context.Background(), "N1", tickets.Notice{Kind: tickets.NoticeKind(99)}))
}

func TestRender(t *testing.T) {
	closedAt := time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC)
	closedBy := "U2"
	ticket := &entities.Ticket{
		TicketID:  "1234",
		ChannelID: "N1",
		UserID:    "U1",
		UserName:  "user#0001",
		Type:      entities.TicketTypeTournament,
		Status:    entities.TicketStatusClosed,
		ClosedAt:  &closedAt,
		ClosedBy:  &closedBy,
	}

	tests := []struct {
		name    string
		notice  tickets.Notice
		content string
		title   string
		color   int
	}{
		{
			name:    "closed",
			notice:  tickets.Notice{Kind: tickets.NoticeTicketClosed, Ticket: ticket, Actor: tickets.Actor{ID: "U2"}, DeleteAfter: 5 * time.Minute},
			content: "# Ticket closed\n\nThis ticket was closed by <@U2>.\nThe channel will be deleted in 5 minutes.",
		},
		{
			name:    "welcome",
			notice:  tickets.Notice{Kind: tickets.NoticeTicketWelcome, Ticket: ticket},
			content: "# Ticket opened by user#0001\n\n**Type:** Tournament\n**Reason:** No reason given\n\nA member of staff will help you as soon as possible.",
		},
		{
			name:   "log closed",
			notice: tickets.Notice{Kind: tickets.NoticeLogClosed, Ticket: ticket},
			title:  "\U0001F512 Ticket closed",
			color:  ColorError,
		},
		{
			name:   "log archived",
			notice: tickets.Notice{Kind: tickets.NoticeLogArchived, Ticket: ticket},
			title:  "\U0001F4E4 Ticket archived",
			color:  ColorWarning,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Render(tt.notice)
			require.NoError(t, err)
			require.Equal(t, tt.content, msg.Content)
			if tt.title != "" {
				require.Len(t, msg.Embeds, 1)
				require.Equal(t, tt.title, msg.Embeds[0].Title)
				require.Equal(t, tt.color, msg.Embeds[0].Color)
				require.Equal(t, closedAt.Format(time.RFC3339), msg.Embeds[0].Timestamp)
			}
		})
	}
}

func TestPanelComponents(t *testing.T) {
	tests := []struct {
		name  string
		types []entities.TicketType
		rows  []int
	}{
		{"none", nil, []int{}},
		{"all", entities.TicketTypes, []int{5}},
		{"six", append(append([]entities.TicketType(nil), entities.TicketTypes...), entities.TicketTypeGeneralHelp), []int{5, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := PanelComponents(tt.types)
			sizes := make([]int, 0, len(rows))
			for _, r := range rows {
				sizes = append(sizes, len(r.(discordgo.ActionsRow).Components))
			}
			require.Equal(t, tt.rows, sizes)
		})
	}

	rows := PanelComponents([]entities.TicketType{entities.TicketTypeFriendlyMatch})
	b := rows[0].(discordgo.ActionsRow).Components[0].(discordgo.Button)
	require.Equal(t, "ticket_create:friendly-match", b.CustomID)
	require.Equal(t, discordgo.SuccessButton, b.Style)

	parsed, err := interaction.ParseButton(b.CustomID)
	require.NoError(t, err)
	require.Equal(t, entities.TicketTypeFriendlyMatch, parsed.Type)
}

func TestModalValue(t *testing.T) {
	data := discordgo.ModalSubmitInteractionData{
		CustomID: "ticket_modal:general-help",
		Components: []discordgo.MessageComponent{
			&discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				&discordgo.TextInput{CustomID: "other", Value: "x"},
			}},
			&discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				&discordgo.TextInput{CustomID: DescriptionInputID, Value: "my request"},
			}},
		},
	}
	require.Equal(t, "my request", ModalValue(data, DescriptionInputID))
	require.Empty(t, ModalValue(data, "missing"))
}

func TestDescriptionModal(t *testing.T) {
	resp := DescriptionModal(entities.TicketTypeGeneralHelp)
	require.Equal(t, discordgo.InteractionResponseModal, resp.Type)
	require.Equal(t, "ticket_modal:general-help", resp.Data.CustomID)
}

func TestConnection(t *testing.T) {
	l, err := logging.CommonLogger(logging.NewConfig(`tests`))
	require.NoError(t, err, "Failed to create logger")

	s := &discordgo.Session{State: discordgo.NewState()}
	c := NewConnection(l, s)
	require.False(t, c.IsReady())
	require.Empty(t, c.Username())
	require.Empty(t, c.SelfID())
	require.Zero(t, c.GuildCount())

	s.State.User = &discordgo.User{ID: "BOT", Username: "kennel"}
	s.State.Guilds = []*discordgo.Guild{{ID: "G1"}, {ID: "G2"}}
	require.Equal(t, "kennel", c.Username())
	require.Equal(t, "BOT", c.SelfID())
	require.Equal(t, 2, c.GuildCount())
}

func TestConnection_ReadinessFollowsGatewayEvents(t *testing.T) {
	l, err := logging.CommonLogger(logging.NewConfig(`tests`))
	require.NoError(t, err, "Failed to create logger")

	s := &discordgo.Session{State: discordgo.NewState()}
	c := NewConnection(l, s)

	// The session's own flag is not consulted.
	s.DataReady = true
	require.False(t, c.IsReady())

	steps := []struct {
		name  string
		event func()
		want  bool
	}{
		{"ready", func() { c.onReady(s, &discordgo.Ready{}) }, true},
		{"disconnect", func() { c.onDisconnect(s, &discordgo.Disconnect{}) }, false},
		{"resumed", func() { c.onResumed(s, &discordgo.Resumed{}) }, true},
		{"disconnect again", func() { c.onDisconnect(s, &discordgo.Disconnect{}) }, false},
		{"connect", func() { c.onConnect(s, &discordgo.Connect{}) }, true},
	}
	for _, step := range steps {
		step.event()
		require.Equal(t, step.want, c.IsReady(), step.name)
	}
}

func TestConnection_IsReadyDoesNotWaitForSessionLock(t *testing.T) {
	l, err := logging.CommonLogger(logging.NewConfig(`tests`))
	require.NoError(t, err, "Failed to create logger")

	s := &discordgo.Session{State: discordgo.NewState()}
	c := NewConnection(l, s)
	c.onReady(s, &discordgo.Ready{})

	// Open holds the session lock for the whole gateway handshake.
	s.Lock()
	defer s.Unlock()

	got := make(chan bool, 1)
	go func() {
		got <- c.IsReady()
	}()

	select {
	case ready := <-got:
		require.True(t, ready)
	case <-time.After(time.Second):
		t.Fatal("IsReady blocked on the session lock")
	}
}
