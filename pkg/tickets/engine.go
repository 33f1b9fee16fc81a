package tickets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Jacobbrewer1/kennel/pkg/dataaccess"
	"github.com/Jacobbrewer1/kennel/pkg/entities"
	"github.com/Jacobbrewer1/kennel/pkg/logging"
	"github.com/Jacobbrewer1/kennel/pkg/permissions"
)

const (
	// MaxOpenTickets is the number of tickets a user may have open at once.
	MaxOpenTickets = 3

	// DefaultDeleteDelay is how long a closed ticket's channel is kept.
	DefaultDeleteDelay = 5 * time.Minute

	// DefaultProviderTimeout bounds each channel provider call.
	DefaultProviderTimeout = 15 * time.Second

	defaultCategoryName = "Tickets"
)

var staffRoleMarkers = []string{"staff", "mod", "admin"}

// Engine runs the ticket lifecycle.
type Engine struct {
	l *slog.Logger

	store    dataaccess.Store
	provider ChannelProvider

	scheduler *Scheduler
	clock     Clock
	ids       IDGenerator
	locks     *keyedMutex

	providerTimeout time.Duration
}

// Config is the engine configuration.
type Config struct {
	// DeleteDelay is how long a closed ticket's channel is kept before deletion.
	DeleteDelay time.Duration

	// ProviderTimeout bounds each channel provider call.
	ProviderTimeout time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the time source.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithIDGenerator sets how candidate ticket IDs are drawn.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// NewEngine creates an engine.
func NewEngine(l *slog.Logger, store dataaccess.Store, provider ChannelProvider, cfg Config, opts ...Option) *Engine {
	if cfg.DeleteDelay <= 0 {
		cfg.DeleteDelay = DefaultDeleteDelay
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = DefaultProviderTimeout
	}

	e := &Engine{
		l:               l,
		store:           store,
		provider:        provider,
		clock:           RealClock(),
		ids:             RandomTicketID,
		locks:           newKeyedMutex(),
		providerTimeout: cfg.ProviderTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.scheduler = NewScheduler(l, e.clock, cfg.DeleteDelay, cfg.ProviderTimeout, provider.DeleteChannel)
	return e
}

// Scheduler returns the channel deletion scheduler.
func (e *Engine) Scheduler() *Scheduler {
	return e.scheduler
}

// providerCtx bounds a single provider call.
func (e *Engine) providerCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.providerTimeout)
}

func (e *Engine) refused(operation string, err error) error {
	var te *Error
	if errors.As(err, &te) && te.Kind != KindExternal && te.Kind != KindInternal {
		TicketsRefused.WithLabelValues(operation, string(te.Code)).Inc()
	}
	return err
}

// CreateRequest is a request to open a ticket.
type CreateRequest struct {
	// GuildID is empty when the request came from outside a guild.
	GuildID string
	User    Actor
	Type    entities.TicketType
	Reason  string
}

// CreateTicket opens a ticket. The record is persisted only after its channel exists.
func (e *Engine) CreateTicket(ctx context.Context, req CreateRequest) (*entities.Ticket, error) {
	ticket, err := e.createTicket(ctx, req)
	if err != nil {
		return nil, e.refused("create", err)
	}
	return ticket, nil
}

func (e *Engine) createTicket(ctx context.Context, req CreateRequest) (*entities.Ticket, error) {
	if req.GuildID == "" {
		return nil, ErrNotInGuild
	}

	l := e.l.With(
		slog.String(logging.KeyGuildID, req.GuildID),
		slog.String(logging.KeyUserID, req.User.ID),
	)

	guild, err := e.store.GetGuildByID(ctx, req.GuildID)
	if errors.Is(err, dataaccess.ErrNotFound) {
		return nil, ErrNotConfigured
	} else if err != nil {
		return nil, internalError(fmt.Errorf("error getting guild: %w", err))
	}

	if !guild.Enabled {
		return nil, ErrDisabled
	}
	if !req.Type.Valid() {
		return nil, ErrInvalidTicketType
	}
	if !guild.AllowsType(req.Type) {
		return nil, ErrTicketTypeDisabled
	}
	if guild.CategoryID == "" {
		return nil, ErrNoCategory
	}

	// Hold the user's slot from the count until the record is stored.
	unlock := e.locks.Lock(req.User.ID)
	defer unlock()

	userTickets, err := e.store.GetTicketsByUserID(ctx, req.User.ID)
	if err != nil {
		return nil, internalError(fmt.Errorf("error getting user tickets: %w", err))
	}
	open := 0
	for _, t := range userTickets {
		if t.IsOpen() {
			open++
		}
	}
	if open >= MaxOpenTickets {
		return nil, ErrTooManyOpenTickets
	}

	pctx, cancel := e.providerCtx(ctx)
	category, err := e.provider.FetchChannel(pctx, guild.CategoryID)
	cancel()
	if errors.Is(err, ErrChannelNotFound) {
		return nil, ErrCategoryMissing
	} else if err != nil {
		return nil, externalError(fmt.Errorf("error fetching category: %w", err))
	} else if category.Kind != ChannelKindCategory {
		return nil, ErrCategoryMissing
	}

	ticketID, err := e.newTicketID(ctx)
	if err != nil {
		return nil, internalError(err)
	}

	pctx, cancel = e.providerCtx(ctx)
	roles, err := e.provider.GuildRoles(pctx, guild.ID)
	cancel()
	if err != nil {
		return nil, externalError(fmt.Errorf("error getting guild roles: %w", err))
	}

	params := CreateChannelParams{
		GuildID:    guild.ID,
		ParentID:   category.ID,
		Name:       entities.ChannelName(req.Type, ticketID),
		Topic:      fmt.Sprintf("Ticket of %s | Type: %s | ID: %s", req.User.Name, req.Type, ticketID),
		Kind:       ChannelKindText,
		Overwrites: e.ticketOverwrites(guild.ID, req.User.ID, roles),
	}

	pctx, cancel = e.providerCtx(ctx)
	channel, err := e.provider.CreateChannel(pctx, params)
	cancel()
	if err != nil {
		return nil, externalError(fmt.Errorf("error creating ticket channel: %w", err))
	}

	// A recycled channel ID must not be deleted by an older close.
	if e.scheduler.Cancel(channel.ID) {
		l.Warn("Cancelled pending deletion of a reused channel ID", slog.String(logging.KeyChannelID, channel.ID))
	}

	ticket := &entities.Ticket{
		TicketID:  ticketID,
		GuildID:   guild.ID,
		ChannelID: channel.ID,
		UserID:    req.User.ID,
		UserName:  req.User.Name,
		Type:      req.Type,
		Reason:    req.Reason,
		Status:    entities.TicketStatusOpen,
		CreatedAt: e.clock.Now().UTC(),
	}
	if err := e.store.CreateTicket(ctx, ticket); err != nil {
		e.compensate(l, channel.ID)
		return nil, internalError(fmt.Errorf("error storing ticket: %w", err))
	}

	l = l.With(slog.String(logging.KeyTicketID, ticket.TicketID), slog.String(logging.KeyChannelID, ticket.ChannelID))
	l.Info("Ticket created", slog.String("type", string(ticket.Type)))
	TicketsCreated.WithLabelValues(string(ticket.Type)).Inc()

	e.send(ctx, l, ticket.ChannelID, Notice{Kind: NoticeTicketIntro, Ticket: ticket, Guild: guild, Actor: req.User})
	e.send(ctx, l, ticket.ChannelID, Notice{Kind: NoticeTicketWelcome, Ticket: ticket, Guild: guild, Actor: req.User})
	if guild.LogsChannelID != "" {
		e.send(ctx, l, guild.LogsChannelID, Notice{Kind: NoticeLogCreated, Ticket: ticket, Guild: guild, Actor: req.User})
	}

	return ticket, nil
}

// ticketOverwrites builds the permissions of a new ticket channel. The everyone role shares the guild's ID.
func (e *Engine) ticketOverwrites(guildID, userID string, roles []Role) []Overwrite {
	overwrites := []Overwrite{
		{TargetID: guildID, TargetKind: TargetRole, Deny: permissions.Of(permissions.View)},
		{TargetID: userID, TargetKind: TargetMember, Allow: permissions.TicketOwner},
		{TargetID: e.provider.SelfID(), TargetKind: TargetMember, Allow: permissions.TicketAdmin},
	}
	if staff, ok := findStaffRole(roles); ok {
		overwrites = append(overwrites, Overwrite{TargetID: staff.ID, TargetKind: TargetRole, Allow: permissions.TicketStaff})
	}
	return overwrites
}

// findStaffRole returns the first role whose name marks it as staff.
func findStaffRole(roles []Role) (Role, bool) {
	for _, r := range roles {
		name := strings.ToLower(r.Name)
		for _, marker := range staffRoleMarkers {
			if strings.Contains(name, marker) {
				return r, true
			}
		}
	}
	return Role{}, false
}

// compensate deletes a channel whose ticket could not be stored.
func (e *Engine) compensate(l *slog.Logger, channelID string) {
	ctx, cancel := context.WithTimeout(context.Background(), e.providerTimeout)
	defer cancel()

	if err := e.provider.DeleteChannel(ctx, channelID); err != nil && !errors.Is(err, ErrChannelNotFound) {
		l.Error("Error deleting channel of unstored ticket",
			slog.String(logging.KeyChannelID, channelID),
			slog.String(logging.KeyError, err.Error()))
		return
	}
	l.Warn("Deleted channel of unstored ticket", slog.String(logging.KeyChannelID, channelID))
}

// send delivers a notice, logging any failure.
func (e *Engine) send(ctx context.Context, l *slog.Logger, channelID string, n Notice) {
	ctx, cancel := e.providerCtx(ctx)
	defer cancel()

	if err := e.provider.Send(ctx, channelID, n); err != nil {
		l.Error("Error sending notice",
			slog.Int("notice", int(n.Kind)),
			slog.String(logging.KeyChannelID, channelID),
			slog.String(logging.KeyError, err.Error()))
	}
}

// CloseRequest is a request to close the ticket of a channel.
type CloseRequest struct {
	ChannelID string
	Actor     Actor

	// Archive additionally keeps a copy of the conversation in a thread.
	Archive bool
}

// CloseTicket closes the ticket of a channel and schedules the channel for deletion.
func (e *Engine) CloseTicket(ctx context.Context, req CloseRequest) (*entities.Ticket, error) {
	ticket, err := e.closeTicket(ctx, req)
	if err != nil {
		return nil, e.refused("close", err)
	}
	return ticket, nil
}

func (e *Engine) closeTicket(ctx context.Context, req CloseRequest) (*entities.Ticket, error) {
	ticket, err := e.authorize(ctx, req.ChannelID, req.Actor)
	if err != nil {
		return nil, err
	}
	if !ticket.IsOpen() {
		return nil, ErrAlreadyClosed
	}

	closed, err := e.store.CloseTicket(ctx, ticket.ID, req.Actor.ID, e.clock.Now().UTC())
	if errors.Is(err, dataaccess.ErrTicketClosed) {
		return nil, ErrAlreadyClosed
	} else if errors.Is(err, dataaccess.ErrNotFound) {
		return nil, ErrNotATicket
	} else if err != nil {
		return nil, internalError(fmt.Errorf("error closing ticket: %w", err))
	}

	action := "closed"
	if req.Archive {
		action = "archived"
	}

	l := e.l.With(
		slog.String(logging.KeyGuildID, closed.GuildID),
		slog.String(logging.KeyTicketID, closed.TicketID),
		slog.String(logging.KeyChannelID, closed.ChannelID),
		slog.String(logging.KeyUserID, req.Actor.ID),
	)
	l.Info("Ticket closed", slog.String("action", action))
	TicketsClosed.WithLabelValues(action).Inc()

	pctx, cancel := e.providerCtx(ctx)
	err = e.provider.EditPermission(pctx, closed.ChannelID, Overwrite{
		TargetID:   closed.UserID,
		TargetKind: TargetMember,
		Allow:      permissions.TicketOwner.Without(permissions.Send),
		Deny:       permissions.Of(permissions.Send),
	})
	cancel()
	if err != nil {
		l.Error("Error revoking creator send permission", slog.String(logging.KeyError, err.Error()))
	}

	delay := e.scheduler.Delay()
	e.send(ctx, l, closed.ChannelID, Notice{Kind: NoticeTicketClosed, Ticket: closed, Actor: req.Actor, DeleteAfter: delay})

	guild, err := e.store.GetGuildByID(ctx, closed.GuildID)
	if err != nil && !errors.Is(err, dataaccess.ErrNotFound) {
		l.Error("Error getting guild for ticket log", slog.String(logging.KeyError, err.Error()))
	}
	if guild != nil && guild.LogsChannelID != "" {
		kind := NoticeLogClosed
		if req.Archive {
			kind = NoticeLogArchived
		}
		e.send(ctx, l, guild.LogsChannelID, Notice{Kind: kind, Ticket: closed, Guild: guild, Actor: req.Actor})
	}

	if req.Archive {
		e.send(ctx, l, closed.ChannelID, Notice{Kind: NoticeTicketArchived, Ticket: closed, Actor: req.Actor, DeleteAfter: delay})
		e.archive(ctx, l, closed, req.Actor)
	}

	e.scheduler.Schedule(closed.ChannelID)
	return closed, nil
}

// archive creates the archive thread of a closed ticket. Failures are logged.
func (e *Engine) archive(ctx context.Context, l *slog.Logger, ticket *entities.Ticket, actor Actor) {
	pctx, cancel := e.providerCtx(ctx)
	thread, err := e.provider.CreateThread(pctx, ticket.ChannelID, "archive-"+ticket.TicketID)
	cancel()
	if err != nil {
		l.Error("Error creating archive thread", slog.String(logging.KeyError, err.Error()))
		return
	}
	e.send(ctx, l, thread.ID, Notice{Kind: NoticeArchiveThread, Ticket: ticket, Actor: actor})
}

// authorize loads the ticket of a channel and checks the actor may manage it.
func (e *Engine) authorize(ctx context.Context, channelID string, actor Actor) (*entities.Ticket, error) {
	if channelID == "" {
		return nil, ErrNotATicket
	}

	ticket, err := e.store.GetTicketByChannelID(ctx, channelID)
	if errors.Is(err, dataaccess.ErrNotFound) {
		return nil, ErrNotATicket
	} else if err != nil {
		return nil, internalError(fmt.Errorf("error getting ticket: %w", err))
	}

	if ticket.UserID != actor.ID && !actor.Can(permissions.ManageChannels) {
		return nil, ErrForbidden
	}
	return ticket, nil
}

// MemberRequest is a request to change who can access a ticket.
type MemberRequest struct {
	ChannelID string
	Actor     Actor

	// TargetID is the user being added or removed.
	TargetID string
}

// AddUser grants a user access to the ticket of a channel.
func (e *Engine) AddUser(ctx context.Context, req MemberRequest) (*entities.Ticket, error) {
	ticket, err := e.addUser(ctx, req)
	if err != nil {
		return nil, e.refused("add_user", err)
	}
	return ticket, nil
}

func (e *Engine) addUser(ctx context.Context, req MemberRequest) (*entities.Ticket, error) {
	ticket, err := e.authorize(ctx, req.ChannelID, req.Actor)
	if err != nil {
		return nil, err
	}

	channel, err := e.fetchTicketChannel(ctx, ticket)
	if err != nil {
		return nil, err
	}
	if _, ok := channel.Overwrite(req.TargetID); ok {
		return nil, ErrAlreadyPresent
	}

	pctx, cancel := e.providerCtx(ctx)
	defer cancel()
	if err := e.provider.EditPermission(pctx, channel.ID, Overwrite{
		TargetID:   req.TargetID,
		TargetKind: TargetMember,
		Allow:      permissions.TicketGuest,
	}); err != nil {
		return nil, externalError(fmt.Errorf("error granting ticket access: %w", err))
	}

	e.l.Info("User added to ticket",
		slog.String(logging.KeyTicketID, ticket.TicketID),
		slog.String(logging.KeyUserID, req.TargetID))
	return ticket, nil
}

// RemoveUser revokes a user's access to the ticket of a channel. Neither the creator nor the bot can be removed.
func (e *Engine) RemoveUser(ctx context.Context, req MemberRequest) (*entities.Ticket, error) {
	ticket, err := e.removeUser(ctx, req)
	if err != nil {
		return nil, e.refused("remove_user", err)
	}
	return ticket, nil
}

func (e *Engine) removeUser(ctx context.Context, req MemberRequest) (*entities.Ticket, error) {
	ticket, err := e.authorize(ctx, req.ChannelID, req.Actor)
	if err != nil {
		return nil, err
	}
	switch req.TargetID {
	case ticket.UserID:
		return nil, ErrCannotRemoveCreator
	case e.provider.SelfID():
		return nil, ErrCannotRemoveBot
	}

	channel, err := e.fetchTicketChannel(ctx, ticket)
	if err != nil {
		return nil, err
	}
	if _, ok := channel.Overwrite(req.TargetID); !ok {
		return nil, ErrNotPresent
	}

	pctx, cancel := e.providerCtx(ctx)
	defer cancel()
	if err := e.provider.DeletePermission(pctx, channel.ID, req.TargetID); err != nil {
		return nil, externalError(fmt.Errorf("error revoking ticket access: %w", err))
	}

	e.l.Info("User removed from ticket",
		slog.String(logging.KeyTicketID, ticket.TicketID),
		slog.String(logging.KeyUserID, req.TargetID))
	return ticket, nil
}

func (e *Engine) fetchTicketChannel(ctx context.Context, ticket *entities.Ticket) (*Channel, error) {
	pctx, cancel := e.providerCtx(ctx)
	defer cancel()

	channel, err := e.provider.FetchChannel(pctx, ticket.ChannelID)
	if errors.Is(err, ErrChannelNotFound) {
		return nil, withMessage(ErrNotATicket, "The channel of ticket %s no longer exists.", ticket.TicketID)
	} else if err != nil {
		return nil, externalError(fmt.Errorf("error fetching ticket channel: %w", err))
	}
	return channel, nil
}

// SetupRequest is a request to configure the ticket system of a guild.
type SetupRequest struct {
	GuildID   string
	GuildName string
	Actor     Actor

	// PanelChannelID is the text channel the ticket panel is posted in.
	PanelChannelID string

	// LogsChannelID and CategoryID keep their configured values when empty.
	LogsChannelID string
	CategoryID    string
}

// ConfigureGuild stores the guild's ticket configuration, creates a ticket category if the guild
// has none, and posts the ticket panel.
func (e *Engine) ConfigureGuild(ctx context.Context, req SetupRequest) (*entities.Guild, error) {
	guild, err := e.configureGuild(ctx, req)
	if err != nil {
		return nil, e.refused("setup", err)
	}
	return guild, nil
}

func (e *Engine) configureGuild(ctx context.Context, req SetupRequest) (*entities.Guild, error) {
	if req.GuildID == "" {
		return nil, ErrNotInGuild
	}
	if !req.Actor.Permissions.Has(permissions.Administrator) {
		return nil, ErrAdministratorRequired
	}

	if err := e.expectChannel(ctx, req.PanelChannelID, ChannelKindText, "The ticket panel channel must be a text channel."); err != nil {
		return nil, err
	}
	if req.LogsChannelID != "" {
		if err := e.expectChannel(ctx, req.LogsChannelID, ChannelKindText, "The logs channel must be a text channel."); err != nil {
			return nil, err
		}
	}
	if req.CategoryID != "" {
		if err := e.expectChannel(ctx, req.CategoryID, ChannelKindCategory, "The ticket category must be a category."); err != nil {
			return nil, err
		}
	}

	l := e.l.With(slog.String(logging.KeyGuildID, req.GuildID))

	guild, err := e.saveSetup(ctx, req)
	if err != nil {
		return nil, err
	}

	if req.CategoryID == "" && !e.categoryExists(ctx, l, guild.CategoryID) {
		category, err := e.createCategory(ctx, guild.ID)
		if err != nil {
			return nil, err
		}
		id := category.ID
		guild, err = e.store.UpdateGuild(ctx, guild.ID, &entities.GuildPatch{CategoryID: &id})
		if err != nil {
			return nil, internalError(fmt.Errorf("error storing ticket category: %w", err))
		}
		l.Info("Ticket category created", slog.String(logging.KeyChannelID, id))
	}

	pctx, cancel := e.providerCtx(ctx)
	defer cancel()
	if err := e.provider.Send(pctx, guild.TicketChannelID, Notice{Kind: NoticePanel, Guild: guild, Actor: req.Actor}); err != nil {
		return nil, externalError(fmt.Errorf("error sending ticket panel: %w", err))
	}

	l.Info("Guild configured", slog.String(logging.KeyUserID, req.Actor.ID))
	return guild, nil
}

// saveSetup creates the guild or merges the setup into its stored configuration.
func (e *Engine) saveSetup(ctx context.Context, req SetupRequest) (*entities.Guild, error) {
	enabled := true
	patch := &entities.GuildPatch{
		TicketChannelID: &req.PanelChannelID,
		Enabled:         &enabled,
	}
	if req.LogsChannelID != "" {
		patch.LogsChannelID = &req.LogsChannelID
	}
	if req.CategoryID != "" {
		patch.CategoryID = &req.CategoryID
	}

	guild, err := e.store.UpdateGuild(ctx, req.GuildID, patch)
	if err == nil {
		return guild, nil
	} else if !errors.Is(err, dataaccess.ErrNotFound) {
		return nil, internalError(fmt.Errorf("error updating guild: %w", err))
	}

	guild = &entities.Guild{
		ID:              req.GuildID,
		Name:            req.GuildName,
		TicketChannelID: req.PanelChannelID,
		LogsChannelID:   req.LogsChannelID,
		CategoryID:      req.CategoryID,
		Enabled:         true,
	}
	err = e.store.CreateGuild(ctx, guild)
	if errors.Is(err, dataaccess.ErrDuplicate) {
		// Created concurrently, merge into that record instead.
		guild, err = e.store.UpdateGuild(ctx, req.GuildID, patch)
	}
	if err != nil {
		return nil, internalError(fmt.Errorf("error creating guild: %w", err))
	}
	return guild, nil
}

func (e *Engine) expectChannel(ctx context.Context, channelID string, kind ChannelKind, msg string) error {
	if channelID == "" {
		return withMessage(ErrInvalidChannel, "%s", msg)
	}

	pctx, cancel := e.providerCtx(ctx)
	defer cancel()

	ch, err := e.provider.FetchChannel(pctx, channelID)
	if errors.Is(err, ErrChannelNotFound) {
		return withMessage(ErrInvalidChannel, "%s", msg)
	} else if err != nil {
		return externalError(fmt.Errorf("error fetching channel: %w", err))
	}
	if ch.Kind != kind {
		return withMessage(ErrInvalidChannel, "%s", msg)
	}
	return nil
}

// categoryExists reports whether the configured category still resolves.
func (e *Engine) categoryExists(ctx context.Context, l *slog.Logger, categoryID string) bool {
	if categoryID == "" {
		return false
	}

	pctx, cancel := e.providerCtx(ctx)
	defer cancel()

	ch, err := e.provider.FetchChannel(pctx, categoryID)
	if err != nil {
		if !errors.Is(err, ErrChannelNotFound) {
			// Keep the configured category rather than risk a duplicate.
			l.Error("Error fetching ticket category", slog.String(logging.KeyError, err.Error()))
			return true
		}
		return false
	}
	return ch.Kind == ChannelKindCategory
}

func (e *Engine) createCategory(ctx context.Context, guildID string) (*Channel, error) {
	pctx, cancel := e.providerCtx(ctx)
	defer cancel()

	category, err := e.provider.CreateChannel(pctx, CreateChannelParams{
		GuildID: guildID,
		Name:    defaultCategoryName,
		Kind:    ChannelKindCategory,
		Overwrites: []Overwrite{
			{TargetID: guildID, TargetKind: TargetRole, Deny: permissions.Of(permissions.View)},
			{TargetID: e.provider.SelfID(), TargetKind: TargetMember, Allow: permissions.CategoryBot},
		},
	})
	if err != nil {
		return nil, externalError(fmt.Errorf("error creating ticket category: %w", err))
	}
	return category, nil
}
