package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Jacobbrewer1/kennel/cmd/bot/config"
	"github.com/Jacobbrewer1/kennel/cmd/bot/monitoring"
	"github.com/Jacobbrewer1/kennel/pkg/api"
	"github.com/Jacobbrewer1/kennel/pkg/dataaccess"
	"github.com/Jacobbrewer1/kennel/pkg/dataaccess/connection"
	"github.com/Jacobbrewer1/kennel/pkg/discord"
	"github.com/Jacobbrewer1/kennel/pkg/logging"
	"github.com/Jacobbrewer1/kennel/pkg/request"
	"github.com/Jacobbrewer1/kennel/pkg/tickets"
	"github.com/bwmarrin/discordgo"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// PathMetrics is the path for metrics.
	PathMetrics = "/metrics"

	// PathHealth is the path for the health check.
	PathHealth = "/health"

	// shutdownTimeout bounds the graceful shutdown.
	shutdownTimeout = 15 * time.Second
)

type App struct {
	// is the logger.
	*slog.Logger

	// cfg is the configuration of the application.
	cfg *config.Config

	// r is the router for the application.
	r *mux.Router

	// svr is the server for the application.
	svr *http.Server

	// s is the discord session.
	s *discordgo.Session

	// conn reports on the gateway connection.
	conn *discord.Connection

	// mongo is the MongoDB connection, nil when tickets are stored in memory.
	mongo *connection.MongoDB

	// store holds guilds and tickets.
	store dataaccess.Store

	// engine runs the ticket lifecycle.
	engine *tickets.Engine

	// commands tracks the registered slash commands.
	commands *commandRegistry

	// eventNotifier is the channel for notifying of events.
	eventNotifier chan *discordgo.Event
}

// NewApp creates a new instance of App.
func NewApp(l *slog.Logger, cfg *config.Config, r *mux.Router) *App {
	return &App{
		Logger: l,
		cfg:    cfg,
		r:      r,
	}
}

func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.setupStore(ctx); err != nil {
		return fmt.Errorf("error setting up store: %w", err)
	}

	// Register bot.
	if err := a.RegisterBot(); err != nil {
		return fmt.Errorf("error registering bot: %w", err)
	}

	a.engine = tickets.NewEngine(a.Logger, a.store, discord.NewProvider(a.Logger, a.s, a.conn.SelfID), tickets.Config{
		DeleteDelay:     a.cfg.TicketDeleteDelay,
		ProviderTimeout: a.cfg.ProviderTimeout,
	})

	a.RegisterDiscordHandlers()

	// Start event listener.
	go a.eventListener()

	// Register slash commands.
	if err := a.registerSlashCommands(); err != nil {
		return fmt.Errorf("error registering slash commands: %w", err)
	}

	// Open websocket.
	if err := a.s.Open(); err != nil {
		return fmt.Errorf("error opening connection to Discord: %w", err)
	}

	a.Info("Bot is now running.")

	a.setupRoutes()
	a.runServer()

	// Process shutdown signal.
	<-ctx.Done()
	a.Info("Received shutdown signal")
	if err := a.ShutdownHook(); err != nil {
		return fmt.Errorf("error shutting down application: %w", err)
	}
	return nil
}

func (a *App) setupStore(ctx context.Context) error {
	if a.cfg.MongoUri == "" {
		a.store = dataaccess.NewMemoryStore(a.Logger)
		a.Warn("Using the in memory store, tickets will be lost on restart")
		return nil
	}

	a.mongo = &connection.MongoDB{
		URI:      a.cfg.MongoUri,
		Database: a.cfg.MongoDatabase,
	}
	db, err := a.mongo.Connect(ctx)
	if err != nil {
		return fmt.Errorf("error connecting to mongo: %w", err)
	}

	a.store, err = dataaccess.NewMongoStore(ctx, a.Logger, db)
	if err != nil {
		return fmt.Errorf("error creating mongo store: %w", err)
	}
	a.Debug("Connected to MongoDB", slog.String("database", a.cfg.MongoDatabase))
	return nil
}

func (a *App) ShutdownHook() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	errs := make([]error, 0)

	if a.svr != nil {
		if err := a.svr.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("error shutting down server: %w", err))
		}
	}

	// Delete the channels of closed tickets now, as pending deletions do not survive a restart.
	if err := a.engine.Scheduler().Shutdown(ctx, true); err != nil {
		errs = append(errs, fmt.Errorf("error flushing channel deletions: %w", err))
	}

	// Reset the total number of guilds to 0.
	monitoring.TotalDiscordGuilds.Set(0)

	// Unregister slash commands.
	if err := a.commands.unregisterAll(); err != nil {
		errs = append(errs, fmt.Errorf("error unregistering slash commands: %w", err))
	}

	// Close the connection to Discord.
	if err := a.s.Close(); err != nil {
		errs = append(errs, fmt.Errorf("error closing connection to Discord: %w", err))
	}

	if a.mongo != nil {
		if err := a.mongo.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("error disconnecting from mongo: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (a *App) RegisterBot() error {
	// Default the number of guilds to 0.
	monitoring.TotalDiscordGuilds.Set(0)

	dg, err := discordgo.New("Bot " + a.cfg.BotToken)
	if err != nil {
		return fmt.Errorf("error creating Discord session: %w", err)
	}

	dg.Identify.Intents = discordgo.MakeIntent(discordgo.IntentsGuilds)

	if a.eventNotifier == nil {
		// Create event notifier. It is buffered to prevent blocking.
		a.eventNotifier = make(chan *discordgo.Event, 100)
	}

	a.s = dg
	a.conn = discord.NewConnection(a.Logger, dg)
	a.commands = newCommandRegistry(a.Logger, dg, a.cfg.ApplicationId)
	return nil
}

func (a *App) runServer() {
	a.svr = &http.Server{
		Addr:              ":" + a.cfg.HttpPort,
		Handler:           a.r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		a.Info("Starting http server", slog.String("addr", a.svr.Addr))
		if err := a.svr.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Error("Error starting http server", slog.String(logging.KeyError, err.Error()))
			a.Warn("The API, metrics and health check will not be available")
		}
	}()
}

func (a *App) setupRoutes() {
	api.NewServer(a.Logger, a.store, a.conn, api.WithRateLimit(a.cfg.ApiRateLimit), api.WithTrustedProxies(a.cfg.ApiTrustedProxies)).Register(a.r)

	// PathMetrics is the path for metrics.
	a.r.Handle(PathMetrics, promhttp.Handler()).Methods(http.MethodGet)

	// PathHealth is the path for health check.
	a.r.Handle(PathHealth, api.Middleware(a.Logger, nil)(a.healthCheck())).Methods(http.MethodGet)

	// NotFoundHandler is the handler for 404.
	a.r.NotFoundHandler = request.NotFoundHandler(a.Logger)

	// MethodNotAllowedHandler is the handler for 405.
	a.r.MethodNotAllowedHandler = request.MethodNotAllowedHandler(a.Logger)
}

func (a *App) GetJoinedGuilds() ([]*discordgo.UserGuild, error) {
	guilds, err := a.s.UserGuilds(0, "", "", false)
	if err != nil {
		return nil, fmt.Errorf("error getting guilds: %w", err)
	}
	return guilds, nil
}

func (a *App) RegisterDiscordHandlers() {
	a.s.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		a.Info("Logged in", slog.String("username", r.User.Username))
	})

	// Count every gateway event.
	a.s.AddHandler(func(_ *discordgo.Session, e *discordgo.Event) {
		select {
		case a.eventNotifier <- e:
		default:
			a.Warn("Event notifier is full, dropping event", slog.String("type", e.Type))
		}
	})

	// Bot joined guild.
	a.s.AddHandler(guildJoinedHandler(a))

	// Bot left guild.
	a.s.AddHandler(guildLeaveHandler(a))

	// Interaction create handler.
	guildName := func(guildID string) string {
		g, err := a.s.State.Guild(guildID)
		if err != nil {
			return ""
		}
		return g.Name
	}
	a.s.AddHandler(newDispatcher(a.Logger, a.engine, a.s, guildName).handler())
}

func (a *App) eventListener() {
	for e := range a.eventNotifier {
		if e.Type != "" {
			monitoring.TotalDiscordEvents.WithLabelValues(e.Type).Inc()
		} else {
			// If there is no type, then use the operation name.
			monitoring.TotalDiscordEvents.WithLabelValues(fmt.Sprintf("OP_%d", e.Operation)).Inc()
		}
	}
}

func (a *App) registerSlashCommands() error {
	// Get all guilds the bot is in.
	guilds, err := a.GetJoinedGuilds()
	if err != nil {
		return fmt.Errorf("error getting guilds: %w", err)
	}

	// Register slash commands for each guild.
	for _, g := range guilds {
		if err := a.commands.register(g.ID); err != nil {
			return err
		}
	}
	return nil
}
