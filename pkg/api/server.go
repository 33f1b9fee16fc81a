// Package api is the JSON API consumed by the dashboard.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Jacobbrewer1/kennel/pkg/dataaccess"
	"github.com/Jacobbrewer1/kennel/pkg/entities"
	"github.com/Jacobbrewer1/kennel/pkg/logging"
	"github.com/Jacobbrewer1/kennel/pkg/request"
	"github.com/gorilla/mux"
)

const (
	// PathPrefix is the prefix of every API route.
	PathPrefix = "/api"

	// reconnectTimeout bounds the reconnect attempted by the ping route.
	reconnectTimeout = 30 * time.Second
)

const (
	statusConnected    = "connected"
	statusDisconnected = "disconnected"
)

// BotStatus is the liveness of the platform connection.
type BotStatus interface {
	// IsReady reports whether the gateway connection is up.
	IsReady() bool

	// Username is the bot's username, empty when not logged in.
	Username() string

	// GuildCount is the number of guilds the bot is in.
	GuildCount() int

	// Reconnect opens the gateway connection again.
	Reconnect(ctx context.Context) error
}

// Server serves the dashboard API.
type Server struct {
	l     *slog.Logger
	store dataaccess.Store
	bot   BotStatus

	limiter *RateLimiter
	trusted []*net.IPNet
	now     func() time.Time

	mut      sync.Mutex
	lastPing time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithRateLimit limits each client to rps requests per second. Zero disables the limit.
func WithRateLimit(rps float64) Option {
	return func(s *Server) {
		if rps <= 0 {
			s.limiter = nil
			return
		}
		s.limiter = NewRateLimiter(rps)
	}
}

// WithTrustedProxies sets the proxies whose X-Forwarded-For header identifies the client for rate limiting.
// Without any, clients are identified by their address alone.
func WithTrustedProxies(proxies []*net.IPNet) Option {
	return func(s *Server) {
		s.trusted = proxies
	}
}

// WithNow sets the time source.
func WithNow(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// NewServer creates the API server.
func NewServer(l *slog.Logger, store dataaccess.Store, bot BotStatus, opts ...Option) *Server {
	s := &Server{
		l:     l,
		store: store,
		bot:   bot,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.limiter != nil {
		s.limiter.trusted = s.trusted
	}
	s.lastPing = s.now().UTC()
	return s
}

// Register adds the API routes to r.
func (s *Server) Register(r *mux.Router) {
	api := r.PathPrefix(PathPrefix).Subrouter()
	api.Use(Middleware(s.l, s.limiter))

	api.HandleFunc("/guilds", s.listGuilds).Methods(http.MethodGet)
	api.HandleFunc("/guilds/{id}", s.getGuild).Methods(http.MethodGet)
	api.HandleFunc("/guilds/{id}", s.patchGuild).Methods(http.MethodPatch)

	// Stats is registered before the ID route so that it is not parsed as an ID.
	api.HandleFunc("/tickets", s.listTickets).Methods(http.MethodGet)
	api.HandleFunc("/tickets/stats", s.ticketStats).Methods(http.MethodGet)
	api.HandleFunc("/tickets/{id}", s.getTicket).Methods(http.MethodGet)

	api.HandleFunc("/bot/status", s.botStatus).Methods(http.MethodGet)
	api.HandleFunc("/bot/ping", s.botPing).Methods(http.MethodGet)

	api.NotFoundHandler = request.NotFoundHandler(s.l)
	api.MethodNotAllowedHandler = request.MethodNotAllowedHandler(s.l)
}

// internalError logs err and writes a 500.
func (s *Server) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	s.l.Error(msg,
		slog.String(logging.KeyError, err.Error()),
		slog.String(logging.KeyRequestID, RequestID(r.Context())),
	)
	request.Error(s.l, w, http.StatusInternalServerError, request.ErrInternalServer.Error())
}

func (s *Server) listGuilds(w http.ResponseWriter, r *http.Request) {
	guilds, err := s.store.GetGuilds(r.Context())
	if err != nil {
		s.internalError(w, r, "Error listing guilds", err)
		return
	}
	if guilds == nil {
		guilds = make([]*entities.Guild, 0)
	}
	request.Encode(s.l, w, http.StatusOK, guilds)
}

func (s *Server) getGuild(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	guild, err := s.store.GetGuildByID(r.Context(), id)
	switch {
	case errors.Is(err, dataaccess.ErrNotFound):
		request.Error(s.l, w, http.StatusNotFound, "guild not found")
		return
	case err != nil:
		s.internalError(w, r, "Error getting guild", err)
		return
	}
	request.Encode(s.l, w, http.StatusOK, guild)
}

func (s *Server) patchGuild(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	patch, details, err := decodeGuildPatch(r.Body)
	if err != nil {
		request.Error(s.l, w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(details) > 0 {
		request.Error(s.l, w, http.StatusBadRequest, "invalid guild configuration", details...)
		return
	}

	guild, err := s.store.UpdateGuild(r.Context(), id, patch)
	switch {
	case errors.Is(err, dataaccess.ErrNotFound):
		request.Error(s.l, w, http.StatusNotFound, "guild not found")
		return
	case err != nil:
		s.internalError(w, r, "Error updating guild", err)
		return
	}

	s.l.Info("Guild updated from the dashboard",
		slog.String(logging.KeyGuildID, id),
		slog.String(logging.KeyRequestID, RequestID(r.Context())),
	)
	request.Encode(s.l, w, http.StatusOK, guild)
}

// guildIDParam returns the required guildId query parameter, writing a 400 if it is missing.
func (s *Server) guildIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	guildID := r.URL.Query().Get("guildId")
	if guildID == "" {
		request.Error(s.l, w, http.StatusBadRequest, "guildId is required")
		return "", false
	}
	return guildID, true
}

func (s *Server) listTickets(w http.ResponseWriter, r *http.Request) {
	guildID, ok := s.guildIDParam(w, r)
	if !ok {
		return
	}
	tickets, err := s.store.GetTicketsByGuildID(r.Context(), guildID)
	if err != nil {
		s.internalError(w, r, "Error listing tickets", err)
		return
	}
	if tickets == nil {
		tickets = make([]*entities.Ticket, 0)
	}
	request.Encode(s.l, w, http.StatusOK, tickets)
}

func (s *Server) ticketStats(w http.ResponseWriter, r *http.Request) {
	guildID, ok := s.guildIDParam(w, r)
	if !ok {
		return
	}
	stats, err := s.store.GetTicketStats(r.Context(), guildID)
	if err != nil {
		s.internalError(w, r, "Error getting ticket stats", err)
		return
	}
	request.Encode(s.l, w, http.StatusOK, stats)
}

func (s *Server) getTicket(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		request.Error(s.l, w, http.StatusBadRequest, "ticket id must be numeric")
		return
	}
	ticket, err := s.store.GetTicket(r.Context(), id)
	switch {
	case errors.Is(err, dataaccess.ErrNotFound):
		request.Error(s.l, w, http.StatusNotFound, "ticket not found")
		return
	case err != nil:
		s.internalError(w, r, "Error getting ticket", err)
		return
	}
	request.Encode(s.l, w, http.StatusOK, ticket)
}

// BotStatusResponse is the liveness snapshot of the bot.
type BotStatusResponse struct {
	Online     bool      `json:"online"`
	Username   string    `json:"username"`
	GuildCount int       `json:"guildCount"`
	LastPing   time.Time `json:"lastPing"`
}

// PingResponse is the result of a ping.
type PingResponse struct {
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`
	Status    string    `json:"status"`
}

func (s *Server) botStatus(w http.ResponseWriter, _ *http.Request) {
	s.mut.Lock()
	lastPing := s.lastPing
	s.mut.Unlock()

	request.Encode(s.l, w, http.StatusOK, &BotStatusResponse{
		Online:     s.bot.IsReady(),
		Username:   s.bot.Username(),
		GuildCount: s.bot.GuildCount(),
		LastPing:   lastPing,
	})
}

func (s *Server) botPing(w http.ResponseWriter, r *http.Request) {
	now := s.now().UTC()
	s.mut.Lock()
	s.lastPing = now
	s.mut.Unlock()

	if !s.bot.IsReady() {
		s.l.Warn("Bot is disconnected, reconnecting",
			slog.String(logging.KeyRequestID, RequestID(r.Context())),
		)
		ctx, cancel := context.WithTimeout(r.Context(), reconnectTimeout)
		err := s.bot.Reconnect(ctx)
		cancel()
		if err != nil {
			s.l.Error("Error reconnecting bot", slog.String(logging.KeyError, err.Error()))
		}
	}

	status := statusDisconnected
	if s.bot.IsReady() {
		status = statusConnected
	}
	request.Encode(s.l, w, http.StatusOK, &PingResponse{
		Success:   true,
		Timestamp: now,
		Status:    status,
	})
}
