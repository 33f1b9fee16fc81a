package dataaccess

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Jacobbrewer1/kennel/pkg/entities"
	"github.com/Jacobbrewer1/kennel/pkg/logging"
)

const memoryDalName = "memory"

// MemoryStore is an in process store of guilds and tickets. Records returned are copies.
type MemoryStore struct {
	l *slog.Logger

	mut sync.RWMutex

	guilds map[string]*entities.Guild

	tickets map[int64]*entities.Ticket

	// byTicketID indexes tickets by their public ID.
	byTicketID map[string]int64

	// nextID is the last assigned ticket ID. IDs are never reused.
	nextID int64
}

// NewMemoryStore creates an empty in memory store.
func NewMemoryStore(l *slog.Logger) *MemoryStore {
	return &MemoryStore{
		l:          l.With(slog.String(logging.KeyDal, memoryDalName)),
		guilds:     make(map[string]*entities.Guild),
		tickets:    make(map[int64]*entities.Ticket),
		byTicketID: make(map[string]int64),
	}
}

func (m *MemoryStore) CreateGuild(ctx context.Context, guild *entities.Guild) error {
	defer observe(backendMemory, guildDalName, "create_guild")()
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mut.Lock()
	defer m.mut.Unlock()

	if _, ok := m.guilds[guild.ID]; ok {
		return ErrDuplicate
	}
	m.guilds[guild.ID] = guild.Clone()
	return nil
}

func (m *MemoryStore) SaveGuild(ctx context.Context, guild *entities.Guild) error {
	defer observe(backendMemory, guildDalName, "save_guild")()
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mut.Lock()
	defer m.mut.Unlock()

	m.guilds[guild.ID] = guild.Clone()
	return nil
}

func (m *MemoryStore) GetGuildByID(ctx context.Context, id string) (*entities.Guild, error) {
	defer observe(backendMemory, guildDalName, "get_guild_by_id")()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mut.RLock()
	defer m.mut.RUnlock()

	g, ok := m.guilds[id]
	if !ok {
		return nil, ErrNotFound
	}
	return g.Clone(), nil
}

func (m *MemoryStore) GetGuilds(ctx context.Context) ([]*entities.Guild, error) {
	defer observe(backendMemory, guildDalName, "get_guilds")()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mut.RLock()
	defer m.mut.RUnlock()

	guilds := make([]*entities.Guild, 0, len(m.guilds))
	for _, g := range m.guilds {
		guilds = append(guilds, g.Clone())
	}
	sort.Slice(guilds, func(i, j int) bool {
		return guilds[i].ID < guilds[j].ID
	})
	return guilds, nil
}

func (m *MemoryStore) UpdateGuild(ctx context.Context, id string, patch *entities.GuildPatch) (*entities.Guild, error) {
	defer observe(backendMemory, guildDalName, "update_guild")()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mut.Lock()
	defer m.mut.Unlock()

	g, ok := m.guilds[id]
	if !ok {
		return nil, ErrNotFound
	}
	patch.Apply(g)
	return g.Clone(), nil
}

func (m *MemoryStore) DeleteGuild(ctx context.Context, id string) error {
	defer observe(backendMemory, guildDalName, "delete_guild")()
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mut.Lock()
	defer m.mut.Unlock()

	if _, ok := m.guilds[id]; !ok {
		return ErrNotFound
	}
	delete(m.guilds, id)
	return nil
}

func (m *MemoryStore) CreateTicket(ctx context.Context, ticket *entities.Ticket) error {
	defer observe(backendMemory, ticketDalName, "create_ticket")()
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mut.Lock()
	defer m.mut.Unlock()

	if _, ok := m.byTicketID[ticket.TicketID]; ok {
		return ErrDuplicate
	}

	m.nextID++
	ticket.ID = m.nextID
	if ticket.Status == "" {
		ticket.Status = entities.TicketStatusOpen
	}
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = time.Now().UTC()
	}

	m.tickets[ticket.ID] = ticket.Clone()
	m.byTicketID[ticket.TicketID] = ticket.ID
	return nil
}

func (m *MemoryStore) GetTicket(ctx context.Context, id int64) (*entities.Ticket, error) {
	defer observe(backendMemory, ticketDalName, "get_ticket")()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mut.RLock()
	defer m.mut.RUnlock()

	t, ok := m.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	return t.Clone(), nil
}

func (m *MemoryStore) GetTicketByTicketID(ctx context.Context, ticketID string) (*entities.Ticket, error) {
	defer observe(backendMemory, ticketDalName, "get_ticket_by_ticket_id")()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mut.RLock()
	defer m.mut.RUnlock()

	id, ok := m.byTicketID[ticketID]
	if !ok {
		return nil, ErrNotFound
	}
	return m.tickets[id].Clone(), nil
}

func (m *MemoryStore) GetTicketByChannelID(ctx context.Context, channelID string) (*entities.Ticket, error) {
	defer observe(backendMemory, ticketDalName, "get_ticket_by_channel_id")()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mut.RLock()
	defer m.mut.RUnlock()

	var latest *entities.Ticket
	for _, t := range m.tickets {
		if t.ChannelID != channelID {
			continue
		}
		if latest == nil || t.ID > latest.ID {
			latest = t
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return latest.Clone(), nil
}

func (m *MemoryStore) filterTickets(keep func(*entities.Ticket) bool) []*entities.Ticket {
	m.mut.RLock()
	defer m.mut.RUnlock()

	tickets := make([]*entities.Ticket, 0)
	for _, t := range m.tickets {
		if keep(t) {
			tickets = append(tickets, t.Clone())
		}
	}
	sort.Slice(tickets, func(i, j int) bool {
		return tickets[i].ID < tickets[j].ID
	})
	return tickets
}

func (m *MemoryStore) GetTicketsByGuildID(ctx context.Context, guildID string) ([]*entities.Ticket, error) {
	defer observe(backendMemory, ticketDalName, "get_tickets_by_guild_id")()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return m.filterTickets(func(t *entities.Ticket) bool {
		return t.GuildID == guildID
	}), nil
}

func (m *MemoryStore) GetTicketsByUserID(ctx context.Context, userID string) ([]*entities.Ticket, error) {
	defer observe(backendMemory, ticketDalName, "get_tickets_by_user_id")()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return m.filterTickets(func(t *entities.Ticket) bool {
		return t.UserID == userID
	}), nil
}

func (m *MemoryStore) CloseTicket(ctx context.Context, id int64, closedBy string, closedAt time.Time) (*entities.Ticket, error) {
	defer observe(backendMemory, ticketDalName, "close_ticket")()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mut.Lock()
	defer m.mut.Unlock()

	t, ok := m.tickets[id]
	if !ok {
		return nil, ErrNotFound
	} else if !t.IsOpen() {
		return nil, ErrTicketClosed
	}

	at := closedAt.UTC()
	t.Status = entities.TicketStatusClosed
	t.ClosedAt = &at
	t.ClosedBy = &closedBy
	return t.Clone(), nil
}

func (m *MemoryStore) DeleteTicket(ctx context.Context, id int64) error {
	defer observe(backendMemory, ticketDalName, "delete_ticket")()
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mut.Lock()
	defer m.mut.Unlock()

	t, ok := m.tickets[id]
	if !ok {
		return ErrNotFound
	}
	delete(m.byTicketID, t.TicketID)
	delete(m.tickets, id)
	return nil
}

func (m *MemoryStore) GetTicketStats(ctx context.Context, guildID string) (*entities.TicketStats, error) {
	tickets, err := m.GetTicketsByGuildID(ctx, guildID)
	if err != nil {
		return nil, err
	}
	return entities.TallyTickets(tickets), nil
}
