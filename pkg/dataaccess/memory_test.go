package dataaccess

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/Jacobbrewer1/kennel/pkg/entities"
	"github.com/Jacobbrewer1/kennel/pkg/logging"
	"github.com/stretchr/testify/require"
)

var _ Store = (*MemoryStore)(nil)

func newTestStore(t *testing.T) *MemoryStore {
	l, err := logging.CommonLogger(logging.NewConfig(`tests`))
	require.NoError(t, err, "Failed to create logger")
	return NewMemoryStore(l)
}

func TestMemoryStore_Guilds(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.CreateGuild(ctx, &entities.Guild{ID: "G2", Name: "two", Enabled: true}))
	require.NoError(t, s.CreateGuild(ctx, &entities.Guild{ID: "G1", Name: "one", Enabled: true}))
	require.ErrorIs(t, s.CreateGuild(ctx, &entities.Guild{ID: "G1"}), ErrDuplicate)

	guilds, err := s.GetGuilds(ctx)
	require.NoError(t, err)
	require.Len(t, guilds, 2)
	require.Equal(t, "G1", guilds[0].ID)

	logs := "L1"
	updated, err := s.UpdateGuild(ctx, "G1", &entities.GuildPatch{LogsChannelID: &logs})
	require.NoError(t, err)
	require.Equal(t, "L1", updated.LogsChannelID)
	require.Equal(t, "one", updated.Name)

	_, err = s.UpdateGuild(ctx, "missing", &entities.GuildPatch{LogsChannelID: &logs})
	require.ErrorIs(t, err, ErrNotFound)

	// Mutating a returned record must not change the stored one.
	updated.Name = "changed"
	got, err := s.GetGuildByID(ctx, "G1")
	require.NoError(t, err)
	require.Equal(t, "one", got.Name)

	require.NoError(t, s.SaveGuild(ctx, &entities.Guild{ID: "G1", Name: "replaced"}))
	got, err = s.GetGuildByID(ctx, "G1")
	require.NoError(t, err)
	require.Equal(t, "replaced", got.Name)
	require.Empty(t, got.LogsChannelID)

	require.NoError(t, s.DeleteGuild(ctx, "G1"))
	require.ErrorIs(t, s.DeleteGuild(ctx, "G1"), ErrNotFound)
	_, err = s.GetGuildByID(ctx, "G1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_CreateTicket(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first := &entities.Ticket{TicketID: "1234", GuildID: "G1", ChannelID: "C1", UserID: "U1", Type: entities.TicketTypeGeneralHelp}
	require.NoError(t, s.CreateTicket(ctx, first))
	require.Equal(t, int64(1), first.ID)
	require.Equal(t, entities.TicketStatusOpen, first.Status)
	require.False(t, first.CreatedAt.IsZero())
	require.Nil(t, first.ClosedAt)

	dup := &entities.Ticket{TicketID: "1234", GuildID: "G1", ChannelID: "C2", UserID: "U2"}
	require.ErrorIs(t, s.CreateTicket(ctx, dup), ErrDuplicate)

	// Deleted IDs are not handed out again.
	require.NoError(t, s.DeleteTicket(ctx, first.ID))
	second := &entities.Ticket{TicketID: "1234", GuildID: "G1", ChannelID: "C3", UserID: "U1"}
	require.NoError(t, s.CreateTicket(ctx, second))
	require.Equal(t, int64(2), second.ID)
}

func TestMemoryStore_Lookups(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	tickets := []*entities.Ticket{
		{TicketID: "1001", GuildID: "G1", ChannelID: "C1", UserID: "U1", Type: entities.TicketTypeGeneralHelp},
		{TicketID: "1002", GuildID: "G1", ChannelID: "C2", UserID: "U2", Type: entities.TicketTypeTournament},
		{TicketID: "1003", GuildID: "G2", ChannelID: "C3", UserID: "U1", Type: entities.TicketTypeTournament},
		{TicketID: "1004", GuildID: "G1", ChannelID: "C1", UserID: "U3", Type: entities.TicketTypeFriendlyMatch},
	}
	for _, tk := range tickets {
		require.NoError(t, s.CreateTicket(ctx, tk))
	}

	tests := []struct {
		name  string
		query func() ([]*entities.Ticket, error)
		want  []string
	}{
		{
			name:  "by guild",
			query: func() ([]*entities.Ticket, error) { return s.GetTicketsByGuildID(ctx, "G1") },
			want:  []string{"1001", "1002", "1004"},
		},
		{
			name:  "by user",
			query: func() ([]*entities.Ticket, error) { return s.GetTicketsByUserID(ctx, "U1") },
			want:  []string{"1001", "1003"},
		},
		{
			name:  "unknown guild",
			query: func() ([]*entities.Ticket, error) { return s.GetTicketsByGuildID(ctx, "G9") },
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.query()
			require.NoError(t, err)
			ids := make([]string, 0, len(got))
			for _, tk := range got {
				ids = append(ids, tk.TicketID)
			}
			require.Equal(t, tt.want, ids)
		})
	}

	byChannel, err := s.GetTicketByChannelID(ctx, "C1")
	require.NoError(t, err)
	require.Equal(t, "1004", byChannel.TicketID, "latest ticket for a channel wins")

	byTicketID, err := s.GetTicketByTicketID(ctx, "1003")
	require.NoError(t, err)
	require.Equal(t, "G2", byTicketID.GuildID)

	_, err = s.GetTicketByTicketID(ctx, "9999")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetTicketByChannelID(ctx, "C9")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetTicket(ctx, 42)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_CloseTicket(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	tk := &entities.Ticket{TicketID: "4821", GuildID: "G1", ChannelID: "C1", UserID: "U1", Type: entities.TicketTypeGeneralHelp}
	require.NoError(t, s.CreateTicket(ctx, tk))

	closedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	closed, err := s.CloseTicket(ctx, tk.ID, "S1", closedAt)
	require.NoError(t, err)
	require.Equal(t, entities.TicketStatusClosed, closed.Status)
	require.Equal(t, "S1", closed.Closer())
	require.NotNil(t, closed.ClosedAt)
	require.True(t, closedAt.Equal(*closed.ClosedAt))

	_, err = s.CloseTicket(ctx, tk.ID, "S2", time.Now())
	require.ErrorIs(t, err, ErrTicketClosed)

	got, err := s.GetTicket(ctx, tk.ID)
	require.NoError(t, err)
	require.Equal(t, "S1", got.Closer(), "second close must not change the record")

	_, err = s.CloseTicket(ctx, 99, "S1", time.Now())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_GetTicketStats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for i, typ := range []entities.TicketType{
		entities.TicketTypeGeneralHelp,
		entities.TicketTypeGeneralHelp,
		entities.TicketTypeTournament,
	} {
		tk := &entities.Ticket{TicketID: strconv.Itoa(1000 + i), GuildID: "G1", ChannelID: "C", UserID: "U", Type: typ}
		require.NoError(t, s.CreateTicket(ctx, tk))
	}
	_, err := s.CloseTicket(ctx, 3, "S1", time.Now())
	require.NoError(t, err)

	stats, err := s.GetTicketStats(ctx, "G1")
	require.NoError(t, err)
	require.Equal(t, 3, stats.Total)
	require.Equal(t, 2, stats.Open)
	require.Equal(t, 1, stats.Closed)
	require.Equal(t, stats.Total, stats.Open+stats.Closed)
	require.Equal(t, 2, stats.ByType[entities.TicketTypeGeneralHelp])
}

func TestMemoryStore_ConcurrentCreate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tk := &entities.Ticket{TicketID: strconv.Itoa(1000 + i), GuildID: "G1", UserID: "U"}
			require.NoError(t, s.CreateTicket(ctx, tk))
		}(i)
	}
	wg.Wait()

	tickets, err := s.GetTicketsByGuildID(ctx, "G1")
	require.NoError(t, err)
	require.Len(t, tickets, n)

	seen := make(map[int64]bool, n)
	for _, tk := range tickets {
		require.False(t, seen[tk.ID])
		seen[tk.ID] = true
	}
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.GetGuilds(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.ErrorIs(t, s.CreateTicket(ctx, &entities.Ticket{TicketID: "1"}), context.Canceled)
}
