package tickets

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/Jacobbrewer1/kennel/pkg/dataaccess"
	"github.com/Jacobbrewer1/kennel/pkg/entities"
	"github.com/Jacobbrewer1/kennel/pkg/logging"
	"github.com/stretchr/testify/require"
)

const botID = "BOT"

type sentNotice struct {
	ChannelID string
	Notice    Notice
}

// fakeProvider is an in memory ChannelProvider.
type fakeProvider struct {
	mut sync.Mutex

	channels map[string]*Channel
	roles    map[string][]Role
	nextID   int

	// reuseID, when set, is the ID given to the next created channel.
	reuseID string

	sent    []sentNotice
	deleted []string
	created []CreateChannelParams

	errCreate error
	errRoles  error
	errThread error
	errFetch  error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		channels: make(map[string]*Channel),
		roles:    make(map[string][]Role),
	}
}

func (p *fakeProvider) addChannel(ch *Channel) {
	p.mut.Lock()
	defer p.mut.Unlock()
	p.channels[ch.ID] = ch
}

func (p *fakeProvider) channel(id string) (*Channel, bool) {
	p.mut.Lock()
	defer p.mut.Unlock()
	ch, ok := p.channels[id]
	if !ok {
		return nil, false
	}
	c := *ch
	c.Overwrites = append([]Overwrite(nil), ch.Overwrites...)
	return &c, true
}

func (p *fakeProvider) notices() []sentNotice {
	p.mut.Lock()
	defer p.mut.Unlock()
	return append([]sentNotice(nil), p.sent...)
}

func (p *fakeProvider) noticeKinds(channelID string) []NoticeKind {
	kinds := make([]NoticeKind, 0)
	for _, s := range p.notices() {
		if s.ChannelID == channelID {
			kinds = append(kinds, s.Notice.Kind)
		}
	}
	return kinds
}

func (p *fakeProvider) channelCount() int {
	p.mut.Lock()
	defer p.mut.Unlock()
	return len(p.channels)
}

func (p *fakeProvider) SelfID() string {
	return botID
}

func (p *fakeProvider) FetchChannel(_ context.Context, channelID string) (*Channel, error) {
	if p.errFetch != nil {
		return nil, p.errFetch
	}
	ch, ok := p.channel(channelID)
	if !ok {
		return nil, ErrChannelNotFound
	}
	return ch, nil
}

func (p *fakeProvider) GuildRoles(_ context.Context, guildID string) ([]Role, error) {
	if p.errRoles != nil {
		return nil, p.errRoles
	}
	p.mut.Lock()
	defer p.mut.Unlock()
	return p.roles[guildID], nil
}

func (p *fakeProvider) CreateChannel(_ context.Context, params CreateChannelParams) (*Channel, error) {
	if p.errCreate != nil {
		return nil, p.errCreate
	}

	p.mut.Lock()
	defer p.mut.Unlock()

	p.created = append(p.created, params)

	id := p.reuseID
	p.reuseID = ""
	if id == "" {
		p.nextID++
		id = fmt.Sprintf("ch-%d", p.nextID)
	}
	ch := &Channel{
		ID:         id,
		GuildID:    params.GuildID,
		ParentID:   params.ParentID,
		Name:       params.Name,
		Kind:       params.Kind,
		Overwrites: append([]Overwrite(nil), params.Overwrites...),
	}
	p.channels[id] = ch
	c := *ch
	return &c, nil
}

func (p *fakeProvider) EditPermission(_ context.Context, channelID string, overwrite Overwrite) error {
	p.mut.Lock()
	defer p.mut.Unlock()

	ch, ok := p.channels[channelID]
	if !ok {
		return ErrChannelNotFound
	}
	for i, o := range ch.Overwrites {
		if o.TargetID == overwrite.TargetID {
			ch.Overwrites[i] = overwrite
			return nil
		}
	}
	ch.Overwrites = append(ch.Overwrites, overwrite)
	return nil
}

func (p *fakeProvider) DeletePermission(_ context.Context, channelID, targetID string) error {
	p.mut.Lock()
	defer p.mut.Unlock()

	ch, ok := p.channels[channelID]
	if !ok {
		return ErrChannelNotFound
	}
	for i, o := range ch.Overwrites {
		if o.TargetID == targetID {
			ch.Overwrites = append(ch.Overwrites[:i], ch.Overwrites[i+1:]...)
			return nil
		}
	}
	return nil
}

func (p *fakeProvider) DeleteChannel(_ context.Context, channelID string) error {
	p.mut.Lock()
	defer p.mut.Unlock()

	if _, ok := p.channels[channelID]; !ok {
		return ErrChannelNotFound
	}
	delete(p.channels, channelID)
	p.deleted = append(p.deleted, channelID)
	return nil
}

func (p *fakeProvider) CreateThread(_ context.Context, channelID, name string) (*Channel, error) {
	if p.errThread != nil {
		return nil, p.errThread
	}

	p.mut.Lock()
	defer p.mut.Unlock()

	p.nextID++
	ch := &Channel{
		ID:       fmt.Sprintf("th-%d", p.nextID),
		ParentID: channelID,
		Name:     name,
		Kind:     ChannelKindThread,
	}
	p.channels[ch.ID] = ch
	c := *ch
	return &c, nil
}

func (p *fakeProvider) Send(_ context.Context, channelID string, notice Notice) error {
	p.mut.Lock()
	defer p.mut.Unlock()
	p.sent = append(p.sent, sentNotice{ChannelID: channelID, Notice: notice})
	return nil
}

// fakeClock runs AfterFunc calls when Advance passes their due time.
type fakeClock struct {
	mut    sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mut.Lock()
	defer c.mut.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mut.Lock()
	defer c.mut.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mut.Lock()
	defer t.clock.mut.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves the clock forward and runs the timers that became due.
func (c *fakeClock) Advance(d time.Duration) {
	c.mut.Lock()
	c.now = c.now.Add(d)
	due := make([]*fakeTimer, 0)
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mut.Unlock()

	sort.Slice(due, func(i, j int) bool {
		return due[i].at.Before(due[j].at)
	})
	for _, t := range due {
		t.f()
	}
}

// sequenceIDs hands out the given ticket IDs in order, then numbers from 5000.
func sequenceIDs(ids ...string) IDGenerator {
	var mut sync.Mutex
	next := 5000
	return func() string {
		mut.Lock()
		defer mut.Unlock()
		if len(ids) > 0 {
			id := ids[0]
			ids = ids[1:]
			return id
		}
		next++
		return fmt.Sprint(next)
	}
}

// failingStore fails ticket creation.
type failingStore struct {
	dataaccess.Store
	err error
}

func (s *failingStore) CreateTicket(context.Context, *entities.Ticket) error {
	return s.err
}

// orderStore records whether the ticket's channel existed when the ticket was stored.
type orderStore struct {
	dataaccess.Store
	provider *fakeProvider

	mut        sync.Mutex
	violations int
}

func (s *orderStore) CreateTicket(ctx context.Context, ticket *entities.Ticket) error {
	if _, ok := s.provider.channel(ticket.ChannelID); !ok {
		s.mut.Lock()
		s.violations++
		s.mut.Unlock()
	}
	return s.Store.CreateTicket(ctx, ticket)
}

type testEnv struct {
	engine   *Engine
	store    *dataaccess.MemoryStore
	provider *fakeProvider
	clock    *fakeClock
}

const (
	testGuildID    = "G1"
	testCategoryID = "C1"
	testLogsID     = "L1"
	testPanelID    = "P1"
)

// newTestEnv builds an engine over a configured guild G1 with category C1 and logs channel L1.
func newTestEnv(t *testing.T, opts ...func(*testEnv) dataaccess.Store) *testEnv {
	t.Helper()

	l, err := logging.CommonLogger(logging.NewConfig(`tests`))
	require.NoError(t, err, "Failed to create logger")

	env := &testEnv{
		store:    dataaccess.NewMemoryStore(l),
		provider: newFakeProvider(),
		clock:    newFakeClock(),
	}

	require.NoError(t, env.store.CreateGuild(context.Background(), &entities.Guild{
		ID:              testGuildID,
		Name:            "Guild",
		TicketChannelID: testPanelID,
		LogsChannelID:   testLogsID,
		CategoryID:      testCategoryID,
		Enabled:         true,
	}))
	env.provider.addChannel(&Channel{ID: testCategoryID, GuildID: testGuildID, Kind: ChannelKindCategory})
	env.provider.addChannel(&Channel{ID: testLogsID, GuildID: testGuildID, Kind: ChannelKindText})
	env.provider.addChannel(&Channel{ID: testPanelID, GuildID: testGuildID, Kind: ChannelKindText})
	env.provider.roles[testGuildID] = []Role{
		{ID: "R0", Name: "Members"},
		{ID: "R1", Name: "Moderators"},
		{ID: "R2", Name: "Admins"},
	}

	var store dataaccess.Store = env.store
	for _, opt := range opts {
		store = opt(env)
	}

	env.engine = NewEngine(l, store, env.provider, Config{
		DeleteDelay:     DefaultDeleteDelay,
		ProviderTimeout: time.Second,
	}, WithClock(env.clock), WithIDGenerator(sequenceIDs()))
	return env
}

func user(id string) Actor {
	return Actor{ID: id, Name: id + "#0001"}
}

func (env *testEnv) create(t *testing.T, userID string) *entities.Ticket {
	t.Helper()
	ticket, err := env.engine.CreateTicket(context.Background(), CreateRequest{
		GuildID: testGuildID,
		User:    user(userID),
		Type:    entities.TicketTypeGeneralHelp,
		Reason:  "need assistance",
	})
	require.NoError(t, err)
	return ticket
}
