package dataaccess

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Jacobbrewer1/kennel/pkg/dataaccess/monitoring"
	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when a record would violate a uniqueness constraint.
	ErrDuplicate = errors.New("duplicate record")

	// ErrTicketClosed is returned when closing a ticket that is already closed.
	ErrTicketClosed = errors.New("ticket already closed")
)

const (
	// DefaultMongoDatabase is the database used when none is configured.
	DefaultMongoDatabase = "kennel"

	guildsCollection   = "guilds"
	ticketsCollection  = "tickets"
	countersCollection = "counters"
)

const (
	backendMemory = "memory"
	backendMongo  = "mongo"
)

// observe records a store request and returns a func that records its latency.
func observe(backend, dal, query string) func() {
	monitoring.StoreTotalRequests.WithLabelValues(backend, dal, query).Inc()
	t := prometheus.NewTimer(monitoring.StoreLatency.WithLabelValues(backend, dal, query))
	return func() {
		t.ObserveDuration()
	}
}

// Store is the full set of data access the bot needs.
type Store interface {
	GuildDal
	TicketDal
}

type mongoStore struct {
	GuildDal
	TicketDal
}

// NewMongoStore creates a Store backed by the given database.
func NewMongoStore(ctx context.Context, l *slog.Logger, db *mongo.Database) (Store, error) {
	guilds, err := NewGuildDal(ctx, l, db)
	if err != nil {
		return nil, err
	}
	tickets, err := NewTicketDal(ctx, l, db)
	if err != nil {
		return nil, err
	}
	return &mongoStore{
		GuildDal:  guilds,
		TicketDal: tickets,
	}, nil
}
