package dataaccess

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Jacobbrewer1/kennel/pkg/entities"
	"github.com/Jacobbrewer1/kennel/pkg/logging"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const ticketDalName = "ticket_dal"

// TicketDal stores tickets.
type TicketDal interface {
	// CreateTicket stores a new ticket, assigning its ID and creation time.
	// It returns ErrDuplicate if the ticket ID is already taken.
	CreateTicket(ctx context.Context, ticket *entities.Ticket) error

	// GetTicket gets a ticket by its store ID.
	GetTicket(ctx context.Context, id int64) (*entities.Ticket, error)

	// GetTicketByTicketID gets a ticket by its public ticket ID.
	GetTicketByTicketID(ctx context.Context, ticketID string) (*entities.Ticket, error)

	// GetTicketByChannelID gets the most recent ticket backed by the channel.
	GetTicketByChannelID(ctx context.Context, channelID string) (*entities.Ticket, error)

	// GetTicketsByGuildID lists the tickets of a guild.
	GetTicketsByGuildID(ctx context.Context, guildID string) ([]*entities.Ticket, error)

	// GetTicketsByUserID lists the tickets opened by a user.
	GetTicketsByUserID(ctx context.Context, userID string) ([]*entities.Ticket, error)

	// CloseTicket marks an open ticket closed. It returns ErrTicketClosed if the ticket is already closed.
	CloseTicket(ctx context.Context, id int64, closedBy string, closedAt time.Time) (*entities.Ticket, error)

	// DeleteTicket deletes a ticket. Its ID is never reused.
	DeleteTicket(ctx context.Context, id int64) error

	// GetTicketStats counts a guild's tickets by status and type.
	GetTicketStats(ctx context.Context, guildID string) (*entities.TicketStats, error)
}

type ticketDal struct {
	// l is the logger.
	l *slog.Logger

	// tickets is the tickets collection.
	tickets *mongo.Collection

	// counters holds the ticket ID sequence.
	counters *mongo.Collection
}

// NewTicketDal creates a MongoDB backed ticket data access layer.
func NewTicketDal(ctx context.Context, l *slog.Logger, db *mongo.Database) (TicketDal, error) {
	if db == nil {
		return nil, errors.New("mongo database is nil")
	}

	d := &ticketDal{
		l:        l.With(slog.String(logging.KeyDal, ticketDalName)),
		tickets:  db.Collection(ticketsCollection),
		counters: db.Collection(countersCollection),
	}

	if _, err := d.tickets.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "ticket_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "channel_id", Value: 1}}},
		{Keys: bson.D{{Key: "guild_id", Value: 1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "status", Value: 1}}},
	}); err != nil {
		return nil, fmt.Errorf("error creating ticket indexes: %w", err)
	}

	return d, nil
}

// nextID increments and returns the ticket sequence.
func (d *ticketDal) nextID(ctx context.Context) (int64, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := d.counters.FindOneAndUpdate(ctx, bson.M{"_id": ticketsCollection}, bson.M{"$inc": bson.M{"seq": 1}}, opts).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("error incrementing ticket sequence: %w", err)
	}
	return counter.Seq, nil
}

func (d *ticketDal) CreateTicket(ctx context.Context, ticket *entities.Ticket) error {
	defer observe(backendMongo, ticketDalName, "create_ticket")()

	id, err := d.nextID(ctx)
	if err != nil {
		return err
	}

	t := ticket.Clone()
	t.ID = id
	if t.Status == "" {
		t.Status = entities.TicketStatusOpen
	}
	if t.CreatedAt.IsZero() {
		// Mongo stores milliseconds.
		t.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}

	if _, err := d.tickets.InsertOne(ctx, t); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("error inserting ticket: %w", err)
	}

	*ticket = *t
	return nil
}

func (d *ticketDal) findOne(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (*entities.Ticket, error) {
	ticket := new(entities.Ticket)
	if err := d.tickets.FindOne(ctx, filter, opts...).Decode(ticket); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error getting ticket: %w", err)
	}
	return ticket, nil
}

func (d *ticketDal) find(ctx context.Context, filter bson.M) ([]*entities.Ticket, error) {
	cur, err := d.tickets.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("error finding tickets: %w", err)
	}

	tickets := make([]*entities.Ticket, 0)
	if err := cur.All(ctx, &tickets); err != nil {
		return nil, fmt.Errorf("error decoding tickets: %w", err)
	}
	return tickets, nil
}

func (d *ticketDal) GetTicket(ctx context.Context, id int64) (*entities.Ticket, error) {
	defer observe(backendMongo, ticketDalName, "get_ticket")()
	return d.findOne(ctx, bson.M{"id": id})
}

func (d *ticketDal) GetTicketByTicketID(ctx context.Context, ticketID string) (*entities.Ticket, error) {
	defer observe(backendMongo, ticketDalName, "get_ticket_by_ticket_id")()
	return d.findOne(ctx, bson.M{"ticket_id": ticketID})
}

func (d *ticketDal) GetTicketByChannelID(ctx context.Context, channelID string) (*entities.Ticket, error) {
	defer observe(backendMongo, ticketDalName, "get_ticket_by_channel_id")()

	// Prefer the latest ticket should a channel ID ever back more than one record.
	opts := options.FindOne().SetSort(bson.D{{Key: "id", Value: -1}})
	return d.findOne(ctx, bson.M{"channel_id": channelID}, opts)
}

func (d *ticketDal) GetTicketsByGuildID(ctx context.Context, guildID string) ([]*entities.Ticket, error) {
	defer observe(backendMongo, ticketDalName, "get_tickets_by_guild_id")()
	return d.find(ctx, bson.M{"guild_id": guildID})
}

func (d *ticketDal) GetTicketsByUserID(ctx context.Context, userID string) ([]*entities.Ticket, error) {
	defer observe(backendMongo, ticketDalName, "get_tickets_by_user_id")()
	return d.find(ctx, bson.M{"user_id": userID})
}

func (d *ticketDal) CloseTicket(ctx context.Context, id int64, closedBy string, closedAt time.Time) (*entities.Ticket, error) {
	defer observe(backendMongo, ticketDalName, "close_ticket")()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.M{"$set": bson.M{
		"status":    entities.TicketStatusClosed,
		"closed_at": closedAt.UTC().Truncate(time.Millisecond),
		"closed_by": closedBy,
	}}

	ticket := new(entities.Ticket)
	err := d.tickets.FindOneAndUpdate(ctx, bson.M{"id": id, "status": entities.TicketStatusOpen}, update, opts).Decode(ticket)
	if err == nil {
		return ticket, nil
	} else if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("error closing ticket: %w", err)
	}

	// Nothing matched, either the ticket does not exist or it is already closed.
	if _, err := d.findOne(ctx, bson.M{"id": id}); err != nil {
		return nil, err
	}
	return nil, ErrTicketClosed
}

func (d *ticketDal) DeleteTicket(ctx context.Context, id int64) error {
	defer observe(backendMongo, ticketDalName, "delete_ticket")()

	res, err := d.tickets.DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		return fmt.Errorf("error deleting ticket: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (d *ticketDal) GetTicketStats(ctx context.Context, guildID string) (*entities.TicketStats, error) {
	defer observe(backendMongo, ticketDalName, "get_ticket_stats")()

	tickets, err := d.find(ctx, bson.M{"guild_id": guildID})
	if err != nil {
		return nil, err
	}
	return entities.TallyTickets(tickets), nil
}
