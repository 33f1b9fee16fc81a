package dataaccess

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Jacobbrewer1/kennel/pkg/entities"
	"github.com/Jacobbrewer1/kennel/pkg/logging"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const guildDalName = "guild_dal"

// GuildDal stores the per guild ticketing configuration.
type GuildDal interface {
	// CreateGuild stores a new guild. It returns ErrDuplicate if the guild already exists.
	CreateGuild(ctx context.Context, guild *entities.Guild) error

	// SaveGuild creates or replaces a guild.
	SaveGuild(ctx context.Context, guild *entities.Guild) error

	// GetGuildByID gets a guild by ID.
	GetGuildByID(ctx context.Context, id string) (*entities.Guild, error)

	// GetGuilds lists every guild.
	GetGuilds(ctx context.Context) ([]*entities.Guild, error)

	// UpdateGuild merges the patch into the stored guild and returns the result.
	UpdateGuild(ctx context.Context, id string, patch *entities.GuildPatch) (*entities.Guild, error)

	// DeleteGuild deletes a guild.
	DeleteGuild(ctx context.Context, id string) error
}

type guildDalImpl struct {
	// l is the logger.
	l *slog.Logger

	// collection is the guilds collection.
	collection *mongo.Collection
}

// NewGuildDal creates a MongoDB backed guild data access layer.
func NewGuildDal(ctx context.Context, l *slog.Logger, db *mongo.Database) (GuildDal, error) {
	if db == nil {
		return nil, errors.New("mongo database is nil")
	}

	g := &guildDalImpl{
		l:          l.With(slog.String(logging.KeyDal, guildDalName)),
		collection: db.Collection(guildsCollection),
	}

	if _, err := g.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return nil, fmt.Errorf("error creating guild index: %w", err)
	}

	return g, nil
}

func (g *guildDalImpl) CreateGuild(ctx context.Context, guild *entities.Guild) error {
	defer observe(backendMongo, guildDalName, "create_guild")()

	if _, err := g.collection.InsertOne(ctx, guild); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("error inserting guild: %w", err)
	}
	return nil
}

func (g *guildDalImpl) SaveGuild(ctx context.Context, guild *entities.Guild) error {
	defer observe(backendMongo, guildDalName, "save_guild")()

	opts := options.Replace().SetUpsert(true)
	if _, err := g.collection.ReplaceOne(ctx, bson.M{"id": guild.ID}, guild, opts); err != nil {
		return fmt.Errorf("error saving guild: %w", err)
	}
	return nil
}

// GetGuildByID gets a guild by ID.
func (g *guildDalImpl) GetGuildByID(ctx context.Context, id string) (*entities.Guild, error) {
	defer observe(backendMongo, guildDalName, "get_guild_by_id")()

	guild := new(entities.Guild)
	if err := g.collection.FindOne(ctx, bson.M{"id": id}).Decode(guild); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error getting guild: %w", err)
	}
	return guild, nil
}

func (g *guildDalImpl) GetGuilds(ctx context.Context) ([]*entities.Guild, error) {
	defer observe(backendMongo, guildDalName, "get_guilds")()

	cur, err := g.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("error finding guilds: %w", err)
	}

	guilds := make([]*entities.Guild, 0)
	if err := cur.All(ctx, &guilds); err != nil {
		return nil, fmt.Errorf("error decoding guilds: %w", err)
	}
	return guilds, nil
}

func (g *guildDalImpl) UpdateGuild(ctx context.Context, id string, patch *entities.GuildPatch) (*entities.Guild, error) {
	set := guildPatchDocument(patch)
	if len(set) == 0 {
		return g.GetGuildByID(ctx, id)
	}

	defer observe(backendMongo, guildDalName, "update_guild")()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	guild := new(entities.Guild)
	err := g.collection.FindOneAndUpdate(ctx, bson.M{"id": id}, bson.M{"$set": set}, opts).Decode(guild)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error updating guild: %w", err)
	}
	return guild, nil
}

func (g *guildDalImpl) DeleteGuild(ctx context.Context, id string) error {
	defer observe(backendMongo, guildDalName, "delete_guild")()

	res, err := g.collection.DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		return fmt.Errorf("error deleting guild: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// guildPatchDocument converts the set fields of a patch into a $set document.
func guildPatchDocument(p *entities.GuildPatch) bson.M {
	set := bson.M{}
	if p == nil {
		return set
	}
	if p.Name != nil {
		set["name"] = *p.Name
	}
	if p.TicketChannelID != nil {
		set["ticket_channel_id"] = *p.TicketChannelID
	}
	if p.LogsChannelID != nil {
		set["logs_channel_id"] = *p.LogsChannelID
	}
	if p.CategoryID != nil {
		set["category_id"] = *p.CategoryID
	}
	if p.TicketTypes != nil {
		set["ticket_types"] = *p.TicketTypes
	}
	if p.Enabled != nil {
		set["enabled"] = *p.Enabled
	}
	return set
}
