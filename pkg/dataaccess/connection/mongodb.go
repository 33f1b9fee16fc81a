package connection

import (
	"context"
	"errors"
	"fmt"
	"time"

	dbMonitoring "github.com/Jacobbrewer1/kennel/pkg/dataaccess/monitoring"
	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const connectTimeout = 10 * time.Second

// MongoDB is the connection settings for a MongoDB deployment.
type MongoDB struct {
	// URI is the connection string, e.g. mongodb://localhost:27017.
	URI string

	// Database is the name of the database the bot stores its data in.
	Database string

	client *mongo.Client
}

// Connect dials the deployment and verifies it with a ping.
func (m *MongoDB) Connect(ctx context.Context) (*mongo.Database, error) {
	if m.URI == "" {
		return nil, errors.New("mongo uri is empty")
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	serverAPI := options.ServerAPI(options.ServerAPIVersion1)
	opts := options.Client().ApplyURI(m.URI).SetServerAPIOptions(serverAPI)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("error connecting to mongo: %w", err)
	}

	m.client = client
	if err := m.Ping(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		m.client = nil
		return nil, err
	}

	return client.Database(m.Database), nil
}

// Ping checks that the deployment is reachable.
func (m *MongoDB) Ping(ctx context.Context) error {
	if m.client == nil {
		return errors.New("mongo is not connected")
	}

	t := prometheus.NewTimer(dbMonitoring.StoreLatency.WithLabelValues("mongo", "health_check", "ping"))
	defer t.ObserveDuration()
	dbMonitoring.StoreTotalRequests.WithLabelValues("mongo", "health_check", "ping").Inc()

	if err := m.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("error pinging mongo: %w", err)
	}
	return nil
}

// Disconnect closes the connection.
func (m *MongoDB) Disconnect(ctx context.Context) error {
	if m.client == nil {
		return nil
	}
	err := m.client.Disconnect(ctx)
	m.client = nil
	return err
}
