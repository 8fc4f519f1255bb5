// Package docstore persists enriched records to MongoDB.
//
// Records are written exactly once per ingestion request and are never
// updated or deleted by this system. Every operation is scoped by tenant.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/harvestd/internal/logging"
	"github.com/fyrsmithlabs/harvestd/internal/tenant"
)

// ErrInvalidConfig indicates invalid configuration.
var ErrInvalidConfig = errors.New("invalid configuration")

// EnrichedRecord is the durable unit persisted for one ingestion request.
type EnrichedRecord struct {
	ID primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`

	// TenantID scopes the record; data from one tenant is never visible to
	// another.
	TenantID string `bson:"tenant_id" json:"tenant_id"`

	SourceURL string              `bson:"source_url" json:"source_url"`
	RawText   string              `bson:"raw_text" json:"raw_text"`
	Headings  map[string][]string `bson:"headings" json:"headings"`

	// ModelSummary maps heading text to its summary. Nil when model
	// invocation failed; the record is persisted regardless.
	ModelSummary map[string]string `bson:"model_summary,omitempty" json:"model_summary,omitempty"`

	// CreatedAt is set at creation and immutable thereafter.
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// Store is the document-store interface the pipeline depends on.
type Store interface {
	// Insert persists a record and returns its assigned identifier.
	Insert(ctx context.Context, record *EnrichedRecord) (string, error)

	// FindByURL returns all records stored for url under the given tenant.
	FindByURL(ctx context.Context, id tenant.ID, url string) ([]EnrichedRecord, error)
}

// Config holds MongoDB connection configuration.
type Config struct {
	// URI is the MongoDB connection string.
	URI string

	// Database is the database name.
	Database string

	// Collection is the collection name. Default: "web_content".
	Collection string

	// ConnectTimeout bounds the initial connection. Default: 10s.
	ConnectTimeout time.Duration
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.URI == "" {
		return fmt.Errorf("%w: URI required", ErrInvalidConfig)
	}
	if c.Database == "" {
		return fmt.Errorf("%w: database required", ErrInvalidConfig)
	}
	return nil
}

// Client wraps a MongoDB connection with an explicit open/close lifecycle.
// It is constructed once at startup and injected into the pipeline; there is
// no process-wide client handle.
type Client struct {
	client *mongo.Client
	coll   *mongo.Collection
	logger *logging.Logger
}

// Open connects to MongoDB and verifies the connection with a ping.
func Open(ctx context.Context, cfg Config, logger *logging.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if cfg.Collection == "" {
		cfg.Collection = "web_content"
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connecting to document store: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging document store: %w", err)
	}

	return &Client{
		client: client,
		coll:   client.Database(cfg.Database).Collection(cfg.Collection),
		logger: logger,
	}, nil
}

// Close releases the MongoDB connection.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// Insert persists a record. CreatedAt is set here if the caller left it zero.
func (c *Client) Insert(ctx context.Context, record *EnrichedRecord) (string, error) {
	if record.TenantID == "" {
		return "", tenant.ErrMissing
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	res, err := c.coll.InsertOne(ctx, record)
	if err != nil {
		return "", fmt.Errorf("inserting record for %s: %w", record.SourceURL, err)
	}

	id, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("unexpected inserted id type %T", res.InsertedID)
	}
	record.ID = id

	c.logger.Debug(ctx, "stored enriched record",
		zap.String("record_id", id.Hex()),
		zap.String("source_url", record.SourceURL),
	)
	return id.Hex(), nil
}

// FindByURL returns all records stored for url under the given tenant.
func (c *Client) FindByURL(ctx context.Context, id tenant.ID, url string) ([]EnrichedRecord, error) {
	filter := bson.M{"tenant_id": id.String(), "source_url": url}

	cursor, err := c.coll.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("finding records for %s: %w", url, err)
	}
	defer cursor.Close(ctx)

	var records []EnrichedRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("decoding records for %s: %w", url, err)
	}
	return records, nil
}

// Ensure Client implements Store.
var _ Store = (*Client)(nil)
