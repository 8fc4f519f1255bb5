package vectorstore

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/fyrsmithlabs/harvestd/internal/tenant"
)

// Tracer for OpenTelemetry instrumentation.
var tracer = otel.Tracer("harvestd.vectorstore.qdrant")

// collectionNamePattern validates collection names.
// Pattern: lowercase letters, numbers, underscores, 1-64 characters.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// QdrantConfig holds configuration for the Qdrant gRPC client.
type QdrantConfig struct {
	// Host is the Qdrant server hostname or IP address.
	Host string

	// Port is the Qdrant gRPC port (6334 by convention, NOT the HTTP port).
	Port int

	// APIKey authenticates against Qdrant Cloud. Optional for local instances.
	APIKey string

	// UseTLS enables TLS encryption for the gRPC connection.
	UseTLS bool

	// Distance is the similarity metric. Default: Cosine.
	Distance qdrant.Distance
}

// Validate validates the configuration.
func (c QdrantConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	return nil
}

// ValidateCollectionName validates a collection name against security rules.
// Rejects uppercase, special chars, path traversal, spaces.
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidCollectionName)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: collection name must match ^[a-z0-9_]{1,64}$, got %q", ErrInvalidCollectionName, name)
	}
	return nil
}

// QdrantStore is a Store implementation using Qdrant's native gRPC client.
//
// There is no retry layer: every ingestion request performs each external
// call exactly once and reports failures to the coordinator.
type QdrantStore struct {
	client *qdrant.Client
	config QdrantConfig
}

// NewQdrantStore creates a QdrantStore and verifies connectivity with a
// health check.
func NewQdrantStore(config QdrantConfig) (*QdrantStore, error) {
	if config.Distance == 0 {
		config.Distance = qdrant.Distance_Cosine
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		APIKey: config.APIKey,
		UseTLS: config.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	store := &QdrantStore{client: client, config: config}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.HealthCheck(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: health check: %v", ErrConnectionFailed, err)
	}

	return store, nil
}

// Close closes the Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Upsert writes points into a collection. The context tenant's ID is stamped
// into every payload before the write, overwriting whatever the caller
// supplied; isolation is enforced at the storage boundary, not trusted from
// upstream.
func (s *QdrantStore) Upsert(ctx context.Context, collection string, points []Point) error {
	ctx, span := tracer.Start(ctx, "QdrantStore.Upsert")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("point_count", len(points)),
	)

	if err := ValidateCollectionName(collection); err != nil {
		return err
	}
	if len(points) == 0 {
		return ErrEmptyPoints
	}

	id, err := tenant.FromContext(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	qdrantPoints := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		pointID := p.ID
		if _, err := uuid.Parse(pointID); err != nil {
			pointID = uuid.New().String()
		}

		payload := make(map[string]any, len(p.Payload)+1)
		for k, v := range p.Payload {
			payload[k] = v
		}
		payload[PayloadTenantID] = id.String()

		qdrantPoints[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: toQdrantPayload(payload),
		}
	}

	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         qdrantPoints,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upserting %d points to collection %s: %w", len(points), collection, err)
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// Search returns up to limit points ranked by similarity to vector. Results
// are filtered to the context tenant before ranking; missing tenant context
// is an error.
func (s *QdrantStore) Search(ctx context.Context, collection string, vector []float32, limit int) ([]ScoredPoint, error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.Search")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("limit", limit),
	)

	if err := ValidateCollectionName(collection); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	id, err := tenant.FromContext(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{
			{
				ConditionOneOf: &qdrant.Condition_Field{
					Field: &qdrant.FieldCondition{
						Key: PayloadTenantID,
						Match: &qdrant.Match{
							MatchValue: &qdrant.Match_Keyword{Keyword: id.String()},
						},
					},
				},
			},
		},
	}

	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		Filter:         filter,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("searching collection %s: %w", collection, err)
	}

	scored := make([]ScoredPoint, len(results))
	for i, point := range results {
		sp := ScoredPoint{Score: point.Score}
		if pid := point.GetId(); pid != nil {
			sp.ID = pid.GetUuid()
		}
		if point.Payload != nil {
			sp.Payload = fromQdrantPayload(point.Payload)
		}
		scored[i] = sp
	}

	span.SetAttributes(attribute.Int("results_count", len(scored)))
	span.SetStatus(codes.Ok, "success")
	return scored, nil
}

// EnsureCollection creates the collection if it does not exist yet.
func (s *QdrantStore) EnsureCollection(ctx context.Context, collection string, vectorSize uint64) error {
	ctx, span := tracer.Start(ctx, "QdrantStore.EnsureCollection")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("vector_size", int(vectorSize)),
	)

	if err := ValidateCollectionName(collection); err != nil {
		return err
	}

	exists := true
	if _, err := s.client.GetCollectionInfo(ctx, collection); err != nil {
		st, ok := status.FromError(err)
		if !ok || st.Code() != grpccodes.NotFound {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("checking collection %s: %w", collection, err)
		}
		exists = false
	}
	if exists {
		span.SetStatus(codes.Ok, "exists")
		return nil
	}

	err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     vectorSize,
			Distance: s.config.Distance,
		}),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("creating collection %s: %w", collection, err)
	}

	span.SetStatus(codes.Ok, "created")
	return nil
}

// Ensure QdrantStore implements Store.
var _ Store = (*QdrantStore)(nil)
