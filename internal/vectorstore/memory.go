package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/harvestd/internal/tenant"
)

// MemoryStore is a brute-force in-memory Store using cosine similarity.
// It enforces the same tenant stamping and filtering contract as QdrantStore,
// and normalizes payloads through the same codec so searches return the wire
// shape (map[string]any, []any) QdrantStore returns. Backs tests and local
// development.
type MemoryStore struct {
	mu     sync.RWMutex
	points map[string][]Point // collection -> points
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{points: make(map[string][]Point)}
}

// Upsert stores points, stamping the context tenant's ID into every payload.
func (s *MemoryStore) Upsert(ctx context.Context, collection string, points []Point) error {
	if err := ValidateCollectionName(collection); err != nil {
		return err
	}
	if len(points) == 0 {
		return ErrEmptyPoints
	}

	id, err := tenant.FromContext(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range points {
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		payload := make(map[string]any, len(p.Payload)+1)
		for k, v := range p.Payload {
			payload[k] = v
		}
		payload[PayloadTenantID] = id.String()
		// Round-trip through the Qdrant codec so readers see the same
		// payload shape both store implementations return.
		p.Payload = fromQdrantPayload(toQdrantPayload(payload))
		p.Vector = append([]float32(nil), p.Vector...)
		s.points[collection] = append(s.points[collection], p)
	}
	return nil
}

// Search ranks the context tenant's points by cosine similarity to vector.
func (s *MemoryStore) Search(ctx context.Context, collection string, vector []float32, limit int) ([]ScoredPoint, error) {
	if err := ValidateCollectionName(collection); err != nil {
		return nil, err
	}

	id, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []ScoredPoint
	for _, p := range s.points[collection] {
		if p.Payload[PayloadTenantID] != id.String() {
			continue
		}
		results = append(results, ScoredPoint{
			ID:      p.ID,
			Score:   cosine(vector, p.Vector),
			Payload: p.Payload,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// EnsureCollection is a no-op beyond name validation.
func (s *MemoryStore) EnsureCollection(ctx context.Context, collection string, vectorSize uint64) error {
	return ValidateCollectionName(collection)
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

// Count returns the number of stored points in a collection. For tests.
func (s *MemoryStore) Count(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.points[collection])
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
