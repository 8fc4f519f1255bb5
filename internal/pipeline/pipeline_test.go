package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/fyrsmithlabs/harvestd/internal/docstore"
	"github.com/fyrsmithlabs/harvestd/internal/llm"
	"github.com/fyrsmithlabs/harvestd/internal/logging"
	"github.com/fyrsmithlabs/harvestd/internal/scrape"
	"github.com/fyrsmithlabs/harvestd/internal/tenant"
	"github.com/fyrsmithlabs/harvestd/internal/vectorstore"
)

type fakeFetcher struct {
	doc *scrape.Document
	err error
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (*scrape.Document, error) {
	return f.doc, f.err
}

type fakeEmbedder struct {
	vector []float32
	errOn  int // 1-based call index that fails; 0 means never
	calls  int
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.errOn > 0 && f.calls == f.errOn {
		return nil, errors.New("embedding backend unavailable")
	}
	return f.vector, nil
}

type fakeSummarizer struct {
	info       *llm.Information
	err        error
	lastSystem string
	lastUser   string
}

func (f *fakeSummarizer) Summarize(ctx context.Context, systemPrompt, userPrompt string) (*llm.Information, error) {
	f.lastSystem = systemPrompt
	f.lastUser = userPrompt
	return f.info, f.err
}

type fakeDocStore struct {
	records []docstore.EnrichedRecord
	err     error
}

func (f *fakeDocStore) Insert(ctx context.Context, record *docstore.EnrichedRecord) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	record.ID = primitive.NewObjectID()
	f.records = append(f.records, *record)
	return record.ID.Hex(), nil
}

func (f *fakeDocStore) FindByURL(ctx context.Context, id tenant.ID, url string) ([]docstore.EnrichedRecord, error) {
	var out []docstore.EnrichedRecord
	for _, r := range f.records {
		if r.TenantID == id.String() && r.SourceURL == url {
			out = append(out, r)
		}
	}
	return out, nil
}

// failingUpsertStore delegates to a MemoryStore but fails every write.
type failingUpsertStore struct {
	*vectorstore.MemoryStore
}

func (f *failingUpsertStore) Upsert(ctx context.Context, collection string, points []vectorstore.Point) error {
	return errors.New("qdrant unreachable")
}

func testDocument() *scrape.Document {
	return &scrape.Document{
		SourceURL: "https://example.com/article",
		FullText:  "Go is a statically typed language. It compiles fast.",
		Headings: map[string][]string{
			"h1": {"About Go"},
			"h2": {"Compilation"},
		},
	}
}

func newTestService(f *fakeFetcher, e *fakeEmbedder, m *fakeSummarizer, d *fakeDocStore, v vectorstore.Store) *Service {
	return NewService(f, e, m, d, v, Config{Collection: "web_content"}, logging.NewNop())
}

func TestIngestFetchFailure(t *testing.T) {
	fetcher := &fakeFetcher{
		doc: &scrape.Document{SourceURL: "https://down.example.com", FetchErr: "connection refused"},
		err: errors.New("connection refused"),
	}
	docs := &fakeDocStore{}
	vectors := vectorstore.NewMemoryStore()
	svc := newTestService(fetcher, &fakeEmbedder{vector: []float32{1}}, &fakeSummarizer{}, docs, vectors)

	result := svc.Ingest(context.Background(), "tenant-a", "https://down.example.com")

	assert.False(t, result.Success)
	assert.False(t, result.StorageSuccess)
	assert.Nil(t, result.Information)
	assert.Equal(t, "Web scraping failed: connection refused", result.Error)
	assert.Equal(t, StageFetch, result.FailedStage)

	// A fetch failure is terminal: neither store is touched.
	assert.Empty(t, docs.records)
	assert.Zero(t, vectors.Count("web_content"))
}

func TestIngestFetcherReturnsNoDocument(t *testing.T) {
	// A fetcher that returns (nil, nil) still yields a structured failure
	// instead of a crash.
	fetcher := &fakeFetcher{}
	docs := &fakeDocStore{}
	vectors := vectorstore.NewMemoryStore()
	svc := newTestService(fetcher, &fakeEmbedder{vector: []float32{1}}, &fakeSummarizer{}, docs, vectors)

	result := svc.Ingest(context.Background(), "tenant-a", "https://example.com")

	assert.False(t, result.Success)
	assert.False(t, result.StorageSuccess)
	assert.Equal(t, StageFetch, result.FailedStage)
	assert.Contains(t, result.Error, "Web scraping failed")
	assert.Empty(t, docs.records)
	assert.Zero(t, vectors.Count("web_content"))
}

func TestIngestFullSuccess(t *testing.T) {
	fetcher := &fakeFetcher{doc: testDocument()}
	summarizer := &fakeSummarizer{
		info: &llm.Information{Headings: map[string]string{
			"About Go":    "Go is statically typed.",
			"Compilation": "Compilation is fast.",
		}},
	}
	docs := &fakeDocStore{}
	vectors := vectorstore.NewMemoryStore()
	svc := newTestService(fetcher, &fakeEmbedder{vector: []float32{1, 0}}, summarizer, docs, vectors)

	result := svc.Ingest(context.Background(), "tenant-a", "https://example.com/article")

	assert.True(t, result.Success)
	assert.True(t, result.StorageSuccess)
	assert.Empty(t, result.Error)
	require.NotNil(t, result.Information)
	assert.Equal(t, "Go is statically typed.", result.Information.Headings["About Go"])

	require.Len(t, docs.records, 1)
	record := docs.records[0]
	assert.Equal(t, "tenant-a", record.TenantID)
	assert.Equal(t, "https://example.com/article", record.SourceURL)
	assert.Equal(t, summarizer.info.Headings, record.ModelSummary)
	assert.False(t, record.CreatedAt.IsZero())

	ctx := tenant.WithID(context.Background(), "tenant-a")
	points, err := vectors.Search(ctx, "web_content", []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, points, 1)

	payload := points[0].Payload
	assert.Equal(t, "https://example.com/article", payload[vectorstore.PayloadSourceURL])
	assert.Equal(t, "tenant-a", payload[vectorstore.PayloadTenantID])
	assert.NotEmpty(t, payload[vectorstore.PayloadSessionID])
	assert.NotEmpty(t, payload[vectorstore.PayloadTimestamp])

	content, ok := payload[vectorstore.PayloadContent].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, record.ID.Hex(), content[vectorstore.ContentRecordID])
	assert.NotEmpty(t, content[vectorstore.ContentInputText])
	assert.NotNil(t, content[vectorstore.ContentSummary])
}

func TestIngestModelFailurePersistsRawDocument(t *testing.T) {
	fetcher := &fakeFetcher{doc: testDocument()}
	summarizer := &fakeSummarizer{err: llm.ErrMalformedOutput}
	docs := &fakeDocStore{}
	vectors := vectorstore.NewMemoryStore()
	svc := newTestService(fetcher, &fakeEmbedder{vector: []float32{1, 0}}, summarizer, docs, vectors)

	result := svc.Ingest(context.Background(), "tenant-a", "https://example.com/article")

	assert.False(t, result.Success)
	assert.True(t, result.StorageSuccess)
	assert.Nil(t, result.Information)
	assert.Contains(t, result.Error, "information identification failed")
	assert.Equal(t, StageModel, result.FailedStage)

	// The raw document is still persisted, without a summary.
	require.Len(t, docs.records, 1)
	assert.Nil(t, docs.records[0].ModelSummary)
	assert.Equal(t, testDocument().FullText, docs.records[0].RawText)

	// The vector point is still written, embedded from the raw text.
	ctx := tenant.WithID(context.Background(), "tenant-a")
	points, err := vectors.Search(ctx, "web_content", []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, points, 1)
	content, ok := points[0].Payload[vectorstore.PayloadContent].(map[string]any)
	require.True(t, ok)
	assert.Nil(t, content[vectorstore.ContentSummary])
}

func TestIngestDocumentStoreFailureSkipsVectorWrite(t *testing.T) {
	fetcher := &fakeFetcher{doc: testDocument()}
	summarizer := &fakeSummarizer{info: &llm.Information{Headings: map[string]string{"About Go": "s"}}}
	docs := &fakeDocStore{err: errors.New("mongo down")}
	vectors := vectorstore.NewMemoryStore()
	svc := newTestService(fetcher, &fakeEmbedder{vector: []float32{1, 0}}, summarizer, docs, vectors)

	result := svc.Ingest(context.Background(), "tenant-a", "https://example.com/article")

	assert.False(t, result.Success)
	assert.False(t, result.StorageSuccess)
	assert.Contains(t, result.Error, "document store write failed")
	assert.Equal(t, StageDocumentStore, result.FailedStage)
	assert.Zero(t, vectors.Count("web_content"))
}

func TestIngestVectorStoreFailureKeepsRecord(t *testing.T) {
	fetcher := &fakeFetcher{doc: testDocument()}
	summarizer := &fakeSummarizer{info: &llm.Information{Headings: map[string]string{"About Go": "s"}}}
	docs := &fakeDocStore{}
	vectors := &failingUpsertStore{MemoryStore: vectorstore.NewMemoryStore()}
	svc := newTestService(fetcher, &fakeEmbedder{vector: []float32{1, 0}}, summarizer, docs, vectors)

	result := svc.Ingest(context.Background(), "tenant-a", "https://example.com/article")

	assert.False(t, result.Success)
	assert.False(t, result.StorageSuccess)
	require.NotNil(t, result.Information)
	assert.Contains(t, result.Error, "vector store write failed")
	assert.Equal(t, StageVectorStore, result.FailedStage)

	// The committed document-store record is never rolled back.
	require.Len(t, docs.records, 1)
}

func TestIngestEmbeddingFailureCountsAsStorageFailure(t *testing.T) {
	fetcher := &fakeFetcher{doc: testDocument()}
	summarizer := &fakeSummarizer{info: &llm.Information{Headings: map[string]string{"About Go": "s"}}}
	docs := &fakeDocStore{}
	vectors := vectorstore.NewMemoryStore()
	// First embed call serves context retrieval, second serves vectorization.
	embedder := &fakeEmbedder{vector: []float32{1, 0}, errOn: 2}
	svc := newTestService(fetcher, embedder, summarizer, docs, vectors)

	result := svc.Ingest(context.Background(), "tenant-a", "https://example.com/article")

	assert.False(t, result.Success)
	assert.False(t, result.StorageSuccess)
	assert.Equal(t, StageVectorStore, result.FailedStage)
	require.Len(t, docs.records, 1)
	assert.Zero(t, vectors.Count("web_content"))
}

func TestRetrieveContextFeedsSystemPrompt(t *testing.T) {
	vectors := vectorstore.NewMemoryStore()
	ctx := tenant.WithID(context.Background(), "tenant-a")

	// Seed a prior ingestion for the same tenant.
	require.NoError(t, vectors.Upsert(ctx, "web_content", []vectorstore.Point{{
		Vector: []float32{1, 0},
		Payload: map[string]any{
			vectorstore.PayloadSourceURL: "https://example.com/prior",
			vectorstore.PayloadContent: map[string]any{
				vectorstore.ContentSummary:       map[string]any{"Older Post": "An earlier take on Go."},
				vectorstore.ContentInputHeadings: map[string]any{"h1": []any{"Older Post"}},
				vectorstore.ContentRecordID:      "rec-1",
			},
		},
	}}))

	fetcher := &fakeFetcher{doc: testDocument()}
	summarizer := &fakeSummarizer{info: &llm.Information{Headings: map[string]string{"About Go": "s"}}}
	svc := newTestService(fetcher, &fakeEmbedder{vector: []float32{1, 0}}, summarizer, &fakeDocStore{}, vectors)

	result := svc.Ingest(context.Background(), "tenant-a", "https://example.com/article")
	require.True(t, result.Success)

	assert.Contains(t, summarizer.lastSystem, "### RELEVANT CONTEXT ###")
	assert.Contains(t, summarizer.lastSystem, "Older Post: An earlier take on Go.")
	assert.Contains(t, summarizer.lastSystem, "h1: Older Post")
	assert.True(t, strings.Contains(summarizer.lastSystem, "Document 1:"))
}

func TestSecondIngestionRetrievesFirstSummary(t *testing.T) {
	vectors := vectorstore.NewMemoryStore()
	docs := &fakeDocStore{}
	embedder := &fakeEmbedder{vector: []float32{1, 0}}

	// First ingestion: stores a summarized document.
	fetcher := &fakeFetcher{doc: testDocument()}
	first := &fakeSummarizer{info: &llm.Information{Headings: map[string]string{
		"About Go": "Go is statically typed.",
	}}}
	svc := newTestService(fetcher, embedder, first, docs, vectors)
	result := svc.Ingest(context.Background(), "tenant-a", "https://example.com/article")
	require.True(t, result.Success)

	// Second ingestion for the same tenant: the first document's stored
	// summary and headings come back as prompt context.
	fetcher = &fakeFetcher{doc: &scrape.Document{
		SourceURL: "https://example.com/followup",
		FullText:  "A follow-up post about Go.",
		Headings:  map[string][]string{"h1": {"More Go"}},
	}}
	second := &fakeSummarizer{info: &llm.Information{Headings: map[string]string{"More Go": "s"}}}
	svc = newTestService(fetcher, embedder, second, docs, vectors)
	result = svc.Ingest(context.Background(), "tenant-a", "https://example.com/followup")
	require.True(t, result.Success)

	assert.Contains(t, second.lastSystem, "### RELEVANT CONTEXT ###")
	assert.Contains(t, second.lastSystem, "About Go: Go is statically typed.")
	assert.Contains(t, second.lastSystem, "h1: About Go")
}

func TestRetrieveContextSkipsMalformedPayloads(t *testing.T) {
	vectors := vectorstore.NewMemoryStore()
	ctx := tenant.WithID(context.Background(), "tenant-a")

	// A stored point without the content sub-mapping is skipped, not fatal.
	require.NoError(t, vectors.Upsert(ctx, "web_content", []vectorstore.Point{{
		Vector:  []float32{1, 0},
		Payload: map[string]any{vectorstore.PayloadSourceURL: "https://example.com/broken"},
	}}))

	fetcher := &fakeFetcher{doc: testDocument()}
	summarizer := &fakeSummarizer{info: &llm.Information{Headings: map[string]string{"About Go": "s"}}}
	svc := newTestService(fetcher, &fakeEmbedder{vector: []float32{1, 0}}, summarizer, &fakeDocStore{}, vectors)

	result := svc.Ingest(context.Background(), "tenant-a", "https://example.com/article")
	require.True(t, result.Success)
	assert.NotContains(t, summarizer.lastSystem, "### RELEVANT CONTEXT ###")
}

func TestRetrieveContextDegradesOnEmbeddingFailure(t *testing.T) {
	fetcher := &fakeFetcher{doc: testDocument()}
	summarizer := &fakeSummarizer{info: &llm.Information{Headings: map[string]string{"About Go": "s"}}}
	vectors := vectorstore.NewMemoryStore()
	// Context-retrieval embedding fails; vectorization embedding succeeds.
	embedder := &fakeEmbedder{vector: []float32{1, 0}, errOn: 1}
	svc := newTestService(fetcher, embedder, summarizer, &fakeDocStore{}, vectors)

	result := svc.Ingest(context.Background(), "tenant-a", "https://example.com/article")

	// Retrieval failure degrades to empty context, not a failed request.
	assert.True(t, result.Success)
	assert.NotContains(t, summarizer.lastSystem, "### RELEVANT CONTEXT ###")
}
