// Package pipeline implements the retrieval-augmented enrichment loop: prior
// knowledge is retrieved from the vector store, combined with freshly scraped
// content into a prompt, sent to the language model, and the results are
// persisted to both the document store and the vector store.
//
// One ingestion request runs one sequential pipeline; there is no retry,
// no batching, and no cross-store transaction. The document-store write
// happens first and is never rolled back.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/harvestd/internal/docstore"
	"github.com/fyrsmithlabs/harvestd/internal/llm"
	"github.com/fyrsmithlabs/harvestd/internal/logging"
	"github.com/fyrsmithlabs/harvestd/internal/prompt"
	"github.com/fyrsmithlabs/harvestd/internal/scrape"
	"github.com/fyrsmithlabs/harvestd/internal/tenant"
	"github.com/fyrsmithlabs/harvestd/internal/vectorstore"
)

// Stage identifies where a failed request gave up.
type Stage string

// Pipeline stages, in execution order.
const (
	StageFetch         Stage = "fetch"
	StageModel         Stage = "model"
	StageDocumentStore Stage = "document_store"
	StageVectorStore   Stage = "vector_store"
)

// Result is the uniform outcome of one ingestion request. Callers always
// receive this shape; the pipeline never surfaces an unstructured crash.
type Result struct {
	// Success requires: fetch succeeded, the model produced parseable
	// output, and both stores were written.
	Success bool `json:"success"`

	// Information is the parsed model output, or nil when model invocation
	// failed. Partial success (document stored, no summary) is represented,
	// not hidden.
	Information *llm.Information `json:"information"`

	// StorageSuccess reports whether the storage writes landed.
	StorageSuccess bool `json:"storage_success"`

	// Error describes what stage failed, empty on full success.
	Error string `json:"error,omitempty"`

	// FailedStage drives HTTP status mapping. Not serialized.
	FailedStage Stage `json:"-"`
}

// Fetcher retrieves and parses a single web page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*scrape.Document, error)
}

// Embedder turns text into a fixed-length vector.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Summarizer invokes the language model with an assembled prompt.
type Summarizer interface {
	Summarize(ctx context.Context, systemPrompt, userPrompt string) (*llm.Information, error)
}

// Config holds pipeline tuning parameters.
type Config struct {
	// Collection is the vector store collection name.
	Collection string

	// TextLimit is the character budget for document text. Default: 4000.
	TextLimit int

	// HeadingLimit is the total heading budget. Default: 10.
	HeadingLimit int

	// ContextK is how many prior documents to retrieve. Default: 3.
	ContextK int
}

func (c *Config) applyDefaults() {
	if c.Collection == "" {
		c.Collection = "web_content"
	}
	if c.TextLimit <= 0 {
		c.TextLimit = prompt.DefaultTextLimit
	}
	if c.HeadingLimit <= 0 {
		c.HeadingLimit = prompt.DefaultHeadingLimit
	}
	if c.ContextK <= 0 {
		c.ContextK = 3
	}
}

// Service sequences one ingestion request end to end. Concurrent requests
// share only the underlying store clients.
type Service struct {
	fetcher  Fetcher
	embedder Embedder
	model    Summarizer
	docs     docstore.Store
	vectors  vectorstore.Store
	logger   *logging.Logger
	cfg      Config
}

// NewService creates a pipeline service with explicitly injected
// collaborators.
func NewService(fetcher Fetcher, embedder Embedder, model Summarizer, docs docstore.Store, vectors vectorstore.Store, cfg Config, logger *logging.Logger) *Service {
	cfg.applyDefaults()
	return &Service{
		fetcher:  fetcher,
		embedder: embedder,
		model:    model,
		docs:     docs,
		vectors:  vectors,
		logger:   logger,
		cfg:      cfg,
	}
}

// Ingest fetches url and enriches the result for the given tenant.
func (s *Service) Ingest(ctx context.Context, id tenant.ID, url string) *Result {
	ctx = tenant.WithID(ctx, id)

	doc, err := s.fetcher.Fetch(ctx, url)
	if err != nil && (doc == nil || doc.FetchErr == "") {
		doc = &scrape.Document{SourceURL: url, FetchErr: err.Error()}
	}
	return s.Enrich(ctx, id, doc)
}

// Enrich runs the enrichment state machine on an already-fetched document:
// retrieve context, build prompt, invoke model, persist document, vectorize.
//
// A fetch error is terminal and touches no store. Context retrieval is
// best-effort. Model failure still persists the raw document and a raw-text
// vector point. A document-store write failure aborts before the vector
// write; a vector-store write failure is reported but never rolls back the
// committed document.
func (s *Service) Enrich(ctx context.Context, id tenant.ID, doc *scrape.Document) *Result {
	ctx = tenant.WithID(ctx, id)

	// A misbehaving fetcher must still yield a structured result.
	if doc == nil {
		doc = &scrape.Document{FetchErr: "fetcher returned no document"}
	}

	if doc.FetchErr != "" {
		s.logger.Warn(ctx, "skipping enrichment, fetch failed",
			zap.String("url", doc.SourceURL),
			zap.String("fetch_error", doc.FetchErr),
		)
		return &Result{
			Success:        false,
			StorageSuccess: false,
			Error:          fmt.Sprintf("Web scraping failed: %s", doc.FetchErr),
			FailedStage:    StageFetch,
		}
	}

	collected := prompt.CollectHeadings(doc.Headings, s.cfg.HeadingLimit)
	truncated := prompt.Truncate(doc.FullText, s.cfg.TextLimit)

	outputContext, inputContext := s.retrieveContext(ctx, doc)

	systemPrompt, userPrompt := prompt.Build(collected, truncated, outputContext, inputContext)

	info, modelErr := s.model.Summarize(ctx, systemPrompt, userPrompt)
	if modelErr != nil {
		s.logger.Warn(ctx, "model invocation failed, persisting raw document",
			zap.String("url", doc.SourceURL),
			zap.Error(modelErr),
		)
	}

	record := &docstore.EnrichedRecord{
		TenantID:  id.String(),
		SourceURL: doc.SourceURL,
		RawText:   doc.FullText,
		Headings:  doc.Headings,
		CreatedAt: time.Now().UTC(),
	}
	if info != nil {
		record.ModelSummary = info.Headings
	}

	recordID, err := s.docs.Insert(ctx, record)
	if err != nil {
		s.logger.Error(ctx, "document store write failed",
			zap.String("url", doc.SourceURL),
			zap.Error(err),
		)
		return &Result{
			Success:        false,
			Information:    info,
			StorageSuccess: false,
			Error:          fmt.Sprintf("document store write failed: %v", err),
			FailedStage:    StageDocumentStore,
		}
	}

	vecErr := s.vectorize(ctx, doc, collected, truncated, info, recordID)
	if vecErr != nil {
		s.logger.Error(ctx, "vector store write failed",
			zap.String("url", doc.SourceURL),
			zap.String("record_id", recordID),
			zap.Error(vecErr),
		)
	}
	storageSuccess := vecErr == nil

	result := &Result{
		Success:        modelErr == nil && storageSuccess,
		Information:    info,
		StorageSuccess: storageSuccess,
	}
	switch {
	case modelErr != nil:
		result.Error = fmt.Sprintf("information identification failed: %v", modelErr)
		result.FailedStage = StageModel
	case vecErr != nil:
		result.Error = fmt.Sprintf("vector store write failed: %v", vecErr)
		result.FailedStage = StageVectorStore
	}

	s.logger.Info(ctx, "ingestion finished",
		zap.String("url", doc.SourceURL),
		zap.Bool("success", result.Success),
		zap.Bool("storage_success", result.StorageSuccess),
	)
	return result
}
