package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/harvestd/internal/llm"
	"github.com/fyrsmithlabs/harvestd/internal/scrape"
	"github.com/fyrsmithlabs/harvestd/internal/vectorstore"
)

// vectorize embeds a representative text for doc and upserts one point into
// the vector store, linking back to the committed document-store record.
//
// When the model produced a summary, the summary is embedded; otherwise the
// truncated raw text stands in, so every ingested page is searchable as
// future context even when summarization failed.
func (s *Service) vectorize(ctx context.Context, doc *scrape.Document, collected map[string][]string, truncated string, info *llm.Information, recordID string) error {
	embedText := truncated
	if info != nil && len(info.Headings) > 0 {
		embedText = summaryText(info)
	}
	if strings.TrimSpace(embedText) == "" {
		embedText = doc.SourceURL
	}

	vector, err := s.embedder.EmbedQuery(ctx, embedText)
	if err != nil {
		return fmt.Errorf("embedding document: %w", err)
	}

	point := buildPoint(doc, collected, truncated, info, recordID, uuid.New().String())
	point.Vector = vector
	if err := s.vectors.Upsert(ctx, s.cfg.Collection, []vectorstore.Point{point}); err != nil {
		return err
	}
	return nil
}

// buildPoint assembles the vector point payload for one ingested document.
// Vector assignment is the caller's job. The tenant_id field is stamped by
// the store itself, never here.
func buildPoint(doc *scrape.Document, collected map[string][]string, truncated string, info *llm.Information, recordID, sessionID string) vectorstore.Point {
	content := map[string]any{
		vectorstore.ContentInputText:     truncated,
		vectorstore.ContentInputHeadings: collected,
		vectorstore.ContentRecordID:      recordID,
	}
	if info != nil {
		content[vectorstore.ContentSummary] = info.Headings
	} else {
		content[vectorstore.ContentSummary] = nil
	}

	return vectorstore.Point{
		ID: uuid.New().String(),
		Payload: map[string]any{
			vectorstore.PayloadSourceURL: doc.SourceURL,
			vectorstore.PayloadContent:   content,
			vectorstore.PayloadTimestamp: time.Now().UTC(),
			vectorstore.PayloadSessionID: sessionID,
		},
	}
}

// summaryText flattens the model summary into embeddable text, one
// "heading: summary" line per entry in sorted heading order.
func summaryText(info *llm.Information) string {
	keys := make([]string, 0, len(info.Headings))
	for k := range info.Headings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s: %s", k, info.Headings[k]))
	}
	return strings.Join(lines, "\n")
}
