package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/harvestd/internal/prompt"
	"github.com/fyrsmithlabs/harvestd/internal/scrape"
	"github.com/fyrsmithlabs/harvestd/internal/vectorstore"
)

// retrieveContext searches the vector store for documents similar to doc and
// renders them into the two prompt context blocks: prior model outputs and
// prior input headings.
//
// Retrieval is best-effort. Any failure (embedding, search) degrades to empty
// context with a warning; it never aborts the pipeline. Malformed stored
// payloads are skipped, not fatal.
func (s *Service) retrieveContext(ctx context.Context, doc *scrape.Document) (outputContext, inputContext string) {
	query := prompt.FirstHeading(doc.Headings)
	if query == "" {
		query = doc.SourceURL
	}

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		s.logger.Warn(ctx, "context retrieval skipped, embedding failed",
			zap.String("url", doc.SourceURL),
			zap.Error(err),
		)
		return "", ""
	}

	results, err := s.vectors.Search(ctx, s.cfg.Collection, vector, s.cfg.ContextK)
	if err != nil {
		s.logger.Warn(ctx, "context retrieval skipped, search failed",
			zap.String("url", doc.SourceURL),
			zap.Error(err),
		)
		return "", ""
	}

	var outputs, inputs []string
	n := 0
	for _, r := range results {
		content, ok := r.Payload[vectorstore.PayloadContent].(map[string]any)
		if !ok {
			s.logger.Warn(ctx, "skipping context entry with malformed payload",
				zap.String("point_id", r.ID),
			)
			continue
		}
		n++

		if summary := renderSummary(content[vectorstore.ContentSummary]); summary != "" {
			outputs = append(outputs, fmt.Sprintf("Document %d:\n%s", n, summary))
		}
		if headings := renderStoredHeadings(content[vectorstore.ContentInputHeadings]); headings != "" {
			inputs = append(inputs, fmt.Sprintf("Document %d:\n%s", n, headings))
		}
	}

	return strings.Join(outputs, "\n\n"), strings.Join(inputs, "\n\n")
}

// renderSummary renders a stored heading->summary mapping as one line per
// heading, in sorted heading order for determinism.
func renderSummary(v any) string {
	m, ok := v.(map[string]any)
	if !ok || len(m) == 0 {
		return ""
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		text, ok := m[k].(string)
		if !ok {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", k, text))
	}
	return strings.Join(lines, "\n")
}

// renderStoredHeadings renders a stored level->headings mapping as one line
// per level, h1 first.
func renderStoredHeadings(v any) string {
	m, ok := v.(map[string]any)
	if !ok || len(m) == 0 {
		return ""
	}

	var lines []string
	for _, level := range scrape.HeadingLevels {
		entries, ok := m[level].([]any)
		if !ok || len(entries) == 0 {
			continue
		}
		texts := make([]string, 0, len(entries))
		for _, e := range entries {
			if text, ok := e.(string); ok {
				texts = append(texts, text)
			}
		}
		if len(texts) > 0 {
			lines = append(lines, fmt.Sprintf("%s: %s", level, strings.Join(texts, "; ")))
		}
	}
	return strings.Join(lines, "\n")
}
