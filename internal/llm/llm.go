// Package llm invokes the summarization model and decodes its output.
//
// The model is asked for a bare JSON object; cleaning strips the code fences
// some models emit anyway, and decoding failures are reported distinctly from
// transport failures so the caller can still persist the raw document.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/harvestd/internal/logging"
)

// Failure kinds for model invocation. Both are non-fatal to ingestion.
var (
	// ErrTransport is returned when the model call itself fails:
	// network, auth, timeout, rate limit.
	ErrTransport = errors.New("model call failed")

	// ErrMalformedOutput is returned when the call succeeds but the cleaned
	// text is not the expected JSON shape.
	ErrMalformedOutput = errors.New("model output is not valid JSON")
)

// DefaultTimeout bounds a single model request.
const DefaultTimeout = 30 * time.Second

// Information is the structured model output: one 1-2 sentence factual
// summary per heading text.
type Information struct {
	Headings map[string]string `json:"headings" bson:"headings"`
}

// response is the wire shape the prompt instructs the model to produce.
type response struct {
	Information Information `json:"information"`
}

// Config holds model client configuration.
type Config struct {
	// BaseURL is the OpenAI-compatible chat endpoint.
	BaseURL string

	// Model is the chat model name.
	Model string

	// APIKey authenticates against the model service.
	APIKey string

	// Timeout bounds a single request. Default: 30s.
	Timeout time.Duration
}

// Invoker sends assembled prompts to a chat model and decodes the answers.
type Invoker struct {
	model   llms.Model
	timeout time.Duration
	logger  *logging.Logger
}

// NewInvoker creates an Invoker backed by an OpenAI-compatible chat API.
func NewInvoker(cfg Config, logger *logging.Logger) (*Invoker, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model name required")
	}

	opts := []openai.Option{openai.WithModel(cfg.Model)}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	apiKey := cfg.APIKey
	if apiKey == "" {
		// langchaingo requires a token; local OpenAI-compatible services ignore it.
		apiKey = "none"
	}
	opts = append(opts, openai.WithToken(apiKey))

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating model client: %w", err)
	}
	return NewInvokerWithModel(client, cfg.Timeout, logger), nil
}

// NewInvokerWithModel wraps an existing llms.Model. Used by tests to inject
// fakes.
func NewInvokerWithModel(model llms.Model, timeout time.Duration, logger *logging.Logger) *Invoker {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &Invoker{model: model, timeout: timeout, logger: logger}
}

// Summarize sends the prompts as a chat request and decodes the answer.
//
// Returns ErrTransport when the call fails and ErrMalformedOutput when the
// answer cannot be decoded. There is no retry: every failure is reported once.
func (i *Invoker) Summarize(ctx context.Context, systemPrompt, userPrompt string) (*Information, error) {
	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	content := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(systemPrompt)},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(userPrompt)},
		},
	}

	resp, err := i.model.GenerateContent(ctx, content, llms.WithTemperature(0.0))
	if err != nil {
		i.logger.Error(ctx, "model call failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrMalformedOutput)
	}

	cleaned := CleanOutput(resp.Choices[0].Content)

	var decoded response
	if err := json.Unmarshal([]byte(cleaned), &decoded); err != nil {
		i.logger.Warn(ctx, "model output failed to parse",
			zap.String("output", cleaned),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}

	i.logger.Debug(ctx, "model output decoded",
		zap.Int("headings", len(decoded.Information.Headings)),
	)
	return &decoded.Information, nil
}

// CleanOutput strips leading/trailing markdown code fences and surrounding
// whitespace. Applying it to already-clean output returns it unchanged.
func CleanOutput(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
