package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/fyrsmithlabs/harvestd/internal/logging"
)

// fakeModel returns a canned response or error.
type fakeModel struct {
	content string
	err     error
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: f.content}},
	}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.content, nil
}

func TestCleanOutput(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "json fence", in: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "bare fence", in: "```\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "whitespace only", in: "  {\"a\":1}\n", want: `{"a":1}`},
		{name: "already clean", in: `{"a":1}`, want: `{"a":1}`},
		{name: "empty", in: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanOutput(tt.in))
		})
	}
}

func TestCleanOutputIdempotent(t *testing.T) {
	inputs := []string{
		"```json\n{\"information\":{}}\n```",
		`{"information":{"headings":{"Intro":"Summary."}}}`,
		"   plain text   ",
	}
	for _, in := range inputs {
		once := CleanOutput(in)
		assert.Equal(t, once, CleanOutput(once))
	}
}

func TestSummarize(t *testing.T) {
	model := &fakeModel{
		content: "```json\n{\"information\":{\"headings\":{\"Intro\":\"Summary text.\"}}}\n```",
	}
	inv := NewInvokerWithModel(model, time.Second, logging.NewNop())

	info, err := inv.Summarize(context.Background(), "system", "user")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Intro": "Summary text."}, info.Headings)
}

func TestSummarizeTransportFailure(t *testing.T) {
	model := &fakeModel{err: errors.New("connection refused")}
	inv := NewInvokerWithModel(model, time.Second, logging.NewNop())

	_, err := inv.Summarize(context.Background(), "system", "user")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.NotErrorIs(t, err, ErrMalformedOutput)
}

func TestSummarizeMalformedOutput(t *testing.T) {
	model := &fakeModel{content: "Sure! Here is the summary you asked for."}
	inv := NewInvokerWithModel(model, time.Second, logging.NewNop())

	_, err := inv.Summarize(context.Background(), "system", "user")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedOutput)
	assert.NotErrorIs(t, err, ErrTransport)
}
