package llm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trial-match-server/internal/domain"
)

type fakeMessager struct {
	resp   *anthropic.Message
	err    error
	params anthropic.MessageNewParams
	calls  int
}

func (f *fakeMessager) New(_ context.Context, params anthropic.MessageNewParams, _ ...option.RequestOption) (*anthropic.Message, error) {
	f.calls++
	f.params = params
	return f.resp, f.err
}

func messageFromJSON(t *testing.T, raw string) *anthropic.Message {
	t.Helper()
	var msg anthropic.Message
	require.NoError(t, json.Unmarshal([]byte(raw), &msg))
	return &msg
}

func TestAnthropicBackend_ConcatenatesTextBlocks(t *testing.T) {
	fake := &fakeMessager{resp: messageFromJSON(t, `{
		"id": "msg_1",
		"type": "message",
		"role": "assistant",
		"model": "claude-sonnet-4-5-20250929",
		"stop_reason": "end_turn",
		"content": [
			{"type": "text", "text": "{\"match_score\": "},
			{"type": "text", "text": "0.7}"}
		],
		"usage": {"input_tokens": 10, "output_tokens": 5}
	}`)}

	backend := NewAnthropicBackendWithMessager(fake, domain.AnthropicConfig{}, quietLogger())

	text, err := backend.Complete(context.Background(), "evaluate")
	require.NoError(t, err)
	assert.Equal(t, `{"match_score": 0.7}`, text)
	assert.Equal(t, "anthropic", backend.Name())

	assert.Equal(t, anthropic.Model(DefaultAnthropicModel), fake.params.Model)
	assert.Equal(t, int64(DefaultAnthropicMaxTokens), fake.params.MaxTokens)
	require.Len(t, fake.params.Messages, 1)
	assert.Equal(t, anthropic.Float(0), fake.params.Temperature)
}

func TestAnthropicBackend_UsesConfiguredModel(t *testing.T) {
	fake := &fakeMessager{resp: messageFromJSON(t, `{"content": []}`)}
	backend := NewAnthropicBackendWithMessager(fake, domain.AnthropicConfig{Model: "claude-haiku", MaxTokens: 512}, quietLogger())

	text, err := backend.Complete(context.Background(), "p")
	require.NoError(t, err)
	assert.Empty(t, text)
	assert.Equal(t, anthropic.Model("claude-haiku"), fake.params.Model)
	assert.Equal(t, int64(512), fake.params.MaxTokens)
}

func TestAnthropicBackend_ErrorIsUnavailable(t *testing.T) {
	fake := &fakeMessager{err: errors.New("dial tcp: connection refused")}
	backend := NewAnthropicBackendWithMessager(fake, domain.AnthropicConfig{}, quietLogger())

	_, err := backend.Complete(context.Background(), "p")
	var unavailable *domain.BackendUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, "anthropic", unavailable.Backend)
}

func TestNewAnthropicBackend_RequiresKey(t *testing.T) {
	_, err := NewAnthropicBackend(domain.AnthropicConfig{APIKey: "  "}, quietLogger())
	assert.True(t, domain.IsConfiguration(err))

	backend, err := NewAnthropicBackend(domain.AnthropicConfig{APIKey: "sk-test", BaseURL: "http://127.0.0.1:1"}, quietLogger())
	require.NoError(t, err)
	assert.NotNil(t, backend)
}
