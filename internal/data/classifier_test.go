package data

import (
	"context"
	"errors"
	"testing"

	"github.com/mateodaza/sippy-sub000/internal/infra/openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChat struct {
	reply  string
	err    error
	system string
	opts   openai.ChatOptions
}

func (f *fakeChat) Chat(_ context.Context, system, _ string, opts openai.ChatOptions) (string, error) {
	f.system = system
	f.opts = opts
	return f.reply, f.err
}

func TestNewClassifierRepo_NilClient(t *testing.T) {
	assert.Nil(t, NewClassifierRepo(nil, "", ""))
}

func TestClassifierRepo_Classify(t *testing.T) {
	chat := &fakeChat{reply: "```json\n{\"command\":\"send\",\"amount\":\"$1,250.50\",\"recipient\":3001234567,\"confidence\":0.91}\n```"}
	r := NewClassifierRepo(chat, "classify", "explain")

	got, err := r.Classify(context.Background(), "mandale 1250.50 a 3001234567")
	require.NoError(t, err)
	assert.Equal(t, "classify", chat.system)
	assert.True(t, chat.opts.JSON)

	assert.Equal(t, "send", got.Command)
	require.NotNil(t, got.Amount)
	assert.InDelta(t, 1250.50, *got.Amount, 1e-9)
	assert.Equal(t, "3001234567", got.Recipient)
	assert.InDelta(t, 0.91, got.Confidence, 1e-9)
}

func TestParseClassification(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantErr   bool
		command   string
		amount    *float64
		recipient string
	}{
		{name: "null fields", raw: `{"command":"balance","amount":null,"recipient":null,"confidence":0.8}`, command: "balance"},
		{name: "numeric amount", raw: `{"command":"send","amount":5,"recipient":"+57 300 123 4567","confidence":0.9}`, command: "send", amount: ptr(5.0), recipient: "+57 300 123 4567"},
		{name: "not json", raw: `I think the user wants their balance`, wantErr: true},
		{name: "bad amount", raw: `{"command":"send","amount":"five","confidence":0.9}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseClassification(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.command, got.Command)
			assert.Equal(t, tt.amount, got.Amount)
			assert.Equal(t, tt.recipient, got.Recipient)
		})
	}
}

func TestClassifierRepo_Explain(t *testing.T) {
	chat := &fakeChat{reply: "  Try \"help\" to see what I can do.\n"}
	r := NewClassifierRepo(chat, "classify", "explain")

	got, err := r.Explain(context.Background(), "what's up")
	require.NoError(t, err)
	assert.Equal(t, `Try "help" to see what I can do.`, got)
	assert.Equal(t, "explain", chat.system)
	assert.False(t, chat.opts.JSON)

	chat.err = errors.New("boom")
	_, err = r.Explain(context.Background(), "what's up")
	assert.Error(t, err)
}

func ptr[T any](v T) *T { return &v }
