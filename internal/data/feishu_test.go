package data

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFeishu struct {
	lookups []string
	sent    map[string]string
	openIDs map[string]string
}

func (f *fakeFeishu) OpenIDOf(_ context.Context, mobile string) (string, error) {
	f.lookups = append(f.lookups, mobile)
	if id, ok := f.openIDs[mobile]; ok {
		return id, nil
	}
	return "", errors.New("not found")
}

func (f *fakeFeishu) SendText(_ context.Context, openID, text string) error {
	if f.sent == nil {
		f.sent = map[string]string{}
	}
	f.sent[openID] = text
	return nil
}

func TestFeishuRepo_SendText(t *testing.T) {
	ctx := context.Background()
	client := &fakeFeishu{openIDs: map[string]string{"+573001234567": "ou_bob"}}
	r := NewFeishuRepo(client)

	r.Remember("573009999999", "ou_alice")
	require.NoError(t, r.SendText(ctx, "573009999999", "hi alice"))
	assert.Empty(t, client.lookups, "remembered senders skip the contact lookup")
	assert.Equal(t, "hi alice", client.sent["ou_alice"])

	require.NoError(t, r.SendText(ctx, "573001234567", "hi bob"))
	require.NoError(t, r.SendText(ctx, "573001234567", "again"))
	assert.Equal(t, []string{"+573001234567"}, client.lookups, "resolved ids are cached")
	assert.Equal(t, "again", client.sent["ou_bob"])

	assert.Error(t, r.SendText(ctx, "10000000000", "nobody"))
}

func TestOutboxRepo(t *testing.T) {
	r := NewOutboxRepo(testLogger())
	_ = r.SendText(context.Background(), "a", "one")
	_ = r.SendText(context.Background(), "b", "two")

	got := r.Drain()
	require.Len(t, got, 2)
	assert.Equal(t, OutboxMessage{Recipient: "b", Text: "two"}, got[1])
	assert.Empty(t, r.Drain())
}
