package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryPublishSubscribe(t *testing.T) {
	b := NewMemory()
	ch := b.Subscribe("r1")
	other := b.Subscribe("r2")

	msg := Message{Type: "improved", Data: json.RawMessage(`{"bestCost":3}`)}
	b.Publish("r1", msg)

	select {
	case got := <-ch:
		assert.Equal(t, msg, got)
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}
	assert.Empty(t, other)

	b.Unsubscribe("r1", ch)
	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after unsubscribe")
	assert.Zero(t, b.Subscribers("r1"))

	b.Unsubscribe("r1", ch)
}

func TestMemoryPublishEvictsOldestWhenFull(t *testing.T) {
	b := NewMemory()
	ch := b.Subscribe("r1")
	for range cap(ch) + 5 {
		b.Publish("r1", Message{Type: "snapshot"})
	}
	b.Publish("r1", Message{Type: "run.status"})
	require.Len(t, ch, cap(ch))

	var last Message
	for range cap(ch) {
		last = <-ch
	}
	assert.Equal(t, "run.status", last.Type)
}

func TestMemoryCloseClosesSubscribers(t *testing.T) {
	b := NewMemory()
	ch := b.Subscribe("r1")
	require.NoError(t, b.Close())
	_, ok := <-ch
	assert.False(t, ok)
	b.Publish("r1", Message{Type: "late"})
}

func TestRedisChannelName(t *testing.T) {
	b, err := NewRedis("redis://localhost:6379/0", "", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	assert.Equal(t, "lnskit:run:abc", b.channel("abc"))

	_, err = NewRedis("://bad", "", zerolog.Nop())
	assert.Error(t, err)
}
