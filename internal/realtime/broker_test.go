package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestConversationTopic(t *testing.T) {
	assert.Equal(t, "chat:42", ConversationTopic(42))
}

func TestMemoryBrokerDelivers(t *testing.T) {
	b := NewMemoryBroker()
	defer b.Close()

	ch, cancel, err := b.Subscribe(context.Background(), ConversationTopic(1))
	require.NoError(t, err)
	defer cancel()

	ev, err := NewEvent(EventNewMessage, map[string]string{"content": "hi"})
	require.NoError(t, err)
	require.NoError(t, b.Publish(context.Background(), ConversationTopic(1), ev))
	require.NoError(t, b.Publish(context.Background(), ConversationTopic(2), ev))

	got := receive(t, ch)
	assert.Equal(t, EventNewMessage, got.Name)
	assert.JSONEq(t, `{"content":"hi"}`, string(got.Data))

	select {
	case extra := <-ch:
		t.Fatalf("unexpected event from other topic: %+v", extra)
	default:
	}
}

func TestMemoryBrokerCancel(t *testing.T) {
	b := NewMemoryBroker()
	ch, cancel, err := b.Subscribe(context.Background(), "t")
	require.NoError(t, err)
	assert.Equal(t, 1, b.Subscribers("t"))

	cancel()
	cancel()
	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, b.Subscribers("t"))
}

func TestMemoryBrokerContextDone(t *testing.T) {
	b := NewMemoryBroker()
	ctx, stop := context.WithCancel(context.Background())
	ch, _, err := b.Subscribe(ctx, "t")
	require.NoError(t, err)

	stop()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not closed")
	}
}

func TestMemoryBrokerDropsWhenFull(t *testing.T) {
	b := NewMemoryBroker()
	ch, cancel, err := b.Subscribe(context.Background(), "t")
	require.NoError(t, err)
	defer cancel()

	ev, _ := NewEvent(EventNewMessage, nil)
	for i := 0; i < subscriberBuffer+10; i++ {
		require.NoError(t, b.Publish(context.Background(), "t", ev))
	}
	assert.Len(t, ch, subscriberBuffer)
}

func TestRedisBroker(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	b := NewRedisBroker(client, zap.NewNop())
	defer b.Close()

	ctx := context.Background()
	ch, cancel, err := b.Subscribe(ctx, ConversationTopic(7))
	require.NoError(t, err)
	defer cancel()

	ev, err := NewEvent(EventNewMessage, map[string]any{"id": 1, "chat_id": 7})
	require.NoError(t, err)
	require.NoError(t, b.Publish(ctx, ConversationTopic(7), ev))

	got := receive(t, ch)
	assert.Equal(t, EventNewMessage, got.Name)
	assert.JSONEq(t, `{"id":1,"chat_id":7}`, string(got.Data))
}
