package live

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dalemusser/sharedcart/internal/domain/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, sub *Subscription) Message {
	t.Helper()
	select {
	case data, ok := <-sub.C:
		require.True(t, ok, "subscription closed")
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
	return Message{}
}

func TestHub_PublishReachesSessionSubscribers(t *testing.T) {
	hub := NewHub(nil)
	a := hub.Subscribe("s1")
	b := hub.Subscribe("s1")
	other := hub.Subscribe("s2")
	defer a.Close()
	defer b.Close()
	defer other.Close()

	hub.Publish(context.Background(), models.CollabSession{SessionID: "s1", Revision: 4})

	for _, sub := range []*Subscription{a, b} {
		msg := receive(t, sub)
		assert.Equal(t, "session", msg.Type)
		assert.Equal(t, int64(4), msg.Revision)
		assert.Equal(t, "s1", msg.Session.SessionID)
	}
	select {
	case <-other.C:
		t.Fatal("subscriber of another session received a message")
	default:
	}
}

func TestHub_CloseUnregisters(t *testing.T) {
	hub := NewHub(nil)
	sub := hub.Subscribe("s1")
	assert.Equal(t, 1, hub.Subscribers("s1"))

	sub.Close()
	sub.Close()
	assert.Equal(t, 0, hub.Subscribers("s1"))

	_, ok := <-sub.C
	assert.False(t, ok)

	// Publishing after close must not panic.
	hub.Publish(context.Background(), models.CollabSession{SessionID: "s1"})
}

func TestHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	hub := NewHub(nil)
	sub := hub.Subscribe("s1")
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*4; i++ {
			hub.Publish(context.Background(), models.CollabSession{SessionID: "s1", Revision: int64(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
	assert.Len(t, sub.C, subscriberBuffer)
}

func TestRedisBridge_RelaysAcrossHubs(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Replica A subscribes; replica B publishes.
	hubA := NewHub(nil)
	bridgeA := NewRedisBridge(client, hubA, nil)
	runDone := make(chan error, 1)
	go func() { runDone <- bridgeA.Run(ctx) }()

	require.Eventually(t, func() bool { return mr.PubSubNumPat() > 0 }, 2*time.Second, 10*time.Millisecond)

	sub := hubA.Subscribe("s1")
	defer sub.Close()

	bridgeB := NewRedisBridge(client, NewHub(nil), nil)
	bridgeB.Publish(ctx, models.CollabSession{SessionID: "s1", Revision: 7})

	msg := receive(t, sub)
	assert.Equal(t, int64(7), msg.Revision)

	cancel()
	select {
	case err := <-runDone:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("bridge did not stop")
	}
}

func TestRedisBridge_FallsBackToLocalDelivery(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })
	mr.Close()

	hub := NewHub(nil)
	sub := hub.Subscribe("s1")
	defer sub.Close()

	NewRedisBridge(client, hub, nil).Publish(context.Background(), models.CollabSession{SessionID: "s1", Revision: 2})

	msg := receive(t, sub)
	assert.Equal(t, int64(2), msg.Revision)
}

func TestPeekRevision(t *testing.T) {
	data, err := Encode(models.CollabSession{SessionID: "s1", Revision: 12})
	require.NoError(t, err)

	rev, ok := PeekRevision(data)
	assert.True(t, ok)
	assert.Equal(t, int64(12), rev)

	_, ok = PeekRevision([]byte(`{"type":"session"}`))
	assert.False(t, ok)
	_, ok = PeekRevision([]byte(`not json`))
	assert.False(t, ok)
}
