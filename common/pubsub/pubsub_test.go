package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const recvTimeout = 5 * time.Second

func recv(t *testing.T, ch <-chan string) string {
	select {
	case v := <-ch:
		return v
	case <-time.After(recvTimeout):
		t.Fatalf("failed to receive value")
	}
	return ""
}

func requireClosed(t *testing.T, ch <-chan string) {
	deadline := time.After(recvTimeout)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("unwrapped channel not closed")
		}
	}
}

func TestUnbounded(t *testing.T) {
	require := require.New(t)

	broker := NewBroker(false)
	sub := broker.Subscribe()
	ch := make(chan string)
	sub.Unwrap(ch)

	events := []string{"freeze", "unfreeze", "transfer", "add"}
	for _, ev := range events {
		broker.Broadcast(ev)
	}
	for _, ev := range events {
		require.Equal(ev, recv(t, ch), "events must arrive in broadcast order")
	}

	sub.Close()
	require.NotPanics(func() { sub.Close() }, "double Close()")
	require.Len(broker.subscribers, 0, "subscriber map, post Close()")

	_, ok := <-ch
	require.False(ok, "unwrapped channel should be closed")
}

func TestCloseWithUndelivered(t *testing.T) {
	require := require.New(t)

	broker := NewBroker(false)
	for i := 0; i < 10; i++ {
		sub := broker.Subscribe()
		ch := make(chan string)
		sub.Unwrap(ch)

		broker.Broadcast("deposit")
		broker.Broadcast("withdraw")
		sub.Close()

		// Nobody reads the pending messages, the forwarder must still exit.
		requireClosed(t, ch)
	}
	require.Len(broker.subscribers, 0)

	// Broadcasting after every subscriber left is a no-op.
	require.NotPanics(func() { broker.Broadcast("add") })
}

func TestLastOnSubscribe(t *testing.T) {
	require := require.New(t)

	broker := NewBroker(true)
	broker.Broadcast("snapshot")

	sub := broker.Subscribe()
	ch := make(chan string)
	sub.Unwrap(ch)
	require.Equal("snapshot", recv(t, ch), "last broadcast on subscribe")
	sub.Close()

	broker = NewBroker(false)
	broker.Broadcast("snapshot")
	sub = broker.Subscribe()
	ch = make(chan string)
	sub.Unwrap(ch)
	select {
	case v := <-ch:
		t.Fatalf("unexpected value: %s", v)
	case <-time.After(50 * time.Millisecond):
	}
	sub.Close()
}

func TestContextSubscription(t *testing.T) {
	require := require.New(t)

	ctx, sub := NewContextSubscription(context.Background())
	require.NoError(ctx.Err())
	sub.Close()
	require.Error(ctx.Err(), "Close should cancel the context")
}
