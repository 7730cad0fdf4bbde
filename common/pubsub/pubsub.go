// Package pubsub implements a generic publish-subscribe interface.
package pubsub

import (
	"context"
	"reflect"
	"sync"

	"github.com/eapache/channels"
)

// ClosableSubscription is an interface for a subscription that can be
// closed.
type ClosableSubscription interface {
	// Close unsubscribes.
	Close()
}

type contextSubscription struct {
	cancel context.CancelFunc
}

func (s *contextSubscription) Close() {
	s.cancel()
}

// NewContextSubscription derives a cancellable context and wraps its cancel
// function as a ClosableSubscription, for subscriptions backed by a remote
// stream.
func NewContextSubscription(parent context.Context) (context.Context, ClosableSubscription) {
	ctx, cancel := context.WithCancel(parent)
	return ctx, &contextSubscription{cancel}
}

// Subscription is a broker subscription.
type Subscription struct {
	b      *Broker
	ch     channels.Channel
	done   chan struct{}
	closed bool
}

// Unwrap ties the read end of the subscription to the provided typed
// channel. The typed channel is closed when the subscription is, even if
// a message is still waiting to be read from it.
func (s *Subscription) Unwrap(into interface{}) {
	chVal := reflect.ValueOf(into)
	if chVal.Kind() != reflect.Chan || chVal.Type().ChanDir()&reflect.SendDir == 0 {
		panic("pubsub: Unwrap requires a writable channel")
	}

	go func() {
		defer chVal.Close()

		cases := []reflect.SelectCase{
			{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(s.done)},
			{Dir: reflect.SelectSend, Chan: chVal},
		}
		for v := range s.ch.Out() {
			cases[1].Send = reflect.ValueOf(v)
			if chosen, _, _ := reflect.Select(cases); chosen == 0 {
				// Drain so the buffer goroutine can exit.
				for range s.ch.Out() {
				}
				return
			}
		}
	}()
}

// Close unsubscribes from the broker.
func (s *Subscription) Close() {
	s.b.Lock()
	defer s.b.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	delete(s.b.subscribers, s)
	close(s.done)
	s.ch.Close()
}

// Broker is a pubsub broker instance.
type Broker struct {
	sync.Mutex

	subscribers map[*Subscription]bool

	pubLastOnSubscribe bool
	lastMessage        interface{}
	hasLast            bool
}

// Subscribe subscribes to the broker with an unbounded buffer.
func (b *Broker) Subscribe() *Subscription {
	sub := &Subscription{
		b:    b,
		ch:   channels.NewInfiniteChannel(),
		done: make(chan struct{}),
	}

	b.Lock()
	defer b.Unlock()

	if b.pubLastOnSubscribe && b.hasLast {
		sub.ch.In() <- b.lastMessage
	}
	b.subscribers[sub] = true

	return sub
}

// Broadcast delivers the message to every subscriber. Subscriber buffers
// never block the publisher.
func (b *Broker) Broadcast(msg interface{}) {
	b.Lock()
	defer b.Unlock()

	if b.pubLastOnSubscribe {
		b.lastMessage = msg
		b.hasLast = true
	}
	for sub := range b.subscribers {
		sub.ch.In() <- msg
	}
}

// NewBroker creates a new broker. When pubLastOnSubscribe is set the last
// broadcast message is delivered to every new subscriber.
func NewBroker(pubLastOnSubscribe bool) *Broker {
	return &Broker{
		subscribers:        make(map[*Subscription]bool),
		pubLastOnSubscribe: pubLastOnSubscribe,
	}
}
