package broadcast

import (
	"context"
	"sync"
)

// Handler receives every envelope a broker delivers.
type Handler func(env *Envelope)

// Broker moves envelopes between instances. Every subscriber of every
// instance sees every envelope; topic filtering happens in the hub.
type Broker interface {
	Publish(ctx context.Context, env *Envelope) error
	// Subscribe blocks, feeding handler until ctx is done.
	Subscribe(ctx context.Context, handler Handler) error
	Close() error
}

const localBufSize = 256

// LocalBroker delivers within one process. Used when a single instance
// serves all sockets.
type LocalBroker struct {
	mu     sync.RWMutex
	subs   map[chan *Envelope]struct{}
	closed bool
}

func NewLocalBroker() *LocalBroker {
	return &LocalBroker{subs: make(map[chan *Envelope]struct{})}
}

func (b *LocalBroker) Publish(ctx context.Context, env *Envelope) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- env:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (b *LocalBroker) Subscribe(ctx context.Context, handler Handler) error {
	ch := make(chan *Envelope, localBufSize)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.subs, ch)
		b.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case env, ok := <-ch:
			if !ok {
				return nil
			}
			handler(env)
		}
	}
}

func (b *LocalBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for ch := range b.subs {
		close(ch)
		delete(b.subs, ch)
	}
	return nil
}
