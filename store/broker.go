package store

import (
	"context"
	"sync"

	"github.com/klipach/chatroom/contract"
)

// broker wakes up the subscribers of a path after a write. Wake-ups are
// coalesced: a subscriber that is still busy reading sees one pending signal
// no matter how many writes happened meanwhile.
type broker struct {
	mu     sync.Mutex
	closed bool
	done   chan struct{}
	subs   map[string]map[chan struct{}]struct{}
}

func newBroker() *broker {
	return &broker{
		done: make(chan struct{}),
		subs: make(map[string]map[chan struct{}]struct{}),
	}
}

func (b *broker) watch(path string) (<-chan struct{}, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, nil, ErrClosed
	}
	ch := make(chan struct{}, 1)
	if b.subs[path] == nil {
		b.subs[path] = make(map[chan struct{}]struct{})
	}
	b.subs[path][ch] = struct{}{}

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[path], ch)
		if len(b.subs[path]) == 0 {
			delete(b.subs, path)
		}
	}
	return ch, cancel, nil
}

func (b *broker) notify(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[path] {
		signal(ch)
	}
}

// notifyAll is used when a backend may have missed notifications.
func (b *broker) notifyAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, chans := range b.subs {
		for ch := range chans {
			signal(ch)
		}
	}
}

func (b *broker) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.done)
	}
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

type readFunc func(ctx context.Context, path string) (map[string]contract.Message, error)

// follow registers a watcher on path before the first read, so no write
// between the initial snapshot and the first wake-up is lost.
func follow(ctx context.Context, b *broker, path string, read readFunc) (<-chan Snapshot, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	wake, cancel, err := b.watch(path)
	if err != nil {
		return nil, err
	}

	out := make(chan Snapshot)
	go func() {
		defer close(out)
		defer cancel()
		for {
			records, err := read(ctx, path)
			if ctx.Err() != nil {
				return
			}
			select {
			case out <- Snapshot{Path: path, Records: records, Err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
			select {
			case <-wake:
			case <-b.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
