package bus

import (
	"context"
	"fmt"
	"sync"
)

// memoryBus fans events out to in-process subscribers. It is used when no
// redis address is configured.
type memoryBus struct {
	mu     sync.RWMutex
	subs   map[int]func(AssetEvent)
	next   int
	closed bool
}

func NewMemoryBus() Bus {
	return &memoryBus{subs: map[int]func(AssetEvent){}}
}

func (b *memoryBus) Publish(ctx context.Context, ev AssetEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return fmt.Errorf("asset bus closed")
	}
	for _, fn := range b.subs {
		fn(ev)
	}
	return nil
}

func (b *memoryBus) StartForwarder(ctx context.Context, onEvent func(ev AssetEvent)) error {
	if onEvent == nil {
		return fmt.Errorf("onEvent callback required")
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("asset bus closed")
	}
	id := b.next
	b.next++
	b.subs[id] = onEvent
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}()
	return nil
}

func (b *memoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = map[int]func(AssetEvent){}
	return nil
}
