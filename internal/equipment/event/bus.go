package event

import (
	"context"
	"errors"
	"sync"

	"github.com/rjrahulyadav/ramiyaa-chemical/internal/equipment/entity"
)

var ErrBusClosed = errors.New("event bus is closed")

// Bus is an in-process queue of dataset eviction events.
type Bus struct {
	mu     sync.RWMutex
	closed bool
	ch     chan entity.DatasetEvictedEvent
}

func NewBus(buffer int) *Bus {
	if buffer < 1 {
		buffer = 1
	}

	return &Bus{
		ch: make(chan entity.DatasetEvictedEvent, buffer),
	}
}

func (b *Bus) Publish(ctx context.Context, event entity.DatasetEvictedEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrBusClosed
	}

	select {
	case b.ch <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bus) Subscribe() <-chan entity.DatasetEvictedEvent {
	return b.ch
}

func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.closed = true
	close(b.ch)
}
