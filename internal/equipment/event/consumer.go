package event

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/rjrahulyadav/ramiyaa-chemical/internal/equipment/entity"
)

type Handler interface {
	Handle(ctx context.Context, event entity.DatasetEvictedEvent) error
}

type ConsumerConfig struct {
	Workers     int
	MaxRetries  int
	BaseBackoff time.Duration
}

// seenWindow is how many recent EventIDs are remembered for deduplication.
const seenWindow = 256

// EvictionConsumer drains the bus with a fixed pool of workers, retrying a
// failed handler with exponential backoff. An EventID seen among the last
// seenWindow events is skipped.
type EvictionConsumer struct {
	bus         *Bus
	handler     Handler
	workers     int
	maxRetries  int
	baseBackoff time.Duration
	seen        *recentIDs
	wg          sync.WaitGroup
}

// recentIDs is a fixed size set that forgets the oldest id first.
type recentIDs struct {
	mu   sync.Mutex
	ids  map[string]struct{}
	ring []string
	next int
}

func newRecentIDs(size int) *recentIDs {
	return &recentIDs{
		ids:  make(map[string]struct{}, size),
		ring: make([]string, size),
	}
}

// add records id and reports whether it was already present.
func (r *recentIDs) add(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.ids[id]; ok {
		return true
	}

	if old := r.ring[r.next]; old != "" {
		delete(r.ids, old)
	}
	r.ring[r.next] = id
	r.next = (r.next + 1) % len(r.ring)
	r.ids[id] = struct{}{}

	return false
}

func (r *recentIDs) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}

func NewEvictionConsumer(bus *Bus, handler Handler, cfg ConsumerConfig) *EvictionConsumer {
	workers := cfg.Workers
	if workers < 1 {
		workers = 2
	}

	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	baseBackoff := cfg.BaseBackoff
	if baseBackoff <= 0 {
		baseBackoff = 50 * time.Millisecond
	}

	return &EvictionConsumer{
		bus:         bus,
		handler:     handler,
		workers:     workers,
		maxRetries:  maxRetries,
		baseBackoff: baseBackoff,
		seen:        newRecentIDs(seenWindow),
	}
}

func (c *EvictionConsumer) Start() {
	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go c.worker()
	}
}

// Stop closes the bus and waits for queued events to drain.
func (c *EvictionConsumer) Stop(ctx context.Context) error {
	if c.bus != nil {
		c.bus.Close()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *EvictionConsumer) worker() {
	defer c.wg.Done()

	for event := range c.bus.Subscribe() {
		c.processEvent(event)
	}
}

func (c *EvictionConsumer) processEvent(event entity.DatasetEvictedEvent) {
	if c.handler == nil {
		return
	}

	if event.EventID != "" {
		if c.seen.add(event.EventID) {
			slog.Debug("skip duplicate eviction event", "event_id", event.EventID, "dataset_id", event.DatasetID)
			return
		}
	}

	backoff := c.baseBackoff
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		err := c.handler.Handle(context.Background(), event)
		if err == nil {
			return
		}

		if attempt == c.maxRetries {
			slog.Error("failed to handle eviction after retries", "event_id", event.EventID, "dataset_id", event.DatasetID, "error", err)
			return
		}

		sleepBackoff(backoff)
		backoff *= 2
	}
}

func sleepBackoff(d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	<-timer.C
}

// ReportDeleter drops a cached report.
type ReportDeleter interface {
	Delete(datasetID int64)
}

// ReportEvictor removes the cached PDF of an evicted dataset.
type ReportEvictor struct {
	Cache ReportDeleter
}

func (h ReportEvictor) Handle(ctx context.Context, event entity.DatasetEvictedEvent) error {
	if h.Cache == nil {
		return errors.New("missing report cache")
	}

	h.Cache.Delete(event.DatasetID)
	slog.InfoContext(ctx, "dataset evicted", "event_id", event.EventID, "dataset_id", event.DatasetID)
	return nil
}
