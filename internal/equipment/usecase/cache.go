package usecase

import "sync"

// ReportCache keeps rendered PDF reports keyed by dataset id.
type ReportCache struct {
	mu    sync.RWMutex
	limit int
	order []int64
	items map[int64][]byte
}

// NewReportCache returns a cache holding at most limit reports; the oldest
// insertion is dropped first.
func NewReportCache(limit int) *ReportCache {
	if limit < 1 {
		limit = 1
	}

	return &ReportCache{
		limit: limit,
		items: make(map[int64][]byte, limit),
	}
}

func (c *ReportCache) Get(datasetID int64) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	content, ok := c.items[datasetID]
	return content, ok
}

func (c *ReportCache) Put(datasetID int64, content []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.items[datasetID]; !ok {
		c.order = append(c.order, datasetID)
	}
	c.items[datasetID] = content

	for len(c.order) > c.limit {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.items, oldest)
	}
}

func (c *ReportCache) Delete(datasetID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.items[datasetID]; !ok {
		return
	}
	delete(c.items, datasetID)

	for i, id := range c.order {
		if id == datasetID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

func (c *ReportCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.items)
}
