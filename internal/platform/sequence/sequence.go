// Package sequence issues human-readable registration numbers of the form
// GH + yyyymmdd + 6-digit daily counter, e.g. GH20250520000001.
package sequence

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const DefaultPrefix = "GH"

// Counter returns the next value of the counter for day (yyyymmdd),
// starting at 1.
type Counter interface {
	Next(ctx context.Context, day string) (int64, error)
}

// Numberer formats counter values into registration numbers.
type Numberer struct {
	counter Counter
	prefix  string
	loc     *time.Location
	now     func() time.Time
}

func NewNumberer(counter Counter, loc *time.Location) *Numberer {
	if loc == nil {
		loc = time.Local
	}
	return &Numberer{counter: counter, prefix: DefaultPrefix, loc: loc, now: time.Now}
}

// Next returns a registration number that is unique across the counter's lifetime.
func (n *Numberer) Next(ctx context.Context) (string, error) {
	day := n.now().In(n.loc).Format("20060102")
	v, err := n.counter.Next(ctx, day)
	if err != nil {
		return "", fmt.Errorf("next registration number for %s: %w", day, err)
	}
	return fmt.Sprintf("%s%s%06d", n.prefix, day, v), nil
}

// MemoryCounter keeps daily counters in process memory.
type MemoryCounter struct {
	mu     sync.Mutex
	counts map[string]int64
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{counts: make(map[string]int64)}
}

func (c *MemoryCounter) Next(_ context.Context, day string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[day]++
	return c.counts[day], nil
}
