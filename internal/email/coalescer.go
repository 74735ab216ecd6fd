package email

import (
	"context"
	"sync"
	"time"

	"github.com/partnerhub/notify/internal/domain"
	"github.com/partnerhub/notify/internal/outbox"
)

// Clock abstracts time for the coalescer so tests can drive flushes
// deterministically.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancellable pending flush.
type Timer interface {
	Stop() bool
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// NewRealClock returns a Clock backed by the system clock.
func NewRealClock() Clock { return realClock{} }

type accumulatorKey struct {
	userID    string
	eventType domain.EventType
}

type accumulator struct {
	records []*outbox.Record
	timer   Timer
}

// Coalescer merges high-frequency notifications per (recipient, event type)
// into one digest email per batching window. At most one accumulator is live
// per key; the first enqueue schedules the flush and later enqueues never
// extend it.
type Coalescer struct {
	deliverer *Deliverer
	clock     Clock

	mu      sync.Mutex
	entries map[accumulatorKey]*accumulator
	wg      sync.WaitGroup
	closed  bool
}

// NewCoalescer creates a new coalescer sending digests through the deliverer.
func NewCoalescer(deliverer *Deliverer, clock Clock) *Coalescer {
	if clock == nil {
		clock = NewRealClock()
	}
	return &Coalescer{
		deliverer: deliverer,
		clock:     clock,
		entries:   make(map[accumulatorKey]*accumulator),
	}
}

// Enqueue adds one record to the accumulator for (userID, eventType),
// creating it and scheduling a flush after window on first use. The map
// lock is held only for the bookkeeping; sends happen outside it, so
// unrelated keys never wait on each other's deliveries.
func (c *Coalescer) Enqueue(userID string, eventType domain.EventType, rec *outbox.Record, window time.Duration) {
	key := accumulatorKey{userID: userID, eventType: eventType}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		// Shutting down: leave the record parked in the outbox; the sweeper
		// picks it up once its window passes.
		return
	}

	if acc, ok := c.entries[key]; ok {
		acc.records = append(acc.records, rec)
		recordCoalesced()
		return
	}

	acc := &accumulator{records: []*outbox.Record{rec}}
	acc.timer = c.clock.AfterFunc(window, func() { c.flush(key) })
	c.entries[key] = acc
	recordAccumulatorOpened()
}

// flush atomically consumes the accumulator for key and sends its digest.
// Consuming under the lock guarantees a timer flush and a concurrent
// Shutdown flush can never both send the same entry; registering the
// in-flight send under the same lock guarantees Shutdown's Wait observes it.
func (c *Coalescer) flush(key accumulatorKey) {
	c.mu.Lock()
	acc, ok := c.entries[key]
	if ok {
		delete(c.entries, key)
	}
	if !ok || len(acc.records) == 0 {
		c.mu.Unlock()
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()
	defer c.wg.Done()

	// Digest outcome bookkeeping (sent or retry scheduling) is handled by
	// the deliverer per record.
	_ = c.deliverer.DeliverDigest(context.Background(), key.userID, acc.records)
}

// PendingKeys returns the number of live accumulators.
func (c *Coalescer) PendingKeys() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Shutdown stops all timers and flushes every remaining accumulator
// synchronously.
func (c *Coalescer) Shutdown() {
	c.mu.Lock()
	c.closed = true
	keys := make([]accumulatorKey, 0, len(c.entries))
	for key, acc := range c.entries {
		acc.timer.Stop()
		keys = append(keys, key)
	}
	c.mu.Unlock()

	for _, key := range keys {
		c.flush(key)
	}
	c.wg.Wait()
}
