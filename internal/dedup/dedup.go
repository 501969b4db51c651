package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/llm-resilience/internal/metrics"
)

// Fn is the expensive operation being deduplicated
type Fn func(ctx context.Context) (interface{}, error)

// Stats is a snapshot of deduplicator counters
type Stats struct {
	UniqueRequests       int64   `json:"unique_requests"`
	DeduplicatedRequests int64   `json:"deduplicated_requests"`
	PendingRequests      int     `json:"pending_requests"`
	DeduplicationRate    float64 `json:"deduplication_rate"`
}

// call is one in-flight execution; waiters block on done
type call struct {
	done chan struct{}
	val  interface{}
	err  error
}

// Deduplicator collapses concurrent identical invocations into a single
// execution and fans the result out to every caller. Keys are derived from
// the JSON form of the call arguments, so two calls are "identical" when
// their arguments serialize identically (encoding/json emits map keys in
// sorted order, which normalizes argument ordering).
type Deduplicator struct {
	mu      sync.Mutex
	pending map[string]*call

	unique       int64
	deduplicated int64

	logger  *logrus.Logger
	metrics *metrics.Recorder
}

// New creates a Deduplicator. recorder may be nil.
func New(logger *logrus.Logger, recorder *metrics.Recorder) *Deduplicator {
	if logger == nil {
		logger = logrus.New()
	}
	return &Deduplicator{
		pending: make(map[string]*call),
		logger:  logger,
		metrics: recorder,
	}
}

// Do executes fn once for all concurrent callers with identical args.
// Callers arriving while an identical call is in flight wait for it and
// receive the same value and the same unmodified error. The pending entry
// is removed when the execution completes, so a later identical call runs
// fresh.
func (d *Deduplicator) Do(ctx context.Context, fn Fn, args ...interface{}) (interface{}, error) {
	key, err := requestKey(args)
	if err != nil {
		return nil, fmt.Errorf("failed to derive deduplication key: %w", err)
	}

	d.mu.Lock()
	if c, ok := d.pending[key]; ok {
		d.deduplicated++
		d.mu.Unlock()

		if d.metrics != nil {
			d.metrics.RecordDedup(true)
		}
		d.logger.WithField("key", key).Debug("Awaiting in-flight duplicate request")
		select {
		case <-c.done:
			return c.val, c.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	c := &call{done: make(chan struct{})}
	d.pending[key] = c
	d.unique++
	d.mu.Unlock()

	if d.metrics != nil {
		d.metrics.RecordDedup(false)
	}
	c.val, c.err = fn(ctx)

	d.mu.Lock()
	delete(d.pending, key)
	d.mu.Unlock()
	close(c.done)

	return c.val, c.err
}

// Stats returns a snapshot of the deduplicator counters
func (d *Deduplicator) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	total := d.unique + d.deduplicated
	rate := 0.0
	if total > 0 {
		rate = float64(d.deduplicated) / float64(total)
	}
	return Stats{
		UniqueRequests:       d.unique,
		DeduplicatedRequests: d.deduplicated,
		PendingRequests:      len(d.pending),
		DeduplicationRate:    rate,
	}
}

// requestKey hashes the serialized argument list into a fixed-length key
func requestKey(args []interface{}) (string, error) {
	data, err := json.Marshal(args)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:32], nil
}
