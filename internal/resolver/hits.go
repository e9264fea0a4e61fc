package resolver

import (
	"context"
	"sync"
	"time"

	"github.com/jonesrussell/linkguard/internal/logger"
	"github.com/jonesrussell/linkguard/internal/metrics"
)

// flushTimeout bounds each database flush of buffered increments.
const flushTimeout = 5 * time.Second

// hitStore is the subset of the link repository the buffer flushes into.
type hitStore interface {
	IncrementHits(ctx context.Context, id string, delta int64) error
}

// HitBuffer batches hit-counter increments from cache-hit resolutions and
// flushes them periodically with one fetch-add per link. Increments are
// accepted without blocking the request path; a full buffer drops the
// increment and counts the drop.
type HitBuffer struct {
	store      hitStore
	log        logger.Logger
	flushEvery time.Duration

	incoming chan string
	done     chan struct{}
	wg       sync.WaitGroup
}

// NewHitBuffer creates a buffer holding up to size pending increments.
func NewHitBuffer(store hitStore, size int, flushEvery time.Duration, log logger.Logger) *HitBuffer {
	return &HitBuffer{
		store:      store,
		log:        log,
		flushEvery: flushEvery,
		incoming:   make(chan string, size),
		done:       make(chan struct{}),
	}
}

// Start launches the flush loop.
func (b *HitBuffer) Start() {
	b.wg.Add(1)
	go b.run()
}

// Record registers one hit for a link. It never blocks; when the buffer is
// full the increment is dropped.
func (b *HitBuffer) Record(linkID string) {
	select {
	case b.incoming <- linkID:
	default:
		metrics.HitFlushDrops.Inc()
		b.log.Warn("Hit buffer full, dropping increment", logger.String("link_id", linkID))
	}
}

// Stop drains and flushes pending increments, then stops the loop.
func (b *HitBuffer) Stop() {
	close(b.done)
	b.wg.Wait()
}

func (b *HitBuffer) run() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.flushEvery)
	defer ticker.Stop()

	pending := make(map[string]int64)

	for {
		select {
		case id := <-b.incoming:
			pending[id]++
		case <-ticker.C:
			b.flush(pending)
			pending = make(map[string]int64)
		case <-b.done:
			b.drain(pending)
			b.flush(pending)
			return
		}
	}
}

// drain moves whatever is still queued in the channel into pending.
func (b *HitBuffer) drain(pending map[string]int64) {
	for {
		select {
		case id := <-b.incoming:
			pending[id]++
		default:
			return
		}
	}
}

func (b *HitBuffer) flush(pending map[string]int64) {
	if len(pending) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	for id, delta := range pending {
		if err := b.store.IncrementHits(ctx, id, delta); err != nil {
			b.log.Warn("Failed to flush hit increments",
				logger.String("link_id", id),
				logger.Int64("delta", delta),
				logger.Error(err),
			)
		}
	}
}
