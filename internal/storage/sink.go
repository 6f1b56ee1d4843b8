package storage

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"nuhub/internal/router"
)

// ParamUpdate is one store write observed by the router.
type ParamUpdate struct {
	Module string
	Name   string
	Value  router.Value
	At     time.Time
}

// BatchWriter persists a batch of updates somewhere outside the process.
type BatchWriter interface {
	Name() string
	WriteBatch(ctx context.Context, batch []ParamUpdate) error
}

// AsyncSink observes store writes and hands them to writers in batches,
// off the router loop. A full queue drops the update with a warning; the
// in-memory store stays authoritative.
type AsyncSink struct {
	router.NopObserver

	writers       []BatchWriter
	queue         chan ParamUpdate
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger

	dropped atomic.Int64
	closed  atomic.Bool
	wg      sync.WaitGroup
}

func NewAsyncSink(batchSize int, flushInterval time.Duration, logger *slog.Logger, writers ...BatchWriter) *AsyncSink {
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AsyncSink{
		writers:       writers,
		queue:         make(chan ParamUpdate, batchSize*10),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        logger.With("component", "storage_sink"),
	}
}

// Stored implements router.Observer. It never blocks.
func (s *AsyncSink) Stored(module, name string, v router.Value) {
	if s.closed.Load() || len(s.writers) == 0 {
		return
	}
	update := ParamUpdate{Module: module, Name: name, Value: v, At: time.Now().UTC()}

	if depth := len(s.queue); depth > cap(s.queue)/2 {
		s.logger.Warn("write_queue_high_watermark", "queue_depth", depth)
	}
	select {
	case s.queue <- update:
	default:
		s.dropped.Add(1)
		s.logger.Warn("write_queue_full_update_dropped", "module", module, "param", name)
	}
}

// Dropped is the number of updates lost to a full queue.
func (s *AsyncSink) Dropped() int64 {
	return s.dropped.Load()
}

// Start runs the batch writer until ctx is cancelled, then flushes what is
// left.
func (s *AsyncSink) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Wait blocks until the batch writer has flushed and exited.
func (s *AsyncSink) Wait() {
	s.wg.Wait()
}

func (s *AsyncSink) run(ctx context.Context) {
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	batch := make([]ParamUpdate, 0, s.batchSize)
	s.logger.Info("batch_writer_started",
		"interval", s.flushInterval.String(),
		"batch_size", s.batchSize,
		"writers", len(s.writers),
	)

	for {
		select {
		case <-ctx.Done():
			s.closed.Store(true)
			// drain whatever is already queued
			for {
				select {
				case u := <-s.queue:
					batch = append(batch, u)
					continue
				default:
				}
				break
			}
			s.logger.Info("batch_writer_shutting_down", "remaining", len(batch))
			if len(batch) > 0 {
				s.flush(batch)
			}
			return

		case u := <-s.queue:
			batch = append(batch, u)
			if len(batch) >= s.batchSize {
				s.flush(batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				s.flush(batch)
				batch = batch[:0]
			}
		}
	}
}

func (s *AsyncSink) flush(batch []ParamUpdate) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, w := range s.writers {
		start := time.Now()
		if err := w.WriteBatch(ctx, batch); err != nil {
			s.logger.Error("batch_write_failed",
				"writer", w.Name(),
				"count", len(batch),
				"error", err,
			)
			continue
		}
		s.logger.Debug("batch_write_success",
			"writer", w.Name(),
			"count", len(batch),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
