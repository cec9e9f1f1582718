package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/mbd888/loginguard/internal/idgen"
	"github.com/mbd888/loginguard/internal/metrics"
)

const (
	writerChanSize  = 4096
	writerBatchSize = 100
	writerFlushMs   = 500
)

// Writer asynchronously batches audit events to a Store.
type Writer struct {
	store   Store
	logger  *slog.Logger
	ch      chan Event
	stop    chan struct{}
	running atomic.Bool
	dropped atomic.Int64
}

// NewWriter creates a new async audit writer.
func NewWriter(store Store, logger *slog.Logger) *Writer {
	return &Writer{
		store:  store,
		logger: logger,
		ch:     make(chan Event, writerChanSize),
		stop:   make(chan struct{}),
	}
}

// Record enqueues an audit event, stamping its ID and timestamp. Non-blocking:
// drops and increments a counter if the channel is full.
func (w *Writer) Record(event Event) {
	if event.ID == "" {
		event.ID = idgen.WithPrefix("audit_")
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	select {
	case w.ch <- event:
	default:
		w.dropped.Add(1)
		metrics.AuditEventsDropped.Inc()
	}
}

// Dropped returns the number of events dropped due to a full channel.
func (w *Writer) Dropped() int64 {
	return w.dropped.Load()
}

// Start begins draining the channel and flushing batches. Call in a goroutine.
func (w *Writer) Start(ctx context.Context) {
	w.running.Store(true)
	defer w.running.Store(false)

	ticker := time.NewTicker(time.Duration(writerFlushMs) * time.Millisecond)
	defer ticker.Stop()

	var buf []*Event

	for {
		select {
		case <-ctx.Done():
			w.flush(buf)
			return
		case <-w.stop:
			w.flush(buf)
			return
		case event := <-w.ch:
			e := event
			buf = append(buf, &e)
			if len(buf) >= writerBatchSize {
				w.flush(buf)
				buf = nil
			}
		case <-ticker.C:
			if len(buf) > 0 {
				w.flush(buf)
				buf = nil
			}
		}
	}
}

// Stop signals the writer to flush remaining events and exit.
func (w *Writer) Stop() {
	select {
	case w.stop <- struct{}{}:
	default:
	}
}

// Running reports whether the writer loop is active.
func (w *Writer) Running() bool {
	return w.running.Load()
}

func (w *Writer) flush(buf []*Event) {
	if len(buf) == 0 {
		return
	}
	w.safeFlush(buf)
}

func (w *Writer) safeFlush(buf []*Event) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("panic in audit writer flush", "panic", fmt.Sprint(r))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := w.store.AppendBatch(ctx, buf); err != nil {
		metrics.StoreErrors.WithLabelValues("audit_append").Inc()
		w.logger.Error("audit writer flush failed", "error", err, "count", len(buf))
	}
}
