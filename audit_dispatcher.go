package authcore

import (
	"context"
	"sync"
	"sync/atomic"
)

// auditDispatcher decouples engine code paths from the configured sink: a
// single worker drains a buffered queue so a slow sink never delays a
// login. With DropIfFull set, overflow is counted instead of waited out.
type auditDispatcher struct {
	sink       AuditSink
	queue      chan AuditEvent
	quit       chan struct{}
	dropIfFull bool
	dropped    atomic.Uint64
	metrics    *Metrics
	stop       sync.Once
	drained    sync.WaitGroup
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink, metrics *Metrics) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &auditDispatcher{
		sink:       sink,
		queue:      make(chan AuditEvent, size),
		quit:       make(chan struct{}),
		dropIfFull: cfg.DropIfFull,
		metrics:    metrics,
	}
	d.drained.Add(1)
	go d.pump()
	return d
}

// pump is the single consumer. On shutdown it flushes whatever is still
// queued before returning.
func (d *auditDispatcher) pump() {
	defer d.drained.Done()
	for {
		select {
		case event := <-d.queue:
			d.sink.Emit(context.Background(), event)
		case <-d.quit:
			for {
				select {
				case event := <-d.queue:
					d.sink.Emit(context.Background(), event)
				default:
					return
				}
			}
		}
	}
}

// Emit hands an event to the worker. With DropIfFull it never blocks and
// overflow shows up in Dropped and under MetricAuditDropped. Otherwise it
// waits until the queue accepts the event, the context ends, or the
// dispatcher shuts down.
func (d *auditDispatcher) Emit(ctx context.Context, event AuditEvent) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.dropIfFull {
		select {
		case d.queue <- event:
		case <-d.quit:
		default:
			d.dropped.Add(1)
			d.metrics.Inc(MetricAuditDropped)
		}
		return
	}

	select {
	case d.queue <- event:
	case <-ctx.Done():
	case <-d.quit:
	}
}

// Close stops the worker after the queue is flushed. Safe to call more
// than once; Emit calls racing Close are either delivered or discarded.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.stop.Do(func() {
		close(d.quit)
		d.drained.Wait()
	})
}

// Dropped reports how many events were discarded because the queue was
// full.
func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
