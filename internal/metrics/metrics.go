// Package metrics exposes the audit pipeline's counters and gauges via
// go.opentelemetry.io/otel/metric. The teacher repo already carries
// otel/otel/metric/otel/trace as an (indirect) dependency; this package
// is the first thing in the tree to use the metric API directly rather
// than only pull it in transitively via grpc instrumentation.
package metrics

import (
	"context"

	"go.opentelemetry.io/otel/metric"
)

// Recorder exposes the counters and gauges every pipeline component
// reports against. Construct one from a metric.Meter obtained from the
// process-wide MeterProvider (otel.GetMeterProvider().Meter(...)).
type Recorder struct {
	eventsCaptured   metric.Int64Counter
	eventsDropped    metric.Int64Counter
	queueDepth       metric.Int64UpDownCounter
	segmentsSealed   metric.Int64Counter
	monitorIssues    metric.Int64Counter
	exportBytes      metric.Int64Counter
	archiveBytes     metric.Int64Counter
	archiveObjects   metric.Int64Counter
}

// New builds a Recorder registered against meter. Instrument creation
// errors are not expected from a correctly configured SDK and are
// surfaced immediately rather than deferred to first use.
func New(meter metric.Meter) (*Recorder, error) {
	var r Recorder
	var err error

	if r.eventsCaptured, err = meter.Int64Counter("audit.events.captured",
		metric.WithDescription("events accepted into the capture queue")); err != nil {
		return nil, err
	}
	if r.eventsDropped, err = meter.Int64Counter("audit.events.dropped",
		metric.WithDescription("events dropped by the configured overflow policy")); err != nil {
		return nil, err
	}
	if r.queueDepth, err = meter.Int64UpDownCounter("audit.queue.depth",
		metric.WithDescription("current capture queue depth")); err != nil {
		return nil, err
	}
	if r.segmentsSealed, err = meter.Int64Counter("audit.segments.sealed",
		metric.WithDescription("segments sealed by the sequencer")); err != nil {
		return nil, err
	}
	if r.monitorIssues, err = meter.Int64Counter("audit.monitor.issues",
		metric.WithDescription("integrity issues reported by the monitor")); err != nil {
		return nil, err
	}
	if r.exportBytes, err = meter.Int64Counter("audit.export.bytes",
		metric.WithDescription("bytes written by exporters")); err != nil {
		return nil, err
	}
	if r.archiveBytes, err = meter.Int64Counter("audit.archive.bytes",
		metric.WithDescription("bytes written to archive objects")); err != nil {
		return nil, err
	}
	if r.archiveObjects, err = meter.Int64Counter("audit.archive.objects",
		metric.WithDescription("archive objects successfully promoted")); err != nil {
		return nil, err
	}

	return &r, nil
}

func (r *Recorder) EventCaptured(ctx context.Context) {
	if r == nil {
		return
	}
	r.eventsCaptured.Add(ctx, 1)
}

func (r *Recorder) EventDropped(ctx context.Context, policy string) {
	if r == nil {
		return
	}
	r.eventsDropped.Add(ctx, 1, metric.WithAttributes(policyAttr(policy)))
}

func (r *Recorder) QueueDepth(ctx context.Context, delta int64) {
	if r == nil {
		return
	}
	r.queueDepth.Add(ctx, delta)
}

func (r *Recorder) SegmentSealed(ctx context.Context) {
	if r == nil {
		return
	}
	r.segmentsSealed.Add(ctx, 1)
}

func (r *Recorder) MonitorIssue(ctx context.Context, severity string) {
	if r == nil {
		return
	}
	r.monitorIssues.Add(ctx, 1, metric.WithAttributes(severityAttr(severity)))
}

func (r *Recorder) ExportBytes(ctx context.Context, n int64) {
	if r == nil {
		return
	}
	r.exportBytes.Add(ctx, n)
}

func (r *Recorder) ArchiveBytes(ctx context.Context, n int64) {
	if r == nil {
		return
	}
	r.archiveBytes.Add(ctx, n)
}

func (r *Recorder) ArchiveObjectPromoted(ctx context.Context) {
	if r == nil {
		return
	}
	r.archiveObjects.Add(ctx, 1)
}
