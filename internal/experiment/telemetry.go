package experiment

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	// InstrumentationName is the name used for OTEL instrumentation.
	InstrumentationName = "github.com/fyrsmithlabs/bioadapt/internal/experiment"
)

// Metrics provides OpenTelemetry metrics for the experiment package.
type Metrics struct {
	trialTotal        metric.Int64Counter
	routedTotal       metric.Int64Counter
	artifactTotal     metric.Int64Counter
	unavailableTotal  metric.Int64Counter
	trainingTotal     metric.Int64Counter
	instructionTotal  metric.Int64Counter
	confidence        metric.Float64Histogram
	presentationCount metric.Int64Histogram

	initialized bool
}

// NewMetrics creates a new Metrics instance with the provided meter.
// If meter is nil, uses the global meter provider.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(InstrumentationName)
	}

	m := &Metrics{}
	var err error

	m.trialTotal, err = meter.Int64Counter(
		"bioadapt.trial.total",
		metric.WithDescription("Scored trials by outcome"),
		metric.WithUnit("{trial}"),
	)
	if err != nil {
		return nil, err
	}

	m.routedTotal, err = meter.Int64Counter(
		"bioadapt.item.routed.total",
		metric.WithDescription("Items routed to a pool after a trial"),
		metric.WithUnit("{item}"),
	)
	if err != nil {
		return nil, err
	}

	m.artifactTotal, err = meter.Int64Counter(
		"bioadapt.artifact.total",
		metric.WithDescription("Trials discarded for motion artifacts"),
		metric.WithUnit("{trial}"),
	)
	if err != nil {
		return nil, err
	}

	m.unavailableTotal, err = meter.Int64Counter(
		"bioadapt.classifier.unavailable.total",
		metric.WithDescription("Predictions that failed and fell back to warm-up"),
		metric.WithUnit("{trial}"),
	)
	if err != nil {
		return nil, err
	}

	m.trainingTotal, err = meter.Int64Counter(
		"bioadapt.training.trial.total",
		metric.WithDescription("Calibration trials by class"),
		metric.WithUnit("{trial}"),
	)
	if err != nil {
		return nil, err
	}

	m.instructionTotal, err = meter.Int64Counter(
		"bioadapt.instruction.total",
		metric.WithDescription("Corrective instructions shown"),
		metric.WithUnit("{instruction}"),
	)
	if err != nil {
		return nil, err
	}

	m.confidence, err = meter.Float64Histogram(
		"bioadapt.confidence",
		metric.WithDescription("Classifier confidence per scored trial"),
		metric.WithUnit("1"),
		metric.WithExplicitBucketBoundaries(0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0),
	)
	if err != nil {
		return nil, err
	}

	m.presentationCount, err = meter.Int64Histogram(
		"bioadapt.item.presentations",
		metric.WithDescription("Presentation count of items when promoted"),
		metric.WithUnit("{presentation}"),
		metric.WithExplicitBucketBoundaries(4, 5, 6, 8, 10, 15, 20),
	)
	if err != nil {
		return nil, err
	}

	m.initialized = true
	return m, nil
}

// RecordTrial records a scored trial outcome.
func (m *Metrics) RecordTrial(ctx context.Context, outcome string) {
	if m == nil || !m.initialized {
		return
	}
	m.trialTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordRouted records an item moving to a pool.
func (m *Metrics) RecordRouted(ctx context.Context, from, to PoolName) {
	if m == nil || !m.initialized {
		return
	}
	m.routedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", string(from)),
		attribute.String("to", string(to)),
	))
}

// RecordArtifact records a contaminated window.
func (m *Metrics) RecordArtifact(ctx context.Context, phase Phase) {
	if m == nil || !m.initialized {
		return
	}
	m.artifactTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("phase", string(phase))))
}

// RecordClassifierUnavailable records a failed prediction.
func (m *Metrics) RecordClassifierUnavailable(ctx context.Context) {
	if m == nil || !m.initialized {
		return
	}
	m.unavailableTotal.Add(ctx, 1)
}

// RecordTraining records a calibration trial.
func (m *Metrics) RecordTraining(ctx context.Context, class int, artifact bool) {
	if m == nil || !m.initialized {
		return
	}
	m.trainingTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.Int("class", class),
		attribute.Bool("artifact", artifact),
	))
}

// RecordInstruction records a corrective instruction.
func (m *Metrics) RecordInstruction(ctx context.Context, phase Phase) {
	if m == nil || !m.initialized {
		return
	}
	m.instructionTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("phase", string(phase))))
}

// RecordConfidence records a classifier score.
func (m *Metrics) RecordConfidence(ctx context.Context, confidence float64) {
	if m == nil || !m.initialized {
		return
	}
	m.confidence.Record(ctx, confidence)
}

// RecordPromotion records the presentation count of a promoted item.
func (m *Metrics) RecordPromotion(ctx context.Context, presentations int) {
	if m == nil || !m.initialized {
		return
	}
	m.presentationCount.Record(ctx, int64(presentations))
}

// Tracer returns a tracer for the experiment package.
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}

// StartTrialSpan starts a span for one trial.
func StartTrialSpan(ctx context.Context, name string, sessionID string, marker int) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, trace.WithAttributes(
		attribute.String("experiment.session_id", sessionID),
		attribute.Int("experiment.marker", marker),
	))
}
