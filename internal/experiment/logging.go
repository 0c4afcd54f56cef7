package experiment

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Logger wraps zap.Logger with experiment-specific structured logging.
type Logger struct {
	logger *zap.Logger
}

// NewLogger creates a new Logger. If logger is nil, uses a no-op logger.
func NewLogger(logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{logger: logger.Named("experiment")}
}

// With returns a logger carrying fields on every entry.
func (l *Logger) With(fields ...zap.Field) *Logger {
	if l == nil || l.logger == nil {
		return l
	}
	return &Logger{logger: l.logger.With(fields...)}
}

// SessionStarted logs the start of a session.
func (l *Logger) SessionStarted(ctx context.Context, sessionID string, items, rounds int) {
	if l == nil || l.logger == nil {
		return
	}
	fields := []zap.Field{
		zap.String("session_id", sessionID),
		zap.Int("items", items),
		zap.Int("rounds", rounds),
	}
	fields = append(fields, l.traceFields(ctx)...)
	l.logger.Info("session started", fields...)
}

// PhaseStarted logs a phase change.
func (l *Logger) PhaseStarted(ctx context.Context, phase Phase) {
	if l == nil || l.logger == nil {
		return
	}
	fields := append([]zap.Field{zap.String("phase", string(phase))}, l.traceFields(ctx)...)
	l.logger.Info("phase started", fields...)
}

// TrialStarted logs the start of a scored trial.
func (l *Logger) TrialStarted(ctx context.Context, round int, item *LearningItem, from PoolName) {
	if l == nil || l.logger == nil {
		return
	}
	fields := l.itemFields(ctx, item)
	fields = append(fields, zap.Int("round", round), zap.String("from", string(from)))
	l.logger.Debug("trial started", fields...)
}

// ArtifactDetected logs a contaminated sample window.
func (l *Logger) ArtifactDetected(ctx context.Context, phase Phase, err error, marker, samples, rolling int) {
	if l == nil || l.logger == nil {
		return
	}
	fields := []zap.Field{
		zap.Error(err),
		zap.String("phase", string(phase)),
		zap.Int("marker", marker),
		zap.Int("samples", samples),
		zap.Int("rolling_count", rolling),
	}
	fields = append(fields, l.traceFields(ctx)...)
	l.logger.Info("motion artifact detected", fields...)
}

// ClassifierUnavailable logs a failed prediction.
func (l *Logger) ClassifierUnavailable(ctx context.Context, item *LearningItem, err error) {
	if l == nil || l.logger == nil {
		return
	}
	fields := l.itemFields(ctx, item)
	fields = append(fields, zap.Error(err))
	l.logger.Warn("classifier unavailable, trial treated as warm-up", fields...)
}

// Decided logs the outcome of the decision rule.
func (l *Logger) Decided(ctx context.Context, item *LearningItem, confidence float64, d Decision) {
	if l == nil || l.logger == nil {
		return
	}
	fields := l.itemFields(ctx, item)
	fields = append(fields,
		zap.Float64("confidence", confidence),
		zap.Float64("last_confidence", d.LastConfidence),
		zap.Bool("judged", d.Judged),
	)
	if d.Judged {
		fields = append(fields, zap.Stringer("judge", d.Judge))
	}
	l.logger.Debug("trial scored", fields...)
}

// ItemRouted logs where a trial sent its item.
func (l *Logger) ItemRouted(ctx context.Context, item *LearningItem, from, to PoolName, correct bool) {
	if l == nil || l.logger == nil {
		return
	}
	fields := l.itemFields(ctx, item)
	fields = append(fields,
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.Bool("correct", correct),
	)
	l.logger.Info("item routed", fields...)
}

// ItemRestored logs an in-flight item returned to its pool by an abort.
func (l *Logger) ItemRestored(ctx context.Context, item *LearningItem, to PoolName) {
	if l == nil || l.logger == nil {
		return
	}
	fields := l.itemFields(ctx, item)
	fields = append(fields, zap.String("to", string(to)))
	l.logger.Warn("in-flight item restored", fields...)
}

// InstructionIssued logs a corrective instruction.
func (l *Logger) InstructionIssued(ctx context.Context, phase Phase, count int) {
	if l == nil || l.logger == nil {
		return
	}
	fields := []zap.Field{zap.String("phase", string(phase)), zap.Int("artifact_count", count)}
	fields = append(fields, l.traceFields(ctx)...)
	l.logger.Info("corrective instruction issued", fields...)
}

// TrainingTrial logs a calibration trial.
func (l *Logger) TrainingTrial(ctx context.Context, class, block int, label string, artifact bool) {
	if l == nil || l.logger == nil {
		return
	}
	fields := []zap.Field{
		zap.Int("class", class),
		zap.Int("block", block),
		zap.String("label", label),
		zap.Bool("artifact", artifact),
	}
	fields = append(fields, l.traceFields(ctx)...)
	l.logger.Debug("training trial", fields...)
}

// SessionAborted logs an aborted session.
func (l *Logger) SessionAborted(ctx context.Context, reason string) {
	if l == nil || l.logger == nil {
		return
	}
	fields := append([]zap.Field{zap.String("reason", reason)}, l.traceFields(ctx)...)
	l.logger.Warn("session aborted", fields...)
}

// SessionCompleted logs the session summary.
func (l *Logger) SessionCompleted(ctx context.Context, s SessionSummary) {
	if l == nil || l.logger == nil {
		return
	}
	fields := []zap.Field{
		zap.String("session_id", s.SessionID),
		zap.String("phase", string(s.Phase)),
		zap.Int("rounds", s.RoundsCompleted),
		zap.Int("study", s.Pools.Study),
		zap.Int("quiz", s.Pools.Quiz),
		zap.Int("done", s.Pools.Done),
		zap.Int("artifact_trials", s.ArtifactTrials),
	}
	fields = append(fields, l.traceFields(ctx)...)
	l.logger.Info("session finished", fields...)
}

// Error logs an error with context.
func (l *Logger) Error(ctx context.Context, msg string, err error, fields ...zap.Field) {
	if l == nil || l.logger == nil {
		return
	}
	allFields := l.traceFields(ctx)
	allFields = append(allFields, zap.Error(err))
	allFields = append(allFields, fields...)
	l.logger.Error(msg, allFields...)
}

func (l *Logger) itemFields(ctx context.Context, item *LearningItem) []zap.Field {
	fields := []zap.Field{
		zap.Int("source_index", item.SourceIndex),
		zap.Int("presentation_count", item.PresentationCount),
	}
	return append(fields, l.traceFields(ctx)...)
}

// traceFields extracts trace context from the context.
func (l *Logger) traceFields(ctx context.Context) []zap.Field {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return nil
	}
	sc := span.SpanContext()
	return []zap.Field{
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	}
}
