package logging

import (
	"context"
	"fmt"
	"regexp"
	"unicode/utf8"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const maxIDLen = 128

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

type (
	sessionCtxKey struct{}
	subjectCtxKey struct{}
	phaseCtxKey   struct{}
	loggerCtxKey  struct{}
)

// ContextFields extracts correlation fields from ctx.
func ContextFields(ctx context.Context) []zap.Field {
	if ctx == nil {
		return nil
	}
	fields := make([]zap.Field, 0, 6)

	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if id := SessionIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("session.id", id))
	}
	if subject := SubjectFromContext(ctx); subject != "" {
		fields = append(fields, zap.String("subject", subject))
	}
	if phase := PhaseFromContext(ctx); phase != "" {
		fields = append(fields, zap.String("phase", phase))
	}
	return fields
}

func validateID(id string) error {
	switch {
	case id == "":
		return fmt.Errorf("session id cannot be empty")
	case !utf8.ValidString(id):
		return fmt.Errorf("session id contains invalid UTF-8")
	case len(id) > maxIDLen:
		return fmt.Errorf("session id exceeds max length %d", maxIDLen)
	case !idPattern.MatchString(id):
		return fmt.Errorf("session id contains invalid characters (must be alphanumeric, hyphen, underscore)")
	}
	return nil
}

// WithSessionID adds the session id to ctx. It panics on an id that would
// break log parsing; session ids are generated, never typed.
func WithSessionID(ctx context.Context, id string) context.Context {
	if err := validateID(id); err != nil {
		panic("logging: " + err.Error())
	}
	return context.WithValue(ctx, sessionCtxKey{}, id)
}

// SessionIDFromContext returns the session id, or "".
func SessionIDFromContext(ctx context.Context) string {
	s, _ := ctx.Value(sessionCtxKey{}).(string)
	return s
}

// WithSubject adds the subject name to ctx. It is logged under the
// "subject" key, which is redacted by default.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectCtxKey{}, subject)
}

// SubjectFromContext returns the subject name, or "".
func SubjectFromContext(ctx context.Context) string {
	s, _ := ctx.Value(subjectCtxKey{}).(string)
	return s
}

// WithPhase adds the session phase to ctx.
func WithPhase(ctx context.Context, phase string) context.Context {
	return context.WithValue(ctx, phaseCtxKey{}, phase)
}

// PhaseFromContext returns the session phase, or "".
func PhaseFromContext(ctx context.Context) string {
	s, _ := ctx.Value(phaseCtxKey{}).(string)
	return s
}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext returns the stored logger, or a no-op logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok && l != nil {
		return l
	}
	return Nop()
}
