// Package logging builds the zap logger shared by every bioadapt command.
//
// The logger adds three things on top of zap:
//   - a Trace level below Debug
//   - session correlation pulled from the context (session.id, subject, phase,
//     trace ids)
//   - a redacting encoder that masks subject-identifying and credential-like
//     fields before they reach any output
//
// Outputs are stdout, a log file and an OpenTelemetry log bridge. The subject
// screen owns the terminal during a session, so `bioadapt run` sends logs to
// a file next to the experiment logs instead of stdout.
//
// Usage:
//
//	logger, err := logging.NewLogger(cfg, nil)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithSessionID(ctx, sessionID)
//	ctx = logging.WithSubject(ctx, settings.SubjectName)
//	logger.Info(ctx, "session started", zap.Int("rounds", settings.NumRounds))
//
// Redaction defaults cover `subject` and `subject_name`, so the subject name
// is written as [REDACTED] unless redaction is disabled. Experiment logs are
// copied off the lab machine; keep it on.
//
// Tests use NewTestLogger, which records every entry in memory.
package logging
