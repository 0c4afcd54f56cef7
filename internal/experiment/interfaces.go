package experiment

import (
	"context"

	"github.com/fyrsmithlabs/bioadapt/internal/sensor"
)

// Renderer shows steps to the subject.
//
// Present blocks until the step's duration has elapsed, or for response and
// checkpoint steps until the subject answers, and fills the step's response
// slot. It must return promptly once ctx is cancelled.
type Renderer interface {
	Present(ctx context.Context, step *Step) error
	Alert(ctx context.Context, message string) error
}

// HealthChecker reports the headset connection state.
type HealthChecker interface {
	Connected() bool
}

// MarkerSetter tags the sensor stream with the stimulus on screen.
type MarkerSetter interface {
	SetMarker(m int)
}

// ArtifactFilter decides whether a sample window is motion-contaminated.
type ArtifactFilter interface {
	HasMotionArtifact(entries []sensor.Entry) bool
}

// Classifier is trained on calibration trials and scores test trials.
type Classifier interface {
	Train(ctx context.Context, trial []sensor.Entry) error
	Predict(ctx context.Context, trial []sensor.Entry) (float64, error)
}

// Recorder writes the human-readable event log and the raw sample log.
type Recorder interface {
	Event(line string)
	TrialSamples(entries []sensor.Entry, sourceIndex int) error
	TrainingSamples(entries []sensor.Entry) error
}

// TrialSink receives finished trials and the session summary.
type TrialSink interface {
	RecordTrial(ctx context.Context, rec TrialRecord) error
	RecordSession(ctx context.Context, summary SessionSummary) error
}

// TrialSinks fans records out to several sinks. Every sink is called; the
// first error is returned.
type TrialSinks []TrialSink

// RecordTrial implements TrialSink.
func (s TrialSinks) RecordTrial(ctx context.Context, rec TrialRecord) error {
	var first error
	for _, sink := range s {
		if err := sink.RecordTrial(ctx, rec); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// RecordSession implements TrialSink.
func (s TrialSinks) RecordSession(ctx context.Context, summary SessionSummary) error {
	var first error
	for _, sink := range s {
		if err := sink.RecordSession(ctx, summary); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type nopRecorder struct{}

func (nopRecorder) Event(string) {}
func (nopRecorder) TrialSamples([]sensor.Entry, int) error { return nil }
func (nopRecorder) TrainingSamples([]sensor.Entry) error { return nil }

type nopSink struct{}

func (nopSink) RecordTrial(context.Context, TrialRecord) error { return nil }
func (nopSink) RecordSession(context.Context, SessionSummary) error { return nil }
