package datalog

import (
	"errors"

	"github.com/fyrsmithlabs/bioadapt/internal/sensor"
)

// Sink is the recording contract shared by Files and InfluxSink.
type Sink interface {
	Event(line string)
	TrialSamples(entries []sensor.Entry, sourceIndex int) error
	TrainingSamples(entries []sensor.Entry) error
}

// Multi fans every call out to all sinks.
type Multi []Sink

// Event implements Sink.
func (m Multi) Event(line string) {
	for _, s := range m {
		s.Event(line)
	}
}

// TrialSamples implements Sink. Every sink is written; errors are joined.
func (m Multi) TrialSamples(entries []sensor.Entry, sourceIndex int) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.TrialSamples(entries, sourceIndex))
	}
	return errors.Join(errs...)
}

// TrainingSamples implements Sink.
func (m Multi) TrainingSamples(entries []sensor.Entry) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.TrainingSamples(entries))
	}
	return errors.Join(errs...)
}
