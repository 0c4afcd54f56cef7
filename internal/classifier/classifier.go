// Package classifier turns a trial's headset samples into a confidence score.
//
// Training trials carry their class in the entry markers (1 or 2). Class 1 is
// the reference class: Predict returns the estimated probability that a trial
// belongs to it.
package classifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/bioadapt/internal/sensor"
)

// Classes used by the training phase.
const (
	ClassOne = 1
	ClassTwo = 2
)

// ErrUnavailable means no confidence can be produced for the trial.
var ErrUnavailable = errors.New("classifier unavailable")

// Conditions that make the classifier unavailable.
var (
	ErrUntrained     = fmt.Errorf("%w: not enough training trials", ErrUnavailable)
	ErrMalformed     = fmt.Errorf("%w: malformed trial", ErrUnavailable)
	ErrUnknownClass  = errors.New("trial marker is not a training class")
	ErrMixedMarkers  = errors.New("trial entries carry different markers")
	ErrChannelLayout = fmt.Errorf("%w: channel count differs from training data", ErrUnavailable)
)

// Classifier is trained on labelled trials and scores unlabelled ones.
type Classifier interface {
	Train(ctx context.Context, trial []sensor.Entry) error
	Predict(ctx context.Context, trial []sensor.Entry) (float64, error)
}

// labelOf returns the class carried by every entry of trial.
func labelOf(trial []sensor.Entry) (int, error) {
	if len(trial) == 0 {
		return 0, ErrMalformed
	}
	label := trial[0].Marker
	for _, e := range trial[1:] {
		if e.Marker != label {
			return 0, ErrMixedMarkers
		}
	}
	if label != ClassOne && label != ClassTwo {
		return 0, fmt.Errorf("%w: %d", ErrUnknownClass, label)
	}
	return label, nil
}
