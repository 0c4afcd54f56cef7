package runstore

import (
	"context"

	"github.com/fyrsmithlabs/bioadapt/internal/experiment"
)

// Report is a session summary with its trials and derived totals.
type Report struct {
	Summary experiment.SessionSummary `json:"summary" yaml:"summary"`
	Totals  Totals                    `json:"totals" yaml:"totals"`
	Trials  []experiment.TrialRecord  `json:"trials,omitempty" yaml:"trials,omitempty"`
}

// Totals counts trials by kind and outcome.
type Totals struct {
	Scored         int     `json:"scored" yaml:"scored"`
	Restudied      int     `json:"restudied" yaml:"restudied"`
	Training       int     `json:"training" yaml:"training"`
	Correct        int     `json:"correct" yaml:"correct"`
	Artifacts      int     `json:"artifacts" yaml:"artifacts"`
	Promoted       int     `json:"promoted" yaml:"promoted"`
	MeanConfidence float64 `json:"mean_confidence" yaml:"mean_confidence"`
}

// Load builds the report of session id. Trials are included when
// withTrials is set.
func (s *Store) Load(ctx context.Context, id string, withTrials bool) (Report, error) {
	summary, err := s.Session(ctx, id)
	if err != nil {
		return Report{}, err
	}
	trials, err := s.Trials(ctx, id)
	if err != nil {
		return Report{}, err
	}

	r := Report{Summary: summary, Totals: Summarize(trials)}
	if withTrials {
		r.Trials = trials
	}
	return r, nil
}

// Summarize totals a list of trial records.
func Summarize(trials []experiment.TrialRecord) Totals {
	var t Totals
	var confSum float64
	var confN int
	for _, rec := range trials {
		switch rec.Kind {
		case experiment.TrialKindScored:
			t.Scored++
			if rec.Correct != nil && *rec.Correct {
				t.Correct++
			}
			if rec.Artifact {
				t.Artifacts++
			}
			if rec.To == experiment.PoolDone {
				t.Promoted++
			}
			if rec.Confidence != nil {
				confSum += *rec.Confidence
				confN++
			}
		case experiment.TrialKindRestudy:
			t.Restudied++
		case experiment.TrialKindTraining:
			t.Training++
			if rec.Artifact {
				t.Artifacts++
			}
		}
	}
	if confN > 0 {
		t.MeanConfidence = confSum / float64(confN)
	}
	return t
}
