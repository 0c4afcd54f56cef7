package monitor

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fyrsmithlabs/bioadapt/internal/experiment"
)

const namespace = "bioadapt"

// registerCollectors exposes the session snapshot as Prometheus gauges. Each
// gauge reads a fresh snapshot on scrape.
func registerCollectors(reg prometheus.Registerer, source SessionSource) error {
	gauge := func(name, help string, labels prometheus.Labels, read func(experiment.Snapshot) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		}, func() float64 {
			return read(source.Snapshot())
		})
	}

	collectors := []prometheus.Collector{
		gauge("pool_items", "Items in a pool.", prometheus.Labels{"pool": string(experiment.PoolStudy)},
			func(s experiment.Snapshot) float64 { return float64(s.Pools.Study) }),
		gauge("pool_items", "Items in a pool.", prometheus.Labels{"pool": string(experiment.PoolQuiz)},
			func(s experiment.Snapshot) float64 { return float64(s.Pools.Quiz) }),
		gauge("pool_items", "Items in a pool.", prometheus.Labels{"pool": string(experiment.PoolDone)},
			func(s experiment.Snapshot) float64 { return float64(s.Pools.Done) }),
		gauge("items_in_flight", "Items drawn for a trial that has not finished.", nil,
			func(s experiment.Snapshot) float64 { return float64(s.InFlight) }),
		gauge("round", "Rounds completed in the test phase.", nil,
			func(s experiment.Snapshot) float64 { return float64(s.Round) }),
		gauge("rounds_total", "Configured number of rounds.", nil,
			func(s experiment.Snapshot) float64 { return float64(s.NumRounds) }),
		gauge("scored_trials", "Scored trials so far.", nil,
			func(s experiment.Snapshot) float64 { return float64(s.ScoredTrials) }),
		gauge("promotions", "Items moved to done.", nil,
			func(s experiment.Snapshot) float64 { return float64(s.Promotions) }),
		gauge("artifact_trials", "Scored trials with a motion artifact.", nil,
			func(s experiment.Snapshot) float64 { return float64(s.ArtifactTrials) }),
		gauge("classifier_misses", "Trials the classifier could not score.", nil,
			func(s experiment.Snapshot) float64 { return float64(s.ClassifierMisses) }),
		gauge("main_artifacts_rolling", "Artifacts since the last test-phase instruction.", nil,
			func(s experiment.Snapshot) float64 { return float64(s.MainArtifacts) }),
		gauge("training_artifacts", "Rejected training trials.", prometheus.Labels{"class": "1"},
			func(s experiment.Snapshot) float64 { return float64(s.ClassArtifacts[1]) }),
		gauge("training_artifacts", "Rejected training trials.", prometheus.Labels{"class": "2"},
			func(s experiment.Snapshot) float64 { return float64(s.ClassArtifacts[2]) }),
		gauge("last_confidence", "Confidence of the last scored trial.", nil,
			func(s experiment.Snapshot) float64 {
				if s.LastConfidence == nil {
					return 0
				}
				return *s.LastConfidence
			}),
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
