// Package artifact decides whether a window of headset samples is
// contaminated by motion.
package artifact

import (
	"github.com/fyrsmithlabs/bioadapt/internal/sensor"
)

// Reason names the rule that flagged a window.
type Reason string

const (
	ReasonNone      Reason = ""
	ReasonMotion    Reason = "motion_flag"
	ReasonGyro      Reason = "gyro"
	ReasonAmplitude Reason = "amplitude"
)

// Settings configures the detection rules.
type Settings struct {
	Enabled bool `koanf:"enabled"`
	// UseMotionFlag honours the per-sample motion flag set by the headset.
	UseMotionFlag bool `koanf:"use_motion_flag"`
	// GyroThreshold flags a window when the gyro moves more than this between
	// consecutive samples. Zero disables the rule.
	GyroThreshold int `koanf:"gyro_threshold" validate:"gte=0"`
	// AmplitudeThreshold flags a window when any checked channel swings more
	// than this peak-to-peak. Zero disables the rule.
	AmplitudeThreshold float64 `koanf:"amplitude_threshold" validate:"gte=0"`
	// Channels restricts the amplitude rule. Empty checks every channel.
	Channels []int `koanf:"channels" validate:"dive,gte=0"`
	// MaxFlagged is the number of flagged samples tolerated before the
	// motion and gyro rules fire.
	MaxFlagged int `koanf:"max_flagged" validate:"gte=0"`
}

// DefaultSettings returns the rules used for consumer headsets.
func DefaultSettings() Settings {
	return Settings{
		Enabled:            true,
		UseMotionFlag:      true,
		GyroThreshold:      12,
		AmplitudeThreshold: 250,
	}
}

// Report describes a detection result.
type Report struct {
	Artifact bool
	Reason   Reason
	Flagged  int
}

// Detector applies Settings to sample windows. It holds no mutable state and
// is safe for concurrent use.
type Detector struct {
	s Settings
}

// NewDetector creates a detector.
func NewDetector(s Settings) *Detector {
	return &Detector{s: s}
}

// Settings returns the active rules.
func (d *Detector) Settings() Settings { return d.s }

// HasMotionArtifact reports whether entries are contaminated.
func (d *Detector) HasMotionArtifact(entries []sensor.Entry) bool {
	return d.Detect(entries).Artifact
}

// Detect evaluates every rule and returns the first that fires.
func (d *Detector) Detect(entries []sensor.Entry) Report {
	if !d.s.Enabled || len(entries) == 0 {
		return Report{}
	}

	if d.s.UseMotionFlag {
		flagged := 0
		for _, e := range entries {
			if e.Motion {
				flagged++
			}
		}
		if flagged > d.s.MaxFlagged {
			return Report{Artifact: true, Reason: ReasonMotion, Flagged: flagged}
		}
	}

	if d.s.GyroThreshold > 0 {
		flagged := 0
		for i := 1; i < len(entries); i++ {
			dx := abs(entries[i].GyroX - entries[i-1].GyroX)
			dy := abs(entries[i].GyroY - entries[i-1].GyroY)
			if dx > d.s.GyroThreshold || dy > d.s.GyroThreshold {
				flagged++
			}
		}
		if flagged > d.s.MaxFlagged {
			return Report{Artifact: true, Reason: ReasonGyro, Flagged: flagged}
		}
	}

	if d.s.AmplitudeThreshold > 0 {
		for _, ch := range d.channels(entries) {
			if peakToPeak(entries, ch) > d.s.AmplitudeThreshold {
				return Report{Artifact: true, Reason: ReasonAmplitude, Flagged: 1}
			}
		}
	}

	return Report{}
}

func (d *Detector) channels(entries []sensor.Entry) []int {
	if len(d.s.Channels) > 0 {
		return d.s.Channels
	}
	n := 0
	for _, e := range entries {
		if len(e.Channels) > n {
			n = len(e.Channels)
		}
	}
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func peakToPeak(entries []sensor.Entry, ch int) float64 {
	seen := false
	var lo, hi float64
	for _, e := range entries {
		if ch >= len(e.Channels) {
			continue
		}
		v := e.Channels[ch]
		if !seen {
			lo, hi, seen = v, v, true
			continue
		}
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return hi - lo
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
