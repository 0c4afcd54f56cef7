package artifact

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fyrsmithlabs/bioadapt/internal/sensor"
)

func steady(n int) []sensor.Entry {
	out := make([]sensor.Entry, n)
	for i := range out {
		out[i] = sensor.Entry{Channels: []float64{4200, 4210}}
	}
	return out
}

func TestDetector_Rules(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		entries  func() []sensor.Entry
		want     Reason
	}{
		{
			name:     "clean window",
			settings: DefaultSettings(),
			entries:  func() []sensor.Entry { return steady(16) },
			want:     ReasonNone,
		},
		{
			name:     "motion flag",
			settings: DefaultSettings(),
			entries: func() []sensor.Entry {
				e := steady(16)
				e[3].Motion = true
				return e
			},
			want: ReasonMotion,
		},
		{
			name: "motion flag tolerated",
			settings: func() Settings {
				s := DefaultSettings()
				s.MaxFlagged = 1
				return s
			}(),
			entries: func() []sensor.Entry {
				e := steady(16)
				e[3].Motion = true
				return e
			},
			want: ReasonNone,
		},
		{
			name:     "gyro jump",
			settings: DefaultSettings(),
			entries: func() []sensor.Entry {
				e := steady(8)
				e[5].GyroX = 30
				return e
			},
			want: ReasonGyro,
		},
		{
			name:     "amplitude swing",
			settings: DefaultSettings(),
			entries: func() []sensor.Entry {
				e := steady(8)
				e[2].Channels = []float64{4600, 4210}
				return e
			},
			want: ReasonAmplitude,
		},
		{
			name: "amplitude swing on unchecked channel",
			settings: func() Settings {
				s := DefaultSettings()
				s.Channels = []int{1}
				return s
			}(),
			entries: func() []sensor.Entry {
				e := steady(8)
				e[2].Channels = []float64{4600, 4210}
				return e
			},
			want: ReasonNone,
		},
		{
			name:     "disabled",
			settings: Settings{},
			entries: func() []sensor.Entry {
				e := steady(8)
				e[0].Motion = true
				return e
			},
			want: ReasonNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDetector(tt.settings)
			report := d.Detect(tt.entries())
			assert.Equal(t, tt.want, report.Reason)
			assert.Equal(t, tt.want != ReasonNone, d.HasMotionArtifact(tt.entries()))
		})
	}
}

func TestDetector_EmptyWindowIsClean(t *testing.T) {
	assert.False(t, NewDetector(DefaultSettings()).HasMotionArtifact(nil))
}
