package classifier

import (
	"math"

	"github.com/fyrsmithlabs/bioadapt/internal/sensor"
)

// featuresPerChannel is the width of each channel's block in a feature vector.
const featuresPerChannel = 3

// Extract computes log-variance, log mean absolute first difference and
// mean for every channel. It returns ErrMalformed when the trial is too short
// or its samples disagree on channel count.
func Extract(trial []sensor.Entry) ([]float64, error) {
	if len(trial) < 2 {
		return nil, ErrMalformed
	}
	channels := len(trial[0].Channels)
	if channels == 0 {
		return nil, ErrMalformed
	}
	for _, e := range trial {
		if len(e.Channels) != channels {
			return nil, ErrMalformed
		}
	}

	n := float64(len(trial))
	out := make([]float64, 0, channels*featuresPerChannel)
	for c := 0; c < channels; c++ {
		var sum, sumSq, diff float64
		for i, e := range trial {
			v := e.Channels[c]
			sum += v
			sumSq += v * v
			if i > 0 {
				diff += math.Abs(v - trial[i-1].Channels[c])
			}
		}
		mean := sum / n
		variance := sumSq/n - mean*mean
		if variance < 0 {
			variance = 0
		}
		out = append(out,
			math.Log1p(variance),
			math.Log1p(diff/(n-1)),
			mean,
		)
	}
	return out, nil
}

// scaler standardises feature vectors with statistics from the training set.
type scaler struct {
	mean []float64
	std  []float64
}

func fitScaler(rows [][]float64) scaler {
	if len(rows) == 0 {
		return scaler{}
	}
	width := len(rows[0])
	s := scaler{mean: make([]float64, width), std: make([]float64, width)}
	for _, r := range rows {
		for i, v := range r {
			s.mean[i] += v
		}
	}
	for i := range s.mean {
		s.mean[i] /= float64(len(rows))
	}
	for _, r := range rows {
		for i, v := range r {
			d := v - s.mean[i]
			s.std[i] += d * d
		}
	}
	for i := range s.std {
		s.std[i] = math.Sqrt(s.std[i] / float64(len(rows)))
		if s.std[i] < 1e-9 {
			s.std[i] = 1
		}
	}
	return s
}

// apply returns the standardised, unit-length vector as float32 for the
// vector store. A small bias term keeps an all-mean vector from having zero
// length.
func (s scaler) apply(v []float64) []float32 {
	z := make([]float64, len(v)+1)
	var norm float64
	for i, x := range v {
		z[i] = (x - s.mean[i]) / s.std[i]
		norm += z[i] * z[i]
	}
	z[len(v)] = 1e-3
	norm = math.Sqrt(norm + 1e-6)

	out := make([]float32, len(z))
	for i, x := range z {
		out[i] = float32(x / norm)
	}
	return out
}
