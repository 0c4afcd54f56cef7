package sensor

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedBatch is returned when a wire message cannot be decoded.
var ErrMalformedBatch = errors.New("malformed sample batch")

// Batch is the wire form of a group of raw samples.
type Batch struct {
	Samples []Sample `json:"samples"`
}

// Status is the wire form of a headset connection report.
type Status struct {
	Connected bool   `json:"connected"`
	Reason    string `json:"reason,omitempty"`
}

// EncodeBatch serialises samples for transport.
func EncodeBatch(samples []Sample) ([]byte, error) {
	return json.Marshal(Batch{Samples: samples})
}

// DecodeBatch parses a transported batch.
func DecodeBatch(data []byte) ([]Sample, error) {
	var b Batch
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBatch, err)
	}
	return b.Samples, nil
}

// SamplesFromEntries strips tagging from entries.
func SamplesFromEntries(entries []Entry) []Sample {
	out := make([]Sample, len(entries))
	for i, e := range entries {
		out[i] = Sample{
			Timestamp: e.Timestamp,
			Channels:  e.Channels,
			Motion:    e.Motion,
			GyroX:     e.GyroX,
			GyroY:     e.GyroY,
		}
	}
	return out
}
