package sensor

import (
	"strconv"
	"strings"
	"time"
)

// Sample is one raw headset reading before marker tagging.
type Sample struct {
	Timestamp time.Time `json:"ts"`
	Channels  []float64 `json:"ch"`
	// Motion is set by the headset when it flags the reading as motion-corrupted.
	Motion bool `json:"motion,omitempty"`
	GyroX  int  `json:"gx,omitempty"`
	GyroY  int  `json:"gy,omitempty"`
}

// Entry is a tagged sample.
type Entry struct {
	Timestamp time.Time
	// RelativeTimestamp is milliseconds since the current marker was set.
	RelativeTimestamp float64
	Channels          []float64
	Marker            int
	Motion            bool
	GyroX             int
	GyroY             int
}

// CSV renders the entry as a comma-separated line:
// unix millis, relative ms, marker, gyro x, gyro y, motion, channels...
func (e Entry) CSV() string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(e.Timestamp.UnixMilli(), 10))
	b.WriteString(", ")
	b.WriteString(strconv.FormatFloat(e.RelativeTimestamp, 'f', 1, 64))
	b.WriteString(", ")
	b.WriteString(strconv.Itoa(e.Marker))
	b.WriteString(", ")
	b.WriteString(strconv.Itoa(e.GyroX))
	b.WriteString(", ")
	b.WriteString(strconv.Itoa(e.GyroY))
	b.WriteString(", ")
	if e.Motion {
		b.WriteString("1")
	} else {
		b.WriteString("0")
	}
	for _, v := range e.Channels {
		b.WriteString(", ")
		b.WriteString(strconv.FormatFloat(v, 'f', 4, 64))
	}
	return b.String()
}

// Window returns the entries whose RelativeTimestamp does not exceed limit.
// The result shares no backing array with entries.
func Window(entries []Entry, limit time.Duration) []Entry {
	ms := float64(limit) / float64(time.Millisecond)
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.RelativeTimestamp <= ms {
			out = append(out, e)
		}
	}
	return out
}
