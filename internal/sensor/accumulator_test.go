package sensor

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tagged(marker int, n int) []Entry {
	out := make([]Entry, n)
	for i := range out {
		out[i] = Entry{Marker: marker, RelativeTimestamp: float64(i)}
	}
	return out
}

func TestAccumulator_IgnoresWhenDisarmed(t *testing.T) {
	acc := NewAccumulator()
	acc.Ingest(tagged(3, 4))
	assert.Empty(t, acc.Drain())
}

func TestAccumulator_Scoping(t *testing.T) {
	acc := NewAccumulator()

	// before arming
	acc.Ingest(tagged(5, 2))

	acc.Arm(5)
	acc.Ingest(tagged(5, 3))
	acc.Ingest(tagged(4, 2))
	acc.Ingest([]Entry{{Marker: 5}, {Marker: NoMarker}})
	acc.Disarm()

	// after disarming
	acc.Ingest(tagged(5, 7))

	got := acc.Drain()
	require.Len(t, got, 4)
	for _, e := range got {
		assert.Equal(t, 5, e.Marker)
	}
	assert.Empty(t, acc.Drain(), "drain must clear the buffer")
}

func TestAccumulator_ArmDiscardsStaleBuffer(t *testing.T) {
	acc := NewAccumulator()
	acc.Arm(1)
	acc.Ingest(tagged(1, 3))

	acc.Arm(2)
	acc.Ingest(tagged(2, 1))
	acc.Disarm()

	got := acc.Drain()
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Marker)
}

func TestAccumulator_ConcurrentIngest(t *testing.T) {
	acc := NewAccumulator()
	acc.Arm(9)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				acc.OnData(tagged(9, 2))
			}
		}()
	}
	wg.Wait()
	acc.Disarm()

	assert.Len(t, acc.Drain(), 8*100*2)
}

func TestWindow(t *testing.T) {
	entries := []Entry{
		{RelativeTimestamp: 0},
		{RelativeTimestamp: 250},
		{RelativeTimestamp: 500},
		{RelativeTimestamp: 500.5},
		{RelativeTimestamp: 900},
	}
	got := Window(entries, 500*time.Millisecond)
	assert.Len(t, got, 3)
}
