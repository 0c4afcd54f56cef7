package classifier

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/bioadapt/internal/sensor"
)

// synthTrial builds a trial whose channel amplitude depends on the class.
func synthTrial(rng *rand.Rand, marker int, amplitude float64) []sensor.Entry {
	out := make([]sensor.Entry, 64)
	for i := range out {
		ch := make([]float64, 4)
		for c := range ch {
			ch[c] = 4200 + amplitude*math.Sin(float64(i)/3+float64(c)) + rng.NormFloat64()
		}
		out[i] = sensor.Entry{Marker: marker, Channels: ch, RelativeTimestamp: float64(i) * 7.8}
	}
	return out
}

func TestKNN_PredictBeforeTraining(t *testing.T) {
	k := NewKNN(DefaultKNNConfig(), nil)
	rng := rand.New(rand.NewPCG(1, 2))

	_, err := k.Predict(context.Background(), synthTrial(rng, 0, 5))
	require.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, ErrUntrained)
	assert.False(t, k.Trained())
}

func TestKNN_SeparatesClasses(t *testing.T) {
	ctx := context.Background()
	k := NewKNN(KNNConfig{Neighbours: 3, MinTrialsPerClass: 3}, nil)
	rng := rand.New(rand.NewPCG(7, 9))

	for i := 0; i < 6; i++ {
		require.NoError(t, k.Train(ctx, synthTrial(rng, ClassOne, 2)))
		require.NoError(t, k.Train(ctx, synthTrial(rng, ClassTwo, 60)))
	}
	require.True(t, k.Trained())
	assert.Equal(t, map[int]int{ClassOne: 6, ClassTwo: 6}, k.Counts())

	low, err := k.Predict(ctx, synthTrial(rng, 0, 2))
	require.NoError(t, err)
	high, err := k.Predict(ctx, synthTrial(rng, 0, 60))
	require.NoError(t, err)

	assert.Greater(t, low, 0.5)
	assert.Less(t, high, 0.5)
	assert.GreaterOrEqual(t, low, 0.0)
	assert.LessOrEqual(t, low, 1.0)
}

func TestKNN_RefitsAfterMoreTraining(t *testing.T) {
	ctx := context.Background()
	k := NewKNN(KNNConfig{Neighbours: 1, MinTrialsPerClass: 1}, nil)
	rng := rand.New(rand.NewPCG(3, 4))

	require.NoError(t, k.Train(ctx, synthTrial(rng, ClassOne, 2)))
	require.NoError(t, k.Train(ctx, synthTrial(rng, ClassTwo, 60)))
	_, err := k.Predict(ctx, synthTrial(rng, 0, 2))
	require.NoError(t, err)

	require.NoError(t, k.Train(ctx, synthTrial(rng, ClassOne, 3)))
	_, err = k.Predict(ctx, synthTrial(rng, 0, 2))
	require.NoError(t, err)
}

func TestKNN_TrainRejectsBadTrials(t *testing.T) {
	ctx := context.Background()
	k := NewKNN(DefaultKNNConfig(), nil)
	rng := rand.New(rand.NewPCG(5, 6))

	assert.ErrorIs(t, k.Train(ctx, nil), ErrMalformed)
	assert.ErrorIs(t, k.Train(ctx, synthTrial(rng, 3, 2)), ErrUnknownClass)

	mixed := synthTrial(rng, ClassOne, 2)
	mixed[4].Marker = ClassTwo
	assert.ErrorIs(t, k.Train(ctx, mixed), ErrMixedMarkers)
}

func TestKNN_PredictMalformed(t *testing.T) {
	ctx := context.Background()
	k := NewKNN(KNNConfig{Neighbours: 1, MinTrialsPerClass: 1}, nil)
	rng := rand.New(rand.NewPCG(8, 8))
	require.NoError(t, k.Train(ctx, synthTrial(rng, ClassOne, 2)))
	require.NoError(t, k.Train(ctx, synthTrial(rng, ClassTwo, 60)))

	_, err := k.Predict(ctx, []sensor.Entry{{Channels: []float64{1}}})
	assert.ErrorIs(t, err, ErrUnavailable)

	narrow := []sensor.Entry{{Channels: []float64{1, 2}}, {Channels: []float64{2, 3}}}
	_, err = k.Predict(ctx, narrow)
	assert.ErrorIs(t, err, ErrChannelLayout)
}

func TestExtract(t *testing.T) {
	trial := []sensor.Entry{
		{Channels: []float64{1, 10}},
		{Channels: []float64{3, 10}},
	}
	f, err := Extract(trial)
	require.NoError(t, err)
	require.Len(t, f, 2*featuresPerChannel)

	assert.InDelta(t, math.Log1p(1), f[0], 1e-9) // variance of {1,3}
	assert.InDelta(t, math.Log1p(2), f[1], 1e-9)
	assert.InDelta(t, 2.0, f[2], 1e-9)
	assert.InDelta(t, 0.0, f[3], 1e-9)

	_, err = Extract([]sensor.Entry{{Channels: []float64{1}}, {Channels: []float64{1, 2}}})
	assert.ErrorIs(t, err, ErrMalformed)
}
