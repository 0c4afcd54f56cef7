package experiment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, seq Sequence) []string {
	t.Helper()
	var texts []string
	for {
		step, err := seq.Next(context.Background())
		if errors.Is(err, ErrSequenceDone) {
			return texts
		}
		require.NoError(t, err)
		texts = append(texts, step.Text)
	}
}

func TestChain_RunsSegmentsInOrder(t *testing.T) {
	var built []string
	seg := func(name string, texts ...string) Segment {
		return func(context.Context) (Sequence, error) {
			built = append(built, name)
			steps := make([]*Step, 0, len(texts))
			for _, text := range texts {
				steps = append(steps, Text(text, 0))
			}
			return Steps(steps...), nil
		}
	}

	seq := Chain(
		seg("a", "1", "2"),
		func(context.Context) (Sequence, error) { return nil, nil },
		seg("b"),
		seg("c", "3"),
	)

	assert.Equal(t, []string{"1", "2", "3"}, drain(t, seq))
	assert.Equal(t, []string{"a", "b", "c"}, built)
}

func TestChain_BuildsLazily(t *testing.T) {
	var built bool
	seq := Chain(
		Fixed(Text("first", 0)),
		func(context.Context) (Sequence, error) {
			built = true
			return Steps(Text("second", 0)), nil
		},
	)

	step, err := seq.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first", step.Text)
	assert.False(t, built)
}

func TestChain_SegmentError(t *testing.T) {
	boom := errors.New("boom")
	seq := Chain(func(context.Context) (Sequence, error) { return nil, boom })

	_, err := seq.Next(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestChain_AbortPropagates(t *testing.T) {
	inner := Steps(Text("a", 0), Text("b", 0))
	seq := Chain(func(context.Context) (Sequence, error) { return inner, nil })

	_, err := seq.Next(context.Background())
	require.NoError(t, err)

	seq.Abort()
	_, err = seq.Next(context.Background())
	require.ErrorIs(t, err, ErrSequenceAborted)
	_, err = inner.Next(context.Background())
	require.ErrorIs(t, err, ErrSequenceAborted)
}

func TestStep_ResponseSlot(t *testing.T) {
	text := Text("hello", 0)
	text.Respond("x", true)
	_, ok := text.Response()
	assert.False(t, ok)
	assert.False(t, text.WantsResponse())

	capture := ResponseCapture("dog", "perro", 0)
	assert.True(t, capture.WantsResponse())
	_, ok = capture.Response()
	assert.False(t, ok)

	capture.Respond("perro", true)
	resp, ok := capture.Response()
	require.True(t, ok)
	assert.True(t, resp.Correct)
	assert.Equal(t, "perro", resp.Given)
}
