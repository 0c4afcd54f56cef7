package experiment

import (
	"context"
	"errors"
)

// Sequence lazily produces the steps of a session segment.
//
// Next returns ErrSequenceDone when exhausted. Abort abandons the sequence and
// undoes any uncommitted state; Next returns ErrSequenceAborted afterwards.
type Sequence interface {
	Next(ctx context.Context) (*Step, error)
	Abort()
}

// stepList is a fixed sequence of steps.
type stepList struct {
	steps   []*Step
	aborted bool
}

// Steps returns a sequence over the given steps.
func Steps(steps ...*Step) Sequence {
	return &stepList{steps: steps}
}

func (l *stepList) Next(context.Context) (*Step, error) {
	if l.aborted {
		return nil, ErrSequenceAborted
	}
	if len(l.steps) == 0 {
		return nil, ErrSequenceDone
	}
	s := l.steps[0]
	l.steps = l.steps[1:]
	return s, nil
}

func (l *stepList) Abort() { l.aborted = true }

// Segment builds a sequence when the chain reaches it.
type Segment func(ctx context.Context) (Sequence, error)

// chain runs segments one after another. Each segment is built only when the
// previous one is exhausted, so it sees the state the earlier ones left.
type chain struct {
	segments []Segment
	current  Sequence
	aborted  bool
}

// Chain returns a sequence that runs segments in order.
func Chain(segments ...Segment) Sequence {
	return &chain{segments: segments}
}

func (c *chain) Next(ctx context.Context) (*Step, error) {
	for {
		if c.aborted {
			return nil, ErrSequenceAborted
		}
		if c.current == nil {
			if len(c.segments) == 0 {
				return nil, ErrSequenceDone
			}
			seg := c.segments[0]
			c.segments = c.segments[1:]
			seq, err := seg(ctx)
			if err != nil {
				return nil, err
			}
			if seq == nil {
				continue
			}
			c.current = seq
		}

		step, err := c.current.Next(ctx)
		if errors.Is(err, ErrSequenceDone) {
			c.current = nil
			continue
		}
		return step, err
	}
}

func (c *chain) Abort() {
	if c.aborted {
		return
	}
	c.aborted = true
	if c.current != nil {
		c.current.Abort()
	}
}

// Fixed adapts a step list to a Segment.
func Fixed(steps ...*Step) Segment {
	return func(context.Context) (Sequence, error) {
		return Steps(steps...), nil
	}
}
