package experiment

import (
	"context"
	"time"
)

// StepKind tells the renderer what to draw.
type StepKind string

const (
	StepRest        StepKind = "rest"
	StepFixation    StepKind = "fixation"
	StepText        StepKind = "text"
	StepStimulus    StepKind = "stimulus"
	StepResponse    StepKind = "response"
	StepInstruction StepKind = "instruction"
	StepCheckpoint  StepKind = "checkpoint"
)

// Step is one screen of the session.
type Step struct {
	Kind StepKind
	Text string
	// Answer is the expected answer for stimulus and response steps.
	Answer   string
	Duration time.Duration
	// Delay is the masked interval shown after a stimulus display.
	Delay  time.Duration
	Marker int

	response *Response
	deploy   func()
	finish   func(ctx context.Context) error
}

// Response is the result slot of a response or checkpoint step.
type Response struct {
	Correct  bool
	Given    string
	Recorded bool
}

// Rest returns a blank screen step.
func Rest(d time.Duration) *Step {
	return &Step{Kind: StepRest, Duration: d}
}

// Fixation returns a fixation cross step.
func Fixation(d time.Duration) *Step {
	return &Step{Kind: StepFixation, Duration: d}
}

// Text returns a plain text step.
func Text(text string, d time.Duration) *Step {
	return &Step{Kind: StepText, Text: text, Duration: d}
}

// Instruction returns a corrective instruction step.
func Instruction(text string, d time.Duration) *Step {
	return &Step{Kind: StepInstruction, Text: text, Duration: d}
}

// Checkpoint returns a step that waits until the subject confirms.
func Checkpoint(text string) *Step {
	return &Step{Kind: StepCheckpoint, Text: text, response: &Response{}}
}

// Stimulus returns a marker-tagged stimulus display followed by a masked delay.
func Stimulus(prompt, answer string, display, delay time.Duration, marker int) *Step {
	return &Step{Kind: StepStimulus, Text: prompt, Answer: answer, Duration: display, Delay: delay, Marker: marker}
}

// ResponseCapture returns a step that asks for the answer to prompt and then
// shows feedback for d.
func ResponseCapture(prompt, answer string, d time.Duration) *Step {
	return &Step{Kind: StepResponse, Text: prompt, Answer: answer, Duration: d, response: &Response{}}
}

// OnDeploy sets the hook run right before the step is shown.
func (s *Step) OnDeploy(fn func()) *Step {
	s.deploy = fn
	return s
}

// OnFinish sets the hook run right after the step is shown.
func (s *Step) OnFinish(fn func(ctx context.Context) error) *Step {
	s.finish = fn
	return s
}

// WantsResponse reports whether the renderer must fill the response slot.
func (s *Step) WantsResponse() bool {
	return s.response != nil
}

// Respond records the subject's answer. It is a no-op for steps without a
// response slot.
func (s *Step) Respond(given string, correct bool) {
	if s.response == nil {
		return
	}
	s.response.Given = given
	s.response.Correct = correct
	s.response.Recorded = true
}

// Response returns the recorded response, if any.
func (s *Step) Response() (Response, bool) {
	if s.response == nil || !s.response.Recorded {
		return Response{}, false
	}
	return *s.response, true
}

// Total returns the time the step occupies the screen, excluding response
// wait time.
func (s *Step) Total() time.Duration {
	return s.Duration + s.Delay
}

// Deploy runs the deploy hook.
func (s *Step) Deploy() {
	if s.deploy != nil {
		s.deploy()
	}
}

// Finish runs the finish hook.
func (s *Step) Finish(ctx context.Context) error {
	if s.finish != nil {
		return s.finish(ctx)
	}
	return nil
}
