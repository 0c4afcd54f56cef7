// Package experiment runs the biosignal-adaptive learning experiment.
//
// The experiment shows a subject learning items, records headset samples
// time-locked to each stimulus, asks a classifier for a confidence score and
// uses the drop in confidence across repeated presentations to decide when an
// item is mastered.
//
// # Core Concepts
//
// LearningItem: a prompt/answer pair. Every item lives in exactly one of three
// pools at a round boundary: study (awaiting exposure), quiz (eligible for a
// scored trial) and done (judged mastered). Items are drawn uniformly at
// random from a pool.
//
// Step: one screen the renderer shows for a fixed duration (rest, fixation,
// stimulus, response capture, instruction, checkpoint). A step may carry a
// deploy hook (run right before it is shown), a finish hook (run right after)
// and a response slot filled by the renderer.
//
// Sequence: a lazy, non-restartable producer of steps. TrialRunner and
// TrainingBlockRunner are explicit state machines implementing Sequence; the
// Scheduler chains them into a whole session.
//
// Stepper: drives a Sequence against a Renderer on one goroutine. It checks the
// headset connection before every step and aborts the sequence, alerting the
// subject, when the connection drops. Aborting restores any item in flight to
// the pool it was drawn from.
//
// # Decision Rule
//
// The first three scored presentations of an item only record its confidence.
// From the fourth on, a drop of more than the promotion threshold (0.4) below
// the recorded confidence judges the item PROMOTE; otherwise the judge is
// RETAIN and the recorded confidence moves to the new value. A correct answer
// under PROMOTE moves the item to done, under RETAIN to quiz. An incorrect
// answer always sends it back to study. Trials whose samples contain a motion
// artifact skip classification and route on correctness alone.
//
// # Usage
//
//	sched, err := experiment.NewScheduler(settings, experiment.Dependencies{
//	    Marker:      source,
//	    Accumulator: acc,
//	    Filter:      detector,
//	    Classifier:  knn,
//	    Recorder:    log,
//	})
//	if err != nil {
//	    return err
//	}
//	seq, err := sched.Session(ctx, stimuli)
//	if err != nil {
//	    return err
//	}
//	stepper := experiment.NewStepper(renderer, watcher)
//	runErr := stepper.Run(ctx, seq)
//	summary := sched.Close(ctx, runErr)
package experiment
