package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/bioadapt/internal/artifact"
	"github.com/fyrsmithlabs/bioadapt/internal/classifier"
	"github.com/fyrsmithlabs/bioadapt/internal/config"
	"github.com/fyrsmithlabs/bioadapt/internal/datalog"
	"github.com/fyrsmithlabs/bioadapt/internal/display"
	"github.com/fyrsmithlabs/bioadapt/internal/experiment"
	"github.com/fyrsmithlabs/bioadapt/internal/logging"
	"github.com/fyrsmithlabs/bioadapt/internal/monitor"
	"github.com/fyrsmithlabs/bioadapt/internal/runstore"
	"github.com/fyrsmithlabs/bioadapt/internal/sensor"
	"github.com/fyrsmithlabs/bioadapt/internal/stimuli"
	"github.com/fyrsmithlabs/bioadapt/internal/telemetry"
)

// ErrHeadsetTimeout is returned when the headset never reports connected.
var ErrHeadsetTimeout = errors.New("headset did not connect")

// streamSource is a headset stream that runs until ctx ends.
type streamSource interface {
	sensor.Source
	Run(ctx context.Context) error
}

// sessionOptions select the renderer and test hooks.
type sessionOptions struct {
	// Headless presents without a screen, answering at HeadlessAccuracy.
	Headless         bool
	HeadlessAccuracy float64
	// ConnectTimeout bounds the wait for the first headset connect.
	ConnectTimeout time.Duration
	// Now stamps the log file names.
	Now time.Time
}

// session is one wired experiment run.
type session struct {
	cfg    *config.Config
	logger *logging.Logger
	id     string

	source  streamSource
	watcher *sensor.ConnectionWatcher
	ready   chan struct{}
	timeout time.Duration

	files   *datalog.Files
	influx  influxdb2.Client
	nc      *nats.Conn
	store   *runstore.Store
	tel     *telemetry.Telemetry
	sched   *experiment.Scheduler
	stepper *experiment.Stepper
	screen  *display.TUI
	monitor *monitor.Server

	closeOnce sync.Once
}

// newSession opens every collaborator a run needs. On error everything
// opened so far is closed.
func newSession(ctx context.Context, cfg *config.Config, logger *logging.Logger, opts sessionOptions) (_ *session, err error) {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 30 * time.Second
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	s := &session{
		cfg:     cfg,
		logger:  logger,
		id:      uuid.NewString(),
		ready:   make(chan struct{}),
		timeout: opts.ConnectTimeout,
	}
	defer func() {
		if err != nil {
			_ = s.close()
		}
	}()
	z := logger.Underlying()
	settings := cfg.Settings()

	if s.tel, err = telemetry.New(ctx, &cfg.Telemetry, z); err != nil {
		return nil, err
	}

	switch cfg.Sensor.Source {
	case "nats":
		s.nc, err = nats.Connect(cfg.Sensor.NATSURL, nats.Name("bioadapt-run-"+s.id))
		if err != nil {
			return nil, fmt.Errorf("connecting to nats: %w", err)
		}
		src := sensor.NewNATSSource(s.nc, cfg.Sensor.Subject, z)
		src.StaleAfter = cfg.Sensor.StaleAfter.Duration()
		s.source = src
	default:
		s.source = sensor.NewMockSource(cfg.MockConfig(), z)
	}

	if s.files, err = datalog.Open(cfg.Experiment.OutputFolder, settings.SubjectName, opts.Now, z); err != nil {
		return nil, err
	}
	recorder := datalog.Multi{s.files}
	if cfg.Datalog.Influx.Enabled {
		client, writer, err := datalog.DialInflux(ctx, cfg.InfluxConfig())
		if err != nil {
			return nil, err
		}
		s.influx = client
		recorder = append(recorder, datalog.NewInfluxSink(writer, s.id, z))
	}

	if s.store, err = runstore.Open(cfg.Runstore, z); err != nil {
		return nil, err
	}
	sinks := experiment.TrialSinks{s.store}

	var renderer experiment.Renderer
	if opts.Headless {
		renderer = display.NewHeadless(display.HeadlessConfig{Accuracy: opts.HeadlessAccuracy, Seed: settings.Seed}, z)
	} else {
		s.screen = display.NewTUI(settings.ExperimentName, settings.NumRounds, z)
		renderer = s.screen
		sinks = append(sinks, s.screen)
	}

	metrics, err := experiment.NewMetrics(s.tel.Meter(experiment.InstrumentationName))
	if err != nil {
		return nil, fmt.Errorf("creating metrics: %w", err)
	}

	acc := sensor.NewAccumulator()
	s.source.AddListener(acc)

	expLogger := experiment.NewLogger(z)
	s.sched, err = experiment.NewScheduler(settings, experiment.Dependencies{
		Marker:      s.source,
		Accumulator: acc,
		Classifier:  classifier.NewKNN(cfg.Classifier, z),
		Filter:      artifact.NewDetector(cfg.Artifact),
		Recorder:    recorder,
		Sink:        sinks,
	}, experiment.WithLogger(expLogger), experiment.WithMetrics(metrics), experiment.WithSessionID(s.id))
	if err != nil {
		return nil, err
	}

	var once sync.Once
	s.watcher = sensor.NewConnectionWatcher(false, func(connected bool) {
		if connected {
			once.Do(func() { close(s.ready) })
			return
		}
		s.stepper.Interrupt()
	})
	s.stepper = experiment.NewStepper(renderer, s.watcher, experiment.WithStepperLogger(expLogger))
	s.source.AddListener(s.watcher)

	if cfg.Monitor.Enabled {
		if s.monitor, err = monitor.NewServer(s.sched, z, cfg.MonitorConfig()); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// run drives the session and every background component until the session
// finishes, fails or ctx ends.
func (s *session) run(ctx context.Context, stim experiment.Stimuli) (experiment.SessionSummary, error) {
	ctx = logging.WithSessionID(ctx, s.id)
	ctx = logging.WithSubject(ctx, s.cfg.Experiment.SubjectName)

	g, gctx := errgroup.WithContext(ctx)
	runCtx, cancel := context.WithCancel(gctx)
	defer cancel()

	g.Go(func() error { return s.source.Run(runCtx) })
	if s.screen != nil {
		g.Go(func() error { return s.screen.Run(runCtx) })
	}
	if s.monitor != nil {
		g.Go(func() error { return s.monitor.Run(runCtx) })
	}

	var summary experiment.SessionSummary
	g.Go(func() error {
		defer cancel()
		if err := s.waitConnected(runCtx); err != nil {
			return err
		}
		s.logger.Info(ctx, "headset connected, starting session")

		seq, err := s.sched.Session(runCtx, stim)
		if err != nil {
			return err
		}
		runErr := s.stepper.Run(runCtx, seq)
		summary = s.sched.Close(context.WithoutCancel(ctx), runErr)

		phaseCtx := logging.WithPhase(ctx, string(summary.Phase))
		if runErr != nil {
			s.logger.Warn(phaseCtx, "session ended early", zap.Error(runErr))
			return runErr
		}
		s.logger.Info(phaseCtx, "session complete",
			zap.Int("rounds", summary.RoundsCompleted),
			zap.Int("promotions", summary.Promotions),
		)
		return nil
	})

	err := g.Wait()
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return summary, err
}

func (s *session) waitConnected(ctx context.Context) error {
	timer := time.NewTimer(s.timeout)
	defer timer.Stop()
	select {
	case <-s.ready:
		return nil
	case <-timer.C:
		return fmt.Errorf("%w within %s", ErrHeadsetTimeout, s.timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close releases everything newSession opened. It is safe to call twice.
func (s *session) close() error {
	var errs []error
	s.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if s.files != nil {
			errs = append(errs, s.files.Close())
		}
		if s.influx != nil {
			s.influx.Close()
		}
		if s.store != nil {
			errs = append(errs, s.store.Close())
		}
		if s.nc != nil {
			s.nc.Close()
		}
		if s.tel != nil {
			errs = append(errs, s.tel.Shutdown(ctx))
		}
	})
	return errors.Join(errs...)
}

// loadStimuli reads and checks the stimulus lists of cfg.
func loadStimuli(ctx context.Context, cfg *config.Config) (experiment.Stimuli, error) {
	stim, err := stimuli.Load(ctx, cfg.Experiment.Files)
	if err != nil {
		return experiment.Stimuli{}, err
	}
	if err := stimuli.Validate(stim, cfg.Experiment.NumBlocks, cfg.Experiment.BlockSize); err != nil {
		return experiment.Stimuli{}, err
	}
	return stim, nil
}
