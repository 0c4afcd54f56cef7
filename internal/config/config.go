// Package config loads bioadapt configuration from YAML and BIOADAPT_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/fyrsmithlabs/bioadapt/internal/artifact"
	"github.com/fyrsmithlabs/bioadapt/internal/classifier"
	"github.com/fyrsmithlabs/bioadapt/internal/datalog"
	"github.com/fyrsmithlabs/bioadapt/internal/experiment"
	"github.com/fyrsmithlabs/bioadapt/internal/logging"
	"github.com/fyrsmithlabs/bioadapt/internal/monitor"
	"github.com/fyrsmithlabs/bioadapt/internal/runstore"
	"github.com/fyrsmithlabs/bioadapt/internal/sensor"
	"github.com/fyrsmithlabs/bioadapt/internal/stimuli"
	"github.com/fyrsmithlabs/bioadapt/internal/telemetry"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the complete bioadapt configuration.
type Config struct {
	Experiment ExperimentConfig     `koanf:"experiment"`
	Artifact   artifact.Settings    `koanf:"artifact"`
	Classifier classifier.KNNConfig `koanf:"classifier"`
	Sensor     SensorConfig         `koanf:"sensor"`
	Datalog    DatalogConfig        `koanf:"datalog"`
	Runstore   runstore.Config      `koanf:"runstore"`
	Monitor    MonitorConfig        `koanf:"monitor"`
	Logging    logging.Config       `koanf:"logging"`
	Telemetry  telemetry.Config     `koanf:"telemetry"`
}

// ExperimentConfig holds the session protocol.
type ExperimentConfig struct {
	SubjectName    string `koanf:"subject_name" validate:"excludesall=/\\"`
	ExperimentName string `koanf:"experiment_name"`

	PresentationTime Duration `koanf:"presentation_time"`
	DisplayTime      Duration `koanf:"display_time"`
	DelayTime        Duration `koanf:"delay_time"`
	RestTime         Duration `koanf:"rest_time"`
	BlinkTime        Duration `koanf:"blink_time"`
	FixationTime     Duration `koanf:"fixation_time"`
	FeedbackTime     Duration `koanf:"feedback_time"`
	SpeakTime        Duration `koanf:"speak_time"`
	InstructionTime  Duration `koanf:"instruction_time"`

	BlockSize int `koanf:"block_size" validate:"gte=1"`
	NumBlocks int `koanf:"num_blocks" validate:"gte=1"`
	NumRounds int `koanf:"num_rounds" validate:"gte=0"`

	SaveTrialData bool   `koanf:"save_trial_data"`
	LogExperiment bool   `koanf:"log_experiment"`
	Seed          uint64 `koanf:"seed"`

	PromotionThreshold    float64 `koanf:"promotion_threshold" validate:"gte=0,lte=1"`
	WarmupPresentations   int     `koanf:"warmup_presentations" validate:"gte=0"`
	MainArtifactLimit     int     `koanf:"main_artifact_limit" validate:"gte=0"`
	TrainingArtifactLimit int     `koanf:"training_artifact_limit" validate:"gte=0"`
	ClassArtifactLimit    int     `koanf:"class_artifact_limit" validate:"gte=0"`

	OutputFolder  string `koanf:"output_folder" validate:"required"`
	stimuli.Files `koanf:",squash"`
}

// SensorConfig selects and configures the headset stream.
type SensorConfig struct {
	Source  string `koanf:"source" validate:"oneof=mock nats"`
	NATSURL string `koanf:"nats_url"`
	Subject string `koanf:"subject"`
	// StaleAfter reports a disconnect when a NATS stream goes quiet.
	StaleAfter Duration `koanf:"stale_after"`

	SampleRate      int      `koanf:"sample_rate_hz" validate:"gte=1"`
	BatchSize       int      `koanf:"batch_size" validate:"gte=1"`
	Channels        int      `koanf:"channels" validate:"gte=1"`
	MockNoise       float64  `koanf:"mock_noise" validate:"gte=0"`
	MotionRate      float64  `koanf:"motion_rate" validate:"gte=0,lte=1"`
	DisconnectAfter Duration `koanf:"disconnect_after"`
}

// DatalogConfig configures sample sinks beyond the local files.
type DatalogConfig struct {
	Influx InfluxConfig `koanf:"influx"`
}

// InfluxConfig configures the optional InfluxDB sink.
type InfluxConfig struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url" validate:"omitempty,url"`
	Token   Secret `koanf:"token"`
	Org     string `koanf:"org" validate:"required_if=Enabled true"`
	Bucket  string `koanf:"bucket" validate:"required_if=Enabled true"`
}

// MonitorConfig configures the operator HTTP endpoint.
type MonitorConfig struct {
	Enabled bool   `koanf:"enabled"`
	Host    string `koanf:"host"`
	Port    int    `koanf:"port" validate:"gte=1,lte=65535"`
}

// Default returns the stock configuration.
func Default() *Config {
	s := experiment.DefaultSettings()
	mock := sensor.DefaultMockConfig()
	return &Config{
		Experiment: ExperimentConfig{
			ExperimentName:        "adaptive-recall",
			PresentationTime:      Duration(s.PresentationTime),
			DisplayTime:           Duration(s.DisplayTime),
			DelayTime:             Duration(s.DelayTime),
			RestTime:              Duration(s.RestTime),
			BlinkTime:             Duration(s.BlinkTime),
			FixationTime:          Duration(s.FixationTime),
			FeedbackTime:          Duration(s.FeedbackTime),
			SpeakTime:             Duration(s.SpeakTime),
			InstructionTime:       Duration(s.InstructionTime),
			BlockSize:             s.BlockSize,
			NumBlocks:             s.NumBlocks,
			NumRounds:             s.NumRounds,
			SaveTrialData:         true,
			LogExperiment:         true,
			PromotionThreshold:    s.PromotionThreshold,
			WarmupPresentations:   s.WarmupPresentations,
			MainArtifactLimit:     s.MainArtifactLimit,
			TrainingArtifactLimit: s.TrainingArtifactLimit,
			ClassArtifactLimit:    s.ClassArtifactLimit,
			OutputFolder:          "data",
		},
		Artifact:   artifact.DefaultSettings(),
		Classifier: classifier.DefaultKNNConfig(),
		Sensor: SensorConfig{
			Source:     "mock",
			NATSURL:    "nats://127.0.0.1:4222",
			Subject:    sensor.DefaultSubject,
			StaleAfter: Duration(2 * time.Second),
			SampleRate: mock.SampleRate,
			BatchSize:  mock.BatchSize,
			Channels:   mock.Channels,
			MockNoise:  mock.Noise,
			MotionRate: mock.MotionRate,
		},
		Runstore:  runstore.Config{Path: "data/runs"},
		Monitor:   MonitorConfig{Host: "localhost", Port: 9464},
		Logging:   *logging.NewDefaultConfig(),
		Telemetry: *telemetry.NewDefaultConfig(),
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field ranges and the rules that span sections.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if c.Experiment.Study == "" || c.Experiment.Class1 == "" || c.Experiment.Class2 == "" {
		return fmt.Errorf("%w: experiment.study_file, class1_file and class2_file are required", ErrInvalid)
	}
	if c.Sensor.Source == "nats" && c.Sensor.NATSURL == "" {
		return fmt.Errorf("%w: sensor.nats_url is required for the nats source", ErrInvalid)
	}
	if c.Datalog.Influx.Enabled && (c.Datalog.Influx.URL == "" || !c.Datalog.Influx.Token.IsSet()) {
		return fmt.Errorf("%w: datalog.influx.url and token are required when influx is enabled", ErrInvalid)
	}
	if !c.Runstore.InMemory && c.Runstore.Path == "" {
		return fmt.Errorf("%w: runstore.path is required unless runstore.in_memory", ErrInvalid)
	}
	if err := c.Settings().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("%w: logging: %w", ErrInvalid, err)
	}
	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("%w: telemetry: %w", ErrInvalid, err)
	}
	return nil
}

// Settings converts the experiment section for the scheduler.
func (c *Config) Settings() experiment.Settings {
	e := c.Experiment
	return experiment.Settings{
		SubjectName:           e.SubjectName,
		ExperimentName:        e.ExperimentName,
		PresentationTime:      e.PresentationTime.Duration(),
		DisplayTime:           e.DisplayTime.Duration(),
		DelayTime:             e.DelayTime.Duration(),
		RestTime:              e.RestTime.Duration(),
		BlinkTime:             e.BlinkTime.Duration(),
		FixationTime:          e.FixationTime.Duration(),
		FeedbackTime:          e.FeedbackTime.Duration(),
		SpeakTime:             e.SpeakTime.Duration(),
		InstructionTime:       e.InstructionTime.Duration(),
		BlockSize:             e.BlockSize,
		NumBlocks:             e.NumBlocks,
		NumRounds:             e.NumRounds,
		SaveTrialData:         e.SaveTrialData,
		LogExperiment:         e.LogExperiment,
		Seed:                  e.Seed,
		PromotionThreshold:    e.PromotionThreshold,
		WarmupPresentations:   e.WarmupPresentations,
		MainArtifactLimit:     e.MainArtifactLimit,
		TrainingArtifactLimit: e.TrainingArtifactLimit,
		ClassArtifactLimit:    e.ClassArtifactLimit,
	}
}

// MockConfig converts the sensor section for the simulated headset.
func (c *Config) MockConfig() sensor.MockConfig {
	return sensor.MockConfig{
		SampleRate:      c.Sensor.SampleRate,
		BatchSize:       c.Sensor.BatchSize,
		Channels:        c.Sensor.Channels,
		Noise:           c.Sensor.MockNoise,
		MotionRate:      c.Sensor.MotionRate,
		DisconnectAfter: c.Sensor.DisconnectAfter.Duration(),
		Seed:            c.Experiment.Seed,
	}
}

// InfluxConfig converts the influx section for the datalog sink.
func (c *Config) InfluxConfig() datalog.InfluxConfig {
	i := c.Datalog.Influx
	return datalog.InfluxConfig{URL: i.URL, Token: i.Token.Value(), Org: i.Org, Bucket: i.Bucket}
}

// MonitorConfig converts the monitor section for the HTTP server.
func (c *Config) MonitorConfig() *monitor.Config {
	return &monitor.Config{Host: c.Monitor.Host, Port: c.Monitor.Port}
}
