package datalog

import (
	"context"
	"fmt"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/bioadapt/internal/sensor"
)

const (
	sampleMeasurement = "headset_sample"
	eventMeasurement  = "session_event"
)

// InfluxConfig configures the InfluxDB sink.
type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// InfluxSink writes retained samples and events to InfluxDB as points.
type InfluxSink struct {
	writer    api.WriteAPIBlocking
	sessionID string
	timeout   time.Duration
	logger    *zap.Logger
}

// NewInfluxSink creates a sink over writer. Points carry sessionID as a tag.
func NewInfluxSink(writer api.WriteAPIBlocking, sessionID string, logger *zap.Logger) *InfluxSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InfluxSink{
		writer:    writer,
		sessionID: sessionID,
		timeout:   5 * time.Second,
		logger:    logger.Named("influx"),
	}
}

// DialInflux connects to the server in cfg and checks its health.
func DialInflux(ctx context.Context, cfg InfluxConfig) (influxdb2.Client, api.WriteAPIBlocking, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	health, err := client.Health(ctx)
	if err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("influxdb health check: %w", err)
	}
	if health.Status != "pass" {
		client.Close()
		return nil, nil, fmt.Errorf("influxdb unhealthy: %s", health.Status)
	}
	return client, client.WriteAPIBlocking(cfg.Org, cfg.Bucket), nil
}

// Event writes an event point. Failures are logged.
func (s *InfluxSink) Event(line string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	p := influxdb2.NewPoint(eventMeasurement,
		map[string]string{"session_id": s.sessionID},
		map[string]interface{}{"text": line},
		time.Now())
	if err := s.writer.WritePoint(ctx, p); err != nil {
		s.logger.Warn("writing event point failed", zap.Error(err))
	}
}

// TrialSamples writes a scored trial's samples.
func (s *InfluxSink) TrialSamples(entries []sensor.Entry, sourceIndex int) error {
	return s.write(entries, map[string]string{
		"kind":         "trial",
		"source_index": strconv.Itoa(sourceIndex),
	})
}

// TrainingSamples writes a training trial's samples.
func (s *InfluxSink) TrainingSamples(entries []sensor.Entry) error {
	return s.write(entries, map[string]string{"kind": "training"})
}

func (s *InfluxSink) write(entries []sensor.Entry, tags map[string]string) error {
	if len(entries) == 0 {
		return nil
	}
	points := make([]*write.Point, 0, len(entries))
	for _, e := range entries {
		points = append(points, s.point(e, tags))
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.writer.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("writing %d sample points: %w", len(points), err)
	}
	return nil
}

func (s *InfluxSink) point(e sensor.Entry, extra map[string]string) *write.Point {
	tags := map[string]string{
		"session_id": s.sessionID,
		"marker":     strconv.Itoa(e.Marker),
	}
	for k, v := range extra {
		tags[k] = v
	}

	fields := map[string]interface{}{
		"relative_ms": e.RelativeTimestamp,
		"gyro_x":      e.GyroX,
		"gyro_y":      e.GyroY,
		"motion":      e.Motion,
	}
	for i, v := range e.Channels {
		fields["ch"+strconv.Itoa(i)] = v
	}
	return influxdb2.NewPoint(sampleMeasurement, tags, fields, e.Timestamp)
}
