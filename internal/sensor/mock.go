package sensor

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// MockConfig configures the simulated headset.
type MockConfig struct {
	// SampleRate is samples per second.
	SampleRate int
	// BatchSize is samples per delivered batch.
	BatchSize int
	// Channels is the channel count per sample.
	Channels int
	// Noise is the standard deviation of the additive noise.
	Noise float64
	// MotionRate is the probability that a batch carries a motion burst.
	MotionRate float64
	// DisconnectAfter simulates a headset drop after this long. Zero never drops.
	DisconnectAfter time.Duration
	// Seed drives the sample generator. Zero uses a random seed.
	Seed uint64
}

// DefaultMockConfig mirrors a 14-channel consumer headset at 128 Hz.
func DefaultMockConfig() MockConfig {
	return MockConfig{
		SampleRate: 128,
		BatchSize:  8,
		Channels:   14,
		Noise:      4.0,
		MotionRate: 0.01,
	}
}

// MockSource synthesises a tagged headset stream.
type MockSource struct {
	*Hub
	cfg     MockConfig
	rng     *rand.Rand
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewMockSource creates a simulated source. Zero fields in cfg take defaults.
func NewMockSource(cfg MockConfig, logger *zap.Logger) *MockSource {
	def := DefaultMockConfig()
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = def.SampleRate
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.Channels <= 0 {
		cfg.Channels = def.Channels
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	batchesPerSecond := float64(cfg.SampleRate) / float64(cfg.BatchSize)
	return &MockSource{
		Hub:     NewHub(),
		cfg:     cfg,
		rng:     rand.New(rand.NewPCG(seed, seed>>1|1)),
		limiter: rate.NewLimiter(rate.Limit(batchesPerSecond), 1),
		logger:  logger.Named("mock_source"),
	}
}

// Run streams batches until ctx is cancelled or the simulated drop fires.
// It reports connect on start and disconnect on a simulated drop.
func (m *MockSource) Run(ctx context.Context) error {
	m.logger.Info("mock headset streaming",
		zap.Int("sample_rate", m.cfg.SampleRate),
		zap.Int("channels", m.cfg.Channels),
	)
	m.Connected()

	started := time.Now()
	period := time.Second / time.Duration(m.cfg.SampleRate)
	var tick int64
	for {
		if !m.pace(ctx) {
			return nil
		}
		if m.cfg.DisconnectAfter > 0 && time.Since(started) >= m.cfg.DisconnectAfter {
			m.logger.Warn("simulated headset disconnect")
			m.Disconnected()
			return nil
		}

		now := time.Now()
		batch := make([]Sample, m.cfg.BatchSize)
		burst := m.rng.Float64() < m.cfg.MotionRate
		for i := range batch {
			ts := now.Add(-time.Duration(m.cfg.BatchSize-1-i) * period)
			batch[i] = m.sample(ts, tick, burst)
			tick++
		}
		m.Deliver(batch)
	}
}

// pace waits for the next batch slot. It reports false once ctx is done.
func (m *MockSource) pace(ctx context.Context) bool {
	r := m.limiter.Reserve()
	timer := time.NewTimer(r.Delay())
	defer timer.Stop()
	select {
	case <-ctx.Done():
		r.Cancel()
		return false
	case <-timer.C:
		return ctx.Err() == nil
	}
}

func (m *MockSource) sample(ts time.Time, tick int64, motion bool) Sample {
	t := float64(tick) / float64(m.cfg.SampleRate)
	ch := make([]float64, m.cfg.Channels)
	for c := range ch {
		// alpha-band carrier with a per-channel phase offset
		ch[c] = 4200 + 20*math.Sin(2*math.Pi*10*t+float64(c)) + m.rng.NormFloat64()*m.cfg.Noise
	}
	s := Sample{Timestamp: ts, Channels: ch}
	if motion {
		s.Motion = true
		s.GyroX = 40 + m.rng.IntN(40)
		s.GyroY = 40 + m.rng.IntN(40)
		for c := range ch {
			ch[c] += 300 * m.rng.NormFloat64()
		}
	} else {
		s.GyroX = m.rng.IntN(3) - 1
		s.GyroY = m.rng.IntN(3) - 1
	}
	return s
}
