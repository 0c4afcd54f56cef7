package sensor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// DefaultSubject is the NATS subject prefix used by headset bridges.
const DefaultSubject = "bioadapt.headset"

// ErrNotConnected is returned when a NATS connection is required but absent.
var ErrNotConnected = errors.New("nats connection not available")

// SamplesSubject returns the subject carrying sample batches under prefix.
func SamplesSubject(prefix string) string { return prefix + ".samples" }

// StatusSubject returns the subject carrying connection reports under prefix.
func StatusSubject(prefix string) string { return prefix + ".status" }

// NATSSource consumes raw samples from NATS and tags them locally.
type NATSSource struct {
	*Hub
	nc      *nats.Conn
	subject string
	// StaleAfter reports a disconnect when no batch arrives for this long.
	// Zero disables the check.
	StaleAfter time.Duration
	logger     *zap.Logger

	// flush confirms the subscriptions with the server.
	flush func() error

	mu       sync.Mutex
	subs     []*nats.Subscription
	lastSeen atomic.Int64
	live     atomic.Bool
}

// NewNATSSource creates a source reading from subject prefix on nc.
func NewNATSSource(nc *nats.Conn, subject string, logger *zap.Logger) *NATSSource {
	if subject == "" {
		subject = DefaultSubject
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NATSSource{
		Hub:        NewHub(),
		nc:         nc,
		subject:    subject,
		StaleAfter: 2 * time.Second,
		logger:     logger.Named("nats_source"),
	}
	if nc != nil {
		s.flush = nc.Flush
	}
	return s
}

// Start subscribes to the sample and status subjects.
func (s *NATSSource) Start() error {
	if s.nc == nil || s.nc.IsClosed() {
		return ErrNotConnected
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	samples, err := s.nc.Subscribe(SamplesSubject(s.subject), s.handleSamples)
	if err != nil {
		return fmt.Errorf("subscribing to samples: %w", err)
	}
	status, err := s.nc.Subscribe(StatusSubject(s.subject), s.handleStatus)
	if err != nil {
		_ = samples.Unsubscribe()
		return fmt.Errorf("subscribing to status: %w", err)
	}
	if err := s.flush(); err != nil {
		_ = samples.Unsubscribe()
		_ = status.Unsubscribe()
		return fmt.Errorf("flushing subscriptions: %w", err)
	}
	s.subs = []*nats.Subscription{samples, status}

	s.logger.Info("subscribed to headset stream", zap.String("subject", s.subject))
	return nil
}

// Stop unsubscribes. It is safe to call more than once.
func (s *NATSSource) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	s.subs = nil
}

// Run starts the source and watches for a stale stream until ctx ends.
func (s *NATSSource) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	defer s.Stop()

	if s.StaleAfter <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(s.StaleAfter / 4)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.checkStale()
		}
	}
}

func (s *NATSSource) checkStale() {
	if !s.live.Load() {
		return
	}
	last := time.Unix(0, s.lastSeen.Load())
	if time.Since(last) > s.StaleAfter || s.nc.Status() != nats.CONNECTED {
		s.markDown("stream stale")
	}
}

func (s *NATSSource) handleSamples(msg *nats.Msg) {
	samples, err := DecodeBatch(msg.Data)
	if err != nil {
		s.logger.Warn("dropping sample batch", zap.Error(err))
		return
	}
	s.lastSeen.Store(time.Now().UnixNano())
	if s.live.CompareAndSwap(false, true) {
		s.Connected()
	}
	s.Deliver(samples)
}

func (s *NATSSource) handleStatus(msg *nats.Msg) {
	var st Status
	if err := json.Unmarshal(msg.Data, &st); err != nil {
		s.logger.Warn("dropping status message", zap.Error(err))
		return
	}
	if st.Connected {
		s.lastSeen.Store(time.Now().UnixNano())
		if s.live.CompareAndSwap(false, true) {
			s.Connected()
		}
		return
	}
	s.markDown(st.Reason)
}

func (s *NATSSource) markDown(reason string) {
	if s.live.CompareAndSwap(true, false) {
		s.logger.Warn("headset disconnected", zap.String("reason", reason))
		s.Disconnected()
	}
}

// Publisher forwards a local stream to NATS. It implements Listener so it can
// be attached to a MockSource.
type Publisher struct {
	nc      *nats.Conn
	subject string
	logger  *zap.Logger
	sent    atomic.Int64
}

// NewPublisher creates a publisher writing under subject prefix.
func NewPublisher(nc *nats.Conn, subject string, logger *zap.Logger) *Publisher {
	if subject == "" {
		subject = DefaultSubject
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{nc: nc, subject: subject, logger: logger.Named("publisher")}
}

// PublishSamples sends one batch.
func (p *Publisher) PublishSamples(samples []Sample) error {
	if p.nc == nil {
		return ErrNotConnected
	}
	data, err := EncodeBatch(samples)
	if err != nil {
		return fmt.Errorf("encoding batch: %w", err)
	}
	if err := p.nc.Publish(SamplesSubject(p.subject), data); err != nil {
		return fmt.Errorf("publishing batch: %w", err)
	}
	p.sent.Add(int64(len(samples)))
	return nil
}

// PublishStatus sends a connection report.
func (p *Publisher) PublishStatus(connected bool, reason string) error {
	if p.nc == nil {
		return ErrNotConnected
	}
	data, err := json.Marshal(Status{Connected: connected, Reason: reason})
	if err != nil {
		return fmt.Errorf("encoding status: %w", err)
	}
	return p.nc.Publish(StatusSubject(p.subject), data)
}

// Sent returns the number of samples published.
func (p *Publisher) Sent() int64 { return p.sent.Load() }

// OnData implements Listener.
func (p *Publisher) OnData(batch []Entry) {
	if err := p.PublishSamples(SamplesFromEntries(batch)); err != nil {
		p.logger.Warn("publish failed", zap.Error(err))
	}
}

// OnConnect implements Listener.
func (p *Publisher) OnConnect() {
	if err := p.PublishStatus(true, ""); err != nil {
		p.logger.Warn("status publish failed", zap.Error(err))
	}
}

// OnDisconnect implements Listener.
func (p *Publisher) OnDisconnect() {
	if err := p.PublishStatus(false, "source disconnected"); err != nil {
		p.logger.Warn("status publish failed", zap.Error(err))
	}
}
