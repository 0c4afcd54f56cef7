package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/bioadapt/internal/sensor"
)

var (
	simEmbedded        bool
	simPort            int
	simNATSURL         string
	simDuration        time.Duration
	simDisconnectAfter time.Duration
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Publish a simulated headset stream over NATS",
	Long: `Publish a simulated headset stream over NATS.

The stream uses the sensor settings of the config file. Point a run with
sensor.source: nats at the same subject to exercise the full transport path
without hardware. With --embedded a NATS server is started in-process.`,
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().BoolVar(&simEmbedded, "embedded", false, "start an in-process NATS server")
	simulateCmd.Flags().IntVar(&simPort, "port", 4222, "port for the embedded server")
	simulateCmd.Flags().StringVar(&simNATSURL, "nats-url", "", "NATS server URL (overrides config)")
	simulateCmd.Flags().DurationVar(&simDuration, "duration", 0, "stop after this long; zero runs until interrupted")
	simulateCmd.Flags().DurationVar(&simDisconnectAfter, "disconnect-after", 0, "simulate a headset drop after this long")
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, false)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() { _ = logger.Close() }()
	z := logger.Underlying()

	url := cfg.Sensor.NATSURL
	if simNATSURL != "" {
		url = simNATSURL
	}
	if simEmbedded {
		srv, err := startEmbeddedNATS(simPort)
		if err != nil {
			return err
		}
		defer func() {
			srv.Shutdown()
			srv.WaitForShutdown()
		}()
		url = srv.ClientURL()
		logger.Info(ctx, "embedded nats server ready", zap.String("url", url))
	}
	if url == "" {
		url = nats.DefaultURL
	}

	nc, err := nats.Connect(url, nats.Name("bioadapt-simulate"))
	if err != nil {
		return fmt.Errorf("connecting to nats: %w", err)
	}
	defer nc.Close()

	mockCfg := cfg.MockConfig()
	if simDisconnectAfter > 0 {
		mockCfg.DisconnectAfter = simDisconnectAfter
	}
	src := sensor.NewMockSource(mockCfg, z)
	pub := sensor.NewPublisher(nc, cfg.Sensor.Subject, z)
	src.AddListener(pub)

	if simDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, simDuration)
		defer cancel()
	}

	logger.Info(ctx, "publishing simulated stream",
		zap.String("subject", cfg.Sensor.Subject),
		zap.Int("sample_rate_hz", mockCfg.SampleRate),
		zap.Int("channels", mockCfg.Channels),
	)
	err = src.Run(ctx)
	if err := nc.Flush(); err != nil {
		logger.Warn(ctx, "flushing nats connection", zap.Error(err))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "published %d samples\n", pub.Sent())
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// startEmbeddedNATS runs a NATS server in this process.
func startEmbeddedNATS(port int) (*natsserver.Server, error) {
	srv, err := natsserver.NewServer(&natsserver.Options{
		Host:   "127.0.0.1",
		Port:   port,
		NoLog:  true,
		NoSigs: true,
	})
	if err != nil {
		return nil, fmt.Errorf("creating nats server: %w", err)
	}
	go srv.Start()
	if !srv.ReadyForConnections(5 * time.Second) {
		srv.Shutdown()
		return nil, errors.New("embedded nats server not ready")
	}
	return srv, nil
}
