// Package telemetry sets up the OpenTelemetry trace and metric providers.
//
// Telemetry is off by default: a lab machine rarely runs a collector. When
// enabled, spans and metrics from the experiment package are exported over
// OTLP (gRPC or HTTP/protobuf) and the global providers are replaced, so
// packages that call otel.Meter or otel.Tracer pick them up without wiring.
//
//	tel, err := telemetry.New(ctx, cfg, logger)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
// Exporter failures degrade to no-op providers instead of failing the
// session. Tests use NewTestTelemetry for in-memory spans and metrics.
package telemetry
