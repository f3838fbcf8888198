package main

import (
	"context"
	"os"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/orgrun/org/o11y"
)

// initTelemetry wires an OTel span exporter for this run: OTLP/gRPC when
// OTEL_EXPORTER_OTLP_ENDPOINT is set (the conventional way to point a CLI at
// a collector), otherwise a pretty-printed stdout exporter when debug
// logging is on, otherwise tracing stays off. It returns a shutdown func
// that flushes pending spans; callers should always defer it.
func initTelemetry(ctx context.Context, runID string, debug bool) (func(), error) {
	var exporter sdktrace.SpanExporter
	var err error

	switch {
	case os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "":
		exporter, err = otlptracegrpc.New(ctx)
		if err != nil {
			return func() {}, err
		}
	case debug:
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return func() {}, err
		}
	default:
		return func() {}, nil
	}

	shutdown, err := o11y.InitTracer("org:"+runID, o11y.WithSpanExporter(exporter))
	if err != nil {
		return func() {}, err
	}
	return shutdown, nil
}
