// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{
		Enabled:      false,
		ServiceName:  "test-service",
		ExporterType: "grpc",
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if provider.tp != nil {
		t.Error("Expected noop provider (tp == nil)")
	}

	_, span := otel.Tracer("test").Start(context.Background(), "noop-check")
	if span.IsRecording() {
		t.Error("Expected noop tracer span to be non-recording")
	}
	span.End()
}

func TestNewProvider_InvalidExporter(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{
		Enabled:      true,
		ServiceName:  "test-service",
		ExporterType: "invalid",
	})
	if err == nil {
		t.Fatal("Expected error for invalid exporter type")
	}

	expectedMsg := "unsupported exporter type: invalid (supported: grpc, http)"
	if err.Error() != expectedMsg {
		t.Errorf("Expected error message %q, got %q", expectedMsg, err.Error())
	}
}

func TestSamplerFor(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{rate: 1.0, want: "AlwaysOnSampler"},
		{rate: 2.0, want: "AlwaysOnSampler"},
		{rate: 0.0, want: "AlwaysOffSampler"},
		{rate: -1, want: "AlwaysOffSampler"},
		{rate: 0.5, want: "TraceIDRatioBased{0.5}"},
	}

	for _, tt := range tests {
		if got := samplerFor(tt.rate).Description(); got != tt.want {
			t.Errorf("samplerFor(%v) = %q, want %q", tt.rate, got, tt.want)
		}
	}
}

func TestProvider_ShutdownNoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	provider := &Provider{tp: nil}
	if err := provider.Shutdown(ctx); err != nil {
		t.Errorf("Expected no error on noop shutdown, got: %v", err)
	}
}

func TestTracer(t *testing.T) {
	if _, err := NewProvider(context.Background(), Config{Enabled: false}); err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	ctx, span := Tracer("test-tracer").Start(context.Background(), "test-span")
	defer span.End()

	if trace.SpanFromContext(ctx) == nil {
		t.Error("Expected span in context")
	}
}
