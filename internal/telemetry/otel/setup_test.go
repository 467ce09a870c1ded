package otel

import (
	"context"
	"testing"
)

func TestNewProvider_EmptyEndpoint(t *testing.T) {
	ctx := context.Background()
	p, err := NewProvider(ctx, "", "test-service", false)
	if err != nil {
		t.Fatalf("NewProvider empty endpoint: %v", err)
	}
	if p == nil || p.TracerProvider == nil {
		t.Fatal("provider should not be nil")
	}
	if p.Shutdown == nil {
		t.Fatal("Shutdown should not be nil")
	}
	if err := p.Shutdown(ctx); err != nil {
		t.Errorf("shutdown should be a no-op for empty endpoint, got error: %v", err)
	}
}

func TestNewProvider_WhitespaceEndpoint(t *testing.T) {
	p, err := NewProvider(context.Background(), "   ", "test-service", false)
	if err != nil {
		t.Fatalf("NewProvider whitespace endpoint: %v", err)
	}
	if p == nil {
		t.Fatal("provider should not be nil")
	}
}

func TestNewProvider_InvalidURL(t *testing.T) {
	testCases := []struct {
		name     string
		endpoint string
	}{
		{"invalid characters", "://invalid"},
		{"malformed URL", "http://[invalid"},
		{"missing host", "http://"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewProvider(context.Background(), tc.endpoint, "test-service", false)
			if err == nil {
				t.Errorf("NewProvider(%q) should return error", tc.endpoint)
			}
		})
	}
}

func TestNewProvider_EndpointNormalization(t *testing.T) {
	// Endpoints without a scheme or with a path must parse down to host:port.
	// Exporter construction is lazy, so these succeed without a collector.
	for _, endpoint := range []string{"localhost:4317", "http://localhost:4317/v1/traces"} {
		p, err := NewProvider(context.Background(), endpoint, "test-service", false)
		if err != nil {
			t.Fatalf("NewProvider(%q): %v", endpoint, err)
		}
		if p.TracerProvider == nil {
			t.Fatalf("NewProvider(%q): nil TracerProvider", endpoint)
		}
	}
}
