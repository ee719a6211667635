package telemetry

import (
	"context"
	"testing"
)

func TestInitWithoutEndpointIsNoop(t *testing.T) {
	ctx := context.Background()
	shutdown := Init(ctx, "test-service", "")
	if err := shutdown(ctx); err != nil {
		t.Fatalf("noop shutdown returned %v", err)
	}
}

func TestInstrumentsUsableWithoutExporter(t *testing.T) {
	ctx := context.Background()
	m := Metrics()
	m.ProviderFailures.Add(ctx, 1)
	m.CandidatesDisqualified.Add(ctx, 2)
	m.CandidatesDropped.Add(ctx, 1)
	m.RetryAttempts.Add(ctx, 1)
	m.SelectionLatency.Record(ctx, 0.25)

	_, span := StartSpan(ctx, "test.span")
	span.End()
}
