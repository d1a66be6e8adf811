package provider

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace"
)

func TestBTCMempoolOnChainProvider(t *testing.T) {
	p := NewBTCMempoolOnChainProvider(trace.NewNoopTracerProvider().Tracer("test"), "https://example.com")
	p.client = &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/api/v1/statistics/24h" {
			t.Fatalf("unexpected path: %s", req.URL.Path)
		}
		body := `[{"count":150000,"vbytes_per_second":2000,"min_fee":4,"total_fee":4000000}]`
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewBufferString(body)), Header: make(http.Header)}, nil
	})}

	bucket := time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC)
	snap, err := p.FetchSnapshot(context.Background(), "1h", bucket)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Symbol != "BTC" || snap.ProviderKey != "btc_mempool" {
		t.Fatalf("unexpected snapshot id: %+v", snap)
	}
	if !snap.BucketTime.Equal(bucket) {
		t.Fatalf("expected bucket %v, got %v", bucket, snap.BucketTime)
	}
	if snap.Score < -1 || snap.Score > 1 || snap.Confidence < 0 || snap.Confidence > 1 {
		t.Fatalf("score/conf bounds violated: %+v", snap)
	}
	if snap.Metrics["count"] != 150000 {
		t.Fatalf("expected raw metrics carried, got %+v", snap.Metrics)
	}
}

func TestBTCMempoolOnChainProviderEmptyPayload(t *testing.T) {
	p := NewBTCMempoolOnChainProvider(trace.NewNoopTracerProvider().Tracer("test"), "https://example.com")
	p.client = &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewBufferString(`[]`)), Header: make(http.Header)}, nil
	})}

	if _, err := p.FetchSnapshot(context.Background(), "1h", time.Now()); err == nil {
		t.Fatal("expected error for empty payload")
	}
}
