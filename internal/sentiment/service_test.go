package sentiment

import (
	"context"
	"errors"
	"testing"
	"time"

	"crosslag/internal/provider"

	"go.opentelemetry.io/otel"
)

type stubFearGreed struct {
	point *provider.FearGreedPoint
	err   error
}

func (s *stubFearGreed) FetchLatest(context.Context) (*provider.FearGreedPoint, error) {
	return s.point, s.err
}

type stubRSS struct {
	items map[string][]provider.ContentItem
	err   error
}

func (s *stubRSS) FetchFeed(_ context.Context, feedURL string, _ int) ([]provider.ContentItem, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.items[feedURL], nil
}

type stubReddit struct {
	items []provider.ContentItem
}

func (s *stubReddit) FetchHot(context.Context, string, int) ([]provider.ContentItem, error) {
	return s.items, nil
}

type stubOnChain struct {
	snapshot *provider.OnChainSnapshot
	bucket   time.Time
}

func (s *stubOnChain) FetchSnapshot(_ context.Context, _ string, bucketTime time.Time) (*provider.OnChainSnapshot, error) {
	s.bucket = bucketTime
	return s.snapshot, nil
}

func TestServiceRefreshBlendsSources(t *testing.T) {
	fearGreed := &stubFearGreed{point: &provider.FearGreedPoint{Value: 80, Classification: "Extreme Greed", Timestamp: testNow()}}
	rss := &stubRSS{items: map[string][]provider.ContentItem{
		"https://news.example/feed": {{SourceItemID: "n1", Source: "news", Title: "Altcoin rally gains momentum"}},
	}}
	reddit := &stubReddit{items: []provider.ContentItem{{SourceItemID: "r1", Source: "reddit", Title: "crash incoming, sell everything"}}}
	onchain := &stubOnChain{snapshot: &provider.OnChainSnapshot{Symbol: "BTC", Score: 0.3, Confidence: 0.5}}

	svc := NewService(otel.Tracer("test"), nil, fearGreed, rss, reddit, onchain, Config{
		NewsFeeds:  []string{"https://news.example/feed"},
		RedditSubs: []string{"monero"},
		Interval:   "1h",
	}, testNow)

	snap := svc.Refresh(context.Background())
	if snap == nil {
		t.Fatal("expected snapshot")
	}
	for _, name := range []string{"fear_greed", "news", "reddit", "onchain"} {
		if !snap.Components[name].Available {
			t.Fatalf("expected %s component available", name)
		}
	}
	if snap.FearGreed == nil || *snap.FearGreed != 80 {
		t.Fatalf("expected fear/greed value 80, got %v", snap.FearGreed)
	}
	if snap.Components["fear_greed"].Score != 0.6 {
		t.Fatalf("expected fear/greed score 0.6, got %.4f", snap.Components["fear_greed"].Score)
	}
	if snap.Components["news"].Score <= 0 {
		t.Fatalf("expected bullish news component, got %.4f", snap.Components["news"].Score)
	}
	if snap.Components["reddit"].Score >= 0 {
		t.Fatalf("expected bearish reddit component, got %.4f", snap.Components["reddit"].Score)
	}

	// The onchain bucket is the last closed hour.
	want := testNow().Truncate(time.Hour).Add(-time.Hour)
	if !onchain.bucket.Equal(want) {
		t.Fatalf("expected bucket %s, got %s", want, onchain.bucket)
	}

	if svc.Latest() == nil {
		t.Fatal("expected Latest to return the refreshed snapshot")
	}
}

func TestServiceRefreshDropsFailingSource(t *testing.T) {
	fearGreed := &stubFearGreed{err: errors.New("upstream down")}
	reddit := &stubReddit{items: []provider.ContentItem{{SourceItemID: "r1", Title: "steady growth and adoption"}}}

	svc := NewService(otel.Tracer("test"), nil, fearGreed, nil, reddit, nil, Config{
		RedditSubs: []string{"monero"},
	}, testNow)

	snap := svc.Refresh(context.Background())
	if snap.Components["fear_greed"].Available {
		t.Fatal("expected fear/greed unavailable after fetch error")
	}
	if !snap.Components["reddit"].Available {
		t.Fatal("expected reddit component available")
	}
	if w, ok := snap.Weights["reddit"]; !ok || w != 1 {
		t.Fatalf("expected reddit to carry full weight, got %v", snap.Weights)
	}
}

func TestServiceRefreshNoSources(t *testing.T) {
	svc := NewService(otel.Tracer("test"), nil, nil, nil, nil, nil, Config{}, testNow)

	snap := svc.Refresh(context.Background())
	if snap.Label != "neutral" || snap.Confidence != 0 {
		t.Fatalf("expected neutral empty snapshot, got %+v", snap)
	}
}
