package sentiment

import (
	"context"
	"log"
	"sync"
	"time"

	"crosslag/internal/provider"

	"go.opentelemetry.io/otel/trace"
)

type FearGreedReader interface {
	FetchLatest(ctx context.Context) (*provider.FearGreedPoint, error)
}

type RSSReader interface {
	FetchFeed(ctx context.Context, feedURL string, maxItems int) ([]provider.ContentItem, error)
}

type RedditReader interface {
	FetchHot(ctx context.Context, subreddit string, limit int) ([]provider.ContentItem, error)
}

type OnChainReader interface {
	FetchSnapshot(ctx context.Context, interval string, bucketTime time.Time) (*provider.OnChainSnapshot, error)
}

type Config struct {
	NewsFeeds       []string
	RedditSubs      []string
	FeedItemLimit   int
	RedditPostLimit int
	Interval        string
}

// Service polls the mood sources and keeps the latest composite snapshot
// in memory for the sentiment strategy. Any reader may be nil; its
// component is simply unavailable.
type Service struct {
	tracer    trace.Tracer
	scorer    *Scorer
	fearGreed FearGreedReader
	rss       RSSReader
	reddit    RedditReader
	onchain   OnChainReader
	cfg       Config
	now       func() time.Time

	mu     sync.RWMutex
	latest *Snapshot
}

func NewService(
	tracer trace.Tracer,
	scorer *Scorer,
	fearGreed FearGreedReader,
	rss RSSReader,
	reddit RedditReader,
	onchain OnChainReader,
	cfg Config,
	now func() time.Time,
) *Service {
	if now == nil {
		now = time.Now
	}
	if cfg.FeedItemLimit <= 0 {
		cfg.FeedItemLimit = 40
	}
	if cfg.RedditPostLimit <= 0 {
		cfg.RedditPostLimit = 40
	}
	if cfg.Interval == "" {
		cfg.Interval = "1h"
	}
	if scorer == nil {
		scorer = NewScorer(nil, 0)
	}
	return &Service{
		tracer:    tracer,
		scorer:    scorer,
		fearGreed: fearGreed,
		rss:       rss,
		reddit:    reddit,
		onchain:   onchain,
		cfg:       cfg,
		now:       now,
	}
}

// Latest returns the most recent snapshot, or nil before the first refresh.
func (s *Service) Latest() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// Refresh pulls every configured source and rebuilds the composite. A
// failing source logs and drops out of the blend instead of failing the
// refresh.
func (s *Service) Refresh(ctx context.Context) *Snapshot {
	ctx, span := s.tracer.Start(ctx, "sentiment.refresh")
	defer span.End()

	now := s.now()
	var in Input

	if s.fearGreed != nil {
		if fg, err := s.fearGreed.FetchLatest(ctx); err != nil {
			log.Printf("sentiment fear/greed fetch: %v", err)
		} else if fg != nil {
			v := fg.Value
			in.FearGreedValue = &v
			score := clamp((float64(fg.Value)-50.0)/50.0, -1, 1)
			in.FearGreed = Component{
				Score:      score,
				Confidence: clamp(0.4+(0.6*absFloat(score)), 0, 1),
				Available:  true,
			}
		}
	}

	if s.rss != nil {
		var items []provider.ContentItem
		for _, feed := range s.cfg.NewsFeeds {
			rows, err := s.rss.FetchFeed(ctx, feed, s.cfg.FeedItemLimit)
			if err != nil {
				log.Printf("sentiment rss %s: %v", feed, err)
				continue
			}
			items = append(items, rows...)
		}
		in.News = s.scoreComponent(ctx, items)
	}

	if s.reddit != nil {
		var items []provider.ContentItem
		for _, subreddit := range s.cfg.RedditSubs {
			rows, err := s.reddit.FetchHot(ctx, subreddit, s.cfg.RedditPostLimit)
			if err != nil {
				log.Printf("sentiment reddit r/%s: %v", subreddit, err)
				continue
			}
			items = append(items, rows...)
		}
		in.Reddit = s.scoreComponent(ctx, items)
	}

	if s.onchain != nil {
		bucket := closedBucket(now, s.cfg.Interval)
		if snap, err := s.onchain.FetchSnapshot(ctx, s.cfg.Interval, bucket); err != nil {
			log.Printf("sentiment onchain fetch: %v", err)
		} else if snap != nil {
			in.OnChain = Component{Score: snap.Score, Confidence: snap.Confidence, Available: true}
		}
	}

	snapshot := BuildComposite(in, now)

	s.mu.Lock()
	s.latest = &snapshot
	s.mu.Unlock()

	log.Printf("Sentiment composite: %s (%s)", snapshot.Label, snapshot.DetailsText())
	return &snapshot
}

// Start refreshes immediately, then on the interval, until ctx is cancelled.
func (s *Service) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	log.Printf("Starting sentiment loop (every %s)", interval)

	s.Refresh(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("Stopping sentiment loop")
			return
		case <-ticker.C:
			s.Refresh(ctx)
		}
	}
}

func (s *Service) scoreComponent(ctx context.Context, items []provider.ContentItem) Component {
	scored := s.scorer.Score(ctx, items)
	if len(scored) == 0 {
		return Component{}
	}
	score := 0.0
	confidence := 0.0
	for _, row := range scored {
		score += row.Score
		confidence += row.Confidence
	}
	n := float64(len(scored))
	return Component{
		Score:      clamp(score/n, -1, 1),
		Confidence: clamp(confidence/n, 0, 1),
		Available:  true,
	}
}

func closedBucket(now time.Time, interval string) time.Time {
	d := time.Hour
	if interval == "4h" {
		d = 4 * time.Hour
	}
	return now.UTC().Truncate(d).Add(-d)
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
