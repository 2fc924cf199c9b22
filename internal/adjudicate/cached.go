package adjudicate

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/hitrate-cli/internal/metrics"
	"github.com/sells-group/hitrate-cli/internal/reconcile"
	"github.com/sells-group/hitrate-cli/internal/resolve"
	"github.com/sells-group/hitrate-cli/internal/store"
)

// SourceCache is the Verdict.Source of cache hits.
const SourceCache = "cache"

// Cached serves verdicts from the store and asks the wrapped adjudicator only
// on a miss. Store failures degrade to uncached calls.
type Cached struct {
	next  reconcile.Adjudicator
	store store.Store
	ttl   time.Duration
}

// NewCached wraps next with the verdict cache.
func NewCached(next reconcile.Adjudicator, st store.Store, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &Cached{next: next, store: st, ttl: ttl}
}

// PairKey identifies a name pair independent of spelling noise.
func PairKey(nameA, nameB string) string {
	return resolve.MatchKey(nameA, false) + "|" + resolve.MatchKey(nameB, false)
}

// Adjudicate implements reconcile.Adjudicator.
func (c *Cached) Adjudicate(ctx context.Context, req reconcile.Request) (reconcile.Verdict, error) {
	key := PairKey(req.NameA, req.NameB)

	hit, err := c.store.GetVerdict(ctx, key)
	switch {
	case err != nil:
		metrics.VerdictCache.WithLabelValues("error").Inc()
		zap.L().Warn("adjudicate: verdict cache read failed", zap.String("pair", key), zap.Error(err))
	case hit != nil:
		metrics.VerdictCache.WithLabelValues("hit").Inc()
		return reconcile.Verdict{Match: hit.Match, Explanation: hit.Explanation, Source: SourceCache}, nil
	default:
		metrics.VerdictCache.WithLabelValues("miss").Inc()
	}

	v, err := c.next.Adjudicate(ctx, req)
	if err != nil {
		return reconcile.Verdict{}, err
	}

	if err := c.store.PutVerdict(ctx, store.CachedVerdict{
		PairKey:     key,
		NameA:       req.NameA,
		NameB:       req.NameB,
		Match:       v.Match,
		Explanation: v.Explanation,
		Source:      v.Source,
	}, c.ttl); err != nil {
		zap.L().Warn("adjudicate: verdict cache write failed", zap.String("pair", key), zap.Error(err))
	}
	return v, nil
}
