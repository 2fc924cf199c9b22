package reconcile

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/hitrate-cli/internal/metrics"
	"github.com/sells-group/hitrate-cli/internal/resolve"
)

// Config controls tier thresholds, escalation and concurrency.
type Config struct {
	// GoodMin and OkayMin are the lower bounds of the Good and Okay tiers.
	// Excellent is exactly 100; anything below OkayMin is Poor.
	GoodMin float64
	OkayMin float64

	StripLegalForms bool

	// EscalateTiers are sent to the adjudicator when one is set. Poor is
	// never escalated.
	EscalateTiers []Tier

	Workers             int
	AdjudicationTimeout time.Duration
	// AdjudicationRPS caps adjudication calls per second; 0 means unlimited.
	AdjudicationRPS float64
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		GoodMin:             80,
		OkayMin:             50,
		EscalateTiers:       []Tier{TierOkay, TierGood},
		Workers:             8,
		AdjudicationTimeout: 20 * time.Second,
		AdjudicationRPS:     2,
	}
}

// Option customizes a Reconciler.
type Option func(*Reconciler)

// WithAdjudicator enables escalation of borderline pairs.
func WithAdjudicator(a Adjudicator) Option {
	return func(r *Reconciler) { r.adjudicator = a }
}

// WithMetadata attaches context to adjudication requests.
func WithMetadata(f MetadataFunc) Option {
	return func(r *Reconciler) { r.metadata = f }
}

// Reconciler maps source-A names onto source-B names. It is safe for
// concurrent use.
type Reconciler struct {
	cfg         Config
	escalate    map[Tier]bool
	adjudicator Adjudicator
	metadata    MetadataFunc
	limiter     *rate.Limiter
}

// New validates cfg and builds a Reconciler.
func New(cfg Config, opts ...Option) (*Reconciler, error) {
	if cfg.OkayMin <= 0 || cfg.GoodMin <= cfg.OkayMin || cfg.GoodMin >= 100 {
		return nil, eris.Errorf("reconcile: invalid thresholds good_min=%.1f okay_min=%.1f (need 0 < okay_min < good_min < 100)", cfg.GoodMin, cfg.OkayMin)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	r := &Reconciler{cfg: cfg, escalate: make(map[Tier]bool, len(cfg.EscalateTiers))}
	for _, t := range cfg.EscalateTiers {
		switch t {
		case TierExcellent, TierGood, TierOkay:
			r.escalate[t] = true
		default:
			return nil, eris.Errorf("reconcile: tier %q cannot be escalated", t)
		}
	}

	limit := rate.Inf
	if cfg.AdjudicationRPS > 0 {
		limit = rate.Limit(cfg.AdjudicationRPS)
	}
	r.limiter = rate.NewLimiter(limit, 1)

	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Classify maps a similarity score to its tier.
func (r *Reconciler) Classify(score float64) Tier {
	switch {
	case score >= 100:
		return TierExcellent
	case score >= r.cfg.GoodMin:
		return TierGood
	case score >= r.cfg.OkayMin:
		return TierOkay
	default:
		return TierPoor
	}
}

// Result is the mapping produced by one pass, in first-occurrence order of
// the source-A names.
type Result struct {
	Matches []Match `json:"matches"`
}

// Mapping returns the matches keyed by source-A name.
func (res *Result) Mapping() map[string]Match {
	m := make(map[string]Match, len(res.Matches))
	for _, match := range res.Matches {
		m[match.SourceA] = match
	}
	return m
}

// Lookup returns the match for one source-A name.
func (res *Result) Lookup(nameA string) (Match, bool) {
	for _, m := range res.Matches {
		if m.SourceA == nameA {
			return m, true
		}
	}
	return Match{}, false
}

// Reconcile finds the best source-B candidate for every distinct source-A
// name. Individual failures never fail the pass; only a cancelled ctx does.
func (r *Reconciler) Reconcile(ctx context.Context, namesA, namesB []string) (*Result, error) {
	distinct := dedupe(namesA)

	type candidate struct {
		name string
		key  string
	}
	candidates := make([]candidate, 0, len(namesB))
	for _, b := range namesB {
		if key := resolve.MatchKey(b, r.cfg.StripLegalForms); key != "" {
			candidates = append(candidates, candidate{name: b, key: key})
		}
	}

	matches := make([]Match, len(distinct))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)

	for i, nameA := range distinct {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}

			m := Match{SourceA: nameA, Status: StatusUnmatched, Adjudication: OutcomeNotEscalated}

			keyA := resolve.MatchKey(nameA, r.cfg.StripLegalForms)
			switch {
			case keyA == "":
				m.Reason = ReasonMissingName
				zap.L().Warn("reconcile: skipping empty company name")
			case len(candidates) == 0:
				m.Reason = ReasonNoCandidates
			default:
				best, bestScore := -1, -1.0
				for j, c := range candidates {
					if s := resolve.Ratio(keyA, c.key); s > bestScore {
						best, bestScore = j, s
					}
				}
				m.Candidate = candidates[best].name
				m.Score = bestScore
				m.Tier = r.Classify(bestScore)

				if err := r.decide(gCtx, &m); err != nil {
					return err
				}
			}

			metrics.NamesReconciled.WithLabelValues(string(m.Tier), string(m.Status)).Inc()
			matches[i] = m
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "reconcile: pass abandoned")
	}

	return &Result{Matches: matches}, nil
}

// decide sets the status of a compared name. It returns an error only when
// ctx is cancelled.
func (r *Reconciler) decide(ctx context.Context, m *Match) error {
	if m.Tier == TierPoor {
		m.Reason = ReasonLowConfidence
		return nil
	}

	accept := func() {
		m.Status = StatusMatched
		m.SourceB = m.Candidate
		m.Reason = ""
	}

	if r.adjudicator == nil || !r.escalate[m.Tier] {
		accept()
		return nil
	}

	verdict, err := r.adjudicate(ctx, m)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		zap.L().Warn("reconcile: adjudication unavailable, keeping raw tier",
			zap.String("name_a", m.SourceA),
			zap.String("name_b", m.Candidate),
			zap.String("tier", string(m.Tier)),
			zap.Error(err),
		)
		metrics.Adjudications.WithLabelValues(string(OutcomeUnavailable)).Inc()
		m.Adjudication = OutcomeUnavailable
		accept()
		return nil
	}

	m.Explanation = verdict.Explanation
	if verdict.Match {
		m.Adjudication = OutcomeConfirmed
		accept()
	} else {
		m.Adjudication = OutcomeRejected
		m.Status = StatusRejected
		m.Reason = ReasonAdjudicated
	}
	metrics.Adjudications.WithLabelValues(string(m.Adjudication)).Inc()
	return nil
}

func (r *Reconciler) adjudicate(ctx context.Context, m *Match) (Verdict, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return Verdict{}, eris.Wrap(err, "reconcile: rate limit wait")
	}

	req := Request{NameA: m.SourceA, NameB: m.Candidate, Score: m.Score, Tier: m.Tier}
	if r.metadata != nil {
		req.Metadata = r.metadata(m.SourceA, m.Candidate)
	}

	callCtx := ctx
	if r.cfg.AdjudicationTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.cfg.AdjudicationTimeout)
		defer cancel()
	}

	start := time.Now()
	v, err := r.adjudicator.Adjudicate(callCtx, req)
	metrics.AdjudicationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return Verdict{}, eris.Wrap(err, "reconcile: adjudicate")
	}
	return v, nil
}

// dedupe keeps the first occurrence of each name. Blank names collapse into
// one entry.
func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			n = ""
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
