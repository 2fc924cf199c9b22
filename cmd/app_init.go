package main

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/hitrate-cli/internal/adjudicate"
	"github.com/sells-group/hitrate-cli/internal/config"
	"github.com/sells-group/hitrate-cli/internal/dashboard"
	"github.com/sells-group/hitrate-cli/internal/fetcher"
	"github.com/sells-group/hitrate-cli/internal/ingest"
	"github.com/sells-group/hitrate-cli/internal/model"
	"github.com/sells-group/hitrate-cli/internal/reconcile"
	"github.com/sells-group/hitrate-cli/internal/resilience"
	"github.com/sells-group/hitrate-cli/internal/scoring"
	"github.com/sells-group/hitrate-cli/internal/store"
	anthropicpkg "github.com/sells-group/hitrate-cli/pkg/anthropic"
	"github.com/sells-group/hitrate-cli/pkg/salesforce"
)

// appEnv holds everything the reconcile, score and serve commands share.
type appEnv struct {
	Store   store.Store // nil when store.driver is "none"
	Service *dashboard.Service
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initApp validates the config for mode and wires the store, the loader,
// the adjudicator and the scorer into a dashboard service. Callers should
// defer env.Close().
func initApp(ctx context.Context, c *config.Config, mode string) (*appEnv, error) {
	if err := c.Validate(mode); err != nil {
		return nil, err
	}

	scorer, err := initScorer(c)
	if err != nil {
		return nil, err
	}
	rc, err := reconcileConfig(c)
	if err != nil {
		return nil, err
	}
	asOf, err := c.Scoring.AsOfTime()
	if err != nil {
		return nil, err
	}

	st, err := initStore(ctx, c)
	if err != nil {
		return nil, err
	}
	env := &appEnv{Store: st}

	sf, err := initSalesforce(c)
	if err != nil {
		env.Close()
		return nil, err
	}

	loader := ingest.NewLoader(fetcher.New(fetcher.Options{
		Timeout: time.Duration(c.Sources.FetchTimeoutSec) * time.Second,
		TempDir: c.Sources.TempDir,
	}), sf)
	src := sources(c)

	svcCfg := dashboard.ServiceConfig{
		Load: func(ctx context.Context) (*model.Snapshot, *ingest.Report, error) {
			return loader.Load(ctx, src)
		},
		Reconcile:   rc,
		Adjudicator: initAdjudicator(c, st),
		Scorer:      scorer,
		Store:       st,
	}
	if !asOf.IsZero() {
		svcCfg.Clock = func() time.Time { return asOf }
	}

	svc, err := dashboard.NewService(svcCfg)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Service = svc
	return env, nil
}

// initStore opens and migrates the configured store. The "none" driver
// disables the verdict cache and the run history.
func initStore(ctx context.Context, c *config.Config) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch c.Store.Driver {
	case "none":
		return nil, nil
	case "sqlite":
		st, err = store.NewSQLite(c.Store.Path)
	case "postgres":
		st, err = store.NewPostgres(ctx, c.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: c.Store.MaxConns,
			MinConns: c.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", c.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initSalesforce connects only when the CRM comes from Salesforce.
func initSalesforce(c *config.Config) (salesforce.Client, error) {
	if !strings.EqualFold(c.Sources.CRMSource, ingest.CRMSourceSalesforce) {
		return nil, nil
	}
	return salesforce.Connect(salesforce.Config{
		ClientID:    c.Salesforce.ClientID,
		Username:    c.Salesforce.Username,
		KeyPath:     c.Salesforce.KeyPath,
		LoginURL:    c.Salesforce.LoginURL,
		AccessToken: c.Salesforce.AccessToken,
	}, salesforce.WithRateLimit(c.Salesforce.RateLimit))
}

// initAdjudicator returns nil when adjudication is off. With a store the
// Claude adjudicator sits behind the verdict cache.
func initAdjudicator(c *config.Config, st store.Store) reconcile.Adjudicator {
	if !c.Reconcile.Adjudicate {
		return nil
	}

	claude := adjudicate.NewClaude(anthropicpkg.NewClient(c.Anthropic.Key, c.Anthropic.BaseURL), adjudicate.ClaudeConfig{
		Model:     c.Anthropic.Model,
		MaxTokens: int64(c.Anthropic.MaxTokens),
		Retry:     resilience.NewRetryConfig(c.Anthropic.MaxRetries, c.Anthropic.RetryBaseMs),
		Breaker: resilience.BreakerConfig{
			FailureThreshold: c.Anthropic.BreakerFails,
			Cooldown:         time.Duration(c.Anthropic.BreakerCoolS) * time.Second,
		},
	})
	zap.L().Info("adjudication enabled",
		zap.String("model", c.Anthropic.Model),
		zap.Strings("tiers", c.Reconcile.EscalateTiers),
	)

	if st == nil {
		zap.L().Warn("store disabled, adjudication verdicts will not be cached")
		return claude
	}
	return adjudicate.NewCached(claude, st, time.Duration(c.Anthropic.CacheTTLHours)*time.Hour)
}

func initScorer(c *config.Config) (*scoring.Scorer, error) {
	w, err := scoring.LoadWeights(c.Scoring.WeightsFile)
	if err != nil {
		return nil, err
	}
	return scoring.New(w)
}

// reconcileConfig converts the reconcile section, rejecting unknown tiers.
func reconcileConfig(c *config.Config) (reconcile.Config, error) {
	rc := reconcile.Config{
		GoodMin:             c.Reconcile.GoodMin,
		OkayMin:             c.Reconcile.OkayMin,
		StripLegalForms:     c.Reconcile.StripLegalForms,
		Workers:             c.Reconcile.Workers,
		AdjudicationTimeout: time.Duration(c.Reconcile.TimeoutSecs) * time.Second,
		AdjudicationRPS:     c.Reconcile.RPS,
	}
	for _, name := range c.Reconcile.EscalateTiers {
		t := reconcile.ParseTier(name)
		if t == reconcile.TierNone {
			return reconcile.Config{}, eris.Errorf("unknown escalation tier %q", name)
		}
		rc.EscalateTiers = append(rc.EscalateTiers, t)
	}
	return rc, nil
}

func sources(c *config.Config) ingest.Sources {
	return ingest.Sources{
		Equipment:       c.Sources.Equipment,
		EquipmentSheets: c.Sources.EquipmentSheets,
		CRM:             c.Sources.CRM,
		CRMSheets:       c.Sources.CRMSheets,
		CRMSource:       c.Sources.CRMSource,
		AccountTypes:    c.Salesforce.AccountTypes,
	}
}
