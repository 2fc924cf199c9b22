package dashboard

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/hitrate-cli/internal/ingest"
	"github.com/sells-group/hitrate-cli/internal/metrics"
	"github.com/sells-group/hitrate-cli/internal/model"
	"github.com/sells-group/hitrate-cli/internal/reconcile"
	"github.com/sells-group/hitrate-cli/internal/scoring"
	"github.com/sells-group/hitrate-cli/internal/store"
)

// ErrNotLoaded is returned before the first successful reload.
var ErrNotLoaded = eris.New("dashboard: no data loaded")

// LoadFunc produces a fresh snapshot.
type LoadFunc func(ctx context.Context) (*model.Snapshot, *ingest.Report, error)

// State is one loaded, reconciled snapshot. It is never modified after a
// reload publishes it.
type State struct {
	Snapshot   *model.Snapshot
	Report     *ingest.Report
	Result     *reconcile.Result
	Quality    reconcile.QualityReport
	RunID      string
	ReloadedAt time.Time

	memo *scoring.Memo
}

// Rows builds the filtered rows of this state.
func (st *State) Rows(f Filter, asOf time.Time) []Row {
	return Build(st.Snapshot, st.Result, st.memo, f, asOf)
}

// ServiceConfig wires a Service.
type ServiceConfig struct {
	Load        LoadFunc
	Reconcile   reconcile.Config
	Adjudicator reconcile.Adjudicator // optional
	Scorer      *scoring.Scorer
	Store       store.Store // optional run history
	// Clock supplies the scoring date; nil means time.Now.
	Clock func() time.Time
}

// Service owns the current State. Readers never block a reload for longer
// than the final pointer swap.
type Service struct {
	cfg ServiceConfig
	now func() time.Time

	reloadMu sync.Mutex

	mu    sync.RWMutex
	state *State
}

// NewService validates cfg. Call Reload before serving.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Load == nil {
		return nil, eris.New("dashboard: load function is required")
	}
	if cfg.Scorer == nil {
		return nil, eris.New("dashboard: scorer is required")
	}
	if _, err := reconcile.New(cfg.Reconcile); err != nil {
		return nil, err
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	return &Service{cfg: cfg, now: now}, nil
}

// State returns the current state.
func (s *Service) State() (*State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return nil, ErrNotLoaded
	}
	return s.state, nil
}

// Now is the as-of time used for scoring.
func (s *Service) Now() time.Time { return s.now().UTC() }

// Reload loads and reconciles a new snapshot and publishes it. Concurrent
// reloads run one at a time. On failure the previous state stays current.
func (s *Service) Reload(ctx context.Context) (*State, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	start := time.Now()
	st, err := s.build(ctx)
	if err != nil {
		metrics.Reloads.WithLabelValues("error").Inc()
		return nil, err
	}

	s.mu.Lock()
	s.state = st
	s.mu.Unlock()

	metrics.Reloads.WithLabelValues("ok").Inc()
	metrics.SnapshotRows.WithLabelValues("equipment").Set(float64(len(st.Snapshot.Equipment)))
	metrics.SnapshotRows.WithLabelValues("customers").Set(float64(len(st.Snapshot.Customers)))

	zap.L().Info("dashboard: reloaded",
		zap.String("version", st.Snapshot.Version),
		zap.String("run_id", st.RunID),
		zap.Int("names", st.Quality.Total),
		zap.Int("matched", st.Quality.Matched),
		zap.Duration("elapsed", time.Since(start)),
	)
	return st, nil
}

func (s *Service) build(ctx context.Context) (*State, error) {
	snap, rep, err := s.cfg.Load(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "dashboard: load snapshot")
	}

	opts := []reconcile.Option{reconcile.WithMetadata(SnapshotMetadata(snap))}
	if s.cfg.Adjudicator != nil {
		opts = append(opts, reconcile.WithAdjudicator(s.cfg.Adjudicator))
	}
	rec, err := reconcile.New(s.cfg.Reconcile, opts...)
	if err != nil {
		return nil, err
	}

	res, err := rec.Reconcile(ctx, snap.CompanyNames(), snap.CustomerNames())
	if err != nil {
		return nil, err
	}

	st := &State{
		Snapshot:   snap,
		Report:     rep,
		Result:     res,
		Quality:    reconcile.Quality(res.Matches),
		ReloadedAt: s.Now(),
		memo:       scoring.NewMemo(s.cfg.Scorer),
	}
	st.RunID = s.recordRun(ctx, st)
	return st, nil
}

// recordRun stores the run in the history. The history is best-effort; a
// failure only costs the entry.
func (s *Service) recordRun(ctx context.Context, st *State) string {
	if s.cfg.Store == nil {
		return uuid.New().String()
	}
	quality, err := json.Marshal(st.Quality)
	if err != nil {
		zap.L().Warn("dashboard: encode quality", zap.Error(err))
	}
	run, err := s.cfg.Store.CreateRun(ctx, store.Run{
		SnapshotVersion: st.Snapshot.Version,
		Names:           st.Quality.Total,
		Matched:         st.Quality.Matched,
		Quality:         quality,
	})
	if err != nil {
		zap.L().Warn("dashboard: record run", zap.Error(err))
		return uuid.New().String()
	}
	return run.ID
}

// Runs returns the stored run history, newest first. Without a store it is
// empty.
func (s *Service) Runs(ctx context.Context, limit int) ([]store.Run, error) {
	if s.cfg.Store == nil {
		return []store.Run{}, nil
	}
	return s.cfg.Store.ListRuns(ctx, limit)
}

// SnapshotMetadata supplies adjudication context from the snapshot: the
// inventory country and region of name A and the CRM country of name B.
func SnapshotMetadata(snap *model.Snapshot) reconcile.MetadataFunc {
	eqByCompany := make(map[string]model.Equipment, len(snap.Equipment))
	for _, eq := range snap.Equipment {
		if _, ok := eqByCompany[eq.Company]; !ok {
			eqByCompany[eq.Company] = eq
		}
	}
	customers := customerIndex(snap)

	return func(nameA, nameB string) map[string]string {
		md := map[string]string{}
		if eq, ok := eqByCompany[nameA]; ok {
			setIf(md, "inventory_country", eq.Country)
			setIf(md, "inventory_region", eq.Region)
		}
		if c, ok := customers[nameB]; ok {
			setIf(md, "crm_country", c.Country)
			setIf(md, "crm_region", c.Region)
		}
		return md
	}
}

func setIf(m map[string]string, k, v string) {
	if v != "" {
		m[k] = v
	}
}
