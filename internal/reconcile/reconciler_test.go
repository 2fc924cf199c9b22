package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockAdjudicator struct {
	mock.Mock
}

func (m *mockAdjudicator) Adjudicate(ctx context.Context, req Request) (Verdict, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(Verdict), args.Error(1)
}

type adjudicatorFunc func(ctx context.Context, req Request) (Verdict, error)

func (f adjudicatorFunc) Adjudicate(ctx context.Context, req Request) (Verdict, error) {
	return f(ctx, req)
}

func newTestReconciler(t *testing.T, opts ...Option) *Reconciler {
	t.Helper()
	cfg := DefaultConfig()
	cfg.AdjudicationRPS = 0
	r, err := New(cfg, opts...)
	require.NoError(t, err)
	return r
}

func TestReconcile_TokenOrderIsExcellent(t *testing.T) {
	r := newTestReconciler(t)

	res, err := r.Reconcile(context.Background(), []string{"Acme Steel GmbH"}, []string{"Nucor", "GmbH Acme Steel"})
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)

	m := res.Matches[0]
	assert.Equal(t, TierExcellent, m.Tier)
	assert.Equal(t, 100.0, m.Score)
	assert.Equal(t, StatusMatched, m.Status)
	assert.Equal(t, "GmbH Acme Steel", m.SourceB)
	assert.True(t, m.Accepted())
}

func TestReconcile_Tiers(t *testing.T) {
	r := newTestReconciler(t)
	namesB := []string{"Thyssenkrupp Steel Europe AG", "Acme Steel", "Baosteel"}

	res, err := r.Reconcile(context.Background(),
		[]string{"Thyssenkrupp Steel Europe", "Acme Steel Works", "Nucor"}, namesB)
	require.NoError(t, err)
	mapping := res.Mapping()

	good := mapping["Thyssenkrupp Steel Europe"]
	assert.Equal(t, TierGood, good.Tier)
	assert.InDelta(t, 100*(1-3.0/53.0), good.Score, 1e-9)
	assert.Equal(t, StatusMatched, good.Status)

	okay := mapping["Acme Steel Works"]
	assert.Equal(t, TierOkay, okay.Tier)
	assert.Equal(t, "Acme Steel", okay.SourceB)

	poor := mapping["Nucor"]
	assert.Equal(t, TierPoor, poor.Tier)
	assert.Equal(t, StatusUnmatched, poor.Status)
	assert.Empty(t, poor.SourceB)
	assert.NotEmpty(t, poor.Candidate)
	assert.Equal(t, ReasonLowConfidence, poor.Reason)
}

func TestReconcile_Deterministic(t *testing.T) {
	r := newTestReconciler(t)
	namesA := []string{"Acme Steel Works", "Nucor", "Tata Steel", "Acme Steel Works", "ArcelorMittal"}
	namesB := []string{"Acme Steel", "Tata Steel Ltd", "Nucor Corporation", "Arcelor Mittal SA"}

	first, err := r.Reconcile(context.Background(), namesA, namesB)
	require.NoError(t, err)
	second, err := r.Reconcile(context.Background(), namesA, namesB)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestReconcile_FirstMaximumWins(t *testing.T) {
	r := newTestReconciler(t)
	res, err := r.Reconcile(context.Background(), []string{"acme steel"}, []string{"Acme Steel", "Steel Acme"})
	require.NoError(t, err)
	assert.Equal(t, "Acme Steel", res.Matches[0].SourceB)
}

func TestReconcile_DuplicatesAndOrder(t *testing.T) {
	r := newTestReconciler(t)
	res, err := r.Reconcile(context.Background(),
		[]string{"Beta", "Acme", "Beta", "Gamma", "Acme"}, []string{"Acme", "Beta", "Gamma"})
	require.NoError(t, err)

	var got []string
	for _, m := range res.Matches {
		got = append(got, m.SourceA)
	}
	assert.Equal(t, []string{"Beta", "Acme", "Gamma"}, got)
}

func TestReconcile_EmptyNameAndNoCandidates(t *testing.T) {
	r := newTestReconciler(t)

	res, err := r.Reconcile(context.Background(), []string{"", "  ", "Acme"}, nil)
	require.NoError(t, err)
	require.Len(t, res.Matches, 2)

	assert.Equal(t, ReasonMissingName, res.Matches[0].Reason)
	assert.Equal(t, StatusUnmatched, res.Matches[0].Status)
	assert.Equal(t, TierNone, res.Matches[0].Tier)

	assert.Equal(t, ReasonNoCandidates, res.Matches[1].Reason)
	assert.False(t, res.Matches[1].Attempted())

	res, err = r.Reconcile(context.Background(), []string{"Acme"}, []string{"", "---"})
	require.NoError(t, err)
	assert.Equal(t, ReasonNoCandidates, res.Matches[0].Reason)
}

func TestReconcile_ManyToOne(t *testing.T) {
	r := newTestReconciler(t)
	res, err := r.Reconcile(context.Background(), []string{"Acme Steel", "ACME STEEL."}, []string{"Acme Steel"})
	require.NoError(t, err)
	for _, m := range res.Matches {
		assert.Equal(t, "Acme Steel", m.SourceB)
	}
}

func TestReconcile_StripLegalForms(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StripLegalForms = true
	r, err := New(cfg)
	require.NoError(t, err)

	res, err := r.Reconcile(context.Background(), []string{"Acme Steel GmbH"}, []string{"Acme Steel Inc."})
	require.NoError(t, err)
	assert.Equal(t, TierExcellent, res.Matches[0].Tier)
}

func TestReconcile_AdjudicationConfirmsAndRejects(t *testing.T) {
	adj := new(mockAdjudicator)
	adj.On("Adjudicate", mock.Anything, mock.MatchedBy(func(r Request) bool { return r.NameA == "Acme Steel Works" })).
		Return(Verdict{Match: true, Explanation: "same group"}, nil)
	adj.On("Adjudicate", mock.Anything, mock.MatchedBy(func(r Request) bool { return r.NameA == "Thyssenkrupp Steel Europe" })).
		Return(Verdict{Match: false, Explanation: "different entity"}, nil)

	r := newTestReconciler(t, WithAdjudicator(adj), WithMetadata(func(a, _ string) map[string]string {
		return map[string]string{"country": "DE"}
	}))

	res, err := r.Reconcile(context.Background(),
		[]string{"Acme Steel Works", "Thyssenkrupp Steel Europe", "Acme Steel", "Nucor"},
		[]string{"Acme Steel", "Thyssenkrupp Steel Europe AG", "Baosteel"})
	require.NoError(t, err)
	mapping := res.Mapping()

	confirmed := mapping["Acme Steel Works"]
	assert.Equal(t, StatusMatched, confirmed.Status)
	assert.Equal(t, OutcomeConfirmed, confirmed.Adjudication)
	assert.Equal(t, "same group", confirmed.Explanation)

	rejected := mapping["Thyssenkrupp Steel Europe"]
	assert.Equal(t, StatusRejected, rejected.Status)
	assert.Equal(t, TierGood, rejected.Tier)
	assert.Empty(t, rejected.SourceB)
	assert.Equal(t, "Thyssenkrupp Steel Europe AG", rejected.Candidate)

	// Excellent and Poor are not escalated by default.
	assert.Equal(t, OutcomeNotEscalated, mapping["Acme Steel"].Adjudication)
	assert.Equal(t, OutcomeNotEscalated, mapping["Nucor"].Adjudication)

	adj.AssertNumberOfCalls(t, "Adjudicate", 2)
	adj.AssertCalled(t, "Adjudicate", mock.Anything, mock.MatchedBy(func(r Request) bool {
		return r.Metadata["country"] == "DE" && r.Tier == TierOkay
	}))
}

func TestReconcile_AdjudicationFailureKeepsGoodTier(t *testing.T) {
	adj := new(mockAdjudicator)
	adj.On("Adjudicate", mock.Anything, mock.Anything).
		Return(Verdict{}, errors.New("service down"))

	r := newTestReconciler(t, WithAdjudicator(adj))
	res, err := r.Reconcile(context.Background(),
		[]string{"Thyssenkrupp Steel Europe"}, []string{"Thyssenkrupp Steel Europe AG"})
	require.NoError(t, err)

	m := res.Matches[0]
	assert.Equal(t, TierGood, m.Tier)
	assert.Equal(t, StatusMatched, m.Status)
	assert.Equal(t, OutcomeUnavailable, m.Adjudication)
	adj.AssertExpectations(t)
}

func TestReconcile_AdjudicationTimeout(t *testing.T) {
	slow := adjudicatorFunc(func(ctx context.Context, _ Request) (Verdict, error) {
		<-ctx.Done()
		return Verdict{}, ctx.Err()
	})

	cfg := DefaultConfig()
	cfg.AdjudicationTimeout = 10 * time.Millisecond
	r, err := New(cfg, WithAdjudicator(slow))
	require.NoError(t, err)

	res, err := r.Reconcile(context.Background(), []string{"Acme Steel Works"}, []string{"Acme Steel"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnavailable, res.Matches[0].Adjudication)
	assert.Equal(t, StatusMatched, res.Matches[0].Status)
}

func TestReconcile_CancelledContext(t *testing.T) {
	r := newTestReconciler(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Reconcile(ctx, []string{"Acme"}, []string{"Acme"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClassify(t *testing.T) {
	r := newTestReconciler(t)
	tests := []struct {
		score float64
		want  Tier
	}{
		{100, TierExcellent},
		{99.99, TierGood},
		{80, TierGood},
		{79.99, TierOkay},
		{50, TierOkay},
		{49.99, TierPoor},
		{0, TierPoor},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, r.Classify(tt.score), tt.score)
	}
}

func TestNew_Invalid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GoodMin = 40
	_, err := New(cfg)
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.EscalateTiers = []Tier{TierPoor}
	_, err = New(cfg)
	assert.Error(t, err)
}

func TestParseTier(t *testing.T) {
	assert.Equal(t, TierGood, ParseTier("good"))
	assert.Equal(t, TierExcellent, ParseTier(" EXCELLENT "))
	assert.Equal(t, TierNone, ParseTier("great"))
}
