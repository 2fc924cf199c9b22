package salesforce

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

// mockClient implements Client for testing.
type mockClient struct {
	queryFn func(ctx context.Context, soql string, out any) error
}

func (m *mockClient) Query(ctx context.Context, soql string, out any) error {
	if m.queryFn != nil {
		return m.queryFn(ctx, soql, out)
	}
	return nil
}

func TestWithRateLimit(t *testing.T) {
	t.Run("sets limiter", func(t *testing.T) {
		c := NewClient(nil, WithRateLimit(10)).(*sfClient)
		require.NotNil(t, c.limiter)
		assert.Equal(t, rate.Limit(10), c.limiter.Limit())
		assert.Equal(t, 10, c.limiter.Burst())
	})

	t.Run("zero rate skips limiter", func(t *testing.T) {
		c := NewClient(nil, WithRateLimit(0)).(*sfClient)
		assert.Nil(t, c.limiter)
	})

	t.Run("fractional rate gets burst of 1", func(t *testing.T) {
		c := NewClient(nil, WithRateLimit(0.5)).(*sfClient)
		require.NotNil(t, c.limiter)
		assert.Equal(t, 1, c.limiter.Burst())
	})
}

func TestRateLimiter_CancelledContext(t *testing.T) {
	c := &sfClient{limiter: rate.NewLimiter(rate.Every(time.Hour), 0)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Query(ctx, "SELECT Id FROM Account", &[]Account{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sf: rate limit")
}

func TestConnect_Validation(t *testing.T) {
	_, err := Connect(Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client id is required")

	_, err = Connect(Config{ClientID: "abc", KeyPath: filepath.Join(t.TempDir(), "missing.pem")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read JWT private key")
}

func TestBuildAccountQuery(t *testing.T) {
	tests := []struct {
		name string
		f    AccountFilter
		want string
	}{
		{
			name: "all",
			want: "SELECT Id, Name, Industry, Type, Rating, BillingCountry, BillingState, NumberOfEmployees FROM Account WHERE Name != null ORDER BY Name",
		},
		{
			name: "types and limit",
			f:    AccountFilter{Types: []string{"Customer", "O'Brien"}, Limit: 10},
			want: "SELECT Id, Name, Industry, Type, Rating, BillingCountry, BillingState, NumberOfEmployees FROM Account WHERE Name != null AND Type IN ('Customer', 'O\\'Brien') ORDER BY Name LIMIT 10",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildAccountQuery(tt.f))
		})
	}
}

func TestListAccounts(t *testing.T) {
	c := &mockClient{queryFn: func(_ context.Context, soql string, out any) error {
		assert.Contains(t, soql, "FROM Account")
		*out.(*[]Account) = []Account{{ID: "001A", Name: "Acme Steel", Rating: "Hot"}}
		return nil
	}}

	accounts, err := ListAccounts(context.Background(), c, AccountFilter{})
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "Hot", accounts[0].Rating)
}

func TestListAccounts_Error(t *testing.T) {
	c := &mockClient{queryFn: func(context.Context, string, any) error {
		return errors.New("session expired")
	}}

	_, err := ListAccounts(context.Background(), c, AccountFilter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sf: list accounts")
}
