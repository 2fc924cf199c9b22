// Package salesforce provides read access to Salesforce CRM accounts.
package salesforce

import (
	"context"
	"os"

	"github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Client defines the Salesforce API operations used to load CRM accounts.
type Client interface {
	Query(ctx context.Context, soql string, out any) error
}

// Config holds JWT bearer-flow credentials. AccessToken, when set, is used
// as-is and skips the JWT exchange.
type Config struct {
	ClientID    string
	Username    string
	KeyPath     string
	LoginURL    string
	AccessToken string
}

// ClientOption configures the Salesforce client.
type ClientOption func(*sfClient)

// WithRateLimit sets a per-second rate limit for SF API calls.
// A burst equal to the integer portion of rps is allowed.
func WithRateLimit(rps float64) ClientOption {
	return func(c *sfClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

// sfClient wraps the go-salesforce/v3 Salesforce struct.
//
// go-salesforce does not accept a context, so ctx only bounds the rate
// limiter wait.
type sfClient struct {
	sf      *salesforce.Salesforce
	limiter *rate.Limiter
}

// NewClient creates a new Salesforce Client wrapping the given go-salesforce instance.
func NewClient(sf *salesforce.Salesforce, opts ...ClientOption) Client {
	c := &sfClient{sf: sf}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect authenticates against Salesforce and returns a Client.
func Connect(cfg Config, opts ...ClientOption) (Client, error) {
	creds := salesforce.Creds{Domain: cfg.LoginURL, AccessToken: cfg.AccessToken}
	if cfg.AccessToken == "" {
		if cfg.ClientID == "" {
			return nil, eris.New("sf: client id is required")
		}
		pemData, err := os.ReadFile(cfg.KeyPath)
		if err != nil {
			return nil, eris.Wrap(err, "sf: read JWT private key")
		}
		creds.Username = cfg.Username
		creds.ConsumerKey = cfg.ClientID
		creds.ConsumerRSAPem = string(pemData)
	}

	sf, err := salesforce.Init(creds)
	if err != nil {
		return nil, eris.Wrap(err, "sf: init")
	}
	return NewClient(sf, opts...), nil
}

// wait blocks until the rate limiter allows one event, or ctx is cancelled.
func (c *sfClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func (c *sfClient) Query(ctx context.Context, soql string, out any) error {
	if err := c.wait(ctx); err != nil {
		return eris.Wrap(err, "sf: rate limit")
	}
	if err := c.sf.Query(soql, out); err != nil {
		return eris.Wrap(err, "sf: query")
	}
	return nil
}
