package salesforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Account represents a Salesforce Account record.
type Account struct {
	ID                string `json:"Id" salesforce:"Id"`
	Name              string `json:"Name" salesforce:"Name"`
	Industry          string `json:"Industry" salesforce:"Industry"`
	Type              string `json:"Type" salesforce:"Type"`
	Rating            string `json:"Rating" salesforce:"Rating"`
	BillingCountry    string `json:"BillingCountry" salesforce:"BillingCountry"`
	BillingState      string `json:"BillingState" salesforce:"BillingState"`
	NumberOfEmployees int    `json:"NumberOfEmployees" salesforce:"NumberOfEmployees"`
}

// accountFields are the SOQL fields selected for Account queries.
var accountFields = []string{
	"Id", "Name", "Industry", "Type", "Rating",
	"BillingCountry", "BillingState", "NumberOfEmployees",
}

// AccountFilter narrows ListAccounts. Zero values select everything.
type AccountFilter struct {
	Types []string // Account.Type values, e.g. "Customer", "Prospect"
	Limit int
}

// ListAccounts returns the accounts matching f, ordered by name.
func ListAccounts(ctx context.Context, c Client, f AccountFilter) ([]Account, error) {
	soql := buildAccountQuery(f)

	var accounts []Account
	if err := c.Query(ctx, soql, &accounts); err != nil {
		return nil, eris.Wrap(err, "sf: list accounts")
	}
	return accounts, nil
}

func buildAccountQuery(f AccountFilter) string {
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM Account WHERE Name != null", strings.Join(accountFields, ", "))
	if len(f.Types) > 0 {
		quoted := make([]string, len(f.Types))
		for i, t := range f.Types {
			quoted[i] = "'" + escapeSoql(t) + "'"
		}
		fmt.Fprintf(&b, " AND Type IN (%s)", strings.Join(quoted, ", "))
	}
	b.WriteString(" ORDER BY Name")
	if f.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", f.Limit)
	}
	return b.String()
}

// escapeSoql escapes single quotes in SOQL string literals to prevent injection.
func escapeSoql(s string) string {
	return strings.ReplaceAll(s, "'", "\\'")
}
