package ingest

import (
	"context"

	"github.com/sells-group/hitrate-cli/internal/model"
	"github.com/sells-group/hitrate-cli/pkg/salesforce"
)

const salesforceSource = "salesforce"

// ReadSalesforceCustomers loads CRM accounts from Salesforce. The Account
// Rating picklist (Hot/Warm/Cold) maps onto the A-E scale.
func ReadSalesforceCustomers(ctx context.Context, c salesforce.Client, f salesforce.AccountFilter, rep *Report) ([]model.Customer, error) {
	accounts, err := salesforce.ListAccounts(ctx, c, f)
	if err != nil {
		return nil, err
	}
	rep.Sheets = append(rep.Sheets, "Account")

	out := make([]model.Customer, 0, len(accounts))
	for _, a := range accounts {
		rep.Rows++
		cust, ok := accountToCustomer(a, rep)
		if !ok {
			rep.Skipped++
			continue
		}
		out = append(out, cust)
	}
	rep.Customers += len(out)
	return out, nil
}

func accountToCustomer(a salesforce.Account, rep *Report) (model.Customer, bool) {
	c := model.Customer{
		ID:      a.ID,
		Name:    a.Name,
		Country: a.BillingCountry,
		Region:  a.BillingState,
	}
	if c.Name == "" {
		rep.add(Issue{Source: salesforceSource, Sheet: "Account", Field: FieldName, Reason: ReasonMissingField, Value: a.ID})
		return c, false
	}
	if a.Rating != "" {
		c.Rating = model.ParseRating(a.Rating)
		if c.Rating == model.RatingUnknown {
			rep.add(Issue{Source: salesforceSource, Sheet: "Account", Field: FieldRating, Reason: ReasonUnknownRating, Value: a.Rating})
		}
	}
	if a.NumberOfEmployees > 0 {
		n := a.NumberOfEmployees
		c.Employees = &n
	}
	return c, true
}
