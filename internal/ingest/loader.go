package ingest

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/hitrate-cli/internal/fetcher"
	"github.com/sells-group/hitrate-cli/internal/model"
	"github.com/sells-group/hitrate-cli/pkg/salesforce"
)

// CRM source kinds.
const (
	CRMSourceXLSX       = "xlsx"
	CRMSourceSalesforce = "salesforce"
)

// Sources names where a snapshot comes from. Paths may be local files or
// http(s)/ftp URLs.
type Sources struct {
	Equipment       []string
	EquipmentSheets []string
	CRM             string
	CRMSheets       []string
	CRMSource       string
	AccountTypes    []string
}

// Fetcher materializes a source as a local file.
type Fetcher interface {
	Fetch(ctx context.Context, source string) (*fetcher.Local, error)
}

// Loader builds snapshots from configured sources.
type Loader struct {
	fetch Fetcher
	sf    salesforce.Client
}

// NewLoader creates a Loader. sf may be nil when the CRM is a workbook.
func NewLoader(f Fetcher, sf salesforce.Client) *Loader {
	return &Loader{fetch: f, sf: sf}
}

// Load reads every source and returns a fresh snapshot. Row-level problems
// land in the report; only unreadable sources fail the load.
func (l *Loader) Load(ctx context.Context, src Sources) (*model.Snapshot, *Report, error) {
	if len(src.Equipment) == 0 {
		return nil, nil, eris.New("ingest: no equipment sources configured")
	}

	rep := &Report{}
	var equipment []model.Equipment
	for _, source := range src.Equipment {
		eqs, err := readFile(ctx, l, source, func(path string) ([]model.Equipment, error) {
			return ReadEquipment(path, src.EquipmentSheets, rep)
		})
		if err != nil {
			return nil, rep, err
		}
		equipment = append(equipment, eqs...)
	}
	dedupeIDs(equipment)

	customers, err := l.loadCustomers(ctx, src, rep)
	if err != nil {
		return nil, rep, err
	}

	snap := model.NewSnapshot(equipment, customers)
	zap.L().Info("ingest: snapshot loaded",
		zap.String("version", snap.Version),
		zap.Int("equipment", len(equipment)),
		zap.Int("customers", len(customers)),
		zap.Int("skipped", rep.Skipped),
		zap.Int("issues", len(rep.Issues)),
	)
	return snap, rep, nil
}

func (l *Loader) loadCustomers(ctx context.Context, src Sources, rep *Report) ([]model.Customer, error) {
	switch strings.ToLower(src.CRMSource) {
	case CRMSourceSalesforce:
		if l.sf == nil {
			return nil, eris.New("ingest: salesforce CRM source selected but no client configured")
		}
		return ReadSalesforceCustomers(ctx, l.sf, salesforce.AccountFilter{Types: src.AccountTypes}, rep)
	case "", CRMSourceXLSX:
		if src.CRM == "" {
			zap.L().Warn("ingest: no CRM source configured, every company will be unmatched")
			return nil, nil
		}
		return readFile(ctx, l, src.CRM, func(path string) ([]model.Customer, error) {
			return ReadCustomers(path, src.CRMSheets, rep)
		})
	default:
		return nil, eris.Errorf("ingest: unknown CRM source %q", src.CRMSource)
	}
}

func readFile[T any](ctx context.Context, l *Loader, source string, read func(string) ([]T, error)) ([]T, error) {
	local, err := l.fetch.Fetch(ctx, source)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: fetch %s", fetcher.BaseName(source))
	}
	defer local.Release()
	return read(local.Path)
}
