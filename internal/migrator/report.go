package migrator

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/hashicorp/go-multierror"
)

// Operation names what a run did.
type Operation string

const (
	OpMigrate  Operation = "migrate"
	OpRollback Operation = "rollback"
	OpStatus   Operation = "status"
)

// Status is the outcome for one database.
type Status string

const (
	StatusApplied  Status = "applied"    // schema changed
	StatusUpToDate Status = "up-to-date" // nothing to do
	StatusSkipped  Status = "skipped"    // nothing to roll back to
	StatusFailed   Status = "failed"
	StatusChecked  Status = "checked" // status runs only
)

// Result describes one database in a run.
type Result struct {
	Tenant    string // tenant ID, or "main"
	Operation Operation
	Status    Status
	From      uint // version before; 0 means none applied
	To        uint // version after
	Dirty     bool
	Note      string
	Err       error
}

// Report collects results in processing order, main first.
type Report struct {
	Operation Operation
	Results   []Result
}

func (r *Report) add(res Result) { r.Results = append(r.Results, res) }

// Failed returns the results whose Status is StatusFailed.
func (r *Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Status == StatusFailed {
			out = append(out, res)
		}
	}
	return out
}

// Err aggregates every per-database failure, nil when none failed.
func (r *Report) Err() error {
	var merr *multierror.Error
	for _, res := range r.Failed() {
		merr = multierror.Append(merr, fmt.Errorf("tenant %s: %w", res.Tenant, res.Err))
	}
	return merr.ErrorOrNil()
}

// WriteTable renders the report as an aligned table, labelling versions
// through label.
func (r *Report) WriteTable(w io.Writer, label func(uint) string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TENANT\tSTATUS\tFROM\tTO\tDIRTY\tNOTE")
	for _, res := range r.Results {
		note := res.Note
		if res.Err != nil {
			note = res.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%s\n",
			res.Tenant, res.Status, label(res.From), label(res.To), res.Dirty, note)
	}
	return tw.Flush()
}
