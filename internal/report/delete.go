package report

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/keatumal/yandex-metrika-logs/internal/logsapi"
)

// DeleteResult is the outcome of cleaning one report.
type DeleteResult struct {
	ID   int64
	Info logsapi.ReportInfo
	Err  error
}

// DeleteMany cleans every id in order. A failure does not stop the loop;
// each outcome is passed to each (when non-nil) and the failures are
// returned together as a *multierror.Error.
func DeleteMany(ctx context.Context, client logsapi.Client, ids []int64, each func(DeleteResult)) error {
	var errs *multierror.Error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return multierror.Append(errs, err).ErrorOrNil()
		}
		info, err := client.Clean(ctx, id)
		if err != nil {
			err = fmt.Errorf("delete report %d: %w", id, err)
			errs = multierror.Append(errs, err)
		}
		if each != nil {
			each(DeleteResult{ID: id, Info: info, Err: err})
		}
	}
	return errs.ErrorOrNil()
}

// DeleteAll lists the counter's reports and cleans each of them. A list
// failure is returned as is and nothing is deleted.
func DeleteAll(ctx context.Context, client logsapi.Client, each func(DeleteResult)) (int, error) {
	reports, err := client.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list reports: %w", err)
	}
	ids := make([]int64, len(reports))
	for i, r := range reports {
		ids[i] = r.RequestID
	}
	return len(ids), DeleteMany(ctx, client, ids, each)
}
