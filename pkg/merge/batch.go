package merge

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

// JobError wraps the failure of one batch job.
type JobError struct {
	Index  int
	Output string
	Err    error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("job %d (%s): %v", e.Index, e.Output, e.Err)
}

func (e *JobError) Unwrap() error { return e.Err }

// RunBatch runs independent merges with at most parallelism running at once
// (unbounded when parallelism < 1). The first failure cancels jobs that have
// not finished. Reports are returned in job order; the report of a job that
// failed or never ran is nil. The error aggregates every job failure other
// than cancellations caused by an earlier failure.
func RunBatch(ctx context.Context, jobs []Config, parallelism int) ([]*Report, error) {
	g, gctx := errgroup.WithContext(ctx)
	if parallelism > 0 {
		g.SetLimit(parallelism)
	}

	reports := make([]*Report, len(jobs))
	var (
		mu   sync.Mutex
		errs *multierror.Error
	)
	for i, job := range jobs {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			rep, err := Run(gctx, job)
			if err != nil {
				if errors.Is(err, context.Canceled) && ctx.Err() == nil && gctx.Err() != nil {
					return nil
				}
				jerr := &JobError{Index: i, Output: job.OutputPath, Err: err}
				mu.Lock()
				errs = multierror.Append(errs, jerr)
				mu.Unlock()
				return jerr
			}
			reports[i] = rep
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return reports, err
	}
	if errs != nil {
		errs.ErrorFormat = formatJobErrors
	}
	return reports, errs.ErrorOrNil()
}

func formatJobErrors(errs []error) string {
	if len(errs) == 1 {
		return errs[0].Error()
	}
	msg := fmt.Sprintf("%d jobs failed:", len(errs))
	for _, err := range errs {
		msg += "\n\t* " + err.Error()
	}
	return msg
}
