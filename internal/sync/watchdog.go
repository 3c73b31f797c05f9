package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/notedb/notedb/internal/errors"
)

// Watchdog supervises one dispatched batch by polling at a fixed
// interval. A batch that outlives the deadline is force-killed with
// resources kept, so a retry can reuse the finished work.
//
// Polling stops on its own when the batch leaves the pool; there is no
// timer to remember to cancel on the happy path.
type Watchdog struct {
	pool     *Pool
	interval time.Duration
	deadline time.Duration
}

// NewWatchdog creates a watchdog for pool with the given poll interval
// and batch deadline.
func NewWatchdog(pool *Pool, interval, deadline time.Duration) *Watchdog {
	return &Watchdog{
		pool:     pool,
		interval: interval,
		deadline: deadline,
	}
}

// Watch supervises job until it completes, is killed, or overruns the
// deadline. On overrun the job is killed (keeping worker resources) and
// a single ERR_504 error is delivered on the returned channel. In every
// other case the channel closes without a value.
func (w *Watchdog) Watch(ctx context.Context, job *Job) <-chan error {
	ch := make(chan error, 1)

	go func() {
		defer close(ch)

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if job.Status() != JobRunning {
					return
				}

				elapsed := job.Elapsed()
				if elapsed <= w.deadline {
					continue
				}

				if !w.pool.killJob(job, true) {
					// Finished between the status check and the kill;
					// the results are already on their way.
					return
				}

				done, total := job.Progress()
				slog.Warn("watchdog_deadline_exceeded",
					slog.Int("job_id", job.id),
					slog.Duration("elapsed", elapsed),
					slog.Duration("deadline", w.deadline),
					slog.Int("completed", done),
					slog.Int("total", total),
				)

				ch <- errors.New(errors.ErrCodeSyncTimeout,
					fmt.Sprintf("parse batch exceeded %s deadline", w.deadline), nil).
					WithDetail("completed", fmt.Sprintf("%d/%d", done, total)).
					WithSuggestion("re-run sync; finished files are cached and will not be re-parsed")
				return
			}
		}
	}()

	return ch
}
