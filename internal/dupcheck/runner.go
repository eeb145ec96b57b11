package dupcheck

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadcheck_backend/platform/apperr"
	"leadcheck_backend/platform/logger"

	"github.com/google/uuid"
)

// Summary holds the counters for one run. Attempted counts every lead pulled
// from the source; Succeeded counts leads whose outcome was both computed and
// persisted.
type Summary struct {
	Total       int
	Attempted   int
	Succeeded   int
	CheckFailed int
	WriteFailed int
	Duplicates  int
	Blocked     int

	// Interrupted is set when a fetch after the first page failed and the
	// run ended early with work left behind.
	Interrupted bool
}

// Remaining estimates how many unprocessed leads the run left behind.
func (s Summary) Remaining() int {
	remaining := s.Total - s.Succeeded
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ExitCode maps the summary to the process exit code: zero only when every
// attempted lead was fully processed and no fetch was cut short.
func (s Summary) ExitCode() int {
	if s.CheckFailed > 0 || s.WriteFailed > 0 || s.Interrupted {
		return apperr.ExitPartial
	}
	return 0
}

// Runner paginates through unprocessed leads and drives the checker over each
// one, strictly sequentially. Per-lead failures are recorded and skipped; only
// a source that cannot produce the first page aborts the run.
type Runner struct {
	source     LeadSource
	checker    *Checker
	writer     ResultWriter
	batchSize  int
	maxBatches int
	logEvery   int
	log        *logger.Logger
}

// NewRunner creates a runner bound to one source, checker, and writer.
func NewRunner(source LeadSource, checker *Checker, writer ResultWriter, batchSize, maxBatches, logEvery int, log *logger.Logger) *Runner {
	if batchSize < 1 {
		batchSize = 1
	}
	if maxBatches < 1 {
		maxBatches = 1
	}
	if logEvery < 1 {
		logEvery = 1
	}
	return &Runner{
		source:     source,
		checker:    checker,
		writer:     writer,
		batchSize:  batchSize,
		maxBatches: maxBatches,
		logEvery:   logEvery,
		log:        log,
	}
}

// Run executes up to maxBatches pages. The returned error is non-nil only for
// failures fatal to the whole run; partial failure is reported through the
// summary instead.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	started := time.Now()
	ctx = context.WithValue(ctx, logger.RunIDKey, uuid.NewString())
	runLog := r.log.WithContext(ctx)

	total, err := r.source.CountUnprocessed(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("count unprocessed leads: %w", err)
	}

	summary := Summary{Total: total}
	if total == 0 {
		runLog.Info("no unprocessed leads")
		return summary, nil
	}

	for batch := 1; batch <= r.maxBatches; batch++ {
		// Written leads leave the unprocessed view, so each page starts
		// where the previous one ended minus what was taken out. Only
		// leads that failed and stayed behind shift the next offset.
		offset := summary.CheckFailed + summary.WriteFailed

		leads, err := r.source.FetchUnprocessed(ctx, r.batchSize, offset)
		if err != nil {
			if batch == 1 {
				return summary, fmt.Errorf("fetch first batch: %w", err)
			}
			runLog.StoreError("fetch", err)
			summary.Interrupted = true
			break
		}
		if len(leads) == 0 {
			break
		}

		runLog.BatchStarted(batch, r.maxBatches, len(leads))
		batchStarted := time.Now()
		batchFailed := 0

		for i, lead := range leads {
			if err := ctx.Err(); err != nil {
				summary.Interrupted = true
				r.logSummary(runLog, summary, started)
				return summary, nil
			}

			if !r.processLead(ctx, runLog, lead, &summary) {
				batchFailed++
			}

			if (i+1)%r.logEvery == 0 {
				runLog.Info("batch_progress",
					"batch", batch,
					"processed", i+1,
					"of", len(leads),
				)
			}
		}

		runLog.BatchCompleted(batch, len(leads)-batchFailed, batchFailed, time.Since(batchStarted))
	}

	r.logSummary(runLog, summary, started)
	return summary, nil
}

// processLead checks one lead and persists the outcome. Returns false when
// the lead failed at either stage.
func (r *Runner) processLead(ctx context.Context, runLog *logger.Logger, lead Lead, summary *Summary) bool {
	summary.Attempted++
	leadID := lead.PropertyUUID.String()

	result := r.checker.Check(ctx, lead)
	if result.Err != nil {
		summary.CheckFailed++
		runLog.LeadError(leadID, "check", result.Err)
		r.recordFailure(ctx, runLog, lead, "check", result.Err)
		return false
	}

	if err := r.writer.WriteResult(ctx, lead, result); err != nil {
		summary.WriteFailed++
		runLog.LeadError(leadID, "write", err)
		r.recordFailure(ctx, runLog, lead, "write", err)
		return false
	}

	summary.Succeeded++
	if result.IsDuplicate() {
		summary.Duplicates++
	}
	if result.DomainBlocked {
		summary.Blocked++
	}
	return true
}

// recordFailure is best-effort; a datastore that cannot even take the failure
// note must not turn one bad lead into a crashed run.
func (r *Runner) recordFailure(ctx context.Context, runLog *logger.Logger, lead Lead, stage string, cause error) {
	if err := r.writer.RecordFailure(ctx, lead, stage, cause); err != nil && !errors.Is(err, context.Canceled) {
		runLog.StoreError("record_failure", err)
	}
}

func (r *Runner) logSummary(runLog *logger.Logger, summary Summary, started time.Time) {
	runLog.RunSummary(
		summary.Attempted,
		summary.Succeeded,
		summary.CheckFailed,
		summary.WriteFailed,
		summary.Duplicates,
		summary.Blocked,
		summary.Remaining(),
		time.Since(started),
	)
}
