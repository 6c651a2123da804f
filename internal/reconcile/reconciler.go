// Package reconcile drains the catalog delete queue against the advertising
// platform.
//
// A run fetches at most BatchLimit rows, deletes each item upstream, and
// removes the queue row only when the item is confirmed gone. Rows whose
// delete failed stay queued for the next run and are reported to the
// diagnostic sink. Runs are safe to repeat: "not found" upstream counts as
// deleted.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"storefront/internal/adcatalog"
	"storefront/internal/diagnostics"
	"storefront/internal/queue"
)

// BatchLimit is the most rows a single run will process.
const BatchLimit = 50

// ErrFetchBatch wraps a failure to list pending rows. Nothing was
// processed when a run returns it.
var ErrFetchBatch = errors.New("fetch pending batch")

// Result is the outcome for one queue row.
type Result struct {
	QueueID      string  `json:"queueId"`
	ExternalID   string  `json:"externalId"`
	Outcome      Outcome `json:"outcome"`
	ErrorDetail  string  `json:"error,omitempty"`
	CleanupError string  `json:"cleanupError,omitempty"`
}

// Summary is what a run reports.
type Summary struct {
	Processed int      `json:"processed"`
	Deleted   int      `json:"deleted"`
	Failed    int      `json:"failed"`
	Details   []Result `json:"details"`
}

// Hooks are optional per-record callbacks, used for metrics.
type Hooks struct {
	OnRecord func(outcome string, latency time.Duration, cleanupFailed bool)
}

type Reconciler struct {
	store       queue.Store
	deleter     adcatalog.Deleter
	sink        diagnostics.Sink
	logger      *zap.Logger
	concurrency int
	hooks       Hooks
}

// New builds a Reconciler. concurrency below 2 processes records one at a
// time.
func New(store queue.Store, deleter adcatalog.Deleter, sink diagnostics.Sink, logger *zap.Logger, concurrency int, hooks Hooks) *Reconciler {
	if concurrency < 1 {
		concurrency = 1
	}
	if hooks.OnRecord == nil {
		hooks.OnRecord = func(string, time.Duration, bool) {}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		store:       store,
		deleter:     deleter,
		sink:        sink,
		logger:      logger,
		concurrency: concurrency,
		hooks:       hooks,
	}
}

// Run processes one batch. Only a failed batch fetch is returned as an
// error; per-record failures are reported in the Summary.
func (r *Reconciler) Run(ctx context.Context) (Summary, error) {
	recs, err := r.store.ListPending(ctx, BatchLimit)
	if err != nil {
		return Summary{}, fmt.Errorf("%w: %v", ErrFetchBatch, err)
	}
	if len(recs) > BatchLimit {
		recs = recs[:BatchLimit]
	}
	if len(recs) == 0 {
		r.logger.Info("delete queue empty")
		return Summary{Details: []Result{}}, nil
	}

	r.logger.Info("processing delete batch", zap.Int("records", len(recs)), zap.Int("concurrency", r.concurrency))

	results := make([]Result, len(recs))
	if r.concurrency == 1 {
		for i, rec := range recs {
			results[i] = r.processRecord(ctx, rec)
		}
	} else {
		// plain Group: a record failure must not cancel its siblings
		var g errgroup.Group
		g.SetLimit(r.concurrency)
		for i, rec := range recs {
			g.Go(func() error {
				results[i] = r.processRecord(ctx, rec)
				return nil
			})
		}
		_ = g.Wait()
	}

	sum := Summary{Processed: len(results), Details: results}
	for _, res := range results {
		if res.Outcome == OutcomeDeleted {
			sum.Deleted++
		} else {
			sum.Failed++
		}
	}

	r.logger.Info("delete batch finished",
		zap.Int("processed", sum.Processed),
		zap.Int("deleted", sum.Deleted),
		zap.Int("failed", sum.Failed))
	return sum, nil
}

// processRecord never panics and never returns an error; everything that
// goes wrong ends up in the Result.
func (r *Reconciler) processRecord(ctx context.Context, rec queue.Record) Result {
	log := r.logger.With(zap.String("queue_id", rec.QueueID), zap.String("external_id", rec.ExternalID))
	start := time.Now()

	res := r.attempt(ctx, log, rec)
	if res.Outcome != OutcomeDeleted {
		r.reportFailure(ctx, log, res)
	}
	r.observe(log, res, time.Since(start))
	return res
}

// attempt deletes upstream and, on success, removes the queue row. Once the
// upstream delete succeeded a panic is treated as a cleanup failure.
func (r *Reconciler) attempt(ctx context.Context, log *zap.Logger, rec queue.Record) (res Result) {
	res = Result{QueueID: rec.QueueID, ExternalID: rec.ExternalID}
	confirmed := false
	defer func() {
		p := recover()
		if p == nil {
			return
		}
		log.Error("record processing panicked", zap.Any("panic", p), zap.Bool("upstream_deleted", confirmed))
		if confirmed {
			res.Outcome, res.ErrorDetail = OutcomeDeleted, ""
			res.CleanupError = fmt.Sprintf("panic: %v", p)
			return
		}
		res.Outcome = OutcomeError
		res.ErrorDetail = fmt.Sprintf("panic: %v", p)
		res.CleanupError = ""
	}()

	resp, err := r.deleter.Delete(ctx, rec.ExternalID)
	res.Outcome, res.ErrorDetail = Classify(resp, err)

	if res.Outcome != OutcomeDeleted {
		log.Warn("catalog delete failed", zap.String("detail", res.ErrorDetail))
		return res
	}
	confirmed = true

	log.Debug("catalog item deleted", zap.Int("status", resp.StatusCode))

	if err := r.store.DeleteByID(ctx, rec.QueueID); err != nil && !errors.Is(err, queue.ErrNotFound) {
		// row stays queued; the next run sees 404 and removes it
		res.CleanupError = err.Error()
		log.Error("queue row cleanup failed", zap.Error(err))
	}
	return res
}

func (r *Reconciler) reportFailure(ctx context.Context, log *zap.Logger, res Result) {
	if r.sink == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			log.Error("diagnostic sink panicked", zap.Any("panic", p))
		}
	}()
	msg := fmt.Sprintf("catalog delete failed: externalId=%s queueId=%s error=%s", res.ExternalID, res.QueueID, res.ErrorDetail)
	if err := r.sink.Append(ctx, msg); err != nil {
		log.Error("diagnostic sink append failed", zap.Error(err))
	}
}

func (r *Reconciler) observe(log *zap.Logger, res Result, latency time.Duration) {
	defer func() {
		if p := recover(); p != nil {
			log.Error("record hook panicked", zap.Any("panic", p))
		}
	}()
	r.hooks.OnRecord(string(res.Outcome), latency, res.CleanupError != "")
}
