// Package janitor implements background cleanup of expired secure files.
// It operates independently from the request-path services (UploadService,
// DownloadService) to keep lifecycle concerns -- periodic expiry sweeping --
// isolated from request handling.
package janitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/voltzug/cinder/internal/app"
	"github.com/voltzug/cinder/internal/domain"
)

// Metrics is the sink the Janitor reports through, with the same method set
// as app.Metrics: Inc for counters and Observe for the per-cycle deletion
// count histogram.
type Metrics interface {
	Inc(name string, delta int64)
	Observe(name string, value int64)
}

// CounterLinksExpiredSwept is incremented once per expired link the janitor
// removes. Kept here (rather than imported from internal/metrics) to avoid a
// dependency from janitor on the metrics package's storage concerns.
const CounterLinksExpiredSwept = "links_expired_swept_total"

// SummaryJanitorDeletedPerCycle records how many links a single sweep removed.
const SummaryJanitorDeletedPerCycle = "janitor_deleted_per_cycle"

// DeletedPerCycleBuckets bounds the per-cycle deletion counts most sweeps
// will fall into; a very large number of expirations in one cycle still
// gets recorded, just outside any configured bucket.
var DeletedPerCycleBuckets = []int64{1, 5, 10, 25, 50, 100, 500}

// Config holds tunables for the Janitor.
type Config struct {
	Interval time.Duration // how often a sweep begins
	Logger   *slog.Logger  // optional logger (defaults to slog.Default())
}

// cycleMetrics accumulates counters (in-memory) for operational insight,
// independent of whatever external Metrics sink is wired in.
type cycleMetrics struct {
	mu                  sync.Mutex
	Cycles              uint64
	Deleted             uint64
	Processed           uint64
	CycleLastDurationMS int64
}

// MetricsView is a read-only snapshot safe to copy.
type MetricsView struct {
	Cycles              uint64
	Deleted             uint64
	Processed           uint64
	CycleLastDurationMS int64
}

func (m *cycleMetrics) addProcessed(n int) {
	if n <= 0 {
		return
	}
	m.mu.Lock()
	m.Processed += uint64(n)
	m.mu.Unlock()
}
func (m *cycleMetrics) addDeleted(n int) {
	if n <= 0 {
		return
	}
	m.mu.Lock()
	m.Deleted += uint64(n)
	m.mu.Unlock()
}
func (m *cycleMetrics) recordCycle(d time.Duration) {
	m.mu.Lock()
	m.Cycles++
	m.CycleLastDurationMS = d.Milliseconds()
	m.mu.Unlock()
}

// Janitor implements C11: it periodically sweeps SecureFileRepository for
// records past their expiry date and burns each one -- blob, limit record,
// then the secure_file record itself -- initiated by the clock instead of a
// reader. Unlike a download's burn cascade, the record is deleted last and
// there is no session to remove.
type Janitor struct {
	repo    app.SecureFileRepository
	files   app.FileStore
	limits  app.DownloadLimitStore
	clock   app.Clock
	metrics Metrics // optional external sink; may be nil
	cfg     Config

	internal *cycleMetrics

	ticker *time.Ticker
	stopCh chan struct{}
	doneCh chan struct{}
	once   sync.Once
}

// New constructs but does not start a Janitor.
func New(repo app.SecureFileRepository, files app.FileStore, limits app.DownloadLimitStore, clock app.Clock, metrics Metrics, cfg Config) *Janitor {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Janitor{
		repo:     repo,
		files:    files,
		limits:   limits,
		clock:    clock,
		metrics:  metrics,
		cfg:      cfg,
		internal: &cycleMetrics{},
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the janitor loop in a new goroutine.
func (j *Janitor) Start(ctx context.Context) {
	if j.ticker != nil {
		return
	}
	j.ticker = time.NewTicker(j.cfg.Interval)
	go j.loop(ctx)
}

// Stop signals the loop to exit and waits for completion.
func (j *Janitor) Stop() {
	j.once.Do(func() { close(j.stopCh) })
	<-j.doneCh
}

// MetricsSnapshot returns a copy of the janitor's own in-process counters.
func (j *Janitor) MetricsSnapshot() MetricsView {
	j.internal.mu.Lock()
	defer j.internal.mu.Unlock()
	return MetricsView{
		Cycles:              j.internal.Cycles,
		Deleted:             j.internal.Deleted,
		Processed:           j.internal.Processed,
		CycleLastDurationMS: j.internal.CycleLastDurationMS,
	}
}

func (j *Janitor) loop(ctx context.Context) {
	log := j.cfg.Logger.With("domain", "janitor")
	defer func() {
		j.ticker.Stop()
		close(j.doneCh)
	}()
	for {
		select {
		case <-ctx.Done():
			log.Info("janitor stop", "reason", "context_cancel")
			return
		case <-j.stopCh:
			log.Info("janitor stop", "reason", "stop_signal")
			return
		case <-j.ticker.C:
			j.runCycle(ctx)
		}
	}
}

// runCycle performs one expiry sweep: find every record past its expiry
// date, then burn each one. A single file's burn failing does not stop the
// rest of the sweep; it will be retried on the next cycle since the record
// is left in place if the repository delete itself fails.
func (j *Janitor) runCycle(ctx context.Context) {
	start := time.Now()
	log := j.cfg.Logger.With("domain", "janitor", "action", "sweep")
	now := domain.NewTimestamp(j.clock.Now())

	expired, err := j.repo.FindExpiredBefore(ctx, now)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("find expired", "error", err)
		j.internal.recordCycle(time.Since(start))
		return
	}

	deleted := 0
	for _, f := range expired {
		_ = j.files.Delete(ctx, f.BlobPath)
		_ = j.limits.Delete(ctx, f.LinkID)
		if err := j.repo.DeleteByID(ctx, f.FileID); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("delete record", "file_id", f.FileID, "error", err)
			continue
		}
		deleted++
	}

	j.internal.addProcessed(len(expired))
	j.internal.addDeleted(deleted)
	j.internal.recordCycle(time.Since(start))

	if j.metrics != nil && deleted > 0 {
		j.metrics.Inc(CounterLinksExpiredSwept, int64(deleted))
		j.metrics.Observe(SummaryJanitorDeletedPerCycle, int64(deleted))
	}
	log.Info("sweep complete", "processed", len(expired), "deleted", deleted, "ms", time.Since(start).Milliseconds())
}
