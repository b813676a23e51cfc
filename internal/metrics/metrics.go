// Package metrics provides a lightweight persistent metrics manager. It
// batches in-memory counter and histogram observations and periodically
// flushes them to the shared SQLite database used for secure file metadata.
// Histograms use fixed, cumulative buckets (a la Prometheus "le" buckets)
// rather than a plain min/max/sum summary, since the two distributions this
// service actually cares about -- uploaded file sizes and attempts consumed
// per link -- are better understood as "how many fell under X" than as a
// single min/max pair. Bucket boundaries are supplied by the caller per
// histogram name; an unrecognized name falls back to a small generic set.
package metrics

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"
)

// Copies of the counter names emitted by internal/app and internal/janitor,
// which own them. Nothing in this package reads these constants; the
// Manager treats every name as opaque.
const (
	CounterLinksCreated       = "links_created_total"
	CounterLinksDownloaded    = "links_downloaded_total"
	CounterLinksBurned        = "links_burned_total"
	CounterAccessVerifyFailed = "access_verification_failed_total"
	CounterLinksExpiredSwept  = "links_expired_swept_total"
)

// defaultBuckets backs any histogram name the caller didn't supply explicit
// boundaries for.
var defaultBuckets = []int64{1, 5, 10, 25, 50, 100, 500, 1000}

// Config controls flush cadence, logging, and histogram bucket boundaries.
type Config struct {
	FlushInterval time.Duration
	Logger        *slog.Logger

	// HistogramBuckets maps a histogram name to its upper bucket bounds
	// (ascending, exclusive of the implicit +Inf bucket). Names absent from
	// this map use defaultBuckets. Metrics deliberately knows nothing about
	// what the names mean -- the caller (internal/app, internal/janitor)
	// owns that.
	HistogramBuckets map[string][]int64
}

func (c Config) bucketsFor(name string) []int64 {
	if bs, ok := c.HistogramBuckets[name]; ok && len(bs) > 0 {
		return bs
	}
	return defaultBuckets
}

// Manager aggregates metric events and flushes them.
type Manager struct {
	cfg     Config
	db      *sql.DB
	events  chan event
	stop    chan struct{}
	done    chan struct{}
	started bool

	// in-memory deltas (protected by mu)
	mu         sync.Mutex
	counters   map[string]int64
	histograms map[string]*histogramAgg
}

type eventKind int

const (
	eventInc eventKind = iota + 1
	eventObserve
)

type event struct {
	kind eventKind
	name string
	v    int64
}

// histogramAgg accumulates a cumulative-bucket histogram: buckets[le] is the
// count of observations with value <= le, for every configured boundary the
// observation satisfied. count/sum track the totals needed for an average;
// count also doubles as the +Inf bucket.
type histogramAgg struct {
	buckets map[int64]int64
	count   int64
	sum     int64
}

func (a *histogramAgg) observe(boundaries []int64, v int64) {
	a.count++
	a.sum += v
	for _, le := range boundaries {
		if v <= le {
			a.buckets[le]++
		}
	}
}

func (a *histogramAgg) clone() *histogramAgg {
	cp := &histogramAgg{buckets: make(map[int64]int64, len(a.buckets)), count: a.count, sum: a.sum}
	for le, c := range a.buckets {
		cp.buckets[le] = c
	}
	return cp
}

// HistogramSnapshot is a point-in-time read of one histogram's accumulated
// state, combining persisted totals with any not-yet-flushed deltas.
type HistogramSnapshot struct {
	Count   int64
	Sum     int64
	Buckets map[int64]int64 // le -> cumulative count
}

// New creates a Manager. Call Start to begin background flushing.
func New(db *sql.DB, cfg Config) *Manager {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	m := &Manager{
		cfg:        cfg,
		db:         db,
		events:     make(chan event, 1024),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		counters:   make(map[string]int64),
		histograms: make(map[string]*histogramAgg),
	}
	return m
}

// InitSchema ensures metrics tables exist.
func (m *Manager) InitSchema(ctx context.Context) error {
	ddlCounters := `CREATE TABLE IF NOT EXISTS metrics_counters (
		name TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	);`
	ddlHistTotals := `CREATE TABLE IF NOT EXISTS metrics_histogram_totals (
		name TEXT PRIMARY KEY,
		count INTEGER NOT NULL,
		sum INTEGER NOT NULL
	);`
	ddlHistBuckets := `CREATE TABLE IF NOT EXISTS metrics_histogram_buckets (
		name TEXT NOT NULL,
		le INTEGER NOT NULL,
		count INTEGER NOT NULL,
		PRIMARY KEY (name, le)
	);`
	if _, err := m.db.ExecContext(ctx, ddlCounters); err != nil {
		return err
	}
	if _, err := m.db.ExecContext(ctx, ddlHistTotals); err != nil {
		return err
	}
	if _, err := m.db.ExecContext(ctx, ddlHistBuckets); err != nil {
		return err
	}
	return nil
}

// Start launches the background flush loop.
func (m *Manager) Start(ctx context.Context) {
	if m.started {
		return
	}
	m.started = true
	go m.loop(ctx)
}

// Stop signals flush loop to exit and performs a final flush.
func (m *Manager) Stop(ctx context.Context) {
	if !m.started {
		// No loop running; just flush any deltas.
		_ = m.flush(ctx)
		return
	}
	close(m.stop)
	<-m.done
	_ = m.flush(ctx)
}

// Inc increments a counter by delta (>=1).
func (m *Manager) Inc(name string, delta int64) {
	if delta <= 0 {
		return
	}
	select {
	case m.events <- event{kind: eventInc, name: name, v: delta}:
	default:
		// channel full; best-effort drop (could add a dropped counter later)
	}
}

// Observe records a histogram observation (e.g. a file size in bytes, or a
// count of download attempts consumed).
func (m *Manager) Observe(name string, value int64) {
	select {
	case m.events <- event{kind: eventObserve, name: name, v: value}:
	default:
	}
}

func (m *Manager) loop(ctx context.Context) {
	log := m.cfg.Logger.With("domain", "metrics")
	ticker := time.NewTicker(m.cfg.FlushInterval)
	defer func() {
		ticker.Stop()
		close(m.done)
	}()
	for {
		select {
		case <-ctx.Done():
			log.Info("metrics stop", "reason", "context_cancel")
			return
		case <-m.stop:
			log.Info("metrics stop", "reason", "stop_signal")
			return
		case ev := <-m.events:
			m.apply(ev)
		case <-ticker.C:
			if err := m.flush(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("flush", "error", err)
			}
		}
	}
}

func (m *Manager) apply(ev event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch ev.kind {
	case eventInc:
		m.counters[ev.name] += ev.v
	case eventObserve:
		agg := m.histograms[ev.name]
		if agg == nil {
			agg = &histogramAgg{buckets: make(map[int64]int64)}
			m.histograms[ev.name] = agg
		}
		agg.observe(m.cfg.bucketsFor(ev.name), ev.v)
	}
}

// Snapshot returns current (persisted + in-memory deltas) counters and
// histograms.
func (m *Manager) Snapshot(ctx context.Context) (counters map[string]int64, histograms map[string]HistogramSnapshot, err error) {
	counters = make(map[string]int64)
	histograms = make(map[string]HistogramSnapshot)

	rows, err := m.db.QueryContext(ctx, `SELECT name, value FROM metrics_counters`)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var n string
		var v int64
		if err := rows.Scan(&n, &v); err != nil {
			return nil, nil, err
		}
		counters[n] = v
	}

	totalRows, err := m.db.QueryContext(ctx, `SELECT name, count, sum FROM metrics_histogram_totals`)
	if err != nil {
		return nil, nil, err
	}
	defer totalRows.Close()
	for totalRows.Next() {
		var n string
		var c, s int64
		if err := totalRows.Scan(&n, &c, &s); err != nil {
			return nil, nil, err
		}
		histograms[n] = HistogramSnapshot{Count: c, Sum: s, Buckets: make(map[int64]int64)}
	}

	bucketRows, err := m.db.QueryContext(ctx, `SELECT name, le, count FROM metrics_histogram_buckets`)
	if err != nil {
		return nil, nil, err
	}
	defer bucketRows.Close()
	for bucketRows.Next() {
		var n string
		var le, c int64
		if err := bucketRows.Scan(&n, &le, &c); err != nil {
			return nil, nil, err
		}
		hs, ok := histograms[n]
		if !ok {
			hs = HistogramSnapshot{Buckets: make(map[int64]int64)}
		}
		hs.Buckets[le] = c
		histograms[n] = hs
	}

	// Layer in-memory deltas.
	m.mu.Lock()
	for n, v := range m.counters {
		counters[n] += v
	}
	for n, agg := range m.histograms {
		hs, ok := histograms[n]
		if !ok {
			hs = HistogramSnapshot{Buckets: make(map[int64]int64)}
		}
		hs.Count += agg.count
		hs.Sum += agg.sum
		for le, c := range agg.buckets {
			hs.Buckets[le] += c
		}
		histograms[n] = hs
	}
	m.mu.Unlock()
	return counters, histograms, nil
}

// flush writes in-memory deltas to SQLite in a single transaction and resets them.
func (m *Manager) flush(ctx context.Context) error {
	m.mu.Lock()
	if len(m.counters) == 0 && len(m.histograms) == 0 {
		m.mu.Unlock()
		return nil
	}
	cCopy := make(map[string]int64, len(m.counters))
	for k, v := range m.counters {
		cCopy[k] = v
	}
	hCopy := make(map[string]*histogramAgg, len(m.histograms))
	for k, v := range m.histograms {
		hCopy[k] = v.clone()
	}
	m.counters = make(map[string]int64)
	m.histograms = make(map[string]*histogramAgg)
	m.mu.Unlock()

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for name, delta := range cCopy {
		if _, err := tx.ExecContext(ctx, `INSERT INTO metrics_counters(name,value) VALUES(?,?) ON CONFLICT(name) DO UPDATE SET value = value + excluded.value`, name, delta); err != nil {
			tx.Rollback()
			return err
		}
	}
	for name, agg := range hCopy {
		if _, err := tx.ExecContext(ctx, `INSERT INTO metrics_histogram_totals(name,count,sum) VALUES(?,?,?) ON CONFLICT(name) DO UPDATE SET count = metrics_histogram_totals.count + excluded.count, sum = metrics_histogram_totals.sum + excluded.sum`, name, agg.count, agg.sum); err != nil {
			tx.Rollback()
			return err
		}
		// Deterministic order keeps flush behavior reproducible for tests
		// that inspect statement order; map iteration alone would not.
		les := make([]int64, 0, len(agg.buckets))
		for le := range agg.buckets {
			les = append(les, le)
		}
		sort.Slice(les, func(i, j int) bool { return les[i] < les[j] })
		for _, le := range les {
			if _, err := tx.ExecContext(ctx, `INSERT INTO metrics_histogram_buckets(name,le,count) VALUES(?,?,?) ON CONFLICT(name,le) DO UPDATE SET count = metrics_histogram_buckets.count + excluded.count`, name, le, agg.buckets[le]); err != nil {
				tx.Rollback()
				return err
			}
		}
	}
	return tx.Commit()
}

// bucketLabel renders a bucket boundary the way the HTTP handler exposes it.
func bucketLabel(le int64) string {
	return strconv.FormatInt(le, 10)
}
