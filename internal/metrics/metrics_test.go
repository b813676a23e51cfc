package metrics

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

const (
	testCounter   = "links_created_total"
	testHistogram = "upload_bytes"
)

var testBuckets = map[string][]int64{
	testHistogram: {10, 100, 1000},
}

func TestManagerIncAndFlush(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	m := New(db, Config{})
	if err := m.InitSchema(ctx); err != nil {
		t.Fatalf("init schema: %v", err)
	}

	m.apply(event{kind: eventInc, name: testCounter, v: 1})
	m.apply(event{kind: eventInc, name: testCounter, v: 2})
	if err := m.flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	row := db.QueryRowContext(ctx, `SELECT value FROM metrics_counters WHERE name=?`, testCounter)
	var v int64
	if err := row.Scan(&v); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if v != 3 {
		t.Fatalf("expected 3, got %d", v)
	}
}

func TestHistogramObserveBuckets(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	m := New(db, Config{HistogramBuckets: testBuckets})
	if err := m.InitSchema(ctx); err != nil {
		t.Fatalf("init schema: %v", err)
	}

	m.apply(event{kind: eventObserve, name: testHistogram, v: 5})
	m.apply(event{kind: eventObserve, name: testHistogram, v: 50})
	m.apply(event{kind: eventObserve, name: testHistogram, v: 500})
	m.apply(event{kind: eventObserve, name: testHistogram, v: 5000})

	_, histograms, err := m.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	hs, ok := histograms[testHistogram]
	if !ok {
		t.Fatalf("expected histogram %q present", testHistogram)
	}
	if hs.Count != 4 {
		t.Fatalf("expected count 4, got %d", hs.Count)
	}
	if hs.Sum != 5+50+500+5000 {
		t.Fatalf("expected sum %d, got %d", 5+50+500+5000, hs.Sum)
	}
	// Cumulative buckets: le=10 only catches the v=5 observation.
	if hs.Buckets[10] != 1 {
		t.Fatalf("expected bucket le=10 count 1, got %d", hs.Buckets[10])
	}
	// le=100 catches v=5 and v=50.
	if hs.Buckets[100] != 2 {
		t.Fatalf("expected bucket le=100 count 2, got %d", hs.Buckets[100])
	}
	// le=1000 catches v=5, v=50, v=500.
	if hs.Buckets[1000] != 3 {
		t.Fatalf("expected bucket le=1000 count 3, got %d", hs.Buckets[1000])
	}
	// v=5000 exceeds every configured bucket and is only reflected in Count/Sum.
}

func TestHistogramFlushAndPersistRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	m := New(db, Config{HistogramBuckets: testBuckets})
	if err := m.InitSchema(ctx); err != nil {
		t.Fatalf("init schema: %v", err)
	}

	m.apply(event{kind: eventObserve, name: testHistogram, v: 5})
	m.apply(event{kind: eventObserve, name: testHistogram, v: 50})
	if err := m.flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	var count, sum int64
	row := db.QueryRowContext(ctx, `SELECT count, sum FROM metrics_histogram_totals WHERE name=?`, testHistogram)
	if err := row.Scan(&count, &sum); err != nil {
		t.Fatalf("scan totals: %v", err)
	}
	if count != 2 || sum != 55 {
		t.Fatalf("expected count=2 sum=55, got count=%d sum=%d", count, sum)
	}

	rows, err := db.QueryContext(ctx, `SELECT le, count FROM metrics_histogram_buckets WHERE name=? ORDER BY le`, testHistogram)
	if err != nil {
		t.Fatalf("query buckets: %v", err)
	}
	defer rows.Close()
	got := map[int64]int64{}
	for rows.Next() {
		var le, c int64
		if err := rows.Scan(&le, &c); err != nil {
			t.Fatalf("scan bucket: %v", err)
		}
		got[le] = c
	}
	if got[10] != 1 || got[100] != 2 || got[1000] != 2 {
		t.Fatalf("unexpected persisted buckets: %+v", got)
	}

	// A second flush with new observations accumulates rather than overwrites.
	m.apply(event{kind: eventObserve, name: testHistogram, v: 5})
	if err := m.flush(ctx); err != nil {
		t.Fatalf("second flush: %v", err)
	}
	row = db.QueryRowContext(ctx, `SELECT count, sum FROM metrics_histogram_totals WHERE name=?`, testHistogram)
	if err := row.Scan(&count, &sum); err != nil {
		t.Fatalf("scan totals after second flush: %v", err)
	}
	if count != 3 || sum != 60 {
		t.Fatalf("expected accumulated count=3 sum=60, got count=%d sum=%d", count, sum)
	}
}

func TestSnapshotMergesPersistedAndInMemory(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	m := New(db, Config{HistogramBuckets: testBuckets})
	if err := m.InitSchema(ctx); err != nil {
		t.Fatalf("init schema: %v", err)
	}

	if _, err := db.ExecContext(ctx, `INSERT INTO metrics_counters(name,value) VALUES(?,10)`, testCounter); err != nil {
		t.Fatalf("seed counter: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO metrics_histogram_totals(name,count,sum) VALUES(?,1,5)`, testHistogram); err != nil {
		t.Fatalf("seed histogram totals: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO metrics_histogram_buckets(name,le,count) VALUES(?,10,1)`, testHistogram); err != nil {
		t.Fatalf("seed histogram bucket: %v", err)
	}

	m.apply(event{kind: eventInc, name: testCounter, v: 5})
	m.apply(event{kind: eventObserve, name: testHistogram, v: 50})

	counters, histograms, err := m.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if counters[testCounter] != 15 {
		t.Fatalf("expected merged counter 15, got %d", counters[testCounter])
	}
	hs := histograms[testHistogram]
	if hs.Count != 2 || hs.Sum != 55 {
		t.Fatalf("expected merged count=2 sum=55, got count=%d sum=%d", hs.Count, hs.Sum)
	}
	if hs.Buckets[10] != 1 || hs.Buckets[100] != 1 {
		t.Fatalf("expected merged buckets le10=1 le100=1, got %+v", hs.Buckets)
	}
}

func TestIncIgnoresNonPositiveDelta(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	m := New(db, Config{})
	if err := m.InitSchema(ctx); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	m.apply(event{kind: eventInc, name: testCounter, v: 3})
	counters, _, err := m.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if counters[testCounter] != 3 {
		t.Fatalf("expected 3, got %d", counters[testCounter])
	}
	// Inc with delta<=0 is dropped before ever reaching the channel.
	m.Inc(testCounter, -5)
	m.Inc(testCounter, 0)
	select {
	case ev := <-m.events:
		t.Fatalf("expected no event queued for non-positive delta, got %+v", ev)
	default:
	}
}

func TestDefaultBucketsUsedForUnconfiguredName(t *testing.T) {
	cfg := Config{HistogramBuckets: testBuckets}
	if got := cfg.bucketsFor("something_unconfigured"); len(got) != len(defaultBuckets) {
		t.Fatalf("expected fallback to defaultBuckets, got %+v", got)
	}
	if got := cfg.bucketsFor(testHistogram); len(got) != 3 {
		t.Fatalf("expected configured bucket set for %q, got %+v", testHistogram, got)
	}
}

func TestStartStopFlushesOnExit(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	m := New(db, Config{FlushInterval: time.Hour})
	if err := m.InitSchema(ctx); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	m.Start(ctx)
	m.Inc(testCounter, 4)
	// Give the loop goroutine a chance to drain the channel before Stop.
	time.Sleep(20 * time.Millisecond)
	m.Stop(ctx)

	row := db.QueryRowContext(ctx, `SELECT value FROM metrics_counters WHERE name=?`, testCounter)
	var v int64
	if err := row.Scan(&v); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if v != 4 {
		t.Fatalf("expected flushed value 4, got %d", v)
	}
}
