// Package main provides the cinder binary entry point: a zero-knowledge,
// single-download, burn-after-read file transfer service. It loads
// configuration from the environment, wires the storage and crypto
// adapters into the upload/download use cases, and starts the HTTP server.
//
// The application flow:
//  1. Load and validate configuration.
//  2. Ensure the data directory and open the SQLite metadata index.
//  3. Construct the pepper service, blob storage, session cache, metrics
//     manager, upload/download services, and janitor.
//  4. Start the janitor and HTTP server; block until the server exits.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/voltzug/cinder/internal/app"
	"github.com/voltzug/cinder/internal/config"
	"github.com/voltzug/cinder/internal/httpx"
	"github.com/voltzug/cinder/internal/janitor"
	"github.com/voltzug/cinder/internal/metrics"
	"github.com/voltzug/cinder/internal/pepper"
	"github.com/voltzug/cinder/internal/sessioncache"
	"github.com/voltzug/cinder/internal/store/filesystem"
	"github.com/voltzug/cinder/internal/store/sqlite"

	_ "github.com/mattn/go-sqlite3"
)

// realClock implements app.Clock using time.Now.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

// ensureDataDir creates dir (and any parents) if absent, erroring if the
// path exists but is not a directory.
func ensureDataDir(dir string) error {
	st, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return os.MkdirAll(dir, 0o700)
		}
		return err
	}
	if !st.IsDir() {
		return fmt.Errorf("data path %q is not a directory", dir)
	}
	return nil
}

// openDatabase opens the SQLite connection described by cfg's DSN.
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	return sql.Open("sqlite3", cfg.SQLiteDSN())
}

// newMetadataStore wraps db with the C5/C7 SQLite-backed store,
// initializing its schema.
func newMetadataStore(db *sql.DB) (*sqlite.Store, error) {
	return sqlite.New(db)
}

// newBlobStorage creates cfg.StorageDirectory if absent and returns a
// filesystem-backed C8 blob store rooted there.
func newBlobStorage(cfg *config.Config) (*filesystem.BlobStore, error) {
	if err := os.MkdirAll(cfg.StorageDirectory, 0o700); err != nil {
		return nil, err
	}
	return filesystem.New(cfg.StorageDirectory)
}

// newPepperService constructs the C3 pepper service from the loaded keyring.
func newPepperService(cfg *config.Config) (*pepper.Service, error) {
	return pepper.New(cfg.PepperKeys, cfg.PepperActiveVersion)
}

type services struct {
	upload   *app.UploadService
	download *app.DownloadService
}

// buildServices wires the upload (C9) and download (C10) use cases from
// their ports.
func buildServices(st *sqlite.Store, blobs *filesystem.BlobStore, sessions *sessioncache.Cache, pep *pepper.Service, clock app.Clock, mgr *metrics.Manager, cfg *config.Config) services {
	return services{
		upload: &app.UploadService{
			Files:      blobs,
			Repository: st,
			Limits:     st,
			Pepper:     pep,
			Clock:      clock,
			Metrics:    mgr,
		},
		download: &app.DownloadService{
			Files:          blobs,
			Repository:     st,
			Limits:         st,
			Sessions:       sessions,
			Pepper:         pep,
			Clock:          clock,
			Metrics:        mgr,
			SessionTimeout: cfg.SessionTimeout,
		},
	}
}

// buildHandler wires the HTTP layer onto svc, probing the database and
// pepper service for readiness.
func buildHandler(cfg *config.Config, svc services, db *sql.DB, pep *pepper.Service) http.Handler {
	readiness := func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return err
		}
		if _, err := pep.Seal([]byte("readiness-probe")); err != nil {
			return err
		}
		return nil
	}
	h := httpx.New(svc.upload, svc.download, cfg.MaxBytes, readiness)
	return h.Router()
}

func newServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if err := ensureDataDir(cfg.DataDir); err != nil {
		return fmt.Errorf("data directory: %w", err)
	}
	db, err := openDatabase(cfg)
	if err != nil {
		return fmt.Errorf("open sqlite driver: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	mgr := metrics.New(db, metrics.Config{
		FlushInterval: 5 * time.Second,
		Logger:        slog.Default(),
		HistogramBuckets: map[string][]int64{
			app.HistogramUploadBytes:              app.UploadBytesBuckets,
			app.HistogramAttemptsConsumed:         app.AttemptsConsumedBuckets,
			janitor.SummaryJanitorDeletedPerCycle: janitor.DeletedPerCycleBuckets,
		},
	})
	if err := mgr.InitSchema(ctx); err != nil {
		return fmt.Errorf("init metrics schema: %w", err)
	}
	mgr.Start(ctx)
	defer mgr.Stop(context.Background())

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		metricsSrv = &http.Server{
			Addr:         cfg.MetricsAddr,
			Handler:      metrics.Handler(mgr, cfg.MetricsToken),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
			IdleTimeout:  30 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("metrics server error", "err", err)
			}
		}()
		slog.Info("metrics server started", "addr", cfg.MetricsAddr)
	}

	st, err := newMetadataStore(db)
	if err != nil {
		return fmt.Errorf("init sqlite schema: %w", err)
	}
	blobs, err := newBlobStorage(cfg)
	if err != nil {
		return fmt.Errorf("init blob storage: %w", err)
	}
	pep, err := newPepperService(cfg)
	if err != nil {
		return fmt.Errorf("init pepper service: %w", err)
	}
	clock := realClock{}
	sessions := sessioncache.New(clock)

	svc := buildServices(st, blobs, sessions, pep, clock, mgr, cfg)

	if cfg.SchedulerEnabled {
		janCfg := janitor.Config{Interval: cfg.SchedulerInterval, Logger: slog.Default()}
		jan := janitor.New(st, blobs, st, clock, mgr, janCfg)
		jan.Start(ctx)
		defer jan.Stop()
	}

	srv := newServer(cfg, buildHandler(cfg, svc, db, pep))
	slog.Info("starting server", "addr", cfg.Addr, "pid", os.Getpid())
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(context.Background())
	}
	return nil
}

func main() {
	if err := run(); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}
