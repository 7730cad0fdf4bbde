// Package badger contains convenience helpers for integrating BadgerDB.
package badger

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/dgraph-io/badger/v3/options"

	"github.com/MLY0813/NEST-Oracle-V3.5/common/logging"
)

const (
	defaultGCInterval = 5 * time.Minute
	gcDiscardRatio    = 0.5
)

// NewLogAdapter returns a badger.Logger backed by a pool logger.
func NewLogAdapter(logger *logging.Logger) badger.Logger {
	return &badgerLogger{
		logger: logger,
	}
}

type badgerLogger struct {
	logger *logging.Logger
}

func (l *badgerLogger) Errorf(format string, a ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, a...)))
}

func (l *badgerLogger) Warningf(format string, a ...interface{}) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, a...)))
}

func (l *badgerLogger) Infof(format string, a ...interface{}) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, a...)))
}

func (l *badgerLogger) Debugf(format string, a ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, a...)))
}

// Config is the configuration used to open a BadgerDB database.
type Config struct {
	// Dir is the database directory. Ignored when InMemory is set.
	Dir string
	// InMemory keeps the database entirely in memory.
	InMemory bool
	// SyncWrites fsyncs every commit.
	SyncWrites bool
	// Compression enables snappy block compression.
	Compression bool
}

// Open opens a BadgerDB database routing its logs through the given logger.
func Open(cfg *Config, logger *logging.Logger) (*badger.DB, error) {
	opts := badger.DefaultOptions(cfg.Dir)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLogger(NewLogAdapter(logger)).
		WithSyncWrites(cfg.SyncWrites).
		WithCompression(options.None)
	if cfg.Compression {
		opts = opts.WithCompression(options.Snappy)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: failed to open database: %w", err)
	}
	return db, nil
}

// GCWorker is a BadgerDB value log GC worker.
type GCWorker struct {
	logger *logging.Logger

	db       *badger.DB
	interval time.Duration

	closeOnce sync.Once
	closeCh   chan struct{}
	closedCh  chan struct{}
}

// Close halts the GC worker.
func (gc *GCWorker) Close() {
	gc.closeOnce.Do(func() {
		close(gc.closeCh)
		<-gc.closedCh
	})
}

func (gc *GCWorker) worker() {
	defer close(gc.closedCh)

	ticker := time.NewTicker(gc.interval)
	defer ticker.Stop()

	doGC := func() error {
		for {
			if err := gc.db.RunValueLogGC(gcDiscardRatio); err != nil {
				return err
			}
		}
	}

	for {
		select {
		case <-gc.closeCh:
			return
		case <-ticker.C:
		}

		err := doGC()
		switch err {
		case nil, badger.ErrNoRewrite, badger.ErrGCInMemoryMode:
		default:
			gc.logger.Error("failed to GC value log",
				"err", err,
			)
		}
	}
}

// NewGCWorker creates a new BadgerDB value log GC worker for the provided
// db, logging to the specified logger. A zero interval selects the default.
func NewGCWorker(logger *logging.Logger, db *badger.DB, interval time.Duration) *GCWorker {
	if interval <= 0 {
		interval = defaultGCInterval
	}
	gc := &GCWorker{
		logger:   logger,
		db:       db,
		interval: interval,
		closeCh:  make(chan struct{}),
		closedCh: make(chan struct{}),
	}

	go gc.worker()

	return gc
}
