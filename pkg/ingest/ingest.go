// Package ingest moves data into the application database in bulk: reference
// tables imported from CSV, and batches of label scans.
package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/japaniel/labelscan/pkg/db"
	"github.com/japaniel/labelscan/pkg/reference"
	"github.com/japaniel/labelscan/pkg/scanner"
)

// ImportTable loads src and upserts every entry into the ingredients table.
// It returns the number of entries written.
func ImportTable(ctx context.Context, conn *sql.DB, src reference.RowSource, batchSize int, logger *zap.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	table, err := reference.Load(ctx, src)
	if err != nil {
		return 0, err
	}

	bw := NewBatchWriter(conn, batchSize, 0)
	bw.Logger = logger

	written := 0
	var submitErr error
	table.Each(func(e reference.Entry) bool {
		if err := ctx.Err(); err != nil {
			submitErr = err
			return false
		}
		entry := e
		if err := bw.Submit(func(ctx context.Context, tx *sql.Tx) error {
			if _, err := db.UpsertIngredient(tx, entry.Name, entry.Description); err != nil {
				return fmt.Errorf("import %q: %w", entry.Name, err)
			}
			return nil
		}); err != nil {
			submitErr = err
			return false
		}
		written++
		return true
	})

	closeErr := bw.Close()
	if submitErr != nil {
		return 0, submitErr
	}
	if closeErr != nil {
		return 0, closeErr
	}
	logger.Info("reference table imported", zap.Int("entries", written))
	return written, nil
}

// Outcome is the result of one image in a batch. Exactly one of Report and Err
// is set.
type Outcome struct {
	Image  string
	Report *scanner.Report
	Err    error
}

// BatchScanner analyses several images concurrently against one reference
// table and records every outcome in the scans table.
type BatchScanner struct {
	DB        *sql.DB
	Analyzer  *scanner.Analyzer
	BatchSize int
	Workers   int
	Logger    *zap.Logger
	// OnProgress is called after each image with the number finished so far.
	// Calls are serialized, so current increases by one each time.
	OnProgress func(current, total int)

	// PoolFactory allows tests to inject custom worker pool implementations.
	PoolFactory func(workers, queue int) WorkerPoolInterface
}

// NewBatchScanner creates a BatchScanner with four workers.
func NewBatchScanner(conn *sql.DB, a *scanner.Analyzer, logger *zap.Logger) *BatchScanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchScanner{
		DB:        conn,
		Analyzer:  a,
		BatchSize: 20,
		Workers:   4,
		Logger:    logger,
	}
}

// ScanAll analyses images and returns their outcomes in input order. A failing
// image does not stop the batch; its error is kept in the outcome and recorded.
// The returned error reports failures of the batch itself: the reference table,
// the worker pool, cancellation, or persisting the scans.
func (b *BatchScanner) ScanAll(ctx context.Context, userID string, images []string) ([]Outcome, error) {
	if len(images) == 0 {
		return nil, nil
	}
	table, err := reference.Load(ctx, b.Analyzer.Source)
	if err != nil {
		return nil, err
	}

	var wp WorkerPoolInterface
	if b.PoolFactory != nil {
		wp = b.PoolFactory(b.Workers, b.Workers*2)
	} else {
		pool := NewWorkerPool(b.Workers, b.Workers*2)
		pool.Logger = b.Logger
		wp = pool
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	wp.Start(ctx)

	outcomes := make([]Outcome, len(images))
	var mu sync.Mutex
	finished := 0

	var submitErr error
	for i, img := range images {
		idx, path := i, img
		job := func(ctx context.Context) error {
			rep, err := b.Analyzer.AnalyzeWith(ctx, scanner.Image(path), table)
			outcomes[idx] = Outcome{Image: path, Report: rep, Err: err}
			mu.Lock()
			finished++
			if b.OnProgress != nil {
				b.OnProgress(finished, len(images))
			}
			mu.Unlock()
			return err
		}
		if err := wp.SubmitCtx(ctx, job); err != nil {
			submitErr = err
			break
		}
	}
	wp.Close()
	if submitErr == nil {
		submitErr = ctx.Err()
	}
	if submitErr != nil {
		return outcomes, fmt.Errorf("scan batch: %w", submitErr)
	}

	if err := b.record(userID, outcomes); err != nil {
		return outcomes, err
	}
	return outcomes, nil
}

// record stores outcomes in input order.
func (b *BatchScanner) record(userID string, outcomes []Outcome) error {
	if b.DB == nil {
		return nil
	}
	bw := NewBatchWriter(b.DB, b.BatchSize, 100*time.Millisecond)
	bw.Logger = b.Logger
	for _, o := range outcomes {
		if o.Image == "" {
			continue
		}
		s := scanOf(userID, o)
		if err := bw.Submit(func(ctx context.Context, tx *sql.Tx) error {
			_, err := db.InsertScan(tx, s)
			return err
		}); err != nil {
			bw.Close()
			return err
		}
	}
	return bw.Close()
}

func scanOf(userID string, o Outcome) db.Scan {
	s := db.Scan{UserID: userID, Image: o.Image, ScannedAt: time.Now().UTC()}
	if o.Err != nil {
		s.Error = o.Err.Error()
		return s
	}
	if o.Report == nil {
		return s
	}
	s.ExtractedText = o.Report.Text
	s.Matches = o.Report.MatchesJSON()
	return s
}

// RecordReport stores a single analysis outcome.
func RecordReport(conn db.DBExecutor, userID, image string, rep *scanner.Report, analyzeErr error) (int64, error) {
	return db.InsertScan(conn, scanOf(userID, Outcome{Image: image, Report: rep, Err: analyzeErr}))
}
