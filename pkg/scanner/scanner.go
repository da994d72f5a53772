// Package scanner runs one analysis: load the reference table, extract the label
// text, and match the two.
package scanner

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/japaniel/labelscan/pkg/match"
	"github.com/japaniel/labelscan/pkg/ocr"
	"github.com/japaniel/labelscan/pkg/reference"
)

// ErrNoImageSelected is returned when an analysis is requested before an image
// was chosen.
var ErrNoImageSelected = errors.New("no image selected")

// ImagePath is an optional image location. The zero value means no image has
// been selected.
type ImagePath struct {
	path string
	set  bool
}

// Image returns a selected ImagePath. An empty path stays unselected.
func Image(path string) ImagePath {
	return ImagePath{path: path, set: path != ""}
}

// Get returns the path and whether one was selected.
func (p ImagePath) Get() (string, bool) { return p.path, p.set }

func (p ImagePath) String() string { return p.path }

// TextExtractor turns a source (image path, URL) into text.
type TextExtractor interface {
	Extract(ctx context.Context, source string) (string, error)
}

// OCRExtractor adapts an ocr.Engine to TextExtractor.
type OCRExtractor struct {
	Engine  ocr.Engine
	Options []ocr.InputOption
	// Timeout bounds a single recognition; zero means no limit.
	Timeout time.Duration
}

// Extract implements TextExtractor.
func (x OCRExtractor) Extract(ctx context.Context, path string) (string, error) {
	engine := x.Engine
	if engine == nil {
		engine = ocr.DefaultEngine()
	}
	if x.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, x.Timeout)
		defer cancel()
	}
	return ocr.ExtractText(ctx, engine, path, x.Options...)
}

// Analyzer wires a reference source and a text extractor together.
type Analyzer struct {
	Source    reference.RowSource
	Extractor TextExtractor
	Logger    *zap.Logger
}

// NewAnalyzer creates an Analyzer. A nil logger discards output.
func NewAnalyzer(src reference.RowSource, x TextExtractor, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{Source: src, Extractor: x, Logger: logger}
}

// Analyze extracts the text of the selected image and checks it against a
// freshly loaded reference table.
func (a *Analyzer) Analyze(ctx context.Context, image ImagePath) (*Report, error) {
	path, ok := image.Get()
	if !ok {
		return nil, ErrNoImageSelected
	}
	start := time.Now()
	text, err := a.extract(ctx, path)
	if err != nil {
		return nil, err
	}
	table, err := reference.Load(ctx, a.Source)
	if err != nil {
		a.logger().Warn("reference table load failed", zap.Error(err))
		return nil, err
	}
	return a.report(path, text, table, start), nil
}

// AnalyzeWith is Analyze with a table the caller already loaded, for batches
// that share one table.
func (a *Analyzer) AnalyzeWith(ctx context.Context, image ImagePath, table *reference.Table) (*Report, error) {
	path, ok := image.Get()
	if !ok {
		return nil, ErrNoImageSelected
	}
	start := time.Now()
	text, err := a.extract(ctx, path)
	if err != nil {
		return nil, err
	}
	return a.report(path, text, table, start), nil
}

func (a *Analyzer) extract(ctx context.Context, source string) (string, error) {
	if a.Extractor == nil {
		return "", ocr.ErrEngineUnavailable
	}
	text, err := a.Extractor.Extract(ctx, source)
	if err != nil {
		a.logger().Warn("text extraction failed", zap.String("source", source), zap.Error(err))
		return "", err
	}
	return text, nil
}

func (a *Analyzer) report(source, text string, table *reference.Table, start time.Time) *Report {
	matches := match.FindMatches(text, table)
	a.logger().Info("analysis complete",
		zap.String("source", source),
		zap.Int("reference_entries", table.Len()),
		zap.Int("text_chars", len(text)),
		zap.Int("matches", len(matches)),
		zap.Duration("took", time.Since(start)),
	)
	return &Report{Source: source, Text: text, Matches: matches}
}

func (a *Analyzer) logger() *zap.Logger {
	if a.Logger == nil {
		return zap.NewNop()
	}
	return a.Logger
}
