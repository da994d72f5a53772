package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"
)

var defaultEngine Engine = unavailableEngine{}

// DefaultEngine returns the engine registered by an engine package, or one that
// always fails with ErrEngineUnavailable.
func DefaultEngine() Engine {
	return defaultEngine
}

// SetDefaultEngine sets the engine returned by DefaultEngine.
func SetDefaultEngine(engine Engine) {
	if engine == nil {
		engine = unavailableEngine{}
	}
	defaultEngine = engine
}

// NewInput reads the image at path and checks that it decodes as JPEG or PNG.
func NewInput(path string, opts ...InputOption) (Input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Input{}, fmt.Errorf("%w: %v", ErrImageUnreadable, err)
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Input{}, fmt.Errorf("%w: decode %s: %v", ErrImageUnreadable, path, err)
	}
	in := Input{Path: path, Image: data}
	switch format {
	case "png":
		in.Format = ImageFormatPNG
	case "jpeg":
		in.Format = ImageFormatJPEG
	}
	for _, opt := range opts {
		opt(&in)
	}
	return in, nil
}

// ExtractText recognizes the image at path and joins the fragment texts with a
// single space, in engine order. Errors from the engine are returned unchanged
// apart from wrapping.
func ExtractText(ctx context.Context, engine Engine, path string, opts ...InputOption) (string, error) {
	if engine == nil {
		return "", ErrEngineUnavailable
	}
	in, err := NewInput(path, opts...)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	type outcome struct {
		frags []Fragment
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		frags, err := engine.Recognize(ctx, in)
		done <- outcome{frags, err}
	}()

	select {
	case <-ctx.Done():
		// Native engines cannot be interrupted; the goroutine finishes on its own.
		return "", ctx.Err()
	case out := <-done:
		if out.err != nil {
			return "", fmt.Errorf("%s: %w", engine.Name(), out.err)
		}
		return Join(out.frags), nil
	}
}

// Join concatenates fragment texts with single spaces.
func Join(frags []Fragment) string {
	parts := make([]string, 0, len(frags))
	for _, f := range frags {
		parts = append(parts, f.Text)
	}
	return strings.Join(parts, " ")
}

type unavailableEngine struct{}

func (unavailableEngine) Name() string { return "none" }

func (unavailableEngine) Recognize(ctx context.Context, in Input) ([]Fragment, error) {
	return nil, ErrEngineUnavailable
}
