package ocr

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type fakeEngine struct {
	frags []Fragment
	err   error
	delay time.Duration
	got   Input
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Recognize(ctx context.Context, in Input) ([]Fragment, error) {
	f.got = in
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.frags, f.err
}

func writePNG(t *testing.T) string {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.White)
	path := filepath.Join(t.TempDir(), "label.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return path
}

func TestExtractTextJoinsFragments(t *testing.T) {
	path := writePNG(t)
	eng := &fakeEngine{frags: []Fragment{{Text: "Ingredients:"}, {Text: "Aqua, Parfum,"}, {Text: "Glycerin"}}}

	text, err := ExtractText(context.Background(), eng, path, WithLanguages("eng"), WithTesseractPSM(6))
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if text != "Ingredients: Aqua, Parfum, Glycerin" {
		t.Fatalf("unexpected text %q", text)
	}
	if eng.got.Format != ImageFormatPNG {
		t.Errorf("expected png format, got %q", eng.got.Format)
	}
	if eng.got.Metadata["tessedit_pageseg_mode"] != "6" {
		t.Errorf("psm not forwarded: %+v", eng.got.Metadata)
	}
	if len(eng.got.Languages) != 1 || eng.got.Languages[0] != "eng" {
		t.Errorf("languages not forwarded: %+v", eng.got.Languages)
	}
}

func TestExtractTextMissingImage(t *testing.T) {
	_, err := ExtractText(context.Background(), &fakeEngine{}, filepath.Join(t.TempDir(), "nope.jpg"))
	if !errors.Is(err, ErrImageUnreadable) {
		t.Fatalf("expected ErrImageUnreadable, got %v", err)
	}
}

func TestExtractTextUndecodableImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "label.jpg")
	if err := os.WriteFile(path, []byte("not an image"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := ExtractText(context.Background(), &fakeEngine{}, path)
	if !errors.Is(err, ErrImageUnreadable) {
		t.Fatalf("expected ErrImageUnreadable, got %v", err)
	}
}

func TestExtractTextEngineFailurePropagates(t *testing.T) {
	path := writePNG(t)
	_, err := ExtractText(context.Background(), &fakeEngine{err: ErrEngineUnavailable}, path)
	if !errors.Is(err, ErrEngineUnavailable) {
		t.Fatalf("expected ErrEngineUnavailable, got %v", err)
	}
	if _, err := ExtractText(context.Background(), nil, path); !errors.Is(err, ErrEngineUnavailable) {
		t.Fatalf("expected ErrEngineUnavailable for nil engine, got %v", err)
	}
}

func TestExtractTextTimeout(t *testing.T) {
	path := writePNG(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := ExtractText(ctx, &fakeEngine{delay: 200 * time.Millisecond}, path)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestWithTesseractPSMIgnoresZero(t *testing.T) {
	in := Input{}
	WithTesseractPSM(0)(&in)
	if in.Metadata != nil {
		t.Fatalf("expected no metadata, got %+v", in.Metadata)
	}
	WithDPI(300)(&in)
	if in.DPI != 300 {
		t.Fatalf("unexpected dpi %d", in.DPI)
	}
}

func TestSetDefaultEngineNil(t *testing.T) {
	prev := DefaultEngine()
	defer SetDefaultEngine(prev)
	SetDefaultEngine(nil)
	if _, err := DefaultEngine().Recognize(context.Background(), Input{}); !errors.Is(err, ErrEngineUnavailable) {
		t.Fatalf("expected ErrEngineUnavailable, got %v", err)
	}
}
