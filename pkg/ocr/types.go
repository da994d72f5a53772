package ocr

import (
	"context"
	"errors"
)

var (
	// ErrImageUnreadable is returned when the image is missing or cannot be decoded.
	ErrImageUnreadable = errors.New("image unreadable")
	// ErrEngineUnavailable is returned when no OCR engine can process the image.
	ErrEngineUnavailable = errors.New("ocr engine unavailable")
)

// ImageFormat identifies the content type of an OCR input image.
type ImageFormat string

const (
	ImageFormatPNG  ImageFormat = "image/png"
	ImageFormatJPEG ImageFormat = "image/jpeg"
)

// Region describes a rectangular area in pixel coordinates with the origin in
// the upper-left corner of the image.
type Region struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Input is a single image submitted for recognition.
type Input struct {
	// Path is where the image was read from. Informational only.
	Path string
	// Image is the encoded image payload.
	Image  []byte
	Format ImageFormat
	// DPI is the effective resolution; zero means unknown.
	DPI int
	// Languages are engine language codes such as "eng".
	Languages []string
	// Metadata carries engine specific variables (for example Tesseract's
	// tessedit_pageseg_mode).
	Metadata map[string]string
}

// Fragment is one recognized piece of text. Engines return fragments in reading order.
type Fragment struct {
	Text       string
	Bounds     Region
	Confidence float64
}

// Engine recognizes text in images.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, in Input) ([]Fragment, error)
}
