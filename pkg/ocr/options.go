package ocr

import "strconv"

// InputOption mutates an OCR input.
type InputOption func(*Input)

// WithLanguages sets language hints on the OCR input.
func WithLanguages(langs ...string) InputOption {
	return func(in *Input) { in.Languages = append([]string(nil), langs...) }
}

// WithDPI overrides the DPI value on the OCR input.
func WithDPI(dpi int) InputOption {
	return func(in *Input) { in.DPI = dpi }
}

// WithTesseractPSM sets the page segmentation mode (PSM) variable for Tesseract.
// Ingredient panels are usually a single block of text (PSM 6).
func WithTesseractPSM(mode int) InputOption {
	return func(in *Input) {
		if mode <= 0 {
			return
		}
		if in.Metadata == nil {
			in.Metadata = make(map[string]string)
		}
		in.Metadata["tessedit_pageseg_mode"] = strconv.Itoa(mode)
	}
}
