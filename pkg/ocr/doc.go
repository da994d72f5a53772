// Package ocr defines the boundary to optical character recognition engines.
// Engines turn one label photo into ordered text fragments; ExtractText joins
// them into the single string the matcher works on. Engine internals (local
// Tesseract, a remote API) stay behind the small Engine interface.
package ocr
