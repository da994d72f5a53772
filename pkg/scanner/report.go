package scanner

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/japaniel/labelscan/pkg/match"
	"github.com/japaniel/labelscan/pkg/ocr"
	"github.com/japaniel/labelscan/pkg/reference"
)

// Report is the outcome of one analysis.
type Report struct {
	Source  string
	Text    string
	Matches []match.Result
}

// String renders the matches in the user facing format.
func (r *Report) String() string {
	if r == nil {
		return match.Render(nil)
	}
	return match.Render(r.Matches)
}

// MatchesJSON encodes the matches for storage.
func (r *Report) MatchesJSON() string {
	if r == nil || len(r.Matches) == 0 {
		return "[]"
	}
	b, err := json.Marshal(r.Matches)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// Message returns the short diagnostic shown in place of results when an
// analysis fails.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoImageSelected):
		return "Please select an image first"
	case errors.Is(err, ocr.ErrImageUnreadable):
		return "The selected image could not be read."
	case errors.Is(err, ocr.ErrEngineUnavailable):
		return "Text recognition is not available."
	case errors.Is(err, reference.ErrSourceUnavailable):
		return "The harmful ingredient list could not be loaded."
	default:
		return "Analysis failed: " + strings.TrimSpace(err.Error())
	}
}
