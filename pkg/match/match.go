// Package match finds reference ingredients inside extracted label text.
//
// Matching is plain substring containment over lower-cased text: no word
// boundaries are checked, so "oil" is reported for "foil".
package match

import (
	"strings"

	"github.com/japaniel/labelscan/pkg/reference"
)

// Result is a reference entry found in the text.
type Result struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// FindMatches returns every entry of table whose name occurs in text, in the
// table's insertion order.
func FindMatches(text string, table *reference.Table) []Result {
	if text == "" || table.Len() == 0 {
		return nil
	}
	folded := reference.Fold(text)
	var out []Result
	table.Each(func(e reference.Entry) bool {
		if strings.Contains(folded, e.Name) {
			out = append(out, Result{Name: e.Name, Description: e.Description})
		}
		return true
	})
	return out
}
