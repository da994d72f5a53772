package reference

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Entry is a single harmful ingredient and its hazard description.
type Entry struct {
	Name        string
	Description string
}

// Table maps folded ingredient names to descriptions and remembers insertion
// order. Replacing the description of an existing name keeps its position.
type Table struct {
	entries []Entry
	index   map[string]int
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{index: make(map[string]int)}
}

// Put stores description under the folded form of name.
func (t *Table) Put(name, description string) {
	key := Fold(strings.TrimSpace(name))
	if i, ok := t.index[key]; ok {
		t.entries[i].Description = description
		return
	}
	t.index[key] = len(t.entries)
	t.entries = append(t.entries, Entry{Name: key, Description: description})
}

// Lookup returns the description stored for name.
func (t *Table) Lookup(name string) (string, bool) {
	if t == nil {
		return "", false
	}
	i, ok := t.index[Fold(strings.TrimSpace(name))]
	if !ok {
		return "", false
	}
	return t.entries[i].Description, true
}

// Len reports the number of entries.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Entries returns a copy of the entries in insertion order.
func (t *Table) Entries() []Entry {
	if t == nil {
		return nil
	}
	return append([]Entry(nil), t.entries...)
}

// Each calls fn for every entry in insertion order until fn returns false.
func (t *Table) Each(fn func(Entry) bool) {
	if t == nil {
		return
	}
	for _, e := range t.entries {
		if !fn(e) {
			return
		}
	}
}

// Fold lower-cases s the same way for reference names and extracted text.
func Fold(s string) string {
	return cases.Lower(language.Und).String(s)
}
