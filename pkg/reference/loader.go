package reference

import (
	"context"
	"strings"
)

// Load reads every row of src into a Table. Rows with fewer than two fields or
// with an empty name or description are skipped. Names are folded to lower case
// and both fields are trimmed; a later row with the same folded name replaces the
// description of the earlier one.
func Load(ctx context.Context, src RowSource) (*Table, error) {
	rows, err := src.Rows(ctx)
	if err != nil {
		return nil, err
	}
	t := NewTable()
	for _, row := range rows {
		if len(row) < 2 || row[0] == "" || row[1] == "" {
			continue
		}
		name := strings.TrimSpace(row[0])
		desc := strings.TrimSpace(row[1])
		if name == "" || desc == "" {
			continue
		}
		t.Put(name, desc)
	}
	return t, nil
}
