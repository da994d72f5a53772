package reference

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/japaniel/labelscan/pkg/db"
)

// ErrSourceUnavailable is returned when the reference data cannot be opened or read.
var ErrSourceUnavailable = errors.New("reference source unavailable")

// RowSource yields the raw rows of a reference table. Each row holds at least the
// name and description fields when well formed; validation is left to Load.
type RowSource interface {
	Rows(ctx context.Context) ([][]string, error)
}

// CSVSource reads a delimited text file whose first row is a header.
type CSVSource struct {
	Path string
	// Comma is the field delimiter. Zero means ','.
	Comma rune
}

// Rows implements RowSource. Rows that fail to parse are skipped.
func (s CSVSource) Rows(ctx context.Context) ([][]string, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	if s.Comma != 0 {
		r.Comma = s.Comma
	}
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows [][]string
	header := true
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				header = false
				continue
			}
			return nil, fmt.Errorf("%w: read %s: %v", ErrSourceUnavailable, s.Path, err)
		}
		if header {
			header = false
			continue
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

// DBSource reads the ingredients table of the application database.
type DBSource struct {
	Conn db.DBExecutor
}

// Rows implements RowSource, returning rows in insertion order.
func (s DBSource) Rows(ctx context.Context) ([][]string, error) {
	if s.Conn == nil {
		return nil, fmt.Errorf("%w: no database configured", ErrSourceUnavailable)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ingredients, err := db.ListIngredients(s.Conn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	rows := make([][]string, 0, len(ingredients))
	for _, in := range ingredients {
		rows = append(rows, []string{in.Name, in.Description})
	}
	return rows, nil
}
