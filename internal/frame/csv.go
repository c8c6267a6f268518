package frame

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-gota/gota/dataframe"
)

const utf8BOM = "\ufeff"

// ReadCSV parses a CSV document with a header row. Empty fields become null.
//
// The header is loaded as an ordinary row and checked here, since the
// dataframe loader renames blank or duplicate headers and rejects a document
// that has a header but no rows.
func ReadCSV(name string, r io.Reader) (*Frame, error) {
	df := dataframe.ReadCSV(r, loadOptions(dataframe.HasHeader(false))...)
	if err := df.Error(); err != nil {
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		return nil, fmt.Errorf("read %s: missing header row", name)
	}

	header := make([]string, df.Ncol())
	for j := range header {
		header[j] = strings.TrimSpace(df.Elem(0, j).String())
	}
	header[0] = strings.TrimSpace(strings.TrimPrefix(header[0], utf8BOM))
	if err := checkNames(name, "read", header); err != nil {
		return nil, err
	}

	if df.Nrow() == 1 {
		return New(name, header...)
	}
	rows := make([]int, df.Nrow()-1)
	for i := range rows {
		rows[i] = i + 1
	}
	data := df.Subset(rows)
	if err := data.SetNames(header...); err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return build(name, data)
}

// WriteCSV writes the header and all rows. Nulls are written as empty fields.
func (f *Frame) WriteCSV(w io.Writer) error {
	if err := f.df.WriteCSV(w, dataframe.WriteHeader(true)); err != nil {
		return fmt.Errorf("write %s: %w", f.name, err)
	}
	return nil
}
