// Package frame is a table of nullable string cells on top of a gota
// dataframe.DataFrame.
//
// Every column is a series.String and cells keep the source text untouched, so
// re-serializing a frame reproduces the input formatting exactly. Null is the
// empty cell: an empty CSV field reads as null and null is written back out as
// an empty field.
//
// Every operation returns a new frame and leaves its receiver unchanged.
package frame

import (
	"fmt"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// Value is a single nullable cell.
type Value struct {
	s     string
	valid bool
}

// Null is the absent value.
var Null = Value{}

// String wraps s as a non-null value. Stored in a frame, the empty string
// reads back as null.
func String(s string) Value {
	return Value{s: s, valid: true}
}

// OrNull wraps s, treating the empty string as null.
func OrNull(s string) Value {
	if s == "" {
		return Null
	}
	return String(s)
}

// IsNull reports whether the value is absent.
func (v Value) IsNull() bool { return !v.valid }

// Get returns the text and whether the value is non-null.
func (v Value) Get() (string, bool) { return v.s, v.valid }

// String returns the text, or "" for null.
func (v Value) String() string { return v.s }

// Frame is a named dataframe of string columns. A frame without columns
// has no rows.
type Frame struct {
	name  string
	df    dataframe.DataFrame
	index map[string]int
}

// loadOptions keep every column a string and every cell verbatim.
func loadOptions(extra ...dataframe.LoadOption) []dataframe.LoadOption {
	return append([]dataframe.LoadOption{
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(nil),
	}, extra...)
}

func column(name string, cells []string) series.Series {
	return series.New(cells, series.String, name)
}

// New creates an empty frame. Duplicate or blank column names are rejected.
func New(name string, columns ...string) (*Frame, error) {
	if err := checkNames(name, "new", columns); err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return wrap(name, dataframe.DataFrame{}), nil
	}
	cols := make([]series.Series, len(columns))
	for i, c := range columns {
		cols[i] = column(c, []string{})
	}
	return build(name, dataframe.New(cols...))
}

// MustNew is New for static column lists known to be valid.
func MustNew(name string, columns ...string) *Frame {
	f, err := New(name, columns...)
	if err != nil {
		panic(err)
	}
	return f
}

// FromRecords builds a frame from rows of text. Empty strings are null and
// every row must have one cell per column.
func FromRecords(name string, columns []string, rows [][]string) (*Frame, error) {
	if err := checkNames(name, "new", columns); err != nil {
		return nil, err
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("load %s: row %d has %d values for %d columns", name, i+1, len(row), len(columns))
		}
	}
	if len(rows) == 0 || len(columns) == 0 {
		return New(name, columns...)
	}
	df := dataframe.LoadRecords(rows, loadOptions(dataframe.HasHeader(false), dataframe.Names(columns...))...)
	return build(name, df)
}

// checkNames rejects names the dataframe would silently rewrite.
func checkNames(table, op string, columns []string) error {
	seen := make(map[string]struct{}, len(columns))
	for i, c := range columns {
		if c == "" {
			return fmt.Errorf("%s %s: column %d has no name", op, table, i+1)
		}
		if _, dup := seen[c]; dup {
			return &ColumnCollisionError{Table: table, Op: op, Column: c}
		}
		seen[c] = struct{}{}
	}
	return nil
}

func build(name string, df dataframe.DataFrame) (*Frame, error) {
	if err := df.Error(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return wrap(name, df), nil
}

func wrap(name string, df dataframe.DataFrame) *Frame {
	names := df.Names()
	index := make(map[string]int, len(names))
	for i, c := range names {
		index[c] = i
	}
	return &Frame{name: name, df: df, index: index}
}

// derive wraps the result of a dataframe operation that cannot fail on
// validated input.
func (f *Frame) derive(df dataframe.DataFrame) *Frame {
	if err := df.Error(); err != nil {
		panic(fmt.Sprintf("frame %s: %v", f.name, err))
	}
	return wrap(f.name, df)
}

// Name identifies the frame in error messages.
func (f *Frame) Name() string { return f.name }

// Renamed returns the same table under a different name.
func (f *Frame) Renamed(name string) *Frame {
	return &Frame{name: name, df: f.df, index: f.index}
}

// Columns returns a copy of the column names in order.
func (f *Frame) Columns() []string { return f.df.Names() }

// Len returns the number of rows.
func (f *Frame) Len() int { return f.df.Nrow() }

// Has reports whether col exists.
func (f *Frame) Has(col string) bool {
	_, ok := f.index[col]
	return ok
}

// Append adds one row. The number of values must match the column count.
// Each call copies the table; build large frames with FromRecords.
func (f *Frame) Append(values ...Value) error {
	cols := f.Columns()
	if len(values) != len(cols) || len(cols) == 0 {
		return fmt.Errorf("append to %s: got %d values for %d columns", f.name, len(values), len(cols))
	}
	row := make([]series.Series, len(cols))
	for i, c := range cols {
		row[i] = column(c, []string{values[i].s})
	}
	df := f.df.RBind(dataframe.New(row...))
	if err := df.Error(); err != nil {
		return fmt.Errorf("append to %s: %w", f.name, err)
	}
	f.df = df
	return nil
}

// AppendStrings adds one row of text values; empty strings become null.
func (f *Frame) AppendStrings(values ...string) error {
	row := make([]Value, len(values))
	for i, s := range values {
		row[i] = OrNull(s)
	}
	return f.Append(row...)
}

// At returns the cell at row i, column col. Unknown columns read as null.
func (f *Frame) At(i int, col string) Value {
	j, ok := f.index[col]
	if !ok {
		return Null
	}
	return f.cell(i, j)
}

func (f *Frame) cell(i, j int) Value {
	return OrNull(f.df.Elem(i, j).String())
}

// Column returns all cells of col in row order.
func (f *Frame) Column(col string) ([]Value, error) {
	if _, ok := f.index[col]; !ok {
		return nil, &SchemaMismatchError{Table: f.name, Op: "column", Columns: []string{col}}
	}
	cells := f.df.Col(col).Records()
	out := make([]Value, len(cells))
	for i, s := range cells {
		out[i] = OrNull(s)
	}
	return out, nil
}

// Records renders the rows as text, nulls as "". Mostly useful in tests.
func (f *Frame) Records() [][]string {
	return f.df.Records()[1:]
}

// Require fails with a SchemaMismatchError naming every absent column.
func (f *Frame) Require(op string, cols ...string) error {
	var missing []string
	for _, c := range cols {
		if !f.Has(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return &SchemaMismatchError{Table: f.name, Op: op, Columns: missing}
	}
	return nil
}

// Row is a read-only view of one row.
type Row struct {
	f *Frame
	i int
}

// Get returns the cell in column col, or null when the column is unknown.
func (r Row) Get(col string) Value { return r.f.At(r.i, col) }

// Index is the row position within its frame.
func (r Row) Index() int { return r.i }

// Each calls fn for every row in order.
func (f *Frame) Each(fn func(Row)) {
	for i := range f.Len() {
		fn(Row{f: f, i: i})
	}
}

// blank is n null cells.
func blank(n int) []string {
	return make([]string, n)
}

func constant(n int, s string) []string {
	out := make([]string, n)
	if s != "" {
		for i := range out {
			out[i] = s
		}
	}
	return out
}
