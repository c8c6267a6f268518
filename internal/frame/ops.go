package frame

import (
	"slices"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// Rename maps column names through mapping. Every source column must exist and
// the result must not contain duplicate names. Mapping a column to itself is allowed.
func (f *Frame) Rename(mapping map[string]string) (*Frame, error) {
	from := make([]string, 0, len(mapping))
	for src := range mapping {
		from = append(from, src)
	}
	slices.Sort(from)
	if err := f.Require("rename", from...); err != nil {
		return nil, err
	}

	columns := f.Columns()
	seen := make(map[string]struct{}, len(columns))
	for i, c := range columns {
		if to, ok := mapping[c]; ok {
			c = to
		}
		if _, dup := seen[c]; dup {
			return nil, &ColumnCollisionError{Table: f.name, Op: "rename", Column: c}
		}
		seen[c] = struct{}{}
		columns[i] = c
	}
	if len(columns) == 0 {
		return f.Renamed(f.name), nil
	}

	// Names are set on a copy in one step so that swaps never pass through a
	// state with duplicate names.
	out := f.df.Copy()
	if err := out.SetNames(columns...); err != nil {
		return nil, err
	}
	return f.derive(out), nil
}

// Select projects the frame onto cols, in that order.
func (f *Frame) Select(cols ...string) (*Frame, error) {
	if err := f.Require("select", cols...); err != nil {
		return nil, err
	}
	if err := checkNames(f.name, "select", cols); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return wrap(f.name, dataframe.DataFrame{}), nil
	}
	return f.derive(f.df.Select(cols)), nil
}

// Drop removes the named columns. Columns that are not present are ignored.
func (f *Frame) Drop(cols ...string) *Frame {
	var present []string
	for _, c := range cols {
		if f.Has(c) && !slices.Contains(present, c) {
			present = append(present, c)
		}
	}
	switch len(present) {
	case 0:
		return f.Renamed(f.name)
	case len(f.index):
		return wrap(f.name, dataframe.DataFrame{})
	}
	return f.derive(f.df.Drop(present))
}

// WithConstant sets col to v on every row, adding the column at the end when absent.
func (f *Frame) WithConstant(col string, v Value) *Frame {
	return f.mutate(column(col, constant(f.Len(), v.s)))
}

// mutate replaces or appends one column.
func (f *Frame) mutate(s series.Series) *Frame {
	if len(f.index) == 0 {
		return f.derive(dataframe.New(s))
	}
	return f.derive(f.df.Mutate(s))
}

// Ensure appends an all-null column for every name in cols that f lacks.
// Existing columns and their order are untouched.
func (f *Frame) Ensure(cols ...string) *Frame {
	var missing []series.Series
	var names []string
	for _, c := range cols {
		if !f.Has(c) && !slices.Contains(names, c) {
			names = append(names, c)
			missing = append(missing, column(c, blank(f.Len())))
		}
	}
	if len(missing) == 0 {
		return f.Renamed(f.name)
	}
	return f.derive(f.df.CBind(dataframe.New(missing...)))
}

// MapColumn replaces every cell of col with fn(cell).
func (f *Frame) MapColumn(col string, fn func(Value) Value) (*Frame, error) {
	if err := f.Require("map", col); err != nil {
		return nil, err
	}
	j := f.index[col]
	cells := make([]string, f.Len())
	for i := range cells {
		cells[i] = fn(f.cell(i, j)).s
	}
	return f.mutate(column(col, cells)), nil
}

// Filter keeps the rows for which keep returns true.
func (f *Frame) Filter(keep func(Row) bool) *Frame {
	if len(f.index) == 0 {
		return f.Renamed(f.name)
	}
	mask := make([]bool, f.Len())
	for i := range mask {
		mask[i] = keep(Row{f: f, i: i})
	}
	return f.derive(f.df.Subset(mask))
}

// Where keeps the rows whose col holds one of values.
func (f *Frame) Where(col string, values ...string) (*Frame, error) {
	if err := f.Require("where", col); err != nil {
		return nil, err
	}
	return f.derive(f.df.Filter(dataframe.F{Colname: col, Comparator: series.In, Comparando: values})), nil
}

// WhereNot keeps the rows whose col holds none of values.
func (f *Frame) WhereNot(col string, values ...string) (*Frame, error) {
	if err := f.Require("where not", col); err != nil {
		return nil, err
	}
	outside := func(e series.Element) bool { return !slices.Contains(values, e.String()) }
	return f.derive(f.df.Filter(dataframe.F{Colname: col, Comparator: series.CompFunc, Comparando: outside})), nil
}

// LeftJoin attaches the non-key columns of right to every row of f, matching on
// the key columns on. Every row of f is kept exactly once: when several right
// rows share a key the first one wins, and unmatched rows (including rows with a
// null key) get nulls. A non-key column of right that already exists in f is a
// ColumnCollisionError; resolve it by renaming or dropping before the join.
//
// The join is a hash lookup on the right side.
func (f *Frame) LeftJoin(right *Frame, on ...string) (*Frame, error) {
	if err := f.Require("left join", on...); err != nil {
		return nil, err
	}
	if err := right.Require("left join", on...); err != nil {
		return nil, err
	}

	var extra []string
	for _, c := range right.Columns() {
		if slices.Contains(on, c) {
			continue
		}
		if f.Has(c) {
			return nil, &ColumnCollisionError{Table: f.name, Op: "left join with " + right.name, Column: c}
		}
		extra = append(extra, c)
	}
	if len(extra) == 0 {
		return f.Renamed(f.name), nil
	}

	lookup := make(map[string]int, right.Len())
	for i := range right.Len() {
		k, ok := right.joinKey(i, on)
		if !ok {
			continue
		}
		if _, seen := lookup[k]; !seen {
			lookup[k] = i
		}
	}

	match := make([]int, f.Len())
	for i := range match {
		match[i] = -1
		if k, ok := f.joinKey(i, on); ok {
			if r, hit := lookup[k]; hit {
				match[i] = r
			}
		}
	}

	attached := make([]series.Series, len(extra))
	for n, c := range extra {
		src := right.index[c]
		cells := make([]string, len(match))
		for i, r := range match {
			if r >= 0 {
				cells[i] = right.df.Elem(r, src).String()
			}
		}
		attached[n] = column(c, cells)
	}
	return f.derive(f.df.CBind(dataframe.New(attached...))), nil
}

// Concat stacks frames row-wise into a new frame called name. The result has the
// union of all columns in first-seen order; cells a frame does not have are null.
func Concat(name string, frames ...*Frame) *Frame {
	var columns []string
	for _, fr := range frames {
		for _, c := range fr.Columns() {
			if !slices.Contains(columns, c) {
				columns = append(columns, c)
			}
		}
	}
	if len(columns) == 0 {
		return wrap(name, dataframe.DataFrame{})
	}

	var out dataframe.DataFrame
	for n, fr := range frames {
		padded, _ := fr.Ensure(columns...).Select(columns...) // columns covers fr
		if n == 0 {
			out = padded.df
			continue
		}
		out = out.RBind(padded.df)
	}
	return wrap(name, dataframe.DataFrame{}).derive(out)
}

// joinKey builds a composite key for row i; ok is false when any part is null.
func (f *Frame) joinKey(i int, on []string) (string, bool) {
	if len(on) == 1 {
		return f.At(i, on[0]).Get()
	}
	var b strings.Builder
	for n, c := range on {
		v, ok := f.At(i, c).Get()
		if !ok {
			return "", false
		}
		if n > 0 {
			b.WriteByte(0x1f)
		}
		b.WriteString(v)
	}
	return b.String(), true
}
