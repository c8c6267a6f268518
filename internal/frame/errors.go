package frame

import (
	"fmt"
	"strings"
)

// SchemaMismatchError reports an operation that referenced columns its input
// does not have, typically because an upstream source changed its header.
type SchemaMismatchError struct {
	Table   string
	Op      string
	Columns []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("schema mismatch in %s: %s references missing column(s) %s",
		e.Table, e.Op, strings.Join(e.Columns, ", "))
}

// ColumnCollisionError reports a rename or join that would produce two columns
// with the same name. It is a configuration error, not a data error.
type ColumnCollisionError struct {
	Table  string
	Op     string
	Column string
}

func (e *ColumnCollisionError) Error() string {
	return fmt.Sprintf("column collision in %s: %s would duplicate column %q", e.Table, e.Op, e.Column)
}
