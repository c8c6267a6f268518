// Command validate performs integrity checks on one staged run: the four
// published CSV files of a version directory. It verifies headers, the run
// version stamp, geographic identity rules, key uniqueness and the agreement
// between the global table and the US tables.
//
// Usage:
//
//	go run ./cmd/validate -dir /tmp/covid-etl/202101021530
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/couchcryptid/covid-data-etl/internal/domain"
	"github.com/couchcryptid/covid-data-etl/internal/frame"
)

// expectedColumns maps each staged file to its header.
var expectedColumns = map[string][]string{
	domain.StatesTable:    domain.StateColumns,
	domain.CountiesTable:  domain.CountyColumns,
	domain.CountriesTable: domain.CountryColumns,
	domain.GlobalTable:    domain.GlobalColumns,
}

// tableOrder is the order files are loaded and reported in.
var tableOrder = []string{domain.StatesTable, domain.CountiesTable, domain.CountriesTable, domain.GlobalTable}

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dir := flag.String("dir", "", "staged run directory containing the published CSV files")
	flag.Parse()

	if *dir == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*dir, os.Stdout); code != 0 {
		os.Exit(code)
	}
}

func run(dir string, w io.Writer) int {
	fmt.Fprintln(w, "=== COVID-19 Dataset Validation ===")
	fmt.Fprintln(w)

	tables, err := loadTables(dir)
	if err != nil {
		fmt.Fprintf(w, "FATAL: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateHeaders(tables),
		validateVersion(tables[domain.GlobalTable]),
		validateIdentity(tables[domain.GlobalTable]),
		validateUniqueness(tables[domain.GlobalTable]),
		validateUSConsistency(tables),
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(w, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(w)
	counts := make([]string, 0, len(tableOrder))
	for _, name := range tableOrder {
		counts = append(counts, fmt.Sprintf("%d %s", tables[name].Len(), name))
	}
	fmt.Fprintf(w, "Rows: %s\n", strings.Join(counts, ", "))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(w, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(w, "\nValidation FAILED.")
	return 1
}

func loadTables(dir string) (map[string]*frame.Frame, error) {
	tables := make(map[string]*frame.Frame, len(tableOrder))
	for _, name := range tableOrder {
		f, err := loadCSV(filepath.Join(dir, name+".csv"), name)
		if err != nil {
			return nil, err
		}
		tables[name] = f
	}
	return tables, nil
}

func loadCSV(path, name string) (*frame.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return frame.ReadCSV(name, f)
}

// ── Phase 1: Headers ──

func validateHeaders(tables map[string]*frame.Frame) *phase {
	p := &phase{name: "Phase 1: Headers"}
	for _, name := range tableOrder {
		got := tables[name].Columns()
		if want := expectedColumns[name]; !slices.Equal(got, want) {
			p.errorf("%s: header %v, expected %v", name, got, want)
		}
	}
	return p
}

// ── Phase 2: Version ──
// Every global row carries the same, well-formed version stamp.

func validateVersion(global *frame.Frame) *phase {
	p := &phase{name: "Phase 2: Version stamp"}
	if !global.Has(domain.ColVersionTimestamp) {
		p.errorf("global table has no %s column", domain.ColVersionTimestamp)
		return p
	}

	seen := map[string]int{}
	global.Each(func(r frame.Row) {
		v, ok := r.Get(domain.ColVersionTimestamp).Get()
		if !ok {
			p.errorf("row %d: %s is empty", r.Index()+2, domain.ColVersionTimestamp)
			return
		}
		seen[v]++
	})
	if len(seen) > 1 {
		p.errorf("%d distinct versions in one run", len(seen))
	}
	for v := range seen {
		if _, err := time.Parse(domain.VersionLayout, v); err != nil {
			p.errorf("version %q does not match %s", v, domain.VersionLayout)
		}
	}
	return p
}

// ── Phase 3: Identity ──
// Each level populates only its own identity columns.

func validateIdentity(global *frame.Frame) *phase {
	p := &phase{name: "Phase 3: Geographic identity"}
	if !global.Has(domain.ColGeographicLevel) {
		p.errorf("global table has no %s column", domain.ColGeographicLevel)
		return p
	}

	allowed := make(map[domain.Level][]string, len(domain.Levels))
	for _, l := range domain.Levels {
		allowed[l] = domain.LevelIdentity(l)
	}

	global.Each(func(r frame.Row) {
		line := r.Index() + 2
		level := domain.Level(r.Get(domain.ColGeographicLevel).String())
		cols, ok := allowed[level]
		if !ok {
			p.errorf("row %d: unknown level %q", line, level)
			return
		}
		for _, col := range domain.IdentityColumns() {
			if slices.Contains(cols, col) {
				continue
			}
			if v, set := r.Get(col).Get(); set {
				p.errorf("row %d (%s): %s=%q should be empty", line, level, col, v)
			}
		}
		if v, set := r.Get(domain.ColAreaName).Get(); set {
			p.errorf("row %d (%s): %s=%q should be empty", line, level, domain.ColAreaName, v)
		}
		if r.Get(domain.ColDate).IsNull() {
			p.errorf("row %d (%s): date is empty", line, level)
		}
	})
	return p
}

// ── Phase 4: Uniqueness ──
// (level, identity, date) identifies at most one row.

func validateUniqueness(global *frame.Frame) *phase {
	p := &phase{name: "Phase 4: Key uniqueness"}
	keyCols := append([]string{domain.ColGeographicLevel}, domain.IdentityColumns()...)
	keyCols = append(keyCols, domain.ColDate)

	first := map[string]int{}
	global.Each(func(r frame.Row) {
		parts := make([]string, len(keyCols))
		for i, col := range keyCols {
			parts[i] = r.Get(col).String()
		}
		key := strings.Join(parts, "|")
		line := r.Index() + 2
		if prev, dup := first[key]; dup {
			p.errorf("row %d duplicates row %d (key=%s)", line, prev, key)
			return
		}
		first[key] = line
	})
	return p
}

// ── Phase 5: US consistency ──
// The global table carries exactly the rows of the US tables.

func validateUSConsistency(tables map[string]*frame.Frame) *phase {
	p := &phase{name: "Phase 5: US tables vs global"}
	global := tables[domain.GlobalTable]

	levels := map[domain.Level]int{}
	global.Each(func(r frame.Row) {
		levels[domain.Level(r.Get(domain.ColGeographicLevel).String())]++
	})

	checks := []struct {
		level domain.Level
		table string
	}{
		{domain.LevelUSState, domain.StatesTable},
		{domain.LevelUSCounty, domain.CountiesTable},
	}
	for _, c := range checks {
		if got, want := levels[c.level], tables[c.table].Len(); got != want {
			p.errorf("%s: global has %d rows, %s has %d", c.level, got, c.table, want)
		}
	}
	if levels[domain.LevelCountry] == 0 && tables[domain.CountriesTable].Len() > 0 {
		p.errorf("%s: no rows in global table", domain.LevelCountry)
	}
	return p
}
