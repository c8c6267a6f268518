// Package reference loads the static lookup tables used to attach codes and
// coordinates to source rows: US counties, US states and countries.
//
// The tables ship embedded in the binary. A directory containing files with the
// same names can be supplied instead to refresh them without a rebuild.
package reference

import (
	"embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"sync"

	"github.com/couchcryptid/covid-data-etl/internal/frame"
	"github.com/jszwec/csvutil"
)

// File names looked up in the embedded data or a reference directory.
const (
	CountyFile  = "county_codes.csv"
	StateFile   = "state_codes.csv"
	CountryFile = "country_codes.csv"
)

//go:embed data/*.csv
var embedded embed.FS

// CountyCode is one row of the county reference.
type CountyCode struct {
	CountyName string   `csv:"county_name"`
	StateName  string   `csv:"state_name"`
	CountyFIPS string   `csv:"county_fips"`
	Lat        *float64 `csv:"lat,omitempty"`
	Long       *float64 `csv:"long,omitempty"`
}

// StateCode is one row of the state reference.
type StateCode struct {
	StateName string   `csv:"state_name"`
	PostCode  string   `csv:"post_code"`
	StateFIPS string   `csv:"state_fips"`
	Lat       *float64 `csv:"lat,omitempty"`
	Long      *float64 `csv:"long,omitempty"`
}

// CountryCode is one row of the country reference. ISO2 is empty for a few
// OWID-only entities.
type CountryCode struct {
	CountryName string   `csv:"country_name"`
	ISO2        string   `csv:"country_iso2"`
	ISO3        string   `csv:"country_iso3"`
	Lat         *float64 `csv:"lat,omitempty"`
	Long        *float64 `csv:"long,omitempty"`
}

// Tables holds the reference data as frames. Frames are treated as read-only
// and may be shared between runs.
type Tables struct {
	Counties  *frame.Frame
	States    *frame.Frame
	Countries *frame.Frame
}

var (
	defaultOnce   sync.Once
	defaultTables Tables
	defaultErr    error
)

// Default returns the embedded tables, decoding them on first use.
func Default() (Tables, error) {
	defaultOnce.Do(func() {
		defaultTables, defaultErr = load(embeddedFS())
	})
	return defaultTables, defaultErr
}

// Load reads the tables from dir. An empty dir selects the embedded data.
func Load(dir string) (Tables, error) {
	if dir == "" {
		return Default()
	}
	return load(os.DirFS(dir))
}

func embeddedFS() fs.FS {
	sub, err := fs.Sub(embedded, "data")
	if err != nil {
		panic(err) // the embed directive guarantees data/ exists
	}
	return sub
}

func load(fsys fs.FS) (Tables, error) {
	counties, err := decodeFile[CountyCode](fsys, CountyFile)
	if err != nil {
		return Tables{}, err
	}
	states, err := decodeFile[StateCode](fsys, StateFile)
	if err != nil {
		return Tables{}, err
	}
	countries, err := decodeFile[CountryCode](fsys, CountryFile)
	if err != nil {
		return Tables{}, err
	}
	return Tables{
		Counties:  CountyFrame(counties),
		States:    StateFrame(states),
		Countries: CountryFrame(countries),
	}, nil
}

func decodeFile[T any](fsys fs.FS, name string) ([]T, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open reference %s: %w", name, err)
	}
	defer f.Close()

	rows, err := decode[T](f)
	if err != nil {
		return nil, fmt.Errorf("decode reference %s: %w", name, err)
	}
	return rows, nil
}

func decode[T any](r io.Reader) ([]T, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true
	dec, err := csvutil.NewDecoder(cr)
	if err != nil {
		return nil, err
	}
	var out []T
	for {
		var row T
		if err := dec.Decode(&row); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

// CountyFrame converts decoded county rows to a frame with columns
// county_name, state_name, county_fips, lat, long.
func CountyFrame(rows []CountyCode) *frame.Frame {
	records := make([][]string, len(rows))
	for i, r := range rows {
		records[i] = []string{r.CountyName, r.StateName, r.CountyFIPS, coord(r.Lat), coord(r.Long)}
	}
	return mustFrame("county_codes", []string{"county_name", "state_name", "county_fips", "lat", "long"}, records)
}

// StateFrame converts decoded state rows to a frame with columns
// state_name, post_code, state_fips, lat, long.
func StateFrame(rows []StateCode) *frame.Frame {
	records := make([][]string, len(rows))
	for i, r := range rows {
		records[i] = []string{r.StateName, r.PostCode, r.StateFIPS, coord(r.Lat), coord(r.Long)}
	}
	return mustFrame("state_codes", []string{"state_name", "post_code", "state_fips", "lat", "long"}, records)
}

// CountryFrame converts decoded country rows to a frame with columns
// country_name, country_iso2, country_iso3, lat, long.
func CountryFrame(rows []CountryCode) *frame.Frame {
	records := make([][]string, len(rows))
	for i, r := range rows {
		records[i] = []string{r.CountryName, r.ISO2, r.ISO3, coord(r.Lat), coord(r.Long)}
	}
	return mustFrame("country_codes", []string{"country_name", "country_iso2", "country_iso3", "lat", "long"}, records)
}

// mustFrame builds a frame whose shape is fixed by this package.
func mustFrame(name string, columns []string, records [][]string) *frame.Frame {
	f, err := frame.FromRecords(name, columns, records)
	if err != nil {
		panic(err)
	}
	return f
}

func coord(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
