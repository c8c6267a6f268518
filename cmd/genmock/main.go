// Command genmock writes a synthetic, self-consistent set of source CSVs for
// offline runs. Point the *_URL settings at the generated files to run the
// pipeline without network access.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock -start 2021-01-01 -days 14
//	NYT_US_URL=data/mock/us.csv ... go run ./cmd/etl build
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/couchcryptid/covid-data-etl/internal/domain"
	"github.com/couchcryptid/covid-data-etl/internal/frame"
	"github.com/couchcryptid/covid-data-etl/internal/reference"
)

// outputFiles names each generated source after its upstream file.
var outputFiles = map[domain.SourceID]string{
	domain.SourceNYTUS:       "us.csv",
	domain.SourceNYTStates:   "us-states.csv",
	domain.SourceNYTCounties: "us-counties.csv",
	domain.SourceOWID:        "owid-covid-data.csv",
	domain.SourceCTPUS:       "national-history.csv",
	domain.SourceCTPStates:   "all-states-history.csv",
}

type options struct {
	start     time.Time
	days      int
	states    int
	countries int
	seed      uint64
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output directory for the generated CSV files")
	start := flag.String("start", "2021-01-01", "first date (YYYY-MM-DD)")
	days := flag.Int("days", 7, "number of days to generate")
	states := flag.Int("states", 5, "number of US states to include")
	countries := flag.Int("countries", 10, "number of countries besides the United States")
	seed := flag.Uint64("seed", 1, "random seed")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	startDate, err := time.Parse(time.DateOnly, *start)
	if err != nil {
		return fmt.Errorf("invalid -start: %w", err)
	}

	refs, err := reference.Default()
	if err != nil {
		return err
	}

	src, err := generate(refs, options{
		start:     startDate,
		days:      *days,
		states:    *states,
		countries: *countries,
		seed:      *seed,
	})
	if err != nil {
		return err
	}
	if err := writeSources(*out, src); err != nil {
		return err
	}
	fmt.Printf("Wrote %d source files to %s\n", len(outputFiles), *out)
	return nil
}

type stateRow struct {
	name, postCode, fips string
}

type countryRow struct {
	name, iso3 string
}

// generate builds all six sources. National figures are the sums of the state
// figures and cumulative counts never decrease.
func generate(refs reference.Tables, opts options) (domain.Sources, error) {
	if opts.days < 1 || opts.states < 1 {
		return domain.Sources{}, fmt.Errorf("days and states must be at least 1")
	}
	rng := rand.New(rand.NewPCG(opts.seed, opts.seed^0x9e3779b97f4a7c15))

	states := pickStates(refs, opts.states)
	counties := countiesOf(refs, states)
	countries := pickCountries(refs, opts.countries)

	var nytUS, nytStates, nytCounties, owid, ctpUS, ctpStates [][]string
	stateCases := make([]int, len(states))
	countyCases := make([]int, len(counties))
	countryCases := make([]int, len(countries))

	for day := range opts.days {
		d := opts.start.AddDate(0, 0, day)
		iso := d.Format(time.DateOnly)
		compact := d.Format("20060102")

		var usCases, usDeaths, usPositive, usNegative, usHosp int
		for i, s := range states {
			stateCases[i] += 500 + rng.IntN(1500)
			cases := stateCases[i]
			deaths := cases / 60
			positive := cases + rng.IntN(50)
			negative := positive * (8 + rng.IntN(4))
			hosp := cases / 40

			nytStates = append(nytStates, row(iso, s.name, s.fips, itoa(cases), itoa(deaths)))
			// CTP column order: date negative positive totalTestResults hospitalizedCurrently
			// inIcuCurrently onVentilatorCurrently recovered state pending
			ctpStates = append(ctpStates, row(compact, itoa(negative), itoa(positive), itoa(positive+negative),
				itoa(hosp), itoa(hosp/4), itoa(hosp/10), "", s.postCode, ""))

			usCases += cases
			usDeaths += deaths
			usPositive += positive
			usNegative += negative
			usHosp += hosp
		}
		for i, c := range counties {
			countyCases[i] += 20 + rng.IntN(200)
			nytCounties = append(nytCounties, row(iso, c.name, c.state, c.fips, itoa(countyCases[i]), itoa(countyCases[i]/70)))
		}

		nytUS = append(nytUS, row(iso, itoa(usCases), itoa(usDeaths)))
		ctpUS = append(ctpUS, row(compact, itoa(usNegative), itoa(usPositive), itoa(usPositive+usNegative),
			itoa(usHosp), itoa(usHosp/4), itoa(usHosp/10), ""))

		worldCases := usCases
		for i, c := range countries {
			countryCases[i] += 100 + rng.IntN(5000)
			worldCases += countryCases[i]
			owid = append(owid, row(c.iso3, c.name, "", iso, itoa(countryCases[i]), itoa(countryCases[i]/50),
				itoa(countryCases[i]*7), "tests performed", itoa(1_000_000+i*250_000)))
		}
		owid = append(owid, row("USA", domain.UnitedStatesName, "North America", iso, itoa(usCases), itoa(usDeaths),
			itoa(usPositive+usNegative), "tests performed", "331002647"))
		owid = append(owid, row(domain.WorldISO3, domain.WorldLocation, "", iso, itoa(worldCases), itoa(worldCases/50),
			"", "", "7794798729"))
	}

	var src domain.Sources
	tables := []struct {
		id      domain.SourceID
		columns []string
		rows    [][]string
	}{
		{domain.SourceNYTUS, domain.SourceContract(domain.SourceNYTUS), nytUS},
		{domain.SourceNYTStates, []string{"date", "state", "fips", "cases", "deaths"}, nytStates},
		{domain.SourceNYTCounties, domain.SourceContract(domain.SourceNYTCounties), nytCounties},
		{domain.SourceOWID, append([]string{"iso_code"}, domain.SourceContract(domain.SourceOWID)...), owid},
		{domain.SourceCTPUS, domain.SourceContract(domain.SourceCTPUS), ctpUS},
		{domain.SourceCTPStates, domain.SourceContract(domain.SourceCTPStates), ctpStates},
	}
	for _, t := range tables {
		f, err := frame.FromRecords(string(t.id), t.columns, t.rows)
		if err != nil {
			return domain.Sources{}, err
		}
		if err := src.Set(t.id, f); err != nil {
			return domain.Sources{}, err
		}
	}
	return src, nil
}

func pickStates(refs reference.Tables, n int) []stateRow {
	var out []stateRow
	refs.States.Each(func(r frame.Row) {
		if len(out) < n {
			out = append(out, stateRow{
				name:     r.Get("state_name").String(),
				postCode: r.Get("post_code").String(),
				fips:     r.Get(domain.ColStateFIPS).String(),
			})
		}
	})
	return out
}

type countyRow struct {
	name, state, fips string
}

func countiesOf(refs reference.Tables, states []stateRow) []countyRow {
	wanted := make(map[string]bool, len(states))
	for _, s := range states {
		wanted[s.name] = true
	}
	var out []countyRow
	refs.Counties.Each(func(r frame.Row) {
		state := r.Get(domain.ColStateName).String()
		if wanted[state] {
			out = append(out, countyRow{
				name:  r.Get(domain.ColCountyName).String(),
				state: state,
				fips:  r.Get(domain.ColCountyFIPS).String(),
			})
		}
	})
	return out
}

func pickCountries(refs reference.Tables, n int) []countryRow {
	var out []countryRow
	refs.Countries.Each(func(r frame.Row) {
		name := r.Get(domain.ColCountryName).String()
		iso3, ok := r.Get(domain.ColCountryISO3).Get()
		if len(out) >= n || !ok || name == domain.UnitedStatesName {
			return
		}
		out = append(out, countryRow{name: name, iso3: iso3})
	})
	return out
}

func writeSources(dir string, src domain.Sources) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	for _, id := range domain.AllSources {
		path := filepath.Join(dir, outputFiles[id])
		if err := writeFrame(path, src.Get(id)); err != nil {
			return err
		}
	}
	return nil
}

func writeFrame(path string, f *frame.Frame) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := bufio.NewWriter(file)
	if err := f.WriteCSV(w); err != nil {
		file.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return file.Close()
}

func itoa(n int) string { return strconv.Itoa(n) }

func row(cells ...string) []string { return cells }
