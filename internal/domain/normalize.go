package domain

import (
	"fmt"
	"maps"

	"github.com/couchcryptid/covid-data-etl/internal/frame"
	"github.com/couchcryptid/covid-data-etl/internal/reference"
)

// testingRenames maps the tracking project's column names onto the published
// vocabulary. The state history adds pending, see stateTestingRenames.
var testingRenames = map[string]string{
	"negative":              ColTestsNegative,
	"positive":              ColTestsPositive,
	"totalTestResults":      ColTests,
	"hospitalizedCurrently": ColPatientsHosp,
	"inIcuCurrently":        ColPatientsICU,
	"onVentilatorCurrently": ColPatientsVent,
}

func stateTestingRenames() map[string]string {
	m := maps.Clone(testingRenames)
	m["pending"] = ColTestsPending
	return m
}

var countyRenames = map[string]string{
	"county": ColCountyName,
	"state":  ColStateName,
	"fips":   ColCountyFIPS,
}

// owidRenames maps OWID totals onto measure names. location is renamed
// separately because the aggregate slices of the global table drop it.
var owidRenames = map[string]string{
	"total_cases":  ColCases,
	"total_deaths": ColDeaths,
	"total_tests":  ColTests,
}

// NormalizeStates builds the US states table from the tracking project's state
// history (testing) and the NYT per-state counts (cases). Cases and deaths come
// from NYT only; a state/day NYT does not report keeps null counts.
func NormalizeStates(testing, cases *frame.Frame, refs reference.Tables) (*frame.Frame, error) {
	t, err := normalizeDates(testing)
	if err != nil {
		return nil, err
	}
	if t, err = t.Rename(stateTestingRenames()); err != nil {
		return nil, err
	}
	t = t.Drop(ColCases, ColDeaths)

	codes, err := stateCodesByPostCode(refs)
	if err != nil {
		return nil, err
	}
	if t, err = t.LeftJoin(codes, "state"); err != nil {
		return nil, fmt.Errorf("attach state codes: %w", err)
	}

	nyt, err := normalizeDates(cases)
	if err != nil {
		return nil, err
	}
	if nyt, err = nyt.Rename(map[string]string{"state": ColStateName}); err != nil {
		return nil, err
	}
	if nyt, err = nyt.Select(ColDate, ColStateName, ColCases, ColDeaths); err != nil {
		return nil, err
	}
	if t, err = t.LeftJoin(nyt, ColDate, ColStateName); err != nil {
		return nil, fmt.Errorf("attach state cases: %w", err)
	}

	out, err := t.Select(StateColumns...)
	if err != nil {
		return nil, err
	}
	return out.Renamed(StatesTable), nil
}

// NormalizeCounties builds the US counties table from the NYT per-county counts.
func NormalizeCounties(counties *frame.Frame, refs reference.Tables) (*frame.Frame, error) {
	c, err := normalizeDates(counties)
	if err != nil {
		return nil, err
	}
	if c, err = c.Rename(countyRenames); err != nil {
		return nil, err
	}

	states, err := refs.States.Select(ColStateName, ColStateFIPS)
	if err != nil {
		return nil, err
	}
	if c, err = c.LeftJoin(states, ColStateName); err != nil {
		return nil, fmt.Errorf("attach state fips: %w", err)
	}

	// County names repeat across states, so coordinates match on both.
	coords, err := refs.Counties.Select(ColCountyName, ColStateName, ColLat, ColLong)
	if err != nil {
		return nil, err
	}
	if c, err = c.LeftJoin(coords, ColCountyName, ColStateName); err != nil {
		return nil, fmt.Errorf("attach county coordinates: %w", err)
	}

	out, err := c.WithConstant(ColAreaName, frame.Null).Select(CountyColumns...)
	if err != nil {
		return nil, err
	}
	return out.Renamed(CountiesTable), nil
}

// NormalizeCountries builds the countries table from the OWID history. OWID
// aggregates such as World are kept and miss the country reference.
func NormalizeCountries(global *frame.Frame, refs reference.Tables) (*frame.Frame, error) {
	g, err := normalizeDates(global)
	if err != nil {
		return nil, err
	}
	renames := maps.Clone(owidRenames)
	renames["location"] = ColCountryName
	if g, err = g.Rename(renames); err != nil {
		return nil, err
	}
	if g, err = g.LeftJoin(refs.Countries, ColCountryName); err != nil {
		return nil, fmt.Errorf("attach country codes: %w", err)
	}

	out, err := g.Select(CountryColumns...)
	if err != nil {
		return nil, err
	}
	return out.Renamed(CountriesTable), nil
}

// stateCodesByPostCode keys the state reference by the tracking project's
// state column.
func stateCodesByPostCode(refs reference.Tables) (*frame.Frame, error) {
	codes, err := refs.States.Select("post_code", ColStateName, ColStateFIPS, ColLat, ColLong)
	if err != nil {
		return nil, err
	}
	return codes.Rename(map[string]string{"post_code": "state"})
}
