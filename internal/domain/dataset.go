package domain

import (
	"fmt"

	"github.com/couchcryptid/covid-data-etl/internal/frame"
	"github.com/couchcryptid/covid-data-etl/internal/reference"
)

// Table names, used as frame names and as the base of the published file names.
const (
	StatesTable    = "covid_19_us_states"
	CountiesTable  = "covid_19_us_counties"
	CountriesTable = "covid_19_global_countries"
	GlobalTable    = "covid_19_global"
)

// Dataset is the output of one run.
type Dataset struct {
	Version   string
	States    *frame.Frame
	Counties  *frame.Frame
	Countries *frame.Frame
	Global    *frame.Frame
}

// Table pairs a published file name with its contents.
type Table struct {
	File  string
	Frame *frame.Frame
}

// Tables lists the dataset's tables in publication order.
func (d Dataset) Tables() []Table {
	return []Table{
		{File: StatesTable + ".csv", Frame: d.States},
		{File: CountiesTable + ".csv", Frame: d.Counties},
		{File: CountriesTable + ".csv", Frame: d.Countries},
		{File: GlobalTable + ".csv", Frame: d.Global},
	}
}

// Build normalizes the three grains and unifies them into the global table.
func Build(src Sources, refs reference.Tables, version string) (Dataset, error) {
	if err := src.Validate(); err != nil {
		return Dataset{}, err
	}

	states, err := NormalizeStates(src.CTPStates, src.NYTStates, refs)
	if err != nil {
		return Dataset{}, fmt.Errorf("normalize states: %w", err)
	}
	counties, err := NormalizeCounties(src.NYTCounties, refs)
	if err != nil {
		return Dataset{}, fmt.Errorf("normalize counties: %w", err)
	}
	countries, err := NormalizeCountries(src.OWID, refs)
	if err != nil {
		return Dataset{}, fmt.Errorf("normalize countries: %w", err)
	}

	global, err := Unify(UnifyInput{
		States:          states,
		Counties:        counties,
		Global:          src.OWID,
		NationalTesting: src.CTPUS,
		NationalCases:   src.NYTUS,
		Refs:            refs,
	}, version)
	if err != nil {
		return Dataset{}, fmt.Errorf("unify: %w", err)
	}

	return Dataset{
		Version:   version,
		States:    states,
		Counties:  counties,
		Countries: countries,
		Global:    global,
	}, nil
}
