package domain

import (
	"fmt"
	"slices"

	"github.com/couchcryptid/covid-data-etl/internal/frame"
	"github.com/couchcryptid/covid-data-etl/internal/reference"
)

// owidColumns is the projection of the OWID history used by the global table.
var owidColumns = []string{
	"continent", "location", ColDate, "total_cases", "total_deaths", "total_tests",
	ColTestsUnits, ColPopulation,
}

// nationalColumns are the measures the United States country row takes from
// the tracking project and NYT instead of OWID.
var nationalColumns = []string{
	ColDate, ColTests, ColPatientsICU, ColPatientsHosp, ColCases,
	ColTestsNegative, ColPatientsVent, ColTestsPositive, ColRecovered,
}

var owidMeasures = []string{ColPopulation, ColDate, ColCases, ColDeaths, ColTests, ColTestsUnits}

var levelCountryIdentity = []string{ColGeographicLevel, ColCountryName, ColCountryISO2, ColCountryISO3}

// UnifyInput carries everything the global table is assembled from.
type UnifyInput struct {
	// States and Counties are the normalized tables.
	States   *frame.Frame
	Counties *frame.Frame
	// Global is the raw OWID history.
	Global *frame.Frame
	// NationalTesting is the raw tracking project national history.
	NationalTesting *frame.Frame
	// NationalCases is the raw NYT national history.
	NationalCases *frame.Frame
	Refs          reference.Tables
}

// slice is one constituent of the global table.
type slice struct {
	name     string
	frame    *frame.Frame
	provides []string
}

// Unify assembles the long-form global table. Every row is stamped with
// version. The result always has GlobalColumns, in order.
func Unify(in UnifyInput, version string) (*frame.Frame, error) {
	parts, err := globalSlices(in)
	if err != nil {
		return nil, err
	}

	conformed := make([]*frame.Frame, 0, len(parts))
	for _, s := range parts {
		f, err := conform(s)
		if err != nil {
			return nil, err
		}
		conformed = append(conformed, f)
	}

	all := frame.Concat(GlobalTable, conformed...).WithConstant(ColVersionTimestamp, frame.String(version))
	return all.Select(GlobalColumns...)
}

// globalSlices returns the six constituents in publication order:
// us, states, counties, countries, international, world.
func globalSlices(in UnifyInput) ([]slice, error) {
	owid, err := normalizeDates(in.Global)
	if err != nil {
		return nil, err
	}
	if owid, err = owid.Select(owidColumns...); err != nil {
		return nil, err
	}
	if owid, err = owid.Rename(owidRenames); err != nil {
		return nil, err
	}

	us, err := unitedStates(owid, in)
	if err != nil {
		return nil, fmt.Errorf("united states slice: %w", err)
	}
	states, err := usGrain(in.States, LevelUSState, in.Refs)
	if err != nil {
		return nil, fmt.Errorf("state slice: %w", err)
	}
	counties, err := usGrain(in.Counties, LevelUSCounty, in.Refs)
	if err != nil {
		return nil, fmt.Errorf("county slice: %w", err)
	}
	countries, err := otherCountries(owid, in.Refs)
	if err != nil {
		return nil, fmt.Errorf("countries slice: %w", err)
	}

	international, err := owid.Where("location", InternationalName)
	if err != nil {
		return nil, err
	}
	international = international.
		WithConstant(ColGeographicLevel, frame.String(string(LevelCountry))).
		WithConstant(ColCountryName, frame.String(InternationalName))
	world, err := owid.Where("location", WorldLocation)
	if err != nil {
		return nil, err
	}
	world = world.
		WithConstant(ColGeographicLevel, frame.String(string(LevelGlobal))).
		WithConstant(ColCountryISO3, frame.String(WorldISO3))

	return []slice{
		{name: "us", frame: us, provides: concat(levelCountryIdentity, []string{ColLat, ColLong}, owidMeasures, nationalColumns)},
		{name: "states", frame: states, provides: concat(levelCountryIdentity, StateColumns)},
		{name: "counties", frame: counties, provides: concat(levelCountryIdentity, CountyColumns)},
		{name: "countries", frame: countries, provides: concat(levelCountryIdentity, []string{ColLat, ColLong}, owidMeasures)},
		{name: "international", frame: international, provides: concat([]string{ColGeographicLevel, ColCountryName}, owidMeasures)},
		{name: "world", frame: world, provides: concat([]string{ColGeographicLevel, ColCountryISO3}, owidMeasures)},
	}, nil
}

// unitedStates builds the US country row. OWID supplies population, deaths and
// tests_units; the tracking project supplies tests and hospital counts; NYT
// supplies cases.
func unitedStates(owid *frame.Frame, in UnifyInput) (*frame.Frame, error) {
	national, err := normalizeDates(in.NationalTesting)
	if err != nil {
		return nil, err
	}
	if national, err = national.Rename(testingRenames); err != nil {
		return nil, err
	}
	national = national.Drop(ColCases, ColDeaths)

	nyt, err := normalizeDates(in.NationalCases)
	if err != nil {
		return nil, err
	}
	if nyt, err = nyt.Select(ColDate, ColCases); err != nil {
		return nil, err
	}
	if national, err = national.LeftJoin(nyt, ColDate); err != nil {
		return nil, err
	}
	if national, err = national.Select(nationalColumns...); err != nil {
		return nil, err
	}

	us, err := owid.Where("location", UnitedStatesName)
	if err != nil {
		return nil, err
	}
	us = us.
		Drop(ColCases, ColTests).
		WithConstant(ColGeographicLevel, frame.String(string(LevelCountry))).
		WithConstant(ColCountryName, frame.String(UnitedStatesName))
	if us, err = us.LeftJoin(national, ColDate); err != nil {
		return nil, err
	}
	return us.LeftJoin(in.Refs.Countries, ColCountryName)
}

// usGrain tags a normalized US table with its level and the United States codes.
func usGrain(f *frame.Frame, level Level, refs reference.Tables) (*frame.Frame, error) {
	codes, err := refs.Countries.Select(ColCountryName, ColCountryISO2, ColCountryISO3)
	if err != nil {
		return nil, err
	}
	tagged := f.
		WithConstant(ColGeographicLevel, frame.String(string(level))).
		WithConstant(ColCountryName, frame.String(UnitedStatesName))
	return tagged.LeftJoin(codes, ColCountryName)
}

func otherCountries(owid *frame.Frame, refs reference.Tables) (*frame.Frame, error) {
	rest, err := owid.WhereNot("location", WorldLocation, InternationalName, UnitedStatesName)
	if err != nil {
		return nil, err
	}
	rest, err = rest.Rename(map[string]string{"location": ColCountryName})
	if err != nil {
		return nil, err
	}
	rest = rest.WithConstant(ColGeographicLevel, frame.String(string(LevelCountry)))
	return rest.LeftJoin(refs.Countries, ColCountryName)
}

// conform asserts that a slice carries the columns it is expected to populate,
// then pads it to the global column set.
func conform(s slice) (*frame.Frame, error) {
	if err := s.frame.Renamed(s.name).Require("conform", s.provides...); err != nil {
		return nil, err
	}
	cols := GlobalColumns[:len(GlobalColumns)-1] // version_timestamp is stamped after the union
	return s.frame.Ensure(cols...).Select(cols...)
}

func concat(lists ...[]string) []string {
	var out []string
	for _, l := range lists {
		for _, c := range l {
			if !slices.Contains(out, c) {
				out = append(out, c)
			}
		}
	}
	return out
}
