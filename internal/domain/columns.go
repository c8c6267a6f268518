package domain

import "slices"

// Column names of the published tables.
const (
	ColGeographicLevel  = "geographic_level"
	ColCountryName      = "country_name"
	ColCountryISO2      = "country_iso2"
	ColCountryISO3      = "country_iso3"
	ColStateFIPS        = "state_fips"
	ColStateName        = "state_name"
	ColCountyFIPS       = "county_fips"
	ColCountyName       = "county_name"
	ColAreaName         = "area_name"
	ColLat              = "lat"
	ColLong             = "long"
	ColPopulation       = "population"
	ColDate             = "date"
	ColCases            = "cases"
	ColDeaths           = "deaths"
	ColTests            = "tests"
	ColTestsPending     = "tests_pending"
	ColTestsNegative    = "tests_negative"
	ColTestsPositive    = "tests_positive"
	ColTestsUnits       = "tests_units"
	ColPatientsICU      = "patients_icu"
	ColPatientsHosp     = "patients_hosp"
	ColPatientsVent     = "patients_vent"
	ColRecovered        = "recovered"
	ColVersionTimestamp = "version_timestamp"
)

// Level is the geographic grain of a row in the global table.
type Level string

const (
	LevelGlobal   Level = "Global"
	LevelCountry  Level = "Country"
	LevelUSState  Level = "US State"
	LevelUSCounty Level = "US County"
)

// Levels lists every level in publication order of the global table slices.
var Levels = []Level{LevelGlobal, LevelCountry, LevelUSState, LevelUSCounty}

// Fixed identity values used when tagging aggregate rows.
const (
	WorldISO3         = "OWID_WRL"
	WorldLocation     = "World"
	InternationalName = "International"
	UnitedStatesName  = "United States"
)

// GlobalColumns is the column list of the global table, in order.
var GlobalColumns = []string{
	ColGeographicLevel, ColCountryName, ColCountryISO2, ColCountryISO3,
	ColStateFIPS, ColStateName, ColCountyFIPS, ColCountyName, ColAreaName,
	ColLat, ColLong, ColPopulation, ColDate,
	ColCases, ColDeaths, ColTests, ColTestsPending, ColTestsNegative, ColTestsPositive,
	ColTestsUnits, ColPatientsICU, ColPatientsHosp, ColPatientsVent, ColRecovered,
	ColVersionTimestamp,
}

// CountryColumns is the column list of the countries table.
var CountryColumns = []string{
	ColCountryName, ColCountryISO2, ColCountryISO3, ColLat, ColLong, ColPopulation,
	ColDate, ColCases, ColDeaths, ColTests, ColTestsUnits,
}

// CountyColumns is the column list of the US counties table.
var CountyColumns = []string{
	ColStateFIPS, ColStateName, ColCountyFIPS, ColCountyName, ColAreaName,
	ColLat, ColLong, ColDate, ColCases, ColDeaths,
}

// StateColumns is the column list of the US states table.
var StateColumns = []string{
	ColStateFIPS, ColStateName, ColLat, ColLong, ColDate, ColCases, ColDeaths,
	ColTestsPositive, ColTestsNegative, ColTestsPending, ColTests,
	ColPatientsICU, ColPatientsHosp, ColPatientsVent, ColRecovered,
}

// identityColumns are the global columns that locate a row geographically.
var identityColumns = []string{
	ColCountryName, ColCountryISO2, ColCountryISO3,
	ColStateFIPS, ColStateName, ColCountyFIPS, ColCountyName,
}

// LevelIdentity returns the identity columns that may be populated at level.
// Every other identity column is null for rows of that level. Country codes
// can still be null on a reference miss.
func LevelIdentity(l Level) []string {
	switch l {
	case LevelGlobal:
		return []string{ColCountryISO3}
	case LevelCountry:
		return []string{ColCountryName, ColCountryISO2, ColCountryISO3}
	case LevelUSState:
		return []string{ColCountryName, ColCountryISO2, ColCountryISO3, ColStateFIPS, ColStateName}
	case LevelUSCounty:
		return slices.Clone(identityColumns)
	default:
		return nil
	}
}

// IdentityColumns returns all identity columns of the global table.
func IdentityColumns() []string { return slices.Clone(identityColumns) }
