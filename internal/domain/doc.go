// Package domain reshapes the public COVID-19 source tables into the published
// datasets: one table per US state, one per US county, one per country and a
// long-form global table tagged by geographic level.
//
// # Data Sources
//
// Six CSV sources feed a run:
//
//	nyt_us        New York Times national cases/deaths      date, cases, deaths
//	nyt_states    New York Times per-state cases/deaths     date, state, cases, deaths
//	nyt_counties  New York Times per-county cases/deaths    date, county, state, fips, cases, deaths
//	owid          Our World in Data per-location history    location, continent, date, total_*, population
//	ctp_us        COVID Tracking Project national history  date, negative, positive, totalTestResults, ...
//	ctp_states    COVID Tracking Project state history     as ctp_us plus state, pending
//
// Each source declares the header columns it must carry (see [SourceContract]).
// Sources may carry any number of extra columns; they are ignored.
//
// # Conventions
//
// Cells are kept as the source text. Measures are cumulative counts and are
// never parsed or re-formatted, so a value like "100.0" is published as is.
// An empty source cell is null and is published as an empty field, never as 0.
//
// Dates are published as YYYY-MM-DD. The tracking project historically
// published YYYYMMDD; those values are rewritten before any join keyed on date.
//
// The state source identifies states by postal code ("IL"). NYT identifies
// them by name ("Illinois"). The state reference maps one to the other.
//
// OWID mixes countries with aggregate pseudo-locations. "World" becomes the
// single Global-level series with country_iso3 = OWID_WRL. "International"
// (cruise ships and similar) stays a Country-level row without codes. Continent
// and income-group aggregates are kept as Country rows and simply miss the
// country reference.
//
// # Precedence
//
// New York Times counts are authoritative for cases at every US level and for
// deaths on state and county rows. The United States country row keeps OWID
// total_deaths. Where another source carries a measure NYT wins, its column is
// dropped before the join, so precedence is fixed by the column contract
// rather than decided per row.
//
// # Version
//
// Every row of the global table carries the same version_timestamp (UTC,
// YYYYMMDDHHmm), computed once by the caller and passed to [Build]. The narrow
// US and country tables have no version column.
package domain
