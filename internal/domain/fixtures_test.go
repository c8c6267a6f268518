package domain

import (
	"strings"
	"testing"

	"github.com/couchcryptid/covid-data-etl/internal/frame"
	"github.com/couchcryptid/covid-data-etl/internal/reference"
	"github.com/stretchr/testify/require"
)

const (
	testVersion = "202101021530"

	nytUSCSV = `date,cases,deaths
2021-01-01,20000000,350000
2021-01-02,20300000,352000
`
	nytStatesCSV = `date,state,fips,cases,deaths
2021-01-01,Illinois,17,963389,17978
2021-01-01,Ohio,39,700380,8944
`
	nytCountiesCSV = `date,county,state,fips,cases,deaths
2021-01-01,Cook,Illinois,17031,100,5
2021-01-01,Unknown,Illinois,,50,1
`
	owidCSV = `iso_code,continent,location,date,total_cases,new_cases,total_deaths,total_tests,tests_units,population
OWID_WRL,,World,2021-01-01,84000000,500000,1830000,,,7794798729
OWID_INT,,International,2021-01-01,721,,15,,,
USA,North America,United States,2021-01-01,20100000,230000,351000,250000000,tests performed,331002647
PER,South America,Peru,2021-01-01,1015137,,37830,5300000,people tested,32971846
OWID_EUR,,Europe,2021-01-01,25000000,,560000,,,748680000
`
	ctpUSCSV = `date,states,positive,negative,pending,totalTestResults,hospitalizedCurrently,inIcuCurrently,onVentilatorCurrently,recovered,death
20210101,56,19663976,222305840,11981,241969816,125057,23351,7904,,341138
`
	ctpStatesCSV = `date,state,positive,negative,pending,totalTestResults,hospitalizedCurrently,inIcuCurrently,onVentilatorCurrently,recovered,cases
20210101,IL,963390,11000000,,12963390,3900,796,447,,999999
20210101,OH,700381,5800000,12,6500381,4500,1100,660,500000,
20210101,ZZ,10,20,,30,,,,,
`
)

func readCSV(t *testing.T, name, doc string) *frame.Frame {
	t.Helper()
	f, err := frame.ReadCSV(name, strings.NewReader(doc))
	require.NoError(t, err)
	return f
}

func fp(v float64) *float64 { return &v }

func testRefs() reference.Tables {
	return reference.Tables{
		Counties: reference.CountyFrame([]reference.CountyCode{
			{CountyName: "Cook", StateName: "Illinois", CountyFIPS: "17031", Lat: fp(41.840039), Long: fp(-87.816716)},
		}),
		States: reference.StateFrame([]reference.StateCode{
			{StateName: "Illinois", PostCode: "IL", StateFIPS: "17", Lat: fp(40.349457), Long: fp(-88.986137)},
			{StateName: "Ohio", PostCode: "OH", StateFIPS: "39", Lat: fp(40.388783), Long: fp(-82.764915)},
		}),
		Countries: reference.CountryFrame([]reference.CountryCode{
			{CountryName: "United States", ISO2: "US", ISO3: "USA", Lat: fp(37.09024), Long: fp(-95.712891)},
			{CountryName: "Peru", ISO2: "PE", ISO3: "PER", Lat: fp(-9.189967), Long: fp(-75.015152)},
		}),
	}
}

func testSources(t *testing.T) Sources {
	t.Helper()
	return Sources{
		NYTUS:       readCSV(t, string(SourceNYTUS), nytUSCSV),
		NYTStates:   readCSV(t, string(SourceNYTStates), nytStatesCSV),
		NYTCounties: readCSV(t, string(SourceNYTCounties), nytCountiesCSV),
		OWID:        readCSV(t, string(SourceOWID), owidCSV),
		CTPUS:       readCSV(t, string(SourceCTPUS), ctpUSCSV),
		CTPStates:   readCSV(t, string(SourceCTPStates), ctpStatesCSV),
	}
}

// rowWhere returns the index of the first row whose cells equal want.
func rowWhere(t *testing.T, f *frame.Frame, want map[string]string) int {
	t.Helper()
	for i := 0; i < f.Len(); i++ {
		match := true
		for col, v := range want {
			if f.At(i, col).String() != v {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	t.Fatalf("%s: no row matching %v", f.Name(), want)
	return -1
}

// rowsWhere counts the rows with col == v.
func rowsWhere(f *frame.Frame, col, v string) int {
	n := 0
	f.Each(func(r frame.Row) {
		if r.Get(col).String() == v {
			n++
		}
	})
	return n
}
