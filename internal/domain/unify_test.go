package domain

import (
	"bytes"
	"slices"
	"testing"

	"github.com/couchcryptid/covid-data-etl/internal/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unifyInput(t *testing.T) UnifyInput {
	t.Helper()
	src := testSources(t)
	refs := testRefs()

	states, err := NormalizeStates(src.CTPStates, src.NYTStates, refs)
	require.NoError(t, err)
	counties, err := NormalizeCounties(src.NYTCounties, refs)
	require.NoError(t, err)

	return UnifyInput{
		States:          states,
		Counties:        counties,
		Global:          src.OWID,
		NationalTesting: src.CTPUS,
		NationalCases:   src.NYTUS,
		Refs:            refs,
	}
}

func TestUnify_Shape(t *testing.T) {
	in := unifyInput(t)

	out, err := Unify(in, testVersion)
	require.NoError(t, err)

	assert.Equal(t, GlobalTable, out.Name())
	assert.Equal(t, GlobalColumns, out.Columns())
	assert.Len(t, out.Columns(), 25)

	// us 1 + states 3 + counties 2 + countries (Peru, Europe) 2 + international 1 + world 1
	assert.Equal(t, 10, out.Len())
	assert.Equal(t, in.States.Len(), rowsWhere(out, ColGeographicLevel, string(LevelUSState)))
	assert.Equal(t, in.Counties.Len(), rowsWhere(out, ColGeographicLevel, string(LevelUSCounty)))
	assert.Equal(t, 4, rowsWhere(out, ColGeographicLevel, string(LevelCountry)))
	assert.Equal(t, 1, rowsWhere(out, ColGeographicLevel, string(LevelGlobal)))
}

func TestUnify_SliceOrder(t *testing.T) {
	out, err := Unify(unifyInput(t), testVersion)
	require.NoError(t, err)

	var order []string
	out.Each(func(r frame.Row) {
		tag := r.Get(ColGeographicLevel).String() + "/" + r.Get(ColCountryName).String()
		if len(order) == 0 || order[len(order)-1] != tag {
			order = append(order, tag)
		}
	})
	assert.Equal(t, []string{
		"Country/United States",
		"US State/United States",
		"US County/United States",
		"Country/Peru",
		"Country/Europe",
		"Country/International",
		"Global/",
	}, order)
}

func TestUnify_LevelIdentity(t *testing.T) {
	out, err := Unify(unifyInput(t), testVersion)
	require.NoError(t, err)

	out.Each(func(r frame.Row) {
		level := Level(r.Get(ColGeographicLevel).String())
		require.Contains(t, Levels, level)

		allowed := LevelIdentity(level)
		for _, col := range IdentityColumns() {
			if !slices.Contains(allowed, col) {
				assert.True(t, r.Get(col).IsNull(), "row %d (%s): %s should be null", r.Index(), level, col)
			}
		}
		assert.True(t, r.Get(ColAreaName).IsNull())
	})
}

func TestUnify_World(t *testing.T) {
	out, err := Unify(unifyInput(t), testVersion)
	require.NoError(t, err)

	require.Equal(t, 1, rowsWhere(out, ColGeographicLevel, string(LevelGlobal)))
	i := rowWhere(t, out, map[string]string{ColGeographicLevel: string(LevelGlobal)})

	assert.Equal(t, WorldISO3, out.At(i, ColCountryISO3).String())
	assert.Equal(t, "84000000", out.At(i, ColCases).String())
	assert.Equal(t, "7794798729", out.At(i, ColPopulation).String())
	for _, col := range []string{ColCountryName, ColCountryISO2, ColStateFIPS, ColStateName, ColCountyFIPS, ColCountyName} {
		assert.True(t, out.At(i, col).IsNull(), col)
	}
}

func TestUnify_International(t *testing.T) {
	out, err := Unify(unifyInput(t), testVersion)
	require.NoError(t, err)

	i := rowWhere(t, out, map[string]string{ColCountryName: InternationalName})
	assert.Equal(t, string(LevelCountry), out.At(i, ColGeographicLevel).String())
	assert.True(t, out.At(i, ColCountryISO2).IsNull())
	assert.True(t, out.At(i, ColCountryISO3).IsNull())
	assert.Equal(t, "721", out.At(i, ColCases).String())
}

func TestUnify_UnitedStates(t *testing.T) {
	out, err := Unify(unifyInput(t), testVersion)
	require.NoError(t, err)

	i := rowWhere(t, out, map[string]string{
		ColGeographicLevel: string(LevelCountry),
		ColCountryName:     UnitedStatesName,
	})
	assert.Equal(t, "US", out.At(i, ColCountryISO2).String())
	assert.Equal(t, "USA", out.At(i, ColCountryISO3).String())
	assert.Equal(t, "37.09024", out.At(i, ColLat).String())
	assert.Equal(t, "331002647", out.At(i, ColPopulation).String())
	assert.Equal(t, "tests performed", out.At(i, ColTestsUnits).String())

	assert.Equal(t, "20000000", out.At(i, ColCases).String(), "NYT cases replace OWID total_cases")
	assert.Equal(t, "351000", out.At(i, ColDeaths).String(), "deaths stay with OWID")
	assert.Equal(t, "241969816", out.At(i, ColTests).String(), "tracker tests replace OWID total_tests")
	assert.Equal(t, "23351", out.At(i, ColPatientsICU).String())
	assert.Equal(t, "125057", out.At(i, ColPatientsHosp).String())
	assert.Equal(t, "7904", out.At(i, ColPatientsVent).String())
	assert.Equal(t, "222305840", out.At(i, ColTestsNegative).String())
	assert.Equal(t, "19663976", out.At(i, ColTestsPositive).String())
	assert.True(t, out.At(i, ColRecovered).IsNull())
	assert.True(t, out.At(i, ColTestsPending).IsNull())
}

func TestUnify_USGrainsCarryCountryCodes(t *testing.T) {
	out, err := Unify(unifyInput(t), testVersion)
	require.NoError(t, err)

	cook := rowWhere(t, out, map[string]string{ColCountyName: "Cook"})
	assert.Equal(t, string(LevelUSCounty), out.At(cook, ColGeographicLevel).String())
	assert.Equal(t, UnitedStatesName, out.At(cook, ColCountryName).String())
	assert.Equal(t, "USA", out.At(cook, ColCountryISO3).String())
	assert.Equal(t, "17031", out.At(cook, ColCountyFIPS).String())
	assert.True(t, out.At(cook, ColTests).IsNull(), "county rows carry no test data")

	il := rowWhere(t, out, map[string]string{
		ColGeographicLevel: string(LevelUSState),
		ColStateName:       "Illinois",
	})
	assert.Equal(t, "US", out.At(il, ColCountryISO2).String())
	assert.Equal(t, "963389", out.At(il, ColCases).String())
}

func TestUnify_SingleStamp(t *testing.T) {
	out, err := Unify(unifyInput(t), testVersion)
	require.NoError(t, err)

	stamps, err := out.Column(ColVersionTimestamp)
	require.NoError(t, err)
	for _, v := range stamps {
		assert.Equal(t, testVersion, v.String())
	}
}

func TestUnify_IdempotentWithFixedStamp(t *testing.T) {
	render := func() []byte {
		out, err := Unify(unifyInput(t), testVersion)
		require.NoError(t, err)
		var buf bytes.Buffer
		require.NoError(t, out.WriteCSV(&buf))
		return buf.Bytes()
	}
	assert.Equal(t, render(), render())
}

func TestUnify_EmptyGrains(t *testing.T) {
	in := unifyInput(t)
	in.Counties = frame.MustNew(CountiesTable, CountyColumns...)
	in.Global = readCSV(t, "owid", "location,continent,date,total_cases,total_deaths,total_tests,tests_units,population\n")

	out, err := Unify(in, testVersion)
	require.NoError(t, err)
	assert.Equal(t, GlobalColumns, out.Columns(), "column set is fixed regardless of which levels are present")
	assert.Equal(t, in.States.Len(), out.Len())
}

func TestUnify_MissingExpectedColumnIsFatal(t *testing.T) {
	in := unifyInput(t)
	in.States = in.States.Drop(ColRecovered)

	_, err := Unify(in, testVersion)
	var mismatch *SchemaMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "states", mismatch.Table)
	assert.Equal(t, "conform", mismatch.Op)
	assert.Equal(t, []string{ColRecovered}, mismatch.Columns)
}

func TestUnify_GlobalSourceDrift(t *testing.T) {
	in := unifyInput(t)
	in.Global = in.Global.Drop("population")

	_, err := Unify(in, testVersion)
	var mismatch *SchemaMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, []string{"population"}, mismatch.Columns)
}
