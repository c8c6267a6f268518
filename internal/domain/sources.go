package domain

import (
	"fmt"
	"slices"

	"github.com/couchcryptid/covid-data-etl/internal/frame"
)

// SourceID names one upstream dataset.
type SourceID string

const (
	SourceNYTUS       SourceID = "nyt_us"
	SourceNYTStates   SourceID = "nyt_states"
	SourceNYTCounties SourceID = "nyt_counties"
	SourceOWID        SourceID = "owid"
	SourceCTPUS       SourceID = "ctp_us"
	SourceCTPStates   SourceID = "ctp_states"
)

// AllSources lists every source a run needs, in fetch order.
var AllSources = []SourceID{
	SourceNYTUS, SourceNYTStates, SourceNYTCounties,
	SourceOWID, SourceCTPUS, SourceCTPStates,
}

var testingColumns = []string{
	"date", "negative", "positive", "totalTestResults",
	"hospitalizedCurrently", "inIcuCurrently", "onVentilatorCurrently", "recovered",
}

var sourceContracts = map[SourceID][]string{
	SourceNYTUS:       {"date", "cases", "deaths"},
	SourceNYTStates:   {"date", "state", "cases", "deaths"},
	SourceNYTCounties: {"date", "county", "state", "fips", "cases", "deaths"},
	SourceOWID: {
		"location", "continent", "date", "total_cases", "total_deaths",
		"total_tests", "tests_units", "population",
	},
	SourceCTPUS:     testingColumns,
	SourceCTPStates: append(slices.Clone(testingColumns), "state", "pending"),
}

// SourceContract returns the header columns source id must provide.
func SourceContract(id SourceID) []string {
	return slices.Clone(sourceContracts[id])
}

// CheckContract verifies that f carries every column its source declares.
func CheckContract(id SourceID, f *frame.Frame) error {
	contract, ok := sourceContracts[id]
	if !ok {
		return fmt.Errorf("unknown source %q", id)
	}
	return f.Require("load", contract...)
}

// Sources holds one raw frame per upstream dataset.
type Sources struct {
	NYTUS       *frame.Frame
	NYTStates   *frame.Frame
	NYTCounties *frame.Frame
	OWID        *frame.Frame
	CTPUS       *frame.Frame
	CTPStates   *frame.Frame
}

func (s *Sources) slot(id SourceID) **frame.Frame {
	switch id {
	case SourceNYTUS:
		return &s.NYTUS
	case SourceNYTStates:
		return &s.NYTStates
	case SourceNYTCounties:
		return &s.NYTCounties
	case SourceOWID:
		return &s.OWID
	case SourceCTPUS:
		return &s.CTPUS
	case SourceCTPStates:
		return &s.CTPStates
	default:
		return nil
	}
}

// Get returns the frame loaded for id, or nil.
func (s *Sources) Get(id SourceID) *frame.Frame {
	if p := s.slot(id); p != nil {
		return *p
	}
	return nil
}

// Set stores f as the frame for id.
func (s *Sources) Set(id SourceID, f *frame.Frame) error {
	p := s.slot(id)
	if p == nil {
		return fmt.Errorf("unknown source %q", id)
	}
	*p = f
	return nil
}

// Validate checks that every source is present and satisfies its contract.
func (s *Sources) Validate() error {
	for _, id := range AllSources {
		f := s.Get(id)
		if f == nil {
			return fmt.Errorf("source %s is required", id)
		}
		if err := CheckContract(id, f); err != nil {
			return err
		}
	}
	return nil
}
