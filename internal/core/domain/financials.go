package domain

import (
	"strconv"
	"strings"
)

// DefaultUnit is the unit assumed for parsed series.
const DefaultUnit = "USD"

// DataPoint is one (year, value) observation.
type DataPoint struct {
	Year  int     `json:"year"`
	Value float64 `json:"value"`
}

// FinancialSeries is one named time series, e.g. Revenue.
// Data keeps the order it was parsed in; it is never re-sorted.
type FinancialSeries struct {
	// Name is the normalised metric name.
	Name string `json:"name"`

	// Unit is the currency or unit of the values.
	Unit string `json:"unit"`

	// Data are the observations in source order.
	Data []DataPoint `json:"data"`

	// SheetName is the worksheet the series was read from.
	SheetName string `json:"sheet_name,omitempty"`

	// RangeName is the defined name the series was read from, if any.
	RangeName string `json:"range_name,omitempty"`
}

// Categories returns the years as strings, in the order given.
func (s FinancialSeries) Categories() []string {
	out := make([]string, len(s.Data))
	for i, p := range s.Data {
		out[i] = strconv.Itoa(p.Year)
	}
	return out
}

// Values returns the values in the order given.
func (s FinancialSeries) Values() []float64 {
	out := make([]float64, len(s.Data))
	for i, p := range s.Data {
		out[i] = p.Value
	}
	return out
}

// Deduplicated returns the series keeping the first observation per year.
func (s FinancialSeries) Deduplicated() FinancialSeries {
	seen := make(map[int]bool, len(s.Data))
	data := make([]DataPoint, 0, len(s.Data))
	for _, p := range s.Data {
		if seen[p.Year] {
			continue
		}
		seen[p.Year] = true
		data = append(data, p)
	}
	s.Data = data
	return s
}

// Latest returns the observation with the highest year.
func (s FinancialSeries) Latest() (DataPoint, bool) {
	if len(s.Data) == 0 {
		return DataPoint{}, false
	}
	latest := s.Data[0]
	for _, p := range s.Data[1:] {
		if p.Year > latest.Year {
			latest = p
		}
	}
	return latest, true
}

// FinancialsData is the collection of series for a job.
type FinancialsData struct {
	// Series are the parsed series in discovery order.
	Series []FinancialSeries `json:"series"`

	// CompanyName is set when the workbook names the company.
	CompanyName string `json:"company_name,omitempty"`

	// FiscalYearEnd is set when the workbook states it, e.g. "December 31".
	FiscalYearEnd string `json:"fiscal_year_end,omitempty"`
}

// Get returns the series whose name equals name, case-insensitively.
func (f FinancialsData) Get(name string) (FinancialSeries, bool) {
	for _, s := range f.Series {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return FinancialSeries{}, false
}

// Find returns the first series whose name contains name, case-insensitively.
func (f FinancialsData) Find(name string) (FinancialSeries, bool) {
	needle := strings.ToLower(name)
	for _, s := range f.Series {
		if strings.Contains(strings.ToLower(s.Name), needle) {
			return s, true
		}
	}
	return FinancialSeries{}, false
}

// LatestValue returns the most recent value of the named series.
func (f FinancialsData) LatestValue(name string) (float64, bool) {
	s, ok := f.Get(name)
	if !ok {
		return 0, false
	}
	p, ok := s.Latest()
	return p.Value, ok
}

// SeriesFromPairs builds a series from (year, value) pairs.
func SeriesFromPairs(name string, pairs [][2]float64) FinancialSeries {
	s := FinancialSeries{Name: name, Unit: DefaultUnit, Data: make([]DataPoint, 0, len(pairs))}
	for _, p := range pairs {
		s.Data = append(s.Data, DataPoint{Year: int(p[0]), Value: p[1]})
	}
	return s
}
