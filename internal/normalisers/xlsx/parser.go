// Package xlsx reads financial series out of Excel workbooks.
//
// Three layouts are recognised on each sheet: metric names in the header
// row with years down the first column, years across the header row with
// metric names down the first column, and defined names whose first column
// holds years and second column holds values.
package xlsx

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/custodia-labs/imdeck/internal/core/domain"
	"github.com/custodia-labs/imdeck/internal/core/ports/driven"
	"github.com/custodia-labs/imdeck/internal/logger"
)

// Ensure Parser implements the interface.
var _ driven.FinancialsParser = (*Parser)(nil)

// PreferredSheets are searched first. All sheets are searched only when
// none of these yields a series.
var PreferredSheets = []string{"Financials", "Data", "Revenue", "Financial Data", "Sheet1"}

// metricNames maps keywords to normalised metric names. Order matters:
// the first keyword contained in a label wins.
var metricNames = []struct {
	keyword string
	name    string
}{
	{"revenue", "Revenue"},
	{"sales", "Revenue"},
	{"ebitda", "EBITDA"},
	{"ebit", "EBIT"},
	{"net income", "Net Income"},
	{"profit", "Net Income"},
	{"cash flow", "Cash Flow"},
	{"assets", "Total Assets"},
	{"liabilities", "Total Liabilities"},
	{"equity", "Total Equity"},
	{"debt", "Total Debt"},
	{"capex", "Capital Expenditure"},
	{"opex", "Operating Expenses"},
	{"gross margin", "Gross Margin"},
	{"operating margin", "Operating Margin"},
}

var yearPattern = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// Parser extracts financial series from .xlsx workbooks.
type Parser struct{}

// New creates a financials parser.
func New() *Parser {
	return &Parser{}
}

// ParseFinancials returns every series found in the workbook.
func (p *Parser) ParseFinancials(ctx context.Context, data []byte) (*domain.FinancialsData, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: open workbook: %v", domain.ErrInvalidInput, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	present := make(map[string]bool, len(sheets))
	for _, s := range sheets {
		present[s] = true
	}

	var series []domain.FinancialSeries
	for _, name := range PreferredSheets {
		if present[name] {
			series = append(series, p.fromSheet(f, name)...)
		}
	}
	if len(series) == 0 {
		for _, name := range sheets {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			series = append(series, p.fromSheet(f, name)...)
		}
	}
	series = append(series, p.fromDefinedNames(f, present)...)

	logger.Debug("Workbook gave %d financial series", len(series))
	return &domain.FinancialsData{Series: series}, nil
}

// fromSheet reads the header-column and year-row layouts of one sheet.
func (p *Parser) fromSheet(f *excelize.File, name string) []domain.FinancialSeries {
	s, err := loadSheet(f, name)
	if err != nil {
		logger.Warn("Sheet %s skipped: %v", name, err)
		return nil
	}
	out := s.byHeaderColumns()
	return append(out, s.byYearRow()...)
}

// fromDefinedNames reads ranges whose first column holds years and second
// column holds values.
func (p *Parser) fromDefinedNames(f *excelize.File, present map[string]bool) []domain.FinancialSeries {
	var out []domain.FinancialSeries
	for _, dn := range f.GetDefinedName() {
		sheetName, c1, r1, _, r2, ok := parseRange(dn.RefersTo)
		if !ok || !present[sheetName] {
			continue
		}
		s, err := loadSheet(f, sheetName)
		if err != nil {
			continue
		}
		var data []domain.DataPoint
		for row := r1; row <= r2; row++ {
			year, ok := s.year(row, c1)
			if !ok {
				continue
			}
			if v, ok := s.number(row, c1+1); ok {
				data = append(data, domain.DataPoint{Year: year, Value: v})
			}
		}
		if len(data) == 0 {
			continue
		}
		out = append(out, domain.FinancialSeries{
			Name:      NormalizeMetricName(dn.Name),
			Unit:      domain.DefaultUnit,
			Data:      data,
			SheetName: sheetName,
			RangeName: dn.Name,
		})
	}
	return out
}

// sheet holds the raw and displayed cell values of a worksheet. Rows and
// columns are 1-based as in Excel.
type sheet struct {
	f         *excelize.File
	name      string
	raw       [][]string
	formatted [][]string
}

func loadSheet(f *excelize.File, name string) (*sheet, error) {
	raw, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}
	formatted, err := f.GetRows(name)
	if err != nil {
		return nil, err
	}
	return &sheet{f: f, name: name, raw: raw, formatted: formatted}, nil
}

func cell(rows [][]string, row, col int) string {
	if row < 1 || row > len(rows) || col < 1 || col > len(rows[row-1]) {
		return ""
	}
	return strings.TrimSpace(rows[row-1][col-1])
}

func (s *sheet) maxRow() int { return len(s.raw) }

func (s *sheet) maxCol() int {
	n := 0
	for _, r := range s.raw {
		if len(r) > n {
			n = len(r)
		}
	}
	return n
}

// year reads a year from a number, a date cell or a string containing one.
func (s *sheet) year(row, col int) (int, bool) {
	raw := cell(s.raw, row, col)
	if raw == "" {
		return 0, false
	}
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		if y := int(v); y >= 1900 && y <= 2100 {
			return y, true
		}
		if s.isDate(row, col) {
			if t, err := excelize.ExcelDateToTime(v, false); err == nil {
				return t.Year(), true
			}
		}
	}
	if m := yearPattern.FindString(cell(s.formatted, row, col)); m != "" {
		y, _ := strconv.Atoi(m)
		return y, true
	}
	return 0, false
}

// isDate reports whether the cell carries a date number format.
func (s *sheet) isDate(row, col int) bool {
	axis, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return false
	}
	id, err := s.f.GetCellStyle(s.name, axis)
	if err != nil || id == 0 {
		return false
	}
	style, err := s.f.GetStyle(id)
	if err != nil {
		return false
	}
	if style.CustomNumFmt != nil {
		return strings.ContainsAny(strings.ToLower(*style.CustomNumFmt), "yd")
	}
	n := style.NumFmt
	return (n >= 14 && n <= 22) || (n >= 27 && n <= 36) || (n >= 45 && n <= 47) || (n >= 50 && n <= 58)
}

// number reads a numeric cell. Thousands separators are ignored.
func (s *sheet) number(row, col int) (float64, bool) {
	raw := strings.ReplaceAll(cell(s.raw, row, col), ",", "")
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	return v, err == nil
}

// byHeaderColumns reads metrics named in row 1 with years in column 1.
func (s *sheet) byHeaderColumns() []domain.FinancialSeries {
	var out []domain.FinancialSeries
	for col := 1; col <= s.maxCol(); col++ {
		header := strings.ToLower(cell(s.formatted, 1, col))
		if !IsFinancialMetric(header) {
			continue
		}
		var data []domain.DataPoint
		for row := 2; row <= s.maxRow(); row++ {
			year, ok := s.year(row, 1)
			if !ok {
				continue
			}
			if v, ok := s.number(row, col); ok {
				data = append(data, domain.DataPoint{Year: year, Value: v})
			}
		}
		if len(data) > 0 {
			out = append(out, s.series(header, data))
		}
	}
	return out
}

// byYearRow reads years across row 1 with metrics named in column 1.
func (s *sheet) byYearRow() []domain.FinancialSeries {
	years := map[int]int{}
	var cols []int
	for col := 2; col <= s.maxCol(); col++ {
		if y, ok := s.year(1, col); ok {
			years[col] = y
			cols = append(cols, col)
		}
	}
	if len(cols) == 0 {
		return nil
	}

	var out []domain.FinancialSeries
	for row := 2; row <= s.maxRow(); row++ {
		label := cell(s.formatted, row, 1)
		if !IsFinancialMetric(strings.ToLower(label)) {
			continue
		}
		var data []domain.DataPoint
		for _, col := range cols {
			if v, ok := s.number(row, col); ok {
				data = append(data, domain.DataPoint{Year: years[col], Value: v})
			}
		}
		if len(data) > 0 {
			out = append(out, s.series(label, data))
		}
	}
	return out
}

func (s *sheet) series(label string, data []domain.DataPoint) domain.FinancialSeries {
	return domain.FinancialSeries{
		Name:      NormalizeMetricName(label),
		Unit:      domain.DefaultUnit,
		Data:      data,
		SheetName: s.name,
	}
}

// IsFinancialMetric reports whether a lower-case label names a known metric.
func IsFinancialMetric(label string) bool {
	for _, m := range metricNames {
		if strings.Contains(label, m.keyword) {
			return true
		}
	}
	return false
}

// NormalizeMetricName maps a label to its standard metric name, or title
// cases it when no keyword matches.
func NormalizeMetricName(label string) string {
	lower := strings.ToLower(label)
	for _, m := range metricNames {
		if strings.Contains(lower, m.keyword) {
			return m.name
		}
	}
	words := strings.Fields(lower)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// parseRange splits a defined name reference such as 'My Sheet'!$A$2:$B$9.
func parseRange(ref string) (sheetName string, col1, row1, col2, row2 int, ok bool) {
	ref = strings.TrimPrefix(ref, "=")
	i := strings.LastIndex(ref, "!")
	if i < 0 {
		return "", 0, 0, 0, 0, false
	}
	sheetName = strings.Trim(ref[:i], "'")
	cells := strings.ReplaceAll(ref[i+1:], "$", "")
	from, to, found := strings.Cut(cells, ":")
	if !found {
		to = from
	}
	var err error
	if col1, row1, err = excelize.CellNameToCoordinates(from); err != nil {
		return "", 0, 0, 0, 0, false
	}
	if col2, row2, err = excelize.CellNameToCoordinates(to); err != nil {
		return "", 0, 0, 0, 0, false
	}
	return sheetName, col1, row1, col2, row2, true
}
