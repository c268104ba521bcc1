package utils

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"mihac/internal/models"
)

// CSVParser errors
var (
	ErrEmptyCSV       = errors.New("CSV content is empty")
	ErrMissingColumns = errors.New("missing required columns")
	ErrNoDataRows     = errors.New("CSV file contains no data rows")
	ErrInvalidRowData = errors.New("invalid row data")
)

// RequiredColumns defines the columns that must be present in the CSV.
var RequiredColumns = models.ProfileFields

// annualIncomeColumns hold yearly income; values are divided by 12.
var annualIncomeColumns = map[string]bool{
	"annual_income": true,
	"annualincome":  true,
	"yearly_income": true,
	"ingreso_anual": true,
}

var twelve = decimal.NewFromInt(12)

// CSVParser handles parsing of applicant CSV files.
type CSVParser struct {
	columnMapping map[string]int
	annualIncome  bool
}

// NewCSVParser creates a new CSV parser instance.
func NewCSVParser() *CSVParser {
	return &CSVParser{
		columnMapping: make(map[string]int),
	}
}

// canonicalColumn resolves a header cell to a canonical field name.
func canonicalColumn(col string) (string, bool) {
	normalized := models.FoldKey(col)
	if annualIncomeColumns[normalized] {
		return models.FieldMonthlyIncome, true
	}
	if alias, ok := models.FieldAliases[normalized]; ok {
		return alias, false
	}
	return normalized, false
}

// ParseProfiles parses CSV content into raw profiles, one per data row, in
// file order. Cell values stay strings; the validator coerces them. Row-level
// read errors are returned alongside the rows that did parse.
func (p *CSVParser) ParseProfiles(content string) ([]models.RawProfile, []error) {
	if strings.TrimSpace(content) == "" {
		return nil, []error{ErrEmptyCSV}
	}

	reader := csv.NewReader(strings.NewReader(content))
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1 // Allow variable number of fields

	// Read header
	header, err := reader.Read()
	if err != nil {
		return nil, []error{fmt.Errorf("failed to read header: %w", err)}
	}

	if err := p.buildColumnMapping(header); err != nil {
		return nil, []error{err}
	}

	var profiles []models.RawProfile
	var parseErrors []error
	lineNum := 1 // Header is line 1

	for {
		lineNum++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			parseErrors = append(parseErrors, fmt.Errorf("line %d: %w", lineNum, err))
			continue
		}

		profile, err := p.parseRow(record)
		if err != nil {
			parseErrors = append(parseErrors, fmt.Errorf("line %d: %w", lineNum, err))
			continue
		}
		profiles = append(profiles, profile)
	}

	if len(profiles) == 0 && len(parseErrors) > 0 {
		return nil, append([]error{ErrNoDataRows}, parseErrors...)
	}

	return profiles, parseErrors
}

// buildColumnMapping creates a mapping of canonical column names to their indices.
func (p *CSVParser) buildColumnMapping(header []string) error {
	p.columnMapping = make(map[string]int)
	p.annualIncome = false

	for i, col := range header {
		name, annual := canonicalColumn(col)
		if _, dup := p.columnMapping[name]; dup {
			continue
		}
		p.columnMapping[name] = i
		if annual {
			p.annualIncome = true
		}
	}

	var missing []string
	for _, required := range RequiredColumns {
		if _, ok := p.columnMapping[required]; !ok {
			missing = append(missing, required)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	return nil
}

// parseRow maps a record onto canonical keys. Short rows leave the trailing
// fields out so the validator reports them as missing.
func (p *CSVParser) parseRow(record []string) (models.RawProfile, error) {
	if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
		return nil, fmt.Errorf("%w: empty row", ErrInvalidRowData)
	}

	profile := make(models.RawProfile, len(p.columnMapping))
	for name, idx := range p.columnMapping {
		if idx >= len(record) {
			continue
		}
		profile[name] = strings.TrimSpace(record[idx])
	}

	if p.annualIncome {
		if s, ok := profile[models.FieldMonthlyIncome].(string); ok && s != "" {
			annual, err := decimal.NewFromString(strings.NewReplacer(",", "", "$", "", "₹", "", "€", "").Replace(s))
			if err != nil {
				return nil, fmt.Errorf("%w: annual income %q", ErrInvalidRowData, s)
			}
			profile[models.FieldMonthlyIncome] = annual.Div(twelve).Round(2).String()
		}
	}

	return profile, nil
}

// ValidateCSVStructure performs a quick validation of CSV structure without full parsing.
func ValidateCSVStructure(content string) (*CSVValidationResult, error) {
	result := &CSVValidationResult{
		Valid:          false,
		RowCount:       0,
		Columns:        []string{},
		MissingColumns: []string{},
		Errors:         []string{},
	}

	if strings.TrimSpace(content) == "" {
		result.Errors = append(result.Errors, "empty file")
		return result, nil
	}

	reader := csv.NewReader(strings.NewReader(content))
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	// Read header
	header, err := reader.Read()
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("failed to read header: %v", err))
		return result, nil
	}

	normalizedColumns := make(map[string]bool)
	for _, col := range header {
		name, _ := canonicalColumn(col)
		normalizedColumns[name] = true
		result.Columns = append(result.Columns, col)
	}

	for _, required := range RequiredColumns {
		if !normalizedColumns[required] {
			result.MissingColumns = append(result.MissingColumns, required)
		}
	}

	// Count rows
	for {
		_, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("row error: %v", err))
			continue
		}
		result.RowCount++
	}

	result.Valid = len(result.MissingColumns) == 0 && result.RowCount > 0

	return result, nil
}

// PreflightCSV checks that content has a readable header with every required
// column before any row is evaluated. Rows are not inspected.
func PreflightCSV(content string) error {
	result, err := ValidateCSVStructure(content)
	if err != nil {
		return err
	}
	return result.Err()
}

// Err returns the structural problem that blocks evaluation, or nil. A file
// with a valid header and no rows is not an error.
func (r *CSVValidationResult) Err() error {
	if len(r.Columns) == 0 {
		if len(r.Errors) > 0 && r.Errors[0] != "empty file" {
			return fmt.Errorf("%w: %s", ErrInvalidRowData, r.Errors[0])
		}
		return ErrEmptyCSV
	}
	if len(r.MissingColumns) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(r.MissingColumns, ", "))
	}
	return nil
}

// CSVValidationResult contains the results of CSV validation.
type CSVValidationResult struct {
	Valid          bool     `json:"valid"`
	RowCount       int      `json:"row_count"`
	Columns        []string `json:"columns"`
	MissingColumns []string `json:"missing_columns"`
	Errors         []string `json:"errors"`
}
