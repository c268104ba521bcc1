// Package validator sanitizes raw applicant profiles and checks them against
// field and cross-field constraints.
package validator

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"mihac/internal/models"
)

// CleanInput is a normalized candidate profile. Fields are nil when they were
// missing or could not be parsed; Validate reports which.
type CleanInput struct {
	Age                   *int
	MonthlyIncome         *decimal.Decimal
	CurrentTotalDebt      *decimal.Decimal
	CreditHistory         *models.CreditHistory
	EmploymentTenureYears *int
	Dependents            *int
	HousingType           *models.HousingType
	CreditPurpose         *models.CreditPurpose
	RequestedAmount       *decimal.Decimal

	ApplicantID string

	missing    map[string]bool
	unparsable map[string]string
}

// Missing reports whether a required field was absent.
func (c *CleanInput) Missing(field string) bool {
	return c.missing[field]
}

// Unparsable reports whether a field was present but could not be coerced.
func (c *CleanInput) Unparsable(field string) bool {
	_, ok := c.unparsable[field]
	return ok
}

// Sanitize resolves keys, coerces values and clamps obvious noise. It never
// fails and never modifies raw.
func Sanitize(raw models.RawProfile) *CleanInput {
	in := &CleanInput{
		missing:    make(map[string]bool),
		unparsable: make(map[string]string),
	}

	values := resolveKeys(raw)

	if v, ok := values[models.FieldApplicantID]; ok && v != nil {
		in.ApplicantID = strings.TrimSpace(fmt.Sprint(v))
	}

	in.Age = in.intField(values, models.FieldAge)
	in.MonthlyIncome = in.decimalField(values, models.FieldMonthlyIncome)
	in.CurrentTotalDebt = in.decimalField(values, models.FieldCurrentTotalDebt)
	in.EmploymentTenureYears = in.intField(values, models.FieldEmploymentTenureYears)
	in.Dependents = in.intField(values, models.FieldDependents)
	in.RequestedAmount = in.decimalField(values, models.FieldRequestedAmount)

	if s, ok := in.textField(values, models.FieldCreditHistory); ok {
		h := models.NormalizeCreditHistory(s)
		in.CreditHistory = &h
	}
	if s, ok := in.textField(values, models.FieldHousingType); ok {
		h := models.NormalizeHousingType(s)
		in.HousingType = &h
	}
	if s, ok := in.textField(values, models.FieldCreditPurpose); ok {
		p := models.NormalizeCreditPurpose(s)
		in.CreditPurpose = &p
	}

	// Negative counts are input noise, not a reason to reject.
	if in.Dependents != nil && *in.Dependents < 0 {
		zero := 0
		in.Dependents = &zero
	}
	if in.EmploymentTenureYears != nil && *in.EmploymentTenureYears < 0 {
		zero := 0
		in.EmploymentTenureYears = &zero
	}

	return in
}

// resolveKeys maps raw keys to canonical field names. An exact canonical key
// wins over an alias; among aliases the first in sorted key order wins.
func resolveKeys(raw models.RawProfile) map[string]any {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := make(map[string]any, len(models.ProfileFields)+1)
	exact := make(map[string]bool)
	for _, k := range keys {
		folded := models.FoldKey(k)
		canonical, isAlias := models.FieldAliases[folded]
		if !isAlias {
			canonical = folded
		}
		isExact := !isAlias

		if _, seen := values[canonical]; seen && (exact[canonical] || !isExact) {
			continue
		}
		values[canonical] = raw[k]
		exact[canonical] = isExact
	}
	return values
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

func (c *CleanInput) lookup(values map[string]any, field string) (any, bool) {
	v, ok := values[field]
	if !ok || isBlank(v) {
		c.missing[field] = true
		return nil, false
	}
	return v, true
}

func (c *CleanInput) intField(values map[string]any, field string) *int {
	v, ok := c.lookup(values, field)
	if !ok {
		return nil
	}
	n, err := coerceInt(v)
	if err != nil {
		c.unparsable[field] = fmt.Sprint(v)
		return nil
	}
	return &n
}

func (c *CleanInput) decimalField(values map[string]any, field string) *decimal.Decimal {
	v, ok := c.lookup(values, field)
	if !ok {
		return nil
	}
	d, err := coerceDecimal(v)
	if err != nil {
		c.unparsable[field] = fmt.Sprint(v)
		return nil
	}
	return &d
}

func (c *CleanInput) textField(values map[string]any, field string) (string, bool) {
	v, ok := c.lookup(values, field)
	if !ok {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number, int, int64, float64:
		// credit history is sometimes encoded 0/1/2
		return numericText(t)
	default:
		c.unparsable[field] = fmt.Sprint(v)
		return "", false
	}
}

// numericText renders a numeric enum code so 2, 2.0 and json.Number("2.0")
// all read as "2".
func numericText(v any) (string, bool) {
	d, err := coerceDecimal(v)
	if err != nil {
		return fmt.Sprint(v), true
	}
	if d.Equal(d.Truncate(0)) {
		return d.Truncate(0).String(), true
	}
	return d.String(), true
}

// cleanNumber strips currency symbols, thousands separators and spaces.
func cleanNumber(s string) string {
	s = strings.TrimSpace(s)
	for _, sym := range []string{"$", "€", "₹", ",", " ", "_"} {
		s = strings.ReplaceAll(s, sym, "")
	}
	return s
}

func coerceDecimal(v any) (decimal.Decimal, error) {
	switch t := v.(type) {
	case decimal.Decimal:
		return t, nil
	case int:
		return decimal.NewFromInt(int64(t)), nil
	case int64:
		return decimal.NewFromInt(t), nil
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return decimal.Zero, fmt.Errorf("not a finite number")
		}
		return decimal.NewFromFloat(t), nil
	case json.Number:
		return decimal.NewFromString(t.String())
	case string:
		return decimal.NewFromString(cleanNumber(t))
	default:
		return decimal.Zero, fmt.Errorf("unsupported type %T", v)
	}
}

func coerceInt(v any) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case string:
		s := cleanNumber(t)
		if n, err := strconv.Atoi(s); err == nil {
			return n, nil
		}
		// "7.0" is an integer, "7.5" is not
		d, err := decimal.NewFromString(s)
		if err != nil {
			return 0, err
		}
		return integral(d)
	default:
		d, err := coerceDecimal(v)
		if err != nil {
			return 0, err
		}
		return integral(d)
	}
}

func integral(d decimal.Decimal) (int, error) {
	if !d.Equal(d.Truncate(0)) {
		return 0, fmt.Errorf("%s is not a whole number", d)
	}
	if d.Abs().GreaterThan(decimal.NewFromInt(math.MaxInt32)) {
		return 0, fmt.Errorf("%s is out of range", d)
	}
	return int(d.IntPart()), nil
}
