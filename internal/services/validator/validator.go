package validator

import (
	"fmt"

	"github.com/shopspring/decimal"

	"mihac/internal/models"
)

// Field ranges and coherence limits.
const (
	MinAge         = 18
	MaxAge         = 99
	MaxTenureYears = 40
	MaxDependents  = 10

	// MinWorkingAge bounds tenure: nobody has worked longer than age - 15 years.
	MinWorkingAge = 15
	// DebtIncomeMonths is how many months of income debt may reach before a warning.
	DebtIncomeMonths = 12
	// AmountIncomeMonths is how many months of income the requested amount may reach before a warning.
	AmountIncomeMonths = 18
)

var (
	minAmount = decimal.NewFromInt(500)
	maxAmount = decimal.NewFromInt(50000)

	// Money bounds keep DTI and income coverage finite.
	minIncome = decimal.New(1, -2)
	maxMoney  = decimal.NewFromInt(1_000_000_000)
)

// Options tune validation.
type Options struct {
	// TreatWarningsAsErrors makes warning-level findings block the evaluation.
	TreatWarningsAsErrors bool
}

// Validator checks sanitized profiles. It is stateless and safe for concurrent use.
type Validator struct {
	opts Options
}

// New creates a new validator.
func New(opts Options) *Validator {
	return &Validator{opts: opts}
}

// Check sanitizes and validates raw input. The profile is non-nil iff the
// outcome is valid.
func (v *Validator) Check(raw models.RawProfile) (*models.ApplicantProfile, *CleanInput, models.ValidationOutcome) {
	in := Sanitize(raw)
	outcome := v.Validate(in)
	if !outcome.Valid {
		return nil, in, outcome
	}

	return &models.ApplicantProfile{
		Age:                   *in.Age,
		MonthlyIncome:         *in.MonthlyIncome,
		CurrentTotalDebt:      *in.CurrentTotalDebt,
		CreditHistory:         *in.CreditHistory,
		EmploymentTenureYears: *in.EmploymentTenureYears,
		Dependents:            *in.Dependents,
		HousingType:           *in.HousingType,
		CreditPurpose:         *in.CreditPurpose,
		RequestedAmount:       *in.RequestedAmount,
	}, in, outcome
}

// collector accumulates findings in the order they are found.
type collector struct {
	errors   []models.FieldError
	warnings []models.FieldError
}

func (c *collector) fail(field, format string, args ...any) {
	c.errors = append(c.errors, models.FieldError{
		Field:    field,
		Message:  fmt.Sprintf(format, args...),
		Severity: models.SeverityError,
	})
}

func (c *collector) warn(field, format string, args ...any) {
	c.warnings = append(c.warnings, models.FieldError{
		Field:    field,
		Message:  fmt.Sprintf(format, args...),
		Severity: models.SeverityWarning,
	})
}

// Validate runs field and cross-field checks. Every problem is collected; a
// field that is missing or unparsable only suppresses checks that need it.
func (v *Validator) Validate(in *CleanInput) models.ValidationOutcome {
	c := &collector{}

	for _, field := range models.ProfileFields {
		switch {
		case in.Missing(field):
			c.fail(field, "is required")
		case in.Unparsable(field):
			c.fail(field, "must be %s, got %q", expectedKind(field), in.unparsable[field])
		}
	}

	checkIntRange(c, models.FieldAge, in.Age, MinAge, MaxAge)
	if income := in.MonthlyIncome; income != nil {
		switch {
		case !income.IsPositive():
			c.fail(models.FieldMonthlyIncome, "must be greater than 0")
		case income.LessThan(minIncome):
			c.fail(models.FieldMonthlyIncome, "must be at least %s", minIncome)
		case income.GreaterThan(maxMoney):
			c.fail(models.FieldMonthlyIncome, "must not exceed %s", maxMoney)
		}
	}
	if debt := in.CurrentTotalDebt; debt != nil {
		switch {
		case debt.IsNegative():
			c.fail(models.FieldCurrentTotalDebt, "cannot be negative")
		case debt.GreaterThan(maxMoney):
			c.fail(models.FieldCurrentTotalDebt, "must not exceed %s", maxMoney)
		}
	}
	if in.CreditHistory != nil && !in.CreditHistory.IsValid() {
		c.fail(models.FieldCreditHistory, "must be one of bad, neutral, good (got %q)", *in.CreditHistory)
	}
	checkIntRange(c, models.FieldEmploymentTenureYears, in.EmploymentTenureYears, 0, MaxTenureYears)
	checkIntRange(c, models.FieldDependents, in.Dependents, 0, MaxDependents)
	if in.HousingType != nil && !in.HousingType.IsValid() {
		c.fail(models.FieldHousingType, "must be one of owned, rented, other (got %q)", *in.HousingType)
	}
	if in.CreditPurpose != nil && !in.CreditPurpose.IsValid() {
		c.fail(models.FieldCreditPurpose,
			"must be one of business, education, consumption, emergency, vacation (got %q)", *in.CreditPurpose)
	}
	if in.RequestedAmount != nil &&
		(in.RequestedAmount.LessThan(minAmount) || in.RequestedAmount.GreaterThan(maxAmount)) {
		c.fail(models.FieldRequestedAmount, "must be between %s and %s", minAmount, maxAmount)
	}

	checkCoherence(c, in)

	outcome := models.ValidationOutcome{
		Errors:   c.errors,
		Warnings: c.warnings,
	}
	if v.opts.TreatWarningsAsErrors && len(outcome.Warnings) > 0 {
		outcome.Errors = append(outcome.Errors, outcome.Warnings...)
		outcome.Warnings = nil
	}
	outcome.Valid = len(outcome.Errors) == 0
	return outcome
}

// checkCoherence runs the business-logic checks on fields that parsed.
func checkCoherence(c *collector, in *CleanInput) {
	if in.Age != nil && in.EmploymentTenureYears != nil {
		if limit := *in.Age - MinWorkingAge; *in.EmploymentTenureYears > limit {
			c.fail(models.FieldEmploymentTenureYears,
				"%d years of tenure is not possible at age %d (max %d)", *in.EmploymentTenureYears, *in.Age, limit)
		}
	}

	if in.MonthlyIncome == nil || !in.MonthlyIncome.IsPositive() {
		return
	}
	if in.CurrentTotalDebt != nil {
		limit := in.MonthlyIncome.Mul(decimal.NewFromInt(DebtIncomeMonths))
		if in.CurrentTotalDebt.GreaterThan(limit) {
			c.warn(models.FieldCurrentTotalDebt,
				"debt exceeds %d months of income (%s > %s)", DebtIncomeMonths, in.CurrentTotalDebt, limit)
		}
	}
	if in.RequestedAmount != nil {
		limit := in.MonthlyIncome.Mul(decimal.NewFromInt(AmountIncomeMonths))
		if in.RequestedAmount.GreaterThan(limit) {
			c.warn(models.FieldRequestedAmount,
				"requested amount exceeds %d months of income (%s > %s)", AmountIncomeMonths, in.RequestedAmount, limit)
		}
	}
}

func checkIntRange(c *collector, field string, v *int, lo, hi int) {
	if v != nil && (*v < lo || *v > hi) {
		c.fail(field, "must be between %d and %d (got %d)", lo, hi, *v)
	}
}

func expectedKind(field string) string {
	switch field {
	case models.FieldAge, models.FieldEmploymentTenureYears, models.FieldDependents:
		return "a whole number"
	case models.FieldMonthlyIncome, models.FieldCurrentTotalDebt, models.FieldRequestedAmount:
		return "a number"
	default:
		return "text"
	}
}
