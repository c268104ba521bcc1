package rules

import (
	"fmt"
	"math"

	"mihac/internal/models"
)

// Derived fact names available to predicates in addition to the profile fields.
const (
	FactDTI    = "dti"
	FactRawSum = "raw_sum"
)

var numericFacts = map[string]bool{
	models.FieldAge:                   true,
	models.FieldMonthlyIncome:         true,
	models.FieldCurrentTotalDebt:      true,
	models.FieldEmploymentTenureYears: true,
	models.FieldDependents:            true,
	models.FieldRequestedAmount:       true,
	FactDTI:                           true,
	FactRawSum:                        true,
}

var textFacts = map[string]func(string) (string, bool){
	models.FieldCreditHistory: func(s string) (string, bool) {
		v := models.NormalizeCreditHistory(s)
		return string(v), v.IsValid()
	},
	models.FieldHousingType: func(s string) (string, bool) {
		v := models.NormalizeHousingType(s)
		return string(v), v.IsValid()
	},
	models.FieldCreditPurpose: func(s string) (string, bool) {
		v := models.NormalizeCreditPurpose(s)
		return string(v), v.IsValid()
	},
}

// Facts are the values a predicate can read.
type Facts struct {
	numbers map[string]float64
	texts   map[string]string
}

// NewFacts builds the fact set for a validated profile.
func NewFacts(p *models.ApplicantProfile, dti, rawSum float64) Facts {
	return Facts{
		numbers: map[string]float64{
			models.FieldAge:                   float64(p.Age),
			models.FieldMonthlyIncome:         p.MonthlyIncome.InexactFloat64(),
			models.FieldCurrentTotalDebt:      p.CurrentTotalDebt.InexactFloat64(),
			models.FieldEmploymentTenureYears: float64(p.EmploymentTenureYears),
			models.FieldDependents:            float64(p.Dependents),
			models.FieldRequestedAmount:       p.RequestedAmount.InexactFloat64(),
			FactDTI:                           dti,
			FactRawSum:                        rawSum,
		},
		texts: map[string]string{
			models.FieldCreditHistory: string(p.CreditHistory),
			models.FieldHousingType:   string(p.HousingType),
			models.FieldCreditPurpose: string(p.CreditPurpose),
		},
	}
}

type condition struct {
	field  string
	op     Operator
	text   bool
	str    string
	num    float64
	ref    string
	factor float64
}

// Matches reports whether every condition of the rule holds.
func (r *Rule) Matches(f Facts) bool {
	for _, c := range r.conditions {
		if !c.eval(f) {
			return false
		}
	}
	return len(r.conditions) > 0
}

func (c condition) eval(f Facts) bool {
	if c.text {
		v, ok := f.texts[c.field]
		if !ok {
			return false
		}
		if c.op == OpEq {
			return v == c.str
		}
		return v != c.str
	}

	left, ok := f.numbers[c.field]
	if !ok {
		return false
	}
	right := c.num
	if c.ref != "" {
		ref, ok := f.numbers[c.ref]
		if !ok {
			return false
		}
		right = ref * c.factor
	}

	switch c.op {
	case OpEq:
		return left == right
	case OpNeq:
		return left != right
	case OpGt:
		return left > right
	case OpGte:
		return left >= right
	case OpLt:
		return left < right
	case OpLte:
		return left <= right
	}
	return false
}

// compile checks a rule's conditions and prepares them for evaluation.
func (r *Rule) compile() error {
	if len(r.When.All) == 0 {
		return fmt.Errorf("%w: rule %s has no conditions", ErrInvalidRule, r.ID)
	}

	compiled := make([]condition, 0, len(r.When.All))
	for i, c := range r.When.All {
		cc, err := compileCondition(c)
		if err != nil {
			return fmt.Errorf("rule %s condition %d: %w", r.ID, i+1, err)
		}
		compiled = append(compiled, cc)
	}
	r.conditions = compiled
	return nil
}

func compileCondition(c Condition) (condition, error) {
	switch c.Op {
	case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte:
	default:
		return condition{}, fmt.Errorf("%w: %q", ErrUnknownOperator, c.Op)
	}

	if normalize, ok := textFacts[c.Field]; ok {
		if c.Op != OpEq && c.Op != OpNeq {
			return condition{}, fmt.Errorf("%w: %q on text field %s", ErrUnknownOperator, c.Op, c.Field)
		}
		if c.RefField != "" {
			return condition{}, fmt.Errorf("%w: ref_field on text field %s", ErrInvalidRule, c.Field)
		}
		raw, ok := c.Value.(string)
		if !ok {
			return condition{}, fmt.Errorf("%w: %s needs a text value", ErrInvalidRule, c.Field)
		}
		value, valid := normalize(raw)
		if !valid {
			return condition{}, fmt.Errorf("%w: %q is not a valid %s", ErrInvalidRule, raw, c.Field)
		}
		return condition{field: c.Field, op: c.Op, text: true, str: value}, nil
	}

	if !numericFacts[c.Field] {
		return condition{}, fmt.Errorf("%w: %q", ErrUnknownField, c.Field)
	}

	cc := condition{field: c.Field, op: c.Op}
	if c.RefField != "" {
		if !numericFacts[c.RefField] {
			return condition{}, fmt.Errorf("%w: ref_field %q", ErrUnknownField, c.RefField)
		}
		if c.Value != nil {
			return condition{}, fmt.Errorf("%w: both value and ref_field set", ErrInvalidRule)
		}
		cc.ref = c.RefField
		cc.factor = c.Factor
		if cc.factor == 0 {
			cc.factor = 1
		}
		return cc, nil
	}

	switch v := c.Value.(type) {
	case int:
		cc.num = float64(v)
	case int64:
		cc.num = float64(v)
	case uint64:
		cc.num = float64(v)
	case float64:
		cc.num = v
	default:
		return condition{}, fmt.Errorf("%w: %s needs a numeric value, got %T", ErrInvalidRule, c.Field, c.Value)
	}
	if math.IsNaN(cc.num) || math.IsInf(cc.num, 0) {
		return condition{}, fmt.Errorf("%w: %s value is not finite", ErrInvalidRule, c.Field)
	}
	return cc, nil
}
