// Package models defines the data structures for the credit inference engine.
package models

import (
	"github.com/shopspring/decimal"
)

// CreditHistory represents the applicant's repayment track record.
type CreditHistory string

const (
	CreditHistoryBad     CreditHistory = "bad"
	CreditHistoryNeutral CreditHistory = "neutral"
	CreditHistoryGood    CreditHistory = "good"
)

// IsValid checks if the credit history is one of the known values.
func (c CreditHistory) IsValid() bool {
	switch c {
	case CreditHistoryBad, CreditHistoryNeutral, CreditHistoryGood:
		return true
	}
	return false
}

// HousingType represents the applicant's housing situation.
type HousingType string

const (
	HousingOwned  HousingType = "owned"
	HousingRented HousingType = "rented"
	HousingOther  HousingType = "other"
)

// IsValid checks if the housing type is one of the known values.
func (h HousingType) IsValid() bool {
	switch h {
	case HousingOwned, HousingRented, HousingOther:
		return true
	}
	return false
}

// CreditPurpose represents what the requested money is for.
type CreditPurpose string

const (
	PurposeBusiness    CreditPurpose = "business"
	PurposeEducation   CreditPurpose = "education"
	PurposeConsumption CreditPurpose = "consumption"
	PurposeEmergency   CreditPurpose = "emergency"
	PurposeVacation    CreditPurpose = "vacation"
)

// ValidCreditPurposes returns all valid credit purpose values.
func ValidCreditPurposes() []CreditPurpose {
	return []CreditPurpose{
		PurposeBusiness,
		PurposeEducation,
		PurposeConsumption,
		PurposeEmergency,
		PurposeVacation,
	}
}

// IsValid checks if the credit purpose is valid.
func (p CreditPurpose) IsValid() bool {
	for _, valid := range ValidCreditPurposes() {
		if p == valid {
			return true
		}
	}
	return false
}

// Canonical profile field names.
const (
	FieldAge                   = "age"
	FieldMonthlyIncome         = "monthly_income"
	FieldCurrentTotalDebt      = "current_total_debt"
	FieldCreditHistory         = "credit_history"
	FieldEmploymentTenureYears = "employment_tenure_years"
	FieldDependents            = "dependents"
	FieldHousingType           = "housing_type"
	FieldCreditPurpose         = "credit_purpose"
	FieldRequestedAmount       = "requested_amount"

	// FieldApplicantID is an optional reference key, not part of the scored profile.
	FieldApplicantID = "applicant_id"
)

// ProfileFields lists the required fields in canonical order.
var ProfileFields = []string{
	FieldAge,
	FieldMonthlyIncome,
	FieldCurrentTotalDebt,
	FieldCreditHistory,
	FieldEmploymentTenureYears,
	FieldDependents,
	FieldHousingType,
	FieldCreditPurpose,
	FieldRequestedAmount,
}

// FieldAliases maps alternative input keys (after FoldKey) to canonical names.
var FieldAliases = map[string]string{
	// age
	"edad":      FieldAge,
	"age_years": FieldAge,

	// monthly_income
	"income":             FieldMonthlyIncome,
	"monthlyincome":      FieldMonthlyIncome,
	"ingresos_mensuales": FieldMonthlyIncome,
	"ingreso_mensual":    FieldMonthlyIncome,

	// current_total_debt
	"debt":         FieldCurrentTotalDebt,
	"total_debt":   FieldCurrentTotalDebt,
	"current_debt": FieldCurrentTotalDebt,
	"deuda_actual": FieldCurrentTotalDebt,
	"deuda":        FieldCurrentTotalDebt,

	// credit_history
	"history":              FieldCreditHistory,
	"credithistory":        FieldCreditHistory,
	"historial_crediticio": FieldCreditHistory,
	"historial":            FieldCreditHistory,

	// employment_tenure_years
	"tenure":             FieldEmploymentTenureYears,
	"employment_tenure":  FieldEmploymentTenureYears,
	"years_employed":     FieldEmploymentTenureYears,
	"antiguedad_laboral": FieldEmploymentTenureYears,
	"antiguedad":         FieldEmploymentTenureYears,

	// dependents
	"dependants":          FieldDependents,
	"numero_dependientes": FieldDependents,
	"dependientes":        FieldDependents,

	// housing_type
	"housing":       FieldHousingType,
	"tipo_vivienda": FieldHousingType,
	"vivienda":      FieldHousingType,

	// credit_purpose
	"purpose":           FieldCreditPurpose,
	"loan_purpose":      FieldCreditPurpose,
	"proposito_credito": FieldCreditPurpose,
	"proposito":         FieldCreditPurpose,

	// requested_amount
	"amount":           FieldRequestedAmount,
	"loan_amount":      FieldRequestedAmount,
	"monto_solicitado": FieldRequestedAmount,
	"monto":            FieldRequestedAmount,

	// applicant_id
	"id":          FieldApplicantID,
	"applicantid": FieldApplicantID,
	"customer_id": FieldApplicantID,
	"solicitante": FieldApplicantID,
}

// RawProfile is an applicant profile as received from JSON, YAML or CSV.
// Nothing downstream of the validator reads it.
type RawProfile map[string]any

// ApplicantProfile is a validated, strongly typed applicant profile.
type ApplicantProfile struct {
	Age                   int             `json:"age"`
	MonthlyIncome         decimal.Decimal `json:"monthly_income"`
	CurrentTotalDebt      decimal.Decimal `json:"current_total_debt"`
	CreditHistory         CreditHistory   `json:"credit_history"`
	EmploymentTenureYears int             `json:"employment_tenure_years"`
	Dependents            int             `json:"dependents"`
	HousingType           HousingType     `json:"housing_type"`
	CreditPurpose         CreditPurpose   `json:"credit_purpose"`
	RequestedAmount       decimal.Decimal `json:"requested_amount"`
}
