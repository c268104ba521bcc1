// Package models defines the data structures for the credit inference engine.
package models

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Common errors
var (
	ErrInvalidCreditHistory = errors.New("invalid credit history")
	ErrInvalidHousingType   = errors.New("invalid housing type")
	ErrInvalidCreditPurpose = errors.New("invalid credit purpose")
	ErrEvaluationNotFound   = errors.New("evaluation not found")
	ErrNotScored            = errors.New("evaluation has no score")
)

// PreconditionViolation is raised (via panic) when an internal invariant is
// broken, e.g. scoring a profile that never passed validation.
type PreconditionViolation struct {
	Component string
	Reason    string
}

func (p PreconditionViolation) Error() string {
	return fmt.Sprintf("precondition violated in %s: %s", p.Component, p.Reason)
}

// foldText lowercases, trims and strips accents so "Educación " matches "educacion".
func foldText(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(strings.TrimSpace(folded))
	folded = strings.ReplaceAll(folded, " ", "_")
	return strings.ReplaceAll(folded, "-", "_")
}

// FoldKey normalizes an input key or enum token for alias lookup.
func FoldKey(s string) string {
	return foldText(s)
}

// NormalizeCreditHistory converts the accepted spellings to a CreditHistory.
func NormalizeCreditHistory(value string) CreditHistory {
	normalized := foldText(value)

	historyMap := map[string]CreditHistory{
		"bad":           CreditHistoryBad,
		"poor":          CreditHistoryBad,
		"negative":      CreditHistoryBad,
		"malo":          CreditHistoryBad,
		"mala":          CreditHistoryBad,
		"0":             CreditHistoryBad,
		"neutral":       CreditHistoryNeutral,
		"none":          CreditHistoryNeutral,
		"no_history":    CreditHistoryNeutral,
		"neutro":        CreditHistoryNeutral,
		"sin_historial": CreditHistoryNeutral,
		"1":             CreditHistoryNeutral,
		"good":          CreditHistoryGood,
		"positive":      CreditHistoryGood,
		"bueno":         CreditHistoryGood,
		"buena":         CreditHistoryGood,
		"2":             CreditHistoryGood,
	}

	if mapped, ok := historyMap[normalized]; ok {
		return mapped
	}

	// Unknown values pass through and fail validation
	return CreditHistory(normalized)
}

// NormalizeHousingType converts the accepted spellings to a HousingType.
func NormalizeHousingType(value string) HousingType {
	normalized := foldText(value)

	housingMap := map[string]HousingType{
		"owned":    HousingOwned,
		"own":      HousingOwned,
		"owner":    HousingOwned,
		"propia":   HousingOwned,
		"propio":   HousingOwned,
		"rented":   HousingRented,
		"rent":     HousingRented,
		"renting":  HousingRented,
		"rentada":  HousingRented,
		"alquiler": HousingRented,
		"other":    HousingOther,
		"family":   HousingOther,
		"familiar": HousingOther,
		"free":     HousingOther,
		"otra":     HousingOther,
	}

	if mapped, ok := housingMap[normalized]; ok {
		return mapped
	}
	return HousingType(normalized)
}

// NormalizeCreditPurpose converts the accepted spellings to a CreditPurpose.
func NormalizeCreditPurpose(value string) CreditPurpose {
	normalized := foldText(value)

	purposeMap := map[string]CreditPurpose{
		"business":    PurposeBusiness,
		"negocio":     PurposeBusiness,
		"education":   PurposeEducation,
		"educacion":   PurposeEducation,
		"consumption": PurposeConsumption,
		"consumer":    PurposeConsumption,
		"consumo":     PurposeConsumption,
		"emergency":   PurposeEmergency,
		"emergencia":  PurposeEmergency,
		"vacation":    PurposeVacation,
		"vacations":   PurposeVacation,
		"vacaciones":  PurposeVacation,
	}

	if mapped, ok := purposeMap[normalized]; ok {
		return mapped
	}
	return CreditPurpose(normalized)
}
