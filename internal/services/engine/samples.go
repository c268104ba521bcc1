package engine

import "mihac/internal/models"

// Sample is a named reference profile.
type Sample struct {
	Name        string
	Description string
	Raw         models.RawProfile
}

// SampleProfiles returns the built-in reference profiles used by the demo
// command and tests. Each call returns fresh maps.
func SampleProfiles() []Sample {
	return []Sample{
		{
			Name:        "ideal",
			Description: "Established business owner with low debt",
			Raw: models.RawProfile{
				"applicant_id": "DEMO-IDEAL", "age": 35, "monthly_income": 25000, "current_total_debt": 4000,
				"credit_history": "good", "employment_tenure_years": 7, "dependents": 1,
				"housing_type": "owned", "credit_purpose": "business", "requested_amount": 15000,
			},
		},
		{
			Name:        "risk",
			Description: "Young applicant with bad history and critical debt",
			Raw: models.RawProfile{
				"applicant_id": "DEMO-RISK", "age": 19, "monthly_income": 8000, "current_total_debt": 5500,
				"credit_history": "bad", "employment_tenure_years": 0, "dependents": 3,
				"housing_type": "rented", "credit_purpose": "vacation", "requested_amount": 12000,
			},
		},
		{
			Name:        "gray",
			Description: "Neutral history with moderate stability",
			Raw: models.RawProfile{
				"applicant_id": "DEMO-GRAY", "age": 28, "monthly_income": 15000, "current_total_debt": 3000,
				"credit_history": "neutral", "employment_tenure_years": 2, "dependents": 1,
				"housing_type": "other", "credit_purpose": "consumption", "requested_amount": 10000,
			},
		},
		{
			Name:        "compensated",
			Description: "Neutral history offset by low debt and a stable job",
			Raw: models.RawProfile{
				"applicant_id": "DEMO-COMP", "age": 42, "monthly_income": 30000, "current_total_debt": 3000,
				"credit_history": "neutral", "employment_tenure_years": 8, "dependents": 2,
				"housing_type": "rented", "credit_purpose": "education", "requested_amount": 18000,
			},
		},
		{
			Name:        "high-amount",
			Description: "Strong profile asking for more than the high-amount boundary",
			Raw: models.RawProfile{
				"applicant_id": "DEMO-HIGH", "age": 45, "monthly_income": 18000, "current_total_debt": 2000,
				"credit_history": "good", "employment_tenure_years": 4, "dependents": 0,
				"housing_type": "rented", "credit_purpose": "emergency", "requested_amount": 30000,
			},
		},
		{
			Name:        "spanish",
			Description: "Spanish field names and labels",
			Raw: models.RawProfile{
				"solicitante": "DEMO-ES", "edad": "31", "ingresos_mensuales": "$20,000", "deuda_actual": "2,500",
				"historial_crediticio": "Bueno", "antiguedad_laboral": "6", "numero_dependientes": "0",
				"tipo_vivienda": "Propia", "proposito_credito": "Educación", "monto_solicitado": "12000",
			},
		},
		{
			Name:        "invalid",
			Description: "Underage applicant with missing fields",
			Raw: models.RawProfile{
				"applicant_id": "DEMO-INVALID", "age": 16, "monthly_income": 0,
				"credit_history": "excellent", "housing_type": "owned",
			},
		},
	}
}
