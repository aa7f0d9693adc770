package calculator

import "github.com/shopspring/decimal"

// Rates holds the per-patient demand and the per-bag yield, both in liters.
type Rates struct {
	LitersPerPatient decimal.Decimal
	LitersPerBag     decimal.Decimal
}

// Result summarises a bag calculation.
// FinalVolume is always Bags * LitersPerBag; Demand is kept for reporting only.
type Result struct {
	Patients    int
	Demand      decimal.Decimal
	Bags        int
	FinalVolume decimal.Decimal
}

// Calculator describes the behaviour required from a bag calculator.
type Calculator interface {
	Compute(patients int, rates Rates) (Result, error)
}
