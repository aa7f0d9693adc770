package metrics

import (
	"errors"

	"github.com/eugenenazirov/bicarb-prep/internal/calculator"
)

// ObserveCalculation records the outcome of one calculation.
func ObserveCalculation(bags int, err error) {
	switch {
	case err == nil:
		CalculationsTotal.WithLabelValues(OutcomeOK).Inc()
		CalculationBags.Observe(float64(bags))
	case errors.Is(err, calculator.ErrInvalidPatientCount):
		CalculationsTotal.WithLabelValues(OutcomeInvalidPatients).Inc()
	case errors.Is(err, calculator.ErrInvalidRates):
		CalculationsTotal.WithLabelValues(OutcomeInvalidRates).Inc()
	default:
		CalculationsTotal.WithLabelValues(OutcomeError).Inc()
	}
}
