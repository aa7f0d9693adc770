package preparation

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/eugenenazirov/bicarb-prep/internal/calculator"
)

// SafetyMargin is added to every real patient count before calculating demand.
const SafetyMargin = 1

var (
	waterOffset       = decimal.NewFromInt(10)
	minWaterLiters    = decimal.NewFromInt(1)
	singleBagMinWater = decimal.NewFromInt(6)
	singleBagMaxWater = decimal.NewFromInt(7)
)

// WaterFill is the initial osmosis water level for the mixer.
// A single bag is filled to the MinLiters..MaxLiters range; otherwise Liters applies.
type WaterFill struct {
	SingleBag bool
	Liters    decimal.Decimal
	MinLiters decimal.Decimal
	MaxLiters decimal.Decimal
	Floored   bool
}

// Plan is the full preparation for one request.
type Plan struct {
	RequestedPatients int
	EffectivePatients int
	calculator.Result
	Water WaterFill
}

// Planner applies the safety margin before delegating to a calculator.
type Planner struct {
	calc calculator.Calculator
}

// NewPlanner wraps calc. A nil calc falls back to calculator.New().
func NewPlanner(calc calculator.Calculator) *Planner {
	if calc == nil {
		calc = calculator.New()
	}
	return &Planner{calc: calc}
}

// Plan computes bags and water for rawPatients real patients plus the safety margin.
// Negative counts are rejected with calculator.ErrInvalidPatientCount and counts
// that would overflow once the margin is added with calculator.ErrResultOutOfRange.
func (p *Planner) Plan(rawPatients int, rates calculator.Rates) (Plan, error) {
	if rawPatients < 0 {
		return Plan{}, calculator.ErrInvalidPatientCount
	}
	if rawPatients > math.MaxInt-SafetyMargin {
		return Plan{}, calculator.ErrResultOutOfRange
	}

	effective := rawPatients + SafetyMargin
	result, err := p.calc.Compute(effective, rates)
	if err != nil {
		return Plan{}, err
	}

	return Plan{
		RequestedPatients: rawPatients,
		EffectivePatients: effective,
		Result:            result,
		Water:             WaterInstruction(result),
	}, nil
}

// WaterInstruction derives the initial water level from a calculation result.
// "Final volume minus 10" is meaningless for a single bag, which gets a fixed range.
func WaterInstruction(result calculator.Result) WaterFill {
	if result.Bags == 1 {
		return WaterFill{
			SingleBag: true,
			MinLiters: singleBagMinWater,
			MaxLiters: singleBagMaxWater,
		}
	}

	liters := result.FinalVolume.Sub(waterOffset)
	if liters.LessThan(minWaterLiters) {
		return WaterFill{Liters: minWaterLiters, Floored: true}
	}
	return WaterFill{Liters: liters}
}
