package calculator

import (
	"math"

	"github.com/shopspring/decimal"
)

// MaxRateScale is the number of decimal places a rate may carry.
const MaxRateScale = 9

// maxRateExponent is the largest exponent a rate within MaxRate can have.
const maxRateExponent = 6

var (
	defaultLitersPerPatient = decimal.NewFromInt(6)
	defaultLitersPerBag     = decimal.NewFromInt(8)

	// MaxRate is the largest accepted liters per patient or per bag.
	MaxRate = decimal.NewFromInt(1_000_000)

	maxBags = decimal.NewFromInt(int64(math.MaxInt))
)

type ceilCalculator struct{}

// New creates a Calculator that rounds the bag count up.
func New() Calculator {
	return &ceilCalculator{}
}

// DefaultRates returns 6 liters per patient and 8 liters per bag.
func DefaultRates() Rates {
	return Rates{
		LitersPerPatient: defaultLitersPerPatient,
		LitersPerBag:     defaultLitersPerBag,
	}
}

// Validate reports whether both rates are accepted by ValidRate.
func (r Rates) Validate() error {
	if !ValidRate(r.LitersPerPatient) || !ValidRate(r.LitersPerBag) {
		return ErrInvalidRates
	}
	return nil
}

// ValidRate reports whether d is positive, at most MaxRate and has no more than
// MaxRateScale decimal places. The exponent is checked before any comparison so
// values like 1e-50000000 never reach big.Int arithmetic.
func ValidRate(d decimal.Decimal) bool {
	if !d.IsPositive() {
		return false
	}
	if exp := d.Exponent(); exp < -MaxRateScale || exp > maxRateExponent {
		return false
	}
	return !d.GreaterThan(MaxRate)
}

func (c *ceilCalculator) Compute(patients int, rates Rates) (Result, error) {
	return Compute(patients, rates)
}

// Compute returns the smallest whole number of bags covering patients * LitersPerPatient.
// It computes for the literal count given; no safety margin is added here.
func Compute(patients int, rates Rates) (Result, error) {
	if patients <= 0 {
		return Result{}, ErrInvalidPatientCount
	}
	if err := rates.Validate(); err != nil {
		return Result{}, err
	}

	demand := decimal.NewFromInt(int64(patients)).Mul(rates.LitersPerPatient)
	bags := ceilDiv(demand, rates.LitersPerBag)
	if bags.GreaterThan(maxBags) {
		return Result{}, ErrResultOutOfRange
	}

	return Result{
		Patients:    patients,
		Demand:      demand,
		Bags:        int(bags.IntPart()),
		FinalVolume: bags.Mul(rates.LitersPerBag),
	}, nil
}

// ceilDiv divides exactly and rounds any non-zero remainder up.
func ceilDiv(numerator, denominator decimal.Decimal) decimal.Decimal {
	quotient, remainder := numerator.QuoRem(denominator, 0)
	if remainder.IsPositive() {
		quotient = quotient.Add(decimal.NewFromInt(1))
	}
	return quotient
}
