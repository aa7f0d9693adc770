package calculator

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func TestCompute(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		patients   int
		rates      Rates
		wantBags   int
		wantVolume string
		wantDemand string
	}{
		{
			name:       "SinglePatientDefaults",
			patients:   1,
			rates:      DefaultRates(),
			wantBags:   1,
			wantVolume: "8",
			wantDemand: "6",
		},
		{
			name:       "TwoPatientsRoundUp",
			patients:   2,
			rates:      DefaultRates(),
			wantBags:   2,
			wantVolume: "16",
			wantDemand: "12",
		},
		{
			name:       "ExactMultiple",
			patients:   4,
			rates:      DefaultRates(),
			wantBags:   3,
			wantVolume: "24",
			wantDemand: "24",
		},
		{
			name:       "LargeCount",
			patients:   1_000_001,
			rates:      DefaultRates(),
			wantBags:   750_001,
			wantVolume: "6000008",
			wantDemand: "6000006",
		},
		{
			name:     "FractionalRatesStayExact",
			patients: 3,
			rates: Rates{
				LitersPerPatient: decimal.RequireFromString("0.1"),
				LitersPerBag:     decimal.RequireFromString("0.3"),
			},
			wantBags:   1,
			wantVolume: "0.3",
			wantDemand: "0.3",
		},
		{
			name:     "FractionalRatesRoundUp",
			patients: 7,
			rates: Rates{
				LitersPerPatient: decimal.RequireFromString("6.5"),
				LitersPerBag:     decimal.RequireFromString("8"),
			},
			wantBags:   6,
			wantVolume: "48",
			wantDemand: "45.5",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := New().Compute(tc.patients, tc.rates)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Bags != tc.wantBags {
				t.Fatalf("expected %d bags, got %d", tc.wantBags, got.Bags)
			}
			if !got.FinalVolume.Equal(decimal.RequireFromString(tc.wantVolume)) {
				t.Fatalf("expected final volume %s, got %s", tc.wantVolume, got.FinalVolume)
			}
			if !got.Demand.Equal(decimal.RequireFromString(tc.wantDemand)) {
				t.Fatalf("expected demand %s, got %s", tc.wantDemand, got.Demand)
			}
			if got.Patients != tc.patients {
				t.Fatalf("expected patients %d, got %d", tc.patients, got.Patients)
			}
		})
	}
}

func TestComputeDefaultsMatchCeilingRule(t *testing.T) {
	t.Parallel()

	rates := DefaultRates()
	for p := 1; p <= 500; p++ {
		got, err := Compute(p, rates)
		if err != nil {
			t.Fatalf("patients=%d: unexpected error: %v", p, err)
		}

		wantBags := (p*6 + 7) / 8
		if got.Bags != wantBags {
			t.Fatalf("patients=%d: expected %d bags, got %d", p, wantBags, got.Bags)
		}
		if !got.FinalVolume.Equal(decimal.NewFromInt(int64(wantBags * 8))) {
			t.Fatalf("patients=%d: expected final volume %d, got %s", p, wantBags*8, got.FinalVolume)
		}
		if got.FinalVolume.LessThan(got.Demand) {
			t.Fatalf("patients=%d: final volume %s below demand %s", p, got.FinalVolume, got.Demand)
		}
		if !got.FinalVolume.Mod(rates.LitersPerBag).IsZero() {
			t.Fatalf("patients=%d: final volume %s is not a multiple of %s", p, got.FinalVolume, rates.LitersPerBag)
		}
	}
}

func TestComputeNeverUnderProvisions(t *testing.T) {
	t.Parallel()

	perPatient := []string{"0.5", "1", "2.25", "6", "7.3", "10"}
	perBag := []string{"0.7", "3", "5", "8", "12.5"}

	for _, lpp := range perPatient {
		for _, lpb := range perBag {
			rates := Rates{
				LitersPerPatient: decimal.RequireFromString(lpp),
				LitersPerBag:     decimal.RequireFromString(lpb),
			}
			for p := 1; p <= 40; p++ {
				got, err := Compute(p, rates)
				if err != nil {
					t.Fatalf("%s/%s patients=%d: unexpected error: %v", lpp, lpb, p, err)
				}
				if got.FinalVolume.LessThan(got.Demand) {
					t.Fatalf("%s/%s patients=%d: under-provisioned %s < %s", lpp, lpb, p, got.FinalVolume, got.Demand)
				}
				// one bag fewer must not be enough
				fewer := decimal.NewFromInt(int64(got.Bags - 1)).Mul(rates.LitersPerBag)
				if !fewer.LessThan(got.Demand) {
					t.Fatalf("%s/%s patients=%d: %d bags is not minimal", lpp, lpb, p, got.Bags)
				}
			}
		}
	}
}

func TestComputeInvalidPatientCount(t *testing.T) {
	t.Parallel()

	for _, patients := range []int{0, -1, -5} {
		patients := patients
		t.Run(fmt.Sprintf("%d", patients), func(t *testing.T) {
			got, err := Compute(patients, DefaultRates())
			if !errors.Is(err, ErrInvalidPatientCount) {
				t.Fatalf("expected ErrInvalidPatientCount, got %v", err)
			}
			if got != (Result{}) {
				t.Fatalf("expected zero result, got %+v", got)
			}
		})
	}
}

func TestComputeInvalidRates(t *testing.T) {
	t.Parallel()

	invalid := []Rates{
		{},
		{LitersPerPatient: decimal.Zero, LitersPerBag: decimal.NewFromInt(8)},
		{LitersPerPatient: decimal.NewFromInt(6), LitersPerBag: decimal.Zero},
		{LitersPerPatient: decimal.NewFromInt(-6), LitersPerBag: decimal.NewFromInt(8)},
		{LitersPerPatient: decimal.NewFromInt(6), LitersPerBag: decimal.NewFromInt(-8)},
		{LitersPerPatient: decimal.NewFromInt(6), LitersPerBag: decimal.RequireFromString("1e-50000000")},
		{LitersPerPatient: decimal.RequireFromString("1e50000000"), LitersPerBag: decimal.NewFromInt(8)},
		{LitersPerPatient: decimal.NewFromInt(6), LitersPerBag: decimal.RequireFromString("0.0000000001")},
		{LitersPerPatient: decimal.NewFromInt(1_000_001), LitersPerBag: decimal.NewFromInt(8)},
	}

	for idx, rates := range invalid {
		rates := rates
		t.Run(fmt.Sprintf("case_%d", idx), func(t *testing.T) {
			if _, err := Compute(3, rates); !errors.Is(err, ErrInvalidRates) {
				t.Fatalf("expected ErrInvalidRates for %+v, got %v", rates, err)
			}
		})
	}
}

func TestComputeIsIdempotent(t *testing.T) {
	t.Parallel()

	calc := New()
	first, err := calc.Compute(17, DefaultRates())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := calc.Compute(17, DefaultRates())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first.Bags != second.Bags || !first.FinalVolume.Equal(second.FinalVolume) || !first.Demand.Equal(second.Demand) {
		t.Fatalf("expected identical results, got %+v and %+v", first, second)
	}
}

func BenchmarkCompute(b *testing.B) {
	calc := New()
	rates := DefaultRates()
	for i := 0; i < b.N; i++ {
		if _, err := calc.Compute(25, rates); err != nil {
			b.Fatalf("unexpected error: %v", err)
		}
	}
}

func TestValidRateBounds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value string
		want  bool
	}{
		{value: "0.000000001", want: true},
		{value: "1000000", want: true},
		{value: "1000000.000", want: true},
		{value: "6.5", want: true},
		{value: "0", want: false},
		{value: "-1", want: false},
		{value: "0.0000000001", want: false},
		{value: "1000000.001", want: false},
		{value: "1e7", want: false},
		{value: "1e-50000000", want: false},
	}

	for _, tc := range tests {
		if got := ValidRate(decimal.RequireFromString(tc.value)); got != tc.want {
			t.Errorf("ValidRate(%s) = %v, want %v", tc.value, got, tc.want)
		}
	}
}

func TestComputeResultOutOfRange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		patients int
		rates    Rates
	}{
		{
			name:     "TinyBagsOverflowBagCount",
			patients: 1_000_000,
			rates: Rates{
				LitersPerPatient: MaxRate,
				LitersPerBag:     decimal.RequireFromString("0.000000001"),
			},
		},
		{
			name:     "MaxPatientsTinyBags",
			patients: math.MaxInt,
			rates: Rates{
				LitersPerPatient: decimal.NewFromInt(6),
				LitersPerBag:     decimal.RequireFromString("0.000000001"),
			},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := Compute(tc.patients, tc.rates)
			if !errors.Is(err, ErrResultOutOfRange) {
				t.Fatalf("expected ErrResultOutOfRange, got %v (bags=%d)", err, got.Bags)
			}
			if got != (Result{}) {
				t.Fatalf("expected zero result, got %+v", got)
			}
		})
	}
}

func TestComputeLargestBagCountStaysConsistent(t *testing.T) {
	t.Parallel()

	rates := Rates{LitersPerPatient: decimal.NewFromInt(1), LitersPerBag: decimal.NewFromInt(1)}
	got, err := Compute(math.MaxInt, rates)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Bags != math.MaxInt {
		t.Fatalf("expected %d bags, got %d", math.MaxInt, got.Bags)
	}
	if !decimal.NewFromInt(int64(got.Bags)).Mul(rates.LitersPerBag).Equal(got.FinalVolume) {
		t.Fatalf("final volume %s does not equal bags times bag size", got.FinalVolume)
	}
}
