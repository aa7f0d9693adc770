package calculator

import "errors"

var (
	// ErrInvalidPatientCount is returned when the patient count is zero or negative.
	ErrInvalidPatientCount = errors.New("patient count must be a positive integer")
	// ErrInvalidRates is returned when liters per patient or liters per bag are not
	// positive, exceed MaxRate or carry more than MaxRateScale decimal places.
	ErrInvalidRates = errors.New("liters per patient and liters per bag must be positive, at most 1000000, with up to 9 decimal places")
	// ErrResultOutOfRange is returned when the patient count plus margin or the bag count does not fit in an int.
	ErrResultOutOfRange = errors.New("calculation result is out of range")
)
