package value

import "errors"

var (
	errDivByZero        = errors.New("value: division by zero")
	errNegativeExponent = errors.New("value: negative exponent")
	errBadShift         = errors.New("value: shift amount must be a non-negative integer")
)
