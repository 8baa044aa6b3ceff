// Copyright (C) 2022 Creditor Corp. Group.
// See LICENSE for copying information.

package numbers

import (
	"errors"
	"math"
	"math/bits"
)

// ErrOverflow defines that arithmetic result does not fit into uint64.
var ErrOverflow = errors.New("uint64 overflow")

// ErrUnderflow defines that subtraction result would be negative.
var ErrUnderflow = errors.New("uint64 underflow")

// Add returns a + b, or ErrOverflow.
func Add(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrOverflow
	}

	return sum, nil
}

// Sub returns a - b, or ErrUnderflow if b > a.
func Sub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, ErrUnderflow
	}

	return diff, nil
}

// Mul returns a * b, or ErrOverflow.
func Mul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, ErrOverflow
	}

	return lo, nil
}

// Sum returns total of all values, or ErrOverflow.
func Sum(values ...uint64) (total uint64, err error) {
	for _, v := range values {
		total, err = Add(total, v)
		if err != nil {
			return 0, err
		}
	}

	return total, nil
}

// CeilDiv returns a / b rounded up. b must not be zero.
func CeilDiv(a, b uint64) uint64 {
	q := a / b
	if a%b != 0 {
		q++
	}

	return q
}

// ToInt64 converts v to int64, or returns ErrOverflow.
func ToInt64(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, ErrOverflow
	}

	return int64(v), nil
}

// Max returns the largest value from provided.
func Max(a uint64, b ...uint64) uint64 {
	maxValue := a
	for _, el := range b {
		if el > maxValue {
			maxValue = el
		}
	}

	return maxValue
}
