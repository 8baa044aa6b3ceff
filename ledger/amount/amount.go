// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Package amount converts between ledger base units and display units.
package amount

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

const (
	// Decimals defines number of base unit decimals in one display unit.
	Decimals int32 = 8
	// BaseUnitsPerDisplayUnit defines base units in one display unit.
	BaseUnitsPerDisplayUnit uint64 = 100_000_000

	// DisplayPlaces defines default fixed precision of display strings.
	DisplayPlaces int32 = 8
	// ShortDisplayPlaces defines precision used in short summaries.
	ShortDisplayPlaces int32 = 6
)

// ErrInvalidAmount defines that amount is not a valid non negative decimal.
var ErrInvalidAmount = errors.New("invalid amount")

// ToBaseUnits converts display amount, e.g. "1.5", to base units.
// Digits beyond base unit precision are truncated.
func ToBaseUnits(display string) (uint64, error) {
	return Parse(display, Decimals)
}

// ToDisplayUnits formats base amount as display string with fixed number of decimal places.
func ToDisplayUnits(base uint64, places int32) string {
	return Format(base, Decimals, places)
}

// String formats base amount with DisplayPlaces decimal places.
func String(base uint64) string {
	return ToDisplayUnits(base, DisplayPlaces)
}

// Parse converts decimal string to integer units with provided number of decimals.
func Parse(value string, decimals int32) (uint64, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, value)
	}

	if d.IsNegative() {
		return 0, fmt.Errorf("%w: %q is negative", ErrInvalidAmount, value)
	}

	units := d.Shift(decimals).Truncate(0).BigInt()
	if !units.IsUint64() {
		return 0, fmt.Errorf("%w: %q overflows", ErrInvalidAmount, value)
	}

	return units.Uint64(), nil
}

// Format formats integer units with provided number of decimals as fixed precision string.
func Format(value uint64, decimals, places int32) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(value), -decimals).StringFixed(places)
}

// Scale converts display amount to integer units string with provided number of decimals.
// Unlike Parse, result is not bounded by uint64.
func Scale(value string, decimals int32) (string, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidAmount, value)
	}

	if !d.IsPositive() {
		return "", fmt.Errorf("%w: %q is not positive", ErrInvalidAmount, value)
	}

	return d.Shift(decimals).Truncate(0).String(), nil
}
