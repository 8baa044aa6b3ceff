// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"errors"
)

var (
	// ErrInvalidUTXOAmount defines that there are fewer utxos than required to select.
	ErrInvalidUTXOAmount = errors.New("invalid utxo amount")
	// errSelectionShort defines that selected utxos do not cover minimal amount.
	errSelectionShort = errors.New("selected utxos do not cover amount")
)

// SelectUTXO is a partly greedy selection algorithm for inputs with 'requiredUTXOs' parameter.
// Inputs must be sorted by amount desc. Returns selected inputs with their total amount.
func SelectUTXO(inputs []Input, minAmount uint64, requiredUTXOs int) (used []Input, totalAmount uint64, _ error) {
	if requiredUTXOs <= 0 || len(inputs) < requiredUTXOs {
		return nil, 0, ErrInvalidUTXOAmount
	}

	used = make([]Input, 0, requiredUTXOs)
	var startIdx = 0
	var usedIdxs = make([]int, 0, requiredUTXOs)

	// find the closest by amount input that is greater than minAmount or take the biggest possible.
	for idx, input := range inputs {
		if minAmount > input.UTXO.Amount {
			break
		}

		startIdx = idx
	}

	usedIdxs = append(usedIdxs, startIdx)
	totalAmount += inputs[startIdx].UTXO.Amount
	used = append(used, inputs[startIdx])
	requiredUTXOs--

	// pick bigger amount if total amount does not cover minAmount, otherwise - the smallest to pass requiredUTXOs.
	for ; requiredUTXOs > 0; requiredUTXOs-- {
		idx := selectUnused(startIdx, len(inputs), usedIdxs, minAmount <= totalAmount)
		if idx == -1 {
			idx = selectUnused(0, len(inputs), usedIdxs, false)
		}

		usedIdxs = append(usedIdxs, idx)
		totalAmount += inputs[idx].UTXO.Amount
		used = append(used, inputs[idx])
	}

	if minAmount > totalAmount {
		return nil, 0, errSelectionShort
	}

	return used, totalAmount, nil
}

// selectUnused returns first unused idx depending on search direction.
func selectUnused(start, end int, usedIdxs []int, reversed bool) int {
	if reversed {
		for idx := end - 1; idx >= start; idx-- {
			if !isUsed(idx, usedIdxs) {
				return idx
			}
		}
	} else {
		for idx := start; idx < end; idx++ {
			if !isUsed(idx, usedIdxs) {
				return idx
			}
		}
	}

	return -1
}

// isUsed returns true if idx is in usedIdxs.
func isUsed(idx int, usedIdxs []int) bool {
	for _, used := range usedIdxs {
		if used == idx {
			return true
		}
	}

	return false
}
