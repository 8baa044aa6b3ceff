// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Package utxoset provides pure helpers over UTXO lists.
package utxoset

import (
	"sort"

	"github.com/BoostyLabs/inscriber/ledger"
)

// Buckets describes UTXO list partitioned by amount threshold.
type Buckets struct {
	Large []ledger.UTXO // amount > threshold, need splitting.
	Small []ledger.UTXO // amount <= threshold, drained as is.
}

// Classify partitions utxos by threshold in base units keeping input order inside each bucket.
// UTXO with amount equal to threshold is small.
func Classify(utxos []ledger.UTXO, threshold uint64) Buckets {
	var buckets Buckets
	for _, utxo := range utxos {
		if utxo.Amount > threshold {
			buckets.Large = append(buckets.Large, utxo)
			continue
		}

		buckets.Small = append(buckets.Small, utxo)
	}

	return buckets
}

// Total returns sum of utxos amounts, saturating at max uint64.
func Total(utxos []ledger.UTXO) uint64 {
	var total uint64
	for _, utxo := range utxos {
		if total+utxo.Amount < total {
			return ^uint64(0)
		}

		total += utxo.Amount
	}

	return total
}

// Find returns utxo with provided outpoint.
func Find(utxos []ledger.UTXO, outpoint ledger.Outpoint) (ledger.UTXO, bool) {
	for _, utxo := range utxos {
		if utxo.Outpoint == outpoint {
			return utxo, true
		}
	}

	return ledger.UTXO{}, false
}

// ByTxID returns first utxo created by transaction txID.
func ByTxID(utxos []ledger.UTXO, txID string) (ledger.UTXO, bool) {
	for _, utxo := range utxos {
		if utxo.Outpoint.TxID == txID {
			return utxo, true
		}
	}

	return ledger.UTXO{}, false
}

// Exclude returns utxos whose outpoints are not accepted by skip.
func Exclude(utxos []ledger.UTXO, skip func(ledger.Outpoint) bool) []ledger.UTXO {
	result := make([]ledger.UTXO, 0, len(utxos))
	for _, utxo := range utxos {
		if !skip(utxo.Outpoint) {
			result = append(result, utxo)
		}
	}

	return result
}

// SortedByAmountDesc returns copy of utxos sorted by amount desc, stable.
func SortedByAmountDesc(utxos []ledger.UTXO) []ledger.UTXO {
	sorted := append([]ledger.UTXO(nil), utxos...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Amount > sorted[j].Amount
	})

	return sorted
}
