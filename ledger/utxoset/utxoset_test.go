// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package utxoset_test

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BoostyLabs/inscriber/ledger"
	"github.com/BoostyLabs/inscriber/ledger/utxoset"
)

const threshold uint64 = 200_100_000

func utxo(idx uint32, amount uint64) ledger.UTXO {
	return ledger.UTXO{Outpoint: ledger.Outpoint{TxID: fmt.Sprintf("%064x", idx), Index: idx}, Amount: amount}
}

func TestClassify(t *testing.T) {
	t.Run("threshold boundary is small", func(t *testing.T) {
		utxos := []ledger.UTXO{utxo(0, threshold), utxo(1, threshold+1), utxo(2, threshold-1)}
		for run := 0; run < 10; run++ {
			buckets := utxoset.Classify(utxos, threshold)
			require.Equal(t, []ledger.UTXO{utxos[1]}, buckets.Large)
			require.Equal(t, []ledger.UTXO{utxos[0], utxos[2]}, buckets.Small)
		}
	})

	t.Run("total and disjoint", func(t *testing.T) {
		rnd := rand.New(rand.NewSource(7))
		utxos := make([]ledger.UTXO, 200)
		for i := range utxos {
			utxos[i] = utxo(uint32(i), uint64(rnd.Int63n(int64(3*threshold))))
		}

		buckets := utxoset.Classify(utxos, threshold)
		require.Equal(t, len(utxos), len(buckets.Large)+len(buckets.Small))

		seen := make(map[ledger.Outpoint]int)
		for _, u := range buckets.Large {
			require.Greater(t, u.Amount, threshold)
			seen[u.Outpoint]++
		}
		for _, u := range buckets.Small {
			require.LessOrEqual(t, u.Amount, threshold)
			seen[u.Outpoint]++
		}
		for _, u := range utxos {
			require.Equal(t, 1, seen[u.Outpoint])
		}
	})

	t.Run("keeps order", func(t *testing.T) {
		utxos := []ledger.UTXO{utxo(0, 5e8), utxo(1, 1e8), utxo(2, 3e8), utxo(3, 2e8), utxo(4, 4e8)}
		buckets := utxoset.Classify(utxos, threshold)
		require.Equal(t, []ledger.UTXO{utxos[0], utxos[2], utxos[4]}, buckets.Large)
		require.Equal(t, []ledger.UTXO{utxos[1], utxos[3]}, buckets.Small)
		require.EqualValues(t, 0, utxos[0].Outpoint.Index)
	})

	t.Run("empty", func(t *testing.T) {
		buckets := utxoset.Classify(nil, threshold)
		require.Empty(t, buckets.Large)
		require.Empty(t, buckets.Small)
	})
}

func TestHelpers(t *testing.T) {
	utxos := []ledger.UTXO{utxo(0, 10), utxo(1, 30), utxo(2, 20)}

	require.EqualValues(t, 60, utxoset.Total(utxos))
	require.EqualValues(t, uint64(math.MaxUint64), utxoset.Total([]ledger.UTXO{utxo(0, math.MaxUint64), utxo(1, 1)}))

	found, ok := utxoset.Find(utxos, utxos[1].Outpoint)
	require.True(t, ok)
	require.Equal(t, utxos[1], found)
	_, ok = utxoset.Find(utxos, ledger.Outpoint{TxID: "missing"})
	require.False(t, ok)

	found, ok = utxoset.ByTxID(utxos, utxos[2].Outpoint.TxID)
	require.True(t, ok)
	require.Equal(t, utxos[2], found)

	sorted := utxoset.SortedByAmountDesc(utxos)
	require.Equal(t, []ledger.UTXO{utxos[1], utxos[2], utxos[0]}, sorted)
	require.EqualValues(t, 10, utxos[0].Amount)

	rest := utxoset.Exclude(utxos, func(o ledger.Outpoint) bool { return o == utxos[0].Outpoint })
	require.Equal(t, []ledger.UTXO{utxos[1], utxos[2]}, rest)
}
