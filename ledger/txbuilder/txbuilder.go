// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/BoostyLabs/inscriber/internal/numbers"
	"github.com/BoostyLabs/inscriber/ledger"
	"github.com/BoostyLabs/inscriber/ledger/utxoset"
)

const (
	// txVersion defines transaction version for this builder.
	txVersion int32 = 2

	// placeholderSignatureLen defines the longest DER signature with sighash type byte.
	placeholderSignatureLen = 73
	// placeholderPubKeyLen defines compressed public key length.
	placeholderPubKeyLen = 33

	// DefaultFeeRate defines fee in base units per unit of mass.
	DefaultFeeRate uint64 = 1
	// DefaultDustThreshold defines the smallest change in base units worth an output.
	DefaultDustThreshold uint64 = 546
)

// Input describes spendable output with data needed to unlock it.
type Input struct {
	UTXO         ledger.UTXO
	RedeemScript []byte // set for script-hash inputs, nil for key-hash inputs.
}

// Output describes payment to address.
type Output struct {
	Address string
	Amount  uint64 // in base units.
}

// Params describes data needed to build transaction.
type Params struct {
	PriorityInputs []Input  // always spent, in order.
	Inputs         []Input  // funding pool, spent only if priority inputs are not enough.
	Outputs        []Output // payments.
	ChangeAddress  string   // receives the rest, if not dust.
	PriorityFee    uint64   // paid on top of mass based fee.
}

// Estimate describes transaction costs.
type Estimate struct {
	Mass         uint64 // serialized size with the largest possible signatures.
	Fee          uint64 // network fee, including absorbed dust change.
	PriorityFee  uint64
	Change       uint64
	InputAmount  uint64
	OutputAmount uint64 // payments only, without change.
}

// TotalFee returns network and priority fee sum.
func (e Estimate) TotalFee() uint64 {
	return e.Fee + e.PriorityFee
}

// Transaction is an unsigned transaction with spent inputs data.
type Transaction struct {
	Tx          *wire.MsgTx
	Inputs      []Input // in tx input order.
	ChangeIndex int     // change output index, -1 if there is no change.
	Estimate    Estimate
}

// Option configures TxBuilder.
type Option func(*TxBuilder)

// WithFeeRate sets fee in base units per unit of mass.
func WithFeeRate(feeRate uint64) Option {
	return func(b *TxBuilder) { b.feeRate = feeRate }
}

// WithDustThreshold sets the smallest change worth an output.
func WithDustThreshold(dust uint64) Option {
	return func(b *TxBuilder) { b.dustThreshold = dust }
}

// TxBuilder provides transaction building related logic.
type TxBuilder struct {
	networkParams *chaincfg.Params
	feeRate       uint64
	dustThreshold uint64
}

// NewTxBuilder is a constructor for TxBuilder.
func NewTxBuilder(networkParams *chaincfg.Params, opts ...Option) *TxBuilder {
	b := &TxBuilder{
		networkParams: networkParams,
		feeRate:       DefaultFeeRate,
		dustThreshold: DefaultDustThreshold,
	}
	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Estimate returns costs of the transaction described by params without signing or broadcasting it.
func (b *TxBuilder) Estimate(params Params) (Estimate, error) {
	tx, err := b.Build(params)
	if err != nil {
		return Estimate{}, err
	}

	return tx.Estimate, nil
}

// Build constructs unsigned transaction.
//
//	inputs:  priority inputs, then funding inputs selected from the pool.
//	outputs: payments in order, then optional change.
//
// Fee is mass * fee rate, where mass is serialized size with placeholder signatures.
// Change below dust threshold is left to the fee.
func (b *TxBuilder) Build(params Params) (*Transaction, error) {
	if len(params.PriorityInputs)+len(params.Inputs) == 0 {
		return nil, fmt.Errorf("%w: no inputs", ledger.ErrTransactionBuild)
	}

	changeScript, err := b.payToAddress(params.ChangeAddress)
	if err != nil {
		return nil, err
	}

	txOuts := make([]*wire.TxOut, 0, len(params.Outputs))
	var outputAmount uint64
	for _, output := range params.Outputs {
		if output.Amount == 0 {
			return nil, fmt.Errorf("%w: zero output to %s", ledger.ErrTransactionBuild, output.Address)
		}

		txOut, err := b.txOut(output.Address, output.Amount)
		if err != nil {
			return nil, err
		}

		txOuts = append(txOuts, txOut)
		if outputAmount, err = numbers.Add(outputAmount, output.Amount); err != nil {
			return nil, fmt.Errorf("%w: outputs amount: %w", ledger.ErrTransactionBuild, err)
		}
	}

	need, err := numbers.Add(outputAmount, params.PriorityFee)
	if err != nil {
		return nil, fmt.Errorf("%w: required amount: %w", ledger.ErrTransactionBuild, err)
	}

	var (
		pool      = sortedInputs(params.Inputs)
		insuffErr *InsufficientError
	)
	for extra := 0; extra <= len(pool); extra++ {
		inputs := append([]Input(nil), params.PriorityInputs...)
		if extra > 0 {
			// inputs of the pool are expected to be alike, so the first ones give the fee.
			fee, err := b.draftFee(append(append([]Input(nil), inputs...), pool[:extra]...), txOuts, changeScript)
			if err != nil {
				return nil, err
			}

			selected, _, err := SelectUTXO(pool, poolShare(params.PriorityInputs, need, fee), extra)
			if err != nil {
				continue
			}

			inputs = append(inputs, selected...)
		}

		tx, err := b.finalize(inputs, txOuts, changeScript, outputAmount, params.PriorityFee)
		if err == nil {
			return tx, nil
		}
		if !errors.As(err, &insuffErr) {
			return nil, err
		}
	}

	have := utxoset.Total(inputUTXOs(params.PriorityInputs)) + utxoset.Total(inputUTXOs(pool))
	insuffErr = NewInsufficientError(insuffErr.Need, have)
	if len(params.Inputs) > 0 {
		return nil, insuffErr.setCauser(CauserSource)
	}

	return nil, insuffErr.setCauser(CauserScript)
}

// poolShare returns amount the pool must add to priority inputs to cover need and fee.
func poolShare(priority []Input, need, fee uint64) uint64 {
	required := need + fee
	priorityAmount := utxoset.Total(inputUTXOs(priority))
	if priorityAmount >= required {
		return 0
	}

	return required - priorityAmount
}

// draftFee returns fee of transaction spending inputs to outputs and change.
func (b *TxBuilder) draftFee(inputs []Input, txOuts []*wire.TxOut, changeScript []byte) (uint64, error) {
	tx, _, err := b.unsignedTx(inputs, txOuts)
	if err != nil {
		return 0, err
	}

	tx.AddTxOut(wire.NewTxOut(0, changeScript))

	return b.fee(tx)
}

// finalize builds transaction spending exactly provided inputs.
func (b *TxBuilder) finalize(inputs []Input, txOuts []*wire.TxOut, changeScript []byte, outputAmount, priorityFee uint64) (*Transaction, error) {
	tx, inputAmount, err := b.unsignedTx(inputs, txOuts)
	if err != nil {
		return nil, err
	}

	feeNoChange, err := b.fee(tx)
	if err != nil {
		return nil, err
	}

	need := outputAmount + priorityFee // checked by caller.
	required, err := numbers.Add(need, feeNoChange)
	if err != nil {
		return nil, fmt.Errorf("%w: required amount: %w", ledger.ErrTransactionBuild, err)
	}

	if inputAmount < required {
		return nil, NewInsufficientError(required, inputAmount)
	}

	estimate := Estimate{
		Mass:         uint64(tx.SerializeSize()),
		Fee:          feeNoChange,
		PriorityFee:  priorityFee,
		InputAmount:  inputAmount,
		OutputAmount: outputAmount,
	}
	result := &Transaction{Tx: tx, Inputs: inputs, ChangeIndex: -1}

	tx.AddTxOut(wire.NewTxOut(0, changeScript))
	feeWithChange, err := b.fee(tx)
	if err != nil {
		return nil, err
	}

	rest := inputAmount - need
	if rest > feeWithChange && rest-feeWithChange >= b.dustThreshold {
		value, err := numbers.ToInt64(rest - feeWithChange)
		if err != nil {
			return nil, fmt.Errorf("%w: change: %w", ledger.ErrTransactionBuild, err)
		}

		result.ChangeIndex = len(tx.TxOut) - 1
		tx.TxOut[result.ChangeIndex].Value = value
		estimate.Mass = uint64(tx.SerializeSize())
		estimate.Fee = feeWithChange
		estimate.Change = rest - feeWithChange
	} else {
		// dust change is left to the fee.
		tx.TxOut = tx.TxOut[:len(tx.TxOut)-1]
		estimate.Fee = rest
	}

	for _, txIn := range tx.TxIn {
		txIn.SignatureScript = nil
	}
	result.Estimate = estimate

	return result, nil
}

// unsignedTx returns transaction with placeholder signature scripts and total inputs amount.
func (b *TxBuilder) unsignedTx(inputs []Input, txOuts []*wire.TxOut) (*wire.MsgTx, uint64, error) {
	tx := wire.NewMsgTx(txVersion)
	var inputAmount uint64
	for _, input := range inputs {
		hash, err := chainhash.NewHashFromStr(input.UTXO.Outpoint.TxID)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: outpoint %s: %w", ledger.ErrTransactionBuild, input.UTXO.Outpoint, err)
		}

		placeholder, err := placeholderSignatureScript(input)
		if err != nil {
			return nil, 0, err
		}

		tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(hash, input.UTXO.Outpoint.Index), placeholder, nil))
		if inputAmount, err = numbers.Add(inputAmount, input.UTXO.Amount); err != nil {
			return nil, 0, fmt.Errorf("%w: inputs amount: %w", ledger.ErrTransactionBuild, err)
		}
	}
	for _, txOut := range txOuts {
		tx.AddTxOut(wire.NewTxOut(txOut.Value, txOut.PkScript))
	}

	return tx, inputAmount, nil
}

// fee returns mass based fee of transaction.
func (b *TxBuilder) fee(tx *wire.MsgTx) (uint64, error) {
	fee, err := numbers.Mul(uint64(tx.SerializeSize()), b.feeRate)
	if err != nil {
		return 0, fmt.Errorf("%w: fee: %w", ledger.ErrTransactionBuild, err)
	}

	return fee, nil
}

// txOut returns output paying amount to address.
func (b *TxBuilder) txOut(address string, amount uint64) (*wire.TxOut, error) {
	script, err := b.payToAddress(address)
	if err != nil {
		return nil, err
	}

	value, err := numbers.ToInt64(amount)
	if err != nil {
		return nil, fmt.Errorf("%w: output amount: %w", ledger.ErrTransactionBuild, err)
	}

	return wire.NewTxOut(value, script), nil
}

// payToAddress returns locking script of the address.
func (b *TxBuilder) payToAddress(address string) ([]byte, error) {
	if address == "" {
		return nil, fmt.Errorf("%w: empty address", ledger.ErrTransactionBuild)
	}

	decoded, err := btcutil.DecodeAddress(address, b.networkParams)
	if err != nil {
		return nil, fmt.Errorf("%w: address %q: %w", ledger.ErrTransactionBuild, address, err)
	}

	script, err := txscript.PayToAddrScript(decoded)
	if err != nil {
		return nil, fmt.Errorf("%w: address %q: %w", ledger.ErrTransactionBuild, address, err)
	}

	return script, nil
}

// placeholderSignatureScript returns signature script of the largest possible size for input.
func placeholderSignatureScript(input Input) ([]byte, error) {
	builder := txscript.NewScriptBuilder().AddData(make([]byte, placeholderSignatureLen))
	if input.RedeemScript != nil {
		builder.AddData(input.RedeemScript)
	} else {
		builder.AddData(make([]byte, placeholderPubKeyLen))
	}

	script, err := builder.Script()
	if err != nil {
		return nil, fmt.Errorf("%w: signature script: %w", ledger.ErrTransactionBuild, err)
	}

	return script, nil
}

// sortedInputs returns copy of inputs sorted by amount desc.
func sortedInputs(inputs []Input) []Input {
	sorted := utxoset.SortedByAmountDesc(inputUTXOs(inputs))
	byOutpoint := make(map[ledger.Outpoint]Input, len(inputs))
	for _, input := range inputs {
		byOutpoint[input.UTXO.Outpoint] = input
	}

	result := make([]Input, 0, len(sorted))
	for _, utxo := range sorted {
		result = append(result, byOutpoint[utxo.Outpoint])
	}

	return result
}

// inputUTXOs returns utxos of inputs.
func inputUTXOs(inputs []Input) []ledger.UTXO {
	utxos := make([]ledger.UTXO, 0, len(inputs))
	for _, input := range inputs {
		utxos = append(utxos, input.UTXO)
	}

	return utxos
}
