// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package signer

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"

	"github.com/BoostyLabs/inscriber/ledger"
	"github.com/BoostyLabs/inscriber/ledger/inscriptions"
	"github.com/BoostyLabs/inscriber/ledger/txbuilder"
)

// signHashType define signature hash type for input signing.
const signHashType = txscript.SigHashAll

// ErrInvalidPrivateKey defines that private key could not be parsed.
var ErrInvalidPrivateKey = errors.New("invalid private key")

// ErrUnsignableScript defines that redeem script is not locked by a compressed key of the signer.
var ErrUnsignableScript = errors.New("redeem script is not signable by the key")

// Signer provides transaction signing related logic.
type Signer struct {
	networkParams *chaincfg.Params
}

// NewSigner is a constructor for Signer.
func NewSigner(networkParams *chaincfg.Params) *Signer {
	return &Signer{
		networkParams: networkParams,
	}
}

// Sign fills signature scripts of all transaction inputs.
// Script-hash inputs get <signature> <redeem script>, key-hash inputs get <signature> <public key>.
func (signer *Signer) Sign(tx *txbuilder.Transaction, privateKey *btcec.PrivateKey) error {
	if len(tx.Inputs) != len(tx.Tx.TxIn) {
		return fmt.Errorf("%w: %d inputs data for %d inputs", ledger.ErrTransactionBuild, len(tx.Inputs), len(tx.Tx.TxIn))
	}

	keyHashScript, err := signer.keyHashScript(privateKey)
	if err != nil {
		return err
	}

	for idx, input := range tx.Inputs {
		if input.RedeemScript != nil {
			err = signer.signScriptHashInput(tx, idx, input.RedeemScript, privateKey)
		} else {
			err = signer.signKeyHashInput(tx, idx, keyHashScript, privateKey)
		}
		if err != nil {
			return fmt.Errorf("%w: sign input %d: %w", ledger.ErrTransactionBuild, idx, err)
		}
	}

	return nil
}

// SourceAddress returns key-hash address of private key owner.
func (signer *Signer) SourceAddress(privateKey *btcec.PrivateKey) (string, error) {
	addr, err := btcutil.NewAddressPubKeyHash(btcutil.Hash160(privateKey.PubKey().SerializeCompressed()), signer.networkParams)
	if err != nil {
		return "", err
	}

	return addr.EncodeAddress(), nil
}

// CanSpend checks that privateKey can unlock outputs locked by redeemScript.
func (signer *Signer) CanSpend(redeemScript []byte, privateKey *btcec.PrivateKey) error {
	if _, err := signer.spendable(redeemScript, privateKey); err != nil {
		return fmt.Errorf("%w: %w", ledger.ErrTransactionBuild, err)
	}

	return nil
}

// spendable parses redeemScript and checks it is locked by privateKey.
func (signer *Signer) spendable(redeemScript []byte, privateKey *btcec.PrivateKey) (*inscriptions.Script, error) {
	script, parsed, err := inscriptions.ScriptFromBytes(redeemScript)
	if err != nil {
		return nil, err
	}

	if !isOwnKey(parsed.PublicKey, privateKey) {
		return nil, ErrUnsignableScript
	}

	return script, nil
}

// signScriptHashInput signs input spending redeem script with embedded envelope.
func (signer *Signer) signScriptHashInput(tx *txbuilder.Transaction, idx int, redeemScript []byte, privateKey *btcec.PrivateKey) error {
	script, err := signer.spendable(redeemScript, privateKey)
	if err != nil {
		return err
	}

	sig, err := txscript.RawTxInSignature(tx.Tx, idx, redeemScript, signHashType, privateKey)
	if err != nil {
		return err
	}

	tx.Tx.TxIn[idx].SignatureScript, err = script.UnlockingScript(sig)

	return err
}

// signKeyHashInput signs pay-to-pubkey-hash input.
func (signer *Signer) signKeyHashInput(tx *txbuilder.Transaction, idx int, pkScript []byte, privateKey *btcec.PrivateKey) error {
	if script := tx.Inputs[idx].UTXO.Script; len(script) != 0 {
		pkScript = script
	}

	sigScript, err := txscript.SignatureScript(tx.Tx, idx, pkScript, signHashType, privateKey, true)
	if err != nil {
		return err
	}

	tx.Tx.TxIn[idx].SignatureScript = sigScript

	return nil
}

// keyHashScript returns locking script of private key owner key-hash address.
func (signer *Signer) keyHashScript(privateKey *btcec.PrivateKey) ([]byte, error) {
	address, err := signer.SourceAddress(privateKey)
	if err != nil {
		return nil, err
	}

	decoded, err := btcutil.DecodeAddress(address, signer.networkParams)
	if err != nil {
		return nil, err
	}

	return txscript.PayToAddrScript(decoded)
}

// isOwnKey returns true if serialized compressed key belongs to private key.
// X-only keys are committed for Schnorr checksig ledgers and are not signable here.
func isOwnKey(serialized []byte, privateKey *btcec.PrivateKey) bool {
	return bytes.Equal(serialized, privateKey.PubKey().SerializeCompressed())
}

// ParsePrivateKey parses hex encoded 32 bytes private key.
func ParsePrivateKey(hexKey string) (*btcec.PrivateKey, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil || len(raw) != btcec.PrivKeyBytesLen {
		return nil, ErrInvalidPrivateKey
	}

	privateKey, _ := btcec.PrivKeyFromBytes(raw)
	if privateKey.Key.IsZero() {
		return nil, ErrInvalidPrivateKey
	}

	return privateKey, nil
}
