// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package inscriptions

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"

	"github.com/BoostyLabs/inscriber/ledger"
)

// KeyEncoding defines how public key is pushed into redeem script.
type KeyEncoding int

const (
	// KeyCompressed pushes 33 bytes compressed key, verified by ECDSA checksig.
	KeyCompressed KeyEncoding = iota
	// KeyXOnly pushes 32 bytes x-only key, for ledgers with Schnorr checksig.
	KeyXOnly
)

// ParseKeyEncoding returns KeyEncoding by name.
func ParseKeyEncoding(name string) (KeyEncoding, error) {
	switch strings.ToLower(name) {
	case "", "compressed":
		return KeyCompressed, nil
	case "xonly", "x-only", "schnorr":
		return KeyXOnly, nil
	default:
		return 0, fmt.Errorf("unknown key encoding %q", name)
	}
}

// String returns encoding name.
func (e KeyEncoding) String() string {
	if e == KeyXOnly {
		return "xonly"
	}

	return "compressed"
}

// ErrScriptTooLarge defines that redeem script cannot be pushed by unlocking script.
var ErrScriptTooLarge = fmt.Errorf("%w: redeem script too large", ledger.ErrEncoding)

// Script is a redeem script with embedded envelope.
//
//	<pubkey> OP_CHECKSIG OP_FALSE OP_IF <tag> <version> <payload> OP_ENDIF
//
// The conditional is never executed, so the envelope is committed data only,
// spendable by the signature check in front of it.
type Script struct {
	redeem []byte
}

// BuildRedeemScript builds redeem script committing to envelope, spendable by publicKey owner.
func BuildRedeemScript(publicKey *btcec.PublicKey, envelope Envelope, encoding KeyEncoding) (*Script, error) {
	if publicKey == nil {
		return nil, fmt.Errorf("%w: nil public key", ledger.ErrEncoding)
	}

	payload, err := envelope.EncodePayload()
	if err != nil {
		return nil, err
	}

	var serializedKey []byte
	switch encoding {
	case KeyXOnly:
		serializedKey = schnorr.SerializePubKey(publicKey)
	default:
		serializedKey = publicKey.SerializeCompressed()
	}

	redeem, err := txscript.NewScriptBuilder().
		AddData(serializedKey).
		AddOp(txscript.OP_CHECKSIG).
		AddOp(txscript.OP_FALSE).
		AddOp(txscript.OP_IF).
		AddData([]byte(envelope.Tag)).
		AddInt64(envelope.Version).
		AddData(payload).
		AddOp(txscript.OP_ENDIF).
		Script()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ledger.ErrEncoding, err)
	}

	if len(redeem) > txscript.MaxScriptElementSize {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrScriptTooLarge, len(redeem), txscript.MaxScriptElementSize)
	}

	return &Script{redeem: redeem}, nil
}

// ScriptFromBytes wraps existing redeem script after checking its layout.
func ScriptFromBytes(redeem []byte) (*Script, *Parsed, error) {
	parsed, err := ParseRedeemScript(redeem)
	if err != nil {
		return nil, nil, err
	}

	return &Script{redeem: append([]byte(nil), redeem...)}, parsed, nil
}

// Bytes returns redeem script bytes.
func (s *Script) Bytes() []byte {
	return append([]byte(nil), s.redeem...)
}

// LockingScript returns pay-to-script-hash locking script: OP_HASH160 <hash160(redeem)> OP_EQUAL.
func (s *Script) LockingScript() ([]byte, error) {
	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_HASH160).
		AddData(btcutil.Hash160(s.redeem)).
		AddOp(txscript.OP_EQUAL).
		Script()
}

// Address returns script-hash address of the redeem script.
func (s *Script) Address(networkParams *chaincfg.Params) (btcutil.Address, error) {
	locking, err := s.LockingScript()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ledger.ErrEncoding, err)
	}

	return DeriveAddress(locking, networkParams)
}

// UnlockingScript returns signature script revealing redeem script: <signature> <redeem>.
func (s *Script) UnlockingScript(signature []byte) ([]byte, error) {
	if len(signature) == 0 {
		return nil, fmt.Errorf("%w: empty signature", ledger.ErrEncoding)
	}

	script, err := txscript.NewScriptBuilder().
		AddData(signature).
		AddData(s.redeem).
		Script()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ledger.ErrEncoding, err)
	}

	return script, nil
}

// DeriveAddress returns address of pay-to-script-hash locking script.
func DeriveAddress(lockingScript []byte, networkParams *chaincfg.Params) (btcutil.Address, error) {
	class, addrs, _, err := txscript.ExtractPkScriptAddrs(lockingScript, networkParams)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ledger.ErrEncoding, err)
	}

	if class != txscript.ScriptHashTy || len(addrs) != 1 {
		return nil, fmt.Errorf("%w: not a script-hash locking script", ledger.ErrEncoding)
	}

	return addrs[0], nil
}
