// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package inscriptions

import (
	"encoding/json"
	"fmt"

	"github.com/btcsuite/btcd/txscript"

	"github.com/BoostyLabs/inscriber/ledger"
)

// ErrMalformedInscription defines that script is not a redeem script with an envelope.
var ErrMalformedInscription = fmt.Errorf("%w: inscription is malformed", ledger.ErrEncoding)

// maxScriptNumLen defines maximum length of script number data push.
const maxScriptNumLen = 8

// Parsed describes envelope data recovered from a redeem script.
type Parsed struct {
	PublicKey []byte
	Tag       string
	Version   int64
	Payload   []byte
}

// Decode unmarshals payload into v.
func (p *Parsed) Decode(v any) error {
	if err := json.Unmarshal(p.Payload, v); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedInscription, err)
	}

	return nil
}

// ParseUnlockingScript parses reveal signature script <signature> <redeem>.
func ParseUnlockingScript(sigScript []byte) (signature []byte, parsed *Parsed, err error) {
	var pushes [][]byte
	tokenizer := txscript.MakeScriptTokenizer(0, sigScript)
	for tokenizer.Next() {
		if !isDataPush(tokenizer.Opcode()) {
			return nil, nil, ErrMalformedInscription
		}

		pushes = append(pushes, tokenizer.Data())
	}
	if tokenizer.Err() != nil || len(pushes) != 2 {
		return nil, nil, ErrMalformedInscription
	}

	parsed, err = ParseRedeemScript(pushes[1])
	if err != nil {
		return nil, nil, err
	}

	return pushes[0], parsed, nil
}

// ParseRedeemScript parses redeem script built by BuildRedeemScript.
// Payload split into several data pushes is concatenated.
func ParseRedeemScript(script []byte) (*Parsed, error) {
	tokenizer := txscript.MakeScriptTokenizer(0, script)
	next := func() bool { return tokenizer.Next() }

	parsed := new(Parsed)

	// <pubkey>.
	if !next() || !isDataPush(tokenizer.Opcode()) {
		return nil, ErrMalformedInscription
	}
	if l := len(tokenizer.Data()); l != 33 && l != 32 {
		return nil, ErrMalformedInscription
	}
	parsed.PublicKey = tokenizer.Data()

	// OP_CHECKSIG OP_FALSE OP_IF.
	for _, op := range []byte{txscript.OP_CHECKSIG, txscript.OP_FALSE, txscript.OP_IF} {
		if !next() || tokenizer.Opcode() != op {
			return nil, ErrMalformedInscription
		}
	}

	// <tag>.
	if !next() || !isDataPush(tokenizer.Opcode()) || len(tokenizer.Data()) == 0 {
		return nil, ErrMalformedInscription
	}
	parsed.Tag = string(tokenizer.Data())

	// <version>.
	if !next() {
		return nil, ErrMalformedInscription
	}
	version, err := scriptNumber(tokenizer.Opcode(), tokenizer.Data())
	if err != nil {
		return nil, err
	}
	parsed.Version = version

	// <payload>... OP_ENDIF.
	closed := false
	for next() {
		if tokenizer.Opcode() == txscript.OP_ENDIF {
			closed = true
			break
		}
		if !isDataPush(tokenizer.Opcode()) {
			return nil, ErrMalformedInscription
		}

		parsed.Payload = append(parsed.Payload, tokenizer.Data()...)
	}

	if !closed || next() || tokenizer.Err() != nil || len(parsed.Payload) == 0 {
		return nil, ErrMalformedInscription
	}

	return parsed, nil
}

// isDataPush returns true if opcode pushes data, including OP_0.
func isDataPush(op byte) bool {
	return op <= txscript.OP_PUSHDATA4
}

// scriptNumber decodes small integer opcode or minimally encoded number push.
func scriptNumber(op byte, data []byte) (int64, error) {
	switch {
	case op == txscript.OP_0:
		return 0, nil
	case op == txscript.OP_1NEGATE:
		return -1, nil
	case op >= txscript.OP_1 && op <= txscript.OP_16:
		return int64(op - (txscript.OP_1 - 1)), nil
	case isDataPush(op) && len(data) > 0 && len(data) <= maxScriptNumLen:
		var result int64
		for i, b := range data {
			result |= int64(b) << uint(8*i)
		}

		// sign bit of the most significant byte.
		if data[len(data)-1]&0x80 != 0 {
			result &= ^(int64(0x80) << uint(8*(len(data)-1)))
			result = -result
		}

		return result, nil
	default:
		return 0, ErrMalformedInscription
	}
}
