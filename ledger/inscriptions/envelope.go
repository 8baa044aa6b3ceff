// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package inscriptions

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/btcsuite/btcd/txscript"

	"github.com/BoostyLabs/inscriber/ledger"
)

// Op defines token protocol operation carried by an envelope.
type Op string

const (
	// OpMint defines mint operation.
	OpMint Op = "mint"
	// OpTransfer defines transfer operation.
	OpTransfer Op = "transfer"
)

const (
	// DefaultTag defines protocol tag literal pushed into the envelope.
	DefaultTag = "kasplex"
	// DefaultStandard defines token standard name set in payloads.
	DefaultStandard = "krc-20"
)

// MaxPayloadSize defines maximum serialized payload size, limited by single data push.
const MaxPayloadSize = txscript.MaxScriptElementSize

var (
	// ErrPayloadTooLarge defines that serialized payload exceeds MaxPayloadSize.
	ErrPayloadTooLarge = fmt.Errorf("%w: payload too large", ledger.ErrEncoding)
	// ErrEmptyPayload defines that envelope has nothing to commit to.
	ErrEmptyPayload = fmt.Errorf("%w: empty payload", ledger.ErrEncoding)
)

// Protocol defines envelope settings shared by all operations.
type Protocol struct {
	Tag      string
	Version  int64
	Standard string
}

// DefaultProtocol returns kasplex krc-20 protocol settings.
func DefaultProtocol() Protocol {
	return Protocol{
		Tag:      DefaultTag,
		Version:  0,
		Standard: DefaultStandard,
	}
}

// Envelope describes protocol data embedded into redeem script.
type Envelope struct {
	Tag     string
	Version int64
	Payload any // JSON serializable record.
}

// MintPayload describes mint operation record.
// Fields order is part of the committed bytes and must not change.
type MintPayload struct {
	Op       Op     `json:"op"`
	Standard string `json:"p"`
	Ticker   string `json:"tick"`
}

// TransferPayload describes transfer operation record.
// Fields order is part of the committed bytes and must not change.
type TransferPayload struct {
	Standard string `json:"p"`
	Op       Op     `json:"op"`
	Ticker   string `json:"tick"`
	Amount   string `json:"amt"` // in token base units.
	To       string `json:"to"`
}

// Mint returns mint envelope for ticker.
func (p Protocol) Mint(ticker string) Envelope {
	return Envelope{
		Tag:     p.Tag,
		Version: p.Version,
		Payload: MintPayload{Op: OpMint, Standard: p.Standard, Ticker: ticker},
	}
}

// Transfer returns transfer envelope of amount token base units to recipient.
func (p Protocol) Transfer(ticker, amount, to string) Envelope {
	return Envelope{
		Tag:     p.Tag,
		Version: p.Version,
		Payload: TransferPayload{Standard: p.Standard, Op: OpTransfer, Ticker: ticker, Amount: amount, To: to},
	}
}

// EncodePayload returns canonical payload bytes: compact JSON without HTML escaping.
func (e Envelope) EncodePayload() ([]byte, error) {
	if e.Tag == "" {
		return nil, fmt.Errorf("%w: empty protocol tag", ledger.ErrEncoding)
	}

	if e.Payload == nil {
		return nil, ErrEmptyPayload
	}

	buf := bytes.NewBuffer(nil)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(e.Payload); err != nil {
		return nil, fmt.Errorf("%w: %w", ledger.ErrEncoding, err)
	}

	payload := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
	switch {
	case len(payload) == 0:
		return nil, ErrEmptyPayload
	case len(payload) > MaxPayloadSize:
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrPayloadTooLarge, len(payload), MaxPayloadSize)
	}

	return payload, nil
}
