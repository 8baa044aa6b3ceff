// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package inscriptions_test

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/stretchr/testify/require"

	"github.com/BoostyLabs/inscriber/ledger"
	"github.com/BoostyLabs/inscriber/ledger/inscriptions"
)

func TestEnvelope(t *testing.T) {
	protocol := inscriptions.DefaultProtocol()

	t.Run("mint payload", func(t *testing.T) {
		payload, err := protocol.Mint("KASP").EncodePayload()
		require.NoError(t, err)
		require.Equal(t, `{"op":"mint","p":"krc-20","tick":"KASP"}`, string(payload))
	})

	t.Run("transfer payload", func(t *testing.T) {
		payload, err := protocol.Transfer("KASP", "10000000000", "kaspa:qr<&>").EncodePayload()
		require.NoError(t, err)
		require.Equal(t, `{"p":"krc-20","op":"transfer","tick":"KASP","amt":"10000000000","to":"kaspa:qr<&>"}`, string(payload))
	})

	t.Run("too large", func(t *testing.T) {
		_, err := protocol.Mint(strings.Repeat("A", inscriptions.MaxPayloadSize)).EncodePayload()
		require.ErrorIs(t, err, inscriptions.ErrPayloadTooLarge)
		require.ErrorIs(t, err, ledger.ErrEncoding)
	})

	t.Run("not serializable", func(t *testing.T) {
		_, err := inscriptions.Envelope{Tag: "kasplex", Payload: make(chan int)}.EncodePayload()
		require.ErrorIs(t, err, ledger.ErrEncoding)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := inscriptions.Envelope{Tag: "kasplex"}.EncodePayload()
		require.ErrorIs(t, err, inscriptions.ErrEmptyPayload)

		_, err = inscriptions.Envelope{Payload: inscriptions.MintPayload{}}.EncodePayload()
		require.ErrorIs(t, err, ledger.ErrEncoding)
	})
}

func TestRedeemScript(t *testing.T) {
	privKey, _ := btcec.PrivKeyFromBytes(mustHex("0101010101010101010101010101010101010101010101010101010101010101"))
	pubKey := privKey.PubKey()
	protocol := inscriptions.DefaultProtocol()
	envelope := protocol.Mint("KASP")

	t.Run("construction order", func(t *testing.T) {
		script, err := inscriptions.BuildRedeemScript(pubKey, envelope, inscriptions.KeyCompressed)
		require.NoError(t, err)

		payload, err := envelope.EncodePayload()
		require.NoError(t, err)

		expected := bytes.NewBuffer(nil)
		expected.WriteByte(txscript.OP_DATA_33)
		expected.Write(pubKey.SerializeCompressed())
		expected.WriteByte(txscript.OP_CHECKSIG)
		expected.WriteByte(txscript.OP_FALSE)
		expected.WriteByte(txscript.OP_IF)
		expected.WriteByte(byte(len(inscriptions.DefaultTag)))
		expected.WriteString(inscriptions.DefaultTag)
		expected.WriteByte(txscript.OP_0)
		expected.WriteByte(byte(len(payload)))
		expected.Write(payload)
		expected.WriteByte(txscript.OP_ENDIF)

		require.Equal(t, expected.Bytes(), script.Bytes())
	})

	t.Run("x-only key", func(t *testing.T) {
		script, err := inscriptions.BuildRedeemScript(pubKey, envelope, inscriptions.KeyXOnly)
		require.NoError(t, err)
		require.EqualValues(t, txscript.OP_DATA_32, script.Bytes()[0])

		parsed, err := inscriptions.ParseRedeemScript(script.Bytes())
		require.NoError(t, err)
		require.Equal(t, pubKey.SerializeCompressed()[1:], parsed.PublicKey)
	})

	t.Run("address is deterministic", func(t *testing.T) {
		first, err := inscriptions.BuildRedeemScript(pubKey, envelope, inscriptions.KeyCompressed)
		require.NoError(t, err)
		second, err := inscriptions.BuildRedeemScript(pubKey, protocol.Mint("KASP"), inscriptions.KeyCompressed)
		require.NoError(t, err)

		firstAddr, err := first.Address(&chaincfg.TestNet3Params)
		require.NoError(t, err)
		secondAddr, err := second.Address(&chaincfg.TestNet3Params)
		require.NoError(t, err)
		require.Equal(t, firstAddr.EncodeAddress(), secondAddr.EncodeAddress())

		_, ok := firstAddr.(*btcutil.AddressScriptHash)
		require.True(t, ok)

		expected, err := btcutil.NewAddressScriptHash(first.Bytes(), &chaincfg.TestNet3Params)
		require.NoError(t, err)
		require.Equal(t, expected.EncodeAddress(), firstAddr.EncodeAddress())
	})

	t.Run("envelope change changes address", func(t *testing.T) {
		base, err := inscriptions.BuildRedeemScript(pubKey, envelope, inscriptions.KeyCompressed)
		require.NoError(t, err)
		baseAddr, err := base.Address(&chaincfg.MainNetParams)
		require.NoError(t, err)

		for _, changed := range []inscriptions.Envelope{
			protocol.Mint("KASQ"),
			protocol.Mint("kasp"),
			{Tag: "kasplez", Payload: envelope.Payload},
			{Tag: envelope.Tag, Version: 1, Payload: envelope.Payload},
		} {
			script, err := inscriptions.BuildRedeemScript(pubKey, changed, inscriptions.KeyCompressed)
			require.NoError(t, err)

			addr, err := script.Address(&chaincfg.MainNetParams)
			require.NoError(t, err)
			require.NotEqual(t, baseAddr.EncodeAddress(), addr.EncodeAddress())
		}

		otherKey, err := btcec.NewPrivateKey()
		require.NoError(t, err)
		script, err := inscriptions.BuildRedeemScript(otherKey.PubKey(), envelope, inscriptions.KeyCompressed)
		require.NoError(t, err)
		addr, err := script.Address(&chaincfg.MainNetParams)
		require.NoError(t, err)
		require.NotEqual(t, baseAddr.EncodeAddress(), addr.EncodeAddress())
	})

	t.Run("derive address requires locking script", func(t *testing.T) {
		script, err := inscriptions.BuildRedeemScript(pubKey, envelope, inscriptions.KeyCompressed)
		require.NoError(t, err)

		_, err = inscriptions.DeriveAddress(script.Bytes(), &chaincfg.MainNetParams)
		require.ErrorIs(t, err, ledger.ErrEncoding)
	})

	t.Run("too large for unlocking push", func(t *testing.T) {
		_, err := inscriptions.BuildRedeemScript(pubKey, protocol.Mint(strings.Repeat("A", 450)), inscriptions.KeyCompressed)
		require.ErrorIs(t, err, inscriptions.ErrScriptTooLarge)
	})

	t.Run("nil key", func(t *testing.T) {
		_, err := inscriptions.BuildRedeemScript(nil, envelope, inscriptions.KeyCompressed)
		require.ErrorIs(t, err, ledger.ErrEncoding)
	})
}

func TestParse(t *testing.T) {
	privKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	envelope := inscriptions.DefaultProtocol().Transfer("KASP", "500", "recipient")
	script, err := inscriptions.BuildRedeemScript(privKey.PubKey(), envelope, inscriptions.KeyCompressed)
	require.NoError(t, err)

	t.Run("redeem script", func(t *testing.T) {
		parsed, err := inscriptions.ParseRedeemScript(script.Bytes())
		require.NoError(t, err)
		require.Equal(t, privKey.PubKey().SerializeCompressed(), parsed.PublicKey)
		require.Equal(t, inscriptions.DefaultTag, parsed.Tag)
		require.Zero(t, parsed.Version)

		var payload inscriptions.TransferPayload
		require.NoError(t, parsed.Decode(&payload))
		require.Equal(t, envelope.Payload, payload)
	})

	t.Run("unlocking script", func(t *testing.T) {
		signature := bytes.Repeat([]byte{0x30}, 71)
		unlocking, err := script.UnlockingScript(signature)
		require.NoError(t, err)

		sig, parsed, err := inscriptions.ParseUnlockingScript(unlocking)
		require.NoError(t, err)
		require.Equal(t, signature, sig)
		require.Equal(t, inscriptions.DefaultTag, parsed.Tag)

		_, err = script.UnlockingScript(nil)
		require.ErrorIs(t, err, ledger.ErrEncoding)
	})

	t.Run("version numbers", func(t *testing.T) {
		for _, version := range []int64{1, 16, 17, 255, 1000, -1, -300} {
			envelope := inscriptions.Envelope{Tag: "kasplex", Version: version, Payload: map[string]string{"op": "mint"}}
			script, err := inscriptions.BuildRedeemScript(privKey.PubKey(), envelope, inscriptions.KeyCompressed)
			require.NoError(t, err)

			parsed, err := inscriptions.ParseRedeemScript(script.Bytes())
			require.NoError(t, err)
			require.Equal(t, version, parsed.Version)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		valid := script.Bytes()

		tests := [][]byte{
			nil,
			valid[:len(valid)-1],                  // no OP_ENDIF.
			append(append([]byte{}, valid...), 0), // trailing data.
			valid[34:],                            // no key.
			mustHex("51"),
		}
		for _, test := range tests {
			_, err := inscriptions.ParseRedeemScript(test)
			require.ErrorIs(t, err, inscriptions.ErrMalformedInscription, hex.EncodeToString(test))
		}

		_, _, err := inscriptions.ParseUnlockingScript(valid)
		require.ErrorIs(t, err, inscriptions.ErrMalformedInscription)
	})
}

func mustHex(s string) []byte {
	b, _ := hex.DecodeString(s)

	return b
}
