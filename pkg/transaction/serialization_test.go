package transaction

import (
	"bytes"
	"testing"
)

// postFullTransaction posts one spend, one payment and a change receipt,
// exercising every wire field.
func postFullTransaction(t *testing.T) *Transaction {
	t.Helper()

	spender := generateKey(t)
	receiver := generateKey(t)
	input, witness := spendableNote(t, spender, 40)

	b := newBuilder(t)
	if err := b.Spend(spender, input, witness); err != nil {
		t.Fatalf("Spend: %v", err)
	}
	if err := b.Receive(spender, makeNote(t, receiver.PublicAddress(), 15, "wire")); err != nil {
		t.Fatalf("Receive: %v", err)
	}
	tx, err := b.Post(spender, spender.PublicAddress(), 2)
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	return tx
}

func TestSerializeRoundTrip(t *testing.T) {
	tx := postFullTransaction(t)

	raw, err := tx.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	decoded, err := Deserialize(raw)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}

	again, err := decoded.Serialize()
	if err != nil {
		t.Fatalf("re-Serialize: %v", err)
	}
	if !bytes.Equal(raw, again) {
		t.Fatal("re-serialization is not byte-identical")
	}

	if decoded.Fee() != tx.Fee() {
		t.Fatalf("Fee = %d, want %d", decoded.Fee(), tx.Fee())
	}
	if decoded.SpendsLength() != tx.SpendsLength() {
		t.Fatalf("SpendsLength = %d, want %d", decoded.SpendsLength(), tx.SpendsLength())
	}
	if decoded.ReceiptsLength() != tx.ReceiptsLength() {
		t.Fatalf("ReceiptsLength = %d, want %d", decoded.ReceiptsLength(), tx.ReceiptsLength())
	}
	if decoded.Hash() != tx.Hash() {
		t.Fatal("Hash changed across the round trip")
	}
	if decoded.Signature() != tx.Signature() {
		t.Fatal("Signature changed across the round trip")
	}
	if !decoded.Verify() {
		t.Fatal("Verify = false after the round trip")
	}
}

func TestSerializeHeaderBytes(t *testing.T) {
	tx := postFullTransaction(t)
	raw, err := tx.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	expected := []byte{
		0x53, 0x54, 0x58, 0x31, // "STX1"
		0x01, 0x00, 0x00, 0x00, // version 1
		0x02, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, // fee 2
		0x01, // one spend
		0x02, // two receipts: the payment and the change
	}
	if !bytes.Equal(raw[:len(expected)], expected) {
		t.Fatalf("header = %x, want %x", raw[:len(expected)], expected)
	}

	// A miner's fee is negative and rides the wire in two's complement.
	key := generateKey(t)
	b := newBuilder(t)
	if err := b.Receive(key, makeNote(t, key.PublicAddress(), 10, "")); err != nil {
		t.Fatalf("Receive: %v", err)
	}
	minted, err := b.PostMinersFee()
	if err != nil {
		t.Fatalf("PostMinersFee: %v", err)
	}
	raw, err = minted.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	expected = []byte{
		0x53, 0x54, 0x58, 0x31, // "STX1"
		0x01, 0x00, 0x00, 0x00, // version 1
		0xf6, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, // fee -10
		0x00, // no spends
		0x01, // one receipt
	}
	if !bytes.Equal(raw[:len(expected)], expected) {
		t.Fatalf("header = %x, want %x", raw[:len(expected)], expected)
	}
}

func TestDeserializeRejectsMalformedInput(t *testing.T) {
	tx := postFullTransaction(t)
	raw, err := tx.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	cases := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"empty", func(b []byte) []byte {
			return nil
		}},
		{"bad magic", func(b []byte) []byte {
			b[0] ^= 0xFF
			return b
		}},
		{"unsupported version", func(b []byte) []byte {
			b[4] = 0x7F
			return b
		}},
		{"truncated", func(b []byte) []byte {
			return b[:len(b)-9]
		}},
		{"trailing bytes", func(b []byte) []byte {
			return append(b, 0x00)
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mutated := tc.mutate(append([]byte(nil), raw...))
			_, err := Deserialize(mutated)
			expectCode(t, err, CodeIOError)
		})
	}
}

func TestVerifyFailsOnSerializedCorruption(t *testing.T) {
	tx := postFullTransaction(t)
	raw, err := tx.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	// Flip one byte inside the first spend proof. The proof is opaque to
	// the parser, so the transaction still decodes; only Verify can tell.
	// The spend section starts after magic (4), version (4), fee (8) and
	// the two single-byte counts, then the proof's own length prefix.
	corrupted := append([]byte(nil), raw...)
	corrupted[24] ^= 0x01

	decoded, err := Deserialize(corrupted)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if decoded.Verify() {
		t.Fatal("Verify = true for a corrupted proof")
	}

	// Flip one byte in the binding signature at the tail.
	corrupted = append([]byte(nil), raw...)
	corrupted[len(corrupted)-1] ^= 0x01

	decoded, err = Deserialize(corrupted)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if decoded.Verify() {
		t.Fatal("Verify = true for a corrupted binding signature")
	}
}
