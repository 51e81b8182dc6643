package keys

import (
	"errors"
	"strings"
	"testing"
)

func TestSpendingKeyDerivationIsDeterministic(t *testing.T) {
	var seed [SeedSize]byte
	for i := range seed {
		seed[i] = byte(i)
	}

	a := SpendingKeyFromSeed(seed)
	b := SpendingKeyFromSeed(seed)

	if a.Hex() != b.Hex() {
		t.Fatalf("same seed produced different keys: %s vs %s", a.Hex(), b.Hex())
	}
	askA, askB := a.SpendAuthorizingKey(), b.SpendAuthorizingKey()
	if !askA.Equal(&askB) {
		t.Fatal("same seed produced different spend authorizing keys")
	}
	if !a.PublicAddress().Equal(b.PublicAddress()) {
		t.Fatal("same seed produced different public addresses")
	}
}

func TestSpendingKeySecretsAreDistinct(t *testing.T) {
	key, err := GenerateSpendingKey()
	if err != nil {
		t.Fatalf("GenerateSpendingKey: %v", err)
	}

	ask, nsk := key.SpendAuthorizingKey(), key.ProofAuthorizingKey()
	if ask.Equal(&nsk) {
		t.Fatal("ask and nsk derived to the same scalar")
	}
	if ask.IsZero() || nsk.IsZero() {
		t.Fatal("derived a zero scalar")
	}
}

func TestSpendingKeyHexRoundTrip(t *testing.T) {
	key, err := GenerateSpendingKey()
	if err != nil {
		t.Fatalf("GenerateSpendingKey: %v", err)
	}

	decoded, err := SpendingKeyFromHex(key.Hex())
	if err != nil {
		t.Fatalf("SpendingKeyFromHex: %v", err)
	}
	if decoded.Hex() != key.Hex() {
		t.Fatalf("round trip changed the key: %s vs %s", decoded.Hex(), key.Hex())
	}
	if !decoded.PublicAddress().Equal(key.PublicAddress()) {
		t.Fatal("round trip changed the derived address")
	}
}

func TestSpendingKeyFromHexRejectsMalformedInput(t *testing.T) {
	cases := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"not hex", "zz" + strings.Repeat("00", 31)},
		{"short", strings.Repeat("ab", 16)},
		{"long", strings.Repeat("ab", 33)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := SpendingKeyFromHex(tc.in); !errors.Is(err, ErrInvalidKey) {
				t.Fatalf("want ErrInvalidKey, got %v", err)
			}
		})
	}
}

func TestPublicAddressHexRoundTrip(t *testing.T) {
	key, err := GenerateSpendingKey()
	if err != nil {
		t.Fatalf("GenerateSpendingKey: %v", err)
	}
	addr := key.PublicAddress()

	decoded, err := PublicAddressFromHex(addr.Hex())
	if err != nil {
		t.Fatalf("PublicAddressFromHex: %v", err)
	}
	if !decoded.Equal(addr) {
		t.Fatal("round trip changed the address")
	}
}

func TestPublicAddressFromBytesRejectsWrongLength(t *testing.T) {
	if _, err := PublicAddressFromBytes(make([]byte, 16)); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("want ErrInvalidAddress, got %v", err)
	}
}

func TestDistinctKeysYieldDistinctAddresses(t *testing.T) {
	a, err := GenerateSpendingKey()
	if err != nil {
		t.Fatalf("GenerateSpendingKey: %v", err)
	}
	b, err := GenerateSpendingKey()
	if err != nil {
		t.Fatalf("GenerateSpendingKey: %v", err)
	}
	if a.PublicAddress().Equal(b.PublicAddress()) {
		t.Fatal("independent keys produced the same address")
	}
}

func TestAddressFromIncomingViewKeyMatchesSpendingKey(t *testing.T) {
	key, err := GenerateSpendingKey()
	if err != nil {
		t.Fatalf("GenerateSpendingKey: %v", err)
	}
	derived := AddressFromIncomingViewKey(key.IncomingViewKey())
	if !derived.Equal(key.PublicAddress()) {
		t.Fatal("ivk derived a different address than the spending key")
	}
}
