package canonical

import (
	"testing"
	"time"
)

func TestFingerprint_Deterministic(t *testing.T) {
	ts := time.Date(2023, 9, 1, 12, 0, 0, 0, time.UTC)
	sym := "GCC"

	f1 := TransferFields("0xabc", ts, "0xfrom", "0xto", "1.23", &sym)
	f2 := TransferFields("0xabc", ts, "0xfrom", "0xto", "1.23", &sym)

	h1 := Fingerprint(f1)
	h2 := Fingerprint(f2)
	if h1 != h2 {
		t.Errorf("same identity produced different fingerprints: %s != %s", h1, h2)
	}
	if len(h1) != 64 {
		t.Errorf("fingerprint length = %d, want 64", len(h1))
	}
}

func TestFingerprint_KeyOrderIndependent(t *testing.T) {
	// Build the same identity map in two different insertion orders.
	a := Fields{
		"tx_hash":      "0xabc",
		"datetime_utc": "2023-09-01T12:00:00Z",
		"from":         "0xfrom",
		"to":           "0xto",
		"value":        "1.23",
		"token_symbol": "GCC",
	}
	b := Fields{
		"token_symbol": "GCC",
		"value":        "1.23",
		"to":           "0xto",
		"from":         "0xfrom",
		"datetime_utc": "2023-09-01T12:00:00Z",
		"tx_hash":      "0xabc",
	}

	if Fingerprint(a) != Fingerprint(b) {
		t.Error("insertion order changed the fingerprint")
	}
}

func TestFingerprint_ExactDecimalText(t *testing.T) {
	ts := time.Date(2023, 9, 1, 12, 0, 0, 0, time.UTC)

	// "1.20" and "1.2" are numerically equal but textually distinct identities.
	h1 := Fingerprint(TransferFields("0xabc", ts, "a", "b", "1.20", nil))
	h2 := Fingerprint(TransferFields("0xabc", ts, "a", "b", "1.2", nil))
	if h1 == h2 {
		t.Error("\"1.20\" and \"1.2\" must not collapse to one fingerprint")
	}
}

func TestFingerprint_NilSymbolVsEmpty(t *testing.T) {
	ts := time.Date(2023, 9, 1, 12, 0, 0, 0, time.UTC)
	empty := ""

	h1 := Fingerprint(TransferFields("0xabc", ts, "a", "b", "1", nil))
	h2 := Fingerprint(TransferFields("0xabc", ts, "a", "b", "1", &empty))
	if h1 == h2 {
		t.Error("absent symbol and empty-string symbol must not collapse")
	}
}

func TestFingerprint_ContractKeyScoped(t *testing.T) {
	ts := time.Date(2023, 9, 1, 12, 0, 0, 0, time.UTC)

	// A token-transfer identity with a null contract is still a different
	// identity space than a wallet row without the key at all.
	wallet := TransferFields("0xabc", ts, "a", "b", "1", nil)
	token := TransferFields("0xabc", ts, "a", "b", "1", nil).WithContract(nil)

	if Fingerprint(wallet) == Fingerprint(token) {
		t.Error("token and wallet canonical forms must not share fingerprints")
	}
}

func TestFingerprint_TimezoneNormalized(t *testing.T) {
	loc := time.FixedZone("CEST", 2*60*60)
	local := time.Date(2023, 9, 1, 14, 0, 0, 0, loc)
	utc := time.Date(2023, 9, 1, 12, 0, 0, 0, time.UTC)

	h1 := Fingerprint(TransferFields("0xabc", local, "a", "b", "1", nil))
	h2 := Fingerprint(TransferFields("0xabc", utc, "a", "b", "1", nil))
	if h1 != h2 {
		t.Error("equal instants in different zones must produce one fingerprint")
	}
}
