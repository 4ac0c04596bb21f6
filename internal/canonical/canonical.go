// Package canonical builds the order-independent identity form of an imported
// row and derives its content fingerprint.
package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// TimeLayout is the fixed textual form timestamps take inside the canonical
// map. Always rendered in UTC.
const TimeLayout = time.RFC3339

// Fields is the canonical identity map of one row. Values are either strings
// or nil; nil serializes as an explicit JSON null, which keeps "column absent"
// distinguishable from "column empty".
type Fields map[string]any

// TransferFields builds the shared identity map for a transfer row.
// The amount is the exact decimal text as exported: "1.20" and "1.2" are
// different identities even though they compare numerically equal.
func TransferFields(txHash string, ts time.Time, from, to, amount string, tokenSymbol *string) Fields {
	return Fields{
		"tx_hash":      txHash,
		"datetime_utc": ts.UTC().Format(TimeLayout),
		"from":         from,
		"to":           to,
		"value":        amount,
		"token_symbol": nullable(tokenSymbol),
	}
}

// WithContract adds the token contract column carried by token-transfer
// exports. Wallet exports have no such column and never set this key.
func (f Fields) WithContract(contract *string) Fields {
	f["token_contract"] = nullable(contract)
	return f
}

// Fingerprint serializes the fields with lexicographically sorted keys and
// hashes the bytes with SHA-256. Returns the hex digest (64 characters).
func Fingerprint(f Fields) string {
	// json.Marshal sorts map keys, so insertion order never leaks into the hash.
	data, err := json.Marshal(f)
	if err != nil {
		// Fields only ever holds strings and nils; Marshal cannot fail on them.
		panic("canonical: marshal fields: " + err.Error())
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
