package exporter

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// PseudonymLength is the number of hex characters kept from the digest.
const PseudonymLength = 12

// Pseudonymizer maps email addresses to short stable tokens. The same salt
// always yields the same token, so exports of one run can be joined.
type Pseudonymizer struct {
	key []byte
}

// NewPseudonymizer keys the hash with salt. Salts longer than the BLAKE2b
// key limit are first reduced to a 32 byte digest.
func NewPseudonymizer(salt string) *Pseudonymizer {
	key := []byte(salt)
	if len(key) > blake2b.Size {
		sum := blake2b.Sum256(key)
		key = sum[:]
	}
	return &Pseudonymizer{key: key}
}

// Hash returns the pseudonym of email. Empty input stays empty.
func (p *Pseudonymizer) Hash(email string) string {
	if email == "" {
		return ""
	}
	h, err := blake2b.New256(p.key)
	if err != nil {
		// key length is bounded in NewPseudonymizer
		panic(err)
	}
	h.Write([]byte(email))
	return hex.EncodeToString(h.Sum(nil))[:PseudonymLength]
}
