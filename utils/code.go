package utils

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
)

// Alphabet for referral codes — no 0/O/1/I to keep codes typeable from a
// printed card.
const codeAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// NewReferralCode generates a random 8-character referral code.
func NewReferralCode() string {
	buf := make([]byte, 8)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand failing means the host is broken; fall back to a
			// hex nonce so signup does not stall.
			return NewNonce()[:8]
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf)
}

// NewNonce returns a 16-byte random hex string used to make token payloads
// unguessable even for identical claims.
func NewNonce() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
