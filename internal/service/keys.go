package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// KeySet holds the purpose-specific keys derived from the master key.
type KeySet struct {
	Encryption  []byte // AES-256-GCM for KYC fields and payout details
	Challenge   []byte // challenge code digests
	Fingerprint []byte // duplicate payout method detection
}

// DeriveKeys expands a 32-byte hex master key into independent subkeys with HKDF-SHA256.
func DeriveKeys(masterHex string) (*KeySet, error) {
	master, err := hex.DecodeString(masterHex)
	if err != nil {
		return nil, fmt.Errorf("decoding master key: %w", err)
	}
	if len(master) != 32 {
		return nil, fmt.Errorf("master key must be 32 bytes, got %d", len(master))
	}

	derive := func(info string) ([]byte, error) {
		key := make([]byte, 32)
		if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte(info)), key); err != nil {
			return nil, fmt.Errorf("deriving %s key: %w", info, err)
		}
		return key, nil
	}

	ks := &KeySet{}
	if ks.Encryption, err = derive("seller-payout/encryption"); err != nil {
		return nil, err
	}
	if ks.Challenge, err = derive("seller-payout/challenge"); err != nil {
		return nil, err
	}
	if ks.Fingerprint, err = derive("seller-payout/fingerprint"); err != nil {
		return nil, err
	}
	return ks, nil
}

// KeyedDigest computes hex HMAC-SHA256 digests under a fixed key.
type KeyedDigest struct {
	key []byte
}

// NewKeyedDigest creates a digest bound to key.
func NewKeyedDigest(key []byte) *KeyedDigest {
	return &KeyedDigest{key: key}
}

// Sum digests parts joined by "|".
func (d *KeyedDigest) Sum(parts ...string) string {
	mac := hmac.New(sha256.New, d.key)
	mac.Write([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(mac.Sum(nil))
}
