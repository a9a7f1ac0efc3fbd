// Package auth provides password hashing and token issuance.
package auth

import (
	"errors"
	"fmt"
	"strings"
)

// Supported password hashing algorithms.
const (
	AlgoBcrypt   = "bcrypt"
	AlgoArgon2id = "argon2id"
)

var (
	// ErrInvalidHash indicates the hash format is invalid.
	ErrInvalidHash = errors.New("invalid hash format")
	// ErrIncompatibleVersion indicates the hash version is not supported.
	ErrIncompatibleVersion = errors.New("incompatible argon2 version")
)

// Hasher produces and checks one-way salted password digests.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, digest string) (bool, error)
}

// MultiHasher hashes with one algorithm and verifies digests produced by any
// supported algorithm, so switching PASSWORD_HASH keeps old accounts working.
type MultiHasher struct {
	primary Hasher
	bcrypt  *BcryptHasher
	argon2  *Argon2Hasher
}

// NewHasher returns a MultiHasher whose Hash uses algo.
func NewHasher(algo string, bcryptCost int) (*MultiHasher, error) {
	h := &MultiHasher{
		bcrypt: NewBcryptHasher(bcryptCost),
		argon2: NewArgon2Hasher(),
	}

	switch algo {
	case AlgoBcrypt, "":
		h.primary = h.bcrypt
	case AlgoArgon2id:
		h.primary = h.argon2
	default:
		return nil, fmt.Errorf("unsupported password hash algorithm %q", algo)
	}

	return h, nil
}

// Hash implements Hasher.
func (h *MultiHasher) Hash(password string) (string, error) {
	return h.primary.Hash(password)
}

// Verify implements Hasher, picking the algorithm from the digest prefix.
func (h *MultiHasher) Verify(password, digest string) (bool, error) {
	switch {
	case strings.HasPrefix(digest, argon2Prefix):
		return h.argon2.Verify(password, digest)
	case strings.HasPrefix(digest, "$2a$"), strings.HasPrefix(digest, "$2b$"), strings.HasPrefix(digest, "$2y$"):
		return h.bcrypt.Verify(password, digest)
	default:
		return false, ErrInvalidHash
	}
}
