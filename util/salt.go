// Package util provides the injectable randomness Poll needs for salt
// generation, following the RandomBytes/RandomInt style of
// util/utils.go, generalized from raw byte helpers to a pluggable
// SaltSource so tests can swap in a deterministic counter.
package util

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/vocdoni/maci-poll/crypto/field"
)

// RandomBytes returns n cryptographically random bytes.
func RandomBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("util: reading random bytes: %v", err))
	}
	return b
}

// RandomFieldElement returns a field element drawn from 32 random bytes
// reduced modulo SNARK_FIELD_SIZE.
func RandomFieldElement() *field.F {
	return field.NewFromBigInt(new(big.Int).SetBytes(RandomBytes(32)))
}

// SaltSource is the pluggable source of salts every randomized commitment
// in Poll draws from (newSbSalt, result/per-VO/spent-credit/subsidy
// salts). Production uses CryptoRandSaltSource; tests inject
// CounterSaltSource for bit-identical, reproducible runs.
type SaltSource interface {
	// NextSalt returns the next salt, guaranteed nonzero and distinct
	// from previous (the Poll engine additionally enforces "!= old
	// salt for this slot" at the call site where that matters).
	NextSalt() *field.F
}

// CryptoRandSaltSource draws salts from crypto/rand, the production
// default.
type CryptoRandSaltSource struct{}

func (CryptoRandSaltSource) NextSalt() *field.F {
	for {
		f := RandomFieldElement()
		if !f.IsZero() {
			return f
		}
	}
}

// CounterSaltSource returns 1, 2, 3, ... — a fully deterministic source
// for tests that need reproducible commitments and roots.
type CounterSaltSource struct {
	next int64
}

// NewCounterSaltSource returns a CounterSaltSource starting at 1.
func NewCounterSaltSource() *CounterSaltSource {
	return &CounterSaltSource{next: 1}
}

func (s *CounterSaltSource) NextSalt() *field.F {
	v := field.NewFromInt64(s.next)
	s.next++
	return v
}
