// Package poseidon wraps iden3's Poseidon permutation with the fixed-arity
// helpers the Poll subsystem needs: Hash3/Hash5 for Merkle nodes and
// partial commitments, HashLeftRight for two-element commitments, and
// Sha256Hash for the public-input hash fed to each circuit. This mirrors
// crypto/hash/poseidon/multiposeidon.go from the teacher, generalized from
// a chunked "any number of inputs" hash to the small fixed arities the
// quinary tree and commitment scheme use.
package poseidon

import (
	"crypto/sha256"
	"fmt"
	"math/big"

	iden3poseidon "github.com/iden3/go-iden3-crypto/poseidon"
	"github.com/vocdoni/maci-poll/crypto/field"
)

// NothingUpMySleeve is the zero value used to seed the message tree, a
// constant with no known discrete log with respect to the curve
// generator — the standard "nothing up my sleeve" number used by MACI.
var NothingUpMySleeve = field.NewFromBigInt(mustBig(
	"8370432830353022751713833565135785980866757267633941821328460903436894336785"))

func mustBig(s string) *big.Int {
	z, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("poseidon: invalid constant " + s)
	}
	return z
}

// Hash5 hashes exactly 5 field elements, zero-padding any that are nil.
func Hash5(in [5]*field.F) *field.F {
	return hashN(in[:])
}

// Hash3 hashes exactly 3 field elements.
func Hash3(in [3]*field.F) *field.F {
	return hashN(in[:])
}

// Hash2 hashes exactly 2 field elements, used by HashLeftRight.
func Hash2(a, b *field.F) *field.F {
	return hashN([]*field.F{a, b})
}

// HashLeftRight hashes two elements into one, the standard commitment
// construction used to bind a root (or subtotal) to a salt.
func HashLeftRight(left, right *field.F) *field.F {
	return Hash2(left, right)
}

// HashN hashes an arbitrary number of field elements (up to 16, iden3's
// single-permutation limit), chunking and re-hashing the chunk digests
// when there are more, the same construction as the teacher's
// MultiPoseidon (crypto/hash/poseidon/multiposeidon.go). Used for the
// message hash of §4.1, which commits to more elements (10 data words
// plus an ephemeral pubkey) than a fixed Hash5/Hash3 arity allows.
func HashN(in ...*field.F) *field.F {
	if len(in) <= 16 {
		return hashN(in)
	}
	var chunkHashes []*field.F
	for i := 0; i < len(in); i += 16 {
		end := i + 16
		if end > len(in) {
			end = len(in)
		}
		chunkHashes = append(chunkHashes, hashN(in[i:end]))
	}
	return hashN(chunkHashes)
}

func hashN(in []*field.F) *field.F {
	args := make([]*big.Int, len(in))
	for i, x := range in {
		if x == nil {
			args[i] = big.NewInt(0)
		} else {
			args[i] = x.MathBigInt()
		}
	}
	out, err := iden3poseidon.Hash(args)
	if err != nil {
		// Only programmer error (wrong arity/out of range input) can
		// reach here; the inputs are always pre-reduced field elements.
		panic(fmt.Sprintf("poseidon: hash failed: %v", err))
	}
	return field.NewFromBigInt(out)
}

// Sha256Hash hashes the concatenation of the given field elements'
// minimal big-endian byte encodings (no padding to a fixed width) with
// SHA-256 and reduces the digest modulo the field, the
// construction used to build each circuit's single public inputHash.
func Sha256Hash(in ...*field.F) *field.F {
	h := sha256.New()
	for _, x := range in {
		h.Write(x.MathBigInt().Bytes())
	}
	digest := h.Sum(nil)
	return field.NewFromBigInt(new(big.Int).SetBytes(digest))
}
