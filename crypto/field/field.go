// Package field provides the F element used throughout the poll state
// machine: an unsigned integer modulo the BN254 scalar field prime
// (SNARK_FIELD_SIZE). It mirrors the teacher's types.BigInt wrapper, but
// additionally knows how to reduce into the field and how to compare
// values in *signed* big-integer space before reduction, which the
// voice-credit check requires.
package field

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/fxamacker/cbor/v2"
)

// SNARKFieldSize is the BN254 scalar field modulus all F values live in.
var SNARKFieldSize = fr.Modulus()

// F is a field element, always kept reduced into [0, SNARKFieldSize).
type F big.Int

// Zero returns the additive identity.
func Zero() *F { return NewFromInt64(0) }

// NewFromInt64 builds an F from a small signed integer, reducing it into the field.
func NewFromInt64(x int64) *F {
	return new(F).SetBigInt(big.NewInt(x))
}

// NewFromBigInt builds an F from a *big.Int, reducing it into the field.
func NewFromBigInt(x *big.Int) *F {
	return new(F).SetBigInt(x)
}

// MathBigInt returns the underlying *big.Int (already reduced).
func (f *F) MathBigInt() *big.Int {
	return (*big.Int)(f)
}

// SetBigInt reduces x into the field and stores it in f.
func (f *F) SetBigInt(x *big.Int) *F {
	z := new(big.Int).Mod(x, SNARKFieldSize)
	*f = F(*z)
	return f
}

// Clone returns a deep copy.
func (f *F) Clone() *F {
	if f == nil {
		return Zero()
	}
	return new(F).SetBigInt(f.MathBigInt())
}

// Equal reports whether f and g hold the same reduced value.
func (f *F) Equal(g *F) bool {
	if f == nil || g == nil {
		return f == g
	}
	return f.MathBigInt().Cmp(g.MathBigInt()) == 0
}

// IsZero reports whether f is the additive identity.
func (f *F) IsZero() bool {
	return f.MathBigInt().Sign() == 0
}

// Cmp compares f and g as reduced unsigned values.
func (f *F) Cmp(g *F) int {
	return f.MathBigInt().Cmp(g.MathBigInt())
}

// LessThan reports whether f < g.
func (f *F) LessThan(g *F) bool {
	return f.Cmp(g) < 0
}

// Add returns f+g reduced into the field.
func Add(f, g *F) *F {
	z := new(big.Int).Add(f.MathBigInt(), g.MathBigInt())
	return new(F).SetBigInt(z)
}

// Mul returns f*g reduced into the field.
func Mul(f, g *F) *F {
	z := new(big.Int).Mul(f.MathBigInt(), g.MathBigInt())
	return new(F).SetBigInt(z)
}

// Sub returns f-g reduced into the field (wrapping modulo the field size).
func Sub(f, g *F) *F {
	z := new(big.Int).Sub(f.MathBigInt(), g.MathBigInt())
	return new(F).SetBigInt(z)
}

// SignedInt returns the value of f interpreted as an unsigned residue,
// as a plain *big.Int with no further reduction. Used to build signed
// integer expressions (see SignedExprNegative) before they are reduced.
func (f *F) SignedInt() *big.Int {
	return new(big.Int).Set(f.MathBigInt())
}

// SignedExprNegative evaluates balance + a*a - b*b as integers in signed
// big-integer space (never reduced mod p) and reports whether the result
// is negative. This is the "credits_left < 0" check of the command state
// machine: it must happen before any modular reduction, or a balance that
// wraps around the field would hide an over-spend.
func SignedExprNegative(balance, a, b *F) bool {
	aa := new(big.Int).Mul(a.SignedInt(), a.SignedInt())
	bb := new(big.Int).Mul(b.SignedInt(), b.SignedInt())
	total := new(big.Int).Add(balance.SignedInt(), aa)
	total.Sub(total, bb)
	return total.Sign() < 0
}

// SignedExprValue evaluates balance + a*a - b*b as a signed integer and
// reduces the (necessarily non-negative, by prior use of
// SignedExprNegative) result into the field.
func SignedExprValue(balance, a, b *F) *F {
	aa := new(big.Int).Mul(a.SignedInt(), a.SignedInt())
	bb := new(big.Int).Mul(b.SignedInt(), b.SignedInt())
	total := new(big.Int).Add(balance.SignedInt(), aa)
	total.Sub(total, bb)
	return new(F).SetBigInt(total)
}

// String returns the base-10 decimal representation.
func (f *F) String() string {
	if f == nil {
		return "0"
	}
	return f.MathBigInt().String()
}

// MarshalText implements encoding.TextMarshaler: base-10 decimal string.
func (f *F) MarshalText() ([]byte, error) {
	if f == nil {
		return []byte("0"), nil
	}
	return []byte(f.MathBigInt().String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *F) UnmarshalText(data []byte) error {
	z, ok := new(big.Int).SetString(string(data), 10)
	if !ok {
		return fmt.Errorf("field: invalid decimal string %q", data)
	}
	f.SetBigInt(z)
	return nil
}

// MarshalJSON encodes f as a JSON string of its base-10 value, matching
// the persisted layout of §6 ("all big integers serialized as decimal
// strings").
func (f *F) MarshalJSON() ([]byte, error) {
	text, err := f.MarshalText()
	if err != nil {
		return nil, err
	}
	return []byte(`"` + string(text) + `"`), nil
}

// UnmarshalJSON accepts both a quoted decimal string and a bare JSON number.
func (f *F) UnmarshalJSON(data []byte) error {
	if len(data) >= 2 && data[0] == '"' && data[len(data)-1] == '"' {
		return f.UnmarshalText(data[1 : len(data)-1])
	}
	return f.UnmarshalText(data)
}

// MarshalCBOR encodes f as a CBOR text string, matching the teacher's
// BigInt CBOR support.
func (f *F) MarshalCBOR() ([]byte, error) {
	text, err := f.MarshalText()
	if err != nil {
		return nil, err
	}
	return cbor.Marshal(string(text))
}

// UnmarshalCBOR decodes a CBOR text string into f.
func (f *F) UnmarshalCBOR(data []byte) error {
	var s string
	if err := cbor.Unmarshal(data, &s); err != nil {
		return err
	}
	return f.UnmarshalText([]byte(s))
}

// StringifyBigInts renders a slice of F as base-10 decimal strings, the
// shape the circuit-input JSON documents expect for array fields.
func StringifyBigInts(xs []*F) []string {
	out := make([]string, len(xs))
	for i, x := range xs {
		out[i] = x.String()
	}
	return out
}
