package poseidon

import (
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/maci-poll/crypto/field"
)

func TestHashDeterministic(t *testing.T) {
	c := qt.New(t)
	in := [5]*field.F{
		field.NewFromInt64(1), field.NewFromInt64(2), field.NewFromInt64(3),
		field.NewFromInt64(4), field.NewFromInt64(5),
	}
	h1 := Hash5(in)
	h2 := Hash5(in)
	c.Assert(h1.Equal(h2), qt.IsTrue)
	c.Assert(h1.IsZero(), qt.IsFalse)
}

func TestHashLeftRightIsOrderSensitive(t *testing.T) {
	c := qt.New(t)
	a, b := field.NewFromInt64(11), field.NewFromInt64(22)
	c.Assert(HashLeftRight(a, b).Equal(HashLeftRight(b, a)), qt.IsFalse)
}

func TestSha256HashDeterministic(t *testing.T) {
	c := qt.New(t)
	a := field.NewFromInt64(42)
	b := field.NewFromInt64(7)
	c.Assert(Sha256Hash(a, b).Equal(Sha256Hash(a, b)), qt.IsTrue)
	c.Assert(Sha256Hash(a, b).Equal(Sha256Hash(b, a)), qt.IsFalse)
}
