package field

import (
	"encoding/json"
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestAddSubMulReduce(t *testing.T) {
	c := qt.New(t)

	// SNARKFieldSize - 1
	top := new(F).SetBigInt(new(big.Int).Sub(SNARKFieldSize, big.NewInt(1)))
	one := NewFromInt64(1)

	sum := Add(top, one)
	c.Assert(sum.IsZero(), qt.IsTrue)

	diff := Sub(NewFromInt64(0), one)
	want := new(big.Int).Sub(SNARKFieldSize, big.NewInt(1))
	c.Assert(diff.MathBigInt().Cmp(want), qt.Equals, 0)

	prod := Mul(NewFromInt64(3), NewFromInt64(4))
	c.Assert(prod.MathBigInt().Int64(), qt.Equals, int64(12))
}

func TestJSONRoundTrip(t *testing.T) {
	c := qt.New(t)
	f := NewFromInt64(123456789)
	b, err := json.Marshal(f)
	c.Assert(err, qt.IsNil)
	c.Assert(string(b), qt.Equals, `"123456789"`)

	var back F
	c.Assert(json.Unmarshal(b, &back), qt.IsNil)
	c.Assert(back.Equal(f), qt.IsTrue)
}

func TestSignedExprNegative(t *testing.T) {
	c := qt.New(t)
	balance := NewFromInt64(100)
	oldWeight := NewFromInt64(0)
	newWeight := NewFromInt64(11)

	// 100 + 0 - 121 = -21 < 0
	c.Assert(SignedExprNegative(balance, oldWeight, newWeight), qt.IsTrue)

	newWeight = NewFromInt64(5)
	// 100 + 0 - 25 = 75 >= 0
	c.Assert(SignedExprNegative(balance, oldWeight, newWeight), qt.IsFalse)
	c.Assert(SignedExprValue(balance, oldWeight, newWeight).MathBigInt().Int64(), qt.Equals, int64(75))
}
