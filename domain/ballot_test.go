package domain

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/vocdoni/maci-poll/crypto/field"
)

func TestGenBlankBallot(t *testing.T) {
	c := qt.New(t)
	b := GenBlankBallot(5)
	c.Assert(b.Nonce.IsZero(), qt.IsTrue)
	c.Assert(len(b.Votes), qt.Equals, 5)
	for _, v := range b.Votes {
		c.Assert(v.IsZero(), qt.IsTrue)
	}
}

func TestBallotCloneIndependent(t *testing.T) {
	c := qt.New(t)
	b := GenBlankBallot(3)
	clone := b.Clone()
	clone.Votes[0] = field.NewFromInt64(7)
	c.Assert(b.Votes[0].IsZero(), qt.IsTrue)
	c.Assert(clone.Votes[0].MathBigInt().Int64(), qt.Equals, int64(7))
}

func TestBallotEqual(t *testing.T) {
	c := qt.New(t)
	a := GenBlankBallot(3)
	b := GenBlankBallot(3)
	c.Assert(a.Equal(b), qt.IsTrue)

	b.Votes[1] = field.NewFromInt64(2)
	c.Assert(a.Equal(b), qt.IsFalse)
}

func TestBallotHashSensitiveToVotesAndNonce(t *testing.T) {
	c := qt.New(t)
	a := GenBlankBallot(5)
	b := a.Clone()
	c.Assert(a.Hash(1).Equal(b.Hash(1)), qt.IsTrue)

	b.Votes[2] = field.NewFromInt64(3)
	c.Assert(a.Hash(1).Equal(b.Hash(1)), qt.IsFalse)

	b2 := a.Clone()
	b2.Nonce = field.NewFromInt64(1)
	c.Assert(a.Hash(1).Equal(b2.Hash(1)), qt.IsFalse)
}
