package macistate

import (
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/maci-poll/crypto/ecc/bjj"
	"github.com/vocdoni/maci-poll/crypto/field"
)

func TestSignUpGrowsStateTree(t *testing.T) {
	c := qt.New(t)
	ms := New(10)
	c.Assert(ms.NumSignUps(), qt.Equals, 0)
	rootBefore := ms.StateTree().Root()

	kp, err := bjj.GenKeypair()
	c.Assert(err, qt.IsNil)
	idx, err := ms.SignUp(kp.Pub, field.NewFromInt64(100), field.NewFromInt64(0))
	c.Assert(err, qt.IsNil)
	c.Assert(idx, qt.Equals, 1)
	c.Assert(ms.NumSignUps(), qt.Equals, 1)
	c.Assert(ms.StateTree().Root().Equal(rootBefore), qt.IsFalse)
}

func TestProcessingLockExclusivity(t *testing.T) {
	c := qt.New(t)
	ms := New(10)
	pollA := field.NewFromInt64(1)
	pollB := field.NewFromInt64(2)

	c.Assert(ms.AcquireProcessingLock(pollA), qt.IsNil)
	c.Assert(ms.AcquireProcessingLock(pollB), qt.Not(qt.IsNil))
	// re-entrant acquisition by the same poll is fine
	c.Assert(ms.AcquireProcessingLock(pollA), qt.IsNil)

	c.Assert(ms.ReleaseProcessingLock(pollB), qt.Not(qt.IsNil))
	c.Assert(ms.ReleaseProcessingLock(pollA), qt.IsNil)
	c.Assert(ms.IsLocked(), qt.IsFalse)
	c.Assert(ms.AcquireProcessingLock(pollB), qt.IsNil)
}
