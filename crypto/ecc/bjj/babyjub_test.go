package bjj

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/vocdoni/maci-poll/crypto/field"
)

func TestGenKeypairDerivesMatchingPublicKey(t *testing.T) {
	c := qt.New(t)
	kp, err := GenKeypair()
	c.Assert(err, qt.IsNil)
	c.Assert(kp.Priv.Public().Equal(kp.Pub), qt.IsTrue)
}

func TestEcdhSharedKeyIsSymmetric(t *testing.T) {
	c := qt.New(t)
	alice, err := GenKeypair()
	c.Assert(err, qt.IsNil)
	bob, err := GenKeypair()
	c.Assert(err, qt.IsNil)

	ax, ay, err := GenEcdhSharedKey(alice.Priv, bob.Pub)
	c.Assert(err, qt.IsNil)
	bx, by, err := GenEcdhSharedKey(bob.Priv, alice.Pub)
	c.Assert(err, qt.IsNil)

	c.Assert(ax.Equal(bx), qt.IsTrue)
	c.Assert(ay.Equal(by), qt.IsTrue)
}

func TestSignPoseidonVerifies(t *testing.T) {
	c := qt.New(t)
	kp, err := GenKeypair()
	c.Assert(err, qt.IsNil)

	msg := field.NewFromInt64(42)
	sig := kp.Priv.SignPoseidon(msg)
	c.Assert(kp.Pub.VerifyPoseidon(msg, sig), qt.IsTrue)

	other, err := GenKeypair()
	c.Assert(err, qt.IsNil)
	c.Assert(other.Pub.VerifyPoseidon(msg, sig), qt.IsFalse)

	c.Assert(kp.Pub.VerifyPoseidon(field.NewFromInt64(43), sig), qt.IsFalse)
}

func TestPubKeyCloneAndEqual(t *testing.T) {
	c := qt.New(t)
	kp, err := GenKeypair()
	c.Assert(err, qt.IsNil)

	clone := kp.Pub.Clone()
	c.Assert(kp.Pub.Equal(clone), qt.IsTrue)

	clone.X = field.Add(clone.X, field.NewFromInt64(1))
	c.Assert(kp.Pub.Equal(clone), qt.IsFalse)
}
