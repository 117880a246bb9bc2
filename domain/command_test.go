package domain

import (
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/maci-poll/crypto/ecc/bjj"
	"github.com/vocdoni/maci-poll/crypto/field"
)

func samplePCommand(voter *bjj.Keypair) *PCommand {
	cmd := &PCommand{
		StateIndex:      field.NewFromInt64(1),
		NewPubKey:       voter.Pub.Clone(),
		VoteOptionIndex: field.NewFromInt64(3),
		NewVoteWeight:   field.NewFromInt64(9),
		Nonce:           field.NewFromInt64(1),
		PollID:          field.NewFromInt64(0),
		Salt:            field.NewFromInt64(12345),
	}
	cmd.Sign(voter.Priv)
	return cmd
}

func TestPCommandSignAndVerify(t *testing.T) {
	c := qt.New(t)
	voter, err := bjj.GenKeypair()
	c.Assert(err, qt.IsNil)
	cmd := samplePCommand(voter)
	c.Assert(cmd.VerifySignature(voter.Pub), qt.IsTrue)

	other, err := bjj.GenKeypair()
	c.Assert(err, qt.IsNil)
	c.Assert(cmd.VerifySignature(other.Pub), qt.IsFalse)
}

func TestPCommandEncryptDecryptRoundTrip(t *testing.T) {
	c := qt.New(t)
	coordinator, err := bjj.GenKeypair()
	c.Assert(err, qt.IsNil)
	voter, err := bjj.GenKeypair()
	c.Assert(err, qt.IsNil)

	cmd := samplePCommand(voter)

	sx, sy, err := bjj.GenEcdhSharedKey(voter.Priv, coordinator.Pub)
	c.Assert(err, qt.IsNil)
	msg := cmd.Encrypt(sx, sy)

	sx2, sy2, err := bjj.GenEcdhSharedKey(coordinator.Priv, voter.Pub)
	c.Assert(err, qt.IsNil)
	c.Assert(sx2.Equal(sx), qt.IsTrue)
	c.Assert(sy2.Equal(sy), qt.IsTrue)

	decoded := DecryptPCommand(msg, sx2, sy2)
	c.Assert(decoded.StateIndex.Equal(cmd.StateIndex), qt.IsTrue)
	c.Assert(decoded.NewPubKey.Equal(cmd.NewPubKey), qt.IsTrue)
	c.Assert(decoded.VoteOptionIndex.Equal(cmd.VoteOptionIndex), qt.IsTrue)
	c.Assert(decoded.NewVoteWeight.Equal(cmd.NewVoteWeight), qt.IsTrue)
	c.Assert(decoded.Nonce.Equal(cmd.Nonce), qt.IsTrue)
	c.Assert(decoded.PollID.Equal(cmd.PollID), qt.IsTrue)
	c.Assert(decoded.Salt.Equal(cmd.Salt), qt.IsTrue)
	c.Assert(decoded.VerifySignature(voter.Pub), qt.IsTrue)
}

func TestDecryptWithWrongSharedKeyFailsVerification(t *testing.T) {
	c := qt.New(t)
	coordinator, err := bjj.GenKeypair()
	c.Assert(err, qt.IsNil)
	voter, err := bjj.GenKeypair()
	c.Assert(err, qt.IsNil)
	stranger, err := bjj.GenKeypair()
	c.Assert(err, qt.IsNil)

	cmd := samplePCommand(voter)
	sx, sy, err := bjj.GenEcdhSharedKey(voter.Priv, coordinator.Pub)
	c.Assert(err, qt.IsNil)
	msg := cmd.Encrypt(sx, sy)

	wrongX, wrongY, err := bjj.GenEcdhSharedKey(stranger.Priv, coordinator.Pub)
	c.Assert(err, qt.IsNil)
	garbled := DecryptPCommand(msg, wrongX, wrongY)
	c.Assert(garbled.VerifySignature(voter.Pub), qt.IsFalse)
}

func TestCommandJSONRoundTrip(t *testing.T) {
	c := qt.New(t)
	voter, err := bjj.GenKeypair()
	c.Assert(err, qt.IsNil)
	cmd := samplePCommand(voter)

	data, err := MarshalCommandJSON(cmd)
	c.Assert(err, qt.IsNil)
	decoded, err := UnmarshalCommandJSON(data)
	c.Assert(err, qt.IsNil)
	pc, ok := decoded.(*PCommand)
	c.Assert(ok, qt.IsTrue)
	c.Assert(pc.StateIndex.Equal(cmd.StateIndex), qt.IsTrue)
	c.Assert(pc.VerifySignature(voter.Pub), qt.IsTrue)

	tc := &TCommand{StateIndex: field.NewFromInt64(2), Amount: field.NewFromInt64(50), PollID: field.NewFromInt64(0)}
	data2, err := MarshalCommandJSON(tc)
	c.Assert(err, qt.IsNil)
	decoded2, err := UnmarshalCommandJSON(data2)
	c.Assert(err, qt.IsNil)
	_, ok = decoded2.(*TCommand)
	c.Assert(ok, qt.IsTrue)

	data3, err := MarshalCommandJSON(NewBlankCommand())
	c.Assert(err, qt.IsNil)
	decoded3, err := UnmarshalCommandJSON(data3)
	c.Assert(err, qt.IsNil)
	_, ok = decoded3.(*BlankCommand)
	c.Assert(ok, qt.IsTrue)
}
