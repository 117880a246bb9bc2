package domain

import (
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/maci-poll/crypto/ecc/bjj"
	"github.com/vocdoni/maci-poll/crypto/field"
)

func blankData() []*field.F {
	data := make([]*field.F, MessageDataLen)
	for i := range data {
		data[i] = field.NewFromInt64(int64(i))
	}
	return data
}

func TestNewMessageRequiresExactWidth(t *testing.T) {
	c := qt.New(t)
	_, err := NewMessage(MsgTypeVoteOrKeyChange, blankData()[:MessageDataLen-1])
	c.Assert(err, qt.Not(qt.IsNil))

	m, err := NewMessage(MsgTypeVoteOrKeyChange, blankData())
	c.Assert(err, qt.IsNil)
	c.Assert(m.MsgType.Equal(field.NewFromInt64(MsgTypeVoteOrKeyChange)), qt.IsTrue)
}

func TestMessageHashDeterministicAndSensitive(t *testing.T) {
	c := qt.New(t)
	kp, err := bjj.GenKeypair()
	c.Assert(err, qt.IsNil)

	m1, err := NewMessage(MsgTypeVoteOrKeyChange, blankData())
	c.Assert(err, qt.IsNil)
	m2 := m1.Clone()

	h1 := m1.Hash(kp.Pub)
	h2 := m2.Hash(kp.Pub)
	c.Assert(h1.Equal(h2), qt.IsTrue)

	m2.Data[0] = field.NewFromInt64(999)
	c.Assert(m1.Hash(kp.Pub).Equal(m2.Hash(kp.Pub)), qt.IsFalse)

	other, err := bjj.GenKeypair()
	c.Assert(err, qt.IsNil)
	c.Assert(m1.Hash(kp.Pub).Equal(m1.Hash(other.Pub)), qt.IsFalse)
}
