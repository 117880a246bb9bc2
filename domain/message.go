package domain

import (
	"fmt"

	"github.com/vocdoni/maci-poll/crypto/ecc/bjj"
	"github.com/vocdoni/maci-poll/crypto/field"
	"github.com/vocdoni/maci-poll/crypto/hash/poseidon"
)

// Message types, per spec.md §3.
const (
	MsgTypeVoteOrKeyChange = 1
	MsgTypeTopup           = 2
)

// MessageDataLen is the fixed width of a message's data payload.
const MessageDataLen = 10

// Message is an encrypted vote/key-change or topup command as it appears
// on the message tree: a tagged, fixed-width vector of field elements.
type Message struct {
	MsgType *field.F                  `json:"msgType"`
	Data    [MessageDataLen]*field.F `json:"data"`
}

// NewMessage builds a Message, requiring exactly MessageDataLen data words.
func NewMessage(msgType int64, data []*field.F) (*Message, error) {
	if len(data) != MessageDataLen {
		return nil, fmt.Errorf("domain: message data must have %d words, got %d", MessageDataLen, len(data))
	}
	m := &Message{MsgType: field.NewFromInt64(msgType)}
	copy(m.Data[:], data)
	return m, nil
}

// Clone returns a deep copy.
func (m *Message) Clone() *Message {
	out := &Message{MsgType: m.MsgType.Clone()}
	for i, d := range m.Data {
		out.Data[i] = d.Clone()
	}
	return out
}

// Equal performs a structural comparison.
func (m *Message) Equal(o *Message) bool {
	if m == nil || o == nil {
		return m == o
	}
	if !m.MsgType.Equal(o.MsgType) {
		return false
	}
	for i := range m.Data {
		if !m.Data[i].Equal(o.Data[i]) {
			return false
		}
	}
	return true
}

// Hash returns the message's canonical, tree-insertable hash, the
// nested construction of §4.1: an inner hash over the last 5 data
// words plus the encryption pubkey's two coordinates and a zero
// terminator, then an outer hash over the first 5 data words and that
// inner digest.
func (m *Message) Hash(encPubKey *bjj.PubKey) *field.F {
	inner := poseidon.HashN(
		m.Data[5], m.Data[6], m.Data[7], m.Data[8], m.Data[9],
		encPubKey.X, encPubKey.Y, field.NewFromInt64(0),
	)
	return poseidon.HashN(m.Data[0], m.Data[1], m.Data[2], m.Data[3], m.Data[4], inner)
}
