// Package domain holds the concrete data types the Poll subsystem treats
// as external collaborators in spec.md §6 ("Domain lib"): StateLeaf,
// Ballot, Message and the tagged ICommand sum type. It follows the field
// grouping and JSON-tag conventions of the teacher's types package
// (types/ballotmode.go, types/census.go) while implementing the MACI wire
// shapes spec.md §3/§9 names.
package domain

import (
	"github.com/vocdoni/maci-poll/crypto/ecc/bjj"
	"github.com/vocdoni/maci-poll/crypto/field"
	"github.com/vocdoni/maci-poll/crypto/hash/poseidon"
)

// StateLeaf is a signup record: a voter's public key, voice-credit
// balance, and signup timestamp. Index 0 of a Poll's state tree is always
// the blank sentinel leaf returned by BlankStateLeaf.
type StateLeaf struct {
	PubKey             *bjj.PubKey `json:"pubKey"`
	VoiceCreditBalance *field.F    `json:"voiceCreditBalance"`
	Timestamp          *field.F    `json:"timestamp"`
}

// BlankStateLeaf is the anti-DoS sentinel occupying state-tree index 0: a
// zero pubkey with zero balance, which can never validly sign a command
// (rule 1 of §4.3 rejects stateIndex 0 outright, but placeholder witnesses
// still reference this leaf's hash).
func BlankStateLeaf() *StateLeaf {
	return &StateLeaf{
		PubKey:             &bjj.PubKey{X: field.NewFromInt64(0), Y: field.NewFromInt64(0)},
		VoiceCreditBalance: field.NewFromInt64(0),
		Timestamp:          field.NewFromInt64(0),
	}
}

// Clone returns a deep copy.
func (s *StateLeaf) Clone() *StateLeaf {
	return &StateLeaf{
		PubKey:             s.PubKey.Clone(),
		VoiceCreditBalance: s.VoiceCreditBalance.Clone(),
		Timestamp:          s.Timestamp.Clone(),
	}
}

// Equal performs a structural comparison.
func (s *StateLeaf) Equal(o *StateLeaf) bool {
	if s == nil || o == nil {
		return s == o
	}
	return s.PubKey.Equal(o.PubKey) &&
		s.VoiceCreditBalance.Equal(o.VoiceCreditBalance) &&
		s.Timestamp.Equal(o.Timestamp)
}

// Hash returns the leaf's tree-insertable hash: hash5(pubKey.X, pubKey.Y,
// voiceCreditBalance, timestamp, 0).
func (s *StateLeaf) Hash() *field.F {
	return poseidon.Hash5([5]*field.F{
		s.PubKey.X, s.PubKey.Y, s.VoiceCreditBalance, s.Timestamp, field.NewFromInt64(0),
	})
}

var blankStateLeafHash = BlankStateLeaf().Hash()

// BlankStateLeafHash is the zero value of the state tree.
func BlankStateLeafHash() *field.F { return blankStateLeafHash }
