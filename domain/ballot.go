package domain

import (
	"github.com/vocdoni/maci-poll/crypto/field"
	"github.com/vocdoni/maci-poll/crypto/hash/poseidon"
	"github.com/vocdoni/maci-poll/trees/quintree"
)

// Ballot is a voter's per-option vote vector plus a replay-protection
// nonce. Index 0 of a Poll's ballot tree is always the empty ballot
// returned by GenBlankBallot.
type Ballot struct {
	Nonce *field.F   `json:"nonce"`
	Votes []*field.F `json:"votes"`
}

// GenBlankBallot returns a zero-nonce, all-zero-votes ballot sized for
// maxVoteOptions vote options.
func GenBlankBallot(maxVoteOptions int) *Ballot {
	votes := make([]*field.F, maxVoteOptions)
	for i := range votes {
		votes[i] = field.NewFromInt64(0)
	}
	return &Ballot{Nonce: field.NewFromInt64(0), Votes: votes}
}

// Clone returns a deep copy.
func (b *Ballot) Clone() *Ballot {
	votes := make([]*field.F, len(b.Votes))
	for i, v := range b.Votes {
		votes[i] = v.Clone()
	}
	return &Ballot{Nonce: b.Nonce.Clone(), Votes: votes}
}

// Equal performs a structural comparison.
func (b *Ballot) Equal(o *Ballot) bool {
	if b == nil || o == nil {
		return b == o
	}
	if !b.Nonce.Equal(o.Nonce) || len(b.Votes) != len(o.Votes) {
		return false
	}
	for i := range b.Votes {
		if !b.Votes[i].Equal(o.Votes[i]) {
			return false
		}
	}
	return true
}

// VotesRoot builds a fresh quinary tree of the given depth over the
// ballot's votes (in order) and returns its root. This is the tree §4.3
// describes building to derive originalVoteWeightsPathElements, and it is
// also how Ballot.Hash commits to the full vote vector without hard-coding
// its length into the hash arity.
func (b *Ballot) VotesRoot(voteOptionTreeDepth int) *quintree.IncrementalQuinTree {
	tree := quintree.New(voteOptionTreeDepth, field.NewFromInt64(0), nil)
	for _, v := range b.Votes {
		// Insert errors only on overflow past capacity, which cannot
		// happen here: Votes is sized to exactly maxVoteOptions <=
		// 5^voteOptionTreeDepth by construction.
		_ = tree.Insert(v)
	}
	return tree
}

// Hash returns the ballot's tree-insertable hash: hash2(nonce, votesRoot).
func (b *Ballot) Hash(voteOptionTreeDepth int) *field.F {
	return poseidon.HashLeftRight(b.Nonce, b.VotesRoot(voteOptionTreeDepth).Root())
}
