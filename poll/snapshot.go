package poll

import (
	"fmt"

	"github.com/vocdoni/maci-poll/domain"
	"github.com/vocdoni/maci-poll/log"
	"github.com/vocdoni/maci-poll/trees/quintree"
)

// copyStateFromMaci snapshots the attached MaciState's signup state into
// this Poll and builds a matching, initially-empty ballot tree. It is
// idempotent: once stateCopied is set, later calls are no-ops, per §4.2.
func (p *Poll) copyStateFromMaci() {
	if p.StateCopied {
		return
	}

	p.StateLeaves = p.Maci.StateLeaves()
	p.StateTree = p.Maci.StateTree()

	blankBallot := domain.GenBlankBallot(p.Params.MaxVoteOptions)
	p.BallotTree = quintree.New(p.Params.StateTreeDepth, blankBallot.Hash(p.Params.VoteOptionTreeDepth), nil)
	if err := p.BallotTree.Insert(blankBallot.Hash(p.Params.VoteOptionTreeDepth)); err != nil {
		panic(fmt.Sprintf("poll: inserting empty ballot: %v", err))
	}
	p.Ballots = []*domain.Ballot{blankBallot}

	for len(p.Ballots) < len(p.StateLeaves) {
		b := domain.GenBlankBallot(p.Params.MaxVoteOptions)
		if err := p.BallotTree.Insert(b.Hash(p.Params.VoteOptionTreeDepth)); err != nil {
			panic(fmt.Sprintf("poll: growing ballot tree: %v", err))
		}
		p.Ballots = append(p.Ballots, b)
	}

	p.StateCopied = true
	log.Debugw("poll state snapshotted", "pollId", p.ID.String(), "numStateLeaves", len(p.StateLeaves))
}
