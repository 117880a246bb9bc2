package poll

import (
	"fmt"

	"github.com/vocdoni/maci-poll/crypto/field"
	"github.com/vocdoni/maci-poll/domain"
	"github.com/vocdoni/maci-poll/trees/quintree"
)

// ProcessMessageErrorKind enumerates the ordered rejection rules of
// §4.3, in trigger priority order.
type ProcessMessageErrorKind int

const (
	InvalidStateLeafIndex ProcessMessageErrorKind = iota + 1
	InvalidSignature
	InvalidNonce
	InvalidVoteOptionIndex
	InsufficientVoiceCredits
	FailedDecryption
)

func (k ProcessMessageErrorKind) String() string {
	switch k {
	case InvalidStateLeafIndex:
		return "InvalidStateLeafIndex"
	case InvalidSignature:
		return "InvalidSignature"
	case InvalidNonce:
		return "InvalidNonce"
	case InvalidVoteOptionIndex:
		return "InvalidVoteOptionIndex"
	case InsufficientVoiceCredits:
		return "InsufficientVoiceCredits"
	case FailedDecryption:
		return "FailedDecryption"
	default:
		return "Unknown"
	}
}

// ProcessMessageError is the typed rejection a command may trigger;
// the batch processor catches it and substitutes a placeholder witness.
type ProcessMessageError struct {
	Kind ProcessMessageErrorKind
	Msg  string
}

func (e *ProcessMessageError) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Msg) }

func rejectAs(kind ProcessMessageErrorKind, format string, args ...any) error {
	return &ProcessMessageError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// CommandWitness is the per-message witness processMessage produces on
// acceptance: the before/after state needed to build a ProcessMessages
// circuit input, including Merkle paths captured before mutation.
type CommandWitness struct {
	StateLeafIndex                  int
	OriginalStateLeaf               *domain.StateLeaf
	NewStateLeaf                    *domain.StateLeaf
	OriginalStateLeafPathElements   *quintree.MerklePath
	OriginalBallot                  *domain.Ballot
	NewBallot                       *domain.Ballot
	OriginalBallotPathElements      *quintree.MerklePath
	OriginalVoteWeight              *field.F
	OriginalVoteWeightsPathElements *quintree.MerklePath
	Command                         *domain.PCommand
}

// processMessage applies a single decrypted vote/key-change command to
// (stateLeaves[i], ballots[i]), per the ordered rejection rules of §4.3.
// It mutates p.StateLeaves/p.StateTree/p.Ballots/p.BallotTree in place on
// success, and returns the witness recording both the before and after
// shapes. On rejection it mutates nothing and returns a
// *ProcessMessageError identifying which rule fired.
func (p *Poll) processMessage(cmd *domain.PCommand) (witness *CommandWitness, err error) {
	defer func() {
		if r := recover(); r != nil {
			witness = nil
			err = rejectAs(FailedDecryption, "panic while applying command: %v", r)
		}
	}()

	stateIndexI64 := cmd.StateIndex.MathBigInt().Int64()
	maxIndex := len(p.Ballots)
	if len(p.StateLeaves) < maxIndex {
		maxIndex = len(p.StateLeaves)
	}
	if int64(p.StateTree.NextIndex()) < int64(maxIndex) {
		maxIndex = p.StateTree.NextIndex()
	}
	if stateIndexI64 < 1 || stateIndexI64 >= int64(maxIndex) {
		return nil, rejectAs(InvalidStateLeafIndex, "stateIndex %d out of range [1,%d)", stateIndexI64, maxIndex)
	}
	stateIndex := int(stateIndexI64)

	originalStateLeaf := p.StateLeaves[stateIndex]
	originalBallot := p.Ballots[stateIndex]

	if !cmd.VerifySignature(originalStateLeaf.PubKey) {
		return nil, rejectAs(InvalidSignature, "signature does not verify against stateLeaf %d's pubkey", stateIndex)
	}

	expectedNonce := field.Add(originalBallot.Nonce, field.NewFromInt64(1))
	if !cmd.Nonce.Equal(expectedNonce) {
		return nil, rejectAs(InvalidNonce, "nonce %s != expected %s", cmd.Nonce, expectedNonce)
	}

	voteOptionIndexI64 := cmd.VoteOptionIndex.MathBigInt().Int64()
	if voteOptionIndexI64 < 0 || voteOptionIndexI64 >= int64(p.Params.MaxVoteOptions) {
		return nil, rejectAs(InvalidVoteOptionIndex, "voteOptionIndex %d out of range [0,%d)",
			voteOptionIndexI64, p.Params.MaxVoteOptions)
	}
	voteOptionIndex := int(voteOptionIndexI64)

	wOld := originalBallot.Votes[voteOptionIndex]
	wNew := cmd.NewVoteWeight
	if field.SignedExprNegative(originalStateLeaf.VoiceCreditBalance, wOld, wNew) {
		return nil, rejectAs(InsufficientVoiceCredits,
			"balance %s + oldWeight^2 - newWeight^2 < 0 (old=%s, new=%s)",
			originalStateLeaf.VoiceCreditBalance, wOld, wNew)
	}
	creditsLeft := field.SignedExprValue(originalStateLeaf.VoiceCreditBalance, wOld, wNew)

	// capture Merkle paths before any mutation, on the old tree shape
	originalStateLeafPath, err := p.StateTree.GenMerklePath(stateIndex)
	if err != nil {
		return nil, rejectAs(FailedDecryption, "state leaf path: %v", err)
	}
	originalBallotPath, err := p.BallotTree.GenMerklePath(stateIndex)
	if err != nil {
		return nil, rejectAs(FailedDecryption, "ballot path: %v", err)
	}
	votesTree := originalBallot.VotesRoot(p.Params.VoteOptionTreeDepth)
	originalVoteWeightsPath, err := votesTree.GenMerklePath(voteOptionIndex)
	if err != nil {
		return nil, rejectAs(FailedDecryption, "vote weight path: %v", err)
	}

	newStateLeaf := originalStateLeaf.Clone()
	newStateLeaf.PubKey = cmd.NewPubKey.Clone()
	newStateLeaf.VoiceCreditBalance = creditsLeft

	newBallot := originalBallot.Clone()
	newBallot.Nonce = expectedNonce
	newBallot.Votes[voteOptionIndex] = wNew.Clone()

	p.StateLeaves[stateIndex] = newStateLeaf
	if err := p.StateTree.Update(stateIndex, newStateLeaf.Hash()); err != nil {
		return nil, rejectAs(FailedDecryption, "state tree update: %v", err)
	}
	p.Ballots[stateIndex] = newBallot
	if err := p.BallotTree.Update(stateIndex, newBallot.Hash(p.Params.VoteOptionTreeDepth)); err != nil {
		return nil, rejectAs(FailedDecryption, "ballot tree update: %v", err)
	}

	return &CommandWitness{
		StateLeafIndex:                  stateIndex,
		OriginalStateLeaf:               originalStateLeaf,
		NewStateLeaf:                    newStateLeaf,
		OriginalStateLeafPathElements:   originalStateLeafPath,
		OriginalBallot:                  originalBallot,
		NewBallot:                       newBallot,
		OriginalBallotPathElements:      originalBallotPath,
		OriginalVoteWeight:              wOld,
		OriginalVoteWeightsPathElements: originalVoteWeightsPath,
		Command:                         cmd,
	}, nil
}

// blankWitness builds the placeholder witness used whenever a batch slot
// is out of range, rejected, or otherwise a no-op: all fields point at
// index 0, per §9's "placeholder equality between rejection paths".
func (p *Poll) blankWitness() *CommandWitness {
	blankPath0State, err := p.StateTree.GenMerklePath(0)
	if err != nil {
		panic(fmt.Sprintf("poll: blank witness state path: %v", err))
	}
	blankPath0Ballot, err := p.BallotTree.GenMerklePath(0)
	if err != nil {
		panic(fmt.Sprintf("poll: blank witness ballot path: %v", err))
	}
	blankBallot := p.Ballots[0]
	votesTree := blankBallot.VotesRoot(p.Params.VoteOptionTreeDepth)
	blankVotePath, err := votesTree.GenMerklePath(0)
	if err != nil {
		panic(fmt.Sprintf("poll: blank witness vote weight path: %v", err))
	}
	return &CommandWitness{
		StateLeafIndex:                  0,
		OriginalStateLeaf:               p.StateLeaves[0],
		NewStateLeaf:                    p.StateLeaves[0],
		OriginalStateLeafPathElements:   blankPath0State,
		OriginalBallot:                  blankBallot,
		NewBallot:                       blankBallot,
		OriginalBallotPathElements:      blankPath0Ballot,
		OriginalVoteWeight:              blankBallot.Votes[0],
		OriginalVoteWeightsPathElements: blankVotePath,
		Command:                         domain.BlankPCommand(),
	}
}
