package poll

import (
	"fmt"
	"math/big"

	"github.com/vocdoni/maci-poll/crypto/ecc/bjj"
	"github.com/vocdoni/maci-poll/crypto/field"
	"github.com/vocdoni/maci-poll/crypto/hash/poseidon"
	"github.com/vocdoni/maci-poll/domain"
	"github.com/vocdoni/maci-poll/log"
	"github.com/vocdoni/maci-poll/trees/quintree"
)

// ProcessMessagesCircuitInputs is the full ProcessMessages circuit
// witness for one batch: the partial, batch-shaped inputs of §4.5 plus
// the before/after state arrays accumulated while walking the batch in
// reverse (§4.4).
type ProcessMessagesCircuitInputs struct {
	PackedVals          *field.F
	CoordPubKeyHash     *field.F
	MsgRoot             *field.F
	CurrentSbCommitment *field.F
	NewSbCommitment     *field.F
	PollEndTimestamp    *field.F
	InputHash           *field.F

	BatchStartIndex    int
	BatchEndIndex      int
	Messages           []*domain.Message
	Commands           []domain.ICommand
	EncPubKeys         []*bjj.PubKey
	MessageSubrootPath *quintree.SubrootPath

	CurrentStateLeaves               []*domain.StateLeaf
	NewStateLeaves                   []*domain.StateLeaf
	CurrentStateLeavesPathElements   []*quintree.MerklePath
	CurrentBallots                   []*domain.Ballot
	NewBallots                       []*domain.Ballot
	CurrentBallotsPathElements       []*quintree.MerklePath
	CurrentVoteWeights               []*field.F
	CurrentVoteWeightsPathElements   []*quintree.MerklePath
}

func prependStateLeaf(s []*domain.StateLeaf, v *domain.StateLeaf) []*domain.StateLeaf {
	return append([]*domain.StateLeaf{v}, s...)
}
func prependBallot(s []*domain.Ballot, v *domain.Ballot) []*domain.Ballot {
	return append([]*domain.Ballot{v}, s...)
}
func prependMerklePath(s []*quintree.MerklePath, v *quintree.MerklePath) []*quintree.MerklePath {
	return append([]*quintree.MerklePath{v}, s...)
}
func prependField(s []*field.F, v *field.F) []*field.F {
	return append([]*field.F{v}, s...)
}
func prependCommand(s []domain.ICommand, v domain.ICommand) []domain.ICommand {
	return append([]domain.ICommand{v}, s...)
}

// ProcessMessages runs exactly one batch of message processing, in
// reverse order within the batch and from the highest batch to the
// lowest across calls, per §4.4. The first call snapshots state and
// acquires the single-writer lock on the attached MaciState; the lock
// is released once every message has been consumed.
func (p *Poll) ProcessMessages() (*ProcessMessagesCircuitInputs, error) {
	bs := p.Params.MessageBatchSize
	n := len(p.Messages)

	if !p.BatchProcessingStarted {
		if err := p.Maci.AcquireProcessingLock(p.ID); err != nil {
			return nil, err
		}
		if n == 0 {
			p.CurrentMessageBatchIndex = 0
		} else {
			r := n % bs
			if r == 0 {
				r = bs
			}
			p.CurrentMessageBatchIndex = n - r
		}
		p.copyStateFromMaci()
		p.SbSalts[p.CurrentMessageBatchIndex] = field.NewFromInt64(0)
		p.BatchProcessingStarted = true
		log.Debugw("batch processing started", "pollId", p.ID.String(), "startIndex", p.CurrentMessageBatchIndex)
	}

	if p.CurrentMessageBatchIndex < 0 || p.CurrentMessageBatchIndex%bs != 0 {
		panic(fmt.Sprintf("poll: currentMessageBatchIndex %d is not a non-negative multiple of batchSize %d",
			p.CurrentMessageBatchIndex, bs))
	}

	index := p.CurrentMessageBatchIndex

	currentSbCommitment := poseidon.Hash3([3]*field.F{p.StateTree.Root(), p.BallotTree.Root(), p.SbSalts[index]})

	var stateLeaves, newStateLeaves []*domain.StateLeaf
	var stateLeafPaths []*quintree.MerklePath
	var ballots, newBallots []*domain.Ballot
	var ballotPaths []*quintree.MerklePath
	var voteWeights []*field.F
	var voteWeightPaths []*quintree.MerklePath

	for i := 0; i < bs; i++ {
		idx := index + bs - 1 - i

		var w *CommandWitness
		if idx >= n {
			w = p.blankWitness()
		} else {
			msgType := p.Messages[idx].MsgType
			switch {
			case msgType.Cmp(field.NewFromInt64(domain.MsgTypeVoteOrKeyChange)) == 0:
				if pc, ok := p.Commands[idx].(*domain.PCommand); ok {
					witness, err := p.processMessage(pc)
					if err != nil {
						log.Debugw("message rejected", "pollId", p.ID.String(), "index", idx, "reason", err.Error())
						w = p.blankWitness()
					} else {
						w = witness
					}
				} else {
					w = p.blankWitness()
				}
			case msgType.Cmp(field.NewFromInt64(domain.MsgTypeTopup)) == 0:
				if tc, ok := p.Commands[idx].(*domain.TCommand); ok {
					w = p.applyTopup(tc)
				} else {
					w = p.blankWitness()
				}
			default:
				w = p.blankWitness()
			}
		}

		stateLeaves = prependStateLeaf(stateLeaves, w.OriginalStateLeaf)
		newStateLeaves = prependStateLeaf(newStateLeaves, w.NewStateLeaf)
		stateLeafPaths = prependMerklePath(stateLeafPaths, w.OriginalStateLeafPathElements)
		ballots = prependBallot(ballots, w.OriginalBallot)
		newBallots = prependBallot(newBallots, w.NewBallot)
		ballotPaths = prependMerklePath(ballotPaths, w.OriginalBallotPathElements)
		voteWeights = prependField(voteWeights, w.OriginalVoteWeight)
		voteWeightPaths = prependMerklePath(voteWeightPaths, w.OriginalVoteWeightsPathElements)
	}

	inputs, err := p.genProcessMessagesCircuitInputsPartial(index, currentSbCommitment)
	if err != nil {
		return nil, err
	}
	inputs.CurrentStateLeaves = stateLeaves
	inputs.NewStateLeaves = newStateLeaves
	inputs.CurrentStateLeavesPathElements = stateLeafPaths
	inputs.CurrentBallots = ballots
	inputs.NewBallots = newBallots
	inputs.CurrentBallotsPathElements = ballotPaths
	inputs.CurrentVoteWeights = voteWeights
	inputs.CurrentVoteWeightsPathElements = voteWeightPaths

	p.NumBatchesProcessed++
	if p.CurrentMessageBatchIndex > 0 {
		p.CurrentMessageBatchIndex -= bs
	}

	newSbSalt := p.Salts.NextSalt()
	for {
		old, exists := p.SbSalts[p.CurrentMessageBatchIndex]
		if !exists || !newSbSalt.Equal(old) {
			break
		}
		newSbSalt = p.Salts.NextSalt()
	}
	p.SbSalts[p.CurrentMessageBatchIndex] = newSbSalt
	inputs.NewSbCommitment = poseidon.Hash3([3]*field.F{p.StateTree.Root(), p.BallotTree.Root(), newSbSalt})
	inputs.PollEndTimestamp = p.Params.PollEndTimestamp
	inputs.InputHash = poseidon.Sha256Hash(
		inputs.PackedVals, inputs.CoordPubKeyHash, inputs.MsgRoot,
		inputs.CurrentSbCommitment, inputs.NewSbCommitment, inputs.PollEndTimestamp,
	)

	if p.NumBatchesProcessed*bs >= n {
		if err := p.Maci.ReleaseProcessingLock(p.ID); err != nil {
			return nil, err
		}
	}

	return inputs, nil
}

// applyTopup applies a topup command, crediting a voter's balance
// outside the signed command flow. An out-of-range stateIndex is
// clamped to the blank sentinel at index 0 with a zero amount, per §4.4.
func (p *Poll) applyTopup(tc *domain.TCommand) *CommandWitness {
	n := len(p.Ballots)
	si := 0
	amt := field.NewFromInt64(0)
	siI64 := tc.StateIndex.MathBigInt().Int64()
	if siI64 >= 0 && siI64 < int64(n) {
		si = int(siI64)
		amt = tc.Amount
	}

	originalStateLeaf := p.StateLeaves[si]
	originalStateLeafPath, err := p.StateTree.GenMerklePath(si)
	if err != nil {
		panic(fmt.Sprintf("poll: topup state path: %v", err))
	}
	ballot := p.Ballots[si]
	ballotPath, err := p.BallotTree.GenMerklePath(si)
	if err != nil {
		panic(fmt.Sprintf("poll: topup ballot path: %v", err))
	}
	votesTree := ballot.VotesRoot(p.Params.VoteOptionTreeDepth)
	voteWeightPath, err := votesTree.GenMerklePath(0)
	if err != nil {
		panic(fmt.Sprintf("poll: topup vote weight path: %v", err))
	}

	newStateLeaf := originalStateLeaf.Clone()
	newStateLeaf.VoiceCreditBalance = field.Add(originalStateLeaf.VoiceCreditBalance, amt)

	p.StateLeaves[si] = newStateLeaf
	if err := p.StateTree.Update(si, newStateLeaf.Hash()); err != nil {
		panic(fmt.Sprintf("poll: topup state tree update: %v", err))
	}

	return &CommandWitness{
		StateLeafIndex:                  si,
		OriginalStateLeaf:               originalStateLeaf,
		NewStateLeaf:                    newStateLeaf,
		OriginalStateLeafPathElements:   originalStateLeafPath,
		OriginalBallot:                  ballot,
		NewBallot:                       ballot,
		OriginalBallotPathElements:      ballotPath,
		OriginalVoteWeight:              ballot.Votes[0],
		OriginalVoteWeightsPathElements: voteWeightPath,
		Command:                         domain.BlankPCommand(),
	}
}

// genProcessMessagesCircuitInputsPartial builds the batch-shaped
// (not-yet-witnessed) portion of a ProcessMessages circuit input for
// the batch starting at index, per §4.5. currentSbCommitment must be
// computed from the state/ballot roots as they stood before this
// batch's messages were processed, so it matches the prior batch's
// newSbCommitment.
func (p *Poll) genProcessMessagesCircuitInputsPartial(index int, currentSbCommitment *field.F) (*ProcessMessagesCircuitInputs, error) {
	bs := p.Params.MessageBatchSize
	blankMsg := &domain.Message{MsgType: field.NewFromInt64(0)}
	for i := range blankMsg.Data {
		blankMsg.Data[i] = field.NewFromInt64(0)
	}

	paddedMessages := padRightToMultiple(p.Messages, blankMsg, bs)
	paddedCommands := padRightToMultiple(p.Commands, domain.ICommand(domain.NewBlankCommand()), bs)
	paddedEncPubKeys := padRightToMultiple(p.EncPubKeys, bjj.PadKey, bs)

	for p.MessageTree.NextIndex() < index+bs {
		if err := p.MessageTree.Insert(p.MessageTree.ZeroValue()); err != nil {
			return nil, fmt.Errorf("poll: growing message tree: %w", err)
		}
	}

	subrootPath, err := p.MessageTree.GenMerkleSubrootPath(index, index+bs)
	if err != nil {
		return nil, fmt.Errorf("poll: message subroot path: %w", err)
	}
	if !p.MessageTree.VerifySubrootPath(subrootPath) {
		panic("poll: message subroot path failed to verify")
	}

	batchEndIndex := index + bs
	if batchEndIndex > len(p.Messages) {
		batchEndIndex = len(p.Messages)
	}

	packedVals := packProcessMessagesSmallVals(p.Params.MaxVoteOptions, p.Maci.NumSignUps(), index, batchEndIndex)

	return &ProcessMessagesCircuitInputs{
		PackedVals:          packedVals,
		CoordPubKeyHash:     p.CoordinatorKeyPair.Pub.Hash(),
		MsgRoot:             p.MessageTree.Root(),
		CurrentSbCommitment: currentSbCommitment,
		BatchStartIndex:     index,
		BatchEndIndex:       batchEndIndex,
		Messages:            paddedMessages[index : index+bs],
		Commands:            paddedCommands[index : index+bs],
		EncPubKeys:           paddedEncPubKeys[index : index+bs],
		MessageSubrootPath:  subrootPath,
	}, nil
}

func padRightToMultiple[T any](s []T, blank T, batchSize int) []T {
	out := append([]T{}, s...)
	if len(out) == 0 {
		for i := 0; i < batchSize; i++ {
			out = append(out, blank)
		}
		return out
	}
	for len(out)%batchSize != 0 {
		out = append(out, out[len(out)-1])
	}
	return out
}

// packProcessMessagesSmallVals packs maxVoteOptions, numSignUps, index
// and batchEndIndex into a single field element, per §6's bit layout.
func packProcessMessagesSmallVals(maxVoteOptions, numSignUps, index, batchEndIndex int) *field.F {
	v := big.NewInt(int64(maxVoteOptions))
	v.Or(v, new(big.Int).Lsh(big.NewInt(int64(numSignUps)), 50))
	v.Or(v, new(big.Int).Lsh(big.NewInt(int64(index)), 100))
	v.Or(v, new(big.Int).Lsh(big.NewInt(int64(batchEndIndex)), 150))
	return field.NewFromBigInt(v)
}
