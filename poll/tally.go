package poll

import (
	"math/big"

	"github.com/vocdoni/maci-poll/crypto/field"
	"github.com/vocdoni/maci-poll/crypto/hash/poseidon"
	"github.com/vocdoni/maci-poll/domain"
	"github.com/vocdoni/maci-poll/trees/quintree"
)

// TallyVotesCircuitInputs is the TallyVotes circuit witness for one
// batch of ballots, per §4.6.
type TallyVotesCircuitInputs struct {
	PackedVals             *field.F
	SbCommitment           *field.F
	CurrentTallyCommitment *field.F
	NewTallyCommitment     *field.F
	InputHash              *field.F

	BatchStartIndex        int
	BatchEndIndex          int
	Ballots                []*domain.Ballot
	TallyResult            []*field.F
	PerVOSpentVoiceCredits []*field.F
	TotalSpentVoiceCredits *field.F
}

// TallyVotes sums one batch of ballots' votes and voice-credit squares
// into the running tally, chaining a salted commitment from the prior
// batch to this one.
func (p *Poll) TallyVotes() (*TallyVotesCircuitInputs, error) {
	if err := ensureStateCopied(p); err != nil {
		return nil, err
	}

	bs := p.Params.TallyBatchSize
	start := p.NumBatchesTallied * bs
	isFirst := p.NumBatchesTallied == 0

	priorResultsSalt := p.saltOrZero(p.ResultsSalts, start-bs)
	priorPerVOSalt := p.saltOrZero(p.PerVOSpentVoiceCreditsSalts, start-bs)
	priorSpentSalt := p.saltOrZero(p.SpentVoiceCreditSalts, start-bs)

	currentResultsCommitment := p.genResultsCommitment(priorResultsSalt)
	currentPerVOCommitment := p.genPerVOSpentVoiceCreditsCommitment(priorPerVOSalt, start)
	currentSpentCommitment := p.genSpentVoiceCreditSubtotalCommitment(priorSpentSalt, start)

	var currentTallyCommitment *field.F
	if isFirst {
		currentTallyCommitment = field.NewFromInt64(0)
	} else {
		currentTallyCommitment = poseidon.Hash3([3]*field.F{currentResultsCommitment, currentPerVOCommitment, currentSpentCommitment})
	}

	end := start + bs
	if end > len(p.Ballots) {
		end = len(p.Ballots)
	}
	for i := start; i < end; i++ {
		ballot := p.Ballots[i]
		for j := 0; j < p.Params.MaxVoteOptions; j++ {
			v := ballot.Votes[j]
			p.TallyResult[j] = field.Add(p.TallyResult[j], v)
			vSq := field.Mul(v, v)
			p.PerVOSpentVoiceCredits[j] = field.Add(p.PerVOSpentVoiceCredits[j], vSq)
			p.TotalSpentVoiceCredits = field.Add(p.TotalSpentVoiceCredits, vSq)
		}
	}

	batchBallots := make([]*domain.Ballot, bs)
	for i := 0; i < bs; i++ {
		if start+i < len(p.Ballots) {
			batchBallots[i] = p.Ballots[start+i]
		} else {
			batchBallots[i] = domain.GenBlankBallot(p.Params.MaxVoteOptions)
		}
	}

	newResultsSalt := p.Salts.NextSalt()
	newPerVOSalt := p.Salts.NextSalt()
	newSpentSalt := p.Salts.NextSalt()
	p.ResultsSalts[start] = newResultsSalt
	p.PerVOSpentVoiceCreditsSalts[start] = newPerVOSalt
	p.SpentVoiceCreditSalts[start] = newSpentSalt

	newResultsCommitment := p.genResultsCommitment(newResultsSalt)
	newPerVOCommitment := p.genPerVOSpentVoiceCreditsCommitment(newPerVOSalt, end)
	newSpentCommitment := p.genSpentVoiceCreditSubtotalCommitment(newSpentSalt, end)
	newTallyCommitment := poseidon.Hash3([3]*field.F{newResultsCommitment, newPerVOCommitment, newSpentCommitment})

	sbCommitment := poseidon.Hash3([3]*field.F{p.StateTree.Root(), p.BallotTree.Root(), p.SbSalts[p.CurrentMessageBatchIndex]})
	packedVals := packTallyVotesSmallVals(start, p.Maci.NumSignUps())
	inputHash := poseidon.Sha256Hash(packedVals, sbCommitment, currentTallyCommitment, newTallyCommitment)

	p.NumBatchesTallied++

	return &TallyVotesCircuitInputs{
		PackedVals:             packedVals,
		SbCommitment:           sbCommitment,
		CurrentTallyCommitment: currentTallyCommitment,
		NewTallyCommitment:     newTallyCommitment,
		InputHash:              inputHash,
		BatchStartIndex:        start,
		BatchEndIndex:          end,
		Ballots:                batchBallots,
		TallyResult:            cloneFieldSlice(p.TallyResult),
		PerVOSpentVoiceCredits: cloneFieldSlice(p.PerVOSpentVoiceCredits),
		TotalSpentVoiceCredits: p.TotalSpentVoiceCredits.Clone(),
	}, nil
}

// genResultsCommitment folds the running per-option tally into a
// quinary tree and hashes its root with salt, per §4.6.
func (p *Poll) genResultsCommitment(salt *field.F) *field.F {
	tree := quintree.New(p.Params.VoteOptionTreeDepth, field.NewFromInt64(0), nil)
	for _, v := range p.TallyResult {
		_ = tree.Insert(v)
	}
	return poseidon.HashLeftRight(tree.Root(), salt)
}

// genSpentVoiceCreditSubtotalCommitment sums the square of every vote
// weight across the first n ballots and hashes it with salt.
func (p *Poll) genSpentVoiceCreditSubtotalCommitment(salt *field.F, n int) *field.F {
	limit := n
	if limit > len(p.Ballots) {
		limit = len(p.Ballots)
	}
	if limit < 0 {
		limit = 0
	}
	subtotal := field.NewFromInt64(0)
	for i := 0; i < limit; i++ {
		for _, v := range p.Ballots[i].Votes {
			subtotal = field.Add(subtotal, field.Mul(v, v))
		}
	}
	return poseidon.HashLeftRight(subtotal, salt)
}

// genPerVOSpentVoiceCreditsCommitment sums the per-option square of
// every vote weight across the first n ballots into a quinary tree and
// hashes its root with salt.
func (p *Poll) genPerVOSpentVoiceCreditsCommitment(salt *field.F, n int) *field.F {
	limit := n
	if limit > len(p.Ballots) {
		limit = len(p.Ballots)
	}
	if limit < 0 {
		limit = 0
	}
	perVO := make([]*field.F, p.Params.MaxVoteOptions)
	for j := range perVO {
		perVO[j] = field.NewFromInt64(0)
	}
	for i := 0; i < limit; i++ {
		for j, v := range p.Ballots[i].Votes {
			perVO[j] = field.Add(perVO[j], field.Mul(v, v))
		}
	}
	tree := quintree.New(p.Params.VoteOptionTreeDepth, field.NewFromInt64(0), nil)
	for _, v := range perVO {
		_ = tree.Insert(v)
	}
	return poseidon.HashLeftRight(tree.Root(), salt)
}

func (p *Poll) saltOrZero(m map[int]*field.F, key int) *field.F {
	if key < 0 {
		return field.NewFromInt64(0)
	}
	if v, ok := m[key]; ok {
		return v
	}
	return field.NewFromInt64(0)
}

func cloneFieldSlice(xs []*field.F) []*field.F {
	out := make([]*field.F, len(xs))
	for i, x := range xs {
		out[i] = x.Clone()
	}
	return out
}

// packTallyVotesSmallVals packs the batch start index and numSignUps
// into a single field element, the same bit-field convention as
// packProcessMessagesSmallVals.
func packTallyVotesSmallVals(start, numSignUps int) *field.F {
	v := big.NewInt(int64(start))
	v.Or(v, new(big.Int).Lsh(big.NewInt(int64(numSignUps)), 50))
	return field.NewFromBigInt(v)
}
