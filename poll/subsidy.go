package poll

import (
	"fmt"
	"math/big"

	"github.com/vocdoni/maci-poll/crypto/field"
	"github.com/vocdoni/maci-poll/crypto/hash/poseidon"
	"github.com/vocdoni/maci-poll/domain"
	"github.com/vocdoni/maci-poll/trees/quintree"
)

// subsidyMM and subsidyWW are the fixed-point coefficient parameters of
// the pairwise subsidy formula (§4.7): k_ij = floor(MM*10^WW / (MM +
// sum_p v_i[p]*v_j[p])).
const (
	subsidyMM = 50
	subsidyWW = 4
)

// SubsidyCircuitInputs is the Subsidy circuit witness for one (rbi, cbi)
// block of the triangular ballot-pair grid.
type SubsidyCircuitInputs struct {
	PackedVals              *field.F
	SbCommitment             *field.F
	CurrentSubsidyCommitment *field.F
	NewSubsidyCommitment     *field.F
	InputHash                *field.F

	Rbi        int
	Cbi        int
	RowBallots []*domain.Ballot
	ColBallots []*domain.Ballot
	Subsidy    []*field.F
}

// subsidyKey builds the lookup key this package uses for salts keyed by
// an (rbi, cbi) block, since the grid is 2-dimensional.
func subsidyKey(rbi, cbi int) string {
	return fmt.Sprintf("%d-%d", rbi, cbi)
}

// prevSubsidyBlock returns the (rbi, cbi) of the block processed just
// before (rbi, cbi) in the walk order of §4.7: column decreases while it
// remains to the right of the diagonal, otherwise row decreases and
// column resets to the last column of the grid.
func (p *Poll) prevSubsidyBlock(rbi, cbi int) (int, int) {
	if cbi > rbi {
		return rbi, cbi - 1
	}
	numBlocks := p.TotalBallotBatches()
	return rbi - 1, numBlocks - 1
}

// Subsidy computes one block of the triangular pairwise-coefficient
// subsidy grid, walking (rbi, cbi) from (0, 0) towards the final
// diagonal block, per §4.7.
func (p *Poll) Subsidy() (*SubsidyCircuitInputs, error) {
	if err := ensureStateCopied(p); err != nil {
		return nil, err
	}
	bs := p.Params.TallyBatchSize
	rbi, cbi := p.SubsidyRbi, p.SubsidyCbi

	var currentSubsidyCommitment *field.F
	if !p.SubsidyStarted {
		currentSubsidyCommitment = field.NewFromInt64(0)
		p.SubsidyStarted = true
	} else {
		prevRbi, prevCbi := p.prevSubsidyBlock(rbi, cbi)
		prevSalt, ok := p.SubsidySalts[subsidyKey(prevRbi, prevCbi)]
		if !ok {
			prevSalt = field.NewFromInt64(0)
		}
		currentSubsidyCommitment = p.genTreeCommitment(p.SubsidyResult, prevSalt)
	}

	rowBallots := p.ballotBlock(rbi, bs)
	colBallots := p.ballotBlock(cbi, bs)

	if rbi != cbi {
		for i, rowBallot := range rowBallots {
			for j, colBallot := range colBallots {
				if rbi*bs+i >= len(p.Ballots) || cbi*bs+j >= len(p.Ballots) {
					continue
				}
				p.accumulateSubsidyPair(rowBallot, colBallot)
			}
		}
	} else {
		for i := 0; i < len(rowBallots); i++ {
			for j := i + 1; j < len(colBallots); j++ {
				if rbi*bs+i >= len(p.Ballots) || cbi*bs+j >= len(p.Ballots) {
					continue
				}
				p.accumulateSubsidyPair(rowBallots[i], colBallots[j])
			}
		}
	}

	newSalt := p.Salts.NextSalt()
	p.SubsidySalts[subsidyKey(rbi, cbi)] = newSalt
	newSubsidyCommitment := p.genTreeCommitment(p.SubsidyResult, newSalt)

	sbCommitment := poseidon.Hash3([3]*field.F{p.StateTree.Root(), p.BallotTree.Root(), p.SbSalts[p.CurrentMessageBatchIndex]})
	packedVals := packSubsidySmallVals(rbi, cbi, p.Maci.NumSignUps())
	inputHash := poseidon.Sha256Hash(packedVals, sbCommitment, currentSubsidyCommitment, newSubsidyCommitment)

	result := &SubsidyCircuitInputs{
		PackedVals:               packedVals,
		SbCommitment:             sbCommitment,
		CurrentSubsidyCommitment: currentSubsidyCommitment,
		NewSubsidyCommitment:     newSubsidyCommitment,
		InputHash:                inputHash,
		Rbi:                      rbi,
		Cbi:                      cbi,
		RowBallots:               rowBallots,
		ColBallots:               colBallots,
		Subsidy:                  cloneFieldSlice(p.SubsidyResult),
	}

	numBlocks := p.TotalBallotBatches()
	if cbi < numBlocks-1 {
		p.SubsidyCbi++
	} else {
		p.SubsidyRbi++
		p.SubsidyCbi = p.SubsidyRbi
	}

	return result, nil
}

// accumulateSubsidyPair folds the pairwise coefficient between two
// ballots into the running per-option subsidy vector: subsidy[p] +=
// 2*k_ij*v_i[p]*v_j[p].
func (p *Poll) accumulateSubsidyPair(a, b *domain.Ballot) {
	dot := field.NewFromInt64(0)
	for k := 0; k < p.Params.MaxVoteOptions; k++ {
		dot = field.Add(dot, field.Mul(a.Votes[k], b.Votes[k]))
	}
	kij := subsidyCoefficient(dot)
	two := field.NewFromInt64(2)
	for k := 0; k < p.Params.MaxVoteOptions; k++ {
		term := field.Mul(field.Mul(two, kij), field.Mul(a.Votes[k], b.Votes[k]))
		p.SubsidyResult[k] = field.Add(p.SubsidyResult[k], term)
	}
}

// subsidyCoefficient computes floor(MM*10^WW / (MM + dot)) in integer
// arithmetic over the dot product's underlying big.Int value.
func subsidyCoefficient(dot *field.F) *field.F {
	num := new(big.Int).Mul(big.NewInt(subsidyMM), new(big.Int).Exp(big.NewInt(10), big.NewInt(subsidyWW), nil))
	den := new(big.Int).Add(big.NewInt(subsidyMM), dot.MathBigInt())
	if den.Sign() == 0 {
		return field.NewFromInt64(0)
	}
	k := new(big.Int).Div(num, den)
	return field.NewFromBigInt(k)
}

// ballotBlock returns the batchSize-wide, zero-padded slice of ballots
// for grid block bi.
func (p *Poll) ballotBlock(bi, batchSize int) []*domain.Ballot {
	out := make([]*domain.Ballot, batchSize)
	for i := 0; i < batchSize; i++ {
		idx := bi*batchSize + i
		if idx < len(p.Ballots) {
			out[i] = p.Ballots[idx]
		} else {
			out[i] = domain.GenBlankBallot(p.Params.MaxVoteOptions)
		}
	}
	return out
}

// genTreeCommitment hashes a per-option field vector with salt via a
// quinary tree root, the same shape as genResultsCommitment.
func (p *Poll) genTreeCommitment(vals []*field.F, salt *field.F) *field.F {
	tree := quintree.New(p.Params.VoteOptionTreeDepth, field.NewFromInt64(0), nil)
	for _, v := range vals {
		_ = tree.Insert(v)
	}
	return poseidon.HashLeftRight(tree.Root(), salt)
}

func packSubsidySmallVals(rbi, cbi, numSignUps int) *field.F {
	v := big.NewInt(int64(rbi))
	v.Or(v, new(big.Int).Lsh(big.NewInt(int64(cbi)), 50))
	v.Or(v, new(big.Int).Lsh(big.NewInt(int64(numSignUps)), 100))
	return field.NewFromBigInt(v)
}
