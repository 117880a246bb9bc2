// Package poll implements the Poll subsystem: the command-processing
// state machine, batch processor, tally engine, and subsidy engine that
// turn a sequence of encrypted messages into ProcessMessages/TallyVotes/
// Subsidy circuit inputs. It is grounded on the teacher's state package
// (state/state.go's StartBatch/EndBatch-shaped batch lifecycle,
// state/vote.go's per-vote witness capture, state/merkleproof.go's
// ArboProof-style path bundling) generalized from a single-transition
// on-chain-state adapter to Poll's multi-phase, reverse-order batch
// machine.
package poll

import (
	"fmt"

	"github.com/vocdoni/maci-poll/crypto/ecc/bjj"
	"github.com/vocdoni/maci-poll/crypto/field"
	"github.com/vocdoni/maci-poll/domain"
	"github.com/vocdoni/maci-poll/log"
	"github.com/vocdoni/maci-poll/macistate"
	"github.com/vocdoni/maci-poll/trees/quintree"
	"github.com/vocdoni/maci-poll/util"
)

// Params bundles a Poll's fixed configuration, set for its lifetime at
// construction.
type Params struct {
	PollEndTimestamp    *field.F
	StateTreeDepth      int
	MessageTreeDepth    int
	VoteOptionTreeDepth int
	MessageBatchSize    int
	TallyBatchSize      int
	MaxVoteOptions      int
}

// Poll is a single MACI poll's deterministic off-chain state machine. It
// owns its own message/state/ballot trees once snapshotted and holds only
// a read-through reference to the MaciState it is attached to.
type Poll struct {
	ID                *field.F
	Params            Params
	CoordinatorKeyPair *bjj.Keypair
	Maci              *macistate.MaciState
	Salts             util.SaltSource

	// Message ingest (§4.1)
	Messages   []*domain.Message
	EncPubKeys []*bjj.PubKey
	Commands   []domain.ICommand
	MessageTree *quintree.IncrementalQuinTree

	// State snapshot (§4.2)
	StateCopied bool
	StateLeaves []*domain.StateLeaf
	StateTree   *quintree.IncrementalQuinTree
	Ballots     []*domain.Ballot
	BallotTree  *quintree.IncrementalQuinTree

	// Batch processor (§4.4)
	CurrentMessageBatchIndex int
	BatchProcessingStarted   bool
	NumBatchesProcessed      int
	SbSalts                  map[int]*field.F

	// Tally engine (§4.6)
	NumBatchesTallied           int
	TallyResult                 []*field.F
	PerVOSpentVoiceCredits      []*field.F
	TotalSpentVoiceCredits      *field.F
	ResultsSalts                map[int]*field.F
	PerVOSpentVoiceCreditsSalts map[int]*field.F
	SpentVoiceCreditSalts       map[int]*field.F

	// Subsidy engine (§4.7)
	SubsidyResult  []*field.F
	SubsidySalts   map[string]*field.F
	SubsidyRbi     int
	SubsidyCbi     int
	SubsidyStarted bool
}

// New builds an empty Poll attached to maci, registers it, and
// initializes its message tree. CoordinatorKeyPair is used to attempt
// decryption of incoming vote/key-change messages during ingest.
func New(id *field.F, params Params, maci *macistate.MaciState, coordinator *bjj.Keypair, salts util.SaltSource) *Poll {
	if salts == nil {
		salts = util.CryptoRandSaltSource{}
	}
	p := &Poll{
		ID:                  id,
		Params:              params,
		CoordinatorKeyPair:   coordinator,
		Maci:                 maci,
		Salts:                salts,
		MessageTree:          quintree.New(params.MessageTreeDepth, nothingUpMySleeve(), nil),
		SbSalts:              map[int]*field.F{},
		ResultsSalts:         map[int]*field.F{},
		PerVOSpentVoiceCreditsSalts: map[int]*field.F{},
		SpentVoiceCreditSalts:       map[int]*field.F{},
		SubsidySalts:                map[string]*field.F{},
		TallyResult:                 blankFieldVector(params.MaxVoteOptions),
		PerVOSpentVoiceCredits:      blankFieldVector(params.MaxVoteOptions),
		TotalSpentVoiceCredits:      field.NewFromInt64(0),
		SubsidyResult:               blankFieldVector(params.MaxVoteOptions),
	}
	maci.RegisterPoll(id)
	log.Debugw("poll created", "pollId", id.String(), "maxVoteOptions", params.MaxVoteOptions)
	return p
}

func blankFieldVector(n int) []*field.F {
	out := make([]*field.F, n)
	for i := range out {
		out[i] = field.NewFromInt64(0)
	}
	return out
}

// TotalMessageBatches computes the number of batches the message log
// will occupy. It intentionally preserves the reference quirk noted in
// §9's open question: a poll with zero messages still reports one
// batch, rather than zero.
func (p *Poll) TotalMessageBatches() int {
	n := len(p.Messages)
	batches := n / p.Params.MessageBatchSize
	if n%p.Params.MessageBatchSize != 0 {
		batches++
	}
	if batches == 0 {
		batches = 1
	}
	return batches
}

// HasUnprocessedMessages reports whether processMessages still has work
// to do.
func (p *Poll) HasUnprocessedMessages() bool {
	return p.NumBatchesProcessed < p.TotalMessageBatches()
}

// TotalBallotBatches computes the number of tally/subsidy batches over
// the ballot set, using the same floor-then-bump convention.
func (p *Poll) TotalBallotBatches() int {
	n := len(p.Ballots)
	batches := n / p.Params.TallyBatchSize
	if n%p.Params.TallyBatchSize != 0 {
		batches++
	}
	if batches == 0 {
		batches = 1
	}
	return batches
}

// HasUntalliedBallots reports whether tallyVotes still has batches to
// process.
func (p *Poll) HasUntalliedBallots() bool {
	return p.NumBatchesTallied*p.Params.TallyBatchSize < len(p.Ballots)
}

// HasUnfinishedSubsidyCalculation reports whether the subsidy grid walk
// has more (rbi, cbi) blocks to visit.
func (p *Poll) HasUnfinishedSubsidyCalculation() bool {
	bs := p.Params.TallyBatchSize
	return p.SubsidyRbi*bs < len(p.Ballots) && p.SubsidyCbi*bs < len(p.Ballots)
}

func ensureStateCopied(p *Poll) error {
	if !p.StateCopied {
		return fmt.Errorf("poll: state has not been snapshotted yet (call processMessages at least once)")
	}
	return nil
}
