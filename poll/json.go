package poll

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/vocdoni/maci-poll/crypto/ecc/bjj"
	"github.com/vocdoni/maci-poll/crypto/field"
	"github.com/vocdoni/maci-poll/domain"
	"github.com/vocdoni/maci-poll/macistate"
	"github.com/vocdoni/maci-poll/trees/quintree"
	"github.com/vocdoni/maci-poll/util"
)

// setTreeLeaf writes leaf at index i, growing the tree with Insert if i
// is past its current size or Update if it already exists there.
func setTreeLeaf(t *quintree.IncrementalQuinTree, i int, leaf *field.F) error {
	for t.NextIndex() < i {
		if err := t.Insert(t.ZeroValue()); err != nil {
			return err
		}
	}
	if t.NextIndex() == i {
		return t.Insert(leaf)
	}
	return t.Update(i, leaf)
}

// Copy returns a deep clone of p: every tree, slice, and salt map is
// independently copied, so mutating the clone never affects the
// original. The coordinator keypair and the attached MaciState are
// shared by reference, matching New()'s constructor shape.
func (p *Poll) Copy() *Poll {
	out := &Poll{
		ID:                 p.ID.Clone(),
		Params:             p.Params,
		CoordinatorKeyPair: p.CoordinatorKeyPair,
		Maci:               p.Maci,
		Salts:              p.Salts,

		StateCopied: p.StateCopied,

		CurrentMessageBatchIndex: p.CurrentMessageBatchIndex,
		BatchProcessingStarted:   p.BatchProcessingStarted,
		NumBatchesProcessed:      p.NumBatchesProcessed,
		SbSalts:                  cloneFieldMap(p.SbSalts),

		NumBatchesTallied:           p.NumBatchesTallied,
		TallyResult:                 cloneFieldSlice(p.TallyResult),
		PerVOSpentVoiceCredits:      cloneFieldSlice(p.PerVOSpentVoiceCredits),
		TotalSpentVoiceCredits:      p.TotalSpentVoiceCredits.Clone(),
		ResultsSalts:                cloneFieldMap(p.ResultsSalts),
		PerVOSpentVoiceCreditsSalts: cloneFieldMap(p.PerVOSpentVoiceCreditsSalts),
		SpentVoiceCreditSalts:       cloneFieldMap(p.SpentVoiceCreditSalts),

		SubsidyResult:  cloneFieldSlice(p.SubsidyResult),
		SubsidySalts:   cloneFieldStringMap(p.SubsidySalts),
		SubsidyRbi:     p.SubsidyRbi,
		SubsidyCbi:     p.SubsidyCbi,
		SubsidyStarted: p.SubsidyStarted,
	}

	out.Messages = make([]*domain.Message, len(p.Messages))
	for i, m := range p.Messages {
		out.Messages[i] = m.Clone()
	}
	out.EncPubKeys = make([]*bjj.PubKey, len(p.EncPubKeys))
	for i, k := range p.EncPubKeys {
		out.EncPubKeys[i] = k.Clone()
	}
	out.Commands = make([]domain.ICommand, len(p.Commands))
	for i, c := range p.Commands {
		out.Commands[i] = c.Clone()
	}
	if p.MessageTree != nil {
		out.MessageTree = p.MessageTree.Copy()
	}

	out.StateLeaves = make([]*domain.StateLeaf, len(p.StateLeaves))
	for i, s := range p.StateLeaves {
		out.StateLeaves[i] = s.Clone()
	}
	out.Ballots = make([]*domain.Ballot, len(p.Ballots))
	for i, b := range p.Ballots {
		out.Ballots[i] = b.Clone()
	}
	if p.StateTree != nil {
		out.StateTree = p.StateTree.Copy()
	}
	if p.BallotTree != nil {
		out.BallotTree = p.BallotTree.Copy()
	}

	return out
}

func cloneFieldMap(m map[int]*field.F) map[int]*field.F {
	out := make(map[int]*field.F, len(m))
	for k, v := range m {
		out[k] = v.Clone()
	}
	return out
}

func cloneFieldStringMap(m map[string]*field.F) map[string]*field.F {
	out := make(map[string]*field.F, len(m))
	for k, v := range m {
		out[k] = v.Clone()
	}
	return out
}

// Equals performs a structural comparison of two polls' parameters and
// message/encPubKey sequences. It deliberately does not compare the
// derived trees, ballots, or tally/subsidy progress: those are pure
// functions of the same inputs, so two polls fed identical messages in
// identical order always converge to the same trees regardless of how
// far each has progressed through batch processing.
func (p *Poll) Equals(o *Poll) bool {
	if p == nil || o == nil {
		return p == o
	}
	if !p.ID.Equal(o.ID) {
		return false
	}
	if p.Params.StateTreeDepth != o.Params.StateTreeDepth ||
		p.Params.MessageTreeDepth != o.Params.MessageTreeDepth ||
		p.Params.VoteOptionTreeDepth != o.Params.VoteOptionTreeDepth ||
		p.Params.MessageBatchSize != o.Params.MessageBatchSize ||
		p.Params.TallyBatchSize != o.Params.TallyBatchSize ||
		p.Params.MaxVoteOptions != o.Params.MaxVoteOptions {
		return false
	}
	if !p.Params.PollEndTimestamp.Equal(o.Params.PollEndTimestamp) {
		return false
	}
	if len(p.Messages) != len(o.Messages) || len(p.EncPubKeys) != len(o.EncPubKeys) {
		return false
	}
	for i := range p.Messages {
		if !p.Messages[i].Equal(o.Messages[i]) {
			return false
		}
		if !p.EncPubKeys[i].Equal(o.EncPubKeys[i]) {
			return false
		}
	}
	return true
}

// pollJSON is the wire envelope for a Poll. Salt maps keyed by int are
// re-keyed to decimal strings, since encoding/json only accepts string
// map keys; SubsidySalts is already string-keyed. The coordinator
// keypair and Maci back-reference are never serialized: FromJSON takes
// them as live parameters, the same shape New() does.
type pollJSON struct {
	ID     *field.F `json:"id"`
	Params Params   `json:"params"`

	Messages   []*domain.Message `json:"messages"`
	EncPubKeys []*bjj.PubKey     `json:"encPubKeys"`
	Commands   []json.RawMessage `json:"commands"`

	StateCopied bool                `json:"stateCopied"`
	StateLeaves []*domain.StateLeaf `json:"stateLeaves"`
	Ballots     []*domain.Ballot    `json:"ballots"`

	CurrentMessageBatchIndex int               `json:"currentMessageBatchIndex"`
	BatchProcessingStarted   bool              `json:"batchProcessingStarted"`
	NumBatchesProcessed      int               `json:"numBatchesProcessed"`
	SbSalts                  map[string]*field.F `json:"sbSalts"`

	NumBatchesTallied           int                 `json:"numBatchesTallied"`
	TallyResult                 []*field.F          `json:"tallyResult"`
	PerVOSpentVoiceCredits      []*field.F          `json:"perVOSpentVoiceCredits"`
	TotalSpentVoiceCredits      *field.F            `json:"totalSpentVoiceCredits"`
	ResultsSalts                map[string]*field.F `json:"resultsSalts"`
	PerVOSpentVoiceCreditsSalts map[string]*field.F `json:"perVOSpentVoiceCreditsSalts"`
	SpentVoiceCreditSalts       map[string]*field.F `json:"spentVoiceCreditSalts"`

	Subsidy        []*field.F          `json:"subsidy"`
	SubsidySalts   map[string]*field.F `json:"subsidySalts"`
	SubsidyRbi     int                 `json:"subsidyRbi"`
	SubsidyCbi     int                 `json:"subsidyCbi"`
	SubsidyStarted bool                `json:"subsidyStarted"`
}

func intMapToStringMap(m map[int]*field.F) map[string]*field.F {
	out := make(map[string]*field.F, len(m))
	for k, v := range m {
		out[strconv.Itoa(k)] = v
	}
	return out
}

func stringMapToIntMap(m map[string]*field.F) (map[int]*field.F, error) {
	out := make(map[int]*field.F, len(m))
	for k, v := range m {
		i, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("poll: invalid salt map key %q: %w", k, err)
		}
		out[i] = v
	}
	return out, nil
}

// ToJSON serializes a poll's messages, derived state, and progress
// counters. The message/state/ballot trees are not serialized directly;
// FromJSON rebuilds them deterministically from the message log and a
// fresh snapshot off the attached MaciState, per §4.8.
func (p *Poll) ToJSON() ([]byte, error) {
	commands := make([]json.RawMessage, len(p.Commands))
	for i, c := range p.Commands {
		body, err := domain.MarshalCommandJSON(c)
		if err != nil {
			return nil, fmt.Errorf("poll: marshal command %d: %w", i, err)
		}
		commands[i] = body
	}

	w := pollJSON{
		ID:                          p.ID,
		Params:                      p.Params,
		Messages:                    p.Messages,
		EncPubKeys:                  p.EncPubKeys,
		Commands:                    commands,
		StateCopied:                 p.StateCopied,
		StateLeaves:                 p.StateLeaves,
		Ballots:                     p.Ballots,
		CurrentMessageBatchIndex:    p.CurrentMessageBatchIndex,
		BatchProcessingStarted:      p.BatchProcessingStarted,
		NumBatchesProcessed:         p.NumBatchesProcessed,
		SbSalts:                     intMapToStringMap(p.SbSalts),
		NumBatchesTallied:           p.NumBatchesTallied,
		TallyResult:                 p.TallyResult,
		PerVOSpentVoiceCredits:      p.PerVOSpentVoiceCredits,
		TotalSpentVoiceCredits:      p.TotalSpentVoiceCredits,
		ResultsSalts:                intMapToStringMap(p.ResultsSalts),
		PerVOSpentVoiceCreditsSalts: intMapToStringMap(p.PerVOSpentVoiceCreditsSalts),
		SpentVoiceCreditSalts:       intMapToStringMap(p.SpentVoiceCreditSalts),
		Subsidy:                     p.SubsidyResult,
		SubsidySalts:                p.SubsidySalts,
		SubsidyRbi:                  p.SubsidyRbi,
		SubsidyCbi:                  p.SubsidyCbi,
		SubsidyStarted:              p.SubsidyStarted,
	}
	return json.Marshal(w)
}

// FromJSON reconstructs a Poll previously written by ToJSON, attaching
// it to maci and coordinator. It replays every message's hash into a
// fresh message tree and, if the poll had already started processing,
// re-snapshots state/ballots off maci before restoring batch progress.
func FromJSON(data []byte, maci *macistate.MaciState, coordinator *bjj.Keypair, salts util.SaltSource) (*Poll, error) {
	var w pollJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}

	p := New(w.ID, w.Params, maci, coordinator, salts)

	p.Messages = w.Messages
	p.EncPubKeys = w.EncPubKeys
	p.Commands = make([]domain.ICommand, len(w.Commands))
	for i, raw := range w.Commands {
		cmd, err := domain.UnmarshalCommandJSON(raw)
		if err != nil {
			return nil, fmt.Errorf("poll: unmarshal command %d: %w", i, err)
		}
		p.Commands[i] = cmd
	}
	for i, m := range p.Messages {
		encPubKey := bjj.PadKey
		if i < len(p.EncPubKeys) {
			encPubKey = p.EncPubKeys[i]
		}
		if err := p.MessageTree.Insert(m.Hash(encPubKey)); err != nil {
			return nil, fmt.Errorf("poll: replaying message %d into message tree: %w", i, err)
		}
	}

	sbSalts, err := stringMapToIntMap(w.SbSalts)
	if err != nil {
		return nil, err
	}
	resultsSalts, err := stringMapToIntMap(w.ResultsSalts)
	if err != nil {
		return nil, err
	}
	perVOSalts, err := stringMapToIntMap(w.PerVOSpentVoiceCreditsSalts)
	if err != nil {
		return nil, err
	}
	spentSalts, err := stringMapToIntMap(w.SpentVoiceCreditSalts)
	if err != nil {
		return nil, err
	}

	if w.StateCopied {
		p.copyStateFromMaci()
		p.StateLeaves = w.StateLeaves
		p.Ballots = w.Ballots
		for i, s := range p.StateLeaves {
			if err := setTreeLeaf(p.StateTree, i, s.Hash()); err != nil {
				return nil, fmt.Errorf("poll: rebuilding state tree leaf %d: %w", i, err)
			}
		}
		for i, b := range p.Ballots {
			if err := setTreeLeaf(p.BallotTree, i, b.Hash(p.Params.VoteOptionTreeDepth)); err != nil {
				return nil, fmt.Errorf("poll: rebuilding ballot tree leaf %d: %w", i, err)
			}
		}
	}

	p.CurrentMessageBatchIndex = w.CurrentMessageBatchIndex
	p.BatchProcessingStarted = w.BatchProcessingStarted
	p.NumBatchesProcessed = w.NumBatchesProcessed
	p.SbSalts = sbSalts

	p.NumBatchesTallied = w.NumBatchesTallied
	p.TallyResult = w.TallyResult
	p.PerVOSpentVoiceCredits = w.PerVOSpentVoiceCredits
	p.TotalSpentVoiceCredits = w.TotalSpentVoiceCredits
	p.ResultsSalts = resultsSalts
	p.PerVOSpentVoiceCreditsSalts = perVOSalts
	p.SpentVoiceCreditSalts = spentSalts

	p.SubsidyResult = w.Subsidy
	p.SubsidySalts = w.SubsidySalts
	p.SubsidyRbi = w.SubsidyRbi
	p.SubsidyCbi = w.SubsidyCbi
	p.SubsidyStarted = w.SubsidyStarted

	if p.BatchProcessingStarted && p.NumBatchesProcessed*p.Params.MessageBatchSize < len(p.Messages) {
		if err := maci.AcquireProcessingLock(p.ID); err != nil {
			return nil, fmt.Errorf("poll: reacquiring processing lock on load: %w", err)
		}
	}

	return p, nil
}
