// Package macistate implements the signup registry and cross-poll
// processing lock shared by every Poll attached to a simulation run. It
// plays the role the teacher's state.State plays for a single on-chain
// process — owning the canonical tree a Poll snapshots from — but here
// the tree holds voter state leaves rather than ballots, and there is
// exactly one MaciState per simulation rather than one State per batch.
package macistate

import (
	"fmt"
	"sync"

	"github.com/vocdoni/maci-poll/crypto/ecc/bjj"
	"github.com/vocdoni/maci-poll/crypto/field"
	"github.com/vocdoni/maci-poll/domain"
	"github.com/vocdoni/maci-poll/trees/quintree"
)

// MaciState owns the canonical signup state: the append-only vector of
// state leaves and its quinary Merkle tree, the poll registry, and the
// single-writer processing lock every attached Poll must acquire before
// running processMessages.
type MaciState struct {
	mu sync.Mutex

	stateTreeDepth int
	stateLeaves    []*domain.StateLeaf
	stateTree      *quintree.IncrementalQuinTree

	pollIDs []*field.F

	pollBeingProcessed        bool
	currentPollBeingProcessed *field.F
}

// New builds a MaciState with the blank sentinel leaf already signed up
// at index 0, per §3's "Index 0 is a fixed blank leaf".
func New(stateTreeDepth int) *MaciState {
	tree := quintree.New(stateTreeDepth, domain.BlankStateLeafHash(), nil)
	blank := domain.BlankStateLeaf()
	if err := tree.Insert(blank.Hash()); err != nil {
		panic(fmt.Sprintf("macistate: inserting blank sentinel leaf: %v", err))
	}
	return &MaciState{
		stateTreeDepth: stateTreeDepth,
		stateLeaves:    []*domain.StateLeaf{blank},
		stateTree:      tree,
	}
}

// StateTreeDepth returns the configured depth of the signup state tree.
func (m *MaciState) StateTreeDepth() int { return m.stateTreeDepth }

// NumSignUps returns the number of real signups, excluding the blank
// sentinel at index 0.
func (m *MaciState) NumSignUps() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stateLeaves) - 1
}

// StateLeaves returns a defensive copy of the signup state leaves
// (including the index-0 sentinel).
func (m *MaciState) StateLeaves() []*domain.StateLeaf {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.StateLeaf, len(m.stateLeaves))
	for i, l := range m.stateLeaves {
		out[i] = l.Clone()
	}
	return out
}

// StateTree returns an independent copy of the signup state tree, safe
// for a Poll to snapshot into its own ownership.
func (m *MaciState) StateTree() *quintree.IncrementalQuinTree {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateTree.Copy()
}

// SignUp appends a new voter state leaf with the given pubkey and
// initial voice-credit balance, returning its index.
func (m *MaciState) SignUp(pubKey *bjj.PubKey, initialVoiceCreditBalance *field.F, timestamp *field.F) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	leaf := &domain.StateLeaf{
		PubKey:             pubKey.Clone(),
		VoiceCreditBalance: initialVoiceCreditBalance.Clone(),
		Timestamp:          timestamp.Clone(),
	}
	if err := m.stateTree.Insert(leaf.Hash()); err != nil {
		return 0, fmt.Errorf("macistate: signup: %w", err)
	}
	m.stateLeaves = append(m.stateLeaves, leaf)
	return len(m.stateLeaves) - 1, nil
}

// RegisterPoll records a new poll ID in the registry. It does not grant
// any processing rights by itself.
func (m *MaciState) RegisterPoll(pollID *field.F) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.pollIDs {
		if id.Equal(pollID) {
			return
		}
	}
	m.pollIDs = append(m.pollIDs, pollID)
}

// Polls returns the registered poll IDs.
func (m *MaciState) Polls() []*field.F {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*field.F, len(m.pollIDs))
	copy(out, m.pollIDs)
	return out
}

// AcquireProcessingLock grants pollID exclusive rights to run
// processMessages batches. It fails fast if another poll already holds
// the lock, per §5's single-writer discipline.
func (m *MaciState) AcquireProcessingLock(pollID *field.F) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pollBeingProcessed && !m.currentPollBeingProcessed.Equal(pollID) {
		return fmt.Errorf("macistate: poll %s is already being processed, cannot start poll %s",
			m.currentPollBeingProcessed, pollID)
	}
	m.pollBeingProcessed = true
	m.currentPollBeingProcessed = pollID
	return nil
}

// ReleaseProcessingLock releases the lock, which must currently be held
// by pollID.
func (m *MaciState) ReleaseProcessingLock(pollID *field.F) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.pollBeingProcessed {
		return nil
	}
	if !m.currentPollBeingProcessed.Equal(pollID) {
		return fmt.Errorf("macistate: poll %s does not hold the processing lock (held by %s)",
			pollID, m.currentPollBeingProcessed)
	}
	m.pollBeingProcessed = false
	m.currentPollBeingProcessed = nil
	return nil
}

// IsLocked reports whether any poll currently holds the processing lock.
func (m *MaciState) IsLocked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pollBeingProcessed
}
