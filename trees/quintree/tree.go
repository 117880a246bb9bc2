// Package quintree implements IncrementalQuinTree, the fixed-arity,
// append-only Merkle tree the Poll subsystem keeps three independent
// copies of (state, ballot, message trees). It follows the proof-shape
// contract of the teacher's arbo-backed adapter (state/merkleproof.go's
// ArboProof: Root/Siblings/Key/Value/Existence, and the method set of
// vocdoni/arbo's Tree, here named Insert/Update/GenMerklePath/Root) but
// is a from-scratch, pure in-memory implementation: arbo is a persistent,
// binary/configurable-arity tree backed by a key-value db.Database, while
// Poll's trees are in-RAM, fixed quinary-arity, and index-addressed rather
// than key-addressed (see DESIGN.md for why arbo itself isn't imported
// directly).
package quintree

import (
	"fmt"

	"github.com/vocdoni/maci-poll/crypto/field"
	"github.com/vocdoni/maci-poll/crypto/hash/poseidon"
)

// Arity is the fixed branching factor of every tree in this package,
// matching STATE_TREE_ARITY / MESSAGE_TREE_ARITY / VOTE_OPTION_TREE_ARITY
// of spec.md §6.
const Arity = 5

// HashFunc hashes a full row of Arity children into their parent.
type HashFunc func(children [Arity]*field.F) *field.F

// DefaultHashFunc is Poseidon's Hash5, the hash every MACI circuit expects.
func DefaultHashFunc(children [Arity]*field.F) *field.F {
	return poseidon.Hash5(children)
}

// IncrementalQuinTree is a fixed-depth, fixed-arity, append-only Merkle
// tree with update-in-place and deterministic zero subtrees.
type IncrementalQuinTree struct {
	depth     int
	zeroValue *field.F
	hashFunc  HashFunc

	// zeroes[level] is the hash of an entirely-zero subtree rooted at
	// that level (zeroes[0] == zeroValue).
	zeroes []*field.F

	// leaves holds only the leaves that have actually been inserted;
	// NextIndex is len(leaves).
	leaves []*field.F

	root *field.F
}

// New builds an empty tree of the given depth with the given zero value
// and hash function (nil hashFunc defaults to Poseidon Hash5).
func New(depth int, zeroValue *field.F, hashFunc HashFunc) *IncrementalQuinTree {
	if hashFunc == nil {
		hashFunc = DefaultHashFunc
	}
	t := &IncrementalQuinTree{
		depth:     depth,
		zeroValue: zeroValue,
		hashFunc:  hashFunc,
	}
	t.zeroes = make([]*field.F, depth+1)
	t.zeroes[0] = zeroValue
	for i := 1; i <= depth; i++ {
		var children [Arity]*field.F
		for j := range children {
			children[j] = t.zeroes[i-1]
		}
		t.zeroes[i] = hashFunc(children)
	}
	t.root = t.zeroes[depth]
	return t
}

// Depth returns the tree's configured depth.
func (t *IncrementalQuinTree) Depth() int { return t.depth }

// ZeroValue returns the tree's configured leaf zero value.
func (t *IncrementalQuinTree) ZeroValue() *field.F { return t.zeroValue }

// NextIndex returns the number of leaves inserted so far.
func (t *IncrementalQuinTree) NextIndex() int { return len(t.leaves) }

// Root returns the current Merkle root.
func (t *IncrementalQuinTree) Root() *field.F { return t.root }

// capacity is Arity^depth, the maximum number of leaves the tree can hold.
func (t *IncrementalQuinTree) capacity() int {
	c := 1
	for i := 0; i < t.depth; i++ {
		c *= Arity
	}
	return c
}

// Insert appends a new leaf at index NextIndex() and recomputes the root.
func (t *IncrementalQuinTree) Insert(leaf *field.F) error {
	if len(t.leaves) >= t.capacity() {
		return fmt.Errorf("quintree: tree is full (capacity %d)", t.capacity())
	}
	t.leaves = append(t.leaves, leaf)
	return t.recompute(len(t.leaves) - 1)
}

// Update overwrites the leaf at index i (which must already exist) and
// recomputes the root.
func (t *IncrementalQuinTree) Update(i int, leaf *field.F) error {
	if i < 0 || i >= len(t.leaves) {
		return fmt.Errorf("quintree: update index %d out of range [0,%d)", i, len(t.leaves))
	}
	t.leaves[i] = leaf
	return t.recompute(i)
}

// leafAt returns the leaf at index i, or the zero value if it has not
// been inserted yet (used when walking subtrees that extend past
// NextIndex).
func (t *IncrementalQuinTree) leafAt(i int) *field.F {
	if i < len(t.leaves) {
		return t.leaves[i]
	}
	return t.zeroes[0]
}

// recompute refreshes the root after a leaf at changedIndex was inserted
// or updated. It walks the whole tree via levelValue rather than patching
// a cached path — Poll's trees are small (thousands of leaves at most in
// a simulation) and correctness matters far more than shaving this to
// O(depth).
func (t *IncrementalQuinTree) recompute(changedIndex int) error {
	_ = changedIndex
	t.root = t.levelValue(t.depth, 0)
	return nil
}

// levelValue returns the node value at the given level and node-index
// within that level, descending into stored leaves when level==0 or
// reusing zero subtrees when the node is entirely beyond NextIndex.
func (t *IncrementalQuinTree) levelValue(level, nodeIndex int) *field.F {
	// span of leaves covered by this node
	span := 1
	for i := 0; i < level; i++ {
		span *= Arity
	}
	start := nodeIndex * span
	if start >= len(t.leaves) {
		return t.zeroes[level]
	}
	if level == 0 {
		return t.leafAt(nodeIndex)
	}
	var children [Arity]*field.F
	childSpan := span / Arity
	for j := 0; j < Arity; j++ {
		childStart := start + j*childSpan
		if childStart >= len(t.leaves) {
			children[j] = t.zeroes[level-1]
			continue
		}
		children[j] = t.levelValue(level-1, nodeIndex*Arity+j)
	}
	return t.hashFunc(children)
}

// Copy returns a deep, independent clone of the tree.
func (t *IncrementalQuinTree) Copy() *IncrementalQuinTree {
	clone := &IncrementalQuinTree{
		depth:     t.depth,
		zeroValue: t.zeroValue,
		hashFunc:  t.hashFunc,
		root:      t.root,
	}
	clone.zeroes = append([]*field.F(nil), t.zeroes...)
	clone.leaves = append([]*field.F(nil), t.leaves...)
	return clone
}
