package quintree

import (
	"fmt"

	"github.com/vocdoni/maci-poll/crypto/field"
)

// MerklePath is an inclusion path for a single leaf: at each of Depth()
// levels, the Arity-1 sibling values and which of the Arity slots the
// path element occupies.
type MerklePath struct {
	PathElements [][Arity - 1]*field.F
	Indices      []int
}

// GenMerklePath returns the inclusion path for leaf index i.
func (t *IncrementalQuinTree) GenMerklePath(i int) (*MerklePath, error) {
	if i < 0 || i >= t.capacity() {
		return nil, fmt.Errorf("quintree: index %d out of range [0,%d)", i, t.capacity())
	}
	mp := &MerklePath{
		PathElements: make([][Arity - 1]*field.F, t.depth),
		Indices:      make([]int, t.depth),
	}
	idx := i
	for level := 0; level < t.depth; level++ {
		pos := idx % Arity
		groupStart := idx - pos
		var siblings [Arity - 1]*field.F
		k := 0
		for j := 0; j < Arity; j++ {
			if j == pos {
				continue
			}
			siblings[k] = t.levelValue(level, groupStart+j)
			k++
		}
		mp.PathElements[level] = siblings
		mp.Indices[level] = pos
		idx /= Arity
	}
	return mp, nil
}

// VerifyMerklePath reconstructs the root from leaf, the path, and reports
// whether it equals root.
func (t *IncrementalQuinTree) VerifyMerklePath(leaf *field.F, mp *MerklePath, root *field.F) bool {
	return computeRootFromPath(t.hashFunc, leaf, mp).Equal(root)
}

func computeRootFromPath(hashFunc HashFunc, leaf *field.F, mp *MerklePath) *field.F {
	current := leaf
	for level := 0; level < len(mp.PathElements); level++ {
		var children [Arity]*field.F
		pos := mp.Indices[level]
		siblings := mp.PathElements[level]
		k := 0
		for j := 0; j < Arity; j++ {
			if j == pos {
				children[j] = current
			} else {
				children[j] = siblings[k]
				k++
			}
		}
		current = hashFunc(children)
	}
	return current
}

// SubrootPath is the inclusion path of a precomputed subroot (covering a
// contiguous run of Arity^subDepth leaves) up to the full tree root.
type SubrootPath struct {
	Subroot      *field.F
	PathElements [][Arity - 1]*field.F
	Indices      []int
}

// GenMerkleSubrootPath computes the subroot of the leaf range [lo, hi)
// (hi-lo must be a power of Arity) and its inclusion path up to the full
// tree root, used by the batch processor to prove a message batch's
// position in the message tree (§4.5).
func (t *IncrementalQuinTree) GenMerkleSubrootPath(lo, hi int) (*SubrootPath, error) {
	span := hi - lo
	if span <= 0 || lo%span != 0 {
		return nil, fmt.Errorf("quintree: invalid subroot range [%d,%d)", lo, hi)
	}
	subDepth := 0
	for s := 1; s < span; s *= Arity {
		subDepth++
	}
	if pow(Arity, subDepth) != span {
		return nil, fmt.Errorf("quintree: range size %d is not a power of %d", span, Arity)
	}
	if subDepth > t.depth {
		return nil, fmt.Errorf("quintree: subDepth %d exceeds tree depth %d", subDepth, t.depth)
	}
	nodeIndex := lo / span
	subroot := t.levelValue(subDepth, nodeIndex)

	remaining := t.depth - subDepth
	sp := &SubrootPath{
		Subroot:      subroot,
		PathElements: make([][Arity - 1]*field.F, remaining),
		Indices:      make([]int, remaining),
	}
	idx := nodeIndex
	for level := 0; level < remaining; level++ {
		pos := idx % Arity
		groupStart := idx - pos
		var siblings [Arity - 1]*field.F
		k := 0
		for j := 0; j < Arity; j++ {
			if j == pos {
				continue
			}
			siblings[k] = t.levelValue(subDepth+level, groupStart+j)
			k++
		}
		sp.PathElements[level] = siblings
		sp.Indices[level] = pos
		idx /= Arity
	}
	return sp, nil
}

// VerifySubrootPath reconstructs the root from a SubrootPath and reports
// whether it equals the tree's current root.
func (t *IncrementalQuinTree) VerifySubrootPath(sp *SubrootPath) bool {
	mp := &MerklePath{PathElements: sp.PathElements, Indices: sp.Indices}
	return computeRootFromPath(t.hashFunc, sp.Subroot, mp).Equal(t.root)
}

func pow(base, exp int) int {
	r := 1
	for i := 0; i < exp; i++ {
		r *= base
	}
	return r
}
