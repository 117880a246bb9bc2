package quintree

import (
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/maci-poll/crypto/field"
)

func TestInsertChangesRoot(t *testing.T) {
	c := qt.New(t)
	tree := New(2, field.NewFromInt64(0), nil)
	rootEmpty := tree.Root()

	c.Assert(tree.Insert(field.NewFromInt64(42)), qt.IsNil)
	c.Assert(tree.Root().Equal(rootEmpty), qt.IsFalse)
	c.Assert(tree.NextIndex(), qt.Equals, 1)
}

func TestMerklePathVerifies(t *testing.T) {
	c := qt.New(t)
	tree := New(2, field.NewFromInt64(0), nil)
	for i := 0; i < 7; i++ {
		c.Assert(tree.Insert(field.NewFromInt64(int64(i+1))), qt.IsNil)
	}
	mp, err := tree.GenMerklePath(3)
	c.Assert(err, qt.IsNil)
	c.Assert(tree.VerifyMerklePath(field.NewFromInt64(4), mp, tree.Root()), qt.IsTrue)
	// wrong leaf should fail
	c.Assert(tree.VerifyMerklePath(field.NewFromInt64(99), mp, tree.Root()), qt.IsFalse)
}

func TestUpdateChangesRootAndPath(t *testing.T) {
	c := qt.New(t)
	tree := New(2, field.NewFromInt64(0), nil)
	for i := 0; i < 3; i++ {
		c.Assert(tree.Insert(field.NewFromInt64(int64(i))), qt.IsNil)
	}
	before := tree.Root()
	c.Assert(tree.Update(1, field.NewFromInt64(1000)), qt.IsNil)
	c.Assert(tree.Root().Equal(before), qt.IsFalse)

	mp, err := tree.GenMerklePath(1)
	c.Assert(err, qt.IsNil)
	c.Assert(tree.VerifyMerklePath(field.NewFromInt64(1000), mp, tree.Root()), qt.IsTrue)
}

func TestSubrootPath(t *testing.T) {
	c := qt.New(t)
	tree := New(2, field.NewFromInt64(0), nil)
	for i := 0; i < 25; i++ {
		c.Assert(tree.Insert(field.NewFromInt64(int64(i))), qt.IsNil)
	}
	sp, err := tree.GenMerkleSubrootPath(0, 5)
	c.Assert(err, qt.IsNil)
	c.Assert(tree.VerifySubrootPath(sp), qt.IsTrue)

	sp2, err := tree.GenMerkleSubrootPath(5, 10)
	c.Assert(err, qt.IsNil)
	c.Assert(tree.VerifySubrootPath(sp2), qt.IsTrue)
	c.Assert(sp.Subroot.Equal(sp2.Subroot), qt.IsFalse)
}

func TestCopyIsIndependent(t *testing.T) {
	c := qt.New(t)
	tree := New(2, field.NewFromInt64(0), nil)
	c.Assert(tree.Insert(field.NewFromInt64(1)), qt.IsNil)
	clone := tree.Copy()
	c.Assert(clone.Insert(field.NewFromInt64(2)), qt.IsNil)
	c.Assert(clone.NextIndex(), qt.Equals, 2)
	c.Assert(tree.NextIndex(), qt.Equals, 1)
	c.Assert(clone.Root().Equal(tree.Root()), qt.IsFalse)
}
