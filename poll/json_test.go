package poll

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/vocdoni/maci-poll/util"
)

func TestJSONRoundTripBeforeProcessing(t *testing.T) {
	c := qt.New(t)
	f := newTestFixture(t, 2, defaultParams())

	f.publishVote(t, f.voters[0], 1, f.voters[0].Pub, 0, 3, 1)
	f.publishVote(t, f.voters[1], 2, f.voters[1].Pub, 1, 2, 1)

	data, err := f.poll.ToJSON()
	c.Assert(err, qt.IsNil)

	restored, err := FromJSON(data, f.maci, f.coordinator, util.NewCounterSaltSource())
	c.Assert(err, qt.IsNil)
	c.Assert(f.poll.Equals(restored), qt.IsTrue)
}

func TestJSONRoundTripAfterProcessing(t *testing.T) {
	c := qt.New(t)
	f := newTestFixture(t, 2, defaultParams())

	f.publishVote(t, f.voters[0], 1, f.voters[0].Pub, 0, 3, 1)
	f.publishVote(t, f.voters[1], 2, f.voters[1].Pub, 1, 2, 1)

	_, err := f.poll.ProcessMessages()
	c.Assert(err, qt.IsNil)

	data, err := f.poll.ToJSON()
	c.Assert(err, qt.IsNil)

	restored, err := FromJSON(data, f.maci, f.coordinator, util.NewCounterSaltSource())
	c.Assert(err, qt.IsNil)
	c.Assert(f.poll.Equals(restored), qt.IsTrue)
	c.Assert(restored.StateCopied, qt.IsTrue)
	c.Assert(restored.StateTree.Root().Equal(f.poll.StateTree.Root()), qt.IsTrue)
	c.Assert(restored.BallotTree.Root().Equal(f.poll.BallotTree.Root()), qt.IsTrue)

	for f.poll.HasUnprocessedMessages() {
		_, err := f.poll.ProcessMessages()
		c.Assert(err, qt.IsNil)
	}
	for restored.HasUnprocessedMessages() {
		_, err := restored.ProcessMessages()
		c.Assert(err, qt.IsNil)
	}
	c.Assert(restored.StateTree.Root().Equal(f.poll.StateTree.Root()), qt.IsTrue)
}

func TestPollCopyIsIndependent(t *testing.T) {
	c := qt.New(t)
	f := newTestFixture(t, 1, defaultParams())
	f.publishVote(t, f.voters[0], 1, f.voters[0].Pub, 0, 3, 1)

	clone := f.poll.Copy()
	c.Assert(f.poll.Equals(clone), qt.IsTrue)

	f.publishVote(t, f.voters[0], 1, f.voters[0].Pub, 0, 5, 2)

	c.Assert(len(clone.Messages), qt.Equals, 1)
	c.Assert(len(f.poll.Messages), qt.Equals, 2)
}
