package poll

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/vocdoni/maci-poll/crypto/ecc/bjj"
	"github.com/vocdoni/maci-poll/crypto/field"
	"github.com/vocdoni/maci-poll/domain"
	"github.com/vocdoni/maci-poll/macistate"
	"github.com/vocdoni/maci-poll/util"
)

// testFixture bundles the pieces an end-to-end scenario needs: a
// MaciState with voters already signed up, a coordinator keypair, and
// the poll attached to both.
type testFixture struct {
	maci        *macistate.MaciState
	coordinator *bjj.Keypair
	voters      []*bjj.Keypair
	poll        *Poll
}

func newTestFixture(t *testing.T, numVoters int, params Params) *testFixture {
	c := qt.New(t)
	maci := macistate.New(params.StateTreeDepth)
	coordinator, err := bjj.GenKeypair()
	c.Assert(err, qt.IsNil)

	voters := make([]*bjj.Keypair, numVoters)
	for i := 0; i < numVoters; i++ {
		kp, err := bjj.GenKeypair()
		c.Assert(err, qt.IsNil)
		_, err = maci.SignUp(kp.Pub, field.NewFromInt64(100), field.NewFromInt64(0))
		c.Assert(err, qt.IsNil)
		voters[i] = kp
	}

	p := New(field.NewFromInt64(1), params, maci, coordinator, util.NewCounterSaltSource())
	return &testFixture{maci: maci, coordinator: coordinator, voters: voters, poll: p}
}

func (f *testFixture) publishVote(t *testing.T, signer *bjj.Keypair, stateIndex int, newPubKey *bjj.PubKey, voteOption, weight, nonce int64) {
	c := qt.New(t)
	ephemeral, err := bjj.GenKeypair()
	c.Assert(err, qt.IsNil)

	cmd := &domain.PCommand{
		StateIndex:      field.NewFromInt64(int64(stateIndex)),
		NewPubKey:       newPubKey,
		VoteOptionIndex: field.NewFromInt64(voteOption),
		NewVoteWeight:   field.NewFromInt64(weight),
		Nonce:           field.NewFromInt64(nonce),
		PollID:          f.poll.ID,
		Salt:            field.NewFromInt64(42),
	}
	cmd.Sign(signer.Priv)

	sx, sy, err := bjj.GenEcdhSharedKey(ephemeral.Priv, f.coordinator.Pub)
	c.Assert(err, qt.IsNil)
	msg := cmd.Encrypt(sx, sy)
	f.poll.PublishMessage(msg, ephemeral.Pub)
}

func defaultParams() Params {
	return Params{
		PollEndTimestamp:    field.NewFromInt64(9999999999),
		StateTreeDepth:      4,
		MessageTreeDepth:    4,
		VoteOptionTreeDepth: 1,
		MessageBatchSize:    5,
		TallyBatchSize:      2,
		MaxVoteOptions:      5,
	}
}

func TestEndToEndSingleValidVote(t *testing.T) {
	c := qt.New(t)
	f := newTestFixture(t, 2, defaultParams())

	f.publishVote(t, f.voters[0], 1, f.voters[0].Pub, 0, 3, 1)
	f.publishVote(t, f.voters[1], 2, f.voters[1].Pub, 1, 2, 1)

	for f.poll.HasUnprocessedMessages() {
		_, err := f.poll.ProcessMessages()
		c.Assert(err, qt.IsNil)
	}

	c.Assert(f.poll.Ballots[1].Votes[0].MathBigInt().Int64(), qt.Equals, int64(3))
	c.Assert(f.poll.Ballots[2].Votes[1].MathBigInt().Int64(), qt.Equals, int64(2))
	c.Assert(f.poll.StateLeaves[1].VoiceCreditBalance.MathBigInt().Int64(), qt.Equals, int64(91))

	for f.poll.HasUntalliedBallots() {
		_, err := f.poll.TallyVotes()
		c.Assert(err, qt.IsNil)
	}
	c.Assert(f.poll.TallyResult[0].MathBigInt().Int64(), qt.Equals, int64(3))
	c.Assert(f.poll.TallyResult[1].MathBigInt().Int64(), qt.Equals, int64(2))
	c.Assert(f.poll.TotalSpentVoiceCredits.MathBigInt().Int64(), qt.Equals, int64(13))

	for f.poll.HasUnfinishedSubsidyCalculation() {
		_, err := f.poll.Subsidy()
		c.Assert(err, qt.IsNil)
	}
}

// TestEndToEndKeyChangeThenVote exercises a key change applying before a
// vote cast under the new key, both landing in the same message batch.
// ProcessMessages walks a batch in reverse (highest message index
// first), so the command that must apply first against the original
// ballot nonce is published SECOND (ending up at the higher index), and
// the command meant to chain after it is published FIRST with the
// higher nonce.
func TestEndToEndKeyChangeThenVote(t *testing.T) {
	c := qt.New(t)
	f := newTestFixture(t, 2, defaultParams())

	newKey, err := bjj.GenKeypair()
	c.Assert(err, qt.IsNil)

	// published first (array index 0), processed second: requires the
	// ballot nonce the key-change message leaves behind.
	f.publishVote(t, newKey, 1, newKey.Pub, 1, 4, 2)
	// published second (array index 1), processed first against the
	// original ballot nonce.
	f.publishVote(t, f.voters[0], 1, newKey.Pub, 0, 1, 1)

	for f.poll.HasUnprocessedMessages() {
		_, err := f.poll.ProcessMessages()
		c.Assert(err, qt.IsNil)
	}

	c.Assert(f.poll.StateLeaves[1].PubKey.Equal(newKey.Pub), qt.IsTrue)
	c.Assert(f.poll.Ballots[1].Votes[0].MathBigInt().Int64(), qt.Equals, int64(1))
	c.Assert(f.poll.Ballots[1].Votes[1].MathBigInt().Int64(), qt.Equals, int64(4))
}

func TestEndToEndOverspendRejected(t *testing.T) {
	c := qt.New(t)
	f := newTestFixture(t, 1, defaultParams())

	// balance is 100, so weight 11 (121 credits) cannot be afforded.
	f.publishVote(t, f.voters[0], 1, f.voters[0].Pub, 0, 11, 1)

	for f.poll.HasUnprocessedMessages() {
		_, err := f.poll.ProcessMessages()
		c.Assert(err, qt.IsNil)
	}

	c.Assert(f.poll.Ballots[1].Votes[0].IsZero(), qt.IsTrue)
	c.Assert(f.poll.StateLeaves[1].VoiceCreditBalance.MathBigInt().Int64(), qt.Equals, int64(100))
}

func TestEndToEndTopup(t *testing.T) {
	c := qt.New(t)
	f := newTestFixture(t, 1, defaultParams())

	data := make([]*field.F, domain.MessageDataLen)
	data[0] = field.NewFromInt64(1)
	data[1] = field.NewFromInt64(50)
	for i := 2; i < len(data); i++ {
		data[i] = field.NewFromInt64(0)
	}
	msg, err := domain.NewMessage(domain.MsgTypeTopup, data)
	c.Assert(err, qt.IsNil)
	f.poll.TopupMessage(msg)

	for f.poll.HasUnprocessedMessages() {
		_, err := f.poll.ProcessMessages()
		c.Assert(err, qt.IsNil)
	}

	c.Assert(f.poll.StateLeaves[1].VoiceCreditBalance.MathBigInt().Int64(), qt.Equals, int64(150))
}

func TestEndToEndPartialBatchPadding(t *testing.T) {
	c := qt.New(t)
	params := defaultParams()
	params.MessageBatchSize = 5
	f := newTestFixture(t, 1, params)

	f.publishVote(t, f.voters[0], 1, f.voters[0].Pub, 0, 2, 1)

	c.Assert(f.poll.TotalMessageBatches(), qt.Equals, 1)
	inputs, err := f.poll.ProcessMessages()
	c.Assert(err, qt.IsNil)
	c.Assert(len(inputs.Messages), qt.Equals, 5)
	c.Assert(f.poll.HasUnprocessedMessages(), qt.IsFalse)
}

// TestProcessMessagesSbCommitmentChains confirms each batch's current
// sb-commitment equals the prior batch's new sb-commitment, the
// hash-chain ProcessMessages must preserve across calls.
func TestProcessMessagesSbCommitmentChains(t *testing.T) {
	c := qt.New(t)
	params := defaultParams()
	params.MessageBatchSize = 1
	f := newTestFixture(t, 2, params)

	f.publishVote(t, f.voters[0], 1, f.voters[0].Pub, 0, 3, 1)
	f.publishVote(t, f.voters[1], 2, f.voters[1].Pub, 1, 2, 1)
	f.publishVote(t, f.voters[0], 1, f.voters[0].Pub, 2, 1, 2)
	f.publishVote(t, f.voters[1], 2, f.voters[1].Pub, 3, 1, 2)

	c.Assert(f.poll.TotalMessageBatches(), qt.Equals, 4)

	first, err := f.poll.ProcessMessages()
	c.Assert(err, qt.IsNil)
	second, err := f.poll.ProcessMessages()
	c.Assert(err, qt.IsNil)

	c.Assert(second.CurrentSbCommitment.Equal(first.NewSbCommitment), qt.IsTrue)
}

func TestZeroMessagesStillOneBatch(t *testing.T) {
	c := qt.New(t)
	f := newTestFixture(t, 1, defaultParams())
	c.Assert(f.poll.TotalMessageBatches(), qt.Equals, 1)
	c.Assert(f.poll.HasUnprocessedMessages(), qt.IsTrue)

	_, err := f.poll.ProcessMessages()
	c.Assert(err, qt.IsNil)
	c.Assert(f.poll.HasUnprocessedMessages(), qt.IsFalse)
}

func TestSubsidyTriangleCoversAllPairs(t *testing.T) {
	c := qt.New(t)
	params := defaultParams()
	params.TallyBatchSize = 2
	f := newTestFixture(t, 4, params)

	for i, voter := range f.voters {
		f.publishVote(t, voter, i+1, voter.Pub, 0, 2, 1)
	}
	for f.poll.HasUnprocessedMessages() {
		_, err := f.poll.ProcessMessages()
		c.Assert(err, qt.IsNil)
	}

	blocks := 0
	for f.poll.HasUnfinishedSubsidyCalculation() {
		_, err := f.poll.Subsidy()
		c.Assert(err, qt.IsNil)
		blocks++
	}
	c.Assert(blocks > 0, qt.IsTrue)
	c.Assert(f.poll.SubsidyResult[0].IsZero(), qt.IsFalse)
}
