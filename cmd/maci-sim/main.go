// Command maci-sim runs a scripted poll end to end: it signs up a
// handful of voters, publishes a mix of votes, key changes, an
// over-spend attempt, and a topup, then drains message processing,
// tallying, and subsidy calculation, printing each stage's circuit
// input hash as it goes.
package main

import (
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/vocdoni/maci-poll/crypto/ecc/bjj"
	"github.com/vocdoni/maci-poll/crypto/field"
	"github.com/vocdoni/maci-poll/domain"
	"github.com/vocdoni/maci-poll/log"
	"github.com/vocdoni/maci-poll/macistate"
	"github.com/vocdoni/maci-poll/poll"
)

func main() {
	numVoters := flag.Int("voters", 4, "number of voters to sign up")
	stateTreeDepth := flag.Int("state-tree-depth", 4, "signup state tree depth")
	messageTreeDepth := flag.Int("message-tree-depth", 4, "message tree depth")
	voteOptionTreeDepth := flag.Int("vote-option-tree-depth", 2, "vote option tree depth")
	messageBatchSize := flag.Int("message-batch-size", 5, "messages processed per ProcessMessages batch")
	tallyBatchSize := flag.Int("tally-batch-size", 5, "ballots processed per TallyVotes/Subsidy batch")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	log.Init(*logLevel, "stdout", nil)

	maxVoteOptions := 1
	for i := 0; i < *voteOptionTreeDepth; i++ {
		maxVoteOptions *= 5
	}

	coordinator, err := bjj.GenKeypair()
	if err != nil {
		log.Fatal(err)
	}

	maci := macistate.New(*stateTreeDepth)
	p := poll.New(field.NewFromInt64(1), poll.Params{
		PollEndTimestamp:    field.NewFromInt64(9999999999),
		StateTreeDepth:      *stateTreeDepth,
		MessageTreeDepth:    *messageTreeDepth,
		VoteOptionTreeDepth: *voteOptionTreeDepth,
		MessageBatchSize:    *messageBatchSize,
		TallyBatchSize:      *tallyBatchSize,
		MaxVoteOptions:      maxVoteOptions,
	}, maci, coordinator, nil)

	voters := signUpVoters(maci, *numVoters)
	log.Infof("signed up %d voters", len(voters))

	publishScenario(p, coordinator, voters, maxVoteOptions)

	batch := 0
	for p.HasUnprocessedMessages() {
		inputs, err := p.ProcessMessages()
		if err != nil {
			log.Fatal(err)
		}
		log.Infof("processMessages batch %d: [%d,%d) inputHash=%s", batch, inputs.BatchStartIndex, inputs.BatchEndIndex, inputs.InputHash)
		batch++
	}

	batch = 0
	for p.HasUntalliedBallots() {
		inputs, err := p.TallyVotes()
		if err != nil {
			log.Fatal(err)
		}
		log.Infof("tallyVotes batch %d: [%d,%d) inputHash=%s", batch, inputs.BatchStartIndex, inputs.BatchEndIndex, inputs.InputHash)
		batch++
	}

	batch = 0
	for p.HasUnfinishedSubsidyCalculation() {
		inputs, err := p.Subsidy()
		if err != nil {
			log.Fatal(err)
		}
		log.Infof("subsidy batch %d: (rbi=%d,cbi=%d) inputHash=%s", batch, inputs.Rbi, inputs.Cbi, inputs.InputHash)
		batch++
	}

	fmt.Println("final tally result:")
	for i, v := range p.TallyResult {
		fmt.Printf("  option %d: %s\n", i, v)
	}
	fmt.Printf("total spent voice credits: %s\n", p.TotalSpentVoiceCredits)
}

// signUpVoters registers numVoters fresh keypairs with a fixed initial
// voice-credit balance, returning their keypairs in signup order.
func signUpVoters(maci *macistate.MaciState, numVoters int) []*bjj.Keypair {
	voters := make([]*bjj.Keypair, numVoters)
	for i := 0; i < numVoters; i++ {
		kp, err := bjj.GenKeypair()
		if err != nil {
			log.Fatal(err)
		}
		if _, err := maci.SignUp(kp.Pub, field.NewFromInt64(100), field.NewFromInt64(0)); err != nil {
			log.Fatal(err)
		}
		voters[i] = kp
	}
	return voters
}

// publishScenario exercises the message types a poll can receive: a
// plain vote for every voter, a key change followed by a second vote for
// voter 1, a deliberately over-budget vote for voter 2 (rejected
// downstream by processMessage), and a topup for voter 3.
func publishScenario(p *poll.Poll, coordinator *bjj.Keypair, voters []*bjj.Keypair, maxVoteOptions int) {
	for i, voter := range voters {
		stateIndex := i + 1
		publishVote(p, coordinator, voter, stateIndex, voter.Pub, int64(stateIndex%maxVoteOptions), 5, 1)
	}

	if len(voters) > 1 {
		newKey, err := bjj.GenKeypair()
		if err != nil {
			log.Fatal(err)
		}
		publishVote(p, coordinator, voters[1], 2, newKey.Pub, 0, 3, 2)
		publishVote(p, coordinator, newKey, 2, newKey.Pub, 1, 4, 3)
	}

	if len(voters) > 2 {
		publishVote(p, coordinator, voters[2], 3, voters[2].Pub, 0, 50, 2)
	}

	if len(voters) > 3 {
		publishTopup(p, 4, 25)
	}
}

// publishVote encrypts and publishes a single PCommand, signed by
// signer over its own hash, through an ephemeral keypair's ECDH shared
// secret with the poll's coordinator.
func publishVote(p *poll.Poll, coordinator *bjj.Keypair, signer *bjj.Keypair, stateIndex int, newPubKey *bjj.PubKey, voteOption, weight, nonce int64) {
	ephemeral, err := bjj.GenKeypair()
	if err != nil {
		log.Fatal(err)
	}
	cmd := &domain.PCommand{
		StateIndex:      field.NewFromInt64(int64(stateIndex)),
		NewPubKey:       newPubKey,
		VoteOptionIndex: field.NewFromInt64(voteOption),
		NewVoteWeight:   field.NewFromInt64(weight),
		Nonce:           field.NewFromInt64(nonce),
		PollID:          p.ID,
		Salt:            field.NewFromInt64(int64(stateIndex)*1000 + nonce),
	}
	cmd.Sign(signer.Priv)

	sx, sy, err := bjj.GenEcdhSharedKey(ephemeral.Priv, coordinator.Pub)
	if err != nil {
		log.Fatal(err)
	}
	msg := cmd.Encrypt(sx, sy)
	p.PublishMessage(msg, ephemeral.Pub)
}

func publishTopup(p *poll.Poll, stateIndex int, amount int64) {
	data := make([]*field.F, domain.MessageDataLen)
	data[0] = field.NewFromInt64(int64(stateIndex))
	data[1] = field.NewFromInt64(amount)
	for i := 2; i < len(data); i++ {
		data[i] = field.NewFromInt64(0)
	}
	msg, err := domain.NewMessage(domain.MsgTypeTopup, data)
	if err != nil {
		log.Fatal(err)
	}
	p.TopupMessage(msg)
}
