package poll

import (
	"fmt"

	"github.com/vocdoni/maci-poll/crypto/ecc/bjj"
	"github.com/vocdoni/maci-poll/crypto/field"
	"github.com/vocdoni/maci-poll/domain"
	"github.com/vocdoni/maci-poll/log"
)

// PublishMessage ingests a vote/key-change message (msgType == 1). Every
// message word and pubkey coordinate already lives in [0,
// SNARK_FIELD_SIZE) by construction of field.F, so §4.1's range
// precondition is enforced by the type system rather than a runtime
// check; only the msgType tag is checked here, and a violation is a
// programmer error, not a recoverable one.
func (p *Poll) PublishMessage(message *domain.Message, encPubKey *bjj.PubKey) {
	if message.MsgType.Cmp(field.NewFromInt64(domain.MsgTypeVoteOrKeyChange)) != 0 {
		panic(fmt.Sprintf("poll: PublishMessage called with msgType %s, want %d",
			message.MsgType, domain.MsgTypeVoteOrKeyChange))
	}

	p.Messages = append(p.Messages, message)
	p.EncPubKeys = append(p.EncPubKeys, encPubKey)
	if err := p.MessageTree.Insert(message.Hash(encPubKey)); err != nil {
		panic(fmt.Sprintf("poll: message tree insert: %v", err))
	}

	cmd := p.decryptCommand(message, encPubKey)
	p.Commands = append(p.Commands, cmd)
}

// decryptCommand computes the ECDH shared key between the coordinator
// and the message's ephemeral sender key, then attempts PCommand
// decryption. Our symmetric masking (crypto: domain.PCommand.Encrypt) has
// no ill-formed-ciphertext failure mode of its own — garbage input
// unmasks to a syntactically valid but wrongly-signed PCommand, which
// processMessage's signature check (rule 2 of §4.3) will reject anyway
// — but the decrypt is still wrapped in a recover so that a genuinely
// malformed message never desynchronizes the per-message arrays, in
// keeping with §4.1's "decryption failures are silently converted to
// placeholder commands" policy.
func (p *Poll) decryptCommand(message *domain.Message, encPubKey *bjj.PubKey) domain.ICommand {
	var cmd domain.ICommand
	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Warnw("message decryption failed, using blank command", "pollId", p.ID.String(), "recover", r)
				cmd = domain.NewBlankCommand()
			}
		}()
		sx, sy, err := bjj.GenEcdhSharedKey(p.CoordinatorKeyPair.Priv, encPubKey)
		if err != nil {
			cmd = domain.NewBlankCommand()
			return
		}
		cmd = domain.DecryptPCommand(message, sx, sy)
	}()
	return cmd
}

// TopupMessage ingests a topup message (msgType == 2), which increases a
// voter's voice-credit balance outside the signed command flow and so
// carries no encryption key or signature.
func (p *Poll) TopupMessage(message *domain.Message) {
	if message.MsgType.Cmp(field.NewFromInt64(domain.MsgTypeTopup)) != 0 {
		panic(fmt.Sprintf("poll: TopupMessage called with msgType %s, want %d",
			message.MsgType, domain.MsgTypeTopup))
	}

	p.Messages = append(p.Messages, message)
	p.EncPubKeys = append(p.EncPubKeys, bjj.PadKey)
	if err := p.MessageTree.Insert(message.Hash(bjj.PadKey)); err != nil {
		panic(fmt.Sprintf("poll: message tree insert: %v", err))
	}

	cmd := &domain.TCommand{
		StateIndex: message.Data[0].Clone(),
		Amount:     message.Data[1].Clone(),
		PollID:     p.ID.Clone(),
	}
	p.Commands = append(p.Commands, cmd)
}
