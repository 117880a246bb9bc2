package domain

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/vocdoni/maci-poll/crypto/ecc/bjj"
	"github.com/vocdoni/maci-poll/crypto/field"
	"github.com/vocdoni/maci-poll/crypto/hash/poseidon"
)

// Command type discriminators, serialized as cmdType in JSON per §6/§9.
// Blank has no on-chain counterpart, so "0" is reserved for it outside
// the persisted {"1","2"} pair §6 documents for PCommand/TCommand.
const (
	CmdTypeP     = "1"
	CmdTypeT     = "2"
	CmdTypeBlank = "0"
)

// ICommand is the tagged sum type a decoded message resolves to: a
// vote/key-change command, a topup command, or a blank placeholder used
// whenever decryption fails or a slot has no backing message.
type ICommand interface {
	CmdType() string
	Clone() ICommand
}

// PCommand is a signed vote/key-change command, MACI's core vote payload.
type PCommand struct {
	StateIndex      *field.F    `json:"stateIndex"`
	NewPubKey       *bjj.PubKey `json:"newPubKey"`
	VoteOptionIndex *field.F    `json:"voteOptionIndex"`
	NewVoteWeight   *field.F    `json:"newVoteWeight"`
	Nonce           *field.F    `json:"nonce"`
	PollID          *field.F    `json:"pollId"`
	Salt            *field.F    `json:"salt"`

	Signature *bjj.Signature `json:"signature,omitempty"`
}

func (c *PCommand) CmdType() string { return CmdTypeP }

func (c *PCommand) Clone() ICommand {
	return &PCommand{
		StateIndex:      c.StateIndex.Clone(),
		NewPubKey:       c.NewPubKey.Clone(),
		VoteOptionIndex: c.VoteOptionIndex.Clone(),
		NewVoteWeight:   c.NewVoteWeight.Clone(),
		Nonce:           c.Nonce.Clone(),
		PollID:          c.PollID.Clone(),
		Salt:            c.Salt.Clone(),
		Signature:       c.Signature,
	}
}

// Hash returns the command's Poseidon commitment, the value that gets
// signed and that verifySignature checks against.
func (c *PCommand) Hash() *field.F {
	return poseidon.HashN(
		c.StateIndex, c.NewPubKey.X, c.NewPubKey.Y, c.VoteOptionIndex,
		c.NewVoteWeight, c.Nonce, c.PollID, c.Salt,
	)
}

// VerifySignature checks the command's own signature was produced by
// signerPubKey over Hash(). This is the old state leaf's pubkey, per the
// command state machine's rule 2 (§4.3).
func (c *PCommand) VerifySignature(signerPubKey *bjj.PubKey) bool {
	if c.Signature == nil {
		return false
	}
	return signerPubKey.VerifyPoseidon(c.Hash(), c.Signature)
}

// Sign produces (and attaches) a signature over Hash() using priv.
func (c *PCommand) Sign(priv *bjj.PrivKey) {
	c.Signature = priv.SignPoseidon(c.Hash())
}

// fieldsForEncryption returns the command's payload as the ordered field
// vector that gets symmetrically masked under the ECDH shared key, plus
// the three signature components appended so the whole command round
// trips through encryption. StateIndex and VoteOptionIndex share the
// first word (VoteOptionIndex shifted left by 50 bits), which keeps the
// vector within MessageDataLen words.
func (c *PCommand) fieldsForEncryption() []*field.F {
	packed := new(big.Int).Lsh(c.VoteOptionIndex.MathBigInt(), 50)
	packed.Or(packed, c.StateIndex.MathBigInt())
	out := []*field.F{
		field.NewFromBigInt(packed), c.NewPubKey.X, c.NewPubKey.Y,
		c.NewVoteWeight, c.Nonce, c.PollID, c.Salt,
	}
	if c.Signature != nil {
		out = append(out, c.Signature.R8X, c.Signature.R8Y, c.Signature.S)
	}
	return out
}

const pCommandFieldCount = 10

// Encrypt packs the command into a MessageDataLen-wide word vector,
// symmetrically masked under the ECDH shared key derived from
// (recipientPriv-side ephemeral key, recipientPub). The mask for word i
// is Poseidon(sharedX, sharedY, i), the same additive-in-the-field
// construction as dkg/secies.ScalarECIES.Encrypt's "c = message + s mod
// Fr", generalized from a single scalar to a fixed-width word vector.
func (c *PCommand) Encrypt(sharedX, sharedY *field.F) *Message {
	fields := c.fieldsForEncryption()
	data := make([]*field.F, MessageDataLen)
	for i := 0; i < MessageDataLen; i++ {
		var word *field.F
		if i < len(fields) {
			word = fields[i]
		} else {
			word = field.NewFromInt64(0)
		}
		mask := poseidon.Hash3([3]*field.F{sharedX, sharedY, field.NewFromInt64(int64(i))})
		data[i] = field.Add(word, mask)
	}
	msg := &Message{MsgType: field.NewFromInt64(MsgTypeVoteOrKeyChange)}
	copy(msg.Data[:], data)
	return msg
}

// DecryptPCommand reverses Encrypt, unmasking each word with the same
// per-index Poseidon mask and reassembling the command. It never
// returns an error on malformed-looking data: garbage input unmasks to
// garbage field elements, and the caller (publishMessage) is expected to
// treat any downstream inconsistency as a failed decryption by falling
// back to a blank command, never by panicking.
func DecryptPCommand(msg *Message, sharedX, sharedY *field.F) *PCommand {
	words := make([]*field.F, MessageDataLen)
	for i := 0; i < MessageDataLen; i++ {
		mask := poseidon.Hash3([3]*field.F{sharedX, sharedY, field.NewFromInt64(int64(i))})
		words[i] = field.Sub(msg.Data[i], mask)
	}
	packed := words[0].MathBigInt()
	lowMask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 50), big.NewInt(1))
	cmd := &PCommand{
		StateIndex:      field.NewFromBigInt(new(big.Int).And(packed, lowMask)),
		NewPubKey:       &bjj.PubKey{X: words[1], Y: words[2]},
		VoteOptionIndex: field.NewFromBigInt(new(big.Int).Rsh(packed, 50)),
		NewVoteWeight:   words[3],
		Nonce:           words[4],
		PollID:          words[5],
		Salt:            words[6],
	}
	if len(words) >= pCommandFieldCount {
		cmd.Signature = &bjj.Signature{R8X: words[7], R8Y: words[8], S: words[9]}
	}
	return cmd
}

// TCommand is a topup: it increases a voter's voice-credit balance
// outside the signed vote-command flow and carries no signature.
type TCommand struct {
	StateIndex *field.F `json:"stateIndex"`
	Amount     *field.F `json:"amount"`
	PollID     *field.F `json:"pollId"`
}

func (c *TCommand) CmdType() string { return CmdTypeT }

func (c *TCommand) Clone() ICommand {
	return &TCommand{
		StateIndex: c.StateIndex.Clone(),
		Amount:     c.Amount.Clone(),
		PollID:     c.PollID.Clone(),
	}
}

// BlankCommand is the zero placeholder pushed whenever a message slot
// carries no usable command: failed decryption, or an out-of-range
// batch index padded during processing.
type BlankCommand struct{}

func (c *BlankCommand) CmdType() string { return CmdTypeBlank }
func (c *BlankCommand) Clone() ICommand { return &BlankCommand{} }

// NewBlankCommand returns a new blank placeholder value.
func NewBlankCommand() ICommand { return &BlankCommand{} }

// BlankPCommand returns an all-zero PCommand, used as the placeholder
// witness payload for rejected or out-of-range batch slots (§4.4's
// "prepend blank placeholders").
func BlankPCommand() *PCommand {
	return &PCommand{
		StateIndex:      field.NewFromInt64(0),
		NewPubKey:       &bjj.PubKey{X: field.NewFromInt64(0), Y: field.NewFromInt64(0)},
		VoteOptionIndex: field.NewFromInt64(0),
		NewVoteWeight:   field.NewFromInt64(0),
		Nonce:           field.NewFromInt64(0),
		PollID:          field.NewFromInt64(0),
		Salt:            field.NewFromInt64(0),
		Signature:       &bjj.Signature{R8X: field.NewFromInt64(0), R8Y: field.NewFromInt64(0), S: field.NewFromInt64(0)},
	}
}

// commandJSON is the wire envelope for ICommand: cmdType selects which
// of the three payload shapes body holds.
type commandJSON struct {
	CmdType string          `json:"cmdType"`
	Body    json.RawMessage `json:"body,omitempty"`
}

// MarshalCommandJSON encodes an ICommand with its cmdType discriminator.
func MarshalCommandJSON(c ICommand) ([]byte, error) {
	env := commandJSON{CmdType: c.CmdType()}
	switch c.CmdType() {
	case CmdTypeBlank:
	default:
		body, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		env.Body = body
	}
	return json.Marshal(env)
}

// UnmarshalCommandJSON decodes an ICommand previously written by
// MarshalCommandJSON.
func UnmarshalCommandJSON(data []byte) (ICommand, error) {
	var env commandJSON
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	switch env.CmdType {
	case CmdTypeP:
		var c PCommand
		if err := json.Unmarshal(env.Body, &c); err != nil {
			return nil, err
		}
		return &c, nil
	case CmdTypeT:
		var c TCommand
		if err := json.Unmarshal(env.Body, &c); err != nil {
			return nil, err
		}
		return &c, nil
	case CmdTypeBlank:
		return NewBlankCommand(), nil
	default:
		return nil, fmt.Errorf("domain: unknown cmdType %q", env.CmdType)
	}
}
