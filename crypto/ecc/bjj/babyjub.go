// Package bjj wraps BabyJubJub keypairs, ECDH key agreement, and
// EdDSA-Poseidon signatures for the command state machine. It follows the
// same adapter shape as the teacher's ecc/bjj_iden3/babyjubjub.go — a thin
// layer over github.com/iden3/go-iden3-crypto/babyjub — but exposes the
// coordinator/voter-keypair-shaped API the Poll subsystem needs instead of
// the generic curve.Point interface.
package bjj

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/iden3/go-iden3-crypto/babyjub"
	"github.com/vocdoni/maci-poll/crypto/field"
	"github.com/vocdoni/maci-poll/crypto/hash/poseidon"
)

// PubKey is a point on BabyJubJub, (X, Y).
type PubKey struct {
	X *field.F
	Y *field.F
}

// PrivKey is a scalar private key.
type PrivKey struct {
	inner babyjub.PrivateKey
}

// Keypair bundles a private key with its derived public key.
type Keypair struct {
	Priv *PrivKey
	Pub  *PubKey
}

// GenKeypair generates a fresh random keypair.
func GenKeypair() (*Keypair, error) {
	var seed [32]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return nil, fmt.Errorf("bjj: read random seed: %w", err)
	}
	priv := &PrivKey{inner: babyjub.PrivateKey(seed)}
	return &Keypair{Priv: priv, Pub: priv.Public()}, nil
}

// Public derives the public key for this private key.
func (p *PrivKey) Public() *PubKey {
	pub := p.inner.Public()
	return &PubKey{X: field.NewFromBigInt(pub.X), Y: field.NewFromBigInt(pub.Y)}
}

// point converts a PubKey into the library's native affine point.
func (k *PubKey) point() *babyjub.PublicKey {
	return &babyjub.PublicKey{X: k.X.MathBigInt(), Y: k.Y.MathBigInt()}
}

// Equal reports whether two public keys hold the same coordinates.
func (k *PubKey) Equal(o *PubKey) bool {
	if k == nil || o == nil {
		return k == o
	}
	return k.X.Equal(o.X) && k.Y.Equal(o.Y)
}

// Clone returns a deep copy of the public key.
func (k *PubKey) Clone() *PubKey {
	return &PubKey{X: k.X.Clone(), Y: k.Y.Clone()}
}

// Hash returns the pubkey's Poseidon commitment, the coordinator
// identity value folded into the ProcessMessages input hash (§4.4).
func (k *PubKey) Hash() *field.F {
	return poseidon.Hash2(k.X, k.Y)
}

// PadKey is the fixed public key used as the encPubKey placeholder for
// topup messages (§4.1): two specific, non-random field constants so that
// the circuit can recognize a topup's padding slot deterministically.
var PadKey = &PubKey{
	X: field.NewFromInt64(0),
	Y: field.NewFromInt64(1),
}

// GenEcdhSharedKey derives the ECDH shared secret between a private key
// and a counterparty's public key: sharedPoint = pub * priv, returned as
// its two coordinates. Both sides of a conversation compute the same
// point because BabyJubJub scalar multiplication commutes over the
// subgroup (pub = G*privB, so pub*privA = G*privA*privB, symmetric).
func GenEcdhSharedKey(priv *PrivKey, pub *PubKey) (*field.F, *field.F, error) {
	scalar := priv.inner.Scalar().BigInt()
	shared := babyjub.NewPoint()
	shared = shared.Mul(scalar, pub.point().Point())
	if shared.X == nil || shared.Y == nil {
		return nil, nil, fmt.Errorf("bjj: ECDH produced an invalid point")
	}
	return field.NewFromBigInt(shared.X), field.NewFromBigInt(shared.Y), nil
}

// Signature is an EdDSA-Poseidon signature over a single field element.
type Signature struct {
	R8X *field.F
	R8Y *field.F
	S   *field.F
}

// SignPoseidon signs msg (a single field element, typically the Poseidon
// hash of a command's fields) with the EdDSA-over-Poseidon construction
// used throughout the MACI circuits.
func (p *PrivKey) SignPoseidon(msg *field.F) *Signature {
	sig := p.inner.SignPoseidon(msg.MathBigInt())
	return &Signature{
		R8X: field.NewFromBigInt(sig.R8.X),
		R8Y: field.NewFromBigInt(sig.R8.Y),
		S:   field.NewFromBigInt(sig.S),
	}
}

// VerifyPoseidon verifies sig over msg against this public key.
func (k *PubKey) VerifyPoseidon(msg *field.F, sig *Signature) bool {
	if sig == nil {
		return false
	}
	nativeSig := &babyjub.Signature{
		R8: babyjub.NewPoint(),
		S:  new(big.Int).Set(sig.S.MathBigInt()),
	}
	nativeSig.R8.X = sig.R8X.MathBigInt()
	nativeSig.R8.Y = sig.R8Y.MathBigInt()
	return k.point().VerifyPoseidon(msg.MathBigInt(), nativeSig)
}
