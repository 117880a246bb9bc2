package poll

import (
	"github.com/vocdoni/maci-poll/crypto/field"
	"github.com/vocdoni/maci-poll/crypto/hash/poseidon"
)

// nothingUpMySleeve is the message tree's zero value (§3).
func nothingUpMySleeve() *field.F {
	return poseidon.NothingUpMySleeve
}
