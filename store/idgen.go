package store

import (
	"crypto/rand"
	"math/big"

	"github.com/google/uuid"
)

// NewObjectID returns a globally unique, opaque object identifier.
func NewObjectID() string {
	return uuid.New().String()
}

// NewRevisionID returns a globally unique, opaque revision identifier.
func NewRevisionID() string {
	return uuid.New().String()
}

// suffixAlphabet is the character set short table-suffix ids are drawn
// from: lowercase letters and digits, matching isValidSuffix.
const suffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// suffixLength is the fixed length of a generated table suffix.
const suffixLength = 6

// NewSuffix returns a short lowercase alphanumeric string suitable for use
// as a physical-table suffix. Callers must retry on collision against the
// mapping table (see Mapping Registry); NewSuffix itself does not check
// for prior use.
func NewSuffix() (string, error) {
	buf := make([]byte, suffixLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(suffixAlphabet))))
		if err != nil {
			return "", err
		}
		buf[i] = suffixAlphabet[n.Int64()]
	}
	return string(buf), nil
}
