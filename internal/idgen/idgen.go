// Package idgen generates identifiers for canonical records and import batches.
package idgen

import (
	"crypto/sha256"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

// SyntheticUserPrefix prefixes the external id of users created from a
// source export.
const SyntheticUserPrefix = "source-user-"

// base36Alphabet is the character set for base36 encoding (0-9, a-z).
const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewID returns a time-ordered identifier of the form "<prefix>-<uuid v7>".
func NewID(prefix string) string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	if prefix == "" {
		return id.String()
	}
	return prefix + "-" + id.String()
}

// SyntheticUserExternalID is the stable key of a user imported from the
// source system, used when the user has no email and to find the user again
// on re-import.
func SyntheticUserExternalID(sourceID int64) string {
	return fmt.Sprintf("%s%d", SyntheticUserPrefix, sourceID)
}

// EncodeBase36 converts a byte slice to a base36 string of specified length.
func EncodeBase36(data []byte, length int) string {
	num := new(big.Int).SetBytes(data)

	base := big.NewInt(36)
	zero := big.NewInt(0)
	mod := new(big.Int)

	chars := make([]byte, 0, length)
	for num.Cmp(zero) > 0 {
		num.DivMod(num, base, mod)
		chars = append(chars, base36Alphabet[mod.Int64()])
	}

	var result strings.Builder
	for i := len(chars) - 1; i >= 0; i-- {
		result.WriteByte(chars[i])
	}

	str := result.String()
	if len(str) < length {
		str = strings.Repeat("0", length-len(str)) + str
	}
	// Keep least significant digits
	if len(str) > length {
		str = str[len(str)-length:]
	}
	return str
}

// BatchFingerprint derives a short, content-addressed id for an uploaded file
// so log lines from one upload can be correlated, and repeated uploads of the
// same file share an id.
func BatchFingerprint(kind string, data []byte) string {
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%s-%s", kind, EncodeBase36(hash[:5], 8))
}
