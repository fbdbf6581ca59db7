/*
Package randx provides identifier and alias generation for the chat coordinator.

Channel identifiers are UUID v4 strings. Anonymous aliases are derived
deterministically from the subject identifier so that the same subject shows the
same alias in every room without storing it.
*/
package randx

import (
	"fmt"
	"hash/fnv"
	"strconv"

	"github.com/google/uuid"
)

const (
	// AliasPrefix is prepended to the derived anonymous number.
	AliasPrefix = "Anon"

	// aliasModulus bounds the anonymous number to three digits.
	aliasModulus = 1000

	// aliasMultiplier spreads consecutive numeric ids across the alias space.
	aliasMultiplier = 7
)

// ChannelID generates a fresh identifier for a live connection.
func ChannelID() string {
	return uuid.New().String()
}

// AnonNumber maps a subject identifier onto [0, 1000).
// Numeric identifiers use (id * 7) % 1000; anything else is hashed with FNV-1a.
func AnonNumber(subjectID string) int {
	if n, err := strconv.ParseInt(subjectID, 10, 64); err == nil {
		v := (n % aliasModulus) * aliasMultiplier % aliasModulus
		if v < 0 {
			v += aliasModulus
		}
		return int(v)
	}

	h := fnv.New32a()
	h.Write([]byte(subjectID))
	return int(h.Sum32() % aliasModulus)
}

// AnonAlias returns the display alias for a subject, e.g. "Anon7".
func AnonAlias(subjectID string) string {
	return fmt.Sprintf("%s%d", AliasPrefix, AnonNumber(subjectID))
}
