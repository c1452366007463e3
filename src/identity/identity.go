// Package identity generates the regenerated guest identity pieces:
// UUIDs, short snapshot labels, and fleet-unique MAC addresses.
package identity

import (
	"crypto/rand"
	"fmt"

	"github.com/google/uuid"
)

// macPrefix is the OUI used for generated guest MAC addresses.
const macPrefix = "58:9c:fc"

const maxMACAttempts = 64

// NewUUID returns a fresh guest or image UUID.
func NewUUID() string {
	return uuid.NewString()
}

// ShortLabel returns a compact label derived from a fresh UUID, used to
// name the transient snapshot a clone is taken from.
func ShortLabel() string {
	return uuid.NewString()[:8]
}

// NewMAC generates a MAC address under the fixed OUI that does not
// appear in inUse. The caller supplies every MAC already configured
// across the fleet so the address is unique among guests.
func NewMAC(inUse map[string]bool) (string, error) {
	for attempt := 0; attempt < maxMACAttempts; attempt++ {
		var b [3]byte
		if _, err := rand.Read(b[:]); err != nil {
			return "", fmt.Errorf("generate mac: %w", err)
		}
		mac := fmt.Sprintf("%s:%02x:%02x:%02x", macPrefix, b[0], b[1], b[2])
		if !inUse[mac] {
			return mac, nil
		}
	}
	return "", fmt.Errorf("generate mac: no free address after %d attempts", maxMACAttempts)
}
