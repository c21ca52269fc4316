// Package ident generates the device-scoped identifiers that must stay
// unique across every terminal of a shop: the device id, sale numbers
// and stock audit references.
package ident

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var uuidV4Regex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-4[0-9a-fA-F]{3}-[89abAB][0-9a-fA-F]{3}-[0-9a-fA-F]{12}$`)

// NewDeviceID generates a fresh device identifier (UUID v4).
func NewDeviceID() string {
	return uuid.New().String()
}

// NewSaleNumber generates a globally unique sale number. The device
// prefix keeps numbers human-attributable to a terminal; the UUID tail
// guarantees uniqueness even when two tills ring up sales offline.
func NewSaleNumber(deviceID string) string {
	prefix := deviceID
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return fmt.Sprintf("V-%s-%s", strings.ToUpper(prefix), uuid.New().String())
}

// NewStockRef generates a unique reference for a stock history entry.
// The reference is the dedupe key during merge: the audit trail has no
// natural key of its own.
func NewStockRef() string {
	return uuid.New().String()
}

// IsValidDeviceID checks if a string is a valid device id (UUID v4).
func IsValidDeviceID(s string) bool {
	return uuidV4Regex.MatchString(s)
}
