// Package storage holds the exchange store implementations.
package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tjfontaine/relaypipe/internal/core/ports"
)

// Re-export storage interfaces from core/ports for convenience.
type (
	ExchangeStore       = ports.ExchangeStore
	ExchangeListOptions = ports.ExchangeListOptions
)

// DefaultListLimit applies when ExchangeListOptions.Limit is zero.
const DefaultListLimit = 100

// ErrNotFound is returned when an exchange does not exist.
var ErrNotFound = errors.New("exchange not found")

// StatusRange turns a status class such as "4xx" into the half-open
// range [400, 500).
func StatusRange(class string) (int, int, error) {
	if len(class) != 3 || !strings.EqualFold(class[1:], "xx") || class[0] < '1' || class[0] > '5' {
		return 0, 0, fmt.Errorf("invalid status class %q", class)
	}
	lo := int(class[0]-'0') * 100
	return lo, lo + 100, nil
}
