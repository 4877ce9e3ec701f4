// Package ton canonicalises TON wallet addresses into the single user key
// form the ledger stores balances under.
package ton

import (
	"fmt"
	"strings"

	"github.com/xssnick/tonutils-go/address"
)

// GuestUser is the sentinel identifier for unauthenticated play-money users.
const GuestUser = "guest"

// Normalize parses a raw address — friendly base64 form or raw "wc:hex" form —
// and returns the canonical non-bounceable mainnet friendly representation.
// The literal "guest" passes through unchanged.
//
// All balance, bet and settlement keys are derived from this canonical form so
// the same wallet always maps to the same ledger entries no matter which
// representation the client sends.
func Normalize(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("ton.Normalize: empty address")
	}
	if s == GuestUser {
		return GuestUser, nil
	}

	var (
		addr *address.Address
		err  error
	)
	if strings.Contains(s, ":") {
		addr, err = address.ParseRawAddr(s)
	} else {
		addr, err = address.ParseAddr(s)
	}
	if err != nil {
		return "", fmt.Errorf("ton.Normalize: %w", err)
	}

	return addr.Bounce(false).Testnet(false).String(), nil
}
