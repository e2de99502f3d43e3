package types

import (
	"fmt"

	"github.com/holiman/uint256"
)

// MaxAmountBits is the width of a claim amount in token base units.
// Amounts are 128-bit unsigned integers end-to-end; they are rendered as
// decimal strings only at the JSON boundary.
const MaxAmountBits = 128

// AccountID is an opaque, canonically-formatted account identifier.
// Comparison and encoding are byte-exact: the distributor performs no
// normalization, so case or whitespace differences produce different leaves.
type AccountID string

func (a AccountID) String() string {
	return string(a)
}

// ParseAmount parses a decimal token amount and enforces the 128-bit cap.
func ParseAmount(s string) (*uint256.Int, error) {
	amount, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if amount.BitLen() > MaxAmountBits {
		return nil, fmt.Errorf("amount %s exceeds %d bits", s, MaxAmountBits)
	}
	return amount, nil
}

// Eligibility is one record of the airdrop eligibility set: an account and
// the amount it may claim. The full set is frozen off-system when the tree
// is built; the distributor only ever sees one record plus its proof.
type Eligibility struct {
	AccountID AccountID
	Amount    *uint256.Int
}

// PendingTransfer records a claim whose token transfer failed after the
// claim was already marked. The claim itself is never rolled back; the
// transfer is retried from this record until it succeeds.
type PendingTransfer struct {
	AccountID AccountID `json:"account_id"`
	// Amount in token base units, canonical decimal encoding
	Amount        string `json:"amount"`
	Attempts      int    `json:"attempts"`
	LastError     string `json:"last_error,omitempty"`
	FirstFailedAt int64  `json:"first_failed_at"` // Unix timestamp
}
