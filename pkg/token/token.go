package token

import (
	"context"

	"github.com/holiman/uint256"

	"github.com/driftlake/merkledrop-go/pkg/types"
)

// ITokenTransferor is the external fungible-token collaborator. The
// distributor invokes it at most once per successful claim, strictly after
// the claim has been marked in the ledger. Its success is not atomic with
// the claim: a failed transfer leaves the claim marked and is retried from
// the pending-transfer queue.
type ITokenTransferor interface {
	// Transfer moves amount (token base units) to the recipient.
	// A non-nil error means the transfer did not happen.
	Transfer(ctx context.Context, recipient types.AccountID, amount *uint256.Int) error
}
