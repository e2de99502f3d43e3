package token

import (
	"context"
	"fmt"
	"sync"

	"github.com/holiman/uint256"

	"github.com/driftlake/merkledrop-go/pkg/types"
)

// TransferRecord is one completed stub transfer.
type TransferRecord struct {
	Recipient types.AccountID
	Amount    *uint256.Int
}

// StubTransferor is an in-memory token collaborator for testing.
// It records every successful transfer and can be told to fail.
type StubTransferor struct {
	mu        sync.Mutex
	transfers []TransferRecord
	failNext  int
	failAll   bool
}

// NewStubTransferor creates a stub token transferor.
func NewStubTransferor() *StubTransferor {
	return &StubTransferor{}
}

// FailNext makes the next n transfers fail.
func (s *StubTransferor) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = n
}

// SetFailAll makes every transfer fail until disabled.
func (s *StubTransferor) SetFailAll(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAll = fail
}

// Transfer records the transfer, or fails if programmed to.
func (s *StubTransferor) Transfer(_ context.Context, recipient types.AccountID, amount *uint256.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failAll {
		return fmt.Errorf("stub transferor: transfer to %s refused", recipient)
	}
	if s.failNext > 0 {
		s.failNext--
		return fmt.Errorf("stub transferor: transfer to %s refused", recipient)
	}

	s.transfers = append(s.transfers, TransferRecord{
		Recipient: recipient,
		Amount:    amount.Clone(),
	})
	return nil
}

// Transfers returns a copy of the recorded transfers.
func (s *StubTransferor) Transfers() []TransferRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]TransferRecord, len(s.transfers))
	copy(out, s.transfers)
	return out
}

var _ ITokenTransferor = (*StubTransferor)(nil)
