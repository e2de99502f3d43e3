package merkle

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/driftlake/merkledrop-go/pkg/types"
)

// Wire encoding of digests and proofs. Digests travel as lowercase
// 0x-prefixed hex; each proof step carries the sibling digest and the
// literal position "left" or "right". This format is part of the external
// protocol and must match the offline tree builder exactly.

const (
	positionLeft  = "left"
	positionRight = "right"
)

// ProofStepWire is the JSON form of one proof step.
type ProofStepWire struct {
	Hash     string `json:"hash"`
	Position string `json:"position"`
}

// EncodeDigest renders a digest in the canonical wire form.
func EncodeDigest(digest [32]byte) string {
	return hexutil.Encode(digest[:])
}

// DecodeDigest parses a wire-form digest. Attacker-controlled input:
// anything that is not exactly 32 hex-encoded bytes is rejected with
// ErrInvalidProofFormat.
func DecodeDigest(s string) ([32]byte, error) {
	var digest [32]byte

	raw, err := hexutil.Decode(s)
	if err != nil {
		return digest, fmt.Errorf("%w: digest %q: %v", types.ErrInvalidProofFormat, s, err)
	}
	if len(raw) != 32 {
		return digest, fmt.Errorf("%w: digest %q is %d bytes, want 32", types.ErrInvalidProofFormat, s, len(raw))
	}

	copy(digest[:], raw)
	return digest, nil
}

// EncodeProofSteps converts proof steps to their wire form.
func EncodeProofSteps(steps []ProofStep) []ProofStepWire {
	wire := make([]ProofStepWire, len(steps))
	for i, step := range steps {
		wire[i] = ProofStepWire{
			Hash:     EncodeDigest(step.Sibling),
			Position: step.Orientation.String(),
		}
	}
	return wire
}

// DecodeProofSteps parses wire-form proof steps, validating structure
// before anything reaches the verifier.
func DecodeProofSteps(wire []ProofStepWire) ([]ProofStep, error) {
	steps := make([]ProofStep, len(wire))
	for i, w := range wire {
		sibling, err := DecodeDigest(w.Hash)
		if err != nil {
			return nil, fmt.Errorf("proof step %d: %w", i, err)
		}

		var orientation Orientation
		switch w.Position {
		case positionLeft:
			orientation = SiblingLeft
		case positionRight:
			orientation = SiblingRight
		default:
			return nil, fmt.Errorf("%w: proof step %d has position %q, want %q or %q",
				types.ErrInvalidProofFormat, i, w.Position, positionLeft, positionRight)
		}

		steps[i] = ProofStep{Sibling: sibling, Orientation: orientation}
	}
	return steps, nil
}
