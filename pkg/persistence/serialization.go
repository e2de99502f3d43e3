package persistence

import (
	"encoding/json"
	"fmt"

	"github.com/driftlake/merkledrop-go/pkg/types"
)

// MarshalPendingTransfer serializes a PendingTransfer to JSON bytes.
func MarshalPendingTransfer(pending *types.PendingTransfer) ([]byte, error) {
	if pending == nil {
		return nil, fmt.Errorf("cannot marshal nil PendingTransfer")
	}

	data, err := json.Marshal(pending)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal PendingTransfer to JSON: %w", err)
	}

	return data, nil
}

// UnmarshalPendingTransfer deserializes a PendingTransfer from JSON bytes.
func UnmarshalPendingTransfer(data []byte) (*types.PendingTransfer, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var pending types.PendingTransfer
	if err := json.Unmarshal(data, &pending); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to PendingTransfer: %w", err)
	}

	return &pending, nil
}
