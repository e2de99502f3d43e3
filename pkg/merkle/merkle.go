package merkle

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/driftlake/merkledrop-go/pkg/types"
)

// Tree-construction convention. These are protocol constants: the offline
// tree builder and the verifier must agree on them bit-for-bit or no proof
// will ever verify.
//
//   - Leaves are sorted by account ID in byte order before building.
//   - Leaf preimage: uint16 big-endian length of the account ID, the account
//     ID bytes, then the amount as a 16-byte big-endian integer.
//   - If a level has an odd number of nodes, the last node is duplicated.
//   - A single-leaf tree has root == leaf and an empty proof.

// amountWidth is the fixed encoded width of a claim amount in bytes.
const amountWidth = types.MaxAmountBits / 8

// EncodeLeaf produces the canonical preimage for one eligibility record.
// The length prefix on the account ID keeps the encoding injective:
// ("ab", 1) and ("a", ...) can never collide the way naive string
// concatenation would let them.
func EncodeLeaf(account types.AccountID, amount *uint256.Int) []byte {
	id := []byte(account)
	buf := make([]byte, 0, 2+len(id)+amountWidth)
	buf = append(buf, byte(len(id)>>8), byte(len(id)))
	buf = append(buf, id...)

	full := amount.Bytes32()
	buf = append(buf, full[32-amountWidth:]...)
	return buf
}

// LeafDigest computes the merkle leaf for one eligibility record:
// keccak256 over the canonical preimage.
func LeafDigest(account types.AccountID, amount *uint256.Int) [32]byte {
	return [32]byte(crypto.Keccak256Hash(EncodeLeaf(account, amount)))
}

// BuildAirdropTree creates a binary merkle tree from an eligibility set.
// Records are sorted by account ID before building so that every builder
// produces the same root for the same set.
func BuildAirdropTree(records []*types.Eligibility) (*AirdropTree, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("cannot build merkle tree from empty eligibility set")
	}

	sorted := make([]*types.Eligibility, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].AccountID < sorted[j].AccountID
	})

	accountIndex := make(map[string]int, len(sorted))
	leaves := make([][32]byte, len(sorted))
	for i, rec := range sorted {
		if rec.Amount == nil {
			return nil, fmt.Errorf("eligibility record for %s has no amount", rec.AccountID)
		}
		if rec.Amount.BitLen() > types.MaxAmountBits {
			return nil, fmt.Errorf("amount for %s exceeds %d bits", rec.AccountID, types.MaxAmountBits)
		}
		if _, dup := accountIndex[string(rec.AccountID)]; dup {
			return nil, fmt.Errorf("duplicate account %s in eligibility set", rec.AccountID)
		}
		accountIndex[string(rec.AccountID)] = i
		leaves[i] = LeafDigest(rec.AccountID, rec.Amount)
	}

	// Build tree levels bottom-up
	levels := make([][][32]byte, 0)
	levels = append(levels, leaves)

	currentLevel := leaves
	for len(currentLevel) > 1 {
		nextLevel := make([][32]byte, 0, (len(currentLevel)+1)/2)

		for i := 0; i < len(currentLevel); i += 2 {
			left := currentLevel[i]
			right := left
			if i+1 < len(currentLevel) {
				right = currentLevel[i+1]
			}
			nextLevel = append(nextLevel, hashPair(left, right))
		}

		levels = append(levels, nextLevel)
		currentLevel = nextLevel
	}

	return &AirdropTree{
		Leaves:       leaves,
		Root:         currentLevel[0],
		accountIndex: accountIndex,
		levels:       levels,
	}, nil
}

// GenerateProof creates a merkle proof for the given account's leaf.
// Each step carries the sibling digest and the side the sibling occupies,
// so verifiers do not need to know the leaf's index.
func (t *AirdropTree) GenerateProof(account types.AccountID) (*AirdropProof, error) {
	index, ok := t.accountIndex[string(account)]
	if !ok {
		return nil, fmt.Errorf("account %s is not in the eligibility set", account)
	}

	steps := make([]ProofStep, 0, len(t.levels)-1)

	for level := 0; level < len(t.levels)-1; level++ {
		currentLevel := t.levels[level]

		var siblingIndex int
		var orientation Orientation
		if index%2 == 0 {
			// Node is on the left, sibling is on the right
			siblingIndex = index + 1
			orientation = SiblingRight
		} else {
			siblingIndex = index - 1
			orientation = SiblingLeft
		}

		// Odd node count at this level: the node was paired with itself
		if siblingIndex >= len(currentLevel) {
			siblingIndex = index
			orientation = SiblingRight
		}

		steps = append(steps, ProofStep{
			Sibling:     currentLevel[siblingIndex],
			Orientation: orientation,
		})

		index = index / 2
	}

	return &AirdropProof{
		Leaf:  t.Leaves[t.accountIndex[string(account)]],
		Steps: steps,
	}, nil
}

// VerifyProof checks that a leaf digest is committed to by root.
// It folds the proof from the leaf upward and compares the result with the
// expected root. Pure function: it never touches claim state, and malformed
// input makes it return false rather than panic.
//
// An empty proof is valid only for a single-leaf tree, where the leaf is
// itself the root.
func VerifyProof(leaf [32]byte, steps []ProofStep, root [32]byte) bool {
	current := leaf

	for _, step := range steps {
		if step.Orientation == SiblingLeft {
			current = hashPair(step.Sibling, current)
		} else {
			current = hashPair(current, step.Sibling)
		}
	}

	return current == root
}

// hashPair computes keccak256(left || right) for two 32-byte digests.
func hashPair(left, right [32]byte) [32]byte {
	data := make([]byte, 64)
	copy(data[0:32], left[:])
	copy(data[32:64], right[:])
	return [32]byte(crypto.Keccak256Hash(data))
}
