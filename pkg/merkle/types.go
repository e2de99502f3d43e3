package merkle

// Orientation says on which side of the current hash a proof sibling sits.
type Orientation uint8

const (
	// SiblingLeft means the sibling is the left child: parent = H(sibling || current).
	SiblingLeft Orientation = iota
	// SiblingRight means the sibling is the right child: parent = H(current || sibling).
	SiblingRight
)

func (o Orientation) String() string {
	if o == SiblingLeft {
		return "left"
	}
	return "right"
}

// ProofStep is one element of a merkle proof: a sibling digest plus the
// side it occupies relative to the node being proven.
type ProofStep struct {
	Sibling     [32]byte
	Orientation Orientation
}

// AirdropProof proves that one eligibility record is committed to by a root.
// Steps are ordered from the leaf toward the root.
type AirdropProof struct {
	// Leaf is the digest of the eligibility record being proven
	Leaf [32]byte

	// Steps contains the sibling digests from leaf to root.
	// Steps[0] is the sibling of the leaf, Steps[len-1] is near the root.
	Steps []ProofStep
}

// AirdropTree is a binary merkle tree over an airdrop eligibility set.
// The tree uses keccak256 hashing so roots can be mirrored on-chain.
type AirdropTree struct {
	// Leaves contains the leaf digests in sorted account order
	Leaves [][32]byte

	// Root is the merkle root digest
	Root [32]byte

	// accountIndex maps each account to its leaf position
	accountIndex map[string]int

	// levels stores all tree levels for proof generation
	// levels[0] = leaves, levels[len-1] = root
	levels [][][32]byte
}
