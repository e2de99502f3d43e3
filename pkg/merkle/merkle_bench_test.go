package merkle

import (
	"fmt"
	"testing"
)

// BenchmarkAirdropTreeBuild benchmarks tree construction with various set sizes
func BenchmarkAirdropTreeBuild(b *testing.B) {
	sizes := []int{10, 100, 1000, 10000}

	for _, size := range sizes {
		b.Run(fmt.Sprintf("Records_%d", size), func(b *testing.B) {
			records := createTestEligibility(size)
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				_, _ = BuildAirdropTree(records)
			}
		})
	}
}

// BenchmarkProofGeneration benchmarks proof generation
func BenchmarkProofGeneration(b *testing.B) {
	sizes := []int{10, 100, 1000, 10000}

	for _, size := range sizes {
		records := createTestEligibility(size)
		tree, _ := BuildAirdropTree(records)

		b.Run(fmt.Sprintf("Records_%d", size), func(b *testing.B) {
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				_, _ = tree.GenerateProof(records[i%size].AccountID)
			}
		})
	}
}

// BenchmarkProofVerification benchmarks proof verification
func BenchmarkProofVerification(b *testing.B) {
	sizes := []int{10, 100, 1000, 10000}

	for _, size := range sizes {
		records := createTestEligibility(size)
		tree, _ := BuildAirdropTree(records)
		proof, _ := tree.GenerateProof(records[0].AccountID)

		b.Run(fmt.Sprintf("Records_%d", size), func(b *testing.B) {
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				_ = VerifyProof(proof.Leaf, proof.Steps, tree.Root)
			}
		})
	}
}
