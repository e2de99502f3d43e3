package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/driftlake/merkledrop-go/pkg/merkle"
	"github.com/driftlake/merkledrop-go/pkg/types"
)

// eligibilityEntry is one line of the input file: an account and the
// decimal amount it may claim.
type eligibilityEntry struct {
	AccountID string `json:"account_id"`
	Amount    string `json:"amount"`
}

// proofBundle is the generated output: the root plus a ready-to-submit
// proof for every account in the set.
type proofBundle struct {
	Root   string                            `json:"root"`
	Count  int                               `json:"count"`
	Proofs map[string][]merkle.ProofStepWire `json:"proofs"`
}

func main() {
	app := &cli.App{
		Name:  "merkledrop-tree",
		Usage: "Build a merkle tree over an airdrop eligibility set",
		Description: `Offline tree builder for airdrop operators.

Reads a JSON array of {account_id, amount} records, builds the merkle
tree the distributor verifies against, and writes the root together with
a proof for every account. The output root is what the owner installs
via POST /root; the per-account proofs are distributed to claimants.`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "input",
				Aliases:  []string{"i"},
				Usage:    "Path to the eligibility JSON file",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Path for the generated proof bundle (default stdout)",
			},
			&cli.BoolFlag{
				Name:  "root-only",
				Usage: "Print only the root, skip proof generation",
			},
		},
		Action: runBuild,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func runBuild(c *cli.Context) error {
	records, err := loadEligibility(c.String("input"))
	if err != nil {
		return err
	}

	tree, err := merkle.BuildAirdropTree(records)
	if err != nil {
		return fmt.Errorf("failed to build tree: %w", err)
	}

	if c.Bool("root-only") {
		fmt.Println(merkle.EncodeDigest(tree.Root))
		return nil
	}

	bundle := proofBundle{
		Root:   merkle.EncodeDigest(tree.Root),
		Count:  len(records),
		Proofs: make(map[string][]merkle.ProofStepWire, len(records)),
	}

	for _, record := range records {
		proof, err := tree.GenerateProof(record.AccountID)
		if err != nil {
			return fmt.Errorf("failed to generate proof for %s: %w", record.AccountID, err)
		}
		bundle.Proofs[string(record.AccountID)] = merkle.EncodeProofSteps(proof.Steps)
	}

	data, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode proof bundle: %w", err)
	}
	data = append(data, '\n')

	if out := c.String("output"); out != "" {
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", out, err)
		}
		fmt.Printf("Wrote root and %d proofs to %s\n", bundle.Count, out)
		return nil
	}

	_, err = os.Stdout.Write(data)
	return err
}

func loadEligibility(path string) ([]*types.Eligibility, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var entries []eligibilityEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%s contains no eligibility records", path)
	}

	records := make([]*types.Eligibility, 0, len(entries))
	for _, entry := range entries {
		amount, err := types.ParseAmount(entry.Amount)
		if err != nil {
			return nil, fmt.Errorf("record for %q: %w", entry.AccountID, err)
		}
		records = append(records, &types.Eligibility{
			AccountID: types.AccountID(entry.AccountID),
			Amount:    amount,
		})
	}

	return records, nil
}
