package colmd

import (
	"encoding/binary"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// NewDatagenCmd builds synthetic per-client token shards for smoke runs:
// each client gets a train, test (validation) and valid (reference) file of
// little-endian uint16 tokens drawn from a client-specific bigram chain, so
// shards are disjoint in distribution and trust scoring has signal.
func NewDatagenCmd() *cobra.Command {
	var (
		dir     string
		clients int
		vocab   int
		tokens  int
		seed    int64
	)

	cmd := cobra.Command{
		Use:   "datagen",
		Short: "Generate synthetic token shards",
		Long:  `Generate synthetic train/validation/reference token shards for each client.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if vocab < 2 || vocab > 1<<16 {
				return fmt.Errorf("vocab size must be between 2 and %d", 1<<16)
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}

			for i := 0; i < clients; i++ {
				rng := rand.New(rand.NewSource(seed + int64(i)))
				// Fixed split order: the splits share one client stream, so
				// write order decides what each file contains.
				files := []struct {
					name string
					n    int
				}{
					{fmt.Sprintf("train_%d.bin", i), tokens},
					{fmt.Sprintf("test_%d.bin", i), tokens / 10},
					{fmt.Sprintf("valid_%d.bin", i), tokens / 10},
				}
				for _, f := range files {
					path := filepath.Join(dir, f.name)
					if err := writeChain(path, rng, vocab, f.n); err != nil {
						return err
					}
				}
				cmd.Printf("client %d: wrote %d train tokens to %s\n", i, tokens, dir)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "./data", "output directory")
	cmd.Flags().IntVar(&clients, "clients", 4, "number of clients")
	cmd.Flags().IntVar(&vocab, "vocab", 256, "vocabulary size")
	cmd.Flags().IntVar(&tokens, "tokens", 200000, "train tokens per client")
	cmd.Flags().Int64Var(&seed, "seed", 42, "generator seed")

	return &cmd
}

// writeChain emits a first-order chain where each token prefers a
// client-specific successor, giving every shard learnable structure.
func writeChain(path string, rng *rand.Rand, vocab, n int) error {
	buf := make([]byte, 2*n)
	cur := rng.Intn(vocab)
	shift := 1 + rng.Intn(vocab-1)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(cur))
		if rng.Float64() < 0.8 {
			cur = (cur + shift) % vocab
		} else {
			cur = rng.Intn(vocab)
		}
	}

	return os.WriteFile(path, buf, 0o644)
}
