// Package shard reads the per-client flat token arrays used for training,
// validation and trust reference scoring. Files hold little-endian uint16
// tokens and are immutable for the duration of a run.
package shard

import (
	"encoding/binary"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/fan1dy/personalized-llms-colm/model"
	"github.com/fan1dy/personalized-llms-colm/pkg/errors"
)

type Split string

const (
	Train      Split = "train"
	Validation Split = "val"
	Reference  Split = "ref"
)

// fileName returns the on-disk name for a client split. The layout follows
// the dataset convention: test files serve validation and valid files serve
// trust reference scoring.
func fileName(split Split, clientID int) (string, error) {
	switch split {
	case Train:
		return fmt.Sprintf("train_%d.bin", clientID), nil
	case Validation:
		return fmt.Sprintf("test_%d.bin", clientID), nil
	case Reference:
		return fmt.Sprintf("valid_%d.bin", clientID), nil
	default:
		return "", fmt.Errorf("%w: unknown split %q", errors.ErrInvalidConfig, split)
	}
}

// Shard is one client's token stream for one split.
type Shard struct {
	ClientID int
	Split    Split

	tokens []uint16
}

// Set holds the three shards of one client.
type Set struct {
	Train *Shard
	Val   *Shard
	Ref   *Shard
}

// Load reads one split of one client from dir. A missing or malformed file
// is fatal: shards are never retried mid-run.
func Load(dir string, clientID int, split Split) (*Shard, error) {
	name, err := fileName(split, clientID)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, name)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading shard %s: %w", path, err)
	}
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("%w: %s has odd byte length %d", errors.ErrMalformedShard, path, len(data))
	}

	tokens := make([]uint16, len(data)/2)
	for i := range tokens {
		tokens[i] = binary.LittleEndian.Uint16(data[2*i:])
	}

	return &Shard{ClientID: clientID, Split: split, tokens: tokens}, nil
}

// LoadSet reads all three splits of one client.
func LoadSet(dir string, clientID int) (Set, error) {
	var (
		set Set
		err error
	)
	if set.Train, err = Load(dir, clientID, Train); err != nil {
		return Set{}, err
	}
	if set.Val, err = Load(dir, clientID, Validation); err != nil {
		return Set{}, err
	}
	if set.Ref, err = Load(dir, clientID, Reference); err != nil {
		return Set{}, err
	}

	return set, nil
}

// FromTokens builds an in-memory shard, used by tests and the synthetic
// data generator.
func FromTokens(clientID int, split Split, tokens []uint16) *Shard {
	return &Shard{ClientID: clientID, Split: split, tokens: tokens}
}

func (s *Shard) Len() int {
	return len(s.tokens)
}

// Sample draws batchSize independent random contiguous windows of
// sequenceLength tokens plus the one-token target shift. Windows may overlap
// across calls. A shard shorter than sequenceLength+1 tokens fails
// deterministically.
func (s *Shard) Sample(rng *rand.Rand, sequenceLength, batchSize int) (model.Batch, error) {
	if sequenceLength <= 0 || batchSize <= 0 {
		return model.Batch{}, fmt.Errorf("%w: sequence length and batch size must be positive", errors.ErrInvalidConfig)
	}
	if len(s.tokens) < sequenceLength+1 {
		return model.Batch{}, fmt.Errorf("%w: client %d %s shard has %d tokens, need %d",
			errors.ErrShardTooShort, s.ClientID, s.Split, len(s.tokens), sequenceLength+1)
	}

	batch := model.Batch{
		Inputs:  make([][]int32, batchSize),
		Targets: make([][]int32, batchSize),
	}
	for b := 0; b < batchSize; b++ {
		off := rng.Intn(len(s.tokens) - sequenceLength)
		in := make([]int32, sequenceLength)
		tg := make([]int32, sequenceLength)
		for t := 0; t < sequenceLength; t++ {
			in[t] = int32(s.tokens[off+t])
			tg[t] = int32(s.tokens[off+t+1])
		}
		batch.Inputs[b] = in
		batch.Targets[b] = tg
	}

	return batch, nil
}
