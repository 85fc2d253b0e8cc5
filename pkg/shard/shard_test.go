package shard

import (
	"encoding/binary"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fan1dy/personalized-llms-colm/pkg/errors"
)

func writeShardFile(t *testing.T, dir, name string, tokens []uint16) {
	t.Helper()
	buf := make([]byte, 2*len(tokens))
	for i, tok := range tokens {
		binary.LittleEndian.PutUint16(buf[2*i:], tok)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), buf, 0o644))
}

func seqTokens(n int) []uint16 {
	tokens := make([]uint16, n)
	for i := range tokens {
		tokens[i] = uint16(i % 128)
	}

	return tokens
}

func TestSample(t *testing.T) {
	cases := []struct {
		name           string
		tokens         int
		sequenceLength int
		batchSize      int
		err            error
	}{
		{
			name:           "valid sample",
			tokens:         100,
			sequenceLength: 8,
			batchSize:      4,
		},
		{
			name:           "minimum length shard",
			tokens:         9,
			sequenceLength: 8,
			batchSize:      2,
		},
		{
			name:           "shard too short",
			tokens:         8,
			sequenceLength: 8,
			batchSize:      1,
			err:            errors.ErrShardTooShort,
		},
		{
			name:           "empty shard",
			tokens:         0,
			sequenceLength: 4,
			batchSize:      1,
			err:            errors.ErrShardTooShort,
		},
		{
			name:           "invalid batch size",
			tokens:         100,
			sequenceLength: 8,
			batchSize:      0,
			err:            errors.ErrInvalidConfig,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := FromTokens(0, Train, seqTokens(tc.tokens))
			rng := rand.New(rand.NewSource(7))

			batch, err := s.Sample(rng, tc.sequenceLength, tc.batchSize)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)

				return
			}
			require.NoError(t, err)

			require.Len(t, batch.Inputs, tc.batchSize)
			require.Len(t, batch.Targets, tc.batchSize)
			for b := range batch.Inputs {
				require.Len(t, batch.Inputs[b], tc.sequenceLength)
				require.Len(t, batch.Targets[b], tc.sequenceLength)
				for i := range batch.Inputs[b] {
					assert.Equal(t, batch.Targets[b][i], int32((batch.Inputs[b][i]+1)%128),
						"targets must be inputs shifted by one")
				}
			}
		})
	}
}

func TestSampleDeterminism(t *testing.T) {
	s := FromTokens(0, Train, seqTokens(1000))

	first, err := s.Sample(rand.New(rand.NewSource(11)), 16, 4)
	require.NoError(t, err)
	second, err := s.Sample(rand.New(rand.NewSource(11)), 16, 4)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeShardFile(t, dir, "train_0.bin", seqTokens(64))

	s, err := Load(dir, 0, Train)
	require.NoError(t, err)
	assert.Equal(t, 64, s.Len())
	assert.Equal(t, Train, s.Split)

	_, err = Load(dir, 1, Train)
	assert.Error(t, err, "missing shard file must fail")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "train_2.bin"), []byte{1, 2, 3}, 0o644))
	_, err = Load(dir, 2, Train)
	assert.ErrorIs(t, err, errors.ErrMalformedShard)
}

func TestLoadSet(t *testing.T) {
	dir := t.TempDir()
	writeShardFile(t, dir, "train_0.bin", seqTokens(64))
	writeShardFile(t, dir, "test_0.bin", seqTokens(32))
	writeShardFile(t, dir, "valid_0.bin", seqTokens(16))

	set, err := LoadSet(dir, 0)
	require.NoError(t, err)

	assert.Equal(t, 64, set.Train.Len())
	assert.Equal(t, 32, set.Val.Len())
	assert.Equal(t, 16, set.Ref.Len())
	assert.Equal(t, Validation, set.Val.Split)
	assert.Equal(t, Reference, set.Ref.Split)
}
