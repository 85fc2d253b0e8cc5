package results

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fan1dy/personalized-llms-colm/pkg/errors"
)

func TestSummaryAppend(t *testing.T) {
	sum := NewSummary(2)
	sum.Append(0, 1.0, 2.0, 7.39, 0.5)
	sum.Append(1, 1.1, 2.1, 8.17, 0.4)
	sum.Append(0, 0.9, 1.8, 6.05, 0.6)

	assert.Equal(t, []float64{1.0, 0.9}, sum.TrainLoss[0])
	assert.Equal(t, []float64{2.0, 1.8}, sum.ValLoss[0])
	assert.Equal(t, []float64{1.1}, sum.TrainLoss[1])
	assert.Equal(t, []float64{0.4}, sum.ValAcc[1])
}

func TestFileStorePath(t *testing.T) {
	s := NewFileStore("results", "synthetic", "lora", "exp_1")

	assert.Equal(t, filepath.Join("results", "synthetic", "lora", "exp_1"), s.Dir())
	assert.Equal(t, filepath.Join("results", "synthetic", "lora", "exp_1", "summary.json"), s.SummaryPath())
}

func TestFileStoreWrite(t *testing.T) {
	s := NewFileStore(t.TempDir(), "synthetic", "lora", "exp_1")
	assert.False(t, s.Completed())

	sum := NewSummary(1)
	sum.Append(0, 1.0, 2.0, 7.39, 0.5)
	sum.Args = map[string]any{"iterations": 4}

	require.NoError(t, s.Write(sum))
	assert.True(t, s.Completed())

	data, err := os.ReadFile(s.SummaryPath())
	require.NoError(t, err)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &decoded))
	for _, key := range []string{"train_loss", "val_loss", "val_pp", "val_acc", "args"} {
		assert.Contains(t, decoded, key)
	}
}

func TestFileStoreRefusesOverwrite(t *testing.T) {
	s := NewFileStore(t.TempDir(), "synthetic", "lora", "exp_1")

	first := NewSummary(1)
	first.Append(0, 1.0, 2.0, 7.39, 0.5)
	require.NoError(t, s.Write(first))

	before, err := os.ReadFile(s.SummaryPath())
	require.NoError(t, err)

	second := NewSummary(1)
	second.Append(0, 9.0, 9.0, 9.0, 0.0)
	err = s.Write(second)
	assert.ErrorIs(t, err, errors.ErrRunCompleted)

	after, err := os.ReadFile(s.SummaryPath())
	require.NoError(t, err)
	assert.Equal(t, before, after, "completed summary must be left untouched")
}

func TestFileStoreCompletedIgnoresDirectory(t *testing.T) {
	base := t.TempDir()
	s := NewFileStore(base, "synthetic", "lora", "exp_1")

	require.NoError(t, os.MkdirAll(s.SummaryPath(), 0o755))
	assert.False(t, s.Completed())
}
