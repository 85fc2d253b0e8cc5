package colm

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "lora", cfg.Model.Type)
	assert.Equal(t, 256, cfg.Model.VocabSize)
	assert.Equal(t, "adamw", cfg.Optimizer.Name)
	assert.Equal(t, "cos", cfg.Scheduler.Name)
	assert.Equal(t, "softmax", cfg.Trust.Name)
}

func TestLoadConfig(t *testing.T) {
	content := `
[model]
rank = 8
alpha = 16.0

[optimizer]
name = "sgd"
lr = 0.01

[trust]
name = "uniform"
`
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	// Overridden values.
	assert.Equal(t, 8, cfg.Model.Rank)
	assert.Equal(t, 16.0, cfg.Model.Alpha)
	assert.Equal(t, "sgd", cfg.Optimizer.Name)
	assert.Equal(t, 0.01, cfg.Optimizer.LR)
	assert.Equal(t, "uniform", cfg.Trust.Name)

	// Defaults preserved where the file is silent.
	assert.Equal(t, "lora", cfg.Model.Type)
	assert.Equal(t, 256, cfg.Model.VocabSize)
	assert.Equal(t, 0.1, cfg.Optimizer.WeightDecay)
	assert.Equal(t, "cos", cfg.Scheduler.Name)
	assert.Equal(t, 0.02, cfg.Scheduler.WarmupPercent)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.toml")
	require.NoError(t, os.WriteFile(path, []byte("model = [broken"), 0o644))
	_, err = LoadConfig(path)
	assert.Error(t, err)
}
