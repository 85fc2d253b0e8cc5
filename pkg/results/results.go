// Package results persists the run summary and detects already-completed
// experiments.
package results

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fan1dy/personalized-llms-colm/pkg/errors"
)

const summaryFile = "summary.json"

// Summary is the run's exported record: one ordered metric sequence per
// client per metric, indexed by evaluation event, plus the echoed run
// configuration.
type Summary struct {
	TrainLoss [][]float64 `json:"train_loss"`
	ValLoss   [][]float64 `json:"val_loss"`
	ValPP     [][]float64 `json:"val_pp"`
	ValAcc    [][]float64 `json:"val_acc"`
	Args      any         `json:"args"`
}

func NewSummary(numClients int) Summary {
	return Summary{
		TrainLoss: make([][]float64, numClients),
		ValLoss:   make([][]float64, numClients),
		ValPP:     make([][]float64, numClients),
		ValAcc:    make([][]float64, numClients),
	}
}

// Append records one evaluation event for a client.
func (s *Summary) Append(clientID int, trainLoss, valLoss, valPP, valAcc float64) {
	s.TrainLoss[clientID] = append(s.TrainLoss[clientID], trainLoss)
	s.ValLoss[clientID] = append(s.ValLoss[clientID], valLoss)
	s.ValPP[clientID] = append(s.ValPP[clientID], valPP)
	s.ValAcc[clientID] = append(s.ValAcc[clientID], valAcc)
}

// FileStore writes the summary under
// <base>/<dataset>/<model>/<experiment>/summary.json.
type FileStore struct {
	dir string
}

func NewFileStore(baseDir, dataset, modelName, expName string) *FileStore {
	return &FileStore{dir: filepath.Join(baseDir, dataset, modelName, expName)}
}

func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) SummaryPath() string {
	return filepath.Join(s.dir, summaryFile)
}

// Completed reports whether a summary already exists at the store's path. A
// completed experiment must not be re-run or overwritten.
func (s *FileStore) Completed() bool {
	info, err := os.Stat(s.SummaryPath())

	return err == nil && !info.IsDir()
}

// Write persists the summary once, at run completion. Writing over a
// completed experiment is refused.
func (s *FileStore) Write(sum Summary) error {
	if s.Completed() {
		return fmt.Errorf("%w: %s", errors.ErrRunCompleted, s.SummaryPath())
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating results directory: %w", err)
	}

	data, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling summary: %w", err)
	}
	if err := os.WriteFile(s.SummaryPath(), data, 0o644); err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}

	return nil
}
