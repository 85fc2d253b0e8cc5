// Package sqlite keeps a queryable history of evaluation events across runs.
// It implements the telemetry sink interface so the orchestrator can record
// into it alongside the other sinks.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	migrate "github.com/rubenv/sql-migrate"

	"github.com/fan1dy/personalized-llms-colm/pkg/telemetry"
)

var (
	ErrDBConnection = errors.New("database connection error")
	ErrDBQuery      = errors.New("database query error")
)

// Evaluation is one recorded evaluation event.
type Evaluation struct {
	RunID      string    `db:"run_id"      json:"run_id"`
	Round      int       `db:"round"       json:"round"`
	ClientID   int       `db:"client_id"   json:"client_id"`
	Iteration  int       `db:"iteration"   json:"iteration"`
	Epoch      int       `db:"epoch"       json:"epoch"`
	TrainLoss  float64   `db:"train_loss"  json:"train_loss"`
	ValLoss    float64   `db:"val_loss"    json:"val_loss"`
	ValPP      float64   `db:"val_pp"      json:"val_pp"`
	ValAcc     float64   `db:"val_acc"     json:"val_acc"`
	LR         float64   `db:"lr"          json:"lr"`
	GradNorm   float64   `db:"grad_norm"   json:"grad_norm"`
	RecordedAt time.Time `db:"recorded_at" json:"recorded_at"`
}

// History records evaluation events for one run into a SQLite database
// shared across runs.
type History struct {
	db    *sqlx.DB
	runID string
}

var _ telemetry.Sink = (*History)(nil)

func NewHistory(path, runID string) (*History, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDBConnection, err)
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	h := &History{db: db, runID: runID}
	if err := h.migrate(); err != nil {
		return nil, err
	}

	return h, nil
}

func (h *History) migrate() error {
	migrations := &migrate.MemoryMigrationSource{
		Migrations: []*migrate.Migration{
			{
				Id: "1_create_tables",
				Up: []string{
					`CREATE TABLE IF NOT EXISTS evaluations (
						run_id TEXT NOT NULL,
						round INTEGER NOT NULL,
						client_id INTEGER NOT NULL,
						iteration INTEGER NOT NULL,
						epoch INTEGER NOT NULL,
						train_loss REAL NOT NULL,
						val_loss REAL NOT NULL,
						val_pp REAL NOT NULL,
						val_acc REAL NOT NULL,
						lr REAL NOT NULL,
						grad_norm REAL NOT NULL,
						recorded_at TIMESTAMP NOT NULL
					)`,
					`CREATE INDEX IF NOT EXISTS idx_evaluations_run ON evaluations(run_id, client_id, iteration)`,
					`CREATE TABLE IF NOT EXISTS evaluation_means (
						run_id TEXT NOT NULL,
						round INTEGER NOT NULL,
						train_loss_mean REAL NOT NULL,
						val_loss_mean REAL NOT NULL,
						val_pp_mean REAL NOT NULL,
						val_acc_mean REAL NOT NULL,
						recorded_at TIMESTAMP NOT NULL
					)`,
					`CREATE INDEX IF NOT EXISTS idx_evaluation_means_run ON evaluation_means(run_id, round)`,
				},
				Down: []string{
					`DROP TABLE IF EXISTS evaluations`,
					`DROP TABLE IF EXISTS evaluation_means`,
				},
			},
		},
	}

	if _, err := migrate.Exec(h.db.DB, "sqlite3", migrations, migrate.Up); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	return nil
}

func (h *History) RecordEval(ctx context.Context, ev telemetry.Event) error {
	query := `INSERT INTO evaluations
		(run_id, round, client_id, iteration, epoch, train_loss, val_loss, val_pp, val_acc, lr, grad_norm, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := h.db.ExecContext(ctx, query,
		h.runID, ev.Round, ev.ClientID, ev.Iteration, ev.Epoch,
		ev.TrainLoss, ev.ValLoss, ev.ValPP, ev.ValAccuracy, ev.LearningRate, ev.GradNorm, time.Now().UTC()); err != nil {
		return fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return nil
}

func (h *History) RecordMeans(ctx context.Context, m telemetry.Means) error {
	query := `INSERT INTO evaluation_means
		(run_id, round, train_loss_mean, val_loss_mean, val_pp_mean, val_acc_mean, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	if _, err := h.db.ExecContext(ctx, query,
		h.runID, m.Round, m.TrainLoss, m.ValLoss, m.ValPP, m.ValAccuracy, time.Now().UTC()); err != nil {
		return fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return nil
}

// ListEvaluations returns the recorded events of one run ordered by client
// and iteration.
func (h *History) ListEvaluations(ctx context.Context, runID string) ([]Evaluation, error) {
	var evals []Evaluation
	query := `SELECT run_id, round, client_id, iteration, epoch, train_loss, val_loss, val_pp, val_acc, lr, grad_norm, recorded_at
		FROM evaluations WHERE run_id = ? ORDER BY client_id, iteration`
	if err := h.db.SelectContext(ctx, &evals, query, runID); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return evals, nil
}

func (h *History) Close(context.Context) error {
	return h.db.Close()
}
