package colmd

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var trainerCmd = []cobra.Command{
	{
		Use:   "start",
		Short: "Start a training run",
		Long:  `Start a collaborative training run with the default run shape.`,
		Run: func(cmd *cobra.Command, _ []string) {
			cfg := Config{
				LogLevel:       "info",
				InstanceID:     uuid.NewString(),
				DataDir:        "./data",
				Dataset:        "synthetic",
				ResultsDir:     "./results",
				Backend:        "single",
				NumClients:     4,
				Iterations:     500,
				AccSteps:       1,
				BatchSize:      16,
				SequenceLength: 64,
				EvalFreq:       25,
				TrustFreq:      25,
				Pretraining:    50,
				MetricsAddr:    ":9090",
				MQTTQoS:        2,
				MQTTTimeout:    30 * time.Second,
			}
			ctx, cancel := context.WithCancel(cmd.Context())
			if err := StartTrainer(ctx, cancel, cfg); err != nil {
				cmd.PrintErrf("failed to start trainer: %s", err.Error())
			}
			cancel()
		},
	},
}

func NewTrainerCmd() *cobra.Command {
	cmd := cobra.Command{
		Use:   "trainer [start]",
		Short: "Trainer management",
		Long:  `Run the collaborative trainer.`,
	}

	for i := range trainerCmd {
		cmd.AddCommand(&trainerCmd[i])
	}

	return &cmd
}
