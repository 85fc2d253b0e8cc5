package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/fan1dy/personalized-llms-colm/colmd"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "colmd",
		Short: "Collaborative LM Daemon",
		Long:  `colmd manages collaborative personalized language model training runs.`,
	}

	trainerCmd := colmd.NewTrainerCmd()
	datagenCmd := colmd.NewDatagenCmd()

	rootCmd.AddCommand(trainerCmd)
	rootCmd.AddCommand(datagenCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
