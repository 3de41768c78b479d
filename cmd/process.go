package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var processCmd = &cobra.Command{
	Use:   "process <city>",
	Short: "Process previously fetched raw data into demand outputs",
	Long:  "Reads the city's raw buildings and places, assigns buildings to neighborhoods, synthesizes demand connections, and writes the building index, demand dataset and summary.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		city, err := cityByName(args[0])
		if err != nil {
			return err
		}

		p, cat, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer cat.Close() //nolint:errcheck

		counts, err := p.ProcessCity(ctx, city)
		if err != nil {
			return eris.Wrapf(err, "process %s", city.Name)
		}

		zap.L().Info("process complete",
			zap.String("city", city.Name),
			zap.Int("buildings", counts.Buildings),
			zap.Int("neighborhoods", counts.Neighborhoods),
			zap.Int("connections", counts.Connections),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(processCmd)
}
