package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/metrograph/demandgen/internal/model"
)

var batchOnly []string

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Fetch and process every configured city",
	Long:  "Runs the full fetch and process pipeline for each city in the cities file. A failing city is logged and skipped; the remaining cities still run.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cities, err := loadCities()
		if err != nil {
			return err
		}
		cities = filterCities(cities, batchOnly)
		if len(cities) == 0 {
			zap.L().Warn("no cities matched the --only filter")
			return nil
		}

		p, cat, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer cat.Close() //nolint:errcheck

		zap.L().Info("starting batch", zap.Int("cities", len(cities)))
		return p.RunAll(ctx, cities)
	},
}

// filterCities keeps cities whose name appears in only. An empty filter keeps
// everything.
func filterCities(cities []model.City, only []string) []model.City {
	if len(only) == 0 {
		return cities
	}
	keep := make(map[string]bool, len(only))
	for _, name := range only {
		keep[name] = true
	}
	var out []model.City
	for _, c := range cities {
		if keep[c.Name] {
			out = append(out, c)
		}
	}
	return out
}

func init() {
	batchCmd.Flags().StringSliceVar(&batchOnly, "only", nil, "restrict the batch to the named cities")
	rootCmd.AddCommand(batchCmd)
}
