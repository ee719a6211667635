package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jaswdr/faker"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/smartcity/saferoute/internal/config"
	"github.com/smartcity/saferoute/internal/domain"
	"github.com/smartcity/saferoute/internal/seed"
)

var (
	seedCount  int
	seedDays   int
	seedDryRun bool
)

// bulkSaver is implemented by stores that can load many records at once
type bulkSaver interface {
	SaveIncidents(ctx context.Context, recs []domain.IncidentRecord) (int64, error)
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Generate sample incidents into the configured store",
	RunE: func(cmd *cobra.Command, args []string) error {
		if seedCount < 1 {
			return fmt.Errorf("--count must be positive")
		}
		records := seed.NewGenerator(faker.New(), nil).Generate(seedCount, seedDays, time.Now())

		if seedDryRun {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.IncidentStore == config.StoreMemory {
			return fmt.Errorf("seed: the memory store is not persistent, use --dry-run or another incident_store")
		}
		ctx := cmd.Context()
		repo, closeStore, err := openStore(ctx, cfg, true)
		if err != nil {
			return err
		}
		defer closeStore()

		if bulk, ok := repo.(bulkSaver); ok {
			n, err := bulk.SaveIncidents(ctx, records)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "copied %d incidents\n", n)
			return nil
		}

		bar := progressbar.NewOptions(len(records),
			progressbar.OptionSetWriter(cmd.ErrOrStderr()),
			progressbar.OptionSetDescription("seeding incidents"),
			progressbar.OptionShowCount(),
		)
		for _, rec := range records {
			if _, err := repo.SaveIncident(ctx, rec); err != nil {
				return err
			}
			_ = bar.Add(1)
		}
		_ = bar.Finish()
		fmt.Fprintf(cmd.OutOrStdout(), "\nsaved %d incidents\n", len(records))
		return nil
	},
}

func init() {
	seedCmd.Flags().IntVar(&seedCount, "count", 50, "number of incidents")
	seedCmd.Flags().IntVar(&seedDays, "days", 30, "spread incidents over the last N days")
	seedCmd.Flags().BoolVar(&seedDryRun, "dry-run", false, "print the incidents as JSON instead of storing them")
}
