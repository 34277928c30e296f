// File: cmd/casectl/embed.go
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/app"
	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/domain"
	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/services/caseindex"
)

var (
	embedOutput  string
	embedWorkers int
)

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Precompute case embeddings into a JSON file",
	Long: `Embeds every case that has no stored vector and writes the full case set,
embeddings included, to --out. The server loads the result without calling
the embedding provider at startup.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadEnv()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		ctx, cancel := commandContext(cmd)
		defer cancel()

		records, err := caseindex.LoadRecords(cfg.CasesPath)
		if err != nil {
			return err
		}
		before := countEmbedded(records)

		aiService, err := app.ProvideAIService(ctx, cfg, logger.Named("ai"))
		if err != nil {
			return err
		}
		workers := cfg.IndexBuildWorkers
		if embedWorkers > 0 {
			workers = embedWorkers
		}
		index, err := caseindex.Build(ctx, aiService, records, &caseindex.Config{BuildConcurrency: workers}, logger.Named("caseindex"))
		if err != nil {
			return err
		}

		out := make([]domain.CaseRecord, 0, index.Len())
		for _, rec := range index.Records() {
			out = append(out, *rec)
		}
		output := embedOutput
		if output == "" {
			output = cfg.CasesPath
		}
		if err := caseindex.SaveRecords(output, out); err != nil {
			return err
		}

		fmt.Printf("Embedded %d new cases (%d already had vectors, %d skipped). Dimensions: %d\n",
			len(out)-before, before, len(records)-len(out), index.Dimensions())
		fmt.Printf("Wrote %s\n", output)
		return nil
	},
}

func init() {
	embedCmd.Flags().StringVarP(&embedOutput, "out", "o", "", "Output file (default: overwrite the case file)")
	embedCmd.Flags().IntVar(&embedWorkers, "workers", 0, "Parallel embedding calls (default: INDEX_BUILD_WORKERS)")
}

func countEmbedded(records []domain.CaseRecord) int {
	n := 0
	for _, rec := range records {
		if len(rec.Embedding) > 0 {
			n++
		}
	}
	return n
}
