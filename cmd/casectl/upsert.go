// File: cmd/casectl/upsert.go
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/app"
	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/services/caseindex"
	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/services/pinecone"
)

var upsertCmd = &cobra.Command{
	Use:   "upsert",
	Short: "Push precomputed case vectors to Pinecone",
	Long: `Reads the case file and upserts every stored embedding into the Pinecone
index and namespace from PINECONE_INDEX_HOST and PINECONE_NAMESPACE. Run
"casectl embed" first; cases without a vector are skipped.`,
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

		vectors := make([]pinecone.CaseVector, 0, len(records))
		for _, rec := range records {
			if len(rec.Embedding) == 0 {
				logger.Warn("skipping case without embedding", "case_id", rec.CaseID)
				continue
			}
			vectors = append(vectors, pinecone.CaseVector{
				CaseID:           rec.CaseID,
				Values:           rec.Embedding,
				SuspectedIllness: rec.SuspectedIllness,
			})
		}
		if len(vectors) == 0 {
			return fmt.Errorf("no embedded cases in %s; run casectl embed first", cfg.CasesPath)
		}

		store, err := app.ProvideVectorService(cfg, logger.Named("pinecone"))
		if err != nil {
			return err
		}
		defer store.Close()

		n, err := store.UpsertCases(ctx, vectors)
		if err != nil {
			return fmt.Errorf("upserted %d of %d vectors: %w", n, len(vectors), err)
		}
		fmt.Printf("Upserted %d vectors to namespace %q (%d cases skipped)\n",
			n, app.ProvidePineconeConfig(cfg).Namespace, len(records)-len(vectors))
		return nil
	},
}
