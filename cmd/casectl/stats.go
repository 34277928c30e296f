// File: cmd/casectl/stats.go
package main

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/domain"
	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/services/caseindex"
)

var errOffline = errors.New("embedding disabled in stats")

// offlineEmbedder fails every call so stats never reaches the provider.
type offlineEmbedder struct{}

func (offlineEmbedder) CreateEmbedding(context.Context, string) ([]float32, error) {
	return nil, errOffline
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarise the case file and its stored embeddings",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadEnv()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		records, err := caseindex.LoadRecords(cfg.CasesPath)
		if err != nil {
			return err
		}
		embedded := make([]domain.CaseRecord, 0, len(records))
		for _, rec := range records {
			if len(rec.Embedding) > 0 {
				embedded = append(embedded, rec)
			}
		}

		fmt.Printf("Case file: %s\n  Total cases: %d\n  With embeddings: %d\n  Without embeddings: %d\n",
			cfg.CasesPath, len(records), len(embedded), len(records)-len(embedded))
		if len(embedded) == 0 {
			return nil
		}

		index, err := caseindex.Build(cmd.Context(), offlineEmbedder{}, embedded, caseindex.DefaultConfig(), logger.Named("caseindex"))
		if err != nil {
			return err
		}
		s := index.Stats()
		fmt.Printf("  Dimensions: %d\n  Recommended questions: %d\n  Illnesses:\n", s.Dimensions, s.TotalQuestions)

		names := make([]string, 0, len(s.Illnesses))
		for name := range s.Illnesses {
			names = append(names, name)
		}
		sort.Slice(names, func(i, j int) bool {
			if s.Illnesses[names[i]] != s.Illnesses[names[j]] {
				return s.Illnesses[names[i]] > s.Illnesses[names[j]]
			}
			return names[i] < names[j]
		})
		for _, name := range names {
			fmt.Printf("    %-40s %d\n", name, s.Illnesses[name])
		}
		return nil
	},
}
