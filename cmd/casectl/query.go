// File: cmd/casectl/query.go
package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/app"
)

var queryTopK int

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Search the case index the way the server does",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadEnv()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		ctx, cancel := commandContext(cmd)
		defer cancel()

		aiService, err := app.ProvideAIService(ctx, cfg, logger.Named("ai"))
		if err != nil {
			return err
		}
		index, closeIndex, err := app.ProvideCaseIndex(ctx, cfg, aiService, logger.Named("caseindex"))
		if err != nil {
			return err
		}
		defer closeIndex()

		text := strings.Join(args, " ")
		matches, err := index.Query(ctx, text, queryTopK)
		if err != nil {
			return err
		}

		fmt.Printf("Backend: %s  Query: %q\n", cfg.IndexBackend, text)
		for i, m := range matches {
			fmt.Printf("%2d. %-12s %.4f  %s (%d questions)\n",
				i+1, m.Case.CaseID, m.Similarity, m.Case.SuspectedIllness, len(m.Case.RecommendedQuestions))
		}
		if len(matches) == 0 {
			fmt.Println("No matches.")
		}
		return nil
	},
}

func init() {
	queryCmd.Flags().IntVarP(&queryTopK, "top", "k", 5, "Number of cases to return")
}
