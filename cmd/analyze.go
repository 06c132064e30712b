package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/datalitbang/fenomena-insight/internal/insight"
	"github.com/datalitbang/fenomena-insight/internal/store"
)

var (
	analyzePhenomenonID string
	analyzeOutput       string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the correlation analysis for one phenomenon and print the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		phenomena, err := st.ListPhenomena(ctx, store.PhenomenonFilter{
			PhenomenonID: analyzePhenomenonID,
			Limit:        1,
		})
		if err != nil {
			return err
		}
		if len(phenomena) == 0 {
			return eris.Errorf("phenomenon %s not found", analyzePhenomenonID)
		}

		ins, err := insight.New(st, st).Analyze(ctx, phenomena[0])
		if err != nil {
			return err
		}

		switch analyzeOutput {
		case "yaml":
			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			defer enc.Close()
			return eris.Wrap(enc.Encode(ins), "encode yaml")
		case "json":
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return eris.Wrap(enc.Encode(ins), "encode json")
		default:
			return fmt.Errorf("unknown output format %q (want json or yaml)", analyzeOutput)
		}
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzePhenomenonID, "phenomenon", "", "phenomenon id to analyze (required)")
	analyzeCmd.Flags().StringVar(&analyzeOutput, "output", "json", "output format: json or yaml")
	analyzeCmd.MarkFlagRequired("phenomenon")
	rootCmd.AddCommand(analyzeCmd)
}
