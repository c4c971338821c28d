package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/elegant-foods/costing-cli/internal/model"
)

var (
	estimateMenuFile string
	estimateTextFile string
	estimateReset    bool
)

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Run ingredient cost estimation over a menu",
	Long: `Runs the full estimation pipeline over a menu: each item is decomposed
into ingredients, priced against the supplier catalog (falling back to market
estimates), and committed durably after every item. An interrupted run can be
picked up later with "resume". Pass --reset to discard an incomplete job and
start over.

The menu comes from --menu (a JSON array of {name, description, category}) or
--text (free menu text parsed by the model).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initPipeline()
		if err != nil {
			return err
		}
		defer env.Close()

		items, err := loadMenu(cmd, env)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return eris.New("menu is empty")
		}

		job, err := env.Orchestrator.Start(cmd.Context(), items, estimateReset)
		if err != nil {
			return eris.Wrap(err, "run estimation")
		}

		return printJSON(job)
	},
}

func init() {
	estimateCmd.Flags().StringVar(&estimateMenuFile, "menu", "", "path to a menu JSON file")
	estimateCmd.Flags().StringVar(&estimateTextFile, "text", "", "path to a free-text menu file")
	estimateCmd.Flags().BoolVar(&estimateReset, "reset", false, "discard any incomplete job and start fresh")
	estimateCmd.MarkFlagsMutuallyExclusive("menu", "text")
	rootCmd.AddCommand(estimateCmd)
}

func loadMenu(cmd *cobra.Command, env *pipelineEnv) ([]model.MenuItem, error) {
	switch {
	case estimateMenuFile != "":
		data, err := os.ReadFile(estimateMenuFile)
		if err != nil {
			return nil, eris.Wrap(err, "read menu file")
		}
		var items []model.MenuItem
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, eris.Wrap(err, "parse menu file")
		}
		return items, nil
	case estimateTextFile != "":
		data, err := os.ReadFile(estimateTextFile)
		if err != nil {
			return nil, eris.Wrap(err, "read menu text")
		}
		items, err := env.Agent.ParseMenu(cmd.Context(), string(data))
		if err != nil {
			return nil, eris.Wrap(err, "parse menu text")
		}
		zap.L().Info("menu parsed from text", zap.Int("items", len(items)))
		return items, nil
	default:
		return nil, eris.New("one of --menu or --text is required")
	}
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrap(err, "marshal output")
	}
	fmt.Println(string(out))
	return nil
}
