package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/elegant-foods/costing-cli/internal/jobstore"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show progress of the current estimation job",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := jobstore.NewFile(cfg.Store.Dir)
		if err != nil {
			return eris.Wrap(err, "open job store")
		}
		defer st.Close()

		job, err := st.Load(cmd.Context(), jobstore.ActiveJobID)
		if err != nil {
			return eris.Wrap(err, "load job")
		}
		if job == nil {
			fmt.Println("no job found")
			return nil
		}

		return printJSON(job.Progress(cfg.Pipeline.LatestResults))
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
