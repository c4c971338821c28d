package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume an interrupted estimation job",
	Long: `Loads the stored job record and, if it is incomplete, continues the
batch loop from where it stopped. Already-committed items are never
reprocessed. If the stored record is corrupt the command fails; use
"estimate --reset" to start over.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initPipeline()
		if err != nil {
			return err
		}
		defer env.Close()

		job, err := env.Orchestrator.ResumeIfIncomplete(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "resume job")
		}
		if job == nil {
			fmt.Println("no job to resume")
			return nil
		}

		return printJSON(job)
	},
}

func init() {
	rootCmd.AddCommand(resumeCmd)
}
