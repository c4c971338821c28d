package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var quoteEvent string

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Export a catering quote from the completed job",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initPipeline()
		if err != nil {
			return err
		}
		defer env.Close()

		quote, err := env.Orchestrator.Quote(cmd.Context(), quoteEvent)
		if err != nil {
			return eris.Wrap(err, "build quote")
		}

		return printJSON(quote)
	},
}

func init() {
	quoteCmd.Flags().StringVar(&quoteEvent, "event", "", "event name for the quote header")
	rootCmd.AddCommand(quoteCmd)
}
