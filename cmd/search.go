package main

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/elegant-foods/costing-cli/internal/catalog"
	"github.com/elegant-foods/costing-cli/internal/match"
)

var searchTopK int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Fuzzy-search the supplier catalog",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ix, err := catalog.Load(cfg.Catalog.Path)
		if err != nil {
			return eris.Wrap(err, "load catalog")
		}

		query := strings.Join(args, " ")
		results := searchCatalog(ix, query, searchTopK, float64(cfg.Pricing.FloorThreshold))

		return printJSON(results)
	},
}

func init() {
	searchCmd.Flags().IntVar(&searchTopK, "top", 5, "number of candidates to return")
	rootCmd.AddCommand(searchCmd)
}

type searchResult struct {
	ItemNumber string  `json:"item_number"`
	Name       string  `json:"name"`
	Pack       string  `json:"pack"`
	CasePrice  float64 `json:"case_price"`
	Score      float64 `json:"score"`
}

// searchCatalog ranks catalog entries for the query, dropping hits below the
// plausibility floor so nonsense queries come back empty.
func searchCatalog(ix *catalog.Index, query string, topK int, floor float64) []searchResult {
	candidates := match.Match(query, ix, topK)
	results := make([]searchResult, 0, len(candidates))
	for _, c := range candidates {
		if c.Score < floor {
			continue
		}
		results = append(results, searchResult{
			ItemNumber: c.Entry.ItemNumber,
			Name:       c.Entry.RawName,
			Pack:       c.Entry.PackDescription,
			CasePrice:  c.Entry.UnitPrice,
			Score:      c.Score,
		})
	}
	return results
}
