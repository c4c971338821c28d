package model

import "time"

// IngredientSource identifies where an ingredient's price came from.
type IngredientSource string

const (
	// SourceCatalog means the price was resolved from a supplier catalog SKU.
	SourceCatalog IngredientSource = "catalog"
	// SourceEstimated means no catalog match cleared the confidence bar and a
	// market estimate was used instead.
	SourceEstimated IngredientSource = "estimated"
	// SourceUnavailable means no price could be determined at all.
	SourceUnavailable IngredientSource = "unavailable"
)

// CatalogEntry is one supplier SKU. Entries are immutable once loaded;
// ItemNumber is unique within a catalog.
type CatalogEntry struct {
	ItemNumber      string  `json:"item_number"`
	RawName         string  `json:"raw_name"`
	NormalizedName  string  `json:"normalized_name"`
	UnitPrice       float64 `json:"unit_price"`
	PackDescription string  `json:"pack_description"`
}

// Ingredient is a single priced component of a menu item.
//
// UnitCost is nil iff Source is SourceUnavailable. CatalogItemNumber is
// non-empty iff Source is SourceCatalog.
type Ingredient struct {
	Name              string           `json:"name"`
	Quantity          string           `json:"quantity"`
	UnitCost          *float64         `json:"unit_cost"`
	Source            IngredientSource `json:"source"`
	CatalogItemNumber string           `json:"catalog_item_number,omitempty"`
}

// MenuItem is one dish as parsed from the menu, before decomposition.
type MenuItem struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
}

// LineItem is a fully processed menu item with its cost breakdown.
type LineItem struct {
	ItemName    string       `json:"item_name"`
	Category    string       `json:"category"`
	Ingredients []Ingredient `json:"ingredients"`
	CostPerUnit float64      `json:"cost_per_unit"`
	// UnavailableCount flags how many ingredients were priced as 0 because
	// no source could be found, so reports can call out incomplete costing.
	UnavailableCount int `json:"unavailable_count,omitempty"`
}

// ComputeCost recomputes CostPerUnit and UnavailableCount from Ingredients.
// Unavailable ingredients contribute 0 and are counted separately.
func (li *LineItem) ComputeCost() {
	var total float64
	var unavailable int
	for _, ing := range li.Ingredients {
		if ing.UnitCost == nil {
			unavailable++
			continue
		}
		total += *ing.UnitCost
	}
	li.CostPerUnit = total
	li.UnavailableCount = unavailable
}

// CateringQuote is the exported view of a completed job.
type CateringQuote struct {
	QuoteID     string     `json:"quote_id"`
	Event       string     `json:"event"`
	GeneratedAt time.Time  `json:"generated_at"`
	LineItems   []LineItem `json:"line_items"`
}
