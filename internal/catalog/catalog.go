// Package catalog builds a searchable, normalized index over supplier
// catalog entries loaded from a tabular CSV export.
package catalog

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/elegant-foods/costing-cli/internal/model"
)

// ErrLoad is the sentinel for catalog load failures (empty or malformed
// source). Fatal at startup; no job may start without a catalog.
var ErrLoad = errors.New("catalog load failed")

// Index is a read-only view over a set of catalog entries, rebuilt once per
// catalog load and never mutated during a job. Candidate order is the
// catalog's insertion order, which the matcher relies on for stable ties.
type Index struct {
	entries []model.CatalogEntry
}

// columnAliases maps required logical columns to accepted header spellings.
// Supplier exports use verbose headers; fixtures use the canonical ones.
var columnAliases = map[string][]string{
	"item_number":      {"item_number", "item number", "sysco item number", "sku"},
	"name":             {"name", "product description", "description"},
	"unit_price":       {"unit_price", "unit price", "cost", "price"},
	"pack_description": {"pack_description", "pack description", "unit of measure", "pack"},
}

// optional column appended to the searchable name when present.
var brandAliases = []string{"brand"}

// Load reads and indexes the catalog CSV at path.
func Load(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(ErrLoad, "open %s: %v", path, err)
	}
	defer f.Close()

	ix, err := Read(f)
	if err != nil {
		return nil, err
	}
	zap.L().Info("catalog loaded",
		zap.String("path", path),
		zap.Int("entries", ix.Len()),
	)
	return ix, nil
}

// Read parses catalog CSV data and builds an Index. The header must contain
// the item number, name, unit price, and pack description columns (any
// accepted alias, case-insensitive). Rows with a blank name are skipped;
// unparseable prices fall back to 0 so pack-size parsing can demote them
// later rather than poisoning the whole load.
func Read(r io.Reader) (*Index, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, eris.Wrap(ErrLoad, "empty catalog source")
	}
	if err != nil {
		return nil, eris.Wrapf(ErrLoad, "read header: %v", err)
	}

	cols, err := resolveColumns(header)
	if err != nil {
		return nil, err
	}

	var entries []model.CatalogEntry
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(ErrLoad, "read row: %v", err)
		}

		name := strings.TrimSpace(field(rec, cols["name"]))
		if name == "" {
			continue
		}
		rawName := name
		if b, ok := cols["brand"]; ok && strings.TrimSpace(field(rec, b)) != "" {
			rawName = name + " " + strings.TrimSpace(field(rec, b))
		}

		entries = append(entries, model.CatalogEntry{
			ItemNumber:      strings.TrimSpace(field(rec, cols["item_number"])),
			RawName:         rawName,
			UnitPrice:       parsePrice(field(rec, cols["unit_price"])),
			PackDescription: strings.TrimSpace(field(rec, cols["pack_description"])),
		})
	}

	if len(entries) == 0 {
		return nil, eris.Wrap(ErrLoad, "catalog has no usable rows")
	}

	return Build(entries), nil
}

// Build normalizes each entry's name and constructs an Index. Building is
// idempotent and deterministic for identical input.
func Build(entries []model.CatalogEntry) *Index {
	indexed := make([]model.CatalogEntry, len(entries))
	for i, e := range entries {
		e.NormalizedName = Normalize(e.RawName)
		indexed[i] = e
	}
	return &Index{entries: indexed}
}

// Candidates returns all indexed entries in insertion order.
func (ix *Index) Candidates() []model.CatalogEntry {
	return ix.entries
}

// Len reports the number of indexed entries.
func (ix *Index) Len() int {
	return len(ix.entries)
}

// resolveColumns maps logical column names to header positions.
func resolveColumns(header []string) (map[string]int, error) {
	norm := make(map[string]int, len(header))
	for i, h := range header {
		norm[strings.ToLower(strings.TrimSpace(h))] = i
	}

	cols := make(map[string]int, len(columnAliases)+1)
	for logical, aliases := range columnAliases {
		found := false
		for _, a := range aliases {
			if i, ok := norm[a]; ok {
				cols[logical] = i
				found = true
				break
			}
		}
		if !found {
			return nil, eris.Wrapf(ErrLoad, "missing required column %q", logical)
		}
	}
	for _, a := range brandAliases {
		if i, ok := norm[a]; ok {
			cols["brand"] = i
			break
		}
	}
	return cols, nil
}

func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return rec[i]
}

// parsePrice cleans supplier price formatting ("$1,234.56") and parses it.
func parsePrice(s string) float64 {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	p, err := strconv.ParseFloat(s, 64)
	if err != nil || p < 0 {
		return 0
	}
	return p
}
