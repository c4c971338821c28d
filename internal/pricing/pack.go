package pricing

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrParse is the sentinel for pack-size or quantity parse failures. It is
// recoverable: the resolver demotes the ingredient to the estimated or
// unavailable tier instead of failing the item.
var ErrParse = errors.New("pricing parse failed")

// measureKind groups units that can be converted into each other.
type measureKind int

const (
	kindCount measureKind = iota
	kindWeight
	kindVolume
)

// measure is a unit of measure with its conversion factor into the base unit
// of its kind (EA for count, OZ for weight, FLOZ for volume).
type measure struct {
	kind   measureKind
	toBase float64
}

// defaultUnits covers the units seen in supplier pack descriptions. The
// pricing policy file may register additional aliases.
var defaultUnits = map[string]measure{
	"EA":   {kindCount, 1},
	"EACH": {kindCount, 1},
	"CT":   {kindCount, 1},
	"PC":   {kindCount, 1},
	"PK":   {kindCount, 1},
	"DZ":   {kindCount, 12},

	"OZ": {kindWeight, 1},
	"LB": {kindWeight, 16},
	"#":  {kindWeight, 16},
	"G":  {kindWeight, 0.035274},
	"GM": {kindWeight, 0.035274},
	"KG": {kindWeight, 35.274},

	"FLOZ": {kindVolume, 1},
	"ML":   {kindVolume, 0.033814},
	"L":    {kindVolume, 33.814},
	"LT":   {kindVolume, 33.814},
	"PT":   {kindVolume, 16},
	"QT":   {kindVolume, 32},
	"GAL":  {kindVolume, 128},
}

// packPattern matches "6/1 LB", "4/5LB", "12/32 OZ".
var packPattern = regexp.MustCompile(`^(\d+)\s*/\s*(\d+(?:\.\d+)?)\s*([A-Z#]+)$`)

// simplePattern matches "36 CT", "5 LB", "1EA".
var simplePattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*([A-Z#]+)$`)

// quantityPattern matches ingredient quantities like "2 oz", "0.5 lb",
// "1 each", "3".
var quantityPattern = regexp.MustCompile(`^(\d+(?:\.\d+)?|\.\d+)\s*([A-Za-z#]*)$`)

// packSize is a parsed pack description reduced to a total amount in the
// base unit of its kind.
type packSize struct {
	kind      measureKind
	baseUnits float64 // e.g. "6/1 LB" -> 96 (OZ)
}

// parsePack interprets a supplier pack description. This is an acknowledged
// best-effort parser: anything it cannot interpret is a parse failure, never
// a guess.
func (r *Resolver) parsePack(desc string) (packSize, error) {
	d := strings.ToUpper(strings.TrimSpace(desc))
	if d == "" {
		return packSize{}, eris.Wrap(ErrParse, "empty pack description")
	}

	if m := packPattern.FindStringSubmatch(d); m != nil {
		count, _ := strconv.ParseFloat(m[1], 64)
		size, _ := strconv.ParseFloat(m[2], 64)
		u, ok := r.unit(m[3])
		if !ok {
			return packSize{}, eris.Wrapf(ErrParse, "unknown unit %q in pack %q", m[3], desc)
		}
		total := count * size * u.toBase
		if total <= 0 {
			return packSize{}, eris.Wrapf(ErrParse, "zero pack size %q", desc)
		}
		return packSize{kind: u.kind, baseUnits: total}, nil
	}

	if m := simplePattern.FindStringSubmatch(d); m != nil {
		size, _ := strconv.ParseFloat(m[1], 64)
		u, ok := r.unit(m[2])
		if !ok {
			return packSize{}, eris.Wrapf(ErrParse, "unknown unit %q in pack %q", m[2], desc)
		}
		total := size * u.toBase
		if total <= 0 {
			return packSize{}, eris.Wrapf(ErrParse, "zero pack size %q", desc)
		}
		return packSize{kind: u.kind, baseUnits: total}, nil
	}

	return packSize{}, eris.Wrapf(ErrParse, "unrecognized pack description %q", desc)
}

// parseQuantity interprets a requested ingredient quantity. A bare number is
// treated as a count.
func (r *Resolver) parseQuantity(qty string) (measureKind, float64, error) {
	q := strings.TrimSpace(qty)
	if q == "" {
		return 0, 0, eris.Wrap(ErrParse, "empty quantity")
	}
	m := quantityPattern.FindStringSubmatch(q)
	if m == nil {
		return 0, 0, eris.Wrapf(ErrParse, "unrecognized quantity %q", qty)
	}
	amount, err := strconv.ParseFloat(m[1], 64)
	if err != nil || amount <= 0 {
		return 0, 0, eris.Wrapf(ErrParse, "non-positive quantity %q", qty)
	}
	unitName := strings.ToUpper(m[2])
	if unitName == "" {
		return kindCount, amount, nil
	}
	u, ok := r.unit(unitName)
	if !ok {
		return 0, 0, eris.Wrapf(ErrParse, "unknown quantity unit %q", qty)
	}
	return u.kind, amount * u.toBase, nil
}

// unitCost derives the cost of the requested quantity from a case price and
// pack description. Mismatched dimensions (ounces of a per-each pack) are a
// parse failure.
func (r *Resolver) unitCost(casePrice float64, packDesc, quantity string) (float64, error) {
	if casePrice <= 0 {
		return 0, eris.Wrap(ErrParse, "non-positive case price")
	}
	pack, err := r.parsePack(packDesc)
	if err != nil {
		return 0, err
	}
	kind, amount, err := r.parseQuantity(quantity)
	if err != nil {
		return 0, err
	}
	if kind != pack.kind {
		return 0, eris.Wrapf(ErrParse, "quantity %q incompatible with pack %q", quantity, packDesc)
	}
	return casePrice / pack.baseUnits * amount, nil
}

// unit resolves a unit name against policy aliases first, then the defaults.
func (r *Resolver) unit(name string) (measure, bool) {
	if r.policy != nil {
		if canonical, ok := r.policy.UnitAliases[name]; ok {
			name = canonical
		}
	}
	u, ok := defaultUnits[name]
	return u, ok
}
