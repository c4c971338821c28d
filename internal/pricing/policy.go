package pricing

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Policy tunes the resolver without a rebuild: confidence thresholds and
// extra unit-of-measure aliases for supplier-specific pack notation.
type Policy struct {
	HighThreshold  float64           `yaml:"high_threshold"`
	FloorThreshold float64           `yaml:"floor_threshold"`
	TopK           int               `yaml:"top_k"`
	UnitAliases    map[string]string `yaml:"unit_aliases"`
}

// LoadPolicy reads a pricing policy from a YAML file.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "pricing: read policy %s", path)
	}

	var wrapper struct {
		Pricing Policy `yaml:"pricing"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "pricing: parse policy")
	}

	p := wrapper.Pricing
	aliases := make(map[string]string, len(p.UnitAliases))
	for alias, canonical := range p.UnitAliases {
		aliases[strings.ToUpper(alias)] = strings.ToUpper(canonical)
	}
	p.UnitAliases = aliases
	return &p, nil
}
