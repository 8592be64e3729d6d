package fetcher

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	dErrors "facecards/pkg/domain-errors"
)

//go:embed positions.yaml
var defaultPositions []byte

// Position is one office whose current holder is looked up.
type Position struct {
	Title string `yaml:"title"`
	Key   bool   `yaml:"key"`
}

// Catalog is the ordered list of positions a refresh covers.
type Catalog struct {
	Positions []Position `yaml:"positions"`
}

// LoadCatalog reads the catalog at path, or the embedded one when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	raw := defaultPositions
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeConfiguration, "failed to read positions file")
		}
		raw = b
	}
	return ParseCatalog(raw)
}

// ParseCatalog decodes and validates a YAML catalog.
func ParseCatalog(raw []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConfiguration, "invalid positions file")
	}
	if len(c.Positions) == 0 {
		return nil, dErrors.New(dErrors.CodeConfiguration, "positions file lists no positions")
	}
	seen := make(map[string]struct{}, len(c.Positions))
	for i, p := range c.Positions {
		title := strings.TrimSpace(p.Title)
		if title == "" {
			return nil, dErrors.New(dErrors.CodeConfiguration, fmt.Sprintf("positions[%d] has no title", i))
		}
		k := strings.ToLower(title)
		if _, dup := seen[k]; dup {
			return nil, dErrors.New(dErrors.CodeConfiguration, "duplicate position: "+title)
		}
		seen[k] = struct{}{}
		c.Positions[i].Title = title
	}
	return &c, nil
}

// All returns every position title in catalog order.
func (c *Catalog) All() []string {
	out := make([]string, 0, len(c.Positions))
	for _, p := range c.Positions {
		out = append(out, p.Title)
	}
	return out
}

// Key returns the titles checked by the daily sweep.
func (c *Catalog) Key() []string {
	var out []string
	for _, p := range c.Positions {
		if p.Key {
			out = append(out, p.Title)
		}
	}
	return out
}
