// Package scrape fetches official disaster updates from upstream agency
// sites. Document scrapers parse listing pages with CSS selectors declared in
// an embedded catalog; the FEMA scraper talks to the OpenFEMA JSON API.
package scrape

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed sources.yaml
var sourcesYAML []byte

// SourceConfig declares how to scrape one upstream listing page. Selectors
// live in data rather than code so an upstream markup change is a config
// edit, not a rebuild of the parsing logic.
type SourceConfig struct {
	Name           string   `yaml:"name"`
	BaseURL        string   `yaml:"base_url"`
	SearchPath     string   `yaml:"search_path"` // %s is the URL-escaped search term
	ItemSelectors  []string `yaml:"item_selectors"`
	TitleSelector  string   `yaml:"title_selector"`
	SourceSelector string   `yaml:"source_selector"`
	DateSelector   string   `yaml:"date_selector"`
	FallbackAgency string   `yaml:"fallback_agency"`
	SourceTag      string   `yaml:"source_tag"`
	IDPrefix       string   `yaml:"id_prefix"`
	Limit          int      `yaml:"limit"`
}

// Catalog groups the scrape sources by pipeline role. Primary sources always
// run; fallbacks run only when the primary pass yields nothing.
type Catalog struct {
	Primary   []SourceConfig `yaml:"primary"`
	Fallbacks []SourceConfig `yaml:"fallbacks"`
}

// LoadCatalog parses the embedded source catalog.
func LoadCatalog() (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(sourcesYAML, &c); err != nil {
		return Catalog{}, fmt.Errorf("parse source catalog: %w", err)
	}
	for _, src := range append(append([]SourceConfig{}, c.Primary...), c.Fallbacks...) {
		if src.Name == "" || src.BaseURL == "" || src.SearchPath == "" || len(src.ItemSelectors) == 0 {
			return Catalog{}, fmt.Errorf("source catalog entry %q is incomplete", src.Name)
		}
	}
	return c, nil
}
