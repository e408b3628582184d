// Package catalog loads the static reference data the pipeline filters
// against: the sport whitelist, the football league allow-list, tennis tier
// markers, and the bookmakers a viewer can select.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultCatalog []byte

// League is one entry of the football allow-list.
type League struct {
	Name    string `yaml:"name"`
	Country string `yaml:"country,omitempty"`
}

// Bookmaker is one selectable bookmaker.
type Bookmaker struct {
	Name    string `yaml:"name" json:"name"`
	Display string `yaml:"display,omitempty" json:"display,omitempty"`
}

// Catalog is the decoded catalog file.
type Catalog struct {
	Sports           []string    `yaml:"sports"`
	FootballLeagues  []League    `yaml:"football_leagues"`
	TennisMarkers    []string    `yaml:"tennis_markers"`
	BasketballLeague string      `yaml:"basketball_league"`
	PassThrough      []string    `yaml:"pass_through"`
	Bookmakers       []Bookmaker `yaml:"bookmakers"`
}

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog file. An empty path yields the built-in catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates catalog YAML.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("catalog: parse: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate reports every structural problem in the catalog at once.
func (c *Catalog) Validate() error {
	var errs []string
	if len(c.Sports) == 0 {
		errs = append(errs, "sports must not be empty")
	}
	if len(c.Bookmakers) == 0 {
		errs = append(errs, "bookmakers must not be empty")
	}
	for i, b := range c.Bookmakers {
		if strings.TrimSpace(b.Name) == "" {
			errs = append(errs, fmt.Sprintf("bookmakers[%d]: name must not be empty", i))
		}
	}
	for i, l := range c.FootballLeagues {
		if strings.TrimSpace(l.Name) == "" {
			errs = append(errs, fmt.Sprintf("football_leagues[%d]: name must not be empty", i))
		}
	}
	for _, s := range c.PassThrough {
		if !c.HasSport(s) {
			errs = append(errs, fmt.Sprintf("pass_through sport %q is not in sports", s))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("catalog validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// HasSport reports whether sport is on the whitelist.
func (c *Catalog) HasSport(sport string) bool {
	for _, s := range c.Sports {
		if s == sport {
			return true
		}
	}
	return false
}

// LeagueNames returns the football allow-list names in file order.
func (c *Catalog) LeagueNames() []string {
	out := make([]string, 0, len(c.FootballLeagues))
	for _, l := range c.FootballLeagues {
		out = append(out, l.Name)
	}
	return out
}

// HasBookmaker reports whether name is a selectable bookmaker.
func (c *Catalog) HasBookmaker(name string) bool {
	for _, b := range c.Bookmakers {
		if b.Name == name {
			return true
		}
	}
	return false
}

// DefaultBookmaker is the first configured bookmaker.
func (c *Catalog) DefaultBookmaker() string {
	if len(c.Bookmakers) == 0 {
		return ""
	}
	return c.Bookmakers[0].Name
}
