// Package counties provides loading and validation of the county registry:
// the county list and the per-tier keyword sets that drive discovery.
package counties

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/jonesrussell/countyscan/internal/domain"
)

var (
	// ErrNoCounties indicates no counties were found in the registry file.
	ErrNoCounties = errors.New("no counties found in registry")
	// ErrNoKeywords indicates a tier has an empty keyword set.
	ErrNoKeywords = errors.New("keyword tier must not be empty")
	// ErrInvalidCounty indicates a county entry is missing a name or valid URL.
	ErrInvalidCounty = errors.New("invalid county entry")
)

// Registry is the loaded county registry.
type Registry struct {
	// Counties in file order
	Counties []domain.County
	// Keywords for the three navigation tiers
	Keywords domain.KeywordTiers
}

// registryFile mirrors the YAML structure of the registry file.
type registryFile struct {
	Counties []map[string]any `yaml:"counties"`
	Keywords keywordsSection  `yaml:"keywords"`
}

// keywordsSection mirrors the keywords block of the registry file.
type keywordsSection struct {
	Department []string            `yaml:"department"`
	Section    []string            `yaml:"section"`
	Program    []string            `yaml:"program"`
	Fallback   map[string][]string `yaml:"fallback"`
}

// Loader handles loading and validating the county registry.
type Loader struct {
	path string
}

// NewLoader creates a new Loader for the given registry file path.
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Load reads, decodes, and validates the registry.
func (l *Loader) Load() (*Registry, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}

	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}

	counties, err := convertCounties(file.Counties)
	if err != nil {
		return nil, err
	}

	keywords, err := convertKeywords(file.Keywords)
	if err != nil {
		return nil, err
	}

	return &Registry{Counties: counties, Keywords: keywords}, nil
}

// Subset returns the counties whose names match the given list
// (case-insensitive), preserving registry order. An empty list selects all.
func (r *Registry) Subset(names []string) []domain.County {
	if len(names) == 0 {
		return r.Counties
	}

	wanted := make(map[string]struct{}, len(names))
	for _, n := range names {
		wanted[strings.ToLower(strings.TrimSpace(n))] = struct{}{}
	}

	subset := make([]domain.County, 0, len(names))
	for _, c := range r.Counties {
		if _, ok := wanted[strings.ToLower(c.Name)]; ok {
			subset = append(subset, c)
		}
	}

	return subset
}

// convertCounties decodes and validates raw county entries. Invalid
// entries fail the load: a malformed county list is a configuration error,
// not a soft skip.
func convertCounties(raw []map[string]any) ([]domain.County, error) {
	if len(raw) == 0 {
		return nil, ErrNoCounties
	}

	counties := make([]domain.County, 0, len(raw))
	for i, entry := range raw {
		var county domain.County
		if err := mapstructure.Decode(entry, &county); err != nil {
			return nil, fmt.Errorf("county %d: %w", i, err)
		}

		if err := validateCounty(&county); err != nil {
			return nil, fmt.Errorf("county %d (%s): %w", i, county.Name, err)
		}

		counties = append(counties, county)
	}

	return counties, nil
}

// validateCounty checks a county has a name and an absolute http(s) URL.
func validateCounty(c *domain.County) error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidCounty)
	}

	parsed, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCounty, err)
	}

	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("%w: url must be absolute http(s)", ErrInvalidCounty)
	}

	return nil
}

// convertKeywords validates and lowercases the keyword tiers. Matching is
// case-insensitive; lowercasing once here keeps the scorer simple.
func convertKeywords(raw keywordsSection) (domain.KeywordTiers, error) {
	tiers := domain.KeywordTiers{
		Department: lowerAll(raw.Department),
		Section:    lowerAll(raw.Section),
		Program:    lowerAll(raw.Program),
	}

	for tier, kws := range map[domain.Tier][]string{
		domain.TierDepartment: tiers.Department,
		domain.TierSection:    tiers.Section,
		domain.TierProgram:    tiers.Program,
	} {
		if len(kws) == 0 {
			return domain.KeywordTiers{}, fmt.Errorf("%w: %s", ErrNoKeywords, tier)
		}
	}

	if len(raw.Fallback) > 0 {
		tiers.Fallback = make(map[domain.Tier][]string, len(raw.Fallback))
		for tier, kws := range raw.Fallback {
			tiers.Fallback[domain.Tier(tier)] = lowerAll(kws)
		}
	}

	return tiers, nil
}

// lowerAll lowercases and trims every keyword, dropping empties.
func lowerAll(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			out = append(out, kw)
		}
	}

	return out
}
