// Package domain provides domain models used across the application.
package domain

// County is a single county to crawl. Counties are read-only configuration
// loaded from the registry file and never mutated during a run.
type County struct {
	// Name of the county, e.g. "Kern"
	Name string `json:"name" mapstructure:"name"`
	// URL of the county government homepage
	URL string `json:"url" mapstructure:"url"`
}

// KeywordTiers holds the ordered keyword sets for each navigation tier.
type KeywordTiers struct {
	// Department keywords locate the health department from a county homepage
	Department []string `json:"department" mapstructure:"department"`
	// Section keywords locate the maternal/child health section
	Section []string `json:"section" mapstructure:"section"`
	// Program keywords qualify candidate program links
	Program []string `json:"program" mapstructure:"program"`
	// Fallback keywords per tier for the optional localized-language rule.
	// Only consulted when a tier yields zero qualifying links and the
	// fallback rule is enabled in configuration.
	Fallback map[Tier][]string `json:"fallback,omitempty" mapstructure:"fallback"`
}

// ForTier returns the primary keyword set for the given tier.
func (k KeywordTiers) ForTier(tier Tier) []string {
	switch tier {
	case TierDepartment:
		return k.Department
	case TierSection:
		return k.Section
	case TierProgram:
		return k.Program
	default:
		return nil
	}
}
