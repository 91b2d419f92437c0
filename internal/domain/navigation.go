package domain

import "time"

// Tier identifies a navigation stage with its own keyword set.
type Tier string

const (
	// TierDepartment is the county homepage → health department stage.
	TierDepartment Tier = "department"
	// TierSection is the health department → maternal/child section stage.
	TierSection Tier = "section"
	// TierProgram is the section → program candidates stage.
	TierProgram Tier = "program"
)

// NavigationEdge records one followed link during discovery. Edges are
// created by the navigator and never mutated; the sequence of edges for a
// program candidate forms an acyclic path rooted at the county homepage.
type NavigationEdge struct {
	// From is the URL of the page the link was found on
	From string `json:"from"`
	// To is the resolved target URL
	To string `json:"to"`
	// AnchorText is the link text as found in the page
	AnchorText string `json:"anchor_text"`
	// Tier reached by following this edge
	Tier Tier `json:"tier"`
	// Score the link received at selection time
	Score int `json:"score"`
}

// ProgramCandidate is a URL proposed by the navigator as a likely program
// page, not yet content-extracted.
type ProgramCandidate struct {
	// URL of the candidate page
	URL string `json:"url"`
	// AnchorText of the link that proposed this candidate
	AnchorText string `json:"anchor_text"`
	// NavPath is the edge sequence from the county homepage to this candidate
	NavPath []NavigationEdge `json:"nav_path"`
}

// DiscoveryResult is the per-county outcome of the discovery phase.
// Unreached tiers are nil, not errors: a county with no qualifying
// section link may still carry best-effort program candidates.
type DiscoveryResult struct {
	// CountyName identifies the county
	CountyName string `json:"county_name"`
	// CountyURL is the homepage discovery started from
	CountyURL string `json:"county_url"`
	// HealthDeptURL is the selected department page, nil when unreached
	HealthDeptURL *string `json:"health_dept_url"`
	// MaternalSectionURL is the selected section page, nil when unreached
	MaternalSectionURL *string `json:"maternal_section_url"`
	// Programs are the qualifying candidates in deterministic order
	Programs []ProgramCandidate `json:"programs"`
	// SkipReason records why discovery produced no candidates, when it did not
	SkipReason string `json:"skip_reason,omitempty"`
	// GeneratedAt is when discovery for this county completed
	GeneratedAt time.Time `json:"generated_at"`
}
