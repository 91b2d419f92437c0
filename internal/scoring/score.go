// Package scoring ranks outbound links against a navigation tier's keyword
// set. Scoring is a pure function of its inputs: no network access, no
// hidden state, so two runs over the same links always rank identically.
package scoring

import (
	"net/url"
	"sort"
	"strings"
)

// Scoring weights and penalties.
const (
	// AnchorWeight is added per keyword found in the anchor text.
	AnchorWeight = 3
	// URLWeight is added when a matched keyword also appears in the URL path.
	URLWeight = 2
	// NonContentPenalty is subtracted for links into known non-content
	// paths (social media, login, search).
	NonContentPenalty = 3
	// OffDomainPenalty is subtracted for links leaving the county's
	// registered domain. The navigator excludes those entirely; the
	// penalty keeps the scorer meaningful when called on raw link lists.
	OffDomainPenalty = 2
)

// nonContentMarkers flag URLs that never lead to program content.
var nonContentMarkers = []string{
	"facebook.com",
	"twitter.com",
	"x.com/",
	"instagram.com",
	"youtube.com",
	"linkedin.com",
	"/login",
	"/signin",
	"/sign-in",
	"/search",
	"/translate",
}

// Input is one link to score. OffDomain must be precomputed by the caller
// so the function stays free of URL-parsing policy.
type Input struct {
	// AnchorText of the link
	AnchorText string
	// URL the link resolves to
	URL string
	// OffDomain is true when the link leaves the county's registered domain
	OffDomain bool
}

// Score computes the relevance of a link for a tier's keyword set.
// Keywords must already be lowercased. Matching is substring-based and
// case-insensitive on the link side.
func Score(keywords []string, in Input) int {
	anchor := strings.ToLower(in.AnchorText)
	lowURL := strings.ToLower(in.URL)
	urlPath := lowercasePath(in.URL)

	score := 0
	for _, kw := range keywords {
		if strings.Contains(anchor, kw) {
			score += AnchorWeight
			if strings.Contains(urlPath, kw) {
				score += URLWeight
			}
			continue
		}

		// A keyword present only in the URL path still signals relevance.
		if strings.Contains(urlPath, kw) {
			score += URLWeight
		}
	}

	for _, marker := range nonContentMarkers {
		if strings.Contains(lowURL, marker) {
			score -= NonContentPenalty
			break
		}
	}

	if in.OffDomain {
		score -= OffDomainPenalty
	}

	return score
}

// lowercasePath returns the lowercased path component of a URL, or the
// whole lowercased string when it does not parse.
func lowercasePath(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return strings.ToLower(rawURL)
	}

	return strings.ToLower(parsed.Path)
}

// Candidate is a scored link carrying the tie-break attributes.
type Candidate struct {
	// URL the link resolves to
	URL string
	// AnchorText of the link
	AnchorText string
	// Score from Score()
	Score int
	// Depth is the URL's path depth (tie-break: prefer shallower)
	Depth int
	// Order is the first-encountered position in the page (final tie-break)
	Order int
}

// Better reports whether a should rank ahead of b: higher score first,
// then shorter path depth, then first-encountered order. The chain is a
// total order over distinct Order values, which makes ranking deterministic.
func Better(a, b Candidate) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Depth != b.Depth {
		return a.Depth < b.Depth
	}
	return a.Order < b.Order
}

// Rank sorts candidates in place by Better.
func Rank(candidates []Candidate) {
	sort.Slice(candidates, func(i, j int) bool {
		return Better(candidates[i], candidates[j])
	})
}

// Best returns the highest-ranked candidate with score >= minScore, or
// false when none qualifies.
func Best(candidates []Candidate, minScore int) (Candidate, bool) {
	best := Candidate{}
	found := false

	for _, c := range candidates {
		if c.Score < minScore {
			continue
		}
		if !found || Better(c, best) {
			best = c
			found = true
		}
	}

	return best, found
}
