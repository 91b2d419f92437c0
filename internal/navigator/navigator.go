// Package navigator walks County Home → Health Department → Maternal/Child
// Section → Program pages, scoring outbound links at each tier. Navigation
// is deterministic: two runs over the same HTML produce identical results.
package navigator

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/countyscan/internal/config"
	"github.com/jonesrussell/countyscan/internal/domain"
	"github.com/jonesrussell/countyscan/internal/fetcher"
	"github.com/jonesrussell/countyscan/internal/logger"
	"github.com/jonesrussell/countyscan/internal/scoring"
	"github.com/jonesrussell/countyscan/internal/urlutil"
)

// Skip reasons recorded on counties that produced no candidates.
const (
	reasonHomeFetchFailed = "home_fetch_failed"
	reasonNoPrograms      = "no_qualifying_programs"
)

// link is one outbound link extracted from a page, in document order.
type link struct {
	url        string
	anchorText string
	order      int
}

// Navigator drives per-county discovery. Discovery for one county is
// strictly sequential; run counties on separate workers for parallelism.
type Navigator struct {
	fetcher        *fetcher.Fetcher
	keywords       domain.KeywordTiers
	minScore       int
	maxPrograms    int
	followFallback bool
	log            logger.Interface
}

// New creates a Navigator.
func New(
	f *fetcher.Fetcher,
	keywords domain.KeywordTiers,
	cfg config.NavigationConfig,
	log logger.Interface,
) *Navigator {
	return &Navigator{
		fetcher:        f,
		keywords:       keywords,
		minScore:       cfg.MinScore,
		maxPrograms:    cfg.MaxPrograms,
		followFallback: cfg.FollowLanguageFallback,
		log:            log,
	}
}

// Discover runs the tier state machine for one county. Failures past the
// homepage never fail the county: unreached tiers stay nil and program
// collection proceeds best-effort from the last successfully fetched page.
func (n *Navigator) Discover(ctx context.Context, county domain.County) domain.DiscoveryResult {
	log := n.log.WithCounty(county.Name)

	result := domain.DiscoveryResult{
		CountyName:  county.Name,
		CountyURL:   county.URL,
		Programs:    []domain.ProgramCandidate{},
		GeneratedAt: time.Now().UTC(),
	}

	// visited holds dedup keys of pages already on the path so no
	// back-edge is ever followed.
	visited := make(map[string]bool)
	markVisited(visited, county.URL)

	links, err := n.fetchLinks(ctx, county.URL)
	if err != nil {
		log.Warn("county homepage unreachable", "url", county.URL, "error", err.Error())
		result.SkipReason = reasonHomeFetchFailed
		return result
	}

	var path []domain.NavigationEdge

	currentURL := county.URL

	// Department tier.
	if best, ok := n.selectBest(links, county.URL, domain.TierDepartment, visited); ok {
		edge := domain.NavigationEdge{
			From:       currentURL,
			To:         best.URL,
			AnchorText: best.AnchorText,
			Tier:       domain.TierDepartment,
			Score:      best.Score,
		}
		path = append(path, edge)
		markVisited(visited, best.URL)
		result.HealthDeptURL = &edge.To

		if nextLinks, fetchErr := n.fetchLinks(ctx, best.URL); fetchErr == nil {
			currentURL = best.URL
			links = nextLinks
		} else {
			log.Warn("department page unreachable, collecting from homepage",
				"url", best.URL, "error", fetchErr.Error())
			path = path[:len(path)-1]
		}
	} else {
		log.Info("no qualifying department link, continuing from homepage")
	}

	// Section tier, from wherever the department tier landed.
	if best, ok := n.selectBest(links, county.URL, domain.TierSection, visited); ok {
		edge := domain.NavigationEdge{
			From:       currentURL,
			To:         best.URL,
			AnchorText: best.AnchorText,
			Tier:       domain.TierSection,
			Score:      best.Score,
		}
		path = append(path, edge)
		markVisited(visited, best.URL)
		result.MaternalSectionURL = &edge.To

		if nextLinks, fetchErr := n.fetchLinks(ctx, best.URL); fetchErr == nil {
			currentURL = best.URL
			links = nextLinks
		} else {
			log.Warn("section page unreachable, collecting from last reached page",
				"url", best.URL, "error", fetchErr.Error())
			path = path[:len(path)-1]
		}
	} else {
		log.Info("no qualifying section link, continuing from last reached page")
	}

	// Program tier: collect every qualifying link instead of picking one.
	result.Programs = n.collectPrograms(links, county.URL, currentURL, path, visited)
	if len(result.Programs) == 0 {
		result.SkipReason = reasonNoPrograms
	}

	log.Info("discovery complete",
		"programs", len(result.Programs),
		"department_reached", result.HealthDeptURL != nil,
		"section_reached", result.MaternalSectionURL != nil,
	)

	return result
}

// fetchLinks retrieves a page and extracts its outbound links in document
// order. Unresolvable hrefs (anchors, mailto, javascript) are dropped.
func (n *Navigator) fetchLinks(ctx context.Context, pageURL string) ([]link, error) {
	body, err := n.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &fetcher.Error{Kind: fetcher.KindMalformed, URL: pageURL, Err: err}
	}

	var links []link

	doc.Find("a[href]").Each(func(i int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")

		resolved, resolveErr := urlutil.Resolve(pageURL, href)
		if resolveErr != nil {
			return
		}

		links = append(links, link{
			url:        resolved,
			anchorText: strings.TrimSpace(sel.Text()),
			order:      len(links),
		})
	})

	return links, nil
}

// selectBest scores the links for a tier and returns the winner, applying
// the tie-break chain. Links off the county's registered domain and links
// back to pages already on the path are excluded. When the primary keyword
// set yields nothing and the language fallback is enabled, the tier is
// rescored once against the fallback set.
func (n *Navigator) selectBest(
	links []link,
	countyURL string,
	tier domain.Tier,
	visited map[string]bool,
) (scoring.Candidate, bool) {
	candidates := n.eligible(links, countyURL, visited, n.keywords.ForTier(tier))

	if best, ok := scoring.Best(candidates, n.minScore); ok {
		return best, true
	}

	if n.followFallback {
		if fallback, ok := n.keywords.Fallback[tier]; ok && len(fallback) > 0 {
			candidates = n.eligible(links, countyURL, visited, fallback)
			return scoring.Best(candidates, n.minScore)
		}
	}

	return scoring.Candidate{}, false
}

// eligible converts in-domain, not-yet-visited links into scored candidates.
func (n *Navigator) eligible(
	links []link,
	countyURL string,
	visited map[string]bool,
	keywords []string,
) []scoring.Candidate {
	candidates := make([]scoring.Candidate, 0, len(links))

	for _, l := range links {
		if !urlutil.SameRegisteredDomain(countyURL, l.url) {
			continue
		}

		key, err := urlutil.DedupKey(l.url)
		if err != nil || visited[key] {
			continue
		}

		candidates = append(candidates, scoring.Candidate{
			URL:        l.url,
			AnchorText: l.anchorText,
			Score: scoring.Score(keywords, scoring.Input{
				AnchorText: l.anchorText,
				URL:        l.url,
			}),
			Depth: urlutil.PathDepth(l.url),
			Order: l.order,
		})
	}

	return candidates
}

// collectPrograms gathers all qualifying program links from the current
// page, ranked deterministically, deduplicated by normalized (host, path),
// and capped at the configured maximum.
func (n *Navigator) collectPrograms(
	links []link,
	countyURL string,
	currentURL string,
	path []domain.NavigationEdge,
	visited map[string]bool,
) []domain.ProgramCandidate {
	candidates := n.eligible(links, countyURL, visited, n.keywords.ForTier(domain.TierProgram))
	scoring.Rank(candidates)

	seen := make(map[string]bool)
	programs := make([]domain.ProgramCandidate, 0, n.maxPrograms)

	for _, c := range candidates {
		if c.Score < n.minScore {
			break // ranked order: everything after is below threshold too
		}

		key, err := urlutil.DedupKey(c.URL)
		if err != nil || seen[key] {
			continue
		}
		seen[key] = true

		edge := domain.NavigationEdge{
			From:       currentURL,
			To:         c.URL,
			AnchorText: c.AnchorText,
			Tier:       domain.TierProgram,
			Score:      c.Score,
		}

		navPath := make([]domain.NavigationEdge, 0, len(path)+1)
		navPath = append(navPath, path...)
		navPath = append(navPath, edge)

		programs = append(programs, domain.ProgramCandidate{
			URL:        c.URL,
			AnchorText: c.AnchorText,
			NavPath:    navPath,
		})

		if len(programs) >= n.maxPrograms {
			break
		}
	}

	return programs
}

// markVisited records a page's dedup key so it is never followed again.
func markVisited(visited map[string]bool, rawURL string) {
	if key, err := urlutil.DedupKey(rawURL); err == nil {
		visited[key] = true
	}
}
