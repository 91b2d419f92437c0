package domain

import "time"

// Contacts holds deduplicated contact signals found anywhere in a page's
// raw text. Both slices are always non-nil so they serialize as empty
// arrays, never null.
type Contacts struct {
	// Phones in the form they appeared on the page
	Phones []string `json:"phones"`
	// Emails lowercased and deduplicated
	Emails []string `json:"emails"`
}

// PDFLink is a document link whose URL or anchor text matched the
// document-intent keyword set.
type PDFLink struct {
	// URL of the document, resolved against the page URL
	URL string `json:"url"`
	// LinkText is the anchor text of the document link
	LinkText string `json:"link_text"`
}

// PageContent is the terminal artifact of extraction: one record per
// successfully fetched program page. Immutable once written; identified by
// a stable hash of the normalized page URL so re-runs overwrite rather
// than duplicate.
type PageContent struct {
	// ID is the stable identifier derived from the normalized URL
	ID string `json:"id"`
	// County the page belongs to
	County string `json:"county"`
	// PageURL is the fetched URL
	PageURL string `json:"page_url"`
	// LinkText is the anchor text the navigator followed to this page
	LinkText string `json:"link_text"`
	// NavPath is the discovery path from the county homepage
	NavPath []NavigationEdge `json:"nav_path"`
	// Text is the readable page text, truncated to the configured limit
	Text string `json:"text"`
	// Contacts extracted from the untruncated raw text
	Contacts Contacts `json:"contacts"`
	// PDFLinks in discovery order, deduplicated by normalized URL
	PDFLinks []PDFLink `json:"pdf_links"`
	// ScrapedAt is when the page was fetched
	ScrapedAt time.Time `json:"scraped_at"`
}
