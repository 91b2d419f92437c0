// Package extractor distills a candidate program page into a PageContent
// record: layout regions stripped, readable text bounded, contact signals
// and document links pulled out. Every step tolerates missing structure
// and degrades to an absent field rather than an error.
package extractor

import (
	"bytes"
	"context"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/countyscan/internal/config"
	"github.com/jonesrussell/countyscan/internal/domain"
	"github.com/jonesrussell/countyscan/internal/fetcher"
	"github.com/jonesrussell/countyscan/internal/logger"
	"github.com/jonesrussell/countyscan/internal/urlutil"
)

// layoutSelectors lists the structural elements removed before text
// extraction: scripts, styling, and chrome regions marked by tag or role.
const layoutSelectors = "script, style, noscript, iframe, nav, header, footer, aside, form, " +
	"[role='navigation'], [role='banner'], [role='contentinfo'], [role='search']"

// documentKeywords qualify a link as a document of interest when found in
// its URL or anchor text.
var documentKeywords = []string{"eligibility", "apply", "application", "brochure", "program"}

var (
	// phonePattern matches North-American 10-digit numbers with optional
	// separators and parentheses, as they appear in page text.
	phonePattern = regexp.MustCompile(`\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)
	// emailPattern matches standard local@domain.tld addresses.
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	// nonDigits strips formatting for phone deduplication.
	nonDigits = regexp.MustCompile(`\D`)
	// multiNewline and multiSpace collapse extraction whitespace noise.
	multiNewline = regexp.MustCompile(`\n{3,}`)
	multiSpace   = regexp.MustCompile(`[ \t]{2,}`)
)

// Extractor performs deep extraction for program candidates.
type Extractor struct {
	fetcher      *fetcher.Fetcher
	maxTextChars int
	maxPDFLinks  int
	log          logger.Interface
}

// New creates an Extractor.
func New(f *fetcher.Fetcher, cfg config.ExtractConfig, log logger.Interface) *Extractor {
	return &Extractor{
		fetcher:      f,
		maxTextChars: cfg.MaxTextChars,
		maxPDFLinks:  cfg.MaxPDFLinks,
		log:          log,
	}
}

// Extract fetches and distills one candidate page. Contact patterns run
// over the full untruncated text; only the stored text is bounded. The
// returned error is always a *Error and soft for the batch.
func (e *Extractor) Extract(
	ctx context.Context,
	county string,
	candidate domain.ProgramCandidate,
) (*domain.PageContent, error) {
	body, err := e.fetcher.Fetch(ctx, candidate.URL)
	if err != nil {
		return nil, &Error{Kind: KindFetch, URL: candidate.URL, Err: err}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Kind: KindFetch, URL: candidate.URL, Err: err}
	}

	pdfLinks := e.collectPDFLinks(doc, candidate.URL)

	doc.Find(layoutSelectors).Remove()

	rawText := readableText(doc)
	if rawText == "" {
		return nil, &Error{Kind: KindEmptyContent, URL: candidate.URL}
	}

	id, err := urlutil.PageID(candidate.URL)
	if err != nil {
		return nil, &Error{Kind: KindFetch, URL: candidate.URL, Err: err}
	}

	return &domain.PageContent{
		ID:        id,
		County:    county,
		PageURL:   candidate.URL,
		LinkText:  candidate.AnchorText,
		NavPath:   candidate.NavPath,
		Text:      truncate(rawText, e.maxTextChars),
		Contacts:  ExtractContacts(rawText),
		PDFLinks:  pdfLinks,
		ScrapedAt: time.Now().UTC(),
	}, nil
}

// readableText collapses the document body to plain text with normalized
// whitespace. Returns "" when the page has no body text at all.
func readableText(doc *goquery.Document) string {
	root := doc.Find("body").First()
	if root.Length() == 0 {
		root = doc.Selection
	}

	var b strings.Builder

	root.Contents().Each(func(_ int, sel *goquery.Selection) {
		appendText(&b, sel)
	})

	text := multiSpace.ReplaceAllString(b.String(), " ")
	text = multiNewline.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}

// appendText walks a node depth-first, writing text content separated by
// newlines so block boundaries survive the collapse.
func appendText(b *strings.Builder, sel *goquery.Selection) {
	if goquery.NodeName(sel) == "#text" {
		if t := strings.TrimSpace(sel.Text()); t != "" {
			b.WriteString(t)
			b.WriteByte('\n')
		}
		return
	}

	sel.Contents().Each(func(_ int, child *goquery.Selection) {
		appendText(b, child)
	})
}

// truncate bounds text to at most limit bytes, never splitting a UTF-8
// sequence: a multi-byte rune straddling the limit is dropped whole so the
// stored text stays valid UTF-8.
func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}

	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}

	return text[:cut]
}

// ExtractContacts applies the phone and email patterns over raw text.
// Results are deduplicated, first-seen order, never nil. Phones that
// reduce to the same digit sequence keep their first-seen form.
func ExtractContacts(text string) domain.Contacts {
	contacts := domain.Contacts{
		Phones: []string{},
		Emails: []string{},
	}

	seenDigits := make(map[string]bool)
	for _, match := range phonePattern.FindAllString(text, -1) {
		digits := nonDigits.ReplaceAllString(match, "")
		if seenDigits[digits] {
			continue
		}
		seenDigits[digits] = true
		contacts.Phones = append(contacts.Phones, strings.TrimSpace(match))
	}

	seenEmails := make(map[string]bool)
	for _, match := range emailPattern.FindAllString(text, -1) {
		email := strings.ToLower(match)
		if seenEmails[email] {
			continue
		}
		seenEmails[email] = true
		contacts.Emails = append(contacts.Emails, email)
	}

	return contacts
}

// collectPDFLinks enumerates document links: URL ends in a PDF extension
// and the URL or anchor text carries a document-intent keyword. Discovery
// order is preserved; duplicates collapse by normalized URL.
func (e *Extractor) collectPDFLinks(doc *goquery.Document, baseURL string) []domain.PDFLink {
	seen := make(map[string]bool)
	links := make([]domain.PDFLink, 0)

	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")

		resolved, err := urlutil.Resolve(baseURL, href)
		if err != nil {
			return true
		}

		anchorText := strings.TrimSpace(sel.Text())
		if !isDocumentLink(resolved, anchorText) {
			return true
		}

		key, err := urlutil.Normalize(resolved)
		if err != nil || seen[key] {
			return true
		}
		seen[key] = true

		links = append(links, domain.PDFLink{URL: resolved, LinkText: anchorText})

		return len(links) < e.maxPDFLinks
	})

	return links
}

// isDocumentLink reports whether a link is a PDF with document intent.
func isDocumentLink(rawURL, anchorText string) bool {
	lowURL := strings.ToLower(rawURL)

	pathEnd := lowURL
	if idx := strings.IndexAny(pathEnd, "?#"); idx >= 0 {
		pathEnd = pathEnd[:idx]
	}

	if !strings.HasSuffix(pathEnd, ".pdf") {
		return false
	}

	lowText := strings.ToLower(anchorText)
	for _, kw := range documentKeywords {
		if strings.Contains(lowURL, kw) || strings.Contains(lowText, kw) {
			return true
		}
	}

	return false
}
