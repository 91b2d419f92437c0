package extractor_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/jonesrussell/countyscan/internal/config"
	"github.com/jonesrussell/countyscan/internal/domain"
	"github.com/jonesrussell/countyscan/internal/extractor"
	"github.com/jonesrussell/countyscan/internal/fetcher"
	"github.com/jonesrussell/countyscan/internal/logger"
)

// newExtractor wires an extractor against a zero-delay fetcher.
func newExtractor(t *testing.T, cfg config.ExtractConfig) *extractor.Extractor {
	t.Helper()

	if cfg.MaxTextChars == 0 {
		cfg.MaxTextChars = 20000
	}
	if cfg.MaxPDFLinks == 0 {
		cfg.MaxPDFLinks = 20
	}

	f := fetcher.New(config.FetchConfig{
		RequestTimeout: 5 * time.Second,
		MaxBodySize:    1 << 20,
		UserAgent:      "countyscan-test/1.0",
	}, fetcher.NewGate(0, 0, true), logger.NewNoOp())

	return extractor.New(f, cfg, logger.NewNoOp())
}

// serve returns a test server answering every request with the given HTML.
func serve(t *testing.T, html string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, html)
	}))
	t.Cleanup(srv.Close)

	return srv
}

func TestExtract(t *testing.T) {
	srv := serve(t, `<html>
	<head><title>WIC</title><script>var tracking = 1;</script></head>
	<body>
		<nav><a href="/">Home</a><a href="/about">About</a></nav>
		<header>County of Kern</header>
		<main>
			<h1>WIC Program</h1>
			<p>Nutrition support for women, infants and children.</p>
			<p>Call (661) 555-0134 or email wic@kerncounty.com to enroll.</p>
			<a href="/docs/wic-application.pdf">Application Form (PDF)</a>
		</main>
		<footer>Copyright Kern County. Phone directory: 555-1234</footer>
	</body>
</html>`)

	ext := newExtractor(t, config.ExtractConfig{})

	page, err := ext.Extract(context.Background(), "Kern", domain.ProgramCandidate{
		URL:        srv.URL + "/wic",
		AnchorText: "WIC",
	})
	if err != nil {
		t.Fatalf("Extract() unexpected error: %v", err)
	}

	if page.County != "Kern" || page.LinkText != "WIC" {
		t.Errorf("record identity wrong: county=%q link=%q", page.County, page.LinkText)
	}

	if len(page.ID) != 64 {
		t.Errorf("expected 64-char page id, got %d chars", len(page.ID))
	}

	// Main content survives.
	if !strings.Contains(page.Text, "Nutrition support") {
		t.Errorf("main content missing from text: %q", page.Text)
	}

	// Layout regions are stripped.
	for _, gone := range []string{"var tracking", "County of Kern", "Copyright"} {
		if strings.Contains(page.Text, gone) {
			t.Errorf("layout content %q leaked into text", gone)
		}
	}

	if len(page.Contacts.Phones) != 1 || page.Contacts.Phones[0] != "(661) 555-0134" {
		t.Errorf("Phones = %v, want [(661) 555-0134]", page.Contacts.Phones)
	}

	if len(page.Contacts.Emails) != 1 || page.Contacts.Emails[0] != "wic@kerncounty.com" {
		t.Errorf("Emails = %v, want [wic@kerncounty.com]", page.Contacts.Emails)
	}

	if len(page.PDFLinks) != 1 {
		t.Fatalf("PDFLinks = %v, want one application form", page.PDFLinks)
	}

	if page.PDFLinks[0].LinkText != "Application Form (PDF)" {
		t.Errorf("PDF link text = %q", page.PDFLinks[0].LinkText)
	}

	if page.ScrapedAt.IsZero() {
		t.Error("ScrapedAt not set")
	}
}

func TestExtract_EmptyContent(t *testing.T) {
	srv := serve(t, `<html><body><nav>Only chrome here</nav></body></html>`)

	ext := newExtractor(t, config.ExtractConfig{})

	_, err := ext.Extract(context.Background(), "Kern", domain.ProgramCandidate{URL: srv.URL})

	extractErr, ok := extractor.AsError(err)
	if !ok {
		t.Fatalf("Extract() error = %v, want *extractor.Error", err)
	}

	if extractErr.Kind != extractor.KindEmptyContent {
		t.Errorf("Kind = %q, want %q", extractErr.Kind, extractor.KindEmptyContent)
	}
}

func TestExtract_FetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	ext := newExtractor(t, config.ExtractConfig{})

	_, err := ext.Extract(context.Background(), "Kern", domain.ProgramCandidate{URL: srv.URL})

	extractErr, ok := extractor.AsError(err)
	if !ok {
		t.Fatalf("Extract() error = %v, want *extractor.Error", err)
	}

	if extractErr.Kind != extractor.KindFetch {
		t.Errorf("Kind = %q, want %q", extractErr.Kind, extractor.KindFetch)
	}
}

func TestExtract_TruncationKeepsFullTextContacts(t *testing.T) {
	// Contact details appear only past the truncation limit.
	filler := strings.Repeat("county program information ", 40)
	srv := serve(t, fmt.Sprintf(`<html><body>
		<p>%s</p>
		<p>Contact: prenatal@example.gov or (619) 555-0100.</p>
	</body></html>`, filler))

	const limit = 100

	ext := newExtractor(t, config.ExtractConfig{MaxTextChars: limit})

	page, err := ext.Extract(context.Background(), "San Diego", domain.ProgramCandidate{URL: srv.URL})
	if err != nil {
		t.Fatalf("Extract() unexpected error: %v", err)
	}

	if len(page.Text) != limit {
		t.Errorf("stored text is %d chars, want exactly %d", len(page.Text), limit)
	}

	// Patterns run over the untruncated text.
	if len(page.Contacts.Emails) != 1 || page.Contacts.Emails[0] != "prenatal@example.gov" {
		t.Errorf("Emails = %v, want contact from beyond the truncation point", page.Contacts.Emails)
	}

	if len(page.Contacts.Phones) != 1 {
		t.Errorf("Phones = %v, want contact from beyond the truncation point", page.Contacts.Phones)
	}
}

func TestExtract_TruncationKeepsValidUTF8(t *testing.T) {
	// The tenth byte falls inside the two-byte "é", so a byte-exact cut
	// would leave a dangling lead byte.
	srv := serve(t, `<html><body><p>aaaaaaaaaé atención prenatal y posparto</p></body></html>`)

	const limit = 10

	ext := newExtractor(t, config.ExtractConfig{MaxTextChars: limit})

	page, err := ext.Extract(context.Background(), "Imperial", domain.ProgramCandidate{URL: srv.URL})
	if err != nil {
		t.Fatalf("Extract() unexpected error: %v", err)
	}

	if !utf8.ValidString(page.Text) {
		t.Errorf("stored text is not valid UTF-8: %q", page.Text)
	}

	if len(page.Text) > limit {
		t.Errorf("stored text is %d bytes, want at most %d", len(page.Text), limit)
	}

	// The straddling rune is dropped whole, not split.
	if page.Text != "aaaaaaaaa" {
		t.Errorf("stored text = %q, want %q", page.Text, "aaaaaaaaa")
	}
}

func TestExtractContacts(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		wantPhones []string
		wantEmails []string
	}{
		{
			"formatted phone",
			"Call (619) 555-0134 today",
			[]string{"(619) 555-0134"},
			[]string{},
		},
		{
			"dotted and dashed phones",
			"Office 619.555.0134 or fax 619-555-0199",
			[]string{"619.555.0134", "619-555-0199"},
			[]string{},
		},
		{
			"same number formatted differently kept once",
			"Call (619) 555-0134 or 619-555-0134 or 619.555.0134",
			[]string{"(619) 555-0134"},
			[]string{},
		},
		{
			"emails lowercased and deduplicated",
			"Write WIC@County.Gov or wic@county.gov",
			[]string{},
			[]string{"wic@county.gov"},
		},
		{
			"mixed contact block",
			"MCH Program, (661) 555-0101, mch.info+intake@kern.example.org",
			[]string{"(661) 555-0101"},
			[]string{"mch.info+intake@kern.example.org"},
		},
		{
			"no contacts",
			"No way to reach this program",
			[]string{},
			[]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			contacts := extractor.ExtractContacts(tt.text)

			// Absent contacts are empty slices, never nil.
			if contacts.Phones == nil || contacts.Emails == nil {
				t.Fatal("contact slices must never be nil")
			}

			if len(contacts.Phones) != len(tt.wantPhones) {
				t.Fatalf("Phones = %v, want %v", contacts.Phones, tt.wantPhones)
			}
			for i := range tt.wantPhones {
				if contacts.Phones[i] != tt.wantPhones[i] {
					t.Errorf("Phones[%d] = %q, want %q", i, contacts.Phones[i], tt.wantPhones[i])
				}
			}

			if len(contacts.Emails) != len(tt.wantEmails) {
				t.Fatalf("Emails = %v, want %v", contacts.Emails, tt.wantEmails)
			}
			for i := range tt.wantEmails {
				if contacts.Emails[i] != tt.wantEmails[i] {
					t.Errorf("Emails[%d] = %q, want %q", i, contacts.Emails[i], tt.wantEmails[i])
				}
			}
		})
	}
}

func TestExtract_PDFLinks(t *testing.T) {
	srv := serve(t, `<html><body>
		<p>Program documents</p>
		<a href="/docs/eligibility.pdf">Eligibility Rules</a>
		<a href="/docs/eligibility.pdf#page=2">Eligibility Rules (page 2)</a>
		<a href="/docs/annual-report.pdf">Annual Report</a>
		<a href="/docs/apply.pdf?lang=en">How to Apply</a>
		<a href="/apply">Apply online</a>
	</body></html>`)

	ext := newExtractor(t, config.ExtractConfig{})

	page, err := ext.Extract(context.Background(), "Kern", domain.ProgramCandidate{URL: srv.URL})
	if err != nil {
		t.Fatalf("Extract() unexpected error: %v", err)
	}

	// The report pdf has no document keyword, the HTML apply page is not
	// a pdf, and the fragment duplicate collapses.
	want := []string{"/docs/eligibility.pdf", "/docs/apply.pdf?lang=en"}

	if len(page.PDFLinks) != len(want) {
		t.Fatalf("PDFLinks = %+v, want %d links", page.PDFLinks, len(want))
	}

	for i, suffix := range want {
		if !strings.HasSuffix(page.PDFLinks[i].URL, suffix) {
			t.Errorf("PDFLinks[%d] = %q, want suffix %q", i, page.PDFLinks[i].URL, suffix)
		}
	}
}

func TestExtract_PDFLinkCap(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body><p>Documents</p>")
	for i := 0; i < 5; i++ {
		fmt.Fprintf(&b, `<a href="/docs/apply-%d.pdf">Apply form %d</a>`, i, i)
	}
	b.WriteString("</body></html>")

	srv := serve(t, b.String())

	ext := newExtractor(t, config.ExtractConfig{MaxPDFLinks: 3})

	page, err := ext.Extract(context.Background(), "Kern", domain.ProgramCandidate{URL: srv.URL})
	if err != nil {
		t.Fatalf("Extract() unexpected error: %v", err)
	}

	if len(page.PDFLinks) != 3 {
		t.Errorf("expected the document cap of 3, got %d", len(page.PDFLinks))
	}
}
