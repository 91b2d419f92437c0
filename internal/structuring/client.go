// Package structuring turns extracted page text into structured program
// records by calling an OpenAI-compatible chat completions endpoint
// (a local Ollama instance by default). It is an optional post-processing
// step; the raw page records remain the source of truth.
package structuring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jonesrussell/countyscan/internal/domain"
	"github.com/jonesrussell/countyscan/internal/logger"
)

// NotFound is the sentinel value the model is instructed to emit for
// fields it cannot find in the page text.
const NotFound = "Not found"

const (
	defaultBaseURL        = "http://localhost:11434/v1/chat/completions"
	defaultModel          = "llama3.1:8b-instruct"
	defaultTimeout        = time.Minute
	defaultRequestsPerSec = 1.0
	maxResponseBody       = 1 << 20 // 1MB
)

// Program is the structured record distilled from one page.
type Program struct {
	ProgramName  string `json:"program_name"`
	Description  string `json:"description"`
	Eligibility  string `json:"eligibility"`
	HowToApply   string `json:"how_to_apply"`
	ContactPhone string `json:"contact_phone"`
	ContactEmail string `json:"contact_email"`
	County       string `json:"county"`
	SourceURL    string `json:"source_url"`
}

// Client calls the structuring model. Requests are rate limited so a
// local model is never flooded by extraction workers.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	model      string
	log        logger.Interface
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the chat completions endpoint.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithModel overrides the model name.
func WithModel(model string) Option {
	return func(c *Client) {
		c.model = model
	}
}

// WithHTTPClient overrides the HTTP client, used by tests.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithRateLimit sets the request rate in requests per second.
func WithRateLimit(requestsPerSecond float64) Option {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
		}
	}
}

// NewClient creates a structuring client with defaults suitable for a
// local Ollama instance.
func NewClient(log logger.Interface, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(defaultRequestsPerSec), 1),
		baseURL:    defaultBaseURL,
		model:      defaultModel,
		log:        log,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// chat completions wire types, trimmed to the fields we use.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Structure distills one page record into a Program. The model fills
// missing fields with the NotFound sentinel; County and SourceURL are
// always set from the record itself.
func (c *Client) Structure(ctx context.Context, page *domain.PageContent) (*Program, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("structuring rate limit: %w", err)
	}

	content, err := c.complete(ctx, buildPrompt(page))
	if err != nil {
		return nil, err
	}

	var program Program
	if err := json.Unmarshal([]byte(stripFences(content)), &program); err != nil {
		return nil, fmt.Errorf("parse model output: %w", err)
	}

	fillMissing(&program)
	program.County = page.County
	program.SourceURL = page.PageURL

	return &program, nil
}

// complete sends one chat completion request and returns the first
// choice's content.
func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return "", fmt.Errorf("read chat response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat request: unexpected status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("parse chat response: %w", err)
	}

	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat response: no choices")
	}

	return parsed.Choices[0].Message.Content, nil
}

const systemPrompt = `You extract structured facts about county maternal and child health programs from web page text. Respond with a single JSON object and nothing else. Use the exact string "Not found" for any field the text does not answer. Fields: program_name, description, eligibility, how_to_apply, contact_phone, contact_email.`

// buildPrompt assembles the user message for one page.
func buildPrompt(page *domain.PageContent) string {
	var b strings.Builder

	fmt.Fprintf(&b, "County: %s\n", page.County)
	fmt.Fprintf(&b, "Page URL: %s\n", page.PageURL)
	fmt.Fprintf(&b, "Link text: %s\n\n", page.LinkText)

	if len(page.Contacts.Phones) > 0 {
		fmt.Fprintf(&b, "Phone numbers found on page: %s\n", strings.Join(page.Contacts.Phones, ", "))
	}

	if len(page.Contacts.Emails) > 0 {
		fmt.Fprintf(&b, "Email addresses found on page: %s\n", strings.Join(page.Contacts.Emails, ", "))
	}

	b.WriteString("\nPage text:\n")
	b.WriteString(page.Text)

	return b.String()
}

// stripFences removes a surrounding markdown code fence, which some models
// emit despite instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)

	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")

	return strings.TrimSpace(s)
}

// fillMissing replaces empty model fields with the NotFound sentinel.
func fillMissing(p *Program) {
	for _, field := range []*string{
		&p.ProgramName, &p.Description, &p.Eligibility,
		&p.HowToApply, &p.ContactPhone, &p.ContactEmail,
	} {
		if strings.TrimSpace(*field) == "" {
			*field = NotFound
		}
	}
}
