// Package webtext extracts the readable text of a product web page so that an
// ingredient list published online can be checked like a label photo.
package webtext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
	"go.uber.org/zap"
)

// ErrPageUnavailable is returned when the page cannot be fetched or parsed.
var ErrPageUnavailable = errors.New("page unavailable")

// Read content with size limit to prevent OOM from untrusted URLs
const maxBodySize = 10 * 1024 * 1024

// Extractor fetches HTML pages and returns their main text.
type Extractor struct {
	Client *http.Client
	Logger *zap.Logger
	// UserAgent is sent with every request; some shops block the Go default.
	UserAgent string
}

// NewExtractor returns an Extractor with a 30 second client timeout.
func NewExtractor(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		Client:    &http.Client{Timeout: 30 * time.Second},
		Logger:    logger,
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	}
}

// Extract returns the article text of source, which is either an http(s) URL
// or the path of a saved HTML file.
func (e *Extractor) Extract(ctx context.Context, source string) (string, error) {
	u, err := url.Parse(source)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return e.extractFile(source)
	}
	body, err := e.fetch(ctx, u)
	if err != nil {
		return "", err
	}
	return extractText(body, u)
}

func (e *Extractor) extractFile(path string) (string, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPageUnavailable, err)
	}
	return extractText(body, &url.URL{Scheme: "file", Path: path})
}

func (e *Extractor) fetch(ctx context.Context, u *url.URL) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPageUnavailable, err)
	}
	req.Header.Set("User-Agent", e.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	client := e.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPageUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrPageUnavailable, resp.StatusCode)
	}
	if resp.ContentLength > maxBodySize {
		return nil, fmt.Errorf("%w: content length %d exceeds %d bytes", ErrPageUnavailable, resp.ContentLength, maxBodySize)
	}
	// Read one byte past the limit to tell a full body from a truncated one.
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrPageUnavailable, err)
	}
	if len(body) > maxBodySize {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", ErrPageUnavailable, maxBodySize)
	}
	e.Logger.Debug("page fetched", zap.String("url", u.String()), zap.Int("bytes", len(body)))
	return body, nil
}

func extractText(body []byte, u *url.URL) (string, error) {
	article, err := readability.FromReader(bytes.NewReader(SanitizeRuby(body)), u)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPageUnavailable, err)
	}
	return strings.Join(strings.Fields(article.TextContent), " "), nil
}

var (
	reRT = regexp.MustCompile(`(?si)<rt\b[^>]*>.*?</rt>`)
	reRP = regexp.MustCompile(`(?si)<rp\b[^>]*>.*?</rp>`)
)

// SanitizeRuby removes ruby annotations (<rt>, <rp>) so furigana does not get
// glued onto the ingredient names it annotates.
func SanitizeRuby(content []byte) []byte {
	cleaned := reRT.ReplaceAll(content, nil)
	return reRP.ReplaceAll(cleaned, nil)
}
