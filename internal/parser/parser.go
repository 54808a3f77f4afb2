// Package parser discovers the init segments referenced by HLS and DASH
// manifests.
package parser

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/mohaanymo/initfix/internal/httpclient"
	"github.com/mohaanymo/initfix/internal/models"
)

// Parser defines the interface for manifest parsers.
type Parser interface {
	Parse(ctx context.Context, url string, headers map[string]string) (*models.Manifest, error)
	CanParse(url string) bool
}

// Registry manages available parsers.
type Registry struct {
	parsers []Parser
}

// NewRegistry creates a registry with the HLS and DASH parsers, both
// fetching through client.
func NewRegistry(client *http.Client) *Registry {
	return &Registry{
		parsers: []Parser{
			NewHLSParser(client),
			NewDASHParser(client),
		},
	}
}

// Parse finds an appropriate parser and parses the manifest.
func (r *Registry) Parse(ctx context.Context, urlStr string, headers map[string]string) (*models.Manifest, error) {
	for _, p := range r.parsers {
		if p.CanParse(urlStr) {
			return p.Parse(ctx, urlStr, headers)
		}
	}
	return nil, fmt.Errorf("no parser found for URL: %s", urlStr)
}

// fetchText downloads a manifest.
func fetchText(ctx context.Context, client *http.Client, urlStr string, headers map[string]string) (string, error) {
	body, err := httpclient.Fetch(ctx, client, urlStr, nil, headers)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// resolveURL resolves a relative URL against a base URL.
func resolveURL(base *url.URL, relative string) string {
	if strings.HasPrefix(relative, "http://") || strings.HasPrefix(relative, "https://") {
		return relative
	}
	rel, err := url.Parse(relative)
	if err != nil {
		return relative
	}
	return base.ResolveReference(rel).String()
}

// parseByteRange parses "length@offset" (HLS) or "start-end" (DASH).
func parseByteRange(s string) *models.ByteRange {
	s = strings.Trim(s, "\"")

	if length, offset, ok := strings.Cut(s, "@"); ok || !strings.Contains(s, "-") {
		n, err := strconv.ParseInt(length, 10, 64)
		if err != nil || n <= 0 {
			return nil
		}
		start := int64(0)
		if ok {
			if start, err = strconv.ParseInt(offset, 10, 64); err != nil {
				return nil
			}
		}
		return &models.ByteRange{Start: start, End: start + n - 1}
	}

	first, last, _ := strings.Cut(s, "-")
	start, err := strconv.ParseInt(first, 10, 64)
	if err != nil {
		return nil
	}
	end, err := strconv.ParseInt(last, 10, 64)
	if err != nil || end < start {
		return nil
	}
	return &models.ByteRange{Start: start, End: end}
}
