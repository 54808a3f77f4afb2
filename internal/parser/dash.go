package parser

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/mohaanymo/initfix/internal/models"
)

// DASHParser parses DASH (mpd) manifests.
type DASHParser struct {
	client *http.Client
}

// NewDASHParser creates a new DASH parser.
func NewDASHParser(client *http.Client) *DASHParser {
	return &DASHParser{client: client}
}

// CanParse checks if URL is a DASH manifest.
func (p *DASHParser) CanParse(urlStr string) bool {
	lower := strings.ToLower(urlStr)
	return strings.Contains(lower, ".mpd") || strings.Contains(lower, "format=mpd")
}

// Parse parses a DASH manifest.
func (p *DASHParser) Parse(ctx context.Context, urlStr string, headers map[string]string) (*models.Manifest, error) {
	content, err := fetchText(ctx, p.client, urlStr, headers)
	if err != nil {
		return nil, fmt.Errorf("fetch manifest: %w", err)
	}

	baseURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("parse manifest URL: %w", err)
	}

	return ParseMPD([]byte(content), baseURL)
}

// DASH MPD XML structures. Only what locates init segments is decoded.

type mpdDoc struct {
	XMLName xml.Name    `xml:"MPD"`
	Periods []mpdPeriod `xml:"Period"`
	BaseURL string      `xml:"BaseURL"`
}

type mpdPeriod struct {
	ID             string             `xml:"id,attr"`
	AdaptationSets []mpdAdaptationSet `xml:"AdaptationSet"`
	BaseURL        string             `xml:"BaseURL"`
}

type mpdAdaptationSet struct {
	ID                 string                 `xml:"id,attr"`
	MimeType           string                 `xml:"mimeType,attr"`
	ContentType        string                 `xml:"contentType,attr"`
	Lang               string                 `xml:"lang,attr"`
	Codecs             string                 `xml:"codecs,attr"`
	Width              int                    `xml:"width,attr"`
	Height             int                    `xml:"height,attr"`
	Representations    []mpdRepresentation    `xml:"Representation"`
	ContentProtections []mpdContentProtection `xml:"ContentProtection"`
	SegmentTemplate    *mpdSegmentTemplate    `xml:"SegmentTemplate"`
	SegmentBase        *mpdSegmentBase        `xml:"SegmentBase"`
	BaseURL            string                 `xml:"BaseURL"`
}

type mpdRepresentation struct {
	ID                 string                 `xml:"id,attr"`
	Bandwidth          int64                  `xml:"bandwidth,attr"`
	Width              int                    `xml:"width,attr"`
	Height             int                    `xml:"height,attr"`
	Codecs             string                 `xml:"codecs,attr"`
	MimeType           string                 `xml:"mimeType,attr"`
	ContentProtections []mpdContentProtection `xml:"ContentProtection"`
	SegmentTemplate    *mpdSegmentTemplate    `xml:"SegmentTemplate"`
	SegmentList        *mpdSegmentList        `xml:"SegmentList"`
	SegmentBase        *mpdSegmentBase        `xml:"SegmentBase"`
	BaseURL            string                 `xml:"BaseURL"`
}

type mpdSegmentTemplate struct {
	Initialization string `xml:"initialization,attr"`
}

type mpdSegmentList struct {
	Initialization *mpdURL `xml:"Initialization"`
}

type mpdSegmentBase struct {
	IndexRange     string  `xml:"indexRange,attr"`
	Initialization *mpdURL `xml:"Initialization"`
}

type mpdURL struct {
	SourceURL string `xml:"sourceURL,attr"`
	Range     string `xml:"range,attr"`
}

type mpdContentProtection struct {
	SchemeIdUri string `xml:"schemeIdUri,attr"`
	DefaultKID  string `xml:"default_KID,attr"`
}

// ParseMPD converts an MPD document to a manifest. Relative URLs resolve
// against baseURL.
func ParseMPD(content []byte, baseURL *url.URL) (*models.Manifest, error) {
	var mpd mpdDoc
	if err := xml.Unmarshal(content, &mpd); err != nil {
		return nil, fmt.Errorf("parse MPD: %w", err)
	}

	manifest := &models.Manifest{
		URL:  baseURL.String(),
		Type: models.ManifestDASH,
	}

	for _, period := range mpd.Periods {
		periodBase := resolveBase(baseURL, mpd.BaseURL, period.BaseURL)

		for _, as := range period.AdaptationSets {
			asBase := resolveBase(periodBase, as.BaseURL)
			trackType := detectTrackType(as.MimeType, as.ContentType)

			for _, rep := range as.Representations {
				repBase := resolveBase(asBase, rep.BaseURL)

				track := &models.Track{
					ID:        rep.ID,
					Type:      trackType,
					Bandwidth: rep.Bandwidth,
					Codec:     firstNonEmpty(rep.Codecs, as.Codecs),
					Language:  as.Lang,
					Resolution: models.Resolution{
						Width:  firstNonZero(rep.Width, as.Width),
						Height: firstNonZero(rep.Height, as.Height),
					},
					Encrypted: len(as.ContentProtections) > 0 || len(rep.ContentProtections) > 0,
				}
				if trackType == models.TrackVideo && rep.MimeType != "" {
					track.Type = detectTrackType(rep.MimeType, "")
				}

				track.InitSegment = initSegment(as, rep, repBase)
				manifest.Tracks = append(manifest.Tracks, track)
			}
		}
	}

	return manifest, nil
}

// initSegment locates the init segment of rep, preferring the most specific
// declaration: representation over adaptation set.
func initSegment(as mpdAdaptationSet, rep mpdRepresentation, base *url.URL) *models.Segment {
	tmpl := rep.SegmentTemplate
	if tmpl == nil {
		tmpl = as.SegmentTemplate
	}
	if tmpl != nil && tmpl.Initialization != "" {
		return &models.Segment{URL: resolveURL(base, expandTemplate(tmpl.Initialization, rep))}
	}

	if rep.SegmentList != nil && rep.SegmentList.Initialization != nil {
		return fromInitialization(rep.SegmentList.Initialization, base)
	}

	sb := rep.SegmentBase
	if sb == nil {
		sb = as.SegmentBase
	}
	if sb != nil && sb.Initialization != nil {
		return fromInitialization(sb.Initialization, base)
	}

	return nil
}

// fromInitialization builds a segment from an Initialization element. A missing
// sourceURL refers to the representation's BaseURL.
func fromInitialization(u *mpdURL, base *url.URL) *models.Segment {
	seg := &models.Segment{URL: base.String()}
	if u.SourceURL != "" {
		seg.URL = resolveURL(base, u.SourceURL)
	}
	if u.Range != "" {
		seg.ByteRange = parseByteRange(u.Range)
	}
	return seg
}

// Helper functions

func detectTrackType(mimeType, contentType string) models.TrackType {
	check := strings.ToLower(mimeType + contentType)
	switch {
	case strings.Contains(check, "video"):
		return models.TrackVideo
	case strings.Contains(check, "audio"):
		return models.TrackAudio
	case strings.Contains(check, "text"), strings.Contains(check, "subtitle"):
		return models.TrackSubtitle
	default:
		return models.TrackVideo
	}
}

func resolveBase(parent *url.URL, paths ...string) *url.URL {
	result := parent
	for _, p := range paths {
		if p == "" {
			continue
		}
		if rel, err := url.Parse(strings.TrimSpace(p)); err == nil {
			result = result.ResolveReference(rel)
		}
	}
	return result
}

// expandTemplate fills the identifiers an initialization template may use.
func expandTemplate(template string, rep mpdRepresentation) string {
	result := strings.ReplaceAll(template, "$RepresentationID$", rep.ID)
	result = strings.ReplaceAll(result, "$Bandwidth$", strconv.FormatInt(rep.Bandwidth, 10))
	return strings.ReplaceAll(result, "$$", "$")
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func firstNonZero(a, b int) int {
	if a != 0 {
		return a
	}
	return b
}
