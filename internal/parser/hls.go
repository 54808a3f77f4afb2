package parser

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/mohaanymo/initfix/internal/models"
)

// maxPlaylistFetches bounds concurrent media playlist requests.
const maxPlaylistFetches = 8

var hlsAttrPattern = regexp.MustCompile(`([A-Z0-9-]+)=("[^"]*"|[^,]*)`)

// HLSParser parses HLS (m3u8) manifests.
type HLSParser struct {
	client *http.Client
}

// NewHLSParser creates a new HLS parser.
func NewHLSParser(client *http.Client) *HLSParser {
	return &HLSParser{client: client}
}

// CanParse checks if URL is an HLS manifest.
func (p *HLSParser) CanParse(urlStr string) bool {
	lower := strings.ToLower(urlStr)
	return strings.Contains(lower, ".m3u8") || strings.Contains(lower, "format=m3u8")
}

// Parse parses an HLS master or media playlist. Variant and rendition
// playlists are fetched to find their EXT-X-MAP.
func (p *HLSParser) Parse(ctx context.Context, urlStr string, headers map[string]string) (*models.Manifest, error) {
	content, err := fetchText(ctx, p.client, urlStr, headers)
	if err != nil {
		return nil, fmt.Errorf("fetch manifest: %w", err)
	}

	baseURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("parse manifest URL: %w", err)
	}

	if strings.Contains(content, "#EXT-X-STREAM-INF") {
		return p.parseMaster(ctx, content, baseURL, headers)
	}

	manifest := &models.Manifest{URL: baseURL.String(), Type: models.ManifestHLS}
	track := &models.Track{ID: "0", Type: models.TrackVideo}
	track.InitSegment, track.Encrypted = ParseMediaPlaylist(content, baseURL)
	manifest.Tracks = append(manifest.Tracks, track)
	return manifest, nil
}

// parseMaster parses a master playlist and loads the media playlist of every
// variant and rendition, at most maxPlaylistFetches at a time.
func (p *HLSParser) parseMaster(ctx context.Context, content string, baseURL *url.URL, headers map[string]string) (*models.Manifest, error) {
	manifest := &models.Manifest{
		URL:  baseURL.String(),
		Type: models.ManifestHLS,
	}

	var currentAttrs map[string]string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(line, "#EXT-X-STREAM-INF:"):
			currentAttrs = parseHLSAttributes(strings.TrimPrefix(line, "#EXT-X-STREAM-INF:"))

		case strings.HasPrefix(line, "#EXT-X-MEDIA:"):
			attrs := parseHLSAttributes(strings.TrimPrefix(line, "#EXT-X-MEDIA:"))
			track, mediaURL := p.parseMediaTrack(attrs, baseURL)
			// Renditions without a URI are muxed into the variants.
			if mediaURL == "" {
				continue
			}
			track.MediaPlaylistURL = mediaURL
			manifest.Tracks = append(manifest.Tracks, track)

		case !strings.HasPrefix(line, "#") && line != "" && currentAttrs != nil:
			track := p.parseStreamTrack(currentAttrs)
			track.MediaPlaylistURL = resolveURL(baseURL, line)
			manifest.Tracks = append(manifest.Tracks, track)
			currentAttrs = nil
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxPlaylistFetches)
	for _, track := range manifest.Tracks {
		g.Go(func() error {
			return p.loadMediaPlaylist(gctx, track, headers)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return manifest, nil
}

func (p *HLSParser) loadMediaPlaylist(ctx context.Context, track *models.Track, headers map[string]string) error {
	content, err := fetchText(ctx, p.client, track.MediaPlaylistURL, headers)
	if err != nil {
		return fmt.Errorf("fetch media playlist for %s: %w", track.ID, err)
	}
	base, err := url.Parse(track.MediaPlaylistURL)
	if err != nil {
		return fmt.Errorf("parse media playlist URL: %w", err)
	}
	track.InitSegment, track.Encrypted = ParseMediaPlaylist(content, base)
	return nil
}

// parseStreamTrack creates a track from STREAM-INF attributes.
func (p *HLSParser) parseStreamTrack(attrs map[string]string) *models.Track {
	track := &models.Track{
		Type: models.TrackVideo,
	}

	if bw, ok := attrs["BANDWIDTH"]; ok {
		track.Bandwidth, _ = strconv.ParseInt(bw, 10, 64)
	}

	if res, ok := attrs["RESOLUTION"]; ok {
		w, h, found := strings.Cut(res, "x")
		if found {
			track.Resolution.Width, _ = strconv.Atoi(w)
			track.Resolution.Height, _ = strconv.Atoi(h)
		}
	}

	if codecs, ok := attrs["CODECS"]; ok {
		track.Codec = strings.Trim(codecs, "\"")
	}

	// Audio-only variants.
	if kind, ok := models.CodecKind(track.Codec); ok && kind == models.TrackAudio && track.Resolution.Height == 0 {
		track.Type = models.TrackAudio
	}

	track.ID = fmt.Sprintf("%s_%d_%d", track.Type, track.Resolution.Height, track.Bandwidth)
	return track
}

// parseMediaTrack creates a track from EXT-X-MEDIA attributes.
func (p *HLSParser) parseMediaTrack(attrs map[string]string, baseURL *url.URL) (*models.Track, string) {
	track := &models.Track{}

	switch strings.ToUpper(attrs["TYPE"]) {
	case "AUDIO":
		track.Type = models.TrackAudio
	case "SUBTITLES", "CLOSED-CAPTIONS":
		track.Type = models.TrackSubtitle
	default:
		track.Type = models.TrackVideo
	}

	track.Name = strings.Trim(attrs["NAME"], "\"")
	track.Language = strings.Trim(attrs["LANGUAGE"], "\"")

	var mediaURL string
	if uri, ok := attrs["URI"]; ok {
		mediaURL = resolveURL(baseURL, strings.Trim(uri, "\""))
	}

	groupID := strings.Trim(attrs["GROUP-ID"], "\"")
	track.ID = fmt.Sprintf("%s_%s_%s", groupID, track.Language, track.Name)
	if track.ID == "__" {
		track.ID = mediaURL
	}

	return track, mediaURL
}

// parseHLSAttributes parses HLS attribute string.
func parseHLSAttributes(s string) map[string]string {
	attrs := make(map[string]string)
	for _, m := range hlsAttrPattern.FindAllStringSubmatch(s, -1) {
		attrs[m[1]] = m[2]
	}
	return attrs
}

// ParseMediaPlaylist returns the init segment declared by EXT-X-MAP (nil
// for TS playlists) and whether any EXT-X-KEY enables encryption.
func ParseMediaPlaylist(content string, baseURL *url.URL) (initSegment *models.Segment, encrypted bool) {
	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		switch {
		case strings.HasPrefix(line, "#EXT-X-KEY:"):
			attrs := parseHLSAttributes(strings.TrimPrefix(line, "#EXT-X-KEY:"))
			if method := attrs["METHOD"]; method != "" && method != "NONE" {
				encrypted = true
			}

		case strings.HasPrefix(line, "#EXT-X-MAP:") && initSegment == nil:
			attrs := parseHLSAttributes(strings.TrimPrefix(line, "#EXT-X-MAP:"))
			if uri, ok := attrs["URI"]; ok {
				initSegment = &models.Segment{
					URL: resolveURL(baseURL, strings.Trim(uri, "\"")),
				}
				if br, ok := attrs["BYTERANGE"]; ok {
					initSegment.ByteRange = parseByteRange(br)
				}
			}
		}
	}
	return initSegment, encrypted
}
