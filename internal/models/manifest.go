// Package models defines the manifest, track and segment types shared by the
// parser and the engine.
package models

import (
	"fmt"
	"strings"
)

// ManifestType represents the type of streaming manifest.
type ManifestType int

const (
	ManifestHLS ManifestType = iota
	ManifestDASH
)

func (t ManifestType) String() string {
	switch t {
	case ManifestHLS:
		return "HLS"
	case ManifestDASH:
		return "DASH"
	default:
		return "Unknown"
	}
}

// Manifest is a parsed manifest reduced to its tracks.
type Manifest struct {
	URL    string
	Type   ManifestType
	Tracks []*Track
}

// TrackType represents the type of media track.
type TrackType int

const (
	TrackVideo TrackType = iota
	TrackAudio
	TrackSubtitle
)

func (t TrackType) String() string {
	switch t {
	case TrackVideo:
		return "video"
	case TrackAudio:
		return "audio"
	case TrackSubtitle:
		return "subtitle"
	default:
		return "unknown"
	}
}

// Track is one rendition whose init segment may need rewriting. Input files
// become tracks too, with only ID, Name and InitSegment set.
type Track struct {
	ID          string
	Type        TrackType
	Codec       string // RFC 6381 codecs string, possibly a comma list
	Bandwidth   int64
	Resolution  Resolution
	Language    string
	Name        string
	InitSegment *Segment

	// MediaPlaylistURL is the HLS media playlist declaring the init segment.
	MediaPlaylistURL string

	// Encrypted is set when the manifest signals content protection.
	Encrypted bool
}

// Kind classifies the track. A recognized codec wins over resolution, which
// wins over Type.
func (t *Track) Kind() TrackType {
	if k, ok := CodecKind(t.Codec); ok {
		return k
	}
	if t.Resolution.Height > 0 {
		return TrackVideo
	}
	return t.Type
}

func (t *Track) IsVideo() bool    { return t.Kind() == TrackVideo }
func (t *Track) IsAudio() bool    { return t.Kind() == TrackAudio }
func (t *Track) IsSubtitle() bool { return t.Kind() == TrackSubtitle }

// DisplayName returns a short label for progress output.
func (t *Track) DisplayName() string {
	if t.Name != "" {
		return t.Name
	}
	parts := []string{t.Kind().String()}
	if q := t.Resolution.QualityLabel(); q != "" {
		parts = append(parts, q)
	}
	if t.Language != "" {
		parts = append(parts, t.Language)
	}
	if t.ID != "" {
		parts = append(parts, "("+t.ID+")")
	}
	return strings.Join(parts, " ")
}

// Resolution represents video dimensions.
type Resolution struct {
	Width  int
	Height int
}

// QualityLabel returns the conventional label for the height ("1080p",
// "4K"), or "" when unknown.
func (r Resolution) QualityLabel() string {
	switch {
	case r.Height >= 2160:
		return "4K"
	case r.Height > 0:
		return fmt.Sprintf("%dp", r.Height)
	default:
		return ""
	}
}

// Segment locates an init segment: remote (URL, optional ByteRange) or
// local (FilePath).
type Segment struct {
	URL       string
	ByteRange *ByteRange
	FilePath  string
	Data      []byte // loaded bytes, set once fetched
}

// Key identifies the bytes a segment refers to, so that tracks sharing an
// init segment can be processed once.
func (s *Segment) Key() string {
	if s.FilePath != "" {
		return "file:" + s.FilePath
	}
	if s.ByteRange != nil {
		return fmt.Sprintf("%s@%d-%d", s.URL, s.ByteRange.Start, s.ByteRange.End)
	}
	return s.URL
}

// ByteRange represents HTTP Range request parameters. End is inclusive.
type ByteRange struct {
	Start int64
	End   int64
}

// Len returns the number of bytes covered.
func (r ByteRange) Len() int64 {
	return r.End - r.Start + 1
}

// codecKinds maps the sample entry FourCC that opens an RFC 6381 codec
// string to its track kind.
var codecKinds = map[string]TrackType{
	"avc1": TrackVideo, "avc3": TrackVideo,
	"hvc1": TrackVideo, "hev1": TrackVideo,
	"dvav": TrackVideo, "dva1": TrackVideo, "dvh1": TrackVideo,
	"dvhe": TrackVideo, "dvc1": TrackVideo, "dvi1": TrackVideo,
	"vp08": TrackVideo, "vp09": TrackVideo, "av01": TrackVideo,
	"encv": TrackVideo,

	"mp4a": TrackAudio, "ac-3": TrackAudio, "ec-3": TrackAudio,
	"ac-4": TrackAudio, "opus": TrackAudio, "flac": TrackAudio,
	"alac": TrackAudio, "enca": TrackAudio,

	"stpp": TrackSubtitle, "wvtt": TrackSubtitle,
}

// CodecKind classifies an RFC 6381 codecs string. A list containing any
// video codec is video; otherwise the first recognized codec decides.
func CodecKind(codecs string) (TrackType, bool) {
	found, kind := false, TrackType(0)
	for _, c := range strings.Split(strings.ToLower(codecs), ",") {
		fourCC, _, _ := strings.Cut(strings.TrimSpace(c), ".")
		k, ok := codecKinds[fourCC]
		if !ok {
			continue
		}
		if k == TrackVideo {
			return TrackVideo, true
		}
		if !found {
			found, kind = true, k
		}
	}
	return kind, found
}
