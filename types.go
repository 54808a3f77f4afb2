package initfix

import (
	"github.com/mohaanymo/initfix/internal/models"
)

// TrackType represents the type of media track.
type TrackType int

const (
	TrackVideo    TrackType = TrackType(models.TrackVideo)
	TrackAudio    TrackType = TrackType(models.TrackAudio)
	TrackSubtitle TrackType = TrackType(models.TrackSubtitle)
)

func (t TrackType) String() string {
	return models.TrackType(t).String()
}

// Track is one init segment source: an input file or a manifest track.
type Track struct {
	internal *models.Track
}

// ID returns the track's identifier. For files it is the base name without
// extension.
func (t *Track) ID() string {
	return t.internal.ID
}

// Type returns the track type. Input files report TrackVideo.
func (t *Track) Type() TrackType {
	return TrackType(t.internal.Type)
}

// Codec returns the codec string from the manifest (e.g., "ac-3", "avc1.64001f").
func (t *Track) Codec() string {
	return t.internal.Codec
}

// Bandwidth returns the track's bandwidth in bits per second.
func (t *Track) Bandwidth() int64 {
	return t.internal.Bandwidth
}

// Language returns the track's language code (e.g., "en", "es").
func (t *Track) Language() string {
	return t.internal.Language
}

// Name returns the track's display name.
func (t *Track) Name() string {
	return t.internal.DisplayName()
}

// IsEncrypted returns true if the manifest already signals encryption.
func (t *Track) IsEncrypted() bool {
	return t.internal.Encrypted
}

// InitSource returns the file path or URL of the track's init segment.
func (t *Track) InitSource() string {
	seg := t.internal.InitSegment
	if seg == nil {
		return ""
	}
	if seg.FilePath != "" {
		return seg.FilePath
	}
	return seg.URL
}

// Result describes one processed init segment.
type Result struct {
	Track      *Track
	OutputPath string // empty in inspect mode
	InputSize  int
	OutputSize int

	// Applied lists the rewrites in the order they ran: "ec3", "encrypt".
	Applied []string

	// Report is set in inspect mode and with WithVerify.
	Report *Report
}
