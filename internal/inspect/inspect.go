// Package inspect decodes init segments with mp4ff and reports the sample
// entries and protection signaling of each track.
package inspect

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/Eyevinn/mp4ff/mp4"
)

// Errors for segments that decode but cannot be described.
var (
	ErrNoMoov   = errors.New("no moov box")
	ErrNoTracks = errors.New("moov holds no trak box")
)

// Report describes one init segment.
type Report struct {
	Size   int
	Tracks []Track
}

// Track describes the sample descriptions of one trak.
type Track struct {
	ID      uint32
	Handler string
	Entries []Entry
}

// Entry describes one sample entry.
type Entry struct {
	Type string

	// Protection signaling, set only when the entry carries a sinf.
	Protected      bool
	OriginalFormat string
	Scheme         string
	DefaultKID     string
	IVSize         byte
}

// Init decodes data and builds its Report. Only the top-level boxes up to
// moov are decoded; segments without stts or other sample tables are fine.
func Init(data []byte) (report *Report, err error) {
	// mp4ff dereferences optional children on some malformed input.
	defer func() {
		if r := recover(); r != nil {
			report, err = nil, fmt.Errorf("decode init segment: %v", r)
		}
	}()

	moov, err := findMoov(data)
	if err != nil {
		return nil, err
	}
	if len(moov.Traks) == 0 {
		return nil, ErrNoTracks
	}

	report = &Report{Size: len(data)}
	for _, trak := range moov.Traks {
		report.Tracks = append(report.Tracks, describeTrack(trak))
	}
	return report, nil
}

func findMoov(data []byte) (*mp4.MoovBox, error) {
	r := bytes.NewReader(data)
	var pos uint64
	for pos < uint64(len(data)) {
		box, err := mp4.DecodeBox(pos, r)
		if err != nil {
			return nil, fmt.Errorf("decode init segment: %w", err)
		}
		if moov, ok := box.(*mp4.MoovBox); ok {
			return moov, nil
		}
		if box.Size() == 0 {
			break
		}
		pos += box.Size()
	}
	return nil, ErrNoMoov
}

func describeTrack(trak *mp4.TrakBox) Track {
	var t Track
	if trak.Tkhd != nil {
		t.ID = trak.Tkhd.TrackID
	}
	if trak.Mdia == nil {
		return t
	}
	if trak.Mdia.Hdlr != nil {
		t.Handler = trak.Mdia.Hdlr.HandlerType
	}
	if trak.Mdia.Minf == nil || trak.Mdia.Minf.Stbl == nil || trak.Mdia.Minf.Stbl.Stsd == nil {
		return t
	}

	for _, child := range trak.Mdia.Minf.Stbl.Stsd.Children {
		entry := Entry{Type: child.Type()}

		var sinf *mp4.SinfBox
		switch e := child.(type) {
		case *mp4.VisualSampleEntryBox:
			sinf = e.Sinf
		case *mp4.AudioSampleEntryBox:
			sinf = e.Sinf
		}
		if sinf != nil {
			entry.Protected = true
			if sinf.Frma != nil {
				entry.OriginalFormat = sinf.Frma.DataFormat
			}
			if sinf.Schm != nil {
				entry.Scheme = sinf.Schm.SchemeType
			}
			if sinf.Schi != nil && sinf.Schi.Tenc != nil {
				entry.DefaultKID = hex.EncodeToString(sinf.Schi.Tenc.DefaultKID)
				entry.IVSize = sinf.Schi.Tenc.DefaultPerSampleIVSize
			}
		}
		t.Entries = append(t.Entries, entry)
	}
	return t
}

// Protected reports whether any sample entry carries protection info.
func (r *Report) Protected() bool {
	for _, t := range r.Tracks {
		for _, e := range t.Entries {
			if e.Protected {
				return true
			}
		}
	}
	return false
}

// HasEntryType reports whether any track has a sample entry of type typ.
func (r *Report) HasEntryType(typ string) bool {
	for _, t := range r.Tracks {
		if slices.ContainsFunc(t.Entries, func(e Entry) bool { return e.Type == typ }) {
			return true
		}
	}
	return false
}

// EntryTypes returns the sample entry types of every track, in order.
func (r *Report) EntryTypes() []string {
	var types []string
	for _, t := range r.Tracks {
		for _, e := range t.Entries {
			types = append(types, e.Type)
		}
	}
	return types
}

// String renders the report one line per sample entry.
func (r *Report) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d bytes, %d tracks\n", r.Size, len(r.Tracks))
	for _, t := range r.Tracks {
		for _, e := range t.Entries {
			fmt.Fprintf(&sb, "  track %d (%s): %s", t.ID, t.Handler, e.Type)
			if e.Protected {
				fmt.Fprintf(&sb, " frma=%s scheme=%s kid=%s", e.OriginalFormat, e.Scheme, e.DefaultKID)
			}
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
