package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrackKinds(t *testing.T) {
	tests := []struct {
		track    Track
		video    bool
		audio    bool
		subtitle bool
	}{
		{Track{Codec: "avc1.64001f"}, true, false, false},
		{Track{Codec: "ec-3"}, false, true, false},
		{Track{Codec: "stpp"}, false, false, true},
		{Track{Resolution: Resolution{Width: 640, Height: 360}}, true, false, false},
		{Track{Type: TrackAudio}, false, true, false},
		{Track{Type: TrackVideo, Codec: "mp4a.40.2"}, false, true, false},
		{Track{Codec: "mp4a.40.2,avc1.64001f"}, true, false, false},
		{Track{Type: TrackSubtitle, Codec: "unknown"}, false, false, true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.video, tt.track.IsVideo(), "%+v", tt.track)
		assert.Equal(t, tt.audio, tt.track.IsAudio(), "%+v", tt.track)
		assert.Equal(t, tt.subtitle, tt.track.IsSubtitle(), "%+v", tt.track)
	}
}

func TestSegmentKey(t *testing.T) {
	a := &Segment{URL: "https://cdn.example/v/init.mp4"}
	b := &Segment{URL: "https://cdn.example/v/init.mp4", ByteRange: &ByteRange{Start: 0, End: 799}}
	c := &Segment{FilePath: "init.mp4"}

	assert.Equal(t, "https://cdn.example/v/init.mp4", a.Key())
	assert.Equal(t, "https://cdn.example/v/init.mp4@0-799", b.Key())
	assert.Equal(t, "file:init.mp4", c.Key())
	assert.Equal(t, int64(800), b.ByteRange.Len())
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "video 720p (v1)", (&Track{ID: "v1", Type: TrackVideo, Resolution: Resolution{1280, 720}}).DisplayName())
	assert.Equal(t, "audio en", (&Track{Type: TrackAudio, Language: "en"}).DisplayName())
	assert.Equal(t, "init.mp4", (&Track{Name: "init.mp4"}).DisplayName())
}

func TestCodecKind(t *testing.T) {
	tests := []struct {
		codecs string
		kind   TrackType
		ok     bool
	}{
		{"hvc1.2.4.L153.B0", TrackVideo, true},
		{"EC-3", TrackAudio, true},
		{"ac-3, mp4a.40.2", TrackAudio, true},
		{"wvtt", TrackSubtitle, true},
		{"", TrackVideo, false},
		{"h264", TrackVideo, false},
	}
	for _, tt := range tests {
		kind, ok := CodecKind(tt.codecs)
		assert.Equal(t, tt.ok, ok, tt.codecs)
		if ok {
			assert.Equal(t, tt.kind, kind, tt.codecs)
		}
	}
}
