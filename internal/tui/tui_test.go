package tui

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohaanymo/initfix/internal/config"
	"github.com/mohaanymo/initfix/internal/engine"
	"github.com/mohaanymo/initfix/internal/inspect"
	"github.com/mohaanymo/initfix/internal/models"
)

func testTracks() []*models.Track {
	return []*models.Track{
		{ID: "v1", Type: models.TrackVideo, Codec: "avc1", Resolution: models.Resolution{Width: 1280, Height: 720}},
		{ID: "a1", Type: models.TrackAudio, Codec: "ac-3", Language: "en"},
		{ID: "a2", Type: models.TrackAudio, Codec: "mp4a", Language: "de"},
	}
}

func TestModelProgress(t *testing.T) {
	cfg := config.New()
	m := NewModel(make(chan engine.ProgressUpdate), testTracks(), "https://cdn.example/manifest.mpd", cfg)

	m.Update(progressMsg{TrackID: "v1", Stage: engine.StageLoaded, BytesLoaded: 700})
	m.Update(progressMsg{TrackID: "v1", Stage: engine.StageWritten, BytesWritten: 900, Completed: true})
	m.Update(progressMsg{TrackID: "a1", Stage: engine.StageFailed, Error: errors.New("no sample entries")})
	m.Update(progressMsg{TrackID: "unknown", Stage: engine.StageWritten, Completed: true})

	assert.Equal(t, stateRunning, m.state)
	assert.Equal(t, 2, m.finished)
	assert.Equal(t, 1, m.failed)
	assert.Equal(t, int64(700), m.loaded)
	assert.Equal(t, int64(900), m.written)

	view := m.View()
	assert.Contains(t, view, "2/3")
	assert.Contains(t, view, "no sample entries")

	_, cmd := m.Update(DoneMsg{})
	require.NotNil(t, cmd)
	assert.Equal(t, stateDone, m.state)
	assert.Contains(t, m.View(), "finished with 1 failures")
}

func TestModelError(t *testing.T) {
	m := NewModel(make(chan engine.ProgressUpdate), testTracks(), "x", config.New())
	m.Update(ErrorMsg{Err: errors.New("canceled")})
	m.Update(DoneMsg{})
	assert.Equal(t, stateError, m.state)
	assert.EqualError(t, m.Err(), "canceled")
}

func TestModelListenReturnsDoneOnClose(t *testing.T) {
	ch := make(chan engine.ProgressUpdate)
	close(ch)
	m := NewModel(ch, nil, "", config.New())
	assert.Equal(t, DoneMsg{}, m.listenProgress()())
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestPicker(t *testing.T) {
	tracks := testTracks()
	p := NewPicker(tracks)
	assert.Len(t, p.Result().Selected, 3)

	p.Update(key("n"))
	assert.Empty(t, p.Result().Selected)

	p.Update(key("a"))
	assert.Equal(t, []*models.Track{tracks[1], tracks[2]}, p.Result().Selected)

	p.Update(key("down"))
	p.Update(key(" "))
	assert.Equal(t, []*models.Track{tracks[2]}, p.Result().Selected)

	p.Update(key("v"))
	_, cmd := p.Update(key("enter"))
	require.NotNil(t, cmd)

	result := p.Result()
	assert.False(t, result.Canceled)
	assert.Equal(t, []*models.Track{tracks[0], tracks[2]}, result.Selected)
	assert.Contains(t, p.View(), "Selected: 2 of 3")

	p.Update(key("q"))
	assert.True(t, p.Result().Canceled)
}

func TestRenderSummary(t *testing.T) {
	assert.Contains(t, RenderSummary(nil), "No init segments processed")

	tracks := testTracks()
	out := RenderSummary([]engine.Result{
		{Track: tracks[0], OutputPath: "out/v1_init.mp4", InputSize: 700, OutputSize: 896, Applied: []string{config.ModeEncrypt}},
		{Track: tracks[2], OutputPath: "out/a2_init.mp4", InputSize: 600, OutputSize: 600},
		{Track: tracks[1], Report: &inspect.Report{Size: 512, Tracks: []inspect.Track{
			{ID: 2, Handler: "soun", Entries: []inspect.Entry{{Type: "ac-3"}}},
		}}},
	})

	assert.Contains(t, out, "encrypt")
	assert.Contains(t, out, "out/v1_init.mp4")
	assert.Contains(t, out, "copied")
	assert.Contains(t, out, "track 2 (soun): ac-3")
}
