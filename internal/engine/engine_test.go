package engine

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohaanymo/initfix/internal/config"
	"github.com/mohaanymo/initfix/internal/inspect"
	"github.com/mohaanymo/initfix/internal/logger"
	"github.com/mohaanymo/initfix/internal/models"
	"github.com/mohaanymo/initfix/internal/mp4/mp4test"
	"github.com/mohaanymo/initfix/internal/workaround"
)

func newEngine(t *testing.T, modify func(c *config.Config)) *Engine {
	t.Helper()
	cfg := config.New()
	cfg.OutputDir = t.TempDir()
	cfg.RetryDelay = time.Millisecond
	modify(cfg)
	require.NoError(t, cfg.Validate())

	e, err := New(cfg, logger.Discard())
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range e.Progress() {
		}
	}()
	t.Cleanup(func() {
		e.Close()
		<-done
	})
	return e
}

func writeInput(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func ac3Init() []byte {
	return mp4test.Init(mp4test.Track(mp4test.Stsd(mp4test.AudioEntry("ac-3", mp4test.Dac3()))))
}

func TestRunFilesEncrypt(t *testing.T) {
	aac, err := mp4test.AACInit()
	require.NoError(t, err)
	in := writeInput(t, "audio.mp4", aac)

	e := newEngine(t, func(c *config.Config) {
		c.Inputs = []string{in}
		c.Mode = config.ModeEncrypt
		c.Verify = true
	})

	tracks, err := e.Plan(t.Context())
	require.NoError(t, err)
	require.Len(t, tracks, 1)
	assert.Equal(t, "audio", tracks[0].ID)

	require.NoError(t, e.Run(t.Context(), tracks))

	results := e.Results()
	require.Len(t, results, 1)
	assert.Equal(t, []string{config.ModeEncrypt}, results[0].Applied)
	require.NotNil(t, results[0].Report)
	assert.True(t, results[0].Report.Protected())

	out, err := os.ReadFile(filepath.Join(e.cfg.OutputDir, "audio_init.mp4"))
	require.NoError(t, err)
	assert.Equal(t, results[0].OutputSize, len(out))

	report, err := inspect.Init(out)
	require.NoError(t, err)
	assert.Equal(t, []string{"mp4a", "enca"}, report.EntryTypes())

	completed, total := e.Stats()
	assert.Equal(t, int64(1), completed)
	assert.Equal(t, int64(len(aac)), total)
}

func TestRunAutoTizen3(t *testing.T) {
	in := writeInput(t, "surround.mp4", ac3Init())
	out := filepath.Join(t.TempDir(), "fixed", "surround.mp4")

	e := newEngine(t, func(c *config.Config) {
		c.Inputs = []string{in}
		c.Output = out
		c.PlatformName = "tizen3"
	})

	tracks, err := e.Plan(t.Context())
	require.NoError(t, err)
	require.NoError(t, e.Run(t.Context(), tracks))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Zero(t, mp4test.Count(data, "ac-3"))
	assert.Equal(t, 2, mp4test.Count(data, "ec-3"), "clear entry type and the frma of its twin")
	assert.Equal(t, 1, mp4test.Count(data, "enca"))
	assert.Equal(t, []string{config.ModeEC3, config.ModeEncrypt}, e.Results()[0].Applied)
}

func TestRunAutoDefaultPlatformCopies(t *testing.T) {
	in := writeInput(t, "a.mp4", ac3Init())
	e := newEngine(t, func(c *config.Config) {
		c.Inputs = []string{in}
	})

	tracks, err := e.Plan(t.Context())
	require.NoError(t, err)
	require.NoError(t, e.Run(t.Context(), tracks))

	data, err := os.ReadFile(filepath.Join(e.cfg.OutputDir, "a_init.mp4"))
	require.NoError(t, err)
	assert.Equal(t, ac3Init(), data)
	assert.Empty(t, e.Results()[0].Applied)
}

func TestRunVerifyDuplicateOutput(t *testing.T) {
	in := writeInput(t, "v.mp4", mp4test.Init(mp4test.Track(mp4test.Stsd(mp4test.VisualEntry("avc1")))))
	e := newEngine(t, func(c *config.Config) {
		c.Inputs = []string{in}
		c.Mode = config.ModeEncrypt
		c.PlatformName = "edge-windows"
		c.Verify = true
	})

	tracks, err := e.Plan(t.Context())
	require.NoError(t, err)
	require.NoError(t, e.Run(t.Context(), tracks))

	result := e.Results()[0]
	assert.Equal(t, []string{"encv", "avc1"}, result.Report.EntryTypes())
	assert.Greater(t, result.OutputSize, 2*result.InputSize)
}

func TestRunVerifyWithoutSampleTables(t *testing.T) {
	in := writeInput(t, "a.mp4", mp4test.Init(mp4test.Track(mp4test.Stsd(mp4test.AudioEntry("mp4a")))))
	e := newEngine(t, func(c *config.Config) {
		c.Inputs = []string{in}
		c.Mode = config.ModeEncrypt
		c.Verify = true
	})

	tracks, err := e.Plan(t.Context())
	require.NoError(t, err)
	require.NotPanics(t, func() { err = e.Run(t.Context(), tracks) })
	require.NoError(t, err)
	assert.Equal(t, []string{"mp4a", "enca"}, e.Results()[0].Report.EntryTypes())
}

func TestRunInspectEmptyMoov(t *testing.T) {
	in := writeInput(t, "empty.mp4", mp4test.Init())
	e := newEngine(t, func(c *config.Config) {
		c.Inputs = []string{in}
		c.Mode = config.ModeInspect
	})

	tracks, err := e.Plan(t.Context())
	require.NoError(t, err)
	require.NotPanics(t, func() { err = e.Run(t.Context(), tracks) })
	assert.ErrorIs(t, err, inspect.ErrNoTracks)
}

func TestRunReportsFailures(t *testing.T) {
	good := writeInput(t, "good.mp4", ac3Init())
	bad := writeInput(t, "bad.mp4", mp4test.Init(mp4test.Track(mp4test.Stsd(mp4test.Box("wvtt")))))

	e := newEngine(t, func(c *config.Config) {
		c.Inputs = []string{good, bad, filepath.Join(t.TempDir(), "missing.mp4")}
		c.Mode = config.ModeEncrypt
		c.Threads = 2
	})

	tracks, err := e.Plan(t.Context())
	require.NoError(t, err)

	err = e.Run(t.Context(), tracks)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2/3 init segments failed")

	_, statErr := os.Stat(filepath.Join(e.cfg.OutputDir, "good_init.mp4"))
	assert.NoError(t, statErr, "other jobs still complete")
	assert.Len(t, e.Results(), 1)
}

func TestRunTransformationErrorIsTyped(t *testing.T) {
	bad := writeInput(t, "bad.mp4", mp4test.Init(mp4test.Track(mp4test.Stsd(mp4test.Box("wvtt")))))
	e := newEngine(t, func(c *config.Config) {
		c.Inputs = []string{bad}
		c.Mode = config.ModeEncrypt
	})

	tracks, err := e.Plan(t.Context())
	require.NoError(t, err)

	err = e.Run(t.Context(), tracks)
	assert.ErrorIs(t, err, workaround.ErrContentTransformationFailed)
}

func TestRunInspectWritesNothing(t *testing.T) {
	in := writeInput(t, "a.mp4", ac3Init())
	e := newEngine(t, func(c *config.Config) {
		c.Inputs = []string{in}
		c.Mode = config.ModeInspect
	})

	tracks, err := e.Plan(t.Context())
	require.NoError(t, err)
	require.NoError(t, e.Run(t.Context(), tracks))

	entries, err := os.ReadDir(e.cfg.OutputDir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	results := e.Results()
	require.Len(t, results, 1)
	assert.Equal(t, []string{"ac-3"}, results[0].Report.EntryTypes())
}

func TestOutputPathsAreDistinct(t *testing.T) {
	e := newEngine(t, func(c *config.Config) {
		c.Inputs = []string{"x/init.mp4", "y/init.mp4"}
	})
	tracks, err := e.Plan(t.Context())
	require.NoError(t, err)

	paths := e.outputPaths(append(tracks, &models.Track{ID: "aud/en?x"}))
	assert.Equal(t, []string{
		filepath.Join(e.cfg.OutputDir, "init_init.mp4"),
		filepath.Join(e.cfg.OutputDir, "init_2_init.mp4"),
		filepath.Join(e.cfg.OutputDir, "aud_en_x_init.mp4"),
	}, paths)
}

const testMPD = `<?xml version="1.0"?>
<MPD xmlns="urn:mpeg:dash:schema:mpd:2011">
  <Period>
    <AdaptationSet mimeType="audio/mp4">
      <SegmentTemplate initialization="init-$RepresentationID$.mp4" media="$RepresentationID$-$Number$.m4s"/>
      <Representation id="ac3" bandwidth="384000" codecs="ac-3"/>
    </AdaptationSet>
    <AdaptationSet mimeType="video/mp4">
      <Representation id="hi" bandwidth="5000000" width="1920" height="1080">
        <SegmentList><Initialization sourceURL="video/init.mp4"/></SegmentList>
      </Representation>
      <Representation id="lo" bandwidth="1000000" width="640" height="360">
        <SegmentList><Initialization sourceURL="video/init.mp4"/></SegmentList>
      </Representation>
    </AdaptationSet>
  </Period>
</MPD>`

func newOrigin(t *testing.T, busyFirst bool) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	video := mp4test.Init(mp4test.Track(mp4test.Stsd(mp4test.VisualEntry("hvc1"))))

	mux := http.NewServeMux()
	mux.HandleFunc("/vod/manifest.mpd", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testMPD))
	})
	mux.HandleFunc("/vod/init-ac3.mp4", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "session=1", r.Header.Get("Cookie"))
		if hits.Add(1) == 1 && busyFirst {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Write(ac3Init())
	})
	mux.HandleFunc("/vod/video/init.mp4", func(w http.ResponseWriter, r *http.Request) {
		w.Write(video)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestPlanAndRunManifest(t *testing.T) {
	srv, hits := newOrigin(t, true)

	e := newEngine(t, func(c *config.Config) {
		c.URL = srv.URL + "/vod/manifest.mpd"
		c.Mode = config.ModeEncrypt
		c.Cookies = "session=1"
		c.RetryAttempts = 2
	})

	tracks, err := e.Plan(t.Context())
	require.NoError(t, err)
	require.Len(t, tracks, 2, "the shared video init segment is planned once")
	assert.Equal(t, models.ManifestDASH, e.Manifest().Type)

	require.NoError(t, e.Run(t.Context(), tracks))
	assert.Equal(t, int32(2), hits.Load(), "503 is retried")

	for _, name := range []string{"ac3_init.mp4", "hi_init.mp4"} {
		data, err := os.ReadFile(filepath.Join(e.cfg.OutputDir, name))
		require.NoError(t, err, name)
		report, err := inspect.Init(data)
		require.NoError(t, err, name)
		assert.True(t, report.Protected(), name)
	}
}

func TestPlanTrackFilter(t *testing.T) {
	srv, _ := newOrigin(t, false)

	e := newEngine(t, func(c *config.Config) {
		c.URL = srv.URL + "/vod/manifest.mpd"
		c.Tracks = config.TracksAudio
	})

	tracks, err := e.Plan(t.Context())
	require.NoError(t, err)
	require.Len(t, tracks, 1)
	assert.Equal(t, "ac3", tracks[0].ID)
}

func TestRunFetchNotRetriedOnClientError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)

	e := newEngine(t, func(c *config.Config) {
		c.URL = srv.URL + "/x.mpd"
		c.RetryAttempts = 3
	})
	tracks := []*models.Track{{ID: "v", InitSegment: &models.Segment{URL: srv.URL + "/init.mp4"}}}

	err := e.Run(t.Context(), tracks)
	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

type failingRewriter struct{}

func (failingRewriter) FakeEncryption([]byte, string) ([]byte, error) {
	return nil, errors.New("boom")
}

func (failingRewriter) FakeEC3(b []byte) ([]byte, error) { return b, nil }

func TestSetRewriter(t *testing.T) {
	in := writeInput(t, "a.mp4", ac3Init())
	e := newEngine(t, func(c *config.Config) {
		c.Inputs = []string{in}
		c.Mode = config.ModeEncrypt
	})
	e.SetRewriter(failingRewriter{})

	tracks, err := e.Plan(t.Context())
	require.NoError(t, err)
	assert.ErrorContains(t, e.Run(t.Context(), tracks), "boom")
}
