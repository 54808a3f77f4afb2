// Package workaround rewrites MP4 init segments to get around decoder and
// demuxer defects on specific platforms.
//
// FakeEncryption gives clear content the encryption signaling that some
// pipelines require before they accept any content on the encrypted path.
// FakeEC3 presents AC-3 audio as EC-3 for platforms that reject AC-3.
package workaround

import (
	"cmp"
	"context"
	"encoding/hex"
	"log/slog"
	"slices"

	"github.com/mohaanymo/initfix/internal/mp4"
	"github.com/mohaanymo/initfix/internal/platform"
)

// Rewriter applies the workarounds for one platform. It holds no mutable
// state and is safe for concurrent use as long as callers do not share
// buffers.
type Rewriter struct {
	platform platform.Platform
	logger   *slog.Logger
}

// New returns a Rewriter for p. A nil logger uses slog.Default.
func New(p platform.Platform, logger *slog.Logger) *Rewriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Rewriter{
		platform: p,
		logger:   logger.With("component", "workaround"),
	}
}

// Platform returns the platform the Rewriter was built for.
func (r *Rewriter) Platform() platform.Platform {
	return r.platform
}

// newAncestorParser returns a parser that descends through
// moov/trak/mdia/minf/stbl.
func newAncestorParser() *mp4.Parser {
	return mp4.NewParser().
		Box(mp4.TypeMoov, mp4.Children).
		Box(mp4.TypeTrak, mp4.Children).
		Box(mp4.TypeMdia, mp4.Children).
		Box(mp4.TypeMinf, mp4.Children).
		Box(mp4.TypeStbl, mp4.Children)
}

// FakeEncryption returns a new init segment in which every recognized clear
// sample entry has a protected twin (encv or enca) carrying a canned sinf.
// If the init segment already signals encryption it is returned unchanged.
//
// uri only identifies the content in errors and logs. The returned error
// matches ErrContentTransformationFailed when the segment cannot be parsed
// or holds nothing to disguise.
func (r *Rewriter) FakeEncryption(initSegment []byte, uri string) ([]byte, error) {
	var (
		encrypted bool
		stsdFound bool
		items     []workItem
	)

	parser := newAncestorParser().
		FullBox(mp4.TypeStsd, func(b *mp4.ParsedBox) error {
			stsdFound = true
			return mp4.SampleDescription(b)
		})
	for _, t := range encryptedEntryTypes {
		parser.Box(t, func(*mp4.ParsedBox) error {
			encrypted = true
			return nil
		})
	}
	for source, target := range protectedEntryTypes {
		parser.Box(source, func(b *mp4.ParsedBox) error {
			ancestors := b.Ancestors()
			if len(ancestors) == 0 || ancestors[len(ancestors)-1].Type != mp4.TypeStsd {
				return nil
			}
			items = append(items, workItem{box: b.Box, newType: target, ancestors: ancestors})
			return nil
		})
	}

	if err := parser.Parse(initSegment); err != nil {
		r.logFailure(initSegment, uri, "failed to parse init segment", err)
		return nil, transformationFailed(uri, "parse init segment", err)
	}

	if encrypted {
		r.logger.Debug("init segment already indicates encryption", "uri", uri)
		return initSegment, nil
	}

	if len(items) == 0 || !stsdFound {
		r.logFailure(initSegment, uri, "failed to find boxes needed to fake encryption", nil)
		return nil, transformationFailed(uri, "no sample entries to fake encryption for", nil)
	}

	// Highest offset first, so that an insertion never moves a box that is
	// still waiting to be processed.
	slices.SortStableFunc(items, func(a, b workItem) int {
		return cmp.Compare(b.box.Start, a.box.Start)
	})

	cut := r.platform.CutPoint()
	modified := initSegment
	for _, item := range items {
		r.logger.Debug("inserting protected sample entry",
			"uri", uri,
			"type", item.newType.String(),
			"source", item.box.Type.String(),
			"offset", item.box.Start,
			"cut", cut.String())

		var err error
		modified, err = insertEncryptionMetadata(modified, item, cut)
		if err != nil {
			r.logger.Error("modified init segment would be inconsistent", "uri", uri, "error", err)
			return nil, err
		}
	}

	if r.platform.DuplicateOutput() {
		doubled := make([]byte, len(modified)+len(initSegment))
		copy(doubled, modified)
		copy(doubled[len(modified):], initSegment)
		return doubled, nil
	}

	return modified, nil
}

// FakeEC3 rewrites AC-3 sample entries (ac-3/dac3) as EC-3 (ec-3/dec3) in
// place and returns initSegment. The length never changes.
func (r *Rewriter) FakeEC3(initSegment []byte) ([]byte, error) {
	var stsds []mp4.Box
	err := newAncestorParser().
		FullBox(mp4.TypeStsd, func(b *mp4.ParsedBox) error {
			stsds = append(stsds, b.Box)
			return nil
		}).
		Parse(initSegment)
	if err != nil {
		r.logFailure(initSegment, "", "failed to parse init segment", err)
		return nil, transformationFailed("", "parse init segment", err)
	}

	replaced := 0
	for _, stsd := range stsds {
		replaced += rewriteAudioTags(initSegment, stsd)
	}
	r.logger.Debug("rewrote AC-3 tags as EC-3", "stsd_boxes", len(stsds), "replaced", replaced)

	return initSegment, nil
}

func (r *Rewriter) logFailure(initSegment []byte, uri, msg string, err error) {
	attrs := []any{"uri", uri, "size", len(initSegment)}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	r.logger.Error(msg, attrs...)
	if r.logger.Enabled(context.Background(), slog.LevelDebug) {
		r.logger.Debug("failed init segment", "uri", uri, "hex", hex.EncodeToString(initSegment))
	}
}
