// Package platform selects behavioral variants of the init segment
// workarounds from a set of platform capability predicates.
package platform

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknown is returned by Lookup for names without a preset.
var ErrUnknown = errors.New("unknown platform")

// Platform holds the capability predicates the workarounds depend on.
// The zero value is a generic platform with no quirks.
type Platform struct {
	Edge       bool `yaml:"edge"`
	Windows    bool `yaml:"windows"`
	XboxOne    bool `yaml:"xbox_one"`
	Tizen      bool `yaml:"tizen"`
	Tizen3     bool `yaml:"tizen3"`
	WebOS      bool `yaml:"webos"`
	Chromecast bool `yaml:"chromecast"`
}

// CutPoint tells where a synthesized sample entry is inserted relative to
// the entry it was derived from.
type CutPoint int

const (
	CutAfterSource CutPoint = iota
	CutBeforeSource
)

func (c CutPoint) String() string {
	switch c {
	case CutAfterSource:
		return "after"
	case CutBeforeSource:
		return "before"
	default:
		return "unknown"
	}
}

// CutPoint returns the insertion convention. Xbox One firmware and Edge
// only accept the protected entry ahead of the clear one.
func (p Platform) CutPoint() CutPoint {
	if p.XboxOne || p.Edge {
		return CutBeforeSource
	}
	return CutAfterSource
}

// DuplicateOutput reports whether the unmodified init segment has to be
// appended after the patched one. Edge on Windows otherwise fails appends
// with "sample encryption info is not available".
func (p Platform) DuplicateOutput() bool {
	return p.Edge && p.Windows && !p.XboxOne
}

// RequiresEncryptionInfo reports whether clear content needs encryption
// signaling in every init segment to be playable alongside encrypted
// content.
func (p Platform) RequiresEncryptionInfo() bool {
	return p.Tizen || p.WebOS || p.XboxOne || p.Edge || p.Chromecast
}

// RequiresEC3 reports whether AC-3 entries must be presented as EC-3.
func (p Platform) RequiresEC3() bool {
	return p.Tizen3
}

func (p Platform) String() string {
	var flags []string
	add := func(on bool, name string) {
		if on {
			flags = append(flags, name)
		}
	}
	add(p.Edge, "edge")
	add(p.Windows, "windows")
	add(p.XboxOne, "xbox-one")
	add(p.Tizen, "tizen")
	add(p.Tizen3, "tizen3")
	add(p.WebOS, "webos")
	add(p.Chromecast, "chromecast")
	if len(flags) == 0 {
		return "default"
	}
	return strings.Join(flags, "+")
}

var presets = map[string]Platform{
	"default":      {},
	"edge":         {Edge: true},
	"edge-windows": {Edge: true, Windows: true},
	"xbox-one":     {Edge: true, Windows: true, XboxOne: true},
	"tizen":        {Tizen: true},
	"tizen3":       {Tizen: true, Tizen3: true},
	"webos":        {WebOS: true},
	"chromecast":   {Chromecast: true},
}

// Lookup returns the preset registered under name. Matching ignores case
// and surrounding whitespace; an empty name selects "default".
func Lookup(name string) (Platform, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = "default"
	}
	p, ok := presets[key]
	if !ok {
		return Platform{}, fmt.Errorf("%w: %q", ErrUnknown, name)
	}
	return p, nil
}

// Names returns the preset names in sorted order.
func Names() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
