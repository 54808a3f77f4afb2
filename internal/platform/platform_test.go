package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicies(t *testing.T) {
	tests := []struct {
		name       string
		cut        CutPoint
		duplicate  bool
		encryption bool
		ec3        bool
	}{
		{"default", CutAfterSource, false, false, false},
		{"edge", CutBeforeSource, false, true, false},
		{"edge-windows", CutBeforeSource, true, true, false},
		{"xbox-one", CutBeforeSource, false, true, false},
		{"tizen", CutAfterSource, false, true, false},
		{"tizen3", CutAfterSource, false, true, true},
		{"webos", CutAfterSource, false, true, false},
		{"chromecast", CutAfterSource, false, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Lookup(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.cut, p.CutPoint())
			assert.Equal(t, tt.duplicate, p.DuplicateOutput())
			assert.Equal(t, tt.encryption, p.RequiresEncryptionInfo())
			assert.Equal(t, tt.ec3, p.RequiresEC3())
		})
	}
}

func TestLookup(t *testing.T) {
	p, err := Lookup("  Edge-Windows ")
	require.NoError(t, err)
	assert.Equal(t, Platform{Edge: true, Windows: true}, p)

	p, err = Lookup("")
	require.NoError(t, err)
	assert.Equal(t, Platform{}, p)

	_, err = Lookup("amiga")
	assert.ErrorIs(t, err, ErrUnknown)
}

func TestNamesSorted(t *testing.T) {
	names := Names()
	assert.IsIncreasing(t, names)
	assert.Contains(t, names, "xbox-one")
}

func TestString(t *testing.T) {
	assert.Equal(t, "default", Platform{}.String())
	assert.Equal(t, "edge+windows", Platform{Edge: true, Windows: true}.String())
	assert.Equal(t, "before", CutBeforeSource.String())
}
