package workaround

import (
	"fmt"

	"github.com/mohaanymo/initfix/internal/mp4"
	"github.com/mohaanymo/initfix/internal/platform"
)

// workItem is one clear sample entry scheduled for a protected twin.
type workItem struct {
	box     mp4.Box
	newType mp4.BoxType
	// ancestors runs from moov down to the enclosing stsd.
	ancestors []mp4.Box
}

func (w workItem) stsd() mp4.Box {
	return w.ancestors[len(w.ancestors)-1]
}

// insertEncryptionMetadata returns a copy of segment with a protected twin of
// item.box spliced in next to it. Every ancestor grows by the inserted length
// and the stsd entry count grows by one.
//
// Offsets in item must be valid for segment: items have to be applied in
// descending offset order so that earlier insertions never move them.
func insertEncryptionMetadata(segment []byte, item workItem, cut platform.CutPoint) ([]byte, error) {
	if len(item.ancestors) == 0 || item.stsd().Type != mp4.TypeStsd {
		return nil, internalFault(fmt.Sprintf("%s at %d is not inside an stsd box", item.box.Type, item.box.Start))
	}

	cutPoint := item.box.End()
	if cut == platform.CutBeforeSource {
		cutPoint = item.box.Start
	}

	for _, a := range item.ancestors {
		if a.Start >= cutPoint || a.End() < item.box.End() {
			return nil, internalFault(fmt.Sprintf(
				"ancestor %s at %d does not enclose cut point %d", a.Type, a.Start, cutPoint))
		}
	}

	metadata := createEncryptionMetadata(segment, item.box, item.newType)

	out := make([]byte, len(segment)+len(metadata))
	copy(out, segment[:cutPoint])
	copy(out[cutPoint:], metadata)
	copy(out[cutPoint+len(metadata):], segment[cutPoint:])

	// Ancestors start before the cut point, so their offsets are unchanged
	// in out.
	for _, a := range item.ancestors {
		growBoxSize(out, a.Start, len(metadata))
	}

	stsd := item.stsd()
	countAt := stsd.Start + mp4.HeaderSize(stsd)
	be.PutUint32(out[countAt:], be.Uint32(out[countAt:])+1)

	return out, nil
}
