package workaround

import "github.com/mohaanymo/initfix/internal/mp4"

// audioTagAliases maps AC-3 tags to their EC-3 equivalents. Any EC-3
// decoder can decode AC-3.
var audioTagAliases = map[mp4.BoxType]mp4.BoxType{
	mp4.TypeAc3:  mp4.TypeEc3,
	mp4.TypeDac3: mp4.TypeDec3,
}

// rewriteAudioTags swaps AC-3 tags for EC-3 tags inside the stsd box in
// place and returns the number of replacements.
//
// This is a raw scan over every 4-byte window, not a box walk. A codec
// payload that happens to contain "ac-3" or "dac3" is rewritten too.
func rewriteAudioTags(segment []byte, stsd mp4.Box) int {
	n := 0
	for i := stsd.Start; i+4 <= stsd.End(); i++ {
		if alias, ok := audioTagAliases[mp4.BoxType(be.Uint32(segment[i:]))]; ok {
			be.PutUint32(segment[i:], uint32(alias))
			n++
		}
	}
	return n
}
