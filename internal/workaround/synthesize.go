package workaround

import "github.com/mohaanymo/initfix/internal/mp4"

// createEncryptionMetadata builds a protected sample entry (encv or enca)
// from the clear entry source: a copy of source retyped to newType, with the
// canned sinf appended and its frma pointing back at the clear type.
// segment is not modified.
func createEncryptionMetadata(segment []byte, source mp4.Box, newType mp4.BoxType) []byte {
	sinf := cannedSinf()
	sourceBytes := segment[source.Start:source.End()]

	entry := make([]byte, source.Size+len(sinf))
	copy(entry, sourceBytes)
	be.PutUint32(entry[mp4.TypeOffset:], uint32(newType))

	copy(entry[source.Size:], sinf)
	be.PutUint32(entry[source.Size+cannedSinfFormatOffset:], be.Uint32(sourceBytes[mp4.TypeOffset:]))

	setBoxSize(entry, 0, uint64(len(entry)))
	return entry
}
