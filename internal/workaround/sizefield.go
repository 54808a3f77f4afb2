package workaround

import (
	"encoding/binary"

	"github.com/mohaanymo/initfix/internal/mp4"
)

var be = binary.BigEndian

// Values of the 32-bit size field with special meaning.
const (
	sizeToEnd   = 0 // box extends to the end of its container
	sizeLarge64 = 1 // real size is in the 64-bit largesize field
)

// growBoxSize adds delta to the size of the box starting at buf[start],
// honoring whichever size encoding the box uses. Open-ended boxes are left
// alone. Plain 32-bit sizes are assumed not to overflow.
func growBoxSize(buf []byte, start, delta int) {
	switch field := be.Uint32(buf[start+mp4.SizeOffset:]); field {
	case sizeToEnd:
	case sizeLarge64:
		putLargeSize(buf, start, be.Uint64(buf[start+mp4.Size64Offset:])+uint64(delta))
	default:
		be.PutUint32(buf[start+mp4.SizeOffset:], field+uint32(delta))
	}
}

// setBoxSize overwrites the size of the box starting at buf[start] with
// size, again leaving open-ended boxes alone.
func setBoxSize(buf []byte, start int, size uint64) {
	switch be.Uint32(buf[start+mp4.SizeOffset:]) {
	case sizeToEnd:
	case sizeLarge64:
		putLargeSize(buf, start, size)
	default:
		be.PutUint32(buf[start+mp4.SizeOffset:], uint32(size))
	}
}

// putLargeSize writes the 64-bit largesize as two 32-bit words, high word
// first.
func putLargeSize(buf []byte, start int, size uint64) {
	be.PutUint32(buf[start+mp4.Size64Offset:], uint32(size>>32))
	be.PutUint32(buf[start+mp4.Size64Offset+4:], uint32(size))
}
