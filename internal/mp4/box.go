// Package mp4 walks ISO Base Media File Format (MP4) box trees in place.
//
// It does not decode box payloads. Callers register a handler per box type
// and receive position snapshots (Box) that are valid only against the
// buffer they were parsed from.
package mp4

import (
	"encoding/binary"
	"errors"
)

var be = binary.BigEndian

// Header field offsets relative to a box start.
const (
	SizeOffset   = 0
	TypeOffset   = 4
	Size64Offset = 8
)

// Parse errors.
var (
	ErrTruncated   = errors.New("mp4: truncated box")
	ErrInvalidSize = errors.New("mp4: invalid box size")
)

// BoxType is a four-character code stored as a big-endian 32-bit integer.
type BoxType uint32

// TypeFromString converts a four-character code to a BoxType.
// Shorter strings are zero padded, longer ones truncated.
func TypeFromString(s string) BoxType {
	var b [4]byte
	copy(b[:], s)
	return BoxType(be.Uint32(b[:]))
}

func (t BoxType) String() string {
	var b [4]byte
	be.PutUint32(b[:], uint32(t))
	return string(b[:])
}

// Known box types.
var (
	TypeMoov = TypeFromString("moov")
	TypeTrak = TypeFromString("trak")
	TypeMdia = TypeFromString("mdia")
	TypeMinf = TypeFromString("minf")
	TypeStbl = TypeFromString("stbl")
	TypeStsd = TypeFromString("stsd")
	TypeSinf = TypeFromString("sinf")
	TypeFrma = TypeFromString("frma")
	TypeSchm = TypeFromString("schm")
	TypeSchi = TypeFromString("schi")
	TypeTenc = TypeFromString("tenc")

	TypeEncv = TypeFromString("encv")
	TypeEnca = TypeFromString("enca")

	TypeAvc1 = TypeFromString("avc1")
	TypeAvc3 = TypeFromString("avc3")
	TypeHev1 = TypeFromString("hev1")
	TypeHvc1 = TypeFromString("hvc1")
	TypeDvav = TypeFromString("dvav")
	TypeDva1 = TypeFromString("dva1")
	TypeDvh1 = TypeFromString("dvh1")
	TypeDvhe = TypeFromString("dvhe")
	TypeDvc1 = TypeFromString("dvc1")
	TypeDvi1 = TypeFromString("dvi1")

	TypeMp4a = TypeFromString("mp4a")
	TypeAc3  = TypeFromString("ac-3")
	TypeEc3  = TypeFromString("ec-3")
	TypeAc4  = TypeFromString("ac-4")
	TypeDac3 = TypeFromString("dac3")
	TypeDec3 = TypeFromString("dec3")
)

// Box is a snapshot of one box occurrence inside a specific buffer.
// Start and Size are byte offsets into that buffer; any rewrite at or
// before Start invalidates the snapshot.
type Box struct {
	Type         BoxType
	Start        int
	Size         int
	HeaderSize   int
	Version      uint8
	Flags        uint32
	Has64BitSize bool
}

// End returns the offset one past the last byte of the box.
func (b Box) End() int {
	return b.Start + b.Size
}

// HeaderSize returns the number of bytes preceding the box payload,
// including the largesize field and the full box version and flags.
func HeaderSize(b Box) int {
	return b.HeaderSize
}
