// Package mp4test builds small, byte-exact MP4 structures for tests.
package mp4test

import (
	"bytes"
	"encoding/binary"

	"github.com/Eyevinn/mp4ff/aac"
	mp4ff "github.com/Eyevinn/mp4ff/mp4"
)

var be = binary.BigEndian

// Box returns a box with a 32-bit size header wrapping the given payload
// parts.
func Box(typ string, payload ...[]byte) []byte {
	body := concat(payload)
	out := make([]byte, 8, 8+len(body))
	be.PutUint32(out, uint32(8+len(body)))
	copy(out[4:8], typ)
	return append(out, body...)
}

// LargeBox returns a box using the 64-bit largesize encoding.
func LargeBox(typ string, payload ...[]byte) []byte {
	body := concat(payload)
	out := make([]byte, 16, 16+len(body))
	be.PutUint32(out, 1)
	copy(out[4:8], typ)
	be.PutUint64(out[8:], uint64(16+len(body)))
	return append(out, body...)
}

// OpenBox returns a box whose size field is 0, extending to the end of its
// container.
func OpenBox(typ string, payload ...[]byte) []byte {
	b := Box(typ, payload...)
	be.PutUint32(b, 0)
	return b
}

// FullBox returns a box carrying version and flags ahead of the payload.
func FullBox(typ string, version byte, flags uint32, payload ...[]byte) []byte {
	vf := make([]byte, 4)
	be.PutUint32(vf, uint32(version)<<24|flags&0x00ffffff)
	return Box(typ, append([][]byte{vf}, payload...)...)
}

// Stsd returns a sample description box whose entry count matches the
// number of entries.
func Stsd(entries ...[]byte) []byte {
	count := make([]byte, 4)
	be.PutUint32(count, uint32(len(entries)))
	return FullBox("stsd", 0, 0, append([][]byte{count}, entries...)...)
}

// LargeStsd is Stsd with the 64-bit largesize header, which moves the
// entry count to offset 20.
func LargeStsd(entries ...[]byte) []byte {
	count := make([]byte, 4)
	be.PutUint32(count, uint32(len(entries)))
	return LargeBox("stsd", append([][]byte{make([]byte, 4), count}, entries...)...)
}

// AsLarge re-encodes a box built with a 32-bit size using the 64-bit
// largesize header.
func AsLarge(box []byte) []byte {
	return LargeBox(string(box[4:8]), box[8:])
}

// AudioEntry returns an audio sample entry (48 kHz stereo, 16 bit).
func AudioEntry(typ string, children ...[]byte) []byte {
	fixed := make([]byte, 28)
	be.PutUint16(fixed[6:], 1)  // data reference index
	be.PutUint16(fixed[16:], 2) // channel count
	be.PutUint16(fixed[18:], 16)
	be.PutUint32(fixed[24:], 48000<<16)
	return Box(typ, append([][]byte{fixed}, children...)...)
}

// VisualEntry returns a visual sample entry (1280x720).
func VisualEntry(typ string, children ...[]byte) []byte {
	fixed := make([]byte, 78)
	be.PutUint16(fixed[6:], 1)
	be.PutUint16(fixed[24:], 1280)
	be.PutUint16(fixed[26:], 720)
	be.PutUint32(fixed[28:], 0x00480000)
	be.PutUint32(fixed[32:], 0x00480000)
	be.PutUint16(fixed[40:], 1)
	be.PutUint16(fixed[74:], 0x0018)
	be.PutUint16(fixed[76:], 0xffff)
	return Box(typ, append([][]byte{fixed}, children...)...)
}

// Dac3 returns an AC-3 specific box.
func Dac3() []byte {
	return Box("dac3", []byte{0x10, 0x3d, 0xe0})
}

// Track wraps a sample description box in trak/mdia/minf/stbl.
func Track(stsd []byte) []byte {
	return Box("trak", Box("mdia", Box("minf", Box("stbl", stsd))))
}

// Ftyp returns a minimal file type box.
func Ftyp() []byte {
	return Box("ftyp", []byte("iso6"), []byte{0, 0, 0, 0}, []byte("iso6"), []byte("dash"))
}

// Init returns ftyp followed by a moov holding the given tracks.
func Init(tracks ...[]byte) []byte {
	return concat([][]byte{Ftyp(), Box("moov", tracks...)})
}

// Count returns the number of occurrences of the four-character code in
// buf, at any byte offset.
func Count(buf []byte, typ string) int {
	n := 0
	for i := 0; i+4 <= len(buf); i++ {
		if string(buf[i:i+4]) == typ {
			n++
		}
	}
	return n
}

func concat(parts [][]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// AACInit returns an init segment with a single AAC-LC track, encoded by
// mp4ff.
func AACInit() ([]byte, error) {
	init := mp4ff.CreateEmptyInit()
	init.AddEmptyTrack(48000, "audio", "und")
	if err := init.Moov.Trak.SetAACDescriptor(aac.AAClc, 48000); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := init.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
