package mp4

import (
	"fmt"
	"slices"
)

// Handler is called for every box of a registered type, in document order.
// A handler that wants the parser to visit nested boxes calls Children or
// SampleDescription before returning.
type Handler func(box *ParsedBox) error

type registration struct {
	handler Handler
	fullBox bool
}

// Parser dispatches boxes to per-type handlers. Unregistered boxes are
// skipped along with everything nested inside them.
type Parser struct {
	handlers map[BoxType]registration
}

// NewParser returns a parser with no handlers.
func NewParser() *Parser {
	return &Parser{handlers: make(map[BoxType]registration)}
}

// Box registers a handler for a plain box.
func (p *Parser) Box(t BoxType, h Handler) *Parser {
	p.handlers[t] = registration{handler: h}
	return p
}

// FullBox registers a handler for a box whose header carries a version
// byte and 24 bits of flags.
func (p *Parser) FullBox(t BoxType, h Handler) *Parser {
	p.handlers[t] = registration{handler: h, fullBox: true}
	return p
}

// ParsedBox is the value handed to handlers.
type ParsedBox struct {
	Box

	parser    *Parser
	buf       []byte
	ancestors []Box
}

// Ancestors returns the boxes enclosing this one, outermost first.
func (b *ParsedBox) Ancestors() []Box {
	return slices.Clone(b.ancestors)
}

// Payload returns the bytes following the header. The slice aliases the
// parsed buffer.
func (b *ParsedBox) Payload() []byte {
	return b.buf[b.Start+b.HeaderSize : b.End()]
}

func (b *ParsedBox) chain() []Box {
	chain := make([]Box, 0, len(b.ancestors)+1)
	chain = append(chain, b.ancestors...)
	return append(chain, b.Box)
}

// Parse walks the top-level boxes of buf.
func (p *Parser) Parse(buf []byte) error {
	return p.parseRange(buf, 0, len(buf), nil, -1)
}

// Children parses the boxes nested directly inside box.
func Children(box *ParsedBox) error {
	return box.parser.parseRange(box.buf, box.Start+box.HeaderSize, box.End(), box.chain(), -1)
}

// SampleDescription parses the sample entries of an stsd box: a 32-bit
// entry count followed by that many boxes.
func SampleDescription(box *ParsedBox) error {
	ptr := box.Start + box.HeaderSize
	if box.End()-ptr < 4 {
		return fmt.Errorf("%w: %s at %d has no entry count", ErrTruncated, box.Type, box.Start)
	}
	count := be.Uint32(box.buf[ptr:])
	return box.parser.parseRange(box.buf, ptr+4, box.End(), box.chain(), int(count))
}

// parseRange visits the boxes in buf[start:end]. A non-negative limit caps
// the number of boxes read.
func (p *Parser) parseRange(buf []byte, start, end int, ancestors []Box, limit int) error {
	ptr := start
	for n := 0; ptr < end && (limit < 0 || n < limit); n++ {
		box, err := readBox(buf, ptr, end)
		if err != nil {
			return err
		}

		if reg, ok := p.handlers[box.Type]; ok {
			if reg.fullBox {
				if box.Size-box.HeaderSize < 4 {
					return fmt.Errorf("%w: %s at %d has no version and flags", ErrTruncated, box.Type, box.Start)
				}
				vf := be.Uint32(buf[ptr+box.HeaderSize:])
				box.Version = uint8(vf >> 24)
				box.Flags = vf & 0x00ffffff
				box.HeaderSize += 4
			}

			pb := &ParsedBox{Box: box, parser: p, buf: buf, ancestors: ancestors}
			if err := reg.handler(pb); err != nil {
				return err
			}
		}

		ptr += box.Size
	}
	return nil
}

// readBox reads the plain box header at buf[start:], bounded by end.
func readBox(buf []byte, start, end int) (Box, error) {
	if end-start < 8 {
		return Box{}, fmt.Errorf("%w: need 8 header bytes at %d, have %d", ErrTruncated, start, end-start)
	}

	box := Box{
		Type:       BoxType(be.Uint32(buf[start+TypeOffset:])),
		Start:      start,
		HeaderSize: 8,
	}

	available := uint64(end - start)
	size := uint64(be.Uint32(buf[start+SizeOffset:]))
	switch size {
	case 0:
		size = available
	case 1:
		if available < 16 {
			return Box{}, fmt.Errorf("%w: %s at %d needs 16 bytes for extended size", ErrTruncated, box.Type, start)
		}
		size = be.Uint64(buf[start+Size64Offset:])
		box.HeaderSize = 16
		box.Has64BitSize = true
	}

	if size < uint64(box.HeaderSize) {
		return Box{}, fmt.Errorf("%w: %s at %d declares %d bytes", ErrInvalidSize, box.Type, start, size)
	}
	if size > available {
		return Box{}, fmt.Errorf("%w: %s at %d needs %d bytes, have %d", ErrTruncated, box.Type, start, size, available)
	}

	box.Size = int(size)
	return box, nil
}
