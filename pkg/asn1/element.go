package asn1

import (
	"fmt"

	"github.com/tlssak/scanner/pkg/stream"
	"github.com/tlssak/scanner/tlserr"
)

// MaxIndefiniteBuffer bounds how much content an indefinite-length
// constructed element may accumulate before parsing gives up. Certificates
// and TLS handshake messages are DER (always definite-length); this limit
// only guards the tolerant BER path against a pathological or hostile peer
// that never sends an EOC.
const MaxIndefiniteBuffer = 16 << 20 // 16 MiB

// eocTag is the reserved universal tag that, paired with a zero length,
// marks the end of an indefinite-length element's content.
const eocTag = 0x00

// Element is a decoded TLV: its identifier and fully materialized content
// octets. Content never includes the element's own header, and for
// indefinite-length input it never includes the terminating EOC.
type Element struct {
	Identifier Identifier
	Content    []byte
}

// ReadElement decodes one TLV from s. Indefinite-length constructed
// content is resolved by recursively decoding nested elements until an EOC
// is found; the nested elements' raw (header+content) bytes, exactly as
// read, make up this element's Content. Re-encoding with Encode gives this
// element a definite length; nested elements that were themselves
// indefinite-length keep that form inside Content.
func ReadElement(s stream.Stream) (*Element, error) {
	id, err := readIdentifier(s)
	if err != nil {
		return nil, fmt.Errorf("asn1: reading identifier: %w", err)
	}

	length, indefinite, err := readLength(s)
	if err != nil {
		return nil, fmt.Errorf("asn1: reading length of %s: %w", id, err)
	}

	if !indefinite {
		content, err := s.ReadN(length)
		if err != nil && len(content) != length {
			return nil, fmt.Errorf("asn1: reading %d-byte content of %s: %w", length, id, err)
		}
		if len(content) != length {
			return nil, fmt.Errorf("asn1: truncated content of %s: wanted %d, got %d", id, length, len(content))
		}
		// ReadN may return a slice aliasing the caller's buffer; own a
		// private copy so later mutation of the source can't corrupt it.
		owned := make([]byte, len(content))
		copy(owned, content)
		return &Element{Identifier: id, Content: owned}, nil
	}

	if !id.Constructed {
		return nil, fmt.Errorf("asn1: primitive %s may not have indefinite length", id)
	}
	content, err := readIndefiniteContent(s)
	if err != nil {
		return nil, fmt.Errorf("asn1: reading indefinite content of %s: %w", id, err)
	}
	return &Element{Identifier: id, Content: content}, nil
}

// readIndefiniteContent accumulates the raw bytes of successive nested
// elements until it finds an EOC (identifier 0x00, length 0x00) at this
// nesting level.
func readIndefiniteContent(s stream.Stream) ([]byte, error) {
	m := stream.NewMarkable(s)
	var content []byte

	for {
		if err := m.Mark(); err != nil {
			return nil, err
		}
		b1, err1 := m.ReadByte()
		b2, err2 := m.ReadByte()
		if err1 == nil && err2 == nil && b1 == eocTag && b2 == 0x00 {
			if err := m.Commit(); err != nil {
				return nil, err
			}
			return content, nil
		}
		if err := m.Restore(); err != nil {
			return nil, err
		}

		rec := stream.NewRecording(m)
		if _, err := ReadElement(rec); err != nil {
			return nil, err
		}
		content = append(content, rec.Log()...)
		if len(content) > MaxIndefiniteBuffer {
			return nil, tlserr.NewParseError("asn1 indefinite-length content", -1,
				fmt.Errorf("exceeds %d bytes", MaxIndefiniteBuffer))
		}
	}
}

// Encode renders e as a canonical (definite-length) DER TLV.
func Encode(e *Element) []byte {
	buf := writeIdentifier(nil, e.Identifier)
	buf = writeLength(buf, len(e.Content))
	return append(buf, e.Content...)
}
