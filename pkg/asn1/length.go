package asn1

import (
	"fmt"

	"github.com/tlssak/scanner/pkg/stream"
)

// maxLengthOctets bounds the long-form length field so a hostile or
// corrupt 0xFF... length prefix can't make us allocate an absurd amount of
// memory before we've even read a single content byte.
const maxLengthOctets = 8

// readLength decodes a BER length field. indefinite is true for the 0x80
// form (constructed-only, content terminated by an EOC).
func readLength(s stream.Stream) (length int, indefinite bool, err error) {
	fb, err := s.ReadByte()
	if err != nil {
		return 0, false, err
	}

	if fb == 0x80 {
		return 0, true, nil
	}
	if fb&0x80 == 0 {
		return int(fb), false, nil
	}

	n := int(fb & 0x7F)
	if n == 0 || n > maxLengthOctets {
		return 0, false, fmt.Errorf("asn1: unsupported long-form length of %d octets", n)
	}
	lb, err := s.ReadN(n)
	if err != nil || len(lb) != n {
		return 0, false, fmt.Errorf("asn1: truncated long-form length: %w", errUnexpectedEOF)
	}

	for _, b := range lb {
		length = (length << 8) | int(b)
		if length < 0 {
			return 0, false, fmt.Errorf("asn1: length overflow")
		}
	}
	return length, false, nil
}

// writeLength appends the canonical (shortest, non-indefinite) DER length
// encoding of n to buf.
func writeLength(buf []byte, n int) []byte {
	if n < 0x80 {
		return append(buf, byte(n))
	}
	var octets []byte
	v := n
	for v > 0 {
		octets = append([]byte{byte(v & 0xFF)}, octets...)
		v >>= 8
	}
	buf = append(buf, byte(0x80|len(octets)))
	return append(buf, octets...)
}
