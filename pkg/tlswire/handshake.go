package tlswire

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/tlssak/scanner/tlserr"
)

// ClientHello is a fixed-field layout: version, a 4-byte timestamp
// followed by 28 random bytes (the classic SSL/TLS gmt_unix_time +
// random convention), a session id, the candidate cipher suites and
// compression methods, and an optional extension block.
type ClientHello struct {
	Version            uint16
	Timestamp          uint32
	Random28           [28]byte
	SessionID          []byte
	CipherSuites       []uint16
	CompressionMethods []uint8
	Extensions         []Extension
}

// Extension is a single TLV extension entry: a 2-byte type, a 2-byte
// length, and raw content this package does not interpret further (SNI is
// built via NewServerNameExtension; everything else is opaque).
type Extension struct {
	Type uint16
	Data []byte
}

// NewServerNameExtension builds the one extension the scan driver can
// emit: a server_name extension carrying a single host_name entry.
func NewServerNameExtension(host string) Extension {
	// ServerNameList: u16 list-len, then entries of {u8 type=0, u16 len, name}.
	entry := make([]byte, 0, 3+len(host))
	entry = append(entry, 0x00) // name_type: host_name
	entry = binary.BigEndian.AppendUint16(entry, uint16(len(host)))
	entry = append(entry, host...)

	data := make([]byte, 0, 2+len(entry))
	data = binary.BigEndian.AppendUint16(data, uint16(len(entry)))
	data = append(data, entry...)

	return Extension{Type: ExtensionServerName, Data: data}
}

// EncodeClientHello serializes ch per the fixed layout: version | u32
// timestamp | 28 random bytes | u8 session_id_len | session_id | u16
// cs_list_len | cs_list (2 bytes each) | u8 cm_list_len | cm_list (1 byte
// each) | u16 ext_list_len | ext_list.
func EncodeClientHello(ch *ClientHello) []byte {
	var buf bytes.Buffer
	binaryWriteUint16(&buf, ch.Version)
	binaryWriteUint32(&buf, ch.Timestamp)
	buf.Write(ch.Random28[:])

	buf.WriteByte(byte(len(ch.SessionID)))
	buf.Write(ch.SessionID)

	binaryWriteUint16(&buf, uint16(len(ch.CipherSuites)*2))
	for _, cs := range ch.CipherSuites {
		binaryWriteUint16(&buf, cs)
	}

	buf.WriteByte(byte(len(ch.CompressionMethods)))
	for _, cm := range ch.CompressionMethods {
		buf.WriteByte(cm)
	}

	var extBuf bytes.Buffer
	for _, ext := range ch.Extensions {
		binaryWriteUint16(&extBuf, ext.Type)
		binaryWriteUint16(&extBuf, uint16(len(ext.Data)))
		extBuf.Write(ext.Data)
	}
	binaryWriteUint16(&buf, uint16(extBuf.Len()))
	buf.Write(extBuf.Bytes())

	return buf.Bytes()
}

// DecodeClientHello parses a ClientHello body; exported mainly so a
// round-trip test can decode what EncodeClientHello produced without a
// live handshake.
func DecodeClientHello(payload []byte) (*ClientHello, error) {
	r := bytes.NewReader(payload)
	ch := &ClientHello{}

	if err := readUint16(r, &ch.Version); err != nil {
		return nil, tlserr.NewParseError("client_hello.version", -1, err)
	}
	if err := readUint32(r, &ch.Timestamp); err != nil {
		return nil, tlserr.NewParseError("client_hello.timestamp", -1, err)
	}
	if _, err := readFull(r, ch.Random28[:]); err != nil {
		return nil, tlserr.NewParseError("client_hello.random", -1, err)
	}

	sidLen, err := r.ReadByte()
	if err != nil {
		return nil, tlserr.NewParseError("client_hello.session_id_len", -1, err)
	}
	ch.SessionID = make([]byte, sidLen)
	if _, err := readFull(r, ch.SessionID); err != nil {
		return nil, tlserr.NewParseError("client_hello.session_id", -1, err)
	}

	var csLen uint16
	if err := readUint16(r, &csLen); err != nil {
		return nil, tlserr.NewParseError("client_hello.cs_list_len", -1, err)
	}
	if csLen%2 != 0 {
		return nil, tlserr.NewParseError("client_hello.cs_list", -1,
			fmt.Errorf("odd cipher suite list length %d", csLen))
	}
	for i := 0; i < int(csLen)/2; i++ {
		var cs uint16
		if err := readUint16(r, &cs); err != nil {
			return nil, tlserr.NewParseError("client_hello.cs_list", -1, err)
		}
		ch.CipherSuites = append(ch.CipherSuites, cs)
	}

	cmLen, err := r.ReadByte()
	if err != nil {
		return nil, tlserr.NewParseError("client_hello.cm_list_len", -1, err)
	}
	cmBytes := make([]byte, cmLen)
	if _, err := readFull(r, cmBytes); err != nil {
		return nil, tlserr.NewParseError("client_hello.cm_list", -1, err)
	}
	ch.CompressionMethods = append(ch.CompressionMethods, cmBytes...)

	var extLen uint16
	if err := readUint16(r, &extLen); err != nil {
		return nil, tlserr.NewParseError("client_hello.ext_list_len", -1, err)
	}
	extBytes := make([]byte, extLen)
	if _, err := readFull(r, extBytes); err != nil {
		return nil, tlserr.NewParseError("client_hello.ext_list", -1, err)
	}
	exts, err := decodeExtensions(extBytes)
	if err != nil {
		return nil, err
	}
	ch.Extensions = exts

	return ch, nil
}

func decodeExtensions(data []byte) ([]Extension, error) {
	var exts []Extension
	for len(data) > 0 {
		if len(data) < 4 {
			return nil, tlserr.NewParseError("extension", -1, fmt.Errorf("truncated extension header"))
		}
		typ := binary.BigEndian.Uint16(data[0:2])
		length := int(binary.BigEndian.Uint16(data[2:4]))
		data = data[4:]
		if len(data) < length {
			return nil, tlserr.NewParseError("extension", -1, fmt.Errorf("extension length %d exceeds remaining %d", length, len(data)))
		}
		exts = append(exts, Extension{Type: typ, Data: data[:length]})
		data = data[length:]
	}
	return exts, nil
}

// ServerHello mirrors ClientHello's layout, with the cipher-suite and
// compression-method fields narrowed to single chosen values. Resolving
// those values against the registry is the scan driver's job, not this
// package's.
type ServerHello struct {
	Version           uint16
	Timestamp         uint32
	Random28          [28]byte
	SessionID         []byte
	CipherSuite       uint16
	CompressionMethod uint8
	Extensions        []Extension
}

// DecodeServerHello parses a ServerHello body.
func DecodeServerHello(payload []byte) (*ServerHello, error) {
	r := bytes.NewReader(payload)
	sh := &ServerHello{}

	if err := readUint16(r, &sh.Version); err != nil {
		return nil, tlserr.NewParseError("server_hello.version", -1, err)
	}
	if err := readUint32(r, &sh.Timestamp); err != nil {
		return nil, tlserr.NewParseError("server_hello.timestamp", -1, err)
	}
	if _, err := readFull(r, sh.Random28[:]); err != nil {
		return nil, tlserr.NewParseError("server_hello.random", -1, err)
	}

	sidLen, err := r.ReadByte()
	if err != nil {
		return nil, tlserr.NewParseError("server_hello.session_id_len", -1, err)
	}
	sh.SessionID = make([]byte, sidLen)
	if _, err := readFull(r, sh.SessionID); err != nil {
		return nil, tlserr.NewParseError("server_hello.session_id", -1, err)
	}

	if err := readUint16(r, &sh.CipherSuite); err != nil {
		return nil, tlserr.NewParseError("server_hello.cipher_suite", -1, err)
	}

	cm, err := r.ReadByte()
	if err != nil {
		return nil, tlserr.NewParseError("server_hello.compression_method", -1, err)
	}
	sh.CompressionMethod = cm

	// Extensions are optional: a ServerHello may end here.
	if r.Len() > 0 {
		var extLen uint16
		if err := readUint16(r, &extLen); err != nil {
			return nil, tlserr.NewParseError("server_hello.ext_list_len", -1, err)
		}
		extBytes := make([]byte, extLen)
		if _, err := readFull(r, extBytes); err != nil {
			return nil, tlserr.NewParseError("server_hello.ext_list", -1, err)
		}
		exts, err := decodeExtensions(extBytes)
		if err != nil {
			return nil, err
		}
		sh.Extensions = exts
	}

	return sh, nil
}

// DecodeCertificateMessage parses a Certificate handshake message: an
// outer 3-byte length followed by a sequence of {u24 len, DER bytes}
// entries. The raw DER of each entry is returned untouched for §4.B/D.
func DecodeCertificateMessage(payload []byte) ([][]byte, error) {
	if len(payload) < 3 {
		return nil, tlserr.NewParseError("certificate", -1, fmt.Errorf("truncated outer length"))
	}
	outerLen := int(payload[0])<<16 | int(payload[1])<<8 | int(payload[2])
	body := payload[3:]
	if len(body) != outerLen {
		return nil, tlserr.NewParseError("certificate", -1,
			fmt.Errorf("outer length %d does not match remaining %d bytes", outerLen, len(body)))
	}

	var certs [][]byte
	for len(body) > 0 {
		if len(body) < 3 {
			return nil, tlserr.NewParseError("certificate.entry", -1, fmt.Errorf("truncated entry length"))
		}
		entryLen := int(body[0])<<16 | int(body[1])<<8 | int(body[2])
		body = body[3:]
		if len(body) < entryLen {
			return nil, tlserr.NewParseError("certificate.entry", -1,
				fmt.Errorf("entry length %d exceeds remaining %d bytes", entryLen, len(body)))
		}
		der := make([]byte, entryLen)
		copy(der, body[:entryLen])
		certs = append(certs, der)
		body = body[entryLen:]
	}
	return certs, nil
}

// EncodeCertificateMessage is the inverse of DecodeCertificateMessage,
// used by tests.
func EncodeCertificateMessage(ders [][]byte) []byte {
	var body bytes.Buffer
	for _, der := range ders {
		body.WriteByte(byte(len(der) >> 16))
		body.WriteByte(byte(len(der) >> 8))
		body.WriteByte(byte(len(der)))
		body.Write(der)
	}
	out := make([]byte, 3+body.Len())
	n := body.Len()
	out[0] = byte(n >> 16)
	out[1] = byte(n >> 8)
	out[2] = byte(n)
	copy(out[3:], body.Bytes())
	return out
}

// ServerKeyExchange and CertificateRequest carry an opaque payload the
// scan accepts but never needs to interpret.
type ServerKeyExchange struct{ Raw []byte }
type CertificateRequest struct{ Raw []byte }

func DecodeServerKeyExchange(payload []byte) *ServerKeyExchange   { return &ServerKeyExchange{Raw: payload} }
func DecodeCertificateRequest(payload []byte) *CertificateRequest { return &CertificateRequest{Raw: payload} }

// DecodeServerHelloDone validates the zero-length terminal signal.
func DecodeServerHelloDone(payload []byte) error {
	if len(payload) != 0 {
		return tlserr.NewParseError("server_hello_done", -1, fmt.Errorf("expected zero-length payload, got %d bytes", len(payload)))
	}
	return nil
}

func binaryWriteUint16(buf *bytes.Buffer, v uint16) {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	buf.Write(tmp[:])
}

func binaryWriteUint32(buf *bytes.Buffer, v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	buf.Write(tmp[:])
}

func readUint16(r *bytes.Reader, out *uint16) error {
	var tmp [2]byte
	if _, err := readFull(r, tmp[:]); err != nil {
		return err
	}
	*out = binary.BigEndian.Uint16(tmp[:])
	return nil
}

func readUint32(r *bytes.Reader, out *uint32) error {
	var tmp [4]byte
	if _, err := readFull(r, tmp[:]); err != nil {
		return err
	}
	*out = binary.BigEndian.Uint32(tmp[:])
	return nil
}

func readFull(r *bytes.Reader, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	n, err := r.Read(buf)
	if err != nil {
		return n, err
	}
	if n != len(buf) {
		return n, fmt.Errorf("short read: wanted %d got %d", len(buf), n)
	}
	return n, nil
}
