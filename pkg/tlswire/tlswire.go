// Package tlswire implements the record-layer and handshake-message codec
// for TLS/SSL: enough of the wire format to drive a ClientHello and read
// back a server's response, without ever negotiating the post-hello
// symmetric cryptography.
package tlswire

import (
	"encoding/binary"
	"fmt"

	"github.com/tlssak/scanner/tlserr"
)

// Protocol version wire values. SSLv3 through TLS 1.3 share the same
// {major, minor} encoding; TLS 1.x is SSL 3.x for wire purposes.
const (
	VersionSSL30 uint16 = 0x0300
	VersionTLS10 uint16 = 0x0301
	VersionTLS11 uint16 = 0x0302
	VersionTLS12 uint16 = 0x0303
	VersionTLS13 uint16 = 0x0304
)

// VersionName renders a wire version for logging/reporting.
func VersionName(v uint16) string {
	switch v {
	case VersionSSL30:
		return "SSLv3"
	case VersionTLS10:
		return "TLSv1.0"
	case VersionTLS11:
		return "TLSv1.1"
	case VersionTLS12:
		return "TLSv1.2"
	case VersionTLS13:
		return "TLSv1.3"
	default:
		return fmt.Sprintf("unknown (0x%04x)", v)
	}
}

// RecordType is the outer record frame's content type.
type RecordType uint8

const (
	RecordChangeCipherSpec RecordType = 20
	RecordAlert            RecordType = 21
	RecordHandshake        RecordType = 22
	RecordApplicationData  RecordType = 23
)

func (t RecordType) String() string {
	switch t {
	case RecordChangeCipherSpec:
		return "change_cipher_spec"
	case RecordAlert:
		return "alert"
	case RecordHandshake:
		return "handshake"
	case RecordApplicationData:
		return "application_data"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// HandshakeType is the inner handshake sub-message type.
type HandshakeType uint8

const (
	HandshakeHelloRequest       HandshakeType = 0
	HandshakeClientHello        HandshakeType = 1
	HandshakeServerHello        HandshakeType = 2
	HandshakeCertificate        HandshakeType = 11
	HandshakeServerKeyExchange  HandshakeType = 12
	HandshakeCertificateRequest HandshakeType = 13
	HandshakeServerHelloDone    HandshakeType = 14
	HandshakeCertificateVerify  HandshakeType = 15
	HandshakeClientKeyExchange  HandshakeType = 16
	HandshakeFinished           HandshakeType = 20
)

func (t HandshakeType) String() string {
	switch t {
	case HandshakeHelloRequest:
		return "hello_request"
	case HandshakeClientHello:
		return "client_hello"
	case HandshakeServerHello:
		return "server_hello"
	case HandshakeCertificate:
		return "certificate"
	case HandshakeServerKeyExchange:
		return "server_key_exchange"
	case HandshakeCertificateRequest:
		return "certificate_request"
	case HandshakeServerHelloDone:
		return "server_hello_done"
	case HandshakeCertificateVerify:
		return "certificate_verify"
	case HandshakeClientKeyExchange:
		return "client_key_exchange"
	case HandshakeFinished:
		return "finished"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// AlertLevel and the RFC 5246 alert description set.
type AlertLevel = tlserr.AlertLevel

const (
	AlertLevelWarning = tlserr.AlertLevelWarning
	AlertLevelFatal   = tlserr.AlertLevelFatal
)

// AlertDescription is the second byte of a two-byte Alert payload.
type AlertDescription uint8

const (
	AlertCloseNotify            AlertDescription = 0
	AlertUnexpectedMessage      AlertDescription = 10
	AlertBadRecordMAC           AlertDescription = 20
	AlertDecryptionFailed       AlertDescription = 21
	AlertRecordOverflow         AlertDescription = 22
	AlertDecompressionFailure   AlertDescription = 30
	AlertHandshakeFailure       AlertDescription = 40
	AlertNoCertificate          AlertDescription = 41
	AlertBadCertificate         AlertDescription = 42
	AlertUnsupportedCertificate AlertDescription = 43
	AlertCertificateRevoked     AlertDescription = 44
	AlertCertificateExpired     AlertDescription = 45
	AlertCertificateUnknown     AlertDescription = 46
	AlertIllegalParameter       AlertDescription = 47
	AlertUnknownCA              AlertDescription = 48
	AlertAccessDenied           AlertDescription = 49
	AlertDecodeError            AlertDescription = 50
	AlertDecryptError           AlertDescription = 51
	AlertExportRestriction      AlertDescription = 60
	AlertProtocolVersion        AlertDescription = 70
	AlertInsufficientSecurity   AlertDescription = 71
	AlertInternalError          AlertDescription = 80
	AlertUserCanceled           AlertDescription = 90
	AlertNoRenegotiation        AlertDescription = 100
	AlertUnsupportedExtension   AlertDescription = 110
)

var alertNames = map[AlertDescription]string{
	AlertCloseNotify:            "close_notify",
	AlertUnexpectedMessage:      "unexpected_message",
	AlertBadRecordMAC:           "bad_record_mac",
	AlertDecryptionFailed:       "decryption_failed",
	AlertRecordOverflow:         "record_overflow",
	AlertDecompressionFailure:   "decompression_failure",
	AlertHandshakeFailure:       "handshake_failure",
	AlertNoCertificate:          "no_certificate",
	AlertBadCertificate:         "bad_certificate",
	AlertUnsupportedCertificate: "unsupported_certificate",
	AlertCertificateRevoked:     "certificate_revoked",
	AlertCertificateExpired:     "certificate_expired",
	AlertCertificateUnknown:     "certificate_unknown",
	AlertIllegalParameter:       "illegal_parameter",
	AlertUnknownCA:              "unknown_ca",
	AlertAccessDenied:           "access_denied",
	AlertDecodeError:            "decode_error",
	AlertDecryptError:           "decrypt_error",
	AlertExportRestriction:      "export_restriction",
	AlertProtocolVersion:        "protocol_version",
	AlertInsufficientSecurity:   "insufficient_security",
	AlertInternalError:         "internal_error",
	AlertUserCanceled:           "user_canceled",
	AlertNoRenegotiation:        "no_renegotiation",
	AlertUnsupportedExtension:   "unsupported_extension",
}

func (d AlertDescription) String() string {
	if name, ok := alertNames[d]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint8(d))
}

// CompressionNone is the only compression method a modern peer should ever
// choose; kept as a named constant rather than a bare 0 since cipher
// suite and compression method IDs are easy to transpose by accident.
const CompressionNone uint8 = 0

// Extension numbers consumed or emitted by this scanner. Server name
// (SNI) is the only extension the driver can build; the rest are
// recognized on decode so a ServerHello carrying them doesn't look
// malformed.
const (
	ExtensionServerName          uint16 = 0
	ExtensionSupportedCurves     uint16 = 10
	ExtensionSignatureAlgorithms uint16 = 13
	ExtensionALPN                uint16 = 16
	ExtensionSCT                 uint16 = 18
	ExtensionSupportedVersions   uint16 = 43
	ExtensionKeyShare            uint16 = 51
)

// Record is one outer TLS record: a content type, protocol version, and a
// payload whose declared length must match len(Payload) exactly (definite
// framing only — there is no indefinite length at this layer).
type Record struct {
	Type    RecordType
	Version uint16
	Payload []byte
}

// ReadRecord decodes exactly one record frame from r, which must supply at
// least the 5-byte header plus the declared payload length.
func ReadRecord(r Reader) (*Record, error) {
	header, err := r.ReadN(5)
	if err != nil {
		return nil, tlserr.NewTransportError("read record header", err)
	}
	length := int(binary.BigEndian.Uint16(header[3:5]))
	payload, err := r.ReadN(length)
	if err != nil {
		return nil, tlserr.NewTransportError("read record payload", err)
	}
	return &Record{
		Type:    RecordType(header[0]),
		Version: binary.BigEndian.Uint16(header[1:3]),
		Payload: payload,
	}, nil
}

// EncodeRecord serializes rec back to its 5-byte-header wire form.
func EncodeRecord(rec *Record) []byte {
	buf := make([]byte, 5+len(rec.Payload))
	buf[0] = byte(rec.Type)
	binary.BigEndian.PutUint16(buf[1:3], rec.Version)
	binary.BigEndian.PutUint16(buf[3:5], uint16(len(rec.Payload)))
	copy(buf[5:], rec.Payload)
	return buf
}

// Reader is the minimal byte source tlswire needs. transport.Transport's
// ReadN returns exactly n bytes or fails; pkg/stream.Stream has the same
// method but returns fewer than n bytes when its data runs out.
type Reader interface {
	ReadN(n int) ([]byte, error)
}

// HandshakeMessage is one inner handshake sub-message, after stripping the
// 1-byte type + 3-byte big-endian length header.
type HandshakeMessage struct {
	Type    HandshakeType
	Payload []byte
}

// SplitHandshakeMessages walks a single record's payload, which may
// concatenate multiple handshake messages back to back, and returns each
// one in wire order.
func SplitHandshakeMessages(payload []byte) ([]HandshakeMessage, error) {
	var msgs []HandshakeMessage
	for len(payload) > 0 {
		if len(payload) < 4 {
			return nil, tlserr.NewParseError("handshake message header", -1,
				fmt.Errorf("truncated handshake header: %d bytes remain", len(payload)))
		}
		typ := HandshakeType(payload[0])
		length := int(payload[0+1])<<16 | int(payload[2])<<8 | int(payload[3])
		payload = payload[4:]
		if len(payload) < length {
			return nil, tlserr.NewParseError("handshake message body", -1,
				fmt.Errorf("declared length %d exceeds remaining %d bytes", length, len(payload)))
		}
		msgs = append(msgs, HandshakeMessage{Type: typ, Payload: payload[:length]})
		payload = payload[length:]
	}
	return msgs, nil
}

// EncodeHandshakeMessage wraps payload in its 1+3-byte handshake header.
func EncodeHandshakeMessage(typ HandshakeType, payload []byte) []byte {
	buf := make([]byte, 4+len(payload))
	buf[0] = byte(typ)
	buf[1] = byte(len(payload) >> 16)
	buf[2] = byte(len(payload) >> 8)
	buf[3] = byte(len(payload))
	copy(buf[4:], payload)
	return buf
}

// DecodeAlert parses a 2-byte Alert record payload.
func DecodeAlert(payload []byte) (tlserr.AlertLevel, AlertDescription, error) {
	if len(payload) != 2 {
		return 0, 0, tlserr.NewParseError("alert", -1,
			fmt.Errorf("alert payload must be exactly 2 bytes, got %d", len(payload)))
	}
	return tlserr.AlertLevel(payload[0]), AlertDescription(payload[1]), nil
}

// AlertAsError converts a decoded alert into the typed failure the scan
// driver branches on via errors.As.
func AlertAsError(level tlserr.AlertLevel, desc AlertDescription) *tlserr.AlertReceived {
	return tlserr.NewAlertReceived(level, uint8(desc), desc.String())
}
