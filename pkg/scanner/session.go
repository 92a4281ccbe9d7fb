// Package scanner implements the scan driver: a ClientHello/ServerHello
// handshake session plus the three probes built on top of it (cipher-suite
// enumeration, honor-order, certificate fetch). Grounded on TLS_Connection
// (lib/tls/tlsconnection.py) for the session's setter/getter shape and
// List_Ciphers_Test.execute (lib/plugin/test/ciphers.py) for the
// enumeration loop.
package scanner

import (
	"fmt"

	"github.com/tlssak/scanner/pkg/tlswire"
	"github.com/tlssak/scanner/tlserr"
)

// Transport is the minimal socket contract the driver needs;
// pkg/transport.Transport satisfies it.
type Transport interface {
	Send([]byte) error
	Recv() ([]byte, error)
	ReadN(n int) ([]byte, error)
	Close() error
}

// Session holds one handshake's configuration and, after Connect, its
// results. A Session is single-use: each handshake attempt needs a fresh
// transport, so a new Session is created per iteration.
type Session struct {
	transport          Transport
	clientVersion      uint16
	cipherSuites       []uint16
	compressionMethods []uint8
	extensions         []tlswire.Extension

	serverVersion     uint16
	chosenCipherSuite uint16
	chosenCompression uint8
	serverCertDER     [][]byte
	serverExtensions  []tlswire.Extension
}

// NewSession binds a Session to an already-connected transport.
func NewSession(transport Transport) *Session {
	return &Session{transport: transport}
}

func (s *Session) SetClientVersion(v uint16)                { s.clientVersion = v }
func (s *Session) SetAvailableCipherSuites(ids []uint16)     { s.cipherSuites = ids }
func (s *Session) SetAvailableCompressionMethods(ids []uint8) { s.compressionMethods = ids }
func (s *Session) SetAvailableExtensions(exts []tlswire.Extension) { s.extensions = exts }

// SetServerName is a convenience wrapper: server_name (SNI) is the only
// extension this driver supports building.
func (s *Session) SetServerName(host string) {
	s.extensions = append(s.extensions, tlswire.NewServerNameExtension(host))
}

func (s *Session) ChosenCipherSuite() uint16     { return s.chosenCipherSuite }
func (s *Session) ChosenCompressionMethod() uint8 { return s.chosenCompression }
func (s *Session) ServerVersion() uint16         { return s.serverVersion }
func (s *Session) ServerCertificates() [][]byte  { return s.serverCertDER }

// ServerExtensions returns the extensions the server included in its
// ServerHello, e.g. the signed_certificate_timestamp list (pkg/ratings'
// SCT decoder consumes this for ExtensionSCT).
func (s *Session) ServerExtensions() []tlswire.Extension { return s.serverExtensions }

// Connect sends a ClientHello built from the session's current candidate
// lists, then reads records until a ServerHelloDone or a fatal condition,
// populating the chosen cipher suite/compression/version and any
// certificate chain along the way.
func (s *Session) Connect() error {
	ch := &tlswire.ClientHello{
		Version:            s.clientVersion,
		CipherSuites:       s.cipherSuites,
		CompressionMethods: s.compressionMethods,
		Extensions:         s.extensions,
	}
	body := tlswire.EncodeClientHello(ch)
	frame := tlswire.EncodeHandshakeMessage(tlswire.HandshakeClientHello, body)
	record := tlswire.EncodeRecord(&tlswire.Record{
		Type:    tlswire.RecordHandshake,
		Version: s.clientVersion,
		Payload: frame,
	})

	if err := s.transport.Send(record); err != nil {
		return err
	}

	for {
		rec, err := tlswire.ReadRecord(s.transport)
		if err != nil {
			return err
		}

		switch rec.Type {
		case tlswire.RecordAlert:
			level, desc, err := tlswire.DecodeAlert(rec.Payload)
			if err != nil {
				return err
			}
			return tlswire.AlertAsError(level, desc)

		case tlswire.RecordHandshake:
			done, err := s.handleHandshakeRecord(rec.Payload)
			if err != nil {
				return err
			}
			if done {
				return nil
			}

		default:
			return tlserr.NewProtocolError(
				fmt.Sprintf("unexpected record type %s during handshake", rec.Type), nil)
		}
	}
}

// handleHandshakeRecord processes every handshake message concatenated
// into one record, since a single record may carry several handshake
// messages back to back. It returns done=true once ServerHelloDone
// arrives.
func (s *Session) handleHandshakeRecord(payload []byte) (done bool, err error) {
	msgs, err := tlswire.SplitHandshakeMessages(payload)
	if err != nil {
		return false, err
	}

	for _, msg := range msgs {
		switch msg.Type {
		case tlswire.HandshakeServerHello:
			sh, err := tlswire.DecodeServerHello(msg.Payload)
			if err != nil {
				return false, err
			}
			s.serverVersion = sh.Version
			s.chosenCipherSuite = sh.CipherSuite
			s.chosenCompression = sh.CompressionMethod
			s.serverExtensions = sh.Extensions

		case tlswire.HandshakeCertificate:
			certs, err := tlswire.DecodeCertificateMessage(msg.Payload)
			if err != nil {
				return false, err
			}
			s.serverCertDER = certs

		case tlswire.HandshakeServerKeyExchange:
			_ = tlswire.DecodeServerKeyExchange(msg.Payload)

		case tlswire.HandshakeCertificateRequest:
			_ = tlswire.DecodeCertificateRequest(msg.Payload)

		case tlswire.HandshakeServerHelloDone:
			if err := tlswire.DecodeServerHelloDone(msg.Payload); err != nil {
				return false, err
			}
			return true, nil

		default:
			return false, tlserr.NewProtocolError(
				fmt.Sprintf("unexpected handshake message type %s", msg.Type), nil)
		}
	}
	return false, nil
}
