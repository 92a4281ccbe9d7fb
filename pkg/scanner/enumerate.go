package scanner

import (
	"errors"

	"github.com/tlssak/scanner/pkg/tlswire"
	"github.com/tlssak/scanner/tlserr"
)

// Dialer opens a fresh transport for one handshake attempt. The scan loop
// calls this once per iteration and always closes what it returns before
// the next iteration opens a new one: iterations run strictly
// sequentially, never concurrently.
type Dialer func() (Transport, error)

// HonorOrderResult is the verdict of the honor-order probe.
type HonorOrderResult string

const (
	HonorOrderServer      HonorOrderResult = "server"
	HonorOrderClient      HonorOrderResult = "client"
	HonorOrderIndeterminate HonorOrderResult = "indeterminate"
)

// EnumerateCipherSuites repeatedly opens a fresh transport and negotiates
// one handshake at a time, each with the previous iteration's chosen
// suite removed from the candidate set, until the server reports
// handshake_failure (exhaustion) or any other error terminates the scan
// for this protocol version. It returns the suites chosen, in the order
// the server picked them.
func EnumerateCipherSuites(dial Dialer, clientVersion uint16, allSuites []uint16, compressionMethods []uint8) ([]uint16, error) {
	candidates := append([]uint16{}, allSuites...)
	var chosen []uint16

	for len(candidates) > 0 {
		transport, err := dial()
		if err != nil {
			return chosen, err
		}

		session := NewSession(transport)
		session.SetClientVersion(clientVersion)
		session.SetAvailableCipherSuites(candidates)
		session.SetAvailableCompressionMethods(compressionMethods)

		connectErr := session.Connect()
		closeErr := transport.Close()

		var alert *tlserr.AlertReceived
		if errors.As(connectErr, &alert) {
			if alert.IsHandshakeFailure() {
				return chosen, nil
			}
			return chosen, connectErr
		}
		if connectErr != nil {
			return chosen, connectErr
		}
		if closeErr != nil {
			return chosen, closeErr
		}

		picked := session.ChosenCipherSuite()
		chosen = append(chosen, picked)
		candidates = removeSuite(candidates, picked)
	}

	return chosen, nil
}

func removeSuite(suites []uint16, target uint16) []uint16 {
	out := suites[:0:0]
	for _, s := range suites {
		if s != target {
			out = append(out, s)
		}
	}
	return out
}

// HonorOrderProbe issues one more handshake with the enumerated order
// rotated — candidates c_{n-1}, c_0, c_1, ..., c_{n-2} — and reports
// whether the server honored its own preference, the client's order, or
// neither.
func HonorOrderProbe(dial Dialer, clientVersion uint16, enumerated []uint16, compressionMethods []uint8) (HonorOrderResult, error) {
	if len(enumerated) == 0 {
		return HonorOrderIndeterminate, tlserr.NewProtocolError("honor-order probe requires a non-empty enumeration", nil)
	}

	rotated := make([]uint16, len(enumerated))
	rotated[0] = enumerated[len(enumerated)-1]
	copy(rotated[1:], enumerated[:len(enumerated)-1])

	transport, err := dial()
	if err != nil {
		return HonorOrderIndeterminate, err
	}
	defer transport.Close()

	session := NewSession(transport)
	session.SetClientVersion(clientVersion)
	session.SetAvailableCipherSuites(rotated)
	session.SetAvailableCompressionMethods(compressionMethods)

	if err := session.Connect(); err != nil {
		return HonorOrderIndeterminate, err
	}

	switch session.ChosenCipherSuite() {
	case enumerated[0]:
		return HonorOrderServer, nil
	case enumerated[len(enumerated)-1]:
		return HonorOrderClient, nil
	default:
		return HonorOrderIndeterminate, nil
	}
}

// CertificateFetchResult is a handshake's certificate chain plus the raw
// ServerHello extensions, so callers can decode e.g. the
// signed_certificate_timestamp extension without the scan driver knowing
// anything about the Certificate Transparency wire format.
type CertificateFetchResult struct {
	Certificates [][]byte
	Extensions   []tlswire.Extension
}

// CertificateFetchProbe issues one handshake with the full candidate list
// (and, if host is non-empty, an SNI extension) and returns the server's
// certificate chain and ServerHello extensions.
func CertificateFetchProbe(dial Dialer, clientVersion uint16, allSuites []uint16, compressionMethods []uint8, host string) (CertificateFetchResult, error) {
	transport, err := dial()
	if err != nil {
		return CertificateFetchResult{}, err
	}
	defer transport.Close()

	session := NewSession(transport)
	session.SetClientVersion(clientVersion)
	session.SetAvailableCipherSuites(allSuites)
	session.SetAvailableCompressionMethods(compressionMethods)
	if host != "" {
		session.SetServerName(host)
	}

	if err := session.Connect(); err != nil {
		return CertificateFetchResult{}, err
	}
	return CertificateFetchResult{
		Certificates: session.ServerCertificates(),
		Extensions:   session.ServerExtensions(),
	}, nil
}
