package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tlssak/scanner/pkg/tlswire"
)

// scriptedDialer returns one fakeTransport per call, in order, so each
// simulated handshake iteration gets its own canned response.
type scriptedDialer struct {
	responses [][]byte
	calls     int
}

func (d *scriptedDialer) dial() (Transport, error) {
	if d.calls >= len(d.responses) {
		return nil, assert.AnError
	}
	t := &fakeTransport{incoming: d.responses[d.calls]}
	d.calls++
	return t, nil
}

func TestEnumerateCipherSuites_TerminatesOnHandshakeFailure(t *testing.T) {
	alertRecord := []byte{0x15, 0x03, 0x03, 0x00, 0x02, 0x02, 0x28}

	dialer := &scriptedDialer{responses: [][]byte{
		serverHelloDoneRecord(tlswire.VersionTLS12, 0xC02F, tlswire.CompressionNone),
		serverHelloDoneRecord(tlswire.VersionTLS12, 0x002F, tlswire.CompressionNone),
		alertRecord,
	}}

	chosen, err := EnumerateCipherSuites(dialer.dial, tlswire.VersionTLS12,
		[]uint16{0xC02F, 0x002F, 0xC030}, []uint8{tlswire.CompressionNone})

	require.NoError(t, err)
	assert.Equal(t, []uint16{0xC02F, 0x002F}, chosen)
	assert.Equal(t, 3, dialer.calls)
}

func TestEnumerateCipherSuites_BoundedByCandidateCountPlusOne(t *testing.T) {
	suites := []uint16{0x002F, 0xC02F, 0xC030}
	alertRecord := []byte{0x15, 0x03, 0x03, 0x00, 0x02, 0x02, 0x28}

	responses := make([][]byte, 0, len(suites)+1)
	for _, s := range suites {
		responses = append(responses, serverHelloDoneRecord(tlswire.VersionTLS12, s, tlswire.CompressionNone))
	}
	responses = append(responses, alertRecord)

	dialer := &scriptedDialer{responses: responses}
	chosen, err := EnumerateCipherSuites(dialer.dial, tlswire.VersionTLS12, suites, []uint8{tlswire.CompressionNone})

	require.NoError(t, err)
	assert.ElementsMatch(t, suites, chosen)
	assert.LessOrEqual(t, dialer.calls, len(suites)+1)
}

func TestHonorOrderProbe_ServerOrder(t *testing.T) {
	enumerated := []uint16{0xC02F, 0x002F, 0xC030}
	dialer := &scriptedDialer{responses: [][]byte{
		serverHelloDoneRecord(tlswire.VersionTLS12, enumerated[0], tlswire.CompressionNone),
	}}

	result, err := HonorOrderProbe(dialer.dial, tlswire.VersionTLS12, enumerated, []uint8{tlswire.CompressionNone})
	require.NoError(t, err)
	assert.Equal(t, HonorOrderServer, result)
}

func TestHonorOrderProbe_ClientOrder(t *testing.T) {
	enumerated := []uint16{0xC02F, 0x002F, 0xC030}
	dialer := &scriptedDialer{responses: [][]byte{
		serverHelloDoneRecord(tlswire.VersionTLS12, enumerated[len(enumerated)-1], tlswire.CompressionNone),
	}}

	result, err := HonorOrderProbe(dialer.dial, tlswire.VersionTLS12, enumerated, []uint8{tlswire.CompressionNone})
	require.NoError(t, err)
	assert.Equal(t, HonorOrderClient, result)
}

func TestHonorOrderProbe_Indeterminate(t *testing.T) {
	enumerated := []uint16{0xC02F, 0x002F, 0xC030}
	dialer := &scriptedDialer{responses: [][]byte{
		serverHelloDoneRecord(tlswire.VersionTLS12, 0x002F, tlswire.CompressionNone),
	}}

	result, err := HonorOrderProbe(dialer.dial, tlswire.VersionTLS12, enumerated, []uint8{tlswire.CompressionNone})
	require.NoError(t, err)
	assert.Equal(t, HonorOrderIndeterminate, result)
}

func TestCertificateFetchProbe(t *testing.T) {
	certDER := []byte{0x30, 0x02, 0x01, 0x02}
	certMsg := tlswire.EncodeHandshakeMessage(tlswire.HandshakeCertificate, tlswire.EncodeCertificateMessage([][]byte{certDER}))
	shMsg := tlswire.EncodeHandshakeMessage(tlswire.HandshakeServerHello, encodeServerHelloForTest(&tlswire.ServerHello{
		Version: tlswire.VersionTLS12, CipherSuite: 0x002F, CompressionMethod: tlswire.CompressionNone,
	}))
	doneMsg := tlswire.EncodeHandshakeMessage(tlswire.HandshakeServerHelloDone, nil)
	payload := append(append(append([]byte{}, shMsg...), certMsg...), doneMsg...)
	record := tlswire.EncodeRecord(&tlswire.Record{Type: tlswire.RecordHandshake, Version: tlswire.VersionTLS12, Payload: payload})

	dialer := &scriptedDialer{responses: [][]byte{record}}
	result, err := CertificateFetchProbe(dialer.dial, tlswire.VersionTLS12, []uint16{0x002F}, []uint8{tlswire.CompressionNone}, "example.com")
	require.NoError(t, err)
	require.Len(t, result.Certificates, 1)
	assert.Equal(t, certDER, result.Certificates[0])
}
