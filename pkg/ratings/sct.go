package ratings

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	ct "github.com/google/certificate-transparency-go"
	cttls "github.com/google/certificate-transparency-go/tls"

	"github.com/tlssak/scanner/pkg/tlswire"
)

// SCTSummary is what a scan report shows for one signed_certificate_timestamp
// extension entry: which log issued it and when, without dragging the full
// ct.SignedCertificateTimestamp (and its raw signature bytes) into the CLI
// layer.
type SCTSummary struct {
	LogID     string // hex-encoded log key ID
	Timestamp uint64 // milliseconds since the Unix epoch, per RFC 6962
}

// DecodeSCTExtension parses a signed_certificate_timestamp extension's
// payload (RFC 6962 section 3.3: a u16-length-prefixed list of
// u16-length-prefixed SCT blobs) and unmarshals each entry with the
// certificate-transparency-go TLS codec, the same call boulder's CA uses to
// read back the SCTs it's about to embed in a poisoned precert.
func DecodeSCTExtension(data []byte) ([]SCTSummary, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("sct list: payload too short (%d bytes)", len(data))
	}
	listLen := binary.BigEndian.Uint16(data)
	body := data[2:]
	if int(listLen) != len(body) {
		return nil, fmt.Errorf("sct list: declared length %d does not match payload %d", listLen, len(body))
	}

	var summaries []SCTSummary
	for len(body) > 0 {
		if len(body) < 2 {
			return nil, fmt.Errorf("sct list: truncated entry length")
		}
		entryLen := binary.BigEndian.Uint16(body)
		body = body[2:]
		if int(entryLen) > len(body) {
			return nil, fmt.Errorf("sct list: entry length %d exceeds remaining %d bytes", entryLen, len(body))
		}
		raw := body[:entryLen]
		body = body[entryLen:]

		var sct ct.SignedCertificateTimestamp
		if _, err := cttls.Unmarshal(raw, &sct); err != nil {
			return nil, fmt.Errorf("sct list: unmarshal entry: %w", err)
		}
		summaries = append(summaries, SCTSummary{
			LogID:     hex.EncodeToString(sct.LogID.KeyID[:]),
			Timestamp: sct.Timestamp,
		})
	}
	return summaries, nil
}

// ExtractSCTs finds the signed_certificate_timestamp extension among a
// ServerHello's extensions, if the server sent one, and decodes it.
func ExtractSCTs(extensions []tlswire.Extension) ([]SCTSummary, error) {
	for _, ext := range extensions {
		if ext.Type == tlswire.ExtensionSCT {
			return DecodeSCTExtension(ext.Data)
		}
	}
	return nil, nil
}
