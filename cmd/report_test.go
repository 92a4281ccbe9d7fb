package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tlssak/scanner/pkg/registry"
	"github.com/tlssak/scanner/pkg/scanner"
	"github.com/tlssak/scanner/pkg/tlswire"
)

func TestRatingLabel(t *testing.T) {
	assert.Contains(t, ratingLabel(registry.CipherSuiteEntry{ENC: "RC4"}), "insecure")
	assert.Contains(t, ratingLabel(registry.CipherSuiteEntry{ENC: "AES-GCM"}), "secure")
	assert.Contains(t, ratingLabel(registry.CipherSuiteEntry{ENC: "AES-CBC"}), "weak")
}

func TestReport_UnsupportedProtocol(t *testing.T) {
	var buf bytes.Buffer
	Report(&buf, "example.com", []ProtocolResult{
		{Version: tlswire.VersionTLS10, Supported: false},
	})
	out := buf.String()
	assert.Contains(t, out, "example.com")
	assert.Contains(t, out, "unsupported")
}

func TestReport_SupportedProtocol(t *testing.T) {
	var buf bytes.Buffer
	Report(&buf, "example.com", []ProtocolResult{
		{
			Version:      tlswire.VersionTLS12,
			Supported:    true,
			CipherSuites: []uint16{0x1301},
			HonorOrder:   scanner.HonorOrderServer,
			TrustVerdict: "trusted",
		},
	})
	out := buf.String()
	assert.Contains(t, out, "cipher-suite order honored by: server")
	assert.Contains(t, out, "trust chain: trusted")
}
