package ratings

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tlssak/scanner/pkg/certview"
)

const selfSignedCertB64 = `MIIDejCCAmKgAwIBAgIUDmYKG3ZAF/WBItDF8nTJ1kPqBYwwDQYJKoZIhvcNAQELBQAwOTELMAkGA1UEBhMCVVMxFDASBgNVBAoMC0V4YW1wbGUgSW5jMRQwEgYDVQQDDAtleGFtcGxlLmNvbTAeFw0yNjA3MzEwNjM0MTZaFw0zNjA3MjgwNjM0MTZaMDkxCzAJBgNVBAYTAlVTMRQwEgYDVQQKDAtFeGFtcGxlIEluYzEUMBIGA1UEAwwLZXhhbXBsZS5jb20wggEiMA0GCSqGSIb3DQEBAQUAA4IBDwAwggEKAoIBAQCS3PKRvF9NyMhb+O/TJWs1YcElsYnf7jBb3LSmzrcTlI/5jjS5UNgcvB0HoEcHiuIGPDJbpCiJA8cZhr8kHAMxTXP1YBYc+CzHwdRpCIH2BPSAIKw8P64qdFfTWUos14u34KKvgu7eg7K1/0XDp/vKw2K9Klani0af6tLU3/tKcwMduUoZx+QJ4/12ANI5Wtd989tNQ4GLR0C+iceTTVdofJC2690xX9uU2OYVt88BvbpPsmqBREXXU7xBq1kmWrlwuZycWwZ/NXsCgq4JrBDH/zElwMq/clMe14fImbqh5ikbnL8DOj9OdosyPhnDLplSt/MdN7BZC/TSDcOAXtjjAgMBAAGjejB4MB0GA1UdDgQWBBSRnRsKYikJ4SBQ34iFxOm+GOWUBjAfBgNVHSMEGDAWgBSRnRsKYikJ4SBQ34iFxOm+GOWUBjAPBgNVHRMBAf8EBTADAQH/MCUGA1UdEQQeMByCC2V4YW1wbGUuY29tgg0qLmV4YW1wbGUuY29tMA0GCSqGSIb3DQEBCwUAA4IBAQA6MAcDoD3QoTeeQkjWytoxLm8dlJDPkOI0atQjl8CLBDDLyiqekp4OjnQG/WaxofBc/I0akcTMxo+2V7JeRKRSIur7hzE/7VkjRYAxGJaoaXY/es+Ahs6SPCpb18gJ4vhE+ja/xjQOJs2ZEfvcpJc9trNBY/4AsEvzgJQVrCKUF29UIM3uYL/NTabXdeQA5wsimGip4tlx3BqKB6SrgAYLvnlsNdr9e56MDOyMxs2M4LibBnpEm6cF6Nqds397Jtax7ev4GY81yeua6QAiXxiXdWTTJtBl4Kuf3uo1VeB3nQNzfUyVZrgAfsdaCaXbADyYE8mB9ti227HxNn4C1m3J`

func TestHostnameRating_OrdinaryWildcardIsSecure(t *testing.T) {
	der, err := base64.StdEncoding.DecodeString(selfSignedCertB64)
	require.NoError(t, err)
	cert, err := certview.Parse(der)
	require.NoError(t, err)

	// *.example.com is a wildcard over a normal registrable domain, not a
	// public suffix, so it should not be flagged.
	verdict := HostnameRating(cert)
	assert.Equal(t, "secure", verdict.Status)
}
