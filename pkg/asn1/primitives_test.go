package asn1

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeBoolean(t *testing.T) {
	v, err := DecodeBoolean([]byte{0xFF})
	require.NoError(t, err)
	assert.True(t, v)

	v, err = DecodeBoolean([]byte{0x00})
	require.NoError(t, err)
	assert.False(t, v)

	_, err = DecodeBoolean([]byte{0x00, 0x00})
	assert.Error(t, err)
}

func TestDecodeInteger(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
		want    int64
	}{
		{"positive 128 needs leading zero octet", []byte{0x00, 0x80}, 128},
		{"negative 128 single octet", []byte{0x80}, -128},
		{"small positive", []byte{0x05}, 5},
		{"small negative", []byte{0xFB}, -5},
		{"zero", []byte{0x00}, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v, err := DecodeInteger(tc.content)
			require.NoError(t, err)
			assert.Equal(t, big.NewInt(tc.want), v)
		})
	}
}

func TestDecodeOID(t *testing.T) {
	// sha256WithRSAEncryption: 1.2.840.113549.1.1.11
	content := []byte{0x2A, 0x86, 0x48, 0x86, 0xF7, 0x0D, 0x01, 0x01, 0x0B}
	oid, err := DecodeOID(content)
	require.NoError(t, err)
	assert.Equal(t, "1.2.840.113549.1.1.11", oid.String())

	reencoded, err := EncodeOID(oid)
	require.NoError(t, err)
	assert.Equal(t, content, reencoded)
}

func TestDecodeOID_RejectsLeadingZeroSubidentifier(t *testing.T) {
	// 0x80 as the leading octet of a multi-byte subidentifier is a
	// non-minimal ("leading zero") encoding and must be rejected.
	content := []byte{0x2A, 0x80, 0x86, 0x48, 0x86, 0xF7, 0x0D, 0x01, 0x01, 0x0B}
	_, err := DecodeOID(content)
	assert.Error(t, err)
}

func TestDecodeOID_FirstArcBoundaries(t *testing.T) {
	tests := []struct {
		content []byte
		want    string
	}{
		{[]byte{0x00, 0x01}, "0.0.1"},
		{[]byte{0x28, 0x01}, "1.0.1"},
		{[]byte{0x55, 0x04, 0x03}, "2.5.4.3"}, // commonName
	}
	for _, tc := range tests {
		oid, err := DecodeOID(tc.content)
		require.NoError(t, err)
		assert.Equal(t, tc.want, oid.String())
	}
}

func TestDecodeBitString(t *testing.T) {
	bs, err := DecodeBitString([]byte{0x04, 0xF0})
	require.NoError(t, err)
	assert.Equal(t, 4, bs.UnusedBits)
	assert.Equal(t, []byte{0xF0}, bs.Bytes)
}

func TestDecodeBitString_InvalidUnusedCount(t *testing.T) {
	_, err := DecodeBitString([]byte{0x08, 0xF0})
	assert.Error(t, err)
}

func TestDecodePrintableString_RejectsInvalidChars(t *testing.T) {
	_, err := DecodePrintableString([]byte("hello_world"))
	assert.Error(t, err)

	v, err := DecodePrintableString([]byte("hello world"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", v)
}

func TestDecodeBMPString(t *testing.T) {
	// "Hi" in UTF-16BE
	v, err := DecodeBMPString([]byte{0x00, 'H', 0x00, 'i'})
	require.NoError(t, err)
	assert.Equal(t, "Hi", v)
}

func TestDecodeUTCTime(t *testing.T) {
	v, err := DecodeUTCTime([]byte("250131120000Z"))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 31, 12, 0, 0, 0, time.UTC), v)
}

func TestDecodeGeneralizedTime(t *testing.T) {
	v, err := DecodeGeneralizedTime([]byte("20991231235959Z"))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2099, 12, 31, 23, 59, 59, 0, time.UTC), v)
}
