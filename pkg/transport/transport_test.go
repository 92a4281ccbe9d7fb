package transport

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newPipeTransport wires a Transport directly to one end of an in-memory
// net.Pipe, so ReadN's buffering logic can be exercised without a real
// socket or DNS lookup.
func newPipeTransport(t *testing.T) (*Transport, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	tr := &Transport{conn: client, readTimeout: time.Second}
	t.Cleanup(func() { _ = tr.Close(); _ = server.Close() })
	return tr, server
}

func TestTransport_ReadN_BuffersExcessBytes(t *testing.T) {
	tr, server := newPipeTransport(t)

	go func() {
		_, _ = server.Write([]byte{0x01, 0x02, 0x03, 0x04, 0x05})
	}()

	first, err := tr.ReadN(2)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02}, first)

	second, err := tr.ReadN(3)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x03, 0x04, 0x05}, second)
}

func TestTransport_ReadN_AcrossMultipleWrites(t *testing.T) {
	tr, server := newPipeTransport(t)

	go func() {
		_, _ = server.Write([]byte{0xAA})
		_, _ = server.Write([]byte{0xBB, 0xCC})
	}()

	out, err := tr.ReadN(3)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAA, 0xBB, 0xCC}, out)
}

func TestTransport_Send(t *testing.T) {
	tr, server := newPipeTransport(t)

	done := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 4)
		n, _ := server.Read(buf)
		done <- buf[:n]
	}()

	require.NoError(t, tr.Send([]byte{1, 2, 3, 4}))
	assert.Equal(t, []byte{1, 2, 3, 4}, <-done)
}

func TestTransport_Close_Idempotent(t *testing.T) {
	tr, _ := newPipeTransport(t)
	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())
}
