// Package transport supplies the scan driver's TCP connection: dialing
// with a timeout, a fixed read deadline on every receive, and optional
// direct DNS resolution against a caller-specified server so a scan can
// bypass the host's stub resolver the way a production-estate probe often
// needs to.
package transport

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"

	"github.com/tlssak/scanner/tlserr"
)

// DefaultReadTimeout is the Recv read timeout Dial uses when given a zero
// or negative readTimeout, and the timeout of a Resolver's DNS query.
const DefaultReadTimeout = 10 * time.Second

// Transport is the scoped-acquisition socket contract: Send/Recv/Close,
// with Close guaranteed on every exit path at the call site (the scan
// driver's responsibility, not this package's).
type Transport struct {
	conn        net.Conn
	readTimeout time.Duration
	buffered    []byte
}

// Resolver, when set, directs hostname resolution at a specific DNS
// server instead of the OS stub resolver.
type Resolver struct {
	Server string // "host:port", e.g. "1.1.1.1:53"
}

// resolve looks up host's A records against r.Server using a direct UDP
// query via miekg/dns, returning the first A answer. AAAA records are not
// queried.
func (r *Resolver) resolve(host string) (string, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), dns.TypeA)
	msg.RecursionDesired = true

	client := new(dns.Client)
	client.Timeout = DefaultReadTimeout

	reply, _, err := client.Exchange(msg, r.Server)
	if err != nil {
		return "", fmt.Errorf("transport: querying %s at %s: %w", host, r.Server, err)
	}
	for _, ans := range reply.Answer {
		if a, ok := ans.(*dns.A); ok {
			return a.A.String(), nil
		}
	}
	return "", fmt.Errorf("transport: no A record for %s from %s", host, r.Server)
}

// Dial opens a new TCP connection to addr (host:port). If resolver is
// non-nil, host is resolved against it first; otherwise net.Dial performs
// ordinary OS-level resolution.
func Dial(ctx context.Context, addr string, dialTimeout, readTimeout time.Duration, resolver *Resolver) (*Transport, error) {
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}

	dialAddr := addr
	if resolver != nil {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, tlserr.NewTransportError("parsing address", err)
		}
		resolved, err := resolver.resolve(host)
		if err != nil {
			return nil, tlserr.NewTransportError("resolving "+host, err)
		}
		dialAddr = net.JoinHostPort(resolved, port)
	}

	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", dialAddr)
	if err != nil {
		return nil, tlserr.NewTransportError("dial "+dialAddr, err)
	}

	return &Transport{conn: conn, readTimeout: readTimeout}, nil
}

// Send writes b in full.
func (t *Transport) Send(b []byte) error {
	if _, err := t.conn.Write(b); err != nil {
		return tlserr.NewTransportError("write", err)
	}
	return nil
}

// Recv reads up to 4096 bytes, enforcing the read deadline on every call:
// a timeout surfaces as a transport failure that aborts the current
// handshake only, not the whole scan.
func (t *Transport) Recv() ([]byte, error) {
	if err := t.conn.SetReadDeadline(time.Now().Add(t.readTimeout)); err != nil {
		return nil, tlserr.NewTransportError("set read deadline", err)
	}
	buf := make([]byte, 4096)
	n, err := t.conn.Read(buf)
	if n == 0 && err != nil {
		return nil, tlserr.NewTransportError("read", err)
	}
	return buf[:n], nil
}

// ReadN reads exactly n bytes, blocking across as many Recv calls as
// needed, so transport.Transport satisfies tlswire.Reader directly. Any
// bytes read past n are held in an internal buffer and served to the next
// ReadN call — Recv's 4096-byte chunks rarely align with TLS record/field
// boundaries, so a naive read-and-truncate would silently drop wire data.
func (t *Transport) ReadN(n int) ([]byte, error) {
	out := make([]byte, 0, n)

	if len(t.buffered) > 0 {
		take := len(t.buffered)
		if take > n {
			take = n
		}
		out = append(out, t.buffered[:take]...)
		t.buffered = t.buffered[take:]
	}

	for len(out) < n {
		chunk, err := t.Recv()
		if err != nil {
			return nil, err
		}
		need := n - len(out)
		if len(chunk) > need {
			t.buffered = append(t.buffered, chunk[need:]...)
			chunk = chunk[:need]
		}
		out = append(out, chunk...)
	}
	return out, nil
}

// Close closes the underlying connection. Safe to call more than once.
func (t *Transport) Close() error {
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	if err != nil {
		return tlserr.NewTransportError("close", err)
	}
	return nil
}
