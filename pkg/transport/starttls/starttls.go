// Package starttls drives the plaintext line-protocol dance that precedes
// a TLS handshake on STARTTLS-style protocols: SMTP, FTP, IMAP, and POP3.
// It reads and writes through the same connection the scan driver will
// later hand a ClientHello over; this package never negotiates TLS
// itself, it only clears the plaintext banner so the driver can take over
// on a clean TLS-ready socket. Grounded on the SMTP/FTP dance in
// Connection_STARTTLS_SMTP/Connection_STARTTLS_FTP (tcpsocket-derived
// readLine/_refillBuffer loop), generalized to IMAP/POP3.
package starttls

import (
	"fmt"
	"strings"

	"github.com/tlssak/scanner/tlserr"
)

// Protocol identifies which line-protocol dance to run.
type Protocol string

const (
	SMTP Protocol = "smtp"
	FTP  Protocol = "ftp"
	IMAP Protocol = "imap"
	POP3 Protocol = "pop3"
)

// Conn is the minimal send/recv contract Upgrade needs; transport.Transport
// satisfies it directly.
type Conn interface {
	Send([]byte) error
	Recv() ([]byte, error)
}

// lineReader adapts Conn's chunked Recv into line-at-a-time reads, the Go
// equivalent of the source's buffer-until-newline readLine/_refillBuffer.
type lineReader struct {
	conn Conn
	buf  []byte
}

func (lr *lineReader) readLine() (string, error) {
	for {
		if idx := indexByte(lr.buf, '\n'); idx >= 0 {
			line := string(lr.buf[:idx])
			lr.buf = lr.buf[idx+1:]
			return strings.TrimRight(line, "\r"), nil
		}
		chunk, err := lr.conn.Recv()
		if err != nil {
			return "", err
		}
		lr.buf = append(lr.buf, chunk...)
	}
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

// Upgrade runs the plaintext dance for proto over conn, returning once the
// peer has agreed to switch to TLS. The caller (the scan driver) then
// issues a ClientHello over the same connection.
func Upgrade(conn Conn, proto Protocol) error {
	switch proto {
	case SMTP:
		return upgradeSMTP(conn)
	case FTP:
		return upgradeFTP(conn)
	case IMAP:
		return upgradeIMAP(conn)
	case POP3:
		return upgradePOP3(conn)
	default:
		return tlserr.NewNotImplemented(fmt.Sprintf("starttls protocol %q", proto))
	}
}

func upgradeSMTP(conn Conn) error {
	lr := &lineReader{conn: conn}

	if err := expectBanner(lr, "220"); err != nil {
		return fmt.Errorf("starttls/smtp: banner: %w", err)
	}

	if err := conn.Send([]byte("EHLO tls-sak\r\n")); err != nil {
		return tlserr.NewTransportError("starttls/smtp: send EHLO", err)
	}

	hasSTARTTLS := false
	for {
		line, err := lr.readLine()
		if err != nil {
			return tlserr.NewTransportError("starttls/smtp: read capabilities", err)
		}
		if strings.Contains(line, "STARTTLS") {
			hasSTARTTLS = true
		}
		if strings.HasPrefix(line, "250 ") {
			break
		}
		if !strings.HasPrefix(line, "250") {
			return fmt.Errorf("starttls/smtp: unexpected capability line %q", line)
		}
	}
	if !hasSTARTTLS {
		return fmt.Errorf("starttls/smtp: server does not advertise STARTTLS")
	}

	if err := conn.Send([]byte("STARTTLS\r\n")); err != nil {
		return tlserr.NewTransportError("starttls/smtp: send STARTTLS", err)
	}
	line, err := lr.readLine()
	if err != nil {
		return tlserr.NewTransportError("starttls/smtp: read STARTTLS response", err)
	}
	if !strings.HasPrefix(line, "220 ") {
		return fmt.Errorf("starttls/smtp: server refused STARTTLS: %q", line)
	}
	return nil
}

func upgradeFTP(conn Conn) error {
	lr := &lineReader{conn: conn}

	if err := expectBanner(lr, "220"); err != nil {
		return fmt.Errorf("starttls/ftp: banner: %w", err)
	}

	if err := conn.Send([]byte("AUTH TLS\r\n")); err != nil {
		return tlserr.NewTransportError("starttls/ftp: send AUTH TLS", err)
	}
	line, err := lr.readLine()
	if err != nil {
		return tlserr.NewTransportError("starttls/ftp: read AUTH TLS response", err)
	}
	if !strings.HasPrefix(line, "234 ") {
		return fmt.Errorf("starttls/ftp: server refused AUTH TLS: %q", line)
	}
	return nil
}

func upgradeIMAP(conn Conn) error {
	lr := &lineReader{conn: conn}

	// The IMAP greeting is a single untagged "* OK ..." line.
	if _, err := lr.readLine(); err != nil {
		return tlserr.NewTransportError("starttls/imap: read greeting", err)
	}

	if err := conn.Send([]byte("a1 STARTTLS\r\n")); err != nil {
		return tlserr.NewTransportError("starttls/imap: send STARTTLS", err)
	}
	line, err := lr.readLine()
	if err != nil {
		return tlserr.NewTransportError("starttls/imap: read STARTTLS response", err)
	}
	if !strings.HasPrefix(line, "a1 OK") {
		return fmt.Errorf("starttls/imap: server refused STARTTLS: %q", line)
	}
	return nil
}

func upgradePOP3(conn Conn) error {
	lr := &lineReader{conn: conn}

	if _, err := lr.readLine(); err != nil {
		return tlserr.NewTransportError("starttls/pop3: read greeting", err)
	}

	if err := conn.Send([]byte("STLS\r\n")); err != nil {
		return tlserr.NewTransportError("starttls/pop3: send STLS", err)
	}
	line, err := lr.readLine()
	if err != nil {
		return tlserr.NewTransportError("starttls/pop3: read STLS response", err)
	}
	if !strings.HasPrefix(line, "+OK") {
		return fmt.Errorf("starttls/pop3: server refused STLS: %q", line)
	}
	return nil
}

// expectBanner reads lines until one begins with code+" " (a tolerant
// match for multi-line "220-..." continuation banners, mirroring the
// source's startswith('220')/startswith('220 ') distinction).
func expectBanner(lr *lineReader, code string) error {
	for {
		line, err := lr.readLine()
		if err != nil {
			return err
		}
		if strings.HasPrefix(line, code+" ") {
			return nil
		}
		if !strings.HasPrefix(line, code) {
			return fmt.Errorf("unexpected banner line %q", line)
		}
	}
}
