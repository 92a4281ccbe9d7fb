// Command tlssak is a TLS posture scanner: it enumerates the cipher
// suites a server accepts per protocol version, checks whether the
// server or the client dictates the negotiated suite, and fetches the
// certificate chain for offline inspection.
package main

import "github.com/tlssak/scanner/cmd"

func main() {
	cmd.Execute()
}
