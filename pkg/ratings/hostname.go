package ratings

import (
	"strings"

	"github.com/weppos/publicsuffix-go/publicsuffix"

	"github.com/tlssak/scanner/pkg/certview"
)

// HostnameRating flags a SAN wildcard that covers an entire registrable
// public suffix (e.g. "*.co.uk") as insecure — a refinement on top of
// certview.HostnameMatches, which only does literal and wildcard-suffix
// matching and is left unchanged by this package.
func HostnameRating(cert *certview.Certificate) Verdict {
	for _, name := range cert.DNSNames() {
		if !strings.HasPrefix(name, "*.") {
			continue
		}
		base := strings.TrimPrefix(name, "*.")

		// base itself being a registered public suffix (e.g. "co.uk") means
		// the wildcard covers every domain registered under it.
		if _, err := publicsuffix.Parse(base); err != nil {
			return Verdict{Status: "insecure", Rating: 0}
		}
	}
	return Verdict{Status: "secure", Rating: 2}
}
