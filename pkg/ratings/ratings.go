// Package ratings is the optional, best-effort post-scan enrichment layer.
// It never participates in parsing or the handshake state machine; a
// failure here never fails a scan. Grounded on TLS_Rating/TLS_Ratings_Database
// (original_source/lib/tls/tlsratings.py) for the {status, rating, pfs,
// children} shape and the "worst child wins" parent-rating rule.
package ratings

import (
	zx509 "github.com/zmap/zcrypto/x509"
	"github.com/zmap/zlint/v3"
	"github.com/zmap/zlint/v3/lint"

	"github.com/tlssak/scanner/pkg/registry"
)

// Verdict is an alias for registry.RatingVerdict so callers don't need to
// import both packages to read one value.
type Verdict = registry.RatingVerdict

// Evaluate re-parses a fetched leaf certificate with zcrypto's
// wild-tolerant X.509 parser and runs the RFC 5280 / CA/Browser Forum
// baseline-requirements lint subset against it, mapping each lint's
// result onto the registry's rating shape.
func Evaluate(der []byte) (map[string]Verdict, error) {
	cert, err := zx509.ParseCertificate(der)
	if err != nil {
		return nil, err
	}

	reg, err := lint.GlobalRegistry().Filter(lint.FilterOptions{
		IncludeSources: lint.SourceList{lint.RFC5280, lint.CABFBaselineRequirements},
	})
	if err != nil {
		return nil, err
	}

	results := zlint.LintCertificateEx(cert, reg)

	verdicts := make(map[string]Verdict, len(results.Results))
	for name, result := range results.Results {
		verdicts[name] = verdictFromLintStatus(result.Status)
	}
	return verdicts, nil
}

func verdictFromLintStatus(status lint.LintStatus) Verdict {
	switch status {
	case lint.Pass:
		return Verdict{Status: "secure", Rating: 2}
	case lint.Info, lint.Warn:
		return Verdict{Status: "weak", Rating: 1}
	case lint.Error, lint.Fatal:
		return Verdict{Status: "insecure", Rating: 0}
	default: // NA, NE, Reserved — lint did not apply or could not execute.
		return Verdict{Status: "unknown", Rating: 0}
	}
}

// ParentRating folds a set of child verdicts into one, mirroring
// TLS_Rating.getParentRating: the parent's rating/status is the worst
// (lowest-rating) child's, and PFS is true if any child achieves it.
func ParentRating(children map[string]Verdict) Verdict {
	parent := Verdict{Status: "unknown", Rating: 0, Children: children}
	first := true
	for _, child := range children {
		if first || child.Rating < parent.Rating {
			first = false
			parent.Status = child.Status
			parent.Rating = child.Rating
		}
		if child.PFS {
			parent.PFS = true
		}
	}
	return parent
}
