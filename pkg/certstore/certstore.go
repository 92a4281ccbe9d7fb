// Package certstore loads trust anchors from PEM/DER bundles or Java
// keystores and resolves a leaf certificate's issuer against them.
package certstore

import (
	"encoding/pem"
	"fmt"
	"os"

	keystore "github.com/pavlo-v-chernykh/keystore-go/v4"

	"github.com/tlssak/scanner/pkg/certview"
)

// TrustStore is an in-memory collection of trust anchor certificates.
type TrustStore struct {
	certs []*certview.Certificate
}

// Certificates returns every trust anchor currently loaded.
func (ts *TrustStore) Certificates() []*certview.Certificate { return ts.certs }

// Add appends cert to the store.
func (ts *TrustStore) Add(cert *certview.Certificate) { ts.certs = append(ts.certs, cert) }

// Load reads one or more PEM bundles (or raw DER files) into a new
// TrustStore.
func Load(paths ...string) (*TrustStore, error) {
	ts := &TrustStore{}
	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("certstore: reading %s: %w", path, err)
		}
		if err := ts.addPEMOrDER(raw); err != nil {
			return nil, fmt.Errorf("certstore: %s: %w", path, err)
		}
	}
	return ts, nil
}

func (ts *TrustStore) addPEMOrDER(raw []byte) error {
	rest := raw
	found := false
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		found = true
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := certview.Parse(block.Bytes)
		if err != nil {
			return fmt.Errorf("parsing PEM certificate: %w", err)
		}
		ts.Add(cert)
	}
	if found {
		return nil
	}

	// No PEM markers at all: treat the whole file as a single raw DER
	// certificate.
	cert, err := certview.Parse(raw)
	if err != nil {
		return fmt.Errorf("parsing DER certificate: %w", err)
	}
	ts.Add(cert)
	return nil
}

// LoadJKS reads a Java KeyStore's trusted certificate entries into a new
// TrustStore. Private key entries, if any, are ignored — this scanner only
// ever needs a JKS as a bag of CA certificates, the way a JVM's default
// cacerts store is normally distributed.
func LoadJKS(path string, password []byte) (*TrustStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("certstore: opening %s: %w", path, err)
	}
	defer f.Close()

	ks := keystore.New()
	if err := ks.Load(f, password); err != nil {
		return nil, fmt.Errorf("certstore: loading JKS %s: %w", path, err)
	}

	ts := &TrustStore{}
	for _, alias := range ks.Aliases() {
		entry, err := ks.GetTrustedCertificateEntry(alias)
		if err != nil {
			// Not every alias need be a trusted-certificate entry (a JKS
			// may also carry private-key entries); skip anything else.
			continue
		}
		cert, err := certview.Parse(entry.Certificate.Content)
		if err != nil {
			return nil, fmt.Errorf("certstore: JKS alias %q: %w", alias, err)
		}
		ts.Add(cert)
	}
	return ts, nil
}

// FindIssuer returns the trust anchor whose subject DN matches leaf's
// issuer DN (byte-exact, per certview.IssuerMatchesSubject), if any. This
// is a single-hop lookup: it does not walk a multi-certificate chain, only
// resolves the immediate issuer of leaf.
func (ts *TrustStore) FindIssuer(leaf *certview.Certificate) (*certview.Certificate, bool) {
	for _, candidate := range ts.certs {
		if leaf.IssuerMatchesSubject(candidate) {
			return candidate, true
		}
	}
	return nil, false
}
