// Package certview wraps the raw x509grammar.Certificate with the typed
// accessors a TLS scan actually needs: hostname matching, validity-window
// checks, and PKCS#1 v1.5 signature verification against a candidate
// issuer. It is the layer where ANY fields (DirectoryString attribute
// values, SubjectAltName's GeneralNames) get decode_as'd into concrete
// Go values.
package certview

import (
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/tlssak/scanner/pkg/asn1"
	"github.com/tlssak/scanner/pkg/x509grammar"
)

// Certificate is the scanner's working view of one parsed certificate.
type Certificate struct {
	grammar *x509grammar.Certificate
	der     []byte
}

// Parse decodes der into a Certificate.
func Parse(der []byte) (*Certificate, error) {
	g, err := x509grammar.ParseCertificate(der)
	if err != nil {
		return nil, err
	}
	return &Certificate{grammar: g, der: der}, nil
}

// Raw returns the original DER bytes this Certificate was parsed from.
func (c *Certificate) Raw() []byte { return c.der }

// Grammar exposes the underlying decoded grammar for callers (ratings
// enrichment) that need fields this view doesn't surface directly.
func (c *Certificate) Grammar() *x509grammar.Certificate { return c.grammar }

// SerialNumber returns the certificate's serial number.
func (c *Certificate) SerialNumber() *big.Int { return c.grammar.TBSCertificate.SerialNumber }

// Version returns 1, 2, or 3.
func (c *Certificate) Version() int { return c.grammar.TBSCertificate.Version }

// dnString renders a Name as an RFC 2253-ish "CN=...,O=...,C=..." string,
// decoding each AttributeTypeAndValue's ANY value as a DirectoryString.
func dnString(name x509grammar.Name) string {
	var parts []string
	for _, rdn := range name.RDNSequence {
		for _, atv := range rdn {
			v, err := decodeDirectoryString(atv.Value)
			if err != nil {
				v = fmt.Sprintf("<undecodable:%x>", atv.Value.Content)
			}
			parts = append(parts, fmt.Sprintf("%s=%s", x509grammar.OIDName(atv.Type), v))
		}
	}
	return strings.Join(parts, ",")
}

// decodeDirectoryString decode_as's an ANY element as RFC 5280's
// DirectoryString CHOICE: PrintableString, UTF8String, or BMPString, plus
// IA5String (the
// teletexString and universalString arms are vanishingly rare in the wild
// and left unsupported, matching the CHOICE arms the reference grammar
// actually enumerates).
func decodeDirectoryString(elem *asn1.Element) (string, error) {
	switch elem.Identifier.Tag {
	case asn1.TagPrintableString:
		return asn1.DecodePrintableString(elem.Content)
	case asn1.TagUTF8String:
		return asn1.DecodeUTF8String(elem.Content)
	case asn1.TagBMPString:
		return asn1.DecodeBMPString(elem.Content)
	case asn1.TagIA5String:
		return asn1.DecodeIA5String(elem.Content)
	default:
		return "", fmt.Errorf("certview: unsupported DirectoryString arm, tag %d", elem.Identifier.Tag)
	}
}

// Issuer renders the issuer distinguished name.
func (c *Certificate) Issuer() string { return dnString(c.grammar.TBSCertificate.Issuer) }

// Subject renders the subject distinguished name.
func (c *Certificate) Subject() string { return dnString(c.grammar.TBSCertificate.Subject) }

// IssuerRawName returns the raw Name, for issuer/subject byte comparisons
// (certstore's FindIssuer) that must not depend on DirectoryString
// decoding succeeding.
func (c *Certificate) IssuerRawName() x509grammar.Name { return c.grammar.TBSCertificate.Issuer }

// SubjectRawName returns the raw subject Name.
func (c *Certificate) SubjectRawName() x509grammar.Name { return c.grammar.TBSCertificate.Subject }

// CommonName returns the subject's CN attribute, or "" if absent.
func (c *Certificate) CommonName() string {
	for _, rdn := range c.grammar.TBSCertificate.Subject.RDNSequence {
		for _, atv := range rdn {
			if atv.Type.Equal(x509grammar.OIDCommonName) {
				v, err := decodeDirectoryString(atv.Value)
				if err == nil {
					return v
				}
			}
		}
	}
	return ""
}

// DNSNames returns the dNSName entries of the subjectAltName extension, if
// present.
func (c *Certificate) DNSNames() []string {
	ext := c.extension(x509grammar.OIDSubjectAltName)
	if ext == nil {
		return nil
	}
	names, err := parseSubjectAltNames(ext.Value)
	if err != nil {
		return nil
	}
	return names.DNSNames
}

// EmailAddresses returns the rfc822Name entries of the subjectAltName
// extension, if present.
func (c *Certificate) EmailAddresses() []string {
	ext := c.extension(x509grammar.OIDSubjectAltName)
	if ext == nil {
		return nil
	}
	names, err := parseSubjectAltNames(ext.Value)
	if err != nil {
		return nil
	}
	return names.EmailAddresses
}

func (c *Certificate) extension(oid asn1.ObjectIdentifier) *x509grammar.Extension {
	for i, ext := range c.grammar.TBSCertificate.Extensions {
		if ext.ID.Equal(oid) {
			return &c.grammar.TBSCertificate.Extensions[i]
		}
	}
	return nil
}

// HostnameMatches reports whether host is covered by the certificate: host
// is compared, case-insensitively, against the union of the subject CN and
// every subjectAltName dNSName. A literal name matches only an equal host;
// a "*.rest" name matches any host that ends with ".rest", however many
// labels come before it. No public-suffix check is made here.
func (c *Certificate) HostnameMatches(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))

	candidates := c.DNSNames()
	if cn := c.CommonName(); cn != "" {
		candidates = append(candidates, cn)
	}

	for _, candidate := range candidates {
		if hostnameMatchesPattern(host, strings.ToLower(candidate)) {
			return true
		}
	}
	return false
}

func hostnameMatchesPattern(host, pattern string) bool {
	if !strings.HasPrefix(pattern, "*.") {
		return host == pattern
	}
	rest := pattern[2:]
	if rest == "" {
		return false
	}
	return strings.HasSuffix(host, "."+rest)
}

// IsValidNow reports whether the certificate's validity window contains
// the current time.
func (c *Certificate) IsValidNow() bool {
	return c.IsValidAt(time.Now())
}

// IsValidAt reports whether the certificate's validity window contains t.
func (c *Certificate) IsValidAt(t time.Time) bool {
	v := c.grammar.TBSCertificate.Validity
	return !t.Before(v.NotBefore) && !t.After(v.NotAfter)
}

// NotBefore and NotAfter expose the validity window directly.
func (c *Certificate) NotBefore() time.Time { return c.grammar.TBSCertificate.Validity.NotBefore }
func (c *Certificate) NotAfter() time.Time  { return c.grammar.TBSCertificate.Validity.NotAfter }

// digestInfoPrefixes are the PKCS#1 v1.5 DigestInfo ASN.1 prefixes for the
// digest algorithms RSA signature verification below supports, taken from
// RFC 8017 Appendix B (the same constants crypto/rsa computes by hand
// internally — this package avoids crypto/rsa's own PKCS1v15 verification
// entry point so the hash choice stays tied to the certificate's own
// declared signature algorithm rather than a caller-supplied crypto.Hash).
var digestInfoPrefixes = map[string][]byte{
	"sha1": {
		0x30, 0x21, 0x30, 0x09, 0x06, 0x05, 0x2b, 0x0e, 0x03, 0x02, 0x1a,
		0x05, 0x00, 0x04, 0x14,
	},
	"sha256": {
		0x30, 0x31, 0x30, 0x0d, 0x06, 0x09, 0x60, 0x86, 0x48, 0x01, 0x65,
		0x03, 0x04, 0x02, 0x01, 0x05, 0x00, 0x04, 0x20,
	},
	"sha384": {
		0x30, 0x41, 0x30, 0x0d, 0x06, 0x09, 0x60, 0x86, 0x48, 0x01, 0x65,
		0x03, 0x04, 0x02, 0x02, 0x05, 0x00, 0x04, 0x30,
	},
	"sha512": {
		0x30, 0x51, 0x30, 0x0d, 0x06, 0x09, 0x60, 0x86, 0x48, 0x01, 0x65,
		0x03, 0x04, 0x02, 0x03, 0x05, 0x00, 0x04, 0x40,
	},
}

func digestAlgorithmFor(sigAlg asn1.ObjectIdentifier) (digest string, hash func([]byte) []byte, ok bool) {
	switch {
	case sigAlg.Equal(x509grammar.OIDSHA1WithRSAEncryption):
		return "sha1", func(b []byte) []byte { h := sha1.Sum(b); return h[:] }, true
	case sigAlg.Equal(x509grammar.OIDSHA256WithRSAEncrypt):
		return "sha256", func(b []byte) []byte { h := sha256.Sum256(b); return h[:] }, true
	case sigAlg.Equal(x509grammar.OIDSHA384WithRSAEncrypt):
		return "sha384", func(b []byte) []byte { h := sha512.Sum384(b); return h[:] }, true
	case sigAlg.Equal(x509grammar.OIDSHA512WithRSAEncrypt):
		return "sha512", func(b []byte) []byte { h := sha512.Sum512(b); return h[:] }, true
	default:
		return "", nil, false
	}
}

// VerifySignedBy reports whether c's signature validates against issuer's
// RSA public key, using the digest algorithm c's own signatureAlgorithm
// declares. It hashes c.TBSCertificate.Raw directly — the byte-exact
// sub-slice x509grammar captured while parsing — rather than re-encoding
// the decoded structure, so a CA using slightly non-canonical (but valid)
// BER still verifies correctly.
func (c *Certificate) VerifySignedBy(issuer *Certificate) (bool, error) {
	digestName, hashFn, ok := digestAlgorithmFor(c.grammar.SignatureAlgorithm.Algorithm)
	if !ok {
		return false, fmt.Errorf("certview: unsupported signature algorithm %s", x509grammar.OIDName(c.grammar.SignatureAlgorithm.Algorithm))
	}
	prefix, ok := digestInfoPrefixes[digestName]
	if !ok {
		return false, fmt.Errorf("certview: no DigestInfo prefix for %s", digestName)
	}

	pub, err := issuer.rsaPublicKey()
	if err != nil {
		return false, fmt.Errorf("certview: issuer public key: %w", err)
	}

	digest := hashFn(c.grammar.TBSCertificate.Raw)
	wantEM := append(append([]byte{}, prefix...), digest...)

	sig := c.grammar.SignatureValue.Bytes
	if c.grammar.SignatureValue.UnusedBits != 0 {
		return false, fmt.Errorf("certview: signature BIT STRING has non-zero unused bits")
	}

	k := (pub.N.BitLen() + 7) / 8
	if len(sig) != k {
		return false, fmt.Errorf("certview: signature length %d does not match modulus size %d", len(sig), k)
	}

	c2 := new(big.Int).SetBytes(sig)
	m := new(big.Int).Exp(c2, big.NewInt(int64(pub.E)), pub.N)
	em := m.FillBytes(make([]byte, k))

	// PKCS#1 v1.5: EM = 0x00 || 0x01 || PS (0xFF*) || 0x00 || DigestInfo
	gotEM, err := unpadPKCS1v15(em, len(wantEM))
	if err != nil {
		return false, err
	}

	return subtle.ConstantTimeCompare(gotEM, wantEM) == 1, nil
}

func unpadPKCS1v15(em []byte, wantLen int) ([]byte, error) {
	if len(em) < 11 || em[0] != 0x00 || em[1] != 0x01 {
		return nil, fmt.Errorf("certview: invalid PKCS#1 v1.5 block type")
	}
	i := 2
	for i < len(em) && em[i] == 0xFF {
		i++
	}
	if i == len(em) || em[i] != 0x00 {
		return nil, fmt.Errorf("certview: invalid PKCS#1 v1.5 padding")
	}
	i++
	rest := em[i:]
	if len(rest) != wantLen {
		return nil, fmt.Errorf("certview: DigestInfo length %d does not match expected %d", len(rest), wantLen)
	}
	return rest, nil
}

// rsaPublicKey decodes the certificate's SubjectPublicKeyInfo as an RSA
// public key.
func (c *Certificate) rsaPublicKey() (*rsa.PublicKey, error) {
	spki := c.grammar.TBSCertificate.SubjectPublicKeyInfo
	if !spki.Algorithm.Algorithm.Equal(x509grammar.OIDRSAEncryption) {
		return nil, fmt.Errorf("certview: subjectPublicKeyInfo is not rsaEncryption")
	}
	if spki.PublicKey.UnusedBits != 0 {
		return nil, fmt.Errorf("certview: subjectPublicKey BIT STRING has non-zero unused bits")
	}

	fields, err := asn1.ParseSequence(spki.PublicKey.Bytes, []asn1.FieldSpec{
		{Name: "modulus", Universal: asn1.TagInteger, Context: -1},
		{Name: "publicExponent", Universal: asn1.TagInteger, Context: -1},
	})
	if err != nil {
		return nil, fmt.Errorf("certview: RSAPublicKey: %w", err)
	}
	n, err := asn1.DecodeInteger(fields["modulus"].Content)
	if err != nil {
		return nil, fmt.Errorf("certview: RSAPublicKey.modulus: %w", err)
	}
	e, err := asn1.DecodeInteger(fields["publicExponent"].Content)
	if err != nil {
		return nil, fmt.Errorf("certview: RSAPublicKey.publicExponent: %w", err)
	}
	return &rsa.PublicKey{N: n, E: int(e.Int64())}, nil
}

// IssuerMatchesSubject reports whether c's issuer DN is byte-identical to
// candidate's subject DN, the single-hop chain-building check certstore
// uses — deliberately comparing raw attribute bytes rather than the
// human-rendered string, since two DNs that print the same can still
// differ in string type (PrintableString vs UTF8String) or attribute
// order and RFC 5280 treats those as different names.
func (c *Certificate) IssuerMatchesSubject(candidate *Certificate) bool {
	return nameBytesEqual(c.grammar.TBSCertificate.Issuer, candidate.grammar.TBSCertificate.Subject)
}

func nameBytesEqual(a, b x509grammar.Name) bool {
	if len(a.RDNSequence) != len(b.RDNSequence) {
		return false
	}
	for i := range a.RDNSequence {
		ra, rb := a.RDNSequence[i], b.RDNSequence[i]
		if len(ra) != len(rb) {
			return false
		}
		for j := range ra {
			if !ra[j].Type.Equal(rb[j].Type) {
				return false
			}
			if ra[j].Value.Identifier != rb[j].Value.Identifier {
				return false
			}
			if string(ra[j].Value.Content) != string(rb[j].Value.Content) {
				return false
			}
		}
	}
	return true
}

// subjectAltNames is the decoded subset of GeneralNames this scanner acts
// on.
type subjectAltNames struct {
	DNSNames       []string
	EmailAddresses []string
}

// GeneralName tag numbers, RFC 5280 §4.2.1.6, taken as implicit
// [n] context tags inside the GeneralNames SEQUENCE OF.
const (
	generalNameRFC822Name = 1
	generalNameDNSName    = 2
)

func parseSubjectAltNames(extnValue []byte) (subjectAltNames, error) {
	elems, err := asn1.ParseRepeated(extnValue)
	if err != nil {
		return subjectAltNames{}, fmt.Errorf("certview: subjectAltName: %w", err)
	}

	var out subjectAltNames
	for _, e := range elems {
		if e.Identifier.Class != asn1.ClassContextSpecific {
			continue
		}
		switch e.Identifier.Tag {
		case generalNameDNSName:
			out.DNSNames = append(out.DNSNames, string(e.Content))
		case generalNameRFC822Name:
			out.EmailAddresses = append(out.EmailAddresses, string(e.Content))
		}
	}
	return out, nil
}

// Name is re-exported so callers outside this package can format a DN
// without reaching into pkg/x509grammar directly.
type Name = x509grammar.Name

// PKIXName renders a Name in the shape crypto/x509/pkix.Name prints, for
// reports that want a familiar "CN=..., O=..." layout.
func PKIXName(name Name) pkix.Name {
	var pn pkix.Name
	for _, rdn := range name.RDNSequence {
		for _, atv := range rdn {
			v, err := decodeDirectoryString(atv.Value)
			if err != nil {
				continue
			}
			switch {
			case atv.Type.Equal(x509grammar.OIDCommonName):
				pn.CommonName = v
			case atv.Type.Equal(x509grammar.OIDOrganizationName):
				pn.Organization = append(pn.Organization, v)
			case atv.Type.Equal(x509grammar.OIDCountryName):
				pn.Country = append(pn.Country, v)
			}
		}
	}
	return pn
}
