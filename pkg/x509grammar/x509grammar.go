// Package x509grammar decodes the RFC 5280 Certificate grammar on top of
// pkg/asn1's schema-driven SEQUENCE/SET/CHOICE decoder. It stops at typed
// Go values for every field except the parts RFC 5280 itself leaves open:
// AttributeValue and AlgorithmIdentifier parameters (both ANY) are left as
// raw asn1.Element values for pkg/certview to decode_as once it knows which
// concrete type applies, and an Extension value is kept as the raw content
// bytes of its extnValue OCTET STRING.
package x509grammar

import (
	"fmt"
	"math/big"
	"time"

	"github.com/tlssak/scanner/pkg/asn1"
	"github.com/tlssak/scanner/pkg/stream"
)

// Well-known OIDs the scanner needs to name, from RFC 5280 and PKCS#1.
var (
	OIDRSAEncryption          = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 1}
	OIDSHA1WithRSAEncryption  = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 5}
	OIDSHA256WithRSAEncrypt   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 11}
	OIDSHA384WithRSAEncrypt   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 12}
	OIDSHA512WithRSAEncrypt   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 13}
	OIDCommonName             = asn1.ObjectIdentifier{2, 5, 4, 3}
	OIDCountryName            = asn1.ObjectIdentifier{2, 5, 4, 6}
	OIDOrganizationName       = asn1.ObjectIdentifier{2, 5, 4, 10}
	OIDOrganizationalUnit     = asn1.ObjectIdentifier{2, 5, 4, 11}
	OIDSubjectAltName         = asn1.ObjectIdentifier{2, 5, 29, 17}
	OIDBasicConstraints       = asn1.ObjectIdentifier{2, 5, 29, 19}
	OIDKeyUsage               = asn1.ObjectIdentifier{2, 5, 29, 15}
	OIDExtendedKeyUsage       = asn1.ObjectIdentifier{2, 5, 29, 37}
	OIDAuthorityKeyIdentifier = asn1.ObjectIdentifier{2, 5, 29, 35}
	OIDSubjectKeyIdentifier   = asn1.ObjectIdentifier{2, 5, 29, 14}
)

// oidNames gives a short label for the OIDs above, for reports and logs.
var oidNames = map[string]string{
	OIDRSAEncryption.String():          "rsaEncryption",
	OIDSHA1WithRSAEncryption.String():  "sha1WithRSAEncryption",
	OIDSHA256WithRSAEncrypt.String():   "sha256WithRSAEncryption",
	OIDSHA384WithRSAEncrypt.String():   "sha384WithRSAEncryption",
	OIDSHA512WithRSAEncrypt.String():   "sha512WithRSAEncryption",
	OIDCommonName.String():             "CN",
	OIDCountryName.String():            "C",
	OIDOrganizationName.String():       "O",
	OIDOrganizationalUnit.String():     "OU",
	OIDSubjectAltName.String():         "subjectAltName",
	OIDBasicConstraints.String():       "basicConstraints",
	OIDKeyUsage.String():               "keyUsage",
	OIDExtendedKeyUsage.String():       "extKeyUsage",
	OIDAuthorityKeyIdentifier.String(): "authorityKeyIdentifier",
	OIDSubjectKeyIdentifier.String():   "subjectKeyIdentifier",
}

// OIDName returns a short mnemonic for oid, or its dotted form if unknown.
func OIDName(oid asn1.ObjectIdentifier) string {
	if name, ok := oidNames[oid.String()]; ok {
		return name
	}
	return oid.String()
}

// AlgorithmIdentifier is RFC 5280 §4.1.1.2.
type AlgorithmIdentifier struct {
	Algorithm  asn1.ObjectIdentifier
	Parameters *asn1.Element // ANY, optional; nil when absent
}

// AttributeTypeAndValue is RFC 5280 §4.1.2.4.
type AttributeTypeAndValue struct {
	Type  asn1.ObjectIdentifier
	Value *asn1.Element // ANY: typically a DirectoryString CHOICE arm
}

// RelativeDistinguishedName is a SET OF AttributeTypeAndValue.
type RelativeDistinguishedName []AttributeTypeAndValue

// Name is RFC 5280's Name CHOICE, which today has exactly one arm
// (rdnSequence).
type Name struct {
	RDNSequence []RelativeDistinguishedName
}

// Validity is RFC 5280 §4.1.2.5.
type Validity struct {
	NotBefore time.Time
	NotAfter  time.Time
}

// SubjectPublicKeyInfo is RFC 5280 §4.1.2.7.
type SubjectPublicKeyInfo struct {
	Algorithm AlgorithmIdentifier
	PublicKey asn1.BitString
}

// Extension is RFC 5280 §4.1.2.9's Extension SEQUENCE.
type Extension struct {
	ID       asn1.ObjectIdentifier
	Critical bool
	Value    []byte
}

// TBSCertificate is RFC 5280 §4.1.2, with Raw holding the byte-exact
// encoding of this SEQUENCE (header and content) so callers can hash it
// for signature verification without re-encoding (and thus risking a
// mismatch with whatever non-canonical BER the issuing CA actually used).
type TBSCertificate struct {
	Version              int
	SerialNumber         *big.Int
	Signature            AlgorithmIdentifier
	Issuer               Name
	Validity             Validity
	Subject              Name
	SubjectPublicKeyInfo SubjectPublicKeyInfo
	Extensions           []Extension
	Raw                  []byte
}

// Certificate is RFC 5280 §4.1's top-level Certificate SEQUENCE.
type Certificate struct {
	TBSCertificate     TBSCertificate
	SignatureAlgorithm AlgorithmIdentifier
	SignatureValue     asn1.BitString
}

// ParseCertificate decodes a DER-encoded X.509 certificate.
func ParseCertificate(der []byte) (*Certificate, error) {
	root := stream.NewSlice(der)
	rootElem, err := asn1.ReadElement(root)
	if err != nil {
		return nil, fmt.Errorf("x509grammar: reading Certificate: %w", err)
	}
	if rootElem.Identifier.Class != asn1.ClassUniversal || rootElem.Identifier.Tag != asn1.TagSequence {
		return nil, fmt.Errorf("x509grammar: Certificate is not a SEQUENCE: %s", rootElem.Identifier)
	}

	inner := stream.NewSlice(rootElem.Content)
	tbsStart := inner.Pos()
	tbsElem, err := asn1.ReadElement(inner)
	if err != nil {
		return nil, fmt.Errorf("x509grammar: reading tbsCertificate: %w", err)
	}
	tbsEnd := inner.Pos()
	// rootElem.Content is an in-memory buffer, so the TBSCertificate's
	// byte-exact encoding is simply the sub-slice the reads just walked
	// over — no need to re-serialize it and risk a canonicalization
	// mismatch with whatever the issuing CA actually emitted.
	tbsRaw := rootElem.Content[tbsStart:tbsEnd]

	tbs, err := parseTBSCertificate(tbsElem, tbsRaw)
	if err != nil {
		return nil, fmt.Errorf("x509grammar: %w", err)
	}

	sigAlgElem, sigValElem, err := parseCertTrailer(inner)
	if err != nil {
		return nil, fmt.Errorf("x509grammar: %w", err)
	}

	sigAlg, err := parseAlgorithmIdentifier(sigAlgElem)
	if err != nil {
		return nil, fmt.Errorf("x509grammar: certificate signatureAlgorithm: %w", err)
	}
	sigVal, err := asn1.DecodeBitString(sigValElem.Content)
	if err != nil {
		return nil, fmt.Errorf("x509grammar: certificate signatureValue: %w", err)
	}

	return &Certificate{
		TBSCertificate:     *tbs,
		SignatureAlgorithm: sigAlg,
		SignatureValue:     sigVal,
	}, nil
}

func parseCertTrailer(s *stream.Slice) (sigAlg, sigVal *asn1.Element, err error) {
	sigAlg, err = asn1.ReadElement(s)
	if err != nil {
		return nil, nil, fmt.Errorf("reading signatureAlgorithm: %w", err)
	}
	sigVal, err = asn1.ReadElement(s)
	if err != nil {
		return nil, nil, fmt.Errorf("reading signatureValue: %w", err)
	}
	return sigAlg, sigVal, nil
}

var tbsCertificateFields = []asn1.FieldSpec{
	{Name: "version", Context: 0, Explicit: true, Optional: true},
	{Name: "serialNumber", Universal: asn1.TagInteger, Context: -1},
	{Name: "signature", Universal: asn1.TagSequence, Context: -1, Constructed: true},
	{Name: "issuer", Universal: asn1.TagSequence, Context: -1, Constructed: true},
	{Name: "validity", Universal: asn1.TagSequence, Context: -1, Constructed: true},
	{Name: "subject", Universal: asn1.TagSequence, Context: -1, Constructed: true},
	{Name: "subjectPublicKeyInfo", Universal: asn1.TagSequence, Context: -1, Constructed: true},
	{Name: "issuerUniqueID", Context: 1, Explicit: false, Constructed: false, Optional: true},
	{Name: "subjectUniqueID", Context: 2, Explicit: false, Constructed: false, Optional: true},
	{Name: "extensions", Context: 3, Explicit: true, Optional: true},
}

func parseTBSCertificate(elem *asn1.Element, raw []byte) (*TBSCertificate, error) {
	fields, err := asn1.ParseSequence(elem.Content, tbsCertificateFields)
	if err != nil {
		return nil, fmt.Errorf("tbsCertificate: %w", err)
	}

	tbs := &TBSCertificate{Version: 1, Raw: raw}
	if v, ok := fields["version"]; ok {
		n, err := asn1.DecodeInteger(v.Content)
		if err != nil {
			return nil, fmt.Errorf("tbsCertificate.version: %w", err)
		}
		tbs.Version = int(n.Int64()) + 1 // DER encodes v1 as 0, v2 as 1, v3 as 2
	}

	serial, err := asn1.DecodeInteger(fields["serialNumber"].Content)
	if err != nil {
		return nil, fmt.Errorf("tbsCertificate.serialNumber: %w", err)
	}
	tbs.SerialNumber = serial

	sig, err := parseAlgorithmIdentifier(fields["signature"])
	if err != nil {
		return nil, fmt.Errorf("tbsCertificate.signature: %w", err)
	}
	tbs.Signature = sig

	issuer, err := parseName(fields["issuer"])
	if err != nil {
		return nil, fmt.Errorf("tbsCertificate.issuer: %w", err)
	}
	tbs.Issuer = issuer

	validity, err := parseValidity(fields["validity"])
	if err != nil {
		return nil, fmt.Errorf("tbsCertificate.validity: %w", err)
	}
	tbs.Validity = validity

	subject, err := parseName(fields["subject"])
	if err != nil {
		return nil, fmt.Errorf("tbsCertificate.subject: %w", err)
	}
	tbs.Subject = subject

	spki, err := parseSubjectPublicKeyInfo(fields["subjectPublicKeyInfo"])
	if err != nil {
		return nil, fmt.Errorf("tbsCertificate.subjectPublicKeyInfo: %w", err)
	}
	tbs.SubjectPublicKeyInfo = spki

	if extsField, ok := fields["extensions"]; ok {
		exts, err := parseExtensions(extsField)
		if err != nil {
			return nil, fmt.Errorf("tbsCertificate.extensions: %w", err)
		}
		tbs.Extensions = exts
	}

	return tbs, nil
}

// parseAlgorithmIdentifier is hand-walked rather than routed through
// ParseSequence: "parameters" is ANY (it may be NULL, an OID, a SEQUENCE of
// curve parameters, or simply absent), which ParseSequence's exact-tag
// matching has no way to express.
func parseAlgorithmIdentifier(elem *asn1.Element) (AlgorithmIdentifier, error) {
	s := stream.NewSlice(elem.Content)
	algElem, err := asn1.ReadElement(s)
	if err != nil {
		return AlgorithmIdentifier{}, fmt.Errorf("algorithm: %w", err)
	}
	alg, err := asn1.DecodeOID(algElem.Content)
	if err != nil {
		return AlgorithmIdentifier{}, fmt.Errorf("algorithm: %w", err)
	}

	var params *asn1.Element
	if s.More() {
		p, err := asn1.ReadElement(s)
		if err != nil {
			return AlgorithmIdentifier{}, fmt.Errorf("parameters: %w", err)
		}
		params = p
	}
	return AlgorithmIdentifier{Algorithm: alg, Parameters: params}, nil
}

func parseName(elem *asn1.Element) (Name, error) {
	rdnElems, err := asn1.ParseRepeated(elem.Content)
	if err != nil {
		return Name{}, fmt.Errorf("rdnSequence: %w", err)
	}
	var name Name
	for _, rdnElem := range rdnElems {
		atvElems, err := asn1.ParseRepeated(rdnElem.Content)
		if err != nil {
			return Name{}, fmt.Errorf("relativeDistinguishedName: %w", err)
		}
		var rdn RelativeDistinguishedName
		for _, atvElem := range atvElems {
			atv, err := parseAttributeTypeAndValue(atvElem)
			if err != nil {
				return Name{}, err
			}
			rdn = append(rdn, atv)
		}
		name.RDNSequence = append(name.RDNSequence, rdn)
	}
	return name, nil
}

func parseAttributeTypeAndValue(elem *asn1.Element) (AttributeTypeAndValue, error) {
	s := stream.NewSlice(elem.Content)
	typeElem, err := asn1.ReadElement(s)
	if err != nil {
		return AttributeTypeAndValue{}, fmt.Errorf("attributeTypeAndValue.type: %w", err)
	}
	oid, err := asn1.DecodeOID(typeElem.Content)
	if err != nil {
		return AttributeTypeAndValue{}, fmt.Errorf("attributeTypeAndValue.type: %w", err)
	}
	valueElem, err := asn1.ReadElement(s)
	if err != nil {
		return AttributeTypeAndValue{}, fmt.Errorf("attributeTypeAndValue.value: %w", err)
	}
	return AttributeTypeAndValue{Type: oid, Value: valueElem}, nil
}

func parseValidity(elem *asn1.Element) (Validity, error) {
	s := stream.NewSlice(elem.Content)
	notBefore, err := parseTime(s)
	if err != nil {
		return Validity{}, fmt.Errorf("notBefore: %w", err)
	}
	notAfter, err := parseTime(s)
	if err != nil {
		return Validity{}, fmt.Errorf("notAfter: %w", err)
	}
	return Validity{NotBefore: notBefore, NotAfter: notAfter}, nil
}

func parseTime(s *stream.Slice) (time.Time, error) {
	elem, err := asn1.ReadElement(s)
	if err != nil {
		return time.Time{}, err
	}
	switch elem.Identifier.Tag {
	case asn1.TagUTCTime:
		return asn1.DecodeUTCTime(elem.Content)
	case asn1.TagGeneralizedTime:
		return asn1.DecodeGeneralizedTime(elem.Content)
	default:
		return time.Time{}, fmt.Errorf("unexpected time tag %d", elem.Identifier.Tag)
	}
}

func parseSubjectPublicKeyInfo(elem *asn1.Element) (SubjectPublicKeyInfo, error) {
	s := stream.NewSlice(elem.Content)
	algElem, err := asn1.ReadElement(s)
	if err != nil {
		return SubjectPublicKeyInfo{}, fmt.Errorf("algorithm: %w", err)
	}
	alg, err := parseAlgorithmIdentifier(algElem)
	if err != nil {
		return SubjectPublicKeyInfo{}, fmt.Errorf("algorithm: %w", err)
	}
	keyElem, err := asn1.ReadElement(s)
	if err != nil {
		return SubjectPublicKeyInfo{}, fmt.Errorf("subjectPublicKey: %w", err)
	}
	key, err := asn1.DecodeBitString(keyElem.Content)
	if err != nil {
		return SubjectPublicKeyInfo{}, fmt.Errorf("subjectPublicKey: %w", err)
	}
	return SubjectPublicKeyInfo{Algorithm: alg, PublicKey: key}, nil
}

func parseExtensions(wrapper *asn1.Element) ([]Extension, error) {
	extElems, err := asn1.ParseRepeated(wrapper.Content)
	if err != nil {
		return nil, err
	}
	exts := make([]Extension, 0, len(extElems))
	for _, ee := range extElems {
		ext, err := parseExtension(ee)
		if err != nil {
			return nil, err
		}
		exts = append(exts, ext)
	}
	return exts, nil
}

func parseExtension(elem *asn1.Element) (Extension, error) {
	s := stream.NewSlice(elem.Content)
	idElem, err := asn1.ReadElement(s)
	if err != nil {
		return Extension{}, fmt.Errorf("extension.extnID: %w", err)
	}
	oid, err := asn1.DecodeOID(idElem.Content)
	if err != nil {
		return Extension{}, fmt.Errorf("extension.extnID: %w", err)
	}

	critical := false
	m := stream.NewMarkable(s)
	if err := m.Mark(); err != nil {
		return Extension{}, err
	}
	next, err := asn1.ReadElement(m)
	if err != nil {
		return Extension{}, fmt.Errorf("extension.critical or extnValue: %w", err)
	}
	if next.Identifier.Class == asn1.ClassUniversal && next.Identifier.Tag == asn1.TagBoolean {
		if err := m.Commit(); err != nil {
			return Extension{}, err
		}
		critical, err = asn1.DecodeBoolean(next.Content)
		if err != nil {
			return Extension{}, fmt.Errorf("extension.critical: %w", err)
		}
		next, err = asn1.ReadElement(m)
		if err != nil {
			return Extension{}, fmt.Errorf("extension.extnValue: %w", err)
		}
	}
	if next.Identifier.Class != asn1.ClassUniversal || next.Identifier.Tag != asn1.TagOctetString {
		return Extension{}, fmt.Errorf("extension.extnValue: unexpected tag %s", next.Identifier)
	}
	return Extension{ID: oid, Critical: critical, Value: next.Content}, nil
}
