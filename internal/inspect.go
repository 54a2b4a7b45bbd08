package internal

import (
	"bytes"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sensiblebit/webidkit"
)

// InspectResult holds what a WebID-TLS verifier sees in a certificate.
type InspectResult struct {
	Subject     string   `json:"subject"`
	Issuer      string   `json:"issuer"`
	Serial      string   `json:"serial"`
	NotBefore   string   `json:"not_before"`
	NotAfter    string   `json:"not_after"`
	Expired     bool     `json:"expired,omitempty"`
	SelfSigned  bool     `json:"self_signed"`
	ClientAuth  bool     `json:"client_auth"`
	WebIDs      []string `json:"webids,omitempty"`
	KeyAlgo     string   `json:"key_algorithm"`
	KeySize     int      `json:"key_size,omitempty"`
	Modulus     string   `json:"modulus,omitempty"`
	Exponent    uint64   `json:"exponent,omitempty"`
	SHA256      string   `json:"sha256_fingerprint"`
	SigAlg      string   `json:"signature_algorithm"`
	Certificate string   `json:"-"`
}

// InspectCertificateFile reads a PEM, DER or PKCS#7 file and returns one
// result per certificate found.
func InspectCertificateFile(path string) ([]InspectResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	certs, err := parseCertificates(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	results := make([]InspectResult, 0, len(certs))
	now := time.Now()
	for _, cert := range certs {
		results = append(results, InspectCertificate(cert, now))
	}
	return results, nil
}

func parseCertificates(data []byte) ([]*x509.Certificate, error) {
	if webidkit.IsPEM(data) {
		return webidkit.ParsePEMCertificates(data)
	}
	if certs, err := x509.ParseCertificates(data); err == nil && len(certs) > 0 {
		return certs, nil
	}
	if certs, err := webidkit.DecodePKCS7(data); err == nil && len(certs) > 0 {
		return certs, nil
	}
	return nil, errors.New("no certificates found")
}

// InspectCertificate describes cert as of now.
func InspectCertificate(cert *x509.Certificate, now time.Time) InspectResult {
	r := InspectResult{
		Subject:     cert.Subject.String(),
		Issuer:      cert.Issuer.String(),
		Serial:      cert.SerialNumber.String(),
		NotBefore:   cert.NotBefore.UTC().Format(time.RFC3339),
		NotAfter:    cert.NotAfter.UTC().Format(time.RFC3339),
		Expired:     now.After(cert.NotAfter),
		SelfSigned:  isSelfSigned(cert),
		WebIDs:      webidkit.WebIDs(cert),
		KeyAlgo:     cert.PublicKeyAlgorithm.String(),
		SHA256:      webidkit.CertFingerprintColonSHA256(cert),
		SigAlg:      cert.SignatureAlgorithm.String(),
		Certificate: webidkit.CertToPEM(cert),
	}
	for _, eku := range cert.ExtKeyUsage {
		if eku == x509.ExtKeyUsageClientAuth || eku == x509.ExtKeyUsageAny {
			r.ClientAuth = true
		}
	}
	// No EKU extension means unrestricted.
	if len(cert.ExtKeyUsage) == 0 && len(cert.UnknownExtKeyUsage) == 0 {
		r.ClientAuth = true
	}
	if pub, ok := cert.PublicKey.(*rsa.PublicKey); ok {
		r.KeySize = pub.N.BitLen()
		if params, err := webidkit.KeyParametersFromPublicKey(pub); err == nil {
			r.Modulus = params.Modulus
			r.Exponent = params.Exponent
		}
	}
	return r
}

// isSelfSigned checks the signature with the certificate's own key.
// CheckSignatureFrom would reject a CA:false leaf as its own parent.
func isSelfSigned(cert *x509.Certificate) bool {
	if !bytes.Equal(cert.RawIssuer, cert.RawSubject) {
		return false
	}
	return cert.CheckSignature(cert.SignatureAlgorithm, cert.RawTBSCertificate, cert.Signature) == nil
}

// FormatInspectResult formats inspection results as text or JSON.
func FormatInspectResult(results []InspectResult, format string) (string, error) {
	switch format {
	case "text":
		return formatInspectText(results), nil
	case "json":
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshaling JSON: %w", err)
		}
		return string(data) + "\n", nil
	default:
		return "", fmt.Errorf("unsupported output format %q (use text or json)", format)
	}
}

func formatInspectText(results []InspectResult) string {
	var sb strings.Builder
	for i, r := range results {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "Certificate:\n")
		fmt.Fprintf(&sb, "  Subject:     %s\n", r.Subject)
		for _, id := range r.WebIDs {
			fmt.Fprintf(&sb, "  WebID:       %s\n", id)
		}
		fmt.Fprintf(&sb, "  Issuer:      %s\n", r.Issuer)
		fmt.Fprintf(&sb, "  Serial:      %s\n", r.Serial)
		fmt.Fprintf(&sb, "  Not Before:  %s\n", r.NotBefore)
		notAfter := r.NotAfter
		if r.Expired {
			notAfter += " (expired)"
		}
		fmt.Fprintf(&sb, "  Not After:   %s\n", notAfter)
		fmt.Fprintf(&sb, "  Self-signed: %t\n", r.SelfSigned)
		fmt.Fprintf(&sb, "  Client auth: %t\n", r.ClientAuth)
		if r.KeySize > 0 {
			fmt.Fprintf(&sb, "  Key:         %s %d\n", r.KeyAlgo, r.KeySize)
		} else {
			fmt.Fprintf(&sb, "  Key:         %s\n", r.KeyAlgo)
		}
		if r.Modulus != "" {
			fmt.Fprintf(&sb, "  Modulus:     %s\n", r.Modulus)
			fmt.Fprintf(&sb, "  Exponent:    %d\n", r.Exponent)
		}
		fmt.Fprintf(&sb, "  Signature:   %s\n", r.SigAlg)
		fmt.Fprintf(&sb, "  SHA-256:     %s\n", r.SHA256)
	}
	return sb.String()
}

// Key parameter output formats.
const (
	ParamsFormatText   = "text"
	ParamsFormatJSON   = "json"
	ParamsFormatTurtle = "turtle"
)

// FormatKeyParameters renders params for publishing in a WebID profile.
// Turtle output uses the cert ontology and needs the WebID the key belongs
// to; text and JSON include it when set.
func FormatKeyParameters(params webidkit.KeyParameters, webID, format string) (string, error) {
	switch format {
	case ParamsFormatText:
		var sb strings.Builder
		if webID != "" {
			fmt.Fprintf(&sb, "WebID:    %s\n", webID)
		}
		fmt.Fprintf(&sb, "Modulus:  %s\n", params.Modulus)
		fmt.Fprintf(&sb, "Exponent: %d\n", params.Exponent)
		return sb.String(), nil
	case ParamsFormatJSON:
		out := struct {
			WebID string `json:"webid,omitempty"`
			webidkit.KeyParameters
		}{webID, params}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshaling JSON: %w", err)
		}
		return string(data) + "\n", nil
	case ParamsFormatTurtle:
		if webID == "" {
			return "", errors.New("turtle output requires a WebID")
		}
		var sb strings.Builder
		sb.WriteString("@prefix cert: <http://www.w3.org/ns/auth/cert#> .\n")
		sb.WriteString("@prefix xsd: <http://www.w3.org/2001/XMLSchema#> .\n\n")
		fmt.Fprintf(&sb, "<%s> cert:key [\n", webID)
		sb.WriteString("    a cert:RSAPublicKey ;\n")
		fmt.Fprintf(&sb, "    cert:modulus \"%s\"^^xsd:hexBinary ;\n", params.Modulus)
		fmt.Fprintf(&sb, "    cert:exponent %d\n", params.Exponent)
		sb.WriteString("] .\n")
		return sb.String(), nil
	default:
		return "", fmt.Errorf("unsupported output format %q (use text, json or turtle)", format)
	}
}
