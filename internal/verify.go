package internal

import (
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/sensiblebit/webidkit"
)

// VerifyInput names a presented client certificate and where to find the key
// parameters it must match: explicit published values or the certificates
// stored for a profile.
type VerifyInput struct {
	CertPath string
	Modulus  string
	Exponent uint64
	Alias    string
	DB       *DB
	Now      time.Time
}

// VerifyResult holds the outcome of a WebID-TLS key match.
type VerifyResult struct {
	Subject    string   `json:"subject"`
	WebIDs     []string `json:"webids,omitempty"`
	NotAfter   string   `json:"not_after"`
	Modulus    string   `json:"modulus"`
	Exponent   uint64   `json:"exponent"`
	Matched    bool     `json:"matched"`
	MatchedBy  string   `json:"matched_by,omitempty"`
	WebIDMatch *bool    `json:"webid_match,omitempty"`
	Expired    bool     `json:"expired,omitempty"`
	Errors     []string `json:"errors,omitempty"`
}

// OK reports whether the certificate passed every check.
func (r *VerifyResult) OK() bool { return len(r.Errors) == 0 }

// VerifyCertificate performs the check a WebID-TLS verifier makes after
// dereferencing the WebID: the certificate's public key must equal one of
// the published keys. With an alias, the profile's stored certificates are
// the published keys and the certificate must also carry the profile's
// WebID. Mismatches are reported in the result; the error return is for
// inputs that cannot be checked at all.
func VerifyCertificate(in VerifyInput) (*VerifyResult, error) {
	if in.CertPath == "" {
		return nil, errors.New("certificate path is required")
	}
	explicit := in.Modulus != ""
	if explicit == (in.Alias != "") {
		return nil, errors.New("specify either a modulus and exponent or a profile alias, not both")
	}
	if in.Alias != "" && in.DB == nil {
		return nil, errors.New("verifying against a profile requires a database")
	}
	if explicit && in.Exponent == 0 {
		return nil, errors.New("exponent is required with a modulus")
	}

	data, err := os.ReadFile(in.CertPath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", in.CertPath, err)
	}
	certs, err := parseCertificates(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", in.CertPath, err)
	}
	cert := certs[0]
	params, err := webidkit.KeyParametersFromCertificate(cert)
	if err != nil {
		return nil, err
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	result := &VerifyResult{
		Subject:  cert.Subject.String(),
		WebIDs:   webidkit.WebIDs(cert),
		NotAfter: cert.NotAfter.UTC().Format(time.RFC3339),
		Modulus:  params.Modulus,
		Exponent: params.Exponent,
		Expired:  now.After(cert.NotAfter),
	}
	if result.Expired {
		result.Errors = append(result.Errors, "certificate has expired")
	}

	if explicit {
		published := webidkit.KeyParameters{Modulus: strings.TrimSpace(in.Modulus), Exponent: in.Exponent}
		if published.Matches(cert.PublicKey) {
			result.Matched = true
			result.MatchedBy = "published key"
		}
	} else if err := matchProfile(in.DB, in.Alias, cert, result); err != nil {
		return nil, err
	}
	if !result.Matched {
		result.Errors = append(result.Errors, "certificate key does not match any published key")
	}
	return result, nil
}

func matchProfile(db *DB, alias string, cert *x509.Certificate, result *VerifyResult) error {
	profile, err := db.GetProfile(alias)
	if err != nil {
		return err
	}
	if profile == nil {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, alias)
	}
	webIDMatch := slices.Contains(result.WebIDs, profile.WebID)
	result.WebIDMatch = &webIDMatch
	if !webIDMatch {
		result.Errors = append(result.Errors, fmt.Sprintf("certificate does not carry WebID %s", profile.WebID))
	}

	records, err := db.ListCertificates(alias)
	if err != nil {
		return err
	}
	for _, rec := range records {
		published := webidkit.KeyParameters{Modulus: rec.Modulus, Exponent: rec.Exponent}
		if published.Matches(cert.PublicKey) {
			result.Matched = true
			result.MatchedBy = fmt.Sprintf("%s certificate %d", alias, rec.Position)
			return nil
		}
	}
	return nil
}

// FormatVerifyResult formats a verify result as text or JSON.
func FormatVerifyResult(r *VerifyResult, format string) (string, error) {
	switch format {
	case "text":
		return formatVerifyText(r), nil
	case "json":
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshaling JSON: %w", err)
		}
		return string(data) + "\n", nil
	default:
		return "", fmt.Errorf("unsupported output format %q (use text or json)", format)
	}
}

func formatVerifyText(r *VerifyResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Certificate: %s\n", r.Subject)
	for _, id := range r.WebIDs {
		fmt.Fprintf(&sb, "      WebID: %s\n", id)
	}
	fmt.Fprintf(&sb, "  Not After: %s\n", r.NotAfter)
	fmt.Fprintf(&sb, "   Exponent: %d\n", r.Exponent)

	if r.Matched {
		fmt.Fprintf(&sb, "  Key Match: OK (%s)\n", r.MatchedBy)
	} else {
		sb.WriteString("  Key Match: MISMATCH\n")
	}
	if r.WebIDMatch != nil {
		if *r.WebIDMatch {
			sb.WriteString("WebID Match: OK\n")
		} else {
			sb.WriteString("WebID Match: MISMATCH\n")
		}
	}

	if len(r.Errors) > 0 {
		fmt.Fprintf(&sb, "\nVerification FAILED (%d error(s))\n", len(r.Errors))
		for _, e := range r.Errors {
			fmt.Fprintf(&sb, "  - %s\n", e)
		}
	} else {
		sb.WriteString("\nVerification OK\n")
	}
	return sb.String()
}
