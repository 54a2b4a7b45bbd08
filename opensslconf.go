package webidkit

import (
	"fmt"
	"strings"
)

const (
	// DefaultKeyBits is the RSA modulus size requested from openssl req.
	DefaultKeyBits = 2048
	// DefaultDigest is the signature digest of the self-signed certificate.
	DefaultDigest = "sha256"
)

// ConfigOptions tunes the [ req ] section of a synthesized configuration.
type ConfigOptions struct {
	Bits   int    `validate:"omitempty,gte=2048,lte=16384"`
	Digest string `validate:"omitempty,oneof=sha256 sha384 sha512"`
}

// SynthesizeConfig returns the openssl req configuration for a WebID client
// certificate using default key size and digest.
func SynthesizeConfig(displayName, subjectURI string) (string, error) {
	return SynthesizeConfigWithOptions(displayName, subjectURI, ConfigOptions{})
}

// SynthesizeConfigWithOptions returns the openssl req configuration that
// makes `openssl req -x509 -new -batch` produce a self-signed client
// certificate whose common name is displayName and whose Subject Alternative
// Name holds exactly one URI entry, subjectURI.
//
// Values are emitted double-quoted with backslash and quote escaped; inputs
// containing control characters are rejected. The output is deterministic.
func SynthesizeConfigWithOptions(displayName, subjectURI string, opts ConfigOptions) (string, error) {
	if err := ValidateStruct(opts); err != nil {
		return "", err
	}
	if err := (Identity{URI: subjectURI, DisplayName: displayName}).Validate(); err != nil {
		return "", err
	}
	if opts.Bits == 0 {
		opts.Bits = DefaultKeyBits
	}
	if opts.Digest == "" {
		opts.Digest = DefaultDigest
	}

	name := quoteConfValue(displayName)
	uri := quoteConfValue(subjectURI)

	var sb strings.Builder
	sb.WriteString("[ req ]\n")
	fmt.Fprintf(&sb, "default_md = %s\n", opts.Digest)
	fmt.Fprintf(&sb, "default_bits = %d\n", opts.Bits)
	sb.WriteString("distinguished_name = req_distinguished_name\n")
	sb.WriteString("encrypt_key = no\n")
	sb.WriteString("string_mask = utf8only\n")
	sb.WriteString("x509_extensions = req_ext\n")

	sb.WriteString("[ req_distinguished_name ]\n")
	sb.WriteString("commonName = The agent's name\n")
	fmt.Fprintf(&sb, "commonName_default = %s\n", name)
	sb.WriteString("UID = The WebID URI\n")
	fmt.Fprintf(&sb, "UID_default = %s\n", uri)

	sb.WriteString("[ req_ext ]\n")
	sb.WriteString("subjectKeyIdentifier = hash\n")
	sb.WriteString("subjectAltName = critical,@subject_alt\n")
	sb.WriteString("basicConstraints = critical,CA:false\n")
	sb.WriteString("keyUsage = critical,digitalSignature,keyEncipherment\n")
	sb.WriteString("extendedKeyUsage = clientAuth\n")
	sb.WriteString("nsCertType = client\n")

	sb.WriteString("[ subject_alt ]\n")
	fmt.Fprintf(&sb, "URI.1=%s\n", uri)

	return sb.String(), nil
}

// quoteConfValue wraps s in double quotes. Inside quotes the OpenSSL config
// parser treats '#' and '$' literally and '\' escapes the next byte.
func quoteConfValue(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) + 2)
	sb.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '"' || c == '\\' {
			sb.WriteByte('\\')
		}
		sb.WriteByte(c)
	}
	sb.WriteByte('"')
	return sb.String()
}
