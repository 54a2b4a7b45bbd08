// Package webidkit issues self-signed WebID client certificates by driving the
// openssl command line tool, and extracts the RSA modulus and public exponent
// that a WebID profile publishes for WebID-TLS verification.
package webidkit

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// maxCommonName is the X.520 upper bound on commonName. openssl req -utf8
// enforces it in characters, not bytes.
const maxCommonName = 64

// Identity is the subject a certificate is issued for: a display name and the
// WebID URI placed in the certificate's Subject Alternative Name.
type Identity struct {
	URI         string
	DisplayName string
}

// NewIdentity validates and returns an Identity. Surrounding whitespace is
// trimmed from both fields.
func NewIdentity(displayName, uri string) (Identity, error) {
	id := Identity{
		URI:         strings.TrimSpace(uri),
		DisplayName: strings.TrimSpace(displayName),
	}
	if err := id.Validate(); err != nil {
		return Identity{}, err
	}
	return id, nil
}

// Validate reports whether the identity can be embedded in a certificate.
func (id Identity) Validate() error {
	if id.DisplayName == "" {
		return &ValidationError{Field: "display name", Message: "is required"}
	}
	if err := checkPrintable(id.DisplayName); err != nil {
		return &ValidationError{Field: "display name", Message: err.Error()}
	}
	if n := utf8.RuneCountInString(id.DisplayName); n > maxCommonName {
		return &ValidationError{Field: "display name", Message: fmt.Sprintf("is %d characters, limit is %d", n, maxCommonName)}
	}
	if id.URI == "" {
		return &ValidationError{Field: "WebID", Message: "is required"}
	}
	if err := checkWebID(id.URI); err != nil {
		return &ValidationError{Field: "WebID", Message: err.Error()}
	}
	return nil
}

func (id Identity) String() string {
	return id.DisplayName + " <" + id.URI + ">"
}
