package webidkit

import (
	"crypto"
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"math/big"
)

// KeyParameters are the public RSA parameters a WebID profile publishes so a
// verifier can match a presented client certificate against it.
type KeyParameters struct {
	Modulus  string `json:"modulus"`
	Exponent uint64 `json:"exponent"`
}

// KeyParametersFromPublicKey returns the parameters of an RSA public key,
// with the modulus in upper-case hex as openssl prints it.
func KeyParametersFromPublicKey(pub crypto.PublicKey) (KeyParameters, error) {
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return KeyParameters{}, fmt.Errorf("unsupported public key type %T, WebID-TLS requires RSA", pub)
	}
	return KeyParameters{
		Modulus:  fmt.Sprintf("%X", rsaPub.N),
		Exponent: uint64(rsaPub.E),
	}, nil
}

// KeyParametersFromCertificate returns the parameters of the certificate's
// public key.
func KeyParametersFromCertificate(cert *x509.Certificate) (KeyParameters, error) {
	return KeyParametersFromPublicKey(cert.PublicKey)
}

// Matches reports whether pub is the RSA key these parameters describe. The
// modulus comparison is numeric, so case and leading zeros do not matter.
func (p KeyParameters) Matches(pub crypto.PublicKey) bool {
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return false
	}
	n, ok := new(big.Int).SetString(p.Modulus, 16)
	if !ok {
		return false
	}
	return n.Cmp(rsaPub.N) == 0 && p.Exponent == uint64(rsaPub.E)
}

// Equal reports whether p and other describe the same key.
func (p KeyParameters) Equal(other KeyParameters) bool {
	a, okA := new(big.Int).SetString(p.Modulus, 16)
	b, okB := new(big.Int).SetString(other.Modulus, 16)
	return okA && okB && a.Cmp(b) == 0 && p.Exponent == other.Exponent
}
