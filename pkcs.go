package webidkit

import (
	"crypto"
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"fmt"

	"github.com/smallstep/pkcs7"
	gopkcs12 "software.sslmate.com/src/go-pkcs12"
)

// validatePKCS12Key checks that the private key can be packaged for a
// browser. WebID-TLS client keys are always RSA.
func validatePKCS12Key(privateKey crypto.PrivateKey) error {
	if _, ok := privateKey.(*rsa.PrivateKey); !ok {
		return fmt.Errorf("unsupported private key type %T", privateKey)
	}
	return nil
}

// EncodePKCS12 packages a WebID key and certificate as a PKCS#12/PFX file
// that browsers and OS key stores import as a client identity.
func EncodePKCS12(privateKey crypto.PrivateKey, cert *x509.Certificate, password string) ([]byte, error) {
	if err := validatePKCS12Key(privateKey); err != nil {
		return nil, err
	}
	if cert == nil {
		return nil, errors.New("certificate is required")
	}
	return gopkcs12.Modern.Encode(privateKey, cert, nil, password)
}

// EncodePKCS12Legacy is EncodePKCS12 with the RC2/3DES ciphers that older
// browsers and macOS Keychain still require.
func EncodePKCS12Legacy(privateKey crypto.PrivateKey, cert *x509.Certificate, password string) ([]byte, error) {
	if err := validatePKCS12Key(privateKey); err != nil {
		return nil, err
	}
	if cert == nil {
		return nil, errors.New("certificate is required")
	}
	return gopkcs12.LegacyRC2.Encode(privateKey, cert, nil, password)
}

// DecodePKCS12 decodes a PKCS#12/PFX bundle and returns its private key and
// leaf certificate.
func DecodePKCS12(pfxData []byte, password string) (crypto.PrivateKey, *x509.Certificate, error) {
	privateKey, leaf, _, err := gopkcs12.DecodeChain(pfxData, password)
	if err != nil {
		return nil, nil, fmt.Errorf("decoding PKCS#12: %w", err)
	}
	return privateKey, leaf, nil
}

// EncodePKCS7 creates a certs-only PKCS#7/P7B bundle, the form in which a
// WebID certificate is handed to a verifier without its key.
func EncodePKCS7(certs ...*x509.Certificate) ([]byte, error) {
	if len(certs) == 0 {
		return nil, errors.New("no certificates to encode")
	}
	var derBytes []byte
	for _, cert := range certs {
		derBytes = append(derBytes, cert.Raw...)
	}
	return pkcs7.DegenerateCertificate(derBytes)
}

// DecodePKCS7 decodes a DER-encoded PKCS#7 bundle and returns its certificates.
func DecodePKCS7(derData []byte) ([]*x509.Certificate, error) {
	p7, err := pkcs7.Parse(derData)
	if err != nil {
		return nil, fmt.Errorf("parsing PKCS#7: %w", err)
	}
	if len(p7.Certificates) == 0 {
		return nil, errors.New("PKCS#7 bundle contains no certificates")
	}
	return p7.Certificates, nil
}
