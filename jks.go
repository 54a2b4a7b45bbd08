package webidkit

import (
	"bytes"
	"crypto"
	"crypto/x509"
	"errors"
	"fmt"
	"time"

	"github.com/pavlo-v-chernykh/keystore-go/v4"
)

// EncodeJKS creates a Java KeyStore holding the WebID key and certificate as
// a single private key entry under alias. The same password protects the
// store and the entry (standard Java convention).
func EncodeJKS(privateKey crypto.PrivateKey, cert *x509.Certificate, alias, password string) ([]byte, error) {
	if alias == "" {
		return nil, errors.New("keystore alias is required")
	}
	if cert == nil {
		return nil, errors.New("certificate is required")
	}
	pkcs8Key, err := x509.MarshalPKCS8PrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("marshaling private key to PKCS#8: %w", err)
	}

	ks := keystore.New()
	if err := ks.SetPrivateKeyEntry(alias, keystore.PrivateKeyEntry{
		CreationTime:     time.Now(),
		PrivateKey:       pkcs8Key,
		CertificateChain: []keystore.Certificate{{Type: "X.509", Content: cert.Raw}},
	}, []byte(password)); err != nil {
		return nil, fmt.Errorf("setting JKS private key entry: %w", err)
	}

	var buf bytes.Buffer
	if err := ks.Store(&buf, []byte(password)); err != nil {
		return nil, fmt.Errorf("storing JKS: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeJKS loads a Java KeyStore and returns the key and certificate stored
// under alias.
func DecodeJKS(data []byte, alias, password string) (crypto.PrivateKey, *x509.Certificate, error) {
	ks := keystore.New()
	if err := ks.Load(bytes.NewReader(data), []byte(password)); err != nil {
		return nil, nil, fmt.Errorf("loading JKS: %w", err)
	}
	entry, err := ks.GetPrivateKeyEntry(alias, []byte(password))
	if err != nil {
		return nil, nil, fmt.Errorf("reading JKS entry %q: %w", alias, err)
	}
	key, err := x509.ParsePKCS8PrivateKey(entry.PrivateKey)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing JKS private key: %w", err)
	}
	if len(entry.CertificateChain) == 0 {
		return nil, nil, fmt.Errorf("JKS entry %q has no certificate", alias)
	}
	cert, err := x509.ParseCertificate(entry.CertificateChain[0].Content)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing JKS certificate: %w", err)
	}
	return key, cert, nil
}
