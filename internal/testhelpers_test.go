package internal

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sensiblebit/webidkit"
)

// testKeyPair is an RSA key and a self-signed WebID client certificate
// written as PEM files.
type testKeyPair struct {
	Key      *rsa.PrivateKey
	Cert     *x509.Certificate
	KeyPath  string
	CertPath string
}

func newTestKeyPair(t *testing.T, name, webID string) testKeyPair {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	uri, err := url.Parse(webID)
	if err != nil {
		t.Fatal(err)
	}
	template := &x509.Certificate{
		SerialNumber:          big.NewInt(time.Now().UnixNano()),
		Subject:               pkix.Name{CommonName: name},
		URIs:                  []*url.URL{uri},
		NotBefore:             time.Now().Add(-1 * time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	pkcs8, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatal(err)
	}
	kp := testKeyPair{
		Key:      key,
		Cert:     cert,
		KeyPath:  filepath.Join(dir, "key.pem"),
		CertPath: filepath.Join(dir, "cert.pem"),
	}
	if err := os.WriteFile(kp.KeyPath, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: pkcs8}), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(kp.CertPath, []byte(webidkit.CertToPEM(cert)), 0o644); err != nil {
		t.Fatal(err)
	}
	return kp
}

// params returns the key parameters of the pair's certificate.
func (kp testKeyPair) params(t *testing.T) webidkit.KeyParameters {
	t.Helper()
	p, err := webidkit.KeyParametersFromCertificate(kp.Cert)
	if err != nil {
		t.Fatal(err)
	}
	return p
}
