package internal

import (
	"crypto"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/sensiblebit/webidkit"
)

// Export formats.
const (
	FormatP12       = "p12"
	FormatP12Legacy = "p12-legacy"
	FormatJKS       = "jks"
	FormatP7B       = "p7b"
)

// ExportFormats lists the formats ExportBundle accepts.
var ExportFormats = []string{FormatP12, FormatP12Legacy, FormatJKS, FormatP7B}

// DefaultJKSAlias is the keystore entry name used when none is given.
const DefaultJKSAlias = "webid"

// ExportInput describes one bundle to write.
type ExportInput struct {
	KeyPath  string
	CertPath string
	Format   string
	OutPath  string
	Password string
	Alias    string
	Force    bool
}

// ExportBundle packages a WebID key and certificate for import elsewhere:
// PKCS#12 for browsers and OS key stores, JKS for Java clients, or a
// certs-only PKCS#7 for verifiers. The key is only read for formats that
// carry it.
func ExportBundle(in ExportInput) error {
	if !slices.Contains(ExportFormats, in.Format) {
		return fmt.Errorf("unsupported export format %q (use %v)", in.Format, ExportFormats)
	}
	if in.CertPath == "" || in.OutPath == "" {
		return errors.New("certificate and output paths are required")
	}

	var data []byte
	if in.Format == FormatP7B {
		certPEM, err := os.ReadFile(in.CertPath)
		if err != nil {
			return fmt.Errorf("reading certificate %s: %w", in.CertPath, err)
		}
		certs, err := webidkit.ParsePEMCertificates(certPEM)
		if err != nil {
			return fmt.Errorf("parsing certificate %s: %w", in.CertPath, err)
		}
		data, err = webidkit.EncodePKCS7(certs...)
		if err != nil {
			return fmt.Errorf("encoding PKCS#7: %w", err)
		}
	} else {
		if in.KeyPath == "" {
			return fmt.Errorf("%s export requires the private key", in.Format)
		}
		if in.Password == "" {
			return fmt.Errorf("%s export requires a password", in.Format)
		}
		key, cert, err := webidkit.LoadKeyPair(in.KeyPath, in.CertPath)
		if err != nil {
			return err
		}
		data, err = encodeWithKey(in, key, cert)
		if err != nil {
			return err
		}
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if in.Force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(in.OutPath, flags, 0o600)
	if err != nil {
		return fmt.Errorf("creating %s: %w", in.OutPath, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing %s: %w", in.OutPath, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", in.OutPath, err)
	}

	slog.Info("exported bundle", "format", in.Format, "path", in.OutPath, "bytes", len(data))
	return nil
}

func encodeWithKey(in ExportInput, key crypto.PrivateKey, cert *x509.Certificate) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch in.Format {
	case FormatP12:
		data, err = webidkit.EncodePKCS12(key, cert, in.Password)
	case FormatP12Legacy:
		data, err = webidkit.EncodePKCS12Legacy(key, cert, in.Password)
	case FormatJKS:
		alias := in.Alias
		if alias == "" {
			alias = DefaultJKSAlias
		}
		data, err = webidkit.EncodeJKS(key, cert, alias, in.Password)
	}
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", in.Format, err)
	}
	return data, nil
}
