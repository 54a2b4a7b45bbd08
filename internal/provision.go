package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sensiblebit/webidkit"
)

// ProvisionInput names the profile to issue a certificate for and where the
// key and certificate files go.
type ProvisionInput struct {
	Issuer    *webidkit.Issuer
	Alias     string
	OutputDir string
	Purpose   string
}

// ProvisionResult is a certificate that was issued, checked and stored.
type ProvisionResult struct {
	Identity    webidkit.Identity
	Certificate CertificateRecord
	Parameters  webidkit.KeyParameters
	Issuance    *webidkit.Issuance
}

// Provision issues a certificate for the profile in.Alias, extracts its key
// parameters through the engine, checks them against the certificate's own
// public key and WebID, and appends the certificate to the profile's list.
// Files from an issuance that fails the checks are removed.
func Provision(ctx context.Context, db *DB, in ProvisionInput) (*ProvisionResult, error) {
	if in.Issuer == nil {
		return nil, errors.New("provisioning requires an issuer")
	}
	if in.OutputDir == "" {
		in.OutputDir = "."
	}
	if in.Purpose == "" {
		in.Purpose = DefaultPurpose
	}

	id, err := db.LookupIdentity(in.Alias)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(in.OutputDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating output directory %s: %w", in.OutputDir, err)
	}

	recID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generating certificate id: %w", err)
	}
	base := filepath.Join(in.OutputDir, fileBaseName(in.Alias)+"-"+recID.String())
	material := webidkit.CertificateMaterial{
		PrivateKeyPath:  base + ".key",
		CertificatePath: base + ".crt",
	}

	logger := slog.With("alias", in.Alias, "webid", id.URI)
	start := time.Now()

	iss, err := in.Issuer.Issue(ctx, id, material)
	if err != nil {
		discard(material, logger)
		return nil, fmt.Errorf("provisioning %s: %w", in.Alias, err)
	}

	rec, params, err := checkIssued(ctx, in.Issuer.Engine(), id, material)
	if err != nil {
		discard(material, logger)
		return nil, fmt.Errorf("provisioning %s: %w", in.Alias, err)
	}
	rec.ID = recID.String()
	rec.Purpose = in.Purpose

	pos, err := db.AddCertificate(in.Alias, rec)
	if err != nil {
		discard(material, logger)
		return nil, fmt.Errorf("storing certificate for %s: %w", in.Alias, err)
	}
	rec.Alias = in.Alias
	rec.Position = pos

	logger.Info("provisioned WebID certificate",
		"position", pos,
		"cert", material.CertificatePath,
		"fingerprint", rec.Fingerprint,
		"elapsed", time.Since(start))

	return &ProvisionResult{Identity: id, Certificate: rec, Parameters: params, Issuance: iss}, nil
}

// checkIssued cross-checks the engine's view of the new key against the
// certificate parsed natively and builds the record to store.
func checkIssued(ctx context.Context, engine *webidkit.Engine, id webidkit.Identity, m webidkit.CertificateMaterial) (CertificateRecord, webidkit.KeyParameters, error) {
	params, err := engine.ExtractKeyParameters(ctx, m.PrivateKeyPath)
	if err != nil {
		return CertificateRecord{}, webidkit.KeyParameters{}, fmt.Errorf("extracting key parameters: %w", err)
	}

	certPEM, err := os.ReadFile(m.CertificatePath)
	if err != nil {
		return CertificateRecord{}, webidkit.KeyParameters{}, fmt.Errorf("reading certificate: %w", err)
	}
	cert, err := webidkit.ParsePEMCertificate(certPEM)
	if err != nil {
		return CertificateRecord{}, webidkit.KeyParameters{}, err
	}
	native, err := webidkit.KeyParametersFromCertificate(cert)
	if err != nil {
		return CertificateRecord{}, webidkit.KeyParameters{}, err
	}
	if !params.Equal(native) {
		return CertificateRecord{}, webidkit.KeyParameters{}, fmt.Errorf("engine reports modulus %s... exponent %d, certificate key differs", truncate(params.Modulus, 16), params.Exponent)
	}
	if !slices.Contains(webidkit.WebIDs(cert), id.URI) {
		return CertificateRecord{}, webidkit.KeyParameters{}, fmt.Errorf("certificate does not carry WebID %s (has %v)", id.URI, webidkit.WebIDs(cert))
	}

	rec := CertificateRecord{
		CertificatePath: m.CertificatePath,
		KeyPath:         m.PrivateKeyPath,
		Modulus:         native.Modulus,
		Exponent:        native.Exponent,
		Fingerprint:     webidkit.CertFingerprintColonSHA256(cert),
		NotBefore:       cert.NotBefore.UTC(),
		NotAfter:        cert.NotAfter.UTC(),
		PEM:             webidkit.CertToPEM(cert),
	}
	return rec, params, nil
}

func discard(m webidkit.CertificateMaterial, logger *slog.Logger) {
	for _, p := range []string{m.PrivateKeyPath, m.CertificatePath} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("removing rejected certificate material", "path", p, "error", err)
		}
	}
}

// ProvisionOutcome is the result of one alias in a ProvisionAll batch.
type ProvisionOutcome struct {
	Alias  string
	Result *ProvisionResult
	Err    error
}

// ProvisionAll provisions every input with at most concurrency issuances in
// flight. Outcomes are returned in input order; one failure does not stop the
// others.
func ProvisionAll(ctx context.Context, db *DB, inputs []ProvisionInput, concurrency int) []ProvisionOutcome {
	if concurrency < 1 {
		concurrency = 1
	}
	outcomes := make([]ProvisionOutcome, len(inputs))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i, in := range inputs {
		outcomes[i].Alias = in.Alias
		if err := ctx.Err(); err != nil {
			outcomes[i].Err = err
			continue
		}
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			outcomes[i].Err = ctx.Err()
			continue
		}
		wg.Go(func() {
			defer func() { <-sem }()
			outcomes[i].Result, outcomes[i].Err = Provision(ctx, db, in)
		})
	}
	wg.Wait()
	return outcomes
}

// fileBaseName maps an alias to a safe file name component.
func fileBaseName(alias string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, alias)
	if name == "" || strings.Trim(name, ".") == "" {
		return "profile"
	}
	return name
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
