package webidkit

import (
	"context"
	"fmt"
	"log/slog"
)

// IssuanceState tracks one issuance from request to cleanup. Every issuance
// that acquired a configuration file ends in StateReleased.
type IssuanceState int

const (
	StatePending IssuanceState = iota
	StateConfigWritten
	StateGenerating
	StateSucceeded
	StateFailed
	StateReleased
)

func (s IssuanceState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateConfigWritten:
		return "config-written"
	case StateGenerating:
		return "generating"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateReleased:
		return "released"
	default:
		return fmt.Sprintf("IssuanceState(%d)", int(s))
	}
}

// CertificateMaterial names where the private key and certificate are
// written. The caller chooses the paths and owns the files afterwards.
type CertificateMaterial struct {
	PrivateKeyPath  string `validate:"required"`
	CertificatePath string `validate:"required,nefield=PrivateKeyPath"`
}

// Issuance records what happened to one issuance request.
type Issuance struct {
	Identity   Identity
	Material   CertificateMaterial
	State      IssuanceState
	Succeeded  bool
	ConfigPath string
	Result     *ProcessResult

	history []IssuanceState
}

// History returns every state the issuance passed through, in order.
func (i *Issuance) History() []IssuanceState {
	return append([]IssuanceState(nil), i.history...)
}

func (i *Issuance) transition(s IssuanceState, logger *slog.Logger) {
	i.State = s
	i.history = append(i.history, s)
	if s == StateSucceeded {
		i.Succeeded = true
	}
	logger.Debug("issuance state", "state", s.String())
}

// Issuer issues WebID certificates through a validated Engine.
type Issuer struct {
	engine  *Engine
	tempDir string
	opts    ConfigOptions
	logger  *slog.Logger
}

// IssuerOption configures an Issuer.
type IssuerOption func(*Issuer)

// WithTempDir places synthesized configuration files in dir instead of
// os.TempDir.
func WithTempDir(dir string) IssuerOption {
	return func(is *Issuer) { is.tempDir = dir }
}

// WithConfigOptions sets the key size and digest requested from openssl.
func WithConfigOptions(opts ConfigOptions) IssuerOption {
	return func(is *Issuer) { is.opts = opts }
}

// WithLogger sends the issuer's and its engine's logs to l.
func WithLogger(l *slog.Logger) IssuerOption {
	return func(is *Issuer) { is.logger = l }
}

// NewIssuer validates cfg and returns an Issuer.
func NewIssuer(cfg EngineConfig, opts ...IssuerOption) (*Issuer, error) {
	engine, err := NewEngine(cfg)
	if err != nil {
		return nil, err
	}
	is := &Issuer{engine: engine, logger: slog.Default()}
	for _, o := range opts {
		o(is)
	}
	if err := ValidateStruct(is.opts); err != nil {
		return nil, err
	}
	is.engine = is.engine.WithLogger(is.logger)
	return is, nil
}

// Engine returns the engine the issuer drives, for key parameter extraction.
func (is *Issuer) Engine() *Engine { return is.engine }

// IssueCertificate validates all inputs, then issues a self-signed WebID
// certificate for id into m using a one-off Issuer built from cfg.
func IssueCertificate(ctx context.Context, id Identity, m CertificateMaterial, cfg EngineConfig) (*Issuance, error) {
	if err := ValidateStruct(m); err != nil {
		return nil, err
	}
	is, err := NewIssuer(cfg)
	if err != nil {
		return nil, err
	}
	return is.Issue(ctx, id, m)
}

// Issue writes a configuration for id to a temporary file, runs openssl req
// against it to produce m's key and certificate, and deletes the temporary
// file whatever the outcome.
//
// Input errors are returned before anything touches the filesystem, with a
// nil Issuance. Once the configuration file exists, the returned Issuance is
// non-nil even on error and its State is StateReleased.
func (is *Issuer) Issue(ctx context.Context, id Identity, m CertificateMaterial) (*Issuance, error) {
	if err := ValidateStruct(m); err != nil {
		return nil, err
	}
	text, err := SynthesizeConfigWithOptions(id.DisplayName, id.URI, is.opts)
	if err != nil {
		return nil, err
	}

	logger := is.logger.With("webid", id.URI)
	iss := &Issuance{Identity: id, Material: m}
	iss.transition(StatePending, logger)

	tmp, err := AcquireTempFile(is.tempDir, "openssl.", ".config")
	if err != nil {
		return nil, err
	}
	iss.ConfigPath = tmp.Path
	defer func() {
		if rerr := tmp.Release(); rerr != nil {
			logger.Warn("removing openssl config", "path", tmp.Path, "error", rerr)
		}
		iss.transition(StateReleased, logger)
	}()

	if err := tmp.WriteAndClose([]byte(text)); err != nil {
		iss.transition(StateFailed, logger)
		return iss, err
	}
	iss.transition(StateConfigWritten, logger)

	iss.transition(StateGenerating, logger)
	result, err := is.engine.GenerateSelfSignedCertificate(ctx, GenerateRequest{
		ConfigPath:  tmp.Path,
		KeyOutPath:  m.PrivateKeyPath,
		CertOutPath: m.CertificatePath,
	})
	iss.Result = result
	if err != nil {
		iss.transition(StateFailed, logger)
		logger.Error("certificate generation failed", "error", err)
		return iss, fmt.Errorf("issuing certificate for %s: %w", id.URI, err)
	}

	iss.transition(StateSucceeded, logger)
	logger.Info("issued WebID certificate", "cert", m.CertificatePath, "key", m.PrivateKeyPath)
	return iss, nil
}
