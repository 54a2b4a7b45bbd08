package webidkit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultCommand is the engine binary name, resolved through PATH unless
	// EngineConfig.CLIDirectory is set.
	DefaultCommand = "openssl"
	// DefaultValidityDays is the certificate lifetime when none is requested.
	DefaultValidityDays = 3650
	// DefaultTimeout bounds every engine invocation.
	DefaultTimeout = 60 * time.Second

	// waitDelay bounds how long Wait blocks on output pipes held open by
	// descendants after the engine itself has exited or been killed.
	waitDelay = 2 * time.Second
)

// EngineConfig locates the openssl binary and its shared libraries.
type EngineConfig struct {
	// CLIDirectory holds the openssl binary. Empty means resolve via PATH.
	CLIDirectory string `yaml:"cli_dir" validate:"printable"`
	// LibDirectory is exported to the engine as LD_LIBRARY_PATH when set.
	LibDirectory string `yaml:"lib_dir" validate:"printable"`
	// Command overrides the binary name (or gives an absolute path).
	Command string        `yaml:"command" validate:"printable"`
	Days    int           `yaml:"days" validate:"gte=0,lte=36500"`
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
}

// Validate reports whether the configuration is well-formed. It does not
// check that the binary exists; that surfaces as a *SpawnError on first use.
func (c EngineConfig) Validate() error {
	return ValidateStruct(c)
}

// CommandPath returns the binary that will be executed.
func (c EngineConfig) CommandPath() string {
	name := c.Command
	if name == "" {
		name = DefaultCommand
	}
	if c.CLIDirectory != "" && !filepath.IsAbs(name) {
		return filepath.Join(c.CLIDirectory, name)
	}
	return name
}

// ProcessResult is the outcome of one engine invocation that was started
// successfully. It is never shared between invocations.
type ProcessResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Engine runs openssl subcommands. It holds only read-only configuration, so
// one Engine may serve any number of concurrent calls.
type Engine struct {
	command string
	libDir  string
	days    int
	timeout time.Duration
	logger  *slog.Logger
}

// NewEngine validates cfg and returns an Engine for it.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		command: cfg.CommandPath(),
		libDir:  cfg.LibDirectory,
		days:    cfg.Days,
		timeout: cfg.Timeout,
		logger:  slog.Default(),
	}
	if e.days == 0 {
		e.days = DefaultValidityDays
	}
	if e.timeout == 0 {
		e.timeout = DefaultTimeout
	}
	return e, nil
}

// WithLogger returns a copy of e that logs to l.
func (e *Engine) WithLogger(l *slog.Logger) *Engine {
	cp := *e
	cp.logger = l
	return &cp
}

// Command returns the binary path or name the engine executes.
func (e *Engine) Command() string { return e.command }

// environ returns the child environment, or nil to inherit ours unchanged.
func (e *Engine) environ() []string {
	if e.libDir == "" {
		return nil
	}
	env := slices.DeleteFunc(os.Environ(), func(kv string) bool {
		return strings.HasPrefix(kv, "LD_LIBRARY_PATH=")
	})
	return append(env, "LD_LIBRARY_PATH="+e.libDir)
}

// run executes one engine process, buffering its output streams until it
// terminates. It returns a *SpawnError if the process never started and a
// *TimeoutError if it was killed at the deadline. A non-zero exit is not an
// error at this level; callers inspect ProcessResult.ExitCode.
func (e *Engine) run(ctx context.Context, op string, args ...string) (*ProcessResult, error) {
	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if err := runCtx.Err(); err != nil {
		return nil, e.contextError(op, ctx, err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, e.command, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Env = e.environ()
	cmd.WaitDelay = waitDelay
	configureProcess(cmd)

	e.logger.Debug("executing openssl", "op", op, "command", e.command, "args", strings.Join(args, " "))

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Command: e.command, Err: err}
	}
	waitErr := cmd.Wait()
	elapsed := time.Since(start)

	if waitErr != nil && runCtx.Err() != nil {
		e.logger.Warn("openssl killed", "op", op, "elapsed", elapsed, "error", runCtx.Err())
		return nil, e.contextError(op, ctx, runCtx.Err())
	}

	result := &ProcessResult{
		ExitCode: cmd.ProcessState.ExitCode(),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: elapsed,
	}

	var exitErr *exec.ExitError
	switch {
	case waitErr == nil, errors.As(waitErr, &exitErr):
	case errors.Is(waitErr, exec.ErrWaitDelay):
		e.logger.Warn("openssl output pipes held open after exit", "op", op)
	default:
		return nil, fmt.Errorf("waiting for openssl %s: %w", op, waitErr)
	}

	e.logger.Debug("openssl completed", "op", op, "exit_code", result.ExitCode, "elapsed", elapsed)
	return result, nil
}

// contextError maps an expired or cancelled context to the error returned to
// the caller. Expiry of either the caller's deadline or our own timeout is a
// *TimeoutError; cancellation is passed through.
func (e *Engine) contextError(op string, parent context.Context, err error) error {
	if parent.Err() != nil && !errors.Is(parent.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("openssl %s: %w", op, parent.Err())
	}
	te := &TimeoutError{Op: op, Err: context.DeadlineExceeded}
	if parent.Err() == nil {
		te.Timeout = e.timeout
	}
	return te
}

// GenerateRequest names the inputs and outputs of one certificate generation.
type GenerateRequest struct {
	ConfigPath  string `validate:"required"`
	KeyOutPath  string `validate:"required"`
	CertOutPath string `validate:"required,nefield=KeyOutPath"`
	// Days overrides the engine's validity period when non-zero.
	Days int `validate:"gte=0,lte=36500"`
}

// GenerateSelfSignedCertificate creates a new RSA key pair and a self-signed
// certificate over it, using the distinguished name and extensions from the
// configuration at req.ConfigPath. Success requires exit code 0 and both
// output files present and non-empty; otherwise an *EngineError is returned
// alongside the ProcessResult and the output files must not be trusted.
func (e *Engine) GenerateSelfSignedCertificate(ctx context.Context, req GenerateRequest) (*ProcessResult, error) {
	if err := ValidateStruct(req); err != nil {
		return nil, err
	}
	days := req.Days
	if days == 0 {
		days = e.days
	}

	result, err := e.run(ctx, "req",
		"req", "-x509", "-new", "-batch", "-utf8",
		"-days", strconv.Itoa(days),
		"-config", req.ConfigPath,
		"-keyout", req.KeyOutPath,
		"-out", req.CertOutPath,
	)
	if err != nil {
		return nil, err
	}
	if result.ExitCode != 0 {
		return result, &EngineError{Op: "req", ExitCode: result.ExitCode, Stderr: result.Stderr}
	}
	for _, p := range []string{req.KeyOutPath, req.CertOutPath} {
		if err := requireNonEmptyFile(p); err != nil {
			return result, &EngineError{Op: "req", Stderr: result.Stderr, Message: err.Error()}
		}
	}
	return result, nil
}

func requireNonEmptyFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("output %s not written: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("output %s is not a regular file", path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("output %s is empty", path)
	}
	return nil
}

var (
	modulusPattern  = regexp.MustCompile(`(?m)^Modulus=([0-9A-Fa-f]+)\r?$`)
	exponentPattern = regexp.MustCompile(`(?m)^publicExponent:\s+(\d+)\s+\(0x([0-9a-fA-F]+)\)\s*$`)
)

// ExtractModulus prints the RSA modulus of the key at keyPath and returns it
// as hex, exactly as openssl reports it.
func (e *Engine) ExtractModulus(ctx context.Context, keyPath string) (string, error) {
	if keyPath == "" {
		return "", &ValidationError{Field: "key path", Message: "is required"}
	}
	result, err := e.run(ctx, "rsa -modulus", "rsa", "-in", keyPath, "-modulus", "-noout")
	if err != nil {
		return "", err
	}
	if result.ExitCode != 0 {
		return "", &EngineError{Op: "rsa -modulus", ExitCode: result.ExitCode, Stderr: result.Stderr}
	}
	return ParseModulus(result.Stdout)
}

// ParseModulus extracts <HEX> from a "Modulus=<HEX>" line.
func ParseModulus(output string) (string, error) {
	m := modulusPattern.FindStringSubmatch(output)
	if m == nil {
		return "", &ParseError{Op: "rsa -modulus", Pattern: "Modulus=<hex>", Output: output}
	}
	return m[1], nil
}

// ExtractExponent prints the decoded key at keyPath and returns its public
// exponent.
func (e *Engine) ExtractExponent(ctx context.Context, keyPath string) (uint64, error) {
	if keyPath == "" {
		return 0, &ValidationError{Field: "key path", Message: "is required"}
	}
	result, err := e.run(ctx, "rsa -text", "rsa", "-in", keyPath, "-text", "-noout")
	if err != nil {
		return 0, err
	}
	if result.ExitCode != 0 {
		return 0, &EngineError{Op: "rsa -text", ExitCode: result.ExitCode, Stderr: result.Stderr}
	}
	return ParseExponent(result.Stdout)
}

// ParseExponent finds the "publicExponent: <dec> (0x<hex>)" line in the full
// text dump of an RSA key. The decimal and hex renderings must agree.
func ParseExponent(output string) (uint64, error) {
	perr := &ParseError{Op: "rsa -text", Pattern: "publicExponent: <dec> (0x<hex>)", Output: output}
	m := exponentPattern.FindStringSubmatch(output)
	if m == nil {
		return 0, perr
	}
	dec, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return 0, perr
	}
	hex, err := strconv.ParseUint(m[2], 16, 64)
	if err != nil || hex != dec {
		return 0, perr
	}
	return dec, nil
}

// ExtractKeyParameters returns the modulus and exponent of the key at keyPath.
func (e *Engine) ExtractKeyParameters(ctx context.Context, keyPath string) (KeyParameters, error) {
	modulus, err := e.ExtractModulus(ctx, keyPath)
	if err != nil {
		return KeyParameters{}, err
	}
	exponent, err := e.ExtractExponent(ctx, keyPath)
	if err != nil {
		return KeyParameters{}, err
	}
	return KeyParameters{Modulus: modulus, Exponent: exponent}, nil
}

// Version returns the engine's version banner, e.g. "OpenSSL 3.0.13 30 Jan 2024".
// The modulus and exponent parsers are written against the 1.1 and 3.x text
// formats; callers log this to pin the format in use.
func (e *Engine) Version(ctx context.Context) (string, error) {
	result, err := e.run(ctx, "version", "version")
	if err != nil {
		return "", err
	}
	if result.ExitCode != 0 {
		return "", &EngineError{Op: "version", ExitCode: result.ExitCode, Stderr: result.Stderr}
	}
	return strings.TrimSpace(result.Stdout), nil
}
