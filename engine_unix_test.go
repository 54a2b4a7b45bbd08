//go:build unix

package webidkit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"
)

// Tests in this file run fake engines and must not call t.Parallel; see
// writeFakeEngine.

func TestGenerate_PassesArguments(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "args")
	cfg := writeFakeEngine(t, fmt.Sprintf(`printf '%%s\n' "$@" > %q
echo key > "${10}"
echo cert > "${12}"
`, argsFile))
	e, err := NewEngine(cfg)
	if err != nil {
		t.Fatal(err)
	}

	out := t.TempDir()
	req := GenerateRequest{
		ConfigPath:  "/tmp/openssl.1.config",
		KeyOutPath:  filepath.Join(out, "key.pem"),
		CertOutPath: filepath.Join(out, "cert.pem"),
		Days:        30,
	}
	result, err := e.GenerateSelfSignedCertificate(t.Context(), req)
	if err != nil {
		t.Fatal(err)
	}
	if result.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", result.ExitCode)
	}

	data, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatal(err)
	}
	got := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	want := []string{
		"req", "-x509", "-new", "-batch", "-utf8",
		"-days", "30",
		"-config", req.ConfigPath,
		"-keyout", req.KeyOutPath,
		"-out", req.CertOutPath,
	}
	if !slices.Equal(got, want) {
		t.Errorf("args = %q, want %q", got, want)
	}
}

func TestGenerate_NonZeroExit(t *testing.T) {
	// WHY: A failing engine must surface its exit code and diagnostic stream
	// verbatim so the caller can see what openssl complained about.
	cfg := writeFakeEngine(t, `echo "req: Error on line 3 of config file" >&2
exit 3
`)
	e, err := NewEngine(cfg)
	if err != nil {
		t.Fatal(err)
	}
	out := t.TempDir()
	result, err := e.GenerateSelfSignedCertificate(t.Context(), GenerateRequest{
		ConfigPath:  "c",
		KeyOutPath:  filepath.Join(out, "k"),
		CertOutPath: filepath.Join(out, "c"),
	})
	var eerr *EngineError
	if !errors.As(err, &eerr) {
		t.Fatalf("expected *EngineError, got %v", err)
	}
	if eerr.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", eerr.ExitCode)
	}
	if !strings.Contains(eerr.Stderr, "Error on line 3") {
		t.Errorf("Stderr = %q", eerr.Stderr)
	}
	if result == nil || result.ExitCode != 3 {
		t.Errorf("result = %+v, want exit code 3", result)
	}
}

func TestGenerate_MissingOrEmptyOutputs(t *testing.T) {
	// WHY: Exit code 0 is not enough. A key or certificate that was never
	// written, or written empty, must fail the generation.
	tests := []struct {
		name    string
		script  string
		wantMsg string
	}{
		{"nothing written", "exit 0\n", "not written"},
		{"empty key", ": > \"${10}\"\necho cert > \"${12}\"\n", "is empty"},
		{"empty cert", "echo key > \"${10}\"\n: > \"${12}\"\n", "is empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := NewEngine(writeFakeEngine(t, tt.script))
			if err != nil {
				t.Fatal(err)
			}
			out := t.TempDir()
			_, err = e.GenerateSelfSignedCertificate(t.Context(), GenerateRequest{
				ConfigPath:  "c",
				KeyOutPath:  filepath.Join(out, "k"),
				CertOutPath: filepath.Join(out, "c"),
			})
			if !errors.Is(err, ErrEngine) {
				t.Fatalf("expected ErrEngine, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q missing %q", err, tt.wantMsg)
			}
		})
	}
}

func TestEngine_SpawnFailure(t *testing.T) {
	dir := t.TempDir()
	notExec := filepath.Join(dir, "openssl")
	if err := os.WriteFile(notExec, []byte("#!/bin/sh\necho hi\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		cfg  EngineConfig
	}{
		{"missing absolute path", EngineConfig{Command: filepath.Join(dir, "absent")}},
		{"not on PATH", EngineConfig{Command: "webidkit-no-such-openssl"}},
		{"not executable", EngineConfig{CLIDirectory: dir}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := NewEngine(tt.cfg)
			if err != nil {
				t.Fatal(err)
			}
			_, err = e.Version(t.Context())
			var serr *SpawnError
			if !errors.As(err, &serr) {
				t.Fatalf("expected *SpawnError, got %v", err)
			}
			if serr.Command != e.Command() {
				t.Errorf("Command = %q, want %q", serr.Command, e.Command())
			}
		})
	}
}

func TestEngine_Timeout(t *testing.T) {
	// WHY: A hung engine must be killed at the deadline, together with any
	// children it forked, and reported as a timeout rather than a failure.
	cfg := writeFakeEngine(t, "sleep 30\n")
	cfg.Timeout = 200 * time.Millisecond
	e, err := NewEngine(cfg)
	if err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	_, err = e.Version(t.Context())
	elapsed := time.Since(start)

	var terr *TimeoutError
	if !errors.As(err, &terr) {
		t.Fatalf("expected *TimeoutError, got %v", err)
	}
	if terr.Timeout != 200*time.Millisecond {
		t.Errorf("Timeout = %s, want 200ms", terr.Timeout)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected wrapped context.DeadlineExceeded, got %v", err)
	}
	if elapsed > 10*time.Second {
		t.Errorf("engine not killed promptly: %s", elapsed)
	}
}

func TestEngine_CallerDeadline(t *testing.T) {
	e, err := NewEngine(writeFakeEngine(t, "sleep 30\n"))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(t.Context(), 200*time.Millisecond)
	defer cancel()

	_, err = e.Version(ctx)
	var terr *TimeoutError
	if !errors.As(err, &terr) {
		t.Fatalf("expected *TimeoutError, got %v", err)
	}
	if terr.Timeout != 0 {
		t.Errorf("Timeout = %s, want 0 for caller deadline", terr.Timeout)
	}
}

func TestEngine_CallerCancel(t *testing.T) {
	// WHY: Cancellation is the caller's decision, not an engine timeout, and
	// must stay distinguishable.
	e, err := NewEngine(writeFakeEngine(t, "sleep 30\n"))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(t.Context())
	time.AfterFunc(200*time.Millisecond, cancel)

	_, err = e.Version(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if errors.Is(err, ErrTimeout) {
		t.Error("cancellation reported as timeout")
	}
}

func TestEngine_AlreadyCancelled(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "ran")
	e, err := NewEngine(writeFakeEngine(t, fmt.Sprintf("touch %q\n", argsFile)))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	if _, err := e.Version(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, err := os.Stat(argsFile); err == nil {
		t.Error("engine ran despite cancelled context")
	}
}

func TestExtractKeyParameters_Fake(t *testing.T) {
	e, err := NewEngine(writeFakeEngine(t, fakeOpenSSL))
	if err != nil {
		t.Fatal(err)
	}
	params, err := e.ExtractKeyParameters(t.Context(), "key.pem")
	if err != nil {
		t.Fatal(err)
	}
	if params.Modulus != "C0FFEE01" || params.Exponent != 65537 {
		t.Errorf("got %+v, want {C0FFEE01 65537}", params)
	}
}

func TestExtract_UnexpectedOutput(t *testing.T) {
	e, err := NewEngine(writeFakeEngine(t, "echo 'no key here'\n"))
	if err != nil {
		t.Fatal(err)
	}
	_, err = e.ExtractModulus(t.Context(), "key.pem")
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	if !strings.Contains(perr.Output, "no key here") {
		t.Errorf("Output = %q", perr.Output)
	}
	if _, err := e.ExtractExponent(t.Context(), "key.pem"); !errors.Is(err, ErrParse) {
		t.Errorf("ExtractExponent: expected ErrParse, got %v", err)
	}
}

func TestExtract_EngineFailure(t *testing.T) {
	e, err := NewEngine(writeFakeEngine(t, "echo 'Could not read private key' >&2\nexit 1\n"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.ExtractModulus(t.Context(), "missing.pem"); !errors.Is(err, ErrEngine) {
		t.Errorf("ExtractModulus: expected ErrEngine, got %v", err)
	}
	if _, err := e.ExtractExponent(t.Context(), "missing.pem"); !errors.Is(err, ErrEngine) {
		t.Errorf("ExtractExponent: expected ErrEngine, got %v", err)
	}
}

func TestEngine_LibraryDirectory(t *testing.T) {
	cfg := writeFakeEngine(t, `echo "$LD_LIBRARY_PATH"`+"\n")
	cfg.LibDirectory = "/opt/ssl/lib"
	e, err := NewEngine(cfg)
	if err != nil {
		t.Fatal(err)
	}
	got, err := e.Version(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	if got != "/opt/ssl/lib" {
		t.Errorf("LD_LIBRARY_PATH seen by engine = %q", got)
	}
}

func TestEngine_ConcurrentCallsIsolated(t *testing.T) {
	// WHY: Output buffers are per invocation. Concurrent calls on one Engine
	// must each see only their own process's output.
	e, err := NewEngine(writeFakeEngine(t, `echo "Modulus=$3"`+"\n"))
	if err != nil {
		t.Fatal(err)
	}

	const n = 16
	got := make([]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Go(func() {
			got[i], errs[i] = e.ExtractModulus(t.Context(), fmt.Sprintf("%X", 0xA0+i))
		})
	}
	wg.Wait()

	for i := range n {
		if errs[i] != nil {
			t.Errorf("call %d: %v", i, errs[i])
			continue
		}
		if want := fmt.Sprintf("%X", 0xA0+i); got[i] != want {
			t.Errorf("call %d got %q, want %q", i, got[i], want)
		}
	}
}

func TestEngine_Version(t *testing.T) {
	e, err := NewEngine(writeFakeEngine(t, fakeOpenSSL))
	if err != nil {
		t.Fatal(err)
	}
	v, err := e.Version(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	if v != "OpenSSL 3.0.13 30 Jan 2024" {
		t.Errorf("Version() = %q", v)
	}
}
