//go:build unix

package webidkit

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// fakeOpenSSL answers the subcommands the engine issues. req copies the
// configuration to -out so tests can see what openssl was given.
const fakeOpenSSL = `case "$1" in
req)
  while [ $# -gt 0 ]; do
    case "$1" in
      -keyout) key="$2"; shift ;;
      -out) out="$2"; shift ;;
      -config) conf="$2"; shift ;;
    esac
    shift
  done
  echo "fake key" > "$key"
  cp "$conf" "$out"
  ;;
rsa)
  case "$*" in
    *-modulus*) echo "Modulus=C0FFEE01" ;;
    *-text*) printf 'Private-Key: (2048 bit, 2 primes)\nmodulus:\n    00:c0:ff:ee:01\npublicExponent: 65537 (0x10001)\nprivateExponent:\n    01\n' ;;
  esac
  ;;
version)
  echo "OpenSSL 3.0.13 30 Jan 2024"
  ;;
esac
`

// writeFakeEngine installs a shell script named openssl and returns an
// EngineConfig that runs it.
//
// Tests using it must not call t.Parallel: writing an executable while
// another goroutine forks can leak the write descriptor into the child and
// make exec fail with ETXTBSY.
func writeFakeEngine(t *testing.T, body string) EngineConfig {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "openssl")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return EngineConfig{CLIDirectory: dir}
}

// requireOpenSSL skips the test unless a real openssl binary is on PATH.
func requireOpenSSL(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping openssl integration test in short mode")
	}
	if _, err := exec.LookPath("openssl"); err != nil {
		t.Skip("openssl not found on PATH")
	}
}
