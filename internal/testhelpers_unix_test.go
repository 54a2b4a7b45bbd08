//go:build unix

package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sensiblebit/webidkit"
)

// writeFakeEngine installs an openssl stand-in that "generates" by copying
// kp's files to the requested outputs and reports modulus as the key's
// modulus.
//
// Tests using it must not call t.Parallel: writing an executable while
// another goroutine forks can leak the write descriptor into the child and
// make exec fail with ETXTBSY.
func writeFakeEngine(t *testing.T, kp testKeyPair, modulus string) webidkit.EngineConfig {
	t.Helper()
	script := fmt.Sprintf(`#!/bin/sh
case "$1" in
req)
  while [ $# -gt 0 ]; do
    case "$1" in
      -keyout) key="$2"; shift ;;
      -out) out="$2"; shift ;;
    esac
    shift
  done
  cp %q "$key"
  cp %q "$out"
  ;;
rsa)
  case "$*" in
    *-modulus*) echo "Modulus=%s" ;;
    *-text*) printf 'Private-Key: (2048 bit, 2 primes)\npublicExponent: 65537 (0x10001)\n' ;;
  esac
  ;;
esac
`, kp.KeyPath, kp.CertPath, modulus)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "openssl"), []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return webidkit.EngineConfig{CLIDirectory: dir}
}

// writeKeyThenFailEngine installs an openssl stand-in whose req writes the
// private key and then exits 1, as openssl does when key generation succeeds
// but certificate signing fails. The same ETXTBSY caveat as writeFakeEngine
// applies.
func writeKeyThenFailEngine(t *testing.T, kp testKeyPair) webidkit.EngineConfig {
	t.Helper()
	script := fmt.Sprintf(`#!/bin/sh
while [ $# -gt 0 ]; do
  case "$1" in
    -keyout) key="$2"; shift ;;
  esac
  shift
done
cp %q "$key"
echo "unable to sign certificate" >&2
exit 1
`, kp.KeyPath)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "openssl"), []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return webidkit.EngineConfig{CLIDirectory: dir}
}
