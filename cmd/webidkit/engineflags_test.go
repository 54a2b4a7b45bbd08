package main

import (
	"os"
	"testing"
	"time"

	"github.com/sensiblebit/webidkit"
	"github.com/sensiblebit/webidkit/internal"
	"github.com/spf13/cobra"
)

func TestEngineFlags_Apply(t *testing.T) {
	// WHY: Only flags given on the command line may override the config
	// file; a flag left at its default must not clobber a configured value.
	t.Parallel()
	cmd := &cobra.Command{Use: "test", RunE: func(*cobra.Command, []string) error { return nil }}
	ef := addEngineFlags(cmd)
	if err := cmd.ParseFlags([]string{"--openssl-dir", "/opt/openssl/bin", "--timeout", "5s", "--digest", "sha384"}); err != nil {
		t.Fatal(err)
	}

	cfg := ef.apply(webidkit.EngineConfig{LibDirectory: "/opt/openssl/lib", Days: 30, Timeout: time.Minute})
	want := webidkit.EngineConfig{CLIDirectory: "/opt/openssl/bin", LibDirectory: "/opt/openssl/lib", Days: 30, Timeout: 5 * time.Second}
	if cfg != want {
		t.Errorf("apply = %+v, want %+v", cfg, want)
	}

	opts := ef.applyKey(webidkit.ConfigOptions{Bits: 4096})
	if opts.Bits != 4096 || opts.Digest != "sha384" {
		t.Errorf("applyKey = %+v", opts)
	}
}

func TestResolveFormat(t *testing.T) {
	t.Parallel()
	if got := resolveFormat("turtle", os.Stdout.Fd()); got != "turtle" {
		t.Errorf("explicit format changed to %q", got)
	}

	// WHY: Under go test stdout is a pipe or file, so auto must pick JSON.
	f, err := os.CreateTemp(t.TempDir(), "out")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()
	if got := resolveFormat("auto", f.Fd()); got != internal.ParamsFormatJSON {
		t.Errorf("auto on a file = %q, want json", got)
	}
}

func TestRootCommand_Subcommands(t *testing.T) {
	t.Parallel()
	for _, name := range []string{"issue", "keyparams", "profile", "provision", "export", "inspect", "verify", "version"} {
		if cmd, _, err := rootCmd.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}
