package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestResolvePassword_FromFile(t *testing.T) {
	// WHY: Passwords can be loaded from a file for automation; only the first
	// line counts and trailing newlines must not become part of the password.
	t.Parallel()
	path := filepath.Join(t.TempDir(), "password.txt")
	if err := os.WriteFile(path, []byte("  s3cret \nignored\n"), 0600); err != nil {
		t.Fatalf("write password file: %v", err)
	}

	got, err := ResolvePassword("", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "s3cret" {
		t.Errorf("password = %q, want s3cret", got)
	}
}

func TestResolvePassword_Errors(t *testing.T) {
	t.Parallel()
	empty := filepath.Join(t.TempDir(), "empty.txt")
	if err := os.WriteFile(empty, []byte("\n"), 0600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		password string
		file     string
		wantSub  string
	}{
		{"both", "x", empty, "not both"},
		{"missing file", "", "/nonexistent/password.txt", "loading password from file"},
		{"empty file", "", empty, "is empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ResolvePassword(tt.password, tt.file)
			if err == nil || !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("expected error containing %q, got %v", tt.wantSub, err)
			}
		})
	}
}

func TestResolvePassword_Flag(t *testing.T) {
	t.Parallel()

	got, err := ResolvePassword("changeit", "")
	if err != nil || got != "changeit" {
		t.Errorf("ResolvePassword = %q, %v", got, err)
	}
}
