package webidkit

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinels for errors.Is matching against the typed errors below.
var (
	ErrValidation = errors.New("validation failed")
	ErrSpawn      = errors.New("engine could not be started")
	ErrEngine     = errors.New("engine failed")
	ErrParse      = errors.New("unexpected engine output")
	ErrResource   = errors.New("temporary resource failure")
	ErrTimeout    = errors.New("engine timed out")
)

// ValidationError reports a missing or malformed input. It is always raised
// before any file is created or any process is spawned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// SpawnError reports that the engine binary could not be started.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("starting %s: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

func (e *SpawnError) Is(target error) bool { return target == ErrSpawn }

// EngineError reports a process that terminated with a non-zero exit code, or
// that exited cleanly without producing the files it was asked for. Stderr is
// the engine's diagnostic stream, verbatim.
type EngineError struct {
	Op       string
	ExitCode int
	Stderr   string
	Message  string
}

func (e *EngineError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "openssl %s", e.Op)
	if e.Message != "" {
		fmt.Fprintf(&sb, ": %s", e.Message)
	} else {
		fmt.Fprintf(&sb, " exited with code %d", e.ExitCode)
	}
	if s := strings.TrimSpace(e.Stderr); s != "" {
		fmt.Fprintf(&sb, ": %s", s)
	}
	return sb.String()
}

func (e *EngineError) Is(target error) bool { return target == ErrEngine }

// ParseError reports that the engine exited 0 but its output did not have
// the expected shape.
type ParseError struct {
	Op      string
	Pattern string
	Output  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing openssl %s output: no match for %s", e.Op, e.Pattern)
}

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// ResourceError reports a failure creating, writing or deleting a temporary
// file.
type ResourceError struct {
	Op   string
	Path string
	Err  error
}

func (e *ResourceError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s temporary file: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s temporary file %s: %v", e.Op, e.Path, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

func (e *ResourceError) Is(target error) bool { return target == ErrResource }

// TimeoutError reports that an engine process was killed after exceeding its
// deadline. Any output files it was writing are unreliable.
type TimeoutError struct {
	Op      string
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	if e.Timeout > 0 {
		return fmt.Sprintf("openssl %s: killed after %s", e.Op, e.Timeout)
	}
	return fmt.Sprintf("openssl %s: deadline exceeded", e.Op)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }
