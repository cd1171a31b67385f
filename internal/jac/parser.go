package jac

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Parser is the boundary to the Jac grammar. A non-nil error means the parse
// could not be attempted at all (missing binary, IO failure); syntax problems
// in the input are reported on the returned Module, and every caller must
// consume both arms.
type Parser interface {
	Parse(ctx context.Context, code string, filename string) (*Module, error)
}

// CommandParser invokes the jac compiler as a subprocess. The compiler owns
// the grammar; jacref only reads its AST dump (`<binary> tool dump-ast`) and
// exit status.
type CommandParser struct {
	Binary string
}

// NewCommandParser returns a parser backed by the given compiler binary,
// defaulting to "jac" on PATH.
func NewCommandParser(binary string) *CommandParser {
	if strings.TrimSpace(binary) == "" {
		binary = "jac"
	}
	return &CommandParser{Binary: binary}
}

// Available reports whether the compiler binary can be resolved. Used by the
// extractor to choose between the AST strategy and the scanner fallback.
func (p *CommandParser) Available() bool {
	_, err := exec.LookPath(p.Binary)
	return err == nil
}

// Parse writes code to a temp file and asks the compiler for a JSON AST dump.
// The compiler exits non-zero on syntax errors but still emits a dump with an
// errors list, so a non-zero exit alone is not treated as an infra failure.
func (p *CommandParser) Parse(ctx context.Context, code string, filename string) (*Module, error) {
	dir, err := os.MkdirTemp("", "jacref-parse-")
	if err != nil {
		return nil, fmt.Errorf("parse scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	name := filepath.Base(filename)
	if name == "" || name == "." {
		name = "input.jac"
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(code), 0o644); err != nil {
		return nil, fmt.Errorf("write parse input: %w", err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.Binary, "tool", "dump-ast", path)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if stdout.Len() > 0 {
		mod, decErr := DecodeModule(stdout.Bytes())
		if decErr == nil {
			if mod.Name == "" {
				mod.Name = name
			}
			return mod, nil
		}
		if runErr == nil {
			return nil, decErr
		}
	}

	if runErr != nil {
		if _, ok := runErr.(*exec.ExitError); ok {
			// Compiler rejected the input without producing a dump. Surface
			// its first diagnostic line as the syntax error.
			return &Module{
				Name:         name,
				SyntaxErrors: []string{firstLine(stderr.String())},
			}, nil
		}
		return nil, fmt.Errorf("run %s: %w", p.Binary, runErr)
	}
	return nil, fmt.Errorf("%s produced no ast dump", p.Binary)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "syntax error"
	}
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	return s
}
