// Package validate syntax-checks files written by the pipeline.
package validate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"go/parser"
	"go/token"
	"io"
	"log"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"

	"github.com/cexll/firstfix/internal/github"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// pythonCheck compiles a file without writing bytecode next to it.
const pythonCheck = "import sys; compile(open(sys.argv[1], encoding='utf-8').read(), sys.argv[1], 'exec')"

// FileError is a syntax error in one file.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// Validator checks files by extension. Unknown extensions pass.
type Validator struct {
	runner   github.CommandRunner
	lookPath func(string) (string, error)
}

// New creates a Validator. runner executes the Python syntax check.
func New(runner github.CommandRunner) *Validator {
	return &Validator{runner: runner, lookPath: exec.LookPath}
}

// Validate checks every path (relative to root) and returns all failures
// joined, or nil.
func (v *Validator) Validate(ctx context.Context, root string, paths []string) error {
	var errs []error
	python := ""
	pythonResolved := false

	for _, rel := range paths {
		full := filepath.Join(root, filepath.FromSlash(rel))
		data, err := os.ReadFile(full)
		if err != nil {
			errs = append(errs, &FileError{Path: rel, Err: err})
			continue
		}

		switch strings.ToLower(path.Ext(rel)) {
		case ".go":
			err = checkGo(rel, data)
		case ".json":
			err = checkJSON(data)
		case ".yaml", ".yml":
			err = checkYAML(data)
		case ".toml":
			err = checkTOML(data)
		case ".py":
			if !pythonResolved {
				python = v.resolvePython()
				pythonResolved = true
			}
			if python != "" {
				err = v.checkPython(ctx, python, root, rel)
			}
		default:
			continue
		}

		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			errs = append(errs, &FileError{Path: rel, Err: err})
		}
	}

	return errors.Join(errs...)
}

func (v *Validator) resolvePython() string {
	if v.lookPath == nil || v.runner == nil {
		return ""
	}
	python, err := v.lookPath("python3")
	if err != nil {
		log.Printf("[Validate] python3 not found, skipping Python syntax checks")
		return ""
	}
	return python
}

func checkGo(name string, data []byte) error {
	_, err := parser.ParseFile(token.NewFileSet(), name, data, parser.AllErrors)
	return err
}

func checkJSON(data []byte) error {
	var v any
	return json.Unmarshal(data, &v)
}

func checkYAML(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	for {
		var node yaml.Node
		err := dec.Decode(&node)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func checkTOML(data []byte) error {
	var v map[string]any
	return toml.Unmarshal(data, &v)
}

func (v *Validator) checkPython(ctx context.Context, python, root, rel string) error {
	out, err := v.runner.RunInDir(ctx, root, python, "-c", pythonCheck, rel)
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg == "" {
			return err
		}
		return fmt.Errorf("%s", lastLines(msg, 6))
	}
	return nil
}

func lastLines(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
