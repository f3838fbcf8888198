// Package fswriter writes ##file: tag deliveries to disk and reads files
// back for the tool executor's supplemental read_file/cat tool, applying
// the path-normalisation rules the chat driver's output is expected to
// produce (bare relative paths, escaped newlines, occasional absolute
// paths from an overeager model).
package fswriter

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Written reports the outcome of a successful Write.
type Written struct {
	Path  string
	Bytes int
}

// Writer persists file deliveries to disk.
type Writer interface {
	Write(path, content string) (Written, error)
}

// Reader reads a file back for the read_file/cat tool.
type Reader interface {
	Read(path string) (string, error)
}

// normalizePath trims surrounding whitespace and prefixes "./" onto a bare
// relative path (one that doesn't already start with "/" or ".").
func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return path
	}
	if !strings.HasPrefix(path, "/") && !strings.HasPrefix(path, ".") {
		path = "./" + path
	}
	return path
}

// unescapeIfNoRealNewlines unescapes literal "\n"/"\t" backslash sequences
// when content contains no real newlines — the shape a model emits when it
// can't produce a raw newline inside a tagged inline delivery.
func unescapeIfNoRealNewlines(content string) string {
	if strings.Contains(content, "\n") {
		return content
	}
	r := strings.NewReplacer(`\n`, "\n", `\t`, "\t")
	return r.Replace(content)
}

// isLockedDown reports whether path would escape a sandbox root: an
// absolute path, or one whose cleaned form still starts with "..".
func isLockedDown(path string) bool {
	if strings.HasPrefix(path, "/") {
		return true
	}
	cleaned := filepath.Clean(path)
	return cleaned == ".." || strings.HasPrefix(cleaned, "../")
}

// directWriter writes wherever normalizePath resolves to, relative to the
// process's working directory, with no sandbox confinement. Used when the
// CLI is not running with a locked-down filesystem policy.
type directWriter struct{}

// NewDirectWriter creates a Writer with no path confinement beyond the
// spec's normalisation rules.
func NewDirectWriter() Writer { return directWriter{} }

func (directWriter) Write(path, content string) (Written, error) {
	path = normalizePath(path)
	content = unescapeIfNoRealNewlines(content)

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Written{}, fmt.Errorf("fswriter: mkdir %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return Written{}, fmt.Errorf("fswriter: write %s: %w", path, err)
	}
	return Written{Path: path, Bytes: len(content)}, nil
}

// sandboxWriter confines every write beneath root (spec's "/work"),
// rejecting absolute paths and parent-directory traversal.
type sandboxWriter struct {
	root string
}

// NewSandboxWriter creates a Writer confined to root.
func NewSandboxWriter(root string) Writer {
	return &sandboxWriter{root: root}
}

func (w *sandboxWriter) Write(path, content string) (Written, error) {
	path = normalizePath(path)
	if isLockedDown(path) {
		return Written{}, fmt.Errorf("fswriter: path %q escapes the sandbox", path)
	}
	content = unescapeIfNoRealNewlines(content)

	full := filepath.Join(w.root, path)
	if dir := filepath.Dir(full); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Written{}, fmt.Errorf("fswriter: mkdir %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return Written{}, fmt.Errorf("fswriter: write %s: %w", full, err)
	}
	return Written{Path: path, Bytes: len(content)}, nil
}

// sandboxReader reads files confined beneath root, for read_file/cat.
type sandboxReader struct {
	root string
}

// NewReader creates a Reader confined to root.
func NewReader(root string) Reader {
	return &sandboxReader{root: root}
}

func (r *sandboxReader) Read(path string) (string, error) {
	path = normalizePath(path)
	if isLockedDown(path) {
		return "", fmt.Errorf("fswriter: path %q escapes the sandbox", path)
	}
	full := filepath.Join(r.root, path)
	data, err := os.ReadFile(full)
	if err != nil {
		return "", fmt.Errorf("fswriter: read %s: %w", full, err)
	}
	return string(data), nil
}
