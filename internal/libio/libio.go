// Package libio writes the files that describe a built library: metadata,
// the solution match table and the manifest.
package libio

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/specialistvlad/kernlib/internal/config"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

// Marshal encodes v in the given library format.
func Marshal(format string, v any) ([]byte, error) {
	switch format {
	case config.FormatYAML:
		return yaml.Marshal(v)
	case config.FormatMsgpack:
		var buf bytes.Buffer
		enc := msgpack.NewEncoder(&buf)
		enc.SetSortMapKeys(true)
		if err := enc.Encode(v); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unrecognized library format %q", format)
	}
}

// Unmarshal decodes data written by Marshal.
func Unmarshal(format string, data []byte, v any) error {
	switch format {
	case config.FormatYAML:
		return yaml.Unmarshal(data, v)
	case config.FormatMsgpack:
		return msgpack.Unmarshal(data, v)
	default:
		return fmt.Errorf("unrecognized library format %q", format)
	}
}

// WriteFile encodes v and writes it to path, creating parent directories.
func WriteFile(path, format string, v any) error {
	data, err := Marshal(format, v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// ReadFile decodes the file at path into v.
func ReadFile(path, format string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return Unmarshal(format, data, v)
}

// WriteManifest writes one path per line.
func WriteManifest(path string, paths []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}
	var b strings.Builder
	for _, p := range paths {
		b.WriteString(p)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// ReadManifest returns the non-empty lines of a manifest.
func ReadManifest(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			out = append(out, line)
		}
	}
	return out, sc.Err()
}
